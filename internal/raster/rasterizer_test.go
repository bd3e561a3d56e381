package raster

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/srwiley/rasterx"

	"github.com/pwnholic/slidecap/internal"
	"github.com/pwnholic/slidecap/internal/svgdoc"
)

func newTestRasterizer() *Rasterizer {
	return New(WithLogger(internal.NewLogger(&bytes.Buffer{}, internal.DEBUG)))
}

func parse(t *testing.T, markup string) *svgdoc.Document {
	t.Helper()
	doc, err := svgdoc.ParseString(markup, "")
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func render(t *testing.T, r *Rasterizer, markup string) image.Image {
	t.Helper()
	out, err := r.Rasterize(context.Background(), parse(t, markup))
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	return img
}

func near(c color.Color, want color.NRGBA) bool {
	got := color.NRGBAModel.Convert(c).(color.NRGBA)
	d := func(a, b uint8) bool { return math.Abs(float64(a)-float64(b)) <= 24 }
	return d(got.R, want.R) && d(got.G, want.G) && d(got.B, want.B) && d(got.A, want.A)
}

var (
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
)

func TestRasterizeFixedSize(t *testing.T) {
	r := newTestRasterizer()
	for _, vb := range []string{"0 0 100 100", "0 0 4000 3000", "10 20 960 540", ""} {
		markup := `<svg viewBox="` + vb + `" width="720" height="405"><rect x="0" y="0" width="10" height="10" fill="#ff0000"></rect></svg>`
		if vb == "" {
			markup = `<svg><rect width="10" height="10" fill="#ff0000"></rect></svg>`
		}
		img := render(t, r, markup)
		if b := img.Bounds(); b.Dx() != Width || b.Dy() != Height {
			t.Fatalf("viewBox %q: got %dx%d", vb, b.Dx(), b.Dy())
		}
	}
}

func TestRasterizeStretchesViewBox(t *testing.T) {
	img := render(t, newTestRasterizer(), `<svg viewBox="0 0 100 100">
		<rect x="0" y="0" width="100" height="100" fill="#ff0000"></rect>
	</svg>`)
	for _, p := range []image.Point{{2, 2}, {Width - 3, 2}, {2, Height - 3}, {Width - 3, Height - 3}} {
		if !near(img.At(p.X, p.Y), red) {
			t.Fatalf("corner %v = %v, want red", p, img.At(p.X, p.Y))
		}
	}

	half := render(t, newTestRasterizer(), `<svg viewBox="0 0 100 100">
		<rect x="0" y="0" width="50" height="100" fill="#ff0000"></rect>
	</svg>`)
	if !near(half.At(900, 540), red) {
		t.Fatalf("left half = %v", half.At(900, 540))
	}
	if _, _, _, a := half.At(1020, 540).RGBA(); a != 0 {
		t.Fatalf("right half should be empty, alpha %d", a)
	}
}

func solidPNG(t *testing.T, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestRasterizeCompositesBitmapsInOrder(t *testing.T) {
	markup := `<svg viewBox="0 0 192 108" xmlns:xlink="http://www.w3.org/1999/xlink">
		<rect x="0" y="0" width="192" height="108" fill="#ff0000"></rect>
		<image x="96" y="0" width="96" height="108" preserveAspectRatio="none" xlink:href="` + solidPNG(t, color.RGBA{B: 255, A: 255}) + `"></image>
		<rect x="96" y="72" width="96" height="36" fill="#00ff00"></rect>
	</svg>`
	img := render(t, newTestRasterizer(), markup)

	cases := []struct {
		p    image.Point
		want color.NRGBA
	}{
		{image.Pt(400, 500), red},
		{image.Pt(1500, 500), blue},
		{image.Pt(1500, 900), green},
	}
	for _, c := range cases {
		if got := img.At(c.p.X, c.p.Y); !near(got, c.want) {
			t.Errorf("pixel %v = %v, want %v", c.p, got, c.want)
		}
	}
}

func TestRasterizeSkipsUndecodableBitmap(t *testing.T) {
	img := render(t, newTestRasterizer(), `<svg viewBox="0 0 100 100">
		<rect width="100" height="100" fill="#ff0000"></rect>
		<image width="100" height="100" href="data:image/png;base64,bm90IGFuIGltYWdl"></image>
	</svg>`)
	if !near(img.At(960, 540), red) {
		t.Fatalf("center = %v", img.At(960, 540))
	}
}

func TestRasterizeDegenerateViewBox(t *testing.T) {
	transparent := color.NRGBA{}
	tests := []struct {
		viewBox string
		want    color.NRGBA
	}{
		{"0 0 0 0", transparent},
		{"0 0 0 10", transparent},
		{"0 0 -5 10", red},
		{"foo", red},
		{"0 0 10", red},
	}
	for _, tt := range tests {
		var logs bytes.Buffer
		r := New(WithLogger(internal.NewLogger(&logs, internal.DEBUG)))
		img := render(t, r, `<svg viewBox="`+tt.viewBox+`"><rect width="1920" height="1080" fill="#ff0000"></rect></svg>`)
		if b := img.Bounds(); b.Dx() != Width || b.Dy() != Height {
			t.Fatalf("viewBox %q: got %dx%d", tt.viewBox, b.Dx(), b.Dy())
		}
		if !near(img.At(960, 540), tt.want) {
			t.Fatalf("viewBox %q: center = %v, want %v", tt.viewBox, img.At(960, 540), tt.want)
		}
		if tt.want == transparent && !strings.Contains(logs.String(), "zero-size viewBox") {
			t.Fatalf("viewBox %q: no warning in %q", tt.viewBox, logs.String())
		}
		if r.Staged() != 0 {
			t.Fatalf("staged buffers leaked: %d", r.Staged())
		}
	}
}

func TestRasterizeUndecodableMarkup(t *testing.T) {
	r := newTestRasterizer()
	_, err := r.Rasterize(context.Background(), parse(t, `<svg viewBox="0 0 10 10"><rect width="1" height="1" stroke-width="wide"></rect></svg>`))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
	if r.Staged() != 0 {
		t.Fatalf("staged buffers leaked: %d", r.Staged())
	}
}

func TestRasterizeWarnsAboutDefinitionImages(t *testing.T) {
	var logs bytes.Buffer
	r := New(WithLogger(internal.NewLogger(&logs, internal.DEBUG)))
	img := render(t, r, `<svg viewBox="0 0 100 100">
		<defs><image id="logo" width="10" height="10" href="data:image/png;base64,AAAA"></image></defs>
		<rect width="100" height="100" fill="#ff0000"></rect>
	</svg>`)
	if !near(img.At(960, 540), red) {
		t.Fatalf("center = %v", img.At(960, 540))
	}
	if !strings.Contains(logs.String(), "1 images inside defs, patterns or symbols are not drawn") {
		t.Fatalf("missing warning in %q", logs.String())
	}
}

func TestRasterizeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newTestRasterizer()
	if _, err := r.Rasterize(ctx, parse(t, `<svg viewBox="0 0 10 10"></svg>`)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestRasterizeLeavesInputAlone(t *testing.T) {
	doc := parse(t, `<svg viewBox="0 0 10 10"><g transform="scale(2)"><rect width="1" height="1"></rect></g><image width="1" height="1" href="data:image/png;base64,AAAA"></image></svg>`)
	before := doc.String()

	r := newTestRasterizer()
	if _, err := r.Rasterize(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	if doc.String() != before {
		t.Fatalf("document mutated:\n%s\n%s", before, doc.String())
	}
	if r.Staged() != 0 {
		t.Fatalf("staged buffers leaked: %d", r.Staged())
	}
}

func TestParseTransform(t *testing.T) {
	tests := []struct {
		in      string
		x, y    float64
		wantX   float64
		wantY   float64
		wantErr bool
	}{
		{in: "", x: 3, y: 4, wantX: 3, wantY: 4},
		{in: "translate(10)", x: 1, y: 1, wantX: 11, wantY: 1},
		{in: "translate(10, 20) scale(2)", x: 1, y: 1, wantX: 12, wantY: 22},
		{in: "scale(2 3)", x: 1, y: 1, wantX: 2, wantY: 3},
		{in: "rotate(90)", x: 1, y: 0, wantX: 0, wantY: 1},
		{in: "rotate(180 5 5)", x: 0, y: 0, wantX: 10, wantY: 10},
		{in: "matrix(1 0 0 1 7 8)", x: 0, y: 0, wantX: 7, wantY: 8},
		{in: "skewX(45)", x: 0, y: 1, wantX: 1, wantY: 1},
		{in: "rotate(1 2)", wantErr: true},
		{in: "wobble(3)", wantErr: true},
		{in: "garbage", wantErr: true},
	}
	for _, tt := range tests {
		m, err := parseTransform(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%q: err = %v", tt.in, err)
		}
		if tt.wantErr {
			continue
		}
		gx, gy := m.Transform(tt.x, tt.y)
		if math.Abs(gx-tt.wantX) > 1e-9 || math.Abs(gy-tt.wantY) > 1e-9 {
			t.Errorf("%q applied to (%v,%v) = (%v,%v), want (%v,%v)", tt.in, tt.x, tt.y, gx, gy, tt.wantX, tt.wantY)
		}
	}
}

func TestFitBox(t *testing.T) {
	box := svgdoc.Box{X: 0, Y: 0, W: 200, H: 100}
	tests := []struct {
		par      string
		want     svgdoc.Box
		wantClip bool
	}{
		{"none", box, false},
		{"", svgdoc.Box{X: 50, Y: 0, W: 100, H: 100}, false},
		{"xMinYMin meet", svgdoc.Box{X: 0, Y: 0, W: 100, H: 100}, false},
		{"xMaxYMax", svgdoc.Box{X: 100, Y: 0, W: 100, H: 100}, false},
		{"xMidYMid slice", svgdoc.Box{X: 0, Y: -50, W: 200, H: 200}, true},
	}
	for _, tt := range tests {
		got, clip := fitBox(box, 10, 10, tt.par)
		if got != tt.want || clip != tt.wantClip {
			t.Errorf("%q: got %+v clip=%v, want %+v clip=%v", tt.par, got, clip, tt.want, tt.wantClip)
		}
	}
}

func TestElementCTMComposesAncestors(t *testing.T) {
	doc := parse(t, `<svg><g transform="translate(10 0)"><g transform="scale(2)"><image x="1" y="1"></image></g></g></svg>`)
	clone := doc.Clone()
	m := elementCTM(clone.Images()[0])
	x, y := m.Transform(1, 1)
	if x != 12 || y != 2 {
		t.Fatalf("got (%v,%v), want (12,2)", x, y)
	}
	if m == rasterx.Identity {
		t.Fatal("identity matrix")
	}
}

package raster

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"net/url"
	"strings"

	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/net/html"

	"github.com/pwnholic/slidecap/internal/svgdoc"
)

var errNotEmbedded = errors.New("reference is not a data URI")

// decodeDataURI decodes the bitmap carried by a data: reference.
func decodeDataURI(ref string) (image.Image, error) {
	if !svgdoc.IsDataURI(ref) {
		return nil, errNotEmbedded
	}
	meta, payload, ok := strings.Cut(ref[len(svgdoc.DataURIPrefix):], ",")
	if !ok {
		return nil, errors.New("data URI without payload")
	}

	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		data, err = base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			return nil, fmt.Errorf("base64 payload: %w", err)
		}
	} else {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("percent-encoded payload: %w", err)
		}
		data = []byte(s)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		mt, _, _ := strings.Cut(meta, ";")
		return nil, fmt.Errorf("decode %s: %w", mt, err)
	}
	if b := img.Bounds(); b.Dx() < 1 || b.Dy() < 1 {
		return nil, fmt.Errorf("empty %s bitmap", format)
	}
	return img, nil
}

// drawBitmap composites one <image> element onto canvas. viewport maps the
// slide's user space to canvas pixels.
func drawBitmap(canvas *image.RGBA, node *html.Node, viewport rasterx.Matrix2D) error {
	ref, _ := svgdoc.Href(node)
	if ref == "" {
		return nil
	}
	src, err := decodeDataURI(ref)
	if err != nil {
		return fmt.Errorf("%.60s: %w", ref, err)
	}

	x, _ := svgdoc.Length(node, "x")
	y, _ := svgdoc.Length(node, "y")
	w, wok := svgdoc.Length(node, "width")
	h, hok := svgdoc.Length(node, "height")
	bounds := src.Bounds()
	if !wok || w <= 0 {
		w = float64(bounds.Dx())
	}
	if !hok || h <= 0 {
		h = float64(bounds.Dy())
	}

	par, _ := svgdoc.Attr(node, "preserveAspectRatio")
	viewportBox := svgdoc.Box{X: x, Y: y, W: w, H: h}
	placed, clip := fitBox(viewportBox, float64(bounds.Dx()), float64(bounds.Dy()), par)

	ctm := viewport.Mult(elementCTM(node))
	dr := deviceRect(ctm, placed)
	dst := canvas
	if clip {
		cr := deviceRect(ctm, viewportBox).Intersect(canvas.Bounds())
		sub, ok := canvas.SubImage(cr).(*image.RGBA)
		if !ok {
			return nil
		}
		dst = sub
	}
	if dr.Empty() || !dr.Overlaps(dst.Bounds()) {
		return nil
	}

	xdraw.CatmullRom.Scale(dst, dr, src, bounds, xdraw.Over, nil)
	return nil
}

// fitBox applies preserveAspectRatio to an iw x ih bitmap inside box. clip is
// true for "slice", where the result overflows box and must be clipped.
func fitBox(box svgdoc.Box, iw, ih float64, par string) (placed svgdoc.Box, clip bool) {
	fields := strings.Fields(par)
	align := "xMidYMid"
	slice := false
	for _, f := range fields {
		switch f {
		case "defer":
		case "meet":
		case "slice":
			slice = true
		default:
			align = f
		}
	}
	if align == "none" {
		return box, false
	}

	sx, sy := box.W/iw, box.H/ih
	scale := math.Min(sx, sy)
	if slice {
		scale = math.Max(sx, sy)
	}
	pw, ph := iw*scale, ih*scale

	placed = svgdoc.Box{X: box.X, Y: box.Y, W: pw, H: ph}
	switch {
	case strings.HasPrefix(align, "xMid"):
		placed.X += (box.W - pw) / 2
	case strings.HasPrefix(align, "xMax"):
		placed.X += box.W - pw
	}
	switch {
	case strings.HasSuffix(align, "YMid"):
		placed.Y += (box.H - ph) / 2
	case strings.HasSuffix(align, "YMax"):
		placed.Y += box.H - ph
	}
	return placed, slice
}

// deviceRect is the axis-aligned pixel bounds of box under m. Rotation and
// skew collapse to the bounding box.
func deviceRect(m rasterx.Matrix2D, box svgdoc.Box) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range [4][2]float64{
		{box.X, box.Y},
		{box.X + box.W, box.Y},
		{box.X, box.Y + box.H},
		{box.X + box.W, box.Y + box.H},
	} {
		tx, ty := m.Transform(p[0], p[1])
		minX, maxX = math.Min(minX, tx), math.Max(maxX, tx)
		minY, maxY = math.Min(minY, ty), math.Max(maxY, ty)
	}
	return image.Rect(
		int(math.Round(minX)), int(math.Round(minY)),
		int(math.Round(maxX)), int(math.Round(maxY)),
	)
}

// elementCTM composes the transform attributes from the outermost ancestor
// below the root <svg> down to node itself. node must belong to a detached
// tree whose root is the <svg> element.
func elementCTM(node *html.Node) rasterx.Matrix2D {
	var chain []*html.Node
	for n := node; n != nil && n.Parent != nil; n = n.Parent {
		chain = append(chain, n)
	}

	m := rasterx.Identity
	for i := len(chain) - 1; i >= 0; i-- {
		raw, ok := svgdoc.Attr(chain[i], "transform")
		if !ok {
			continue
		}
		t, err := parseTransform(raw)
		if err != nil {
			continue
		}
		m = m.Mult(t)
	}
	return m
}

package inline

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/pwnholic/slidecap/internal"
	"github.com/pwnholic/slidecap/internal/clients"
	"github.com/pwnholic/slidecap/internal/svgdoc"
)

var pixel = []byte("\x89PNG\r\n\x1a\nfake-pixel")

type imageServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newImageServer(t *testing.T) *imageServer {
	t.Helper()
	s := &imageServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		switch {
		case strings.HasSuffix(r.URL.Path, "/broken.png"):
			http.Error(w, "gone", http.StatusInternalServerError)
		case strings.HasSuffix(r.URL.Path, ".jpg"):
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(pixel)
		default:
			w.Header().Set("Content-Type", "image/png")
			w.Write(pixel)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func newInliner(opts Options) *Inliner {
	opts.Logger = internal.NewLogger(&bytes.Buffer{}, internal.DEBUG)
	client := clients.NewClient(&clients.HTTPClientOptions{TimeOut: 5 * time.Second})
	return New(client, opts)
}

func slide(t *testing.T, base string, refs ...string) *svgdoc.Document {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(`<svg viewBox="0 0 100 100">`)
	for _, ref := range refs {
		sb.WriteString(`<image width="10" height="10" ` + ref + `></image>`)
	}
	sb.WriteString(`</svg>`)
	doc, err := svgdoc.ParseString(sb.String(), base)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestInlinePartialFailure(t *testing.T) {
	srv := newImageServer(t)
	doc := slide(t, "",
		`xlink:href="`+srv.URL+`/a.png"`,
		`href="`+srv.URL+`/broken.png"`,
		`href="`+srv.URL+`/c.jpg"`,
	)
	brokenBefore := append([]html.Attribute(nil), doc.Images()[1].Attr...)

	report := newInliner(Options{Concurrency: 3}).Inline(context.Background(), doc)
	if report.Total != 3 || report.Inlined != 2 || report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}

	imgs := doc.Images()
	want := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pixel)
	if ref, attr := svgdoc.Href(imgs[0]); ref != want || attr != "href" {
		t.Fatalf("img0 = %q via %q", ref, attr)
	}
	if _, ok := svgdoc.Attr(imgs[0], "xlink:href"); ok {
		t.Fatal("legacy xlink:href not removed")
	}
	if ref, _ := svgdoc.Href(imgs[2]); !strings.HasPrefix(ref, "data:image/jpeg;base64,") {
		t.Fatalf("img2 = %q", ref)
	}

	after := imgs[1].Attr
	if len(after) != len(brokenBefore) {
		t.Fatalf("failed node attrs changed: %v -> %v", brokenBefore, after)
	}
	for i := range after {
		if after[i] != brokenBefore[i] {
			t.Fatalf("failed node attr %d changed: %v -> %v", i, brokenBefore[i], after[i])
		}
	}
}

func TestInlineIdempotent(t *testing.T) {
	srv := newImageServer(t)
	doc := slide(t, "", `href="`+srv.URL+`/a.png"`, `href="data:image/gif;base64,R0lG"`)
	in := newInliner(Options{CacheTTL: -1})

	in.Inline(context.Background(), doc)
	first := doc.String()
	hits := srv.hits.Load()

	report := in.Inline(context.Background(), doc)
	if doc.String() != first {
		t.Fatalf("second pass changed the document:\n%s\n%s", first, doc.String())
	}
	if report.Skipped != 2 || report.Inlined != 0 {
		t.Fatalf("second pass report = %+v", report)
	}
	if srv.hits.Load() != hits {
		t.Fatal("second pass fetched again")
	}
}

func TestInlineResolvesRelativeAgainstBase(t *testing.T) {
	srv := newImageServer(t)
	doc := slide(t, srv.URL+"/deck/pub", `href="img/a.png"`)

	report := newInliner(Options{}).Inline(context.Background(), doc)
	if report.Inlined != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestInlineRelativeWithoutBaseFails(t *testing.T) {
	doc := slide(t, "", `href="img/a.png"`)

	report := newInliner(Options{}).Inline(context.Background(), doc)
	if report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if ref, _ := svgdoc.Href(doc.Images()[0]); ref != "img/a.png" {
		t.Fatalf("reference rewritten: %q", ref)
	}
}

func TestInlineCacheAcrossSlides(t *testing.T) {
	srv := newImageServer(t)
	in := newInliner(Options{CacheTTL: time.Minute})

	for i := 0; i < 3; i++ {
		doc := slide(t, "", `href="`+srv.URL+`/logo.png"`)
		if r := in.Inline(context.Background(), doc); r.Inlined != 1 {
			t.Fatalf("pass %d report = %+v", i, r)
		}
	}
	if got := srv.hits.Load(); got != 1 {
		t.Fatalf("server hit %d times, want 1", got)
	}
}

func TestInlineCanceledContext(t *testing.T) {
	srv := newImageServer(t)
	doc := slide(t, "", `href="`+srv.URL+`/a.png"`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := newInliner(Options{RatePerSecond: 1}).Inline(ctx, doc)
	if report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestDataURI(t *testing.T) {
	if got := DataURI("image/png", []byte("hi")); got != "data:image/png;base64,aGk=" {
		t.Fatalf("got %q", got)
	}
}

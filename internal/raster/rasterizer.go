// Package raster turns a self-contained slide into a 1920x1080 PNG.
//
// Vector content is drawn with oksvg/rasterx. oksvg has no support for
// <image>, so embedded bitmaps are composited by this package between the
// vector layers that precede and follow them, which keeps document order.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"
	"sync/atomic"
	"time"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/pwnholic/slidecap/internal"
	"github.com/pwnholic/slidecap/internal/svgdoc"
)

const (
	Width     = 1920
	Height    = 1080
	MediaType = "image/png"
)

// ErrDecode marks a slide whose markup could not be turned into a drawable.
var ErrDecode = errors.New("raster: decode failed")

// Image is an encoded raster. Treat Data as read-only.
type Image struct {
	Data   []byte
	Width  int
	Height int
}

type Option func(*Rasterizer)

// WithTimeout bounds a whole Rasterize call.
func WithTimeout(d time.Duration) Option {
	return func(r *Rasterizer) { r.timeout = d }
}

func WithLogger(l *internal.Logger) Option {
	return func(r *Rasterizer) { r.log = l }
}

type Rasterizer struct {
	timeout time.Duration
	log     *internal.Logger
	staging sync.Pool
	staged  atomic.Int64
}

func New(opts ...Option) *Rasterizer {
	r := &Rasterizer{
		staging: sync.Pool{
			New: func() any { return new(bytes.Buffer) },
		},
	}
	for _, o := range opts {
		o(r)
	}
	if r.log == nil {
		r.log = internal.GetDefaultLogger()
	}
	r.log = r.log.With("raster")
	return r
}

// Staged reports how many staging buffers are currently checked out.
func (r *Rasterizer) Staged() int64 {
	return r.staged.Load()
}

// Rasterize renders doc onto a Width x Height canvas, stretching its viewBox
// to fill the canvas on each axis independently. doc itself is not modified.
func (r *Rasterizer) Rasterize(ctx context.Context, doc *svgdoc.Document) (*Image, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("raster: %w", err)
	}

	clone := doc.Clone()
	clone.EnsureNamespaces()

	canvas := image.NewRGBA(image.Rect(0, 0, Width, Height))
	viewport, ok := viewportTransform(clone)
	if !ok {
		r.log.Warn("slide has a zero-size viewBox, rendering a blank image")
		return encode(canvas)
	}

	plan := planLayers(clone)
	if skipped := len(clone.Images()) - len(plan.images); skipped > 0 {
		r.log.Warn("%d images inside defs, patterns or symbols are not drawn", skipped)
	}
	scanner := rasterx.NewScannerGV(Width, Height, canvas, canvas.Bounds())
	dasher := rasterx.NewDasher(Width, Height, scanner)

	for i, layer := range plan.layers {
		// Without any bitmap the single layer is the whole slide and must
		// decode even when empty, so malformed markup is still reported.
		if layer.drawables > 0 || len(plan.images) == 0 {
			icon, err := r.decode(ctx, layer.doc)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDecode, err)
			}
			icon.Transform = viewport
			icon.Draw(dasher, 1.0)
		}
		if i < len(plan.images) {
			if err := drawBitmap(canvas, plan.images[i], viewport); err != nil {
				r.log.Warn("skipping embedded image: %v", err)
			}
		}
	}

	img, err := encode(canvas)
	if err != nil {
		return nil, err
	}
	r.log.Debug("rendered %d layers, %d bitmaps, %d bytes", len(plan.layers), len(plan.images), len(img.Data))
	return img, nil
}

func encode(canvas *image.RGBA) (*Image, error) {
	var out bytes.Buffer
	if err := png.Encode(&out, canvas); err != nil {
		return nil, fmt.Errorf("raster: encode png: %w", err)
	}
	return &Image{Data: out.Bytes(), Width: Width, Height: Height}, nil
}

type decoded struct {
	icon *oksvg.SvgIcon
	err  error
}

// decode serializes layer into a pooled staging buffer and parses it. The
// buffer goes back to the pool as soon as parsing ends, even when the caller
// has already given up on ctx.
func (r *Rasterizer) decode(ctx context.Context, layer *svgdoc.Document) (*oksvg.SvgIcon, error) {
	buf := r.staging.Get().(*bytes.Buffer)
	r.staged.Add(1)

	if err := layer.Render(buf); err != nil {
		r.release(buf)
		return nil, fmt.Errorf("serialize: %w", err)
	}

	done := make(chan decoded, 1)
	go func() {
		var res decoded
		func() {
			defer func() {
				if p := recover(); p != nil {
					res.err = fmt.Errorf("svg decoder panic: %v", p)
				}
			}()
			res.icon, res.err = oksvg.ReadIconStream(bytes.NewReader(buf.Bytes()), oksvg.IgnoreErrorMode)
		}()
		r.release(buf)
		done <- res
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.icon, res.err
	}
}

func (r *Rasterizer) release(buf *bytes.Buffer) {
	buf.Reset()
	r.staging.Put(buf)
	r.staged.Add(-1)
}

// viewportTransform maps the slide's user space onto the canvas. A slide
// without usable dimensions is assumed to already be in canvas units. It
// reports false for a zero-size viewBox, which has nothing to draw.
func viewportTransform(doc *svgdoc.Document) (rasterx.Matrix2D, bool) {
	vb, ok := doc.ViewBox()
	if !ok {
		vb = svgdoc.Box{W: Width, H: Height}
	}
	if vb.Empty() {
		return rasterx.Matrix2D{}, false
	}
	sx := float64(Width) / vb.W
	sy := float64(Height) / vb.H
	return rasterx.Matrix2D{A: sx, D: sy, E: -vb.X * sx, F: -vb.Y * sy}, true
}

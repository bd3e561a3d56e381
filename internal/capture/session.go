// Package capture runs capture cycles against a slide host and accumulates
// the results for download.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pwnholic/slidecap/internal"
	"github.com/pwnholic/slidecap/internal/exports"
	"github.com/pwnholic/slidecap/internal/inline"
	"github.com/pwnholic/slidecap/internal/locate"
	"github.com/pwnholic/slidecap/internal/raster"
	"github.com/pwnholic/slidecap/internal/svgdoc"
)

var (
	ErrNoSlide         = errors.New("capture: no slide found on the page")
	ErrBusy            = errors.New("capture: another operation is in progress")
	ErrNothingCaptured = errors.New("capture: no slides captured yet")
)

// Locator finds the slide currently showing. It returns locate.ErrNotFound
// (or a nil document) when there is none.
type Locator interface {
	Locate(ctx context.Context) (*svgdoc.Document, error)
}

type Inliner interface {
	Inline(ctx context.Context, doc *svgdoc.Document) inline.Report
}

type Rasterizer interface {
	Rasterize(ctx context.Context, doc *svgdoc.Document) (*raster.Image, error)
}

// Stats is a snapshot of a session.
type Stats struct {
	NextIndex int    `json:"next_index"`
	Captured  int    `json:"captured"`
	Filename  string `json:"filename"`
}

type Session struct {
	locator  Locator
	inliner  Inliner
	raster   Rasterizer
	exporter exports.Exporter
	saver    exports.Saver
	notify   Notifier
	log      *internal.Logger

	// busy is a single-slot lock shared by Capture and Finalize.
	busy chan struct{}

	mu        sync.Mutex
	nextIndex int
	captured  int
}

type Options struct {
	Locator    Locator
	Inliner    Inliner
	Rasterizer Rasterizer
	Exporter   exports.Exporter
	Saver      exports.Saver
	Notifier   Notifier
	// Logger defaults to the process logger.
	Logger *internal.Logger
}

func NewSession(opts Options) *Session {
	s := &Session{
		locator:   opts.Locator,
		inliner:   opts.Inliner,
		raster:    opts.Rasterizer,
		exporter:  opts.Exporter,
		saver:     opts.Saver,
		notify:    opts.Notifier,
		log:       opts.Logger,
		busy:      make(chan struct{}, 1),
		nextIndex: 1,
	}
	if s.log == nil {
		s.log = internal.GetDefaultLogger()
	}
	if s.notify == nil {
		s.notify = NewLogNotifier(s.log)
	}
	if s.exporter == nil {
		s.exporter = exports.NewZipArchive()
	}
	return s
}

// SlideName is the archive entry name for the i-th captured slide.
func SlideName(i int) string {
	return fmt.Sprintf("Slide_%02d.png", i)
}

func (s *Session) acquire() bool {
	select {
	case s.busy <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Session) releaseSlot() { <-s.busy }

// Capture runs one cycle: locate, inline, rasterize, store. It returns the
// entry name on success. Failures leave the session unchanged.
func (s *Session) Capture(ctx context.Context) (string, error) {
	if !s.acquire() {
		return "", ErrBusy
	}
	defer s.releaseSlot()

	name, err := s.capture(ctx)
	if err != nil {
		s.notify.CaptureFailed(err)
		return "", err
	}
	s.notify.CaptureSucceeded(name)
	return name, nil
}

func (s *Session) capture(ctx context.Context) (string, error) {
	doc, err := s.locator.Locate(ctx)
	if errors.Is(err, locate.ErrNotFound) || (err == nil && doc == nil) {
		return "", ErrNoSlide
	}
	if err != nil {
		return "", fmt.Errorf("locate slide: %w", err)
	}

	report := s.inliner.Inline(ctx, doc)
	if report.Failed > 0 {
		s.log.Warn("%d of %d images could not be embedded", report.Failed, report.Total)
	}

	img, err := s.raster.Rasterize(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("rasterize slide: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	name := SlideName(s.nextIndex)
	if err := s.exporter.Add(name, img.Data); err != nil {
		return "", fmt.Errorf("store %s: %w", name, err)
	}
	s.nextIndex++
	s.captured++
	return name, nil
}

// Finalize builds the download from every slide captured so far and hands it
// to the saver. Captured slides stay in the session, so a later Finalize
// produces a superset.
func (s *Session) Finalize(ctx context.Context) error {
	_, _, err := s.finish(ctx, true)
	return err
}

// Bundle is Finalize without the saver, for callers that deliver the bytes
// themselves.
func (s *Session) Bundle(ctx context.Context) (string, []byte, error) {
	return s.finish(ctx, false)
}

func (s *Session) finish(ctx context.Context, save bool) (string, []byte, error) {
	if !s.acquire() {
		return "", nil, ErrBusy
	}
	defer s.releaseSlot()

	filename, data, err := s.build(ctx)
	if err == nil && save && s.saver != nil {
		if serr := s.saver.Save(ctx, filename, data); serr != nil {
			err = fmt.Errorf("save %s: %w", filename, serr)
		}
	}
	if err != nil {
		s.notify.FinalizeFailed(err)
		return "", nil, err
	}
	s.notify.FinalizeSucceeded(filename, len(data))
	return filename, data, nil
}

func (s *Session) build(ctx context.Context) (string, []byte, error) {
	s.mu.Lock()
	captured := s.captured
	s.mu.Unlock()
	if captured == 0 {
		return "", nil, ErrNothingCaptured
	}

	filename := s.exporter.Filename()
	data, err := s.exporter.Bytes(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("build %s: %w", filename, err)
	}
	return filename, data, nil
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		NextIndex: s.nextIndex,
		Captured:  s.captured,
		Filename:  s.exporter.Filename(),
	}
}

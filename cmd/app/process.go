package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pwnholic/slidecap/internal"
	"github.com/pwnholic/slidecap/internal/capture"
	"github.com/pwnholic/slidecap/internal/clients"
	"github.com/pwnholic/slidecap/internal/config"
	"github.com/pwnholic/slidecap/internal/exports"
	"github.com/pwnholic/slidecap/internal/inline"
	"github.com/pwnholic/slidecap/internal/locate"
	"github.com/pwnholic/slidecap/internal/raster"
	"github.com/pwnholic/slidecap/internal/server"
)

type mode int

const (
	modeInteractive mode = iota
	modeBatch
	modeServe
)

func pickMode(cfg *config.Config, f *Flag) mode {
	switch {
	case cfg.Listen != "":
		return modeServe
	case len(cfg.Source.Files) > 0 && !f.Interactive:
		return modeBatch
	default:
		return modeInteractive
	}
}

type captureProcess struct {
	cfg     *config.Config
	session *capture.Session
	listen  string
	closers []io.Closer
	// files is set in file mode so batch runs know how many slides to take.
	files *locate.Files
}

func newCaptureProcess(ctx context.Context, cfg *config.Config) (*captureProcess, error) {
	log := internal.GetDefaultLogger()
	cp := &captureProcess{cfg: cfg, listen: cfg.Listen}

	client := clients.NewClient(&clients.HTTPClientOptions{
		RetryCount:       cfg.HTTP.RetryCount,
		RetryWaitTime:    cfg.HTTP.RetryWaitTime,
		RetryMaxWaitTime: cfg.HTTP.RetryMaxWaitTime,
		TimeOut:          cfg.HTTP.Timeout,
		UserAgent:        cfg.HTTP.UserAgent,
		MaxBodyBytes:     cfg.HTTP.MaxResourceBytes,
	})
	cp.closers = append(cp.closers, client)

	locator, err := cp.newLocator(ctx, client, log)
	if err != nil {
		cp.Close()
		return nil, err
	}

	exporter, err := exports.NewDocumentExporter(strings.ToLower(cfg.Output.Format))
	if err != nil {
		cp.Close()
		return nil, err
	}

	cp.session = capture.NewSession(capture.Options{
		Locator: locator,
		Inliner: inline.New(client, inline.Options{
			Concurrency:   cfg.Inline.Concurrency,
			RatePerSecond: cfg.Inline.RatePerSecond,
			CacheTTL:      cfg.Inline.CacheTTL,
			Logger:        log,
		}),
		Rasterizer: raster.New(raster.WithTimeout(cfg.Render.Timeout), raster.WithLogger(log)),
		Exporter:   exporter,
		Saver:      exports.DirSaver{Dir: cfg.Output.Dir, Log: log},
		Notifier:   capture.NewLogNotifier(log),
		Logger:     log.With("capture"),
	})
	return cp, nil
}

func (cp *captureProcess) newLocator(ctx context.Context, client *clients.Client, log *internal.Logger) (capture.Locator, error) {
	src := cp.cfg.Source
	switch {
	case len(src.Files) > 0:
		files, err := locate.NewFiles(src.Files, src.Selector)
		if err != nil {
			return nil, err
		}
		cp.files = files
		internal.InfoLog("Reading %d slide files", len(src.Files))
		return files, nil
	case src.Browser:
		b, err := locate.OpenBrowser(ctx, locate.BrowserOptions{
			URL:      src.URL,
			Selector: src.Selector,
			Headless: src.Headless,
			Logger:   log,
		})
		if err != nil {
			return nil, err
		}
		cp.closers = append(cp.closers, b)
		return b, nil
	default:
		internal.InfoLog("Reading slides from %s", src.URL)
		return locate.NewPage(client, src.URL, src.Selector)
	}
}

func (cp *captureProcess) Close() {
	for i := len(cp.closers) - 1; i >= 0; i-- {
		if err := cp.closers[i].Close(); err != nil {
			internal.WarningLog("close: %v", err)
		}
	}
	cp.closers = nil
}

func (cp *captureProcess) run(ctx context.Context, m mode) error {
	switch m {
	case modeBatch:
		return cp.runBatch(ctx)
	case modeServe:
		return server.New(cp.listen, cp.session, internal.GetDefaultLogger()).ListenAndServe(ctx)
	default:
		return cp.runInteractive(ctx, os.Stdin, os.Stdout)
	}
}

// runBatch captures every queued file once, then downloads.
func (cp *captureProcess) runBatch(ctx context.Context) error {
	for cp.files.Remaining() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Failures are reported by the session and do not stop the batch.
		cp.session.Capture(ctx)
	}
	st := cp.session.Stats()
	internal.InfoLog("[SUMMARY] Captured %d of %d slides", st.Captured, len(cp.cfg.Source.Files))
	return cp.session.Finalize(ctx)
}

// runInteractive reads one command per line from in until q, EOF or ctx ends.
func (cp *captureProcess) runInteractive(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(out, "c/Enter = capture, s = stop & download, ? = status, q = quit")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := cp.handleCommand(ctx, line, out); quit {
				return nil
			}
		}
	}
}

func (cp *captureProcess) handleCommand(ctx context.Context, line string, out io.Writer) (quit bool) {
	switch strings.ToLower(line) {
	case "", "c":
		cp.session.Capture(ctx)
	case "s":
		err := cp.session.Finalize(ctx)
		if errors.Is(err, capture.ErrNothingCaptured) {
			fmt.Fprintln(out, "No slides captured yet. Press c to capture the current slide.")
		}
	case "?":
		st := cp.session.Stats()
		fmt.Fprintf(out, "%d captured, next is %s, download %s\n", st.Captured, capture.SlideName(st.NextIndex), st.Filename)
	case "q":
		return true
	default:
		fmt.Fprintf(out, "unknown command %q\n", line)
	}
	return false
}

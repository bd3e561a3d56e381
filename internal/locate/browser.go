package locate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/pwnholic/slidecap/internal"
	"github.com/pwnholic/slidecap/internal/svgdoc"
)

const navigateTimeout = 30 * time.Second

// Browser drives a Chrome tab opened on the deck. The user flips slides in
// that window; every Locate reads whatever slide is showing at that moment.
type Browser struct {
	browser  *rod.Browser
	lnch     *launcher.Launcher
	page     *rod.Page
	selector string
	log      *internal.Logger
}

type BrowserOptions struct {
	URL      string
	Selector string
	Headless bool
	// Bin overrides the Chrome executable. Empty lets rod find or fetch one.
	Bin    string
	Logger *internal.Logger
}

// OpenBrowser launches Chrome, applies stealth and navigates to opts.URL.
func OpenBrowser(ctx context.Context, opts BrowserOptions) (*Browser, error) {
	if _, err := Compile(opts.Selector); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = internal.GetDefaultLogger()
	}
	log = log.With("browser")

	l := launcher.New().Headless(opts.Headless)
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	l = l.Set("disable-blink-features", "AutomationControlled")
	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	br := &Browser{browser: b, lnch: l, selector: opts.Selector, log: log}
	page, err := stealth.Page(b)
	if err != nil {
		br.Close()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	br.page = page

	navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(opts.URL); err != nil {
		br.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", opts.URL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		log.Warn("wait load on %s: %v", opts.URL, err)
	}

	log.Info("opened %s (headless=%v)", opts.URL, opts.Headless)
	return br, nil
}

func (b *Browser) Locate(ctx context.Context) (*svgdoc.Document, error) {
	page := b.page.Context(ctx)
	found, el, err := page.Has(b.selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	markup, err := el.HTML()
	if err != nil {
		return nil, fmt.Errorf("browser: read slide: %w", err)
	}

	base := ""
	if info, err := page.Info(); err == nil {
		base = info.URL
	}
	doc, err := svgdoc.Parse(strings.NewReader(markup), base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return doc, nil
}

// Close shuts the tab and Chrome down.
func (b *Browser) Close() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
	}
	return err
}

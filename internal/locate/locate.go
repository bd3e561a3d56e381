// Package locate finds the slide currently on screen in whatever hosts the
// deck: a fetched page, a list of local files, or a live browser tab.
package locate

import (
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/pwnholic/slidecap/internal/svgdoc"
)

// ErrNotFound means the host has no slide matching the selector right now.
var ErrNotFound = errors.New("locate: slide not found")

// Find returns the slide under root selected by sel. When sel matches a
// wrapper rather than the <svg> itself, the first <svg> inside it is used.
func Find(root *html.Node, sel cascadia.Selector, baseURL string) (*svgdoc.Document, error) {
	match := goquery.NewDocumentFromNode(root).FindMatcher(sel).First()
	if match.Length() == 0 {
		return nil, ErrNotFound
	}
	if goquery.NodeName(match) != "svg" {
		match = match.Find("svg").First()
		if match.Length() == 0 {
			return nil, ErrNotFound
		}
	}
	doc, err := svgdoc.New(match.Get(0), baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return doc, nil
}

// Compile parses a CSS selector, naming it in the error.
func Compile(selector string) (cascadia.Selector, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", selector, err)
	}
	return sel, nil
}

type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) (*html.Node, error)
}

// Page re-fetches a published deck page on every call. Published decks
// that keep the current slide in the URL fragment are read as served.
type Page struct {
	fetch PageFetcher
	url   string
	sel   cascadia.Selector
}

func NewPage(fetch PageFetcher, pageURL, selector string) (*Page, error) {
	sel, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	return &Page{fetch: fetch, url: pageURL, sel: sel}, nil
}

func (p *Page) Locate(ctx context.Context) (*svgdoc.Document, error) {
	root, err := p.fetch.FetchPage(ctx, p.url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", p.url, err)
	}
	return Find(root, p.sel, p.url)
}

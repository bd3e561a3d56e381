package locate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/pwnholic/slidecap/internal/svgdoc"
)

// Files hands out one local SVG or HTML file per call, in order. Once the
// queue is drained every call reports ErrNotFound.
type Files struct {
	mu    sync.Mutex
	paths []string
	sel   cascadia.Selector
	first cascadia.Selector
}

// NewFiles builds a file queue. Files where selector matches nothing, such
// as bare .svg files, fall back to their first <svg>.
func NewFiles(paths []string, selector string) (*Files, error) {
	f := &Files{paths: append([]string(nil), paths...)}
	if selector == "" {
		selector = "svg"
	}
	sel, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	f.sel = sel
	f.first = cascadia.MustCompile("svg")
	return f, nil
}

// Remaining reports how many files have not been handed out yet.
func (f *Files) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paths)
}

func (f *Files) Locate(ctx context.Context) (*svgdoc.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	if len(f.paths) == 0 {
		f.mu.Unlock()
		return nil, ErrNotFound
	}
	path := f.paths[0]
	f.paths = f.paths[1:]
	f.mu.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	defer file.Close()

	root, err := html.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	// Local files have no base, so only absolute references are fetched.
	doc, err := Find(root, f.sel, "")
	if errors.Is(err, ErrNotFound) {
		return Find(root, f.first, "")
	}
	return doc, err
}

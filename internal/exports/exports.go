package exports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pwnholic/slidecap/internal"
)

var ErrUnknownFormat = errors.New("exports: unknown format")

// Exporter accumulates named slide images and bundles them into one
// downloadable artifact. Implementations are safe for concurrent use.
type Exporter interface {
	Add(name string, data []byte) error
	Len() int
	Bytes(ctx context.Context) ([]byte, error)
	Filename() string
}

// Saver hands a finished artifact to the user.
type Saver interface {
	Save(ctx context.Context, filename string, data []byte) error
}

type SaverFunc func(ctx context.Context, filename string, data []byte) error

func (f SaverFunc) Save(ctx context.Context, filename string, data []byte) error {
	return f(ctx, filename, data)
}

// DirSaver writes artifacts into a directory, replacing earlier downloads
// of the same name.
type DirSaver struct {
	Dir string
	Log *internal.Logger
}

func (s DirSaver) Save(ctx context.Context, filename string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	dst := filepath.Join(s.Dir, filename)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if s.Log != nil {
		s.Log.Success("saved %s (%d bytes)", dst, len(data))
	}
	return nil
}

// NewDocumentExporter returns the exporter for format ("zip" or "pdf").
func NewDocumentExporter(format string) (Exporter, error) {
	switch format {
	case "", "zip":
		return NewZipArchive(), nil
	case "pdf":
		return NewPDFDeck(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

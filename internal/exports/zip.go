package exports

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const ZipFilename = "Slides_Captured.zip"

type entry struct {
	name string
	data []byte
}

// ZipArchive keeps every added image and writes them as root-level entries
// in insertion order.
type ZipArchive struct {
	mutex   sync.Mutex
	entries []entry
	created time.Time
}

func NewZipArchive() *ZipArchive {
	return &ZipArchive{created: time.Now()}
}

func (z *ZipArchive) Add(name string, data []byte) error {
	if name == "" {
		return errors.New("zip: empty entry name")
	}
	z.mutex.Lock()
	defer z.mutex.Unlock()
	z.entries = append(z.entries, entry{name: name, data: bytes.Clone(data)})
	return nil
}

func (z *ZipArchive) Len() int {
	z.mutex.Lock()
	defer z.mutex.Unlock()
	return len(z.entries)
}

func (z *ZipArchive) Filename() string { return ZipFilename }

// Bytes builds the archive from everything added so far. The archive keeps
// its entries, so later calls include earlier slides as well.
func (z *ZipArchive) Bytes(ctx context.Context) ([]byte, error) {
	z.mutex.Lock()
	entries := append([]entry(nil), z.entries...)
	z.mutex.Unlock()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := w.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   zip.Deflate,
			Modified: z.created,
		})
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", e.name, err)
		}
		if _, err := f.Write(e.data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zip: finish: %w", err)
	}
	return buf.Bytes(), nil
}

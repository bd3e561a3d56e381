package exports

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"sync"

	"github.com/signintech/gopdf"

	"github.com/pwnholic/slidecap/internal"
)

const PDFFilename = "Slides_Captured.pdf"

// px to pt at 96 dpi
const pxToPt = 72.0 / 96.0

// PDFDeck lays every captured slide on its own page, sized to the image.
type PDFDeck struct {
	mutex   sync.Mutex
	entries []entry
}

func NewPDFDeck() *PDFDeck {
	return &PDFDeck{}
}

func (p *PDFDeck) Add(name string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("pdf: %s: empty image data", name)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("pdf: %s: %w", name, err)
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.entries = append(p.entries, entry{name: name, data: bytes.Clone(data)})
	return nil
}

func (p *PDFDeck) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.entries)
}

func (p *PDFDeck) Filename() string { return PDFFilename }

func (p *PDFDeck) Bytes(ctx context.Context) ([]byte, error) {
	p.mutex.Lock()
	entries := append([]entry(nil), p.entries...)
	p.mutex.Unlock()

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{
		Unit:     gopdf.UnitPT,
		PageSize: *gopdf.PageSizeA4,
	})
	pdf.SetInfo(gopdf.PdfInfo{Title: "Captured slides", Creator: "slidecap"})

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(e.data))
		if err != nil {
			internal.WarningLog("pdf: skipping %s: %v", e.name, err)
			continue
		}
		holder, err := gopdf.ImageHolderByBytes(e.data)
		if err != nil {
			internal.WarningLog("pdf: skipping %s: %v", e.name, err)
			continue
		}

		page := &gopdf.Rect{
			W: float64(cfg.Width) * pxToPt,
			H: float64(cfg.Height) * pxToPt,
		}
		pdf.AddPageWithOption(gopdf.PageOption{PageSize: page})
		if err := pdf.ImageByHolder(holder, 0, 0, page); err != nil {
			return nil, fmt.Errorf("pdf: place %s: %w", e.name, err)
		}
	}

	out, err := pdf.GetBytesPdfReturnErr()
	if err != nil {
		return nil, fmt.Errorf("pdf: render: %w", err)
	}
	return out, nil
}

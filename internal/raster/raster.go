// Package raster expands PDF inputs into per-page raster images ahead of
// job creation. Image inputs pass through unchanged, so a failure here
// never leaves a job record behind.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/koki-187/200-sub000/internal/domain"
)

// ScaleFactor is the fixed render scale relative to the PDF's native 72
// DPI. 3x keeps small print such as registry-document text legible for the
// vision model.
const ScaleFactor = 3

const renderDPI = 72 * ScaleFactor

// File is one submission artifact flowing through the pipeline.
type File struct {
	Name string
	MIME string
	Data []byte
}

// Prepare converts every PDF in files into one PNG per page, named from
// the source filename plus a page index, and returns the full flattened
// list in submission order. A corrupt PDF aborts the whole batch with
// domain.PdfConversionError.
func Prepare(ctx context.Context, files []File) ([]File, error) {
	out := make([]File, 0, len(files))
	for _, f := range files {
		if !IsPDF(f.MIME) {
			out = append(out, f)
			continue
		}
		pages, err := renderPDF(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, pages...)
	}
	return out, nil
}

// IsPDF reports whether the MIME type names a PDF document.
func IsPDF(mime string) bool {
	return strings.EqualFold(strings.TrimSpace(mime), "application/pdf")
}

func renderPDF(ctx context.Context, f File) ([]File, error) {
	doc, err := fitz.NewFromMemory(f.Data)
	if err != nil {
		return nil, domain.PdfConversionError{File: f.Name, Err: err}
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.PdfConversionError{File: f.Name, Err: fmt.Errorf("document has no pages")}
	}

	base := strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
	pages := make([]File, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.ImageDPI(i, renderDPI)
		if err != nil {
			return nil, domain.PdfConversionError{File: f.Name, Err: fmt.Errorf("render page %d: %w", i+1, err)}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, domain.PdfConversionError{File: f.Name, Err: fmt.Errorf("encode page %d: %w", i+1, err)}
		}
		pages = append(pages, File{
			Name: fmt.Sprintf("%s-p%02d.png", base, i+1),
			MIME: "image/png",
			Data: buf.Bytes(),
		})
	}
	return pages, nil
}

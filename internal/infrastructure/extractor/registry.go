// Package extractor turns uploaded report files into plain text. The
// registry dispatches on filename extension; byte-level parsing happens in
// the format extractors and, for scanned images, an external OCR service.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

type formatExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

// Registry routes a file to the extractor registered for its extension.
type Registry struct {
	byExt map[string]formatExtractor
}

// NewRegistry builds the default dispatch table. Passing a nil ocr client
// leaves image formats unsupported.
func NewRegistry(ocr *OCRClient) *Registry {
	r := &Registry{byExt: make(map[string]formatExtractor)}
	r.register(&pdfExtractor{}, ".pdf")
	r.register(&plaintextExtractor{}, ".txt", ".md")
	r.register(&workbookExtractor{}, ".xlsx", ".xlsm")
	if ocr != nil {
		r.register(ocr, ".jpg", ".jpeg", ".png", ".tiff", ".bmp")
	}
	return r
}

func (r *Registry) register(e formatExtractor, exts ...string) {
	for _, ext := range exts {
		r.byExt[ext] = e
	}
}

// Supports reports whether the registry can handle the file at all.
func (r *Registry) Supports(filename string) bool {
	_, ok := r.byExt[normalizeExt(filename)]
	return ok
}

// Extract returns the plain text of one uploaded file. A recognized file
// that yields no text at all (a scanned PDF without a text layer, a blank
// workbook) is an error: downstream has nothing to index.
func (r *Registry) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	ext := normalizeExt(filename)
	e, ok := r.byExt[ext]
	if !ok {
		return "", domain.WrapError(domain.ErrUnsupportedFile, "extract report", fmt.Errorf("%q", ext))
	}
	if len(data) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract report", fmt.Errorf("empty file %s", filename))
	}
	text, err := e.Extract(ctx, filename, data)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("extract report: no text recovered from %s", filename)
	}
	return text, nil
}

func normalizeExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

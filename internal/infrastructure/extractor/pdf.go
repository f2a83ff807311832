package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

type pdfExtractor struct{}

// Extract pulls the embedded text layer out of a PDF. The pdf package can
// panic on malformed files, so parsing runs behind a recover.
func (e *pdfExtractor) Extract(_ context.Context, filename string, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf %s: %v", filename, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf %s: %w", filename, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", filename, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", filename, err)
	}
	return buf.String(), nil
}

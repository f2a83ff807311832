package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

type workbookExtractor struct{}

// Extract flattens every sheet row by row. Lab panels and medication
// schedules arrive as workbooks alongside narrative discharge summaries.
func (e *workbookExtractor) Extract(_ context.Context, filename string, data []byte) (string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open workbook %s: %w", filename, err)
	}
	defer book.Close()

	var sb strings.Builder
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q of %s: %w", sheet, filename, err)
		}
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " "))
			if line != "" {
				sb.WriteString(line)
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String(), nil
}

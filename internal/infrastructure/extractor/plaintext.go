package extractor

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

type plaintextExtractor struct{}

func (e *plaintextExtractor) Extract(_ context.Context, filename string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("read %s: not valid UTF-8 text", filename)
	}
	return strings.TrimSpace(string(data)), nil
}

package chunking

import "strings"

// Splitter normalizes extracted report text and cuts it into fixed-size
// rune windows with overlap. Fragments shorter than MinChunkChars after
// trimming are discarded, so chunk indices downstream stay contiguous over
// the surviving chunks only.
type Splitter struct {
	ChunkSize     int
	Overlap       int
	MinChunkChars int
}

func NewSplitter(chunkSize, overlap, minChunkChars int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	if minChunkChars < 0 {
		minChunkChars = 0
	}
	return &Splitter{
		ChunkSize:     chunkSize,
		Overlap:       overlap,
		MinChunkChars: minChunkChars,
	}
}

// Normalize collapses all whitespace runs to single spaces and trims the
// ends. OCR output in particular arrives with erratic spacing and line
// breaks that would otherwise skew window boundaries.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(Normalize(text))
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if len([]rune(chunk)) >= s.MinChunkChars && chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

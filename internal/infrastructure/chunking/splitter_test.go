package chunking

import (
	"strings"
	"testing"
)

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	got := Normalize("  Patient \n\n stable.\tNo   deficits. ")
	if got != "Patient stable. No deficits." {
		t.Fatalf("Normalize() = %q", got)
	}
}

func TestSplitWindowsOverlap(t *testing.T) {
	s := NewSplitter(10, 4, 0)
	chunks := s.Split("abcdefghijklmnopqrst")
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != "abcdefghij" || chunks[1] != "ghijklmnop" || chunks[2] != "mnopqrst" {
		t.Fatalf("unexpected windows: %v", chunks)
	}
}

func TestSplitDropsShortFragments(t *testing.T) {
	s := NewSplitter(10, 0, 6)
	chunks := s.Split("abcdefghijklm")
	if len(chunks) != 1 {
		t.Fatalf("expected trailing fragment dropped, got %v", chunks)
	}
	if chunks[0] != "abcdefghij" {
		t.Fatalf("unexpected chunk: %q", chunks[0])
	}
}

func TestSplitDeterministic(t *testing.T) {
	s := NewSplitter(500, 50, 50)
	text := strings.Repeat("neurological follow up after discharge. ", 40)
	first := s.Split(text)
	second := s.Split(text)
	if len(first) == 0 {
		t.Fatalf("expected chunks")
	}
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestNewSplitterGuardsOverlap(t *testing.T) {
	s := NewSplitter(100, 100, 0)
	if s.Overlap != 25 {
		t.Fatalf("expected overlap fallback 25, got %d", s.Overlap)
	}
	if got := NewSplitter(0, 0, 0).ChunkSize; got != 500 {
		t.Fatalf("expected default chunk size 500, got %d", got)
	}
}

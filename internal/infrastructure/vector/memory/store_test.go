package memory

import (
	"context"
	"testing"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

func TestPartitionsAreIsolated(t *testing.T) {
	store := New()
	ctx := context.Background()

	sharedChunk := []domain.DocumentChunk{{Text: "general guidance", SourceFile: "guide.md", ChunkIndex: 0}}
	patientChunk := []domain.DocumentChunk{{Text: "patient report", SourceFile: "report.pdf", ChunkIndex: 0}}
	if err := store.AppendChunks(ctx, "shared", sharedChunk, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("AppendChunks(shared) error = %v", err)
	}
	if err := store.AppendChunks(ctx, "patient_p1", patientChunk, [][]float32{{0, 1}}); err != nil {
		t.Fatalf("AppendChunks(patient_p1) error = %v", err)
	}

	hits, err := store.Search(ctx, "patient_p1", []float32{0, 1}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].SourceFile != "report.pdf" || hits[0].OwnerPartition != "patient_p1" {
		t.Fatalf("leaked chunk from another partition: %+v", hits[0])
	}
}

func TestAppendOverwritesSameChunkCoordinates(t *testing.T) {
	store := New()
	ctx := context.Background()

	first := []domain.DocumentChunk{{Text: "old text", SourceFile: "report.pdf", ChunkIndex: 3}}
	second := []domain.DocumentChunk{{Text: "new text", SourceFile: "report.pdf", ChunkIndex: 3}}
	if err := store.AppendChunks(ctx, "patient_p1", first, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("AppendChunks() error = %v", err)
	}
	if err := store.AppendChunks(ctx, "patient_p1", second, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("AppendChunks() error = %v", err)
	}

	hits, err := store.Search(ctx, "patient_p1", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected overwrite, got %d hits", len(hits))
	}
	if hits[0].Text != "new text" {
		t.Fatalf("expected latest text, got %q", hits[0].Text)
	}
}

func TestSearchOrdersByScore(t *testing.T) {
	store := New()
	ctx := context.Background()

	chunks := []domain.DocumentChunk{
		{Text: "close match", SourceFile: "a.md", ChunkIndex: 0},
		{Text: "far match", SourceFile: "b.md", ChunkIndex: 0},
	}
	vectors := [][]float32{{1, 0}, {0, 1}}
	if err := store.AppendChunks(ctx, "shared", chunks, vectors); err != nil {
		t.Fatalf("AppendChunks() error = %v", err)
	}

	hits, err := store.Search(ctx, "shared", []float32{1, 0.1}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].Text != "close match" {
		t.Fatalf("expected closest chunk first, got %+v", hits)
	}
}

func TestSearchUnknownPartition(t *testing.T) {
	store := New()
	_, err := store.Search(context.Background(), "patient_ghost", []float32{1}, 3)
	if !domain.IsKind(err, domain.ErrPartitionNotFound) {
		t.Fatalf("expected partition-not-found, got %v", err)
	}
}

// Package memory is an in-process partition store with cosine scoring.
// It backs local development and tests where no Qdrant is running; the
// partition semantics match the Qdrant store, including the missing
// partition error.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

type record struct {
	chunk  domain.DocumentChunk
	vector []float32
}

type Store struct {
	mu         sync.RWMutex
	partitions map[string]map[string]record
	sizes      map[string]int
}

func New() *Store {
	return &Store{
		partitions: make(map[string]map[string]record),
		sizes:      make(map[string]int),
	}
}

func (s *Store) EnsurePartition(_ context.Context, partition string, vectorSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if size, ok := s.sizes[partition]; ok {
		if size != vectorSize {
			return fmt.Errorf("partition %s holds %d-dim vectors, got %d", partition, size, vectorSize)
		}
		return nil
	}
	s.partitions[partition] = make(map[string]record)
	s.sizes[partition] = vectorSize
	return nil
}

func (s *Store) AppendChunks(ctx context.Context, partition string, chunks []domain.DocumentChunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if err := s.EnsurePartition(ctx, partition, len(vectors[0])); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	points := s.partitions[partition]
	for i, chunk := range chunks {
		chunk.OwnerPartition = partition
		key := chunk.SourceFile + "#" + strconv.Itoa(chunk.ChunkIndex)
		points[key] = record{chunk: chunk, vector: vectors[i]}
	}
	return nil
}

func (s *Store) Search(_ context.Context, partition string, queryVector []float32, limit int) ([]domain.RetrievedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points, ok := s.partitions[partition]
	if !ok {
		return nil, domain.WrapError(domain.ErrPartitionNotFound, "memory search", fmt.Errorf("partition %s", partition))
	}

	out := make([]domain.RetrievedChunk, 0, len(points))
	for _, p := range points {
		out = append(out, domain.RetrievedChunk{
			Text:           p.chunk.Text,
			SourceFile:     p.chunk.SourceFile,
			ChunkIndex:     p.chunk.ChunkIndex,
			OwnerPartition: p.chunk.OwnerPartition,
			Score:          cosine(queryVector, p.vector),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeletePartition(_ context.Context, partition string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.partitions, partition)
	delete(s.sizes, partition)
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

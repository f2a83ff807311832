// Package qdrant implements the partition store over the Qdrant HTTP API.
// Each partition maps to one collection, so patient isolation is enforced
// by the store itself rather than by query filters.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

type Store struct {
	baseURL    string
	httpClient *http.Client

	ensureMu sync.Mutex
	ensured  map[string]int
}

func New(baseURL string, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Store{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		ensured:    make(map[string]int),
	}
}

// pointID derives a stable UUID from the chunk coordinates, so re-ingesting
// the same file upserts instead of duplicating points.
func pointID(partition, sourceFile string, chunkIndex int) string {
	key := fmt.Sprintf("neuromonitor://%s/%s#%d", partition, sourceFile, chunkIndex)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func (s *Store) EnsurePartition(ctx context.Context, partition string, vectorSize int) error {
	s.ensureMu.Lock()
	if size, ok := s.ensured[partition]; ok && size == vectorSize {
		s.ensureMu.Unlock()
		return nil
	}
	s.ensureMu.Unlock()

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", s.baseURL, partition)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return wrapUnavailable("qdrant ensure partition", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 when the collection already exists.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		return statusError("qdrant ensure partition", resp)
	}

	s.ensureMu.Lock()
	s.ensured[partition] = vectorSize
	s.ensureMu.Unlock()
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

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, point{
			ID:     pointID(partition, chunk.SourceFile, chunk.ChunkIndex),
			Vector: vectors[i],
			Payload: map[string]any{
				"text":            chunk.Text,
				"source_file":     chunk.SourceFile,
				"chunk_index":     chunk.ChunkIndex,
				"owner_partition": partition,
				"indexed_at":      chunk.IndexedAt.UTC().Format(time.RFC3339),
			},
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", s.baseURL, partition)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return wrapUnavailable("qdrant upsert", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError("qdrant upsert", resp)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, partition string, queryVector []float32, limit int) ([]domain.RetrievedChunk, error) {
	body, err := json.Marshal(map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", s.baseURL, partition)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, wrapUnavailable("qdrant search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.WrapError(domain.ErrPartitionNotFound, "qdrant search", fmt.Errorf("collection %s", partition))
	}
	if resp.StatusCode >= 300 {
		return nil, statusError("qdrant search", resp)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.RetrievedChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.RetrievedChunk{
			Text:           getStringPayload(r.Payload, "text"),
			SourceFile:     getStringPayload(r.Payload, "source_file"),
			ChunkIndex:     getIntPayload(r.Payload, "chunk_index"),
			OwnerPartition: getStringPayload(r.Payload, "owner_partition"),
			Score:          r.Score,
		})
	}
	return out, nil
}

// DeletePartition drops a collection. Used by the loader to rebuild the
// shared library from scratch; absent collections are not an error.
func (s *Store) DeletePartition(ctx context.Context, partition string) error {
	url := fmt.Sprintf("%s/collections/%s", s.baseURL, partition)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("create delete collection request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return wrapUnavailable("qdrant delete partition", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return statusError("qdrant delete partition", resp)
	}

	s.ensureMu.Lock()
	delete(s.ensured, partition)
	s.ensureMu.Unlock()
	return nil
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	var err error
	if msg != "" {
		err = fmt.Errorf("%s status: %s: %s", operation, resp.Status, msg)
	} else {
		err = fmt.Errorf("%s status: %s", operation, resp.Status)
	}
	if resp.StatusCode >= 500 {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func wrapUnavailable(operation string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}

// Package ollama adapts the local Ollama embedding model.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/neurowatch/neuromonitor/internal/infrastructure/resilience"
)

type Embedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewEmbedder(baseURL, model string, timeout time.Duration, executor *resilience.Executor) *Embedder {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Embedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

// Embed returns one vector per input text. A response with a different
// vector count is rejected so no partial embedding ever reaches the store.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.model,
		"input": texts,
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}

	call := func(ctx context.Context) error {
		return e.postJSON(ctx, "/api/embed", request, &response, "embed")
	}
	var err error
	if e.executor != nil {
		err = e.executor.Do(ctx, "ollama_embed", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("ollama embed", err)
	}

	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("ollama embed: empty result for query")
	}
	return vectors[0], nil
}

// Package groq adapts the Groq chat-completions API for answer generation,
// question generation and risk triage. All calls run through the shared
// resilience executor; JSON-mode responses are validated strictly and
// callers fall back to deterministic behavior when validation fails.
package groq

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/neurowatch/neuromonitor/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, apiKey, model string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionOptions struct {
	temperature float64
	maxTokens   int
	jsonMode    bool
}

func (c *Client) complete(ctx context.Context, operation string, msgs []message, opts completionOptions) (string, error) {
	request := map[string]any{
		"model":       c.model,
		"messages":    msgs,
		"temperature": opts.temperature,
		"max_tokens":  opts.maxTokens,
	}
	if opts.jsonMode {
		request["response_format"] = map[string]string{"type": "json_object"}
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/chat/completions", request, &response, operation)
	}
	var err error
	if c.executor != nil {
		err = c.executor.Do(ctx, "groq_"+operation, call, classifyGroqError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("groq "+operation, err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("groq %s: response has no choices", operation)
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// extractJSONObject slices the first balanced-looking object out of a model
// response, tolerating markdown fences and prose around it.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

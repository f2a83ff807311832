package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
	"github.com/neurowatch/neuromonitor/internal/infrastructure/resilience"
)

// OCRClient reads scanned report images through the external OCR service.
// The service is a black box behind one JSON call:
// POST /v1/ocr {"filename","image"} -> {"text"}.
type OCRClient struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewOCRClient(baseURL string, timeout time.Duration, executor *resilience.Executor) *OCRClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OCRClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type ocrRequest struct {
	Filename string `json:"filename"`
	Image    string `json:"image"`
}

type ocrResponse struct {
	Text string `json:"text"`
}

func (c *OCRClient) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	payload := ocrRequest{
		Filename: filename,
		Image:    base64.StdEncoding.EncodeToString(data),
	}
	var out ocrResponse
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/ocr", payload, &out)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Do(ctx, "ocr_extract", call, classifyOCRError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if classifyOCRError(err).Retryable || resilience.IsCircuitOpen(err) {
			return "", domain.WrapError(domain.ErrTemporary, "ocr extract", err)
		}
		return "", err
	}
	return out.Text, nil
}

func (c *OCRClient) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal ocr request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &ocrStatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(detail))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode ocr response: %w", err)
	}
	return nil
}

type ocrStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ocrStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ocr status: %s", e.Status)
	}
	return fmt.Sprintf("ocr status: %s: %s", e.Status, e.Body)
}

func classifyOCRError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	var statusErr *ocrStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

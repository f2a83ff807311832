// Package resilience wraps outbound service calls with bounded retries and
// per-operation circuit breakers.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrorClassification tells the executor how to treat one failure.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// Executor retries retryable failures with exponential backoff and guards
// each named operation with its own circuit breaker. One executor is shared
// by all outbound clients so breaker state survives across requests.
type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.withDefaults(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Do runs fn under the operation's breaker, retrying failures the classifier
// marks retryable. The classifier also decides which failures count against
// the breaker.
func (e *Executor) Do(ctx context.Context, operation string, fn func(context.Context) error, classify ErrorClassifier) error {
	if fn == nil {
		return fmt.Errorf("resilience: nil callback for %q", operation)
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unnamed"
	}
	if classify == nil {
		classify = func(error) ErrorClassification {
			return ErrorClassification{RecordFailure: true}
		}
	}

	if !e.cfg.Breaker.Enabled {
		return e.retry(ctx, op, fn, classify)
	}
	_, err := e.breaker(op, classify).Execute(func() (any, error) {
		return nil, e.retry(ctx, op, fn, classify)
	})
	return err
}

func (e *Executor) retry(ctx context.Context, operation string, fn func(context.Context) error, classify ErrorClassifier) error {
	backoff := e.cfg.Retry.InitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= e.cfg.Retry.MaxAttempts || !classify(err).Retryable {
			return err
		}

		slog.Warn("outbound_retry",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", e.cfg.Retry.MaxAttempts,
			"backoff", backoff.String(),
			"error", err,
		)
		if !sleepCtx(ctx, backoff) {
			return err
		}

		backoff = time.Duration(float64(backoff) * e.cfg.Retry.Multiplier)
		if backoff > e.cfg.Retry.MaxBackoff {
			backoff = e.cfg.Retry.MaxBackoff
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Executor) breaker(operation string, classify ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if b, ok := e.breakers[operation]; ok {
		return b
	}

	cfg := e.cfg.Breaker
	b := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        operation,
		MaxRequests: cfg.HalfOpenMaxCalls,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[operation] = b
	return b
}

// IsCircuitOpen reports whether err came from an open or saturated breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

package httpadapter

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// backpressureWait bounds how long a request may queue for a slot before the
// server sheds it.
const backpressureWait = 100 * time.Millisecond

func rateLimitMiddleware(next http.Handler, limiter *rate.Limiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			w.Header().Set("Retry-After", retryAfterSeconds(limiter.Limit()))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded, retry later"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(limit rate.Limit) string {
	if limit <= 0 {
		return "1"
	}
	seconds := int(math.Ceil(1 / float64(limit)))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

// backpressureMiddleware admits at most maxConcurrent requests at a time.
// A request that cannot get a slot within wait is rejected with 503 so load
// spikes degrade into fast failures instead of piled-up goroutines.
func backpressureMiddleware(next http.Handler, maxConcurrent int, wait time.Duration) http.Handler {
	if maxConcurrent <= 0 {
		return next
	}
	slots := make(chan struct{}, maxConcurrent)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
			next.ServeHTTP(w, r)
		case <-timer.C:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server is overloaded, retry later"})
		case <-r.Context().Done():
			// Client gave up while queued.
		}
	})
}

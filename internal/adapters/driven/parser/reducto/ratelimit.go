package reducto

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles requests proactively with a token bucket and
// backs off after the API reports a rate limit.
type RateLimiter struct {
	mu      sync.Mutex
	bucket  *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a limiter allowing perSecond requests with a
// burst of one. A non-positive rate disables proactive throttling.
func NewRateLimiter(perSecond float64) *RateLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &RateLimiter{bucket: rate.NewLimiter(limit, 1)}
}

// Wait blocks until a request may be sent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return r.bucket.Wait(ctx)
}

// Backoff holds every caller until d has passed.
func (r *RateLimiter) Backoff(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if at := time.Now().Add(d); at.After(r.retryAt) {
		r.retryAt = at
	}
}

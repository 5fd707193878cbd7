package crawler

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimiter throttles outbound fetches with a token bucket so a crawl
// stays polite toward the target site.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows rps requests per second with the given burst.
// A non-positive rps disables throttling.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a token is available or the context ends.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

var _ Limiter = (*RateLimiter)(nil)

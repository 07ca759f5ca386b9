package notifier

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter spaces webhook posts to stay under a channel's published limit.
// Slack allows about one message per second per webhook; Discord 30 per minute.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows burst posts at once, refilled at requestsPerSecond.
// A non-positive rate disables limiting.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, max(burst, 1))}
}

// Allow blocks until a post may go out or ctx is done.
func (r *RateLimiter) Allow(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

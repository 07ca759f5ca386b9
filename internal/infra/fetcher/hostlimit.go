package fetcher

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// hostLimiter hands out one token bucket per host so feeds sharing a publisher's
// server are spaced out even when they are fetched concurrently.
type hostLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newHostLimiter(rps float64, burst int) *hostLimiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &hostLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (h *hostLimiter) Wait(ctx context.Context, host string) error {
	if h.limit == rate.Inf {
		return nil
	}
	h.mu.Lock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.limit, h.burst)
		h.limiters[host] = l
	}
	h.mu.Unlock()
	return l.Wait(ctx)
}

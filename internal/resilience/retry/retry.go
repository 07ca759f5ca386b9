// Package retry re-runs calls to flaky upstreams (embedding and summarization
// providers) with capped exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"syscall"
	"time"
)

// ErrExhausted is wrapped by the error returned once every attempt has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Config is a backoff policy.
type Config struct {
	// Name labels log lines, e.g. "embedding".
	Name string

	// MaxAttempts counts the first call.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// JitterFraction in [0,1] is the share of each delay added at random.
	JitterFraction float64
}

// SummarizerConfig is the policy for summary generation. Calls are billed,
// so attempts stay few and spaced out.
func SummarizerConfig() Config {
	return Config{
		Name:           "summarizer",
		MaxAttempts:    3,
		InitialDelay:   2 * time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// EmbeddingConfig is the policy for embedding calls made while clustering.
// It gives up quickly; the engine falls back to lexical matching.
func EmbeddingConfig() Config {
	return Config{
		Name:           "embedding",
		MaxAttempts:    2,
		InitialDelay:   250 * time.Millisecond,
		MaxDelay:       time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// Delay returns the wait before retry number n (1-based), without jitter.
func (c Config) Delay(n int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 1; i < n; i++ {
		d *= c.Multiplier
		if c.MaxDelay > 0 && d >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
	}
	if c.MaxDelay > 0 && time.Duration(d) > c.MaxDelay {
		return c.MaxDelay
	}
	return time.Duration(d)
}

// WithBackoff calls fn until it succeeds, returns an error IsRetryable rejects,
// runs out of attempts or ctx ends.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	attempts := max(cfg.MaxAttempts, 1)
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				slog.Debug("retry succeeded",
					slog.String("operation", cfg.Name),
					slog.Int("attempt", attempt))
			}
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt >= attempts {
			return fmt.Errorf("%s: %w after %d attempts: %w", cfg.Name, ErrExhausted, attempts, err)
		}

		wait := jitter(cfg.Delay(attempt), cfg.JitterFraction)
		slog.Warn("transient failure, backing off",
			slog.String("operation", cfg.Name),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: retry aborted: %w", cfg.Name, ctx.Err())
		}
	}
}

// Do is WithBackoff for calls that return a value.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var out T
	err := WithBackoff(ctx, cfg, func() error {
		v, err := fn()
		if err == nil {
			out = v
		}
		return err
	})
	return out, err
}

// IsRetryable reports whether err looks transient. Errors may decide for
// themselves by implementing Retryable() bool.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var self interface{ Retryable() bool }
	if errors.As(err, &self) {
		return self.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT, syscall.ENETUNREACH} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// HTTPError is an upstream answer with a non-success status.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Retryable is true for 5xx, 429 and 408.
func (e *HTTPError) Retryable() bool {
	switch {
	case e.StatusCode >= 500 && e.StatusCode < 600:
		return true
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	}
	return false
}

func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || d <= 0 {
		return d
	}
	fraction = min(fraction, 1.0)
	// #nosec G404 -- jitter does not need cryptographic randomness.
	return d + time.Duration(rand.Float64()*float64(d)*fraction)
}

package summarizer

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCircuitOpen is returned while the provider circuit breaker rejects calls.
	ErrCircuitOpen = errors.New("summarizer unavailable: circuit breaker open")
	// ErrEmptyResponse is returned when the provider answered without text.
	ErrEmptyResponse = errors.New("summarizer returned empty response")
)

// apiError carries the provider HTTP status so the retry layer can tell
// transient failures from permanent ones.
type apiError struct {
	provider string
	status   int
	err      error
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %v", e.provider, e.status, e.err)
}

func (e *apiError) Unwrap() error { return e.err }

// Retryable reports whether the status is worth another attempt.
func (e *apiError) Retryable() bool {
	return e.status >= 500 ||
		e.status == http.StatusTooManyRequests ||
		e.status == http.StatusRequestTimeout
}

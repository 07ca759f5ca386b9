package cluster

import "errors"

var (
	// ErrConflictRetriesExhausted is returned when a story kept changing under the
	// engine for MaxConflictRetries attempts. The article stays unprocessed.
	ErrConflictRetriesExhausted = errors.New("story update conflict retries exhausted")
)

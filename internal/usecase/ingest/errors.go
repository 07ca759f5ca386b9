package ingest

import "errors"

var (
	// ErrStoreUnavailable aborts a cycle when the document store fails its health check.
	ErrStoreUnavailable = errors.New("document store unavailable")
)

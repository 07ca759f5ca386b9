// Package fetcher retrieves news feeds with conditional HTTP requests.
package fetcher

import "errors"

// Sentinel errors for feed fetching.
var (
	// ErrInvalidURL indicates that the feed URL is malformed or uses a disallowed scheme.
	ErrInvalidURL = errors.New("invalid feed URL")

	// ErrPrivateIP indicates that the feed host resolves to a private or loopback address.
	ErrPrivateIP = errors.New("feed URL resolves to a private address")

	// ErrTooManyRedirects indicates that the redirect limit was exceeded.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrBodyTooLarge indicates that the response body exceeded MaxBodySize.
	ErrBodyTooLarge = errors.New("feed body too large")

	// ErrTimeout indicates that the request exceeded its deadline.
	ErrTimeout = errors.New("feed request timed out")

	// ErrUnparseable indicates that neither the feed nor any of its entries could be parsed.
	ErrUnparseable = errors.New("feed could not be parsed")
)

package entity

import (
	"fmt"
	"net/url"
)

// maxURLLength defines the maximum allowed length for feed and article URLs.
const maxURLLength = 2048

// ValidateFeedURL validates the format of a feed URL.
// It checks that the URL is well-formed, uses HTTP/HTTPS scheme, and has a host.
// Network-level checks (private address blocking) happen in the fetcher at request time.
func ValidateFeedURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "url", Message: "URL is required"}
	}

	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Field: "url", Message: fmt.Sprintf("parse URL: %v", err)}
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Field: "url", Message: "URL must use http or https scheme"}
	}

	if parsedURL.Host == "" {
		return &ValidationError{Field: "url", Message: "URL must have a valid host"}
	}

	return nil
}

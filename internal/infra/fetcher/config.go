package fetcher

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the configuration of the conditional feed fetcher.
//
// Security settings:
//   - DenyPrivateIPs: blocks feeds (and redirect targets) resolving to private addresses
//   - MaxBodySize: caps how much of a response is read
//   - MaxRedirects: bounds redirect chains
//
// Politeness settings:
//   - HostRequestsPerSecond / HostBurst: per-host token bucket shared by all feeds on a host
type Config struct {
	// Timeout is the hard cap for a single HTTP exchange, including reading the body.
	// Default: 30s
	Timeout time.Duration

	// MaxBodySize is the maximum HTTP response body size in bytes.
	// Default: 10485760 (10MB)
	MaxBodySize int64

	// MaxRedirects is the maximum number of HTTP redirects to follow.
	// Default: 5
	MaxRedirects int

	// DenyPrivateIPs controls whether to block feeds on private addresses.
	// Default: true
	DenyPrivateIPs bool

	// UserAgent is sent with every request.
	UserAgent string

	// HostRequestsPerSecond limits requests per host. Zero or negative disables the limit.
	// Default: 2
	HostRequestsPerSecond float64

	// HostBurst is the token bucket size of the per-host limiter.
	// Default: 4
	HostBurst int
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:               30 * time.Second,
		MaxBodySize:           10 * 1024 * 1024,
		MaxRedirects:          5,
		DenyPrivateIPs:        true,
		UserAgent:             "StorywireBot/1.0 (+https://storywire.example/bot)",
		HostRequestsPerSecond: 2,
		HostBurst:             4,
	}
}

// Validate checks if the configuration values are valid and safe.
//
// Validation rules:
//   - Timeout: > 0
//   - MaxBodySize: 1KB-100MB
//   - MaxRedirects: 0-10
//   - HostBurst: >= 1 when a host rate is set
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}

	minBodySize := int64(1024)
	maxBodySize := int64(100 * 1024 * 1024)
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize)
	}

	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}

	if c.HostRequestsPerSecond > 0 && c.HostBurst < 1 {
		return fmt.Errorf("host burst must be at least 1 when a host rate is set, got %d", c.HostBurst)
	}

	return nil
}

// LoadConfigFromEnv loads configuration from environment variables.
// Unset variables keep their defaults; malformed ones are reported.
//
// Environment variables:
//   - FEED_FETCH_TIMEOUT: duration string, e.g., "30s"
//   - FEED_FETCH_MAX_BODY_SIZE: integer in bytes
//   - FEED_FETCH_MAX_REDIRECTS: integer
//   - FEED_FETCH_DENY_PRIVATE_IPS: "true" or "false"
//   - FEED_FETCH_USER_AGENT: string
//   - FEED_FETCH_HOST_RPS: float
//   - FEED_FETCH_HOST_BURST: integer
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if val := os.Getenv("FEED_FETCH_TIMEOUT"); val != "" {
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid FEED_FETCH_TIMEOUT: %v (expected format: '30s', '1m')", err)
		}
		cfg.Timeout = parsed
	}

	if val := os.Getenv("FEED_FETCH_MAX_BODY_SIZE"); val != "" {
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid FEED_FETCH_MAX_BODY_SIZE: %v", err)
		}
		cfg.MaxBodySize = parsed
	}

	if val := os.Getenv("FEED_FETCH_MAX_REDIRECTS"); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid FEED_FETCH_MAX_REDIRECTS: %v", err)
		}
		cfg.MaxRedirects = parsed
	}

	if val := os.Getenv("FEED_FETCH_DENY_PRIVATE_IPS"); val != "" {
		cfg.DenyPrivateIPs = val == "true"
	}

	if val := os.Getenv("FEED_FETCH_USER_AGENT"); val != "" {
		cfg.UserAgent = val
	}

	if val := os.Getenv("FEED_FETCH_HOST_RPS"); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid FEED_FETCH_HOST_RPS: %v", err)
		}
		cfg.HostRequestsPerSecond = parsed
	}

	if val := os.Getenv("FEED_FETCH_HOST_BURST"); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid FEED_FETCH_HOST_BURST: %v", err)
		}
		cfg.HostBurst = parsed
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

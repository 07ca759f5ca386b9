package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"storywire/internal/domain/entity"
	"storywire/internal/observability/metrics"
	"storywire/internal/resilience/circuitbreaker"
)

// WebhookConfig configures one webhook channel.
type WebhookConfig struct {
	// Enabled indicates whether the channel is enabled
	Enabled bool

	// WebhookURL is the incoming webhook URL (includes authentication token)
	WebhookURL string

	// Timeout is the HTTP request timeout for one delivery attempt
	Timeout time.Duration

	// MaxAttempts bounds delivery attempts per notification. Default 2.
	MaxAttempts int

	// RetryBaseDelay is the backoff unit between attempts. Default 5s.
	RetryBaseDelay time.Duration
}

func (c WebhookConfig) withDefaults() WebhookConfig {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 2
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 5 * time.Second
	}
	return c
}

// RateLimitError represents a 429 rate limit error from a webhook service.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// ClientError represents a 4xx client error from a webhook service.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// ServerError represents a 5xx server error from a webhook service.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// ErrCircuitOpen is returned while a channel's circuit breaker rejects deliveries.
var ErrCircuitOpen = errors.New("webhook unavailable: circuit breaker open")

// isRetryableError reports whether a failed delivery is worth another attempt.
// Client errors and an open circuit are final; rate limits are handled separately.
func isRetryableError(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// truncate cuts text to maxLength bytes on a rune boundary, appending suffix
// when it had to cut.
func truncate(text string, maxLength int, suffix string) string {
	if len(text) <= maxLength {
		return text
	}
	cut := max(maxLength-len(suffix), 0)
	for cut > 0 && !utf8RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + suffix
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }

// sourceNames lists the distinct sources of a story in arrival order.
func sourceNames(story *entity.Story) string {
	names := make([]string, 0, len(story.SourceArticles))
	for _, sa := range story.SourceArticles {
		names = append(names, sa.Source)
	}
	return strings.Join(names, ", ")
}

// breakingAt is the time a story became BREAKING, falling back to LastUpdated.
func breakingAt(story *entity.Story) time.Time {
	if story.BreakingDetectedAt != nil {
		return *story.BreakingDetectedAt
	}
	return story.LastUpdated
}

// extractRetryAfter reads the wait time from a JSON retry_after field (seconds)
// or the Retry-After header. It defaults to 5 seconds.
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var payload struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.RetryAfter > 0 {
		return time.Duration(payload.RetryAfter * float64(time.Second))
	}
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 5 * time.Second
}

// webhook posts JSON payloads for one channel with rate limiting, a circuit
// breaker and bounded retries.
type webhook struct {
	channel     string
	config      WebhookConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.CircuitBreaker
}

func newWebhook(channel string, cfg WebhookConfig, requestsPerSecond float64, burst int) *webhook {
	cfg = cfg.withDefaults()
	return &webhook{
		channel:     channel,
		config:      cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: NewRateLimiter(requestsPerSecond, burst),
		breaker:     circuitbreaker.New(circuitbreaker.WebhookConfig(channel + "-webhook")),
	}
}

// post sends payload once and classifies the response.
//
// Error types:
//   - 429: *RateLimitError with the wait time
//   - 4xx (non-429): *ClientError (non-retryable)
//   - 5xx: *ServerError (retryable)
//   - Network error: wrapped transport error (retryable)
func (w *webhook) post(ctx context.Context, payload any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Message:    w.channel + " rate limit exceeded",
			RetryAfter: extractRetryAfter(resp, body),
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s webhook client error: %s", w.channel, string(body)),
		}
	case resp.StatusCode >= 500:
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s webhook server error: %s", w.channel, string(body)),
		}
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

// postThroughBreaker runs post inside the circuit breaker. Rate limits do not
// count as breaker failures.
func (w *webhook) postThroughBreaker(ctx context.Context, payload any) error {
	var rateErr *RateLimitError
	_, err := w.breaker.Execute(func() (interface{}, error) {
		err := w.post(ctx, payload)
		if errors.As(err, &rateErr) {
			return nil, nil
		}
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	if err == nil && rateErr != nil {
		return rateErr
	}
	return err
}

// deliver rate-limits, then posts with retries. All attempts are logged with
// a request id for tracing.
//
// Retry strategy:
//   - 429 errors: wait retry_after, then try again
//   - Server and network errors: linear backoff (RetryBaseDelay × attempt)
//   - Client errors and an open circuit: no retry
func (w *webhook) deliver(ctx context.Context, story *entity.Story, payload any) error {
	requestID := uuid.New().String()
	log := slog.With(
		slog.String("request_id", requestID),
		slog.String("channel", w.channel),
		slog.String("story_id", story.ID))

	log.InfoContext(ctx, "Starting breaking notification",
		slog.Int("verification_level", story.VerificationLevel))

	if err := w.rateLimiter.Allow(ctx); err != nil {
		log.ErrorContext(ctx, "Rate limiter error", slog.Any("error", err))
		metrics.RecordBreakingNotification(w.channel, false)
		return fmt.Errorf("rate limiter error: %w", err)
	}

	maxAttempts := w.config.MaxAttempts
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := w.postThroughBreaker(ctx, payload)
		if err == nil {
			log.InfoContext(ctx, "Breaking notification delivered", slog.Int("attempt", attempt))
			metrics.RecordBreakingNotification(w.channel, true)
			return nil
		}
		lastErr = err

		var delay time.Duration
		var rateErr *RateLimitError
		switch {
		case errors.As(err, &rateErr):
			delay = rateErr.RetryAfter
			log.WarnContext(ctx, "Webhook rate limit hit, backing off",
				slog.Duration("retry_after", delay),
				slog.Int("attempt", attempt))
		case !isRetryableError(err):
			log.ErrorContext(ctx, "Breaking notification failed with non-retryable error",
				slog.Any("error", err),
				slog.Int("attempt", attempt))
			metrics.RecordBreakingNotification(w.channel, false)
			return err
		default:
			delay = w.config.RetryBaseDelay * time.Duration(attempt)
			log.WarnContext(ctx, "Webhook request failed, retrying",
				slog.Any("error", err),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
		}

		if attempt == maxAttempts {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			metrics.RecordBreakingNotification(w.channel, false)
			return fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
		}
	}

	log.ErrorContext(ctx, "Breaking notification failed after all retries",
		slog.Any("error", lastErr),
		slog.Int("max_attempts", maxAttempts))
	metrics.RecordBreakingNotification(w.channel, false)
	return fmt.Errorf("%s notification failed after %d attempts: %w", w.channel, maxAttempts, lastErr)
}

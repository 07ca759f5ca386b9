package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"storywire/internal/resilience/circuitbreaker"
	"storywire/internal/resilience/retry"
	"storywire/internal/usecase/summarize"
	"storywire/internal/utils/text"
)

// provider is one API round trip, without retry or circuit breaking.
type provider func(ctx context.Context, prompt string) (*summarize.Response, error)

// resilientCall wraps a provider with the per-call timeout, retry and the
// circuit breaker, and records length and latency metrics.
type resilientCall struct {
	name    string
	cfg     Config
	breaker *circuitbreaker.CircuitBreaker
	metrics SummaryMetricsRecorder
}

func (r *resilientCall) run(ctx context.Context, req summarize.Request, call provider) (*summarize.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	prompt := buildPrompt(req, r.cfg.MaxInputRunes)

	slog.InfoContext(ctx, "Starting summarization",
		slog.String("provider", r.name),
		slog.String("story_id", req.StoryID),
		slog.Int("input_length", text.CountRunes(prompt)),
		slog.Int("character_limit", req.CharacterLimit))

	resp, err := retry.Do(ctx, r.cfg.Retry, func() (*summarize.Response, error) {
		start := time.Now()
		resp, err := circuitbreaker.Do(r.breaker, func() (*summarize.Response, error) {
			return call(ctx, prompt)
		})
		r.metrics.RecordDuration(time.Since(start))
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			slog.WarnContext(ctx, "summarizer circuit breaker open, request rejected",
				slog.String("provider", r.name),
				slog.String("state", r.breaker.State().String()))
			return nil, ErrCircuitOpen
		}
		return resp, err
	})
	if err != nil {
		slog.ErrorContext(ctx, "Summarization failed",
			slog.String("provider", r.name),
			slog.String("story_id", req.StoryID),
			slog.Any("error", err))
		return nil, fmt.Errorf("%s summarize: %w", r.name, err)
	}

	length := text.CountRunes(resp.Text)
	withinLimit := req.CharacterLimit <= 0 || length <= req.CharacterLimit
	r.metrics.RecordLength(length)
	r.metrics.RecordCompliance(withinLimit)
	r.metrics.RecordTokens(resp.InputTokens, resp.OutputTokens)
	if !withinLimit {
		r.metrics.RecordLimitExceeded()
		slog.WarnContext(ctx, "Summary exceeds character limit",
			slog.String("story_id", req.StoryID),
			slog.Int("summary_length", length),
			slog.Int("limit", req.CharacterLimit))
	}

	slog.InfoContext(ctx, "Summarization completed",
		slog.String("provider", r.name),
		slog.String("story_id", req.StoryID),
		slog.String("model", resp.Model),
		slog.Int("summary_length", length),
		slog.Bool("within_limit", withinLimit))
	return resp, nil
}

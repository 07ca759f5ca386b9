package summarizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"storywire/internal/resilience/circuitbreaker"
	"storywire/internal/usecase/summarize"
)

// Claude implements summarize.Summarizer using Anthropic's Messages API.
type Claude struct {
	client anthropic.Client
	model  string
	maxTok int64
	call   *resilientCall
}

// NewClaude creates a Claude summarizer. The SDK's own retries are disabled;
// retries happen outside the circuit breaker.
func NewClaude(cfg Config, recorder SummaryMetricsRecorder) (*Claude, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid claude configuration: %w", err)
	}
	if recorder == nil {
		recorder = NewPrometheusSummaryMetrics()
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Claude{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
		maxTok: int64(cfg.MaxTokens),
		call: &resilientCall{
			name:    "claude",
			cfg:     cfg,
			breaker: circuitbreaker.New(cfg.Breaker),
			metrics: recorder,
		},
	}, nil
}

// Summarize implements summarize.Summarizer.
func (c *Claude) Summarize(ctx context.Context, req summarize.Request) (*summarize.Response, error) {
	return c.call.run(ctx, req, c.doSummarize)
}

func (c *Claude) doSummarize(ctx context.Context, prompt string) (*summarize.Response, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTok,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &apiError{provider: "claude", status: apiErr.StatusCode, err: err}
		}
		return nil, fmt.Errorf("claude api error: %w", err)
	}

	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok && tb.Text != "" {
			return &summarize.Response{
				Text:         tb.Text,
				Model:        string(message.Model),
				InputTokens:  message.Usage.InputTokens,
				OutputTokens: message.Usage.OutputTokens,
			}, nil
		}
	}
	return nil, ErrEmptyResponse
}

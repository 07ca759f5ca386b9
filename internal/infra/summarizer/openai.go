package summarizer

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"storywire/internal/resilience/circuitbreaker"
	"storywire/internal/usecase/summarize"
)

// OpenAI implements summarize.Summarizer using the Chat Completions API.
type OpenAI struct {
	client *openai.Client
	model  string
	maxTok int
	call   *resilientCall
}

// NewOpenAI creates an OpenAI summarizer.
func NewOpenAI(cfg Config, recorder SummaryMetricsRecorder) (*OpenAI, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid openai configuration: %w", err)
	}
	if recorder == nil {
		recorder = NewPrometheusSummaryMetrics()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		maxTok: cfg.MaxTokens,
		call: &resilientCall{
			name:    "openai",
			cfg:     cfg,
			breaker: circuitbreaker.New(cfg.Breaker),
			metrics: recorder,
		},
	}, nil
}

// Summarize implements summarize.Summarizer.
func (o *OpenAI) Summarize(ctx context.Context, req summarize.Request) (*summarize.Response, error) {
	return o.call.run(ctx, req, o.doSummarize)
}

func (o *OpenAI) doSummarize(ctx context.Context, prompt string) (*summarize.Response, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: o.maxTok,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	// Guard the Choices index; some gateways answer 200 with no choices.
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}
	return &summarize.Response{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	}, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &apiError{provider: "openai", status: apiErr.HTTPStatusCode, err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &apiError{provider: "openai", status: reqErr.HTTPStatusCode, err: err}
	}
	return fmt.Errorf("openai api error: %w", err)
}

// Package embedding provides the text embedder used by semantic clustering.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"storywire/internal/observability/metrics"
	"storywire/internal/resilience/circuitbreaker"
	"storywire/internal/resilience/retry"
	"storywire/internal/utils/text"
)

var (
	// ErrCircuitOpen is returned while the embedding circuit breaker rejects calls.
	ErrCircuitOpen = errors.New("embedding api unavailable: circuit breaker open")
	// ErrEmptyEmbedding is returned when the provider answered without a vector.
	ErrEmptyEmbedding = errors.New("embedding api returned no vector")
)

// Config configures the OpenAI embedder.
type Config struct {
	APIKey  string
	BaseURL string
	Model   openai.EmbeddingModel
	// Dimensions requests a shortened vector from models that support it. Zero keeps the model default.
	Dimensions int
	// MaxInputRunes truncates the text before it is sent.
	MaxInputRunes int
	Timeout       time.Duration
	Retry         retry.Config
	Breaker       circuitbreaker.Config
}

// DefaultConfig returns the production defaults for apiKey.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:        apiKey,
		Model:         openai.SmallEmbedding3,
		MaxInputRunes: 8000,
		Timeout:       10 * time.Second,
		Retry:         retry.EmbeddingConfig(),
		Breaker:       circuitbreaker.EmbeddingAPIConfig(),
	}
}

// OpenAI embeds text with the OpenAI embeddings API.
type OpenAI struct {
	client  *openai.Client
	cfg     Config
	breaker *circuitbreaker.CircuitBreaker
}

// NewOpenAI creates an embedder.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding api key cannot be empty")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("embedding timeout must be positive, got %v", cfg.Timeout)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     cfg,
		breaker: circuitbreaker.New(cfg.Breaker),
	}, nil
}

// Embed implements cluster.Embedder.
func (o *OpenAI) Embed(ctx context.Context, input string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	input = text.Truncate(input, o.cfg.MaxInputRunes)

	vec, err := retry.Do(ctx, o.cfg.Retry, func() ([]float32, error) {
		v, err := circuitbreaker.Do(o.breaker, func() ([]float32, error) {
			return o.doEmbed(ctx, input)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return v, err
	})
	metrics.RecordEmbeddingRequest(err == nil)
	if err != nil {
		slog.WarnContext(ctx, "embedding failed",
			slog.String("model", string(o.cfg.Model)),
			slog.String("breaker_state", o.breaker.State().String()),
			slog.Any("error", err))
		return nil, fmt.Errorf("Embed: %w", err)
	}
	return vec, nil
}

func (o *OpenAI) doEmbed(ctx context.Context, input string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{input},
		Model:      o.cfg.Model,
		Dimensions: o.cfg.Dimensions,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &retry.HTTPError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return nil, &retry.HTTPError{StatusCode: reqErr.HTTPStatusCode, Message: http.StatusText(reqErr.HTTPStatusCode)}
		}
		return nil, fmt.Errorf("embedding api error: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Data[0].Embedding, nil
}

// Package config loads the worker's file and AI provider configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Summarizer providers.
const (
	ProviderAuto   = "auto"
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderNoop   = "noop"
)

// AIConfig holds configuration for summarization and embeddings.
type AIConfig struct {
	Summarizer SummarizerConfig
	Embedding  EmbeddingConfig
}

// SummarizerConfig selects and tunes the story summarizer.
type SummarizerConfig struct {
	// Provider is one of auto, claude, openai, noop. Default: auto, which
	// picks claude, then openai, by which API key is present, else noop.
	Provider string

	AnthropicAPIKey string
	OpenAIAPIKey    string

	// Model overrides the provider default model.
	Model string

	// BaseURL overrides the provider endpoint (gateways, proxies).
	BaseURL string

	// CharacterLimit is the target summary length. Default: 900, range 100-5000.
	CharacterLimit int

	// MinSources is the verification level that triggers a summary. Default: 2
	MinSources int

	// Timeout per summarization call including retries. Default: 60s
	Timeout time.Duration
}

// EmbeddingConfig configures the embedder used by semantic clustering.
type EmbeddingConfig struct {
	// Enabled turns the semantic strategy on. Default: true when OPENAI_API_KEY is set.
	Enabled bool

	APIKey  string
	BaseURL string

	// Model is the embeddings model. Default: text-embedding-3-small
	Model string

	// Dimensions shortens vectors on models that support it. 0 keeps the model default.
	Dimensions int

	// Timeout per embedding call including retries. Default: 10s
	Timeout time.Duration
}

// LoadAIConfig loads AI configuration from environment variables.
// Returns a config with defaults if environment variables are not set.
//
// Environment variables:
//   - SUMMARIZER_PROVIDER, SUMMARIZER_MODEL, SUMMARIZER_BASE_URL
//   - SUMMARIZER_CHAR_LIMIT, SUMMARIZER_MIN_SOURCES, SUMMARIZER_TIMEOUT
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY
//   - EMBEDDING_ENABLED, EMBEDDING_MODEL, EMBEDDING_BASE_URL, EMBEDDING_DIMENSIONS, EMBEDDING_TIMEOUT
func LoadAIConfig() (*AIConfig, error) {
	openAIKey := os.Getenv("OPENAI_API_KEY")
	config := &AIConfig{
		Summarizer: SummarizerConfig{
			Provider:        getEnvOrDefault("SUMMARIZER_PROVIDER", ProviderAuto),
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			OpenAIAPIKey:    openAIKey,
			Model:           os.Getenv("SUMMARIZER_MODEL"),
			BaseURL:         os.Getenv("SUMMARIZER_BASE_URL"),
			CharacterLimit:  getEnvInt("SUMMARIZER_CHAR_LIMIT", 900),
			MinSources:      getEnvInt("SUMMARIZER_MIN_SOURCES", 2),
			Timeout:         getEnvDuration("SUMMARIZER_TIMEOUT", 60*time.Second),
		},
		Embedding: EmbeddingConfig{
			Enabled:    getEnvBool("EMBEDDING_ENABLED", openAIKey != ""),
			APIKey:     openAIKey,
			BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
			Model:      getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
			Timeout:    getEnvDuration("EMBEDDING_TIMEOUT", 10*time.Second),
		},
	}

	config.Summarizer.Provider = config.Summarizer.resolveProvider()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	return config, nil
}

func (c SummarizerConfig) resolveProvider() string {
	if c.Provider != ProviderAuto {
		return c.Provider
	}
	switch {
	case c.AnthropicAPIKey != "":
		return ProviderClaude
	case c.OpenAIAPIKey != "":
		return ProviderOpenAI
	default:
		return ProviderNoop
	}
}

// Validate checks configuration correctness.
func (c *AIConfig) Validate() error {
	s := c.Summarizer
	switch s.Provider {
	case ProviderClaude:
		if s.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the claude summarizer")
		}
	case ProviderOpenAI:
		if s.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai summarizer")
		}
	case ProviderNoop:
	default:
		return fmt.Errorf("SUMMARIZER_PROVIDER %q is not one of auto, claude, openai, noop", s.Provider)
	}

	if s.CharacterLimit < 100 || s.CharacterLimit > 5000 {
		return fmt.Errorf("SUMMARIZER_CHAR_LIMIT must be between 100 and 5000")
	}

	if s.MinSources < 1 {
		return fmt.Errorf("SUMMARIZER_MIN_SOURCES must be positive")
	}

	if s.Timeout <= 0 {
		return fmt.Errorf("SUMMARIZER_TIMEOUT must be positive")
	}

	if c.Embedding.Enabled {
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when EMBEDDING_ENABLED is true")
		}
		if c.Embedding.Model == "" {
			return fmt.Errorf("EMBEDDING_MODEL cannot be empty")
		}
		if c.Embedding.Dimensions < 0 {
			return fmt.Errorf("EMBEDDING_DIMENSIONS must not be negative")
		}
		if c.Embedding.Timeout <= 0 {
			return fmt.Errorf("EMBEDDING_TIMEOUT must be positive")
		}
	}

	return nil
}

// getEnvOrDefault returns environment variable value or default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool parses boolean environment variable with default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt parses integer environment variable with default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration parses duration environment variable with default.
// Supports formats like "30s", "1m", "2h".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

package summarizer

import (
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"

	"storywire/internal/resilience/circuitbreaker"
	"storywire/internal/resilience/retry"
)

const (
	// minCharLimit is the minimum allowed character limit for summaries.
	minCharLimit = 100

	// maxCharLimit is the maximum allowed character limit for summaries.
	maxCharLimit = 5000
)

// Config holds the settings shared by the API-backed summarizers.
type Config struct {
	APIKey string
	// BaseURL overrides the provider endpoint. Empty uses the provider default.
	BaseURL string
	Model   string
	// MaxTokens bounds the response length requested from the provider.
	MaxTokens int
	// MaxInputRunes truncates the prompt before it is sent.
	MaxInputRunes int
	// Timeout applies to one Summarize call including retries.
	Timeout time.Duration
	Retry   retry.Config
	Breaker circuitbreaker.Config
}

// DefaultClaudeConfig returns the Claude defaults for apiKey.
func DefaultClaudeConfig(apiKey string) Config {
	return Config{
		APIKey:        apiKey,
		Model:         string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens:     1024,
		MaxInputRunes: 12000,
		Timeout:       60 * time.Second,
		Retry:         retry.SummarizerConfig(),
		Breaker:       circuitbreaker.SummarizerAPIConfig("claude"),
	}
}

// DefaultOpenAIConfig returns the OpenAI defaults for apiKey.
func DefaultOpenAIConfig(apiKey string) Config {
	return Config{
		APIKey:        apiKey,
		Model:         openai.GPT4oMini,
		MaxTokens:     1024,
		MaxInputRunes: 12000,
		Timeout:       60 * time.Second,
		Retry:         retry.SummarizerConfig(),
		Breaker:       circuitbreaker.SummarizerAPIConfig("openai"),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api key cannot be empty")
	}
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.MaxInputRunes <= 0 {
		return fmt.Errorf("max input runes must be positive, got %d", c.MaxInputRunes)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	return nil
}

// ValidateCharacterLimit validates that the character limit is within the valid range (100-5000).
//
// Example:
//
//	err := ValidateCharacterLimit(900)  // nil (valid)
//	err := ValidateCharacterLimit(50)   // error: "character limit 50 is below minimum 100"
//	err := ValidateCharacterLimit(6000) // error: "character limit 6000 exceeds maximum 5000"
func ValidateCharacterLimit(limit int) error {
	if limit < minCharLimit {
		return fmt.Errorf("character limit %d is below minimum %d", limit, minCharLimit)
	}
	if limit > maxCharLimit {
		return fmt.Errorf("character limit %d exceeds maximum %d", limit, maxCharLimit)
	}
	return nil
}

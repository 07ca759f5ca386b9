// Package summarizer provides story summarization adapters for the Claude and
// OpenAI APIs, wrapped in a circuit breaker and retry with backoff.
package summarizer

import (
	"context"
	"strings"

	"storywire/internal/usecase/summarize"
	"storywire/internal/utils/text"
)

// NoOpModel is the model name reported by NoOp.
const NoOpModel = "noop"

// NoOp joins the member headlines instead of calling a provider.
// It is used when no API key is configured.
type NoOp struct{}

// NewNoOp creates a new NoOp summarizer.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Summarize returns the story title followed by the member headlines, cut to
// the character limit.
func (n *NoOp) Summarize(_ context.Context, req summarize.Request) (*summarize.Response, error) {
	parts := []string{req.Title}
	for _, ex := range req.Excerpts {
		if ex.Title != "" && ex.Title != req.Title {
			parts = append(parts, ex.Title)
		}
	}
	return &summarize.Response{
		Text:  text.Truncate(strings.Join(parts, ". "), req.CharacterLimit),
		Model: NoOpModel,
	}, nil
}

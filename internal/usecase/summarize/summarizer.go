// Package summarize generates story summaries once a story is corroborated.
package summarize

import (
	"context"
	"time"
)

// Excerpt is one member article as presented to a Summarizer.
type Excerpt struct {
	Source      string
	Title       string
	Content     string
	URL         string
	PublishedAt time.Time
}

// Request describes the story to summarize.
type Request struct {
	StoryID  string
	Title    string
	Category string
	Excerpts []Excerpt
	// CharacterLimit is the target summary length in runes.
	CharacterLimit int
}

// Response is a generated summary and the provider usage it cost.
type Response struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Summarizer turns a Request into a summary.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (*Response, error)
}

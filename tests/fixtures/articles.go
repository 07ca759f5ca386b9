// Package fixtures provides reusable test data builders for storywire packages.
package fixtures

import (
	"fmt"
	"strings"
	"time"

	"storywire/internal/domain/entity"
	"storywire/internal/utils/text"
)

// BaseTime is the fixed clock used by the builders.
var BaseTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// ArticleOption customizes an article built by NewArticle.
type ArticleOption func(*entity.Article)

// NewArticle builds a valid, unprocessed article. The id is derived from the
// source, URL and publication time the way ingestion derives it.
//
// Example:
//
//	a := NewArticle("wire", "Earthquake Strikes Northern Japan", WithCategory("world"))
func NewArticle(source, title string, opts ...ArticleOption) *entity.Article {
	slug := strings.ReplaceAll(strings.ToLower(title), " ", "-")
	a := &entity.Article{
		Source:      source,
		SourceTier:  2,
		FeedID:      source + "-feed",
		Title:       title,
		Description: title + ".",
		Content:     GenerateBody(400),
		URL:         fmt.Sprintf("https://%s.example.com/%s", source, slug),
		PublishedAt: BaseTime,
		FetchedAt:   BaseTime,
		Category:    "world",
		Language:    "en",
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Entities == nil {
		a.Entities = text.ExtractEntities(5, a.Title, a.Description)
	}
	if a.StoryFingerprint == "" {
		a.StoryFingerprint = text.Fingerprint(a.Title, a.Entities)
	}
	if a.ID == "" {
		a.ID = entity.ArticleID(a.Source, a.URL, a.PublishedAt)
	}
	return a
}

// WithCategory sets the category.
func WithCategory(category string) ArticleOption {
	return func(a *entity.Article) { a.Category = category }
}

// WithTier sets the source tier.
func WithTier(tier int) ArticleOption {
	return func(a *entity.Article) { a.SourceTier = tier }
}

// WithPublished sets both publication and fetch time.
func WithPublished(at time.Time) ArticleOption {
	return func(a *entity.Article) {
		a.PublishedAt = at
		a.FetchedAt = at
	}
}

// WithFingerprint overrides the story fingerprint.
func WithFingerprint(fp string) ArticleOption {
	return func(a *entity.Article) { a.StoryFingerprint = fp }
}

// WithEmbedding attaches a precomputed embedding.
func WithEmbedding(vec []float32) ArticleOption {
	return func(a *entity.Article) { a.Embedding = vec }
}

// WithID overrides the derived id.
func WithID(id string) ArticleOption {
	return func(a *entity.Article) { a.ID = id }
}

// GenerateBody returns English filler text of roughly length runes.
func GenerateBody(length int) string {
	sentences := []string{
		"Officials confirmed the figures at a briefing on Monday morning.",
		"Emergency services said they were responding to several reports.",
		"Markets in the region reacted within minutes of the announcement.",
		"Residents described the scene as calm but uncertain.",
		"The agency said further updates would follow later in the day.",
		"Analysts cautioned that early estimates are often revised.",
		"Witnesses shared photos and video on social media.",
		"A spokesperson declined to comment on the timeline.",
	}

	var b strings.Builder
	for i := 0; b.Len() < length; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentences[i%len(sentences)])
	}
	return b.String()
}

package ingest

import (
	"strings"
	"time"

	"storywire/internal/domain/entity"
	"storywire/internal/utils/text"
)

const (
	// MaxContentRunes is the default content length kept per article.
	MaxContentRunes = 5000
	// MaxEntities caps the entity list extracted per article.
	MaxEntities = 10
)

// Normalize turns a raw feed entry into an Article. It returns false for entries
// without a title or link and never panics on malformed input.
func Normalize(entry entity.RawEntry, feed entity.FeedConfig, now time.Time) (*entity.Article, bool) {
	return NormalizeWithLimit(entry, feed, now, MaxContentRunes)
}

// NormalizeWithLimit is Normalize with a custom content length.
func NormalizeWithLimit(entry entity.RawEntry, feed entity.FeedConfig, now time.Time, maxContentRunes int) (*entity.Article, bool) {
	title := text.StripMarkup(entry.Title)
	link := strings.TrimSpace(entry.Link)
	if title == "" || link == "" {
		return nil, false
	}
	if maxContentRunes <= 0 {
		maxContentRunes = MaxContentRunes
	}

	// The explicit date feeds the id; ingestion time is only a display fallback.
	var explicit time.Time
	switch {
	case entry.Published != nil && !entry.Published.IsZero():
		explicit = entry.Published.UTC()
	case entry.Updated != nil && !entry.Updated.IsZero():
		explicit = entry.Updated.UTC()
	}
	published := explicit
	if published.IsZero() {
		published = now.UTC()
	}

	description := text.StripMarkup(entry.Description)
	content := text.StripMarkup(entry.Content)
	if content == "" {
		content = description
	}

	entities := text.ExtractEntities(MaxEntities, title, description)
	source := feed.SourceID

	return &entity.Article{
		ID:               entity.ArticleID(source, link, explicit),
		Source:           source,
		SourceTier:       feed.Tier,
		FeedID:           feed.ID,
		Title:            title,
		Description:      description,
		Content:          text.Truncate(content, maxContentRunes),
		URL:              entity.CanonicalURL(link),
		PublishedAt:      published,
		FetchedAt:        now.UTC(),
		Category:         feed.Category,
		Language:         feed.Language,
		Entities:         entities,
		StoryFingerprint: text.Fingerprint(title, entities),
	}, true
}

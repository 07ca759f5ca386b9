package fixtures

import (
	"time"

	"storywire/internal/domain/entity"
)

// FeedOption customizes a feed built by NewFeed.
type FeedOption func(*entity.FeedConfig)

// NewFeed builds a valid tier-2 English feed in category.
func NewFeed(id, category string, opts ...FeedOption) entity.FeedConfig {
	f := entity.FeedConfig{
		ID:       id,
		Name:     id,
		URL:      "https://" + id + ".example.com/rss",
		SourceID: id,
		Category: category,
		Tier:     2,
		Language: "en",
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithFeedURL points the feed at url, e.g. an httptest server.
func WithFeedURL(url string) FeedOption {
	return func(f *entity.FeedConfig) { f.URL = url }
}

// WithFeedTier sets the tier.
func WithFeedTier(tier int) FeedOption {
	return func(f *entity.FeedConfig) { f.Tier = tier }
}

// StoryFrom builds a story whose sources are arts, as the clustering engine
// would have recorded them. Callers pass articles from distinct sources.
// Version and Seq are left to the store.
func StoryFrom(id string, arts ...*entity.Article) *entity.Story {
	if len(arts) == 0 {
		panic("fixtures.StoryFrom: at least one article required")
	}
	first := arts[0]
	st := &entity.Story{
		ID:               id,
		Category:         first.Category,
		EventFingerprint: first.StoryFingerprint,
		Title:            first.Title,
		Status:           entity.StatusDeveloping,
		FirstSeen:        first.FetchedAt,
		LastUpdated:      first.FetchedAt,
	}
	for _, a := range arts {
		st.SourceArticles = append(st.SourceArticles, entity.SourceArticle{
			ArticleID:   a.ID,
			Source:      a.Source,
			SourceTier:  a.SourceTier,
			Title:       a.Title,
			URL:         a.URL,
			PublishedAt: a.PublishedAt,
			AddedAt:     a.FetchedAt,
		})
		if a.FetchedAt.After(st.LastUpdated) {
			st.LastUpdated = a.FetchedAt
		}
	}
	st.VerificationLevel = len(st.SourceArticles)
	st.UpdateCount = len(arts) - 1
	return st
}

// Minutes returns BaseTime plus n minutes.
func Minutes(n int) time.Time {
	return BaseTime.Add(time.Duration(n) * time.Minute)
}

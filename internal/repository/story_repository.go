package repository

import (
	"context"
	"time"

	"storywire/internal/domain/entity"
)

// ScoredStory is a story returned by a similarity query together with its cosine similarity.
type ScoredStory struct {
	Story      *entity.Story
	Similarity float64
}

// StoryRepository persists stories. Every successful write bumps Version and Seq.
type StoryRepository interface {
	// Create stores a new story with Version 1.
	// Returns ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, story *entity.Story) error

	// Update replaces the stored story if its version still equals story.Version.
	// On success story.Version and story.Seq are updated in place.
	// Returns ErrVersionConflict if another writer got there first.
	Update(ctx context.Context, story *entity.Story) error

	// Get returns the story or entity.ErrNotFound.
	Get(ctx context.Context, id string) (*entity.Story, error)

	// FindByFingerprint returns stories in category carrying fingerprint that were
	// updated at or after since, newest LastUpdated first.
	FindByFingerprint(ctx context.Context, category, fingerprint string, since time.Time) ([]*entity.Story, error)

	// ListRecent returns up to limit stories in category updated at or after since,
	// newest LastUpdated first.
	ListRecent(ctx context.Context, category string, since time.Time, limit int) ([]*entity.Story, error)

	// NearestByCentroid returns up to limit stories in category with a centroid,
	// updated at or after since, ordered by descending cosine similarity to vec.
	NearestByCentroid(ctx context.Context, category string, vec []float32, since time.Time, limit int) ([]ScoredStory, error)

	// ChangesSince returns up to limit stories with Seq > afterSeq, ordered by Seq.
	ChangesSince(ctx context.Context, afterSeq int64, limit int) ([]*entity.Story, error)
}

// SummaryRepository stores generated story summaries.
type SummaryRepository interface {
	// Get returns the latest summary for the story, or (nil, nil) when none exists.
	Get(ctx context.Context, storyID string) (*entity.StorySummary, error)
	// Upsert replaces the summary for summary.StoryID.
	Upsert(ctx context.Context, summary *entity.StorySummary) error
}

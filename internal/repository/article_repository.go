package repository

import (
	"context"

	"storywire/internal/domain/entity"
)

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ArticleRepository persists articles and exposes their change feed.
type ArticleRepository interface {
	// Insert stores a new article and assigns its change sequence.
	// Inserting an id that already exists is a no-op that returns (false, nil).
	Insert(ctx context.Context, article *entity.Article) (bool, error)
	// Get returns the article or entity.ErrNotFound.
	Get(ctx context.Context, id string) (*entity.Article, error)
	// GetMany returns the articles found for ids; missing ids are skipped.
	GetMany(ctx context.Context, ids []string) ([]*entity.Article, error)
	// MarkProcessed sets Processed and StoryID. It does not advance the change feed.
	MarkProcessed(ctx context.Context, id, storyID string) error
	// IncrementAttempts bumps ProcessingAttempts and returns the new value.
	IncrementAttempts(ctx context.Context, id string) (int, error)
	// ChangesSince returns up to limit articles with Seq > afterSeq, ordered by Seq.
	ChangesSince(ctx context.Context, afterSeq int64, limit int) ([]*entity.Article, error)
	// Unprocessed returns up to limit unprocessed articles with Seq <= throughSeq
	// and fewer than maxAttempts processing attempts, ordered by Seq.
	Unprocessed(ctx context.Context, throughSeq int64, maxAttempts, limit int) ([]*entity.Article, error)
}

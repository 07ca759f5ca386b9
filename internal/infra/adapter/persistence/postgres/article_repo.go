package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"storywire/internal/domain/entity"
	"storywire/internal/repository"
)

var articleColumns = []string{
	"id", "source", "source_tier", "feed_id", "title", "description", "content", "url",
	"published_at", "fetched_at", "category", "language", "entities", "story_fingerprint",
	"embedding", "processed", "story_id", "processing_attempts", "seq",
}

// ArticleRepo stores articles in the articles table, partitioned by ingestion date.
type ArticleRepo struct {
	db Querier
}

var _ repository.ArticleRepository = (*ArticleRepo)(nil)

// NewArticleRepo creates an ArticleRepo on db.
func NewArticleRepo(db Querier) *ArticleRepo {
	return &ArticleRepo{db: db}
}

// Insert implements repository.ArticleRepository.
func (repo *ArticleRepo) Insert(ctx context.Context, article *entity.Article) (bool, error) {
	if article == nil || article.ID == "" {
		return false, fmt.Errorf("Insert: %w", entity.ErrInvalidInput)
	}
	query, args, err := psql.Insert("articles").
		Columns(
			"id", "partition_key", "source", "source_tier", "feed_id", "title", "description",
			"content", "url", "published_at", "fetched_at", "category", "language", "entities",
			"story_fingerprint", "embedding", "processed", "story_id", "processing_attempts",
		).
		Values(
			article.ID, article.PartitionKey(), article.Source, article.SourceTier, article.FeedID,
			article.Title, article.Description, article.Content, article.URL, article.PublishedAt,
			article.FetchedAt, article.Category, article.Language, pq.StringArray(article.Entities),
			article.StoryFingerprint, vectorArg(article.Embedding), article.Processed,
			nullString(article.StoryID), article.ProcessingAttempts,
		).
		Suffix("ON CONFLICT (id) DO NOTHING RETURNING seq").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("Insert: build: %w", err)
	}

	var seq int64
	if err := repo.db.QueryRowContext(ctx, query, args...).Scan(&seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("Insert: %w", err)
	}
	article.Seq = seq
	return true, nil
}

// Get implements repository.ArticleRepository.
func (repo *ArticleRepo) Get(ctx context.Context, id string) (*entity.Article, error) {
	query, args, err := psql.Select(articleColumns...).From("articles").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("Get: build: %w", err)
	}
	a, err := scanArticle(repo.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Get %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return a, nil
}

// GetMany implements repository.ArticleRepository. Results follow the order of ids.
func (repo *ArticleRepo) GetMany(ctx context.Context, ids []string) ([]*entity.Article, error) {
	if len(ids) == 0 {
		return []*entity.Article{}, nil
	}
	query, args, err := psql.Select(articleColumns...).From("articles").
		Where("id = ANY(?)", pq.StringArray(ids)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("GetMany: build: %w", err)
	}
	found, err := repo.queryArticles(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("GetMany: %w", err)
	}

	byID := make(map[string]*entity.Article, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	out := make([]*entity.Article, 0, len(found))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			out = append(out, a)
			delete(byID, id)
		}
	}
	return out, nil
}

// MarkProcessed implements repository.ArticleRepository.
// The seq column is left untouched so the article is not re-emitted.
func (repo *ArticleRepo) MarkProcessed(ctx context.Context, id, storyID string) error {
	query, args, err := psql.Update("articles").
		Set("processed", true).
		Set("story_id", nullString(storyID)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("MarkProcessed: build: %w", err)
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("MarkProcessed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkProcessed: RowsAffected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("MarkProcessed %s: %w", id, entity.ErrNotFound)
	}
	return nil
}

// IncrementAttempts implements repository.ArticleRepository.
func (repo *ArticleRepo) IncrementAttempts(ctx context.Context, id string) (int, error) {
	query, args, err := psql.Update("articles").
		Set("processing_attempts", sq.Expr("processing_attempts + 1")).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING processing_attempts").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("IncrementAttempts: build: %w", err)
	}
	var attempts int
	if err := repo.db.QueryRowContext(ctx, query, args...).Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("IncrementAttempts %s: %w", id, entity.ErrNotFound)
		}
		return 0, fmt.Errorf("IncrementAttempts: %w", err)
	}
	return attempts, nil
}

// ChangesSince implements repository.ArticleRepository.
func (repo *ArticleRepo) ChangesSince(ctx context.Context, afterSeq int64, limit int) ([]*entity.Article, error) {
	if limit <= 0 {
		return []*entity.Article{}, nil
	}
	query, args, err := psql.Select(articleColumns...).From("articles").
		Where(sq.Gt{"seq": afterSeq}).
		OrderBy("seq").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ChangesSince: build: %w", err)
	}
	articles, err := repo.queryArticles(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("ChangesSince: %w", err)
	}
	return articles, nil
}

// Unprocessed implements repository.ArticleRepository. It is served by the
// partial index idx_articles_unprocessed.
func (repo *ArticleRepo) Unprocessed(ctx context.Context, throughSeq int64, maxAttempts, limit int) ([]*entity.Article, error) {
	if limit <= 0 {
		return []*entity.Article{}, nil
	}
	query, args, err := psql.Select(articleColumns...).From("articles").
		Where(sq.Eq{"processed": false}).
		Where(sq.LtOrEq{"seq": throughSeq}).
		Where(sq.Lt{"processing_attempts": maxAttempts}).
		OrderBy("seq").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("Unprocessed: build: %w", err)
	}
	articles, err := repo.queryArticles(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("Unprocessed: %w", err)
	}
	return articles, nil
}

// Ping checks connectivity with a trivial query.
func (repo *ArticleRepo) Ping(ctx context.Context) error {
	var one int
	return repo.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

func (repo *ArticleRepo) queryArticles(ctx context.Context, query string, args []interface{}) ([]*entity.Article, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	articles := make([]*entity.Article, 0, 16)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("Scan: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (*entity.Article, error) {
	var (
		a         entity.Article
		entities  pq.StringArray
		embedding sql.NullString
		storyID   sql.NullString
	)
	if err := row.Scan(
		&a.ID, &a.Source, &a.SourceTier, &a.FeedID, &a.Title, &a.Description, &a.Content, &a.URL,
		&a.PublishedAt, &a.FetchedAt, &a.Category, &a.Language, &entities, &a.StoryFingerprint,
		&embedding, &a.Processed, &storyID, &a.ProcessingAttempts, &a.Seq,
	); err != nil {
		return nil, err
	}
	vec, err := parseVector(embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	a.Embedding = vec
	if len(entities) > 0 {
		a.Entities = []string(entities)
	}
	a.StoryID = storyID.String
	return &a, nil
}

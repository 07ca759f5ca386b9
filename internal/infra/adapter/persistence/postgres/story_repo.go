package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"storywire/internal/domain/entity"
	"storywire/internal/repository"
)

var storyColumns = []string{
	"id", "category", "event_fingerprint", "title", "status", "verification_level",
	"confidence_score", "importance_score", "source_articles", "first_seen", "last_updated",
	"update_count", "breaking_news", "breaking_detected_at", "centroid", "embedding_count",
	"version", "seq",
}

// StoryRepo stores stories in the stories table, keyed by category.
type StoryRepo struct {
	db Querier
}

var _ repository.StoryRepository = (*StoryRepo)(nil)

// NewStoryRepo creates a StoryRepo on db.
func NewStoryRepo(db Querier) *StoryRepo {
	return &StoryRepo{db: db}
}

// Create implements repository.StoryRepository.
func (repo *StoryRepo) Create(ctx context.Context, story *entity.Story) error {
	if story == nil || story.ID == "" {
		return fmt.Errorf("Create: %w", entity.ErrInvalidInput)
	}
	sources, err := json.Marshal(story.SourceArticles)
	if err != nil {
		return fmt.Errorf("Create: marshal sources: %w", err)
	}
	query, args, err := psql.Insert("stories").
		Columns(
			"id", "category", "event_fingerprint", "title", "status", "verification_level",
			"confidence_score", "importance_score", "source_articles", "first_seen", "last_updated",
			"update_count", "breaking_news", "breaking_detected_at", "centroid", "embedding_count",
			"version", "seq",
		).
		Values(
			story.ID, story.Category, story.EventFingerprint, story.Title, string(story.Status),
			story.VerificationLevel, story.ConfidenceScore, story.ImportanceScore, sources,
			story.FirstSeen, story.LastUpdated, story.UpdateCount, story.BreakingNews,
			nullTime(story.BreakingDetectedAt), vectorArg(story.Centroid), story.EmbeddingCount,
			1, sq.Expr("nextval('stories_seq')"),
		).
		Suffix("ON CONFLICT (id) DO NOTHING RETURNING version, seq").
		ToSql()
	if err != nil {
		return fmt.Errorf("Create: build: %w", err)
	}

	var version, seq int64
	if err := repo.db.QueryRowContext(ctx, query, args...).Scan(&version, &seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return fmt.Errorf("Create %s: %w", story.ID, repository.ErrAlreadyExists)
		}
		return fmt.Errorf("Create: %w", err)
	}
	story.Version = version
	story.Seq = seq
	return nil
}

// Update implements repository.StoryRepository with a version compare-and-set.
func (repo *StoryRepo) Update(ctx context.Context, story *entity.Story) error {
	if story == nil || story.ID == "" {
		return fmt.Errorf("Update: %w", entity.ErrInvalidInput)
	}
	sources, err := json.Marshal(story.SourceArticles)
	if err != nil {
		return fmt.Errorf("Update: marshal sources: %w", err)
	}
	query, args, err := psql.Update("stories").
		Set("event_fingerprint", story.EventFingerprint).
		Set("title", story.Title).
		Set("status", string(story.Status)).
		Set("verification_level", story.VerificationLevel).
		Set("confidence_score", story.ConfidenceScore).
		Set("importance_score", story.ImportanceScore).
		Set("source_articles", sources).
		Set("last_updated", story.LastUpdated).
		Set("update_count", story.UpdateCount).
		Set("breaking_news", story.BreakingNews).
		Set("breaking_detected_at", nullTime(story.BreakingDetectedAt)).
		Set("centroid", vectorArg(story.Centroid)).
		Set("embedding_count", story.EmbeddingCount).
		Set("version", sq.Expr("version + 1")).
		Set("seq", sq.Expr("nextval('stories_seq')")).
		Where(sq.Eq{"id": story.ID, "version": story.Version}).
		Suffix("RETURNING version, seq").
		ToSql()
	if err != nil {
		return fmt.Errorf("Update: build: %w", err)
	}

	var version, seq int64
	if err := repo.db.QueryRowContext(ctx, query, args...).Scan(&version, &seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("Update %s@%d: %w", story.ID, story.Version, repository.ErrVersionConflict)
		}
		return fmt.Errorf("Update: %w", err)
	}
	story.Version = version
	story.Seq = seq
	return nil
}

// Get implements repository.StoryRepository.
func (repo *StoryRepo) Get(ctx context.Context, id string) (*entity.Story, error) {
	query, args, err := psql.Select(storyColumns...).From("stories").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("Get: build: %w", err)
	}
	s, err := scanStory(repo.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Get %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return s, nil
}

// FindByFingerprint implements repository.StoryRepository.
func (repo *StoryRepo) FindByFingerprint(ctx context.Context, category, fingerprint string, since time.Time) ([]*entity.Story, error) {
	query, args, err := psql.Select(storyColumns...).From("stories").
		Where(sq.Eq{"category": category, "event_fingerprint": fingerprint}).
		Where(sq.GtOrEq{"last_updated": since}).
		OrderBy("last_updated DESC", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("FindByFingerprint: build: %w", err)
	}
	stories, err := repo.queryStories(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("FindByFingerprint: %w", err)
	}
	return stories, nil
}

// ListRecent implements repository.StoryRepository.
func (repo *StoryRepo) ListRecent(ctx context.Context, category string, since time.Time, limit int) ([]*entity.Story, error) {
	if limit <= 0 {
		return []*entity.Story{}, nil
	}
	query, args, err := psql.Select(storyColumns...).From("stories").
		Where(sq.Eq{"category": category}).
		Where(sq.GtOrEq{"last_updated": since}).
		OrderBy("last_updated DESC", "id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ListRecent: build: %w", err)
	}
	stories, err := repo.queryStories(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	return stories, nil
}

// NearestByCentroid implements repository.StoryRepository using the pgvector
// cosine distance operator.
func (repo *StoryRepo) NearestByCentroid(ctx context.Context, category string, vec []float32, since time.Time, limit int) ([]repository.ScoredStory, error) {
	if limit <= 0 || len(vec) == 0 {
		return []repository.ScoredStory{}, nil
	}
	query, args, err := psql.Select(storyColumns...).
		Column(sq.Expr("1 - (centroid <=> ?) AS similarity", vectorArg(vec))).
		From("stories").
		Where(sq.Eq{"category": category}).
		Where(sq.NotEq{"centroid": nil}).
		Where(sq.GtOrEq{"last_updated": since}).
		OrderByClause("centroid <=> ?", vectorArg(vec)).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("NearestByCentroid: build: %w", err)
	}

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("NearestByCentroid: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]repository.ScoredStory, 0, limit)
	for rows.Next() {
		var similarity float64
		s, err := scanStory(rows, &similarity)
		if err != nil {
			return nil, fmt.Errorf("NearestByCentroid: Scan: %w", err)
		}
		out = append(out, repository.ScoredStory{Story: s, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("NearestByCentroid: %w", err)
	}
	return out, nil
}

// ChangesSince implements repository.StoryRepository.
func (repo *StoryRepo) ChangesSince(ctx context.Context, afterSeq int64, limit int) ([]*entity.Story, error) {
	if limit <= 0 {
		return []*entity.Story{}, nil
	}
	query, args, err := psql.Select(storyColumns...).From("stories").
		Where(sq.Gt{"seq": afterSeq}).
		OrderBy("seq").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ChangesSince: build: %w", err)
	}
	stories, err := repo.queryStories(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("ChangesSince: %w", err)
	}
	return stories, nil
}

func (repo *StoryRepo) queryStories(ctx context.Context, query string, args []interface{}) ([]*entity.Story, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	stories := make([]*entity.Story, 0, 16)
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("Scan: %w", err)
		}
		stories = append(stories, s)
	}
	return stories, rows.Err()
}

// scanStory reads one story row; extra receives any columns selected after storyColumns.
func scanStory(row rowScanner, extra ...interface{}) (*entity.Story, error) {
	var (
		s        entity.Story
		status   string
		sources  []byte
		breaking sql.NullTime
		centroid sql.NullString
	)
	dest := []interface{}{
		&s.ID, &s.Category, &s.EventFingerprint, &s.Title, &status, &s.VerificationLevel,
		&s.ConfidenceScore, &s.ImportanceScore, &sources, &s.FirstSeen, &s.LastUpdated,
		&s.UpdateCount, &s.BreakingNews, &breaking, &centroid, &s.EmbeddingCount,
		&s.Version, &s.Seq,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	s.Status = entity.StoryStatus(status)
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &s.SourceArticles); err != nil {
			return nil, fmt.Errorf("source_articles: %w", err)
		}
	}
	if breaking.Valid {
		t := breaking.Time
		s.BreakingDetectedAt = &t
	}
	vec, err := parseVector(centroid)
	if err != nil {
		return nil, fmt.Errorf("centroid: %w", err)
	}
	s.Centroid = vec
	return &s, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

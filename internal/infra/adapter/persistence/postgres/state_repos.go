package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"storywire/internal/domain/entity"
	"storywire/internal/repository"
)

/* ───────── summaries ───────── */

// SummaryRepo stores one summary row per story.
type SummaryRepo struct {
	db Querier
}

var _ repository.SummaryRepository = (*SummaryRepo)(nil)

// NewSummaryRepo creates a SummaryRepo on db.
func NewSummaryRepo(db Querier) *SummaryRepo {
	return &SummaryRepo{db: db}
}

// Get implements repository.SummaryRepository.
func (repo *SummaryRepo) Get(ctx context.Context, storyID string) (*entity.StorySummary, error) {
	query, args, err := psql.Select(
		"story_id", "text", "source_count", "model", "input_tokens", "output_tokens", "generated_at",
	).From("story_summaries").Where(sq.Eq{"story_id": storyID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("Get: build: %w", err)
	}
	var s entity.StorySummary
	err = repo.db.QueryRowContext(ctx, query, args...).Scan(
		&s.StoryID, &s.Text, &s.SourceCount, &s.Model, &s.InputTokens, &s.OutputTokens, &s.GeneratedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &s, nil
}

// Upsert implements repository.SummaryRepository.
func (repo *SummaryRepo) Upsert(ctx context.Context, summary *entity.StorySummary) error {
	if summary == nil || summary.StoryID == "" {
		return fmt.Errorf("Upsert: %w", entity.ErrInvalidInput)
	}
	query, args, err := psql.Insert("story_summaries").
		Columns("story_id", "text", "source_count", "model", "input_tokens", "output_tokens", "generated_at").
		Values(summary.StoryID, summary.Text, summary.SourceCount, summary.Model,
			summary.InputTokens, summary.OutputTokens, summary.GeneratedAt).
		Suffix(`ON CONFLICT (story_id) DO UPDATE SET
	text = EXCLUDED.text,
	source_count = EXCLUDED.source_count,
	model = EXCLUDED.model,
	input_tokens = EXCLUDED.input_tokens,
	output_tokens = EXCLUDED.output_tokens,
	generated_at = EXCLUDED.generated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("Upsert: build: %w", err)
	}
	if _, err := repo.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

/* ───────── change-feed leases ───────── */

// LeaseRepo stores consumer group leases in changefeed_leases.
type LeaseRepo struct {
	db Querier
}

var _ repository.LeaseRepository = (*LeaseRepo)(nil)

// NewLeaseRepo creates a LeaseRepo on db.
func NewLeaseRepo(db Querier) *LeaseRepo {
	return &LeaseRepo{db: db}
}

// Acquire implements repository.LeaseRepository in a single upsert: the row is taken
// over only when the caller already owns it or the current lease has expired.
func (repo *LeaseRepo) Acquire(ctx context.Context, group, owner string, ttl time.Duration, now time.Time) (*repository.Lease, error) {
	query, args, err := psql.Insert("changefeed_leases").
		Columns("group_name", "owner", "checkpoint", "expires_at").
		Values(group, owner, 0, now.Add(ttl)).
		Suffix(`ON CONFLICT (group_name) DO UPDATE SET
	owner = EXCLUDED.owner,
	expires_at = EXCLUDED.expires_at
WHERE changefeed_leases.owner = EXCLUDED.owner OR changefeed_leases.expires_at <= ?
RETURNING group_name, owner, checkpoint, expires_at`, now).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("Acquire: build: %w", err)
	}

	var l repository.Lease
	err = repo.db.QueryRowContext(ctx, query, args...).Scan(&l.Group, &l.Owner, &l.Checkpoint, &l.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Acquire %s: %w", group, repository.ErrLeaseHeld)
	}
	if err != nil {
		return nil, fmt.Errorf("Acquire: %w", err)
	}
	return &l, nil
}

// Commit implements repository.LeaseRepository. The checkpoint never moves backwards.
func (repo *LeaseRepo) Commit(ctx context.Context, group, owner string, checkpoint int64) error {
	query, args, err := psql.Update("changefeed_leases").
		Set("checkpoint", sq.Expr("GREATEST(checkpoint, ?)", checkpoint)).
		Where(sq.Eq{"group_name": group, "owner": owner}).
		ToSql()
	if err != nil {
		return fmt.Errorf("Commit: build: %w", err)
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("Commit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Commit: RowsAffected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("Commit %s: %w", group, repository.ErrLeaseLost)
	}
	return nil
}

/* ───────── feed poll state ───────── */

// PollStateRepo stores the last poll time of each feed.
type PollStateRepo struct {
	db Querier
}

var _ repository.PollStateRepository = (*PollStateRepo)(nil)

// NewPollStateRepo creates a PollStateRepo on db.
func NewPollStateRepo(db Querier) *PollStateRepo {
	return &PollStateRepo{db: db}
}

// LastPolls implements repository.PollStateRepository.
func (repo *PollStateRepo) LastPolls(ctx context.Context, feedIDs []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(feedIDs))
	if len(feedIDs) == 0 {
		return out, nil
	}
	query, args, err := psql.Select("feed_id", "last_poll").From("feed_poll_state").
		Where("feed_id = ANY(?)", pq.StringArray(feedIDs)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("LastPolls: build: %w", err)
	}
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("LastPolls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id string
			at time.Time
		)
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("LastPolls: Scan: %w", err)
		}
		out[id] = at
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("LastPolls: %w", err)
	}
	return out, nil
}

// MarkPolled implements repository.PollStateRepository.
func (repo *PollStateRepo) MarkPolled(ctx context.Context, feedID string, at time.Time) error {
	query, args, err := psql.Insert("feed_poll_state").
		Columns("feed_id", "last_poll").
		Values(feedID, at).
		Suffix("ON CONFLICT (feed_id) DO UPDATE SET last_poll = EXCLUDED.last_poll").
		ToSql()
	if err != nil {
		return fmt.Errorf("MarkPolled: build: %w", err)
	}
	if _, err := repo.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("MarkPolled: %w", err)
	}
	return nil
}

/* ───────── feed validators ───────── */

// ValidatorRepo stores HTTP cache validators so conditional requests survive restarts.
// It satisfies fetcher.ValidatorStore.
type ValidatorRepo struct {
	db Querier
}

// NewValidatorRepo creates a ValidatorRepo on db.
func NewValidatorRepo(db Querier) *ValidatorRepo {
	return &ValidatorRepo{db: db}
}

// Get returns the stored validators, or zero validators for an unknown feed.
func (repo *ValidatorRepo) Get(ctx context.Context, feedID string) (entity.FeedValidators, error) {
	query, args, err := psql.Select("etag", "last_modified").From("feed_validators").
		Where(sq.Eq{"feed_id": feedID}).
		ToSql()
	if err != nil {
		return entity.FeedValidators{}, fmt.Errorf("Get: build: %w", err)
	}
	var v entity.FeedValidators
	err = repo.db.QueryRowContext(ctx, query, args...).Scan(&v.ETag, &v.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.FeedValidators{}, nil
	}
	if err != nil {
		return entity.FeedValidators{}, fmt.Errorf("Get: %w", err)
	}
	return v, nil
}

// Put replaces the validators of a feed.
func (repo *ValidatorRepo) Put(ctx context.Context, feedID string, v entity.FeedValidators) error {
	query, args, err := psql.Insert("feed_validators").
		Columns("feed_id", "etag", "last_modified", "updated_at").
		Values(feedID, v.ETag, v.LastModified, sq.Expr("NOW()")).
		Suffix(`ON CONFLICT (feed_id) DO UPDATE SET
	etag = EXCLUDED.etag,
	last_modified = EXCLUDED.last_modified,
	updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("Put: build: %w", err)
	}
	if _, err := repo.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("Put: %w", err)
	}
	return nil
}

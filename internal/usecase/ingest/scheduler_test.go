package ingest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storywire/internal/domain/entity"
	"storywire/internal/infra/adapter/persistence/memory"
	"storywire/internal/usecase/ingest"
)

func feed(id, category string) entity.FeedConfig {
	return entity.FeedConfig{ID: id, URL: "https://" + id + ".example.com/rss", SourceID: id, Category: category, Tier: 2}
}

func ids(feeds []entity.FeedConfig) []string {
	out := make([]string, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, f.ID)
	}
	return out
}

func TestScheduler_EveryCategoryRepresented(t *testing.T) {
	feeds := []entity.FeedConfig{
		feed("pol-1", "politics"), feed("pol-2", "politics"), feed("pol-3", "politics"),
		feed("pol-4", "politics"), feed("pol-5", "politics"),
		feed("tech-1", "tech"),
		feed("world-1", "world"),
	}
	s := ingest.NewScheduler(feeds, memory.NewPollStateRepo(), ingest.SchedulerConfig{BatchSize: 3, Cooldown: time.Minute})

	batch, err := s.FeedsToPoll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"pol-1", "tech-1", "world-1"}, ids(batch))
}

func TestScheduler_FillsFromRemainingCategories(t *testing.T) {
	feeds := []entity.FeedConfig{
		feed("a-1", "alpha"), feed("a-2", "alpha"), feed("a-3", "alpha"),
		feed("b-1", "beta"),
	}
	s := ingest.NewScheduler(feeds, memory.NewPollStateRepo(), ingest.SchedulerConfig{BatchSize: 10, Cooldown: time.Minute})

	batch, err := s.FeedsToPoll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a-1", "b-1", "a-2", "a-3"}, ids(batch))
}

func TestScheduler_RotationPersistsAcrossCalls(t *testing.T) {
	feeds := []entity.FeedConfig{feed("a-1", "alpha"), feed("b-1", "beta"), feed("c-1", "gamma")}
	s := ingest.NewScheduler(feeds, memory.NewPollStateRepo(), ingest.SchedulerConfig{BatchSize: 1, Cooldown: 0})
	ctx := context.Background()

	var picked []string
	for i := 0; i < 4; i++ {
		batch, err := s.FeedsToPoll(ctx)
		require.NoError(t, err)
		require.Len(t, batch, 1)
		picked = append(picked, batch[0].ID)
	}

	assert.Equal(t, []string{"a-1", "b-1", "c-1", "a-1"}, picked)
}

func TestScheduler_Cooldown(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	state := memory.NewPollStateRepo()
	ctx := context.Background()
	require.NoError(t, state.MarkPolled(ctx, "recent", now.Add(-5*time.Minute)))
	require.NoError(t, state.MarkPolled(ctx, "stale", now.Add(-20*time.Minute)))

	feeds := []entity.FeedConfig{feed("recent", "world"), feed("stale", "world"), feed("fresh", "world")}
	s := ingest.NewScheduler(feeds, state, ingest.SchedulerConfig{BatchSize: 10, Cooldown: 15 * time.Minute}).
		WithClock(func() time.Time { return now })

	batch, err := s.FeedsToPoll(ctx)
	require.NoError(t, err)

	// never-polled feeds sort ahead of stale ones
	assert.Equal(t, []string{"fresh", "stale"}, ids(batch))
}

func TestScheduler_MarkPolledRemovesFromNextBatch(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	feeds := []entity.FeedConfig{feed("a-1", "alpha"), feed("a-2", "alpha")}
	s := ingest.NewScheduler(feeds, memory.NewPollStateRepo(), ingest.SchedulerConfig{BatchSize: 1, Cooldown: time.Hour}).
		WithClock(func() time.Time { return now })
	ctx := context.Background()

	first, err := s.FeedsToPoll(ctx)
	require.NoError(t, err)
	require.NoError(t, s.MarkPolled(ctx, first[0].ID, now))

	second, err := s.FeedsToPoll(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)
	require.NoError(t, s.MarkPolled(ctx, second[0].ID, now))

	third, err := s.FeedsToPoll(ctx)
	require.NoError(t, err)
	assert.Empty(t, third)
}

func TestScheduler_NoFeeds(t *testing.T) {
	s := ingest.NewScheduler(nil, memory.NewPollStateRepo(), ingest.DefaultSchedulerConfig())

	batch, err := s.FeedsToPoll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Empty(t, s.Categories())
}

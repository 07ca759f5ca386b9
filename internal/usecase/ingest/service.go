package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"storywire/internal/domain/entity"
	"storywire/internal/infra/fetcher"
	"storywire/internal/observability/logging"
	"storywire/internal/observability/metrics"
	"storywire/internal/observability/slo"
	"storywire/internal/observability/tracing"
	"storywire/internal/repository"
)

// FeedFetcher retrieves one feed. ConditionalFetcher is the production implementation.
type FeedFetcher interface {
	Fetch(ctx context.Context, feed entity.FeedConfig) (*fetcher.FetchResult, error)
}

// Config holds the ingestion cycle settings.
type Config struct {
	// MaxConcurrentFetches bounds in-flight fetches. Further fetches queue.
	MaxConcurrentFetches int
	// FetchTimeout is the deadline of each individual fetch.
	FetchTimeout time.Duration
	// MaxContentRunes is the content length kept per article.
	MaxContentRunes int
}

// DefaultConfig returns 10 concurrent fetches with a 30 second timeout each.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentFetches: 10,
		FetchTimeout:         30 * time.Second,
		MaxContentRunes:      MaxContentRunes,
	}
}

// CycleStats contains statistics about one ingestion cycle.
type CycleStats struct {
	FeedsSelected int
	Fetched       int64
	NotModified   int64
	CircuitOpen   int64
	Failed        int64
	Entries       int64
	Inserted      int64
	Duplicates    int64
	Rejected      int64
	StoreErrors   int64
	Duration      time.Duration
}

// Service runs ingestion cycles: pick due feeds, fetch them concurrently and
// append the normalized articles to the document store.
type Service struct {
	store     repository.Pinger
	articles  repository.ArticleRepository
	scheduler *Scheduler
	fetcher   FeedFetcher
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates an ingestion Service.
func NewService(
	store repository.Pinger,
	articles repository.ArticleRepository,
	scheduler *Scheduler,
	feedFetcher FeedFetcher,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = DefaultConfig().MaxConcurrentFetches
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		articles:  articles,
		scheduler: scheduler,
		fetcher:   feedFetcher,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "ingest")),
		now:       time.Now,
	}
}

// WithClock replaces the service's time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RunCycle performs one ingestion cycle.
//
// A failed store health check aborts the cycle with ErrStoreUnavailable before
// anything is written. Feed failures are isolated: they are logged, counted and
// left to the circuit breaker, never returned. RunCycle returns once every
// selected feed has reached a terminal outcome.
func (s *Service) RunCycle(ctx context.Context) (stats *CycleStats, err error) {
	start := time.Now()
	cycleID := uuid.NewString()
	ctx = logging.ContextWithCycleID(ctx, cycleID)
	logger := s.logger.With(slog.String("cycle_id", cycleID))

	ctx, span := tracing.StartSpan(ctx, "ingest.RunCycle", attribute.String("cycle_id", cycleID))
	defer func() {
		tracing.EndSpan(span, err)
		metrics.RecordIngestCycle(err == nil, time.Since(start))
	}()

	if err := s.store.Ping(ctx); err != nil {
		logger.Error("store health check failed, aborting cycle", slog.Any("error", err))
		return nil, fmt.Errorf("RunCycle: %w: %v", ErrStoreUnavailable, err)
	}

	feeds, err := s.scheduler.FeedsToPoll(ctx)
	if err != nil {
		return nil, fmt.Errorf("RunCycle: %w", err)
	}
	stats = &CycleStats{FeedsSelected: len(feeds)}
	span.SetAttributes(attribute.Int("feeds_selected", len(feeds)))

	sem := make(chan struct{}, s.cfg.MaxConcurrentFetches)
	var eg errgroup.Group
	for _, feed := range feeds {
		eg.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				atomic.AddInt64(&stats.Failed, 1)
				return nil
			}
			defer func() { <-sem }()
			s.pollFeed(ctx, logger, feed, stats)
			return nil
		})
	}
	_ = eg.Wait()

	stats.Duration = time.Since(start)
	metrics.RecordIngestedEntries(int(stats.Inserted), int(stats.Duplicates), int(stats.Rejected))
	slo.UpdateFeedAvailability(int(stats.Fetched+stats.NotModified), stats.FeedsSelected-int(stats.CircuitOpen))
	slo.MarkCycleSucceeded(s.now())

	logger.Info("ingestion cycle completed",
		slog.Int("feeds_selected", stats.FeedsSelected),
		slog.Int64("fetched", stats.Fetched),
		slog.Int64("not_modified", stats.NotModified),
		slog.Int64("circuit_open", stats.CircuitOpen),
		slog.Int64("failed", stats.Failed),
		slog.Int64("entries", stats.Entries),
		slog.Int64("inserted", stats.Inserted),
		slog.Int64("duplicates", stats.Duplicates),
		slog.Int64("rejected", stats.Rejected),
		slog.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// pollFeed fetches one feed under its own timeout and stores its entries.
// The poll attempt is recorded whatever the outcome.
func (s *Service) pollFeed(ctx context.Context, logger *slog.Logger, feed entity.FeedConfig, stats *CycleStats) {
	defer func() {
		if err := s.scheduler.MarkPolled(context.WithoutCancel(ctx), feed.ID, s.now()); err != nil {
			logger.Warn("failed to record poll", slog.String("feed_id", feed.ID), slog.Any("error", err))
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	res, err := s.fetcher.Fetch(fetchCtx, feed)
	cancel()
	if err != nil {
		atomic.AddInt64(&stats.Failed, 1)
		return
	}

	switch res.Status {
	case fetcher.StatusCircuitOpen:
		atomic.AddInt64(&stats.CircuitOpen, 1)
		return
	case fetcher.StatusNotModified:
		atomic.AddInt64(&stats.NotModified, 1)
		return
	}
	atomic.AddInt64(&stats.Fetched, 1)

	now := s.now()
	var inserted, duplicates, rejected int
entries:
	for _, entry := range res.Entries {
		atomic.AddInt64(&stats.Entries, 1)
		art, ok := NormalizeWithLimit(entry, feed, now, s.cfg.MaxContentRunes)
		if !ok {
			rejected++
			continue
		}
		created, err := s.articles.Insert(ctx, art)
		if err != nil {
			atomic.AddInt64(&stats.StoreErrors, 1)
			if errors.Is(err, context.Canceled) {
				break entries
			}
			logger.Warn("failed to store article",
				slog.String("feed_id", feed.ID),
				slog.String("article_id", art.ID),
				slog.Any("error", err))
			continue
		}
		if created {
			inserted++
		} else {
			duplicates++
		}
	}
	atomic.AddInt64(&stats.Inserted, int64(inserted))
	atomic.AddInt64(&stats.Duplicates, int64(duplicates))
	atomic.AddInt64(&stats.Rejected, int64(rejected))

	logger.Debug("feed ingested",
		slog.String("feed_id", feed.ID),
		slog.Int("entries", len(res.Entries)),
		slog.Int("inserted", inserted),
		slog.Int("duplicates", duplicates),
		slog.Int("rejected", rejected),
		slog.Bool("salvaged", res.Salvaged),
		slog.Duration("duration", res.Duration))
}

// Package app assembles the storywire components from the environment.
// It is shared by the worker process and the storyctl CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"storywire/internal/infra/adapter/persistence/memory"
	"storywire/internal/infra/adapter/persistence/postgres"
	"storywire/internal/infra/adapter/persistence/redisstate"
	"storywire/internal/infra/db"
	"storywire/internal/infra/fetcher"
	"storywire/internal/repository"
	"storywire/internal/resilience/circuitbreaker"
	"storywire/internal/resilience/feedbreaker"
)

// Backend names reported by Stores.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Stores holds every repository the pipeline needs.
type Stores struct {
	Backend string

	Articles   ArticleStore
	Stories    repository.StoryRepository
	Summaries  repository.SummaryRepository
	Leases     repository.LeaseRepository
	PollState  repository.PollStateRepository
	Validators fetcher.ValidatorStore
	Breakers   feedbreaker.Store

	// DB is nil on the memory backend.
	DB *sql.DB

	checks  map[string]func(context.Context) error
	closers []func() error
}

// ArticleStore is an article repository that can also report its health.
type ArticleStore interface {
	repository.ArticleRepository
	repository.Pinger
}

// OpenStores connects to Postgres when DATABASE_URL is set and to Redis when
// REDIS_ADDR is set. Without DATABASE_URL every repository is in memory, which
// only suits a single process.
func OpenStores(ctx context.Context, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stores{checks: make(map[string]func(context.Context) error)}

	database, err := db.OpenFromEnv(ctx, logger)
	switch {
	case errors.Is(err, db.ErrMissingDSN):
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		s.useMemory()
	case err != nil:
		return nil, fmt.Errorf("OpenStores: %w", err)
	default:
		s.usePostgres(database)
	}

	redisCfg := redisstate.LoadConfigFromEnv()
	if redisCfg.Enabled() {
		client, err := redisstate.NewClient(ctx, redisCfg)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("OpenStores: %w", err)
		}
		s.Breakers = redisstate.NewBreakerStore(client, redisCfg.KeyPrefix, redisCfg.LockTTL)
		s.PollState = redisstate.NewPollStateRepo(client, redisCfg.KeyPrefix)
		s.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		s.closers = append(s.closers, client.Close)
		logger.Info("shared feed state in redis",
			slog.String("addr", redisCfg.Addr),
			slog.String("key_prefix", redisCfg.KeyPrefix))
	}

	logger.Info("stores opened", slog.String("backend", s.Backend))
	return s, nil
}

// NewMemoryStores returns in-memory stores.
func NewMemoryStores() *Stores {
	s := &Stores{checks: make(map[string]func(context.Context) error)}
	s.useMemory()
	return s
}

func (s *Stores) useMemory() {
	s.Backend = BackendMemory
	s.Articles = memory.NewArticleRepo()
	s.Stories = memory.NewStoryRepo()
	s.Summaries = memory.NewSummaryRepo()
	s.Leases = memory.NewLeaseRepo()
	s.PollState = memory.NewPollStateRepo()
	s.Validators = fetcher.NewMemoryValidatorStore()
	s.Breakers = feedbreaker.NewMemoryStore()
}

func (s *Stores) usePostgres(database *sql.DB) {
	q := circuitbreaker.NewDBCircuitBreaker(database, circuitbreaker.DBConfig())
	s.Backend = BackendPostgres
	s.DB = database
	s.Articles = postgres.NewArticleRepo(q)
	s.Stories = postgres.NewStoryRepo(q)
	s.Summaries = postgres.NewSummaryRepo(q)
	s.Leases = postgres.NewLeaseRepo(q)
	s.PollState = postgres.NewPollStateRepo(q)
	s.Validators = postgres.NewValidatorRepo(q)
	s.Breakers = feedbreaker.NewMemoryStore()
	s.checks["postgres"] = q.Ping
	s.closers = append(s.closers, database.Close)
}

// Checks returns the readiness checks of the connected backends by name.
func (s *Stores) Checks() map[string]func(context.Context) error {
	out := make(map[string]func(context.Context) error, len(s.checks))
	for k, v := range s.checks {
		out[k] = v
	}
	return out
}

// Close releases every connection. It is safe to call more than once.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

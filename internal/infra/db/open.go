// Package db opens the PostgreSQL pool behind the article and story stores
// and owns their schema.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"storywire/internal/pkg/config"
)

// ErrMissingDSN is returned when DATABASE_URL is empty.
var ErrMissingDSN = errors.New("DATABASE_URL not set")

const pingTimeout = 5 * time.Second

// ConnectionConfig sizes the pool. Ingestion fetches concurrently and every
// change-feed consumer holds a connection per in-flight document, so the
// defaults leave headroom over FETCH_MAX_CONCURRENT + CHANGEFEED_PARALLELISM.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// LoadConnectionConfigFromEnv reads DB_MAX_OPEN_CONNS, DB_MAX_IDLE_CONNS,
// DB_CONN_MAX_LIFETIME and DB_CONN_MAX_IDLE_TIME. Invalid values fall back to
// their defaults and are reported on the returned collector. Idle connections
// are capped at the open limit.
func LoadConnectionConfigFromEnv() (ConnectionConfig, *config.Collector) {
	cfg := DefaultConnectionConfig()
	c := &config.Collector{}

	cfg.MaxOpenConns = c.Int("DB_MAX_OPEN_CONNS", cfg.MaxOpenConns, config.ValidatePositiveInt)
	cfg.MaxIdleConns = c.Int("DB_MAX_IDLE_CONNS", cfg.MaxIdleConns, config.ValidatePositiveInt)
	cfg.ConnMaxLifetime = c.Duration("DB_CONN_MAX_LIFETIME", cfg.ConnMaxLifetime, config.ValidatePositiveDuration)
	cfg.ConnMaxIdleTime = c.Duration("DB_CONN_MAX_IDLE_TIME", cfg.ConnMaxIdleTime, config.ValidatePositiveDuration)
	cfg.MaxIdleConns = min(cfg.MaxIdleConns, cfg.MaxOpenConns)
	return cfg, c
}

// OpenFromEnv opens the pool described by DATABASE_URL and the DB_* variables.
func OpenFromEnv(ctx context.Context, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, c := LoadConnectionConfigFromEnv()
	for _, w := range c.Warnings {
		logger.Warn("Configuration fallback applied", slog.String("warning", w))
	}
	return Open(ctx, os.Getenv("DATABASE_URL"), cfg, logger)
}

// Open creates a pgx-backed pool, applies cfg and pings the server.
func Open(ctx context.Context, dsn string, cfg ConnectionConfig, logger *slog.Logger) (*sql.DB, error) {
	if dsn == "" {
		return nil, ErrMissingDSN
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("Open: ping: %w", err)
	}

	logger.Info("story store connected",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime))
	return pool, nil
}

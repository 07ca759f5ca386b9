package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Execer is the subset of *sql.DB used by migrations.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// upStatements are applied in order; every statement is idempotent.
var upStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE SEQUENCE IF NOT EXISTS articles_seq`,
	`CREATE SEQUENCE IF NOT EXISTS stories_seq`,

	`CREATE TABLE IF NOT EXISTS articles (
    id                  TEXT PRIMARY KEY,
    partition_key       DATE NOT NULL,
    source              TEXT NOT NULL,
    source_tier         INTEGER NOT NULL,
    feed_id             TEXT NOT NULL,
    title               TEXT NOT NULL,
    description         TEXT NOT NULL DEFAULT '',
    content             TEXT NOT NULL DEFAULT '',
    url                 TEXT NOT NULL,
    published_at        TIMESTAMPTZ NOT NULL,
    fetched_at          TIMESTAMPTZ NOT NULL,
    category            TEXT NOT NULL,
    language            TEXT NOT NULL,
    entities            TEXT[],
    story_fingerprint   TEXT NOT NULL,
    embedding           vector,
    processed           BOOLEAN NOT NULL DEFAULT FALSE,
    story_id            TEXT,
    processing_attempts INTEGER NOT NULL DEFAULT 0,
    seq                 BIGINT NOT NULL DEFAULT nextval('articles_seq')
)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_seq ON articles(seq)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_partition_key ON articles(partition_key)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_unprocessed ON articles(seq) WHERE processed = FALSE`,

	`CREATE TABLE IF NOT EXISTS stories (
    id                   TEXT PRIMARY KEY,
    category             TEXT NOT NULL,
    event_fingerprint    TEXT NOT NULL,
    title                TEXT NOT NULL,
    status               VARCHAR(16) NOT NULL,
    verification_level   INTEGER NOT NULL,
    confidence_score     INTEGER NOT NULL,
    importance_score     INTEGER NOT NULL,
    source_articles      JSONB NOT NULL DEFAULT '[]',
    first_seen           TIMESTAMPTZ NOT NULL,
    last_updated         TIMESTAMPTZ NOT NULL,
    update_count         INTEGER NOT NULL DEFAULT 0,
    breaking_news        BOOLEAN NOT NULL DEFAULT FALSE,
    breaking_detected_at TIMESTAMPTZ,
    centroid             vector,
    embedding_count      INTEGER NOT NULL DEFAULT 0,
    version              BIGINT NOT NULL DEFAULT 1,
    seq                  BIGINT NOT NULL DEFAULT nextval('stories_seq')
)`,
	`CREATE INDEX IF NOT EXISTS idx_stories_seq ON stories(seq)`,
	`CREATE INDEX IF NOT EXISTS idx_stories_category_updated ON stories(category, last_updated DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_stories_fingerprint ON stories(category, event_fingerprint, last_updated DESC)`,

	`CREATE TABLE IF NOT EXISTS story_summaries (
    story_id      TEXT PRIMARY KEY REFERENCES stories(id) ON DELETE CASCADE,
    text          TEXT NOT NULL,
    source_count  INTEGER NOT NULL,
    model         TEXT NOT NULL,
    input_tokens  BIGINT NOT NULL DEFAULT 0,
    output_tokens BIGINT NOT NULL DEFAULT 0,
    generated_at  TIMESTAMPTZ NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS changefeed_leases (
    group_name TEXT PRIMARY KEY,
    owner      TEXT NOT NULL,
    checkpoint BIGINT NOT NULL DEFAULT 0,
    expires_at TIMESTAMPTZ NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS feed_poll_state (
    feed_id   TEXT PRIMARY KEY,
    last_poll TIMESTAMPTZ NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS feed_validators (
    feed_id       TEXT PRIMARY KEY,
    etag          TEXT NOT NULL DEFAULT '',
    last_modified TEXT NOT NULL DEFAULT '',
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
}

// downStatements drop everything MigrateUp creates, dependents first.
var downStatements = []string{
	`DROP TABLE IF EXISTS feed_validators`,
	`DROP TABLE IF EXISTS feed_poll_state`,
	`DROP TABLE IF EXISTS changefeed_leases`,
	`DROP TABLE IF EXISTS story_summaries`,
	`DROP TABLE IF EXISTS stories`,
	`DROP TABLE IF EXISTS articles`,
	`DROP SEQUENCE IF EXISTS stories_seq`,
	`DROP SEQUENCE IF EXISTS articles_seq`,
}

// MigrateUp creates the schema. It stops at the first failing statement.
func MigrateUp(ctx context.Context, db Execer) error {
	for i, stmt := range upStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("MigrateUp: step %d: %w", i+1, err)
		}
	}
	return nil
}

// MigrateDown drops the schema. The vector extension is left installed.
func MigrateDown(ctx context.Context, db Execer) error {
	for i, stmt := range downStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("MigrateDown: step %d: %w", i+1, err)
		}
	}
	return nil
}

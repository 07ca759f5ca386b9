// Package worker holds the ingestion worker's runtime configuration, its
// Prometheus metrics and its health endpoints.
package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"storywire/internal/pkg/config"
)

// WorkerConfig holds the configuration of the ingestion worker process.
//
// Environment variables:
//   - CRON_SCHEDULE: cron expression that triggers an ingestion cycle (default "*/5 * * * *")
//   - WORKER_TIMEZONE: IANA timezone of the schedule (default "UTC")
//   - FEEDS_FILE: path of the feed list YAML (default "configs/feeds.yaml")
//   - INGEST_BATCH_SIZE: feeds per cycle, 1-500 (default 20)
//   - FEED_COOLDOWN: minimum time between polls of one feed (default 15m)
//   - FETCH_MAX_CONCURRENT: concurrent fetches, 1-100 (default 10)
//   - FETCH_TIMEOUT: per-fetch deadline, 1s-5m (default 30s)
//   - CYCLE_TIMEOUT: whole-cycle deadline, 1m-1h (default 10m)
//   - FEED_BREAKER_THRESHOLD: consecutive failures that open a feed circuit, 1-100 (default 5)
//   - FEED_BREAKER_TIMEOUT: time before an open circuit is probed (default 5m)
//   - CHANGEFEED_BATCH_SIZE: documents per change-feed pass, 1-1000 (default 100)
//   - CHANGEFEED_PARALLELISM: documents handled concurrently, 1-64 (default 4)
//   - CHANGEFEED_POLL_INTERVAL: idle wait between passes (default 1s)
//   - CHANGEFEED_LEASE_TTL: consumer lease duration (default 30s)
//   - WORKER_HEALTH_PORT: 1024-65535 (default 9091)
//   - WORKER_METRICS_PORT: 1024-65535 (default 9090)
type WorkerConfig struct {
	CronSchedule string
	Timezone     string
	FeedsFile    string

	BatchSize            int
	FeedCooldown         time.Duration
	MaxConcurrentFetches int
	FetchTimeout         time.Duration
	CycleTimeout         time.Duration

	BreakerThreshold int
	BreakerTimeout   time.Duration

	ChangeFeedBatchSize    int
	ChangeFeedParallelism  int
	ChangeFeedPollInterval time.Duration
	ChangeFeedLeaseTTL     time.Duration

	HealthPort  int
	MetricsPort int
}

// DefaultConfig returns a WorkerConfig with production defaults.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		CronSchedule:           "*/5 * * * *",
		Timezone:               "UTC",
		FeedsFile:              "configs/feeds.yaml",
		BatchSize:              20,
		FeedCooldown:           15 * time.Minute,
		MaxConcurrentFetches:   10,
		FetchTimeout:           30 * time.Second,
		CycleTimeout:           10 * time.Minute,
		BreakerThreshold:       5,
		BreakerTimeout:         5 * time.Minute,
		ChangeFeedBatchSize:    100,
		ChangeFeedParallelism:  4,
		ChangeFeedPollInterval: time.Second,
		ChangeFeedLeaseTTL:     30 * time.Second,
		HealthPort:             9091,
		MetricsPort:            9090,
	}
}

// Validate checks every field and returns all failures joined together.
func (c *WorkerConfig) Validate() error {
	var errs []error
	check := func(field string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	check("cron schedule", config.ValidateCronSchedule(c.CronSchedule))
	check("timezone", config.ValidateTimezone(c.Timezone))
	if c.FeedsFile == "" {
		errs = append(errs, errors.New("feeds file: must not be empty"))
	}
	check("batch size", config.ValidateIntRange(c.BatchSize, 1, 500))
	check("feed cooldown", config.ValidatePositiveDuration(c.FeedCooldown))
	check("max concurrent fetches", config.ValidateIntRange(c.MaxConcurrentFetches, 1, 100))
	check("fetch timeout", config.ValidateDuration(c.FetchTimeout, time.Second, 5*time.Minute))
	check("cycle timeout", config.ValidateDuration(c.CycleTimeout, time.Minute, time.Hour))
	check("breaker threshold", config.ValidateIntRange(c.BreakerThreshold, 1, 100))
	check("breaker timeout", config.ValidatePositiveDuration(c.BreakerTimeout))
	check("changefeed batch size", config.ValidateIntRange(c.ChangeFeedBatchSize, 1, 1000))
	check("changefeed parallelism", config.ValidateIntRange(c.ChangeFeedParallelism, 1, 64))
	check("changefeed poll interval", config.ValidatePositiveDuration(c.ChangeFeedPollInterval))
	check("changefeed lease ttl", config.ValidatePositiveDuration(c.ChangeFeedLeaseTTL))
	check("health port", config.ValidateIntRange(c.HealthPort, 1024, 65535))
	check("metrics port", config.ValidateIntRange(c.MetricsPort, 1024, 65535))
	if c.HealthPort == c.MetricsPort {
		errs = append(errs, fmt.Errorf("health and metrics ports must differ, both are %d", c.HealthPort))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// LoadConfigFromEnv overlays the environment on DefaultConfig.
//
// Loading is fail-open: an invalid value is logged, counted in metrics and
// replaced by its default. The returned configuration is always usable.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := DefaultConfig()
	c := &config.Collector{}

	cfg.CronSchedule = c.String("CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule)
	cfg.Timezone = c.String("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.FeedsFile = config.LoadEnvString("FEEDS_FILE", cfg.FeedsFile)

	cfg.BatchSize = c.Int("INGEST_BATCH_SIZE", cfg.BatchSize, intRange(1, 500))
	cfg.FeedCooldown = c.Duration("FEED_COOLDOWN", cfg.FeedCooldown, config.ValidatePositiveDuration)
	cfg.MaxConcurrentFetches = c.Int("FETCH_MAX_CONCURRENT", cfg.MaxConcurrentFetches, intRange(1, 100))
	cfg.FetchTimeout = c.Duration("FETCH_TIMEOUT", cfg.FetchTimeout, durationRange(time.Second, 5*time.Minute))
	cfg.CycleTimeout = c.Duration("CYCLE_TIMEOUT", cfg.CycleTimeout, durationRange(time.Minute, time.Hour))

	cfg.BreakerThreshold = c.Int("FEED_BREAKER_THRESHOLD", cfg.BreakerThreshold, intRange(1, 100))
	cfg.BreakerTimeout = c.Duration("FEED_BREAKER_TIMEOUT", cfg.BreakerTimeout, config.ValidatePositiveDuration)

	cfg.ChangeFeedBatchSize = c.Int("CHANGEFEED_BATCH_SIZE", cfg.ChangeFeedBatchSize, intRange(1, 1000))
	cfg.ChangeFeedParallelism = c.Int("CHANGEFEED_PARALLELISM", cfg.ChangeFeedParallelism, intRange(1, 64))
	cfg.ChangeFeedPollInterval = c.Duration("CHANGEFEED_POLL_INTERVAL", cfg.ChangeFeedPollInterval, config.ValidatePositiveDuration)
	cfg.ChangeFeedLeaseTTL = c.Duration("CHANGEFEED_LEASE_TTL", cfg.ChangeFeedLeaseTTL, config.ValidatePositiveDuration)

	cfg.HealthPort = c.Int("WORKER_HEALTH_PORT", cfg.HealthPort, intRange(1024, 65535))
	cfg.MetricsPort = c.Int("WORKER_METRICS_PORT", cfg.MetricsPort, intRange(1024, 65535))

	for _, warning := range c.Warnings {
		logger.Warn("Configuration fallback applied", slog.String("warning", warning))
	}
	if metrics != nil {
		metrics.Report(c)
	}
	return &cfg, nil
}

func intRange(lo, hi int) func(int) error {
	return func(v int) error { return config.ValidateIntRange(v, lo, hi) }
}

func durationRange(lo, hi time.Duration) func(time.Duration) error {
	return func(d time.Duration) error { return config.ValidateDuration(d, lo, hi) }
}

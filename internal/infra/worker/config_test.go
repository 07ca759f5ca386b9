package worker

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *WorkerMetrics {
	t.Helper()
	return NewWorkerMetricsWith(promauto.With(prometheus.NewRegistry()))
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

/* ───────── defaults & validation ───────── */

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "*/5 * * * *", cfg.CronSchedule)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "configs/feeds.yaml", cfg.FeedsFile)
	assert.Equal(t, 20, cfg.BatchSize)
	assert.Equal(t, 15*time.Minute, cfg.FeedCooldown)
	assert.Equal(t, 10, cfg.MaxConcurrentFetches)
	assert.Equal(t, 5, cfg.BreakerThreshold)
	assert.Equal(t, 100, cfg.ChangeFeedBatchSize)
	assert.Equal(t, 9091, cfg.HealthPort)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultConfig_ReturnsFreshValue(t *testing.T) {
	a := DefaultConfig()
	a.BatchSize = 1
	assert.Equal(t, 20, DefaultConfig().BatchSize)
}

func TestWorkerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*WorkerConfig)
		wantErr string
	}{
		{"valid defaults", func(*WorkerConfig) {}, ""},
		{"bad cron", func(c *WorkerConfig) { c.CronSchedule = "every minute" }, "cron schedule"},
		{"empty cron", func(c *WorkerConfig) { c.CronSchedule = "" }, "cron schedule"},
		{"bad timezone", func(c *WorkerConfig) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"empty feeds file", func(c *WorkerConfig) { c.FeedsFile = "" }, "feeds file"},
		{"batch size zero", func(c *WorkerConfig) { c.BatchSize = 0 }, "batch size"},
		{"batch size too large", func(c *WorkerConfig) { c.BatchSize = 501 }, "batch size"},
		{"cooldown zero", func(c *WorkerConfig) { c.FeedCooldown = 0 }, "feed cooldown"},
		{"fetches too many", func(c *WorkerConfig) { c.MaxConcurrentFetches = 101 }, "max concurrent fetches"},
		{"fetch timeout too short", func(c *WorkerConfig) { c.FetchTimeout = 500 * time.Millisecond }, "fetch timeout"},
		{"cycle timeout too long", func(c *WorkerConfig) { c.CycleTimeout = 2 * time.Hour }, "cycle timeout"},
		{"breaker threshold zero", func(c *WorkerConfig) { c.BreakerThreshold = 0 }, "breaker threshold"},
		{"changefeed parallelism", func(c *WorkerConfig) { c.ChangeFeedParallelism = 65 }, "changefeed parallelism"},
		{"lease ttl negative", func(c *WorkerConfig) { c.ChangeFeedLeaseTTL = -time.Second }, "changefeed lease ttl"},
		{"health port low", func(c *WorkerConfig) { c.HealthPort = 80 }, "health port"},
		{"metrics port high", func(c *WorkerConfig) { c.MetricsPort = 70000 }, "metrics port"},
		{"ports collide", func(c *WorkerConfig) { c.MetricsPort = c.HealthPort }, "must differ"},
		{"lower boundaries", func(c *WorkerConfig) {
			c.BatchSize, c.MaxConcurrentFetches, c.HealthPort = 1, 1, 1024
			c.FetchTimeout, c.CycleTimeout = time.Second, time.Minute
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validation failed")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWorkerConfig_Validate_ReportsEveryField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CronSchedule = "nope"
	cfg.BatchSize = 0
	cfg.HealthPort = 1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cron schedule")
	assert.Contains(t, err.Error(), "batch size")
	assert.Contains(t, err.Error(), "health port")
}

/* ───────── environment loading ───────── */

func TestLoadConfigFromEnv_AllValid(t *testing.T) {
	t.Setenv("CRON_SCHEDULE", "0 * * * *")
	t.Setenv("WORKER_TIMEZONE", "Europe/London")
	t.Setenv("FEEDS_FILE", "/etc/storywire/feeds.yaml")
	t.Setenv("INGEST_BATCH_SIZE", "50")
	t.Setenv("FEED_COOLDOWN", "30m")
	t.Setenv("FETCH_MAX_CONCURRENT", "20")
	t.Setenv("FETCH_TIMEOUT", "10s")
	t.Setenv("CHANGEFEED_PARALLELISM", "8")
	t.Setenv("WORKER_HEALTH_PORT", "8081")

	logger, buf := bufferLogger()
	metrics := newTestMetrics(t)
	cfg, err := LoadConfigFromEnv(logger, metrics)
	require.NoError(t, err)

	assert.Equal(t, "0 * * * *", cfg.CronSchedule)
	assert.Equal(t, "Europe/London", cfg.Timezone)
	assert.Equal(t, "/etc/storywire/feeds.yaml", cfg.FeedsFile)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 30*time.Minute, cfg.FeedCooldown)
	assert.Equal(t, 20, cfg.MaxConcurrentFetches)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 8, cfg.ChangeFeedParallelism)
	assert.Equal(t, 8081, cfg.HealthPort)

	assert.NotContains(t, buf.String(), "fallback")
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.FallbackActive))
	assert.Greater(t, testutil.ToFloat64(metrics.LoadTimestamp), float64(0))
}

func TestLoadConfigFromEnv_Unset(t *testing.T) {
	cfg, err := LoadConfigFromEnv(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadConfigFromEnv_InvalidFallsBack(t *testing.T) {
	tests := []struct {
		key   string
		value string
		check func(t *testing.T, cfg *WorkerConfig)
	}{
		{"CRON_SCHEDULE", "invalid", func(t *testing.T, c *WorkerConfig) { assert.Equal(t, "*/5 * * * *", c.CronSchedule) }},
		{"WORKER_TIMEZONE", "Nowhere/City", func(t *testing.T, c *WorkerConfig) { assert.Equal(t, "UTC", c.Timezone) }},
		{"INGEST_BATCH_SIZE", "0", func(t *testing.T, c *WorkerConfig) { assert.Equal(t, 20, c.BatchSize) }},
		{"INGEST_BATCH_SIZE", "abc", func(t *testing.T, c *WorkerConfig) { assert.Equal(t, 20, c.BatchSize) }},
		{"FETCH_TIMEOUT", "10m", func(t *testing.T, c *WorkerConfig) { assert.Equal(t, 30*time.Second, c.FetchTimeout) }},
		{"FEED_BREAKER_THRESHOLD", "-3", func(t *testing.T, c *WorkerConfig) { assert.Equal(t, 5, c.BreakerThreshold) }},
		{"CHANGEFEED_LEASE_TTL", "soon", func(t *testing.T, c *WorkerConfig) { assert.Equal(t, 30*time.Second, c.ChangeFeedLeaseTTL) }},
		{"WORKER_METRICS_PORT", "80", func(t *testing.T, c *WorkerConfig) { assert.Equal(t, 9090, c.MetricsPort) }},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			logger, buf := bufferLogger()
			metrics := newTestMetrics(t)

			cfg, err := LoadConfigFromEnv(logger, metrics)
			require.NoError(t, err)
			tt.check(t, cfg)

			assert.Contains(t, buf.String(), "Configuration fallback applied")
			assert.Contains(t, buf.String(), tt.key)
			assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbackActive))
			assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues(tt.key)))
		})
	}
}

func TestLoadConfigFromEnv_PartiallyValid(t *testing.T) {
	t.Setenv("INGEST_BATCH_SIZE", "40")
	t.Setenv("FETCH_MAX_CONCURRENT", "1000")

	metrics := newTestMetrics(t)
	cfg, err := LoadConfigFromEnv(nil, metrics)
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.BatchSize)
	assert.Equal(t, 10, cfg.MaxConcurrentFetches)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ValidationErrorsTotal.WithLabelValues("FETCH_MAX_CONCURRENT")))
	assert.NoError(t, cfg.Validate())
}

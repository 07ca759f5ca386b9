package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"storywire/internal/pkg/config"
)

// WorkerMetrics provides Prometheus metrics for the ingestion worker.
// It embeds ConfigMetrics for configuration monitoring and adds metrics for
// the scheduled ingestion cycle.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp
//   - worker_config_validation_errors_total{field}
//   - worker_config_fallbacks_total{field}
//   - worker_config_fallback_active
//
// Cycle metrics:
//   - worker_cycle_runs_total{status}: runs by status (success, failure)
//   - worker_cycle_duration_seconds: duration histogram of one cycle
//   - worker_cycle_feeds_processed_total: feeds polled across all cycles
//   - worker_cycle_articles_inserted_total: new articles stored across all cycles
//   - worker_cycle_last_success_timestamp: Unix time of the last successful cycle
type WorkerMetrics struct {
	*config.ConfigMetrics

	CycleRunsTotal             *prometheus.CounterVec
	CycleDurationSeconds       prometheus.Histogram
	CycleFeedsProcessedTotal   prometheus.Counter
	CycleArticlesInsertedTotal prometheus.Counter
	CycleLastSuccessTimestamp  prometheus.Gauge
}

// NewWorkerMetrics registers the worker metrics with the default registry.
func NewWorkerMetrics() *WorkerMetrics {
	return NewWorkerMetricsWith(promauto.With(prometheus.DefaultRegisterer))
}

// NewWorkerMetricsWith registers the worker metrics through factory.
// Tests pass a factory bound to a private registry.
func NewWorkerMetricsWith(factory promauto.Factory) *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetricsWith(factory, "worker"),

		CycleRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_cycle_runs_total",
			Help: "Total number of ingestion cycles by status (success/failure)",
		}, []string{"status"}),

		CycleDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_cycle_duration_seconds",
			Help:    "Duration of ingestion cycles in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800},
		}),

		CycleFeedsProcessedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "worker_cycle_feeds_processed_total",
			Help: "Total number of feeds polled across all ingestion cycles",
		}),

		CycleArticlesInsertedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "worker_cycle_articles_inserted_total",
			Help: "Total number of new articles stored across all ingestion cycles",
		}),

		CycleLastSuccessTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "worker_cycle_last_success_timestamp",
			Help: "Unix timestamp of the last successful ingestion cycle",
		}),
	}
}

// RecordJobRun increments the run counter; status is "success" or "failure".
func (m *WorkerMetrics) RecordJobRun(status string) {
	m.CycleRunsTotal.WithLabelValues(status).Inc()
}

// RecordJobDuration observes one cycle duration in seconds.
func (m *WorkerMetrics) RecordJobDuration(seconds float64) {
	m.CycleDurationSeconds.Observe(seconds)
}

// RecordFeedsProcessed adds count polled feeds.
func (m *WorkerMetrics) RecordFeedsProcessed(count int) {
	m.CycleFeedsProcessedTotal.Add(float64(count))
}

// RecordArticlesInserted adds count stored articles.
func (m *WorkerMetrics) RecordArticlesInserted(count int) {
	m.CycleArticlesInsertedTotal.Add(float64(count))
}

// RecordLastSuccess stamps the current time as the last successful cycle.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.CycleLastSuccessTimestamp.SetToCurrentTime()
}

package summarizer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SummaryMetricsRecorder receives one observation per generated summary.
// Adapters take it as an interface so tests can count calls without a registry.
type SummaryMetricsRecorder interface {
	RecordLength(length int)
	RecordLimitExceeded()
	// RecordCompliance feeds the within-limit ratio gauge.
	RecordCompliance(withinLimit bool)
	RecordDuration(duration time.Duration)
	RecordTokens(input, output int64)
}

// PrometheusSummaryMetrics is the production SummaryMetricsRecorder.
type PrometheusSummaryMetrics struct {
	length     prometheus.Histogram
	exceeded   prometheus.Counter
	compliance prometheus.Gauge
	duration   prometheus.Histogram
	tokens     *prometheus.CounterVec

	total  atomic.Int64
	within atomic.Int64
}

var (
	defaultMetrics     *PrometheusSummaryMetrics
	defaultMetricsOnce sync.Once
)

// NewPrometheusSummaryMetrics returns the recorder registered on the default
// registry. Both provider adapters share it.
func NewPrometheusSummaryMetrics() *PrometheusSummaryMetrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewPrometheusSummaryMetricsWith(promauto.With(prometheus.DefaultRegisterer))
	})
	return defaultMetrics
}

// NewPrometheusSummaryMetricsWith registers the summary metrics through factory.
// Tests pass a factory on a private registry.
func NewPrometheusSummaryMetricsWith(factory promauto.Factory) *PrometheusSummaryMetrics {
	return &PrometheusSummaryMetrics{
		length: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "story_summary_length_characters",
			Help:    "Length of generated story summaries in runes",
			Buckets: []float64{100, 300, 500, 700, 900, 1100, 1500, 2000},
		}),
		exceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "story_summary_limit_exceeded_total",
			Help: "Story summaries longer than the configured character limit",
		}),
		compliance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "story_summary_limit_compliance_ratio",
			Help: "Share of story summaries within the character limit since start",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "story_summary_provider_duration_seconds",
			Help:    "Provider latency of one summarization call",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "story_summary_tokens_total",
			Help: "Provider tokens consumed by summarization",
		}, []string{"direction"}),
	}
}

func (p *PrometheusSummaryMetrics) RecordLength(length int) {
	p.length.Observe(float64(length))
}

func (p *PrometheusSummaryMetrics) RecordLimitExceeded() {
	p.exceeded.Inc()
}

func (p *PrometheusSummaryMetrics) RecordCompliance(withinLimit bool) {
	total := p.total.Add(1)
	within := p.within.Load()
	if withinLimit {
		within = p.within.Add(1)
	}
	p.compliance.Set(float64(within) / float64(total))
}

func (p *PrometheusSummaryMetrics) RecordDuration(duration time.Duration) {
	p.duration.Observe(duration.Seconds())
}

func (p *PrometheusSummaryMetrics) RecordTokens(input, output int64) {
	p.tokens.WithLabelValues("input").Add(float64(input))
	p.tokens.WithLabelValues("output").Add(float64(output))
}

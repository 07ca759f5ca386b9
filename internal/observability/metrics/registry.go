// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion metrics track feed polling and article intake
var (
	// FeedPollsTotal counts feed poll attempts by result
	FeedPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_polls_total",
			Help: "Total number of feed poll attempts",
		},
		[]string{"status"}, // status: fetched, not_modified, circuit_open, failed
	)

	// FeedFetchDuration measures the time taken to fetch and parse one feed
	FeedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_fetch_duration_seconds",
			Help:    "Time taken to fetch and parse a feed",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)

	// ArticlesIngestedTotal counts normalized entries by outcome
	ArticlesIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "articles_ingested_total",
			Help: "Total number of feed entries processed by the ingestion worker",
		},
		[]string{"result"}, // result: inserted, duplicate, rejected
	)

	// IngestCycleDuration measures a whole ingestion cycle
	IngestCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_cycle_duration_seconds",
			Help:    "Duration of one ingestion cycle",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	// IngestCyclesTotal counts ingestion cycles by result
	IngestCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_cycles_total",
			Help: "Total number of ingestion cycles",
		},
		[]string{"result"}, // result: success, aborted
	)
)

// Feed circuit breaker metrics
var (
	// FeedCircuitTransitionsTotal counts per-feed breaker transitions
	FeedCircuitTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_circuit_transitions_total",
			Help: "Total number of feed circuit breaker transitions",
		},
		[]string{"to"}, // to: open, half_open, closed
	)

	// DependencyCircuitState reports the shared breakers guarding the database and
	// AI providers: 0 closed, 1 half-open, 2 open
	DependencyCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dependency_circuit_state",
			Help: "State of dependency circuit breakers (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	// FeedCircuitsOpen reports the number of feeds whose circuit is open
	FeedCircuitsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_circuits_open",
			Help: "Number of feeds with an open circuit",
		},
	)
)

// Clustering metrics track the story grouping engine
var (
	// ClusteringOutcomesTotal counts article clustering outcomes
	ClusteringOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clustering_outcomes_total",
			Help: "Total number of articles processed by the clustering engine",
		},
		[]string{"outcome", "strategy"},
	)

	// ClusteringDuration measures the time taken to cluster one article
	ClusteringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clustering_duration_seconds",
			Help:    "Time taken to cluster one article",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	// StoryConflictRetriesTotal counts optimistic concurrency retries on story writes
	StoryConflictRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "story_conflict_retries_total",
			Help: "Total number of story write retries caused by version conflicts",
		},
	)

	// StoryStatusTransitionsTotal counts story status changes by target status
	StoryStatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_status_transitions_total",
			Help: "Total number of story status transitions",
		},
		[]string{"status"},
	)
)

// Change feed metrics
var (
	// ChangeFeedItemsTotal counts change-feed items handled per consumer group
	ChangeFeedItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_feed_items_total",
			Help: "Total number of change-feed items handled",
		},
		[]string{"group", "result"}, // result: success, failure
	)

	// ChangeFeedCheckpoint reports the committed checkpoint per consumer group
	ChangeFeedCheckpoint = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "change_feed_checkpoint",
			Help: "Last committed change-feed sequence per consumer group",
		},
		[]string{"group"},
	)
)

// AI metrics track summarization and embedding calls
var (
	// SummariesGeneratedTotal counts story summary generation attempts
	SummariesGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_summaries_generated_total",
			Help: "Total number of story summary generation attempts",
		},
		[]string{"status"}, // status: success, failure
	)

	// SummarizationDuration measures summary generation latency
	SummarizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "story_summarization_duration_seconds",
			Help:    "Time taken to generate a story summary",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// EmbeddingRequestsTotal counts embedding requests by result
	EmbeddingRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_requests_total",
			Help: "Total number of embedding requests",
		},
		[]string{"status"},
	)

	// BreakingNotificationsTotal counts breaking-news webhook deliveries
	BreakingNotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breaking_notifications_total",
			Help: "Total number of breaking-news notifications by channel and result",
		},
		[]string{"channel", "status"},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)
)

package metrics

import (
	"time"
)

// RecordFeedPoll records the result of one feed poll and how long it took.
// Status is one of "fetched", "not_modified", "circuit_open" or "failed".
func RecordFeedPoll(status string, duration time.Duration) {
	FeedPollsTotal.WithLabelValues(status).Inc()
	FeedFetchDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordIngestedEntries records the breakdown of entries handled in a cycle.
func RecordIngestedEntries(inserted, duplicates, rejected int) {
	if inserted > 0 {
		ArticlesIngestedTotal.WithLabelValues("inserted").Add(float64(inserted))
	}
	if duplicates > 0 {
		ArticlesIngestedTotal.WithLabelValues("duplicate").Add(float64(duplicates))
	}
	if rejected > 0 {
		ArticlesIngestedTotal.WithLabelValues("rejected").Add(float64(rejected))
	}
}

// RecordIngestCycle records a finished ingestion cycle.
func RecordIngestCycle(success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "aborted"
	}
	IngestCyclesTotal.WithLabelValues(result).Inc()
	IngestCycleDuration.Observe(duration.Seconds())
}

// RecordCircuitTransition records a feed circuit breaker state change.
// To is one of "open", "half_open" or "closed".
func RecordCircuitTransition(to string) {
	FeedCircuitTransitionsTotal.WithLabelValues(to).Inc()
}

// SetDependencyCircuitState records the state of a named dependency breaker.
func SetDependencyCircuitState(name string, state int) {
	DependencyCircuitState.WithLabelValues(name).Set(float64(state))
}

// UpdateOpenCircuits sets the number of currently open feed circuits.
func UpdateOpenCircuits(count int) {
	FeedCircuitsOpen.Set(float64(count))
}

// RecordClusteringOutcome records what happened to one article in the clustering engine.
// Strategy is empty for outcomes that never ran a matcher.
func RecordClusteringOutcome(outcome, strategy string, duration time.Duration) {
	if strategy == "" {
		strategy = "none"
	}
	ClusteringOutcomesTotal.WithLabelValues(outcome, strategy).Inc()
	ClusteringDuration.Observe(duration.Seconds())
}

// RecordStoryConflictRetry records one optimistic concurrency retry.
func RecordStoryConflictRetry() {
	StoryConflictRetriesTotal.Inc()
}

// RecordStoryStatus records a story reaching a new status.
func RecordStoryStatus(status string) {
	StoryStatusTransitionsTotal.WithLabelValues(status).Inc()
}

// RecordChangeFeedItem records the result of handling one change-feed item.
func RecordChangeFeedItem(group string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	ChangeFeedItemsTotal.WithLabelValues(group, result).Inc()
}

// UpdateChangeFeedCheckpoint sets the committed checkpoint of a consumer group.
func UpdateChangeFeedCheckpoint(group string, checkpoint int64) {
	ChangeFeedCheckpoint.WithLabelValues(group).Set(float64(checkpoint))
}

// RecordStorySummarized records the result of a summary generation.
func RecordStorySummarized(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	SummariesGeneratedTotal.WithLabelValues(status).Inc()
	SummarizationDuration.Observe(duration.Seconds())
}

// RecordEmbeddingRequest records the result of an embedding call.
func RecordEmbeddingRequest(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	EmbeddingRequestsTotal.WithLabelValues(status).Inc()
}

// RecordBreakingNotification records the result of one webhook delivery.
func RecordBreakingNotification(channel string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	BreakingNotificationsTotal.WithLabelValues(channel, status).Inc()
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "insert_article", "update_story").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

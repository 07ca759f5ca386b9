// Package slo exposes service level indicators of the ingestion pipeline.
package slo

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets for the ingestion pipeline.
const (
	// FeedAvailabilitySLO is the target share of polled feeds that answer (fetched or not modified).
	FeedAvailabilitySLO = 0.95

	// IngestFreshnessSLO is the longest acceptable gap, in seconds, between successful cycles.
	IngestFreshnessSLO = 900.0

	// ClusteringLagSLO is the largest acceptable backlog of unclustered article changes.
	ClusteringLagSLO = 500.0
)

var (
	// SLOFeedAvailability tracks the share of feeds answering in the last cycle (0-1)
	// calculated as: (fetched + not_modified) / (selected - circuit_open)
	SLOFeedAvailability = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_feed_availability_ratio",
			Help: "Share of polled feeds that answered in the last cycle (0-1), target: 0.95",
		},
	)

	// SLOLastSuccessfulCycle tracks the unix time of the last cycle that completed
	SLOLastSuccessfulCycle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_last_successful_ingest_cycle_timestamp_seconds",
			Help: "Unix time of the last ingestion cycle that completed",
		},
	)

	// SLOClusteringLag tracks how many article changes the clustering group has not yet consumed
	SLOClusteringLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_clustering_lag_changes",
			Help: "Number of article changes received but not yet checkpointed by the clustering group",
		},
	)
)

// UpdateFeedAvailability records the availability of the feeds polled in a cycle.
// Feeds skipped by an open circuit are not counted. A cycle that polled nothing leaves the gauge untouched.
func UpdateFeedAvailability(answered, polled int) {
	if polled <= 0 {
		return
	}
	SLOFeedAvailability.Set(float64(answered) / float64(polled))
}

// MarkCycleSucceeded stamps the completion time of a successful ingestion cycle.
func MarkCycleSucceeded(at time.Time) {
	SLOLastSuccessfulCycle.Set(float64(at.Unix()))
}

// UpdateClusteringLag records the clustering backlog.
func UpdateClusteringLag(pending int) {
	SLOClusteringLag.Set(float64(pending))
}

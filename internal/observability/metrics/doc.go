// Package metrics holds the process-wide Prometheus collectors of the news
// pipeline: feed polls and ingestion cycles, per-feed and dependency circuit
// state, clustering outcomes, story status changes, change-feed progress per
// consumer group, embedding and notification calls, and store latency.
//
// Collectors register on the default registry and are served on the worker's
// /metrics endpoint. Callers use the Record*/Update* helpers:
//
//	start := time.Now()
//	res, err := fetcher.Fetch(ctx, feed)
//	metrics.RecordFeedPoll(string(res.Status), time.Since(start))
package metrics

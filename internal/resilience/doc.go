// Package resilience groups the failure-isolation layers of storywire.
//
//   - feedbreaker: one breaker per feed, state kept in a pluggable store so
//     several workers share it
//   - circuitbreaker: gobreaker instances for the database, the AI providers
//     and breaking-news webhooks
//   - retry: capped exponential backoff for transient provider errors
//
// Embedding calls stack the two generic layers:
//
//	cb := circuitbreaker.New(circuitbreaker.EmbeddingAPIConfig())
//	vec, err := circuitbreaker.Do(cb, func() ([]float32, error) {
//	    return retry.Do(ctx, retry.EmbeddingConfig(), call)
//	})
package resilience

// Package tracing provides OpenTelemetry tracing helpers.
//
// Spans are created through the global tracer provider. The worker runs with
// the no-op provider unless one is installed at startup; tests install an SDK
// provider with a span recorder.
//
// Example usage:
//
//	ctx, span := tracing.StartSpan(ctx, "ingest.run_cycle")
//	defer func() { tracing.EndSpan(span, err) }()
package tracing

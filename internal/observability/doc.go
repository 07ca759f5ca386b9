// Package observability groups the logging, metrics and tracing infrastructure
// shared by the worker and the storyctl CLI.
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//   - tracing: OpenTelemetry span helpers
package observability

// Package logging builds the slog loggers of the worker and storyctl.
//
// Records are JSON on stdout for the worker and text on stderr for the CLI.
// Error attributes pass through SanitizeError, so API keys and DSN passwords
// never reach the log. Ingestion cycles carry a cycle id through the context:
//
//	ctx = logging.ContextWithCycleID(ctx, uuid.NewString())
//	logging.WithCycleID(ctx, logger).Info("cycle started")
package logging

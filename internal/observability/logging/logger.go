package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns the worker's JSON logger on stdout. LOG_LEVEL selects
// debug, info (default), warn or error. Error values are sanitized.
func NewLogger() *slog.Logger {
	level := levelFromEnv()
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		AddSource:   level <= slog.LevelDebug,
		ReplaceAttr: sanitizeAttr,
	}))
}

// NewTextLogger returns the human-readable stderr logger used by storyctl.
func NewTextLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       levelFromEnv(),
		ReplaceAttr: sanitizeAttr,
	}))
}

// Component tags every record of logger with the emitting component.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With(slog.String("component", name))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// sanitizeAttr masks secrets in error-valued attributes.
func sanitizeAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	if err, ok := a.Value.Any().(error); ok {
		return slog.String(a.Key, SanitizeError(err))
	}
	return a
}

type cycleIDKey struct{}

// ContextWithCycleID stores the id of the current ingestion cycle in ctx.
func ContextWithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, cycleIDKey{}, cycleID)
}

// CycleIDFromContext returns the ingestion cycle id stored in ctx, or "".
func CycleIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(cycleIDKey{}).(string)
	return id
}

// WithCycleID adds the cycle id found in ctx to logger.
func WithCycleID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := CycleIDFromContext(ctx); id != "" {
		return logger.With(slog.String("cycle_id", id))
	}
	return logger
}

package main

import (
	"io"
	"log/slog"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustNow() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

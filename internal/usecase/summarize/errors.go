package summarize

import "errors"

// ErrEmptySummary is returned when a summarizer produced no text.
var ErrEmptySummary = errors.New("summarizer returned empty text")

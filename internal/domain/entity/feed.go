package entity

import (
	"fmt"
	"strings"
	"time"
)

// FeedConfig describes one configured news feed.
type FeedConfig struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	URL      string `yaml:"url" json:"url"`
	SourceID string `yaml:"source_id" json:"source_id"`
	Category string `yaml:"category" json:"category"`
	Tier     int    `yaml:"tier" json:"tier"`
	Language string `yaml:"language" json:"language"`
}

// Validate checks the fields required for scheduling and fetching.
func (f *FeedConfig) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return &ValidationError{Field: "id", Message: "feed id is required"}
	}
	if strings.TrimSpace(f.SourceID) == "" {
		return &ValidationError{Field: "source_id", Message: fmt.Sprintf("feed %s: source_id is required", f.ID)}
	}
	if strings.TrimSpace(f.Category) == "" {
		return &ValidationError{Field: "category", Message: fmt.Sprintf("feed %s: category is required", f.ID)}
	}
	if f.Tier < 1 {
		return &ValidationError{Field: "tier", Message: fmt.Sprintf("feed %s: tier must be >= 1", f.ID)}
	}
	return ValidateFeedURL(f.URL)
}

// FeedPollState records when a feed was last polled.
type FeedPollState struct {
	FeedID   string
	LastPoll time.Time
}

// FeedValidators are the HTTP cache validators last returned for a feed.
type FeedValidators struct {
	ETag         string
	LastModified string
}

// IsZero reports whether no validator is known.
func (v FeedValidators) IsZero() bool {
	return v.ETag == "" && v.LastModified == ""
}

// RawEntry is one feed item as delivered by the fetcher, before normalization.
type RawEntry struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	Author      string
	Categories  []string
	Published   *time.Time
	Updated     *time.Time
}

package entity

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// StoryStatus is the verification state of a story.
type StoryStatus string

const (
	// StatusMonitoring is a story seen from a single source.
	StatusMonitoring StoryStatus = "MONITORING"
	// StatusDeveloping is a story corroborated by exactly two sources.
	StatusDeveloping StoryStatus = "DEVELOPING"
	// StatusVerified is a story corroborated by three or more sources outside the breaking window.
	StatusVerified StoryStatus = "VERIFIED"
	// StatusBreaking is a story that reached three or more sources inside the breaking window.
	StatusBreaking StoryStatus = "BREAKING"
)

// IsValid reports whether s is one of the known statuses.
func (s StoryStatus) IsValid() bool {
	switch s {
	case StatusMonitoring, StatusDeveloping, StatusVerified, StatusBreaking:
		return true
	}
	return false
}

// SourceArticle is the story's reference to one corroborating article.
type SourceArticle struct {
	ArticleID   string    `json:"article_id"`
	Source      string    `json:"source"`
	SourceTier  int       `json:"source_tier"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	AddedAt     time.Time `json:"added_at"`
}

// Story groups articles from distinct sources reporting the same event.
//
// Invariants:
//   - SourceArticles never holds two entries with the same Source
//   - VerificationLevel == len(SourceArticles)
//   - BreakingDetectedAt is written at most once
type Story struct {
	ID                 string
	Category           string
	EventFingerprint   string
	Title              string
	Status             StoryStatus
	VerificationLevel  int
	ConfidenceScore    int
	ImportanceScore    int
	SourceArticles     []SourceArticle
	FirstSeen          time.Time
	LastUpdated        time.Time
	UpdateCount        int
	// BreakingNews records that the story was BREAKING at some point. It is not
	// cleared when the status later moves to VERIFIED; BreakingDetectedAt keeps
	// the first detection time.
	BreakingNews       bool
	BreakingDetectedAt *time.Time

	// Centroid is the running mean of member article embeddings.
	Centroid       []float32
	EmbeddingCount int

	// Version is the optimistic concurrency token, bumped by the store on every write.
	Version int64
	// Seq is the change-feed sequence, bumped by the store on every write.
	Seq int64
}

// ChangeSeq implements the change-feed document contract.
func (s *Story) ChangeSeq() int64 {
	return s.Seq
}

// NewStoryID builds a story id from the category, the creation time and the
// event fingerprint. Stories are only merged within a category, so the category
// keeps same-titled stories of different categories from sharing an id.
func NewStoryID(category string, createdAt time.Time, fingerprint string) string {
	fp := fingerprint
	if len(fp) > 16 {
		fp = fp[:16]
	}
	return fmt.Sprintf("story_%s_%s_%s", idSafe(category), createdAt.UTC().Format("20060102150405"), fp)
}

// idSafe lowercases s and replaces anything outside [a-z0-9] with '-'.
func idSafe(s string) string {
	if s == "" {
		return "none"
	}
	return strings.Map(func(r rune) rune {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, s)
}

// HasSource reports whether an article from source is already part of the story.
func (s *Story) HasSource(source string) bool {
	for _, sa := range s.SourceArticles {
		if sa.Source == source {
			return true
		}
	}
	return false
}

// Sources returns the publisher ids of all member articles in insertion order.
func (s *Story) Sources() []string {
	out := make([]string, 0, len(s.SourceArticles))
	for _, sa := range s.SourceArticles {
		out = append(out, sa.Source)
	}
	return out
}

// ArticleIDs returns the ids of all member articles in insertion order.
func (s *Story) ArticleIDs() []string {
	out := make([]string, 0, len(s.SourceArticles))
	for _, sa := range s.SourceArticles {
		out = append(out, sa.ArticleID)
	}
	return out
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (s *Story) Clone() *Story {
	if s == nil {
		return nil
	}
	c := *s
	c.SourceArticles = append([]SourceArticle(nil), s.SourceArticles...)
	c.Centroid = append([]float32(nil), s.Centroid...)
	if s.BreakingDetectedAt != nil {
		t := *s.BreakingDetectedAt
		c.BreakingDetectedAt = &t
	}
	return &c
}

// CheckInvariants verifies the source de-duplication invariants.
func (s *Story) CheckInvariants() error {
	seen := make(map[string]struct{}, len(s.SourceArticles))
	for _, sa := range s.SourceArticles {
		if _, dup := seen[sa.Source]; dup {
			return &ValidationError{Field: "source_articles", Message: fmt.Sprintf("duplicate source %q", sa.Source)}
		}
		seen[sa.Source] = struct{}{}
	}
	if s.VerificationLevel != len(s.SourceArticles) {
		return &ValidationError{
			Field:   "verification_level",
			Message: fmt.Sprintf("level %d does not match %d source articles", s.VerificationLevel, len(s.SourceArticles)),
		}
	}
	return nil
}

// StorySummary is the generated text for a story at a given corroboration level.
// It is stored apart from the story so writing it does not produce a story change.
type StorySummary struct {
	StoryID      string
	Text         string
	SourceCount  int
	Model        string
	InputTokens  int64
	OutputTokens int64
	GeneratedAt  time.Time
}

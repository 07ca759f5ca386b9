// Package entity defines the core domain entities of the corroboration pipeline.
// Articles are the immutable ingestion records; Stories group articles from distinct
// sources that report the same real-world event.
package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// articleIDLength is the number of hex characters kept from the SHA-256 digest.
const articleIDLength = 32

// Article represents a single normalized feed entry.
//
// Everything except Processed, StoryID and ProcessingAttempts is fixed at ingestion
// time. Those three fields are owned by the clustering engine.
type Article struct {
	ID                 string
	Source             string
	SourceTier         int
	FeedID             string
	Title              string
	Description        string
	Content            string
	URL                string
	PublishedAt        time.Time
	FetchedAt          time.Time
	Category           string
	Language           string
	Entities           []string
	StoryFingerprint   string
	Embedding          []float32
	Processed          bool
	StoryID            string
	ProcessingAttempts int

	// Seq is the change-feed sequence assigned by the store on insert.
	Seq int64
}

// ChangeSeq implements the change-feed document contract.
func (a *Article) ChangeSeq() int64 {
	return a.Seq
}

// PartitionKey returns the ingestion-date partition the article is stored under.
func (a *Article) PartitionKey() string {
	return a.FetchedAt.UTC().Format("2006-01-02")
}

// IsTopTier reports whether the article comes from a tier-1 (highest authority) source.
func (a *Article) IsTopTier() bool {
	return a.SourceTier == 1
}

// ArticleID derives the deterministic article identifier from the publisher,
// the canonical URL and the published time.
//
// A zero published time is left out of the digest, so entries that carry no date
// still resolve to the same id on every fetch.
func ArticleID(source, rawURL string, published time.Time) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(source)))
	b.WriteByte('|')
	b.WriteString(CanonicalURL(rawURL))
	if !published.IsZero() {
		b.WriteByte('|')
		b.WriteString(published.UTC().Format(time.RFC3339))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:articleIDLength]
}

// CanonicalURL normalizes a link so trivially different spellings of the same page
// compare equal: scheme and host are lowercased, the fragment and tracking
// parameters are dropped and a trailing slash is trimmed.
// Unparseable input is returned trimmed but otherwise untouched.
func CanonicalURL(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		lk := strings.ToLower(key)
		if strings.HasPrefix(lk, "utm_") || lk == "fbclid" || lk == "gclid" {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	return u.String()
}

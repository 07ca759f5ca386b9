package cluster

import (
	"time"

	"storywire/internal/domain/entity"
	"storywire/internal/utils/vecmath"
)

const (
	maxConfidence = 99
	maxImportance = 100
)

// StatusFor derives a story status from its source count and age.
// One source is MONITORING, two DEVELOPING, three or more BREAKING while
// now is within breakingWindow of firstSeen and VERIFIED afterwards.
func StatusFor(level int, firstSeen, now time.Time, breakingWindow time.Duration) entity.StoryStatus {
	switch {
	case level <= 1:
		return entity.StatusMonitoring
	case level == 2:
		return entity.StatusDeveloping
	case now.Sub(firstSeen) <= breakingWindow:
		return entity.StatusBreaking
	default:
		return entity.StatusVerified
	}
}

// ConfidenceFor returns min(40 + 15·level, 99).
func ConfidenceFor(level int) int {
	return min(40+15*level, maxConfidence)
}

func sourceArticleFrom(art *entity.Article, now time.Time) entity.SourceArticle {
	return entity.SourceArticle{
		ArticleID:   art.ID,
		Source:      art.Source,
		SourceTier:  art.SourceTier,
		Title:       art.Title,
		URL:         art.URL,
		PublishedAt: art.PublishedAt,
		AddedAt:     now,
	}
}

// newStory seeds a MONITORING story with a single article.
func newStory(art *entity.Article, embedding []float32, now time.Time, cfg Config) *entity.Story {
	importance := cfg.BaseImportance
	if art.IsTopTier() {
		importance += cfg.TierOneImportanceBoost
	}
	st := &entity.Story{
		ID:                entity.NewStoryID(art.Category, now, art.StoryFingerprint),
		Category:          art.Category,
		EventFingerprint:  art.StoryFingerprint,
		Title:             art.Title,
		Status:            entity.StatusMonitoring,
		VerificationLevel: 1,
		ConfidenceScore:   ConfidenceFor(1),
		ImportanceScore:   min(importance, maxImportance),
		SourceArticles:    []entity.SourceArticle{sourceArticleFrom(art, now)},
		FirstSeen:         now,
		LastUpdated:       now,
	}
	if len(embedding) > 0 {
		st.Centroid = vecmath.Normalize(embedding)
		st.EmbeddingCount = 1
	}
	return st
}

// addArticle appends art to st and recomputes every derived field. The caller
// has already checked that st holds no article from art.Source. It reports
// whether this update is the story's first transition into BREAKING. BreakingNews
// stays set when a later update moves the story on to VERIFIED.
func addArticle(st *entity.Story, art *entity.Article, embedding []float32, now time.Time, cfg Config) bool {
	st.SourceArticles = append(st.SourceArticles, sourceArticleFrom(art, now))
	st.VerificationLevel = len(st.SourceArticles)
	st.Status = StatusFor(st.VerificationLevel, st.FirstSeen, now, cfg.BreakingWindow)
	st.ConfidenceScore = ConfidenceFor(st.VerificationLevel)
	if art.IsTopTier() {
		st.ImportanceScore = min(st.ImportanceScore+cfg.TierOneImportanceBoost, maxImportance)
	}
	st.UpdateCount++
	st.LastUpdated = now

	// Members contribute unit vectors; cosine comparisons ignore the mean's length.
	if len(embedding) > 0 {
		st.Centroid, st.EmbeddingCount = vecmath.RunningMean(st.Centroid, st.EmbeddingCount, vecmath.Normalize(embedding))
	}

	if st.Status == entity.StatusBreaking && st.BreakingDetectedAt == nil {
		at := now
		st.BreakingDetectedAt = &at
		st.BreakingNews = true
		return true
	}
	return false
}

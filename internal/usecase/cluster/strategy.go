package cluster

import (
	"context"
	"fmt"
	"time"

	"storywire/internal/domain/entity"
	"storywire/internal/repository"
	"storywire/internal/utils/text"
)

// Strategy names reported in results and metrics.
const (
	StrategyFingerprint = "fingerprint"
	StrategyFuzzyTitle  = "fuzzy_title"
	StrategySemantic    = "semantic"
)

// Input is what a Strategy sees of the article being clustered.
type Input struct {
	Article *entity.Article
	// Embedding is nil when no embedder is configured or it failed.
	Embedding []float32
	Now       time.Time
}

// Candidate is a story a Strategy is confident the article belongs to.
type Candidate struct {
	Story *entity.Story
	Score float64
}

// Strategy proposes an existing story for an article, or nil when it has no
// confident match. Strategies run in order and the first non-nil candidate wins.
type Strategy interface {
	Name() string
	Match(ctx context.Context, in Input) (*Candidate, error)
}

// FingerprintStrategy matches stories sharing the article's event fingerprint.
type FingerprintStrategy struct {
	Stories       repository.StoryRepository
	RecencyWindow time.Duration
}

// Name implements Strategy.
func (s *FingerprintStrategy) Name() string { return StrategyFingerprint }

// Match returns the most recently updated story with the same fingerprint inside
// the recency window. Older matches are treated as a separate occurrence.
//
// The window is measured from the story's LastUpdated, not FirstSeen: a story
// that keeps receiving articles stays matchable however old it is, the same
// rule the fuzzy and semantic candidates use.
func (s *FingerprintStrategy) Match(ctx context.Context, in Input) (*Candidate, error) {
	fp := in.Article.StoryFingerprint
	if fp == "" {
		return nil, nil
	}
	found, err := s.Stories.FindByFingerprint(ctx, in.Article.Category, fp, in.Now.Add(-s.RecencyWindow))
	if err != nil {
		return nil, fmt.Errorf("fingerprint lookup: %w", err)
	}
	var best *entity.Story
	for _, st := range found {
		if best == nil || st.LastUpdated.After(best.LastUpdated) {
			best = st
		}
	}
	if best == nil {
		return nil, nil
	}
	return &Candidate{Story: best, Score: 1}, nil
}

// FuzzyTitleStrategy compares the article title with the titles of recent stories
// in the same category.
type FuzzyTitleStrategy struct {
	Stories        repository.StoryRepository
	RecencyWindow  time.Duration
	Threshold      float64
	CandidateLimit int
}

// Name implements Strategy.
func (s *FuzzyTitleStrategy) Name() string { return StrategyFuzzyTitle }

// Match scores each recent story by its best title similarity against the story
// title and every member title. The highest score wins if it reaches Threshold;
// ties go to the most recently updated story.
func (s *FuzzyTitleStrategy) Match(ctx context.Context, in Input) (*Candidate, error) {
	recent, err := s.Stories.ListRecent(ctx, in.Article.Category, in.Now.Add(-s.RecencyWindow), s.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("recent stories: %w", err)
	}

	var best *Candidate
	for _, st := range recent {
		score := text.TitleSimilarity(in.Article.Title, st.Title)
		for _, sa := range st.SourceArticles {
			score = max(score, text.TitleSimilarity(in.Article.Title, sa.Title))
		}
		if score < s.Threshold {
			continue
		}
		if best == nil || score > best.Score ||
			(score == best.Score && st.LastUpdated.After(best.Story.LastUpdated)) {
			best = &Candidate{Story: st, Score: score}
		}
	}
	return best, nil
}

// SemanticStrategy compares the article embedding with story centroids.
type SemanticStrategy struct {
	Stories           repository.StoryRepository
	RecencyWindow     time.Duration
	MatchThreshold    float64
	MaybeThreshold    float64
	MinSharedEntities int
	CandidateLimit    int
}

// Name implements Strategy.
func (s *SemanticStrategy) Name() string { return StrategySemantic }

// Match walks stories by descending centroid similarity. At or above
// MatchThreshold the story is accepted; between MaybeThreshold and
// MatchThreshold it is accepted only when the two titles share at least
// MinSharedEntities capitalised tokens. Without an embedding it never matches.
func (s *SemanticStrategy) Match(ctx context.Context, in Input) (*Candidate, error) {
	if len(in.Embedding) == 0 {
		return nil, nil
	}
	nearest, err := s.Stories.NearestByCentroid(ctx, in.Article.Category, in.Embedding, in.Now.Add(-s.RecencyWindow), s.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("nearest stories: %w", err)
	}
	for _, sc := range nearest {
		switch {
		case sc.Similarity >= s.MatchThreshold:
			return &Candidate{Story: sc.Story, Score: sc.Similarity}, nil
		case sc.Similarity >= s.MaybeThreshold:
			if text.SharedCapitalized(in.Article.Title, sc.Story.Title) >= s.MinSharedEntities {
				return &Candidate{Story: sc.Story, Score: sc.Similarity}, nil
			}
		default:
			return nil, nil
		}
	}
	return nil, nil
}

// DefaultStrategies builds the fingerprint, fuzzy title and semantic chain from cfg.
func DefaultStrategies(stories repository.StoryRepository, cfg Config) []Strategy {
	return []Strategy{
		&FingerprintStrategy{Stories: stories, RecencyWindow: cfg.RecencyWindow},
		&FuzzyTitleStrategy{
			Stories:        stories,
			RecencyWindow:  cfg.RecencyWindow,
			Threshold:      cfg.FuzzyThreshold,
			CandidateLimit: cfg.CandidateLimit,
		},
		&SemanticStrategy{
			Stories:           stories,
			RecencyWindow:     cfg.RecencyWindow,
			MatchThreshold:    cfg.SemanticMatchThreshold,
			MaybeThreshold:    cfg.SemanticMaybeThreshold,
			MinSharedEntities: cfg.MinSharedEntities,
			CandidateLimit:    cfg.CandidateLimit,
		},
	}
}

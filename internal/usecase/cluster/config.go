package cluster

import (
	"fmt"
	"time"

	"storywire/internal/pkg/config"
)

// Config holds the matching thresholds and story scoring constants.
type Config struct {
	// RecencyWindow bounds how long after its last update a story can still absorb articles.
	RecencyWindow time.Duration
	// FuzzyThreshold is the minimum title similarity accepted by the fuzzy strategy.
	FuzzyThreshold float64
	// SemanticMatchThreshold accepts a centroid match outright.
	SemanticMatchThreshold float64
	// SemanticMaybeThreshold accepts a centroid match only with MinSharedEntities shared title entities.
	SemanticMaybeThreshold float64
	MinSharedEntities      int
	// CandidateLimit caps the stories compared by the fuzzy and semantic strategies.
	CandidateLimit int

	// BreakingWindow is how soon after FirstSeen a third source makes a story BREAKING.
	BreakingWindow time.Duration

	BaseImportance         int
	TierOneImportanceBoost int

	// MaxConflictRetries bounds the re-read loop on story version conflicts.
	MaxConflictRetries int
	// MaxAttempts dead-letters an article after this many exhausted processing attempts.
	MaxAttempts int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		RecencyWindow:          7 * 24 * time.Hour,
		FuzzyThreshold:         0.6,
		SemanticMatchThreshold: 0.85,
		SemanticMaybeThreshold: 0.75,
		MinSharedEntities:      2,
		CandidateLimit:         200,
		BreakingWindow:         time.Hour,
		BaseImportance:         50,
		TierOneImportanceBoost: 10,
		MaxConflictRetries:     5,
		MaxAttempts:            3,
	}
}

// Validate checks threshold ordering and ranges.
func (c *Config) Validate() error {
	var errs []error
	if err := config.ValidatePositiveDuration(c.RecencyWindow); err != nil {
		errs = append(errs, fmt.Errorf("recency window: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.BreakingWindow); err != nil {
		errs = append(errs, fmt.Errorf("breaking window: %w", err))
	}
	thresholds := []struct {
		name  string
		value float64
	}{
		{"fuzzy threshold", c.FuzzyThreshold},
		{"semantic match threshold", c.SemanticMatchThreshold},
		{"semantic maybe threshold", c.SemanticMaybeThreshold},
	}
	for _, th := range thresholds {
		if err := config.ValidateRatio(th.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", th.name, err))
		}
	}
	if c.SemanticMaybeThreshold > c.SemanticMatchThreshold {
		errs = append(errs, fmt.Errorf("semantic maybe threshold %g exceeds match threshold %g", c.SemanticMaybeThreshold, c.SemanticMatchThreshold))
	}
	if err := config.ValidateIntRange(c.BaseImportance, 0, 100); err != nil {
		errs = append(errs, fmt.Errorf("base importance: %w", err))
	}
	if err := config.ValidateIntRange(c.TierOneImportanceBoost, 0, 100); err != nil {
		errs = append(errs, fmt.Errorf("tier one boost: %w", err))
	}
	if err := config.ValidatePositiveInt(c.MaxConflictRetries); err != nil {
		errs = append(errs, fmt.Errorf("max conflict retries: %w", err))
	}
	if err := config.ValidatePositiveInt(c.MaxAttempts); err != nil {
		errs = append(errs, fmt.Errorf("max attempts: %w", err))
	}
	if err := config.ValidatePositiveInt(c.CandidateLimit); err != nil {
		errs = append(errs, fmt.Errorf("candidate limit: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv overlays CLUSTER_* environment variables on the defaults.
// Invalid values fall back to their defaults and are returned as warnings.
//
// Environment variables:
//   - CLUSTER_RECENCY_WINDOW, CLUSTER_BREAKING_WINDOW: durations
//   - CLUSTER_FUZZY_THRESHOLD, CLUSTER_SEMANTIC_MATCH_THRESHOLD, CLUSTER_SEMANTIC_MAYBE_THRESHOLD: 0-1
//   - CLUSTER_MAX_CONFLICT_RETRIES, CLUSTER_MAX_ATTEMPTS, CLUSTER_CANDIDATE_LIMIT: positive integers
func LoadConfigFromEnv() (Config, *config.Collector) {
	cfg := DefaultConfig()
	c := &config.Collector{}

	cfg.RecencyWindow = c.Duration("CLUSTER_RECENCY_WINDOW", cfg.RecencyWindow, config.ValidatePositiveDuration)
	cfg.BreakingWindow = c.Duration("CLUSTER_BREAKING_WINDOW", cfg.BreakingWindow, config.ValidatePositiveDuration)
	cfg.FuzzyThreshold = c.Float("CLUSTER_FUZZY_THRESHOLD", cfg.FuzzyThreshold, config.ValidateRatio)
	cfg.SemanticMatchThreshold = c.Float("CLUSTER_SEMANTIC_MATCH_THRESHOLD", cfg.SemanticMatchThreshold, config.ValidateRatio)
	cfg.SemanticMaybeThreshold = c.Float("CLUSTER_SEMANTIC_MAYBE_THRESHOLD", cfg.SemanticMaybeThreshold, config.ValidateRatio)
	cfg.MaxConflictRetries = c.Int("CLUSTER_MAX_CONFLICT_RETRIES", cfg.MaxConflictRetries, config.ValidatePositiveInt)
	cfg.MaxAttempts = c.Int("CLUSTER_MAX_ATTEMPTS", cfg.MaxAttempts, config.ValidatePositiveInt)
	cfg.CandidateLimit = c.Int("CLUSTER_CANDIDATE_LIMIT", cfg.CandidateLimit, config.ValidatePositiveInt)

	if cfg.SemanticMaybeThreshold > cfg.SemanticMatchThreshold {
		def := DefaultConfig()
		c.Warnings = append(c.Warnings, fmt.Sprintf(
			"CLUSTER_SEMANTIC_MAYBE_THRESHOLD %g exceeds match threshold %g, falling back to defaults",
			cfg.SemanticMaybeThreshold, cfg.SemanticMatchThreshold))
		c.Fields = append(c.Fields, "CLUSTER_SEMANTIC_MAYBE_THRESHOLD")
		cfg.SemanticMatchThreshold = def.SemanticMatchThreshold
		cfg.SemanticMaybeThreshold = def.SemanticMaybeThreshold
	}
	return cfg, c
}

package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"storywire/internal/domain/entity"
	"storywire/internal/observability/metrics"
	"storywire/internal/repository"
	"storywire/internal/utils/text"
)

// Config controls when and how much a story is summarized.
type Config struct {
	// MinSources is the verification level a story needs before it is summarized.
	MinSources int
	// MaxExcerpts caps the member articles sent to the summarizer.
	MaxExcerpts int
	// MaxExcerptRunes truncates each member article body.
	MaxExcerptRunes int
	CharacterLimit  int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MinSources:      2,
		MaxExcerpts:     10,
		MaxExcerptRunes: 1500,
		CharacterLimit:  900,
	}
}

// Handler consumes story changes and keeps one summary per story up to date
// with its source count.
type Handler struct {
	articles   repository.ArticleRepository
	summaries  repository.SummaryRepository
	summarizer Summarizer
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// NewHandler creates a summarization handler.
func NewHandler(articles repository.ArticleRepository, summaries repository.SummaryRepository, s Summarizer, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		articles:   articles,
		summaries:  summaries,
		summarizer: s,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "summarizer")),
		now:        time.Now,
	}
}

// WithClock replaces the clock stamped on generated summaries.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

// Handle implements changefeed.Handler for stories. Stories below MinSources
// and stories already summarized at their current source count are skipped.
func (h *Handler) Handle(ctx context.Context, st *entity.Story) error {
	if st.VerificationLevel < h.cfg.MinSources {
		return nil
	}
	existing, err := h.summaries.Get(ctx, st.ID)
	if err != nil {
		return fmt.Errorf("Handle: get summary: %w", err)
	}
	if existing != nil && existing.SourceCount >= st.VerificationLevel {
		return nil
	}

	req, err := h.buildRequest(ctx, st)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := h.summarizer.Summarize(ctx, req)
	if err == nil && resp.Text == "" {
		err = ErrEmptySummary
	}
	metrics.RecordStorySummarized(err == nil, time.Since(start))
	if err != nil {
		h.logger.WarnContext(ctx, "summary generation failed",
			slog.String("story_id", st.ID),
			slog.Int("source_count", st.VerificationLevel),
			slog.Any("error", err))
		return fmt.Errorf("Handle: summarize %s: %w", st.ID, err)
	}

	summary := &entity.StorySummary{
		StoryID:      st.ID,
		Text:         resp.Text,
		SourceCount:  st.VerificationLevel,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		GeneratedAt:  h.now(),
	}
	if err := h.summaries.Upsert(ctx, summary); err != nil {
		return fmt.Errorf("Handle: upsert summary: %w", err)
	}

	h.logger.InfoContext(ctx, "story summarized",
		slog.String("story_id", st.ID),
		slog.Int("source_count", summary.SourceCount),
		slog.String("model", summary.Model),
		slog.Int64("input_tokens", summary.InputTokens),
		slog.Int64("output_tokens", summary.OutputTokens))
	return nil
}

// buildRequest loads the member articles in story order. Members missing from
// the store fall back to the title held on the story.
func (h *Handler) buildRequest(ctx context.Context, st *entity.Story) (Request, error) {
	members := st.SourceArticles
	if h.cfg.MaxExcerpts > 0 && len(members) > h.cfg.MaxExcerpts {
		members = members[:h.cfg.MaxExcerpts]
	}
	ids := make([]string, 0, len(members))
	for _, sa := range members {
		ids = append(ids, sa.ArticleID)
	}
	arts, err := h.articles.GetMany(ctx, ids)
	if err != nil {
		return Request{}, fmt.Errorf("Handle: load members: %w", err)
	}
	byID := make(map[string]*entity.Article, len(arts))
	for _, a := range arts {
		byID[a.ID] = a
	}

	req := Request{
		StoryID:        st.ID,
		Title:          st.Title,
		Category:       st.Category,
		CharacterLimit: h.cfg.CharacterLimit,
		Excerpts:       make([]Excerpt, 0, len(members)),
	}
	for _, sa := range members {
		ex := Excerpt{Source: sa.Source, Title: sa.Title, URL: sa.URL, PublishedAt: sa.PublishedAt}
		if a, ok := byID[sa.ArticleID]; ok {
			body := a.Content
			if body == "" {
				body = a.Description
			}
			ex.Content = text.Truncate(body, h.cfg.MaxExcerptRunes)
		}
		req.Excerpts = append(req.Excerpts, ex)
	}
	return req, nil
}

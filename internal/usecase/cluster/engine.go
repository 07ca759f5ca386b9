// Package cluster assigns articles to stories and maintains story status.
//
// The Engine runs an ordered chain of matching strategies (event fingerprint,
// fuzzy title, embedding centroid) and either merges the article into the first
// confident match or founds a new story. Stories are written with a single
// version-checked update, so concurrent consumers never lose an append.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"storywire/internal/domain/entity"
	"storywire/internal/observability/metrics"
	"storywire/internal/observability/tracing"
	"storywire/internal/repository"
)

// Outcome is how ProcessArticle resolved an article.
type Outcome string

const (
	OutcomeCreated          Outcome = "created"
	OutcomeMerged           Outcome = "merged"
	OutcomeDuplicateSource  Outcome = "duplicate_source"
	OutcomeSkippedProcessed Outcome = "skipped_processed"
	OutcomeDeadLetter       Outcome = "dead_letter"
)

// notifyTimeout bounds a single breaking-news notification.
const notifyTimeout = 15 * time.Second

// Embedder turns article text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BreakingNotifier is told when a story becomes BREAKING for the first time.
type BreakingNotifier interface {
	NotifyBreaking(ctx context.Context, story *entity.Story) error
}

// Result describes the resolution of one article.
type Result struct {
	StoryID  string
	Outcome  Outcome
	Strategy string
	Score    float64
}

// Engine is the clustering engine.
type Engine struct {
	articles   repository.ArticleRepository
	stories    repository.StoryRepository
	strategies []Strategy
	embedder   Embedder
	notifier   BreakingNotifier
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
	notify  sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmbedder enables the semantic strategy.
func WithEmbedder(e Embedder) Option {
	return func(en *Engine) { en.embedder = e }
}

// WithNotifier sends first BREAKING transitions to n.
func WithNotifier(n BreakingNotifier) Option {
	return func(en *Engine) { en.notifier = n }
}

// WithStrategies replaces the default strategy chain.
func WithStrategies(s ...Strategy) Option {
	return func(en *Engine) { en.strategies = s }
}

// WithClock replaces the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(en *Engine) { en.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(en *Engine) { en.logger = l }
}

// NewEngine creates an Engine with the default strategy chain.
func NewEngine(articles repository.ArticleRepository, stories repository.StoryRepository, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		articles: articles,
		stories:  stories,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
	e.strategies = DefaultStrategies(stories, cfg)
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("component", "cluster"))
	return e
}

// ProcessArticle assigns the article to a story.
//
// Already processed articles are skipped. Articles that exhausted MaxAttempts are
// dead-lettered and reported without error so the change feed can move on. When
// the target story keeps changing for MaxConflictRetries attempts the article's
// attempt counter is bumped, it stays unprocessed and ErrConflictRetriesExhausted
// is returned.
func (e *Engine) ProcessArticle(ctx context.Context, articleID string) (res *Result, err error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "cluster.ProcessArticle", attribute.String("article_id", articleID))
	defer func() {
		if res != nil {
			span.SetAttributes(
				attribute.String("outcome", string(res.Outcome)),
				attribute.String("story_id", res.StoryID))
			metrics.RecordClusteringOutcome(string(res.Outcome), res.Strategy, time.Since(start))
		}
		tracing.EndSpan(span, err)
	}()

	art, err := e.articles.Get(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("ProcessArticle %s: %w", articleID, err)
	}
	if art.Processed {
		return &Result{StoryID: art.StoryID, Outcome: OutcomeSkippedProcessed}, nil
	}
	if art.ProcessingAttempts >= e.cfg.MaxAttempts {
		e.logger.Error("article dead-lettered after repeated failures",
			slog.String("article_id", art.ID),
			slog.Int("attempts", art.ProcessingAttempts))
		return &Result{Outcome: OutcomeDeadLetter}, nil
	}

	embedding := e.embed(ctx, art)

	unlock := e.lockCategory(art.Category)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxConflictRetries; attempt++ {
		res, lastErr = e.assign(ctx, art, embedding)
		if lastErr == nil {
			break
		}
		if !errors.Is(lastErr, repository.ErrVersionConflict) && !errors.Is(lastErr, repository.ErrAlreadyExists) {
			return nil, fmt.Errorf("ProcessArticle %s: %w", articleID, lastErr)
		}
		metrics.RecordStoryConflictRetry()
		e.logger.Debug("story changed concurrently, retrying",
			slog.String("article_id", art.ID),
			slog.Int("attempt", attempt+1),
			slog.Any("error", lastErr))
	}
	if lastErr != nil {
		attempts, ierr := e.articles.IncrementAttempts(ctx, art.ID)
		e.logger.Warn("story conflict retries exhausted",
			slog.String("article_id", art.ID),
			slog.Int("attempts", attempts),
			slog.Any("increment_error", ierr),
			slog.Any("error", lastErr))
		return nil, fmt.Errorf("ProcessArticle %s: %w", articleID, ErrConflictRetriesExhausted)
	}

	if err := e.articles.MarkProcessed(ctx, art.ID, res.StoryID); err != nil {
		return nil, fmt.Errorf("ProcessArticle %s: mark processed: %w", articleID, err)
	}

	e.logger.Info("article clustered",
		slog.String("article_id", art.ID),
		slog.String("story_id", res.StoryID),
		slog.String("outcome", string(res.Outcome)),
		slog.String("strategy", res.Strategy),
		slog.Float64("score", res.Score))
	return res, nil
}

// assign runs one read-decide-write round against current story state.
func (e *Engine) assign(ctx context.Context, art *entity.Article, embedding []float32) (*Result, error) {
	now := e.now()
	in := Input{Article: art, Embedding: embedding, Now: now}

	var (
		cand     *Candidate
		strategy string
	)
	for _, s := range e.strategies {
		c, err := s.Match(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("%s strategy: %w", s.Name(), err)
		}
		if c != nil {
			cand, strategy = c, s.Name()
			break
		}
	}

	if cand == nil {
		st := newStory(art, embedding, now, e.cfg)
		if err := e.stories.Create(ctx, st); err != nil {
			return nil, err
		}
		metrics.RecordStoryStatus(string(st.Status))
		return &Result{StoryID: st.ID, Outcome: OutcomeCreated}, nil
	}

	st := cand.Story
	res := &Result{StoryID: st.ID, Strategy: strategy, Score: cand.Score}
	if st.HasSource(art.Source) {
		res.Outcome = OutcomeDuplicateSource
		return res, nil
	}

	prevStatus := st.Status
	becameBreaking := addArticle(st, art, embedding, now, e.cfg)
	if err := e.stories.Update(ctx, st); err != nil {
		return nil, err
	}
	res.Outcome = OutcomeMerged
	if st.Status != prevStatus {
		metrics.RecordStoryStatus(string(st.Status))
	}
	if becameBreaking {
		e.notifyBreaking(ctx, st)
	}
	return res, nil
}

// embed returns the stored embedding or asks the embedder. Failures disable the
// semantic strategy for this article only.
func (e *Engine) embed(ctx context.Context, art *entity.Article) []float32 {
	if len(art.Embedding) > 0 {
		return art.Embedding
	}
	if e.embedder == nil {
		return nil
	}
	input := art.Title
	if art.Description != "" {
		input += "\n" + art.Description
	}
	vec, err := e.embedder.Embed(ctx, input)
	if err != nil {
		e.logger.Warn("embedding failed, semantic matching skipped",
			slog.String("article_id", art.ID),
			slog.Any("error", err))
		return nil
	}
	return vec
}

func (e *Engine) lockCategory(category string) func() {
	e.locksMu.Lock()
	mu, ok := e.locks[category]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[category] = mu
	}
	e.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func (e *Engine) notifyBreaking(ctx context.Context, st *entity.Story) {
	e.logger.Info("story is breaking",
		slog.String("story_id", st.ID),
		slog.Int("verification_level", st.VerificationLevel))
	if e.notifier == nil {
		return
	}
	snapshot := st.Clone()
	e.notify.Add(1)
	go func() {
		defer e.notify.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := e.notifier.NotifyBreaking(nctx, snapshot); err != nil {
			e.logger.Warn("breaking notification failed",
				slog.String("story_id", snapshot.ID),
				slog.Any("error", err))
		}
	}()
}

// Wait blocks until in-flight breaking notifications have finished.
func (e *Engine) Wait() {
	e.notify.Wait()
}

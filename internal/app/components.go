package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"storywire/internal/config"
	"storywire/internal/domain/entity"
	"storywire/internal/infra/embedding"
	"storywire/internal/infra/fetcher"
	"storywire/internal/infra/summarizer"
	"storywire/internal/infra/worker"
	"storywire/internal/observability/logging"
	"storywire/internal/repository"
	"storywire/internal/resilience/feedbreaker"
	"storywire/internal/usecase/changefeed"
	"storywire/internal/usecase/cluster"
	"storywire/internal/usecase/ingest"
	"storywire/internal/usecase/summarize"
)

// Ingestion bundles the pieces of one ingestion cycle.
type Ingestion struct {
	Feeds     []entity.FeedConfig
	Breaker   *feedbreaker.Breaker
	Scheduler *ingest.Scheduler
	Service   *ingest.Service
}

// NewIngestion loads the feed list and wires fetcher, breaker and scheduler
// onto stores.
func NewIngestion(cfg *worker.WorkerConfig, stores *Stores, logger *slog.Logger) (*Ingestion, error) {
	feeds, err := config.LoadFeeds(cfg.FeedsFile)
	if err != nil {
		return nil, fmt.Errorf("NewIngestion: %w", err)
	}

	fetchCfg, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		logger.Warn("invalid fetcher configuration, using defaults", slog.Any("error", err))
		fetchCfg = fetcher.DefaultConfig()
	}
	fetchCfg.Timeout = cfg.FetchTimeout

	breaker := feedbreaker.New(stores.Breakers, feedbreaker.Config{
		Threshold: cfg.BreakerThreshold,
		Timeout:   cfg.BreakerTimeout,
	}, feedbreaker.WithLogger(logging.Component(logger, "feedbreaker")))

	feedFetcher := fetcher.NewConditionalFetcher(fetchCfg, breaker, stores.Validators, nil, logging.Component(logger, "fetcher"))
	scheduler := ingest.NewScheduler(feeds, stores.PollState, ingest.SchedulerConfig{
		BatchSize: cfg.BatchSize,
		Cooldown:  cfg.FeedCooldown,
	})
	svc := ingest.NewService(stores.Articles, stores.Articles, scheduler, feedFetcher, ingest.Config{
		MaxConcurrentFetches: cfg.MaxConcurrentFetches,
		FetchTimeout:         cfg.FetchTimeout,
		MaxContentRunes:      ingest.MaxContentRunes,
	}, logger)

	logger.Info("ingestion configured",
		slog.Int("feeds", len(feeds)),
		slog.Int("categories", len(scheduler.Categories())),
		slog.Int("batch_size", cfg.BatchSize),
		slog.Duration("cooldown", cfg.FeedCooldown))

	return &Ingestion{Feeds: feeds, Breaker: breaker, Scheduler: scheduler, Service: svc}, nil
}

// NewEngine builds the clustering engine. The semantic strategy is enabled
// when an embedder is configured.
func NewEngine(stores *Stores, clusterCfg cluster.Config, aiCfg *config.AIConfig, logger *slog.Logger) (*cluster.Engine, error) {
	opts := []cluster.Option{
		cluster.WithLogger(logger),
		cluster.WithNotifier(NotifierFromEnv(logging.Component(logger, "notifier"))),
	}

	if aiCfg != nil && aiCfg.Embedding.Enabled {
		embedCfg := embedding.DefaultConfig(aiCfg.Embedding.APIKey)
		embedCfg.BaseURL = aiCfg.Embedding.BaseURL
		embedCfg.Dimensions = aiCfg.Embedding.Dimensions
		embedCfg.Timeout = aiCfg.Embedding.Timeout
		if aiCfg.Embedding.Model != "" {
			embedCfg.Model = openai.EmbeddingModel(aiCfg.Embedding.Model)
		}
		embedder, err := embedding.NewOpenAI(embedCfg)
		if err != nil {
			return nil, fmt.Errorf("NewEngine: %w", err)
		}
		opts = append(opts, cluster.WithEmbedder(embedder))
		logger.Info("semantic clustering enabled", slog.String("model", aiCfg.Embedding.Model))
	} else {
		logger.Info("semantic clustering disabled")
	}

	return cluster.NewEngine(stores.Articles, stores.Stories, clusterCfg, opts...), nil
}

// NewSummarizer selects the summarizer named by aiCfg.Summarizer.Provider.
func NewSummarizer(aiCfg *config.AIConfig, logger *slog.Logger) (summarize.Summarizer, error) {
	s := aiCfg.Summarizer
	switch s.Provider {
	case config.ProviderClaude:
		cfg := summarizer.DefaultClaudeConfig(s.AnthropicAPIKey)
		applySummarizerOverrides(&cfg, s)
		logger.Info("summarizer selected", slog.String("provider", s.Provider), slog.String("model", cfg.Model))
		c, err := summarizer.NewClaude(cfg, summarizer.NewPrometheusSummaryMetrics())
		if err != nil {
			return nil, fmt.Errorf("NewSummarizer: %w", err)
		}
		return c, nil
	case config.ProviderOpenAI:
		cfg := summarizer.DefaultOpenAIConfig(s.OpenAIAPIKey)
		applySummarizerOverrides(&cfg, s)
		logger.Info("summarizer selected", slog.String("provider", s.Provider), slog.String("model", cfg.Model))
		o, err := summarizer.NewOpenAI(cfg, summarizer.NewPrometheusSummaryMetrics())
		if err != nil {
			return nil, fmt.Errorf("NewSummarizer: %w", err)
		}
		return o, nil
	case config.ProviderNoop:
		logger.Info("summarizer selected", slog.String("provider", s.Provider))
		return summarizer.NewNoOp(), nil
	default:
		return nil, fmt.Errorf("NewSummarizer: unknown provider %q", s.Provider)
	}
}

func applySummarizerOverrides(cfg *summarizer.Config, s config.SummarizerConfig) {
	if s.Model != "" {
		cfg.Model = s.Model
	}
	if s.BaseURL != "" {
		cfg.BaseURL = s.BaseURL
	}
	if s.Timeout > 0 {
		cfg.Timeout = s.Timeout
	}
}

// SummarizeConfig derives the summarization consumer settings from aiCfg.
func SummarizeConfig(aiCfg *config.AIConfig) summarize.Config {
	cfg := summarize.DefaultConfig()
	if aiCfg.Summarizer.MinSources > 0 {
		cfg.MinSources = aiCfg.Summarizer.MinSources
	}
	if aiCfg.Summarizer.CharacterLimit > 0 {
		cfg.CharacterLimit = aiCfg.Summarizer.CharacterLimit
	}
	return cfg
}

// ArticleStragglers sweeps unprocessed articles below the clustering checkpoint
// that have not been dead-lettered yet.
func ArticleStragglers(articles repository.ArticleRepository, maxAttempts int) changefeed.StragglerFunc[*entity.Article] {
	return func(ctx context.Context, throughSeq int64, limit int) ([]*entity.Article, error) {
		return articles.Unprocessed(ctx, throughSeq, maxAttempts, limit)
	}
}

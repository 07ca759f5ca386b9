// Command worker runs the storywire pipeline: scheduled feed ingestion, the
// clustering consumer of the article change feed and the summarization
// consumer of the story change feed.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"storywire/internal/app"
	"storywire/internal/config"
	"storywire/internal/domain/entity"
	workerPkg "storywire/internal/infra/worker"
	"storywire/internal/observability/logging"
	"storywire/internal/observability/slo"
	pkgconfig "storywire/internal/pkg/config"
	"storywire/internal/usecase/changefeed"
	"storywire/internal/usecase/cluster"
	"storywire/internal/usecase/summarize"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("worker stopped", logging.Err(err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		return fmt.Errorf("load worker configuration: %w", err)
	}
	if err := workerConfig.Validate(); err != nil {
		return err
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.String("feeds_file", workerConfig.FeedsFile),
		slog.Int("max_concurrent_fetches", workerConfig.MaxConcurrentFetches),
		slog.Duration("cycle_timeout", workerConfig.CycleTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	clusterConfig, collector := cluster.LoadConfigFromEnv()
	for _, w := range collector.Warnings {
		logger.Warn("Configuration fallback applied", slog.String("warning", w))
	}
	pkgconfig.NewConfigMetrics("cluster").Report(collector)

	aiConfig, err := config.LoadAIConfig()
	if err != nil {
		return err
	}

	stores, err := app.OpenStores(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Error("failed to close stores", logging.Err(err))
		}
	}()

	ingestion, err := app.NewIngestion(workerConfig, stores, logger)
	if err != nil {
		return err
	}
	engine, err := app.NewEngine(stores, clusterConfig, aiConfig, logger)
	if err != nil {
		return err
	}
	sum, err := app.NewSummarizer(aiConfig, logger)
	if err != nil {
		return err
	}

	// Metrics and health servers
	startMetricsServer(ctx, logger, workerConfig.MetricsPort, ingestion)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	for name, check := range stores.Checks() {
		healthServer.AddCheck(name, check)
	}
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	// Change-feed consumers
	var wg sync.WaitGroup
	startConsumers(ctx, &wg, logger, workerConfig, stores, engine, sum, aiConfig, clusterConfig)

	// Scheduled ingestion
	scheduler, err := newCron(logger, workerConfig, func() {
		runIngestCycle(logger, ingestion, workerConfig, workerMetrics)
	})
	if err != nil {
		return err
	}
	scheduler.Start()
	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.String("schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.String("backend", stores.Backend))

	<-ctx.Done()
	logger.Info("shutdown initiated")
	healthServer.SetReady(false)

	<-scheduler.Stop().Done()
	wg.Wait()
	engine.Wait()
	logger.Info("worker stopped cleanly")
	return nil
}

// startConsumers runs the clustering and summarization change-feed processors until ctx ends.
func startConsumers(
	ctx context.Context,
	wg *sync.WaitGroup,
	logger *slog.Logger,
	cfg *workerPkg.WorkerConfig,
	stores *app.Stores,
	engine *cluster.Engine,
	sum summarize.Summarizer,
	aiConfig *config.AIConfig,
	clusterConfig cluster.Config,
) {
	feedConfig := func(group string) changefeed.Config {
		return changefeed.Config{
			Group:        group,
			BatchSize:    cfg.ChangeFeedBatchSize,
			Parallelism:  cfg.ChangeFeedParallelism,
			PollInterval: cfg.ChangeFeedPollInterval,
			LeaseTTL:     cfg.ChangeFeedLeaseTTL,
		}
	}

	clustering := changefeed.NewProcessor[*entity.Article](
		feedConfig("clustering"),
		stores.Articles,
		stores.Leases,
		cluster.ArticleHandler{Engine: engine},
		logger,
		changefeed.WithLagObserver[*entity.Article](slo.UpdateClusteringLag),
		changefeed.WithStragglers[*entity.Article](app.ArticleStragglers(stores.Articles, clusterConfig.MaxAttempts)),
	)

	summaries := changefeed.NewProcessor[*entity.Story](
		feedConfig("summarization"),
		stores.Stories,
		stores.Leases,
		summarize.NewHandler(stores.Articles, stores.Summaries, sum, app.SummarizeConfig(aiConfig), logger),
		logger,
	)

	for name, run := range map[string]func(context.Context) error{
		"clustering":    clustering.Run,
		"summarization": summaries.Run,
	} {
		wg.Add(1)
		go func(name string, run func(context.Context) error) {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("change-feed consumer stopped", slog.String("group", name), logging.Err(err))
			}
		}(name, run)
	}
}

// newCron schedules job once per tick. A tick starts a new cycle even when the
// previous one is still waiting on slow feeds; panics are recovered and logged.
func newCron(logger *slog.Logger, cfg *workerPkg.WorkerConfig, job func()) (*cron.Cron, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{logger})),
	)
	if _, err := c.AddFunc(cfg.CronSchedule, job); err != nil {
		return nil, fmt.Errorf("add cron job: %w", err)
	}
	return c, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, slog.Any("error", err))...)
}

// runIngestCycle executes a single ingestion cycle with timeout and error handling.
func runIngestCycle(logger *slog.Logger, ingestion *app.Ingestion, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.CycleTimeout)
	defer cancel()
	ctx = logging.ContextWithCycleID(ctx, uuid.NewString())
	log := logging.WithCycleID(ctx, logger)
	log.Info("ingestion cycle started")

	stats, err := ingestion.Service.RunCycle(ctx)
	metrics.RecordJobDuration(time.Since(startTime).Seconds())
	if err != nil {
		log.Error("ingestion cycle failed", logging.Err(err))
		metrics.RecordJobRun("failure")
		return
	}

	metrics.RecordJobRun("success")
	metrics.RecordFeedsProcessed(stats.FeedsSelected)
	metrics.RecordArticlesInserted(int(stats.Inserted))
	metrics.RecordLastSuccess()

	log.Info("ingestion cycle completed",
		slog.Int("feeds", stats.FeedsSelected),
		slog.Int64("fetched", stats.Fetched),
		slog.Int64("not_modified", stats.NotModified),
		slog.Int64("circuit_open", stats.CircuitOpen),
		slog.Int64("failed", stats.Failed),
		slog.Int64("inserted", stats.Inserted),
		slog.Int64("duplicates", stats.Duplicates),
		slog.Int64("rejected", stats.Rejected),
		slog.Duration("duration", stats.Duration))
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"storywire/internal/app"
	"storywire/internal/config"
	"storywire/internal/domain/entity"
	"storywire/internal/infra/db"
	"storywire/internal/infra/fetcher"
	"storywire/internal/infra/worker"
	"storywire/internal/observability/logging"
	"storywire/internal/usecase/changefeed"
	"storywire/internal/usecase/cluster"
	"storywire/internal/usecase/summarize"
)

// workerConfig loads the worker configuration and applies the --feeds override.
func workerConfig(cmd *cobra.Command, logger *slog.Logger) (*worker.WorkerConfig, error) {
	cfg, err := worker.LoadConfigFromEnv(logger, nil)
	if err != nil {
		return nil, err
	}
	if path, _ := cmd.Flags().GetString("feeds"); path != "" {
		cfg.FeedsFile = path
	}
	return cfg, nil
}

func ingestCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion cycle and print its statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.NewTextLogger()
			cfg, err := workerConfig(cmd, logger)
			if err != nil {
				return err
			}
			stores, err := app.OpenStores(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			ingestion, err := app.NewIngestion(cfg, stores, logger)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.CycleTimeout)
			defer cancel()
			stats, err := ingestion.Service.RunCycle(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "feeds\t%d\n", stats.FeedsSelected)
			fmt.Fprintf(w, "fetched\t%d\n", stats.Fetched)
			fmt.Fprintf(w, "not modified\t%d\n", stats.NotModified)
			fmt.Fprintf(w, "circuit open\t%d\n", stats.CircuitOpen)
			fmt.Fprintf(w, "failed\t%d\n", stats.Failed)
			fmt.Fprintf(w, "inserted\t%d\n", stats.Inserted)
			fmt.Fprintf(w, "duplicates\t%d\n", stats.Duplicates)
			fmt.Fprintf(w, "rejected\t%d\n", stats.Rejected)
			fmt.Fprintf(w, "duration\t%s\n", stats.Duration.Round(time.Millisecond))
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print statistics as JSON")
	return cmd
}

func breakerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breaker",
		Short: "Inspect per-feed circuit breakers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print tracked feeds and open circuits",
		Long: `Print the feed circuit breaker summary.

Breaker state is shared between workers only when REDIS_ADDR is set;
otherwise this process starts with an empty breaker.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.NewTextLogger()
			cfg, err := workerConfig(cmd, logger)
			if err != nil {
				return err
			}
			stores, err := app.OpenStores(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			ingestion, err := app.NewIngestion(cfg, stores, logger)
			if err != nil {
				return err
			}
			st, err := ingestion.Breaker.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("breaker status: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), st)
		},
	})
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or drop the Postgres schema (needs DATABASE_URL)",
	}
	run := func(name string, step func(context.Context, db.Execer) error) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: "Run the " + name + " migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				logger := logging.NewTextLogger()
				database, err := db.OpenFromEnv(cmd.Context(), logger)
				if err != nil {
					return err
				}
				defer func() { _ = database.Close() }()
				if err := step(cmd.Context(), database); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: done\n", name)
				return nil
			},
		}
	}
	cmd.AddCommand(run("up", db.MigrateUp), run("down", db.MigrateDown))
	return cmd
}

func feedsCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "Print the configured feeds grouped by category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := workerConfig(cmd, slog.New(slog.NewTextHandler(io.Discard, nil)))
			if err != nil {
				return err
			}
			feeds, err := config.LoadFeeds(cfg.FeedsFile)
			if err != nil {
				return err
			}
			return printFeeds(cmd.OutOrStdout(), feeds, category)
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "only print this category")
	cmd.AddCommand(feedsCheckCmd())
	return cmd
}

func feedsCheckCmd() *cobra.Command {
	var (
		asJSON      bool
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe every configured feed and report its health",
		Long: `Fetch every configured feed once, ignoring circuit breakers and cached
validators, and report HTTP status, item count and latest entry time.
Exits non-zero when any feed is not OK.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			cfg, err := workerConfig(cmd, logger)
			if err != nil {
				return err
			}
			feeds, err := config.LoadFeeds(cfg.FeedsFile)
			if err != nil {
				return err
			}
			fetchCfg, err := fetcher.LoadConfigFromEnv()
			if err != nil {
				return err
			}
			results := fetcher.Diagnose(cmd.Context(), fetchCfg, nil, feeds, concurrency)
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}
			} else if err := printDiagnostics(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			return checkFailures(results)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "feeds probed at once")
	return cmd
}

var errFeedsUnhealthy = errors.New("unhealthy feeds")

func checkFailures(results []fetcher.Diagnostic) error {
	bad := 0
	for _, d := range results {
		if d.Status != fetcher.DiagnosticOK {
			bad++
		}
	}
	if bad > 0 {
		return fmt.Errorf("%w: %d of %d", errFeedsUnhealthy, bad, len(results))
	}
	return nil
}

func printDiagnostics(out io.Writer, results []fetcher.Diagnostic) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FEED\tSTATUS\tCODE\tITEMS\tLATEST\tMS\tERROR")
	for _, d := range results {
		latest := "-"
		if d.Latest != nil {
			latest = d.Latest.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%d\t%s\n",
			d.FeedID, d.Status, d.HTTPCode, d.ItemCount, latest, d.ResponseTimeMS, d.Error)
	}
	return w.Flush()
}

func printFeeds(out io.Writer, feeds []entity.FeedConfig, only string) error {
	byCategory := config.FeedsByCategory(feeds)
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		if only == "" || strings.EqualFold(c, only) {
			categories = append(categories, c)
		}
	}
	if len(categories) == 0 {
		return fmt.Errorf("no feeds in category %q", only)
	}
	sort.Strings(categories)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, c := range categories {
		fmt.Fprintf(w, "%s (%d)\n", c, len(byCategory[c]))
		for _, f := range byCategory[c] {
			fmt.Fprintf(w, "  %s\ttier %d\t%s\t%s\n", f.ID, f.Tier, f.Language, f.URL)
		}
	}
	return w.Flush()
}

func drainCmd() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Process pending change-feed documents once and exit",
		Long: `Run a single pass of a change-feed consumer group.

Groups:
  clustering     assign new articles to stories
  summarization  refresh summaries of corroborated stories`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.NewTextLogger()
			cfg, err := workerConfig(cmd, logger)
			if err != nil {
				return err
			}
			stores, err := app.OpenStores(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			res, err := drainOnce(cmd.Context(), group, cfg, stores, logger)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&group, "group", "g", "clustering", "consumer group: clustering or summarization")
	return cmd
}

var errUnknownGroup = errors.New("unknown consumer group")

func drainOnce(ctx context.Context, group string, cfg *worker.WorkerConfig, stores *app.Stores, logger *slog.Logger) (changefeed.BatchResult, error) {
	feedCfg := changefeed.Config{
		Group:       group,
		BatchSize:   cfg.ChangeFeedBatchSize,
		Parallelism: cfg.ChangeFeedParallelism,
		LeaseTTL:    cfg.ChangeFeedLeaseTTL,
	}
	aiCfg, err := config.LoadAIConfig()
	if err != nil {
		return changefeed.BatchResult{}, err
	}

	switch group {
	case "clustering":
		clusterCfg, _ := cluster.LoadConfigFromEnv()
		engine, err := app.NewEngine(stores, clusterCfg, aiCfg, logger)
		if err != nil {
			return changefeed.BatchResult{}, err
		}
		defer engine.Wait()
		p := changefeed.NewProcessor[*entity.Article](feedCfg, stores.Articles, stores.Leases, cluster.ArticleHandler{Engine: engine}, logger,
			changefeed.WithStragglers[*entity.Article](app.ArticleStragglers(stores.Articles, clusterCfg.MaxAttempts)))
		return p.RunOnce(ctx)
	case "summarization":
		sum, err := app.NewSummarizer(aiCfg, logger)
		if err != nil {
			return changefeed.BatchResult{}, err
		}
		h := summarize.NewHandler(stores.Articles, stores.Summaries, sum, app.SummarizeConfig(aiCfg), logger)
		p := changefeed.NewProcessor[*entity.Story](feedCfg, stores.Stories, stores.Leases, h, logger)
		return p.RunOnce(ctx)
	default:
		return changefeed.BatchResult{}, fmt.Errorf("%w %q", errUnknownGroup, group)
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-scout/internal/config"
	"github.com/jonathan/job-scout/internal/db"
	"github.com/jonathan/job-scout/internal/jobsource"
	"github.com/jonathan/job-scout/internal/llm"
	"github.com/jonathan/job-scout/internal/matching"
	"github.com/jonathan/job-scout/internal/observability"
)

var matchCommand = &cobra.Command{
	Use:   "match",
	Short: "Run one batch matching run over all stored profiles",
	Long: `Purges expired postings, then for every user with a stored profile searches
the job source, ingests and deduplicates results, and scores them against the
profile. Users already checkpointed under the given epoch are skipped, so an
interrupted run can be resumed by re-running with the same epoch.`,
	RunE: runMatchCmd,
}

var (
	matchConfigPath  string
	matchEpoch       string
	matchAPIKey      string
	matchDatabaseURL string
	matchSourceID    string
	matchSourceKey   string
	matchCountry     string
	matchConcurrency int
	matchVerbose     bool
)

func init() {
	matchCommand.Flags().StringVar(&matchConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	matchCommand.Flags().StringVarP(&matchEpoch, "epoch", "e", "", "Run epoch for checkpointing (defaults to today's date)")
	matchCommand.Flags().StringVar(&matchSourceID, "source-id", "", "Job source application ID (optional, defaults to JOB_SOURCE_ID env var)")
	matchCommand.Flags().StringVar(&matchSourceKey, "source-key", "", "Job source application key (optional, defaults to JOB_SOURCE_KEY env var)")
	matchCommand.Flags().StringVar(&matchCountry, "country", "us", "Job source country code")
	matchCommand.Flags().IntVar(&matchConcurrency, "concurrency", 0, "Maximum users processed in parallel")
	matchCommand.Flags().BoolVarP(&matchVerbose, "verbose", "v", false, "Print detailed debug information")

	matchCommand.Flags().StringVar(&matchAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	matchCommand.Flags().StringVar(&matchDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(matchCommand)
}

func runMatchCmd(cmd *cobra.Command, _ []string) error {
	// SIGINT stops dispatching new users; in-flight users finish and
	// checkpoint, so the epoch can be resumed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadMergedConfig(cmd, matchConfigPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("source-id") {
		cfg.JobSourceID = matchSourceID
	}
	if cmd.Flags().Changed("source-key") {
		cfg.JobSourceKey = matchSourceKey
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency = matchConcurrency
	}
	if cfg.JobSourceID == "" {
		cfg.JobSourceID = os.Getenv("JOB_SOURCE_ID")
	}
	if cfg.JobSourceKey == "" {
		cfg.JobSourceKey = os.Getenv("JOB_SOURCE_KEY")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	epoch := matchEpoch
	if epoch == "" {
		epoch = time.Now().UTC().Format("2006-01-02")
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	if err := database.EnsureSchema(ctx); err != nil {
		return err
	}

	client, err := llm.NewGeminiClient(ctx, llm.DefaultConfig(), cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create completion client: %w", err)
	}
	defer func() { _ = client.Close() }()
	caller := llm.NewCaller(client)

	source := jobsource.NewClient(cfg.JobSourceID, cfg.JobSourceKey, matchCountry)
	ingestor := matching.NewIngestor(database, jobsource.NewScraper(), cfg.StalenessWindow())
	scorer := matching.NewScorer(database, caller, cfg.RecommendThreshold)
	aggregator := matching.NewAggregator(database, database, database, caller)

	scheduler := matching.NewScheduler(database, source, ingestor, scorer, aggregator,
		database, database, matching.SchedulerOptions{
			Concurrency: cfg.Concurrency,
			PostingTTL:  cfg.PostingTTL(),
			Verbose:     cfg.Verbose,
		})

	fmt.Printf("Starting matching run (epoch %s)\n", epoch)
	report, err := scheduler.Run(ctx, epoch)
	if err != nil {
		return fmt.Errorf("matching run failed: %w", err)
	}

	observability.NewPrinter(os.Stdout).PrintRunReport(report)
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d users failed; re-run with --epoch %s to retry", report.Failed, report.Users, epoch)
	}
	return nil
}

// loadMergedConfig loads the optional config file, applies defaults, and
// resolves credentials from the environment.
func loadMergedConfig(cmd *cobra.Command, path string) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return cfg, err
		}
		cfg = *loaded
	}

	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = cmd.Flag("api-key").Value.String()
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = cmd.Flag("db-url").Value.String()
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = cmd.Flag("verbose").Value.String() == "true"
	}

	cfg = cfg.MergeWithDefaults(config.Defaults())

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return cfg, fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	return cfg, nil
}

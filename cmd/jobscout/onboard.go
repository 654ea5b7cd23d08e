package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/job-scout/internal/db"
	"github.com/jonathan/job-scout/internal/llm"
	"github.com/jonathan/job-scout/internal/observability"
	"github.com/jonathan/job-scout/internal/profile"
	"github.com/jonathan/job-scout/internal/types"
)

var onboardCommand = &cobra.Command{
	Use:   "onboard",
	Short: "Run an interactive profile refinement session",
	Long: `Runs the refinement pipeline for one user: parse the resume text, score
completeness, ask clarification questions on stdin, and finalize the profile.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runOnboardCmd,
}

var (
	onboardConfigPath  string
	onboardUserID      string
	onboardResumePath  string
	onboardAPIKey      string
	onboardDatabaseURL string
	onboardTarget      float64
	onboardIterations  int
	onboardQuestions   int
	onboardVerbose     bool
)

func init() {
	onboardCommand.Flags().StringVar(&onboardConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	onboardCommand.Flags().StringVarP(&onboardUserID, "user-id", "u", "", "User identifier for this session")
	onboardCommand.Flags().StringVarP(&onboardResumePath, "resume", "r", "", "Path to extracted resume text (optional; omit for a conversation-only session)")
	onboardCommand.Flags().Float64Var(&onboardTarget, "target-score", 0, "Completeness score that ends the refinement loop")
	onboardCommand.Flags().IntVar(&onboardIterations, "max-iterations", 0, "Maximum refinement iterations")
	onboardCommand.Flags().IntVar(&onboardQuestions, "max-questions", 0, "Maximum questions per iteration")
	onboardCommand.Flags().BoolVarP(&onboardVerbose, "verbose", "v", false, "Print detailed debug information")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	onboardCommand.Flags().StringVar(&onboardAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	// Database URL for profile handoff
	onboardCommand.Flags().StringVar(&onboardDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(onboardCommand)
}

func runOnboardCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadMergedConfig(cmd, onboardConfigPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("target-score") {
		cfg.TargetScore = onboardTarget
	}
	if cmd.Flags().Changed("max-iterations") {
		cfg.MaxIterations = onboardIterations
	}
	if cmd.Flags().Changed("max-questions") {
		cfg.MaxQuestions = onboardQuestions
	}

	if onboardUserID == "" {
		return fmt.Errorf("--user-id is required")
	}

	var rawText string
	if onboardResumePath != "" {
		data, err := os.ReadFile(onboardResumePath)
		if err != nil {
			return fmt.Errorf("failed to read resume text: %w", err)
		}
		rawText = string(data)
	}

	client, err := llm.NewGeminiClient(ctx, llm.DefaultConfig(), cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create completion client: %w", err)
	}
	defer func() { _ = client.Close() }()
	caller := llm.NewCaller(client, llm.WithCallBudget(cfg.CompletionBudget))

	conv := profile.NewChannelConversation()
	go promptLoop(conv)

	printer := observability.NewPrinter(os.Stdout)
	opts := profile.Options{
		TargetScore:   cfg.TargetScore,
		MaxIterations: cfg.MaxIterations,
		MaxQuestions:  cfg.MaxQuestions,
		IdleTimeout:   cfg.SessionIdleTimeout(),
	}
	if cfg.Verbose {
		opts.OnProgress = func(event profile.ProgressEvent) {
			fmt.Printf("[VERBOSE] %s (iteration %d, score %.1f): %s\n",
				event.State, event.Iteration, event.Score, event.Message)
		}
	}

	run := &types.PipelineRun{
		ID:      uuid.New().String(),
		UserID:  onboardUserID,
		Profile: types.NewProfile(),
		State:   types.StateNew,
	}

	fmt.Printf("Starting session %s for user %s\n", run.ID, run.UserID)
	orch := profile.NewOrchestrator(caller, conv, opts)
	if err := orch.Run(ctx, run, rawText); err != nil {
		return fmt.Errorf("refinement session failed: %w", err)
	}

	fmt.Printf("Session finished: %s (score %.1f, %d questions asked)\n",
		run.State, run.CompletenessScore, run.QuestionsAsked)
	if cfg.Verbose {
		printer.PrintProfile(run.Profile, run.CompletenessScore)
	}

	// Handoff: any terminal profile is stored, DEGRADED ones included.
	if cfg.DatabaseURL == "" {
		fmt.Println("No database configured; profile not persisted.")
		return nil
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	if err := database.EnsureSchema(ctx); err != nil {
		return err
	}
	if run.State == types.StateFailed {
		fmt.Println("Session failed; profile not persisted.")
		return nil
	}
	if err := database.SaveProfile(ctx, run.UserID, run.Profile, run.CompletenessScore, run.State); err != nil {
		return fmt.Errorf("failed to persist profile: %w", err)
	}
	// A refreshed profile changes what the matcher should look for.
	if err := database.MarkKeywordCacheStale(ctx, run.UserID); err != nil {
		return fmt.Errorf("failed to invalidate keyword cache: %w", err)
	}
	fmt.Println("Profile persisted.")
	return nil
}

// promptLoop bridges the conversation channels to the terminal. One line per
// question; a blank line skips it, and "omit <cluster> [reason]" hides a
// cluster instead of answering.
func promptLoop(conv *profile.ChannelConversation) {
	scanner := bufio.NewScanner(os.Stdin)
	for questions := range conv.Outbound {
		msg := &profile.Message{}
		for i, q := range questions {
			fmt.Printf("\n[%d/%d] %s\n> ", i+1, len(questions), q.Text)
			if !scanner.Scan() {
				conv.Close()
				return
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if rest, ok := strings.CutPrefix(line, "omit "); ok {
				cluster, reason, _ := strings.Cut(rest, " ")
				msg.Toggles = append(msg.Toggles, profile.Toggle{
					Cluster: cluster,
					Include: false,
					Reason:  strings.TrimSpace(reason),
				})
				continue
			}
			msg.Answers = append(msg.Answers, profile.Answer{Cluster: q.Cluster, Text: line})
		}
		conv.Inbound <- msg
	}
}

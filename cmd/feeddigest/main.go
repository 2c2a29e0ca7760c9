package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"FeedDigest/internal/app"
	"FeedDigest/internal/config"
	"FeedDigest/internal/logging"
	"FeedDigest/internal/usecase"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:           "feeddigest",
		Short:         "Weekly news digest from syndicated feeds",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd(), statsCmd(), scheduleCmd(), testEmailCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		days        int
		testMode    bool
		dryRun      bool
		fetchOnly   bool
		processOnly bool
		sendOnly    bool
		stateless   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, analyze and send one digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := config.ModeFull
			switch {
			case stateless:
				mode = config.ModeStateless
			case fetchOnly:
				mode = config.ModeFetch
			case processOnly:
				mode = config.ModeProcess
			case sendOnly:
				mode = config.ModeSend
			}

			limit := 0
			if testMode {
				limit = usecase.TestModeLimit
			}

			ctx := cmd.Context()
			application, logger, err := setup(ctx, mode, dryRun, app.Options{Stateless: stateless})
			if err != nil {
				return err
			}
			defer application.Close()

			pipeline := application.Pipeline()
			switch mode {
			case config.ModeFetch:
				logger.Info("running fetch-only mode")
				_, _, err = pipeline.FetchAndStore(ctx, days, limit)
			case config.ModeProcess:
				logger.Info("running process-only mode")
				_, err = pipeline.ProcessArticles(ctx, limit)
			case config.ModeSend:
				logger.Info("running send-only mode")
				_, err = pipeline.GenerateAndSend(ctx, days, dryRun)
			default:
				_, err = pipeline.RunFull(ctx, usecase.RunOptions{Days: days, Limit: limit, DryRun: dryRun})
			}
			return err
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Number of days to look back for articles")
	cmd.Flags().BoolVar(&testMode, "test", false, "Test mode: handle at most 5 articles")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Generate the digest but do not send it")
	cmd.Flags().BoolVar(&fetchOnly, "fetch-only", false, "Only fetch and store articles")
	cmd.Flags().BoolVar(&processOnly, "process-only", false, "Only analyze pending articles")
	cmd.Flags().BoolVar(&sendOnly, "send-only", false, "Only generate and send the digest from analyzed articles")
	cmd.Flags().BoolVar(&stateless, "stateless", false, "Compose directly from fetched articles without a persistent store")
	cmd.MarkFlagsMutuallyExclusive("fetch-only", "process-only", "send-only", "stateless")

	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print article store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, _, err := setup(ctx, config.ModeStats, false, app.Options{})
			if err != nil {
				return err
			}
			defer application.Close()

			stats, err := application.Pipeline().Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("total: %d\nanalyzed: %d\ndelivered: %d\npending_analysis: %d\n",
				stats.Total, stats.Analyzed, stats.Delivered, stats.PendingAnalysis)
			return nil
		},
	}
}

func scheduleCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the full workflow on the configured cron expression",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, _, err := setup(ctx, config.ModeFull, false, app.Options{})
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Schedule(ctx, usecase.RunOptions{Days: days})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "Number of days each scheduled digest covers")
	return cmd
}

func testEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-email",
		Short: "Send a test email to verify mail configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, logger, err := setup(ctx, config.ModeMail, false, app.Options{Stateless: true})
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.SendTestEmail(ctx); err != nil {
				return err
			}
			logger.Info("test email sent")
			return nil
		},
	}
}

func setup(ctx context.Context, mode config.Mode, dryRun bool, opts app.Options) (*app.Application, *slog.Logger, error) {
	cfg := config.Load()
	logger := logging.New(logging.Verbose(cfg.Logging.Level, verbose))

	if err := cfg.Validate(mode, dryRun); err != nil {
		return nil, nil, err
	}

	application, err := app.New(ctx, cfg, logger, opts)
	if err != nil {
		return nil, nil, err
	}
	return application, logger, nil
}

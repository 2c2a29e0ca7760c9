package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"FeedDigest/internal/config"
	"FeedDigest/internal/digest"
	"FeedDigest/internal/infrastructure/archive"
	"FeedDigest/internal/infrastructure/llm"
	"FeedDigest/internal/infrastructure/mail"
	"FeedDigest/internal/infrastructure/parser"
	"FeedDigest/internal/infrastructure/scheduler"
	"FeedDigest/internal/infrastructure/storage"
	"FeedDigest/internal/logging"
	"FeedDigest/internal/ports"
	"FeedDigest/internal/prompts"
	"FeedDigest/internal/scanner"
	"FeedDigest/internal/usecase"
)

// Options select the pipeline variant.
type Options struct {
	// Stateless keeps articles in memory and composes from raw items in one call.
	Stateless bool
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sql.DB
	mailer   *mail.SendGridMailer
	pipeline *usecase.Pipeline
}

// New builds every adapter from configuration.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	set, err := prompts.Load(cfg.Prompts.AnalysisPath, cfg.Prompts.DigestPath)
	if err != nil {
		return nil, err
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	repo, err := a.openRepository(ctx, opts.Stateless)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Fetch.Timeout}
	registry := scanner.NewRegistry()
	registry.Register(parser.NewRSSScanner(httpClient, cfg.Fetch.UserAgent))
	registry.Register(parser.NewHTMLScanner(httpClient, cfg.Fetch.UserAgent))
	source := parser.NewStrategySource(registry, cfg.Feeds, cfg.Fetch, baseLogger.With("component", "source"))

	usage := llm.NewUsageTracker(cfg.LLM.InputCostPerMillion, cfg.LLM.OutputCostPerMillion)
	chat := llm.NewChatClient(cfg.LLM, usage)

	var analyzer ports.Analyzer
	strategy := digest.SingleStage
	if !opts.Stateless {
		analyzer = llm.NewAnalyzer(chat, baseLogger.With("component", "analyzer"))
		strategy = digest.TwoStage
	}
	composer := digest.NewComposer(chat, strategy, cfg.LLM.SystemPrompt, baseLogger.With("component", "composer"))

	a.mailer = mail.NewSendGridMailer(cfg.Mail, baseLogger.With("component", "mailer"))

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:              source,
		Repository:          repo,
		Analyzer:            analyzer,
		Composer:            composer,
		Renderer:            mail.NewPage(cfg.Mail.TemplatePath, cfg.Mail.Title, baseLogger.With("component", "page")),
		Mailer:              a.mailer,
		Archive:             a.buildArchive(ctx),
		Usage:               usage,
		Logger:              baseLogger,
		AnalysisPrompt:      set.Analysis,
		DigestPrompt:        set.Digest,
		Recipient:           cfg.Mail.To,
		Title:               cfg.Mail.Title,
		RequireAnalyzed:     !opts.Stateless,
		AnalysisConcurrency: cfg.Analysis.Concurrency,
	})

	return a, nil
}

// Pipeline exposes the use case for stage-scoped CLI runs.
func (a *Application) Pipeline() *usecase.Pipeline {
	return a.pipeline
}

// Schedule runs the full workflow on the configured cron expression until ctx ends.
func (a *Application) Schedule(ctx context.Context, opts usecase.RunOptions) error {
	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location())
	sched := usecase.NewScheduler(driver, a.pipeline, opts)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("scheduler started",
		"cron", a.cfg.Scheduler.CronExpression,
		"timezone", a.cfg.Scheduler.Location().String(),
		"next", driver.Next().Format(time.RFC3339))

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

// SendTestEmail verifies mail configuration with a short message.
func (a *Application) SendTestEmail(ctx context.Context) error {
	return a.mailer.Send(ctx, mail.TestMessage(a.cfg.Mail.To, a.cfg.Mail.Title, time.Now()))
}

// Close releases the database connection when one was opened.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *Application) openRepository(ctx context.Context, stateless bool) (ports.ArticleRepository, error) {
	repoLogger := a.logger.With("component", "store")
	if stateless || a.cfg.Database.Driver == "memory" {
		return storage.NewMemoryRepository(repoLogger), nil
	}

	db, dialect, err := storage.Open(ctx, a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open article store: %w", err)
	}
	a.db = db
	return storage.NewSQLRepository(db, dialect, repoLogger), nil
}

func (a *Application) buildArchive(ctx context.Context) ports.Archive {
	archives := archive.Multi{archive.NewLocal(a.cfg.Archive.Dir)}
	if a.cfg.Archive.S3Bucket == "" {
		return archives
	}

	s3Archive, err := archive.NewS3(ctx, a.cfg.Archive)
	if err != nil {
		a.logger.Warn("s3 archive disabled", "bucket", a.cfg.Archive.S3Bucket, "error", err)
		return archives
	}
	return append(archives, s3Archive)
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"FeedDigest/internal/domain"
	"FeedDigest/internal/ports"
)

// TestModeLimit caps fetched and analyzed articles in test runs.
const TestModeLimit = 5

// PipelineDeps wires all driven adapters into the orchestration pipeline.
// A nil Analyzer collapses the run into the single-stage variant.
type PipelineDeps struct {
	Source     ports.ArticleSource
	Repository ports.ArticleRepository
	Analyzer   ports.Analyzer
	Composer   ports.Composer
	Renderer   ports.PageRenderer
	Mailer     ports.Mailer
	Archive    ports.Archive
	Usage      ports.UsageMeter
	Logger     *slog.Logger

	AnalysisPrompt      string
	DigestPrompt        string
	Recipient           string
	Title               string
	RequireAnalyzed     bool
	AnalysisConcurrency int
	Now                 func() time.Time
}

// RunOptions scope one orchestration pass.
type RunOptions struct {
	Days   int
	Limit  int
	DryRun bool
}

// Report summarizes one pass for the final log line and the CLI.
type Report struct {
	Fetched  int
	New      int
	Analyzed int
	Selected int
	Sent     bool
	Stats    domain.Stats
	Tokens   int
	CostUSD  float64
}

// DigestResult describes the outcome of the digest stage.
type DigestResult struct {
	Range    domain.DateRange
	Selected int
	Sent     bool
}

// Pipeline implements the article lifecycle workflow.
type Pipeline struct {
	deps   PipelineDeps
	logger *slog.Logger
	now    func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	if deps.AnalysisConcurrency < 1 {
		deps.AnalysisConcurrency = 1
	}
	return &Pipeline{deps: deps, logger: logger.With("component", "pipeline"), now: now}
}

// FetchAndStore pulls every feed and inserts unseen articles. It returns the
// number fetched and the number newly stored.
func (p *Pipeline) FetchAndStore(ctx context.Context, days, limit int) (int, int, error) {
	if p.deps.Source == nil || p.deps.Repository == nil {
		return 0, 0, errors.New("fetch stage requires a source and a repository")
	}

	cutoff := p.now().AddDate(0, 0, -days)
	p.logger.Info("fetching articles", "days", days, "cutoff", cutoff.Format(time.DateOnly))

	articles, err := p.deps.Source.Fetch(ctx, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch articles: %w", err)
	}
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
		p.logger.Info("limited articles for testing", "limit", limit)
	}

	stored := 0
	for _, article := range articles {
		if _, ok := p.deps.Repository.Insert(ctx, article); ok {
			stored++
		}
	}

	p.logger.Info("stored articles", "fetched", len(articles), "new", stored)
	return len(articles), stored, nil
}

// ProcessArticles analyzes pending articles. Per-article failures are logged
// and leave the article pending for a later run.
func (p *Pipeline) ProcessArticles(ctx context.Context, limit int) (int, error) {
	if p.deps.Analyzer == nil || p.deps.Repository == nil {
		return 0, errors.New("process stage requires an analyzer and a repository")
	}

	pending := p.deps.Repository.Unanalyzed(ctx, limit)
	if len(pending) == 0 {
		p.logger.Info("no articles to process")
		return 0, nil
	}
	p.logger.Info("processing articles", "count", len(pending))

	var analyzed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.deps.AnalysisConcurrency)

	for _, article := range pending {
		g.Go(func() error {
			analysis, err := p.deps.Analyzer.Analyze(gctx, article, p.deps.AnalysisPrompt)
			if err != nil {
				p.logger.Warn("failed to analyze article", "title", article.Title, "url", article.URL, "error", err)
				return nil
			}
			if p.deps.Repository.RecordAnalysis(gctx, article.URL, analysis) {
				analyzed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	count := int(analyzed.Load())
	p.logger.Info("processed articles", "analyzed", count, "failed", len(pending)-count)
	p.logUsage()
	return count, nil
}

// GenerateAndSend selects, composes, renders, archives and dispatches one
// digest. Articles are marked delivered only after a confirmed send.
func (p *Pipeline) GenerateAndSend(ctx context.Context, days int, dryRun bool) (DigestResult, error) {
	now := p.now()
	window := domain.LastDays(now, days)
	result := DigestResult{Range: window}

	if p.deps.Repository == nil || p.deps.Composer == nil || p.deps.Renderer == nil {
		return result, errors.New("digest stage requires a repository, a composer and a renderer")
	}

	articles, err := p.deps.Repository.SelectForDigest(ctx, window.Start, window.End, p.deps.RequireAnalyzed)
	if err != nil {
		return result, fmt.Errorf("select articles: %w", err)
	}
	result.Selected = len(articles)
	p.logger.Info("selected articles for digest", "selected", len(articles), "range", window.Label())

	body, err := p.deps.Composer.Compose(ctx, articles, p.deps.DigestPrompt, window)
	if err != nil {
		if errors.Is(err, domain.ErrNoArticles) {
			p.logger.Warn("no articles available for digest", "range", window.Label())
		}
		return result, fmt.Errorf("compose digest: %w", err)
	}

	page, err := p.deps.Renderer.Render(body, window)
	if err != nil {
		return result, fmt.Errorf("render digest page: %w", err)
	}

	if p.deps.Archive != nil {
		if err := p.deps.Archive.Save(ctx, now, []byte(page)); err != nil {
			p.logger.Warn("failed to archive digest", "error", err)
		}
	}

	if dryRun {
		p.logger.Info("dry run, digest not sent", "articles", len(articles))
		return result, nil
	}

	if p.deps.Mailer == nil {
		return result, fmt.Errorf("no mailer configured: %w", domain.ErrDispatch)
	}

	msg := ports.Message{
		To:      p.deps.Recipient,
		Subject: fmt.Sprintf("%s: %s (%d articles)", p.deps.Title, window.Label(), len(articles)),
		HTML:    page,
	}
	if err := p.deps.Mailer.Send(ctx, msg); err != nil {
		return result, fmt.Errorf("send digest: %w", err)
	}
	result.Sent = true

	urls := make([]string, len(articles))
	for i, a := range articles {
		urls[i] = a.URL
	}
	if !p.deps.Repository.MarkDelivered(ctx, urls, domain.DeliveryDate(now)) {
		return result, fmt.Errorf("digest sent but %d articles could not be marked delivered", len(urls))
	}

	p.logger.Info("digest sent", "to", p.deps.Recipient, "articles", len(articles))
	return result, nil
}

// RunFull executes fetch, analysis (when an analyzer is wired) and the digest
// stage, then logs a summary. Earlier stages stay durable when a later one fails.
func (p *Pipeline) RunFull(ctx context.Context, opts RunOptions) (Report, error) {
	p.logger.Info("starting digest workflow", "days", opts.Days, "limit", opts.Limit, "dry_run", opts.DryRun)

	var report Report
	var runErr error
	baseline := p.usageSnapshot()

	fetched, stored, err := p.FetchAndStore(ctx, opts.Days, opts.Limit)
	report.Fetched, report.New = fetched, stored
	if err != nil {
		runErr = err
	}

	if runErr == nil && p.deps.Analyzer != nil {
		report.Analyzed, runErr = p.ProcessArticles(ctx, opts.Limit)
	}

	if runErr == nil {
		var digest DigestResult
		digest, runErr = p.GenerateAndSend(ctx, opts.Days, opts.DryRun)
		report.Selected = digest.Selected
		report.Sent = digest.Sent
	}

	p.summarize(ctx, &report, baseline)
	if runErr != nil {
		p.logger.Error("digest workflow failed", "error", runErr)
		return report, runErr
	}
	p.logger.Info("digest workflow complete", "sent", report.Sent)
	return report, nil
}

// Stats reads store counters.
func (p *Pipeline) Stats(ctx context.Context) (domain.Stats, error) {
	if p.deps.Repository == nil {
		return domain.Stats{}, errors.New("no repository configured")
	}
	return p.deps.Repository.Stats(ctx)
}

// usageTotals holds meter readings so a run can report only its own spend.
type usageTotals struct {
	tokens int
	cost   float64
}

func (p *Pipeline) usageSnapshot() usageTotals {
	if p.deps.Usage == nil {
		return usageTotals{}
	}
	return usageTotals{tokens: p.deps.Usage.TotalTokens(), cost: p.deps.Usage.EstimateCost()}
}

func (p *Pipeline) summarize(ctx context.Context, report *Report, baseline usageTotals) {
	if p.deps.Repository != nil {
		stats, err := p.deps.Repository.Stats(ctx)
		if err != nil {
			p.logger.Warn("cannot read store statistics", "error", err)
		} else {
			report.Stats = stats
		}
	}
	current := p.usageSnapshot()
	report.Tokens = current.tokens - baseline.tokens
	report.CostUSD = current.cost - baseline.cost

	p.logger.Info("run summary",
		"fetched", report.Fetched,
		"new", report.New,
		"analyzed", report.Analyzed,
		"selected", report.Selected,
		"sent", report.Sent,
		"total", report.Stats.Total,
		"delivered", report.Stats.Delivered,
		"pending_analysis", report.Stats.PendingAnalysis,
		"tokens", report.Tokens,
		"cost_usd", fmt.Sprintf("%.4f", report.CostUSD))
}

func (p *Pipeline) logUsage() {
	if p.deps.Usage == nil {
		return
	}
	p.logger.Info("token usage",
		"tokens", p.deps.Usage.TotalTokens(),
		"cost_usd", fmt.Sprintf("%.4f", p.deps.Usage.EstimateCost()))
}

package parser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"FeedDigest/internal/config"
	"FeedDigest/internal/domain"
	"FeedDigest/internal/ports"
	"FeedDigest/internal/scanner"
)

const defaultScanner = "rss"

// StrategySource implements ArticleSource via registered scanner strategies.
type StrategySource struct {
	registry    *scanner.Registry
	feeds       []config.FeedConfig
	concurrency int
	limiter     *hostLimiter
	logger      *slog.Logger
}

var _ ports.ArticleSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined feeds.
func NewStrategySource(reg *scanner.Registry, feeds []config.FeedConfig, fetch config.FetchConfig, log *slog.Logger) *StrategySource {
	concurrency := fetch.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &StrategySource{
		registry:    reg,
		feeds:       feeds,
		concurrency: concurrency,
		limiter:     newHostLimiter(fetch.HostInterval),
		logger:      log,
	}
}

// Fetch scans every feed. A failing feed is logged and contributes nothing;
// it never aborts the others. Output keeps configured feed order.
func (s *StrategySource) Fetch(ctx context.Context, cutoff time.Time) ([]domain.Article, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("fetch feeds", "feeds", len(s.feeds), "cutoff", cutoff.Format(time.RFC3339))

	perFeed := make([][]domain.Article, len(s.feeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, feed := range s.feeds {
		g.Go(func() error {
			results, err := s.scanFeed(gctx, feed, cutoff)
			if err != nil {
				s.warn("feed failed", "feed", feed.Name, "url", feed.URL, "error", err)
				return nil
			}
			s.info("feed fetched", "feed", feed.Name, "count", len(results))
			perFeed[i] = results
			return nil
		})
	}
	_ = g.Wait()

	var aggregated []domain.Article
	for _, results := range perFeed {
		aggregated = append(aggregated, results...)
	}

	s.info("feeds done", "total_articles", len(aggregated))
	return aggregated, nil
}

func (s *StrategySource) scanFeed(ctx context.Context, feed config.FeedConfig, cutoff time.Time) ([]domain.Article, error) {
	name := feed.Scanner
	if name == "" {
		name = defaultScanner
	}
	strategy, err := s.registry.Resolve(name)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Wait(ctx, feed.URL); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	results, err := strategy.Scan(ctx, scanner.Request{
		FeedName: feed.Name,
		URL:      feed.URL,
		Cutoff:   cutoff,
		Options:  feed.Options,
	})
	if err != nil {
		return nil, err
	}

	for i := range results {
		if results[i].FeedCategory == "" {
			results[i].FeedCategory = feed.Name
		}
	}
	return results, nil
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

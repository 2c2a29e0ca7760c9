// Package digest turns a bounded set of articles into one narrative digest body.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"FeedDigest/internal/domain"
	"FeedDigest/internal/infrastructure/llm"
	"FeedDigest/internal/ports"
)

const (
	composeTemperature = 0.5
	composeMaxTokens   = 3000
	entrySeparator     = "\n\n---\n\n"
)

// Strategy selects what each article entry carries into the prompt.
type Strategy int

const (
	// TwoStage composes from analyzed articles, most important first.
	TwoStage Strategy = iota
	// SingleStage composes from raw articles and leaves judgment to the backend.
	SingleStage
)

// String returns the strategy name used in logs.
func (s Strategy) String() string {
	if s == SingleStage {
		return "single-stage"
	}
	return "two-stage"
}

// Composer renders the digest body through one completion call.
type Composer struct {
	client       llm.Completer
	strategy     Strategy
	systemPrompt string
	logger       *slog.Logger
}

var _ ports.Composer = (*Composer)(nil)

// NewComposer creates a composer for the given strategy.
func NewComposer(client llm.Completer, strategy Strategy, systemPrompt string, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		client:       client,
		strategy:     strategy,
		systemPrompt: systemPrompt,
		logger:       logger.With("strategy", strategy.String()),
	}
}

// Compose returns the trimmed body. Empty input fails with domain.ErrNoArticles
// before the backend is contacted.
func (c *Composer) Compose(ctx context.Context, articles []domain.Article, template string, dateRange domain.DateRange) (string, error) {
	unique := dedupeByURL(articles)
	if len(unique) == 0 {
		return "", domain.ErrNoArticles
	}

	if c.strategy == TwoStage {
		sort.SliceStable(unique, func(i, j int) bool {
			return unique[i].Score() > unique[j].Score()
		})
	}

	prompt := RenderPrompt(template, len(unique), SerializeArticles(unique, c.strategy), dateRange)

	c.logger.Info("generating digest", "articles", len(unique))
	completion, err := c.client.Complete(ctx, llm.Request{
		System:      c.systemPrompt,
		User:        prompt,
		Temperature: composeTemperature,
		MaxTokens:   composeMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("compose digest: %w", err)
	}

	body := strings.TrimSpace(completion.Content)
	if body == "" {
		return "", fmt.Errorf("compose digest: empty body: %w", domain.ErrMalformedOutput)
	}

	if dups := DuplicateLinks(body, urlsOf(unique)); len(dups) > 0 {
		c.logger.Error("digest links an article more than once", "urls", dups)
		return "", fmt.Errorf("compose digest: %d articles linked more than once: %w", len(dups), domain.ErrMalformedOutput)
	}

	c.logger.Info("generated digest", "tokens", completion.Usage.TotalTokens, "bytes", len(body))
	return body, nil
}

// RenderPrompt substitutes {article_count}, {article_list} and {date_range}.
func RenderPrompt(template string, count int, list string, dateRange domain.DateRange) string {
	return strings.NewReplacer(
		"{article_count}", strconv.Itoa(count),
		"{article_list}", list,
		"{date_range}", dateRange.Label(),
	).Replace(template)
}

// SerializeArticles renders numbered entries separated by horizontal rules.
func SerializeArticles(articles []domain.Article, strategy Strategy) string {
	entries := make([]string, 0, len(articles))
	for i, a := range articles {
		var b strings.Builder
		fmt.Fprintf(&b, "Article %d:\n", i+1)
		fmt.Fprintf(&b, "Title: %s\n", orUnknown(a.Title))
		fmt.Fprintf(&b, "URL: %s\n", a.URL)
		fmt.Fprintf(&b, "Feed: %s\n", orUnknown(a.FeedCategory))
		fmt.Fprintf(&b, "Published: %s\n", publishedLabel(a))

		if strategy == SingleStage || a.Analysis == nil {
			fmt.Fprintf(&b, "Summary: %s", orDefault(a.SourceSummary, "No summary"))
			if strategy == TwoStage {
				b.WriteString("\nCategory: Unknown\nImportance Score: N/A/10\nKey Entities: \nData Points: ")
			}
		} else {
			an := a.Analysis
			fmt.Fprintf(&b, "Summary: %s\n", an.Summary)
			fmt.Fprintf(&b, "Category: %s\n", an.Category)
			fmt.Fprintf(&b, "Importance Score: %d/10\n", an.ImportanceScore)
			fmt.Fprintf(&b, "Key Entities: %s\n", strings.Join(an.KeyEntities, ", "))
			fmt.Fprintf(&b, "Data Points: %s", strings.Join(an.DataPoints, ", "))
		}
		entries = append(entries, strings.TrimSpace(b.String()))
	}
	return strings.Join(entries, entrySeparator)
}

func dedupeByURL(articles []domain.Article) []domain.Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if _, ok := seen[a.URL]; ok {
			continue
		}
		seen[a.URL] = struct{}{}
		out = append(out, a)
	}
	return out
}

func urlsOf(articles []domain.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.URL
	}
	return out
}

func publishedLabel(a domain.Article) string {
	if a.PublishedAt == nil {
		return "Unknown"
	}
	return a.PublishedAt.UTC().Format("2006-01-02")
}

func orUnknown(v string) string { return orDefault(v, "Unknown") }

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

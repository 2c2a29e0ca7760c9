package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"FeedDigest/internal/domain"
	"FeedDigest/internal/ports"
)

const (
	analysisTemperature = 0.3
	analysisMaxTokens   = 500
)

// Completer issues one chat completion.
type Completer interface {
	Complete(ctx context.Context, r Request) (Completion, error)
}

// Analyzer asks the completion backend for a structured judgment of one article.
type Analyzer struct {
	client Completer
	logger *slog.Logger
}

var _ ports.Analyzer = (*Analyzer)(nil)

// NewAnalyzer creates an analyzer over the given completion client.
func NewAnalyzer(client Completer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{client: client, logger: logger}
}

// Analyze never retries; a malformed response wraps domain.ErrMalformedOutput.
func (a *Analyzer) Analyze(ctx context.Context, article domain.Article, template string) (domain.Analysis, error) {
	prompt := RenderAnalysisPrompt(template, article)

	a.logger.Debug("analyzing article", "title", truncate(article.Title, 50))
	completion, err := a.client.Complete(ctx, Request{
		User:        prompt,
		Temperature: analysisTemperature,
		MaxTokens:   analysisMaxTokens,
	})
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("analyze %s: %w", article.URL, err)
	}

	analysis, why, err := ParseAnalysis(completion.Content)
	if err != nil {
		a.logger.Error("malformed analysis response", "url", article.URL, "error", err, "content", completion.Content)
		return domain.Analysis{}, fmt.Errorf("analyze %s: %w", article.URL, err)
	}

	a.logger.Info("analyzed article",
		"title", truncate(article.Title, 50),
		"score", analysis.ImportanceScore,
		"category", analysis.Category,
		"tokens", completion.Usage.TotalTokens)
	if why != "" {
		a.logger.Debug("analysis rationale", "url", article.URL, "why_interesting", why)
	}
	return analysis, nil
}

// RenderAnalysisPrompt fills {title}, {rss_summary}, {feed_category} and {published_date}.
func RenderAnalysisPrompt(template string, article domain.Article) string {
	published := "Unknown"
	if article.PublishedAt != nil {
		published = article.PublishedAt.UTC().Format(time.RFC3339)
	}
	return strings.NewReplacer(
		"{title}", orDefault(article.Title, "Unknown"),
		"{rss_summary}", orDefault(article.SourceSummary, "No summary available"),
		"{feed_category}", orDefault(article.FeedCategory, "Unknown"),
		"{published_date}", published,
	).Replace(template)
}

// StripCodeFence removes a surrounding ``` or ```json fence if present.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```")
	if nl := strings.IndexByte(content, '\n'); nl >= 0 {
		lang := strings.TrimSpace(content[:nl])
		if lang == "" || strings.EqualFold(lang, "json") {
			content = content[nl+1:]
		}
	} else {
		content = strings.TrimPrefix(content, "json")
	}

	if end := strings.LastIndex(content, "```"); end >= 0 {
		content = content[:end]
	}
	return strings.TrimSpace(content)
}

type analysisPayload struct {
	Summary         *string   `json:"summary"`
	Category        *string   `json:"category"`
	ImportanceScore *float64  `json:"importance_score"`
	KeyEntities     *[]string `json:"key_entities"`
	DataPoints      *[]string `json:"data_points"`
	WhyInteresting  string    `json:"why_interesting"`
}

// ParseAnalysis decodes a backend response into a fully populated analysis.
// The advisory why_interesting text is returned separately and never persisted.
func ParseAnalysis(content string) (domain.Analysis, string, error) {
	normalized := StripCodeFence(content)

	dec := json.NewDecoder(bytes.NewReader([]byte(normalized)))
	dec.DisallowUnknownFields()

	var p analysisPayload
	if err := dec.Decode(&p); err != nil {
		return domain.Analysis{}, "", fmt.Errorf("decode analysis json: %v: %w", err, domain.ErrMalformedOutput)
	}
	if dec.More() {
		return domain.Analysis{}, "", fmt.Errorf("trailing data after analysis object: %w", domain.ErrMalformedOutput)
	}

	var missing []string
	if p.Summary == nil {
		missing = append(missing, "summary")
	}
	if p.Category == nil {
		missing = append(missing, "category")
	}
	if p.ImportanceScore == nil {
		missing = append(missing, "importance_score")
	}
	if p.KeyEntities == nil {
		missing = append(missing, "key_entities")
	}
	if p.DataPoints == nil {
		missing = append(missing, "data_points")
	}
	if len(missing) > 0 {
		return domain.Analysis{}, "", fmt.Errorf("analysis missing %s: %w", strings.Join(missing, ", "), domain.ErrMalformedOutput)
	}

	score := *p.ImportanceScore
	if score != math.Trunc(score) {
		return domain.Analysis{}, "", fmt.Errorf("importance score %v is not an integer: %w", score, domain.ErrMalformedOutput)
	}

	category, ok := domain.ParseCategory(*p.Category)
	if !ok {
		return domain.Analysis{}, "", fmt.Errorf("unknown category %q: %w", *p.Category, domain.ErrMalformedOutput)
	}

	analysis := domain.Analysis{
		Summary:         strings.TrimSpace(*p.Summary),
		Category:        category,
		ImportanceScore: int(score),
		KeyEntities:     nonNil(*p.KeyEntities),
		DataPoints:      nonNil(*p.DataPoints),
	}
	if err := analysis.Validate(); err != nil {
		return domain.Analysis{}, "", fmt.Errorf("%v: %w", err, domain.ErrMalformedOutput)
	}

	return analysis, strings.TrimSpace(p.WhyInteresting), nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

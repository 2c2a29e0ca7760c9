package parser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"FeedDigest/internal/domain"
	"FeedDigest/internal/scanner"
)

// RSSScanner reads RSS, Atom and JSON feeds through gofeed.
type RSSScanner struct {
	client    *http.Client
	userAgent string
	policy    *bluemonday.Policy
}

// NewRSSScanner wires an HTTP client; a nil client gets a 30s timeout.
func NewRSSScanner(client *http.Client, userAgent string) *RSSScanner {
	return &RSSScanner{
		client:    newHTTPClient(client),
		userAgent: userAgent,
		policy:    bluemonday.StrictPolicy(),
	}
}

// Name identifies the strategy inside the registry.
func (s *RSSScanner) Name() string {
	return "rss"
}

// Scan downloads one feed and returns the items that pass the cutoff.
func (s *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	body, err := fetchBody(ctx, s.client, s.userAgent, req.URL)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", req.FeedName, err)
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("feed %s: parse: %w", req.FeedName, err)
	}

	return s.convert(feed, req), nil
}

func (s *RSSScanner) convert(feed *gofeed.Feed, req scanner.Request) []domain.Article {
	articles := make([]domain.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}

		link := strings.TrimSpace(item.Link)
		title := strings.TrimSpace(item.Title)
		if link == "" || title == "" {
			continue
		}

		publishedAt := resolveDate(itemDates(item))
		if !req.Keep(publishedAt) {
			continue
		}

		summary := item.Description
		if strings.TrimSpace(summary) == "" {
			summary = item.Content
		}

		articles = append(articles, domain.Article{
			URL:           link,
			Title:         title,
			SourceSummary: plainText(s.policy, summary),
			FeedCategory:  req.FeedName,
			PublishedAt:   publishedAt,
		})
	}
	return articles
}

func itemDates(item *gofeed.Item) dateCandidates {
	c := dateCandidates{
		Published: item.Published,
		Updated:   item.Updated,
		Parsed:    []*time.Time{item.PublishedParsed, item.UpdatedParsed},
	}
	if item.Custom != nil {
		c.Created = item.Custom["created"]
	}
	if c.Created == "" && item.DublinCoreExt != nil && len(item.DublinCoreExt.Date) > 0 {
		c.Created = item.DublinCoreExt.Date[0]
	}
	return c
}

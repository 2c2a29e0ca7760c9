package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"FeedDigest/internal/domain"
	"FeedDigest/internal/scanner"
)

// Selector option keys understood by HTMLScanner.
const (
	optItem    = "item"
	optLink    = "link"
	optTitle   = "title"
	optSummary = "summary"
	optDate    = "date"
)

// HTMLScanner scrapes listing pages of sources that publish no feed.
// Selectors come from the feed options; only "item" is mandatory.
type HTMLScanner struct {
	client    *http.Client
	userAgent string
	policy    *bluemonday.Policy
}

// NewHTMLScanner wires an HTTP client; a nil client gets a 30s timeout.
func NewHTMLScanner(client *http.Client, userAgent string) *HTMLScanner {
	return &HTMLScanner{
		client:    newHTTPClient(client),
		userAgent: userAgent,
		policy:    bluemonday.StrictPolicy(),
	}
}

// Name identifies the strategy inside the registry.
func (h *HTMLScanner) Name() string {
	return "html"
}

// Scan fetches the listing page and extracts one article per item node.
func (h *HTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	sel, err := selectorsFrom(req.Options)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", req.FeedName, err)
	}

	base, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("feed %s: invalid url %s: %w", req.FeedName, req.URL, err)
	}

	body, err := fetchBody(ctx, h.client, h.userAgent, req.URL)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", req.FeedName, err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("feed %s: parse document: %w", req.FeedName, err)
	}

	return h.extractArticles(doc, base, sel, req), nil
}

type selectors struct {
	item, link, title, summary, date string
}

func selectorsFrom(options map[string]string) (selectors, error) {
	s := selectors{
		item:    strings.TrimSpace(options[optItem]),
		link:    strings.TrimSpace(options[optLink]),
		title:   strings.TrimSpace(options[optTitle]),
		summary: strings.TrimSpace(options[optSummary]),
		date:    strings.TrimSpace(options[optDate]),
	}
	if s.item == "" {
		return s, fmt.Errorf("html scanner requires an %q selector", optItem)
	}
	if s.link == "" {
		s.link = "a[href]"
	}
	return s, nil
}

func (h *HTMLScanner) extractArticles(doc *goquery.Document, base *url.URL, sel selectors, req scanner.Request) []domain.Article {
	var collected []domain.Article

	doc.Find(sel.item).Each(func(_ int, node *goquery.Selection) {
		article, ok := h.parseEntry(node, base, sel, req.FeedName)
		if !ok {
			return
		}
		if !req.Keep(article.PublishedAt) {
			return
		}
		collected = append(collected, article)
	})

	return collected
}

func (h *HTMLScanner) parseEntry(node *goquery.Selection, base *url.URL, sel selectors, feedName string) (domain.Article, bool) {
	link := node.Find(sel.link).First()
	if goquery.NodeName(node) == "a" {
		link = node
	}
	href, _ := link.Attr("href")
	href = strings.TrimSpace(href)
	if href == "" {
		return domain.Article{}, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return domain.Article{}, false
	}
	absolute := base.ResolveReference(ref).String()

	title := link.Text()
	if sel.title != "" {
		title = node.Find(sel.title).First().Text()
	}
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return domain.Article{}, false
	}

	var summary string
	if sel.summary != "" {
		summary, _ = node.Find(sel.summary).First().Html()
	}

	var dates dateCandidates
	if sel.date != "" {
		dateNode := node.Find(sel.date).First()
		if attr, ok := dateNode.Attr("datetime"); ok {
			dates.Published = attr
		}
		dates.Updated = dateNode.Text()
	}

	return domain.Article{
		URL:           absolute,
		Title:         title,
		SourceSummary: plainText(h.policy, summary),
		FeedCategory:  feedName,
		PublishedAt:   resolveDate(dates),
	}, true
}

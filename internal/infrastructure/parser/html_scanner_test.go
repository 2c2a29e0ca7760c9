package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"FeedDigest/internal/scanner"
)

const listingPage = `
<html><body>
<ul class="stories">
  <li class="story">
    <a class="headline" href="/europe/2025/01/20/fresh">Fresh   Article</a>
    <p class="teaser">Brand <em>new</em>.</p>
    <time datetime="2025-01-20T09:00:00Z">20 Jan</time>
  </li>
  <li class="story">
    <a class="headline" href="https://other.example.org/old">Old Article</a>
    <time datetime="2024-11-01T09:00:00Z">1 Nov</time>
  </li>
  <li class="story">
    <a class="headline" href="/undated">Undated Article</a>
  </li>
  <li class="story">
    <span>no link here</span>
  </li>
</ul>
</body></html>`

var listingOptions = map[string]string{
	"item":    "li.story",
	"link":    "a.headline",
	"summary": "p.teaser",
	"date":    "time",
}

func TestHTMLScannerParseEntry(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingPage))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	sel, err := selectorsFrom(listingOptions)
	if err != nil {
		t.Fatalf("selectors: %v", err)
	}

	base, _ := url.Parse("https://www.example.com/europe/")
	sc := NewHTMLScanner(nil, "")
	article, ok := sc.parseEntry(doc.Find("li.story").First(), base, sel, "Europe")
	if !ok {
		t.Fatalf("expected first entry to parse")
	}

	if article.URL != "https://www.example.com/europe/2025/01/20/fresh" {
		t.Fatalf("unexpected url: %s", article.URL)
	}
	if article.Title != "Fresh Article" {
		t.Fatalf("unexpected title: %q", article.Title)
	}
	if article.SourceSummary != "Brand new." {
		t.Fatalf("unexpected summary: %q", article.SourceSummary)
	}
	want := time.Date(2025, time.January, 20, 9, 0, 0, 0, time.UTC)
	if article.PublishedAt == nil || !article.PublishedAt.Equal(want) {
		t.Fatalf("unexpected published date: %v", article.PublishedAt)
	}
}

func TestHTMLScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingPage))
	}))
	defer server.Close()

	sc := NewHTMLScanner(server.Client(), "")
	articles, err := sc.Scan(context.Background(), scanner.Request{
		FeedName: "Europe",
		URL:      server.URL + "/europe/",
		Cutoff:   time.Date(2025, time.January, 14, 0, 0, 0, 0, time.UTC),
		Options:  listingOptions,
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
	if articles[1].URL != server.URL+"/undated" || articles[1].PublishedAt != nil {
		t.Fatalf("undated entry must be kept without a date: %+v", articles[1])
	}
}

func TestHTMLScannerRequiresItemSelector(t *testing.T) {
	t.Parallel()

	sc := NewHTMLScanner(nil, "")
	_, err := sc.Scan(context.Background(), scanner.Request{FeedName: "x", URL: "http://127.0.0.1:0"})
	if err == nil {
		t.Fatalf("expected error without item selector")
	}
}

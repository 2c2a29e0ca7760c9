package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"FeedDigest/internal/scanner"
)

func rssFixture(now time.Time) string {
	recent := now.Add(-24 * time.Hour).Format(time.RFC1123Z)
	old := now.AddDate(0, 0, -30).Format(time.RFC1123Z)
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Europe</title>
  <item>
    <title>Fresh story</title>
    <link>https://example.com/fresh</link>
    <description>&lt;p&gt;Rising &lt;b&gt;energy&lt;/b&gt; costs &amp;amp; growth&lt;/p&gt;</description>
    <pubDate>%s</pubDate>
  </item>
  <item>
    <title>Old story</title>
    <link>https://example.com/old</link>
    <pubDate>%s</pubDate>
  </item>
  <item>
    <title>Undated story</title>
    <link>https://example.com/undated</link>
  </item>
  <item>
    <title>Garbled date story</title>
    <link>https://example.com/garbled</link>
    <pubDate>sometime last week</pubDate>
  </item>
  <item>
    <title>No link</title>
  </item>
  <item>
    <link>https://example.com/no-title</link>
  </item>
</channel>
</rss>`, recent, old)
}

func TestRSSScannerScan(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "digest-test" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssFixture(now)))
	}))
	defer server.Close()

	sc := NewRSSScanner(server.Client(), "digest-test")
	articles, err := sc.Scan(context.Background(), scanner.Request{
		FeedName: "Europe",
		URL:      server.URL + "/europe.xml",
		Cutoff:   now.AddDate(0, 0, -7),
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(articles) != 3 {
		t.Fatalf("expected 3 articles, got %d: %+v", len(articles), articles)
	}

	byURL := map[string]int{}
	for i, a := range articles {
		byURL[a.URL] = i
		if a.FeedCategory != "Europe" {
			t.Fatalf("unexpected feed category %q", a.FeedCategory)
		}
	}

	fresh := articles[byURL["https://example.com/fresh"]]
	if fresh.PublishedAt == nil {
		t.Fatalf("fresh story must carry a date")
	}
	if fresh.SourceSummary != "Rising energy costs & growth" {
		t.Fatalf("summary not stripped: %q", fresh.SourceSummary)
	}

	for _, u := range []string{"https://example.com/undated", "https://example.com/garbled"} {
		i, ok := byURL[u]
		if !ok {
			t.Fatalf("%s must be kept despite missing date", u)
		}
		if articles[i].PublishedAt != nil {
			t.Fatalf("%s must have no date, got %v", u, articles[i].PublishedAt)
		}
	}
	if _, ok := byURL["https://example.com/old"]; ok {
		t.Fatalf("old story must be dropped by cutoff")
	}
}

func TestRSSScannerMalformedFeed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not a feed"))
	}))
	defer server.Close()

	sc := NewRSSScanner(server.Client(), "")
	if _, err := sc.Scan(context.Background(), scanner.Request{FeedName: "x", URL: server.URL}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRSSScannerHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	sc := NewRSSScanner(server.Client(), "")
	if _, err := sc.Scan(context.Background(), scanner.Request{FeedName: "x", URL: server.URL}); err == nil {
		t.Fatalf("expected status error")
	}
}

package digest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FeedDigest/internal/domain"
	"FeedDigest/internal/infrastructure/llm"
)

type stubCompleter struct {
	calls   int
	last    llm.Request
	content string
	err     error
}

func (s *stubCompleter) Complete(_ context.Context, r llm.Request) (llm.Completion, error) {
	s.calls++
	s.last = r
	if s.err != nil {
		return llm.Completion{}, s.err
	}
	return llm.Completion{Content: s.content, Usage: llm.Usage{TotalTokens: 42}}, nil
}

var week = domain.DateRange{
	Start: time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC),
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func analyzed(url string, score int) domain.Article {
	published := time.Date(2025, time.January, 18, 0, 0, 0, 0, time.UTC)
	return domain.Article{
		URL:           url,
		Title:         "Title " + url,
		SourceSummary: "raw " + url,
		FeedCategory:  "Europe",
		PublishedAt:   &published,
		Analysis: &domain.Analysis{
			Summary:         "analysis " + url,
			Category:        domain.CategoryEurope,
			ImportanceScore: score,
			KeyEntities:     []string{"EU", "Germany"},
			DataPoints:      []string{"3%"},
		},
	}
}

func TestComposeEmptyInputSkipsBackend(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{content: "<p>x</p>"}
	for _, strategy := range []Strategy{TwoStage, SingleStage} {
		c := NewComposer(stub, strategy, "editor", quietLogger())
		_, err := c.Compose(context.Background(), nil, "{article_list}", week)
		require.ErrorIs(t, err, domain.ErrNoArticles)
	}
	assert.Zero(t, stub.calls)
}

func TestTwoStageSortsAndSerializesAnalysis(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{content: "  <h2>Big picture</h2>\n"}
	c := NewComposer(stub, TwoStage, "editor", quietLogger())

	articles := []domain.Article{
		analyzed("https://e.com/low", 3),
		analyzed("https://e.com/high", 9),
		analyzed("https://e.com/low", 3),
	}
	body, err := c.Compose(context.Background(), articles, "{date_range} ({article_count})\n{article_list}", week)
	require.NoError(t, err)
	assert.Equal(t, "<h2>Big picture</h2>", body)

	prompt := stub.last.User
	assert.True(t, strings.HasPrefix(prompt, "Jan 13 - Jan 20, 2025 (2)\n"), prompt)
	assert.Less(t, strings.Index(prompt, "https://e.com/high"), strings.Index(prompt, "https://e.com/low"))
	assert.Equal(t, 1, strings.Count(prompt, "URL: https://e.com/low"))
	assert.Contains(t, prompt, "Summary: analysis https://e.com/high")
	assert.Contains(t, prompt, "Importance Score: 9/10")
	assert.Contains(t, prompt, "Key Entities: EU, Germany")
	assert.Equal(t, "editor", stub.last.System)
	assert.Equal(t, 3000, stub.last.MaxTokens)
}

func TestSingleStageSerializesRawFieldsOnly(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{content: "<p>ok</p>"}
	c := NewComposer(stub, SingleStage, "", quietLogger())

	a := analyzed("https://e.com/a", 7)
	a.Analysis = nil
	_, err := c.Compose(context.Background(), []domain.Article{a}, "{article_list}", week)
	require.NoError(t, err)

	want := "Article 1:\nTitle: Title https://e.com/a\nURL: https://e.com/a\nFeed: Europe\nPublished: 2025-01-18\nSummary: raw https://e.com/a"
	assert.Equal(t, want, stub.last.User)
}

func TestComposeFailureKinds(t *testing.T) {
	t.Parallel()

	articles := []domain.Article{analyzed("https://e.com/a", 5), analyzed("https://e.com/b", 4)}

	transport := &stubCompleter{err: errors.Join(errors.New("429"), domain.ErrTransport)}
	_, err := NewComposer(transport, TwoStage, "", quietLogger()).Compose(context.Background(), articles, "{article_list}", week)
	require.ErrorIs(t, err, domain.ErrTransport)
	assert.False(t, errors.Is(err, domain.ErrMalformedOutput))

	blank := &stubCompleter{content: "   "}
	_, err = NewComposer(blank, TwoStage, "", quietLogger()).Compose(context.Background(), articles, "{article_list}", week)
	require.ErrorIs(t, err, domain.ErrMalformedOutput)

	repeated := &stubCompleter{content: `<h3><a href="https://e.com/a">A</a></h3><p>x</p><h3><a href="https://e.com/a#again">A again</a></h3><a href="https://e.com/b">B</a>`}
	_, err = NewComposer(repeated, TwoStage, "", quietLogger()).Compose(context.Background(), articles, "{article_list}", week)
	require.ErrorIs(t, err, domain.ErrMalformedOutput)
}

func TestDuplicateLinks(t *testing.T) {
	t.Parallel()

	body := `<h2>Top</h2>
<ul>
  <li><a href="https://e.com/a">A</a></li>
  <li><a href="https://E.com/b/">B</a></li>
  <li><a href="https://e.com/b">B again</a></li>
  <li><a href="https://elsewhere.org/x">external</a><a href="https://elsewhere.org/x">external</a></li>
</ul>`
	assert.Equal(t, []string{"https://e.com/b"}, DuplicateLinks(body, []string{"https://e.com/a", "https://e.com/b"}))
	assert.Empty(t, DuplicateLinks(`<p>no links</p>`, []string{"https://e.com/a"}))
}

func TestDuplicateLinksIgnoresScheme(t *testing.T) {
	t.Parallel()

	body := `<p><a href="http://e.com/a">A</a> and later <a href="https://e.com/a#more">A again</a></p>
<p><a href="https://e.com/a?page=2">other page</a></p>`
	assert.Equal(t, []string{"https://e.com/a"}, DuplicateLinks(body, []string{"https://e.com/a", "https://e.com/a?page=2"}))
}

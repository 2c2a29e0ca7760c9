package mail

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"FeedDigest/internal/config"
	"FeedDigest/internal/domain"
	"FeedDigest/internal/ports"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRenderPageUsesTemplateFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "email.html")
	if err := os.WriteFile(path, []byte("<main>{{DATE_RANGE}}|{{DIGEST_CONTENT}}</main>"), 0o600); err != nil {
		t.Fatalf("write template: %v", err)
	}

	page, err := RenderPage("<h2>Body</h2>", "Jan 13 - Jan 20, 2025", path, "Digest", quietLogger())
	if err != nil {
		t.Fatalf("RenderPage error: %v", err)
	}
	if page != "<main>Jan 13 - Jan 20, 2025|<h2>Body</h2></main>" {
		t.Fatalf("unexpected page: %s", page)
	}
}

func TestRenderPageFallsBackToShell(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.html")} {
		page, err := RenderPage("<h2>Body</h2>", "Jan 13 - Jan 20, 2025", path, "Weekly <Digest>", quietLogger())
		if err != nil {
			t.Fatalf("RenderPage error: %v", err)
		}
		if !strings.Contains(page, "<h2>Body</h2>") {
			t.Fatalf("body must be embedded unescaped: %s", page)
		}
		if !strings.Contains(page, "Week of Jan 13 - Jan 20, 2025") {
			t.Fatalf("missing date banner: %s", page)
		}
		if !strings.Contains(page, "Weekly &lt;Digest&gt;") {
			t.Fatalf("title must be escaped: %s", page)
		}
	}
}

func TestPageRenderUsesRangeLabel(t *testing.T) {
	t.Parallel()

	week := domain.DateRange{
		Start: time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC),
	}
	page, err := NewPage("", "Digest", quietLogger()).Render("<p>x</p>", week)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if !strings.Contains(page, "Week of Jan 13 - Jan 20, 2025") {
		t.Fatalf("missing range label: %s", page)
	}
}

func TestTestMessage(t *testing.T) {
	t.Parallel()

	msg := TestMessage("reader@example.com", "Digest", time.Date(2025, time.January, 20, 7, 0, 0, 0, time.UTC))
	if msg.To != "reader@example.com" || msg.Subject != "Test Email - Digest" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if !strings.Contains(msg.HTML, "2025-01-20 07:00:00") {
		t.Fatalf("missing timestamp: %s", msg.HTML)
	}
}

func TestSendGridMailerSend(t *testing.T) {
	t.Parallel()

	var received sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sg-key" {
			t.Errorf("unexpected authorization %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	m := NewSendGridMailer(config.MailConfig{
		Endpoint: server.URL,
		APIKey:   "sg-key",
		From:     "digest@example.com",
		FromName: "Digest",
		Timeout:  time.Second,
	}, quietLogger())

	err := m.Send(context.Background(), ports.Message{
		To:      "reader@example.com",
		Subject: "Weekly",
		HTML:    "<h2>Top</h2>\n<p>Markets <a href=\"https://e.com/a\">rallied</a></p>",
	})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if received.Subject != "Weekly" || received.From.Email != "digest@example.com" {
		t.Fatalf("unexpected payload: %+v", received)
	}
	if len(received.Personalizations) != 1 || received.Personalizations[0].To[0].Email != "reader@example.com" {
		t.Fatalf("unexpected recipients: %+v", received.Personalizations)
	}
	if len(received.Content) != 2 || received.Content[0].Type != "text/plain" || received.Content[1].Type != "text/html" {
		t.Fatalf("unexpected content parts: %+v", received.Content)
	}
	if received.Content[0].Value != "Top\nMarkets rallied" {
		t.Fatalf("unexpected plain text %q", received.Content[0].Value)
	}
}

func TestSendGridMailerFailures(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad key"}]}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	m := NewSendGridMailer(config.MailConfig{Endpoint: server.URL, APIKey: "k"}, quietLogger())
	err := m.Send(context.Background(), ports.Message{To: "reader@example.com", HTML: "<p>x</p>"})
	if !errors.Is(err, domain.ErrDispatch) {
		t.Fatalf("expected dispatch error, got %v", err)
	}

	unconfigured := NewSendGridMailer(config.MailConfig{Endpoint: server.URL}, quietLogger())
	if err := unconfigured.Send(context.Background(), ports.Message{To: "reader@example.com"}); !errors.Is(err, domain.ErrDispatch) {
		t.Fatalf("expected dispatch error without api key, got %v", err)
	}
}

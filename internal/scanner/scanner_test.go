package scanner

import (
	"context"
	"testing"
	"time"

	"FeedDigest/internal/domain"
)

type stubScanner struct{ name string }

func (s stubScanner) Name() string { return s.name }

func (s stubScanner) Scan(context.Context, Request) ([]domain.Article, error) { return nil, nil }

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(stubScanner{name: "rss"})

	if _, err := reg.Resolve("rss"); err != nil {
		t.Fatalf("resolve rss: %v", err)
	}
	if _, err := reg.Resolve("atom"); err == nil {
		t.Fatalf("expected error for unknown scanner")
	}
}

func TestRequestKeep(t *testing.T) {
	t.Parallel()

	cutoff := time.Date(2025, time.January, 14, 0, 0, 0, 0, time.UTC)
	req := Request{Cutoff: cutoff}

	older := cutoff.Add(-time.Second)
	newer := cutoff.Add(time.Hour)

	if req.Keep(&older) {
		t.Fatalf("item older than cutoff must be dropped")
	}
	if !req.Keep(&cutoff) {
		t.Fatalf("item exactly at cutoff must be kept")
	}
	if !req.Keep(&newer) {
		t.Fatalf("newer item must be kept")
	}
	if !req.Keep(nil) {
		t.Fatalf("item without a date must be kept")
	}
}

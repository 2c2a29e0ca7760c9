package scanner

import (
	"context"
	"fmt"
	"time"

	"FeedDigest/internal/domain"
)

// Request carries all parameters required to scan one feed.
type Request struct {
	FeedName string
	URL      string
	// Cutoff drops items whose known publication date is strictly older.
	Cutoff  time.Time
	Options map[string]string
}

// Keep applies the cutoff policy: unknown dates are always kept.
func (r Request) Keep(publishedAt *time.Time) bool {
	if publishedAt == nil || r.Cutoff.IsZero() {
		return true
	}
	return !publishedAt.Before(r.Cutoff)
}

// Scanner captures a single strategy implementation (RSS, HTML listing, etc.).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.Article, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

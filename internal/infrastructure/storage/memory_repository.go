package storage

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"FeedDigest/internal/domain"
	"FeedDigest/internal/ports"
)

// MemoryRepository keeps articles for a single process run.
type MemoryRepository struct {
	mu     sync.Mutex
	byURL  map[string]*domain.Article
	order  []string
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.ArticleRepository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty store.
func NewMemoryRepository(logger *slog.Logger) *MemoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryRepository{
		byURL:  make(map[string]*domain.Article),
		logger: logger,
		now:    time.Now,
	}
}

// Exists reports whether url is already stored.
func (r *MemoryRepository) Exists(_ context.Context, url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byURL[url]
	return ok
}

// Insert stores an unseen article and returns its new id.
func (r *MemoryRepository) Insert(_ context.Context, article domain.Article) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byURL[article.URL]; ok {
		return "", false
	}

	stored := article
	stored.ID = uuid.NewString()
	stored.CreatedAt = r.now().UTC()
	stored.Analysis = nil
	stored.IncludedInDigestOn = nil
	if article.PublishedAt != nil {
		t := storedTime(*article.PublishedAt)
		stored.PublishedAt = &t
	}

	r.byURL[stored.URL] = &stored
	r.order = append(r.order, stored.URL)
	r.logger.Info("inserted article", "title", stored.Title, "id", stored.ID)
	return stored.ID, true
}

// RecordAnalysis attaches a complete analysis to a stored article.
func (r *MemoryRepository) RecordAnalysis(_ context.Context, url string, analysis domain.Analysis) bool {
	if err := analysis.Validate(); err != nil {
		r.logger.Error("refusing partial analysis", "url", url, "error", err)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	article, ok := r.byURL[url]
	if !ok {
		r.logger.Error("analysis matched no article", "url", url)
		return false
	}

	stored := analysis
	stored.KeyEntities = append([]string{}, analysis.KeyEntities...)
	stored.DataPoints = append([]string{}, analysis.DataPoints...)
	article.Analysis = &stored
	return true
}

// Unanalyzed returns pending articles in insertion order.
func (r *MemoryRepository) Unanalyzed(_ context.Context, limit int) []domain.Article {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Article
	for _, url := range r.order {
		a := r.byURL[url]
		if a.Analyzed() {
			continue
		}
		out = append(out, *a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// SelectForDigest returns undelivered articles published inside the window, highest score first.
func (r *MemoryRepository) SelectForDigest(_ context.Context, start, end time.Time, requireAnalyzed bool) ([]domain.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	window := domain.DateRange{Start: storedTime(start), End: storedTime(end)}
	var out []domain.Article
	for _, url := range r.order {
		a := r.byURL[url]
		switch {
		case a.Delivered():
			continue
		case a.PublishedAt == nil || !window.Contains(*a.PublishedAt):
			continue
		case requireAnalyzed && !a.Analyzed():
			continue
		}
		out = append(out, *a)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score() > out[j].Score()
	})
	return out, nil
}

// MarkDelivered is all-or-nothing like the SQL variant.
func (r *MemoryRepository) MarkDelivered(_ context.Context, urls []string, on time.Time) bool {
	unique := dedupe(urls)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, url := range unique {
		a, ok := r.byURL[url]
		if !ok || a.Delivered() {
			r.logger.Error("partial delivery update rolled back", "url", url, "expected", len(unique))
			return false
		}
	}

	day := domain.DeliveryDate(on)
	for _, url := range unique {
		d := day
		r.byURL[url].IncludedInDigestOn = &d
	}
	return true
}

// Stats counts stored, analyzed and delivered articles.
func (r *MemoryRepository) Stats(_ context.Context) (domain.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s domain.Stats
	for _, a := range r.byURL {
		s.Total++
		if a.Analyzed() {
			s.Analyzed++
		}
		if a.Delivered() {
			s.Delivered++
		}
	}
	s.PendingAnalysis = s.Total - s.Analyzed
	return s, nil
}

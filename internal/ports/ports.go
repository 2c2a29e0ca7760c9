package ports

import (
	"context"
	"time"

	"FeedDigest/internal/domain"
)

// ArticleSource pulls candidate articles from every configured feed.
type ArticleSource interface {
	Fetch(ctx context.Context, cutoff time.Time) ([]domain.Article, error)
}

// ArticleRepository owns the lifecycle state of stored articles.
type ArticleRepository interface {
	Exists(ctx context.Context, url string) bool
	Insert(ctx context.Context, article domain.Article) (string, bool)
	RecordAnalysis(ctx context.Context, url string, analysis domain.Analysis) bool
	Unanalyzed(ctx context.Context, limit int) []domain.Article
	SelectForDigest(ctx context.Context, start, end time.Time, requireAnalyzed bool) ([]domain.Article, error)
	MarkDelivered(ctx context.Context, urls []string, on time.Time) bool
	Stats(ctx context.Context) (domain.Stats, error)
}

// Analyzer turns one raw article into a structured judgment.
type Analyzer interface {
	Analyze(ctx context.Context, article domain.Article, template string) (domain.Analysis, error)
}

// Composer renders a digest body for a bounded article set.
type Composer interface {
	Compose(ctx context.Context, articles []domain.Article, template string, dateRange domain.DateRange) (string, error)
}

// Mailer delivers one HTML message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Message is a single outbound HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// PageRenderer wraps a digest body in the outer email page.
type PageRenderer interface {
	Render(body string, dateRange domain.DateRange) (string, error)
}

// Archive persists a rendered page for audit; failures must not block delivery.
type Archive interface {
	Save(ctx context.Context, generatedAt time.Time, page []byte) error
}

// UsageMeter reports completion usage accumulated during a run.
type UsageMeter interface {
	TotalTokens() int
	EstimateCost() float64
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

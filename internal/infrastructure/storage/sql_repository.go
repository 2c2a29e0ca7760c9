package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"FeedDigest/internal/domain"
	"FeedDigest/internal/ports"
)

const articlesTable = "articles"

var articleColumns = []string{
	"id",
	"url",
	"title",
	"source_summary",
	"feed_category",
	"published_at",
	"analyzed",
	"analysis_summary",
	"analysis_category",
	"importance_score",
	"key_entities",
	"data_points",
	"included_in_digest_on",
	"created_at",
}

// SQLRepository persists articles into Postgres or SQLite.
type SQLRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	logger  *slog.Logger
	now     func() time.Time
}

var _ ports.ArticleRepository = (*SQLRepository)(nil)

// NewSQLRepository wires a sql.DB opened for the given dialect.
func NewSQLRepository(db *sql.DB, dialect Dialect, logger *slog.Logger) *SQLRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(dialect.placeholders()),
		logger:  logger,
		now:     time.Now,
	}
}

// Exists answers false on storage errors so a transient failure never hides a new article.
func (r *SQLRepository) Exists(ctx context.Context, url string) bool {
	query, args, err := r.builder.Select("1").From(articlesTable).Where(sq.Eq{"url": url}).Limit(1).ToSql()
	if err != nil {
		r.logger.Error("build exists query", "error", err)
		return false
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false
	case err != nil:
		r.logger.Error("check article existence", "url", url, "error", err)
		return false
	}
	return true
}

// Insert stores a new article; duplicates and failures return ok=false without writing.
func (r *SQLRepository) Insert(ctx context.Context, article domain.Article) (string, bool) {
	if r.Exists(ctx, article.URL) {
		r.logger.Debug("article already exists", "url", article.URL)
		return "", false
	}

	id := uuid.NewString()
	query, args, err := r.builder.Insert(articlesTable).
		Columns("id", "url", "title", "source_summary", "feed_category", "published_at", "analyzed", "created_at").
		Values(id, article.URL, article.Title, article.SourceSummary, article.FeedCategory,
			nullableTime(article.PublishedAt), false, r.now().UTC()).
		Suffix("ON CONFLICT (url) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		r.logger.Error("build insert query", "error", err)
		return "", false
	}

	var stored string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		r.logger.Debug("article inserted concurrently", "url", article.URL)
		return "", false
	case err != nil:
		r.logger.Error("insert article", "url", article.URL, "error", err)
		return "", false
	}

	r.logger.Info("inserted article", "title", article.Title, "id", stored)
	return stored, true
}

// RecordAnalysis writes every analysis column and flips analyzed in one statement.
func (r *SQLRepository) RecordAnalysis(ctx context.Context, url string, analysis domain.Analysis) bool {
	if err := analysis.Validate(); err != nil {
		r.logger.Error("refusing partial analysis", "url", url, "error", err)
		return false
	}

	entities, err := json.Marshal(analysis.KeyEntities)
	if err != nil {
		r.logger.Error("marshal entities", "url", url, "error", err)
		return false
	}
	dataPoints, err := json.Marshal(analysis.DataPoints)
	if err != nil {
		r.logger.Error("marshal data points", "url", url, "error", err)
		return false
	}

	query, args, err := r.builder.Update(articlesTable).
		Set("analysis_summary", analysis.Summary).
		Set("analysis_category", string(analysis.Category)).
		Set("importance_score", analysis.ImportanceScore).
		Set("key_entities", string(entities)).
		Set("data_points", string(dataPoints)).
		Set("analyzed", true).
		Where(sq.Eq{"url": url}).
		ToSql()
	if err != nil {
		r.logger.Error("build analysis update", "error", err)
		return false
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("update article analysis", "url", url, "error", err)
		return false
	}
	affected, err := res.RowsAffected()
	if err != nil || affected == 0 {
		r.logger.Error("analysis matched no article", "url", url, "error", err)
		return false
	}

	r.logger.Debug("updated article analysis", "url", url)
	return true
}

// Unanalyzed lists articles awaiting analysis; limit <= 0 means no cap.
func (r *SQLRepository) Unanalyzed(ctx context.Context, limit int) []domain.Article {
	b := r.builder.Select(articleColumns...).From(articlesTable).
		Where(sq.Eq{"analyzed": false}).
		OrderBy("created_at ASC", "id ASC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	articles, err := r.query(ctx, b)
	if err != nil {
		r.logger.Error("retrieve unanalyzed articles", "error", err)
		return nil
	}
	r.logger.Info("retrieved unanalyzed articles", "count", len(articles))
	return articles
}

// SelectForDigest is the only query offering articles to a digest; delivered
// articles never pass its fence filter.
func (r *SQLRepository) SelectForDigest(ctx context.Context, start, end time.Time, requireAnalyzed bool) ([]domain.Article, error) {
	b := r.builder.Select(articleColumns...).From(articlesTable).
		Where(sq.GtOrEq{"published_at": storedTime(start)}).
		Where(sq.LtOrEq{"published_at": storedTime(end)}).
		Where(sq.Eq{"included_in_digest_on": nil})
	if requireAnalyzed {
		b = b.Where(sq.Eq{"analyzed": true})
	}
	b = b.OrderBy("COALESCE(importance_score, 0) DESC", "created_at ASC", "id ASC")

	articles, err := r.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("select articles for digest: %w", err)
	}
	r.logger.Info("retrieved articles for digest", "count", len(articles))
	return articles, nil
}

// MarkDelivered stamps every url inside one transaction. If any url is
// missing or already fenced the whole batch is rolled back.
func (r *SQLRepository) MarkDelivered(ctx context.Context, urls []string, on time.Time) bool {
	unique := dedupe(urls)
	if len(unique) == 0 {
		return true
	}

	query, args, err := r.builder.Update(articlesTable).
		Set("included_in_digest_on", domain.DeliveryDate(on)).
		Where(sq.Eq{"url": unique}).
		Where(sq.Eq{"included_in_digest_on": nil}).
		ToSql()
	if err != nil {
		r.logger.Error("build delivery update", "error", err)
		return false
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("begin delivery transaction", "error", err)
		return false
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		_ = tx.Rollback()
		r.logger.Error("mark articles delivered", "error", err)
		return false
	}

	affected, err := res.RowsAffected()
	if err != nil || affected != int64(len(unique)) {
		_ = tx.Rollback()
		r.logger.Error("partial delivery update rolled back",
			"expected", len(unique), "affected", affected, "error", err)
		return false
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("commit delivery transaction", "error", err)
		return false
	}

	r.logger.Info("marked articles delivered", "count", len(unique), "on", domain.DeliveryDate(on).Format(time.DateOnly))
	return true
}

// Stats derives lifecycle counters in a single pass.
func (r *SQLRepository) Stats(ctx context.Context) (domain.Stats, error) {
	query, args, err := r.builder.Select(
		"COUNT(*)",
		"COALESCE(SUM(CASE WHEN analyzed THEN 1 ELSE 0 END), 0)",
		"COALESCE(SUM(CASE WHEN included_in_digest_on IS NOT NULL THEN 1 ELSE 0 END), 0)",
	).From(articlesTable).ToSql()
	if err != nil {
		return domain.Stats{}, fmt.Errorf("build stats query: %w", err)
	}

	var total, analyzed, delivered int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total, &analyzed, &delivered); err != nil {
		return domain.Stats{}, fmt.Errorf("query stats: %w", err)
	}

	return domain.Stats{
		Total:           int(total),
		Analyzed:        int(analyzed),
		Delivered:       int(delivered),
		PendingAnalysis: int(total - analyzed),
	}, nil
}

func (r *SQLRepository) query(ctx context.Context, b sq.SelectBuilder) ([]domain.Article, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}

	var result []domain.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		result = append(result, article)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

func scanArticle(rows *sql.Rows) (domain.Article, error) {
	var (
		a          domain.Article
		published  sql.NullTime
		analyzed   bool
		summary    sql.NullString
		category   sql.NullString
		score      sql.NullInt64
		entities   sql.NullString
		dataPoints sql.NullString
		delivered  sql.NullTime
	)

	err := rows.Scan(&a.ID, &a.URL, &a.Title, &a.SourceSummary, &a.FeedCategory, &published,
		&analyzed, &summary, &category, &score, &entities, &dataPoints, &delivered, &a.CreatedAt)
	if err != nil {
		return domain.Article{}, fmt.Errorf("scan article: %w", err)
	}

	if published.Valid {
		t := published.Time.UTC()
		a.PublishedAt = &t
	}
	if delivered.Valid {
		t := delivered.Time.UTC()
		a.IncludedInDigestOn = &t
	}

	if analyzed {
		analysis := domain.Analysis{
			Summary:         summary.String,
			Category:        domain.Category(category.String),
			ImportanceScore: int(score.Int64),
			KeyEntities:     []string{},
			DataPoints:      []string{},
		}
		if err := decodeList(entities, &analysis.KeyEntities); err != nil {
			return domain.Article{}, fmt.Errorf("decode entities for %s: %w", a.URL, err)
		}
		if err := decodeList(dataPoints, &analysis.DataPoints); err != nil {
			return domain.Article{}, fmt.Errorf("decode data points for %s: %w", a.URL, err)
		}
		a.Analysis = &analysis
	}

	return a, nil
}

func decodeList(raw sql.NullString, into *[]string) error {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), into)
}

// storedTime normalizes timestamps so both dialects compare them identically.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return storedTime(*t)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

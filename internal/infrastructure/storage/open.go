package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Dialect selects the SQL driver and placeholder style.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func (d Dialect) placeholders() sq.PlaceholderFormat {
	if d == DialectPostgres {
		return sq.Dollar
	}
	return sq.Question
}

// Open connects to the configured database and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	dialect := Dialect(driver)
	switch dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// One connection keeps :memory: databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ping %s: %w", dialect, err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, "", err
	}

	return db, dialect, nil
}

// Migrate creates the articles table and its indexes when absent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

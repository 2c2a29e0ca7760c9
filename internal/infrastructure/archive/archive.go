// Package archive keeps rendered digest pages for audit and debugging.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"FeedDigest/internal/ports"
)

// FileName returns digest_YYYYMMDD_HHMMSS.html for the given run time.
func FileName(t time.Time) string {
	return "digest_" + t.Format("20060102_150405") + ".html"
}

// Local writes pages into a directory.
type Local struct {
	dir string
}

var _ ports.Archive = (*Local)(nil)

// NewLocal creates a local archive rooted at dir.
func NewLocal(dir string) *Local {
	if dir == "" {
		dir = "."
	}
	return &Local{dir: dir}
}

// Save writes the page under its timestamped file name, creating dir if needed.
func (l *Local) Save(_ context.Context, generatedAt time.Time, page []byte) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create archive dir %s: %w", l.dir, err)
	}
	path := filepath.Join(l.dir, FileName(generatedAt))
	if err := os.WriteFile(path, page, 0o644); err != nil {
		return fmt.Errorf("write archive %s: %w", path, err)
	}
	return nil
}

// Multi saves to every archive and joins their errors.
type Multi []ports.Archive

var _ ports.Archive = Multi(nil)

// Save skips nil entries and attempts every archive even after a failure.
func (m Multi) Save(ctx context.Context, generatedAt time.Time, page []byte) error {
	var errs []error
	for _, a := range m {
		if a == nil {
			continue
		}
		if err := a.Save(ctx, generatedAt, page); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsExposePlaceholders(t *testing.T) {
	t.Parallel()

	set, err := Load("", "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	for _, p := range []string{"{title}", "{rss_summary}", "{feed_category}", "{published_date}", "importance_score", "why_interesting"} {
		if !strings.Contains(set.Analysis, p) {
			t.Fatalf("analysis prompt missing %s", p)
		}
	}
	for _, p := range []string{"{article_count}", "{article_list}", "{date_range}"} {
		if !strings.Contains(set.Digest, p) {
			t.Fatalf("digest prompt missing %s", p)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "digest.txt")
	if err := os.WriteFile(path, []byte("custom {article_list}"), 0o600); err != nil {
		t.Fatalf("write prompt: %v", err)
	}

	set, err := Load("", path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if set.Digest != "custom {article_list}" {
		t.Fatalf("unexpected digest prompt %q", set.Digest)
	}

	if _, err := Load(filepath.Join(dir, "missing.txt"), ""); err == nil {
		t.Fatalf("expected error for missing prompt file")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "digest.yaml")
	raw := `
database:
  driver: postgres
  dsn: postgres://file/db
fetch:
  concurrency: 4
  hostInterval: 2s
llm:
  model: file-model
feeds:
  - name: Europe
    url: https://example.com/europe.xml
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Chdir(dir)
	t.Setenv(configPathEnv, path)
	t.Setenv(llmModelEnv, "env-model")
	t.Setenv(recipientEmailEnv, "reader@example.com")

	cfg := Load()

	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://file/db" {
		t.Fatalf("database not merged: %+v", cfg.Database)
	}
	if cfg.Fetch.Concurrency != 4 || cfg.Fetch.HostInterval != 2*time.Second {
		t.Fatalf("fetch not merged: %+v", cfg.Fetch)
	}
	if cfg.Fetch.Timeout != 30*time.Second {
		t.Fatalf("default fetch timeout lost: %v", cfg.Fetch.Timeout)
	}
	if cfg.LLM.Model != "env-model" {
		t.Fatalf("env override must win, got %s", cfg.LLM.Model)
	}
	if cfg.LLM.BaseURL != "https://openrouter.ai/api/v1" {
		t.Fatalf("default base url lost: %s", cfg.LLM.BaseURL)
	}
	if cfg.Mail.To != "reader@example.com" {
		t.Fatalf("recipient not applied: %s", cfg.Mail.To)
	}
	if len(cfg.Feeds) != 1 || cfg.Feeds[0].Name != "Europe" {
		t.Fatalf("feeds not replaced: %+v", cfg.Feeds)
	}
}

func TestLoadFallsBackOnBrokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("feeds: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Chdir(dir)
	t.Setenv(configPathEnv, path)

	cfg := Load()
	if len(cfg.Feeds) != len(defaultConfig().Feeds) {
		t.Fatalf("expected default feeds, got %d", len(cfg.Feeds))
	}
	if cfg.Scheduler.Location() == nil {
		t.Fatalf("timezone must be bound")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()

	if err := cfg.Validate(ModeFetch, false); err != nil {
		t.Fatalf("fetch needs only store and feeds: %v", err)
	}
	if err := cfg.Validate(ModeProcess, false); err == nil {
		t.Fatalf("process without api key must fail")
	}

	cfg.LLM.APIKey = "key"
	if err := cfg.Validate(ModeFull, true); err != nil {
		t.Fatalf("dry-run full run must not require mail settings: %v", err)
	}
	if err := cfg.Validate(ModeFull, false); err == nil {
		t.Fatalf("full run without mail settings must fail")
	}

	cfg.Mail.APIKey = "sg"
	cfg.Mail.To = "reader@example.com"
	if err := cfg.Validate(ModeSend, false); err != nil {
		t.Fatalf("send with complete settings: %v", err)
	}

	cfg.Database.DSN = ""
	if err := cfg.Validate(ModeStateless, false); err != nil {
		t.Fatalf("stateless run must not need a store: %v", err)
	}
	if err := cfg.Validate(ModeMail, false); err != nil {
		t.Fatalf("test email needs only mail settings: %v", err)
	}
	if err := cfg.Validate(ModeStats, false); err == nil {
		t.Fatalf("stats without a dsn must fail")
	}
}

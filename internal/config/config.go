package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone    = "UTC"
	configPathEnv      = "FEED_DIGEST_CONFIG"
	databaseDriverEnv  = "DATABASE_DRIVER"
	databaseDSNEnv     = "DATABASE_DSN"
	llmAPIKeyEnv       = "OPENROUTER_API_KEY"
	llmModelEnv        = "LLM_MODEL"
	llmBaseURLEnv      = "LLM_BASE_URL"
	sendGridAPIKeyEnv  = "SENDGRID_API_KEY"
	senderEmailEnv     = "SENDER_EMAIL"
	recipientEmailEnv  = "RECIPIENT_EMAIL"
	archiveS3BucketEnv = "DIGEST_S3_BUCKET"
	awsRegionEnv       = "AWS_REGION"
	logLevelEnv        = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Fetch     FetchConfig     `yaml:"fetch"`
	LLM       LLMConfig       `yaml:"llm"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Prompts   PromptConfig    `yaml:"prompts"`
	Mail      MailConfig      `yaml:"mail"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Feeds     []FeedConfig    `yaml:"feeds"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes the article store. Driver is "postgres", "sqlite" or "memory".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines when scheduled runs fire.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// FetchConfig tunes feed retrieval.
type FetchConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	Timeout      time.Duration `yaml:"timeout"`
	HostInterval time.Duration `yaml:"hostInterval"`
	UserAgent    string        `yaml:"userAgent"`
}

// LLMConfig defines how to contact the OpenAI-compatible completion backend.
type LLMConfig struct {
	BaseURL              string        `yaml:"baseUrl"`
	Model                string        `yaml:"model"`
	APIKey               string        `yaml:"apiKey"`
	SystemPrompt         string        `yaml:"systemPrompt"`
	Timeout              time.Duration `yaml:"timeout"`
	RequestsPerMinute    int           `yaml:"requestsPerMinute"`
	InputCostPerMillion  float64       `yaml:"inputCostPerMillion"`
	OutputCostPerMillion float64       `yaml:"outputCostPerMillion"`
}

// AnalysisConfig controls the per-article analysis stage.
type AnalysisConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// PromptConfig optionally points at prompt files replacing the embedded defaults.
type PromptConfig struct {
	AnalysisPath string `yaml:"analysisPath"`
	DigestPath   string `yaml:"digestPath"`
}

// MailConfig wires the SendGrid transport and the page shell.
type MailConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	APIKey       string        `yaml:"apiKey"`
	From         string        `yaml:"from"`
	FromName     string        `yaml:"fromName"`
	To           string        `yaml:"to"`
	Title        string        `yaml:"title"`
	TemplatePath string        `yaml:"templatePath"`
	Timeout      time.Duration `yaml:"timeout"`
}

// ArchiveConfig describes where rendered pages are kept.
type ArchiveConfig struct {
	Dir          string `yaml:"dir"`
	S3Bucket     string `yaml:"s3Bucket"`
	S3Prefix     string `yaml:"s3Prefix"`
	Region       string `yaml:"region"`
	UsePathStyle bool   `yaml:"usePathStyle"`
}

// FeedConfig describes a single feed with its scanner strategy.
type FeedConfig struct {
	Name    string            `yaml:"name"`
	URL     string            `yaml:"url"`
	Scanner string            `yaml:"scanner"`
	Options map[string]string `yaml:"options"`
}

// Mode names the run scope used by Validate.
type Mode string

const (
	ModeFull      Mode = "full"
	ModeFetch     Mode = "fetch"
	ModeProcess   Mode = "process"
	ModeSend      Mode = "send"
	ModeStateless Mode = "stateless"
	ModeStats     Mode = "stats"
	ModeMail      Mode = "mail"
)

// Load reads .env and YAML configuration (if present) and applies environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Feeds) == 0 {
		cfg.Feeds = defaultConfig().Feeds
	}

	return cfg
}

// Validate reports settings missing for the requested mode.
func (c Config) Validate(mode Mode, dryRun bool) error {
	var missing []string

	needsStore := mode != ModeStateless && mode != ModeMail
	needsLLM := mode == ModeFull || mode == ModeProcess || mode == ModeSend || mode == ModeStateless
	needsMail := mode == ModeMail ||
		((mode == ModeFull || mode == ModeSend || mode == ModeStateless) && !dryRun)
	needsFeeds := mode == ModeFull || mode == ModeFetch || mode == ModeStateless

	if needsStore && c.Database.Driver != "memory" && c.Database.DSN == "" {
		missing = append(missing, databaseDSNEnv)
	}
	if needsLLM && c.LLM.APIKey == "" {
		missing = append(missing, llmAPIKeyEnv)
	}
	if needsMail {
		if c.Mail.APIKey == "" {
			missing = append(missing, sendGridAPIKeyEnv)
		}
		if c.Mail.To == "" {
			missing = append(missing, recipientEmailEnv)
		}
	}
	if needsFeeds && len(c.Feeds) == 0 {
		missing = append(missing, "feeds")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(llmBaseURLEnv); v != "" {
		c.LLM.BaseURL = v
	}

	if v := os.Getenv(sendGridAPIKeyEnv); v != "" {
		c.Mail.APIKey = v
	}
	if v := os.Getenv(senderEmailEnv); v != "" {
		c.Mail.From = v
	}
	if v := os.Getenv(recipientEmailEnv); v != "" {
		c.Mail.To = v
	}

	if v := os.Getenv(archiveS3BucketEnv); v != "" {
		c.Archive.S3Bucket = v
	}
	if v := os.Getenv(awsRegionEnv); v != "" {
		c.Archive.Region = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Fetch.Concurrency > 0 {
		base.Fetch.Concurrency = override.Fetch.Concurrency
	}
	if override.Fetch.Timeout > 0 {
		base.Fetch.Timeout = override.Fetch.Timeout
	}
	if override.Fetch.HostInterval > 0 {
		base.Fetch.HostInterval = override.Fetch.HostInterval
	}
	if override.Fetch.UserAgent != "" {
		base.Fetch.UserAgent = override.Fetch.UserAgent
	}

	if override.LLM.BaseURL != "" {
		base.LLM.BaseURL = override.LLM.BaseURL
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.SystemPrompt != "" {
		base.LLM.SystemPrompt = override.LLM.SystemPrompt
	}
	if override.LLM.Timeout > 0 {
		base.LLM.Timeout = override.LLM.Timeout
	}
	if override.LLM.RequestsPerMinute > 0 {
		base.LLM.RequestsPerMinute = override.LLM.RequestsPerMinute
	}
	if override.LLM.InputCostPerMillion > 0 {
		base.LLM.InputCostPerMillion = override.LLM.InputCostPerMillion
	}
	if override.LLM.OutputCostPerMillion > 0 {
		base.LLM.OutputCostPerMillion = override.LLM.OutputCostPerMillion
	}

	if override.Analysis.Concurrency > 0 {
		base.Analysis.Concurrency = override.Analysis.Concurrency
	}

	if override.Prompts.AnalysisPath != "" {
		base.Prompts.AnalysisPath = override.Prompts.AnalysisPath
	}
	if override.Prompts.DigestPath != "" {
		base.Prompts.DigestPath = override.Prompts.DigestPath
	}

	if override.Mail.Endpoint != "" {
		base.Mail.Endpoint = override.Mail.Endpoint
	}
	if override.Mail.APIKey != "" {
		base.Mail.APIKey = override.Mail.APIKey
	}
	if override.Mail.From != "" {
		base.Mail.From = override.Mail.From
	}
	if override.Mail.FromName != "" {
		base.Mail.FromName = override.Mail.FromName
	}
	if override.Mail.To != "" {
		base.Mail.To = override.Mail.To
	}
	if override.Mail.Title != "" {
		base.Mail.Title = override.Mail.Title
	}
	if override.Mail.TemplatePath != "" {
		base.Mail.TemplatePath = override.Mail.TemplatePath
	}
	if override.Mail.Timeout > 0 {
		base.Mail.Timeout = override.Mail.Timeout
	}

	if override.Archive.Dir != "" {
		base.Archive.Dir = override.Archive.Dir
	}
	if override.Archive.S3Bucket != "" {
		base.Archive.S3Bucket = override.Archive.S3Bucket
	}
	if override.Archive.S3Prefix != "" {
		base.Archive.S3Prefix = override.Archive.S3Prefix
	}
	if override.Archive.Region != "" {
		base.Archive.Region = override.Archive.Region
	}
	if override.Archive.UsePathStyle {
		base.Archive.UsePathStyle = true
	}

	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "feeddigest.db"},
		Scheduler: SchedulerConfig{CronExpression: "0 7 * * MON", Timezone: defaultTimezone, location: tz},
		Fetch: FetchConfig{
			Concurrency:  1,
			Timeout:      30 * time.Second,
			HostInterval: time.Second,
			UserAgent:    "FeedDigest/1.0",
		},
		LLM: LLMConfig{
			BaseURL:              "https://openrouter.ai/api/v1",
			Model:                "google/gemini-flash-1.5-8b",
			SystemPrompt:         "You are a skilled editor creating weekly news digests for data journalists. Format your output in clean, semantic HTML.",
			Timeout:              90 * time.Second,
			InputCostPerMillion:  0.075,
			OutputCostPerMillion: 0.30,
		},
		Analysis: AnalysisConfig{Concurrency: 1},
		Mail: MailConfig{
			Endpoint: "https://api.sendgrid.com/v3/mail/send",
			From:     "digest@economist-digest.com",
			FromName: "Economist Digest",
			Title:    "Your Economist Weekly Digest",
			Timeout:  30 * time.Second,
		},
		Archive: ArchiveConfig{Dir: "."},
		Feeds: []FeedConfig{
			{Name: "Finance & Economics", URL: "https://www.economist.com/finance-and-economics/rss.xml", Scanner: "rss"},
			{Name: "Europe", URL: "https://www.economist.com/europe/rss.xml", Scanner: "rss"},
			{Name: "Business", URL: "https://www.economist.com/business/rss.xml", Scanner: "rss"},
			{Name: "Leaders", URL: "https://www.economist.com/leaders/rss.xml", Scanner: "rss"},
			{Name: "International", URL: "https://www.economist.com/international/rss.xml", Scanner: "rss"},
			{Name: "Science & Technology", URL: "https://www.economist.com/science-and-technology/rss.xml", Scanner: "rss"},
			{Name: "Data journalism", URL: "https://www.economist.com/graphic-detail/rss.xml", Scanner: "rss"},
		},
	}
}

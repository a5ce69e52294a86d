package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"BourseNews/internal/domain"
)

const (
	configPathEnv     = "BOURSENEWS_CONFIG"
	outDirEnv         = "BOURSENEWS_OUT_DIR"
	logLevelEnv       = "LOG_LEVEL"
	chatGPTModelEnv   = "OPENAI_MODEL"
	chatGPTEndpoint   = "OPENAI_ENDPOINT"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds every setting of a run. It is built once at start and not mutated afterwards.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Output        OutputConfig       `yaml:"output"`
	Fetch         FetchConfig        `yaml:"fetch"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Report        ReportConfig       `yaml:"report"`
	Notifications NotificationConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Feeds         []FeedConfig       `yaml:"feeds"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// OutputConfig names the output directory and the artifacts written into it.
type OutputConfig struct {
	Dir       string `yaml:"dir"`
	Database  string `yaml:"database"`
	Dashboard string `yaml:"dashboard"`
	Snapshot  string `yaml:"snapshot"`
	Digest    string `yaml:"digest"`
	Metrics   string `yaml:"metrics"`
}

// DatabasePath is the row-store file location.
func (o OutputConfig) DatabasePath() string { return filepath.Join(o.Dir, o.Database) }

// DashboardPath is the HTML dashboard location.
func (o OutputConfig) DashboardPath() string { return filepath.Join(o.Dir, o.Dashboard) }

// SnapshotPath is the JSON snapshot location.
func (o OutputConfig) SnapshotPath() string { return filepath.Join(o.Dir, o.Snapshot) }

// DigestPath is the plain-text digest location.
func (o OutputConfig) DigestPath() string { return filepath.Join(o.Dir, o.Digest) }

// MetricsPath is the Prometheus textfile location; empty disables it.
func (o OutputConfig) MetricsPath() string {
	if o.Metrics == "" {
		return ""
	}
	return filepath.Join(o.Dir, o.Metrics)
}

// FetchConfig tunes feed retrieval.
type FetchConfig struct {
	MaxItemsPerFeed int           `yaml:"maxItemsPerFeed"`
	FeedDelay       time.Duration `yaml:"feedDelay"`
	Timeout         time.Duration `yaml:"timeout"`
	UserAgent       string        `yaml:"userAgent"`
}

// ChatGPTConfig defines how to contact the chat completions API.
type ChatGPTConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKeyEnv    string        `yaml:"apiKeyEnv"`
	EnvFile      string        `yaml:"envFile"`
	SystemPrompt string        `yaml:"systemPrompt"`
	Timeout      time.Duration `yaml:"timeout"`
}

// ReportConfig bounds the rendered corpus.
type ReportConfig struct {
	RecentLimit int    `yaml:"recentLimit"`
	DigestSize  int    `yaml:"digestSize"`
	Title       string `yaml:"title"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// SchedulerConfig drives watch mode.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// FeedConfig is one entry of the feed table.
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// DomainFeeds converts the feed table into domain values, keeping order.
func (c Config) DomainFeeds() []domain.Feed {
	feeds := make([]domain.Feed, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		feeds = append(feeds, domain.Feed{Name: f.Name, URL: f.URL})
	}
	return feeds
}

// Load builds the configuration: defaults, then the YAML file at path (or $BOURSENEWS_CONFIG),
// then environment overrides. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(outDirEnv); v != "" {
		c.Output.Dir = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}

	if v := os.Getenv(chatGPTEndpoint); v != "" {
		c.ChatGPT.Endpoint = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

// Validate checks the settings a run cannot work without.
func (c Config) Validate() error {
	var errs []error

	if len(c.Feeds) == 0 {
		errs = append(errs, errors.New("at least one feed must be configured"))
	}

	seen := make(map[string]struct{}, len(c.Feeds))
	for i, f := range c.Feeds {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("feed #%d has no name", i+1))
			continue
		}
		if _, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("feed %q is configured twice", name))
		}
		seen[name] = struct{}{}

		u, err := url.Parse(f.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("feed %q has invalid url %q", name, f.URL))
		}
	}

	if c.Output.Dir == "" {
		errs = append(errs, errors.New("output dir must be set"))
	}
	if c.Output.Database == "" || c.Output.Dashboard == "" || c.Output.Snapshot == "" || c.Output.Digest == "" {
		errs = append(errs, errors.New("output file names must be set"))
	}
	if c.Fetch.MaxItemsPerFeed <= 0 {
		errs = append(errs, errors.New("fetch.maxItemsPerFeed must be positive"))
	}
	if c.Fetch.FeedDelay < 0 {
		errs = append(errs, errors.New("fetch.feedDelay cannot be negative"))
	}
	if c.Report.RecentLimit <= 0 {
		errs = append(errs, errors.New("report.recentLimit must be positive"))
	}
	if c.Report.DigestSize <= 0 {
		errs = append(errs, errors.New("report.digestSize must be positive"))
	}
	if c.ChatGPT.Endpoint == "" || c.ChatGPT.Model == "" {
		errs = append(errs, errors.New("chatgpt endpoint and model must be set"))
	}

	return errors.Join(errs...)
}

// Default returns the built-in configuration, feed table included.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Output: OutputConfig{
			Dir:       "output",
			Database:  "boursenews.sqlite3",
			Dashboard: "dashboard.html",
			Snapshot:  "items.json",
			Digest:    "daily_summary.txt",
			Metrics:   "metrics.prom",
		},
		Fetch: FetchConfig{
			MaxItemsPerFeed: 10,
			FeedDelay:       300 * time.Millisecond,
			Timeout:         20 * time.Second,
			UserAgent:       "BourseNews/1.0",
		},
		ChatGPT: ChatGPTConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			APIKeyEnv:    "OPENAI_API_KEY",
			EnvFile:      ".env",
			SystemPrompt: "You are a senior macro-financial analyst. You answer with strict JSON only.",
			Timeout:      60 * time.Second,
		},
		Report: ReportConfig{
			RecentLimit: 200,
			DigestSize:  10,
			Title:       "BourseNews",
		},
		Scheduler: SchedulerConfig{Interval: time.Hour},
		Feeds:     defaultFeeds(),
	}
}

func defaultFeeds() []FeedConfig {
	return []FeedConfig{
		{Name: "Ondas IR (official)", URL: "https://ir.ondas.com/rss"},
		{Name: "Bloomberg Markets", URL: "https://feeds.bloomberg.com/markets/news.rss"},
		{Name: "Bloomberg Technology", URL: "https://feeds.bloomberg.com/technology/news.rss"},
		{Name: "GoogleNews ONDS", URL: "https://news.google.com/rss/search?q=Ondas%20Holdings%20ONDS%20when%3A7d&hl=en-US&gl=US&ceid=US:en"},
		{Name: "GoogleNews Micron MU", URL: "https://news.google.com/rss/search?q=Micron%20Technology%20MU%20when%3A7d&hl=en-US&gl=US&ceid=US:en"},
		{Name: "GoogleNews Micron FR", URL: "https://news.google.com/rss/search?q=Micron%20Technology%20when%3A7d&hl=fr&gl=FR&ceid=FR:fr"},
		{Name: "Les Echos - Marchés", URL: "https://www.lesechos.fr/rss/rss_finance.xml"},
		{Name: "Boursorama - Bourse", URL: "https://www.boursorama.com/rss/actualites/bourse/"},
		{Name: "Zonebourse - News", URL: "https://www.zonebourse.com/rss/news.xml"},
		{Name: "Bloomberg - Europe", URL: "https://news.google.com/rss/search?q=site%3Abloomberg.com%20Europe&hl=en-GB&gl=GB&ceid=GB:en"},
		{Name: "Reuters - Markets", URL: "https://feeds.reuters.com/reuters/businessNews"},
		{Name: "CNBC - Top News", URL: "https://www.cnbc.com/id/100003114/device/rss/rss.html"},
		{Name: "Micron Technology", URL: "https://news.google.com/rss/search?q=Micron%20Technology%20MU&hl=en-US&gl=US&ceid=US:en"},
		{Name: "Ondas filings", URL: "https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&CIK=0001646188&owner=exclude&count=40&output=atom"},
		{Name: "Micron filings", URL: "https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&CIK=0000723125&owner=exclude&count=40&output=atom"},
		{Name: "Bloomberg - via Google News", URL: "https://news.google.com/rss/search?q=site%3Abloomberg.com&hl=en-US&gl=US&ceid=US:en"},
	}
}

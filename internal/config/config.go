// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Fetcher kinds selectable via crawler.fetcher.
const (
	FetcherHeadless = "headless"
	FetcherStatic   = "static"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Headless HeadlessConfig `mapstructure:"headless"`
	DB       DBConfig       `mapstructure:"db"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig governs the traversal and politeness behavior.
type CrawlerConfig struct {
	BaseURL         string   `mapstructure:"base_url"`
	MaxDepth        int      `mapstructure:"max_depth"`
	Concurrency     int      `mapstructure:"concurrency"`
	UserAgent       string   `mapstructure:"user_agent"`
	Fetcher         string   `mapstructure:"fetcher"`
	StripParams     []string `mapstructure:"strip_params"`
	DisallowedPaths []string `mapstructure:"disallowed_paths"`
	PerHostRPS      float64  `mapstructure:"per_host_rps"`
	SeedFromSitemap bool     `mapstructure:"seed_from_sitemap"`
	HeadFallback    bool     `mapstructure:"head_fallback"`
	TimeoutSeconds  int      `mapstructure:"timeout_seconds"`
}

// HeadlessConfig configures the headless rendering fetcher.
type HeadlessConfig struct {
	NavTimeoutSec int `mapstructure:"nav_timeout_seconds"`
	SettleMillis  int `mapstructure:"settle_millis"`
}

// DBConfig controls access to the Postgres link store.
type DBConfig struct {
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
	BatchSize int    `mapstructure:"batch_size"`
	MaxConns  int32  `mapstructure:"max_conns"`
	MinConns  int32  `mapstructure:"min_conns"`
}

// ServerConfig controls the optional progress/metrics HTTP listener.
// A zero port disables the listener.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Required keys get an empty default so Unmarshal can see their env
	// values; Validate still rejects the empties.
	v.SetDefault("crawler.base_url", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("crawler.max_depth", 1)
	v.SetDefault("crawler.concurrency", 50)
	v.SetDefault("crawler.user_agent", "linkcrawler/1.0 (+https://github.com/waterbase/linkcrawler)")
	v.SetDefault("crawler.fetcher", FetcherHeadless)
	v.SetDefault("crawler.strip_params", []string{"tags"})
	v.SetDefault("crawler.disallowed_paths", []string{"/mediebank/"})
	v.SetDefault("crawler.per_host_rps", 0)
	v.SetDefault("crawler.seed_from_sitemap", false)
	v.SetDefault("crawler.head_fallback", true)
	v.SetDefault("crawler.timeout_seconds", 10)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.settle_millis", 500)
	v.SetDefault("db.table", "crawled_links")
	v.SetDefault("db.batch_size", 64)
	v.SetDefault("server.port", 0)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.BaseURL == "" {
		return fmt.Errorf("crawler.base_url is required")
	}
	u, err := url.Parse(c.Crawler.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("crawler.base_url %q must be an absolute URL", c.Crawler.BaseURL)
	}
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.Fetcher != FetcherHeadless && c.Crawler.Fetcher != FetcherStatic {
		return fmt.Errorf("crawler.fetcher must be %q or %q", FetcherHeadless, FetcherStatic)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.DB.BatchSize <= 0 {
		return fmt.Errorf("db.batch_size must be > 0")
	}
	return nil
}

// HTTPTimeout returns the shared client timeout for robots, HEAD and
// sitemap requests.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}

// NavTimeout returns the headless navigation deadline.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// Settle returns the post-load quiesce delay for the headless fetcher.
func (c Config) Settle() time.Duration {
	return time.Duration(c.Headless.SettleMillis) * time.Millisecond
}

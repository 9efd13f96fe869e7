package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Page sources
const (
	SourceHTTP    = "http"
	SourceFile    = "file"
	SourceBrowser = "browser"
)

// Storage backends
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds all runtime configuration parameters
type Config struct {
	PageURL           string `json:"page_url"`
	Source            string `json:"source"`
	HTMLPath          string `json:"html_path"`
	PollIntervalMs    int    `json:"poll_interval_ms"`
	RequestTimeoutMs  int    `json:"request_timeout_ms"`
	BatchSize         int    `json:"batch_size"`
	FlushIntervalMs   int    `json:"flush_interval_ms"`
	NavigationDelayMs int    `json:"navigation_delay_ms"`
	Backend           string `json:"backend"`
	DBPath            string `json:"db_path"`
	RedisAddr         string `json:"redis_addr"`
	RedisDB           int    `json:"redis_db"`
	ServerURL         string `json:"server_url"`
	DownloadDir       string `json:"download_dir"`
	MetricsPath       string `json:"metrics_path"`
	ListenAddr        string `json:"listen_addr"`
	LogLevel          string `json:"log_level"`
	BrowserHeadless   *bool  `json:"browser_headless"`
	BrowserProxy      string `json:"browser_proxy"`
}

// LoadConfig reads and validates configuration from a JSON file
// A missing file yields the defaults
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	file, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logrus.Debugf("Config file %s not found, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	default:
		defer file.Close()
		decoder := json.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.Source == "" {
		cfg.Source = SourceHTTP
	}
	if cfg.PollIntervalMs == 0 {
		cfg.PollIntervalMs = 2000
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 10000
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.FlushIntervalMs == 0 {
		cfg.FlushIntervalMs = 5000
	}
	if cfg.NavigationDelayMs == 0 {
		cfg.NavigationDelayMs = 500
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendSQLite
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "profiles.db"
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = "downloads"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "metrics.log"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8765"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.BrowserHeadless == nil {
		headless := true
		cfg.BrowserHeadless = &headless
	}
}

// validate checks that values are sensible
// page_url is only required by the scrape command, see RequirePage
func validate(cfg *Config) error {
	switch cfg.Source {
	case SourceHTTP, SourceFile, SourceBrowser:
	default:
		return fmt.Errorf("source must be one of http, file, browser")
	}
	switch cfg.Backend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("backend must be one of sqlite, redis, memory")
	}
	if cfg.PollIntervalMs < 100 {
		return fmt.Errorf("poll_interval_ms must be >= 100")
	}
	if cfg.RequestTimeoutMs < 1000 {
		return fmt.Errorf("request_timeout_ms must be >= 1000")
	}
	if cfg.BatchSize < 1 {
		return fmt.Errorf("batch_size must be >= 1")
	}
	if cfg.FlushIntervalMs < 1 {
		return fmt.Errorf("flush_interval_ms must be >= 1")
	}
	if cfg.NavigationDelayMs < 0 {
		return fmt.Errorf("navigation_delay_ms must be >= 0")
	}
	if cfg.RedisDB < 0 {
		return fmt.Errorf("redis_db must be >= 0")
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if cfg.ServerURL != "" {
		if u, err := url.Parse(cfg.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("server_url must be an absolute URL")
		}
	}
	return nil
}

// RequirePage checks the settings a scraping session needs
func (c *Config) RequirePage() error {
	if c.Source == SourceFile {
		if c.HTMLPath == "" {
			return fmt.Errorf("html_path is required for the file source")
		}
		return nil
	}
	if c.PageURL == "" {
		return fmt.Errorf("page_url is required for the %s source", c.Source)
	}
	if u, err := url.Parse(c.PageURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("page_url must be an absolute URL")
	}
	return nil
}

// PollInterval returns poll_interval_ms as a duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// RequestTimeout returns request_timeout_ms as a duration
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// FlushInterval returns flush_interval_ms as a duration
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMs) * time.Millisecond
}

// NavigationDelay returns navigation_delay_ms as a duration
func (c *Config) NavigationDelay() time.Duration {
	return time.Duration(c.NavigationDelayMs) * time.Millisecond
}

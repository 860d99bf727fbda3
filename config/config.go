package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds settings for the fulfillment service, the RPC boundary and
// the CLI.
type Config struct {
	APIBaseURL       string        `toml:"api_base_url"`
	APIKey           string        `toml:"api_key"`
	Parallelism      int           `toml:"parallelism"`
	Timeout          time.Duration `toml:"-"`
	MaxRetries       int           `toml:"max_retries"`
	RetryBackoff     time.Duration `toml:"-"`
	RetryBackoffMax  time.Duration `toml:"-"`
	SearchLimit      int           `toml:"search_limit"`
	Extension        string        `toml:"extension"`
	Language         string        `toml:"language"`
	SearchCacheSize  int           `toml:"search_cache_size"`
	ArchivePath      string        `toml:"archive_path"`
	MaxDownloadBytes int           `toml:"max_download_bytes"`
	UserAgent        string        `toml:"user_agent"`
	RemoteURL        string        `toml:"remote_url"`
	ListenAddr       string        `toml:"listen_addr"`
	MetricsAddr      string        `toml:"metrics_addr"`
	ReportFile       string        `toml:"report_file"`
	ReportFormat     string        `toml:"report_format"` // csv, json, or dual
	Verbose          bool          `toml:"verbose"`
}

// DefaultConfig returns defaults for the public search API.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:       "https://annas-archive-api.p.rapidapi.com",
		Parallelism:      8,
		Timeout:          30 * time.Second,
		MaxRetries:       2,
		RetryBackoff:     500 * time.Millisecond,
		RetryBackoffMax:  5 * time.Second,
		SearchLimit:      10,
		Extension:        "epub",
		Language:         "en",
		SearchCacheSize:  1024,
		ArchivePath:      "ebook-package.zip",
		MaxDownloadBytes: 100 << 20,
		UserAgent:        "go-ebook-batch/1.0",
		ListenAddr:       ":8080",
		ReportFormat:     "csv",
	}
}

// durationFields carries duration keys as strings such as "30s".
type durationFields struct {
	Timeout         string `toml:"timeout"`
	RetryBackoff    string `toml:"retry_backoff"`
	RetryBackoffMax string `toml:"retry_backoff_max"`
}

// LoadFile decodes a TOML file over c. Keys absent from the file keep their
// current values.
func (c *Config) LoadFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}

	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	var durations durationFields
	if err := toml.Unmarshal(data, &durations); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	for _, field := range []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"timeout", durations.Timeout, &c.Timeout},
		{"retry_backoff", durations.RetryBackoff, &c.RetryBackoff},
		{"retry_backoff_max", durations.RetryBackoffMax, &c.RetryBackoffMax},
	} {
		if field.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(field.value)
		if err != nil {
			return fmt.Errorf("parse config: %s: %w", field.key, err)
		}
		*field.dst = parsed
	}
	return nil
}

// ApplyEnv overrides fields from BOOKBATCH_* variables and API_KEY.
func (c *Config) ApplyEnv() error {
	if value, ok := EnvString("API_KEY"); ok {
		c.APIKey = value
	}
	if value, ok := EnvString("BOOKBATCH_API_BASE_URL"); ok {
		c.APIBaseURL = value
	}
	if value, ok := EnvString("BOOKBATCH_ARCHIVE"); ok {
		c.ArchivePath = value
	}
	if value, ok := EnvString("BOOKBATCH_REMOTE"); ok {
		c.RemoteURL = value
	}
	if value, ok := EnvString("BOOKBATCH_METRICS_ADDR"); ok {
		c.MetricsAddr = value
	}
	if value, ok, err := EnvInt("BOOKBATCH_PARALLEL"); err != nil {
		return fmt.Errorf("invalid BOOKBATCH_PARALLEL: %w", err)
	} else if ok {
		c.Parallelism = value
	}
	if value, ok, err := EnvInt("BOOKBATCH_MAX_RETRIES"); err != nil {
		return fmt.Errorf("invalid BOOKBATCH_MAX_RETRIES: %w", err)
	} else if ok {
		c.MaxRetries = value
	}
	if value, ok, err := EnvDuration("BOOKBATCH_TIMEOUT"); err != nil {
		return fmt.Errorf("invalid BOOKBATCH_TIMEOUT: %w", err)
	} else if ok {
		c.Timeout = value
	}
	return nil
}

// EnvString returns a trimmed, non-empty environment value.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses an integer environment value.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, err
	}
	return parsed, true, nil
}

// EnvDuration parses a Go duration environment value such as "45s".
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, err
	}
	return parsed, true, nil
}

// APIHost returns the host header value the search API expects.
func (c *Config) APIHost() string {
	parsed, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}

// Validate ensures all configuration values are coherent. The API key is
// not required here: a CLI talking to a remote service never needs it.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api base URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return fmt.Errorf("invalid api base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("api base URL must include a host")
	}

	if c.RemoteURL != "" {
		remote, err := url.Parse(c.RemoteURL)
		if err != nil {
			return fmt.Errorf("invalid remote URL: %w", err)
		}
		if remote.Host == "" {
			return fmt.Errorf("remote URL must include a host")
		}
	}

	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.SearchLimit <= 0 {
		return fmt.Errorf("search limit must be positive")
	}
	if c.SearchCacheSize < 0 {
		return fmt.Errorf("search cache size cannot be negative")
	}
	if c.MaxDownloadBytes < 0 {
		return fmt.Errorf("max download bytes cannot be negative")
	}
	if c.ReportFormat != "csv" && c.ReportFormat != "json" && c.ReportFormat != "dual" {
		return fmt.Errorf("report format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

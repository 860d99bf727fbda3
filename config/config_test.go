package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "negative parallelism",
			mutate: func(cfg *Config) {
				cfg.Parallelism = -1
			},
			wantErr: "parallelism",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.APIBaseURL = ""
			},
			wantErr: "api base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.APIBaseURL = "http://"
			},
			wantErr: "api base URL",
		},
		{
			name: "remote without host",
			mutate: func(cfg *Config) {
				cfg.RemoteURL = "localhost"
			},
			wantErr: "remote URL",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "backoff above max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = time.Minute
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "zero search limit",
			mutate: func(cfg *Config) {
				cfg.SearchLimit = 0
			},
			wantErr: "search limit",
		},
		{
			name: "unknown report format",
			mutate: func(cfg *Config) {
				cfg.ReportFormat = "xml"
			},
			wantErr: "report format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if got := cfg.APIHost(); got != "annas-archive-api.p.rapidapi.com" {
		t.Fatalf("api host = %q", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookbatch.toml")
	content := `api_base_url = "http://api.test"
parallelism = 3
timeout = "45s"
retry_backoff = "250ms"
archive_path = "/tmp/books.zip"
report_format = "dual"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.APIBaseURL != "http://api.test" || cfg.Parallelism != 3 {
		t.Fatalf("base/parallel = %q/%d", cfg.APIBaseURL, cfg.Parallelism)
	}
	if cfg.Timeout != 45*time.Second || cfg.RetryBackoff != 250*time.Millisecond {
		t.Fatalf("timeout/backoff = %v/%v", cfg.Timeout, cfg.RetryBackoff)
	}
	if cfg.RetryBackoffMax != 5*time.Second {
		t.Fatalf("absent key should keep default, got %v", cfg.RetryBackoffMax)
	}
	if cfg.ArchivePath != "/tmp/books.zip" || cfg.ReportFormat != "dual" {
		t.Fatalf("archive/report = %q/%q", cfg.ArchivePath, cfg.ReportFormat)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config should validate: %v", err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.LoadFile(""); err != nil {
		t.Fatalf("empty path should be a no-op, got %v", err)
	}
	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte(`timeout = "soon"`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := cfg.LoadFile(path); err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("expected timeout parse error, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("API_KEY", " secret ")
	t.Setenv("BOOKBATCH_PARALLEL", "4")
	t.Setenv("BOOKBATCH_TIMEOUT", "2s")
	t.Setenv("BOOKBATCH_REMOTE", "http://worker:8080")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.APIKey != "secret" || cfg.Parallelism != 4 || cfg.Timeout != 2*time.Second || cfg.RemoteURL != "http://worker:8080" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	t.Setenv("BOOKBATCH_MAX_RETRIES", "many")
	if err := cfg.ApplyEnv(); err == nil || !strings.Contains(err.Error(), "BOOKBATCH_MAX_RETRIES") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

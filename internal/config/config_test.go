package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harvestlab/topic-harvester/internal/harvest"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Logging.Development {
		t.Fatalf("expected development logging by default")
	}
	if cfg.Storage.Dir != "." || cfg.Storage.DatasetDir != "final_dataset" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Crawl.Concurrency != 1 {
		t.Fatalf("expected concurrency 1, got %d", cfg.Crawl.Concurrency)
	}
	if got := cfg.TopicJitter(); got != (harvest.JitterRange{Min: time.Second, Max: 3 * time.Second}) {
		t.Fatalf("unexpected topic jitter: %+v", got)
	}
	if got := cfg.URLJitter(); got != (harvest.JitterRange{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond}) {
		t.Fatalf("unexpected url jitter: %+v", got)
	}
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Fatalf("expected 30s http timeout, got %v", cfg.HTTP.Timeout)
	}
	if !strings.Contains(cfg.HTTP.UserAgent, "Chrome") {
		t.Fatalf("expected browser user agent, got %q", cfg.HTTP.UserAgent)
	}
	if !strings.Contains(cfg.Search.URLTemplate, "{query}") {
		t.Fatalf("expected query placeholder in template, got %q", cfg.Search.URLTemplate)
	}
	if cfg.Search.ResultDelay != 2*time.Second || cfg.Search.Timeout != 20*time.Second {
		t.Fatalf("unexpected search pacing defaults: %+v", cfg.Search)
	}
	if !cfg.History.Enabled || cfg.History.Path == "" {
		t.Fatalf("expected history enabled with a default path: %+v", cfg.History)
	}
	if cfg.Monitor.Addr != "" {
		t.Fatalf("expected monitor disabled by default, got %q", cfg.Monitor.Addr)
	}
	if cfg.Progress.BufferSize != 4096 || cfg.Progress.BatchMaxEvents != 256 {
		t.Fatalf("unexpected progress defaults: %+v", cfg.Progress)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: false
storage:
  dir: /var/lib/harvester
  dataset_dir: out
crawl:
  concurrency: 3
  topic_delay_min: 2s
  topic_delay_max: 4s
  url_delay_min: 100ms
  url_delay_max: 200ms
http:
  timeout: 45s
  user_agent: harvester-test/1.0
search:
  url_template: "https://search.test/?q={query}"
  result_selector: "a.link"
  result_delay: 5s
  timeout: 10s
  blocked_domains: ["ads.test", "*.tracker.test"]
history:
  enabled: false
  path: ""
monitor:
  addr: 127.0.0.1:9180
  api_key: sekrit
progress:
  buffer_size: 16
  batch_max_events: 4
  batch_max_wait: 50ms
  sink_timeout: 1s
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Development {
		t.Fatalf("expected development logging disabled")
	}
	if cfg.Storage.Dir != "/var/lib/harvester" || cfg.Storage.DatasetDir != "out" {
		t.Fatalf("expected storage overrides to apply: %+v", cfg.Storage)
	}
	if cfg.Crawl.Concurrency != 3 || cfg.Crawl.TopicDelayMax != 4*time.Second {
		t.Fatalf("expected crawl overrides to apply: %+v", cfg.Crawl)
	}
	if cfg.HTTP.Timeout != 45*time.Second || cfg.HTTP.UserAgent != "harvester-test/1.0" {
		t.Fatalf("expected http overrides to apply: %+v", cfg.HTTP)
	}
	if cfg.Search.URLTemplate != "https://search.test/?q={query}" || len(cfg.Search.BlockedDomains) != 2 {
		t.Fatalf("expected search overrides to apply: %+v", cfg.Search)
	}
	if cfg.History.Enabled {
		t.Fatalf("expected history disabled: %+v", cfg.History)
	}
	if cfg.Monitor.Addr != "127.0.0.1:9180" || cfg.Monitor.APIKey != "sekrit" {
		t.Fatalf("expected monitor overrides to apply: %+v", cfg.Monitor)
	}
	if cfg.Progress.BatchMaxWait != 50*time.Millisecond {
		t.Fatalf("expected progress overrides to apply: %+v", cfg.Progress)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read config error, got %v", err)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Storage: StorageConfig{Dir: ".", DatasetDir: "final_dataset"},
		Crawl: CrawlConfig{
			Concurrency:   1,
			TopicDelayMin: time.Second,
			TopicDelayMax: 3 * time.Second,
			URLDelayMin:   500 * time.Millisecond,
			URLDelayMax:   1500 * time.Millisecond,
		},
		HTTP: HTTPConfig{Timeout: 30 * time.Second},
		Search: SearchConfig{
			URLTemplate: "https://search.test/?q={query}",
			ResultDelay: 2 * time.Second,
			Timeout:     20 * time.Second,
		},
		History: HistoryConfig{Enabled: true, Path: "harvester_history.db"},
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "empty storage dir",
			mutate: func(c *Config) { c.Storage.Dir = "" },
			want:   "storage.dir",
		},
		{
			name:   "empty dataset dir",
			mutate: func(c *Config) { c.Storage.DatasetDir = "" },
			want:   "storage.dataset_dir",
		},
		{
			name:   "zero concurrency",
			mutate: func(c *Config) { c.Crawl.Concurrency = 0 },
			want:   "crawl.concurrency",
		},
		{
			name:   "inverted topic delay range",
			mutate: func(c *Config) { c.Crawl.TopicDelayMax = 500 * time.Millisecond },
			want:   "crawl.topic_delay_max",
		},
		{
			name:   "negative url delay",
			mutate: func(c *Config) { c.Crawl.URLDelayMin = -time.Second },
			want:   "crawl.url_delay_min",
		},
		{
			name:   "zero http timeout",
			mutate: func(c *Config) { c.HTTP.Timeout = 0 },
			want:   "http.timeout",
		},
		{
			name:   "template without placeholder",
			mutate: func(c *Config) { c.Search.URLTemplate = "https://search.test/" },
			want:   "search.url_template",
		},
		{
			name:   "zero search timeout",
			mutate: func(c *Config) { c.Search.Timeout = 0 },
			want:   "search.timeout",
		},
		{
			name:   "history enabled without path",
			mutate: func(c *Config) { c.History.Path = "" },
			want:   "history.path",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

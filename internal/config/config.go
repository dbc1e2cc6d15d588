// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/harvestlab/topic-harvester/internal/discovery"
	"github.com/harvestlab/topic-harvester/internal/harvest"
	"github.com/harvestlab/topic-harvester/internal/history/sqlite"
)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Search   SearchConfig   `mapstructure:"search"`
	History  HistoryConfig  `mapstructure:"history"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// StorageConfig locates the persisted URL sets and the dataset output.
type StorageConfig struct {
	// Dir holds the three URL state files plus, by default, the history
	// database.
	Dir string `mapstructure:"dir"`
	// DatasetDir holds dataset.jsonl. Relative paths are joined onto Dir.
	DatasetDir string `mapstructure:"dataset_dir"`
}

// CrawlConfig paces fetch work.
type CrawlConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	TopicDelayMin time.Duration `mapstructure:"topic_delay_min"`
	TopicDelayMax time.Duration `mapstructure:"topic_delay_max"`
	URLDelayMin   time.Duration `mapstructure:"url_delay_min"`
	URLDelayMax   time.Duration `mapstructure:"url_delay_max"`
}

// HTTPConfig configures the outbound page fetch client.
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// SearchConfig configures the discovery search provider.
type SearchConfig struct {
	URLTemplate    string        `mapstructure:"url_template"`
	ResultSelector string        `mapstructure:"result_selector"`
	ResultDelay    time.Duration `mapstructure:"result_delay"`
	Timeout        time.Duration `mapstructure:"timeout"`
	BlockedDomains []string      `mapstructure:"blocked_domains"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Path is the database file. Relative paths are joined onto storage.dir.
	Path string `mapstructure:"path"`
}

// MonitorConfig controls the optional monitoring HTTP server. An empty Addr
// disables it.
type MonitorConfig struct {
	Addr   string `mapstructure:"addr"`
	APIKey string `mapstructure:"api_key"`
}

// ProgressConfig tunes the progress event hub.
type ProgressConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	BatchMaxEvents int           `mapstructure:"batch_max_events"`
	BatchMaxWait   time.Duration `mapstructure:"batch_max_wait"`
	SinkTimeout    time.Duration `mapstructure:"sink_timeout"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
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
	v.SetDefault("logging.development", true)
	v.SetDefault("storage.dir", ".")
	v.SetDefault("storage.dataset_dir", "final_dataset")
	v.SetDefault("crawl.concurrency", 1)
	v.SetDefault("crawl.topic_delay_min", "1s")
	v.SetDefault("crawl.topic_delay_max", "3s")
	v.SetDefault("crawl.url_delay_min", "500ms")
	v.SetDefault("crawl.url_delay_max", "1500ms")
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.user_agent", harvest.DefaultUserAgent)
	v.SetDefault("search.url_template", discovery.DefaultURLTemplate)
	v.SetDefault("search.result_selector", discovery.DefaultResultSelector)
	v.SetDefault("search.result_delay", "2s")
	v.SetDefault("search.timeout", "20s")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", sqlite.DefaultFileName)
	v.SetDefault("monitor.addr", "")
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.batch_max_events", 256)
	v.SetDefault("progress.batch_max_wait", "500ms")
	v.SetDefault("progress.sink_timeout", "10s")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir must be set")
	}
	if c.Storage.DatasetDir == "" {
		return fmt.Errorf("storage.dataset_dir must be set")
	}
	if c.Crawl.Concurrency < 1 {
		return fmt.Errorf("crawl.concurrency must be >= 1")
	}
	if err := validateDelayRange("crawl.topic_delay", c.Crawl.TopicDelayMin, c.Crawl.TopicDelayMax); err != nil {
		return err
	}
	if err := validateDelayRange("crawl.url_delay", c.Crawl.URLDelayMin, c.Crawl.URLDelayMax); err != nil {
		return err
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if !strings.Contains(c.Search.URLTemplate, "{query}") {
		return fmt.Errorf("search.url_template must contain {query}")
	}
	if c.Search.ResultDelay < 0 {
		return fmt.Errorf("search.result_delay must be >= 0")
	}
	if c.Search.Timeout <= 0 {
		return fmt.Errorf("search.timeout must be > 0")
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path must be set when history is enabled")
	}
	return nil
}

func validateDelayRange(name string, min, max time.Duration) error {
	if min < 0 {
		return fmt.Errorf("%s_min must be >= 0", name)
	}
	if max < min {
		return fmt.Errorf("%s_max must be >= %s_min", name, name)
	}
	return nil
}

// TopicJitter converts the configured topic delay range.
func (c Config) TopicJitter() harvest.JitterRange {
	return harvest.JitterRange{Min: c.Crawl.TopicDelayMin, Max: c.Crawl.TopicDelayMax}
}

// URLJitter converts the configured per-URL delay range.
func (c Config) URLJitter() harvest.JitterRange {
	return harvest.JitterRange{Min: c.Crawl.URLDelayMin, Max: c.Crawl.URLDelayMax}
}

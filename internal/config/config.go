package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file looked up when none is given.
const DefaultConfigFile = "specblocks.yaml"

// Config represents the application configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Output  OutputConfig  `yaml:"output"`
	Cache   CacheConfig   `yaml:"cache"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Render  RenderConfig  `yaml:"render"`
	Notify  NotifyConfig  `yaml:"notify,omitempty"`
	Watch   WatchConfig   `yaml:"watch,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// SourceConfig selects the spec document. Exactly one of URL or Path is set.
type SourceConfig struct {
	URL  string `yaml:"url,omitempty" validate:"omitempty,url,excluded_with=Path"`
	Path string `yaml:"path,omitempty" validate:"required_without=URL"`
}

// OutputConfig represents output configuration.
type OutputConfig struct {
	Directory string `yaml:"directory" validate:"required"`
	// BaseURL prefixes sitemap locations; relative locations are used when empty.
	BaseURL string `yaml:"base_url,omitempty" validate:"omitempty,url"`
	// Title overrides the document title in llms.txt and index.html.
	Title string `yaml:"title,omitempty"`
}

// CacheConfig configures the conditional-fetch cache.
type CacheConfig struct {
	Directory string `yaml:"directory" validate:"required"`
	Backend   string `yaml:"backend" validate:"oneof=fs sqlite memory"`
}

// FetchConfig bounds remote spec retrieval.
type FetchConfig struct {
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxBytes int64         `yaml:"max_bytes" validate:"gt=0"`
	Retry    RetryConfig   `yaml:"retry"`
}

// RetryConfig holds raw retry settings; see retry.NewPolicy.
type RetryConfig struct {
	Mode     RetryBackoffMode `yaml:"mode" validate:"oneof=fixed linear exponential"`
	Initial  time.Duration    `yaml:"initial" validate:"gt=0"`
	Max      time.Duration    `yaml:"max" validate:"gtefield=Initial"`
	Attempts int              `yaml:"attempts" validate:"min=1,max=10"`
}

// RenderConfig selects code-sample languages and rendering parallelism.
type RenderConfig struct {
	Languages   []string `yaml:"languages" validate:"dive,required"`
	Workers     int      `yaml:"workers" validate:"min=0"`
	TemplateDir string   `yaml:"template_dir,omitempty"`
}

// NotifyConfig configures build completion events. Disabled when NATSURL is empty.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty" validate:"required_with=NATSURL"`
	// Stream is the JetStream stream created to capture Subject.
	Stream string `yaml:"stream,omitempty" validate:"required_with=NATSURL"`
}

// WatchConfig configures the rebuild loop of the watch command.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval,omitempty" validate:"gte=0"`
	Debounce time.Duration `yaml:"debounce,omitempty" validate:"gte=0"`
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	TextFile string `yaml:"text_file,omitempty"`
}

// Load reads configuration from configPath, expanding ${VAR} references.
// A missing file yields the defaults; any other read or parse failure is an error.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	cfg := Default()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("Configuration file not found, using defaults", "path", configPath)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Default()
	example.Source.URL = "https://example.com/openapi.yaml"
	example.Notify = NotifyConfig{}

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

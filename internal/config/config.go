package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SEASONAL_SERVER_ADDR.
const EnvPrefix = "SEASONAL"

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "configs/config.yaml"

// CronParser accepts six-field specs with a leading seconds field and
// descriptors such as @daily.
var CronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr            string        `yaml:"addr" envconfig:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"shutdown_timeout"`
	} `yaml:"server" envconfig:"server"`
	Database struct {
		// SQLitePath selects the SQLite store; empty keeps rows in memory.
		SQLitePath string `yaml:"sqlite_path" envconfig:"sqlite_path"`
	} `yaml:"database" envconfig:"database"`
	Processing struct {
		ReplaceNaN *bool `yaml:"replace_nan" envconfig:"replace_nan"`
	} `yaml:"processing" envconfig:"processing"`
	Snapshot struct {
		Cron        string `yaml:"cron" envconfig:"cron"`
		Dir         string `yaml:"dir" envconfig:"dir"`
		Concurrency int    `yaml:"concurrency" envconfig:"concurrency"`
	} `yaml:"snapshot" envconfig:"snapshot"`
	Source struct {
		BaseURL string        `yaml:"base_url" envconfig:"base_url"`
		Proxy   string        `yaml:"proxy" envconfig:"proxy"`
		Timeout time.Duration `yaml:"timeout" envconfig:"timeout"`
	} `yaml:"source" envconfig:"source"`
	Logging struct {
		Level  string `yaml:"level" envconfig:"level"`
		Format string `yaml:"format" envconfig:"format"`
	} `yaml:"logging" envconfig:"logging"`
}

// PathFromEnv returns CONFIG_PATH or DefaultPath.
func PathFromEnv() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	// Defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Processing.ReplaceNaN == nil {
		replace := true
		cfg.Processing.ReplaceNaN = &replace
	}
	if cfg.Snapshot.Dir == "" {
		cfg.Snapshot.Dir = "data/snapshots"
	}
	if cfg.Snapshot.Concurrency == 0 {
		cfg.Snapshot.Concurrency = 4
	}
	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = 15 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	return cfg, nil
}

// ReplaceNaN reports the default NaN policy for process requests.
func (c *Config) ReplaceNaN() bool {
	return c.Processing.ReplaceNaN == nil || *c.Processing.ReplaceNaN
}

// Validate checks that all fields hold usable values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Snapshot.Cron != "" {
		if _, err := CronParser.Parse(c.Snapshot.Cron); err != nil {
			return fmt.Errorf("snapshot.cron: %w", err)
		}
	}
	if c.Snapshot.Concurrency <= 0 {
		return fmt.Errorf("snapshot.concurrency must be positive")
	}
	return nil
}

// Package config loads episode-fetch configuration from built-in defaults, an
// optional YAML file, then command-line flags and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Sternrassler/episode-fetch/pkg/batch"
	"github.com/Sternrassler/episode-fetch/pkg/resolver"
	"github.com/Sternrassler/episode-fetch/pkg/store"
	"gopkg.in/yaml.v3"
)

// Version is reported by --version and in the default User-Agent.
const Version = "0.1.0"

// Config is the complete settings for one batch run.
type Config struct {
	OutputDir string       `yaml:"output_dir"`
	Bucket    BucketConfig `yaml:"bucket"`

	First    int           `yaml:"first"`
	Last     int           `yaml:"last"`
	Width    int           `yaml:"width"`
	Pause    time.Duration `yaml:"pause"`
	Strategy string        `yaml:"strategy"`

	Files store.Namer     `yaml:"files"`
	Rules []resolver.Rule `yaml:"rules"`

	HTTP        HTTPConfig `yaml:"http"`
	Log         LogConfig  `yaml:"log"`
	MetricsAddr string     `yaml:"metrics_addr"`

	// RunID tags outcomes published to Redis and Postgres. Random when empty.
	RunID    string         `yaml:"run_id"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// BucketConfig selects a gocloud.dev bucket as the destination instead of
// OutputDir.
type BucketConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// HTTPConfig tunes the shared HTTP client and per-candidate requests.
type HTTPConfig struct {
	UserAgent      string        `yaml:"user_agent"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	Proxy          string        `yaml:"proxy"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// RedisConfig enables publishing outcomes to Redis when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// Enabled reports whether outcomes should be published to Redis.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// PostgresConfig enables recording outcomes in Postgres when DSN is set.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// Enabled reports whether outcomes should be recorded in Postgres.
func (p PostgresConfig) Enabled() bool {
	return p.DSN != ""
}

// Default returns the Crate and Crowbar archive settings: episodes 1 to 100
// fetched four at a time from the historic origins.
func Default() Config {
	return Config{
		OutputDir: ".",
		First:     1,
		Last:      100,
		Width:     4,
		Strategy:  string(batch.StrategyPool),
		Files:     store.DefaultNamer(),
		Rules:     resolver.DefaultRules(),
		HTTP: HTTPConfig{
			UserAgent:      "episode-fetch/" + Version,
			ConnectTimeout: 30 * time.Second,
			IdleTimeout:    60 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFile reads a YAML file on top of the defaults. A rules list in the file
// replaces the default rules entirely.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks everything that must hold before any network activity.
func (c Config) Validate() error {
	if c.Bucket.URL == "" {
		if c.OutputDir == "" {
			return errors.New("output directory is required")
		}
		info, err := os.Stat(c.OutputDir)
		if err != nil {
			return fmt.Errorf("invalid output directory %s: %w", c.OutputDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("invalid output directory %s: not a directory", c.OutputDir)
		}
	}

	if c.Width <= 0 {
		return fmt.Errorf("width must be > 0 (got %d)", c.Width)
	}
	if c.First < 1 {
		return fmt.Errorf("first must be >= 1 (got %d)", c.First)
	}
	if c.Last < c.First {
		return fmt.Errorf("last (%d) must be >= first (%d)", c.Last, c.First)
	}
	if c.Pause < 0 {
		return fmt.Errorf("pause must be >= 0 (got %s)", c.Pause)
	}
	strategy, err := batch.ParseStrategy(c.Strategy)
	if err != nil {
		return err
	}
	if c.Pause > 0 && strategy != batch.StrategyGroups {
		return fmt.Errorf("pause requires the groups strategy (got %s)", strategy)
	}

	if len(c.Rules) == 0 {
		return errors.New("at least one naming rule is required")
	}
	for i, r := range c.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rules[%d]: %w", i, err)
		}
	}

	return nil
}

package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/episode-fetch/pkg/resolver"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.First != 1 || cfg.Last != 100 {
		t.Errorf("Expected range [1, 100], got [%d, %d]", cfg.First, cfg.Last)
	}
	if cfg.Width != 4 {
		t.Errorf("Expected width 4, got %d", cfg.Width)
	}
	if cfg.Strategy != "pool" {
		t.Errorf("Expected pool strategy, got %s", cfg.Strategy)
	}
	if len(cfg.Rules) != 3 {
		t.Errorf("Expected 3 default rules, got %d", len(cfg.Rules))
	}
	if got := cfg.Files.Name(7); got != "CC7.mp3" {
		t.Errorf("Expected CC7.mp3, got %s", got)
	}
	if cfg.Redis.Enabled() || cfg.Postgres.Enabled() {
		t.Error("Outcome sinks should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
output_dir: /srv/podcasts
first: 10
last: 20
width: 2
pause: 1500ms
strategy: groups
files:
  prefix: EP
  extension: .ogg
rules:
  - name: mirror
    base: https://mirror.example.com/ep
    pad_width: 4
    extension: .ogg
http:
  attempt_timeout: 2m
run_id: nightly
redis:
  addr: localhost:6379
  ttl: 24h
postgres:
  dsn: postgres://episodes@localhost/episodes
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.OutputDir != "/srv/podcasts" {
		t.Errorf("OutputDir = %s", cfg.OutputDir)
	}
	if cfg.First != 10 || cfg.Last != 20 || cfg.Width != 2 {
		t.Errorf("Range/width = [%d, %d]/%d", cfg.First, cfg.Last, cfg.Width)
	}
	if cfg.Pause != 1500*time.Millisecond {
		t.Errorf("Pause = %s", cfg.Pause)
	}
	if cfg.Strategy != "groups" {
		t.Errorf("Strategy = %s", cfg.Strategy)
	}
	if got := cfg.Files.Name(3); got != "EP3.ogg" {
		t.Errorf("Files.Name(3) = %s", got)
	}

	want := []resolver.Rule{{Name: "mirror", Base: "https://mirror.example.com/ep", PadWidth: 4, Extension: ".ogg"}}
	if len(cfg.Rules) != 1 || cfg.Rules[0] != want[0] {
		t.Errorf("Rules = %+v, want %+v (file rules replace defaults)", cfg.Rules, want)
	}

	if cfg.HTTP.AttemptTimeout != 2*time.Minute {
		t.Errorf("AttemptTimeout = %s", cfg.HTTP.AttemptTimeout)
	}
	if cfg.HTTP.UserAgent == "" {
		t.Error("Unset fields should keep their defaults")
	}
	if !cfg.Redis.Enabled() || cfg.Redis.TTL != 24*time.Hour {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if !cfg.Postgres.Enabled() || cfg.RunID != "nightly" {
		t.Errorf("Postgres = %+v, RunID = %q", cfg.Postgres, cfg.RunID)
	}
}

func TestLoadFile_KeepsDefaultRules(t *testing.T) {
	cfg, err := LoadFile(writeFile(t, "width: 8\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Rules) != len(resolver.DefaultRules()) {
		t.Errorf("Expected default rules when the file has none, got %d", len(cfg.Rules))
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := LoadFile(writeFile(t, "width: [1, 2\n")); err == nil {
		t.Error("Expected error for malformed YAML")
	}
	if _, err := LoadFile(writeFile(t, "pause: soon\n")); err == nil {
		t.Error("Expected error for invalid duration")
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing_dir", func(c *Config) { c.OutputDir = filepath.Join(dir, "nope") }, "invalid output directory"},
		{"not_a_dir", func(c *Config) { c.OutputDir = file }, "not a directory"},
		{"empty_dir", func(c *Config) { c.OutputDir = "" }, "output directory is required"},
		{"bucket_skips_dir", func(c *Config) { c.OutputDir = ""; c.Bucket.URL = "mem://" }, ""},
		{"zero_width", func(c *Config) { c.Width = 0 }, "width must be > 0"},
		{"zero_first", func(c *Config) { c.First = 0 }, "first must be >= 1"},
		{"reversed", func(c *Config) { c.First, c.Last = 5, 4 }, "must be >= first"},
		{"single_item", func(c *Config) { c.First, c.Last = 5, 5 }, ""},
		{"negative_pause", func(c *Config) { c.Pause = -time.Second }, "pause must be >= 0"},
		{"pause_with_pool", func(c *Config) { c.Pause = time.Second }, "pause requires the groups strategy"},
		{"pause_with_groups", func(c *Config) { c.Pause = time.Second; c.Strategy = "groups" }, ""},
		{"max_range", func(c *Config) { c.First, c.Last = math.MaxInt-1, math.MaxInt }, ""},
		{"bad_strategy", func(c *Config) { c.Strategy = "burst" }, "unknown strategy"},
		{"no_rules", func(c *Config) { c.Rules = nil }, "at least one naming rule"},
		{"bad_rule", func(c *Config) { c.Rules = []resolver.Rule{{Name: "x"}} }, "rules[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.OutputDir = dir
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseArgs(t *testing.T) {
	opts, err := ParseArgs([]string{"-o", "/tmp/eps", "-f", "3", "-l", "9", "-w", "2", "--pause", "2s", "--strategy", "groups", "--log-pretty"})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}

	if opts.OutputDir != "/tmp/eps" || *opts.First != 3 || *opts.Last != 9 || *opts.Width != 2 {
		t.Errorf("Unexpected options %+v", opts)
	}
	if *opts.Pause != 2*time.Second {
		t.Errorf("Pause = %s", *opts.Pause)
	}
	if opts.RedisDB != nil || opts.ConnectTimeout != nil {
		t.Errorf("Flags that were not passed should stay nil, got %+v", opts)
	}
	if opts.Strategy != "groups" || !opts.LogPretty {
		t.Errorf("Unexpected options %+v", opts)
	}
}

func TestParseArgs_Env(t *testing.T) {
	t.Setenv("EPISODE_FETCH_WIDTH", "6")
	t.Setenv("EPISODE_FETCH_REDIS_ADDR", "redis:6379")
	t.Setenv("EPISODE_FETCH_POSTGRES_DSN", "postgres://db/episodes")

	opts, err := ParseArgs(nil)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Width == nil || *opts.Width != 6 {
		t.Errorf("Width from env = %v, want 6", opts.Width)
	}
	if opts.RedisAddr != "redis:6379" {
		t.Errorf("RedisAddr from env = %q", opts.RedisAddr)
	}
	if opts.PostgresDSN != "postgres://db/episodes" {
		t.Errorf("PostgresDSN from env = %q", opts.PostgresDSN)
	}
}

func TestParseArgs_Errors(t *testing.T) {
	if _, err := ParseArgs([]string{"--strategy", "burst"}); err == nil {
		t.Error("Expected error for unknown strategy choice")
	}
	if _, err := ParseArgs([]string{"--width", "many"}); err == nil {
		t.Error("Expected error for non-numeric width")
	}

	_, err := ParseArgs([]string{"--help"})
	if !IsHelp(err) {
		t.Errorf("Expected help error, got %v", err)
	}
	if IsHelp(nil) {
		t.Error("IsHelp(nil) should be false")
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, "first: 10\nlast: 20\nwidth: 2\n")

	cfg, err := Load(Options{ConfigFile: path, Last: ptr(15), Width: ptr(8)})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.First != 10 {
		t.Errorf("First = %d, want 10 from file", cfg.First)
	}
	if cfg.Last != 15 || cfg.Width != 8 {
		t.Errorf("Flags should override the file, got last=%d width=%d", cfg.Last, cfg.Width)
	}
	if cfg.Strategy != "pool" {
		t.Errorf("Strategy = %s, want default pool", cfg.Strategy)
	}
}

func TestLoad_ExplicitZeroOverridesFile(t *testing.T) {
	path := writeFile(t, "width: 2\npause: 3s\nstrategy: groups\nredis:\n  addr: localhost:6379\n  db: 4\n")

	opts, err := ParseArgs([]string{"-c", path, "--width", "0", "--pause", "0s", "--redis-db", "0"})
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(opts)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Width != 0 {
		t.Errorf("Width = %d, want explicit 0", cfg.Width)
	}
	if cfg.Pause != 0 {
		t.Errorf("Pause = %s, want explicit 0", cfg.Pause)
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("Redis.DB = %d, want explicit 0", cfg.Redis.DB)
	}

	cfg.OutputDir = t.TempDir()
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "width must be > 0") {
		t.Errorf("Expected zero width to be rejected, got %v", err)
	}
}

func TestLoad_ExplicitZeroFromEnv(t *testing.T) {
	t.Setenv("EPISODE_FETCH_FIRST", "0")

	opts, err := ParseArgs(nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(opts)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.First != 0 {
		t.Errorf("First = %d, want explicit 0", cfg.First)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "first must be >= 1") {
		t.Errorf("Expected zero first to be rejected, got %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load(Options{OutputDir: "/data", RunID: "nightly"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OutputDir != "/data" || cfg.RunID != "nightly" {
		t.Errorf("Unexpected config %+v", cfg)
	}
	if cfg.Last != 100 {
		t.Errorf("Last = %d, want default 100", cfg.Last)
	}

	if _, err := Load(Options{ConfigFile: "/nonexistent/config.yaml"}); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func ptr[T any](v T) *T {
	return &v
}

// Package logging configures zerolog for episode-fetch.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs every candidate request and worker lifecycle.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs item starts and successful downloads.
	LevelInfo LogLevel = "info"

	// LevelWarn logs failed candidates.
	LevelWarn LogLevel = "warn"

	// LevelError logs exhausted items only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var output io.Writer = out
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: candidate URLs being requested, worker start/stop, group boundaries
// and pauses, Redis publications.
//
// Info: run start and summary, each item start, each successful download.
//
// Warn: a candidate failed and the next one will be tried; reporter errors.
//
// Error: an item exhausted every candidate; fatal configuration errors.
//
// Context Fields:
//   - component: executor, fetcher, scheduler, report, redis-reporter,
//     postgres-reporter
//   - item: episode number
//   - rule: naming rule name
//   - url: candidate URL
//   - attempt: 1-based candidate position
//   - error_class: client, server, network, io
//   - bytes: bytes written by a successful attempt
//   - worker_id / group: scheduler position
//   - run_id: identifier shared by the Redis and Postgres reporters

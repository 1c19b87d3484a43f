// Package report publishes per-item outcomes as they happen.
package report

import (
	"context"

	"github.com/Sternrassler/episode-fetch/pkg/fetch"
	"github.com/Sternrassler/episode-fetch/pkg/logging"
	"github.com/rs/zerolog"
)

// Reporter receives final per-item outcomes. Implementations must be safe
// for concurrent use.
type Reporter interface {
	Report(ctx context.Context, o fetch.Outcome)
}

// Multi fans an outcome out to several reporters in order.
type Multi []Reporter

// Report implements Reporter.
func (m Multi) Report(ctx context.Context, o fetch.Outcome) {
	for _, r := range m {
		r.Report(ctx, o)
	}
}

// LogReporter writes one structured log line per outcome.
type LogReporter struct {
	logger zerolog.Logger
}

// NewLogReporter creates a reporter using the global logger.
func NewLogReporter() *LogReporter {
	return NewLogReporterWithLogger(logging.NewLogger("report"))
}

// NewLogReporterWithLogger creates a reporter writing to logger.
func NewLogReporterWithLogger(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report implements Reporter.
func (r *LogReporter) Report(_ context.Context, o fetch.Outcome) {
	switch o.Status {
	case fetch.StatusSuccess:
		r.logger.Info().
			Int("item", o.Item).
			Str("rule", o.Rule).
			Str("url", o.URL).
			Int64("bytes", o.Bytes).
			Int("attempts", o.Attempts).
			Dur("duration", o.Duration).
			Msg("Downloaded episode")
	case fetch.StatusExhausted:
		r.logger.Error().
			Err(o.Err).
			Int("item", o.Item).
			Int("attempts", o.Attempts).
			Msg("Failed to download episode")
	default:
		r.logger.Warn().
			Int("item", o.Item).
			Str("status", string(o.Status)).
			Msg("Episode not attempted")
	}
}

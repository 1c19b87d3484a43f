// Package fetch downloads episodes by walking their candidate URLs in order.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/episode-fetch/pkg/logging"
	"github.com/Sternrassler/episode-fetch/pkg/resolver"
	"github.com/Sternrassler/episode-fetch/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for candidate attempts.
var (
	fetchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "episode_fetch_attempts_total",
		Help: "Total candidate attempts by rule and result",
	}, []string{"rule", "result"})

	fetchAttemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "episode_fetch_attempt_duration_seconds",
		Help:    "Candidate attempt duration in seconds by rule",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"rule"})

	fetchBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "episode_fetch_bytes_total",
		Help: "Total bytes written by successful attempts by rule",
	}, []string{"rule"})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "episode_fetch_errors_total",
		Help: "Total candidate failures by error class",
	}, []string{"class"})
)

// ExecutorConfig holds per-attempt settings.
type ExecutorConfig struct {
	// UserAgent is sent when non-empty.
	UserAgent string

	// AttemptTimeout bounds a single candidate attempt including the body
	// transfer. 0 disables the deadline.
	AttemptTimeout time.Duration
}

// Executor performs single candidate attempts.
type Executor struct {
	httpClient *http.Client
	config     ExecutorConfig
	logger     zerolog.Logger
}

// NewExecutor creates an executor. A nil httpClient uses http.DefaultClient.
func NewExecutor(httpClient *http.Client, cfg ExecutorConfig) *Executor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Executor{
		httpClient: httpClient,
		config:     cfg,
		logger:     logging.NewLogger("executor"),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (e *Executor) SetHTTPClient(client *http.Client) {
	e.httpClient = client
}

// Fetch downloads c into dst and returns the number of bytes written.
//
// On success dst is committed. On any failure dst is aborted, so bytes from
// a failed attempt are never published. The returned error is a *FetchError.
func (e *Executor) Fetch(ctx context.Context, c resolver.Candidate, dst store.Destination) (int64, error) {
	start := time.Now()
	defer func() {
		fetchAttemptDuration.WithLabelValues(c.Rule).Observe(time.Since(start).Seconds())
	}()

	if e.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.AttemptTimeout)
		defer cancel()
	}

	n, err := e.fetch(ctx, c, dst)
	if err != nil {
		if abortErr := dst.Abort(); abortErr != nil {
			e.logger.Warn().Err(abortErr).Int("item", c.Item).Msg("Failed to discard attempt")
		}

		class := ClassOf(err)
		fetchErrorsTotal.WithLabelValues(string(class)).Inc()
		fetchAttemptsTotal.WithLabelValues(c.Rule, string(class)).Inc()
		return 0, err
	}

	fetchAttemptsTotal.WithLabelValues(c.Rule, "success").Inc()
	fetchBytesTotal.WithLabelValues(c.Rule).Add(float64(n))
	return n, nil
}

func (e *Executor) fetch(ctx context.Context, c resolver.Candidate, dst store.Destination) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return 0, &FetchError{URL: c.URL, ErrorClass: ErrorClassNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	if e.config.UserAgent != "" {
		req.Header.Set("User-Agent", e.config.UserAgent)
	}

	e.logger.Debug().
		Int("item", c.Item).
		Str("rule", c.Rule).
		Str("url", c.URL).
		Msg("Requesting candidate")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return 0, &FetchError{URL: c.URL, ErrorClass: ErrorClassNetwork, Err: err}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		// Drain a little so the connection can be reused; never written out.
		io.CopyN(io.Discard, resp.Body, 4<<10)
		return 0, &FetchError{
			URL:        c.URL,
			StatusCode: resp.StatusCode,
			ErrorClass: classifyStatus(resp.StatusCode),
			Err:        fmt.Errorf("%w: %s", ErrUnsuccessfulStatus, strconv.Itoa(resp.StatusCode)),
		}
	}

	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		return n, &FetchError{URL: c.URL, StatusCode: resp.StatusCode, ErrorClass: ErrorClassIO, Err: fmt.Errorf("copy body: %w", err)}
	}

	if err := dst.Commit(); err != nil {
		return n, &FetchError{URL: c.URL, StatusCode: resp.StatusCode, ErrorClass: ErrorClassIO, Err: err}
	}

	return n, nil
}

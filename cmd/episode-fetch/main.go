package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/episode-fetch/internal/config"
	"github.com/Sternrassler/episode-fetch/pkg/batch"
	"github.com/Sternrassler/episode-fetch/pkg/fetch"
	"github.com/Sternrassler/episode-fetch/pkg/logging"
	"github.com/Sternrassler/episode-fetch/pkg/metrics"
	"github.com/Sternrassler/episode-fetch/pkg/report"
	"github.com/Sternrassler/episode-fetch/pkg/resolver"
	"github.com/Sternrassler/episode-fetch/pkg/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown handler
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		log.Warn().Str("signal", sig.String()).Msg("Received signal, cancelling remaining episodes")
		cancel()
	}()

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run executes one batch and returns the process exit code. Per-episode
// failures do not fail the run; only invalid configuration, setup errors and
// interruption do.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := config.ParseArgs(args)
	if err != nil {
		if config.IsHelp(err) {
			fmt.Fprintln(stdout, err)
			return 0
		}
		fmt.Fprintf(stderr, "episode-fetch: %v\n", err)
		return 1
	}
	if opts.Version {
		fmt.Fprintf(stdout, "episode-fetch %s\n", config.Version)
		return 0
	}

	cfg, err := config.Load(opts)
	if err != nil {
		fmt.Fprintf(stderr, "episode-fetch: %v\n", err)
		return 1
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: stderr,
	})

	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	app, err := setup(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Setup failed")
		return 1
	}
	defer app.Close()

	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info().
		Int("first", cfg.First).
		Int("last", cfg.Last).
		Int("width", cfg.Width).
		Str("strategy", cfg.Strategy).
		Int("rules", len(cfg.Rules)).
		Str("destination", app.store.URI(cfg.First)).
		Msg("Starting episode fetch")

	summary, err := app.scheduler.Run(ctx, cfg.First, cfg.Last)
	if err != nil {
		logger.Error().Err(err).Msg("Batch failed")
		return 1
	}

	printSummary(stdout, summary)

	if summary.Canceled > 0 {
		logger.Warn().Int("canceled", summary.Canceled).Msg("Run interrupted")
		return 1
	}
	return 0
}

type app struct {
	store     store.Store
	scheduler *batch.Scheduler
	redis     *redis.Client
	postgres  *report.PostgresReporter
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
}

// setup wires the HTTP client, resolver, store, fetcher, reporters and
// scheduler from a validated configuration.
func setup(ctx context.Context, cfg config.Config) (*app, error) {
	httpClient, err := fetch.NewHTTPClient(fetch.ClientConfig{
		ConnectTimeout: cfg.HTTP.ConnectTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		ProxyURL:       cfg.HTTP.Proxy,
	})
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{store: st}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	reporters := report.Multi{report.NewLogReporter()}
	if cfg.Redis.Enabled() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}

		rr, err := report.NewRedisReporter(a.redis, report.RedisConfig{
			RunID: runID,
			TTL:   cfg.Redis.TTL,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		log.Info().Str("addr", cfg.Redis.Addr).Str("run_id", rr.RunID()).Msg("Publishing outcomes to Redis")
		reporters = append(reporters, rr)
	}
	if cfg.Postgres.Enabled() {
		a.postgres, err = report.NewPostgresReporter(ctx, cfg.Postgres.DSN, report.PostgresConfig{RunID: runID})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		log.Info().Str("run_id", runID).Msg("Recording outcomes in Postgres")
		reporters = append(reporters, a.postgres)
	}

	executor := fetch.NewExecutor(httpClient, fetch.ExecutorConfig{
		UserAgent:      cfg.HTTP.UserAgent,
		AttemptTimeout: cfg.HTTP.AttemptTimeout,
	})
	fetcher := fetch.NewFetcher(resolver.New(cfg.Rules), executor, st)

	strategy, err := batch.ParseStrategy(cfg.Strategy)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.scheduler, err = batch.New(fetcher, batch.Config{
		Width:    cfg.Width,
		Pause:    cfg.Pause,
		Strategy: strategy,
	}, reporters)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.Bucket.URL != "" {
		st, err := store.NewBlobStore(ctx, cfg.Bucket.URL, cfg.Bucket.Prefix, cfg.Files)
		if err != nil {
			return nil, fmt.Errorf("open bucket: %w", err)
		}
		return st, nil
	}

	st, err := store.NewLocalStore(cfg.OutputDir, cfg.Files)
	if err != nil {
		return nil, fmt.Errorf("open output directory: %w", err)
	}
	return st, nil
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return srv
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func printSummary(w io.Writer, s *batch.Summary) {
	fmt.Fprintf(w, "All done: %d/%d episodes downloaded (%d bytes) in %s\n",
		s.Succeeded, s.Total(), s.Bytes, s.Duration.Round(time.Millisecond))

	if failed := s.Failed(); len(failed) > 0 {
		fmt.Fprintf(w, "Failed episodes: %v\n", failed)
	}
	if s.Canceled > 0 {
		fmt.Fprintf(w, "Canceled episodes: %d\n", s.Canceled)
	}
}

package report

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/episode-fetch/pkg/fetch"
	"github.com/Sternrassler/episode-fetch/pkg/logging"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

//go:embed schema.sql
var schemaSQL string

// PostgresConfig holds Postgres reporter configuration.
type PostgresConfig struct {
	// RunID identifies this run. A random UUID is used when empty.
	RunID string
}

// PostgresReporter appends one row per outcome to the episode_outcomes table.
// Like RedisReporter it is an audit sink: the process never reads it back.
type PostgresReporter struct {
	pool   *pgxpool.Pool
	owned  bool
	runID  string
	logger zerolog.Logger
}

// NewPostgresReporter connects to dsn, creates the schema if needed and
// returns a reporter owning the connection pool.
func NewPostgresReporter(ctx context.Context, dsn string, cfg PostgresConfig) (*PostgresReporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r, err := NewPostgresReporterFromPool(ctx, pool, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	r.owned = true
	return r, nil
}

// NewPostgresReporterFromPool uses an existing pool, which the caller keeps
// ownership of.
func NewPostgresReporterFromPool(ctx context.Context, pool *pgxpool.Pool, cfg PostgresConfig) (*PostgresReporter, error) {
	if pool == nil {
		return nil, errors.New("postgres pool is required")
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &PostgresReporter{
		pool:   pool,
		runID:  cfg.RunID,
		logger: logging.NewLogger("postgres-reporter").With().Str("run_id", cfg.RunID).Logger(),
	}, nil
}

// RunID returns the identifier under which outcomes are stored.
func (r *PostgresReporter) RunID() string {
	return r.runID
}

// Report implements Reporter. Failures are logged and counted, never returned.
func (r *PostgresReporter) Report(ctx context.Context, o fetch.Outcome) {
	if err := r.insert(context.WithoutCancel(ctx), NewRecord(o, time.Now().UTC())); err != nil {
		reportErrorsTotal.WithLabelValues("postgres").Inc()
		r.logger.Warn().Err(err).Int("item", o.Item).Msg("Failed to record outcome")
	}
}

func (r *PostgresReporter) insert(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO episode_outcomes (
			run_id, item, status, rule, url, bytes, attempts, duration_ms, error, finished_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id, item)
		DO UPDATE SET
			status = EXCLUDED.status,
			rule = EXCLUDED.rule,
			url = EXCLUDED.url,
			bytes = EXCLUDED.bytes,
			attempts = EXCLUDED.attempts,
			duration_ms = EXCLUDED.duration_ms,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at
	`

	_, err := r.pool.Exec(ctx, query,
		r.runID,
		rec.Item,
		rec.Status,
		rec.Rule,
		rec.URL,
		rec.Bytes,
		rec.Attempts,
		rec.DurationMS,
		rec.Error,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}

	r.logger.Debug().Int("item", rec.Item).Str("status", rec.Status).Msg("Outcome recorded")
	return nil
}

// Outcomes loads all recorded rows of the run, keyed by item.
// Intended for dashboards and tests.
func (r *PostgresReporter) Outcomes(ctx context.Context) (map[int]Record, error) {
	query := `
		SELECT item, status, rule, url, bytes, attempts, duration_ms, error, finished_at
		FROM episode_outcomes
		WHERE run_id = $1
		ORDER BY item
	`

	rows, err := r.pool.Query(ctx, query, r.runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}

	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var rec Record
		err := row.Scan(&rec.Item, &rec.Status, &rec.Rule, &rec.URL, &rec.Bytes,
			&rec.Attempts, &rec.DurationMS, &rec.Error, &rec.FinishedAt)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan outcomes: %w", err)
	}

	records := make(map[int]Record, len(list))
	for _, rec := range list {
		records[rec.Item] = rec
	}
	return records, nil
}

// Close releases the pool if the reporter created it.
func (r *PostgresReporter) Close() {
	if r.owned {
		r.pool.Close()
	}
}

package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Sternrassler/episode-fetch/pkg/fetch"
	"github.com/Sternrassler/episode-fetch/pkg/logging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var reportErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "episode_report_errors_total",
	Help: "Total number of failed outcome publications by reporter",
}, []string{"reporter"})

// DefaultTTL keeps run data around long enough for a dashboard to pick it up.
const DefaultTTL = 7 * 24 * time.Hour

// Record is the JSON document stored per item.
type Record struct {
	Item       int       `json:"item"`
	Status     string    `json:"status"`
	Rule       string    `json:"rule,omitempty"`
	URL        string    `json:"url,omitempty"`
	Bytes      int64     `json:"bytes"`
	Attempts   int       `json:"attempts"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewRecord converts an outcome to its stored form.
func NewRecord(o fetch.Outcome, finishedAt time.Time) Record {
	return Record{
		Item:       o.Item,
		Status:     string(o.Status),
		Rule:       o.Rule,
		URL:        o.URL,
		Bytes:      o.Bytes,
		Attempts:   o.Attempts,
		DurationMS: o.Duration.Milliseconds(),
		Error:      o.Error(),
		FinishedAt: finishedAt,
	}
}

// RedisConfig holds Redis reporter configuration.
type RedisConfig struct {
	// RunID identifies this run. A random UUID is used when empty.
	RunID string

	// TTL applied to every key. Defaults to DefaultTTL.
	TTL time.Duration
}

// RedisReporter publishes outcomes to Redis hashes so external dashboards can
// follow a run. The process itself never reads them back.
type RedisReporter struct {
	redis  *redis.Client
	runID  string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisReporter creates a Redis-backed reporter.
func NewRedisReporter(redisClient *redis.Client, cfg RedisConfig) (*RedisReporter, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	return &RedisReporter{
		redis:  redisClient,
		runID:  cfg.RunID,
		ttl:    cfg.TTL,
		logger: logging.NewLogger("redis-reporter").With().Str("run_id", cfg.RunID).Logger(),
	}, nil
}

// RunID returns the identifier under which outcomes are stored.
func (r *RedisReporter) RunID() string {
	return r.runID
}

// Report implements Reporter. Failures are logged and counted, never returned:
// reporting must not affect the download run.
func (r *RedisReporter) Report(ctx context.Context, o fetch.Outcome) {
	if err := r.publish(ctx, o); err != nil {
		reportErrorsTotal.WithLabelValues("redis").Inc()
		r.logger.Warn().Err(err).Int("item", o.Item).Msg("Failed to publish outcome")
	}
}

func (r *RedisReporter) publish(ctx context.Context, o fetch.Outcome) error {
	// Publish even when the run is being cancelled.
	ctx = context.WithoutCancel(ctx)

	data, err := json.Marshal(NewRecord(o, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	outcomesKey := Key{RunID: r.runID, Kind: KindOutcomes}.String()
	countsKey := Key{RunID: r.runID, Kind: KindCounts}.String()

	pipe := r.redis.Pipeline()
	pipe.HSet(ctx, outcomesKey, strconv.Itoa(o.Item), data)
	pipe.HIncrBy(ctx, countsKey, string(o.Status), 1)
	if o.Bytes > 0 {
		pipe.HIncrBy(ctx, countsKey, "bytes", o.Bytes)
	}
	pipe.Expire(ctx, outcomesKey, r.ttl)
	pipe.Expire(ctx, countsKey, r.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store outcome in redis: %w", err)
	}

	r.logger.Debug().Int("item", o.Item).Str("status", string(o.Status)).Msg("Outcome published")
	return nil
}

// Outcomes loads all published records of the run, keyed by item.
// Intended for dashboards and tests.
func (r *RedisReporter) Outcomes(ctx context.Context) (map[int]Record, error) {
	raw, err := r.redis.HGetAll(ctx, Key{RunID: r.runID, Kind: KindOutcomes}.String()).Result()
	if err != nil {
		return nil, fmt.Errorf("get outcomes: %w", err)
	}

	records := make(map[int]Record, len(raw))
	for field, value := range raw {
		item, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("parse item %q: %w", field, err)
		}
		var rec Record
		if err := json.Unmarshal([]byte(value), &rec); err != nil {
			return nil, fmt.Errorf("parse outcome for item %d: %w", item, err)
		}
		records[item] = rec
	}
	return records, nil
}

// Counts loads the per-status counters of the run.
func (r *RedisReporter) Counts(ctx context.Context) (map[string]int64, error) {
	raw, err := r.redis.HGetAll(ctx, Key{RunID: r.runID, Kind: KindCounts}.String()).Result()
	if err != nil {
		return nil, fmt.Errorf("get counts: %w", err)
	}

	counts := make(map[string]int64, len(raw))
	for field, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse count %q: %w", field, err)
		}
		counts[field] = n
	}
	return counts, nil
}

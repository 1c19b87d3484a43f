package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/episode-fetch/pkg/fetch"
	"github.com/Sternrassler/episode-fetch/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	batchInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "episode_batch_items_in_flight",
		Help: "Number of items currently being fetched",
	})

	batchGroupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "episode_batch_groups_total",
		Help: "Total number of completed item groups",
	})
)

// Strategy selects how the range is scheduled.
type Strategy string

const (
	// StrategyPool uses Width persistent workers pulling from a channel.
	StrategyPool Strategy = "pool"

	// StrategyGroups runs consecutive groups of Width items, joining each
	// group before starting the next.
	StrategyGroups Strategy = "groups"
)

// ParseStrategy converts a configuration string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyPool:
		return StrategyPool, nil
	case StrategyGroups:
		return StrategyGroups, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (want %q or %q)", s, StrategyPool, StrategyGroups)
	}
}

// Config holds scheduler configuration.
type Config struct {
	// Width is the maximum number of items fetched concurrently.
	Width int

	// Pause is slept between groups. A positive Pause requires StrategyGroups.
	Pause time.Duration

	// Strategy defaults to StrategyPool.
	Strategy Strategy
}

// DefaultConfig returns four workers with no pause.
func DefaultConfig() Config {
	return Config{
		Width:    4,
		Strategy: StrategyPool,
	}
}

// ItemFetcher runs the per-item resolution loop. *fetch.Fetcher implements it.
type ItemFetcher interface {
	FetchItem(ctx context.Context, item int) fetch.Outcome
}

// Reporter receives each outcome as soon as the item finishes.
// Implementations must be safe for concurrent use.
type Reporter interface {
	Report(ctx context.Context, o fetch.Outcome)
}

// Scheduler applies an ItemFetcher across a range.
type Scheduler struct {
	fetcher   ItemFetcher
	config    Config
	reporters []Reporter
	logger    zerolog.Logger
}

// New creates a scheduler. Width must be positive.
func New(fetcher ItemFetcher, cfg Config, reporters ...Reporter) (*Scheduler, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("item fetcher is required")
	}
	if cfg.Width <= 0 {
		return nil, fmt.Errorf("width must be > 0 (got %d)", cfg.Width)
	}
	if cfg.Pause < 0 {
		return nil, fmt.Errorf("pause must be >= 0 (got %s)", cfg.Pause)
	}
	strategy, err := ParseStrategy(string(cfg.Strategy))
	if err != nil {
		return nil, err
	}
	if cfg.Pause > 0 && strategy != StrategyGroups {
		return nil, fmt.Errorf("pause requires the groups strategy (got %s)", strategy)
	}
	cfg.Strategy = strategy

	return &Scheduler{
		fetcher:   fetcher,
		config:    cfg,
		reporters: reporters,
		logger:    logging.NewLogger("scheduler"),
	}, nil
}

// Run fetches every item in [first, last] exactly once and returns the
// per-item outcomes. It only fails on an invalid range; item failures are
// reported in the summary. If ctx is cancelled, items not yet started are
// reported as canceled.
func (s *Scheduler) Run(ctx context.Context, first, last int) (*Summary, error) {
	if first < 1 {
		return nil, fmt.Errorf("first item must be >= 1 (got %d)", first)
	}
	if last < first {
		return nil, fmt.Errorf("last item %d is before first item %d", last, first)
	}

	start := time.Now()
	count := last - first + 1

	s.logger.Info().
		Int("first", first).
		Int("last", last).
		Int("width", s.config.Width).
		Str("strategy", string(s.config.Strategy)).
		Msg("Starting batch fetch")

	// Each slot is written by exactly one goroutine.
	outcomes := make([]fetch.Outcome, count)

	switch s.config.Strategy {
	case StrategyGroups:
		s.runGroups(ctx, first, last, outcomes)
	default:
		s.runPool(ctx, first, last, outcomes)
	}

	summary := newSummary(first, last, outcomes, time.Since(start))

	s.logger.Info().
		Int("succeeded", summary.Succeeded).
		Int("exhausted", summary.Exhausted).
		Int("canceled", summary.Canceled).
		Int64("bytes", summary.Bytes).
		Dur("duration", summary.Duration).
		Msg("Batch fetch complete")

	return summary, nil
}

// runPool starts min(Width, count) workers fed from a channel.
func (s *Scheduler) runPool(ctx context.Context, first, last int, outcomes []fetch.Outcome) {
	workers := min(s.config.Width, len(outcomes))

	queue := make(chan int)
	go func() {
		defer close(queue)
		for item := first; ; item++ {
			queue <- item
			if item == last {
				break
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go s.worker(ctx, i, first, queue, outcomes, &wg)
	}
	wg.Wait()
}

// worker processes items from the queue until it is closed.
func (s *Scheduler) worker(ctx context.Context, workerID, first int, queue <-chan int, outcomes []fetch.Outcome, wg *sync.WaitGroup) {
	defer wg.Done()
	processed := 0

	for item := range queue {
		outcomes[item-first] = s.fetchOne(ctx, item)
		processed++
	}

	s.logger.Debug().
		Int("worker_id", workerID).
		Int("items_processed", processed).
		Msg("Worker completed")
}

// runGroups processes consecutive groups, joining each before the next.
func (s *Scheduler) runGroups(ctx context.Context, first, last int, outcomes []fetch.Outcome) {
	groups := Groups(first, last, s.config.Width)

	for gi, group := range groups {
		// A group never exceeds Width items, so no limit is set. Item
		// failures are outcomes; only cancellation surfaces from Wait.
		var g errgroup.Group
		for _, item := range group {
			g.Go(func() error {
				o := s.fetchOne(ctx, item)
				outcomes[item-first] = o
				if o.Status == fetch.StatusCanceled {
					return o.Err
				}
				return nil
			})
		}
		err := g.Wait()
		batchGroupsTotal.Inc()

		if err != nil {
			s.logger.Warn().Err(err).Int("group", gi+1).Msg("Group interrupted")
			continue
		}

		s.logger.Debug().
			Int("group", gi+1).
			Int("groups", len(groups)).
			Ints("items", group).
			Msg("Group complete")

		if s.config.Pause > 0 && gi < len(groups)-1 {
			s.logger.Debug().Dur("pause", s.config.Pause).Msg("Pausing between groups")
			select {
			case <-ctx.Done():
			case <-time.After(s.config.Pause):
			}
		}
	}
}

// fetchOne runs one item and reports its outcome.
func (s *Scheduler) fetchOne(ctx context.Context, item int) fetch.Outcome {
	var o fetch.Outcome
	if err := ctx.Err(); err != nil {
		o = fetch.Outcome{Item: item, Status: fetch.StatusCanceled, Err: err}
	} else {
		batchInFlight.Inc()
		o = s.fetcher.FetchItem(ctx, item)
		batchInFlight.Dec()
	}

	for _, r := range s.reporters {
		r.Report(ctx, o)
	}
	return o
}

// Groups partitions [first, last] into consecutive slices of at most width
// items. The last group may be smaller.
func Groups(first, last, width int) [][]int {
	if width <= 0 || last < first {
		return nil
	}

	// Bounds are compared before stepping so a range ending at math.MaxInt
	// does not wrap.
	groups := make([][]int, 0, (last-first)/width+1)
	for start := first; ; start += width {
		end := last
		if last-start >= width {
			end = start + width - 1
		}
		group := make([]int, 0, end-start+1)
		for item := start; ; item++ {
			group = append(group, item)
			if item == end {
				break
			}
		}
		groups = append(groups, group)
		if end == last {
			return groups
		}
	}
}

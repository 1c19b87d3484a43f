package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/episode-fetch/pkg/logging"
	"github.com/Sternrassler/episode-fetch/pkg/resolver"
	"github.com/Sternrassler/episode-fetch/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "episode_items_total",
	Help: "Total items finished by terminal status",
}, []string{"status"})

// Attempter performs one candidate attempt. *Executor implements it.
type Attempter interface {
	Fetch(ctx context.Context, c resolver.Candidate, dst store.Destination) (int64, error)
}

// Fetcher resolves and downloads single items.
type Fetcher struct {
	resolver *resolver.Resolver
	attempt  Attempter
	store    store.Store
	logger   zerolog.Logger
}

// NewFetcher wires a resolver, an attempter and a store together.
func NewFetcher(r *resolver.Resolver, a Attempter, s store.Store) *Fetcher {
	return &Fetcher{
		resolver: r,
		attempt:  a,
		store:    s,
		logger:   logging.NewLogger("fetcher"),
	}
}

// FetchItem walks the item's candidates in order and stops at the first
// success. Candidate failures are logged and never returned; the outcome is
// exhausted only when every candidate failed. No candidate is retried.
func (f *Fetcher) FetchItem(ctx context.Context, item int) Outcome {
	start := time.Now()
	outcome := Outcome{Item: item}

	f.logger.Info().Int("item", item).Msg("Fetching episode")

	var lastErr error
	for c := range f.resolver.Candidates(item) {
		if err := ctx.Err(); err != nil {
			return f.finish(outcome, StatusCanceled, err, start)
		}

		outcome.Attempts++

		dst, err := f.store.Create(ctx, item)
		if err != nil {
			lastErr = &FetchError{URL: c.URL, ErrorClass: ErrorClassIO, Err: err}
			f.logAttemptFailure(c, lastErr)
			continue
		}

		n, err := f.attempt.Fetch(ctx, c, dst)
		if err != nil {
			lastErr = err
			f.logAttemptFailure(c, err)
			continue
		}

		outcome.Rule = c.Rule
		outcome.URL = c.URL
		outcome.Bytes = n
		return f.finish(outcome, StatusSuccess, nil, start)
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no naming rules configured")
	} else if ctx.Err() != nil {
		return f.finish(outcome, StatusCanceled, ctx.Err(), start)
	}
	return f.finish(outcome, StatusExhausted, fmt.Errorf("%w for item %d after %d attempts: %w", ErrExhausted, item, outcome.Attempts, lastErr), start)
}

func (f *Fetcher) finish(o Outcome, status Status, err error, start time.Time) Outcome {
	o.Status = status
	o.Err = err
	o.Duration = time.Since(start)
	itemsTotal.WithLabelValues(string(status)).Inc()
	return o
}

func (f *Fetcher) logAttemptFailure(c resolver.Candidate, err error) {
	f.logger.Warn().
		Err(err).
		Int("item", c.Item).
		Str("rule", c.Rule).
		Str("url", c.URL).
		Int("attempt", c.Priority+1).
		Str("error_class", string(ClassOf(err))).
		Msg("Candidate failed, trying next")
}

// Package batch runs the per-item fetch loop over an inclusive episode range
// with bounded concurrency.
//
// Two strategies are available:
//
//   - StrategyPool (default): a fixed pool of Width workers pulls episode
//     numbers from a shared channel. A slow item only occupies one worker.
//   - StrategyGroups: the range is split into consecutive groups of Width
//     items. Each group runs fully concurrently, the scheduler waits for the
//     whole group, then optionally sleeps for Pause before the next one.
//
// In both cases at most Width items are in flight at any instant, every item
// in the range is attempted exactly once, and one item's failure never
// affects another.
//
// Example usage:
//
//	sched, err := batch.New(fetcher, batch.Config{Width: 4}, report.NewLogReporter())
//	summary, err := sched.Run(ctx, 1, 100)
//	fmt.Printf("%d ok, %d failed\n", summary.Succeeded, summary.Exhausted)
package batch

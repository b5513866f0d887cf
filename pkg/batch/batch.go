// Package batch fans independent grid snapshots out over a worker
// pool. Each entry gets its own solver inputs and its own
// Y-bus/sparselu instances - nothing is shared across goroutines - and
// the pool itself is bounded so the caller controls concurrency
// regardless of batch size.
package batch

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"powergrid/pkg/pgerr"
)

// Entry is one independent unit of work: an opaque id (for result
// correlation) and the solve function to run for it.
type Entry struct {
	Label string
	Run   func(ctx context.Context) (any, error)
}

// EntryResult pairs one Entry's outcome with a generated run id, used
// to correlate results back to callers across the pool and to let a
// caller identify which in-flight runs to report on cancellation.
type EntryResult struct {
	RunID string
	Label string
	Value any
	Err   error
}

// Options bounds batch concurrency.
type Options struct {
	MaxConcurrency int
}

func DefaultOptions() Options { return Options{MaxConcurrency: 8} }

// Run executes every entry, at most opt.MaxConcurrency at a time,
// returning one EntryResult per entry in input order. A per-entry
// error is captured in its EntryResult rather than aborting the batch;
// Run itself only returns an error for a caller-cancelled context.
func Run(ctx context.Context, entries []Entry, opt Options) ([]EntryResult, error) {
	results := make([]EntryResult, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	if opt.MaxConcurrency > 0 {
		g.SetLimit(opt.MaxConcurrency)
	}

	for i, e := range entries {
		i, e := i, e
		runID := uuid.NewString()
		g.Go(func() error {
			if gctx.Err() != nil {
				results[i] = EntryResult{RunID: runID, Label: e.Label, Err: gctx.Err()}
				return nil
			}
			val, err := e.Run(gctx)
			results[i] = EntryResult{RunID: runID, Label: e.Label, Value: val, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// Summarize collapses per-entry errors into one BatchCalculationError
// carrying per-entry diagnostics, or returns nil if every entry
// succeeded.
func Summarize(results []EntryResult) error {
	var failed []string
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Label+": "+r.Err.Error())
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return pgerr.New(pgerr.BatchCalculationError, "%d of %d batch entries failed: %v", len(failed), len(results), failed)
}

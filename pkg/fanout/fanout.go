// Package fanout provides a small bounded-worker primitive for running the
// same operation over a batch of items in parallel. Map returns only after
// every item has finished (a join barrier), so callers can merge or sort the
// results without racing in-flight workers.
package fanout

import (
	"context"
	"sync"
)

// Result pairs an item's output with the error its worker returned, kept in
// the item's original position.
type Result[R any] struct {
	Value R
	Err   error
}

// Map applies fn to every item using at most workers goroutines. Each worker
// writes to its own slot of the result slice, so no locking is needed, and
// results stay aligned with the input order regardless of completion order.
// Per-item errors are recorded, never escalated; deciding whether a failed
// item matters is the caller's call.
func Map[T, R any](ctx context.Context, items []T, workers int, fn func(ctx context.Context, item T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i].Value, results[i].Err = fn(ctx, items[i])
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait() // barrier: all items settled before anyone reads results

	return results
}

// Package pool fans work out to a bounded set of goroutines and collects
// the results in input order
package pool

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// MaxWorkers caps the number of concurrent workers regardless of CPU count
const MaxWorkers = 16

// DoneFunc is called after every finished item with the number of items
// completed so far. Calls are serialized and completed never decreases.
// Returning false stops the run
type DoneFunc func(completed, total int) bool

// Workers returns the worker count for a requested parallelism.
// n <= 0 means one worker per CPU. The result is within [1, MaxWorkers]
func Workers(n int) int {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return max(1, min(n, MaxWorkers))
}

type indexed[V any] struct {
	index int
	value V
}

// Run processes items with workers goroutines pulling from a shared queue.
//
// Results come back ordered like items. When the run is stopped early,
// by onDone returning false or by ctx being cancelled, workers stop taking
// new items, stopped is true and results hold only the finished items,
// still in input order. work must not panic
func Run[T, R any](
	ctx context.Context,
	workers int,
	items []T,
	work func(context.Context, T) R,
	onDone DoneFunc,
) (results []R, stopped bool) {
	total := len(items)
	if total == 0 {
		return []R{}, false
	}

	queue := make(chan indexed[T], total)
	for i, item := range items {
		queue <- indexed[T]{index: i, value: item}
	}
	close(queue)

	var (
		stop      atomic.Bool
		resultsMu sync.Mutex
		collected = make([]indexed[R], 0, total)

		progressMu sync.Mutex
		completed  int
	)

	halted := func() bool {
		if ctx.Err() != nil {
			stop.Store(true)
		}
		return stop.Load()
	}

	var g errgroup.Group
	for range min(Workers(workers), total) {
		g.Go(func() error {
			for {
				if halted() {
					return nil
				}
				job, ok := <-queue
				if !ok {
					return nil
				}

				r := work(ctx, job.value)

				resultsMu.Lock()
				collected = append(collected, indexed[R]{index: job.index, value: r})
				resultsMu.Unlock()

				progressMu.Lock()
				completed++
				if onDone != nil && !onDone(completed, total) {
					stop.Store(true)
				}
				progressMu.Unlock()
			}
		})
	}
	_ = g.Wait() // workers never return an error

	sort.Slice(collected, func(i, j int) bool {
		return collected[i].index < collected[j].index
	})
	results = make([]R, len(collected))
	for i, c := range collected {
		results[i] = c.value
	}

	return results, stop.Load() || len(results) < total
}

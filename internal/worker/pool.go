package worker

import (
	"context"
	"sync"
)

// Pool applies one task function to many inputs on a fixed number of goroutines.
// Scores are independent, so tasks share nothing but the context.
type Pool[T, R any] struct {
	workers int
	task    func(ctx context.Context, item T) R
}

// NewPool creates a pool. A non-positive worker count runs tasks one at a time.
func NewPool[T, R any](workers int, task func(ctx context.Context, item T) R) *Pool[T, R] {
	if workers <= 0 {
		workers = 1
	}
	return &Pool[T, R]{workers: workers, task: task}
}

// Run executes the task for every item and returns the results indexed like items.
// started[i] is false for items never handed to a worker because ctx was cancelled;
// a task that already started runs to completion.
func (p *Pool[T, R]) Run(ctx context.Context, items []T) (results []R, started []bool) {
	results = make([]R, len(items))
	started = make([]bool, len(items))
	if len(items) == 0 {
		return results, started
	}

	workers := min(p.workers, len(items))
	indexes := make(chan int)

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range indexes {
				// Each index is owned by exactly one worker
				started[i] = true
				results[i] = p.task(ctx, items[i])
			}
		}()
	}

feed:
	for i := range items {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()

	return results, started
}

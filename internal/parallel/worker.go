// Package parallel provides the worker-pool infrastructure the window kernel
// launches on.
//
// A rolling-window launch is one fan-out/fan-in pass: the row range is cut
// into fixed-size chunks and each chunk is handed to a worker goroutine. Rows
// never synchronize with each other, so workers share nothing beyond the
// read-only inputs and the chunk descriptors they receive.
package parallel

import (
	"context"
	"runtime"
	"sync"
)

// WorkerPool manages a pool of goroutines for one or more kernel launches
type WorkerPool struct {
	numWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewWorkerPool creates a new worker pool. A non-positive size selects
// runtime.NumCPU().
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		numWorkers: numWorkers,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// NumWorkers returns the pool size.
func (wp *WorkerPool) NumWorkers() int {
	return wp.numWorkers
}

// Close shuts down the worker pool
func (wp *WorkerPool) Close() {
	wp.cancel()
}

// ProcessIndexed executes work items in parallel while preserving order.
// Result slot i always holds worker(i, items[i]); the scheduling order of
// the items across workers is unspecified.
func ProcessIndexed[T, R any](
	wp *WorkerPool,
	items []T,
	worker func(int, T) R,
) []R {
	if len(items) == 0 {
		return nil
	}

	itemCh := make(chan indexedItem[T], len(items))
	resultCh := make(chan indexedResult[R], len(items))

	var wg sync.WaitGroup
	for i := 0; i < wp.numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				select {
				case <-wp.ctx.Done():
					return
				default:
					result := worker(item.index, item.value)
					resultCh <- indexedResult[R]{
						index:  item.index,
						result: result,
					}
				}
			}
		}()
	}

	go func() {
		defer close(itemCh)
		for i, item := range items {
			select {
			case <-wp.ctx.Done():
				return
			case itemCh <- indexedItem[T]{index: i, value: item}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]R, len(items))
	for result := range resultCh {
		results[result.index] = result.result
	}

	return results
}

// indexedItem holds an item with its index
type indexedItem[T any] struct {
	index int
	value T
}

// indexedResult holds a result with its index
type indexedResult[R any] struct {
	index  int
	result R
}

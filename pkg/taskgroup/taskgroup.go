// Package taskgroup runs batches of independent tasks: submit N
// units, join them all, and get back either success or the first
// failure, with the rest of the batch canceled early. Completion
// order is never part of the contract.
package taskgroup

import (
	"context"
	"runtime"
	"sync"
)

// Run executes task(ctx, i) for every i in [0, n) on a bounded pool
// of workers. The first error cancels the remaining tasks and is
// returned; a canceled ctx surfaces as ctx.Err(). workers <= 0 uses
// one worker per CPU.
func Run(ctx context.Context, n, workers int, task func(ctx context.Context, i int) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int, n)

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					return
				}
				if err := task(ctx, i); err != nil {
					fail(err)
					return
				}
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

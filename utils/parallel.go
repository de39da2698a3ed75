// Package utils contains worker helpers and small numeric helpers shared by the pipeline.
package utils

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
)

// ParallelFactor is the most workers ParallelRanges starts. Tests may lower it.
var ParallelFactor = runtime.GOMAXPROCS(0)

// RangeFunc handles the items [from, to) on one worker.
type RangeFunc func(ctx context.Context, worker, from, to int) error

// ParallelRanges splits n items into contiguous ranges, one per worker, with the remainder
// going to the last worker, and waits for all of them. A failing or panicking worker cancels
// the context of the others; every error is returned combined.
func ParallelRanges(ctx context.Context, n int, fn RangeFunc) error {
	workers := min(max(ParallelFactor, 1), n)
	if workers == 0 {
		return ctx.Err()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	var errs error
	fail := func(err error) {
		mu.Lock()
		if errs == nil || !errors.Is(err, context.Canceled) {
			errs = multierr.Append(errs, err)
		}
		mu.Unlock()
		cancel()
	}

	size := n / workers
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		w := w
		from, to := w*size, (w+1)*size
		if w == workers-1 {
			to = n
		}
		// exactly one of the two funcs marks the worker done, after its error is recorded
		goutils.PanicCapturingGoWithCallback(func() {
			if err := fn(ctx, w, from, to); err != nil {
				fail(err)
			}
			wg.Done()
		}, func(thePanic interface{}) {
			fail(fmt.Errorf("worker %d panicked: %v", w, thePanic))
			wg.Done()
		})
	}
	wg.Wait()
	return errs
}

// ParallelEach runs fn on every index in [0, n) across ParallelRanges workers. A worker stops
// at its first error or once ctx is done.
func ParallelEach(ctx context.Context, n int, fn func(i int) error) error {
	return ParallelRanges(ctx, n, func(ctx context.Context, _, from, to int) error {
		for i := from; i < to; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	})
}

package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

type indexed[T any] struct {
	i int
	v T
}

// fanOut runs run(ctx, i) for i in [0, n) with at most limit calls in flight,
// each under its own timeout. It returns when every task has reported or when
// ctx ends; tasks still outstanding at that point are abandoned and their slot
// gets fallback(i). Results are always indexed like the input.
func fanOut[T any](ctx context.Context, n, limit int, itemTimeout time.Duration,
	run func(ctx context.Context, i int) T, fallback func(i int) T) []T {

	results := make([]T, n)
	if n == 0 {
		return results
	}
	if limit < 1 {
		limit = 1
	}

	// buffered so abandoned workers never block on send
	ch := make(chan indexed[T], n)
	sem := semaphore.NewWeighted(int64(limit))

	go func() {
		for i := 0; i < n; i++ {
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			go func(i int) {
				defer sem.Release(1)
				taskCtx := ctx
				if itemTimeout > 0 {
					var cancel context.CancelFunc
					taskCtx, cancel = context.WithTimeout(ctx, itemTimeout)
					defer cancel()
				}
				ch <- indexed[T]{i: i, v: run(taskCtx, i)}
			}(i)
		}
	}()

	done := make([]bool, n)
	received := 0
wait:
	for received < n {
		select {
		case r := <-ch:
			results[r.i], done[r.i] = r.v, true
			received++
		case <-ctx.Done():
			break wait
		}
	}

	// keep whatever finished together with the deadline
	for received < n {
		select {
		case r := <-ch:
			results[r.i], done[r.i] = r.v, true
			received++
			continue
		default:
		}
		break
	}

	for i := range results {
		if !done[i] {
			results[i] = fallback(i)
		}
	}
	return results
}

package server

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/semaphore"
)

// workers runs route handlers on goroutines separate from the connection's
// I/O, at most n at a time. Handlers may block on the resource pool.
type workers struct {
	sem *semaphore.Weighted
}

func newWorkers(n int) *workers {
	if n <= 0 {
		n = 1
	}
	return &workers{sem: semaphore.NewWeighted(int64(n))}
}

// handlerPanic is a recovered panic from a route handler.
type handlerPanic struct {
	value any
	stack []byte
}

func (p *handlerPanic) Error() string {
	return fmt.Sprintf("handler panic: %v\n%s", p.value, p.stack)
}

// run waits for a free worker, runs fn on it and waits for the result.
func (w *workers) run(ctx context.Context, fn func()) error {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		defer w.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- &handlerPanic{value: r, stack: debug.Stack()}
			}
		}()
		fn()
		done <- nil
	}()
	return <-done
}

// Package pool keeps a fixed batch of expensive handles, such as database
// connections, and hands them out one caller at a time.
//
// Idle handles are served in FIFO order and blocked callers are woken in the
// order they started waiting. A handle that fails the liveness check on
// release is dropped and never replaced.
package pool

import (
	"context"
	"errors"
	"sync"

	"github.com/eapache/queue"

	"github.com/codetesla51/raw-https/logging"
)

// ErrClosed is returned by Acquire once the pool has been torn down.
var ErrClosed = errors.New("pool: closed")

// Factory creates one live handle.
type Factory[T any] func() (T, error)

// Options tune a Pool. The zero value is usable.
type Options[T any] struct {
	// Alive reports whether a released handle may be reused. Nil treats
	// every handle as alive.
	Alive func(T) bool
	// Discard is called for handles dropped by the liveness check or
	// drained by Close.
	Discard func(T)
	Logger  *logging.Logger
}

// Stats is a snapshot of pool occupancy. Idle+InFlight always equals Total.
type Stats struct {
	Idle     int
	InFlight int
	Total    int
}

type waiter[T any] struct {
	ch        chan T
	abandoned bool
}

// Pool is a bounded set of handles guarded by a single mutex.
type Pool[T any] struct {
	mu       sync.Mutex
	idle     *queue.Queue // of T
	waiters  *queue.Queue // of *waiter[T]
	inFlight int
	total    int
	closed   bool

	alive   func(T) bool
	discard func(T)
	log     *logging.Logger
}

// New synchronously creates count handles with factory. Handles that fail to
// create are logged and skipped, so the pool may start smaller than count.
func New[T any](factory Factory[T], count int, opts Options[T]) *Pool[T] {
	p := &Pool[T]{
		idle:    queue.New(),
		waiters: queue.New(),
		alive:   opts.Alive,
		discard: opts.Discard,
		log:     opts.Logger,
	}
	for i := 0; i < count; i++ {
		h, err := factory()
		if err != nil {
			p.log.Errorf("Could not create pooled resource %d/%d: %v", i+1, count, err)
			continue
		}
		p.idle.Add(h)
		p.total++
	}
	p.log.Infof("Resource pool ready with %d of %d handles", p.total, count)
	return p
}

// Acquire blocks until a handle is idle and returns the least recently
// released one. It only fails once the pool is closed.
func (p *Pool[T]) Acquire() (T, error) {
	return p.AcquireContext(context.Background())
}

// AcquireContext is Acquire bounded by ctx.
func (p *Pool[T]) AcquireContext(ctx context.Context) (T, error) {
	var zero T

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, ErrClosed
	}
	if p.idle.Length() > 0 {
		h := p.idle.Remove().(T)
		p.inFlight++
		p.mu.Unlock()
		return h, nil
	}
	w := &waiter[T]{ch: make(chan T, 1)}
	p.waiters.Add(w)
	p.mu.Unlock()

	select {
	case h, ok := <-w.ch:
		if !ok {
			return zero, ErrClosed
		}
		return h, nil
	case <-ctx.Done():
		p.mu.Lock()
		w.abandoned = true
		// A release may have handed us a handle after ctx fired.
		select {
		case h, ok := <-w.ch:
			if ok {
				p.inFlight--
				if !p.handoffLocked(h) {
					p.mu.Unlock()
					p.drop(h)
					return zero, ctx.Err()
				}
			}
		default:
		}
		p.mu.Unlock()
		return zero, ctx.Err()
	}
}

// Release returns h to the pool and wakes one waiter. A handle failing the
// liveness check is dropped instead and the pool shrinks by one.
func (p *Pool[T]) Release(h T) {
	if p.alive != nil && !p.alive(h) {
		p.mu.Lock()
		p.inFlight--
		p.total--
		total := p.total
		p.mu.Unlock()
		p.log.Warnf("Dropped a pooled resource that failed its liveness check, %d left", total)
		p.drop(h)
		return
	}

	p.mu.Lock()
	p.inFlight--
	kept := p.handoffLocked(h)
	p.mu.Unlock()
	if !kept {
		p.drop(h)
	}
}

// handoffLocked gives h to the oldest live waiter, or parks it as idle.
// Once the pool is closed it keeps nothing: total shrinks and the caller
// must drop h after unlocking.
func (p *Pool[T]) handoffLocked(h T) bool {
	if p.closed {
		p.total--
		return false
	}
	for p.waiters.Length() > 0 {
		w := p.waiters.Remove().(*waiter[T])
		if w.abandoned {
			continue
		}
		p.inFlight++
		w.ch <- h
		return true
	}
	p.idle.Add(h)
	return true
}

func (p *Pool[T]) drop(h T) {
	if p.discard != nil {
		p.discard(h)
	}
}

// Close drains the idle handles without waiting for checked-out ones and
// wakes blocked acquirers with ErrClosed. Handles released afterwards are
// discarded. Close is idempotent.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	drained := make([]T, 0, p.idle.Length())
	for p.idle.Length() > 0 {
		drained = append(drained, p.idle.Remove().(T))
	}
	p.total -= len(drained)
	for p.waiters.Length() > 0 {
		w := p.waiters.Remove().(*waiter[T])
		if !w.abandoned {
			close(w.ch)
		}
	}
	p.mu.Unlock()

	for _, h := range drained {
		p.drop(h)
	}
	p.log.Infof("Resource pool closed, drained %d idle handles", len(drained))
}

// Stats returns the current occupancy.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Idle: p.idle.Length(), InFlight: p.inFlight, Total: p.total}
}

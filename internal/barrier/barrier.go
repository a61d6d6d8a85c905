// Package barrier provides a single-shot, many-waiter rendezvous.
package barrier

import (
	"context"
	"sync"
)

// Barrier is released at most once; every waiter, current or future,
// unblocks the moment it is released. The zero value is not usable; use New.
type Barrier struct {
	once sync.Once
	done chan struct{}
}

// New returns a Barrier that has not been released yet.
func New() *Barrier {
	return &Barrier{done: make(chan struct{})}
}

// Release unblocks every current and future waiter. Idempotent.
func (b *Barrier) Release() {
	b.once.Do(func() { close(b.done) })
}

// Released reports whether Release has been called, without blocking.
func (b *Barrier) Released() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Wait blocks until Release has been called or ctx is done.
func (b *Barrier) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitAny blocks until at least one of bs is released, or ctx is done.
// It panics if bs is empty; callers must not offer a Block response with
// no barriers.
func WaitAny(ctx context.Context, bs ...*Barrier) error {
	if len(bs) == 0 {
		panic("barrier: WaitAny called with no barriers")
	}
	if len(bs) == 1 {
		return bs[0].Wait(ctx)
	}

	done := make(chan struct{})
	var once sync.Once
	release := func() { once.Do(func() { close(done) }) }

	stop := make(chan struct{})
	defer close(stop)

	var wg sync.WaitGroup
	wg.Add(len(bs))
	for _, b := range bs {
		go func(b *Barrier) {
			defer wg.Done()
			select {
			case <-b.done:
				release()
			case <-stop:
			}
		}(b)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package transport

import (
	"context"
	"sync"
)

// Barrier is a reusable rendezvous for a fixed number of parties. The last
// party to arrive runs the optional release action while every other party is
// still blocked, then wakes them all.
//
// A barrier can be aborted. Abort wakes every waiter with the abort error and
// makes all later Await calls fail immediately, so one failing worker can
// never leave the others blocked forever.
type Barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parties int
	arrived int
	gen     int
	err     error

	release func(gen int)
}

// NewBarrier creates a barrier for parties participants. release, if non-nil,
// is called with the number of the generation being completed (starting at 0).
func NewBarrier(parties int, release func(gen int)) *Barrier {
	b := &Barrier{parties: parties, release: release}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Await blocks until all parties have called Await for the current generation.
// If ctx ends first the whole barrier is aborted with the context error.
func (b *Barrier) Await(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return b.err
	}
	if err := ctx.Err(); err != nil {
		b.abortLocked(abortErr(err))
		return b.err
	}

	gen := b.gen
	b.arrived++
	if b.arrived == b.parties {
		if b.release != nil {
			b.release(gen)
		}
		b.arrived = 0
		b.gen++
		b.cond.Broadcast()
		return nil
	}

	// The callback may already be running when stop is called; it must not
	// abort a generation that was released in the meantime.
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		if b.gen == gen {
			b.abortLocked(abortErr(ctx.Err()))
		}
		b.mu.Unlock()
	})
	defer stop()

	for b.gen == gen && b.err == nil {
		b.cond.Wait()
	}
	if b.gen != gen {
		return nil
	}
	return b.err
}

// Abort fails the current and every future Await with err. Only the first
// abort error is kept.
func (b *Barrier) Abort(err error) {
	b.mu.Lock()
	b.abortLocked(err)
	b.mu.Unlock()
}

// Err returns the abort error, or nil while the barrier is healthy.
func (b *Barrier) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Generation returns how many times the barrier has been released.
func (b *Barrier) Generation() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen
}

func (b *Barrier) abortLocked(err error) {
	if b.err == nil {
		b.err = err
	}
	b.cond.Broadcast()
}

// Package transport is the message-passing layer between simulation workers.
//
// Workers share nothing but a Group: one mailbox per worker for point-to-point
// messages, a round barrier, and a gather collective. Sends never block.
// Receives are non-blocking probes. Every envelope is stamped with the
// sender's round, and a receiver only sees envelopes sent in rounds it has
// already passed the barrier for. A message sent in round n therefore can
// never be drained before round n's barrier completes, no matter how fast the
// sender is.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrAborted is returned by every operation once the group has been aborted.
var ErrAborted = errors.New("transport: group aborted")

func abortErr(cause error) error {
	if errors.Is(cause, ErrAborted) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrAborted, cause)
}

// Envelope carries a message together with its sender and the sender's round.
type Envelope[M any] struct {
	From  int
	Round int
	Msg   M
}

type mailbox[M any] struct {
	mu    sync.Mutex
	items []Envelope[M]
	head  int
}

func (m *mailbox[M]) push(env Envelope[M]) {
	m.mu.Lock()
	m.items = append(m.items, env)
	m.mu.Unlock()
}

// popBefore removes the oldest envelope if it was sent before round.
func (m *mailbox[M]) popBefore(round int) (Envelope[M], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.head == len(m.items) || m.items[m.head].Round >= round {
		var zero Envelope[M]
		return zero, false
	}
	env := m.items[m.head]
	m.items[m.head] = Envelope[M]{}
	m.head++
	if m.head == len(m.items) {
		m.items = m.items[:0]
		m.head = 0
	}
	return env, true
}

func (m *mailbox[M]) peekBefore(round int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.head < len(m.items) && m.items[m.head].Round < round
}

// Group connects a fixed number of workers exchanging messages of type M.
type Group[M any] struct {
	size       int
	boxes      []*mailbox[M]
	rounds     *Barrier
	collective *Barrier

	slotMu sync.Mutex
	slots  []any
}

// NewGroup creates a group of size workers. onRound, if non-nil, runs exactly
// once per completed round barrier, on the last worker to arrive, with the
// number of the round that just completed.
func NewGroup[M any](size int, onRound func(round int)) *Group[M] {
	if size < 1 {
		panic(fmt.Sprintf("transport: group size must be >= 1, got %d", size))
	}
	g := &Group[M]{
		size:       size,
		boxes:      make([]*mailbox[M], size),
		rounds:     NewBarrier(size, onRound),
		collective: NewBarrier(size, nil),
		slots:      make([]any, size),
	}
	for i := range g.boxes {
		g.boxes[i] = &mailbox[M]{}
	}
	return g
}

// Size returns the number of workers.
func (g *Group[M]) Size() int { return g.size }

// Endpoint returns worker rank's handle. Each endpoint must be used by a
// single goroutine.
func (g *Group[M]) Endpoint(rank int) *Endpoint[M] {
	return &Endpoint[M]{g: g, rank: rank}
}

// Abort fails every pending and future collective with err. It is how one
// worker's failure is propagated to the whole group.
func (g *Group[M]) Abort(err error) {
	err = abortErr(err)
	g.rounds.Abort(err)
	g.collective.Abort(err)
}

// Err returns the abort error, if any.
func (g *Group[M]) Err() error { return g.rounds.Err() }

// Endpoint is one worker's view of the group.
type Endpoint[M any] struct {
	g     *Group[M]
	rank  int
	round int

	sent     int
	received int
}

// Rank returns this worker's index.
func (e *Endpoint[M]) Rank() int { return e.rank }

// Size returns the number of workers in the group.
func (e *Endpoint[M]) Size() int { return e.g.size }

// Round returns how many round barriers this endpoint has passed.
func (e *Endpoint[M]) Round() int { return e.round }

// Sent returns the number of messages sent by this endpoint.
func (e *Endpoint[M]) Sent() int { return e.sent }

// Received returns the number of messages received by this endpoint.
func (e *Endpoint[M]) Received() int { return e.received }

// Send queues msg for worker to. It never blocks. Per sender/receiver pair,
// messages are received in send order.
func (e *Endpoint[M]) Send(to int, msg M) error {
	if err := e.g.Err(); err != nil {
		return err
	}
	if to < 0 || to >= e.g.size {
		return fmt.Errorf("transport: send to worker %d outside group of %d", to, e.g.size)
	}
	e.g.boxes[to].push(Envelope[M]{From: e.rank, Round: e.round, Msg: msg})
	e.sent++
	return nil
}

// Probe reports, without blocking, whether a message is ready to receive.
func (e *Endpoint[M]) Probe() bool {
	return e.g.boxes[e.rank].peekBefore(e.round)
}

// TryRecv returns the next message sent in an earlier round, or false if
// none is pending. It never blocks.
func (e *Endpoint[M]) TryRecv() (Envelope[M], bool) {
	env, ok := e.g.boxes[e.rank].popBefore(e.round)
	if ok {
		e.received++
	}
	return env, ok
}

// Barrier blocks until every worker of the group reaches the same round
// barrier. If ctx ends first, the whole group is aborted.
func (e *Endpoint[M]) Barrier(ctx context.Context) error {
	if err := e.g.rounds.Await(ctx); err != nil {
		e.g.collective.Abort(err)
		return err
	}
	e.round++
	return nil
}

// Gather collects every worker's local slice at root. Root receives one slice
// per worker, in rank order; every other worker receives nil. It blocks until
// all workers have contributed.
func Gather[M, T any](ctx context.Context, e *Endpoint[M], root int, local []T) ([][]T, error) {
	g := e.g
	if root < 0 || root >= g.size {
		return nil, fmt.Errorf("transport: gather root %d outside group of %d", root, g.size)
	}

	g.slotMu.Lock()
	g.slots[e.rank] = local
	g.slotMu.Unlock()

	if err := g.collective.Await(ctx); err != nil {
		g.rounds.Abort(err)
		return nil, err
	}
	if e.rank != root {
		return nil, nil
	}

	g.slotMu.Lock()
	defer g.slotMu.Unlock()
	out := make([][]T, g.size)
	for w, slot := range g.slots {
		part, ok := slot.([]T)
		if !ok && slot != nil {
			return nil, fmt.Errorf("transport: gather slot %d holds %T", w, slot)
		}
		out[w] = part
	}
	return out, nil
}

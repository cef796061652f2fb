// Package engine implements per-node signal behavior for one worker's
// partition: nerves generate signals, every node consumes its inbox, neurons
// reweight and refire what they receive, and firing splits a magnitude across
// edges until it is spent.
//
// An Engine touches only the node states of its own partition. Signals for
// nodes owned by another worker leave through the Sender it was built with.
package engine

import (
	"fmt"

	"github.com/nvandessel/neurosim/internal/constants"
	"github.com/nvandessel/neurosim/internal/inbox"
	"github.com/nvandessel/neurosim/internal/partition"
	"github.com/nvandessel/neurosim/internal/rng"
	"github.com/nvandessel/neurosim/internal/router"
	"github.com/nvandessel/neurosim/internal/topology"
)

// Sender delivers a signal to the worker that owns its target.
type Sender interface {
	SendSignal(worker int, sig inbox.Signal) error
}

// Config holds tunable parameters for the engine.
type Config struct {
	// InboxCapacity is the number of pending signals each node can hold. Default: 200.
	InboxCapacity int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{InboxCapacity: constants.DefaultInboxCapacity}
}

// NodeState is the mutable state of one node. It is owned by exactly one
// worker for the whole run.
type NodeState struct {
	Inbox *inbox.Inbox

	// Fired counts signals a nerve generated, per type.
	Fired [constants.NumSignalTypes]int
	// Received counts signals a nerve consumed, per type.
	Received [constants.NumSignalTypes]int

	TotalReceived    int
	HandledThisRound int
	HandledLastRound int
}

// Dropped returns the number of signals discarded because the inbox was full.
func (s *NodeState) Dropped() int { return s.Inbox.Dropped() }

// Counters are the engine-wide tallies for one worker.
type Counters struct {
	Generated       int
	LocalDeliveries int
	RemoteSends     int
	Handled         int
	Discarded       int
}

// Engine runs node behavior over a single partition.
type Engine struct {
	router *router.Router
	topo   *topology.Topology
	rank   int
	part   partition.Range
	src    rng.Source
	send   Sender

	arena   *inbox.Arena
	states  []NodeState
	scratch []inbox.Signal
	counts  Counters
}

// New builds the engine for worker rank. Node states are created here and
// live for the engine's lifetime.
func New(r *router.Router, rank int, src rng.Source, send Sender, cfg Config) *Engine {
	if cfg.InboxCapacity <= 0 {
		cfg.InboxCapacity = constants.DefaultInboxCapacity
	}
	part := r.Layout().Range(rank)
	e := &Engine{
		router:  r,
		topo:    r.Topology(),
		rank:    rank,
		part:    part,
		src:     src,
		send:    send,
		arena:   inbox.NewArena(part.Len(), cfg.InboxCapacity),
		states:  make([]NodeState, part.Len()),
		scratch: make([]inbox.Signal, 0, cfg.InboxCapacity),
	}
	for i := range e.states {
		e.states[i].Inbox = e.arena.Inbox(i)
	}
	return e
}

// Rank returns the worker this engine belongs to.
func (e *Engine) Rank() int { return e.rank }

// Range returns the partition of node indices this engine owns.
func (e *Engine) Range() partition.Range { return e.part }

// Counters returns the engine-wide tallies so far.
func (e *Engine) Counters() Counters { return e.counts }

// State returns the state of the node at global index idx, or nil if the
// node is not in this engine's partition.
func (e *Engine) State(idx int) *NodeState {
	if !e.part.Contains(idx) {
		return nil
	}
	return &e.states[idx-e.part.Start]
}

// States returns the partition's node states in index order.
func (e *Engine) States() []NodeState { return e.states }

// Deliver places a signal arriving from another worker into its target's
// inbox. It reports false when the target is not owned by this engine.
func (e *Engine) Deliver(sig inbox.Signal) bool {
	idx, ok := e.topo.IndexOf(sig.Target)
	if !ok || !e.part.Contains(idx) {
		return false
	}
	e.states[idx-e.part.Start].Inbox.Enqueue(sig)
	return true
}

// Round updates every local node once, in ascending index order.
func (e *Engine) Round() error {
	for idx := e.part.Start; idx < e.part.End; idx++ {
		if err := e.Update(idx); err != nil {
			return err
		}
	}
	return nil
}

// Update runs generation and then consumption for the node at idx.
func (e *Engine) Update(idx int) error {
	if err := e.Generate(idx); err != nil {
		return err
	}
	return e.Consume(idx)
}

// Generate makes a nerve with at least one eligible edge emit a random burst
// of signals. It does nothing for neurons and for isolated nerves.
func (e *Engine) Generate(idx int) error {
	if e.topo.Node(idx).Kind != topology.Nerve || len(e.topo.EligibleEdges(idx)) == 0 {
		return nil
	}
	st := e.State(idx)
	n := e.src.Intn(constants.MaxNerveFirings)
	for range n {
		typ := e.src.Intn(constants.NumSignalTypes)
		mag := e.src.Float64n(constants.MaxSignalMagnitude)
		st.Fired[typ]++
		e.counts.Generated++
		if err := e.Fire(idx, typ, mag); err != nil {
			return err
		}
	}
	return nil
}

// Fire splits magnitude across randomly chosen edges of the node at idx until
// less than Epsilon remains. Each portion is capped by the edge capacity and
// then scaled by the edge weighting for typ. A node without eligible edges
// fires nothing.
func (e *Engine) Fire(idx, typ int, magnitude float64) error {
	for magnitude >= constants.Epsilon {
		edge, ok := e.router.SelectOutgoingEdge(idx, e.src)
		if !ok {
			return nil
		}
		target := e.router.ResolveTarget(idx, edge)
		ed := e.topo.Edge(edge)

		transit := min(magnitude, ed.MaxCapacity)
		magnitude -= transit
		transit *= ed.Weighting[typ]

		if err := e.emit(inbox.Signal{Type: typ, Magnitude: transit, Target: target}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) emit(sig inbox.Signal) error {
	owner, ok := e.router.OwnerOf(sig.Target)
	if !ok {
		return fmt.Errorf("engine: signal for unknown node %d", sig.Target)
	}
	if owner == e.rank {
		idx, _ := e.topo.IndexOf(sig.Target)
		e.states[idx-e.part.Start].Inbox.Enqueue(sig)
		e.counts.LocalDeliveries++
		return nil
	}
	if err := e.send.SendSignal(owner, sig); err != nil {
		return fmt.Errorf("sending signal to worker %d: %w", owner, err)
	}
	e.counts.RemoteSends++
	return nil
}

// Consume drains the inbox of the node at idx and handles every pending
// signal. Signals the node fires to itself while doing so stay queued for
// the next round.
func (e *Engine) Consume(idx int) error {
	st := e.State(idx)
	e.scratch = st.Inbox.DrainInto(e.scratch[:0])
	for _, sig := range e.scratch {
		if err := e.Handle(idx, sig); err != nil {
			return err
		}
		st.HandledThisRound++
	}
	st.TotalReceived += len(e.scratch)
	return nil
}

// Handle applies the node's reaction to one signal. Nerves count it. Neurons
// scale it by their subtype weight and, when overloaded, may halve or drop it
// before firing it onwards.
func (e *Engine) Handle(idx int, sig inbox.Signal) error {
	st := e.State(idx)
	node := e.topo.Node(idx)
	e.counts.Handled++

	if node.Kind == topology.Nerve {
		st.Received[sig.Type]++
		return nil
	}

	mag := sig.Magnitude * constants.NeuronSubtypeWeights[node.Subtype]
	if st.HandledLastRound+st.HandledThisRound > constants.OverloadThreshold {
		if e.src.Intn(constants.OverloadHalveOdds) == 1 {
			mag /= 2
		}
		if e.src.Intn(constants.OverloadDropOdds) == 1 {
			e.counts.Discarded++
			return nil
		}
	}
	return e.Fire(idx, sig.Type, mag)
}

// RotateCounters starts a new simulated time unit for every local node.
func (e *Engine) RotateCounters() {
	for i := range e.states {
		e.states[i].HandledLastRound = e.states[i].HandledThisRound
		e.states[i].HandledThisRound = 0
	}
}

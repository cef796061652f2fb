// Package coordinator drives one worker through the simulation's rounds.
//
// Each round has three phases:
//
//	Draining: receive every signal other workers sent in earlier rounds
//	Updating: run the node behavior engine over the local partition
//	Barrier:  wait until every worker has finished the round
//
// The barrier's release action ticks the shared Clock exactly once per round,
// so all workers agree on simulated time and on when the run is over.
package coordinator

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/nvandessel/neurosim/internal/engine"
	"github.com/nvandessel/neurosim/internal/inbox"
	"github.com/nvandessel/neurosim/internal/logging"
	"github.com/nvandessel/neurosim/internal/transport"
)

// ErrRoundTimeout is wrapped into the abort error when a barrier wait
// exceeds the configured round timeout.
var ErrRoundTimeout = errors.New("round timeout exceeded")

// Phase is the worker's position within a round.
type Phase int

const (
	Idle Phase = iota
	Draining
	Updating
	Barrier
	Finished
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Draining:
		return "draining"
	case Updating:
		return "updating"
	case Barrier:
		return "barrier"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Stats are one worker's counters for a whole run.
type Stats struct {
	Worker            int
	Rounds            int
	Units             int
	Sent              int
	Received          int
	LocalDeliveries   int
	RoutingViolations int
	WallTime          time.Duration
}

// Options holds the optional collaborators of a Worker.
type Options struct {
	// Logger receives operational output. Default: discard.
	Logger *slog.Logger

	// Tracer receives one record per round. Nil disables tracing.
	Tracer *logging.RoundTracer

	// RoundTimeout bounds each barrier wait. Zero means no bound.
	RoundTimeout time.Duration
}

// Worker runs the round loop for one partition.
type Worker struct {
	ep     *transport.Endpoint[inbox.Signal]
	eng    *engine.Engine
	clock  *Clock
	logger *slog.Logger
	tracer *logging.RoundTracer

	roundTimeout time.Duration
	phase        Phase
	stats        Stats
	pending      []transport.Envelope[inbox.Signal]
}

// NewWorker wires an engine to its transport endpoint and the shared clock.
// The engine must have been built with SignalSender(ep).
func NewWorker(ep *transport.Endpoint[inbox.Signal], eng *engine.Engine, clock *Clock, opts Options) *Worker {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Worker{
		ep:           ep,
		eng:          eng,
		clock:        clock,
		logger:       logger.With("worker", ep.Rank()),
		tracer:       opts.Tracer,
		roundTimeout: opts.RoundTimeout,
		stats:        Stats{Worker: ep.Rank()},
	}
}

// Phase returns the phase the worker is currently in.
func (w *Worker) Phase() Phase { return w.phase }

// Endpoint returns the worker's transport endpoint.
func (w *Worker) Endpoint() *transport.Endpoint[inbox.Signal] { return w.ep }

// Engine returns the worker's node behavior engine.
func (w *Worker) Engine() *engine.Engine { return w.eng }

// Stats returns the worker's counters.
func (w *Worker) Stats() Stats { return w.stats }

// Run executes rounds until the clock says the run is over. Every worker of
// the group must call Run; an error from any of them aborts the others at
// their next barrier.
func (w *Worker) Run(ctx context.Context) (stats Stats, err error) {
	start := time.Now()
	defer func() {
		w.phase = Finished
		w.stats.WallTime = time.Since(start)
		w.stats.Units = w.clock.Units()
		w.stats.Sent = w.ep.Sent()
		w.stats.Received = w.ep.Received()
		w.stats.LocalDeliveries = w.eng.Counters().LocalDeliveries
		stats = w.stats
	}()

	r := w.eng.Range()
	w.logger.Debug("worker starting", "partition", r.String(), "nodes", r.Len())

	units := w.clock.Units()
	for !w.clock.Done() {
		round := w.ep.Round()

		w.phase = Draining
		drained := w.drain()

		w.phase = Updating
		before := w.eng.Counters()
		if err := w.eng.Round(); err != nil {
			return w.stats, fmt.Errorf("worker %d round %d: %w", w.ep.Rank(), round, err)
		}

		w.phase = Barrier
		if err := w.barrier(ctx); err != nil {
			return w.stats, fmt.Errorf("worker %d round %d: %w", w.ep.Rank(), round, err)
		}
		w.stats.Rounds++

		if now := w.clock.Units(); now != units {
			w.eng.RotateCounters()
			units = now
		}

		after := w.eng.Counters()
		w.logger.Log(ctx, logging.LevelTrace, "round complete",
			"round", round, "clock", units, "drained", drained,
			"sent", after.RemoteSends-before.RemoteSends)
		w.tracer.Trace(logging.RoundTrace{
			Worker:            w.ep.Rank(),
			Round:             round,
			Clock:             units,
			Drained:           drained,
			Sent:              after.RemoteSends - before.RemoteSends,
			LocalDeliveries:   after.LocalDeliveries - before.LocalDeliveries,
			RoutingViolations: w.stats.RoutingViolations,
		})
	}

	w.logger.Debug("worker finished", "rounds", w.stats.Rounds, "clock", units,
		"routing_violations", w.stats.RoutingViolations)
	return w.stats, nil
}

// drain receives every pending signal without blocking and places it in its
// target's inbox. A signal for a node this worker does not own means the
// sender routed it wrongly; it is logged, counted and discarded.
//
// Signals are delivered grouped by sender in rank order, keeping each
// sender's order, so a run is reproducible for a given seed and worker count.
func (w *Worker) drain() int {
	w.pending = w.pending[:0]
	for {
		env, ok := w.ep.TryRecv()
		if !ok {
			break
		}
		w.pending = append(w.pending, env)
	}
	slices.SortStableFunc(w.pending, func(a, b transport.Envelope[inbox.Signal]) int {
		return cmp.Compare(a.From, b.From)
	})
	for _, env := range w.pending {
		if !w.eng.Deliver(env.Msg) {
			w.stats.RoutingViolations++
			w.logger.Warn("received signal for non-local node",
				"target", env.Msg.Target, "from", env.From, "partition", w.eng.Range().String())
		}
	}
	return len(w.pending)
}

func (w *Worker) barrier(ctx context.Context) error {
	if w.roundTimeout <= 0 {
		return w.ep.Barrier(ctx)
	}
	ctx, cancel := context.WithTimeoutCause(ctx, w.roundTimeout,
		fmt.Errorf("%w: %s", ErrRoundTimeout, w.roundTimeout))
	defer cancel()
	err := w.ep.Barrier(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", err, context.Cause(ctx))
	}
	return err
}

// SignalSender adapts a transport endpoint to the engine's Sender.
func SignalSender(ep *transport.Endpoint[inbox.Signal]) engine.Sender {
	return endpointSender{ep: ep}
}

type endpointSender struct {
	ep *transport.Endpoint[inbox.Signal]
}

func (s endpointSender) SendSignal(worker int, sig inbox.Signal) error {
	return s.ep.Send(worker, sig)
}

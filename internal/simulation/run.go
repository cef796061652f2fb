package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/neurosim/internal/aggregate"
	"github.com/nvandessel/neurosim/internal/coordinator"
	"github.com/nvandessel/neurosim/internal/engine"
	"github.com/nvandessel/neurosim/internal/inbox"
	"github.com/nvandessel/neurosim/internal/logging"
	"github.com/nvandessel/neurosim/internal/partition"
	"github.com/nvandessel/neurosim/internal/report"
	"github.com/nvandessel/neurosim/internal/rng"
	"github.com/nvandessel/neurosim/internal/router"
	"github.com/nvandessel/neurosim/internal/topology"
	"github.com/nvandessel/neurosim/internal/transport"
)

// ErrNoWorkers is returned when a run is configured with fewer than one worker.
var ErrNoWorkers = errors.New("simulation: at least one worker is required")

// Config holds everything a run needs besides the topology.
type Config struct {
	// Workers is the number of partitions and goroutines. Default: 1.
	Workers int

	// Seed feeds every worker's random source; worker i uses stream i.
	// Zero picks a random seed, which is recorded in the report.
	Seed uint64

	Clock  coordinator.ClockConfig
	Engine engine.Config

	// RoundTimeout bounds each barrier wait. Zero means no bound.
	RoundTimeout time.Duration

	// Logger receives operational output. Default: discard.
	Logger *slog.Logger

	// Tracer receives per-round records. Nil disables tracing.
	Tracer *logging.RoundTracer

	// NewSource overrides how worker random sources are built. Tests use it
	// to script every draw.
	NewSource func(seed uint64, worker int) rng.Source

	// Now is the wall-clock source for wallclock mode. Default: time.Now.
	Now func() time.Time
}

// DefaultConfig returns a single-worker, zero-budget configuration.
func DefaultConfig() Config {
	return Config{
		Workers: 1,
		Clock:   coordinator.DefaultClockConfig(0),
		Engine:  engine.DefaultConfig(),
	}
}

// Validate checks the configuration for impossible values.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: got %d", ErrNoWorkers, c.Workers)
	}
	if c.RoundTimeout < 0 {
		return fmt.Errorf("round timeout must not be negative, got %s", c.RoundTimeout)
	}
	return c.Clock.Validate()
}

// Run simulates topo with the given configuration and returns the report
// assembled at worker 0.
func Run(ctx context.Context, topo *topology.Topology, cfg Config) (*report.Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.Seed == 0 {
		cfg.Seed = rand.Uint64()
	}
	newSource := cfg.NewSource
	if newSource == nil {
		newSource = func(seed uint64, worker int) rng.Source { return rng.NewPCG(seed, uint64(worker)) }
	}

	started := time.Now()
	runID := uuid.NewString()
	logger = logger.With("run", runID)

	layout := partition.NewLayout(topo.NodeCount(), cfg.Workers)
	rt := router.New(topo, layout)
	clock := coordinator.NewClock(cfg.Clock, cfg.Now)
	group := transport.NewGroup[inbox.Signal](cfg.Workers, clock.Tick)

	stopWatch := context.AfterFunc(ctx, func() {
		logger.Info("stop requested, finishing at the next round boundary")
		clock.RequestStop()
	})
	defer stopWatch()

	workers := make([]*coordinator.Worker, cfg.Workers)
	for w := range workers {
		ep := group.Endpoint(w)
		eng := engine.New(rt, w, newSource(cfg.Seed, w), coordinator.SignalSender(ep), cfg.Engine)
		workers[w] = coordinator.NewWorker(ep, eng, clock, coordinator.Options{
			Logger:       logger,
			Tracer:       cfg.Tracer,
			RoundTimeout: cfg.RoundTimeout,
		})
	}

	logger.Info("simulation starting",
		"nodes", topo.NodeCount(), "edges", topo.EdgeCount(), "workers", cfg.Workers,
		"clock", cfg.Clock.Mode, "budget", cfg.Clock.Budget, "seed", cfg.Seed)

	stats := make([]coordinator.Stats, cfg.Workers)
	var nodes []aggregate.NodeSummary

	// Stop requests arrive through the clock, so the workers' own context is
	// only cancelled by a failing worker.
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	for w, worker := range workers {
		g.Go(func() error {
			st, err := worker.Run(gctx)
			stats[w] = st
			if err != nil {
				group.Abort(err)
				return err
			}
			eng := worker.Engine()
			local := aggregate.LocalSummary(topo, eng.Range(), eng.States())
			all, err := aggregate.Gather(gctx, worker.Endpoint(), layout, local)
			if err != nil {
				group.Abort(err)
				return fmt.Errorf("worker %d: %w", w, err)
			}
			if w == aggregate.Root {
				nodes = all
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("simulation aborted", "error", err)
		return nil, err
	}

	cs := clock.Stats()
	rep := &report.Report{
		RunID:       runID,
		StartedAt:   started.UTC(),
		Fingerprint: strconv.FormatUint(topo.Fingerprint(), 16),
		Neurons:     topo.NeuronCount(),
		Nerves:      topo.NerveCount(),
		Edges:       topo.EdgeCount(),
		Workers:     cfg.Workers,
		Seed:        cfg.Seed,
		ClockMode:   clock.Config().Mode,
		Budget:      cfg.Clock.Budget,
		Elapsed:     cs.Units,
		Stopped:     cs.Stopped,
		Performance: report.Performance{
			Rounds:           cs.Rounds,
			MinRoundsPerUnit: cs.MinRoundsPerUnit,
			MaxRoundsPerUnit: cs.MaxRoundsPerUnit,
			WallTime:         time.Since(started),
		},
		Nodes: nodes,
	}
	for w, st := range stats {
		r := layout.Range(w)
		rep.WorkerStats = append(rep.WorkerStats, report.WorkerStats{
			Worker:            w,
			Start:             r.Start,
			End:               r.End,
			Rounds:            st.Rounds,
			Sent:              st.Sent,
			Received:          st.Received,
			LocalDeliveries:   st.LocalDeliveries,
			RoutingViolations: st.RoutingViolations,
			WallTime:          st.WallTime,
		})
	}

	logger.Info("simulation finished", "elapsed", cs.Units, "rounds", cs.Rounds, "stopped", cs.Stopped)
	return rep, nil
}

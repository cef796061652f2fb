package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nvandessel/neurosim/internal/constants"
	"github.com/nvandessel/neurosim/internal/engine"
	"github.com/nvandessel/neurosim/internal/inbox"
	"github.com/nvandessel/neurosim/internal/partition"
	"github.com/nvandessel/neurosim/internal/rng"
	"github.com/nvandessel/neurosim/internal/router"
	"github.com/nvandessel/neurosim/internal/topology"
	"github.com/nvandessel/neurosim/internal/transport"
)

// ringRouter builds a ring of alternating nerves and neurons, bidirectional
// so every node can fire, partitioned across workers.
func ringRouter(t *testing.T, nodes, workers int) *router.Router {
	t.Helper()
	var decl topology.Declared
	ns := make([]topology.Node, nodes)
	for i := range ns {
		ns[i] = topology.Node{ID: 100 + i, Kind: topology.Neuron, Subtype: topology.Subtype(i % 6)}
		if i%2 == 0 {
			ns[i].Kind = topology.Nerve
			decl.Nerves++
		} else {
			decl.Neurons++
		}
	}
	es := make([]topology.Edge, nodes)
	for i := range es {
		es[i] = topology.Edge{
			From: 100 + i, To: 100 + (i+1)%nodes,
			Direction: topology.Bidirectional, Weighting: topology.UnitWeighting(), MaxCapacity: 250,
		}
	}
	decl.Edges = len(es)
	topo, err := topology.New(decl, ns, es)
	if err != nil {
		t.Fatalf("topology.New: %v", err)
	}
	return router.New(topo, partition.NewLayout(nodes, workers))
}

// newWorkers builds one worker per partition of r sharing a group and clock.
func newWorkers(t *testing.T, r *router.Router, clock *Clock, opts Options) ([]*Worker, *transport.Group[inbox.Signal]) {
	t.Helper()
	n := r.Layout().Workers()
	g := transport.NewGroup[inbox.Signal](n, clock.Tick)
	ws := make([]*Worker, n)
	for i := range ws {
		ep := g.Endpoint(i)
		eng := engine.New(r, i, rng.NewPCG(42, uint64(i)), SignalSender(ep), engine.DefaultConfig())
		ws[i] = NewWorker(ep, eng, clock, opts)
	}
	return ws, g
}

// runAll runs every worker concurrently and returns their stats and errors.
func runAll(ctx context.Context, ws []*Worker) ([]Stats, []error) {
	stats := make([]Stats, len(ws))
	errs := make([]error, len(ws))
	var wg sync.WaitGroup
	for i, w := range ws {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats[i], errs[i] = w.Run(ctx)
		}()
	}
	wg.Wait()
	return stats, errs
}

func TestWorkers_RunBudget(t *testing.T) {
	tests := []struct {
		name       string
		workers    int
		budget     int
		perUnit    int
		wantRounds int
	}{
		{"single worker", 1, 5, 1, 5},
		{"four workers", 4, 3, 1, 3},
		{"several rounds per unit", 3, 2, 4, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ringRouter(t, 24, tt.workers)
			cfg := DefaultClockConfig(tt.budget)
			cfg.RoundsPerUnit = tt.perUnit
			clock := NewClock(cfg, nil)
			ws, _ := newWorkers(t, r, clock, Options{})

			stats, errs := runAll(context.Background(), ws)
			for i, err := range errs {
				if err != nil {
					t.Fatalf("worker %d: %v", i, err)
				}
			}
			var sent, received int
			for i, s := range stats {
				if s.Rounds != tt.wantRounds {
					t.Errorf("worker %d ran %d rounds, want %d", i, s.Rounds, tt.wantRounds)
				}
				if s.Units != tt.budget {
					t.Errorf("worker %d clock = %d, want %d", i, s.Units, tt.budget)
				}
				if s.RoutingViolations != 0 {
					t.Errorf("worker %d saw %d routing violations", i, s.RoutingViolations)
				}
				sent += s.Sent
				received += s.Received
				if ws[i].Phase() != Finished {
					t.Errorf("worker %d phase = %v, want finished", i, ws[i].Phase())
				}
			}
			if received > sent {
				t.Errorf("received %d signals but only %d were sent", received, sent)
			}
			if cs := clock.Stats(); cs.MinRoundsPerUnit != tt.perUnit || cs.MaxRoundsPerUnit != tt.perUnit {
				t.Errorf("rounds per unit min=%d max=%d, want %d", cs.MinRoundsPerUnit, cs.MaxRoundsPerUnit, tt.perUnit)
			}
		})
	}
}

func TestWorkers_NonPositiveBudget(t *testing.T) {
	r := ringRouter(t, 8, 2)
	clock := NewClock(DefaultClockConfig(0), nil)
	ws, _ := newWorkers(t, r, clock, Options{})

	stats, errs := runAll(context.Background(), ws)
	for i := range ws {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if stats[i].Rounds != 0 {
			t.Errorf("worker %d ran %d rounds, want 0", i, stats[i].Rounds)
		}
	}
}

func TestWorkers_ForeverStopsTogether(t *testing.T) {
	r := ringRouter(t, 12, 3)
	cfg := DefaultClockConfig(-1)
	cfg.Policy = constants.BudgetForever
	clock := NewClock(cfg, nil)
	ws, _ := newWorkers(t, r, clock, Options{})

	time.AfterFunc(30*time.Millisecond, clock.RequestStop)
	stats, errs := runAll(context.Background(), ws)

	for i := range ws {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if stats[i].Rounds != stats[0].Rounds {
			t.Errorf("worker %d ran %d rounds, worker 0 ran %d", i, stats[i].Rounds, stats[0].Rounds)
		}
	}
	if stats[0].Rounds == 0 {
		t.Error("no rounds ran before the stop request")
	}
	if !clock.Stats().Stopped {
		t.Error("clock does not report the stop")
	}
}

func TestWorker_RoutingViolationIsCountedAndDiscarded(t *testing.T) {
	r := ringRouter(t, 4, 2)
	clock := NewClock(DefaultClockConfig(2), nil)
	ws, g := newWorkers(t, r, clock, Options{})

	// Node 103 is owned by worker 1; deliver it to worker 0 instead.
	if err := g.Endpoint(1).Send(0, inbox.Signal{Type: 0, Magnitude: 5, Target: 103}); err != nil {
		t.Fatal(err)
	}
	stats, errs := runAll(context.Background(), ws)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	if stats[0].RoutingViolations != 1 {
		t.Errorf("worker 0 violations = %d, want 1", stats[0].RoutingViolations)
	}
	if stats[1].RoutingViolations != 0 {
		t.Errorf("worker 1 violations = %d, want 0", stats[1].RoutingViolations)
	}
}

func TestWorker_RoundTimeoutAbortsGroup(t *testing.T) {
	r := ringRouter(t, 4, 2)
	clock := NewClock(DefaultClockConfig(10), nil)
	ws, g := newWorkers(t, r, clock, Options{RoundTimeout: 20 * time.Millisecond})

	// Worker 1 never runs, so worker 0 waits at the first barrier.
	_, err := ws[0].Run(context.Background())
	if !errors.Is(err, transport.ErrAborted) {
		t.Fatalf("Run error = %v, want ErrAborted", err)
	}
	if !errors.Is(err, ErrRoundTimeout) {
		t.Errorf("Run error = %v, want it to wrap ErrRoundTimeout", err)
	}
	if g.Err() == nil {
		t.Error("group was not aborted")
	}

	// The straggler fails at its barrier instead of hanging.
	if _, err := ws[1].Run(context.Background()); !errors.Is(err, transport.ErrAborted) {
		t.Errorf("straggler Run error = %v, want ErrAborted", err)
	}
}

func TestWorker_CancelledContextAborts(t *testing.T) {
	r := ringRouter(t, 4, 2)
	clock := NewClock(DefaultClockConfig(10), nil)
	ws, _ := newWorkers(t, r, clock, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ws[0].Run(ctx)
	if !errors.Is(err, transport.ErrAborted) || !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want ErrAborted wrapping Canceled", err)
	}
}

func TestClock_RoundsMode(t *testing.T) {
	cfg := DefaultClockConfig(3)
	cfg.RoundsPerUnit = 2
	c := NewClock(cfg, nil)

	var units []int
	for round := 0; !c.Done(); round++ {
		c.Tick(round)
		units = append(units, c.Units())
	}
	want := []int{0, 1, 1, 2, 2, 3}
	if len(units) != len(want) {
		t.Fatalf("units per round = %v, want %v", units, want)
	}
	for i := range want {
		if units[i] != want[i] {
			t.Fatalf("units per round = %v, want %v", units, want)
		}
	}
	if s := c.Stats(); s.Rounds != 6 {
		t.Errorf("Rounds = %d, want 6", s.Rounds)
	}
}

func TestClock_WallClockMode(t *testing.T) {
	var now time.Time
	fake := func() time.Time { return now }

	cfg := DefaultClockConfig(2)
	cfg.Mode = constants.ClockWallTime
	cfg.Quantum = 2 * time.Second
	c := NewClock(cfg, fake)

	steps := []struct {
		elapsed time.Duration
		want    int
	}{
		{500 * time.Millisecond, 0},
		{1 * time.Second, 0},
		{2 * time.Second, 1},
		{2500 * time.Millisecond, 1},
		{3 * time.Second, 1},
		{3900 * time.Millisecond, 1},
		{4 * time.Second, 2},
	}
	for i, s := range steps {
		now = time.Time{}.Add(s.elapsed)
		c.Tick(i)
		if got := c.Units(); got != s.want {
			t.Fatalf("after %s units = %d, want %d", s.elapsed, got, s.want)
		}
	}
	if !c.Done() {
		t.Error("clock not done after budget")
	}
	st := c.Stats()
	if st.MinRoundsPerUnit != 3 || st.MaxRoundsPerUnit != 4 {
		t.Errorf("rounds per unit min=%d max=%d, want 3 and 4", st.MinRoundsPerUnit, st.MaxRoundsPerUnit)
	}
}

func TestClockConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ClockConfig)
		wantErr bool
	}{
		{"default", func(*ClockConfig) {}, false},
		{"bad mode", func(c *ClockConfig) { c.Mode = "sundial" }, true},
		{"bad policy", func(c *ClockConfig) { c.Policy = "sometimes" }, true},
		{"zero rounds per unit", func(c *ClockConfig) { c.RoundsPerUnit = 0 }, true},
		{"zero quantum in wallclock", func(c *ClockConfig) {
			c.Mode = constants.ClockWallTime
			c.Quantum = 0
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultClockConfig(1)
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPhaseString(t *testing.T) {
	for p, want := range map[Phase]string{Draining: "draining", Updating: "updating", Barrier: "barrier"} {
		if p.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(p), p.String(), want)
		}
	}
}

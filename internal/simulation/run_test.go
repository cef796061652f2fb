package simulation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nvandessel/neurosim/internal/constants"
	"github.com/nvandessel/neurosim/internal/rng"
	"github.com/nvandessel/neurosim/internal/topology"
)

// buildTopology validates nodes and edges with counts taken from the records.
func buildTopology(t *testing.T, nodes []topology.Node, edges []topology.Edge) *topology.Topology {
	t.Helper()
	decl := topology.Declared{Edges: len(edges)}
	for _, n := range nodes {
		if n.Kind == topology.Nerve {
			decl.Nerves++
		} else {
			decl.Neurons++
		}
	}
	topo, err := topology.New(decl, nodes, edges)
	if err != nil {
		t.Fatalf("topology.New: %v", err)
	}
	return topo
}

// meshTopology returns n nodes, every third one a nerve, each linked to the
// next two nodes with mixed edge directions and capacities.
func meshTopology(t *testing.T, n int) *topology.Topology {
	t.Helper()
	nodes := make([]topology.Node, n)
	for i := range nodes {
		nodes[i] = topology.Node{ID: 1000 + 3*i, Kind: topology.Neuron, Subtype: topology.Subtype(i % 6)}
		if i%3 == 0 {
			nodes[i].Kind = topology.Nerve
		}
	}
	var edges []topology.Edge
	for i := range nodes {
		for _, step := range []int{1, 2} {
			e := topology.Edge{
				From:        nodes[i].ID,
				To:          nodes[(i+step)%n].ID,
				Direction:   topology.Direction(step % 2),
				Weighting:   topology.UnitWeighting(),
				MaxCapacity: float64(40 + 10*step),
			}
			e.Weighting[i%constants.NumSignalTypes] = 0.5
			edges = append(edges, e)
		}
	}
	return buildTopology(t, nodes, edges)
}

func TestRun_TwoWorkerScenario(t *testing.T) {
	topo := buildTopology(t,
		[]topology.Node{
			{ID: 10, Kind: topology.Nerve},
			{ID: 20, Kind: topology.Neuron, Subtype: topology.Motor},
		},
		[]topology.Edge{{
			From: 10, To: 20, Direction: topology.Unidirectional,
			Weighting: topology.UnitWeighting(), MaxCapacity: 50,
		}})

	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.Seed = 1
	cfg.Clock.Budget = 2
	cfg.NewSource = func(_ uint64, worker int) rng.Source {
		if worker == 0 {
			// Round 0: one signal of type 0, magnitude 80, two hops on the
			// only edge. Round 1: no signals.
			return rng.NewScripted([]int{1, 0, 0, 0, 0}, []float64{80})
		}
		return rng.NewScripted(nil, nil)
	}

	rep, err := Run(context.Background(), topo, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rep.Elapsed != 2 || rep.Performance.Rounds != 2 {
		t.Errorf("elapsed=%d rounds=%d, want 2 and 2", rep.Elapsed, rep.Performance.Rounds)
	}
	if len(rep.Nodes) != 2 {
		t.Fatalf("report has %d nodes, want 2", len(rep.Nodes))
	}
	nerve, neuron := rep.Nodes[0], rep.Nodes[1]
	if nerve.ID != 10 || nerve.Fired[0] != 1 {
		t.Errorf("nerve summary = %+v, want id 10 with one type-0 firing", nerve)
	}
	if neuron.ID != 20 || neuron.TotalReceived != 2 {
		t.Errorf("neuron summary = %+v, want id 20 with 2 signals received", neuron)
	}
	if rep.WorkerStats[0].Sent != 2 || rep.WorkerStats[1].Received != 2 {
		t.Errorf("worker stats = %+v, want 2 sent by worker 0 and received by worker 1", rep.WorkerStats)
	}
	if tot := rep.Totals(); tot.RoutingViolations != 0 {
		t.Errorf("routing violations = %d, want 0", tot.RoutingViolations)
	}
}

func TestRun_MultiWorkerConsistency(t *testing.T) {
	topo := meshTopology(t, 41)
	for _, workers := range []int{1, 2, 3, 5, 8} {
		t.Run(fmt.Sprintf("%d workers", workers), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Workers = workers
			cfg.Seed = 77
			cfg.Clock.Budget = 6

			rep, err := Run(context.Background(), topo, cfg)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(rep.Nodes) != topo.NodeCount() {
				t.Fatalf("gathered %d nodes, want %d", len(rep.Nodes), topo.NodeCount())
			}
			for i, n := range rep.Nodes {
				if want := topo.Node(i).ID; n.ID != want {
					t.Fatalf("node %d has id %d, want %d", i, n.ID, want)
				}
			}

			tot := rep.Totals()
			if tot.RoutingViolations != 0 {
				t.Errorf("routing violations = %d, want 0", tot.RoutingViolations)
			}
			if tot.Fired == 0 {
				t.Error("no nerve fired in six rounds")
			}
			var received int
			for _, w := range rep.WorkerStats {
				received += w.Received
				if w.Rounds != 6 {
					t.Errorf("worker %d ran %d rounds, want 6", w.Worker, w.Rounds)
				}
			}
			if received > tot.Sent {
				t.Errorf("received %d remote signals but only %d were sent", received, tot.Sent)
			}
		})
	}
}

func TestRun_GathersInIDOrder(t *testing.T) {
	topo := buildTopology(t,
		[]topology.Node{
			{ID: 30, Kind: topology.Nerve},
			{ID: 10, Kind: topology.Neuron, Subtype: topology.Sensory},
			{ID: 20, Kind: topology.Neuron, Subtype: topology.Motor},
		},
		[]topology.Edge{
			{From: 30, To: 10, Direction: topology.Bidirectional, Weighting: topology.UnitWeighting(), MaxCapacity: 60},
			{From: 10, To: 20, Direction: topology.Unidirectional, Weighting: topology.UnitWeighting(), MaxCapacity: 60},
		})

	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.Seed = 9
	cfg.Clock.Budget = 3

	rep, err := Run(context.Background(), topo, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var ids []int
	for _, n := range rep.Nodes {
		ids = append(ids, n.ID)
	}
	if diff := cmp.Diff([]int{10, 20, 30}, ids); diff != "" {
		t.Errorf("gathered ids not ascending (-want +got):\n%s", diff)
	}
}

func TestRun_ReproducibleForSeed(t *testing.T) {
	topo := meshTopology(t, 30)
	cfg := DefaultConfig()
	cfg.Workers = 3
	cfg.Seed = 4242
	cfg.Clock.Budget = 5

	first, err := Run(context.Background(), topo, cfg)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := Run(context.Background(), topo, cfg)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if diff := cmp.Diff(first.Nodes, second.Nodes); diff != "" {
		t.Errorf("same seed produced different results (-first +second):\n%s", diff)
	}
	if first.RunID == second.RunID {
		t.Error("two runs share a run id")
	}
}

func TestRun_ZeroBudgetRunsNoRounds(t *testing.T) {
	topo := meshTopology(t, 9)
	cfg := DefaultConfig()
	cfg.Workers = 2

	rep, err := Run(context.Background(), topo, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Performance.Rounds != 0 || rep.Elapsed != 0 {
		t.Errorf("rounds=%d elapsed=%d, want 0 and 0", rep.Performance.Rounds, rep.Elapsed)
	}
	if len(rep.Nodes) != 9 {
		t.Errorf("gathered %d nodes, want 9", len(rep.Nodes))
	}
}

func TestRun_ForeverStopsOnCancel(t *testing.T) {
	topo := meshTopology(t, 12)
	cfg := DefaultConfig()
	cfg.Workers = 3
	cfg.Clock.Policy = constants.BudgetForever

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	rep, err := Run(ctx, topo, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Stopped {
		t.Error("report not marked as stopped")
	}
	if rep.Performance.Rounds == 0 {
		t.Error("no rounds ran before cancellation")
	}
	if len(rep.Nodes) != 12 {
		t.Errorf("gathered %d nodes, want 12", len(rep.Nodes))
	}
}

func TestRun_MoreWorkersThanNodes(t *testing.T) {
	topo := meshTopology(t, 3)
	cfg := DefaultConfig()
	cfg.Workers = 5
	cfg.Clock.Budget = 3

	rep, err := Run(context.Background(), topo, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Nodes) != 3 {
		t.Errorf("gathered %d nodes, want 3", len(rep.Nodes))
	}
	if last := rep.WorkerStats[4]; last.Start != 0 || last.End != 3 {
		t.Errorf("last worker owns [%d,%d), want [0,3)", last.Start, last.End)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	topo := meshTopology(t, 3)

	cfg := DefaultConfig()
	cfg.Workers = 0
	if _, err := Run(context.Background(), topo, cfg); !errors.Is(err, ErrNoWorkers) {
		t.Errorf("Run with 0 workers error = %v, want ErrNoWorkers", err)
	}

	cfg = DefaultConfig()
	cfg.Clock.Mode = "sundial"
	if _, err := Run(context.Background(), topo, cfg); err == nil {
		t.Error("expected error for unknown clock mode")
	}
}

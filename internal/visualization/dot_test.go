package visualization

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/nvandessel/neurosim/internal/aggregate"
	"github.com/nvandessel/neurosim/internal/topology"
)

// chain builds nerve 1 -> neuron 2 -> neuron 3 -> neuron 4, the last edge
// bidirectional.
func chain(t *testing.T) *topology.Topology {
	t.Helper()
	nodes := []topology.Node{
		{ID: 1, Kind: topology.Nerve, X: 1},
		{ID: 2, Kind: topology.Neuron, Subtype: topology.Motor},
		{ID: 3, Kind: topology.Neuron, Subtype: topology.Bipolar},
		{ID: 4, Kind: topology.Neuron, Subtype: topology.Sensory},
	}
	edges := []topology.Edge{
		{From: 1, To: 2, Direction: topology.Unidirectional, Weighting: topology.UnitWeighting(), MaxCapacity: 50},
		{From: 2, To: 3, Direction: topology.Unidirectional, Weighting: topology.UnitWeighting(), MaxCapacity: 25},
		{From: 3, To: 4, Direction: topology.Bidirectional, Weighting: topology.UnitWeighting(), MaxCapacity: 12.5},
	}
	topo, err := topology.New(topology.Declared{Neurons: 3, Nerves: 1, Edges: 3}, nodes, edges)
	if err != nil {
		t.Fatalf("topology.New: %v", err)
	}
	return topo
}

func TestBuild_Partitioning(t *testing.T) {
	g, err := Build(chain(t), Options{Workers: 2})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	wantWorkers := []int{0, 0, 1, 1}
	for i, n := range g.Nodes {
		if n.Worker != wantWorkers[i] {
			t.Errorf("node %d worker = %d, want %d", n.ID, n.Worker, wantWorkers[i])
		}
	}
	if g.CrossEdges != 1 || !g.Edges[1].CrossWorker {
		t.Errorf("cross edges = %d (edge 2->3 cross=%v), want only 2->3", g.CrossEdges, g.Edges[1].CrossWorker)
	}
	if g.Nodes[0].Subtype != "" || g.Nodes[1].Subtype != "motor" {
		t.Errorf("subtypes = %q, %q; want nerve without subtype and motor", g.Nodes[0].Subtype, g.Nodes[1].Subtype)
	}
}

func TestBuild_DefaultsToOneWorker(t *testing.T) {
	g, err := Build(chain(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if g.Workers != 1 || g.CrossEdges != 0 {
		t.Errorf("workers=%d cross=%d, want 1 and 0", g.Workers, g.CrossEdges)
	}
}

func TestBuild_Summaries(t *testing.T) {
	topo := chain(t)
	sums := []aggregate.NodeSummary{
		{ID: 1, Kind: topology.Nerve, Fired: [10]int{2, 0, 3}},
		{ID: 2, TotalReceived: 5},
		{ID: 3},
		{ID: 4},
	}
	g, err := Build(topo, Options{Summaries: sums})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if *g.Nodes[0].Fired != 5 || *g.Nodes[1].TotalReceived != 5 {
		t.Errorf("fired=%d received=%d, want 5 and 5", *g.Nodes[0].Fired, *g.Nodes[1].TotalReceived)
	}

	if _, err := Build(topo, Options{Summaries: sums[:2]}); err == nil {
		t.Error("expected error for short summaries")
	}
	sums[2].ID = 99
	if _, err := Build(topo, Options{Summaries: sums}); err == nil {
		t.Error("expected error for mismatched summary id")
	}
}

func TestRenderDOT(t *testing.T) {
	dot, err := RenderDOT(chain(t), Options{Workers: 2})
	if err != nil {
		t.Fatalf("RenderDOT() error = %v", err)
	}
	for _, want := range []string{
		"digraph neurosim {",
		"subgraph cluster_worker_0 {",
		"subgraph cluster_worker_1 {",
		`"n1" [label="1\nnerve", shape=box, fillcolor="steelblue"`,
		`"n3" [label="3\nbipolar", shape=ellipse, fillcolor="tomato"`,
		`"n2" -> "n3" [label="25", style=dashed, dir=forward];`,
		`"n3" -> "n4" [label="12.5", style=solid, dir=both];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q\n%s", want, dot)
		}
	}
	if !strings.HasSuffix(dot, "}\n") {
		t.Error("DOT output not closed")
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderJSON(&buf, chain(t), Options{Workers: 3}); err != nil {
		t.Fatalf("RenderJSON() error = %v", err)
	}
	var g Graph
	if err := json.Unmarshal(buf.Bytes(), &g); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if g.NodeCount != 4 || g.EdgeCount != 3 || len(g.Nodes) != 4 {
		t.Errorf("counts = %d nodes %d edges, want 4 and 3", g.NodeCount, g.EdgeCount)
	}
	if g.Edges[2].Direction != "bidirectional" {
		t.Errorf("edge direction = %q, want bidirectional", g.Edges[2].Direction)
	}
	if strings.Contains(buf.String(), "total_received") {
		t.Error("JSON without summaries should omit run results")
	}
}

func TestRender_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, chain(t), FormatDOT, Options{}); err != nil || !strings.HasPrefix(buf.String(), "digraph") {
		t.Errorf("Render(dot) = %q, %v", buf.String(), err)
	}
	if err := Render(&buf, chain(t), "svg", Options{}); err == nil {
		t.Error("expected error for svg")
	}
	if _, err := ParseFormat("DOT"); err != nil {
		t.Errorf("ParseFormat(DOT) error = %v", err)
	}
	if _, err := ParseFormat("html"); err == nil {
		t.Error("expected error for html")
	}
}

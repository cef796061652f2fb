// Package visualization renders brain topologies in various output formats,
// with nodes colored by the worker that owns them.
package visualization

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nvandessel/neurosim/internal/aggregate"
	"github.com/nvandessel/neurosim/internal/partition"
	"github.com/nvandessel/neurosim/internal/topology"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// ParseFormat maps "dot" or "json" to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatDOT, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown graph format %q (must be dot or json)", s)
}

// workerColors is cycled through by worker rank.
var workerColors = []string{
	"steelblue",
	"tomato",
	"mediumseagreen",
	"goldenrod",
	"orchid",
	"lightslategray",
	"sandybrown",
	"turquoise",
}

// kindShapes maps node kinds to DOT shapes.
var kindShapes = map[string]string{
	"neuron": "ellipse",
	"nerve":  "box",
}

// Options controls what a rendering includes.
type Options struct {
	// Workers is the partition count used for coloring. Values below one
	// are treated as one.
	Workers int

	// Summaries, when set, adds each node's run results. It must be in
	// topology index order, as returned by a run's report.
	Summaries []aggregate.NodeSummary
}

// Node is one node of a rendered graph.
type Node struct {
	ID            int        `json:"id"`
	Kind          string     `json:"kind"`
	Subtype       string     `json:"subtype,omitempty"`
	Worker        int        `json:"worker"`
	Position      [3]float64 `json:"position"`
	Fired         *int       `json:"fired,omitempty"`
	TotalReceived *int       `json:"total_received,omitempty"`
}

// Edge is one edge of a rendered graph.
type Edge struct {
	From        int     `json:"from"`
	To          int     `json:"to"`
	Direction   string  `json:"direction"`
	MaxCapacity float64 `json:"max_value"`

	// CrossWorker marks edges whose endpoints live on different workers;
	// signals on them travel through the transport.
	CrossWorker bool `json:"cross_worker"`
}

// Graph is the JSON rendering of a topology.
type Graph struct {
	Workers     int    `json:"workers"`
	Fingerprint string `json:"topology_fingerprint"`
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`
	NodeCount   int    `json:"node_count"`
	EdgeCount   int    `json:"edge_count"`
	CrossEdges  int    `json:"cross_edges"`
}

// Build lays out topo over the configured workers.
func Build(topo *topology.Topology, opts Options) (*Graph, error) {
	workers := max(opts.Workers, 1)
	if opts.Summaries != nil && len(opts.Summaries) != topo.NodeCount() {
		return nil, fmt.Errorf("have %d node summaries for %d nodes", len(opts.Summaries), topo.NodeCount())
	}
	layout := partition.NewLayout(topo.NodeCount(), workers)

	g := &Graph{
		Workers:     workers,
		Fingerprint: fmt.Sprintf("%x", topo.Fingerprint()),
		Nodes:       make([]Node, 0, topo.NodeCount()),
		Edges:       make([]Edge, 0, topo.EdgeCount()),
		NodeCount:   topo.NodeCount(),
		EdgeCount:   topo.EdgeCount(),
	}
	for i := range topo.NodeCount() {
		n := topo.Node(i)
		node := Node{
			ID:       n.ID,
			Kind:     n.Kind.String(),
			Worker:   layout.OwnerOfIndex(i),
			Position: [3]float64{n.X, n.Y, n.Z},
		}
		if n.Kind == topology.Neuron {
			node.Subtype = n.Subtype.String()
		}
		if opts.Summaries != nil {
			s := opts.Summaries[i]
			if s.ID != n.ID {
				return nil, fmt.Errorf("summary %d is for node %d, want %d", i, s.ID, n.ID)
			}
			fired := 0
			for _, f := range s.Fired {
				fired += f
			}
			node.Fired = &fired
			node.TotalReceived = &s.TotalReceived
		}
		g.Nodes = append(g.Nodes, node)
	}
	for e := range topo.EdgeCount() {
		edge := topo.Edge(e)
		from, _ := topo.IndexOf(edge.From)
		to, _ := topo.IndexOf(edge.To)
		cross := layout.OwnerOfIndex(from) != layout.OwnerOfIndex(to)
		if cross {
			g.CrossEdges++
		}
		g.Edges = append(g.Edges, Edge{
			From:        edge.From,
			To:          edge.To,
			Direction:   edge.Direction.String(),
			MaxCapacity: edge.MaxCapacity,
			CrossWorker: cross,
		})
	}
	return g, nil
}

// RenderDOT produces a Graphviz DOT representation of the topology.
// Each worker's nodes form a cluster; cross-worker edges are dashed.
func RenderDOT(topo *topology.Topology, opts Options) (string, error) {
	g, err := Build(topo, opts)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("digraph neurosim {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [style=filled, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n\n")

	for w := range g.Workers {
		fmt.Fprintf(&b, "  subgraph cluster_worker_%d {\n", w)
		fmt.Fprintf(&b, "    label=\"worker %d\";\n", w)
		for _, n := range g.Nodes {
			if n.Worker != w {
				continue
			}
			fmt.Fprintf(&b, "    \"n%d\" [label=%q, shape=%s, fillcolor=%q, tooltip=%q];\n",
				n.ID, nodeLabel(n), kindShapes[n.Kind],
				workerColors[w%len(workerColors)], nodeTooltip(n))
		}
		b.WriteString("  }\n")
	}
	b.WriteString("\n")

	for _, e := range g.Edges {
		style := "solid"
		if e.CrossWorker {
			style = "dashed"
		}
		dir := "forward"
		if e.Direction == topology.Bidirectional.String() {
			dir = "both"
		}
		fmt.Fprintf(&b, "  \"n%d\" -> \"n%d\" [label=\"%g\", style=%s, dir=%s];\n",
			e.From, e.To, e.MaxCapacity, style, dir)
	}

	b.WriteString("}\n")
	return b.String(), nil
}

// RenderJSON writes the JSON graph representation to w.
func RenderJSON(w io.Writer, topo *topology.Topology, opts Options) error {
	g, err := Build(topo, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}

// Render writes topo to w in the given format.
func Render(w io.Writer, topo *topology.Topology, format Format, opts Options) error {
	switch format {
	case FormatDOT:
		dot, err := RenderDOT(topo, opts)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, dot)
		return err
	case FormatJSON:
		return RenderJSON(w, topo, opts)
	}
	return fmt.Errorf("unknown graph format %q", format)
}

func nodeLabel(n Node) string {
	if n.Subtype != "" {
		return fmt.Sprintf("%d\n%s", n.ID, n.Subtype)
	}
	return fmt.Sprintf("%d\n%s", n.ID, n.Kind)
}

func nodeTooltip(n Node) string {
	tip := fmt.Sprintf("worker=%d pos=(%g,%g,%g)", n.Worker, n.Position[0], n.Position[1], n.Position[2])
	if n.Fired != nil {
		tip += fmt.Sprintf(" fired=%d received=%d", *n.Fired, *n.TotalReceived)
	}
	return tip
}

// Package topology holds the immutable node and edge tables of a simulated
// brain graph. A Topology is built once, validated against the declared record
// counts, and then shared read-only by every worker of a run.
package topology

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/nvandessel/neurosim/internal/constants"
)

// Weighting holds one multiplicative factor per signal type.
type Weighting [constants.NumSignalTypes]float64

// UnitWeighting returns a weighting that leaves every signal type unchanged.
func UnitWeighting() Weighting {
	var w Weighting
	for i := range w {
		w[i] = 1.0
	}
	return w
}

// Node is the static description of a neuron or nerve.
type Node struct {
	ID      int
	Kind    Kind
	Subtype Subtype
	X, Y, Z float64
}

// Edge connects two node ids.
type Edge struct {
	From        int
	To          int
	Direction   Direction
	Weighting   Weighting
	MaxCapacity float64
}

// Declared carries the header counts of a graph description. The records
// supplied must match them exactly.
type Declared struct {
	Neurons int
	Nerves  int
	Edges   int
}

// Topology is the validated, immutable graph. Node positions in the table
// (indices) are what partitions are computed over; ids are only used for
// addressing signals.
type Topology struct {
	nodes    []Node
	edges    []Edge
	index    map[int]int
	eligible [][]int
	neurons  int
	nerves   int
	checksum uint64
}

// New validates the records against decl, orders the nodes by ascending id
// and links every node to the edges it may originate signals on. Any
// inconsistency is returned as a *LoadError whose Index is the record's
// position in nodes or edges.
func New(decl Declared, nodes []Node, edges []Edge) (*Topology, error) {
	t := &Topology{
		nodes: append([]Node(nil), nodes...),
		edges: append([]Edge(nil), edges...),
		index: make(map[int]int, len(nodes)),
	}

	for i, n := range t.nodes {
		if _, dup := t.index[n.ID]; dup {
			return nil, &LoadError{Record: "node", Index: i, Err: fmt.Errorf("%w: %d", ErrDuplicateID, n.ID)}
		}
		switch n.Kind {
		case Neuron:
			if !n.Subtype.Valid() {
				return nil, &LoadError{Record: "node", Index: i, Err: fmt.Errorf("%w: %d", ErrUnknownSubtype, int(n.Subtype))}
			}
			t.neurons++
		case Nerve:
			t.nerves++
		default:
			return nil, &LoadError{Record: "node", Index: i, Err: fmt.Errorf("%w: %d", ErrUnknownKind, int(n.Kind))}
		}
		t.index[n.ID] = i
	}

	// Index order is ascending id order, so partitions and gathered
	// summaries follow ids whatever order the file listed them in.
	slices.SortStableFunc(t.nodes, func(a, b Node) int { return cmp.Compare(a.ID, b.ID) })
	for i, n := range t.nodes {
		t.index[n.ID] = i
	}

	if t.neurons != decl.Neurons || t.nerves != decl.Nerves {
		return nil, &LoadError{Record: "header", Index: -1, Err: fmt.Errorf(
			"%w: declared %d neurons and %d nerves, got %d and %d",
			ErrCountMismatch, decl.Neurons, decl.Nerves, t.neurons, t.nerves)}
	}
	if len(t.edges) != decl.Edges {
		return nil, &LoadError{Record: "header", Index: -1, Err: fmt.Errorf(
			"%w: declared %d edges, got %d", ErrCountMismatch, decl.Edges, len(t.edges))}
	}

	for i, e := range t.edges {
		if _, ok := t.index[e.From]; !ok {
			return nil, &LoadError{Record: "edge", Index: i, Err: fmt.Errorf("%w: from %d", ErrDanglingEdge, e.From)}
		}
		if _, ok := t.index[e.To]; !ok {
			return nil, &LoadError{Record: "edge", Index: i, Err: fmt.Errorf("%w: to %d", ErrDanglingEdge, e.To)}
		}
		if e.Direction != Bidirectional && e.Direction != Unidirectional {
			return nil, &LoadError{Record: "edge", Index: i, Err: fmt.Errorf("%w: %d", ErrUnknownDirection, int(e.Direction))}
		}
		// A non-positive capacity would never shrink the magnitude being fired.
		if !(e.MaxCapacity > 0) || math.IsInf(e.MaxCapacity, 0) {
			return nil, &LoadError{Record: "edge", Index: i, Err: fmt.Errorf("%w: %v", ErrInvalidCapacity, e.MaxCapacity)}
		}
		for typ, w := range e.Weighting {
			if w < 0 || math.IsNaN(w) {
				return nil, &LoadError{Record: "edge", Index: i, Err: fmt.Errorf("%w: type %d = %v", ErrInvalidWeighting, typ, w)}
			}
		}
	}

	t.linkEdges()
	t.checksum = t.fingerprint()
	return t, nil
}

// linkEdges records, for each node, the edges it may originate signals on:
// edges it is the source of, and bidirectional edges it is the target of.
func (t *Topology) linkEdges() {
	t.eligible = make([][]int, len(t.nodes))
	for e, edge := range t.edges {
		from := t.index[edge.From]
		t.eligible[from] = append(t.eligible[from], e)
		if edge.Direction == Bidirectional && edge.To != edge.From {
			to := t.index[edge.To]
			t.eligible[to] = append(t.eligible[to], e)
		}
	}
}

func (t *Topology) fingerprint() uint64 {
	d := xxhash.New()
	buf := make([]byte, 0, 64)
	for _, n := range t.nodes {
		buf = buf[:0]
		buf = binary.LittleEndian.AppendUint64(buf, uint64(int64(n.ID)))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(n.Kind))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(n.Subtype))
		d.Write(buf)
	}
	for _, e := range t.edges {
		buf = buf[:0]
		buf = binary.LittleEndian.AppendUint64(buf, uint64(int64(e.From)))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(int64(e.To)))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(e.Direction))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(e.MaxCapacity))
		for _, w := range e.Weighting {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(w))
		}
		d.Write(buf)
	}
	return d.Sum64()
}

// NodeCount returns the total number of neurons and nerves.
func (t *Topology) NodeCount() int { return len(t.nodes) }

// EdgeCount returns the number of edges.
func (t *Topology) EdgeCount() int { return len(t.edges) }

// NeuronCount returns the number of neurons.
func (t *Topology) NeuronCount() int { return t.neurons }

// NerveCount returns the number of nerves.
func (t *Topology) NerveCount() int { return t.nerves }

// Node returns the node stored at table index idx.
func (t *Topology) Node(idx int) Node { return t.nodes[idx] }

// Edge returns the edge stored at table index e.
func (t *Topology) Edge(e int) Edge { return t.edges[e] }

// IndexOf maps a node id to its table index.
func (t *Topology) IndexOf(id int) (int, bool) {
	idx, ok := t.index[id]
	return idx, ok
}

// EligibleEdges returns the edge indices the node at idx may fire on.
// The returned slice must not be modified.
func (t *Topology) EligibleEdges(idx int) []int { return t.eligible[idx] }

// Fingerprint is a stable hash of the full topology, used to tell archived
// runs of different graphs apart.
func (t *Topology) Fingerprint() uint64 { return t.checksum }

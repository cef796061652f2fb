// Package router answers the partition-aware routing questions of a firing
// node: which edge to use, which node it reaches, and which worker owns it.
// All methods are pure functions over the shared Topology and Layout.
package router

import (
	"github.com/nvandessel/neurosim/internal/partition"
	"github.com/nvandessel/neurosim/internal/rng"
	"github.com/nvandessel/neurosim/internal/topology"
)

// Router combines a Topology with the Layout that partitions it.
type Router struct {
	topo   *topology.Topology
	layout *partition.Layout
}

// New returns a Router. layout must partition exactly topo.NodeCount() indices.
func New(topo *topology.Topology, layout *partition.Layout) *Router {
	return &Router{topo: topo, layout: layout}
}

// Topology returns the routed topology.
func (r *Router) Topology() *topology.Topology { return r.topo }

// Layout returns the partition layout.
func (r *Router) Layout() *partition.Layout { return r.layout }

// OwnerOf maps a global node id to the worker whose partition holds it.
// Unknown ids return (-1, false).
func (r *Router) OwnerOf(id int) (int, bool) {
	idx, ok := r.topo.IndexOf(id)
	if !ok {
		return -1, false
	}
	return r.layout.OwnerOfIndex(idx), true
}

// SelectOutgoingEdge picks uniformly among the eligible edges of the node at
// nodeIdx. It returns (-1, false) when the node has none.
func (r *Router) SelectOutgoingEdge(nodeIdx int, src rng.Source) (int, bool) {
	eligible := r.topo.EligibleEdges(nodeIdx)
	if len(eligible) == 0 {
		return -1, false
	}
	return eligible[src.Intn(len(eligible))], true
}

// ResolveTarget returns the id of the endpoint of edge that is not the node at
// nodeIdx. A self-loop resolves to the node itself.
func (r *Router) ResolveTarget(nodeIdx, edge int) int {
	e := r.topo.Edge(edge)
	if e.From == r.topo.Node(nodeIdx).ID {
		return e.To
	}
	return e.From
}

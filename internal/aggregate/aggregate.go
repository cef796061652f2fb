// Package aggregate collects the final per-node results of every worker at
// worker 0.
package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/nvandessel/neurosim/internal/constants"
	"github.com/nvandessel/neurosim/internal/engine"
	"github.com/nvandessel/neurosim/internal/partition"
	"github.com/nvandessel/neurosim/internal/topology"
	"github.com/nvandessel/neurosim/internal/transport"
)

// Root is the worker that receives the gathered results.
const Root = 0

// ErrContributionSize is returned at the root when a worker contributes a
// different number of summaries than its partition holds.
var ErrContributionSize = errors.New("aggregate: contribution size does not match partition")

// NodeSummary is the reportable state of one node at the end of a run.
type NodeSummary struct {
	ID            int                           `json:"id"`
	Kind          topology.Kind                 `json:"kind"`
	Fired         [constants.NumSignalTypes]int `json:"fired"`
	Received      [constants.NumSignalTypes]int `json:"received"`
	TotalReceived int                           `json:"total_received"`
	Dropped       int                           `json:"dropped"`
}

// LocalSummary summarizes the node states of one partition, in index order.
// states[i] must be the state of node index r.Start+i.
func LocalSummary(topo *topology.Topology, r partition.Range, states []engine.NodeState) []NodeSummary {
	out := make([]NodeSummary, len(states))
	for i := range states {
		node := topo.Node(r.Start + i)
		st := &states[i]
		out[i] = NodeSummary{
			ID:            node.ID,
			Kind:          node.Kind,
			Fired:         st.Fired,
			Received:      st.Received,
			TotalReceived: st.TotalReceived,
			Dropped:       st.Dropped(),
		}
	}
	return out
}

// Gather sends every worker's summaries to Root. At Root it checks each
// contribution against the layout and returns all summaries in worker order,
// which is global index order. Other workers get (nil, nil).
func Gather[M any](ctx context.Context, ep *transport.Endpoint[M], layout *partition.Layout, local []NodeSummary) ([]NodeSummary, error) {
	parts, err := transport.Gather(ctx, ep, Root, local)
	if err != nil {
		return nil, fmt.Errorf("gathering summaries: %w", err)
	}
	if ep.Rank() != Root {
		return nil, nil
	}

	out := make([]NodeSummary, 0, layout.Total())
	for w, part := range parts {
		if want := layout.Range(w).Len(); len(part) != want {
			return nil, fmt.Errorf("%w: worker %d sent %d, owns %d", ErrContributionSize, w, len(part), want)
		}
		out = append(out, part...)
	}
	return out, nil
}

// Package simulation runs a complete partitioned simulation over a topology.
//
// Run builds one worker per partition, connects them through a transport
// group and drives them concurrently under an errgroup. The workers share
// only the immutable Topology and the simulated Clock; everything else moves
// through the group's mailboxes, round barrier and gather. When the clock
// reaches its budget, worker 0 gathers every node's summary and Run returns
// the finished report.
//
// Cancelling the context passed to Run is a stop request, not an abort: all
// workers leave the loop at the same round boundary and the report is still
// produced, marked as stopped. A failing worker or an expired round timeout
// aborts the whole group instead, and Run returns the first error.
//
// Usage:
//
//	topo, err := graphfile.Load("brain.graph")
//	...
//	cfg := simulation.DefaultConfig()
//	cfg.Workers = 4
//	cfg.Clock.Budget = 100
//	rep, err := simulation.Run(ctx, topo, cfg)
package simulation

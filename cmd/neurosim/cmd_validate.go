package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nvandessel/neurosim/internal/graphfile"
	"github.com/nvandessel/neurosim/internal/partition"
	"github.com/nvandessel/neurosim/internal/visualization"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <graph>",
		Short: "Check a brain graph file",
		Long: `Load a brain graph, check every record and print its shape.

With --workers, also show how the nodes would be split across workers and
how many edges would cross between them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			workers, _ := cmd.Flags().GetInt("workers")
			if workers < 1 {
				return fmt.Errorf("workers must be at least 1, got %d", workers)
			}

			topo, err := graphfile.Load(args[0])
			if err != nil {
				return err
			}
			g, err := visualization.Build(topo, visualization.Options{Workers: workers})
			if err != nil {
				return err
			}
			layout := partition.NewLayout(topo.NodeCount(), workers)

			if jsonOut {
				ranges := make([]map[string]int, 0, workers)
				for w, r := range layout.Ranges() {
					ranges = append(ranges, map[string]int{"worker": w, "start": r.Start, "end": r.End})
				}
				return writeJSON(cmd, map[string]any{
					"valid":                true,
					"graph":                args[0],
					"format":               graphfile.DetectFormat(args[0]),
					"neurons":              topo.NeuronCount(),
					"nerves":               topo.NerveCount(),
					"edges":                topo.EdgeCount(),
					"topology_fingerprint": strconv.FormatUint(topo.Fingerprint(), 16),
					"workers":              workers,
					"partitions":           ranges,
					"cross_edges":          g.CrossEdges,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s is valid (%s format)\n", args[0], graphfile.DetectFormat(args[0]))
			fmt.Fprintf(out, "  Neurons:     %d\n", topo.NeuronCount())
			fmt.Fprintf(out, "  Nerves:      %d\n", topo.NerveCount())
			fmt.Fprintf(out, "  Edges:       %d\n", topo.EdgeCount())
			fmt.Fprintf(out, "  Fingerprint: %x\n", topo.Fingerprint())
			if workers > 1 {
				fmt.Fprintf(out, "  Partitions over %d workers:\n", workers)
				for w, r := range layout.Ranges() {
					fmt.Fprintf(out, "    worker %d: nodes %s (%d)\n", w, r, r.Len())
				}
				fmt.Fprintf(out, "  Cross-worker edges: %d of %d\n", g.CrossEdges, g.EdgeCount)
			}
			return nil
		},
	}

	cmd.Flags().Int("workers", 1, "Show the partitioning for this many workers")
	return cmd
}

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nvandessel/neurosim/internal/graphfile"
	"github.com/nvandessel/neurosim/internal/store"
	"github.com/nvandessel/neurosim/internal/visualization"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <graph>",
		Short: "Visualize a brain graph",
		Long: `Output a brain graph in DOT (Graphviz) or JSON format, with nodes
grouped and colored by the worker that would own them.

With --run, node firing and reception totals from an archived run are
included. The run must have been made on the same graph.

Examples:
  neurosim graph brain.graph --workers 4 | dot -Tsvg > brain.svg
  neurosim graph brain.yaml --format json --run 3f2a... -o brain.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			workers, _ := cmd.Flags().GetInt("workers")
			runID, _ := cmd.Flags().GetString("run")

			f, err := visualization.ParseFormat(format)
			if err != nil {
				return err
			}
			topo, err := graphfile.Load(args[0])
			if err != nil {
				return err
			}

			opts := visualization.Options{Workers: workers}
			if runID != "" {
				rs, err := openArchive(cmd)
				if err != nil {
					return err
				}
				run, err := rs.GetRun(cmd.Context(), runID)
				rs.Close()
				if err != nil {
					return err
				}
				if want := strconv.FormatUint(topo.Fingerprint(), 16); run.Report.Fingerprint != want {
					return fmt.Errorf("run %s was made on a different graph (fingerprint %s, want %s)",
						runID, run.Report.Fingerprint, want)
				}
				opts.Summaries = run.Report.Nodes
				if !cmd.Flags().Changed("workers") {
					opts.Workers = run.Report.Workers
				}
			}

			out := cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer file.Close()
				out = file
			}
			if err := visualization.Render(out, topo, f, opts); err != nil {
				return fmt.Errorf("render %s: %w", f, err)
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Graph written to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().String("format", "dot", "Output format: dot or json")
	cmd.Flags().StringP("output", "o", "", "Output file path (default stdout)")
	cmd.Flags().Int("workers", 1, "Color nodes by owner for this many workers")
	cmd.Flags().String("run", "", "Include results of this archived run")
	cmd.Flags().String("archive-path", "", "Archive location (default ~/.neurosim/runs.db)")
	return cmd
}

// openArchive opens the archive named by --archive-path or the config.
func openArchive(cmd *cobra.Command) (store.RunStore, error) {
	path, _ := cmd.Flags().GetString("archive-path")
	if path == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		if path, err = cfg.ArchivePath(); err != nil {
			return nil, err
		}
	}
	rs, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return rs, nil
}

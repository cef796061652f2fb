package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/neurosim/internal/report"
	"github.com/nvandessel/neurosim/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect archived runs",
		Long: `List, show, delete and back up runs recorded with 'neurosim run --archive'.

Examples:
  neurosim runs list --limit 10
  neurosim runs show 3f2a... --format json
  neurosim runs delete 3f2a...
  neurosim runs export
  neurosim runs import ~/.neurosim/backups/neurosim-runs-20260502-080000.json.gz`,
	}
	cmd.PersistentFlags().String("archive-path", "", "Archive location (default ~/.neurosim/runs.db)")

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsDeleteCmd(),
		newRunsExportCmd(),
		newRunsImportCmd(),
		newRunsVerifyCmd(),
	)
	return cmd
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")
			fingerprint, _ := cmd.Flags().GetString("fingerprint")

			rs, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer rs.Close()

			rows, err := rs.ListRuns(cmd.Context(), store.ListOptions{Fingerprint: fingerprint, Limit: limit})
			if err != nil {
				return err
			}

			if jsonOut {
				if rows == nil {
					rows = []store.RunSummary{}
				}
				return writeJSON(cmd, map[string]any{"runs": rows, "count": len(rows)})
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No archived runs.")
				return nil
			}
			for _, r := range rows {
				status := ""
				if r.Stopped {
					status = " (stopped)"
				}
				fmt.Fprintf(out, "%s  %s  %s nodes  %d workers  %s units / %s rounds  %s%s\n",
					r.ID, humanize.Time(r.StartedAt), humanize.Comma(int64(r.Nodes)), r.Workers,
					humanize.Comma(int64(r.Elapsed)), humanize.Comma(int64(r.Rounds)),
					r.WallTime.Round(time.Millisecond), status)
				if r.GraphPath != "" {
					fmt.Fprintf(out, "    %s\n", r.GraphPath)
				}
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum runs to list (0 for all)")
	cmd.Flags().String("fingerprint", "", "Only runs of the graph with this fingerprint")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the report of an archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			format, _ := cmd.Flags().GetString("format")

			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			if jsonOut {
				f = report.FormatJSON
			}

			rs, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer rs.Close()

			run, err := rs.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if f == report.FormatText {
				fmt.Fprintf(out, "Run %s started %s on %s\n\n", run.Report.RunID,
					run.Report.StartedAt.Format(time.RFC3339), valueOrDefault(run.GraphPath, "(unknown graph)"))
			}
			if err := report.Write(out, run.Report, f); err != nil {
				return err
			}
			if f == report.FormatText {
				fmt.Fprintln(out)
				return report.WritePerformance(out, run.Report)
			}
			return nil
		},
	}
	cmd.Flags().String("format", "text", "Report format: text or json")
	return cmd
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Remove a run from the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			rs, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer rs.Close()

			if err := rs.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, map[string]string{"status": "deleted", "run_id": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

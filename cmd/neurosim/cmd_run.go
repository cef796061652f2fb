package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/neurosim/internal/config"
	"github.com/nvandessel/neurosim/internal/constants"
	"github.com/nvandessel/neurosim/internal/graphfile"
	"github.com/nvandessel/neurosim/internal/logging"
	"github.com/nvandessel/neurosim/internal/report"
	"github.com/nvandessel/neurosim/internal/simulation"
	"github.com/nvandessel/neurosim/internal/store"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <graph>",
		Short: "Simulate a brain graph",
		Long: `Load a brain graph and simulate it for the configured budget of
simulated time units.

The graph format follows the file extension: .yaml/.yml for YAML, .hcl for
HCL, anything else for the line-oriented tag format. The summary report is
written to --report ("-" for stdout).

An interrupt (Ctrl+C) stops the run at the next round boundary; the report
is still written and marked as stopped.

Examples:
  neurosim run brain.graph --budget 100 --workers 4
  neurosim run brain.yaml --forever --report -
  neurosim run brain.hcl --seed 7 --report-format json --archive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runSimulation(cmd, cfg, args[0])
		},
	}

	cmd.Flags().Int("workers", 0, "Number of partitions simulated in parallel")
	cmd.Flags().Int("budget", 0, "Simulated time units to run")
	cmd.Flags().Bool("forever", false, "Run until interrupted when the budget is not positive")
	cmd.Flags().Uint64("seed", 0, "Random seed (0 picks one and records it)")
	cmd.Flags().String("clock", "", "Clock mode: rounds or wallclock")
	cmd.Flags().Duration("quantum", 0, "Wall time per simulated unit in wallclock mode")
	cmd.Flags().Int("rounds-per-unit", 0, "Rounds per simulated unit in rounds mode")
	cmd.Flags().Duration("round-timeout", 0, "Abort if a round barrier takes longer than this (0 disables)")
	cmd.Flags().Int("inbox", 0, "Per-node inbox capacity")
	cmd.Flags().String("report", "", "Report path, or - for stdout")
	cmd.Flags().String("report-format", "", "Report format: text or json")
	cmd.Flags().String("input-format", "", "Graph format: legacy, yaml or hcl (default from extension)")
	cmd.Flags().Bool("archive", false, "Record the run in the archive")
	cmd.Flags().String("archive-path", "", "Archive location (default ~/.neurosim/runs.db)")
	cmd.Flags().String("log-level", "", "Log level: error, warn, info, debug or trace")
	cmd.Flags().String("trace-dir", "", "Directory for per-round rounds.jsonl (debug and trace levels)")

	return cmd
}

// applyRunFlags copies every flag the user set over the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.NeuroSimConfig) error {
	f := cmd.Flags()
	s := &cfg.Simulation
	if f.Changed("workers") {
		s.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("budget") {
		s.Budget, _ = f.GetInt("budget")
	}
	if forever, _ := f.GetBool("forever"); forever {
		s.BudgetPolicy = constants.BudgetForever
	}
	if f.Changed("seed") {
		s.Seed, _ = f.GetUint64("seed")
	}
	if f.Changed("clock") {
		mode, _ := f.GetString("clock")
		s.ClockMode = constants.ClockMode(mode)
	}
	if f.Changed("quantum") {
		s.Quantum, _ = f.GetDuration("quantum")
	}
	if f.Changed("rounds-per-unit") {
		s.RoundsPerUnit, _ = f.GetInt("rounds-per-unit")
	}
	if f.Changed("round-timeout") {
		s.RoundTimeout, _ = f.GetDuration("round-timeout")
	}
	if f.Changed("inbox") {
		s.InboxCapacity, _ = f.GetInt("inbox")
	}
	if f.Changed("report") {
		s.ReportPath, _ = f.GetString("report")
	}
	if f.Changed("report-format") {
		v, _ := f.GetString("report-format")
		format, err := report.ParseFormat(v)
		if err != nil {
			return err
		}
		s.ReportFormat = format
	}
	if f.Changed("archive") {
		cfg.Archive.Enabled, _ = f.GetBool("archive")
	}
	if f.Changed("archive-path") {
		cfg.Archive.Path, _ = f.GetString("archive-path")
		cfg.Archive.Enabled = true
	}
	if f.Changed("log-level") {
		cfg.Logging.Level, _ = f.GetString("log-level")
	}
	if f.Changed("trace-dir") {
		cfg.Logging.TraceDir, _ = f.GetString("trace-dir")
	}
	return nil
}

// runResult is the --json output of the run command.
type runResult struct {
	RunID      string `json:"run_id"`
	Graph      string `json:"graph"`
	Report     string `json:"report"`
	Archive    string `json:"archive,omitempty"`
	Elapsed    int    `json:"elapsed"`
	Rounds     int    `json:"rounds"`
	Seed       uint64 `json:"seed"`
	Stopped    bool   `json:"stopped"`
	WallTimeMS int64  `json:"wall_time_ms"`
}

func runSimulation(cmd *cobra.Command, cfg *config.NeuroSimConfig, graphPath string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	inputFormat, _ := cmd.Flags().GetString("input-format")

	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())

	format := graphfile.DetectFormat(graphPath)
	if inputFormat != "" {
		var err error
		if format, err = graphfile.ParseFormat(inputFormat); err != nil {
			return err
		}
	}
	topo, err := graphfile.LoadFormat(graphPath, format)
	if err != nil {
		return err
	}

	runCfg := cfg.RunConfig()
	runCfg.Logger = logger
	if cfg.Logging.TraceDir != "" {
		runCfg.Tracer = logging.NewRoundTracer(cfg.Logging.TraceDir, cfg.Logging.Level)
		defer runCfg.Tracer.Close()
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, stopSignals...)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("interrupt received, stopping at the next round boundary")
			cancel()
		case <-ctx.Done():
		}
	}()

	rep, err := simulation.Run(ctx, topo, runCfg)
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	reportPath := cfg.Simulation.ReportPath
	if reportPath == "-" {
		if err := report.Write(cmd.OutOrStdout(), rep, cfg.Simulation.ReportFormat); err != nil {
			return err
		}
		reportPath = "stdout"
	} else if err := report.WriteFile(reportPath, rep, cfg.Simulation.ReportFormat); err != nil {
		return err
	}

	var archivePath string
	if cfg.Archive.Enabled {
		if archivePath, err = archiveRun(ctx, cfg, graphPath, rep); err != nil {
			return err
		}
	}

	if jsonOut {
		return writeJSON(cmd, runResult{
			RunID:      rep.RunID,
			Graph:      graphPath,
			Report:     reportPath,
			Archive:    archivePath,
			Elapsed:    rep.Elapsed,
			Rounds:     rep.Performance.Rounds,
			Seed:       rep.Seed,
			Stopped:    rep.Stopped,
			WallTimeMS: rep.Performance.WallTime.Milliseconds(),
		})
	}

	// Keep the summary off stdout when the report itself went there.
	out := cmd.OutOrStdout()
	if reportPath == "stdout" {
		out = cmd.ErrOrStderr()
	}
	printRunSummary(out, rep, reportPath, archivePath)
	return nil
}

func archiveRun(ctx context.Context, cfg *config.NeuroSimConfig, graphPath string, rep *report.Report) (string, error) {
	path, err := cfg.ArchivePath()
	if err != nil {
		return "", err
	}
	rs, err := store.Open(path)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	if abs, err := filepath.Abs(graphPath); err == nil {
		graphPath = abs
	}
	if err := rs.SaveRun(ctx, store.Run{GraphPath: graphPath, Report: rep}); err != nil {
		rs.Close()
		return "", fmt.Errorf("archive run: %w", err)
	}
	if err := rs.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}
	return path, nil
}

func printRunSummary(w io.Writer, rep *report.Report, reportPath, archivePath string) {
	tot := rep.Totals()
	status := "completed"
	if rep.Stopped {
		status = "stopped early"
	}
	fmt.Fprintf(w, "Run %s %s\n", rep.RunID, status)
	fmt.Fprintf(w, "  Graph:     %s neurons, %s nerves, %s edges\n",
		humanize.Comma(int64(rep.Neurons)), humanize.Comma(int64(rep.Nerves)), humanize.Comma(int64(rep.Edges)))
	fmt.Fprintf(w, "  Workers:   %d (seed %d)\n", rep.Workers, rep.Seed)
	fmt.Fprintf(w, "  Simulated: %s units in %s rounds (%s clock)\n",
		humanize.Comma(int64(rep.Elapsed)), humanize.Comma(int64(rep.Performance.Rounds)), rep.ClockMode)
	fmt.Fprintf(w, "  Signals:   %s fired, %s sent between workers, %s dropped\n",
		humanize.Comma(int64(tot.Fired)), humanize.Comma(int64(tot.Sent)), humanize.Comma(int64(tot.Dropped)))
	if tot.RoutingViolations > 0 {
		fmt.Fprintf(w, "  Warning:   %d signals arrived at the wrong worker\n", tot.RoutingViolations)
	}
	fmt.Fprintf(w, "  Wall time: %s\n", rep.Performance.WallTime.Round(time.Millisecond))
	fmt.Fprintf(w, "  Report:    %s\n", reportPath)
	if archivePath != "" {
		fmt.Fprintf(w, "  Archived:  %s\n", archivePath)
	}
	report.WritePerformance(w, rep)
}

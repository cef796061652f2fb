// Package report holds the result of a simulation run and writes it out,
// either as the plain-text summary report or as JSON.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/nvandessel/neurosim/internal/aggregate"
	"github.com/nvandessel/neurosim/internal/constants"
	"github.com/nvandessel/neurosim/internal/topology"
)

// Format selects the report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat maps "text" or "json" to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown report format %q (must be text or json)", s)
}

// WorkerStats is one worker's share of the run.
type WorkerStats struct {
	Worker            int           `json:"worker"`
	Start             int           `json:"start"`
	End               int           `json:"end"`
	Rounds            int           `json:"rounds"`
	Sent              int           `json:"sent"`
	Received          int           `json:"received"`
	LocalDeliveries   int           `json:"local_deliveries"`
	RoutingViolations int           `json:"routing_violations"`
	WallTime          time.Duration `json:"wall_time_ns"`
}

// Performance is the run's timing data. It depends on the host and is not
// part of the simulated result.
type Performance struct {
	Rounds           int           `json:"rounds"`
	MinRoundsPerUnit int           `json:"min_rounds_per_unit"`
	MaxRoundsPerUnit int           `json:"max_rounds_per_unit"`
	WallTime         time.Duration `json:"wall_time_ns"`
}

// Report is the complete outcome of a run.
type Report struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	Fingerprint string    `json:"topology_fingerprint"`

	Neurons int `json:"neurons"`
	Nerves  int `json:"nerves"`
	Edges   int `json:"edges"`

	Workers   int                 `json:"workers"`
	Seed      uint64              `json:"seed"`
	ClockMode constants.ClockMode `json:"clock_mode"`
	Budget    int                 `json:"budget"`
	Elapsed   int                 `json:"elapsed"`
	Stopped   bool                `json:"stopped"`

	Performance Performance             `json:"performance"`
	WorkerStats []WorkerStats           `json:"worker_stats"`
	Nodes       []aggregate.NodeSummary `json:"nodes"`
}

// Totals are derived counters over all nodes and workers.
type Totals struct {
	Fired             int
	NerveReceived     int
	NeuronReceived    int
	Dropped           int
	Sent              int
	RoutingViolations int
}

// Totals sums the per-node and per-worker counters.
func (r *Report) Totals() Totals {
	var t Totals
	for _, n := range r.Nodes {
		for typ := range n.Fired {
			t.Fired += n.Fired[typ]
			t.NerveReceived += n.Received[typ]
		}
		if n.Kind == topology.Neuron {
			t.NeuronReceived += n.TotalReceived
		}
		t.Dropped += n.Dropped
	}
	for _, w := range r.WorkerStats {
		t.Sent += w.Sent
		t.RoutingViolations += w.RoutingViolations
	}
	return t
}

// WriteText writes the summary report: the run totals, then every nerve's
// per-type firings and receptions, then every neuron's received total.
func WriteText(w io.Writer, r *Report) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Simulation ran with %d neurons, %d nerves and %d total edges until %d ns\n",
		r.Neurons, r.Nerves, r.Edges, r.Elapsed)
	fmt.Fprintln(bw)

	n := 0
	for _, node := range r.Nodes {
		if node.Kind != topology.Nerve {
			continue
		}
		fmt.Fprintf(bw, "Nerve number %d with brain node id: %d\n", n, node.ID)
		for typ := range node.Fired {
			fmt.Fprintf(bw, "----> Signal type %d: %d firings and %d received\n", typ, node.Fired[typ], node.Received[typ])
		}
		n++
	}
	fmt.Fprintln(bw)

	n = 0
	for _, node := range r.Nodes {
		if node.Kind != topology.Neuron {
			continue
		}
		fmt.Fprintf(bw, "Neuron number %d, brain node id %d, total signals received %d\n", n, node.ID, node.TotalReceived)
		n++
	}
	return bw.Flush()
}

// WritePerformance writes the one-line performance summary.
func WritePerformance(w io.Writer, r *Report) error {
	p := r.Performance
	_, err := fmt.Fprintf(w, "Performance data: %d total rounds, maximum %d rounds per unit and minimum %d rounds per unit\n",
		p.Rounds, p.MaxRoundsPerUnit, p.MinRoundsPerUnit)
	return err
}

// WriteJSON writes the full report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Write encodes r in the given format.
func Write(w io.Writer, r *Report, format Format) error {
	if format == FormatJSON {
		return WriteJSON(w, r)
	}
	return WriteText(w, r)
}

// WriteFile writes r to path, replacing any existing file.
func WriteFile(path string, r *Report, format Format) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	if err := Write(f, r, format); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing report file: %w", err)
	}
	return nil
}

// ReadJSON decodes a report written by WriteJSON.
func ReadJSON(rd io.Reader) (*Report, error) {
	var r Report
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &r, nil
}

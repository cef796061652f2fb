package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nvandessel/neurosim/internal/aggregate"
	"github.com/nvandessel/neurosim/internal/constants"
	"github.com/nvandessel/neurosim/internal/topology"
)

func sampleReport() *Report {
	return &Report{
		RunID:     "run-1",
		Neurons:   2,
		Nerves:    1,
		Edges:     2,
		Workers:   2,
		Seed:      9,
		ClockMode: constants.ClockRounds,
		Budget:    4,
		Elapsed:   4,
		Performance: Performance{
			Rounds: 4, MinRoundsPerUnit: 1, MaxRoundsPerUnit: 1,
		},
		WorkerStats: []WorkerStats{
			{Worker: 0, Start: 0, End: 1, Sent: 3},
			{Worker: 1, Start: 1, End: 3, Sent: 5, RoutingViolations: 1},
		},
		Nodes: []aggregate.NodeSummary{
			{ID: 10, Kind: topology.Nerve, Fired: [10]int{0: 2, 7: 1}, Received: [10]int{7: 4}, TotalReceived: 4},
			{ID: 20, Kind: topology.Neuron, TotalReceived: 6, Dropped: 2},
			{ID: 30, Kind: topology.Neuron, TotalReceived: 1},
		},
	}
}

func TestWriteText_Layout(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleReport()); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	lines := strings.Split(buf.String(), "\n")

	want := []string{
		"Simulation ran with 2 neurons, 1 nerves and 2 total edges until 4 ns",
		"",
		"Nerve number 0 with brain node id: 10",
		"----> Signal type 0: 2 firings and 0 received",
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
	if lines[10] != "----> Signal type 7: 1 firings and 4 received" {
		t.Errorf("line 10 = %q", lines[10])
	}
	tail := []string{
		"",
		"Neuron number 0, brain node id 20, total signals received 6",
		"Neuron number 1, brain node id 30, total signals received 1",
		"",
	}
	if diff := cmp.Diff(tail, lines[len(lines)-4:]); diff != "" {
		t.Errorf("neuron section mismatch (-want +got):\n%s", diff)
	}
}

func TestWritePerformance(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePerformance(&buf, sampleReport()); err != nil {
		t.Fatal(err)
	}
	want := "Performance data: 4 total rounds, maximum 1 rounds per unit and minimum 1 rounds per unit\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestJSON_ReadBack(t *testing.T) {
	r := sampleReport()
	var buf bytes.Buffer
	if err := WriteJSON(&buf, r); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"kind": "nerve"`) {
		t.Error("node kind not encoded by name")
	}
	got, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if diff := cmp.Diff(r, got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestTotals(t *testing.T) {
	got := sampleReport().Totals()
	want := Totals{Fired: 3, NerveReceived: 4, NeuronReceived: 7, Dropped: 2, Sent: 8, RoutingViolations: 1}
	if got != want {
		t.Errorf("Totals() = %+v, want %+v", got, want)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), constants.DefaultReportFilename)
	if err := WriteFile(path, sampleReport(), FormatText); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "Simulation ran with") {
		t.Errorf("unexpected report contents: %q", data)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

package graphfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nvandessel/neurosim/internal/topology"
)

// smallDocument is the graph described by every file under testdata.
func smallDocument() *Document {
	w := topology.UnitWeighting()
	w[0] = 1.5
	w[9] = 0.25
	return &Document{
		Declared: topology.Declared{Neurons: 1, Nerves: 2, Edges: 2},
		Nodes: []topology.Node{
			{ID: 10, Kind: topology.Nerve, X: 0.5, Z: 1},
			{ID: 11, Kind: topology.Nerve},
			{ID: 20, Kind: topology.Neuron, Subtype: topology.Motor, X: 2},
		},
		Edges: []topology.Edge{
			{From: 10, To: 20, Direction: topology.Unidirectional, Weighting: w, MaxCapacity: 50},
			{From: 11, To: 20, Direction: topology.Bidirectional, Weighting: topology.UnitWeighting(), MaxCapacity: 75},
		},
	}
}

func parseFile(t *testing.T, path string) *Document {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var doc *Document
	switch DetectFormat(path) {
	case FormatYAML:
		doc, err = ParseYAML(data)
	case FormatHCL:
		doc, err = ParseHCL(data, path)
	default:
		doc, err = ParseLegacy(strings.NewReader(string(data)))
	}
	if err != nil {
		t.Fatalf("parsing %s: %v", path, err)
	}
	return doc
}

func TestFormatsAgree(t *testing.T) {
	want := smallDocument()
	for _, name := range []string{"small.graph", "small.yaml", "small.hcl"} {
		t.Run(name, func(t *testing.T) {
			got := parseFile(t, filepath.Join("testdata", name))
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("document mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoad_SameFingerprint(t *testing.T) {
	var prints []uint64
	for _, name := range []string{"small.graph", "small.yaml", "small.hcl"} {
		topo, err := Load(filepath.Join("testdata", name))
		if err != nil {
			t.Fatalf("Load(%s): %v", name, err)
		}
		if topo.NodeCount() != 3 || topo.EdgeCount() != 2 {
			t.Errorf("%s: %d nodes %d edges, want 3 and 2", name, topo.NodeCount(), topo.EdgeCount())
		}
		prints = append(prints, topo.Fingerprint())
	}
	if prints[0] != prints[1] || prints[1] != prints[2] {
		t.Errorf("fingerprints differ across formats: %x", prints)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"brain.yaml", FormatYAML},
		{"brain.YML", FormatYAML},
		{"brain.hcl", FormatHCL},
		{"brain.graph", FormatLegacy},
		{"brain", FormatLegacy},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.path); got != tt.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("HCL"); err != nil || f != FormatHCL {
		t.Errorf("ParseFormat(HCL) = %q, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestParseLegacy_CountsFromRecords(t *testing.T) {
	src := `
<nerve>
<id>1</id>
</nerve>
<neuron>
<id>2</id>
<type>bipolar</type>
</neuron>
`
	doc, err := ParseLegacy(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseLegacy: %v", err)
	}
	want := topology.Declared{Neurons: 1, Nerves: 1}
	if doc.Declared != want {
		t.Errorf("declared = %+v, want %+v", doc.Declared, want)
	}
	if doc.Nodes[1].Subtype != topology.Bipolar {
		t.Errorf("subtype = %v, want bipolar", doc.Nodes[1].Subtype)
	}
}

func TestParseLegacy_SeveralTagsPerLine(t *testing.T) {
	src := `<num_neurons>1</num_neurons> <num_nerves>1</num_nerves> <num_edges>1</num_edges>
<nerve>
  <id>10</id> <x>0.5</x> <y>0</y> <z>1</z>
</nerve>
<neuron> <id>20</id> <type>motor</type> </neuron>
<edge>
  <from>10</from> <to>20</to>
  <direction>unidirectional</direction> <max_value>50</max_value>
  <weighting_0>1.5</weighting_0>
</edge>
`
	doc, err := ParseLegacy(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseLegacy: %v", err)
	}
	w := topology.UnitWeighting()
	w[0] = 1.5
	want := &Document{
		Declared: topology.Declared{Neurons: 1, Nerves: 1, Edges: 1},
		Nodes: []topology.Node{
			{ID: 10, Kind: topology.Nerve, X: 0.5, Z: 1},
			{ID: 20, Kind: topology.Neuron, Subtype: topology.Motor},
		},
		Edges: []topology.Edge{
			{From: 10, To: 20, Direction: topology.Unidirectional, Weighting: w, MaxCapacity: 50},
		},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLegacy_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantLine int
		wantErr  error
	}{
		{
			name:     "neuron without type",
			src:      "<neuron>\n<id>1</id>\n</neuron>\n",
			wantLine: 3,
			wantErr:  topology.ErrUnknownSubtype,
		},
		{
			name:     "weighting index out of range",
			src:      "<edge>\n<from>1</from>\n<to>2</to>\n<direction>unidirectional</direction>\n<max_value>5</max_value>\n<weighting_10>1</weighting_10>\n</edge>\n",
			wantLine: 7,
			wantErr:  topology.ErrWeightIndexBounds,
		},
		{
			name:     "unknown direction",
			src:      "<edge>\n<direction>sideways</direction>\n</edge>\n",
			wantLine: 3,
			wantErr:  topology.ErrUnknownDirection,
		},
		{
			name:     "bad number",
			src:      "% header\n<nerve>\n<id>abc</id>\n",
			wantLine: 3,
			wantErr:  ErrSyntax,
		},
		{
			name:     "unterminated block",
			src:      "<nerve>\n<id>1</id>\n",
			wantLine: 2,
			wantErr:  ErrSyntax,
		},
		{
			name:     "field outside block",
			src:      "<id>1</id>\n",
			wantLine: 1,
			wantErr:  ErrSyntax,
		},
		{
			name:     "nested block",
			src:      "<nerve>\n<edge>\n",
			wantLine: 2,
			wantErr:  ErrSyntax,
		},
		{
			name:     "negative count",
			src:      "<num_edges>-1\n",
			wantLine: 1,
			wantErr:  ErrSyntax,
		},
		{
			name:     "trailing text after tag",
			src:      "<nerve>\n<id>1</id> junk\n",
			wantLine: 2,
			wantErr:  ErrSyntax,
		},
		{
			name:     "mismatched closing tag",
			src:      "<nerve>\n<id>1</x>\n",
			wantLine: 2,
			wantErr:  ErrSyntax,
		},
		{
			name:     "bad second tag on line",
			src:      "<nerve>\n<id>1</id> <x>abc</x>\n",
			wantLine: 2,
			wantErr:  ErrSyntax,
		},
		{
			name:     "unterminated tag",
			src:      "<nerve>\n<id\n",
			wantLine: 2,
			wantErr:  ErrSyntax,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLegacy(strings.NewReader(tt.src))
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *SyntaxError", err)
			}
			if se.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", se.Line, tt.wantLine)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseYAML_RejectsUnknownField(t *testing.T) {
	_, err := ParseYAML([]byte("nodes:\n  - {id: 1, kind: nerve, colour: red}\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseYAML_UnknownKind(t *testing.T) {
	_, err := ParseYAML([]byte("nodes:\n  - {id: 1, kind: glia}\n"))
	if !errors.Is(err, topology.ErrUnknownKind) {
		t.Errorf("error = %v, want ErrUnknownKind", err)
	}
}

func TestParseYAML_Empty(t *testing.T) {
	doc, err := ParseYAML(nil)
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	if len(doc.Nodes) != 0 || doc.Declared != (topology.Declared{}) {
		t.Errorf("empty document = %+v", doc)
	}
}

func TestParseHCL_MissingAttribute(t *testing.T) {
	src := "edge {\n  from = 1\n  to = 2\n  max_value = 5\n}\n"
	if _, err := ParseHCL([]byte(src), "missing.hcl"); err == nil {
		t.Fatal("expected error for edge without direction")
	}
}

func TestParseHCL_Locals(t *testing.T) {
	src := `
locals {
  doubled = local.trunk * 2
}

locals {
  trunk = 25
  kind  = "motor"
}

node "nerve" {
  id = 1
}

node "neuron" {
  id   = 2
  type = local.kind
}

edge {
  from      = 1
  to        = 2
  direction = "unidirectional"
  max_value = local.doubled
}
`
	doc, err := ParseHCL([]byte(src), "locals.hcl")
	if err != nil {
		t.Fatalf("ParseHCL: %v", err)
	}
	if got := doc.Edges[0].MaxCapacity; got != 50 {
		t.Errorf("max capacity = %v, want 50", got)
	}
	if got := doc.Nodes[1].Subtype; got != topology.Motor {
		t.Errorf("subtype = %v, want motor", got)
	}
}

func TestParseHCL_LocalsErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown local", "locals {\n  a = local.missing\n}\n"},
		{"cycle", "locals {\n  a = local.b\n  b = local.a\n}\n"},
		{"duplicate", "locals {\n  a = 1\n}\nlocals {\n  a = 2\n}\n"},
		{"undefined in edge", "edge {\n  from = 1\n  to = 2\n  direction = \"unidirectional\"\n  max_value = local.cap\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseHCL([]byte(tt.src), "locals.hcl"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseHCL_SyntaxError(t *testing.T) {
	if _, err := ParseHCL([]byte("node \"nerve\" {"), "broken.hcl"); err == nil {
		t.Fatal("expected error for unterminated block")
	}
}

func TestLoad_CountMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	src := "counts: {neurons: 3}\nnodes:\n  - {id: 1, kind: neuron, type: sensory}\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if !errors.Is(err, topology.ErrCountMismatch) {
		t.Errorf("Load error = %v, want ErrCountMismatch", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.graph")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load error = %v, want ErrNotExist", err)
	}
}

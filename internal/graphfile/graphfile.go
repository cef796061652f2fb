// Package graphfile reads brain graph descriptions into a topology.
//
// Three formats are understood, chosen by file extension:
//
//	.yaml, .yml  YAML document (see ParseYAML)
//	.hcl         HCL document (see ParseHCL)
//	anything else: the line-oriented tag format of legacy brain
//	graph files (see ParseLegacy)
//
// All formats build the same intermediate Document, which is validated by
// topology.New. Edge weightings that a file does not mention are 1.0.
package graphfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/neurosim/internal/constants"
	"github.com/nvandessel/neurosim/internal/topology"
)

// Format identifies a graph file encoding.
type Format string

const (
	FormatLegacy Format = "legacy"
	FormatYAML   Format = "yaml"
	FormatHCL    Format = "hcl"
)

// DetectFormat picks a format from the file extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".hcl":
		return FormatHCL
	default:
		return FormatLegacy
	}
}

// ParseFormat maps a format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatLegacy, FormatYAML, FormatHCL:
		return f, nil
	}
	return "", fmt.Errorf("unknown graph format %q (must be legacy, yaml or hcl)", s)
}

// Document is a parsed but not yet validated graph description.
type Document struct {
	Declared topology.Declared
	Nodes    []topology.Node
	Edges    []topology.Edge
}

// Topology validates the document and builds the immutable topology.
func (d *Document) Topology() (*topology.Topology, error) {
	return topology.New(d.Declared, d.Nodes, d.Edges)
}

// Load reads the graph file at path in the format implied by its extension.
func Load(path string) (*topology.Topology, error) {
	return LoadFormat(path, DetectFormat(path))
}

// LoadFormat reads the graph file at path in the given format.
func LoadFormat(path string, format Format) (*topology.Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph file: %w", err)
	}

	var doc *Document
	switch format {
	case FormatYAML:
		doc, err = ParseYAML(data)
	case FormatHCL:
		doc, err = ParseHCL(data, path)
	case FormatLegacy:
		doc, err = ParseLegacy(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unknown graph format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	topo, err := doc.Topology()
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return topo, nil
}

// weighting builds an edge weighting from sparse index/value pairs keyed by
// signal type. Missing types keep the unit weight.
func weighting(edge int, sparse map[string]float64) (topology.Weighting, error) {
	w := topology.UnitWeighting()
	for key, v := range sparse {
		idx, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || idx < 0 || idx >= constants.NumSignalTypes {
			return w, &topology.LoadError{Record: "edge", Index: edge,
				Err: fmt.Errorf("%w: %q", topology.ErrWeightIndexBounds, key)}
		}
		w[idx] = v
	}
	return w, nil
}

// countDeclared fills in any header count the file left unset from the
// records themselves.
func countDeclared(neurons, nerves, edges *int, doc *Document) {
	var nn, nv int
	for _, n := range doc.Nodes {
		if n.Kind == topology.Nerve {
			nv++
		} else {
			nn++
		}
	}
	doc.Declared = topology.Declared{Neurons: nn, Nerves: nv, Edges: len(doc.Edges)}
	if neurons != nil {
		doc.Declared.Neurons = *neurons
	}
	if nerves != nil {
		doc.Declared.Nerves = *nerves
	}
	if edges != nil {
		doc.Declared.Edges = *edges
	}
}

// nodeSubtype resolves the subtype of a node record. Neurons must name one;
// nerves ignore it.
func nodeSubtype(kind topology.Kind, name string, index int) (topology.Subtype, error) {
	if kind == topology.Nerve && name == "" {
		return topology.Sensory, nil
	}
	st, err := topology.ParseSubtype(name)
	if err != nil && kind == topology.Neuron {
		return 0, &topology.LoadError{Record: "node", Index: index, Err: err}
	}
	return st, nil
}

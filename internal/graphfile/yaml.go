package graphfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/neurosim/internal/topology"
)

type yamlCounts struct {
	Neurons *int `yaml:"neurons"`
	Nerves  *int `yaml:"nerves"`
	Edges   *int `yaml:"edges"`
}

type yamlNode struct {
	ID   int     `yaml:"id"`
	Kind string  `yaml:"kind"`
	Type string  `yaml:"type"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
	Z    float64 `yaml:"z"`
}

type yamlEdge struct {
	From      int                `yaml:"from"`
	To        int                `yaml:"to"`
	Direction string             `yaml:"direction"`
	MaxValue  float64            `yaml:"max_value"`
	Weighting map[string]float64 `yaml:"weighting"`
}

type yamlFile struct {
	Counts yamlCounts `yaml:"counts"`
	Nodes  []yamlNode `yaml:"nodes"`
	Edges  []yamlEdge `yaml:"edges"`
}

// ParseYAML reads a YAML graph description:
//
//	counts: {neurons: 1, nerves: 1, edges: 1}
//	nodes:
//	  - {id: 10, kind: nerve}
//	  - {id: 20, kind: neuron, type: motor, x: 1.5}
//	edges:
//	  - {from: 10, to: 20, direction: unidirectional, max_value: 50, weighting: {0: 1.5}}
//
// The counts block is optional; omitted counts are taken from the records.
// Unknown fields are rejected.
func ParseYAML(data []byte) (*Document, error) {
	var f yamlFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding yaml graph: %w", err)
	}

	doc := &Document{
		Nodes: make([]topology.Node, 0, len(f.Nodes)),
		Edges: make([]topology.Edge, 0, len(f.Edges)),
	}
	for i, n := range f.Nodes {
		node, err := buildNode(i, n.ID, n.Kind, n.Type, n.X, n.Y, n.Z)
		if err != nil {
			return nil, err
		}
		doc.Nodes = append(doc.Nodes, node)
	}
	for i, e := range f.Edges {
		edge, err := buildEdge(i, e.From, e.To, e.Direction, e.MaxValue, e.Weighting)
		if err != nil {
			return nil, err
		}
		doc.Edges = append(doc.Edges, edge)
	}
	countDeclared(f.Counts.Neurons, f.Counts.Nerves, f.Counts.Edges, doc)
	return doc, nil
}

// buildNode converts a structured node record.
func buildNode(index, id int, kind, subtype string, x, y, z float64) (topology.Node, error) {
	k, err := topology.ParseKind(kind)
	if err != nil {
		return topology.Node{}, &topology.LoadError{Record: "node", Index: index, Err: err}
	}
	st, err := nodeSubtype(k, subtype, index)
	if err != nil {
		return topology.Node{}, err
	}
	return topology.Node{ID: id, Kind: k, Subtype: st, X: x, Y: y, Z: z}, nil
}

// buildEdge converts a structured edge record.
func buildEdge(index, from, to int, direction string, maxValue float64, weights map[string]float64) (topology.Edge, error) {
	dir, err := topology.ParseDirection(direction)
	if err != nil {
		return topology.Edge{}, &topology.LoadError{Record: "edge", Index: index, Err: err}
	}
	w, err := weighting(index, weights)
	if err != nil {
		return topology.Edge{}, err
	}
	return topology.Edge{From: from, To: to, Direction: dir, Weighting: w, MaxCapacity: maxValue}, nil
}

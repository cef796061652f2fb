package graphfile

import (
	"fmt"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

type hclCounts struct {
	Neurons *int `hcl:"neurons,optional"`
	Nerves  *int `hcl:"nerves,optional"`
	Edges   *int `hcl:"edges,optional"`
}

type hclNode struct {
	Kind string  `hcl:"kind,label"`
	ID   int     `hcl:"id"`
	Type string  `hcl:"type,optional"`
	X    float64 `hcl:"x,optional"`
	Y    float64 `hcl:"y,optional"`
	Z    float64 `hcl:"z,optional"`
}

type hclEdge struct {
	From      int                `hcl:"from"`
	To        int                `hcl:"to"`
	Direction string             `hcl:"direction"`
	MaxValue  float64            `hcl:"max_value"`
	Weighting map[string]float64 `hcl:"weighting,optional"`
}

// hclLocalsBlock holds named values that node and edge blocks reference as
// local.<name>.
type hclLocalsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type hclLocalsPass struct {
	Locals []*hclLocalsBlock `hcl:"locals,block"`
	Remain hcl.Body          `hcl:",remain"`
}

type hclGraphFile struct {
	Counts *hclCounts `hcl:"counts,block"`
	Nodes  []*hclNode `hcl:"node,block"`
	Edges  []*hclEdge `hcl:"edge,block"`
}

// ParseHCL reads an HCL graph description. filename is used in diagnostics.
//
//	locals {
//	  trunk = 50
//	}
//
//	counts {
//	  neurons = 1
//	}
//
//	node "nerve" {
//	  id = 10
//	}
//
//	node "neuron" {
//	  id   = 20
//	  type = "motor"
//	}
//
//	edge {
//	  from      = 10
//	  to        = 20
//	  direction = "unidirectional"
//	  max_value = local.trunk
//	  weighting = { "0" = 1.5 }
//	}
func ParseHCL(data []byte, filename string) (*Document, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL graph %s: %w", filename, diags)
	}

	var pass hclLocalsPass
	diags = gohcl.DecodeBody(file.Body, nil, &pass)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL graph %s: %w", filename, diags)
	}
	evalCtx, diags := evalLocals(pass.Locals)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to evaluate locals in %s: %w", filename, diags)
	}

	var parsed hclGraphFile
	diags = gohcl.DecodeBody(pass.Remain, evalCtx, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL graph %s: %w", filename, diags)
	}

	doc := &Document{}
	for i, n := range parsed.Nodes {
		node, err := buildNode(i, n.ID, n.Kind, n.Type, n.X, n.Y, n.Z)
		if err != nil {
			return nil, err
		}
		doc.Nodes = append(doc.Nodes, node)
	}
	for i, e := range parsed.Edges {
		edge, err := buildEdge(i, e.From, e.To, e.Direction, e.MaxValue, e.Weighting)
		if err != nil {
			return nil, err
		}
		doc.Edges = append(doc.Edges, edge)
	}

	counts := parsed.Counts
	if counts == nil {
		counts = &hclCounts{}
	}
	countDeclared(counts.Neurons, counts.Nerves, counts.Edges, doc)
	return doc, nil
}

// evalLocals evaluates every locals attribute. A local may reference other
// locals in any order; references that never resolve are reported as
// errors on the expressions that hold them.
func evalLocals(blocks []*hclLocalsBlock) (*hcl.EvalContext, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	pending := map[string]*hcl.Attribute{}
	for _, b := range blocks {
		attrs, d := b.Body.JustAttributes()
		diags = append(diags, d...)
		for name, attr := range attrs {
			if _, dup := pending[name]; dup {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate local",
					Detail:   fmt.Sprintf("local.%s is defined more than once.", name),
					Subject:  attr.NameRange.Ptr(),
				})
				continue
			}
			pending[name] = attr
		}
	}
	if diags.HasErrors() {
		return nil, diags
	}

	values := map[string]cty.Value{}
	ctx := &hcl.EvalContext{Variables: map[string]cty.Value{"local": cty.EmptyObjectVal}}
	for len(pending) > 0 {
		var ready []string
		for name, attr := range pending {
			if localsResolved(attr.Expr, values) {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			break
		}
		slices.Sort(ready)
		for _, name := range ready {
			v, d := pending[name].Expr.Value(ctx)
			diags = append(diags, d...)
			values[name] = v
			delete(pending, name)
		}
		ctx.Variables["local"] = cty.ObjectVal(values)
	}

	// Whatever is left refers to an unknown local or to itself; evaluating
	// it produces the diagnostic.
	for _, name := range sortedKeys(pending) {
		_, d := pending[name].Expr.Value(ctx)
		diags = append(diags, d...)
	}
	return ctx, diags
}

func localsResolved(expr hcl.Expression, values map[string]cty.Value) bool {
	for _, tr := range expr.Variables() {
		if tr.RootName() != "local" || len(tr) < 2 {
			continue
		}
		attr, ok := tr[1].(hcl.TraverseAttr)
		if !ok {
			continue
		}
		if _, ok := values[attr.Name]; !ok {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

package graphfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nvandessel/neurosim/internal/topology"
)

// ErrSyntax marks a malformed line in a legacy graph file.
var ErrSyntax = errors.New("graph file syntax error")

// SyntaxError reports the line a legacy parse failed on.
type SyntaxError struct {
	Line int
	Err  error
}

func (e *SyntaxError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *SyntaxError) Unwrap() error { return e.Err }

type legacyMode int

const (
	modeNone legacyMode = iota
	modeNode
	modeEdge
)

// legacyParser holds the state of a ParseLegacy call.
type legacyParser struct {
	doc  Document
	mode legacyMode

	neurons, nerves, edges *int

	subtype   string
	weights   map[string]float64
	direction string
}

// ParseLegacy reads the line-oriented tag format:
//
//	% comment
//	<num_neurons>1</num_neurons>
//	<num_nerves>1</num_nerves>
//	<num_edges>1</num_edges>
//	<nerve>
//	  <id>10</id> <x>0.5</x> <y>0</y> <z>1</z>
//	</nerve>
//	<neuron>
//	  <id>20</id> <type>motor</type>
//	</neuron>
//	<edge>
//	  <from>10</from> <to>20</to>
//	  <direction>unidirectional</direction>
//	  <max_value>50</max_value>
//	  <weighting_0>1.5</weighting_0>
//	</edge>
//
// A line may hold any number of tags; a value tag's closing tag is optional.
// Text outside tags is an error. Node kind comes from the enclosing block;
// the header counts must match the records.
func ParseLegacy(r io.Reader) (*Document, error) {
	p := &legacyParser{}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "%") {
			continue
		}
		if err := p.parseLine(text); err != nil {
			return nil, &SyntaxError{Line: line, Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading graph: %w", err)
	}
	if p.mode != modeNone {
		return nil, &SyntaxError{Line: line, Err: fmt.Errorf("%w: unterminated block", ErrSyntax)}
	}

	countDeclared(p.neurons, p.nerves, p.edges, &p.doc)
	return &p.doc, nil
}

func (p *legacyParser) parseLine(text string) error {
	tags, err := splitTags(text)
	if err != nil {
		return err
	}
	for _, tv := range tags {
		if err := p.parseTag(tv.tag, tv.value); err != nil {
			return err
		}
	}
	return nil
}

func (p *legacyParser) parseTag(tag, value string) error {
	switch tag {
	case "num_neurons":
		return parseCount(value, &p.neurons)
	case "num_nerves":
		return parseCount(value, &p.nerves)
	case "num_edges":
		return parseCount(value, &p.edges)

	case "neuron", "nerve":
		if p.mode != modeNone {
			return fmt.Errorf("%w: <%s> inside another block", ErrSyntax, tag)
		}
		kind, _ := topology.ParseKind(tag)
		p.doc.Nodes = append(p.doc.Nodes, topology.Node{Kind: kind})
		p.mode = modeNode
		p.subtype = ""
		return nil
	case "/neuron", "/nerve":
		if p.mode != modeNode {
			return fmt.Errorf("%w: <%s> without opening tag", ErrSyntax, tag)
		}
		p.mode = modeNone
		idx := len(p.doc.Nodes) - 1
		n := &p.doc.Nodes[idx]
		st, err := nodeSubtype(n.Kind, p.subtype, idx)
		if err != nil {
			return err
		}
		n.Subtype = st
		return nil

	case "edge":
		if p.mode != modeNone {
			return fmt.Errorf("%w: <edge> inside another block", ErrSyntax)
		}
		p.doc.Edges = append(p.doc.Edges, topology.Edge{})
		p.mode = modeEdge
		p.weights = make(map[string]float64)
		p.direction = ""
		return nil
	case "/edge":
		if p.mode != modeEdge {
			return fmt.Errorf("%w: </edge> without opening tag", ErrSyntax)
		}
		p.mode = modeNone
		idx := len(p.doc.Edges) - 1
		e := &p.doc.Edges[idx]
		w, err := weighting(idx, p.weights)
		if err != nil {
			return err
		}
		e.Weighting = w
		dir, err := topology.ParseDirection(p.direction)
		if err != nil {
			return &topology.LoadError{Record: "edge", Index: idx, Err: err}
		}
		e.Direction = dir
		return nil
	}

	if p.mode == modeNode {
		return p.nodeField(tag, value)
	}
	if p.mode == modeEdge {
		return p.edgeField(tag, value)
	}
	return fmt.Errorf("%w: <%s> outside a block", ErrSyntax, tag)
}

func (p *legacyParser) nodeField(tag, value string) error {
	n := &p.doc.Nodes[len(p.doc.Nodes)-1]
	var err error
	switch tag {
	case "id":
		n.ID, err = strconv.Atoi(value)
	case "x":
		n.X, err = strconv.ParseFloat(value, 64)
	case "y":
		n.Y, err = strconv.ParseFloat(value, 64)
	case "z":
		n.Z, err = strconv.ParseFloat(value, 64)
	case "type":
		p.subtype = value
	default:
		return fmt.Errorf("%w: unexpected <%s> in node", ErrSyntax, tag)
	}
	if err != nil {
		return fmt.Errorf("%w: <%s>: %v", ErrSyntax, tag, err)
	}
	return nil
}

func (p *legacyParser) edgeField(tag, value string) error {
	e := &p.doc.Edges[len(p.doc.Edges)-1]
	var err error
	switch {
	case tag == "from":
		e.From, err = strconv.Atoi(value)
	case tag == "to":
		e.To, err = strconv.Atoi(value)
	case tag == "direction":
		p.direction = value
	case tag == "max_value":
		e.MaxCapacity, err = strconv.ParseFloat(value, 64)
	case strings.HasPrefix(tag, "weighting_"):
		var v float64
		v, err = strconv.ParseFloat(value, 64)
		p.weights[strings.TrimPrefix(tag, "weighting_")] = v
	default:
		return fmt.Errorf("%w: unexpected <%s> in edge", ErrSyntax, tag)
	}
	if err != nil {
		return fmt.Errorf("%w: <%s>: %v", ErrSyntax, tag, err)
	}
	return nil
}

type tagValue struct {
	tag, value string
}

// splitTags splits a line into its tags. Each tag is either "<tag>value",
// optionally closed by "</tag>", or a bare block tag such as "<edge>". Text
// outside tags and mismatched closing tags are syntax errors.
func splitTags(text string) ([]tagValue, error) {
	var out []tagValue
	rest := strings.TrimSpace(text)
	for rest != "" {
		if rest[0] != '<' {
			return nil, fmt.Errorf("%w: expected a tag, got %q", ErrSyntax, rest)
		}
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated tag %q", ErrSyntax, rest)
		}
		tag := rest[1:end]
		rest = rest[end+1:]

		value := rest
		if i := strings.IndexByte(rest, '<'); i >= 0 {
			value = rest[:i]
		}
		rest = strings.TrimSpace(rest[len(value):])
		value = strings.TrimSpace(value)

		if closing := "</" + tag + ">"; strings.HasPrefix(rest, closing) {
			rest = strings.TrimSpace(rest[len(closing):])
		} else if value != "" && strings.HasPrefix(rest, "</") {
			return nil, fmt.Errorf("%w: <%s> closed by %q", ErrSyntax, tag, rest)
		}
		out = append(out, tagValue{tag: tag, value: value})
	}
	return out, nil
}

func parseCount(value string, dst **int) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fmt.Errorf("%w: invalid count %q", ErrSyntax, value)
	}
	*dst = &n
	return nil
}

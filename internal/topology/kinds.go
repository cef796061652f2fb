package topology

import (
	"fmt"
	"strings"
)

// Kind distinguishes neurons from nerves.
type Kind int

const (
	Neuron Kind = iota
	Nerve
)

// String returns the lowercase name used in graph files.
func (k Kind) String() string {
	switch k {
	case Neuron:
		return "neuron"
	case Nerve:
		return "nerve"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps "neuron" or "nerve" (case-insensitive) to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "neuron":
		return Neuron, nil
	case "nerve":
		return Nerve, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Subtype is the neuron category; it selects the weight a neuron applies to
// every signal it handles.
type Subtype int

const (
	Sensory Subtype = iota
	Motor
	Unipolar
	Pseudounipolar
	Bipolar
	Multipolar
)

var subtypeNames = [...]string{"sensory", "motor", "unipolar", "pseudounipolar", "bipolar", "multipolar"}

// String returns the lowercase name used in graph files.
func (s Subtype) String() string {
	if s < 0 || int(s) >= len(subtypeNames) {
		return fmt.Sprintf("subtype(%d)", int(s))
	}
	return subtypeNames[s]
}

// Valid reports whether s is one of the six known categories.
func (s Subtype) Valid() bool {
	return s >= 0 && int(s) < len(subtypeNames)
}

// ParseSubtype maps a subtype name (case-insensitive) to a Subtype.
func ParseSubtype(s string) (Subtype, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range subtypeNames {
		if n == name {
			return Subtype(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSubtype, s)
}

// Direction controls which endpoints may originate signals on an edge.
type Direction int

const (
	// Bidirectional edges can be used as an outgoing path from either end.
	Bidirectional Direction = iota
	// Unidirectional edges only carry signals from From to To.
	Unidirectional
)

// String returns the lowercase name used in graph files.
func (d Direction) String() string {
	switch d {
	case Bidirectional:
		return "bidirectional"
	case Unidirectional:
		return "unidirectional"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// ParseDirection maps "unidirectional" or "bidirectional" to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bidirectional":
		return Bidirectional, nil
	case "unidirectional":
		return Unidirectional, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// MarshalText encodes the subtype by name.
func (s Subtype) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a subtype name.
func (s *Subtype) UnmarshalText(b []byte) error {
	v, err := ParseSubtype(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MarshalText encodes the direction by name.
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText decodes a direction name.
func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

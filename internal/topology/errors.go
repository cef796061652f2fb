package topology

import (
	"errors"
	"fmt"
)

var (
	ErrCountMismatch     = errors.New("record count does not match declared count")
	ErrUnknownKind       = errors.New("unknown node kind")
	ErrUnknownSubtype    = errors.New("unknown neuron subtype")
	ErrUnknownDirection  = errors.New("unknown edge direction")
	ErrDuplicateID       = errors.New("duplicate node id")
	ErrDanglingEdge      = errors.New("edge references unknown node")
	ErrInvalidCapacity   = errors.New("edge capacity must be positive")
	ErrInvalidWeighting  = errors.New("edge weighting must be non-negative")
	ErrWeightIndexBounds = errors.New("weighting index out of range")
)

// LoadError reports a fatal problem with a topology record. The whole run
// must be aborted: node and edge indices depend on the complete topology.
type LoadError struct {
	Record string // "node", "edge" or "header"
	Index  int    // position of the offending record, -1 for header errors
	Err    error
}

func (e *LoadError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("topology %s: %v", e.Record, e.Err)
	}
	return fmt.Sprintf("topology %s %d: %v", e.Record, e.Index, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

package graph

import (
	"fmt"

	"github.com/cwbudde/algo-synth/fault"
)

// Sentinel errors for the graph package.
var (
	// ErrCycleDetected is returned when a connection would close a cycle.
	ErrCycleDetected = fmt.Errorf("%w: cycle detected", fault.ErrInvalidTopology)

	// ErrInvalidPort is returned for missing ports, wrong port direction or
	// incompatible port kinds.
	ErrInvalidPort = fmt.Errorf("%w: invalid port", fault.ErrInvalidTopology)

	// ErrDuplicateConnection is returned when the exact edge already exists.
	ErrDuplicateConnection = fmt.Errorf("%w: duplicate connection", fault.ErrInvalidTopology)

	// ErrOutputHasConsumers is returned when the output node would feed
	// another node.
	ErrOutputHasConsumers = fmt.Errorf("%w: output node must be a sink", fault.ErrInvalidTopology)

	// ErrUnknownParam is returned for parameter ids the node kind does not declare.
	ErrUnknownParam = fmt.Errorf("%w: unknown parameter", fault.ErrNotFound)
)

// CycleError provides details about a rejected cycle.
type CycleError struct {
	Path []NodeID
}

// Error returns the cycle description.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %v", e.Path)
}

// Unwrap lets errors.Is match ErrCycleDetected and fault.ErrInvalidTopology.
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

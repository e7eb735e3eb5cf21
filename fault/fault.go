// Package fault defines the error taxonomy shared by the model packages.
//
// Package-specific errors wrap one of these sentinels so callers can test
// either the precise condition or its category with errors.Is.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a node, clip, track, scene or audio id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTopology covers cycles, bad ports and duplicate connections.
	ErrInvalidTopology = errors.New("invalid topology")

	// ErrInvalidRange is returned for parameter, tempo or index values out of bounds.
	ErrInvalidRange = errors.New("invalid range")

	// ErrInvalidAudioReference is returned when an audio pool entry is missing,
	// empty, or still referenced.
	ErrInvalidAudioReference = errors.New("invalid audio reference")

	// ErrSlotConflict marks a timeline placement collision. It is resolved by
	// replacement and only ever reported through logs.
	ErrSlotConflict = errors.New("slot conflict")
)

// NotFoundError names the kind and id of a missing entity.
type NotFoundError struct {
	Kind string
	ID   uint32
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// Unwrap lets errors.Is match ErrNotFound.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NotFound returns a NotFoundError for the given kind and id.
func NotFound(kind string, id uint32) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// Range returns an ErrInvalidRange error with a formatted detail message.
func Range(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRange, fmt.Sprintf(format, args...))
}

package engine

import "sync/atomic"

// Snapshot is an immutable render state: a compiled graph plan and a
// compiled arrangement plan. Unchanged plans are shared between snapshots.
//
// The reference held by the engine is dropped on the render thread only by
// pushing the snapshot onto the reclaim queue; the session drains that queue
// and releases the memory on the control thread.
type Snapshot struct {
	Version     uint64
	Graph       *GraphPlan
	Arrangement *ArrangementPlan

	refs atomic.Int32
}

// NewSnapshot returns a snapshot holding one reference.
func NewSnapshot(version uint64, g *GraphPlan, a *ArrangementPlan) *Snapshot {
	s := &Snapshot{Version: version, Graph: g, Arrangement: a}
	s.refs.Store(1)
	return s
}

// Retain adds a reference.
func (s *Snapshot) Retain() {
	s.refs.Add(1)
}

// Release drops a reference and reports whether it was the last one.
func (s *Snapshot) Release() bool {
	return s.refs.Add(-1) == 0
}

// Refs returns the current reference count.
func (s *Snapshot) Refs() int32 {
	return s.refs.Load()
}

// Package param tracks parameter gestures and automation lanes, and provides
// the fixed-duration smoother the engine applies to parameter targets.
package param

import (
	"slices"

	"github.com/cwbudde/algo-synth/graph"
	"github.com/cwbudde/algo-synth/node"
)

// Key identifies one parameter of one node instance.
type Key struct {
	Node  graph.NodeID
	Param node.ParamID
}

// Point is one automation value at a beat position.
type Point struct {
	Beat  float64
	Value float32
}

// Lane is a beat-sorted automation curve.
type Lane []Point

// ValueAt returns the value of the last point at or before beat. Before the
// first point the first value holds. ok is false for an empty lane.
func (l Lane) ValueAt(beat float64) (v float32, ok bool) {
	if len(l) == 0 {
		return 0, false
	}
	i, found := slices.BinarySearchFunc(l, beat, func(p Point, b float64) int {
		switch {
		case p.Beat < b:
			return -1
		case p.Beat > b:
			return 1
		}
		return 0
	})
	if found {
		return l[i].Value, true
	}
	if i == 0 {
		return l[0].Value, true
	}
	return l[i-1].Value, true
}

// Clone returns an independent copy.
func (l Lane) Clone() Lane {
	return slices.Clone(l)
}

// Span returns the first and last beat of the lane.
func (l Lane) Span() (start, end float64) {
	if len(l) == 0 {
		return 0, 0
	}
	return l[0].Beat, l[len(l)-1].Beat
}

// WriteKind classifies a parameter write.
type WriteKind uint8

const (
	// Jump is a discrete value change outside any gesture.
	Jump WriteKind = iota
	// Sample is an automation sample recorded inside an open gesture.
	Sample
)

func (k WriteKind) String() string {
	if k == Sample {
		return "sample"
	}
	return "jump"
}

// Store holds open gestures and recorded lanes. It belongs to the control
// thread and is not safe for concurrent use.
type Store struct {
	open    map[Key][]Point
	lanes   map[Key]Lane
	version uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		open:  make(map[Key][]Point),
		lanes: make(map[Key]Lane),
	}
}

// Version changes whenever a lane changes.
func (s *Store) Version() uint64 {
	return s.version
}

// Begin opens a gesture on k. A second Begin before End is ignored and
// reports false.
func (s *Store) Begin(k Key) bool {
	if _, ok := s.open[k]; ok {
		return false
	}
	s.open[k] = []Point{}
	return true
}

// Open reports whether a gesture is open on k.
func (s *Store) Open(k Key) bool {
	_, ok := s.open[k]
	return ok
}

// Write classifies a value write. Inside an open gesture the value is
// recorded at beat; a sample at the same beat as the previous one replaces it.
func (s *Store) Write(k Key, v float32, beat float64) WriteKind {
	rec, ok := s.open[k]
	if !ok {
		return Jump
	}
	if n := len(rec); n > 0 && rec[n-1].Beat == beat {
		rec[n-1].Value = v
	} else {
		rec = append(rec, Point{Beat: beat, Value: v})
	}
	s.open[k] = rec
	return Sample
}

// End closes the gesture on k and merges its recording into the lane: points
// inside the recorded span are replaced. It returns the resulting lane and
// false if no gesture was open.
func (s *Store) End(k Key) (Lane, bool) {
	rec, ok := s.open[k]
	if !ok {
		return nil, false
	}
	delete(s.open, k)
	if len(rec) == 0 {
		return s.lanes[k].Clone(), true
	}

	// Loop wraps can record out of order; the latest write at a beat wins.
	slices.SortStableFunc(rec, func(a, b Point) int {
		switch {
		case a.Beat < b.Beat:
			return -1
		case a.Beat > b.Beat:
			return 1
		}
		return 0
	})
	dedup := rec[:0]
	for _, p := range rec {
		if n := len(dedup); n > 0 && dedup[n-1].Beat == p.Beat {
			dedup[n-1] = p
			continue
		}
		dedup = append(dedup, p)
	}

	first, last := dedup[0].Beat, dedup[len(dedup)-1].Beat
	old := s.lanes[k]
	merged := make(Lane, 0, len(old)+len(dedup))
	for _, p := range old {
		if p.Beat < first {
			merged = append(merged, p)
		}
	}
	merged = append(merged, dedup...)
	for _, p := range old {
		if p.Beat > last {
			merged = append(merged, p)
		}
	}
	s.lanes[k] = merged
	s.version++
	return merged.Clone(), true
}

// Lane returns a copy of the lane for k.
func (s *Store) Lane(k Key) (Lane, bool) {
	l, ok := s.lanes[k]
	if !ok {
		return nil, false
	}
	return l.Clone(), true
}

// ClearLane deletes the lane for k.
func (s *Store) ClearLane(k Key) bool {
	if _, ok := s.lanes[k]; !ok {
		return false
	}
	delete(s.lanes, k)
	s.version++
	return true
}

// Lanes returns copies of all lanes.
func (s *Store) Lanes() map[Key]Lane {
	out := make(map[Key]Lane, len(s.lanes))
	for k, l := range s.lanes {
		out[k] = l.Clone()
	}
	return out
}

// Keys returns the keys of all lanes ordered by node then parameter.
func (s *Store) Keys() []Key {
	keys := make([]Key, 0, len(s.lanes))
	for k := range s.lanes {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Key) int {
		if a.Node != b.Node {
			return int(a.Node) - int(b.Node)
		}
		return int(a.Param) - int(b.Param)
	})
	return keys
}

// ForgetNode drops every gesture and lane of a removed node.
func (s *Store) ForgetNode(id graph.NodeID) {
	for k := range s.open {
		if k.Node == id {
			delete(s.open, k)
		}
	}
	changed := false
	for k := range s.lanes {
		if k.Node == id {
			delete(s.lanes, k)
			changed = true
		}
	}
	if changed {
		s.version++
	}
}

package arrange

import (
	"slices"
)

// ClipID identifies a clip. Zero means no clip.
type ClipID uint32

// Note is a note event relative to the clip start.
type Note struct {
	Start    float64
	Duration float64
	Pitch    uint8
	Velocity float32
}

// End returns the release beat.
func (n Note) End() float64 {
	return n.Start + n.Duration
}

// AudioRegion plays part of a pool entry relative to the clip start.
type AudioRegion struct {
	Start    float64
	Duration float64
	Audio    AudioID
	// Offset into the source, in beats at the playing tempo.
	Offset float64
	Gain   float32
}

// End returns the beat at which the region stops.
func (r AudioRegion) End() float64 {
	return r.Start + r.Duration
}

// Clip is a pattern of notes and audio regions. It is not scheduled by itself.
type Clip struct {
	ID      ClipID
	Name    string
	Length  float64
	Looping bool
	Notes   []Note
	Regions []AudioRegion
}

func (c *Clip) clone() Clip {
	cp := *c
	cp.Notes = slices.Clone(c.Notes)
	cp.Regions = slices.Clone(c.Regions)
	return cp
}

func (c *Clip) references(id AudioID) bool {
	return slices.ContainsFunc(c.Regions, func(r AudioRegion) bool { return r.Audio == id })
}

// insertNote keeps notes ordered by start; equal starts keep insertion order.
func (c *Clip) insertNote(n Note) int {
	i, _ := slices.BinarySearchFunc(c.Notes, n.Start, func(e Note, start float64) int {
		if e.Start <= start {
			return -1
		}
		return 1
	})
	c.Notes = slices.Insert(c.Notes, i, n)
	return i
}

func (c *Clip) insertRegion(r AudioRegion) int {
	i, _ := slices.BinarySearchFunc(c.Regions, r.Start, func(e AudioRegion, start float64) int {
		if e.Start <= start {
			return -1
		}
		return 1
	})
	c.Regions = slices.Insert(c.Regions, i, r)
	return i
}

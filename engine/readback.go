package engine

import "github.com/cwbudde/algo-synth/arrange"

// TrackReadback is the per-track part of a Readback.
type TrackReadback struct {
	Track arrange.TrackID
	// Clip is the launched clip, or the timeline clip under the playhead.
	Clip arrange.ClipID
	// Launched is true when Clip was started from a slot.
	Launched bool
	Peak     float32
}

// Readback is the engine state published after every Process call. It is a
// plain value so publishing never allocates.
type Readback struct {
	SamplePosition int64
	BeatPosition   float64
	Tempo          float64
	Playing        bool
	Running        bool

	// CPULoad is the smoothed ratio of render time to block duration.
	CPULoad      float64
	ActiveVoices int
	PeakLeft     float32
	PeakRight    float32

	SnapshotVersion uint64
	DroppedEvents   uint64
	// ReclaimOverflow counts released snapshots left to the garbage
	// collector because the reclaim queue was full.
	ReclaimOverflow uint64

	TrackCount int
	Tracks     [MaxReadbackTracks]TrackReadback
}

// Track returns the readback entry of id.
func (r *Readback) Track(id arrange.TrackID) (TrackReadback, bool) {
	for i := 0; i < r.TrackCount; i++ {
		if r.Tracks[i].Track == id {
			return r.Tracks[i], true
		}
	}
	return TrackReadback{}, false
}

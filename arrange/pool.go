package arrange

import (
	"fmt"
	"slices"

	"github.com/cwbudde/algo-synth/fault"
)

// AudioID identifies an audio pool entry. Zero is never assigned.
type AudioID uint32

// AudioEntry is ingested audio. Entries are immutable once added, so the
// engine reads Samples without synchronization.
type AudioEntry struct {
	ID         AudioID
	Name       string
	SampleRate float64
	Channels   int
	// Samples is interleaved.
	Samples []float32
}

// Frames returns the number of sample frames.
func (e *AudioEntry) Frames() int {
	if e.Channels <= 0 {
		return 0
	}
	return len(e.Samples) / e.Channels
}

// Seconds returns the duration in seconds.
func (e *AudioEntry) Seconds() float64 {
	if e.SampleRate <= 0 {
		return 0
	}
	return float64(e.Frames()) / e.SampleRate
}

// Beats returns the duration in beats at bpm.
func (e *AudioEntry) Beats(bpm float64) float64 {
	return e.Seconds() * bpm / 60
}

// Pool stores ingested audio.
type Pool struct {
	entries map[AudioID]*AudioEntry
	nextID  AudioID
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{entries: make(map[AudioID]*AudioEntry), nextID: 1}
}

// Add ingests interleaved samples. The pool takes ownership of samples.
func (p *Pool) Add(name string, sampleRate float64, channels int, samples []float32) (AudioID, error) {
	if sampleRate <= 0 {
		return 0, fault.Range("sample rate %v", sampleRate)
	}
	if channels < 1 || channels > 2 {
		return 0, fault.Range("channel count %d", channels)
	}
	if len(samples)%channels != 0 {
		return 0, fmt.Errorf("%w: %d samples do not divide into %d channels", fault.ErrInvalidAudioReference, len(samples), channels)
	}
	id := p.nextID
	p.nextID++
	p.entries[id] = &AudioEntry{ID: id, Name: name, SampleRate: sampleRate, Channels: channels, Samples: samples}
	return id, nil
}

// Get returns the entry. The returned value must not be modified.
func (p *Pool) Get(id AudioID) (*AudioEntry, bool) {
	e, ok := p.entries[id]
	return e, ok
}

// Count returns the number of entries.
func (p *Pool) Count() int {
	return len(p.entries)
}

// IDs returns all entry ids in ascending order.
func (p *Pool) IDs() []AudioID {
	ids := make([]AudioID, 0, len(p.entries))
	for id := range p.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (p *Pool) remove(id AudioID) bool {
	if _, ok := p.entries[id]; !ok {
		return false
	}
	delete(p.entries, id)
	return true
}

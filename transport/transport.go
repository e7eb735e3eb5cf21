// Package transport holds play/stop/seek/tempo state. Transport is the
// control-side model and echo; Clock is the engine-side sample-accurate
// position.
package transport

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-synth/fault"
)

// Tempo bounds in beats per minute.
const (
	DefaultTempo = 120.0
	MaxTempo     = 999.0
)

// ErrInvalidTempo is returned for non-positive, non-finite or too large tempos.
var ErrInvalidTempo = fmt.Errorf("%w: invalid tempo", fault.ErrInvalidRange)

// State is the transport run state.
type State uint8

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// Loop is a beat region the playhead wraps inside while enabled.
type Loop struct {
	Enabled bool
	Start   float64
	End     float64
}

// Length returns the loop length in beats.
func (l Loop) Length() float64 {
	return l.End - l.Start
}

// ValidateTempo checks bpm against the accepted range.
func ValidateTempo(bpm float64) error {
	if math.IsNaN(bpm) || bpm <= 0 || bpm > MaxTempo {
		return fmt.Errorf("%w: %v bpm", ErrInvalidTempo, bpm)
	}
	return nil
}

// Transport is the control-thread transport. The run state is the one last
// requested; the engine follows it through commands. The position is an echo
// of the engine clock, refreshed through Sync.
type Transport struct {
	state  State
	tempo  float64
	beat   float64
	sample int64
	loop   Loop
}

// New returns a stopped transport at beat 0.
func New(tempo float64) (*Transport, error) {
	if err := ValidateTempo(tempo); err != nil {
		return nil, err
	}
	return &Transport{tempo: tempo}, nil
}

// Play starts playback. It reports false if already playing.
func (t *Transport) Play() bool {
	if t.state == Playing {
		return false
	}
	t.state = Playing
	return true
}

// Stop halts playback and keeps the position. It reports false if already stopped.
func (t *Transport) Stop() bool {
	if t.state == Stopped {
		return false
	}
	t.state = Stopped
	return true
}

// Seek moves the playhead, clamping negative beats to zero, and returns the
// applied position.
func (t *Transport) Seek(beat float64) float64 {
	if math.IsNaN(beat) || beat < 0 {
		beat = 0
	}
	t.beat = beat
	return beat
}

// SetTempo changes the tempo. On error the prior tempo is kept.
func (t *Transport) SetTempo(bpm float64) error {
	if err := ValidateTempo(bpm); err != nil {
		return err
	}
	t.tempo = bpm
	return nil
}

// SetLoop configures the loop region. A disabled loop may carry any bounds.
func (t *Transport) SetLoop(enabled bool, start, end float64) error {
	if enabled && (math.IsNaN(start) || math.IsNaN(end) || start < 0 || end <= start || math.IsInf(end, 0)) {
		return fault.Range("loop %v..%v", start, end)
	}
	t.loop = Loop{Enabled: enabled, Start: start, End: end}
	return nil
}

// Sync applies a position echo from the engine. The run state is left
// alone: a readback may predate the last Play or Stop.
func (t *Transport) Sync(beat float64, sample int64) {
	t.beat = beat
	t.sample = sample
}

func (t *Transport) State() State   { return t.state }
func (t *Transport) Playing() bool  { return t.state == Playing }
func (t *Transport) Tempo() float64 { return t.tempo }
func (t *Transport) Beat() float64  { return t.beat }
func (t *Transport) Sample() int64  { return t.sample }
func (t *Transport) Loop() Loop     { return t.loop }

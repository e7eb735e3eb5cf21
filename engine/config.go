package engine

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-synth/fault"
	"github.com/cwbudde/algo-synth/transport"
)

// MaxReadbackTracks bounds the per-track entries in a Readback.
const MaxReadbackTracks = 64

// Config sizes every engine resource. All allocation happens in New and in
// the control-thread compile functions; the render path allocates nothing.
type Config struct {
	SampleRate float64
	// MaxBlock is the largest block rendered in one pass. Longer Process
	// calls are split.
	MaxBlock  int
	MaxVoices int
	MaxTracks int
	// CommandQueueSize is the capacity of the command and reclaim queues.
	CommandQueueSize int
	// CommandBudget bounds the commands applied per block.
	CommandBudget int
	// Smoothing is the parameter ramp duration in seconds.
	Smoothing float64
	// LaunchQuantum is the launch grid in beats. Zero applies launches at
	// the next block.
	LaunchQuantum float64
	// MaxEvents bounds the note and region events scheduled per segment.
	MaxEvents int
	Tempo     float64
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:       48000,
		MaxBlock:         512,
		MaxVoices:        16,
		MaxTracks:        16,
		CommandQueueSize: 1024,
		CommandBudget:    256,
		Smoothing:        0.01,
		LaunchQuantum:    0,
		MaxEvents:        512,
		Tempo:            transport.DefaultTempo,
	}
}

// Validate checks every field.
func (c Config) Validate() error {
	switch {
	case !(c.SampleRate >= 8000 && c.SampleRate <= 384000):
		return fault.Range("sample rate %v", c.SampleRate)
	case c.MaxBlock < 16 || c.MaxBlock > 8192:
		return fault.Range("max block %d", c.MaxBlock)
	case c.MaxVoices < 1 || c.MaxVoices > 256:
		return fault.Range("max voices %d", c.MaxVoices)
	case c.MaxTracks < 1 || c.MaxTracks > MaxReadbackTracks:
		return fault.Range("max tracks %d", c.MaxTracks)
	case c.CommandQueueSize < 2:
		return fault.Range("command queue size %d", c.CommandQueueSize)
	case c.CommandBudget < 1:
		return fault.Range("command budget %d", c.CommandBudget)
	case !(c.Smoothing >= 0 && c.Smoothing <= 1):
		return fault.Range("smoothing %v", c.Smoothing)
	case !(c.LaunchQuantum >= 0) || math.IsInf(c.LaunchQuantum, 0):
		return fault.Range("launch quantum %v", c.LaunchQuantum)
	case c.MaxEvents < 16:
		return fault.Range("max events %d", c.MaxEvents)
	}
	if err := transport.ValidateTempo(c.Tempo); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	return nil
}

// SmoothingFrames returns the parameter ramp length in frames.
func (c Config) SmoothingFrames() int {
	return int(math.Round(c.Smoothing * c.SampleRate))
}

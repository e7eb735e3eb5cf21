package session

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cwbudde/algo-synth/engine"
	"github.com/cwbudde/algo-synth/fault"
)

// DefaultName is used when a session is created without a name.
const DefaultName = "Untitled"

// Config holds the session settings. Engine sizing fields are copied into
// the engine configuration.
type Config struct {
	Name             string
	SampleRate       float64
	MaxBlock         int
	MaxVoices        int
	MaxTracks        int
	CommandQueueSize int
	CommandBudget    int
	// Smoothing is the parameter ramp time in seconds.
	Smoothing float64
	// LaunchQuantum is the launch grid in beats; zero launches at the next
	// block.
	LaunchQuantum float64
	Tempo         float64
	// LogLevel is one of debug, info, warn or error.
	LogLevel string
}

// DefaultConfig returns the session defaults.
func DefaultConfig() Config {
	ec := engine.DefaultConfig()
	return Config{
		Name:             DefaultName,
		SampleRate:       ec.SampleRate,
		MaxBlock:         ec.MaxBlock,
		MaxVoices:        ec.MaxVoices,
		MaxTracks:        ec.MaxTracks,
		CommandQueueSize: ec.CommandQueueSize,
		CommandBudget:    ec.CommandBudget,
		Smoothing:        ec.Smoothing,
		LaunchQuantum:    ec.LaunchQuantum,
		Tempo:            ec.Tempo,
		LogLevel:         "info",
	}
}

// Engine returns the engine configuration derived from c.
func (c Config) Engine() engine.Config {
	ec := engine.DefaultConfig()
	ec.SampleRate = c.SampleRate
	ec.MaxBlock = c.MaxBlock
	ec.MaxVoices = c.MaxVoices
	ec.MaxTracks = c.MaxTracks
	ec.CommandQueueSize = c.CommandQueueSize
	ec.CommandBudget = c.CommandBudget
	ec.Smoothing = c.Smoothing
	ec.LaunchQuantum = c.LaunchQuantum
	ec.Tempo = c.Tempo
	return ec
}

// Validate checks every field.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if err := c.Engine().Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}
	return nil
}

// ParseLevel maps a level name to a slog level. The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fault.Range("log level %q", s)
}

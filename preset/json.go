// Package preset loads session configuration files. Every field is optional;
// present fields are applied onto the session defaults and validated.
package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cwbudde/algo-synth/session"
)

// File is the schema shared by JSON and YAML presets.
type File struct {
	Name             *string  `json:"name" yaml:"name"`
	SampleRate       *float64 `json:"sample_rate" yaml:"sample_rate"`
	MaxBlock         *int     `json:"max_block" yaml:"max_block"`
	MaxVoices        *int     `json:"max_voices" yaml:"max_voices"`
	MaxTracks        *int     `json:"max_tracks" yaml:"max_tracks"`
	CommandQueueSize *int     `json:"command_queue_size" yaml:"command_queue_size"`
	CommandBudget    *int     `json:"command_budget" yaml:"command_budget"`
	Smoothing        *float64 `json:"smoothing" yaml:"smoothing"`
	LaunchQuantum    *float64 `json:"launch_quantum" yaml:"launch_quantum"`
	Tempo            *float64 `json:"tempo" yaml:"tempo"`
	LogLevel         *string  `json:"log_level" yaml:"log_level"`
	// SamplePath is a WAV file loaded into the audio pool. Relative paths
	// resolve against the preset directory.
	SamplePath string                  `json:"sample_path" yaml:"sample_path"`
	Tracks     map[string]TrackSetting `json:"tracks" yaml:"tracks"`
}

// TrackSetting is a partial mixer override for the track with the same name.
type TrackSetting struct {
	Volume *float32 `json:"volume" yaml:"volume"`
	Pan    *float32 `json:"pan" yaml:"pan"`
	Mute   *bool    `json:"mute" yaml:"mute"`
	Solo   *bool    `json:"solo" yaml:"solo"`
}

// Preset is a loaded file applied onto the defaults.
type Preset struct {
	Config     session.Config
	SamplePath string
	Tracks     map[string]TrackSetting
}

// Default returns the preset equivalent of an empty file.
func Default() *Preset {
	return &Preset{Config: session.DefaultConfig()}
}

// LoadJSON loads a JSON preset and applies it on top of the defaults.
func LoadJSON(path string) (*Preset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return build(path, &f)
}

// Load dispatches on the file extension: .yaml and .yml are YAML, anything
// else is JSON.
func Load(path string) (*Preset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	}
	return LoadJSON(path)
}

func build(path string, f *File) (*Preset, error) {
	p := Default()
	if err := ApplyFile(p, f); err != nil {
		return nil, err
	}
	if p.SamplePath != "" && !filepath.IsAbs(p.SamplePath) {
		p.SamplePath = filepath.Clean(filepath.Join(filepath.Dir(path), p.SamplePath))
	}
	return p, nil
}

// ApplyFile applies a parsed file onto an existing preset. On error dst is
// unchanged.
func ApplyFile(dst *Preset, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination preset")
	}
	if f == nil {
		return nil
	}

	cfg := dst.Config
	set(&cfg.Name, f.Name)
	set(&cfg.SampleRate, f.SampleRate)
	set(&cfg.MaxBlock, f.MaxBlock)
	set(&cfg.MaxVoices, f.MaxVoices)
	set(&cfg.MaxTracks, f.MaxTracks)
	set(&cfg.CommandQueueSize, f.CommandQueueSize)
	set(&cfg.CommandBudget, f.CommandBudget)
	set(&cfg.Smoothing, f.Smoothing)
	set(&cfg.LaunchQuantum, f.LaunchQuantum)
	set(&cfg.Tempo, f.Tempo)
	set(&cfg.LogLevel, f.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	names := make([]string, 0, len(f.Tracks))
	for k := range f.Tracks {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		ts := f.Tracks[name]
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("tracks: empty track name")
		}
		if ts.Volume != nil && !(*ts.Volume >= 0 && *ts.Volume <= 1) {
			return fmt.Errorf("tracks[%s].volume must be in [0,1]", name)
		}
		if ts.Pan != nil && !(*ts.Pan >= -1 && *ts.Pan <= 1) {
			return fmt.Errorf("tracks[%s].pan must be in [-1,1]", name)
		}
	}

	dst.Config = cfg
	if f.SamplePath != "" {
		dst.SamplePath = strings.TrimSpace(f.SamplePath)
	}
	if len(f.Tracks) > 0 && dst.Tracks == nil {
		dst.Tracks = make(map[string]TrackSetting, len(f.Tracks))
	}
	for _, name := range names {
		dst.Tracks[name] = merge(dst.Tracks[name], f.Tracks[name])
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func merge(base, over TrackSetting) TrackSetting {
	if over.Volume != nil {
		base.Volume = over.Volume
	}
	if over.Pan != nil {
		base.Pan = over.Pan
	}
	if over.Mute != nil {
		base.Mute = over.Mute
	}
	if over.Solo != nil {
		base.Solo = over.Solo
	}
	return base
}

// ApplyTracks applies the mixer overrides to the tracks of s with matching
// names. Names without a track are ignored.
func (p *Preset) ApplyTracks(s *session.Session) error {
	for _, t := range s.Tracks() {
		ts, ok := p.Tracks[t.Name]
		if !ok {
			continue
		}
		if ts.Volume != nil {
			if err := s.SetTrackVolume(t.ID, *ts.Volume); err != nil {
				return err
			}
		}
		if ts.Pan != nil {
			if err := s.SetTrackPan(t.ID, *ts.Pan); err != nil {
				return err
			}
		}
		if ts.Mute != nil {
			if err := s.SetTrackMute(t.ID, *ts.Mute); err != nil {
				return err
			}
		}
		if ts.Solo != nil {
			if err := s.SetTrackSolo(t.ID, *ts.Solo); err != nil {
				return err
			}
		}
	}
	return nil
}

package session

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/cwbudde/algo-synth/arrange"
	"github.com/cwbudde/algo-synth/internal/wavio"
)

// AddAudio ingests interleaved samples into the audio pool. The pool takes
// ownership of samples.
func (s *Session) AddAudio(name string, sampleRate float64, channels int, samples []float32) (arrange.AudioID, error) {
	id, err := s.arr.AddAudio(name, sampleRate, channels, samples)
	if err != nil {
		return 0, s.rejected("add_audio", err, "name", name)
	}
	s.log.Info("audio ingested", "audio", id, "name", name, "channels", channels, "frames", len(samples)/channels)
	return id, nil
}

// ImportAudioFile reads a WAV file, resamples it to the engine rate and
// adds it to the pool under the file's base name.
func (s *Session) ImportAudioFile(path string) (arrange.AudioID, error) {
	a, err := wavio.ReadFile(path)
	if err != nil {
		return 0, err
	}
	rate := int(math.Round(s.cfg.SampleRate))
	if a.SampleRate != rate {
		from := a.SampleRate
		if a, err = wavio.Resample(a, rate); err != nil {
			return 0, fmt.Errorf("resample %s from %d Hz: %w", path, from, err)
		}
	}
	return s.AddAudio(filepath.Base(path), float64(a.SampleRate), a.Channels, a.Samples)
}

// RemoveAudio deletes a pool entry that no clip references.
func (s *Session) RemoveAudio(id arrange.AudioID) error {
	if err := s.arr.RemoveAudio(id); err != nil {
		return s.rejected("remove_audio", err, "audio", id)
	}
	return nil
}

// Audio returns a pool entry. The returned value must not be modified.
func (s *Session) Audio(id arrange.AudioID) (*arrange.AudioEntry, bool) {
	return s.arr.Pool().Get(id)
}

// AudioCount returns the number of pool entries.
func (s *Session) AudioCount() int {
	return s.arr.Pool().Count()
}

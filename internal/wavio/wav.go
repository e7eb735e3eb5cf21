// Package wavio reads and writes WAV files for the audio pool and the
// render command.
package wavio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// ErrInvalidFile is returned for inputs that are not decodable WAV data.
var ErrInvalidFile = errors.New("invalid wav file")

// Audio is decoded PCM as interleaved float32 in [-1, 1].
type Audio struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

// Frames returns the frame count.
func (a Audio) Frames() int {
	if a.Channels < 1 {
		return 0
	}
	return len(a.Samples) / a.Channels
}

// ReadFile decodes the WAV file at path.
func ReadFile(path string) (Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return Audio{}, err
	}
	defer f.Close()
	a, err := Decode(f)
	if err != nil {
		return Audio{}, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// Decode reads WAV data from r. The decoder already normalizes samples to
// [-1, 1].
func Decode(r io.ReadSeeker) (Audio, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Audio{}, ErrInvalidFile
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Audio{}, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return Audio{}, ErrInvalidFile
	}
	return Audio{Samples: buf.Data, Channels: buf.Format.NumChannels, SampleRate: buf.Format.SampleRate}, nil
}

// Resample converts a to rate, channel by channel. Audio already at rate is
// returned unchanged.
func Resample(a Audio, rate int) (Audio, error) {
	if a.SampleRate == rate || a.Frames() == 0 {
		return a, nil
	}
	frames := a.Frames()
	var out []float32
	for c := 0; c < a.Channels; c++ {
		r, err := dspresample.NewForRates(
			float64(a.SampleRate),
			float64(rate),
			dspresample.WithQuality(dspresample.QualityBest),
		)
		if err != nil {
			return Audio{}, err
		}
		in := make([]float64, frames)
		for i := range in {
			in[i] = float64(a.Samples[i*a.Channels+c])
		}
		res := r.Process(in)
		if out == nil {
			out = make([]float32, len(res)*a.Channels)
		}
		n := min(len(res), len(out)/a.Channels)
		for i := 0; i < n; i++ {
			out[i*a.Channels+c] = float32(res[i])
		}
	}
	return Audio{Samples: out, Channels: a.Channels, SampleRate: rate}, nil
}

// WriteStereo writes interleaved stereo samples as 16-bit PCM, creating the
// parent directory if needed.
func WriteStereo(path string, samples []float32, sampleRate int) error {
	return write(path, samples, sampleRate, 2)
}

// WriteMono writes mono samples as 16-bit PCM.
func WriteMono(path string, samples []float32, sampleRate int) error {
	return write(path, samples, sampleRate, 1)
}

func write(path string, samples []float32, sampleRate, channels int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)

	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: channels,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

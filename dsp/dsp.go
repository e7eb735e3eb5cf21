package dsp

import (
	"math"

	"github.com/cwbudde/algo-approx"
)

// FlushDenormals converts denormal numbers to zero to avoid performance issues
func FlushDenormals(x float32) float32 {
	const epsilon = 1e-30
	if x > -epsilon && x < epsilon {
		return 0.0
	}
	return x
}

// NoteToFreq converts a MIDI note number to frequency in Hz (A4 = 440 Hz).
func NoteToFreq(note int) float32 {
	const a4Freq = 440.0
	const a4Note = 69
	return a4Freq * Pow2(float32(note-a4Note)/12.0)
}

// CentsToRatio converts a detune amount in cents to a frequency ratio.
func CentsToRatio(cents float32) float32 {
	return Pow2(cents / 1200.0)
}

// Pow2 approximates 2^x.
func Pow2(x float32) float32 {
	const ln2 = 0.69314718055994530942
	return approx.FastExp(x * ln2)
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float32) bool {
	return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
}

// PanGains returns constant-power left/right gains for pan in [-1, 1].
func PanGains(pan float32) (float32, float32) {
	if pan < -1 {
		pan = -1
	} else if pan > 1 {
		pan = 1
	}
	angle := float64(pan+1) * math.Pi / 4
	return float32(math.Cos(angle)), float32(math.Sin(angle))
}

// Peak returns the largest absolute sample value in buf.
func Peak(buf []float32) float32 {
	var p float32
	for _, v := range buf {
		if v < 0 {
			v = -v
		}
		if v > p {
			p = v
		}
	}
	return p
}

// Ramp interpolates linearly from one value to the next across a block.
// It is used for gains that change once per block but are applied per sample.
type Ramp struct {
	current float32
	target  float32
	step    float32
	left    int
}

// Reset jumps to v without interpolation.
func (r *Ramp) Reset(v float32) {
	r.current = v
	r.target = v
	r.step = 0
	r.left = 0
}

// Set starts a ramp towards v lasting n samples.
func (r *Ramp) Set(v float32, n int) {
	if n <= 0 || v == r.current {
		r.Reset(v)
		return
	}
	r.target = v
	r.step = (v - r.current) / float32(n)
	r.left = n
}

// Next returns the current value and advances one sample.
func (r *Ramp) Next() float32 {
	v := r.current
	if r.left > 0 {
		r.left--
		if r.left == 0 {
			r.current = r.target
		} else {
			r.current += r.step
		}
	}
	return v
}

// Value returns the current value without advancing.
func (r *Ramp) Value() float32 {
	return r.current
}

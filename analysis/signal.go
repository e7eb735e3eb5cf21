// Package analysis measures rendered audio offline: levels, dominant pitch
// and a distance score between two renders.
package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

// ErrTooShort is returned when a signal is shorter than the analysis window.
var ErrTooShort = errors.New("analysis: signal too short")

const (
	minWindow = 256
	maxWindow = 1 << 15
)

// Mono averages interleaved stereo frames into a mono signal.
func Mono(stereo []float32) []float64 {
	out := make([]float64, len(stereo)/2)
	for i := range out {
		out[i] = float64(stereo[2*i]+stereo[2*i+1]) * 0.5
	}
	return out
}

// Deinterleave splits interleaved stereo into left and right channels.
func Deinterleave(stereo []float32) (left, right []float64) {
	n := len(stereo) / 2
	left = make([]float64, n)
	right = make([]float64, n)
	for i := 0; i < n; i++ {
		left[i] = float64(stereo[2*i])
		right[i] = float64(stereo[2*i+1])
	}
	return left, right
}

// Peak returns the largest absolute sample value.
func Peak(x []float64) float64 {
	var p float64
	for _, v := range x {
		p = math.Max(p, math.Abs(v))
	}
	return p
}

// RMS returns the root mean square of x, or 0 for an empty slice.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

// DB converts a linear amplitude to decibels, floored at -240 dB.
func DB(x float64) float64 {
	return 20 * math.Log10(math.Max(x, 1e-12))
}

// DominantFrequency returns the frequency in Hz of the strongest spectral
// peak of x. The first power-of-two window that fits x (up to 32768 samples)
// is Hann-weighted and the peak bin is refined by parabolic interpolation.
func DominantFrequency(x []float64, sampleRate int) (float64, error) {
	n := window(len(x))
	if n == 0 || sampleRate <= 0 {
		return 0, ErrTooShort
	}
	mag, err := spectrum(x[:n])
	if err != nil {
		return 0, err
	}
	k := 1
	for i := 2; i < len(mag)-1; i++ {
		if mag[i] > mag[k] {
			k = i
		}
	}
	if mag[k] == 0 {
		return 0, nil
	}
	a, b, c := DB(mag[k-1]), DB(mag[k]), DB(mag[k+1])
	shift := 0.0
	if den := a - 2*b + c; den != 0 {
		shift = 0.5 * (a - c) / den
	}
	return (float64(k) + shift) * float64(sampleRate) / float64(n), nil
}

// window returns the largest power of two not above n, capped at maxWindow,
// or 0 if n is below minWindow.
func window(n int) int {
	if n < minWindow {
		return 0
	}
	w := minWindow
	for w*2 <= n && w*2 <= maxWindow {
		w *= 2
	}
	return w
}

// spectrum returns the magnitudes of bins 0..len(x)/2 of the Hann-weighted
// real FFT of x. len(x) must be a power of two.
func spectrum(x []float64) ([]float64, error) {
	n := len(x)
	plan, err := algofft.NewPlanReal64(n)
	if err != nil {
		return nil, err
	}
	buf := make([]float64, n)
	for i, v := range x {
		buf[i] = v * hann(i, n)
	}
	spec := make([]complex128, n/2+1)
	plan.Forward(spec, buf)
	mag := make([]float64, len(spec))
	for i, v := range spec {
		mag[i] = cmplx.Abs(v)
	}
	return mag, nil
}

func hann(i, n int) float64 {
	return 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
}

package analysis

import (
	"math"

	algofft "github.com/cwbudde/algo-fft"
)

// Metrics contains distance and similarity measurements between two renders.
type Metrics struct {
	SampleRate int `json:"sample_rate"`

	ReferenceFrames int `json:"reference_frames"`
	CandidateFrames int `json:"candidate_frames"`
	AlignedFrames   int `json:"aligned_frames"`
	LagSamples      int `json:"lag_samples"`

	TimeRMSE       float64 `json:"time_rmse"`
	EnvelopeRMSEDB float64 `json:"envelope_rmse_db"`
	SpectralRMSEDB float64 `json:"spectral_rmse_db"`

	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

const (
	envFrame = 256
	envHop   = 128
)

// Compare aligns candidate to reference and returns objective distance
// metrics with a combined score in [0,1]. Signals that are empty, silent or
// too short after alignment score 1.
func Compare(reference, candidate []float64, sampleRate int) (Metrics, error) {
	m := Metrics{
		SampleRate:      sampleRate,
		ReferenceFrames: len(reference),
		CandidateFrames: len(candidate),
		Score:           1,
	}
	if sampleRate <= 0 {
		return m, nil
	}
	ref := normalizeRMS(trimLeadingSilence(reference, 1e-6), 0.1)
	cand := normalizeRMS(trimLeadingSilence(candidate, 1e-6), 0.1)
	if len(ref) == 0 || len(cand) == 0 {
		return m, nil
	}

	maxLag := max(1, min(sampleRate/2, len(ref)-1, len(cand)-1))
	lag, err := estimateLag(ref, cand, maxLag)
	if err != nil {
		return m, err
	}
	m.LagSamples = lag

	refA, candA := alignByLag(ref, cand, lag)
	n := min(len(refA), len(candA), 12*sampleRate)
	if n < minWindow {
		return m, nil
	}
	refA, candA = refA[:n], candA[:n]
	m.AlignedFrames = n

	m.TimeRMSE = rmse(refA, candA)

	refEnv := rmsEnvelope(refA, envFrame, envHop)
	candEnv := rmsEnvelope(candA, envFrame, envHop)
	if envN := min(len(refEnv), len(candEnv)); envN > 0 {
		var sum float64
		for i := 0; i < envN; i++ {
			d := DB(refEnv[i]) - DB(candEnv[i])
			sum += d * d
		}
		m.EnvelopeRMSEDB = math.Sqrt(sum / float64(envN))
	}

	m.SpectralRMSEDB, err = spectralRMSEDB(refA, candA)
	if err != nil {
		return m, err
	}

	timeNorm := clamp01(m.TimeRMSE / 0.25)
	envNorm := clamp01(m.EnvelopeRMSEDB / 30.0)
	specNorm := clamp01(m.SpectralRMSEDB / 30.0)
	m.Score = clamp01(0.35*timeNorm + 0.30*envNorm + 0.35*specNorm)
	m.Similarity = math.Exp(-4.0 * m.Score)
	return m, nil
}

func trimLeadingSilence(x []float64, threshold float64) []float64 {
	for i := range x {
		if math.Abs(x[i]) > threshold {
			return x[i:]
		}
	}
	return nil
}

func normalizeRMS(x []float64, target float64) []float64 {
	r := RMS(x)
	if r <= 1e-12 {
		return x
	}
	g := target / r
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] * g
	}
	return out
}

// estimateLag returns the lag in [-maxLag, maxLag] maximising
// sum(ref[i+lag] * cand[i]), computed as an FFT cross-correlation.
func estimateLag(ref, cand []float64, maxLag int) (int, error) {
	if len(ref) == 0 || len(cand) == 0 {
		return 0, nil
	}
	size := 1
	for size < len(ref)+len(cand) {
		size <<= 1
	}
	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return 0, err
	}
	a := make([]complex128, size)
	b := make([]complex128, size)
	for i, v := range ref {
		a[i] = complex(v, 0)
	}
	for i, v := range cand {
		b[i] = complex(v, 0)
	}
	fa := make([]complex128, size)
	fb := make([]complex128, size)
	if err := plan.Forward(fa, a); err != nil {
		return 0, err
	}
	if err := plan.Forward(fb, b); err != nil {
		return 0, err
	}
	for i := range fa {
		fa[i] *= complex(real(fb[i]), -imag(fb[i]))
	}
	if err := plan.Inverse(a, fa); err != nil {
		return 0, err
	}

	best, bestLag := math.Inf(-1), 0
	for lag := -maxLag; lag <= maxLag; lag++ {
		idx := lag
		if idx < 0 {
			idx += size
		}
		if v := real(a[idx]); v > best {
			best, bestLag = v, lag
		}
	}
	return bestLag, nil
}

func alignByLag(ref, cand []float64, lag int) ([]float64, []float64) {
	if lag >= 0 {
		if lag >= len(ref) {
			return nil, nil
		}
		return ref[lag:], cand
	}
	if -lag >= len(cand) {
		return nil, nil
	}
	return ref, cand[-lag:]
}

func rmse(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

func rmsEnvelope(x []float64, frame, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	out := make([]float64, 1+(len(x)-frame)/hop)
	for i := range out {
		out[i] = RMS(x[i*hop : i*hop+frame])
	}
	return out
}

// spectralRMSEDB compares the magnitude spectra of the leading window of a
// and b, skipping DC.
func spectralRMSEDB(a, b []float64) (float64, error) {
	n := window(min(len(a), len(b), 4096))
	if n == 0 {
		return 0, nil
	}
	ma, err := spectrum(a[:n])
	if err != nil {
		return 0, err
	}
	mb, err := spectrum(b[:n])
	if err != nil {
		return 0, err
	}
	bins := n / 2
	var sum float64
	for k := 1; k < bins; k++ {
		d := DB(ma[k]) - DB(mb[k])
		sum += d * d
	}
	return math.Sqrt(sum / float64(bins-1)), nil
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}

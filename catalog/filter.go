package catalog

import (
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"

	"github.com/cwbudde/algo-synth/dsp"
	"github.com/cwbudde/algo-synth/node"
)

type filterMode uint8

const (
	modeLowpass filterMode = iota
	modeHighpass
	modeBandpass
	modeNotch
)

// filter wraps one RBJ biquad section. Resonance 0..1 maps to Q 0.5..10.
type filter struct {
	mode       filterMode
	sampleRate float64
	cutoff     float32
	resonance  float32
	section    biquad.Section
	dirty      bool
}

func newFilter(mode filterMode) *filter {
	return &filter{mode: mode, cutoff: 1000, resonance: 0.5}
}

func (f *filter) Prepare(sampleRate float64, _ int) {
	f.sampleRate = sampleRate
	f.design()
}

func (f *filter) SetParam(id node.ParamID, v float32) {
	switch id {
	case ParamCutoff:
		f.cutoff = v
	case ParamResonance:
		f.resonance = v
	default:
		return
	}
	f.dirty = true
}

func (f *filter) design() {
	f.dirty = false
	if f.sampleRate <= 0 {
		return
	}
	freq := float64(f.cutoff)
	if nyq := 0.45 * f.sampleRate; freq > nyq {
		freq = nyq
	}
	q := 0.5 + 9.5*float64(f.resonance)
	var c biquad.Coefficients
	switch f.mode {
	case modeHighpass:
		c = design.Highpass(freq, q, f.sampleRate)
	case modeBandpass:
		c = design.Bandpass(freq, q, f.sampleRate)
	case modeNotch:
		c = design.Notch(freq, q, f.sampleRate)
	default:
		c = design.Lowpass(freq, q, f.sampleRate)
	}
	f.section.Coefficients = c
}

func (f *filter) Reset() {
	f.section = biquad.Section{Coefficients: f.section.Coefficients}
}

func (f *filter) Process(ctx *node.Context, in []node.Buffer, out node.Buffer) {
	if ctx.Voice != nil && ctx.Voice.Triggered {
		f.Reset()
	}
	if f.dirty {
		f.design()
	}
	dst := out[0][:ctx.Frames]
	if len(in) == 0 || in[0] == nil {
		clear(dst)
		return
	}
	src := in[0][0]
	for i := range dst {
		y := f.section.ProcessSample(float64(src[i]))
		dst[i] = dsp.FlushDenormals(float32(y))
	}
}

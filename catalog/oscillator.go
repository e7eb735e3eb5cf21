package catalog

import (
	"math"

	"github.com/cwbudde/algo-synth/dsp"
	"github.com/cwbudde/algo-synth/node"
)

type shape uint8

const (
	shapeSine shape = iota
	shapeSaw
	shapeSquare
	shapeTriangle
)

// oscillator is a naive phase-accumulator oscillator. When rendered for a
// voice it follows the voice pitch and velocity; otherwise it runs at the
// Frequency parameter.
type oscillator struct {
	shape      shape
	sampleRate float64
	freq       float32
	detune     float32
	pulseWidth float32
	phase      float64
}

func newOscillator(s shape) *oscillator {
	return &oscillator{shape: s, freq: 440, pulseWidth: 0.5}
}

func (o *oscillator) Prepare(sampleRate float64, _ int) {
	o.sampleRate = sampleRate
}

func (o *oscillator) SetParam(id node.ParamID, v float32) {
	switch id {
	case ParamFreq:
		o.freq = v
	case ParamDetune:
		o.detune = v
	case ParamPulseWidth:
		o.pulseWidth = v
	}
}

func (o *oscillator) Reset() {
	o.phase = 0
}

func (o *oscillator) Process(ctx *node.Context, _ []node.Buffer, out node.Buffer) {
	freq := o.freq
	amp := float32(1)
	if v := ctx.Voice; v != nil {
		freq = v.Freq
		amp = v.Velocity
		if v.Triggered {
			o.phase = 0
		}
	}
	if o.detune != 0 {
		freq *= dsp.CentsToRatio(o.detune)
	}
	inc := float64(freq) / o.sampleRate
	if inc >= 0.5 {
		inc = 0.5
	}

	dst := out[0][:ctx.Frames]
	for i := range dst {
		dst[i] = amp * o.sample()
		o.phase += inc
		if o.phase >= 1 {
			o.phase -= 1
		}
	}
}

func (o *oscillator) sample() float32 {
	p := o.phase
	switch o.shape {
	case shapeSaw:
		return float32(2*p - 1)
	case shapeSquare:
		if p < float64(o.pulseWidth) {
			return 1
		}
		return -1
	case shapeTriangle:
		return float32(4*math.Abs(p-0.5) - 1)
	default:
		return float32(math.Sin(2 * math.Pi * p))
	}
}

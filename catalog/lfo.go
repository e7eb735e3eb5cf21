package catalog

import (
	"math"

	"github.com/cwbudde/algo-synth/node"
)

const (
	waveSine = iota
	waveTriangle
	waveSaw
	waveSquare
	waveSampleHold
)

// lfo is a free-running low-frequency modulator with a bipolar output
// scaled by Depth.
type lfo struct {
	sampleRate float64
	rate       float32
	depth      float32
	wave       int
	phase      float64
	held       float32
	seed       uint32
}

func (l *lfo) Prepare(sampleRate float64, _ int) {
	l.sampleRate = sampleRate
}

func (l *lfo) SetParam(id node.ParamID, v float32) {
	switch id {
	case ParamRate:
		l.rate = v
	case ParamDepth:
		l.depth = v
	case ParamWaveform:
		l.wave = int(v + 0.5)
	}
}

func (l *lfo) Reset() {
	l.phase = 0
	l.held = 0
}

func (l *lfo) Process(ctx *node.Context, _ []node.Buffer, out node.Buffer) {
	inc := float64(l.rate) / l.sampleRate
	dst := out[0][:ctx.Frames]
	for i := range dst {
		dst[i] = l.depth * l.value()
		l.phase += inc
		if l.phase >= 1 {
			l.phase -= 1
			l.held = l.random()
		}
	}
}

func (l *lfo) value() float32 {
	p := l.phase
	switch l.wave {
	case waveTriangle:
		return float32(1 - 4*math.Abs(p-0.5))
	case waveSaw:
		return float32(2*p - 1)
	case waveSquare:
		if p < 0.5 {
			return 1
		}
		return -1
	case waveSampleHold:
		return l.held
	default:
		return float32(math.Sin(2 * math.Pi * p))
	}
}

// random returns a uniform value in [-1, 1) from a xorshift32 generator.
func (l *lfo) random() float32 {
	x := l.seed
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	l.seed = x
	return float32(x)/float32(math.MaxUint32)*2 - 1
}

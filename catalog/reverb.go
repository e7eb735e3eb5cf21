package catalog

import (
	"github.com/cwbudde/algo-dsp/dsp/effects"

	"github.com/cwbudde/algo-synth/node"
)

// reverbEffect runs one Freeverb-style tank per channel.
type reverbEffect struct {
	tanks [2]*effects.Reverb
}

func newReverb() *reverbEffect {
	return &reverbEffect{tanks: [2]*effects.Reverb{effects.NewReverb(), effects.NewReverb()}}
}

func (r *reverbEffect) Prepare(float64, int) {}

func (r *reverbEffect) SetParam(id node.ParamID, v float32) {
	for _, t := range r.tanks {
		switch id {
		case ParamRoomSize:
			t.SetRoomSize(float64(v))
		case ParamDamping:
			t.SetDamp(float64(v))
		case ParamMix:
			t.SetWet(float64(v))
			t.SetDry(float64(1 - v))
		}
	}
}

func (r *reverbEffect) Reset() {
	for _, t := range r.tanks {
		t.Reset()
	}
}

func (r *reverbEffect) Process(ctx *node.Context, in []node.Buffer, out node.Buffer) {
	n := ctx.Frames
	hasInput := len(in) > 0 && in[0] != nil
	for ch, t := range r.tanks {
		dst := out[ch][:n]
		for i := range dst {
			var x float64
			if hasInput {
				x = float64(in[0][ch][i])
			}
			dst[i] = float32(t.ProcessSample(x))
		}
	}
}

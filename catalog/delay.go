package catalog

import (
	"github.com/cwbudde/algo-dsp/dsp/delay"

	"github.com/cwbudde/algo-synth/node"
)

const maxDelaySeconds = 2.0

// delayEffect is a stereo feedback delay. Line storage is sized for the
// longest delay time in Prepare so parameter changes never reallocate.
type delayEffect struct {
	sampleRate float64
	time       float32
	feedback   float32
	mix        float32
	current    float64
	lines      [2]*delay.Line
}

func (d *delayEffect) Prepare(sampleRate float64, _ int) {
	d.sampleRate = sampleRate
	size := int(maxDelaySeconds*sampleRate) + 4
	for ch := range d.lines {
		line, err := delay.New(size)
		if err != nil {
			d.lines = [2]*delay.Line{}
			return
		}
		d.lines[ch] = line
	}
	d.current = d.targetSamples()
}

func (d *delayEffect) SetParam(id node.ParamID, v float32) {
	switch id {
	case ParamTime:
		d.time = v
	case ParamFeedback:
		d.feedback = v
	case ParamMix:
		d.mix = v
	}
}

func (d *delayEffect) targetSamples() float64 {
	return float64(d.time) * d.sampleRate
}

func (d *delayEffect) Reset() {
	for _, l := range d.lines {
		if l != nil {
			l.Reset()
		}
	}
	d.current = d.targetSamples()
}

func (d *delayEffect) Process(ctx *node.Context, in []node.Buffer, out node.Buffer) {
	n := ctx.Frames
	target := d.targetSamples()
	fb := float64(d.feedback)
	wet := float64(d.mix)
	dry := 1 - wet
	hasInput := len(in) > 0 && in[0] != nil
	if d.lines[0] == nil {
		for ch := range out {
			if hasInput {
				copy(out[ch][:n], in[0][ch][:n])
			} else {
				clear(out[ch][:n])
			}
		}
		return
	}

	start := d.current
	for ch, line := range d.lines {
		cur := start
		dst := out[ch][:n]
		for i := range dst {
			cur += (target - cur) * 0.001
			var x float64
			if hasInput {
				x = float64(in[0][ch][i])
			}
			y := line.ReadFractional(cur)
			line.Write(x + y*fb)
			dst[i] = float32(x*dry + y*wet)
		}
		d.current = cur
	}
}

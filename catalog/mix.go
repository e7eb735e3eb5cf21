package catalog

import (
	"github.com/cwbudde/algo-dsp/dsp/core"

	"github.com/cwbudde/algo-synth/dsp"
	"github.com/cwbudde/algo-synth/node"
)

// gainStage sums every connected input and applies a dB gain ramped across
// each block. It backs the Gain, Mixer and Output kinds.
type gainStage struct {
	target  float32
	pending bool
	ramp    dsp.Ramp
}

func newGainStage() *gainStage {
	g := &gainStage{target: 1}
	g.ramp.Reset(1)
	return g
}

func (g *gainStage) Prepare(float64, int) {
	g.ramp.Reset(g.target)
	g.pending = false
}

func (g *gainStage) SetParam(id node.ParamID, v float32) {
	if id != ParamGain {
		return
	}
	g.target = float32(core.DBToLinear(float64(v)))
	g.pending = true
}

func (g *gainStage) Reset() {
	g.ramp.Reset(g.target)
	g.pending = false
}

func (g *gainStage) Process(ctx *node.Context, in []node.Buffer, out node.Buffer) {
	n := ctx.Frames
	for ch := range out {
		clear(out[ch][:n])
	}
	for _, src := range in {
		if src == nil {
			continue
		}
		for ch := range out {
			d, s := out[ch][:n], src[ch][:n]
			for i := range d {
				d[i] += s[i]
			}
		}
	}

	if g.pending {
		g.ramp.Set(g.target, n)
		g.pending = false
	}
	left, right := out[0][:n], out[1][:n]
	for i := 0; i < n; i++ {
		a := g.ramp.Next()
		left[i] *= a
		right[i] *= a
	}
}

// panner folds its input to mono and places it with a constant-power law.
type panner struct {
	pan   float32
	left  dsp.Ramp
	right dsp.Ramp
}

func (p *panner) Prepare(float64, int) {
	l, r := dsp.PanGains(p.pan)
	p.left.Reset(l)
	p.right.Reset(r)
}

func (p *panner) SetParam(id node.ParamID, v float32) {
	if id == ParamPan {
		p.pan = v
	}
}

func (p *panner) Reset() {
	p.Prepare(0, 0)
}

func (p *panner) Process(ctx *node.Context, in []node.Buffer, out node.Buffer) {
	n := ctx.Frames
	l, r := dsp.PanGains(p.pan)
	p.left.Set(l, n)
	p.right.Set(r, n)

	dl, dr := out[0][:n], out[1][:n]
	if len(in) == 0 || in[0] == nil {
		clear(dl)
		clear(dr)
		return
	}
	sl, sr := in[0][0][:n], in[0][1][:n]
	for i := 0; i < n; i++ {
		mono := 0.5 * (sl[i] + sr[i])
		dl[i] = mono * p.left.Next()
		dr[i] = mono * p.right.Next()
	}
}

package catalog

import (
	"github.com/cwbudde/algo-approx"

	"github.com/cwbudde/algo-synth/node"
)

type envStage uint8

const (
	stageIdle envStage = iota
	stageAttack
	stageDecay
	stageSustain
	stageRelease
)

const envFloor = 1e-4

// envelope is a linear-attack, exponential decay/release ADSR. It scales its
// input, or emits the envelope itself when nothing is connected.
type envelope struct {
	sampleRate float64
	attack     float32
	decay      float32
	sustain    float32
	release    float32

	attackStep float32
	decayCoef  float32
	relCoef    float32

	stage envStage
	level float32
}

func (e *envelope) Prepare(sampleRate float64, _ int) {
	e.sampleRate = sampleRate
	e.recompute()
}

func (e *envelope) SetParam(id node.ParamID, v float32) {
	switch id {
	case ParamAttack:
		e.attack = v
	case ParamDecay:
		e.decay = v
	case ParamSustain:
		e.sustain = v
	case ParamRelease:
		e.release = v
	}
	e.recompute()
}

func (e *envelope) recompute() {
	if e.sampleRate <= 0 {
		return
	}
	sr := float32(e.sampleRate)
	e.attackStep = 1 / (maxf(e.attack, 0.001) * sr)
	e.decayCoef = expCoef(e.decay, sr)
	e.relCoef = expCoef(e.release, sr)
}

// expCoef returns the one-pole coefficient that covers ~99% of the distance
// to the target in seconds.
func expCoef(seconds, sr float32) float32 {
	return 1 - approx.FastExp(-4.6/(maxf(seconds, 0.001)*sr))
}

func (e *envelope) Reset() {
	e.stage = stageIdle
	e.level = 0
}

func (e *envelope) Process(ctx *node.Context, in []node.Buffer, out node.Buffer) {
	v := ctx.Voice
	if v != nil {
		if v.Triggered || (v.Gate && e.stage == stageIdle) {
			e.stage = stageAttack
		}
		if !v.Gate && e.stage != stageIdle && e.stage != stageRelease {
			e.stage = stageRelease
		}
	}

	var src []float32
	if len(in) > 0 && in[0] != nil {
		src = in[0][0]
	}
	dst := out[0][:ctx.Frames]
	for i := range dst {
		lvl := e.next()
		if src != nil {
			dst[i] = src[i] * lvl
		} else {
			dst[i] = lvl
		}
	}

	if v != nil && e.stage != stageIdle {
		v.Hold = true
	}
}

func (e *envelope) next() float32 {
	switch e.stage {
	case stageAttack:
		e.level += e.attackStep
		if e.level >= 1 {
			e.level = 1
			e.stage = stageDecay
		}
	case stageDecay:
		e.level += (e.sustain - e.level) * e.decayCoef
		if e.level-e.sustain < envFloor {
			e.level = e.sustain
			e.stage = stageSustain
		}
	case stageSustain:
		e.level = e.sustain
	case stageRelease:
		e.level -= e.level * e.relCoef
		if e.level < envFloor {
			e.level = 0
			e.stage = stageIdle
		}
	}
	return e.level
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

package catalog

import "github.com/cwbudde/algo-synth/node"

const maxPlayerRegions = 8

type playingRegion struct {
	region node.Region
	pos    float64
	step   float64
	active bool
}

// player mixes clip-triggered pool regions over its pass-through input.
// A fixed set of region slots is reused; when all are busy the oldest
// started region is replaced.
type player struct {
	sampleRate float64
	gain       float32
	slots      [maxPlayerRegions]playingRegion
	next       int
}

var _ node.RegionPlayer = (*player)(nil)

func (p *player) Prepare(sampleRate float64, _ int) {
	p.sampleRate = sampleRate
}

func (p *player) SetParam(id node.ParamID, v float32) {
	if id == ParamGain {
		p.gain = v
	}
}

func (p *player) Reset() {
	p.StopRegions()
}

// StartRegion begins playback of r at the start of the next Process call.
func (p *player) StartRegion(r node.Region) {
	if r.Channels < 1 || r.Length <= 0 || len(r.Samples) == 0 {
		return
	}
	slot := -1
	for i := range p.slots {
		if !p.slots[i].active {
			slot = i
			break
		}
	}
	if slot < 0 {
		slot = p.next
		p.next = (p.next + 1) % maxPlayerRegions
	}
	step := 1.0
	if p.sampleRate > 0 && r.SampleRate > 0 {
		step = r.SampleRate / p.sampleRate
	}
	p.slots[slot] = playingRegion{region: r, pos: float64(r.Offset), step: step, active: true}
}

// StopRegions silences every playing region.
func (p *player) StopRegions() {
	for i := range p.slots {
		p.slots[i].active = false
	}
	p.next = 0
}

func (p *player) Process(ctx *node.Context, in []node.Buffer, out node.Buffer) {
	n := ctx.Frames
	for ch := range out {
		if len(in) > 0 && in[0] != nil {
			copy(out[ch][:n], in[0][ch][:n])
		} else {
			clear(out[ch][:n])
		}
	}
	for i := range p.slots {
		s := &p.slots[i]
		if s.active {
			p.mixRegion(s, out, n)
		}
	}
}

func (p *player) mixRegion(s *playingRegion, out node.Buffer, n int) {
	r := &s.region
	frames := len(r.Samples) / r.Channels
	end := float64(r.Offset + r.Length)
	if end > float64(frames) {
		end = float64(frames)
	}
	g := r.Gain * p.gain
	for i := 0; i < n; i++ {
		if s.pos >= end-1 {
			s.active = false
			return
		}
		idx := int(s.pos)
		frac := float32(s.pos - float64(idx))
		for ch := range out {
			c := ch
			if c >= r.Channels {
				c = r.Channels - 1
			}
			a := r.Samples[idx*r.Channels+c]
			b := r.Samples[(idx+1)*r.Channels+c]
			out[ch][i] += g * (a + frac*(b-a))
		}
		s.pos += s.step
	}
}

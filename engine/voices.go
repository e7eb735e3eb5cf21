package engine

import (
	"github.com/cwbudde/algo-synth/arrange"
	"github.com/cwbudde/algo-synth/dsp"
	"github.com/cwbudde/algo-synth/node"
)

type voiceSlot struct {
	v      node.Voice
	active bool
	// owner is the track that started the note; zero for live input.
	owner arrange.TrackID
	// domain indexes step.domain; -1 when the owner has no route.
	domain  int
	started uint64
}

// voicePool is a fixed set of voices. When every voice is busy the
// oldest-started one is stolen.
type voicePool struct {
	slots  []voiceSlot
	serial uint64
}

func newVoicePool(n int) voicePool {
	p := voicePool{slots: make([]voiceSlot, n)}
	for i := range p.slots {
		p.slots[i].v.Index = i
	}
	return p
}

func (p *voicePool) noteOn(pitch uint8, velocity float32, owner arrange.TrackID, domain int) (idx int, stolen bool) {
	idx = -1
	for i := range p.slots {
		if !p.slots[i].active {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = 0
		for i := range p.slots {
			if p.slots[i].started < p.slots[idx].started {
				idx = i
			}
		}
		stolen = true
	}
	p.serial++
	s := &p.slots[idx]
	s.active = true
	s.owner = owner
	s.domain = domain
	s.started = p.serial
	s.v = node.Voice{
		Index:     idx,
		Note:      pitch,
		Velocity:  velocity,
		Freq:      dsp.NoteToFreq(int(pitch)),
		Gate:      true,
		Triggered: true,
	}
	return idx, stolen
}

// noteOff releases gated voices of owner playing pitch.
func (p *voicePool) noteOff(pitch uint8, owner arrange.TrackID) {
	for i := range p.slots {
		s := &p.slots[i]
		if s.active && s.v.Gate && s.v.Note == pitch && s.owner == owner {
			s.v.Gate = false
		}
	}
}

// releaseOwner releases every gated voice started by owner.
func (p *voicePool) releaseOwner(owner arrange.TrackID) {
	for i := range p.slots {
		s := &p.slots[i]
		if s.active && s.owner == owner {
			s.v.Gate = false
		}
	}
}

func (p *voicePool) releaseAll() {
	for i := range p.slots {
		p.slots[i].v.Gate = false
	}
}

// remap points voice domains at the routes of a new plan.
func (p *voicePool) remap(routes []routePlan) {
	for i := range p.slots {
		s := &p.slots[i]
		if !s.active {
			continue
		}
		s.domain = ownerDomain(routes, s.owner)
	}
}

func ownerDomain(routes []routePlan, owner arrange.TrackID) int {
	if owner == 0 {
		return 0
	}
	for r := range routes {
		if routes[r].track == owner {
			return r + 1
		}
	}
	return -1
}

func (p *voicePool) beginSlice() {
	for i := range p.slots {
		p.slots[i].v.Hold = false
	}
}

// endSlice clears trigger flags and frees released voices nothing holds.
func (p *voicePool) endSlice() {
	for i := range p.slots {
		s := &p.slots[i]
		if !s.active {
			continue
		}
		s.v.Triggered = false
		if !s.v.Gate && !s.v.Hold {
			s.active = false
		}
	}
}

func (p *voicePool) activeCount() int {
	n := 0
	for i := range p.slots {
		if p.slots[i].active {
			n++
		}
	}
	return n
}

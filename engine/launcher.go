package engine

import (
	"math"

	"github.com/cwbudde/algo-synth/arrange"
	"github.com/cwbudde/algo-synth/node"
	"github.com/cwbudde/algo-synth/param"
)

type eventKind uint8

const (
	evLaunch eventKind = iota
	evNoteOff
	evNoteOn
	evRegion
)

// event is a track action at a frame offset inside the current segment.
type event struct {
	frame    int
	kind     eventKind
	track    int
	pitch    uint8
	velocity float32
	region   node.Region
}

// heldNote is a clip note waiting for its note-off.
type heldNote struct {
	track int
	pitch uint8
	end   float64
}

// trackState is the engine-side playback state of one track. It survives
// snapshot swaps and is rebound to the new plan by track id.
type trackState struct {
	inUse bool
	id    arrange.TrackID
	plan  int
	route int
	step  int

	clip     arrange.ClipID
	clipPlan *ClipPlan
	pos      float64
	timeline arrange.ClipID

	pending     bool
	pendingClip arrange.ClipID
	pendingAt   float64

	volume param.Smoother
	pan    param.Smoother
	peak   float32
}

func (e *Engine) trackIndex(id arrange.TrackID) int {
	for i := range e.tracks {
		if e.tracks[i].inUse && e.tracks[i].id == id {
			return i
		}
	}
	return -1
}

// bindTracks matches track states to the current plans after a swap.
func (e *Engine) bindTracks() {
	for i := range e.tracks {
		e.tracks[i].plan = -1
		e.tracks[i].route = -1
		e.tracks[i].step = -1
	}
	if e.arr != nil {
		for pi := range e.arr.Tracks {
			tp := &e.arr.Tracks[pi]
			si := e.trackIndex(tp.ID)
			if si < 0 {
				si = e.freeTrack()
				if si < 0 {
					break
				}
				st := &e.tracks[si]
				*st = trackState{inUse: true, id: tp.ID, route: -1, step: -1}
				frames := e.cfg.SmoothingFrames()
				st.volume = param.NewSmoother(frames)
				st.pan = param.NewSmoother(frames)
				st.volume.Reset(stripVolume(tp))
				st.pan.Reset(tp.Pan)
			}
			e.tracks[si].plan = pi
		}
	}
	for si := range e.tracks {
		st := &e.tracks[si]
		if !st.inUse {
			continue
		}
		if st.plan < 0 {
			e.voices.releaseOwner(st.id)
			e.dropHeld(si)
			st.inUse = false
			continue
		}
		if st.clip != 0 {
			cp, ok := e.arr.Clip(st.clip)
			if !ok {
				e.stopTrack(si)
			} else {
				st.clipPlan = cp
				if st.pos >= cp.Length && cp.Looping {
					st.pos = math.Mod(st.pos, cp.Length)
				}
			}
		}
		if st.pending && st.pendingClip != 0 {
			if _, ok := e.arr.Clip(st.pendingClip); !ok {
				st.pending = false
			}
		}
	}
	for r := range e.routeTrack {
		e.routeTrack[r] = -1
	}
	if e.graph != nil {
		for r, rt := range e.graph.routes {
			si := e.trackIndex(rt.track)
			e.routeTrack[r] = si
			if si >= 0 {
				e.tracks[si].route = r
				e.tracks[si].step = rt.step
			}
		}
		e.voices.remap(e.graph.routes)
	}
}

func (e *Engine) freeTrack() int {
	for i := range e.tracks {
		if !e.tracks[i].inUse {
			return i
		}
	}
	return -1
}

func stripVolume(tp *TrackPlan) float32 {
	if !tp.Audible {
		return 0
	}
	return tp.Volume
}

// quantize returns the next launch boundary at or after beat.
func quantize(beat, q float64) float64 {
	if q <= 0 {
		return beat
	}
	return q * math.Ceil(beat/q-1e-9)
}

// requestLaunch starts clip (or stops when clip is zero) on a track. While
// stopped, or with no launch grid, it applies at once.
func (e *Engine) requestLaunch(si int, clip arrange.ClipID, at float64) {
	st := &e.tracks[si]
	if !e.clock.Playing() || e.cfg.LaunchQuantum <= 0 {
		e.applyLaunch(si, clip)
		return
	}
	st.pending = true
	st.pendingClip = clip
	st.pendingAt = at
}

func (e *Engine) applyLaunch(si int, clip arrange.ClipID) {
	st := &e.tracks[si]
	e.stopTrack(si)
	st.pending = false
	if clip == 0 || e.arr == nil {
		return
	}
	cp, ok := e.arr.Clip(clip)
	if !ok {
		return
	}
	st.clip = clip
	st.clipPlan = cp
	st.pos = 0
}

// stopTrack ends the launched clip and silences what the track started.
func (e *Engine) stopTrack(si int) {
	st := &e.tracks[si]
	st.clip = 0
	st.clipPlan = nil
	st.pos = 0
	e.silenceTrack(si)
}

func (e *Engine) silenceTrack(si int) {
	e.releaseTrack(si)
	e.dropHeld(si)
}

// releaseTrack releases the voices and regions a track has started. Clip
// notes still held are left to their note-offs.
func (e *Engine) releaseTrack(si int) {
	st := &e.tracks[si]
	e.voices.releaseOwner(st.id)
	if st.step >= 0 && e.graph != nil {
		if rp, ok := e.graph.steps[st.step].inst.global.(node.RegionPlayer); ok {
			rp.StopRegions()
		}
	}
}

func (e *Engine) silenceAllTracks() {
	for si := range e.tracks {
		if e.tracks[si].inUse {
			e.silenceTrack(si)
		}
	}
}

func (e *Engine) dropHeld(si int) {
	kept := e.held[:0]
	for _, h := range e.held {
		if h.track != si {
			kept = append(kept, h)
		}
	}
	e.held = kept
}

// cutHeld schedules the note-offs of track si that fall before beat and
// forgets its other held notes. The launch event at beat releases those.
func (e *Engine) cutHeld(seg *segment, si int, beat float64) {
	kept := e.held[:0]
	for _, h := range e.held {
		if h.track != si {
			kept = append(kept, h)
			continue
		}
		if h.end < beat {
			e.pushEvent(event{frame: seg.frameOf(h.end), kind: evNoteOff, track: si, pitch: h.pitch})
		}
	}
	e.held = kept
}

// segment is the beat window being scheduled.
type segment struct {
	b0, b1 float64
	bpf    float64
	frames int
}

func (s *segment) frameOf(beat float64) int {
	f := int(math.Ceil((beat-s.b0)/s.bpf - 1e-9))
	return min(max(f, 0), s.frames-1)
}

func (e *Engine) pushEvent(ev event) bool {
	if len(e.events) == cap(e.events) {
		e.droppedEvents++
		return false
	}
	i := len(e.events)
	e.events = e.events[:i+1]
	for i > 0 && e.events[i-1].frame > ev.frame {
		e.events[i] = e.events[i-1]
		i--
	}
	e.events[i] = ev
	return true
}

// schedule generates the launch, note and region events of every track for
// one segment. Pending launches sharing a boundary land on the same frame.
func (e *Engine) schedule(seg *segment) {
	if e.arr == nil {
		return
	}
	for si := range e.tracks {
		st := &e.tracks[si]
		if !st.inUse || st.plan < 0 {
			continue
		}
		tp := &e.arr.Tracks[st.plan]
		st.timeline = 0
		from := seg.b0
		if st.pending && st.pendingAt < seg.b1 {
			at := max(st.pendingAt, seg.b0)
			e.playTrack(seg, si, tp, seg.b0, at)
			e.cutHeld(seg, si, at)
			e.pushEvent(event{frame: seg.frameOf(at), kind: evLaunch, track: si})
			st.pending = false
			st.clip = 0
			st.clipPlan = nil
			st.pos = 0
			if cp, ok := e.arr.Clip(st.pendingClip); ok && st.pendingClip != 0 {
				st.clip = st.pendingClip
				st.clipPlan = cp
			}
			from = at
		}
		e.playTrack(seg, si, tp, from, seg.b1)
	}
	e.scheduleNoteOffs(seg)
}

// playTrack emits events for [from, to). A launched clip mutes the track's
// timeline placements.
func (e *Engine) playTrack(seg *segment, si int, tp *TrackPlan, from, to float64) {
	if to <= from {
		return
	}
	st := &e.tracks[si]
	if st.clip != 0 && st.clipPlan != nil {
		e.playClip(seg, si, tp, from, to)
		return
	}
	for _, p := range tp.Placements {
		if p.Start >= to {
			break
		}
		cp, ok := e.arr.Clip(p.Clip)
		if !ok {
			continue
		}
		lo := max(from, p.Start)
		hi := min(to, p.Start+cp.Length)
		if lo >= hi {
			continue
		}
		st.timeline = p.Clip
		e.emitRange(seg, si, tp, cp, lo-p.Start, hi-p.Start, lo)
	}
}

func (e *Engine) playClip(seg *segment, si int, tp *TrackPlan, from, to float64) {
	st := &e.tracks[si]
	cp := st.clipPlan
	length := cp.Length
	remaining := to - from
	base := from
	pos := st.pos
	for remaining > 1e-12 {
		if pos >= length {
			if !cp.Looping {
				st.clip = 0
				st.clipPlan = nil
				st.pos = 0
				return
			}
			pos = math.Mod(pos, length)
		}
		if rest := length - pos; remaining >= rest {
			e.emitRange(seg, si, tp, cp, pos, length, base)
			pos = length
			base += rest
			remaining -= rest
			continue
		}
		e.emitRange(seg, si, tp, cp, pos, pos+remaining, base)
		pos += remaining
		remaining = 0
	}
	if cp.Looping && pos >= length {
		pos = 0
	}
	st.pos = pos
}

// emitRange emits the clip events whose start lies in [lo, hi) of clip time;
// base is the absolute beat of lo.
func (e *Engine) emitRange(seg *segment, si int, tp *TrackPlan, cp *ClipPlan, lo, hi, base float64) {
	st := &e.tracks[si]
	if !tp.Audible || st.step < 0 {
		return
	}
	for _, n := range cp.Notes {
		if n.Start < lo {
			continue
		}
		if n.Start >= hi {
			break
		}
		abs := base + n.Start - lo
		if len(e.held) == cap(e.held) {
			e.droppedEvents++
			continue
		}
		if !e.pushEvent(event{frame: seg.frameOf(abs), kind: evNoteOn, track: si, pitch: n.Pitch, velocity: n.Velocity}) {
			continue
		}
		e.held = append(e.held, heldNote{track: si, pitch: n.Pitch, end: abs + n.Duration})
	}
	tempo := e.clock.Tempo()
	for _, r := range cp.Regions {
		if r.Start < lo {
			continue
		}
		if r.Start >= hi {
			break
		}
		abs := base + r.Start - lo
		total := r.Entry.Frames()
		secPerBeat := 60 / tempo
		offset := min(int(r.Offset*secPerBeat*r.Entry.SampleRate), total)
		length := min(int(r.Duration*secPerBeat*r.Entry.SampleRate), total-offset)
		e.pushEvent(event{
			frame: seg.frameOf(abs),
			kind:  evRegion,
			track: si,
			region: node.Region{
				Samples:    r.Entry.Samples,
				Channels:   r.Entry.Channels,
				SampleRate: r.Entry.SampleRate,
				Offset:     offset,
				Length:     length,
				Gain:       r.Gain,
			},
		})
	}
}

func (e *Engine) scheduleNoteOffs(seg *segment) {
	kept := e.held[:0]
	for _, h := range e.held {
		if h.end < seg.b1 {
			if e.pushEvent(event{frame: seg.frameOf(h.end), kind: evNoteOff, track: h.track, pitch: h.pitch}) {
				continue
			}
		}
		kept = append(kept, h)
	}
	e.held = kept
}

// fire applies one event at its frame.
func (e *Engine) fire(ev *event) {
	st := &e.tracks[ev.track]
	switch ev.kind {
	case evLaunch:
		e.releaseTrack(ev.track)
	case evNoteOn:
		e.voices.noteOn(ev.pitch, ev.velocity, st.id, ownerDomain(e.graph.routes, st.id))
	case evNoteOff:
		e.voices.noteOff(ev.pitch, st.id)
	case evRegion:
		if st.step < 0 {
			return
		}
		if rp, ok := e.graph.steps[st.step].inst.global.(node.RegionPlayer); ok {
			rp.StartRegion(ev.region)
		}
	}
}

// Package engine is the render core. An Engine runs on the audio callback
// thread: it drains commands, swaps immutable snapshots at block boundaries,
// schedules clip and timeline events, renders the compiled graph and
// publishes readback. Nothing on the render path locks, blocks or allocates.
package engine

import (
	"time"

	"github.com/cwbudde/algo-synth/handoff"
	"github.com/cwbudde/algo-synth/node"
	"github.com/cwbudde/algo-synth/transport"
)

// Link holds the control-side endpoints of an engine. The control thread is
// the only producer of Commands and the only consumer of Reclaim and
// Readback.
type Link struct {
	Commands *handoff.Queue[Command]
	Reclaim  *handoff.Queue[*Snapshot]
	Readback *handoff.TripleBuffer[Readback]
}

// Engine renders audio. Process and Close must be called from one thread.
type Engine struct {
	cfg Config

	commands *handoff.Queue[Command]
	reclaim  *handoff.Queue[*Snapshot]
	readback *handoff.TripleBuffer[Readback]

	snap  *Snapshot
	graph *GraphPlan
	arr   *ArrangementPlan

	clock      transport.Clock
	voices     voicePool
	tracks     []trackState
	strips     []strip
	routeTrack []int
	events     []event
	held       []heldNote
	ctx        node.Context
	rb         Readback

	running         bool
	blockFrames     int
	cpu             float64
	peakL, peakR    float32
	droppedEvents   uint64
	reclaimOverflow uint64
}

// New allocates an engine and every buffer it will use.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:        cfg,
		commands:   handoff.NewQueue[Command](cfg.CommandQueueSize),
		reclaim:    handoff.NewQueue[*Snapshot](cfg.CommandQueueSize),
		readback:   handoff.NewTripleBuffer[Readback](),
		clock:      transport.NewClock(cfg.SampleRate, cfg.Tempo),
		voices:     newVoicePool(cfg.MaxVoices),
		tracks:     make([]trackState, cfg.MaxTracks),
		strips:     make([]strip, cfg.MaxTracks),
		routeTrack: make([]int, cfg.MaxTracks),
		events:     make([]event, 0, cfg.MaxEvents),
		held:       make([]heldNote, 0, cfg.MaxEvents),
		running:    true,
	}
	for i := range e.routeTrack {
		e.routeTrack[i] = -1
	}
	e.publish()
	return e, nil
}

// Link returns the control-side endpoints.
func (e *Engine) Link() Link {
	return Link{Commands: e.commands, Reclaim: e.reclaim, Readback: e.readback}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Process renders len(out)/2 interleaved stereo frames. Requests longer
// than MaxBlock are rendered in several blocks.
func (e *Engine) Process(out []float32) {
	start := time.Now()
	clear(out)
	frames := len(out) / 2
	e.peakL, e.peakR = 0, 0
	for i := range e.tracks {
		e.tracks[i].peak = 0
	}
	if !e.running {
		e.publish()
		return
	}
	for done := 0; done < frames; {
		n := min(frames-done, e.cfg.MaxBlock)
		e.block(out[2*done:2*(done+n)], n)
		done += n
	}
	for i := 0; i+1 < 2*frames; i += 2 {
		e.peakL = max(e.peakL, abs32(out[i]))
		e.peakR = max(e.peakR, abs32(out[i+1]))
	}
	if frames > 0 {
		load := time.Since(start).Seconds() / (float64(frames) / e.cfg.SampleRate)
		e.cpu = 0.9*e.cpu + 0.1*load
	}
	e.publish()
}

// Close hands the current snapshot back for reclamation and stops
// rendering. Later Process calls produce silence.
func (e *Engine) Close() {
	if !e.running {
		return
	}
	e.voices.releaseAll()
	e.release(e.snap)
	e.snap, e.graph, e.arr = nil, nil, nil
	e.running = false
	e.publish()
}

func (e *Engine) block(out []float32, n int) {
	e.drain()
	e.clock.BeginBlock()
	e.blockFrames = n
	e.beginStrips(n)
	e.automate(n)

	for off := 0; off < n; {
		seg := n - off
		at, wraps := e.clock.LoopCrossing(seg)
		if wraps {
			seg = max(at, 1)
		}
		e.segment(out, off, seg)
		off += seg
		if wraps {
			e.wrapLoop()
		}
	}
}

// segment schedules events for n frames and renders the slices between
// them.
func (e *Engine) segment(out []float32, off, n int) {
	e.events = e.events[:0]
	if e.clock.Playing() {
		bpf := e.clock.BeatsPerFrame()
		b0 := e.clock.Beat()
		e.schedule(&segment{b0: b0, b1: b0 + float64(n)*bpf, bpf: bpf, frames: n})
	}
	pos := 0
	for i := 0; i < len(e.events); {
		f := e.events[i].frame
		if f > pos {
			e.renderSlice(out, off+pos, f-pos)
			pos = f
		}
		for i < len(e.events) && e.events[i].frame == f {
			e.fire(&e.events[i])
			i++
		}
	}
	if pos < n {
		e.renderSlice(out, off+pos, n-pos)
	}
	e.clock.Advance(n)
}

// wrapLoop ends clip notes at the loop end and moves unreached launch
// boundaries to the loop start.
func (e *Engine) wrapLoop() {
	for _, h := range e.held {
		e.voices.noteOff(h.pitch, e.tracks[h.track].id)
	}
	e.held = e.held[:0]
	start := e.clock.Loop().Start
	for si := range e.tracks {
		st := &e.tracks[si]
		if st.pending {
			st.pendingAt = start
		}
	}
}

func (e *Engine) drain() {
	for i := 0; i < e.cfg.CommandBudget; i++ {
		cmd, ok := e.commands.TryPop()
		if !ok {
			return
		}
		e.apply(&cmd)
	}
}

func (e *Engine) apply(cmd *Command) {
	switch cmd.Kind {
	case CmdSwapSnapshot:
		e.swap(cmd.Snapshot)
	case CmdSetParam:
		if inst, pi := e.param(cmd); inst != nil {
			inst.smooth[pi].SetTarget(inst.Desc.Params[pi].Clamp(cmd.Value))
			inst.dirty[pi] = true
		}
	case CmdGestureBegin, CmdGestureEnd:
		if inst, pi := e.param(cmd); inst != nil {
			inst.gesture[pi] = cmd.Kind == CmdGestureBegin
		}
	case CmdPlay:
		e.clock.Play()
	case CmdStop:
		if e.clock.Playing() {
			e.clock.Stop()
			e.silenceAllTracks()
		}
	case CmdSeek:
		e.clock.Seek(cmd.Beat)
		e.silenceAllTracks()
	case CmdSetTempo:
		e.clock.SetTempo(cmd.Tempo)
	case CmdSetLoop:
		e.clock.SetLoop(cmd.Loop)
	case CmdNoteOn:
		e.voices.noteOn(cmd.Pitch, cmd.Velocity, 0, 0)
	case CmdNoteOff:
		e.voices.noteOff(cmd.Pitch, 0)
	case CmdAllNotesOff:
		e.voices.releaseAll()
		e.held = e.held[:0]
	case CmdLaunchClip, CmdStopClip:
		si := e.trackIndex(cmd.Track)
		if si < 0 || e.tracks[si].plan < 0 {
			return
		}
		clip := cmd.Clip
		if cmd.Kind == CmdStopClip {
			clip = 0
		}
		e.requestLaunch(si, clip, e.boundary())
	case CmdLaunchScene:
		if e.arr == nil || cmd.Scene < 0 {
			return
		}
		at := e.boundary()
		for si := range e.tracks {
			st := &e.tracks[si]
			if !st.inUse || st.plan < 0 {
				continue
			}
			slots := e.arr.Tracks[st.plan].Slots
			if cmd.Scene >= len(slots) || slots[cmd.Scene] == 0 {
				continue
			}
			e.requestLaunch(si, slots[cmd.Scene], at)
		}
	case CmdStopAll:
		at := e.boundary()
		for si := range e.tracks {
			st := &e.tracks[si]
			if st.inUse && (st.clip != 0 || st.pending) {
				e.requestLaunch(si, 0, at)
			}
		}
	}
}

func (e *Engine) boundary() float64 {
	return quantize(e.clock.Beat(), e.cfg.LaunchQuantum)
}

func (e *Engine) param(cmd *Command) (*Instance, int) {
	if e.graph == nil {
		return nil, -1
	}
	inst, ok := e.graph.Instance(cmd.Node)
	if !ok {
		return nil, -1
	}
	pi := inst.Desc.ParamIndex(cmd.Param)
	if pi < 0 {
		return nil, -1
	}
	return inst, pi
}

func (e *Engine) swap(s *Snapshot) {
	old := e.snap
	e.snap = s
	e.graph, e.arr = nil, nil
	if s != nil {
		e.graph, e.arr = s.Graph, s.Arrangement
	}
	e.bindTracks()
	e.release(old)
}

// release drops the engine's reference. A snapshot reaching zero goes to
// the reclaim queue; if that is full it is left to the garbage collector.
func (e *Engine) release(s *Snapshot) {
	if s == nil || !s.Release() {
		return
	}
	if !e.reclaim.TryPush(s) {
		e.reclaimOverflow++
	}
}

// automate plays automation lanes into the smoothers and pushes smoothed
// values to the processors once per block.
func (e *Engine) automate(n int) {
	gp := e.graph
	if gp == nil {
		return
	}
	if e.clock.Playing() && e.arr != nil {
		beat := e.clock.Beat()
		for li := range e.arr.Lanes {
			lp := &e.arr.Lanes[li]
			inst, ok := gp.Instance(lp.Key.Node)
			if !ok {
				continue
			}
			pi := inst.Desc.ParamIndex(lp.Key.Param)
			if pi < 0 || inst.gesture[pi] {
				continue
			}
			v, ok := lp.Lane.ValueAt(beat)
			if !ok {
				continue
			}
			v = inst.Desc.Params[pi].Clamp(v)
			if v != inst.smooth[pi].Target() {
				inst.smooth[pi].SetTarget(v)
				inst.dirty[pi] = true
			}
		}
	}
	for i := range gp.steps {
		inst := gp.steps[i].inst
		if inst.faulted {
			continue
		}
		for pi := range inst.smooth {
			sm := &inst.smooth[pi]
			if sm.Settled() && !inst.dirty[pi] {
				continue
			}
			inst.setParam(pi, sm.Advance(n))
			inst.dirty[pi] = false
		}
	}
}

func (e *Engine) beginStrips(n int) {
	if e.arr == nil {
		return
	}
	for si := range e.tracks {
		st := &e.tracks[si]
		if !st.inUse || st.plan < 0 {
			continue
		}
		tp := &e.arr.Tracks[st.plan]
		sp := &e.strips[si]
		sp.vol0 = st.volume.Value()
		st.volume.SetTarget(stripVolume(tp))
		sp.vol1 = st.volume.Advance(n)
		sp.pan0 = st.pan.Value()
		st.pan.SetTarget(tp.Pan)
		sp.pan1 = st.pan.Advance(n)
	}
}

func (e *Engine) publish() {
	rb := &e.rb
	rb.SamplePosition = e.clock.Sample()
	rb.BeatPosition = e.clock.Beat()
	rb.Tempo = e.clock.Tempo()
	rb.Playing = e.clock.Playing()
	rb.Running = e.running
	rb.CPULoad = e.cpu
	rb.ActiveVoices = e.voices.activeCount()
	rb.PeakLeft, rb.PeakRight = e.peakL, e.peakR
	rb.SnapshotVersion = 0
	if e.snap != nil {
		rb.SnapshotVersion = e.snap.Version
	}
	rb.DroppedEvents = e.droppedEvents
	rb.ReclaimOverflow = e.reclaimOverflow
	rb.TrackCount = 0
	if e.arr != nil {
		for pi := range e.arr.Tracks {
			if rb.TrackCount == MaxReadbackTracks {
				break
			}
			tr := TrackReadback{Track: e.arr.Tracks[pi].ID}
			if si := e.trackIndex(tr.Track); si >= 0 {
				st := &e.tracks[si]
				tr.Peak = st.peak
				switch {
				case st.clip != 0:
					tr.Clip, tr.Launched = st.clip, true
				case e.clock.Playing():
					tr.Clip = st.timeline
				}
			}
			rb.Tracks[rb.TrackCount] = tr
			rb.TrackCount++
		}
	}
	e.readback.Publish(*rb)
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

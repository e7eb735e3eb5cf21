package engine

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-synth/arrange"
	"github.com/cwbudde/algo-synth/catalog"
	"github.com/cwbudde/algo-synth/graph"
	"github.com/cwbudde/algo-synth/node"
	"github.com/cwbudde/algo-synth/param"
	"github.com/cwbudde/algo-synth/transport"
)

// framesPerBeat at the default 120 bpm and 48 kHz.
const framesPerBeat = 24000

type rig struct {
	t       *testing.T
	cfg     Config
	g       *graph.Graph
	arr     *arrange.Arrangement
	store   *param.Store
	cache   *InstanceCache
	eng     *Engine
	link    Link
	version uint64
	last    *Snapshot
}

func newRig(t *testing.T, cfg Config, reg *node.Registry) *rig {
	t.Helper()
	if reg == nil {
		reg = catalog.NewRegistry()
	}
	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return &rig{
		t:     t,
		cfg:   cfg,
		g:     graph.New(reg),
		arr:   arrange.New(),
		store: param.NewStore(),
		cache: NewInstanceCache(reg, cfg),
		eng:   eng,
		link:  eng.Link(),
	}
}

func (r *rig) add(typ node.TypeID) graph.NodeID {
	r.t.Helper()
	id, err := r.g.AddNode(typ, graph.Position{})
	if err != nil {
		r.t.Fatalf("add node %d: %v", typ, err)
	}
	return id
}

func (r *rig) connect(from, to graph.NodeID, port node.PortID) {
	r.t.Helper()
	if err := r.g.Connect(graph.Connection{From: from, To: to, ToPort: port}); err != nil {
		r.t.Fatalf("connect %d->%d: %v", from, to, err)
	}
}

func (r *rig) output(id graph.NodeID) {
	r.t.Helper()
	if err := r.g.SetOutput(id); err != nil {
		r.t.Fatalf("set output: %v", err)
	}
}

func (r *rig) publish() *Snapshot {
	r.t.Helper()
	gp, err := CompileGraph(r.g, Routes(r.arr.Tracks(), r.cfg.MaxTracks), r.cache, r.cfg)
	if err != nil {
		r.t.Fatalf("compile graph: %v", err)
	}
	r.version++
	snap := NewSnapshot(r.version, gp, CompileArrangement(r.arr.Version(), r.arr, r.store.Lanes()))
	r.send(Command{Kind: CmdSwapSnapshot, Snapshot: snap})
	r.last = snap
	return snap
}

func (r *rig) send(cmd Command) {
	r.t.Helper()
	if !r.link.Commands.TryPush(cmd) {
		r.t.Fatalf("command queue full for %s", cmd.Kind)
	}
}

func (r *rig) render(frames int) []float32 {
	out := make([]float32, 2*frames)
	r.eng.Process(out)
	return out
}

func (r *rig) readback() Readback {
	rb, _ := r.link.Readback.Read()
	return rb
}

func (r *rig) track(name string, target graph.NodeID) arrange.TrackID {
	r.t.Helper()
	id := r.arr.CreateTrack(name)
	if err := r.arr.SetTarget(id, target); err != nil {
		r.t.Fatalf("set target: %v", err)
	}
	return id
}

func (r *rig) clip(length float64, pitch uint8, start, duration float64) arrange.ClipID {
	r.t.Helper()
	id, err := r.arr.CreateClip("clip", length)
	if err != nil {
		r.t.Fatalf("create clip: %v", err)
	}
	if _, err := r.arr.AddNote(id, arrange.Note{Start: start, Duration: duration, Pitch: pitch, Velocity: 1}); err != nil {
		r.t.Fatalf("add note: %v", err)
	}
	return id
}

func (r *rig) slot(track arrange.TrackID, scene int, clip arrange.ClipID) {
	r.t.Helper()
	if err := r.arr.SetSlot(track, scene, clip); err != nil {
		r.t.Fatalf("set slot: %v", err)
	}
}

func (r *rig) sounding() map[uint8]bool {
	notes := make(map[uint8]bool)
	for _, s := range r.eng.voices.slots {
		if s.active && s.v.Gate {
			notes[s.v.Note] = true
		}
	}
	return notes
}

func sineToOutput(r *rig) (osc, out graph.NodeID) {
	osc = r.add(catalog.SineOsc)
	out = r.add(catalog.Output)
	r.connect(osc, out, 0)
	r.output(out)
	return osc, out
}

func TestSineNoteOnRendersOneVoice(t *testing.T) {
	r := newRig(t, DefaultConfig(), nil)
	sineToOutput(r)
	r.publish()
	r.send(Command{Kind: CmdNoteOn, Pitch: 69, Velocity: 1})

	out := r.render(512)
	rb := r.readback()
	if rb.ActiveVoices != 1 {
		t.Fatalf("expected 1 active voice, got %d", rb.ActiveVoices)
	}
	if rb.PeakLeft <= 0 || rb.PeakRight <= 0 {
		t.Fatalf("expected signal on both channels, got %v/%v", rb.PeakLeft, rb.PeakRight)
	}
	for i := 0; i < len(out); i += 2 {
		if out[i] != out[i+1] {
			t.Fatalf("mono source should be centred, frame %d: %v != %v", i/2, out[i], out[i+1])
		}
	}
	if rb.SnapshotVersion != 1 || !rb.Running {
		t.Fatalf("unexpected readback state: %+v", rb)
	}
}

func TestNoteOffFreesVoiceWithoutEnvelope(t *testing.T) {
	r := newRig(t, DefaultConfig(), nil)
	sineToOutput(r)
	r.publish()
	r.send(Command{Kind: CmdNoteOn, Pitch: 60, Velocity: 1})
	r.render(256)
	r.send(Command{Kind: CmdNoteOff, Pitch: 60})
	r.render(256)
	if got := r.readback().ActiveVoices; got != 0 {
		t.Fatalf("expected released voice to be freed, got %d active", got)
	}
}

func TestEnvelopeHoldsVoiceThroughRelease(t *testing.T) {
	r := newRig(t, DefaultConfig(), nil)
	osc := r.add(catalog.SineOsc)
	env := r.add(catalog.ADSR)
	out := r.add(catalog.Output)
	r.connect(osc, env, 0)
	r.connect(env, out, 0)
	r.output(out)
	if _, err := r.g.SetParam(env, catalog.ParamRelease, 0.5); err != nil {
		t.Fatalf("set release: %v", err)
	}
	r.publish()
	r.send(Command{Kind: CmdNoteOn, Pitch: 60, Velocity: 1})
	r.render(512)
	r.send(Command{Kind: CmdNoteOff, Pitch: 60})
	r.render(512)
	if got := r.readback().ActiveVoices; got != 1 {
		t.Fatalf("expected envelope to hold the voice, got %d active", got)
	}
}

func TestVoiceStealingTakesOldest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxVoices = 4
	r := newRig(t, cfg, nil)
	sineToOutput(r)
	r.publish()
	for p := uint8(60); p <= 64; p++ {
		r.send(Command{Kind: CmdNoteOn, Pitch: p, Velocity: 1})
	}
	r.render(256)
	if got := r.readback().ActiveVoices; got != 4 {
		t.Fatalf("expected 4 active voices, got %d", got)
	}
	notes := r.sounding()
	if notes[60] {
		t.Fatalf("oldest note 60 should have been stolen: %v", notes)
	}
	for p := uint8(61); p <= 64; p++ {
		if !notes[p] {
			t.Fatalf("note %d missing: %v", p, notes)
		}
	}
}

func TestCommandBudgetDefersExcessCommands(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CommandBudget = 2
	r := newRig(t, cfg, nil)
	sineToOutput(r)
	r.publish()
	r.render(64)
	for p := uint8(60); p < 65; p++ {
		r.send(Command{Kind: CmdNoteOn, Pitch: p, Velocity: 1})
	}
	r.render(64)
	if got := r.readback().ActiveVoices; got != 2 {
		t.Fatalf("expected 2 voices after one block, got %d", got)
	}
	r.render(64)
	if got := r.readback().ActiveVoices; got != 4 {
		t.Fatalf("expected 4 voices after two blocks, got %d", got)
	}
}

// twoTrackRig wires two oscillators through a mixer, one per track.
func twoTrackRig(t *testing.T, cfg Config) (*rig, arrange.TrackID, arrange.TrackID) {
	r := newRig(t, cfg, nil)
	a := r.add(catalog.SineOsc)
	b := r.add(catalog.SineOsc)
	mix := r.add(catalog.Mixer)
	out := r.add(catalog.Output)
	r.connect(a, mix, 0)
	r.connect(b, mix, 1)
	r.connect(mix, out, 0)
	r.output(out)
	return r, r.track("A", a), r.track("B", b)
}

func TestSceneLaunchIsAtomicAcrossTracks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LaunchQuantum = 1
	r, ta, tb := twoTrackRig(t, cfg)
	r.arr.CreateScene("one")
	ca := r.clip(4, 60, 0, 2)
	cb := r.clip(4, 64, 0, 2)
	r.slot(ta, 0, ca)
	r.slot(tb, 0, cb)
	r.publish()
	r.send(Command{Kind: CmdPlay})
	r.render(framesPerBeat * 3 / 10)

	r.send(Command{Kind: CmdLaunchScene, Scene: 0})
	r.render(512)
	sa := &r.eng.tracks[r.eng.trackIndex(ta)]
	sb := &r.eng.tracks[r.eng.trackIndex(tb)]
	if !sa.pending || !sb.pending {
		t.Fatalf("expected both launches pending")
	}
	if sa.pendingAt != 1 || sb.pendingAt != 1 {
		t.Fatalf("expected shared boundary at beat 1, got %v and %v", sa.pendingAt, sb.pendingAt)
	}
	if len(r.sounding()) != 0 {
		t.Fatalf("nothing should sound before the boundary")
	}

	r.render(framesPerBeat)
	rb := r.readback()
	for _, id := range []arrange.TrackID{ta, tb} {
		tr, ok := rb.Track(id)
		if !ok || !tr.Launched || tr.Clip == 0 {
			t.Fatalf("track %d not launched: %+v", id, tr)
		}
		if tr.Peak <= 0 {
			t.Fatalf("track %d silent after launch", id)
		}
	}
	notes := r.sounding()
	if !notes[60] || !notes[64] {
		t.Fatalf("expected both clip notes, got %v", notes)
	}
}

func TestSceneWithEmptySlotLeavesTrackSilent(t *testing.T) {
	r, ta, tb := twoTrackRig(t, DefaultConfig())
	r.arr.CreateScene("one")
	r.arr.CreateScene("two")
	ca := r.clip(4, 60, 0, 4)
	cb := r.clip(4, 64, 0, 4)
	r.slot(ta, 0, ca)
	r.slot(tb, 0, cb)
	r.slot(ta, 1, ca)
	r.publish()
	r.send(Command{Kind: CmdPlay})
	r.send(Command{Kind: CmdLaunchScene, Scene: 1})
	r.render(2048)

	rb := r.readback()
	a, _ := rb.Track(ta)
	b, _ := rb.Track(tb)
	if a.Clip != ca || a.Peak <= 0 {
		t.Fatalf("track A should play clip %d: %+v", ca, a)
	}
	if b.Clip != 0 || b.Peak != 0 {
		t.Fatalf("track B should stay silent: %+v", b)
	}
}

func TestLaunchedClipMutesTimeline(t *testing.T) {
	r, ta, _ := twoTrackRig(t, DefaultConfig())
	timeline := r.clip(4, 72, 0.5, 1)
	launched := r.clip(4, 60, 0, 4)
	if _, err := r.arr.Schedule(ta, timeline, 0); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	r.publish()
	r.send(Command{Kind: CmdPlay})
	r.send(Command{Kind: CmdLaunchClip, Track: ta, Clip: launched})
	r.render(framesPerBeat)
	notes := r.sounding()
	if !notes[60] || notes[72] {
		t.Fatalf("expected only the launched clip, got %v", notes)
	}

	r.send(Command{Kind: CmdStopClip, Track: ta})
	r.send(Command{Kind: CmdSeek, Beat: 0})
	r.render(framesPerBeat)
	notes = r.sounding()
	if notes[60] || !notes[72] {
		t.Fatalf("expected the timeline clip after stop, got %v", notes)
	}
	rb := r.readback()
	tr, _ := rb.Track(ta)
	if tr.Launched || tr.Clip != timeline {
		t.Fatalf("expected timeline clip in readback, got %+v", tr)
	}
}

func TestClipNotesEndAtTheirDuration(t *testing.T) {
	r, ta, _ := twoTrackRig(t, DefaultConfig())
	c := r.clip(4, 60, 0, 0.5)
	r.publish()
	r.send(Command{Kind: CmdPlay})
	r.send(Command{Kind: CmdLaunchClip, Track: ta, Clip: c})
	r.render(framesPerBeat / 4)
	if !r.sounding()[60] {
		t.Fatalf("note should sound during its duration")
	}
	r.render(framesPerBeat / 2)
	if r.sounding()[60] {
		t.Fatalf("note should be released after half a beat")
	}
}

func TestQuantizedLaunchReleasesNotesAtTheirDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LaunchQuantum = 1
	r, ta, _ := twoTrackRig(t, cfg)
	old := r.clip(8, 64, 0, 4)
	c := r.clip(8, 60, 0, 0.5)
	r.publish()
	r.send(Command{Kind: CmdPlay})
	r.send(Command{Kind: CmdLaunchClip, Track: ta, Clip: old})
	r.render(framesPerBeat / 4)
	if !r.sounding()[64] {
		t.Fatalf("first clip should sound before the boundary")
	}

	r.send(Command{Kind: CmdLaunchClip, Track: ta, Clip: c})
	r.render(framesPerBeat)
	notes := r.sounding()
	if notes[64] || !notes[60] {
		t.Fatalf("expected only the launched note after the boundary, got %v", notes)
	}
	r.render(framesPerBeat)
	if r.sounding()[60] {
		t.Fatalf("launched note still gated at beat 2.25, held=%d", len(r.eng.held))
	}
	if got := r.readback().ActiveVoices; got != 0 {
		t.Fatalf("expected no voices after the note ended, got %d", got)
	}
}

func TestAudioRegionPlaysOnTarget(t *testing.T) {
	r := newRig(t, DefaultConfig(), nil)
	player := r.add(catalog.AudioPlayer)
	out := r.add(catalog.Output)
	r.connect(player, out, 0)
	r.output(out)
	samples := make([]float32, 48000)
	for i := range samples {
		samples[i] = 0.5
	}
	audio, err := r.arr.AddAudio("dc", 48000, 1, samples)
	if err != nil {
		t.Fatalf("add audio: %v", err)
	}
	c, err := r.arr.CreateClipFromAudio(audio, transport.DefaultTempo)
	if err != nil {
		t.Fatalf("clip from audio: %v", err)
	}
	tr := r.track("audio", player)
	r.publish()
	r.send(Command{Kind: CmdPlay})
	r.send(Command{Kind: CmdLaunchClip, Track: tr, Clip: c})
	r.render(1024)
	rb := r.readback()
	if rb.PeakLeft < 0.3 {
		t.Fatalf("expected region audio on the output, peak %v", rb.PeakLeft)
	}
	if tb, _ := rb.Track(tr); tb.Peak <= 0 {
		t.Fatalf("expected track meter to move")
	}
}

func TestTrackOffOutputIsMixedToMaster(t *testing.T) {
	r := newRig(t, DefaultConfig(), nil)
	sineToOutput(r)
	lone := r.add(catalog.SineOsc)
	ta := r.track("lone", lone)
	c := r.clip(4, 60, 0, 4)
	r.publish()
	r.send(Command{Kind: CmdPlay})
	r.send(Command{Kind: CmdLaunchClip, Track: ta, Clip: c})
	r.render(1024)
	rb := r.readback()
	if rb.PeakLeft <= 0 {
		t.Fatalf("track outside the output subgraph should still reach the master")
	}
	if rb.ActiveVoices != 1 {
		t.Fatalf("expected only the clip voice, got %d", rb.ActiveVoices)
	}
}

func TestMutedTrackIsSilent(t *testing.T) {
	r, ta, _ := twoTrackRig(t, DefaultConfig())
	c := r.clip(4, 60, 0, 4)
	if err := r.arr.SetMute(ta, true); err != nil {
		t.Fatalf("mute: %v", err)
	}
	r.publish()
	r.send(Command{Kind: CmdPlay})
	r.send(Command{Kind: CmdLaunchClip, Track: ta, Clip: c})
	r.render(1024)
	rb := r.readback()
	if rb.PeakLeft != 0 || rb.ActiveVoices != 0 {
		t.Fatalf("muted track produced output: peak %v voices %d", rb.PeakLeft, rb.ActiveVoices)
	}
}

type panicProcessor struct{}

func (panicProcessor) Prepare(float64, int)          {}
func (panicProcessor) SetParam(node.ParamID, float32) {}
func (panicProcessor) Reset()                         {}
func (panicProcessor) Process(*node.Context, []node.Buffer, node.Buffer) {
	panic("processor failure")
}

type nanProcessor struct{}

func (nanProcessor) Prepare(float64, int)          {}
func (nanProcessor) SetParam(node.ParamID, float32) {}
func (nanProcessor) Reset()                         {}
func (nanProcessor) Process(ctx *node.Context, _ []node.Buffer, out node.Buffer) {
	for _, ch := range out {
		for i := range ch[:ctx.Frames] {
			ch[i] = float32(math.NaN())
		}
	}
}

func faultRegistry() *node.Registry {
	r := node.NewRegistry()
	catalog.Register(r)
	out := []node.Port{{ID: 0, Name: "Out", Kind: node.Audio}}
	r.MustRegister(node.Descriptor{
		Type: 900, Name: "Panic", Outputs: out, Channels: 2,
		New: func() node.Processor { return panicProcessor{} },
	})
	r.MustRegister(node.Descriptor{
		Type: 901, Name: "NaN", Outputs: out, Channels: 2,
		New: func() node.Processor { return nanProcessor{} },
	})
	r.Seal()
	return r
}

func TestFaultedNodesRenderSilence(t *testing.T) {
	r := newRig(t, DefaultConfig(), faultRegistry())
	osc, out := sineToOutput(r)
	bad := r.add(900)
	nan := r.add(901)
	r.connect(bad, out, 0)
	r.connect(nan, out, 0)
	r.publish()
	r.send(Command{Kind: CmdNoteOn, Pitch: 69, Velocity: 1})

	buf := r.render(512)
	for i, v := range buf {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("non-finite sample at %d", i)
		}
	}
	if r.readback().PeakLeft <= 0 {
		t.Fatalf("healthy nodes should keep rendering")
	}
	for _, id := range []graph.NodeID{bad, nan} {
		inst, ok := r.last.Graph.Instance(id)
		if !ok || !inst.Faulted() {
			t.Fatalf("node %d should be faulted", id)
		}
	}
	if inst, _ := r.last.Graph.Instance(osc); inst.Faulted() {
		t.Fatalf("oscillator should not be faulted")
	}
}

func TestReplacedSnapshotsAreReclaimed(t *testing.T) {
	r := newRig(t, DefaultConfig(), nil)
	sineToOutput(r)
	first := r.publish()
	r.render(64)
	second := r.publish()
	r.render(64)

	got, ok := r.link.Reclaim.TryPop()
	if !ok || got != first {
		t.Fatalf("expected first snapshot on the reclaim queue")
	}
	if first.Refs() != 0 || second.Refs() != 1 {
		t.Fatalf("unexpected refs: first=%d second=%d", first.Refs(), second.Refs())
	}

	r.eng.Close()
	got, ok = r.link.Reclaim.TryPop()
	if !ok || got != second {
		t.Fatalf("expected current snapshot reclaimed on close")
	}
	if r.readback().Running {
		t.Fatalf("expected Running false after close")
	}
	buf := r.render(64)
	for _, v := range buf {
		if v != 0 {
			t.Fatalf("closed engine must render silence")
		}
	}
}

func TestLoopWrapsPlayhead(t *testing.T) {
	r := newRig(t, DefaultConfig(), nil)
	sineToOutput(r)
	r.publish()
	r.send(Command{Kind: CmdSetLoop, Loop: transport.Loop{Enabled: true, Start: 0, End: 1}})
	r.send(Command{Kind: CmdPlay})
	r.render(framesPerBeat + framesPerBeat/4)
	rb := r.readback()
	if math.Abs(rb.BeatPosition-0.25) > 1e-4 {
		t.Fatalf("expected beat 0.25 after wrap, got %v", rb.BeatPosition)
	}
	if rb.SamplePosition != framesPerBeat+framesPerBeat/4 {
		t.Fatalf("sample position should keep counting, got %d", rb.SamplePosition)
	}
}

func TestLoopedClipRetriggersEachCycle(t *testing.T) {
	r, ta, _ := twoTrackRig(t, DefaultConfig())
	c := r.clip(1, 60, 0, 0.25)
	r.publish()
	r.send(Command{Kind: CmdPlay})
	r.send(Command{Kind: CmdLaunchClip, Track: ta, Clip: c})
	r.render(framesPerBeat / 2)
	if r.sounding()[60] {
		t.Fatalf("note should have ended by half a beat")
	}
	r.render(framesPerBeat/2 + framesPerBeat/8)
	if !r.sounding()[60] {
		t.Fatalf("looped clip should retrigger on the next cycle")
	}
}

func TestAutomationDrivesParameterUntilGesture(t *testing.T) {
	r := newRig(t, DefaultConfig(), nil)
	osc, _ := sineToOutput(r)
	key := param.Key{Node: osc, Param: catalog.ParamFreq}
	r.store.Begin(key)
	r.store.Write(key, 880, 0)
	r.store.End(key)
	r.publish()
	r.send(Command{Kind: CmdPlay})
	r.render(512)

	inst, _ := r.last.Graph.Instance(osc)
	pi := inst.Desc.ParamIndex(catalog.ParamFreq)
	if got := inst.smooth[pi].Target(); got != 880 {
		t.Fatalf("expected lane to target 880, got %v", got)
	}

	r.send(Command{Kind: CmdGestureBegin, Node: osc, Param: catalog.ParamFreq})
	r.send(Command{Kind: CmdSetParam, Node: osc, Param: catalog.ParamFreq, Value: 300})
	r.render(512)
	if got := inst.smooth[pi].Target(); got != 300 {
		t.Fatalf("gesture should suspend lane playback, target %v", got)
	}
}

func TestQuantize(t *testing.T) {
	cases := []struct{ beat, q, want float64 }{
		{0, 1, 0},
		{0.3, 1, 1},
		{1, 1, 1},
		{4.01, 4, 8},
		{2.5, 0, 2.5},
	}
	for _, c := range cases {
		if got := quantize(c.beat, c.q); got != c.want {
			t.Fatalf("quantize(%v, %v) = %v, want %v", c.beat, c.q, got, c.want)
		}
	}
}

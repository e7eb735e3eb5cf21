package session

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-synth/analysis"
	"github.com/cwbudde/algo-synth/arrange"
	"github.com/cwbudde/algo-synth/catalog"
	"github.com/cwbudde/algo-synth/fault"
	"github.com/cwbudde/algo-synth/graph"
	"github.com/cwbudde/algo-synth/internal/wavio"
	"github.com/cwbudde/algo-synth/node"
	"github.com/cwbudde/algo-synth/transport"
)

func newSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s, err := New(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return s
}

func render(s *Session, frames int) []float32 {
	out := make([]float32, 2*frames)
	s.Engine().Process(out)
	s.Poll()
	return out
}

func addNode(t *testing.T, s *Session, typ node.TypeID) graph.NodeID {
	t.Helper()
	id, err := s.AddNode(typ, graph.Position{})
	require.NoError(t, err)
	return id
}

func connect(t *testing.T, s *Session, from, to graph.NodeID, port node.PortID) {
	t.Helper()
	require.NoError(t, s.Connect(graph.Connection{From: from, To: to, ToPort: port}))
}

func clipWithNote(t *testing.T, s *Session, pitch uint8) arrange.ClipID {
	t.Helper()
	c, err := s.CreateClip("clip", 4)
	require.NoError(t, err)
	_, err = s.AddNote(c, arrange.Note{Start: 0, Duration: 4, Pitch: pitch, Velocity: 1})
	require.NoError(t, err)
	return c
}

func TestNewUsesDefaults(t *testing.T) {
	s := newSession(t, DefaultConfig())
	assert.NotZero(t, s.ID())
	assert.Equal(t, DefaultName, s.Name())
	assert.Equal(t, transport.DefaultTempo, s.Tempo())

	render(s, 64)
	rb := s.Readback()
	assert.True(t, rb.Running)
	assert.Equal(t, uint64(1), rb.SnapshotVersion)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "loud"
	_, err := New(cfg)
	require.ErrorIs(t, err, fault.ErrInvalidRange)

	cfg = DefaultConfig()
	cfg.MaxBlock = 1
	_, err = New(cfg)
	require.ErrorIs(t, err, fault.ErrInvalidRange)
}

func TestNewRejectsUnsealedRegistry(t *testing.T) {
	reg := node.NewRegistry()
	catalog.Register(reg)
	_, err := New(DefaultConfig(), WithRegistry(reg))
	require.ErrorIs(t, err, ErrUnsealedRegistry)
}

func TestSineNoteOnScenario(t *testing.T) {
	s := newSession(t, DefaultConfig())
	osc := addNode(t, s, catalog.SineOsc)
	out := addNode(t, s, catalog.Output)
	connect(t, s, osc, out, 0)
	require.NoError(t, s.SetOutput(out))

	require.NoError(t, s.NoteOn(69, 1))
	render(s, 512)
	rb := s.Readback()
	assert.Equal(t, 1, rb.ActiveVoices)
	assert.Greater(t, rb.PeakLeft, float32(0))
	assert.Greater(t, rb.PeakRight, float32(0))

	freq, err := analysis.DominantFrequency(analysis.Mono(render(s, 16384)), 48000)
	require.NoError(t, err)
	assert.InDelta(t, 440.0, freq, 2.0)
}

func TestSetTempoRejectsNegative(t *testing.T) {
	s := newSession(t, DefaultConfig())
	require.NoError(t, s.SetTempo(140))

	err := s.SetTempo(-5)
	require.ErrorIs(t, err, fault.ErrInvalidRange)
	require.ErrorIs(t, err, transport.ErrInvalidTempo)
	assert.Equal(t, 140.0, s.Tempo())

	render(s, 64)
	assert.Equal(t, 140.0, s.Readback().Tempo)
}

func TestVoiceStealingKeepsLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxVoices = 4
	s := newSession(t, cfg)
	osc := addNode(t, s, catalog.SineOsc)
	out := addNode(t, s, catalog.Output)
	connect(t, s, osc, out, 0)
	require.NoError(t, s.SetOutput(out))

	for p := uint8(60); p <= 64; p++ {
		require.NoError(t, s.NoteOn(p, 0.8))
	}
	render(s, 256)
	assert.Equal(t, 4, s.Readback().ActiveVoices)
}

func TestCyclicConnectLeavesGraphUnchanged(t *testing.T) {
	s := newSession(t, DefaultConfig())
	a := addNode(t, s, catalog.Gain)
	b := addNode(t, s, catalog.Gain)
	connect(t, s, a, b, 0)
	before := s.Connections()
	published := s.SnapshotVersion()

	err := s.Connect(graph.Connection{From: b, To: a})
	require.ErrorIs(t, err, fault.ErrInvalidTopology)
	var cycle *graph.CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, before, s.Connections())
	assert.Equal(t, published, s.SnapshotVersion())
}

func TestRemoveNodeCascades(t *testing.T) {
	s := newSession(t, DefaultConfig())
	osc := addNode(t, s, catalog.SineOsc)
	gain := addNode(t, s, catalog.Gain)
	out := addNode(t, s, catalog.Output)
	connect(t, s, osc, gain, 0)
	connect(t, s, gain, out, 0)
	require.NoError(t, s.SetOutput(out))

	tr := s.CreateTrack("lead")
	require.NoError(t, s.SetTrackTarget(tr, gain))
	require.NoError(t, s.BeginGesture(gain, catalog.ParamGain))
	_, err := s.SetParam(gain, catalog.ParamGain, -6)
	require.NoError(t, err)
	require.NoError(t, s.EndGesture(gain, catalog.ParamGain))
	_, ok := s.AutomationLane(gain, catalog.ParamGain)
	require.True(t, ok)

	require.NoError(t, s.RemoveNode(gain))
	assert.Equal(t, 2, s.NodeCount())
	assert.Empty(t, s.Connections())
	track, _ := s.Track(tr)
	assert.Zero(t, track.Target)
	_, ok = s.AutomationLane(gain, catalog.ParamGain)
	assert.False(t, ok)

	require.ErrorIs(t, s.RemoveNode(gain), fault.ErrNotFound)
}

func TestSetTrackTargetRequiresNode(t *testing.T) {
	s := newSession(t, DefaultConfig())
	tr := s.CreateTrack("lead")
	require.ErrorIs(t, s.SetTrackTarget(tr, 42), fault.ErrNotFound)
	require.ErrorIs(t, s.SetTrackTarget(99, 0), fault.ErrNotFound)
}

func TestScheduleOverwritesPlacement(t *testing.T) {
	s := newSession(t, DefaultConfig())
	tr := s.CreateTrack("drums")
	first := clipWithNote(t, s, 36)
	second := clipWithNote(t, s, 38)

	require.NoError(t, s.Schedule(tr, first, 4))
	require.NoError(t, s.Schedule(tr, second, 4))
	ps := s.Placements(tr)
	require.Len(t, ps, 1)
	assert.Equal(t, second, ps[0].Clip)

	assert.True(t, s.Unschedule(tr, 4))
	assert.False(t, s.Unschedule(tr, 4))
}

func TestSceneLaunchLeavesEmptySlotTrackSilent(t *testing.T) {
	s := newSession(t, DefaultConfig())
	a := addNode(t, s, catalog.SineOsc)
	b := addNode(t, s, catalog.SineOsc)
	mix := addNode(t, s, catalog.Mixer)
	out := addNode(t, s, catalog.Output)
	connect(t, s, a, mix, 0)
	connect(t, s, b, mix, 1)
	connect(t, s, mix, out, 0)
	require.NoError(t, s.SetOutput(out))

	ta := s.CreateTrack("A")
	tb := s.CreateTrack("B")
	require.NoError(t, s.SetTrackTarget(ta, a))
	require.NoError(t, s.SetTrackTarget(tb, b))
	one := s.CreateScene("one")
	two := s.CreateScene("two")
	ca := clipWithNote(t, s, 60)
	cb := clipWithNote(t, s, 64)
	require.NoError(t, s.SetClipSlot(ta, one, ca))
	require.NoError(t, s.SetClipSlot(tb, one, cb))
	require.NoError(t, s.SetClipSlot(ta, two, ca))

	s.Play()
	require.NoError(t, s.LaunchScene(two))
	for range 4 {
		render(s, 512)
	}

	clip, launched, ok := s.PlayingClip(ta)
	require.True(t, ok)
	assert.Equal(t, ca, clip)
	assert.True(t, launched)
	_, _, ok = s.PlayingClip(tb)
	assert.False(t, ok)

	rb := s.Readback()
	trB, found := rb.Track(tb)
	require.True(t, found)
	assert.Zero(t, trB.Peak)
	trA, _ := rb.Track(ta)
	assert.Greater(t, trA.Peak, float32(0))
	assert.True(t, s.IsPlaying())
}

func TestSetClipSlotRequiresScene(t *testing.T) {
	s := newSession(t, DefaultConfig())
	tr := s.CreateTrack("A")
	c := clipWithNote(t, s, 60)
	require.ErrorIs(t, s.SetClipSlot(tr, 7, c), fault.ErrNotFound)
	require.ErrorIs(t, s.LaunchScene(7), fault.ErrNotFound)
}

func TestGestureRecordsLane(t *testing.T) {
	s := newSession(t, DefaultConfig())
	gain := addNode(t, s, catalog.Gain)

	require.NoError(t, s.BeginGesture(gain, catalog.ParamGain))
	assert.True(t, s.GestureOpen(gain, catalog.ParamGain))
	s.Seek(0)
	_, err := s.SetParam(gain, catalog.ParamGain, -6)
	require.NoError(t, err)
	s.Seek(2)
	stored, err := s.SetParam(gain, catalog.ParamGain, 40)
	require.NoError(t, err)
	assert.Equal(t, float32(12), stored)
	require.NoError(t, s.EndGesture(gain, catalog.ParamGain))
	assert.False(t, s.GestureOpen(gain, catalog.ParamGain))

	lane, ok := s.AutomationLane(gain, catalog.ParamGain)
	require.True(t, ok)
	require.Len(t, lane, 2)
	assert.Equal(t, 0.0, lane[0].Beat)
	assert.Equal(t, float32(-6), lane[0].Value)
	assert.Equal(t, 2.0, lane[1].Beat)
	assert.Equal(t, float32(12), lane[1].Value)

	require.NoError(t, s.EndGesture(gain, catalog.ParamGain))
	assert.True(t, s.ClearAutomation(gain, catalog.ParamGain))
	assert.False(t, s.ClearAutomation(gain, catalog.ParamGain))
}

func TestFullQueueKeepsSnapshotPending(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CommandQueueSize = 2
	s := newSession(t, cfg)
	addNode(t, s, catalog.SineOsc)
	require.False(t, s.Pending())
	addNode(t, s, catalog.SineOsc)
	require.True(t, s.Pending())

	require.NoError(t, s.NoteOn(60, 1))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.commandsDropped))

	render(s, 64)
	assert.False(t, s.Pending())
	render(s, 64)
	assert.Equal(t, s.SnapshotVersion(), s.Readback().SnapshotVersion)
	assert.Equal(t, 0, s.Readback().ActiveVoices)
	assert.Positive(t, testutil.ToFloat64(s.metrics.snapshotsReclaimed))
}

func TestHandleMIDI(t *testing.T) {
	s := newSession(t, DefaultConfig())
	osc := addNode(t, s, catalog.SineOsc)
	out := addNode(t, s, catalog.Output)
	connect(t, s, osc, out, 0)
	require.NoError(t, s.SetOutput(out))

	assert.True(t, s.HandleMIDI([]byte{0x90, 60, 100}))
	render(s, 128)
	assert.Equal(t, 1, s.Readback().ActiveVoices)

	assert.True(t, s.HandleMIDI([]byte{0x90, 60, 0}))
	render(s, 128)
	assert.Equal(t, 0, s.Readback().ActiveVoices)

	assert.True(t, s.HandleMIDI([]byte{0x91, 62, 90}))
	assert.True(t, s.HandleMIDI([]byte{0xB0, 123, 0}))
	assert.False(t, s.HandleMIDI([]byte{0xC0, 5}))
}

func TestClipMIDIRoundTrip(t *testing.T) {
	s := newSession(t, DefaultConfig())
	c, err := s.CreateClip("riff", 8)
	require.NoError(t, err)
	notes := []arrange.Note{
		{Start: 0, Duration: 1, Pitch: 60, Velocity: 1},
		{Start: 0, Duration: 0.5, Pitch: 64, Velocity: 0.5},
		{Start: 1, Duration: 1, Pitch: 60, Velocity: 1},
		{Start: 6.5, Duration: 0.25, Pitch: 67, Velocity: 0.25},
	}
	for _, n := range notes {
		_, err := s.AddNote(c, n)
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, s.ExportClipMIDI(c, &buf))
	id, err := s.ImportMIDIClip(&buf, "imported")
	require.NoError(t, err)

	got, ok := s.Clip(id)
	require.True(t, ok)
	assert.Equal(t, 8.0, got.Length)
	require.Len(t, got.Notes, len(notes))
	for i, want := range notes {
		n := got.Notes[i]
		assert.Equal(t, want.Pitch, n.Pitch, "note %d", i)
		assert.InDelta(t, want.Start, n.Start, 1e-9, "note %d", i)
		assert.InDelta(t, want.Duration, n.Duration, 1e-9, "note %d", i)
		assert.InDelta(t, want.Velocity, n.Velocity, 0.01, "note %d", i)
	}

	require.ErrorIs(t, s.ExportClipMIDI(999, &buf), fault.ErrNotFound)
}

func TestImportAudioFileResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	samples := make([]float32, 24000)
	for i := range samples {
		samples[i] = 0.25
	}
	require.NoError(t, wavio.WriteMono(path, samples, 24000))

	s := newSession(t, DefaultConfig())
	id, err := s.ImportAudioFile(path)
	require.NoError(t, err)
	e, ok := s.Audio(id)
	require.True(t, ok)
	assert.Equal(t, "tone.wav", e.Name)
	assert.Equal(t, 48000.0, e.SampleRate)
	assert.InDelta(t, 48000, e.Frames(), 1024)
	assert.InDelta(t, 0.25, e.Samples[e.Frames()/2*e.Channels], 0.01)
	assert.Equal(t, 1, s.AudioCount())

	c, err := s.CreateClipFromAudio(id)
	require.NoError(t, err)
	require.ErrorIs(t, s.RemoveAudio(id), fault.ErrInvalidAudioReference)
	require.NoError(t, s.DeleteClip(c))
	require.NoError(t, s.RemoveAudio(id))
	assert.Zero(t, s.AudioCount())

	_, err = s.ImportAudioFile(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
}

func TestTransportEcho(t *testing.T) {
	s := newSession(t, DefaultConfig())
	assert.Equal(t, 0.0, s.Seek(-3))
	require.ErrorIs(t, s.SetLoop(true, 4, 2), fault.ErrInvalidRange)
	require.NoError(t, s.SetLoop(true, 0, 4))

	s.Play()
	render(s, 48000)
	beat, sample := s.Position()
	assert.Equal(t, int64(48000), sample)
	assert.InDelta(t, 2.0, beat, 1e-6)

	s.Stop()
	render(s, 64)
	assert.False(t, s.IsPlaying())
	assert.False(t, s.Readback().Playing)
}

func TestStopAfterPollReachesEngine(t *testing.T) {
	s := newSession(t, DefaultConfig())
	render(s, 64)
	s.Play()
	s.Poll()
	s.Stop()
	render(s, 64)
	render(s, 64)
	assert.False(t, s.Readback().Playing)
	assert.False(t, s.IsPlaying())

	s.Play()
	render(s, 64)
	assert.True(t, s.Readback().Playing)
}

func TestFullQueueResendsRunState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CommandQueueSize = 2
	s := newSession(t, cfg)
	render(s, 64)
	require.NoError(t, s.NoteOff(60))
	require.NoError(t, s.NoteOff(61))
	s.Play()
	assert.True(t, s.IsPlaying())
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.commandsDropped))

	render(s, 64)
	render(s, 64)
	assert.True(t, s.Readback().Playing)
}

func TestFullQueueResendsParam(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CommandQueueSize = 2
	s := newSession(t, cfg)
	osc := addNode(t, s, catalog.SineOsc)
	gain := addNode(t, s, catalog.Gain)
	out := addNode(t, s, catalog.Output)
	connect(t, s, osc, gain, 0)
	connect(t, s, gain, out, 0)
	require.NoError(t, s.SetOutput(out))
	for i := 0; i < 8 && (s.Pending() || s.Readback().SnapshotVersion != s.SnapshotVersion()); i++ {
		render(s, 64)
	}
	require.Equal(t, s.SnapshotVersion(), s.Readback().SnapshotVersion)

	require.NoError(t, s.NoteOn(69, 1))
	require.NoError(t, s.NoteOff(70))
	stored, err := s.SetParam(gain, catalog.ParamGain, -60)
	require.NoError(t, err)
	assert.Equal(t, float32(-60), stored)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.commandsDropped))
	assert.Len(t, s.dirtyParams, 1)

	render(s, 512)
	assert.Empty(t, s.dirtyParams)
	render(s, 9600)
	tail := render(s, 512)
	assert.Equal(t, 1, s.Readback().ActiveVoices)
	assert.Less(t, analysis.Peak(analysis.Mono(tail)), 0.01)
}

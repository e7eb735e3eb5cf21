// Package host is the boundary for foreign callers such as a plugin shell or
// a WebAssembly page. Every id is a plain uint32; failures come back as
// InvalidID or false instead of errors, and calls on a destroyed handle are
// no-ops.
//
// Control methods must be called from one thread. Engine methods must be
// called from the audio thread.
package host

import (
	"math"

	"github.com/cwbudde/algo-synth/arrange"
	"github.com/cwbudde/algo-synth/engine"
	"github.com/cwbudde/algo-synth/graph"
	"github.com/cwbudde/algo-synth/node"
	"github.com/cwbudde/algo-synth/session"
)

// InvalidID is returned by id-producing calls on failure and is accepted by
// SetTrackTarget and SetClipSlot to clear a reference.
const InvalidID uint32 = math.MaxUint32

// Host is the control-thread handle of a session.
type Host struct {
	s      *session.Session
	engine *Engine
}

// New creates a session with its paired engine. An empty name uses the
// session default.
func New(name string, cfg session.Config, opts ...session.Option) (*Host, error) {
	cfg.Name = name
	s, err := session.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Host{s: s, engine: newEngine(s.Engine(), cfg.MaxBlock)}, nil
}

// Session returns the wrapped session, or nil once destroyed.
func (h *Host) Session() *session.Session {
	return h.s
}

// Engine returns the audio-thread handle.
func (h *Host) Engine() *Engine {
	return h.engine
}

// DestroySession releases the control side. The engine keeps rendering its
// last snapshot until it is destroyed too.
func (h *Host) DestroySession() {
	h.s = nil
}

// DestroyEngine releases the audio side. It must not run concurrently with
// Render.
func (h *Host) DestroyEngine() {
	h.engine.Destroy()
}

func ok(err error) bool {
	return err == nil
}

func id32[T ~uint32](id T, err error) uint32 {
	if err != nil {
		return InvalidID
	}
	return uint32(id)
}

// ---- graph ----

func (h *Host) AddNode(typ uint32, x, y float32) uint32 {
	if h.s == nil {
		return InvalidID
	}
	return id32(h.s.AddNode(node.TypeID(typ), graph.Position{X: x, Y: y}))
}

func (h *Host) RemoveNode(id uint32) bool {
	return h.s != nil && ok(h.s.RemoveNode(graph.NodeID(id)))
}

func (h *Host) Connect(from, fromPort, to, toPort uint32) bool {
	return h.s != nil && ok(h.s.Connect(connection(from, fromPort, to, toPort)))
}

func (h *Host) Disconnect(from, fromPort, to, toPort uint32) bool {
	return h.s != nil && h.s.Disconnect(connection(from, fromPort, to, toPort))
}

func connection(from, fromPort, to, toPort uint32) graph.Connection {
	return graph.Connection{
		From:     graph.NodeID(from),
		FromPort: node.PortID(fromPort),
		To:       graph.NodeID(to),
		ToPort:   node.PortID(toPort),
	}
}

func (h *Host) SetOutput(id uint32) bool {
	return h.s != nil && ok(h.s.SetOutput(graph.NodeID(id)))
}

// ClearOutput removes the output designation. It reports false when none
// was set.
func (h *Host) ClearOutput() bool {
	if h.s == nil {
		return false
	}
	if _, set := h.s.Output(); !set {
		return false
	}
	h.s.ClearOutput()
	return true
}

// Output returns the output node or InvalidID when none is set.
func (h *Host) Output() uint32 {
	if h.s == nil {
		return InvalidID
	}
	id, set := h.s.Output()
	if !set {
		return InvalidID
	}
	return uint32(id)
}

func (h *Host) ClearGraph() {
	if h.s != nil {
		h.s.ClearGraph()
	}
}

func (h *Host) NodeCount() int {
	if h.s == nil {
		return 0
	}
	return h.s.NodeCount()
}

// SetParam stores a clamped parameter value.
func (h *Host) SetParam(id, param uint32, v float32) bool {
	if h.s == nil {
		return false
	}
	_, err := h.s.SetParam(graph.NodeID(id), node.ParamID(param), v)
	return err == nil
}

func (h *Host) BeginGesture(id, param uint32) bool {
	return h.s != nil && ok(h.s.BeginGesture(graph.NodeID(id), node.ParamID(param)))
}

func (h *Host) EndGesture(id, param uint32) bool {
	return h.s != nil && ok(h.s.EndGesture(graph.NodeID(id), node.ParamID(param)))
}

// ---- transport and notes ----

func (h *Host) Play() {
	if h.s != nil {
		h.s.Play()
	}
}

func (h *Host) Stop() {
	if h.s != nil {
		h.s.Stop()
	}
}

func (h *Host) Seek(beat float64) {
	if h.s != nil {
		h.s.Seek(beat)
	}
}

func (h *Host) SetTempo(bpm float64) bool {
	return h.s != nil && ok(h.s.SetTempo(bpm))
}

func (h *Host) SetLoop(enabled bool, start, end float64) bool {
	return h.s != nil && ok(h.s.SetLoop(enabled, start, end))
}

func (h *Host) Tempo() float64 {
	if h.s == nil {
		return 0
	}
	return h.s.Tempo()
}

func (h *Host) IsPlaying() bool {
	return h.s != nil && h.s.IsPlaying()
}

// NoteOn takes a MIDI velocity in 0..127.
func (h *Host) NoteOn(pitch, velocity uint8) bool {
	return h.s != nil && velocity <= 127 && ok(h.s.NoteOn(pitch, float32(velocity)/127))
}

func (h *Host) NoteOff(pitch uint8) bool {
	return h.s != nil && ok(h.s.NoteOff(pitch))
}

func (h *Host) AllNotesOff() {
	if h.s != nil {
		h.s.AllNotesOff()
	}
}

// MIDI forwards one raw channel message.
func (h *Host) MIDI(msg []byte) bool {
	return h.s != nil && h.s.HandleMIDI(msg)
}

// Poll refreshes the readback and returns it. A destroyed session returns
// the zero readback.
func (h *Host) Poll() engine.Readback {
	if h.s == nil {
		return engine.Readback{}
	}
	return h.s.Poll()
}

// ---- clips ----

func (h *Host) CreateClip(name string, length float64) uint32 {
	if h.s == nil {
		return InvalidID
	}
	return id32(h.s.CreateClip(name, length))
}

func (h *Host) DeleteClip(id uint32) bool {
	return h.s != nil && ok(h.s.DeleteClip(arrange.ClipID(id)))
}

// AddNote takes a MIDI velocity in 0..127.
func (h *Host) AddNote(clip uint32, start, duration float64, pitch, velocity uint8) bool {
	if h.s == nil || velocity > 127 {
		return false
	}
	_, err := h.s.AddNote(arrange.ClipID(clip), arrange.Note{
		Start:    start,
		Duration: duration,
		Pitch:    pitch,
		Velocity: float32(velocity) / 127,
	})
	return err == nil
}

func (h *Host) ClearClip(id uint32) bool {
	return h.s != nil && ok(h.s.ClearClip(arrange.ClipID(id)))
}

func (h *Host) ClipNoteCount(id uint32) int {
	if h.s == nil {
		return 0
	}
	n, _ := h.s.ClipNoteCount(arrange.ClipID(id))
	return n
}

func (h *Host) ClipRegionCount(id uint32) int {
	if h.s == nil {
		return 0
	}
	n, _ := h.s.ClipRegionCount(arrange.ClipID(id))
	return n
}

// ---- audio pool ----

// AddAudio copies interleaved samples into the pool.
func (h *Host) AddAudio(name string, sampleRate float64, channels int, samples []float32) uint32 {
	if h.s == nil {
		return InvalidID
	}
	return id32(h.s.AddAudio(name, sampleRate, channels, append([]float32(nil), samples...)))
}

func (h *Host) RemoveAudio(id uint32) bool {
	return h.s != nil && ok(h.s.RemoveAudio(arrange.AudioID(id)))
}

func (h *Host) AddAudioRegion(clip, audio uint32, start, duration, offset float64, gain float32) bool {
	if h.s == nil {
		return false
	}
	_, err := h.s.AddAudioRegion(arrange.ClipID(clip), arrange.AudioRegion{
		Start:    start,
		Duration: duration,
		Audio:    arrange.AudioID(audio),
		Offset:   offset,
		Gain:     gain,
	})
	return err == nil
}

func (h *Host) CreateClipFromAudio(audio uint32) uint32 {
	if h.s == nil {
		return InvalidID
	}
	return id32(h.s.CreateClipFromAudio(arrange.AudioID(audio)))
}

func (h *Host) AudioCount() int {
	if h.s == nil {
		return 0
	}
	return h.s.AudioCount()
}

// ---- tracks and scenes ----

func (h *Host) CreateTrack(name string) uint32 {
	if h.s == nil {
		return InvalidID
	}
	return uint32(h.s.CreateTrack(name))
}

func (h *Host) DeleteTrack(id uint32) bool {
	return h.s != nil && ok(h.s.DeleteTrack(arrange.TrackID(id)))
}

func (h *Host) SetTrackVolume(id uint32, v float32) bool {
	return h.s != nil && ok(h.s.SetTrackVolume(arrange.TrackID(id), v))
}

func (h *Host) SetTrackPan(id uint32, p float32) bool {
	return h.s != nil && ok(h.s.SetTrackPan(arrange.TrackID(id), p))
}

func (h *Host) SetTrackMute(id uint32, mute bool) bool {
	return h.s != nil && ok(h.s.SetTrackMute(arrange.TrackID(id), mute))
}

func (h *Host) SetTrackSolo(id uint32, solo bool) bool {
	return h.s != nil && ok(h.s.SetTrackSolo(arrange.TrackID(id), solo))
}

func (h *Host) SetTrackArmed(id uint32, armed bool) bool {
	return h.s != nil && ok(h.s.SetTrackArmed(arrange.TrackID(id), armed))
}

// SetTrackTarget routes a track to a node. InvalidID clears the route.
func (h *Host) SetTrackTarget(id, target uint32) bool {
	if h.s == nil {
		return false
	}
	if target == InvalidID {
		target = 0
	}
	return ok(h.s.SetTrackTarget(arrange.TrackID(id), graph.NodeID(target)))
}

func (h *Host) TrackCount() int {
	if h.s == nil {
		return 0
	}
	return h.s.TrackCount()
}

func (h *Host) CreateScene(name string) uint32 {
	if h.s == nil {
		return InvalidID
	}
	return uint32(h.s.CreateScene(name))
}

func (h *Host) DeleteScene(id uint32) bool {
	return h.s != nil && ok(h.s.DeleteScene(arrange.SceneID(id)))
}

func (h *Host) SceneCount() int {
	if h.s == nil {
		return 0
	}
	return h.s.SceneCount()
}

// SetClipSlot fills a track slot. InvalidID clears it.
func (h *Host) SetClipSlot(track, scene, clip uint32) bool {
	if h.s == nil {
		return false
	}
	if clip == InvalidID {
		return ok(h.s.ClearClipSlot(arrange.TrackID(track), arrange.SceneID(scene)))
	}
	return ok(h.s.SetClipSlot(arrange.TrackID(track), arrange.SceneID(scene), arrange.ClipID(clip)))
}

func (h *Host) LaunchScene(id uint32) bool {
	return h.s != nil && ok(h.s.LaunchScene(arrange.SceneID(id)))
}

func (h *Host) LaunchClip(track, clip uint32) bool {
	return h.s != nil && ok(h.s.LaunchClip(arrange.TrackID(track), arrange.ClipID(clip)))
}

func (h *Host) StopClip(track uint32) bool {
	return h.s != nil && ok(h.s.StopClip(arrange.TrackID(track)))
}

func (h *Host) StopAllClips() {
	if h.s != nil {
		h.s.StopAllClips()
	}
}

// PlayingClip returns the clip sounding on a track, or InvalidID.
func (h *Host) PlayingClip(track uint32) uint32 {
	if h.s == nil {
		return InvalidID
	}
	clip, _, playing := h.s.PlayingClip(arrange.TrackID(track))
	if !playing {
		return InvalidID
	}
	return uint32(clip)
}

// ---- timeline ----

func (h *Host) ScheduleClip(track, clip uint32, beat float64) bool {
	return h.s != nil && ok(h.s.Schedule(arrange.TrackID(track), arrange.ClipID(clip), beat))
}

func (h *Host) RemoveClipPlacement(track uint32, beat float64) bool {
	return h.s != nil && h.s.Unschedule(arrange.TrackID(track), beat)
}

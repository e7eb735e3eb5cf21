package main

import (
	"fmt"

	"github.com/cwbudde/algo-synth/arrange"
	"github.com/cwbudde/algo-synth/catalog"
	"github.com/cwbudde/algo-synth/graph"
	"github.com/cwbudde/algo-synth/node"
	"github.com/cwbudde/algo-synth/session"
)

// demo is the project rendered by the render command. Scenes are launched
// in order, one every scenePeriod beats.
type demo struct {
	scenes      []arrange.SceneID
	scenePeriod float64
}

// builder records the first error and turns later calls into no-ops.
type builder struct {
	s   *session.Session
	err error
}

func (b *builder) node(t node.TypeID, x, y float32) graph.NodeID {
	if b.err != nil {
		return 0
	}
	id, err := b.s.AddNode(t, graph.Position{X: x, Y: y})
	b.err = err
	return id
}

func (b *builder) connect(from, to graph.NodeID, port node.PortID) {
	if b.err == nil {
		b.err = b.s.Connect(graph.Connection{From: from, To: to, ToPort: port})
	}
}

func (b *builder) param(id graph.NodeID, p node.ParamID, v float32) {
	if b.err == nil {
		_, b.err = b.s.SetParam(id, p, v)
	}
}

func (b *builder) clip(name string, length float64, notes ...arrange.Note) arrange.ClipID {
	if b.err != nil {
		return 0
	}
	id, err := b.s.CreateClip(name, length)
	if err != nil {
		b.err = err
		return 0
	}
	for _, n := range notes {
		if _, err := b.s.AddNote(id, n); err != nil {
			b.err = err
			return 0
		}
	}
	return id
}

func (b *builder) do(err error) {
	if b.err == nil {
		b.err = err
	}
}

func arpeggio(root uint8, steps ...uint8) []arrange.Note {
	notes := make([]arrange.Note, len(steps))
	for i, st := range steps {
		notes[i] = arrange.Note{Start: 0.5 * float64(i), Duration: 0.45, Pitch: root + st, Velocity: 0.8}
	}
	return notes
}

// buildDemo creates a saw lead through a filter and a square bass, mixed
// into a delay. Scene A plays the lead over the bass timeline placement,
// scene B swaps both clips. samplePath, when set, adds a third track that
// plays the file from beat zero.
func buildDemo(s *session.Session, samplePath string) (*demo, error) {
	b := &builder{s: s}

	leadOsc := b.node(catalog.SawOsc, 0, 0)
	leadEnv := b.node(catalog.ADSR, 120, 0)
	leadFilter := b.node(catalog.Lowpass, 240, 0)
	bassOsc := b.node(catalog.SquareOsc, 0, 120)
	bassEnv := b.node(catalog.ADSR, 120, 120)
	mixer := b.node(catalog.Mixer, 360, 60)
	delay := b.node(catalog.Delay, 480, 60)
	out := b.node(catalog.Output, 600, 60)

	b.connect(leadOsc, leadEnv, 0)
	b.connect(leadEnv, leadFilter, 0)
	b.connect(bassOsc, bassEnv, 0)
	b.connect(leadFilter, mixer, 0)
	b.connect(bassEnv, mixer, 1)
	b.connect(mixer, delay, 0)
	b.connect(delay, out, 0)
	if b.err == nil {
		b.err = s.SetOutput(out)
	}

	b.param(leadFilter, catalog.ParamCutoff, 1800)
	b.param(leadFilter, catalog.ParamResonance, 0.3)
	b.param(leadEnv, catalog.ParamRelease, 0.15)
	b.param(bassEnv, catalog.ParamSustain, 0.9)
	b.param(mixer, catalog.ParamGain, -6)
	b.param(delay, catalog.ParamTime, 0.375)
	b.param(delay, catalog.ParamFeedback, 0.35)
	b.param(delay, catalog.ParamMix, 0.25)

	riffA := b.clip("riff A", 4, arpeggio(60, 0, 4, 7, 12, 7, 4, 0, 4)...)
	riffB := b.clip("riff B", 4, arpeggio(57, 0, 3, 7, 12, 15, 12, 7, 3)...)
	bassA := b.clip("bass A", 4, arrange.Note{Start: 0, Duration: 3.5, Pitch: 36, Velocity: 0.7})
	bassB := b.clip("bass B", 4,
		arrange.Note{Start: 0, Duration: 1.75, Pitch: 33, Velocity: 0.7},
		arrange.Note{Start: 2, Duration: 1.75, Pitch: 40, Velocity: 0.7})
	if b.err != nil {
		return nil, b.err
	}

	lead := s.CreateTrack("lead")
	bass := s.CreateTrack("bass")
	b.do(s.SetTrackTarget(lead, leadFilter))
	b.do(s.SetTrackTarget(bass, bassEnv))

	sceneA := s.CreateScene("A")
	sceneB := s.CreateScene("B")
	b.do(s.SetClipSlot(lead, sceneA, riffA))
	b.do(s.SetClipSlot(lead, sceneB, riffB))
	b.do(s.SetClipSlot(bass, sceneB, bassB))
	b.do(s.Schedule(bass, bassA, 0))

	if samplePath != "" {
		player := b.node(catalog.AudioPlayer, 240, 240)
		b.connect(player, mixer, 2)
		if b.err == nil {
			audio, err := s.ImportAudioFile(samplePath)
			if err != nil {
				return nil, fmt.Errorf("sample: %w", err)
			}
			clip, err := s.CreateClipFromAudio(audio)
			if err != nil {
				return nil, fmt.Errorf("sample: %w", err)
			}
			track := s.CreateTrack("sample")
			b.do(s.SetTrackTarget(track, player))
			b.do(s.Schedule(track, clip, 0))
		}
	}
	if b.err != nil {
		return nil, b.err
	}
	return &demo{scenes: []arrange.SceneID{sceneA, sceneB}, scenePeriod: 8}, nil
}

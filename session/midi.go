package session

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cwbudde/algo-synth/arrange"
	"github.com/cwbudde/algo-synth/fault"
)

// midiResolution is the tick resolution of exported files.
const midiResolution = 960

// ErrUnsupportedTimeFormat is returned for SMPTE-timed MIDI files.
var ErrUnsupportedTimeFormat = errors.New("midi file is not metric timed")

const (
	ccAllSoundOff = 120
	ccAllNotesOff = 123
)

// HandleMIDI decodes one channel message from a live input. Note on, note
// off and the all-notes-off controllers are handled; it reports false for
// everything else.
func (s *Session) HandleMIDI(b []byte) bool {
	msg := midi.Message(b)
	var ch, key, vel, cc uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return s.NoteOn(key, float32(vel)/127) == nil
	case msg.GetNoteEnd(&ch, &key):
		return s.NoteOff(key) == nil
	case msg.GetControlChange(&ch, &cc, &vel) && (cc == ccAllNotesOff || cc == ccAllSoundOff):
		s.AllNotesOff()
		return true
	}
	return false
}

// ImportMIDIClip reads a standard MIDI file and creates a clip holding the
// notes of every track. The clip length is rounded up to whole bars.
func (s *Session) ImportMIDIClip(r io.Reader, name string) (arrange.ClipID, error) {
	sm, err := smf.ReadFrom(r)
	if err != nil {
		return 0, fmt.Errorf("read midi: %w", err)
	}
	mt, ok := sm.TimeFormat.(smf.MetricTicks)
	if !ok || mt == 0 {
		return 0, ErrUnsupportedTimeFormat
	}
	tpb := float64(mt)

	type open struct {
		tick uint64
		vel  uint8
		seq  int
	}
	type imported struct {
		arrange.Note
		seq int
	}
	var notes []imported
	seq := 0
	end := 0.0
	for _, tr := range sm.Tracks {
		var tick uint64
		held := map[uint8]open{}
		for _, ev := range tr {
			tick += uint64(ev.Delta)
			msg := midi.Message(ev.Message)
			var ch, key, vel uint8
			switch {
			case msg.GetNoteStart(&ch, &key, &vel):
				held[key] = open{tick: tick, vel: vel, seq: seq}
				seq++
			case msg.GetNoteEnd(&ch, &key):
				on, ok := held[key]
				if !ok {
					continue
				}
				delete(held, key)
				if tick == on.tick {
					continue
				}
				n := arrange.Note{
					Start:    float64(on.tick) / tpb,
					Duration: float64(tick-on.tick) / tpb,
					Pitch:    key,
					Velocity: float32(on.vel) / 127,
				}
				end = max(end, n.End())
				notes = append(notes, imported{Note: n, seq: on.seq})
			}
		}
	}
	// Notes are collected at their ends; restore the order of their starts.
	slices.SortFunc(notes, func(a, b imported) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return a.seq - b.seq
	})

	length := max(4, math.Ceil(end/4-1e-9)*4)
	id, err := s.arr.CreateClip(name, length)
	if err != nil {
		return 0, err
	}
	for _, n := range notes {
		if _, err := s.arr.AddNote(id, n.Note); err != nil {
			_ = s.arr.DeleteClip(id)
			return 0, fmt.Errorf("import note at beat %v: %w", n.Start, err)
		}
	}
	s.commit()
	s.log.Info("midi clip imported", "clip", id, "name", name, "notes", len(notes), "length", length)
	return id, nil
}

type midiEvent struct {
	tick  uint32
	on    bool
	pitch uint8
	vel   uint8
}

// ExportClipMIDI writes the notes of a clip as a type 1 standard MIDI file
// at the session tempo.
func (s *Session) ExportClipMIDI(id arrange.ClipID, w io.Writer) error {
	c, ok := s.arr.Clip(id)
	if !ok {
		return fault.NotFound("clip", uint32(id))
	}
	toTick := func(beat float64) uint32 {
		return uint32(math.Round(beat * midiResolution))
	}

	events := make([]midiEvent, 0, 2*len(c.Notes))
	for _, n := range c.Notes {
		vel := uint8(min(127, max(1, math.Round(float64(n.Velocity)*127))))
		events = append(events,
			midiEvent{tick: toTick(n.Start), on: true, pitch: n.Pitch, vel: vel},
			midiEvent{tick: toTick(n.End()), pitch: n.Pitch})
	}
	// Offs sort before ons at the same tick so repeated pitches retrigger.
	slices.SortStableFunc(events, func(a, b midiEvent) int {
		switch {
		case a.tick != b.tick:
			return int(a.tick) - int(b.tick)
		case a.on == b.on:
			return 0
		case a.on:
			return 1
		}
		return -1
	})

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(midiResolution)

	var meta smf.Track
	meta.Add(0, smf.MetaMeter(4, 4))
	meta.Add(0, smf.MetaTempo(s.transport.Tempo()))
	meta.Close(0)
	if err := sm.Add(meta); err != nil {
		return fmt.Errorf("add tempo track: %w", err)
	}

	var tr smf.Track
	var last uint32
	for _, ev := range events {
		if ev.on {
			tr.Add(ev.tick-last, midi.NoteOn(0, ev.pitch, ev.vel))
		} else {
			tr.Add(ev.tick-last, midi.NoteOff(0, ev.pitch))
		}
		last = ev.tick
	}
	tr.Close(max(toTick(c.Length), last) - last)
	if err := sm.Add(tr); err != nil {
		return fmt.Errorf("add note track: %w", err)
	}
	if _, err := sm.WriteTo(w); err != nil {
		return fmt.Errorf("write midi: %w", err)
	}
	return nil
}

package session

import (
	"github.com/cwbudde/algo-synth/engine"
	"github.com/cwbudde/algo-synth/fault"
	"github.com/cwbudde/algo-synth/transport"
)

// Play starts the transport.
func (s *Session) Play() {
	if s.transport.Play() {
		s.sendRun()
	}
}

// Stop halts the transport and silences clip notes. The position is kept.
func (s *Session) Stop() {
	if s.transport.Stop() {
		s.sendRun()
	}
}

// Seek moves the playhead. Negative beats clamp to zero. It returns the
// applied position.
func (s *Session) Seek(beat float64) float64 {
	beat = s.transport.Seek(beat)
	s.send(engine.Command{Kind: engine.CmdSeek, Beat: beat})
	return beat
}

// SetTempo changes the tempo. An invalid tempo leaves it unchanged.
func (s *Session) SetTempo(bpm float64) error {
	if err := s.transport.SetTempo(bpm); err != nil {
		return s.rejected("set_tempo", err, "bpm", bpm)
	}
	s.send(engine.Command{Kind: engine.CmdSetTempo, Tempo: bpm})
	return nil
}

// SetLoop configures the loop region.
func (s *Session) SetLoop(enabled bool, start, end float64) error {
	if err := s.transport.SetLoop(enabled, start, end); err != nil {
		return s.rejected("set_loop", err)
	}
	s.send(engine.Command{Kind: engine.CmdSetLoop, Loop: s.transport.Loop()})
	return nil
}

// Tempo returns the tempo in BPM.
func (s *Session) Tempo() float64 {
	return s.transport.Tempo()
}

// IsPlaying reports the requested transport state.
func (s *Session) IsPlaying() bool {
	return s.transport.Playing()
}

// Position returns the playhead echo.
func (s *Session) Position() (beat float64, sample int64) {
	return s.transport.Beat(), s.transport.Sample()
}

// Loop returns the loop region.
func (s *Session) Loop() transport.Loop {
	return s.transport.Loop()
}

// ---- live notes ----

// NoteOn plays a live note on every armed track. Velocity is in [0, 1].
func (s *Session) NoteOn(pitch uint8, velocity float32) error {
	if pitch > 127 {
		return s.rejected("note_on", fault.Range("pitch %d", pitch))
	}
	if !(velocity >= 0 && velocity <= 1) {
		return s.rejected("note_on", fault.Range("velocity %v", velocity))
	}
	s.send(engine.Command{Kind: engine.CmdNoteOn, Pitch: pitch, Velocity: velocity})
	return nil
}

// NoteOff releases a live note.
func (s *Session) NoteOff(pitch uint8) error {
	if pitch > 127 {
		return s.rejected("note_off", fault.Range("pitch %d", pitch))
	}
	s.send(engine.Command{Kind: engine.CmdNoteOff, Pitch: pitch})
	return nil
}

// AllNotesOff releases every sounding voice.
func (s *Session) AllNotesOff() {
	s.send(engine.Command{Kind: engine.CmdAllNotesOff})
}

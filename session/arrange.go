package session

import (
	"github.com/cwbudde/algo-synth/arrange"
	"github.com/cwbudde/algo-synth/engine"
	"github.com/cwbudde/algo-synth/fault"
	"github.com/cwbudde/algo-synth/graph"
)

// ---- clips ----

// CreateClip adds an empty looping clip of length beats.
func (s *Session) CreateClip(name string, length float64) (arrange.ClipID, error) {
	id, err := s.arr.CreateClip(name, length)
	if err != nil {
		return 0, s.rejected("create_clip", err, "length", length)
	}
	s.commit()
	return id, nil
}

// CreateClipFromAudio derives a clip covering a whole pool entry at the
// current tempo.
func (s *Session) CreateClipFromAudio(audio arrange.AudioID) (arrange.ClipID, error) {
	id, err := s.arr.CreateClipFromAudio(audio, s.transport.Tempo())
	if err != nil {
		return 0, s.rejected("create_clip_from_audio", err, "audio", audio)
	}
	s.commit()
	return id, nil
}

// DeleteClip removes a clip with its slots and placements. A playing
// instance of it stops.
func (s *Session) DeleteClip(id arrange.ClipID) error {
	if err := s.arr.DeleteClip(id); err != nil {
		return s.rejected("delete_clip", err, "clip", id)
	}
	s.commit()
	return nil
}

// Clip returns a copy of a clip.
func (s *Session) Clip(id arrange.ClipID) (arrange.Clip, bool) {
	return s.arr.Clip(id)
}

// ClipCount returns the number of clips.
func (s *Session) ClipCount() int {
	return s.arr.ClipCount()
}

// AddNote inserts a note and returns its index in start order.
func (s *Session) AddNote(id arrange.ClipID, n arrange.Note) (int, error) {
	i, err := s.arr.AddNote(id, n)
	if err != nil {
		return 0, s.rejected("add_note", err, "clip", id)
	}
	s.commit()
	return i, nil
}

// RemoveNote deletes the note at index.
func (s *Session) RemoveNote(id arrange.ClipID, index int) error {
	if err := s.arr.RemoveNote(id, index); err != nil {
		return s.rejected("remove_note", err, "clip", id, "index", index)
	}
	s.commit()
	return nil
}

// AddAudioRegion inserts a region and returns its index in start order.
func (s *Session) AddAudioRegion(id arrange.ClipID, r arrange.AudioRegion) (int, error) {
	i, err := s.arr.AddAudioRegion(id, r)
	if err != nil {
		return 0, s.rejected("add_audio_region", err, "clip", id, "audio", r.Audio)
	}
	s.commit()
	return i, nil
}

// ClearClip removes every note and region of a clip.
func (s *Session) ClearClip(id arrange.ClipID) error {
	if err := s.arr.ClearClip(id); err != nil {
		return s.rejected("clear_clip", err, "clip", id)
	}
	s.commit()
	return nil
}

// SetClipLength changes the clip length in beats.
func (s *Session) SetClipLength(id arrange.ClipID, length float64) error {
	if err := s.arr.SetClipLength(id, length); err != nil {
		return s.rejected("set_clip_length", err, "clip", id)
	}
	s.commit()
	return nil
}

// SetClipLooping sets whether a launched clip restarts at its end.
func (s *Session) SetClipLooping(id arrange.ClipID, looping bool) error {
	if err := s.arr.SetClipLooping(id, looping); err != nil {
		return s.rejected("set_clip_looping", err, "clip", id)
	}
	s.commit()
	return nil
}

// ClipNoteCount returns the number of notes in a clip.
func (s *Session) ClipNoteCount(id arrange.ClipID) (int, bool) {
	return s.arr.NoteCount(id)
}

// ClipRegionCount returns the number of audio regions in a clip.
func (s *Session) ClipRegionCount(id arrange.ClipID) (int, bool) {
	return s.arr.RegionCount(id)
}

// ---- tracks ----

// CreateTrack appends a track with unity volume and centre pan.
func (s *Session) CreateTrack(name string) arrange.TrackID {
	id := s.arr.CreateTrack(name)
	s.commit()
	return id
}

// DeleteTrack removes a track and its placements.
func (s *Session) DeleteTrack(id arrange.TrackID) error {
	if err := s.arr.DeleteTrack(id); err != nil {
		return s.rejected("delete_track", err, "track", id)
	}
	s.commit()
	return nil
}

// Track returns a copy of a track.
func (s *Session) Track(id arrange.TrackID) (arrange.Track, bool) {
	return s.arr.Track(id)
}

// Tracks returns copies of all tracks in order.
func (s *Session) Tracks() []arrange.Track {
	return s.arr.Tracks()
}

// TrackCount returns the number of tracks.
func (s *Session) TrackCount() int {
	return s.arr.TrackCount()
}

// SetTrackVolume sets the linear track gain.
func (s *Session) SetTrackVolume(id arrange.TrackID, v float32) error {
	return s.updateTrack("set_track_volume", id, s.arr.SetVolume(id, v))
}

// SetTrackPan sets the track pan in [-1, 1].
func (s *Session) SetTrackPan(id arrange.TrackID, p float32) error {
	return s.updateTrack("set_track_pan", id, s.arr.SetPan(id, p))
}

// SetTrackMute mutes or unmutes a track.
func (s *Session) SetTrackMute(id arrange.TrackID, mute bool) error {
	return s.updateTrack("set_track_mute", id, s.arr.SetMute(id, mute))
}

// SetTrackSolo solos or unsolos a track.
func (s *Session) SetTrackSolo(id arrange.TrackID, solo bool) error {
	return s.updateTrack("set_track_solo", id, s.arr.SetSolo(id, solo))
}

// SetTrackArmed sets whether live notes reach the track target.
func (s *Session) SetTrackArmed(id arrange.TrackID, armed bool) error {
	return s.updateTrack("set_track_armed", id, s.arr.SetArmed(id, armed))
}

// SetTrackTarget routes a track to a node. Zero clears the route.
func (s *Session) SetTrackTarget(id arrange.TrackID, n graph.NodeID) error {
	if n != 0 && !s.graph.Has(n) {
		return s.rejected("set_track_target", fault.NotFound("node", uint32(n)), "track", id)
	}
	return s.updateTrack("set_track_target", id, s.arr.SetTarget(id, n))
}

func (s *Session) updateTrack(op string, id arrange.TrackID, err error) error {
	if err != nil {
		return s.rejected(op, err, "track", id)
	}
	s.commit()
	return nil
}

// Audible reports whether a track sounds under the mute and solo rules.
func (s *Session) Audible(id arrange.TrackID) bool {
	return s.arr.Audible(id)
}

// ---- scenes and slots ----

// CreateScene appends a row to the launch grid.
func (s *Session) CreateScene(name string) arrange.SceneID {
	id := s.arr.CreateScene(name)
	s.commit()
	return id
}

// DeleteScene removes a row; later scenes move up.
func (s *Session) DeleteScene(id arrange.SceneID) error {
	if err := s.arr.DeleteScene(id); err != nil {
		return s.rejected("delete_scene", err, "scene", id)
	}
	s.commit()
	return nil
}

// Scenes returns copies of all scenes in row order.
func (s *Session) Scenes() []arrange.Scene {
	return s.arr.Scenes()
}

// SceneCount returns the number of scenes.
func (s *Session) SceneCount() int {
	return s.arr.SceneCount()
}

// SetClipSlot puts a clip into a track slot of an existing scene.
func (s *Session) SetClipSlot(id arrange.TrackID, scene arrange.SceneID, clip arrange.ClipID) error {
	i, ok := s.arr.SceneIndex(scene)
	if !ok {
		return s.rejected("set_clip_slot", fault.NotFound("scene", uint32(scene)), "track", id)
	}
	if err := s.arr.SetSlot(id, i, clip); err != nil {
		return s.rejected("set_clip_slot", err, "track", id, "scene", scene)
	}
	s.commit()
	return nil
}

// ClearClipSlot empties a track slot.
func (s *Session) ClearClipSlot(id arrange.TrackID, scene arrange.SceneID) error {
	i, ok := s.arr.SceneIndex(scene)
	if !ok {
		return s.rejected("clear_clip_slot", fault.NotFound("scene", uint32(scene)), "track", id)
	}
	if err := s.arr.ClearSlot(id, i); err != nil {
		return s.rejected("clear_clip_slot", err, "track", id, "scene", scene)
	}
	s.commit()
	return nil
}

// ClipSlot returns the clip in a track slot.
func (s *Session) ClipSlot(id arrange.TrackID, scene arrange.SceneID) (arrange.ClipID, bool) {
	i, ok := s.arr.SceneIndex(scene)
	if !ok {
		return 0, false
	}
	return s.arr.Slot(id, i)
}

// ---- timeline ----

// Schedule places a clip on a track at beat. A placement already at that
// beat is overwritten.
func (s *Session) Schedule(id arrange.TrackID, clip arrange.ClipID, beat float64) error {
	replaced, err := s.arr.Schedule(id, clip, beat)
	if err != nil {
		return s.rejected("schedule", err, "track", id, "clip", clip)
	}
	if replaced {
		s.log.Info("timeline placement overwritten", "err", fault.ErrSlotConflict, "track", id, "beat", beat, "clip", clip)
	}
	s.commit()
	return nil
}

// Unschedule removes the placement at beat.
func (s *Session) Unschedule(id arrange.TrackID, beat float64) bool {
	if !s.arr.Unschedule(id, beat) {
		return false
	}
	s.commit()
	return true
}

// Placements returns a track's placements sorted by start.
func (s *Session) Placements(id arrange.TrackID) []arrange.Placement {
	return s.arr.Placements(id)
}

// ---- launching ----

// LaunchClip starts a clip on a track at the next launch boundary. The
// clip need not sit in one of the track's slots.
func (s *Session) LaunchClip(id arrange.TrackID, clip arrange.ClipID) error {
	if _, ok := s.arr.Track(id); !ok {
		return s.rejected("launch_clip", fault.NotFound("track", uint32(id)))
	}
	if _, ok := s.arr.Clip(clip); !ok {
		return s.rejected("launch_clip", fault.NotFound("clip", uint32(clip)), "track", id)
	}
	s.send(engine.Command{Kind: engine.CmdLaunchClip, Track: id, Clip: clip})
	return nil
}

// StopClip stops the launched clip of a track; its timeline resumes.
func (s *Session) StopClip(id arrange.TrackID) error {
	if _, ok := s.arr.Track(id); !ok {
		return s.rejected("stop_clip", fault.NotFound("track", uint32(id)))
	}
	s.send(engine.Command{Kind: engine.CmdStopClip, Track: id})
	return nil
}

// LaunchScene launches the slot of every track in a scene row at one
// boundary. Tracks with an empty slot keep playing.
func (s *Session) LaunchScene(id arrange.SceneID) error {
	i, ok := s.arr.SceneIndex(id)
	if !ok {
		return s.rejected("launch_scene", fault.NotFound("scene", uint32(id)))
	}
	s.send(engine.Command{Kind: engine.CmdLaunchScene, Scene: i})
	return nil
}

// StopAllClips stops the launched clip of every track.
func (s *Session) StopAllClips() {
	s.send(engine.Command{Kind: engine.CmdStopAll})
}

// PlayingClip returns the clip sounding on a track as of the last Poll.
func (s *Session) PlayingClip(id arrange.TrackID) (clip arrange.ClipID, launched bool, ok bool) {
	tr, found := s.readback.Track(id)
	if !found || tr.Clip == 0 {
		return 0, false, false
	}
	return tr.Clip, tr.Launched, true
}

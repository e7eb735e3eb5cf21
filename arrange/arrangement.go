// Package arrange holds the sequencing model: clips, tracks with their launch
// slots, scenes, timeline placements and the audio pool.
package arrange

import (
	"fmt"
	"math"
	"slices"

	"github.com/cwbudde/algo-synth/fault"
	"github.com/cwbudde/algo-synth/graph"
)

// PlacementTolerance is the beat distance under which two timeline
// placements share a slot.
const PlacementTolerance = 0.001

// DefaultVolume is the volume of a new track.
const DefaultVolume = 0.8

// TrackID identifies a track. Zero means no track.
type TrackID uint32

// SceneID identifies a scene. Zero means no scene.
type SceneID uint32

// Track is a channel strip with one launch slot per scene.
type Track struct {
	ID     TrackID
	Name   string
	Volume float32
	Pan    float32
	Mute   bool
	Solo   bool
	Armed  bool
	// Target is the graph node whose output is this track's signal.
	Target graph.NodeID
	Slots  []ClipID
}

// Scene is one row of the launch grid.
type Scene struct {
	ID   SceneID
	Name string
}

// Placement schedules a clip at an absolute beat.
type Placement struct {
	Clip  ClipID
	Start float64
}

// Arrangement is the control-thread sequencing model. It is not safe for
// concurrent use.
type Arrangement struct {
	pool     *Pool
	clips    map[ClipID]*Clip
	tracks   []*Track
	scenes   []*Scene
	timeline map[TrackID][]Placement

	nextClip  ClipID
	nextTrack TrackID
	nextScene SceneID
	version   uint64
}

// New returns an empty arrangement with an empty audio pool.
func New() *Arrangement {
	return &Arrangement{
		pool:      NewPool(),
		clips:     make(map[ClipID]*Clip),
		timeline:  make(map[TrackID][]Placement),
		nextClip:  1,
		nextTrack: 1,
		nextScene: 1,
	}
}

// Version changes on every successful mutation.
func (a *Arrangement) Version() uint64 {
	return a.version
}

func (a *Arrangement) touch() {
	a.version++
}

// Pool returns the audio pool. Use AddAudio and RemoveAudio to mutate it.
func (a *Arrangement) Pool() *Pool {
	return a.pool
}

func validBeat(b float64) bool {
	return !math.IsNaN(b) && !math.IsInf(b, 0) && b >= 0
}

func validLength(l float64) bool {
	return validBeat(l) && l > 0
}

// ---- audio pool ----

// AddAudio ingests interleaved samples into the pool.
func (a *Arrangement) AddAudio(name string, sampleRate float64, channels int, samples []float32) (AudioID, error) {
	id, err := a.pool.Add(name, sampleRate, channels, samples)
	if err != nil {
		return 0, err
	}
	a.touch()
	return id, nil
}

// RemoveAudio deletes a pool entry. It is refused while any clip region
// references the entry.
func (a *Arrangement) RemoveAudio(id AudioID) error {
	if _, ok := a.pool.Get(id); !ok {
		return fault.NotFound("audio", uint32(id))
	}
	for _, c := range a.clips {
		if c.references(id) {
			return fmt.Errorf("%w: audio %d used by clip %d", ErrAudioInUse, id, c.ID)
		}
	}
	a.pool.remove(id)
	a.touch()
	return nil
}

// ---- clips ----

// CreateClip adds an empty looping clip.
func (a *Arrangement) CreateClip(name string, length float64) (ClipID, error) {
	if !validLength(length) {
		return 0, fault.Range("clip length %v", length)
	}
	id := a.nextClip
	a.nextClip++
	a.clips[id] = &Clip{ID: id, Name: name, Length: length, Looping: true}
	a.touch()
	return id, nil
}

// CreateClipFromAudio derives a clip holding one region that covers the
// whole pool entry. The length follows from the entry duration at bpm.
func (a *Arrangement) CreateClipFromAudio(audio AudioID, bpm float64) (ClipID, error) {
	e, ok := a.pool.Get(audio)
	if !ok {
		return 0, fmt.Errorf("%w: audio %d", fault.ErrInvalidAudioReference, audio)
	}
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return 0, fault.Range("tempo %v", bpm)
	}
	if e.Frames() == 0 {
		return 0, fmt.Errorf("%w: audio %d", ErrEmptyAudio, audio)
	}
	length := e.Beats(bpm)
	id, err := a.CreateClip(e.Name, length)
	if err != nil {
		return 0, err
	}
	c := a.clips[id]
	c.Regions = []AudioRegion{{Start: 0, Duration: length, Audio: audio, Gain: 1}}
	return id, nil
}

// DeleteClip removes a clip, every slot holding it and its timeline placements.
func (a *Arrangement) DeleteClip(id ClipID) error {
	if _, ok := a.clips[id]; !ok {
		return fault.NotFound("clip", uint32(id))
	}
	delete(a.clips, id)
	for _, t := range a.tracks {
		for i, s := range t.Slots {
			if s == id {
				t.Slots[i] = 0
			}
		}
	}
	for tid, ps := range a.timeline {
		a.timeline[tid] = slices.DeleteFunc(ps, func(p Placement) bool { return p.Clip == id })
	}
	a.touch()
	return nil
}

func (a *Arrangement) clip(id ClipID) (*Clip, error) {
	c, ok := a.clips[id]
	if !ok {
		return nil, fault.NotFound("clip", uint32(id))
	}
	return c, nil
}

// Clip returns a copy of the clip.
func (a *Arrangement) Clip(id ClipID) (Clip, bool) {
	c, ok := a.clips[id]
	if !ok {
		return Clip{}, false
	}
	return c.clone(), true
}

// ClipIDs returns all clip ids in ascending order.
func (a *Arrangement) ClipIDs() []ClipID {
	ids := make([]ClipID, 0, len(a.clips))
	for id := range a.clips {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ClipCount returns the number of clips.
func (a *Arrangement) ClipCount() int {
	return len(a.clips)
}

// AddNote inserts a note and returns its index in start order.
func (a *Arrangement) AddNote(id ClipID, n Note) (int, error) {
	c, err := a.clip(id)
	if err != nil {
		return 0, err
	}
	switch {
	case n.Pitch > 127:
		return 0, fault.Range("pitch %d", n.Pitch)
	case !(n.Velocity >= 0 && n.Velocity <= 1):
		return 0, fault.Range("velocity %v", n.Velocity)
	case !validLength(n.Duration):
		return 0, fault.Range("note duration %v", n.Duration)
	case !validBeat(n.Start):
		return 0, fault.Range("note start %v", n.Start)
	}
	i := c.insertNote(n)
	a.touch()
	return i, nil
}

// RemoveNote deletes the note at index.
func (a *Arrangement) RemoveNote(id ClipID, index int) error {
	c, err := a.clip(id)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(c.Notes) {
		return fault.Range("note index %d", index)
	}
	c.Notes = slices.Delete(c.Notes, index, index+1)
	a.touch()
	return nil
}

// AddAudioRegion inserts a region and returns its index in start order.
func (a *Arrangement) AddAudioRegion(id ClipID, r AudioRegion) (int, error) {
	c, err := a.clip(id)
	if err != nil {
		return 0, err
	}
	if _, ok := a.pool.Get(r.Audio); !ok {
		return 0, fmt.Errorf("%w: audio %d", fault.ErrInvalidAudioReference, r.Audio)
	}
	switch {
	case !validLength(r.Duration):
		return 0, fault.Range("region duration %v", r.Duration)
	case !validBeat(r.Start):
		return 0, fault.Range("region start %v", r.Start)
	case !validBeat(r.Offset):
		return 0, fault.Range("region offset %v", r.Offset)
	case !(r.Gain >= 0) || math.IsInf(float64(r.Gain), 0):
		return 0, fault.Range("region gain %v", r.Gain)
	}
	i := c.insertRegion(r)
	a.touch()
	return i, nil
}

// ClearClip removes all notes and regions.
func (a *Arrangement) ClearClip(id ClipID) error {
	c, err := a.clip(id)
	if err != nil {
		return err
	}
	c.Notes = nil
	c.Regions = nil
	a.touch()
	return nil
}

// SetClipLength changes the loop length.
func (a *Arrangement) SetClipLength(id ClipID, length float64) error {
	c, err := a.clip(id)
	if err != nil {
		return err
	}
	if !validLength(length) {
		return fault.Range("clip length %v", length)
	}
	c.Length = length
	a.touch()
	return nil
}

// SetClipLooping sets whether a launched clip repeats.
func (a *Arrangement) SetClipLooping(id ClipID, looping bool) error {
	c, err := a.clip(id)
	if err != nil {
		return err
	}
	c.Looping = looping
	a.touch()
	return nil
}

// NoteCount returns the number of notes in a clip.
func (a *Arrangement) NoteCount(id ClipID) (int, bool) {
	c, ok := a.clips[id]
	if !ok {
		return 0, false
	}
	return len(c.Notes), true
}

// RegionCount returns the number of audio regions in a clip.
func (a *Arrangement) RegionCount(id ClipID) (int, bool) {
	c, ok := a.clips[id]
	if !ok {
		return 0, false
	}
	return len(c.Regions), true
}

// ---- tracks ----

// CreateTrack appends a track with one empty slot per scene.
func (a *Arrangement) CreateTrack(name string) TrackID {
	id := a.nextTrack
	a.nextTrack++
	a.tracks = append(a.tracks, &Track{
		ID:     id,
		Name:   name,
		Volume: DefaultVolume,
		Slots:  make([]ClipID, len(a.scenes)),
	})
	a.timeline[id] = nil
	a.touch()
	return id
}

// DeleteTrack removes a track and its placements.
func (a *Arrangement) DeleteTrack(id TrackID) error {
	i := a.trackIndex(id)
	if i < 0 {
		return fault.NotFound("track", uint32(id))
	}
	a.tracks = slices.Delete(a.tracks, i, i+1)
	delete(a.timeline, id)
	a.touch()
	return nil
}

func (a *Arrangement) trackIndex(id TrackID) int {
	return slices.IndexFunc(a.tracks, func(t *Track) bool { return t.ID == id })
}

func (a *Arrangement) track(id TrackID) (*Track, error) {
	i := a.trackIndex(id)
	if i < 0 {
		return nil, fault.NotFound("track", uint32(id))
	}
	return a.tracks[i], nil
}

// Track returns a copy of the track.
func (a *Arrangement) Track(id TrackID) (Track, bool) {
	t, err := a.track(id)
	if err != nil {
		return Track{}, false
	}
	cp := *t
	cp.Slots = slices.Clone(t.Slots)
	return cp, true
}

// Tracks returns copies of all tracks in creation order.
func (a *Arrangement) Tracks() []Track {
	out := make([]Track, len(a.tracks))
	for i, t := range a.tracks {
		out[i] = *t
		out[i].Slots = slices.Clone(t.Slots)
	}
	return out
}

// TrackCount returns the number of tracks.
func (a *Arrangement) TrackCount() int {
	return len(a.tracks)
}

func (a *Arrangement) updateTrack(id TrackID, fn func(t *Track)) error {
	t, err := a.track(id)
	if err != nil {
		return err
	}
	fn(t)
	a.touch()
	return nil
}

// SetVolume sets the track volume clamped to 0..1.
func (a *Arrangement) SetVolume(id TrackID, v float32) error {
	if v != v {
		return fault.Range("volume %v", v)
	}
	return a.updateTrack(id, func(t *Track) { t.Volume = min(max(v, 0), 1) })
}

// SetPan sets the track pan clamped to -1..1.
func (a *Arrangement) SetPan(id TrackID, p float32) error {
	if p != p {
		return fault.Range("pan %v", p)
	}
	return a.updateTrack(id, func(t *Track) { t.Pan = min(max(p, -1), 1) })
}

// SetMute sets the stored mute flag.
func (a *Arrangement) SetMute(id TrackID, mute bool) error {
	return a.updateTrack(id, func(t *Track) { t.Mute = mute })
}

// SetSolo sets the solo flag.
func (a *Arrangement) SetSolo(id TrackID, solo bool) error {
	return a.updateTrack(id, func(t *Track) { t.Solo = solo })
}

// SetArmed sets the record-arm flag.
func (a *Arrangement) SetArmed(id TrackID, armed bool) error {
	return a.updateTrack(id, func(t *Track) { t.Armed = armed })
}

// SetTarget routes the track to a graph node. Zero clears the route. The
// caller checks that the node exists.
func (a *Arrangement) SetTarget(id TrackID, n graph.NodeID) error {
	return a.updateTrack(id, func(t *Track) { t.Target = n })
}

// ForgetNode clears every track target pointing at a removed node.
func (a *Arrangement) ForgetNode(n graph.NodeID) {
	changed := false
	for _, t := range a.tracks {
		if t.Target == n {
			t.Target = 0
			changed = true
		}
	}
	if changed {
		a.touch()
	}
}

// Audible reports whether the track sounds: an unmuted track sounds unless
// another track is soloed and it is not.
func (a *Arrangement) Audible(id TrackID) bool {
	t, err := a.track(id)
	if err != nil || t.Mute {
		return false
	}
	if a.anySolo() {
		return t.Solo
	}
	return true
}

func (a *Arrangement) anySolo() bool {
	return slices.ContainsFunc(a.tracks, func(t *Track) bool { return t.Solo })
}

// ---- slots ----

// SetSlot assigns a clip to the track's slot at a scene index.
func (a *Arrangement) SetSlot(id TrackID, scene int, clip ClipID) error {
	t, err := a.track(id)
	if err != nil {
		return err
	}
	if scene < 0 || scene >= len(a.scenes) {
		return fault.Range("scene index %d", scene)
	}
	if _, ok := a.clips[clip]; !ok {
		return fault.NotFound("clip", uint32(clip))
	}
	if scene >= len(t.Slots) {
		t.Slots = append(t.Slots, make([]ClipID, scene+1-len(t.Slots))...)
	}
	t.Slots[scene] = clip
	a.touch()
	return nil
}

// ClearSlot empties the track's slot at a scene index.
func (a *Arrangement) ClearSlot(id TrackID, scene int) error {
	t, err := a.track(id)
	if err != nil {
		return err
	}
	if scene < 0 || scene >= len(a.scenes) {
		return fault.Range("scene index %d", scene)
	}
	if scene < len(t.Slots) {
		t.Slots[scene] = 0
	}
	a.touch()
	return nil
}

// Slot returns the clip in the track's slot at a scene index.
func (a *Arrangement) Slot(id TrackID, scene int) (ClipID, bool) {
	t, err := a.track(id)
	if err != nil || scene < 0 || scene >= len(t.Slots) || t.Slots[scene] == 0 {
		return 0, false
	}
	return t.Slots[scene], true
}

// ---- scenes ----

// CreateScene appends a row to the launch grid.
func (a *Arrangement) CreateScene(name string) SceneID {
	id := a.nextScene
	a.nextScene++
	a.scenes = append(a.scenes, &Scene{ID: id, Name: name})
	for _, t := range a.tracks {
		if len(t.Slots) < len(a.scenes) {
			t.Slots = append(t.Slots, 0)
		}
	}
	a.touch()
	return id
}

// DeleteScene removes a row. Later scenes move up one index and every track
// loses its slot at the removed index.
func (a *Arrangement) DeleteScene(id SceneID) error {
	i, ok := a.SceneIndex(id)
	if !ok {
		return fault.NotFound("scene", uint32(id))
	}
	a.scenes = slices.Delete(a.scenes, i, i+1)
	for _, t := range a.tracks {
		if i < len(t.Slots) {
			t.Slots = slices.Delete(t.Slots, i, i+1)
		}
	}
	a.touch()
	return nil
}

// SceneIndex returns the row of a scene.
func (a *Arrangement) SceneIndex(id SceneID) (int, bool) {
	i := slices.IndexFunc(a.scenes, func(s *Scene) bool { return s.ID == id })
	return i, i >= 0
}

// Scenes returns copies of all scenes in row order.
func (a *Arrangement) Scenes() []Scene {
	out := make([]Scene, len(a.scenes))
	for i, s := range a.scenes {
		out[i] = *s
	}
	return out
}

// SceneCount returns the number of scenes.
func (a *Arrangement) SceneCount() int {
	return len(a.scenes)
}

// ---- timeline ----

// Schedule places a clip on the track at beat. An existing placement within
// PlacementTolerance of beat is replaced and replaced reports true.
func (a *Arrangement) Schedule(id TrackID, clip ClipID, beat float64) (replaced bool, err error) {
	if _, err := a.track(id); err != nil {
		return false, err
	}
	if _, ok := a.clips[clip]; !ok {
		return false, fault.NotFound("clip", uint32(clip))
	}
	if !validBeat(beat) {
		return false, fault.Range("placement beat %v", beat)
	}
	ps := a.timeline[id]
	if i := placementIndex(ps, beat); i >= 0 {
		ps[i] = Placement{Clip: clip, Start: beat}
		a.touch()
		return true, nil
	}
	i, _ := slices.BinarySearchFunc(ps, beat, func(p Placement, b float64) int {
		if p.Start < b {
			return -1
		}
		return 1
	})
	a.timeline[id] = slices.Insert(ps, i, Placement{Clip: clip, Start: beat})
	a.touch()
	return false, nil
}

// Unschedule removes the placement at beat. It reports false if none exists.
func (a *Arrangement) Unschedule(id TrackID, beat float64) bool {
	ps := a.timeline[id]
	i := placementIndex(ps, beat)
	if i < 0 {
		return false
	}
	a.timeline[id] = slices.Delete(ps, i, i+1)
	a.touch()
	return true
}

// Placements returns the track's placements sorted by start.
func (a *Arrangement) Placements(id TrackID) []Placement {
	return slices.Clone(a.timeline[id])
}

func placementIndex(ps []Placement, beat float64) int {
	return slices.IndexFunc(ps, func(p Placement) bool {
		return math.Abs(p.Start-beat) < PlacementTolerance
	})
}

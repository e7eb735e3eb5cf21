package transport

import "math"

// Clock is the engine's playhead. Tempo changes are staged and take effect at
// the next BeginBlock so block-local arithmetic stays consistent.
type Clock struct {
	sampleRate float64
	tempo      float64
	pending    float64
	playing    bool
	sample     int64
	beat       float64
	loop       Loop
}

// NewClock returns a stopped clock at beat 0.
func NewClock(sampleRate, tempo float64) Clock {
	return Clock{sampleRate: sampleRate, tempo: tempo}
}

// BeginBlock applies a staged tempo change.
func (c *Clock) BeginBlock() {
	if c.pending > 0 {
		c.tempo = c.pending
		c.pending = 0
	}
}

// SetTempo stages a tempo for the next block. While stopped the change
// applies at once.
func (c *Clock) SetTempo(bpm float64) {
	if !(bpm > 0) {
		return
	}
	if c.playing {
		c.pending = bpm
		return
	}
	c.tempo = bpm
	c.pending = 0
}

func (c *Clock) Play()          { c.playing = true }
func (c *Clock) Stop()          { c.playing = false }
func (c *Clock) Playing() bool  { return c.playing }
func (c *Clock) Tempo() float64 { return c.tempo }
func (c *Clock) Beat() float64  { return c.beat }
func (c *Clock) Sample() int64  { return c.sample }
func (c *Clock) Loop() Loop     { return c.loop }
func (c *Clock) SetLoop(l Loop) { c.loop = l }

// Seek moves the playhead. The sample position follows at the current tempo.
func (c *Clock) Seek(beat float64) {
	if math.IsNaN(beat) || beat < 0 {
		beat = 0
	}
	c.beat = beat
	c.sample = int64(math.Round(beat * 60 / c.tempo * c.sampleRate))
}

// BeatsPerFrame returns the beat advance of one sample frame.
func (c *Clock) BeatsPerFrame() float64 {
	return c.tempo / 60 / c.sampleRate
}

// FramesUntil returns the frame offset of beat from the playhead, rounded up,
// or -1 if beat is behind the playhead.
func (c *Clock) FramesUntil(beat float64) int {
	d := beat - c.beat
	if d < 0 {
		return -1
	}
	return int(math.Ceil(d / c.BeatsPerFrame()))
}

// LoopCrossing reports the frame within the next frames at which the playhead
// reaches the loop end.
func (c *Clock) LoopCrossing(frames int) (int, bool) {
	if !c.playing || !c.loop.Enabled || c.loop.Length() <= 0 || c.beat >= c.loop.End {
		return 0, false
	}
	end := c.beat + float64(frames)*c.BeatsPerFrame()
	if end < c.loop.End {
		return 0, false
	}
	at := c.FramesUntil(c.loop.End)
	if at >= frames {
		return 0, false
	}
	return at, true
}

// Advance moves the playhead by frames while playing. Reaching the loop end
// wraps to the loop start.
func (c *Clock) Advance(frames int) {
	if !c.playing || frames <= 0 {
		return
	}
	prev := c.beat
	c.sample += int64(frames)
	c.beat += float64(frames) * c.BeatsPerFrame()
	if c.loop.Enabled && c.loop.Length() > 0 && prev < c.loop.End && c.beat >= c.loop.End {
		c.beat = c.loop.Start + math.Mod(c.beat-c.loop.End, c.loop.Length())
	}
}

package node

// Buffer holds one block of planar audio, one slice per channel.
type Buffer [][]float32

// NewBuffer allocates a buffer with the given channel count and capacity.
func NewBuffer(channels, frames int) Buffer {
	b := make(Buffer, channels)
	for i := range b {
		b[i] = make([]float32, frames)
	}
	return b
}

// Slice returns a view of frames [from, to) of every channel.
// The returned header shares storage with b; dst must have len(b) entries.
func (b Buffer) Slice(dst Buffer, from, to int) Buffer {
	for i := range b {
		dst[i] = b[i][from:to]
	}
	return dst
}

// Clear zeroes every channel.
func (b Buffer) Clear() {
	for _, ch := range b {
		clear(ch)
	}
}

// Frames returns the length of the first channel.
func (b Buffer) Frames() int {
	if len(b) == 0 {
		return 0
	}
	return len(b[0])
}

// Voice is the per-voice state that note-driven processors read.
type Voice struct {
	Index    int
	Note     uint8
	Velocity float32
	Freq     float32

	// Gate is true between note-on and note-off.
	Gate bool
	// Triggered is true for the first slice after the voice was (re)started.
	Triggered bool
	// Hold is set by processors that are still sounding after release.
	// The engine frees released voices that nothing holds.
	Hold bool
}

// Transport is the read-only transport view handed to processors.
type Transport struct {
	Playing   bool
	Tempo     float64
	Beat      float64
	SamplePos int64
}

// Context is passed to every Process call.
type Context struct {
	SampleRate float64
	Frames     int
	Transport  Transport

	// Voice is nil for global nodes.
	Voice *Voice
}

// Processor is the processing contract every node kind implements.
//
// Prepare runs on the control thread before the processor is handed to the
// render thread and may allocate. SetParam, Process and Reset run on the
// render thread and must not allocate, lock or block.
type Processor interface {
	Prepare(sampleRate float64, maxFrames int)
	SetParam(id ParamID, value float32)
	// Process renders ctx.Frames frames into out. in has one entry per
	// input port in descriptor order; an entry is nil if nothing is
	// connected to that port.
	Process(ctx *Context, in []Buffer, out Buffer)
	Reset()
}

// Region is a slice of immutable pool audio scheduled on a region player.
type Region struct {
	Samples    []float32 // interleaved
	Channels   int
	SampleRate float64
	Offset     int // start frame in Samples
	Length     int // frames to play
	Gain       float32
}

// RegionPlayer is implemented by processors that can play audio regions
// triggered by clips.
type RegionPlayer interface {
	StartRegion(r Region)
	StopRegions()
}

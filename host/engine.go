package host

import "github.com/cwbudde/algo-synth/engine"

// Engine is the audio-thread handle. Render never allocates.
type Engine struct {
	eng     *engine.Engine
	scratch []float32
}

func newEngine(e *engine.Engine, maxBlock int) *Engine {
	return &Engine{eng: e, scratch: make([]float32, 2*maxBlock)}
}

// Render fills interleaved stereo out. A destroyed engine renders silence.
func (e *Engine) Render(out []float32) {
	if e.eng == nil {
		clear(out)
		return
	}
	e.eng.Process(out)
}

// RenderPlanar fills separate left and right buffers of equal length.
func (e *Engine) RenderPlanar(left, right []float32) {
	frames := min(len(left), len(right))
	if e.eng == nil {
		clear(left)
		clear(right)
		return
	}
	block := len(e.scratch) / 2
	for off := 0; off < frames; off += block {
		n := min(block, frames-off)
		buf := e.scratch[:2*n]
		e.eng.Process(buf)
		for i := 0; i < n; i++ {
			left[off+i] = buf[2*i]
			right[off+i] = buf[2*i+1]
		}
	}
}

// Destroy releases every voice and the current snapshot. Later renders are
// silent.
func (e *Engine) Destroy() {
	if e.eng == nil {
		return
	}
	e.eng.Close()
	e.eng = nil
}

// Alive reports whether the engine has not been destroyed.
func (e *Engine) Alive() bool {
	return e.eng != nil
}

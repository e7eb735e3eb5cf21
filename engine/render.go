package engine

import (
	"github.com/cwbudde/algo-synth/dsp"
	"github.com/cwbudde/algo-synth/node"
)

// strip is the per-block gain ramp of one track, interpolated per frame.
type strip struct {
	vol0, vol1 float32
	pan0, pan1 float32
}

func (s *strip) at(frame, total int) (vol, pan float32) {
	if total <= 0 {
		return s.vol1, s.pan1
	}
	t := float32(frame) / float32(total)
	return s.vol0 + (s.vol1-s.vol0)*t, s.pan0 + (s.pan1-s.pan0)*t
}

// balance returns the stereo balance gains for pan. The centre is unity.
func balance(pan float32) (float32, float32) {
	return min(1, 1-pan), min(1, 1+pan)
}

// renderSlice renders n frames starting at block frame off and mixes them
// into the interleaved out at the same offset.
func (e *Engine) renderSlice(out []float32, off, n int) {
	gp := e.graph
	if gp == nil {
		return
	}
	ctx := &e.ctx
	ctx.SampleRate = e.cfg.SampleRate
	ctx.Frames = n
	ctx.Transport = node.Transport{
		Playing:   e.clock.Playing(),
		Tempo:     e.clock.Tempo(),
		Beat:      e.clock.Beat(),
		SamplePos: e.clock.Sample(),
	}

	e.voices.beginSlice()
	for si := range gp.steps {
		s := &gp.steps[si]
		s.out.Slice(s.outView, 0, n)
		s.outView.Clear()
		if s.perVoice {
			clear(s.voiceOn)
		}
		if s.inst.faulted {
			continue
		}
		if s.perVoice {
			e.renderVoices(gp, s, n)
		} else {
			e.gather(gp, s, -1, n)
			ctx.Voice = nil
			if !e.run(s.inst.global, s.args, s.outView) {
				s.inst.faulted = true
				s.outView.Clear()
			}
		}
		if s.route >= 0 {
			e.applyStrip(s, off, n)
		}
	}
	e.voices.endSlice()
	e.mixMaster(gp, out, off, n)
}

func (e *Engine) renderVoices(gp *GraphPlan, s *step, n int) {
	ctx := &e.ctx
	for v := range e.voices.slots {
		slot := &e.voices.slots[v]
		if !slot.active || slot.domain < 0 || !s.domain[slot.domain] {
			continue
		}
		e.gather(gp, s, v, n)
		s.voiceOut[v].Slice(s.view, 0, n)
		s.view.Clear()
		ctx.Voice = &slot.v
		if !e.run(s.inst.voices[v], s.args, s.view) {
			s.inst.faulted = true
			s.outView.Clear()
			clear(s.voiceOn)
			ctx.Voice = nil
			return
		}
		s.voiceOn[v] = true
		for c := range s.outView {
			dst, src := s.outView[c], s.view[c]
			for i := range dst {
				dst[i] += src[i]
			}
		}
	}
	ctx.Voice = nil
}

// gather sums the sources of every input port of s. For voice >= 0 a
// per-voice source contributes only that voice's signal.
func (e *Engine) gather(gp *GraphPlan, s *step, voice, n int) {
	for pi, srcs := range s.ports {
		if len(srcs) == 0 {
			s.args[pi] = nil
			continue
		}
		dst := s.in[pi].Slice(s.inView[pi], 0, n)
		dst.Clear()
		for _, si := range srcs {
			src := &gp.steps[si]
			buf := src.out
			if src.perVoice && voice >= 0 {
				if !src.voiceOn[voice] {
					continue
				}
				buf = src.voiceOut[voice]
			}
			accumulate(dst, buf, n)
		}
		s.args[pi] = dst
	}
}

// accumulate adds n frames of src into dst. Mono feeds both sides of a
// stereo destination; stereo folds to mono by averaging.
func accumulate(dst, src node.Buffer, n int) {
	switch {
	case len(dst) == len(src):
		for c := range dst {
			d, s := dst[c][:n], src[c][:n]
			for i := range d {
				d[i] += s[i]
			}
		}
	case len(src) == 1:
		s := src[0][:n]
		for c := range dst {
			d := dst[c][:n]
			for i := range d {
				d[i] += s[i]
			}
		}
	default:
		d, l, r := dst[0][:n], src[0][:n], src[1][:n]
		for i := range d {
			d[i] += 0.5 * (l[i] + r[i])
		}
	}
}

// run calls Process and reports false if the processor panicked or
// produced a non-finite sample.
func (e *Engine) run(p node.Processor, in []node.Buffer, out node.Buffer) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	p.Process(&e.ctx, in, out)
	for _, ch := range out {
		for i, x := range ch {
			if !dsp.IsFinite(x) {
				return false
			}
			ch[i] = dsp.FlushDenormals(x)
		}
	}
	return true
}

// applyStrip scales the target output of a track in place and meters it.
func (e *Engine) applyStrip(s *step, off, n int) {
	si := e.routeTrack[s.route]
	if si < 0 {
		return
	}
	st := &e.tracks[si]
	sp := &e.strips[si]
	total := e.blockFrames
	if len(s.outView) == 2 {
		l, r := s.outView[0], s.outView[1]
		for i := range l {
			vol, pan := sp.at(off+i, total)
			bl, br := balance(pan)
			l[i] *= vol * bl
			r[i] *= vol * br
		}
	} else {
		m := s.outView[0]
		for i := range m {
			vol, _ := sp.at(off+i, total)
			m[i] *= vol
		}
	}
	if s.perVoice {
		for v, on := range s.voiceOn {
			if !on {
				continue
			}
			for _, ch := range s.voiceOut[v] {
				ch = ch[:n]
				for i := range ch {
					vol, _ := sp.at(off+i, total)
					ch[i] *= vol
				}
			}
		}
	}
	for _, ch := range s.outView {
		st.peak = max(st.peak, dsp.Peak(ch))
	}
}

// mixMaster writes the output node signal plus the strips of tracks that do
// not already reach the output through the graph.
func (e *Engine) mixMaster(gp *GraphPlan, out []float32, off, n int) {
	if gp.output >= 0 {
		src := gp.steps[gp.output].outView
		l, r := src[0], src[0]
		if len(src) == 2 {
			r = src[1]
		}
		for i := 0; i < n; i++ {
			out[2*(off+i)] += l[i]
			out[2*(off+i)+1] += r[i]
		}
	}
	for ri := range gp.routes {
		rt := &gp.routes[ri]
		// Tracks sharing a target are mixed once, through the first strip.
		if rt.feedsOutput || rt.step == gp.output || gp.steps[rt.step].route != ri {
			continue
		}
		si := e.routeTrack[ri]
		if si < 0 {
			continue
		}
		src := gp.steps[rt.step].outView
		if len(src) == 2 {
			for i := 0; i < n; i++ {
				out[2*(off+i)] += src[0][i]
				out[2*(off+i)+1] += src[1][i]
			}
			continue
		}
		sp := &e.strips[si]
		for i := 0; i < n; i++ {
			_, pan := sp.at(off+i, e.blockFrames)
			gl, gr := dsp.PanGains(pan)
			out[2*(off+i)] += src[0][i] * gl
			out[2*(off+i)+1] += src[0][i] * gr
		}
	}
}

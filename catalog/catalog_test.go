package catalog

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-synth/dsp"
	"github.com/cwbudde/algo-synth/node"
)

const (
	testRate  = 48000.0
	testBlock = 256
)

func prepared(t *testing.T, r *node.Registry, typ node.TypeID) (node.Processor, *node.Descriptor) {
	t.Helper()
	d, ok := r.Lookup(typ)
	if !ok {
		t.Fatalf("type %d not registered", typ)
	}
	p, err := r.Create(typ)
	if err != nil {
		t.Fatalf("create %d: %v", typ, err)
	}
	p.Prepare(testRate, testBlock)
	return p, d
}

func voiceCtx(note uint8) *node.Context {
	return &node.Context{
		SampleRate: testRate,
		Frames:     testBlock,
		Voice: &node.Voice{
			Note:      note,
			Velocity:  1,
			Freq:      dsp.NoteToFreq(int(note)),
			Gate:      true,
			Triggered: true,
		},
	}
}

func zeroCrossings(x []float32) int {
	n := 0
	for i := 1; i < len(x); i++ {
		if (x[i-1] < 0) != (x[i] < 0) {
			n++
		}
	}
	return n
}

func TestNewRegistryHoldsStandardCatalog(t *testing.T) {
	r := NewRegistry()
	if !r.Sealed() {
		t.Fatalf("expected sealed registry")
	}
	want := []node.TypeID{SineOsc, SawOsc, SquareOsc, TriangleOsc, ADSR, Gain, Pan, Mixer, Delay, Reverb, Lowpass, Highpass, Bandpass, Notch, LFO, AudioPlayer, Output}
	if r.Count() != len(want) {
		t.Fatalf("expected %d types, got %d", len(want), r.Count())
	}
	for _, typ := range want {
		if _, ok := r.Lookup(typ); !ok {
			t.Fatalf("missing type %d", typ)
		}
	}
	for _, typ := range []node.TypeID{Lowpass, Highpass, Bandpass, Notch} {
		d, _ := r.Lookup(typ)
		if d.Polyphony != node.PerVoice || d.Channels != 1 {
			t.Fatalf("filter %d should be a mono voice node: %+v", typ, d)
		}
	}
}

func TestEveryKindRendersFiniteOutput(t *testing.T) {
	r := NewRegistry()
	for _, typ := range r.Types() {
		p, d := prepared(t, r, typ)
		in := make([]node.Buffer, len(d.Inputs))
		for i := range in {
			b := node.NewBuffer(d.Channels, testBlock)
			for ch := range b {
				for j := range b[ch] {
					b[ch][j] = float32(math.Sin(float64(j) * 0.05))
				}
			}
			in[i] = b
		}
		out := node.NewBuffer(d.Channels, testBlock)
		ctx := &node.Context{SampleRate: testRate, Frames: testBlock}
		if d.Polyphony == node.PerVoice {
			ctx = voiceCtx(60)
		}
		for block := 0; block < 8; block++ {
			p.Process(ctx, in, out)
			if ctx.Voice != nil {
				ctx.Voice.Triggered = false
			}
		}
		for ch := range out {
			for i, v := range out[ch] {
				if !dsp.IsFinite(v) || math.Abs(float64(v)) > 16 {
					t.Fatalf("%s: non-finite or runaway sample %f at ch=%d i=%d", d.Name, v, ch, i)
				}
			}
		}
	}
}

func TestSineFollowsVoicePitch(t *testing.T) {
	r := NewRegistry()
	p, _ := prepared(t, r, SineOsc)
	ctx := voiceCtx(69)
	ctx.Frames = int(testRate)
	out := node.NewBuffer(1, ctx.Frames)
	p.Process(ctx, nil, out)
	// 440 Hz crosses zero twice per period.
	zc := zeroCrossings(out[0])
	if zc < 870 || zc > 890 {
		t.Fatalf("expected ~880 zero crossings for A4, got %d", zc)
	}
}

func TestOscillatorDetuneIsInCents(t *testing.T) {
	r := NewRegistry()
	p, d := prepared(t, r, SineOsc)
	if spec, ok := d.Param(ParamDetune); !ok || spec.Unit != node.UnitCents {
		t.Fatalf("detune spec = %+v, want cents", spec)
	}
	p.SetParam(ParamDetune, 100)
	ctx := voiceCtx(69)
	ctx.Frames = int(testRate)
	out := node.NewBuffer(1, ctx.Frames)
	p.Process(ctx, nil, out)
	// One semitone above A4 is 466.16 Hz.
	zc := zeroCrossings(out[0])
	if zc < 922 || zc > 942 {
		t.Fatalf("expected A4 + 100 cents at ~466 Hz, got %d crossings", zc)
	}
}

func TestEnvelopeHoldsVoiceThroughRelease(t *testing.T) {
	r := NewRegistry()
	p, _ := prepared(t, r, ADSR)
	p.SetParam(ParamRelease, 0.01)
	ctx := voiceCtx(60)
	out := node.NewBuffer(1, testBlock)

	p.Process(ctx, []node.Buffer{nil}, out)
	if !ctx.Voice.Hold {
		t.Fatalf("expected gated envelope to hold its voice")
	}
	if out[0][testBlock-1] <= 0 {
		t.Fatalf("expected rising envelope, got %f", out[0][testBlock-1])
	}

	ctx.Voice.Triggered = false
	ctx.Voice.Gate = false
	released := false
	for i := 0; i < 100; i++ {
		ctx.Voice.Hold = false
		p.Process(ctx, []node.Buffer{nil}, out)
		if !ctx.Voice.Hold {
			released = true
			break
		}
	}
	if !released {
		t.Fatalf("expected envelope to finish its release")
	}
	if out[0][testBlock-1] != 0 {
		t.Fatalf("expected silence after release, got %f", out[0][testBlock-1])
	}
}

func TestLowpassAttenuatesHighFrequencies(t *testing.T) {
	r := NewRegistry()
	p, _ := prepared(t, r, Lowpass)
	p.SetParam(ParamCutoff, 200)
	p.SetParam(ParamResonance, 0)

	n := 4096
	in := node.NewBuffer(1, n)
	for i := range in[0] {
		in[0][i] = float32(math.Sin(2 * math.Pi * 8000 * float64(i) / testRate))
	}
	out := node.NewBuffer(1, n)
	ctx := &node.Context{SampleRate: testRate, Frames: n}
	p.Process(ctx, []node.Buffer{in}, out)
	if peak := dsp.Peak(out[0][n/2:]); peak > 0.05 {
		t.Fatalf("expected 8 kHz to be strongly attenuated, peak=%f", peak)
	}
}

func TestDelayEchoesImpulse(t *testing.T) {
	r := NewRegistry()
	p, _ := prepared(t, r, Delay)
	p.SetParam(ParamTime, 0.01)
	p.SetParam(ParamFeedback, 0)
	p.SetParam(ParamMix, 1)
	p.Reset()

	n := 1024
	in := node.NewBuffer(2, n)
	in[0][0], in[1][0] = 1, 1
	out := node.NewBuffer(2, n)
	p.Process(&node.Context{SampleRate: testRate, Frames: n}, []node.Buffer{in}, out)

	best, at := float32(0), -1
	for i, v := range out[0] {
		if v > best {
			best, at = v, i
		}
	}
	if at < 470 || at > 490 {
		t.Fatalf("expected echo near 480 samples, got %d (%f)", at, best)
	}
}

func TestPlayerMixesRegionsOverInput(t *testing.T) {
	r := NewRegistry()
	p, _ := prepared(t, r, AudioPlayer)
	rp, ok := p.(node.RegionPlayer)
	if !ok {
		t.Fatalf("audio player must implement RegionPlayer")
	}
	samples := make([]float32, 2000)
	for i := range samples {
		samples[i] = 0.5
	}
	rp.StartRegion(node.Region{Samples: samples, Channels: 1, SampleRate: testRate, Length: 1000, Gain: 1})

	out := node.NewBuffer(2, testBlock)
	ctx := &node.Context{SampleRate: testRate, Frames: testBlock}
	p.Process(ctx, []node.Buffer{nil}, out)
	if math.Abs(float64(out[0][10])-0.5) > 1e-6 || math.Abs(float64(out[1][10])-0.5) > 1e-6 {
		t.Fatalf("expected region audio on both channels, got %f/%f", out[0][10], out[1][10])
	}

	for i := 0; i < 5; i++ {
		p.Process(ctx, []node.Buffer{nil}, out)
	}
	if out[0][testBlock-1] != 0 {
		t.Fatalf("expected region to stop after its length, got %f", out[0][testBlock-1])
	}

	rp.StartRegion(node.Region{Samples: samples, Channels: 1, SampleRate: testRate, Length: 1000, Gain: 1})
	rp.StopRegions()
	p.Process(ctx, []node.Buffer{nil}, out)
	if dsp.Peak(out[0]) != 0 {
		t.Fatalf("expected silence after StopRegions")
	}
}

func TestGainStageAppliesDecibels(t *testing.T) {
	r := NewRegistry()
	p, _ := prepared(t, r, Gain)
	p.SetParam(ParamGain, -6.0206)
	in := node.NewBuffer(2, testBlock)
	for ch := range in {
		for i := range in[ch] {
			in[ch][i] = 1
		}
	}
	out := node.NewBuffer(2, testBlock)
	ctx := &node.Context{SampleRate: testRate, Frames: testBlock}
	p.Process(ctx, []node.Buffer{in}, out)
	p.Process(ctx, []node.Buffer{in}, out)
	if math.Abs(float64(out[0][0])-0.5) > 1e-3 {
		t.Fatalf("expected -6 dB to halve the signal, got %f", out[0][0])
	}
}

// Package catalog provides the standard node kinds: oscillators, envelope,
// filters, LFO, gain, pan, mixer, delay, reverb, audio player and output.
package catalog

import "github.com/cwbudde/algo-synth/node"

// Node type ids.
const (
	SineOsc     node.TypeID = 1
	SawOsc      node.TypeID = 2
	SquareOsc   node.TypeID = 3
	TriangleOsc node.TypeID = 4
	ADSR        node.TypeID = 10
	Gain        node.TypeID = 20
	Pan         node.TypeID = 21
	Mixer       node.TypeID = 22
	Delay       node.TypeID = 23
	Reverb      node.TypeID = 24
	Lowpass     node.TypeID = 40
	Highpass    node.TypeID = 41
	Bandpass    node.TypeID = 42
	Notch       node.TypeID = 43
	LFO         node.TypeID = 50
	AudioPlayer node.TypeID = 60
	Output      node.TypeID = 100
)

// Parameter ids. Ids are scoped per node kind, so values repeat.
const (
	ParamFreq       node.ParamID = 0
	ParamDetune     node.ParamID = 1
	ParamPulseWidth node.ParamID = 3

	ParamAttack  node.ParamID = 0
	ParamDecay   node.ParamID = 1
	ParamSustain node.ParamID = 2
	ParamRelease node.ParamID = 3

	ParamGain node.ParamID = 0
	ParamPan  node.ParamID = 1

	ParamCutoff    node.ParamID = 0
	ParamResonance node.ParamID = 1

	ParamRate     node.ParamID = 0
	ParamDepth    node.ParamID = 1
	ParamWaveform node.ParamID = 2

	ParamTime     node.ParamID = 0
	ParamFeedback node.ParamID = 1
	ParamMix      node.ParamID = 2

	ParamRoomSize node.ParamID = 0
	ParamDamping  node.ParamID = 1
)

var (
	audioIn    = node.Port{ID: 0, Name: "In", Kind: node.Audio}
	audioOut   = node.Port{ID: 0, Name: "Out", Kind: node.Audio}
	controlOut = node.Port{ID: 0, Name: "Out", Kind: node.Control}
)

// NewRegistry returns a sealed registry holding the standard catalog.
func NewRegistry() *node.Registry {
	r := node.NewRegistry()
	Register(r)
	r.Seal()
	return r
}

// Register adds the standard catalog to r.
func Register(r *node.Registry) {
	registerOscillators(r)
	registerEnvelopes(r)
	registerFilters(r)
	registerModulators(r)
	registerEffects(r)
	registerSamplers(r)
	registerUtility(r)
}

func freqParam() node.ParamSpec {
	return node.ParamSpec{ID: ParamFreq, Name: "Frequency", Default: 440, Min: 20, Max: 20000, Unit: node.UnitHz}
}

func detuneParam() node.ParamSpec {
	return node.ParamSpec{ID: ParamDetune, Name: "Detune", Default: 0, Min: -100, Max: 100, Unit: node.UnitCents}
}

func registerOscillators(r *node.Registry) {
	oscs := []struct {
		t     node.TypeID
		name  string
		shape shape
	}{
		{SineOsc, "Sine", shapeSine},
		{SawOsc, "Saw", shapeSaw},
		{SquareOsc, "Square", shapeSquare},
		{TriangleOsc, "Triangle", shapeTriangle},
	}
	for _, o := range oscs {
		params := []node.ParamSpec{freqParam(), detuneParam()}
		if o.shape == shapeSquare {
			params = append(params, node.ParamSpec{ID: ParamPulseWidth, Name: "Pulse Width", Default: 0.5, Min: 0.01, Max: 0.99, Unit: node.UnitPercent})
		}
		s := o.shape
		r.MustRegister(node.Descriptor{
			Type:      o.t,
			Name:      o.name,
			Category:  "Oscillators",
			Outputs:   []node.Port{audioOut},
			Params:    params,
			Polyphony: node.PerVoice,
			Channels:  1,
			New:       func() node.Processor { return newOscillator(s) },
		})
	}
}

func registerEnvelopes(r *node.Registry) {
	r.MustRegister(node.Descriptor{
		Type:     ADSR,
		Name:     "ADSR",
		Category: "Envelopes",
		Inputs:   []node.Port{audioIn},
		Outputs:  []node.Port{audioOut},
		Params: []node.ParamSpec{
			{ID: ParamAttack, Name: "Attack", Default: 0.01, Min: 0.001, Max: 10, Unit: node.UnitSeconds},
			{ID: ParamDecay, Name: "Decay", Default: 0.1, Min: 0.001, Max: 10, Unit: node.UnitSeconds},
			{ID: ParamSustain, Name: "Sustain", Default: 0.7, Min: 0, Max: 1, Unit: node.UnitPercent},
			{ID: ParamRelease, Name: "Release", Default: 0.3, Min: 0.001, Max: 10, Unit: node.UnitSeconds},
		},
		Polyphony: node.PerVoice,
		Channels:  1,
		New:       func() node.Processor { return &envelope{} },
	})
}

func registerFilters(r *node.Registry) {
	filters := []struct {
		t      node.TypeID
		name   string
		cutoff string
		res    string
		mode   filterMode
	}{
		{Lowpass, "Lowpass", "Cutoff", "Resonance", modeLowpass},
		{Highpass, "Highpass", "Cutoff", "Resonance", modeHighpass},
		{Bandpass, "Bandpass", "Center", "Q", modeBandpass},
		{Notch, "Notch", "Frequency", "Width", modeNotch},
	}
	for _, f := range filters {
		mode := f.mode
		r.MustRegister(node.Descriptor{
			Type:     f.t,
			Name:     f.name,
			Category: "Filters",
			Inputs:   []node.Port{audioIn},
			Outputs:  []node.Port{audioOut},
			Params: []node.ParamSpec{
				{ID: ParamCutoff, Name: f.cutoff, Default: 1000, Min: 20, Max: 20000, Unit: node.UnitHz},
				{ID: ParamResonance, Name: f.res, Default: 0.5, Min: 0, Max: 1, Unit: node.UnitPercent},
			},
			Polyphony: node.PerVoice,
			Channels:  1,
			New:       func() node.Processor { return newFilter(mode) },
		})
	}
}

func registerModulators(r *node.Registry) {
	r.MustRegister(node.Descriptor{
		Type:     LFO,
		Name:     "LFO",
		Category: "Modulators",
		Outputs:  []node.Port{controlOut},
		Params: []node.ParamSpec{
			{ID: ParamRate, Name: "Rate", Default: 1, Min: 0.01, Max: 100, Unit: node.UnitHz},
			{ID: ParamDepth, Name: "Depth", Default: 1, Min: 0, Max: 1, Unit: node.UnitPercent},
			{ID: ParamWaveform, Name: "Wave", Default: 0, Min: 0, Max: 4},
		},
		Polyphony: node.Global,
		Channels:  1,
		New:       func() node.Processor { return &lfo{seed: 0x9e3779b9} },
	})
}

func registerEffects(r *node.Registry) {
	r.MustRegister(node.Descriptor{
		Type:     Gain,
		Name:     "Gain",
		Category: "Effects",
		Inputs:   []node.Port{audioIn},
		Outputs:  []node.Port{audioOut},
		Params: []node.ParamSpec{
			{ID: ParamGain, Name: "Gain", Default: 0, Min: -60, Max: 12, Unit: node.UnitDB},
		},
		Polyphony: node.Global,
		Channels:  2,
		New:       func() node.Processor { return newGainStage() },
	})
	r.MustRegister(node.Descriptor{
		Type:     Pan,
		Name:     "Pan",
		Category: "Effects",
		Inputs:   []node.Port{audioIn},
		Outputs:  []node.Port{audioOut},
		Params: []node.ParamSpec{
			{ID: ParamPan, Name: "Pan", Default: 0, Min: -1, Max: 1, Unit: node.UnitPan},
		},
		Polyphony: node.Global,
		Channels:  2,
		New:       func() node.Processor { return &panner{} },
	})
	r.MustRegister(node.Descriptor{
		Type:      Delay,
		Name:      "Delay",
		Category:  "Effects",
		Inputs:    []node.Port{audioIn},
		Outputs:   []node.Port{audioOut},
		Params:    delayParams(),
		Polyphony: node.Global,
		Channels:  2,
		New:       func() node.Processor { return &delayEffect{} },
	})
	r.MustRegister(node.Descriptor{
		Type:     Reverb,
		Name:     "Reverb",
		Category: "Effects",
		Inputs:   []node.Port{audioIn},
		Outputs:  []node.Port{audioOut},
		Params: []node.ParamSpec{
			{ID: ParamRoomSize, Name: "Decay", Default: 0.5, Min: 0, Max: 0.99, Unit: node.UnitPercent},
			{ID: ParamDamping, Name: "Damping", Default: 0.5, Min: 0, Max: 1, Unit: node.UnitPercent},
			{ID: ParamMix, Name: "Mix", Default: 0.3, Min: 0, Max: 1, Unit: node.UnitPercent},
		},
		Polyphony: node.Global,
		Channels:  2,
		New:       func() node.Processor { return newReverb() },
	})
}

func delayParams() []node.ParamSpec {
	return []node.ParamSpec{
		{ID: ParamTime, Name: "Time", Default: 0.25, Min: 0.001, Max: maxDelaySeconds, Unit: node.UnitSeconds},
		{ID: ParamFeedback, Name: "Feedback", Default: 0.4, Min: 0, Max: 0.99, Unit: node.UnitPercent},
		{ID: ParamMix, Name: "Mix", Default: 0.5, Min: 0, Max: 1, Unit: node.UnitPercent},
	}
}

func registerSamplers(r *node.Registry) {
	r.MustRegister(node.Descriptor{
		Type:     AudioPlayer,
		Name:     "Audio Player",
		Category: "Samplers",
		Inputs:   []node.Port{audioIn},
		Outputs:  []node.Port{audioOut},
		Params: []node.ParamSpec{
			{ID: ParamGain, Name: "Gain", Default: 1, Min: 0, Max: 2},
		},
		Polyphony: node.Global,
		Channels:  2,
		New:       func() node.Processor { return &player{} },
	})
}

func registerUtility(r *node.Registry) {
	mixerInputs := make([]node.Port, 4)
	for i := range mixerInputs {
		mixerInputs[i] = node.Port{ID: node.PortID(i), Name: "In " + string(rune('1'+i)), Kind: node.Audio}
	}
	r.MustRegister(node.Descriptor{
		Type:     Mixer,
		Name:     "Mixer",
		Category: "Utility",
		Inputs:   mixerInputs,
		Outputs:  []node.Port{audioOut},
		Params: []node.ParamSpec{
			{ID: ParamGain, Name: "Gain", Default: 0, Min: -60, Max: 12, Unit: node.UnitDB},
		},
		Polyphony: node.Global,
		Channels:  2,
		New:       func() node.Processor { return newGainStage() },
	})
	r.MustRegister(node.Descriptor{
		Type:     Output,
		Name:     "Output",
		Category: "Utility",
		Inputs:   []node.Port{audioIn},
		Outputs:  []node.Port{audioOut},
		Params: []node.ParamSpec{
			{ID: ParamGain, Name: "Gain", Default: 0, Min: -60, Max: 12, Unit: node.UnitDB},
		},
		Polyphony: node.Global,
		Channels:  2,
		New:       func() node.Processor { return newGainStage() },
	})
}

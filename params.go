package backbeat

// Params is the flat set of named knobs shared by all new voices of the synth
// engine. It is mutable at the engine level, but every voice snapshots it at
// note-on (see synth.Engine), so changing a knob never retunes an already
// sounding voice; only the continuously automatable buses (LFO depths, master
// effects) apply globally.
type Params map[string]float64

// ParamDef documents one knob of the parameter set.
type ParamDef struct {
	Name     string  // key in the Params map
	Min      float64 // minimum value, inclusive
	Max      float64 // maximum value, inclusive
	Default  float64 // value used when the key is absent
}

// Oscillator types for the "oscType", "osc2Type" and "subOscType" parameters.
const (
	Sine     = iota
	Triangle = iota
	Sawtooth = iota
	Square   = iota
)

// Filter types for the "filterType" parameter.
const (
	Lowpass  = iota
	Highpass = iota
	Bandpass = iota
	Notch    = iota
)

// Modulation targets for "lfo2Target" and "shTarget".
const (
	TargetPitch  = iota
	TargetFilter = iota
	TargetAmp    = iota // lfo2 only
	TargetPWM    = iota // sample-&-hold only
)

// Noise types for the "noiseType" parameter.
const (
	NoiseWhite = iota
	NoisePink  = iota
)

// ParamDefs documents all the recognized knobs. Keys not in this table are
// ignored by Merge, so newer project files degrade gracefully on older
// engines.
var ParamDefs = []ParamDef{
	{Name: "oscType", Min: Sine, Max: Square, Default: Sawtooth},
	{Name: "detune", Min: -1, Max: 1, Default: 0}, // semitones
	{Name: "pulseWidth", Min: 0.05, Max: 0.95, Default: 0.5},
	{Name: "osc2Type", Min: Sine, Max: Square, Default: Sawtooth},
	{Name: "osc2Pitch", Min: -24, Max: 24, Default: 0}, // semitones
	{Name: "osc2Mix", Min: 0, Max: 1, Default: 0},
	{Name: "subOsc", Min: 0, Max: 1, Default: 0},
	{Name: "noise", Min: 0, Max: 1, Default: 0},
	{Name: "noiseType", Min: NoiseWhite, Max: NoisePink, Default: NoiseWhite},
	{Name: "fmAmount", Min: 0, Max: 1, Default: 0},
	{Name: "ringMod", Min: 0, Max: 1, Default: 0},
	{Name: "syncAmount", Min: 0, Max: 1, Default: 0},
	{Name: "filterType", Min: Lowpass, Max: Notch, Default: Lowpass},
	{Name: "cutoff", Min: 20, Max: 20000, Default: 8000}, // Hz
	{Name: "resonance", Min: 0, Max: 1, Default: 0.1},
	{Name: "filterEnvAmount", Min: -1, Max: 1, Default: 0}, // signed fraction of cutoff
	{Name: "filterAttack", Min: 0, Max: 10, Default: 0.01},
	{Name: "filterDecay", Min: 0, Max: 10, Default: 0.2},
	{Name: "filterSustain", Min: 0, Max: 1, Default: 0.5},
	{Name: "filterRelease", Min: 0, Max: 10, Default: 0.2},
	{Name: "attack", Min: 0, Max: 10, Default: 0.005},
	{Name: "decay", Min: 0, Max: 10, Default: 0.1},
	{Name: "sustain", Min: 0, Max: 1, Default: 0.7},
	{Name: "release", Min: 0, Max: 10, Default: 0.2},
	{Name: "lfo1Rate", Min: 0.01, Max: 40, Default: 5}, // Hz
	{Name: "lfo1Amount", Min: 0, Max: 1, Default: 0},   // vibrato depth
	{Name: "lfo2Rate", Min: 0.01, Max: 40, Default: 1},
	{Name: "lfo2Amount", Min: 0, Max: 1, Default: 0},
	{Name: "lfo2Target", Min: TargetPitch, Max: TargetAmp, Default: TargetFilter},
	{Name: "crushBits", Min: 1, Max: 16, Default: 16},
	{Name: "crushRate", Min: 0, Max: 1, Default: 0}, // 0 = off, 1 = heaviest decimation
	{Name: "foldAmount", Min: 0, Max: 1, Default: 0},
	{Name: "feedbackAmount", Min: 0, Max: 0.95, Default: 0},
	{Name: "formantShift", Min: 0, Max: 1, Default: 0}, // 0 = off, otherwise picks a vowel
	{Name: "grainSize", Min: 0.01, Max: 0.5, Default: 0.1}, // seconds
	{Name: "grainSpeed", Min: 0.25, Max: 4, Default: 1},
	{Name: "grainReverse", Min: 0, Max: 1, Default: 0},
	{Name: "grainFreeze", Min: 0, Max: 1, Default: 0},
	{Name: "grainMix", Min: 0, Max: 1, Default: 0}, // 0 = bypass
	{Name: "combFreq", Min: 20, Max: 2000, Default: 220}, // Hz
	{Name: "combFeedback", Min: 0, Max: 0.98, Default: 0.8},
	{Name: "combMix", Min: 0, Max: 1, Default: 0}, // 0 = bypass
	{Name: "shRate", Min: 0.1, Max: 50, Default: 8}, // Hz
	{Name: "shAmount", Min: 0, Max: 1, Default: 0},
	{Name: "shTarget", Min: TargetPitch, Max: TargetPWM, Default: TargetFilter},
	{Name: "distortion", Min: 0, Max: 1, Default: 0},
	{Name: "delayAmount", Min: 0, Max: 1, Default: 0},
	{Name: "delayTime", Min: 0.01, Max: 2, Default: 0.35}, // seconds
	{Name: "delayFeedback", Min: 0, Max: 0.9, Default: 0.4},
	{Name: "reverbAmount", Min: 0, Max: 1, Default: 0},
	{Name: "volume", Min: 0, Max: 1, Default: 0.8},
}

var paramDefsByName = func() map[string]ParamDef {
	m := make(map[string]ParamDef, len(ParamDefs))
	for _, d := range ParamDefs {
		m[d.Name] = d
	}
	return m
}()

// Get returns the value of a knob, falling back to its documented default
// when the key is absent, and clamping out-of-range values.
func (p Params) Get(name string) float64 {
	def, known := paramDefsByName[name]
	if !known {
		return 0
	}
	v, ok := p[name]
	if !ok {
		return def.Default
	}
	if v < def.Min {
		return def.Min
	}
	if v > def.Max {
		return def.Max
	}
	return v
}

// Copy makes a snapshot of the parameter set, used by voices to freeze their
// parameters at note-on.
func (p Params) Copy() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge applies a partial update; unknown keys are ignored.
func (p Params) Merge(partial Params) {
	for k, v := range partial {
		if _, known := paramDefsByName[k]; known {
			p[k] = v
		}
	}
}

package synth

import (
	"github.com/chewxy/math32"

	"github.com/mkivist/backbeat"
)

// VoiceState is the lifecycle of a voice: it attacks, sustains until note-off
// or steal, releases, and is disposed once silent.
type VoiceState int

const (
	VoiceAttacking VoiceState = iota
	VoiceSustaining
	VoiceReleasing
	VoiceDisposed
)

// voiceParams is the typed snapshot of the engine parameter set a voice takes
// at note-on. Resolving the map once up front keeps the per-sample loop free
// of map lookups, and freezes the knobs for the voice's whole life.
type voiceParams struct {
	oscType                      int
	detune, pulseWidth           float32
	osc2Type                     int
	osc2Pitch, osc2Mix           float32
	subOsc, noise                float32
	noiseType                    int
	fmAmount, ringMod            float32
	syncAmount                   float32
	filterType                   int
	cutoff, resonance            float32
	filterEnvAmount              float32
	filterAttack, filterDecay    float32
	filterSustain, filterRelease float32
	attack, decay                float32
	sustain, release             float32
	lfo1Rate, lfo1Amount         float32
	lfo2Rate, lfo2Amount         float32
	lfo2Target                   int
	crushBits, crushRate         float32
	foldAmount                   float32
	feedbackAmount               float32
	formantShift                 float32
	grainSize, grainSpeed        float32
	grainReverse, grainFreeze    float32
	grainMix                     float32
	combFreq, combFeedback       float32
	combMix                      float32
	shRate, shAmount             float32
	shTarget                     int
	distortion                   float32
	delayAmount, delayTime       float32
	delayFeedback                float32
	reverbAmount                 float32
	volume                       float32
}

func resolveParams(p backbeat.Params) voiceParams {
	return voiceParams{
		oscType:         int(p.Get("oscType")),
		detune:          float32(p.Get("detune")),
		pulseWidth:      float32(p.Get("pulseWidth")),
		osc2Type:        int(p.Get("osc2Type")),
		osc2Pitch:       float32(p.Get("osc2Pitch")),
		osc2Mix:         float32(p.Get("osc2Mix")),
		subOsc:          float32(p.Get("subOsc")),
		noise:           float32(p.Get("noise")),
		noiseType:       int(p.Get("noiseType")),
		fmAmount:        float32(p.Get("fmAmount")),
		ringMod:         float32(p.Get("ringMod")),
		syncAmount:      float32(p.Get("syncAmount")),
		filterType:      int(p.Get("filterType")),
		cutoff:          float32(p.Get("cutoff")),
		resonance:       float32(p.Get("resonance")),
		filterEnvAmount: float32(p.Get("filterEnvAmount")),
		filterAttack:    float32(p.Get("filterAttack")),
		filterDecay:     float32(p.Get("filterDecay")),
		filterSustain:   float32(p.Get("filterSustain")),
		filterRelease:   float32(p.Get("filterRelease")),
		attack:          float32(p.Get("attack")),
		decay:           float32(p.Get("decay")),
		sustain:         float32(p.Get("sustain")),
		release:         float32(p.Get("release")),
		lfo1Rate:        float32(p.Get("lfo1Rate")),
		lfo1Amount:      float32(p.Get("lfo1Amount")),
		lfo2Rate:        float32(p.Get("lfo2Rate")),
		lfo2Amount:      float32(p.Get("lfo2Amount")),
		lfo2Target:      int(p.Get("lfo2Target")),
		crushBits:       float32(p.Get("crushBits")),
		crushRate:       float32(p.Get("crushRate")),
		foldAmount:      float32(p.Get("foldAmount")),
		feedbackAmount:  float32(p.Get("feedbackAmount")),
		formantShift:    float32(p.Get("formantShift")),
		grainSize:       float32(p.Get("grainSize")),
		grainSpeed:      float32(p.Get("grainSpeed")),
		grainReverse:    float32(p.Get("grainReverse")),
		grainFreeze:     float32(p.Get("grainFreeze")),
		grainMix:        float32(p.Get("grainMix")),
		combFreq:        float32(p.Get("combFreq")),
		combFeedback:    float32(p.Get("combFeedback")),
		combMix:         float32(p.Get("combMix")),
		shRate:          float32(p.Get("shRate")),
		shAmount:        float32(p.Get("shAmount")),
		shTarget:        int(p.Get("shTarget")),
		distortion:      float32(p.Get("distortion")),
		delayAmount:     float32(p.Get("delayAmount")),
		delayTime:       float32(p.Get("delayTime")),
		delayFeedback:   float32(p.Get("delayFeedback")),
		reverbAmount:    float32(p.Get("reverbAmount")),
		volume:          float32(p.Get("volume")),
	}
}

// modBlock carries one render block's worth of the shared modulation buses:
// the two LFOs and the sample-&-hold source, all in -1..1.
type modBlock struct {
	lfo1, lfo2, sh []float32
}

// Voice is one note's complete signal chain: the oscillator bank, the cross
// modulation stage, the filter with its own envelope, and the amplitude
// envelope, all built from the parameter snapshot taken at note-on.
type Voice struct {
	Note      byte
	StartTime float64 // engine clock seconds at allocation, used for stealing order

	params     voiceParams
	sampleRate float32
	freq       float32
	velocity   float32

	osc1, osc2, sub Oscillator
	noise           Noise
	syncTable       []float32
	syncPhase       float32
	ampEnv          Envelope
	filterEnv       Envelope
	filter          Filter

	state    VoiceState
	fade     float32 // force-release fade, 1 at full level
	fadeStep float32
}

// NewVoice builds a voice for the note from a snapshot of the engine params.
func NewVoice(note byte, velocity float32, startTime float64, sampleRate float32, params backbeat.Params) *Voice {
	p := resolveParams(params)
	v := &Voice{
		Note:       note,
		StartTime:  startTime,
		params:     p,
		sampleRate: sampleRate,
		freq:       float32(backbeat.NoteToFreq(float64(note))),
		velocity:   velocity,
		osc1:       Oscillator{Type: p.oscType, PW: p.pulseWidth},
		osc2:       Oscillator{Type: p.osc2Type},
		sub:        Oscillator{Type: backbeat.Sine},
		noise:      NewNoise(p.noiseType),
		ampEnv:     Envelope{Attack: p.attack, Decay: p.decay, Sustain: p.sustain, Release: p.release},
		filterEnv:  Envelope{Attack: p.filterAttack, Decay: p.filterDecay, Sustain: p.filterSustain, Release: p.filterRelease},
		filter:     Filter{Type: p.filterType},
		fade:       1,
	}
	if p.syncAmount > 0 {
		ratio := math32.Exp2(p.osc2Pitch/12) + 1
		v.syncTable = makeSyncTable(Oscillator{Type: p.oscType}, ratio)
	}
	return v
}

// State returns the voice's lifecycle state.
func (v *Voice) State() VoiceState {
	if v.state == VoiceAttacking && v.ampEnv.Level() >= v.params.sustain {
		return VoiceSustaining
	}
	return v.state
}

// Release starts the release ramps; the oscillators stop once the amplitude
// envelope has fully ramped out.
func (v *Voice) Release() {
	if v.state == VoiceDisposed {
		return
	}
	v.state = VoiceReleasing
	v.ampEnv.Off()
	v.filterEnv.Off()
}

// ForceRelease fades the voice out over the given short fade time regardless
// of its own release setting, guaranteeing click-free cutoffs on steals.
func (v *Voice) ForceRelease(fadeTime float32) {
	if v.state == VoiceDisposed {
		return
	}
	v.state = VoiceReleasing
	if fadeTime <= 0 {
		v.state = VoiceDisposed
		return
	}
	v.fadeStep = 1 / (fadeTime * v.sampleRate)
}

// Disposed reports whether the voice has finished and can be reclaimed.
func (v *Voice) Disposed() bool { return v.state == VoiceDisposed }

// renderBlock adds the voice's output into out, applying the shared
// modulation buses. All slices have equal length.
func (v *Voice) renderBlock(out []float32, mod modBlock) {
	if v.state == VoiceDisposed {
		return
	}
	p := &v.params
	baseOmega := v.freq / v.sampleRate * math32.Exp2(p.detune/12)
	osc2Ratio := math32.Exp2(p.osc2Pitch / 12)
	gain := v.velocity * waveGain(p.oscType) * 0.5
	for i := range out {
		// pitch modulation in semitones from vibrato lfo, lfo2 and s&h
		semis := mod.lfo1[i] * p.lfo1Amount * 0.5
		if p.lfo2Target == backbeat.TargetPitch {
			semis += mod.lfo2[i] * p.lfo2Amount * 2
		}
		if p.shTarget == backbeat.TargetPitch {
			semis += mod.sh[i] * p.shAmount * 2
		}
		omega := baseOmega
		if semis != 0 {
			omega *= math32.Exp2(semis / 12)
		}

		var osc2Val float32
		if p.osc2Mix > 0 || p.fmAmount > 0 || p.ringMod > 0 {
			osc2Val = v.osc2.Next(omega * osc2Ratio)
		}
		if p.fmAmount > 0 {
			omega *= 1 + osc2Val*p.fmAmount*4
			if omega < 0 {
				omega = 0
			}
		}
		if p.shTarget == backbeat.TargetPWM {
			v.osc1.PW = p.pulseWidth + mod.sh[i]*p.shAmount*0.4
		}
		var sample float32
		if p.syncAmount > 0 && len(v.syncTable) > 0 {
			v.syncPhase += omega
			v.syncPhase -= float32(int(v.syncPhase))
			synced := v.syncTable[int(v.syncPhase*float32(len(v.syncTable)))%len(v.syncTable)]
			sample = v.osc1.Next(omega)*(1-p.syncAmount) + synced*p.syncAmount
		} else {
			sample = v.osc1.Next(omega)
		}
		if p.osc2Mix > 0 {
			sample = sample*(1-p.osc2Mix) + osc2Val*p.osc2Mix
		}
		if p.ringMod > 0 {
			sample = sample*(1-p.ringMod) + sample*osc2Val*p.ringMod
		}
		if p.subOsc > 0 {
			sample += v.sub.Next(omega/2) * p.subOsc
		}
		if p.noise > 0 {
			sample += v.noise.Next() * p.noise
		}

		cutoff := p.cutoff * (1 + p.filterEnvAmount*v.filterEnv.Next(v.sampleRate))
		if p.lfo2Target == backbeat.TargetFilter {
			cutoff *= math32.Exp2(mod.lfo2[i] * p.lfo2Amount * 2)
		}
		if p.shTarget == backbeat.TargetFilter {
			cutoff *= math32.Exp2(mod.sh[i] * p.shAmount * 2)
		}
		cutoff = correctedCutoff(cutoff, v.freq, p.oscType)
		res := p.resonance
		if m := maxResonance(p.oscType); res > m {
			res = m
		}
		sample = v.filter.Next(sample, freqCoeff(cutoff, v.sampleRate), res)

		level := v.ampEnv.Next(v.sampleRate)
		if p.lfo2Target == backbeat.TargetAmp {
			level *= 1 + mod.lfo2[i]*p.lfo2Amount*0.5
		}
		if v.fadeStep > 0 {
			v.fade -= v.fadeStep
			if v.fade <= 0 {
				v.fade = 0
				v.state = VoiceDisposed
				return
			}
		}
		out[i] += sample * level * gain * v.fade
		if v.ampEnv.Done() {
			v.state = VoiceDisposed
			return
		}
	}
}

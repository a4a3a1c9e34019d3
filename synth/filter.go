package synth

import (
	"github.com/chewxy/math32"

	"github.com/mkivist/backbeat"
)

// Filter is a Chamberlin state-variable filter producing lowpass, highpass,
// bandpass and notch responses from the same two integrators.
type Filter struct {
	Type      int
	low, band float32
}

// Next filters one sample. freq2 is the normalized frequency coefficient
// (2*sin(pi*cutoff/sampleRate), precomputed by the caller) and res the
// damping in 0..1, where higher res means more resonance.
func (f *Filter) Next(input, freq2, res float32) float32 {
	f.low += freq2 * f.band
	high := input - f.low - (1.25-res)*f.band
	f.band += freq2 * high
	switch f.Type {
	case backbeat.Highpass:
		return high
	case backbeat.Bandpass:
		return f.band
	case backbeat.Notch:
		return f.low + high
	default:
		return f.low
	}
}

// freqCoeff converts a cutoff in Hz to the SVF frequency coefficient, capped
// below the stability limit.
func freqCoeff(cutoff, sampleRate float32) float32 {
	c := 2 * math32.Sin(math32.Pi*cutoff/sampleRate)
	if c > 1.2 {
		c = 1.2
	}
	if c < 0 {
		c = 0
	}
	return c
}

// correctedCutoff applies the thin-waveform correction rule: for sine and
// triangle oscillators the cutoff is floored to a multiple of the note
// frequency so the filter cannot swallow the fundamental entirely.
func correctedCutoff(cutoff, noteFreq float32, oscType int) float32 {
	if oscType != backbeat.Sine && oscType != backbeat.Triangle || noteFreq <= 0 {
		return cutoff
	}
	if cutoff >= noteFreq {
		multiples := float32(int(cutoff / noteFreq))
		return multiples * noteFreq
	}
	return noteFreq
}

// maxResonance caps the resonance lower for thin waveforms, which otherwise
// ring harshly with so little harmonic content to excite.
func maxResonance(oscType int) float32 {
	if oscType == backbeat.Sine || oscType == backbeat.Triangle {
		return 0.7
	}
	return 1
}

// vowel formant frequencies for the three-stage formant filter, in Hz.
// Classic average male vowel formants; the shift parameter interpolates
// through them.
var vowelFormants = [][3]float32{
	{800, 1150, 2900},  // a
	{400, 2000, 2550},  // e
	{250, 2320, 3200},  // i
	{400, 800, 2830},   // o
	{350, 600, 2700},   // u
}

// FormantFilter is a bank of three bandpass stages tuned to vowel formants,
// selected and interpolated by a shift parameter in 0..1.
type FormantFilter struct {
	stages [3]Filter
}

// Next runs one sample through the formant bank for the given shift.
func (f *FormantFilter) Next(input, shift, sampleRate float32) float32 {
	pos := shift * float32(len(vowelFormants)-1)
	i := int(pos)
	if i >= len(vowelFormants)-1 {
		i = len(vowelFormants) - 2
	}
	frac := pos - float32(i)
	var out float32
	for s := 0; s < 3; s++ {
		freq := vowelFormants[i][s]*(1-frac) + vowelFormants[i+1][s]*frac
		f.stages[s].Type = backbeat.Bandpass
		out += f.stages[s].Next(input, freqCoeff(freq, sampleRate), 0.9)
	}
	return out * 0.7
}

// Comb is a short feedback delay tuned to a target frequency, producing a
// pitched metallic resonance.
type Comb struct {
	buffer []float32
	pos    int
}

// Next runs one sample through the comb tuned to freq Hz.
func (c *Comb) Next(input, freq, feedback, sampleRate float32) float32 {
	length := int(sampleRate / freq)
	if length < 2 {
		length = 2
	}
	if len(c.buffer) < length {
		c.buffer = append(c.buffer, make([]float32, length-len(c.buffer))...)
	}
	if c.pos >= length {
		c.pos = 0
	}
	out := c.buffer[c.pos]
	c.buffer[c.pos] = input + out*feedback
	c.pos++
	return out
}

package synth

import "github.com/chewxy/math32"

// experimentalChain is the shared bus of the stranger effects. Every stage is
// independently bypassed when its controlling parameter sits at its off
// default, so the chain costs nothing until a knob is turned.
type experimentalChain struct {
	sampleRate float32

	// bit-crusher
	crushHold  float32
	crushPhase float32

	// feedback loop
	fbLine    *delayLine
	fbHP      float32

	// granular
	grain grainBuffer

	comb    Comb
	formant FormantFilter
}

func newExperimentalChain(sampleRate float32) *experimentalChain {
	return &experimentalChain{
		sampleRate: sampleRate,
		fbLine:     newDelayLine(int(sampleRate * 0.25)),
		grain:      newGrainBuffer(int(sampleRate)),
	}
}

// next runs one sample through every enabled stage, in a fixed order:
// crusher, folder, feedback, formant, granular, comb.
func (x *experimentalChain) next(input float32, p *voiceParams) float32 {
	out := input
	if p.crushBits < 16 || p.crushRate > 0 {
		out = x.crush(out, p.crushBits, p.crushRate)
	}
	if p.foldAmount > 0 {
		out = fold(out, p.foldAmount)
	}
	if p.feedbackAmount > 0 {
		out = x.feedback(out, p.feedbackAmount)
	}
	if p.formantShift > 0 {
		out = x.formant.Next(out, p.formantShift, x.sampleRate)
	}
	if p.grainMix > 0 {
		wet := x.grain.next(out, p.grainSize*x.sampleRate, p.grainSpeed, p.grainReverse, p.grainFreeze)
		out = out*(1-p.grainMix) + wet*p.grainMix
	}
	if p.combMix > 0 {
		wet := x.comb.Next(out, p.combFreq, p.combFeedback, x.sampleRate)
		out = out*(1-p.combMix) + wet*p.combMix
	}
	return out
}

// crush quantizes the signal to the given bit depth and decimates the sample
// rate by holding values, the hold length growing with rate.
func (x *experimentalChain) crush(input, bits, rate float32) float32 {
	x.crushPhase -= 1
	if x.crushPhase <= 0 {
		levels := math32.Exp2(bits) / 2
		x.crushHold = math32.Round(input*levels) / levels
		x.crushPhase = 1 + rate*40 // hold up to ~40 samples at full rate
	}
	return x.crushHold
}

// fold reflects the signal back once it exceeds a drive-controlled threshold,
// adding harmonics the harder it is driven.
func fold(input, amount float32) float32 {
	threshold := 1 - amount*0.75
	v := input * (1 + amount*3)
	for v > threshold || v < -threshold {
		if v > threshold {
			v = 2*threshold - v
		}
		if v < -threshold {
			v = -2*threshold - v
		}
	}
	return v
}

// feedback mixes in a delayed, highpass-filtered copy of the output. The
// feedback gain is capped below unity so the loop cannot run away.
func (x *experimentalChain) feedback(input, amount float32) float32 {
	if amount > 0.95 {
		amount = 0.95
	}
	delayed := x.fbLine.next(input, amount, 0.2, int(x.sampleRate*0.05))
	// one-pole highpass keeps the loop from accumulating rumble
	x.fbHP = 0.995*x.fbHP + 0.005*delayed
	return input + (delayed-x.fbHP)*amount
}

// grainBuffer is a circular capture buffer replayed in grains: short windowed
// slices read at an adjustable speed, optionally reversed, with freeze
// stopping the capture so the same material loops.
type grainBuffer struct {
	buffer   []float32
	writePos int
	readPos  float32
	grainPos float32
}

func newGrainBuffer(size int) grainBuffer {
	return grainBuffer{buffer: make([]float32, size)}
}

func (g *grainBuffer) next(input, grainSamples, speed float32, reverse, freeze float32) float32 {
	if freeze < 0.5 {
		g.buffer[g.writePos] = input
		g.writePos++
		if g.writePos >= len(g.buffer) {
			g.writePos = 0
		}
	}
	if grainSamples < 64 {
		grainSamples = 64
	}
	step := speed
	if reverse >= 0.5 {
		step = -speed
	}
	g.grainPos += step
	if g.grainPos >= grainSamples || g.grainPos < 0 {
		// retrigger the grain just behind the write head
		g.grainPos = 0
		g.readPos = float32(g.writePos) - grainSamples
		for g.readPos < 0 {
			g.readPos += float32(len(g.buffer))
		}
	}
	pos := g.readPos + g.grainPos
	for pos >= float32(len(g.buffer)) {
		pos -= float32(len(g.buffer))
	}
	for pos < 0 {
		pos += float32(len(g.buffer))
	}
	i := int(pos)
	j := i + 1
	if j >= len(g.buffer) {
		j = 0
	}
	frac := pos - float32(i)
	sample := g.buffer[i]*(1-frac) + g.buffer[j]*frac
	// Hann window over the grain to avoid edge clicks
	window := 0.5 - 0.5*math32.Cos(2*math32.Pi*g.grainPos/grainSamples)
	return sample * window
}

// sampleHold is the stepped random modulation source: it redraws a random
// value at the given rate and holds it between redraws.
type sampleHold struct {
	seed  uint32
	phase float32
	value float32
}

func newSampleHold() sampleHold { return sampleHold{seed: 20467} }

func (s *sampleHold) next(rate, sampleRate float32) float32 {
	s.phase -= rate / sampleRate
	if s.phase <= 0 {
		s.seed *= 16007
		s.value = float32(int32(s.seed)) / -2147483648.0
		s.phase = 1
	}
	return s.value
}

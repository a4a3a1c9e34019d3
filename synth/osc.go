package synth

import (
	"github.com/chewxy/math32"

	"github.com/mkivist/backbeat"
)

// Oscillator is a single phase-accumulator waveform generator. Phase runs
// 0..1 and omega is the per-sample phase increment (freq / sampleRate).
type Oscillator struct {
	Type  int
	PW    float32 // pulse width for Square, 0.05..0.95
	phase float32
}

// Next advances the oscillator by one sample and returns its output in -1..1.
func (o *Oscillator) Next(omega float32) float32 {
	o.phase += omega
	o.phase -= float32(int(o.phase))
	return o.at(o.phase)
}

func (o *Oscillator) at(phase float32) float32 {
	switch o.Type {
	case backbeat.Sine:
		return math32.Sin(2 * math32.Pi * phase)
	case backbeat.Triangle:
		if phase < 0.5 {
			return phase*4 - 1
		}
		return 3 - phase*4
	case backbeat.Square:
		pw := o.PW
		if pw == 0 {
			pw = 0.5
		}
		if phase < pw {
			return 1
		}
		return -1
	default: // Sawtooth
		return phase*2 - 1
	}
}

// waveGain compensates for the perceived loudness differences between
// waveforms: sine and triangle carry much less harmonic energy than sawtooth
// and square, so they get boosted to match.
func waveGain(oscType int) float32 {
	switch oscType {
	case backbeat.Sine:
		return 1.6
	case backbeat.Triangle:
		return 1.4
	}
	return 1
}

// syncTableSize is the length of the precomputed one-cycle table used to
// approximate hard sync.
const syncTableSize = 1024

// makeSyncTable precomputes one cycle of a hard-synced waveform: the slave
// oscillator runs at ratio times the master frequency and its phase resets
// every master cycle. Playing the table at the master frequency approximates
// the classic sync sound without per-sample phase resets.
func makeSyncTable(osc Oscillator, ratio float32) []float32 {
	table := make([]float32, syncTableSize)
	for i := range table {
		masterPhase := float32(i) / syncTableSize
		slavePhase := masterPhase * ratio
		slavePhase -= float32(int(slavePhase))
		table[i] = osc.at(slavePhase)
	}
	return table
}

// Noise is a white/pink noise generator using the same multiplicative
// congruential generator the synth uses everywhere, so renders stay
// deterministic.
type Noise struct {
	Type  int
	seed  uint32
	state float32 // one-pole state for pink noise
}

// NewNoise returns a noise generator with a fixed seed.
func NewNoise(noiseType int) Noise {
	return Noise{Type: noiseType, seed: 1}
}

func (n *Noise) rand() float32 {
	n.seed *= 16007
	return float32(int32(n.seed)) / -2147483648.0
}

// Next returns the next noise sample. Pink noise is approximated by a
// one-pole lowpass over white noise, which gives the -3 dB/oct tilt close
// enough for a sweetening layer.
func (n *Noise) Next() float32 {
	white := n.rand()
	if n.Type == backbeat.NoisePink {
		n.state = 0.98*n.state + 0.02*white
		return n.state * 8
	}
	return white
}

// waveshape is the distortion nonlinearity: amount 0.5 is the unity curve,
// below softens and above hardens the signal.
func waveshape(value, amount float32) float32 {
	absVal := value
	if absVal < 0 {
		absVal = -absVal
	}
	return value * amount / (1 - amount + (2*amount-1)*absVal)
}

// softclip keeps a summed bus inside -1..1 with a smooth cubic knee, leaving
// a little headroom before the knee starts working.
func softclip(value float32) float32 {
	const limit = 0.95
	if value > limit {
		value = limit + (value-limit)/(1+(value-limit)*(value-limit))
	} else if value < -limit {
		value = -limit + (value+limit)/(1+(value+limit)*(value+limit))
	}
	if value > 1 {
		return 1
	}
	if value < -1 {
		return -1
	}
	return value
}

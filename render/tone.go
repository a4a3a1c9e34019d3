package render

import (
	"math"

	"github.com/mkivist/backbeat"
)

// The offline note tone is deliberately plain: a slightly detuned pair of
// sines through a fixed ADSR. Mixdowns must be reproducible, so none of the
// live engine's parameter state leaks in here.
const (
	toneAttack  = 0.005
	toneDecay   = 0.08
	toneSustain = 0.7
	toneRelease = 0.06
	toneDetune  = 1.003
	toneGain    = 0.25
)

// toneTail is the extra time a note keeps sounding past its duration.
const toneTail = toneRelease

func toneEnvelope(t, duration float64) float64 {
	if t < 0 {
		return 0
	}
	var level float64
	switch {
	case t < toneAttack:
		level = t / toneAttack
	case t < toneAttack+toneDecay:
		level = 1 - (1-toneSustain)*(t-toneAttack)/toneDecay
	default:
		level = toneSustain
	}
	if t >= duration {
		rel := 1 - (t-duration)/toneRelease
		if rel <= 0 {
			return 0
		}
		level *= rel
	}
	return level
}

// renderTone adds the note into the left and right track buses. Everything is
// computed from the sample index so the result is bit-identical across runs.
func renderTone(left, right []float32, n backbeat.Note, sampleRate int) {
	start := int(math.Round(n.Time * float64(sampleRate)))
	length := int(math.Ceil((n.Duration + toneTail) * float64(sampleRate)))
	omega := 2 * math.Pi * n.Freq / float64(sampleRate)
	for i := 0; i < length; i++ {
		pos := start + i
		if pos < 0 {
			continue
		}
		if pos >= len(left) {
			break
		}
		t := float64(i) / float64(sampleRate)
		env := toneEnvelope(t, n.Duration)
		if env == 0 {
			continue
		}
		phase := omega * float64(i)
		s := math.Sin(phase) + 0.5*math.Sin(phase*toneDetune)
		v := float32(s * env * n.Velocity * toneGain)
		left[pos] += v
		right[pos] += v
	}
}

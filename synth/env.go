package synth

type envState int

const (
	envStateAttack envState = iota
	envStateDecay
	envStateSustain
	envStateRelease
	envStateDone
)

// Envelope is a linear-ramp ADSR envelope, advanced one sample at a time.
// Attack ramps 0..1, decay ramps down to the sustain level, and Release
// starts the release ramp from wherever the level currently is, so releasing
// mid-attack does not click.
type Envelope struct {
	Attack  float32 // seconds
	Decay   float32
	Sustain float32 // level 0..1
	Release float32

	state envState
	level float32
}

// Next advances the envelope by one sample and returns its level.
func (e *Envelope) Next(sampleRate float32) float32 {
	switch e.state {
	case envStateAttack:
		e.level += rampStep(e.Attack, sampleRate)
		if e.level >= 1 {
			e.level = 1
			e.state = envStateDecay
		}
	case envStateDecay:
		e.level -= rampStep(e.Decay, sampleRate)
		if e.level <= e.Sustain {
			e.level = e.Sustain
			e.state = envStateSustain
		}
	case envStateRelease:
		e.level -= e.releaseStep(sampleRate)
		if e.level <= 0 {
			e.level = 0
			e.state = envStateDone
		}
	}
	return e.level
}

// rampStep converts a ramp time in seconds to a per-sample level change for a
// full-scale ramp. A zero time ramps in a single sample.
func rampStep(seconds, sampleRate float32) float32 {
	if seconds <= 0 {
		return 1
	}
	return 1 / (seconds * sampleRate)
}

func (e *Envelope) releaseStep(sampleRate float32) float32 {
	if e.Release <= 0 {
		return 1
	}
	// scale so the release takes Release seconds from the sustain level
	from := e.Sustain
	if from <= 0 {
		from = 1
	}
	return from / (e.Release * sampleRate)
}

// Off starts the release ramp.
func (e *Envelope) Off() {
	if e.state != envStateDone {
		e.state = envStateRelease
	}
}

// Done reports whether the envelope has fully released.
func (e *Envelope) Done() bool { return e.state == envStateDone }

// Releasing reports whether the envelope is in its release ramp.
func (e *Envelope) Releasing() bool {
	return e.state == envStateRelease || e.state == envStateDone
}

// Level returns the current envelope level without advancing it.
func (e *Envelope) Level() float32 { return e.level }

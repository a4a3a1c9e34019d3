package synth

// delayLine is one feedback delay with damping and a DC blocker, the building
// block of both the delay and the reverb.
type delayLine struct {
	buffer      []float32
	pos         int
	dampState   float32
	dcIn        float32
	dcFiltState float32
}

func newDelayLine(maxSamples int) *delayLine {
	if maxSamples < 1 {
		maxSamples = 1
	}
	return &delayLine{buffer: make([]float32, maxSamples)}
}

// next reads the sample delayed by delaySamples, writes feedback*damped + in
// back, and returns the delayed signal through the DC blocker.
func (d *delayLine) next(input, feedback, damp float32, delaySamples int) float32 {
	if delaySamples < 1 {
		delaySamples = 1
	}
	if delaySamples >= len(d.buffer) {
		delaySamples = len(d.buffer) - 1
	}
	readPos := d.pos - delaySamples
	if readPos < 0 {
		readPos += len(d.buffer)
	}
	delayed := d.buffer[readPos]
	d.dampState = damp*d.dampState + (1-damp)*delayed
	d.buffer[d.pos] = feedback*d.dampState + input
	d.pos++
	if d.pos >= len(d.buffer) {
		d.pos = 0
	}
	d.dcFiltState = delayed + (0.99609375*d.dcFiltState - d.dcIn)
	d.dcIn = delayed
	return d.dcFiltState
}

// reverbTimes are the delay lengths of the parallel reverb bank, in seconds.
// Mutually detuned so the tails do not comb against each other.
var reverbTimes = []float32{0.0297, 0.0371, 0.0411, 0.0437, 0.0533, 0.0619}

// fxBus is the shared master effects chain: distortion into feedback delay
// into a parallel bank of detuned delay lines approximating a reverb, summed
// and soft-clipped. One instance is shared by all voices.
type fxBus struct {
	sampleRate float32
	delay      *delayLine
	reverb     []*delayLine
}

func newFXBus(sampleRate float32) *fxBus {
	bus := &fxBus{
		sampleRate: sampleRate,
		delay:      newDelayLine(int(sampleRate * 2.5)),
	}
	for _, t := range reverbTimes {
		bus.reverb = append(bus.reverb, newDelayLine(int(t*sampleRate)+2))
	}
	return bus
}

// next processes one mono sample through the bus and returns the wet mono
// output, before master volume and panning.
func (b *fxBus) next(input, distortion, delayAmount, delayTime, delayFeedback, reverbAmount float32) float32 {
	out := input
	if distortion > 0 {
		// drive maps 0..1 to the soft half of the waveshape curve
		out = waveshape(out, 0.5+distortion*0.49)
	}
	if delayAmount > 0 {
		wet := b.delay.next(out*0.7, delayFeedback, 0.3, int(delayTime*b.sampleRate))
		out += wet * delayAmount
	}
	if reverbAmount > 0 {
		var wet float32
		for i, line := range b.reverb {
			wet += line.next(out*0.25, 0.7, 0.4, len(line.buffer)-1-i)
		}
		out += wet * reverbAmount * (1.0 / float32(len(b.reverb)))
	}
	return out
}

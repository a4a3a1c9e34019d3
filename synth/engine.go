package synth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mkivist/backbeat"
)

// ErrEngineClosed is returned by operations on a closed engine.
var ErrEngineClosed = errors.New("engine is closed")

// Engine is the live polyphonic synth. Voices snapshot the parameter set at
// note-on; the modulation buses and the master effects read the current
// parameters every block, so those stay automatable while notes sound.
//
// Engine implements backbeat.AudioSource so it can be handed straight to an
// audio context for playback.
type Engine struct {
	mu         sync.Mutex
	sampleRate float32
	params     backbeat.Params
	shared     voiceParams
	manager    *Manager
	chain      *experimentalChain
	bus        *fxBus
	lfo1, lfo2 Oscillator
	sh         sampleHold
	clock      float64
	closed     bool
	meter      Meter

	mono, lfo1Buf, lfo2Buf, shBuf []float32
}

// NewEngine creates an engine rendering at the given sample rate with the
// given polyphony (0 for the default).
func NewEngine(sampleRate int, maxVoices int) *Engine {
	return &Engine{
		sampleRate: float32(sampleRate),
		params:     backbeat.Params{},
		shared:     resolveParams(backbeat.Params{}),
		manager:    NewManager(maxVoices),
		chain:      newExperimentalChain(float32(sampleRate)),
		bus:        newFXBus(float32(sampleRate)),
		lfo1:       Oscillator{Type: backbeat.Sine},
		lfo2:       Oscillator{Type: backbeat.Sine},
		sh:         newSampleHold(),
	}
}

// NoteOn starts a voice for the note. Velocity is 0..1; a retrigger of an
// already sounding note fades the old voice out first.
func (e *Engine) NoteOn(note byte, velocity float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if velocity < 0 {
		velocity = 0
	} else if velocity > 1 {
		velocity = 1
	}
	e.manager.Allocate(note, velocity, e.clock, e.sampleRate, e.params)
	return nil
}

// NoteOff releases every voice playing the note. It reports whether any
// voice was actually released; off events for notes that never sounded, or
// that were already stolen, return false.
func (e *Engine) NoteOff(note byte) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false, ErrEngineClosed
	}
	return e.manager.Release(note), nil
}

// AllNotesOff releases every live voice.
func (e *Engine) AllNotesOff() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.manager.ReleaseAll()
}

// SetParams merges the given partial parameter set into the engine's current
// one. Unknown names are ignored; values are clamped on read. Already sounding
// voices keep their snapshot, new voices and the shared buses see the change.
func (e *Engine) SetParams(partial backbeat.Params) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params.Merge(partial)
	e.shared = resolveParams(e.params)
}

// Usage returns the voice pool's live and maximum counts and the pool
// utilization as a percentage.
func (e *Engine) Usage() (used, max int, percent float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manager.Usage()
}

// Time returns the engine clock: seconds of audio rendered so far.
func (e *Engine) Time() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

// Levels returns the peak and RMS levels of the last rendered block.
func (e *Engine) Levels() (peak, rms float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.meter.Peak, e.meter.RMS
}

// Render fills the buffer with the next block of audio. Any panic inside the
// signal chain is recovered and returned as an error so a single bad voice
// cannot take the audio thread down.
func (e *Engine) Render(buffer backbeat.AudioBuffer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render: %v", r)
		}
	}()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	n := len(buffer)
	e.ensureScratch(n)
	mono := e.mono[:n]
	for i := range mono {
		mono[i] = 0
	}
	p := &e.shared
	lfo1Omega := p.lfo1Rate / e.sampleRate
	lfo2Omega := p.lfo2Rate / e.sampleRate
	for i := 0; i < n; i++ {
		e.lfo1Buf[i] = e.lfo1.Next(lfo1Omega)
		e.lfo2Buf[i] = e.lfo2.Next(lfo2Omega)
		e.shBuf[i] = e.sh.next(p.shRate, e.sampleRate)
	}
	e.manager.renderBlock(mono, modBlock{lfo1: e.lfo1Buf[:n], lfo2: e.lfo2Buf[:n], sh: e.shBuf[:n]})
	for i := 0; i < n; i++ {
		s := e.chain.next(mono[i], p)
		s = e.bus.next(s, p.distortion, p.delayAmount, p.delayTime, p.delayFeedback, p.reverbAmount)
		s = softclip(s * p.volume)
		buffer[i][0] = s
		buffer[i][1] = s
	}
	e.meter.update(buffer[:n])
	e.clock += float64(n) / float64(e.sampleRate)
	e.manager.Sweep(e.clock)
	return nil
}

// ReadAudio implements backbeat.AudioSource.
func (e *Engine) ReadAudio(buffer backbeat.AudioBuffer) (int, error) {
	if err := e.Render(buffer); err != nil {
		return 0, err
	}
	return len(buffer), nil
}

// Close releases all voices and shuts the engine down. It is safe to call
// more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.manager.ReleaseAll()
	e.closed = true
	return nil
}

func (e *Engine) ensureScratch(n int) {
	if len(e.mono) >= n {
		return
	}
	e.mono = make([]float32, n)
	e.lfo1Buf = make([]float32, n)
	e.lfo2Buf = make([]float32, n)
	e.shBuf = make([]float32, n)
}

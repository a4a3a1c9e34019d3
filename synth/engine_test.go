package synth

import (
	"math"
	"testing"

	"github.com/mkivist/backbeat"
)

func renderBlocks(t *testing.T, e *Engine, frames int) backbeat.AudioBuffer {
	t.Helper()
	out := make(backbeat.AudioBuffer, 0, frames)
	block := make(backbeat.AudioBuffer, 512)
	for len(out) < frames {
		if err := e.Render(block); err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		out = append(out, block...)
	}
	return out[:frames]
}

func rms(buffer backbeat.AudioBuffer) float64 {
	var sum float64
	for _, frame := range buffer {
		sum += float64(frame[0])*float64(frame[0]) + float64(frame[1])*float64(frame[1])
	}
	return math.Sqrt(sum / float64(len(buffer)*2))
}

func TestEngineSilentByDefault(t *testing.T) {
	e := NewEngine(testSampleRate, 0)
	out := renderBlocks(t, e, 4096)
	if level := rms(out); level > 1e-6 {
		t.Errorf("engine with no notes should be silent, rms = %v", level)
	}
}

func TestNoteOnProducesAudio(t *testing.T) {
	e := NewEngine(testSampleRate, 0)
	if err := e.NoteOn(69, 1); err != nil {
		t.Fatalf("NoteOn failed: %v", err)
	}
	out := renderBlocks(t, e, 4096)
	if level := rms(out); level < 1e-4 {
		t.Errorf("note on should produce audio, rms = %v", level)
	}
	if peak, _ := e.Levels(); peak <= 0 {
		t.Errorf("meter should register the note, peak = %v", peak)
	}
}

func TestNoteOffDecaysToSilence(t *testing.T) {
	e := NewEngine(testSampleRate, 0)
	e.SetParams(backbeat.Params{"release": 0.01, "reverbAmount": 0, "delayAmount": 0})
	e.NoteOn(69, 1)
	renderBlocks(t, e, 4096)
	e.NoteOff(69)
	// skip past the release ramp, then check the tail
	renderBlocks(t, e, 8192)
	tail := renderBlocks(t, e, 4096)
	if level := rms(tail); level > 1e-4 {
		t.Errorf("note should have decayed, rms = %v", level)
	}
	if used, _, _ := e.Usage(); used != 0 {
		t.Errorf("voice should be reclaimed after its release, used = %d", used)
	}
}

func TestOneVoicePerNote(t *testing.T) {
	e := NewEngine(testSampleRate, 0)
	for i := 0; i < 5; i++ {
		e.NoteOn(69, 1)
	}
	renderBlocks(t, e, 4096) // past the retrigger fades
	if used, _, _ := e.Usage(); used != 1 {
		t.Errorf("repeated note-ons should leave one voice, used = %d", used)
	}
}

func TestPolyphonyBound(t *testing.T) {
	e := NewEngine(testSampleRate, 4)
	for i := 0; i < 16; i++ {
		e.NoteOn(byte(40+i), 1)
	}
	if used, max, _ := e.Usage(); used > max {
		t.Errorf("voice count %d exceeds the pool size %d", used, max)
	}
}

func TestSetParamsAffectsNewVoices(t *testing.T) {
	e := NewEngine(testSampleRate, 0)
	e.SetParams(backbeat.Params{"volume": 0})
	e.NoteOn(69, 1)
	out := renderBlocks(t, e, 4096)
	if level := rms(out); level > 1e-6 {
		t.Errorf("zero master volume should mute the engine, rms = %v", level)
	}
}

func TestEngineCloseIdempotent(t *testing.T) {
	e := NewEngine(testSampleRate, 0)
	if err := e.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if err := e.NoteOn(60, 1); err != ErrEngineClosed {
		t.Errorf("NoteOn after Close should fail with ErrEngineClosed, got %v", err)
	}
	if err := e.Render(make(backbeat.AudioBuffer, 64)); err != ErrEngineClosed {
		t.Errorf("Render after Close should fail with ErrEngineClosed, got %v", err)
	}
}

func TestPlayerMessages(t *testing.T) {
	e := NewEngine(testSampleRate, 0)
	p := NewPlayer(e)
	if !p.TrySend(NoteOnMsg{Note: 69, Velocity: 1}) {
		t.Fatalf("send failed on an empty queue")
	}
	buffer := make(backbeat.AudioBuffer, 4096)
	if _, err := p.ReadAudio(buffer); err != nil {
		t.Fatalf("ReadAudio failed: %v", err)
	}
	if used, _, _ := e.Usage(); used != 1 {
		t.Errorf("queued note-on should have started a voice, used = %d", used)
	}
	p.TrySend(PanicMsg{})
	if _, err := p.ReadAudio(buffer); err != nil {
		t.Fatalf("ReadAudio failed: %v", err)
	}
	for _, v := range e.manager.voices {
		if v.State() != VoiceReleasing {
			t.Errorf("panic should release every voice")
		}
	}
}

package synth

import (
	"log"

	"github.com/mkivist/backbeat"
)

const (
	// DefaultMaxVoices bounds the polyphony of an engine.
	DefaultMaxVoices = 20
	// ReleaseFadeTime is the short fade applied when a voice is cut off by
	// stealing or a same-note retrigger, so the cutoff never clicks.
	ReleaseFadeTime = 0.005
	// OrphanVoiceAge is how long a sustaining voice may live before the
	// sweep assumes its note-off was lost and releases it.
	OrphanVoiceAge = 30.0
)

// Manager owns the voice pool. Allocation retriggers before it steals: a note
// already playing is cut and replaced, and when the pool is full the
// least-recently-allocated voice is cut, regardless of where its envelope is.
// Cut voices leave the pool right away and finish their short fade on a
// separate list, so the pool size is an exact bound on sounding notes.
type Manager struct {
	MaxVoices int
	voices    []*Voice
	fading    []*Voice
}

func NewManager(maxVoices int) *Manager {
	if maxVoices <= 0 {
		maxVoices = DefaultMaxVoices
	}
	return &Manager{MaxVoices: maxVoices}
}

// Allocate creates a voice for the note, cutting any voice already on the
// same note and stealing when the pool is full.
func (m *Manager) Allocate(note byte, velocity float32, now float64, sampleRate float32, params backbeat.Params) *Voice {
	m.reap()
	kept := m.voices[:0]
	for _, v := range m.voices {
		if v.Note == note {
			m.cut(v)
			continue
		}
		kept = append(kept, v)
	}
	m.truncate(kept)
	if len(m.voices) >= m.MaxVoices {
		m.steal()
	}
	v := NewVoice(note, velocity, now, sampleRate, params)
	m.voices = append(m.voices, v)
	return v
}

// steal cuts the least-recently-allocated voice. The envelope state of the
// victim does not matter: a long-releasing note never shields itself from
// eviction, so stealing order stays predictable under load.
func (m *Manager) steal() {
	victim := -1
	for i, v := range m.voices {
		if victim < 0 || v.StartTime < m.voices[victim].StartTime {
			victim = i
		}
	}
	if victim < 0 {
		return
	}
	v := m.voices[victim]
	log.Printf("voice pool full, stealing note %d", v.Note)
	m.cut(v)
	m.voices = append(m.voices[:victim], m.voices[victim+1:]...)
}

// cut moves a voice out of the pool onto the fading list.
func (m *Manager) cut(v *Voice) {
	v.ForceRelease(ReleaseFadeTime)
	if !v.Disposed() {
		m.fading = append(m.fading, v)
	}
}

// Release starts the release ramp of every voice playing the note and
// reports whether any voice was affected.
func (m *Manager) Release(note byte) bool {
	released := false
	for _, v := range m.voices {
		if v.Note == note && v.State() != VoiceReleasing {
			v.Release()
			released = true
		}
	}
	return released
}

// ReleaseAll releases every voice in the pool.
func (m *Manager) ReleaseAll() {
	for _, v := range m.voices {
		v.Release()
	}
}

// Sweep releases voices that have sustained past OrphanVoiceAge; these are
// notes whose note-off was lost. now is the engine clock in seconds.
func (m *Manager) Sweep(now float64) {
	for _, v := range m.voices {
		if v.State() != VoiceReleasing && !v.Disposed() && now-v.StartTime > OrphanVoiceAge {
			log.Printf("releasing orphaned voice for note %d", v.Note)
			v.Release()
		}
	}
}

// Usage returns the current and maximum pool sizes along with the pool
// utilization as a percentage. Voices fading out after a cut no longer count.
func (m *Manager) Usage() (used, max int, percent float64) {
	for _, v := range m.voices {
		if !v.Disposed() {
			used++
		}
	}
	if m.MaxVoices > 0 {
		percent = 100 * float64(used) / float64(m.MaxVoices)
	}
	return used, m.MaxVoices, percent
}

// reap drops disposed voices.
func (m *Manager) reap() {
	kept := m.voices[:0]
	for _, v := range m.voices {
		if !v.Disposed() {
			kept = append(kept, v)
		}
	}
	m.truncate(kept)
	keptFading := m.fading[:0]
	for _, v := range m.fading {
		if !v.Disposed() {
			keptFading = append(keptFading, v)
		}
	}
	for i := len(keptFading); i < len(m.fading); i++ {
		m.fading[i] = nil
	}
	m.fading = keptFading
}

func (m *Manager) truncate(kept []*Voice) {
	for i := len(kept); i < len(m.voices); i++ {
		m.voices[i] = nil
	}
	m.voices = kept
}

func (m *Manager) renderBlock(out []float32, mod modBlock) {
	for _, v := range m.voices {
		v.renderBlock(out, mod)
	}
	for _, v := range m.fading {
		v.renderBlock(out, mod)
	}
	m.reap()
}

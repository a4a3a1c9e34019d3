package backbeat

import (
	"math"
	"sort"
)

type (
	// Tempo is the timing context notes are resolved against. BPM converts
	// beat fields to seconds and TicksPerQuarter converts tick fields to
	// beats.
	Tempo struct {
		BPM             float64 `yaml:"bpm"`
		TicksPerQuarter float64 `yaml:"ticksPerQuarter,omitempty"`
	}

	// RawNote is one note as it appears inside a container, before
	// normalization. Tracks coming from different tools encode time in beats,
	// ticks or seconds and pitch as a MIDI number, a note name or a direct
	// frequency; a RawNote carries whichever fields the source had. Absent
	// fields are nil, so zero values and missing values stay distinct.
	RawNote struct {
		Beat     *float64 `yaml:"beat,omitempty"`
		Tick     *float64 `yaml:"tick,omitempty"`
		Sec      *float64 `yaml:"sec,omitempty"`
		DurBeats *float64 `yaml:"durationBeats,omitempty"`
		DurTicks *float64 `yaml:"durationTicks,omitempty"`
		DurSec   *float64 `yaml:"durationSec,omitempty"`
		Midi     *float64 `yaml:"note,omitempty"`
		Name     string   `yaml:"name,omitempty"`
		Freq     *float64 `yaml:"freq,omitempty"`
		Velocity *float64 `yaml:"velocity,omitempty"`
	}

	// NoteList is the simplest container: a flat list of notes with absolute
	// positions.
	NoteList []RawNote

	// ClipNotes is a container of notes positioned relative to an owning
	// clip: every resolved time gets the clip's timeline start added.
	ClipNotes struct {
		ClipStart float64   `yaml:"clipStart"`
		Notes     []RawNote `yaml:"notes"`
	}

	// NoteEvent is one entry of an EventStream: a bare note-on or note-off.
	NoteEvent struct {
		On       bool     `yaml:"on"`
		Beat     *float64 `yaml:"beat,omitempty"`
		Tick     *float64 `yaml:"tick,omitempty"`
		Sec      *float64 `yaml:"sec,omitempty"`
		Midi     *float64 `yaml:"note,omitempty"`
		Name     string   `yaml:"name,omitempty"`
		Freq     *float64 `yaml:"freq,omitempty"`
		Velocity *float64 `yaml:"velocity,omitempty"`
	}

	// EventStream is a container of paired note-on/note-off events, the way
	// live recordings come in. A note-on opens a pending note keyed by pitch
	// and the matching note-off closes it; whatever is still pending when the
	// stream ends is closed with HangingNoteDuration rather than dropped, as
	// a lost note-off is a recoverable defect, not an error.
	EventStream []NoteEvent

	// StepRow is one row of a step-sequencer grid: a pitch and which steps of
	// the grid trigger it.
	StepRow struct {
		Midi     *float64 `yaml:"note,omitempty"`
		Name     string   `yaml:"name,omitempty"`
		Freq     *float64 `yaml:"freq,omitempty"`
		Velocity *float64 `yaml:"velocity,omitempty"`
		Steps    []bool   `yaml:"steps,flow"`
	}

	// StepGrid is a step-sequencer container. Each active step triggers its
	// row's pitch for exactly one step length.
	StepGrid struct {
		StepsPerBeat float64   `yaml:"stepsPerBeat"`
		Rows         []StepRow `yaml:"rows"`
	}

	// PatternArrangement is a tracker-style container: an order list indexing
	// into patterns of note bytes, where 0 releases the playing note, 1 holds
	// it and anything above is a MIDI note number triggering at that row.
	PatternArrangement struct {
		RowsPerBeat int     `yaml:"rowsPerBeat"`
		Order       []int   `yaml:"order,flow"`
		Patterns    [][]byte `yaml:"patterns,flow"`
	}
)

// HangingNoteDuration is the duration given to a note whose note-off never
// arrived by the end of its event stream.
const HangingNoteDuration = 0.25

const defaultTicksPerQuarter = 480

func (t Tempo) secondsPerBeat() float64 {
	if t.BPM <= 0 || math.IsNaN(t.BPM) || math.IsInf(t.BPM, 0) {
		return 60.0 / 120
	}
	return 60.0 / t.BPM
}

func (t Tempo) ticksPerQuarter() float64 {
	if t.TicksPerQuarter <= 0 {
		return defaultTicksPerQuarter
	}
	return t.TicksPerQuarter
}

// resolveTime converts a (beat, tick, sec) triple to seconds using the strict
// priority beats > ticks > seconds. Non-finite or absent values resolve to 0.
func (t Tempo) resolveTime(beat, tick, sec *float64) float64 {
	if v, ok := finite(beat); ok {
		return v * t.secondsPerBeat()
	}
	if v, ok := finite(tick); ok {
		return v / t.ticksPerQuarter() * t.secondsPerBeat()
	}
	if v, ok := finite(sec); ok {
		return v
	}
	return 0
}

func finite(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

// resolvePitch converts a (midi, name, freq) triple to a frequency in Hz
// using the priority MIDI number > note name > direct frequency. The second
// return value is false when nothing resolves; such entries are dropped.
func resolvePitch(midi *float64, name string, freq *float64) (float64, bool) {
	if v, ok := finite(midi); ok && v >= 0 && v <= 127 {
		return NoteToFreq(v), true
	}
	if name != "" {
		if n, err := ParseNoteName(name); err == nil {
			return NoteToFreq(float64(n)), true
		}
	}
	if v, ok := finite(freq); ok && v > 0 {
		return v, true
	}
	return 0, false
}

// resolveVelocity normalizes a velocity field: values above 1 are taken to be
// MIDI 0..127 and scaled down; absent values default to full velocity.
func resolveVelocity(v *float64) float64 {
	value, ok := finite(v)
	if !ok {
		return 1
	}
	if value > 1 {
		value /= 127
	}
	return clampVelocity(value)
}

func (n RawNote) resolve(tempo Tempo, offset float64) (Note, bool) {
	freq, ok := resolvePitch(n.Midi, n.Name, n.Freq)
	if !ok {
		return Note{}, false
	}
	note := Note{
		Time:     tempo.resolveTime(n.Beat, n.Tick, n.Sec) + offset,
		Duration: tempo.resolveTime(n.DurBeats, n.DurTicks, n.DurSec),
		Velocity: resolveVelocity(n.Velocity),
		Freq:     freq,
	}
	return note, note.valid()
}

// Resolve normalizes a direct note list.
func (l NoteList) Resolve(tempo Tempo) []Note {
	out := make([]Note, 0, len(l))
	for _, raw := range l {
		if n, ok := raw.resolve(tempo, 0); ok {
			out = append(out, n)
		}
	}
	return out
}

// Resolve normalizes clip-relative notes by adding the owning clip's start.
func (c ClipNotes) Resolve(tempo Tempo) []Note {
	out := make([]Note, 0, len(c.Notes))
	for _, raw := range c.Notes {
		if n, ok := raw.resolve(tempo, c.ClipStart); ok {
			out = append(out, n)
		}
	}
	return out
}

// Resolve pairs note-ons with note-offs into finished notes. Pitch keys are
// rounded to a decihertz so slightly different encodings of the same pitch
// still pair up.
func (s EventStream) Resolve(tempo Tempo) []Note {
	type pending struct {
		time     float64
		velocity float64
		freq     float64
	}
	open := make(map[int64]pending)
	var out []Note
	for _, ev := range s {
		freq, ok := resolvePitch(ev.Midi, ev.Name, ev.Freq)
		if !ok {
			continue
		}
		t := tempo.resolveTime(ev.Beat, ev.Tick, ev.Sec)
		key := int64(math.Round(freq * 10))
		if ev.On {
			open[key] = pending{time: t, velocity: resolveVelocity(ev.Velocity), freq: freq}
			continue
		}
		p, found := open[key]
		if !found {
			continue // note-off without a note-on; ignore
		}
		delete(open, key)
		n := Note{Time: p.time, Duration: t - p.time, Velocity: p.velocity, Freq: p.freq}
		if n.valid() {
			out = append(out, n)
		}
	}
	for _, p := range open {
		n := Note{Time: p.time, Duration: HangingNoteDuration, Velocity: p.velocity, Freq: p.freq}
		if n.valid() {
			out = append(out, n)
		}
	}
	return out
}

// Resolve expands a step grid: every active step triggers its row for one
// step length.
func (g StepGrid) Resolve(tempo Tempo) []Note {
	steps := g.StepsPerBeat
	if steps <= 0 || math.IsNaN(steps) || math.IsInf(steps, 0) {
		steps = 4
	}
	stepLen := tempo.secondsPerBeat() / steps
	var out []Note
	for _, row := range g.Rows {
		freq, ok := resolvePitch(row.Midi, row.Name, row.Freq)
		if !ok {
			continue
		}
		velocity := resolveVelocity(row.Velocity)
		for i, on := range row.Steps {
			if !on {
				continue
			}
			n := Note{Time: float64(i) * stepLen, Duration: stepLen, Velocity: velocity, Freq: freq}
			if n.valid() {
				out = append(out, n)
			}
		}
	}
	return out
}

// Resolve flattens a tracker-style pattern arrangement: it walks the order
// list row by row, starting a note on any byte above 1 and ending the playing
// note on 0 or when the next note starts. Rows past the end of a pattern hold.
func (a PatternArrangement) Resolve(tempo Tempo) []Note {
	rowsPerBeat := a.RowsPerBeat
	if rowsPerBeat <= 0 {
		rowsPerBeat = 4
	}
	rowLen := tempo.secondsPerBeat() / float64(rowsPerBeat)
	patternRows := 0
	for _, p := range a.Patterns {
		if len(p) > patternRows {
			patternRows = len(p)
		}
	}
	var out []Note
	var current *Note
	row := 0
	endCurrent := func(t float64) {
		if current != nil {
			current.Duration = t - current.Time
			if current.valid() {
				out = append(out, *current)
			}
			current = nil
		}
	}
	for _, patternIndex := range a.Order {
		for patternRow := 0; patternRow < patternRows; patternRow++ {
			var note byte = 1 // out of range holds, like a too short track
			if patternIndex >= 0 && patternIndex < len(a.Patterns) {
				if p := a.Patterns[patternIndex]; patternRow < len(p) {
					note = p[patternRow]
				}
			}
			t := float64(row) * rowLen
			switch {
			case note == 0:
				endCurrent(t)
			case note > 1:
				endCurrent(t)
				current = &Note{Time: t, Velocity: 1, Freq: NoteToFreq(float64(note))}
			}
			row++
		}
	}
	endCurrent(float64(row) * rowLen)
	return out
}

// ResolveNotes normalizes every note container on the track into one
// deduplicated, time-ordered list of canonical notes. Unknown containers in
// the underlying data simply do not deserialize into any of the variants and
// are thereby ignored, so the resolver degrades gracefully as track schemas
// evolve.
func (t *Track) ResolveNotes(tempo Tempo) []Note {
	var all []Note
	all = append(all, t.Notes.Resolve(tempo)...)
	for _, c := range t.ClipNotes {
		all = append(all, c.Resolve(tempo)...)
	}
	all = append(all, t.Events.Resolve(tempo)...)
	if t.Grid != nil {
		all = append(all, t.Grid.Resolve(tempo)...)
	}
	if t.Arrangement != nil {
		all = append(all, t.Arrangement.Resolve(tempo)...)
	}
	seen := make(map[noteKey]bool, len(all))
	out := make([]Note, 0, len(all))
	for _, n := range all {
		k := n.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].Freq < out[j].Freq
	})
	return out
}

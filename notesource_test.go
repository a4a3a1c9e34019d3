package backbeat_test

import (
	"math"
	"reflect"
	"testing"

	"github.com/mkivist/backbeat"
)

func f(v float64) *float64 { return &v }

var tempo120 = backbeat.Tempo{BPM: 120}

func closeEnough(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEventStreamResolve(t *testing.T) {
	track := backbeat.Track{Events: backbeat.EventStream{
		{On: true, Sec: f(0), Midi: f(69)},
		{On: false, Sec: f(0.5), Midi: f(69)},
	}}
	notes := track.ResolveNotes(tempo120)
	if len(notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(notes))
	}
	n := notes[0]
	if !closeEnough(n.Time, 0) || !closeEnough(n.Duration, 0.5) || !closeEnough(n.Freq, 440) {
		t.Errorf("resolved note wrong: %+v", n)
	}
}

func TestEventStreamHangingNote(t *testing.T) {
	events := backbeat.EventStream{
		{On: true, Sec: f(1), Midi: f(60)},
	}
	notes := events.Resolve(tempo120)
	if len(notes) != 1 {
		t.Fatalf("hanging note should be recovered, got %d notes", len(notes))
	}
	if !closeEnough(notes[0].Duration, backbeat.HangingNoteDuration) {
		t.Errorf("hanging note duration %v, want %v", notes[0].Duration, backbeat.HangingNoteDuration)
	}
}

func TestEventStreamStrayNoteOff(t *testing.T) {
	events := backbeat.EventStream{
		{On: false, Sec: f(0.5), Midi: f(69)},
	}
	if notes := events.Resolve(tempo120); len(notes) != 0 {
		t.Errorf("note-off without note-on should resolve to nothing, got %+v", notes)
	}
}

func TestTimeEncodingPriority(t *testing.T) {
	// beats win over ticks win over seconds
	tempo := backbeat.Tempo{BPM: 120, TicksPerQuarter: 480}
	for _, tc := range []struct {
		name string
		raw  backbeat.RawNote
		want float64
	}{
		{"beats", backbeat.RawNote{Beat: f(2), Tick: f(9999), Sec: f(9999), Midi: f(60), DurSec: f(0.1)}, 1.0},
		{"ticks", backbeat.RawNote{Tick: f(960), Sec: f(9999), Midi: f(60), DurSec: f(0.1)}, 1.0},
		{"seconds", backbeat.RawNote{Sec: f(1.5), Midi: f(60), DurSec: f(0.1)}, 1.5},
	} {
		notes := backbeat.NoteList{tc.raw}.Resolve(tempo)
		if len(notes) != 1 {
			t.Fatalf("%v: expected 1 note", tc.name)
		}
		if !closeEnough(notes[0].Time, tc.want) {
			t.Errorf("%v: time %v, want %v", tc.name, notes[0].Time, tc.want)
		}
	}
}

func TestPitchEncodingPriority(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  backbeat.RawNote
		want float64
	}{
		{"midi", backbeat.RawNote{Sec: f(0), DurSec: f(1), Midi: f(69), Name: "C2", Freq: f(111)}, 440},
		{"name", backbeat.RawNote{Sec: f(0), DurSec: f(1), Name: "A4", Freq: f(111)}, 440},
		{"freq", backbeat.RawNote{Sec: f(0), DurSec: f(1), Freq: f(432)}, 432},
	} {
		notes := backbeat.NoteList{tc.raw}.Resolve(tempo120)
		if len(notes) != 1 {
			t.Fatalf("%v: expected 1 note", tc.name)
		}
		if !closeEnough(notes[0].Freq, tc.want) {
			t.Errorf("%v: freq %v, want %v", tc.name, notes[0].Freq, tc.want)
		}
	}
}

func TestVelocityScaling(t *testing.T) {
	notes := backbeat.NoteList{
		{Sec: f(0), DurSec: f(1), Midi: f(60), Velocity: f(100)},
		{Sec: f(1), DurSec: f(1), Midi: f(60), Velocity: f(0.5)},
		{Sec: f(2), DurSec: f(1), Midi: f(60)},
	}.Resolve(tempo120)
	if len(notes) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(notes))
	}
	if !closeEnough(notes[0].Velocity, 100.0/127) {
		t.Errorf("midi velocity not scaled: %v", notes[0].Velocity)
	}
	if !closeEnough(notes[1].Velocity, 0.5) {
		t.Errorf("unit velocity changed: %v", notes[1].Velocity)
	}
	if !closeEnough(notes[2].Velocity, 1) {
		t.Errorf("absent velocity should default to full: %v", notes[2].Velocity)
	}
}

func TestClipNotesOffset(t *testing.T) {
	c := backbeat.ClipNotes{ClipStart: 2, Notes: []backbeat.RawNote{
		{Beat: f(1), DurBeats: f(1), Midi: f(60)},
	}}
	notes := c.Resolve(tempo120)
	if len(notes) != 1 || !closeEnough(notes[0].Time, 2.5) {
		t.Errorf("clip-relative note should land at 2.5, got %+v", notes)
	}
}

func TestStepGridResolve(t *testing.T) {
	g := backbeat.StepGrid{StepsPerBeat: 4, Rows: []backbeat.StepRow{
		{Midi: f(60), Steps: []bool{true, false, false, true}},
	}}
	notes := g.Resolve(tempo120)
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(notes))
	}
	stepLen := 0.5 / 4
	if !closeEnough(notes[0].Time, 0) || !closeEnough(notes[0].Duration, stepLen) {
		t.Errorf("first step wrong: %+v", notes[0])
	}
	if !closeEnough(notes[1].Time, 3*stepLen) {
		t.Errorf("fourth step wrong: %+v", notes[1])
	}
}

func TestPatternArrangementResolve(t *testing.T) {
	a := backbeat.PatternArrangement{
		RowsPerBeat: 4,
		Order:       []int{0, 0},
		Patterns:    [][]byte{{69, 1, 0, 72}},
	}
	notes := a.Resolve(tempo120)
	if len(notes) != 4 {
		t.Fatalf("expected 4 notes, got %d", len(notes))
	}
	rowLen := 0.5 / 4
	// first note held over the hold row, released at row 2
	if !closeEnough(notes[0].Time, 0) || !closeEnough(notes[0].Duration, 2*rowLen) {
		t.Errorf("held note wrong: %+v", notes[0])
	}
	if !closeEnough(notes[0].Freq, 440) {
		t.Errorf("pattern byte 69 should be A4: %v", notes[0].Freq)
	}
	// trigger at row 3 ends when the next pattern retriggers at row 4
	if !closeEnough(notes[1].Time, 3*rowLen) || !closeEnough(notes[1].Duration, rowLen) {
		t.Errorf("second note wrong: %+v", notes[1])
	}
}

func TestResolveNotesDedupAndOrder(t *testing.T) {
	track := backbeat.Track{
		Notes: backbeat.NoteList{
			{Sec: f(1), DurSec: f(0.5), Midi: f(69)},
		},
		Events: backbeat.EventStream{
			{On: true, Sec: f(1), Midi: f(69)},
			{On: false, Sec: f(1.5), Midi: f(69)},
			{On: true, Sec: f(0), Midi: f(60)},
			{On: false, Sec: f(0.5), Midi: f(60)},
		},
	}
	notes := track.ResolveNotes(tempo120)
	if len(notes) != 2 {
		t.Fatalf("identical notes from two containers should dedup, got %d", len(notes))
	}
	if notes[0].Time > notes[1].Time {
		t.Errorf("notes should be time ordered: %+v", notes)
	}
}

func TestResolveNotesIdempotent(t *testing.T) {
	track := backbeat.Track{
		Notes: backbeat.NoteList{
			{Beat: f(0), DurBeats: f(1), Midi: f(60)},
			{Beat: f(1), DurBeats: f(1), Name: "E4"},
		},
	}
	first := track.ResolveNotes(tempo120)
	second := track.ResolveNotes(tempo120)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("resolving twice should give the same result")
	}
}

// Resolved notes written back in seconds-and-hertz form must resolve to the
// same notes again, so a project can be round-tripped through its canonical
// representation without drift.
func TestResolveNotesCanonicalRoundTrip(t *testing.T) {
	track := backbeat.Track{
		Notes: backbeat.NoteList{
			{Beat: f(0), DurBeats: f(1), Midi: f(60), Velocity: f(100)},
			{Beat: f(1), DurBeats: f(0.5), Name: "E4"},
		},
		ClipNotes: []backbeat.ClipNotes{
			{ClipStart: 2, Notes: backbeat.NoteList{
				{Sec: f(0.25), DurSec: f(0.25), Freq: f(330), Velocity: f(0.5)},
			}},
		},
		Events: backbeat.EventStream{
			{On: true, Sec: f(4), Midi: f(69), Velocity: f(0.8)},
			{On: false, Sec: f(4.5), Midi: f(69)},
		},
	}
	first := track.ResolveNotes(tempo120)
	if len(first) != 4 {
		t.Fatalf("expected 4 notes, got %d", len(first))
	}
	canonical := make(backbeat.NoteList, len(first))
	for i, n := range first {
		canonical[i] = backbeat.RawNote{
			Sec: f(n.Time), DurSec: f(n.Duration),
			Freq: f(n.Freq), Velocity: f(n.Velocity),
		}
	}
	canonicalTrack := backbeat.Track{Notes: canonical}
	second := canonicalTrack.ResolveNotes(tempo120)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("canonical round trip drifted:\n first: %+v\nsecond: %+v", first, second)
	}
}

func TestInvalidNotesDropped(t *testing.T) {
	notes := backbeat.NoteList{
		{Sec: f(0), DurSec: f(1)},                      // no pitch at all
		{Sec: f(0), DurSec: f(-1), Midi: f(60)},        // negative duration
		{Sec: f(math.NaN()), DurSec: f(1), Midi: f(60)}, // NaN time falls back to 0, kept
	}.Resolve(tempo120)
	if len(notes) != 1 {
		t.Errorf("expected the NaN-time note only, got %+v", notes)
	}
}

func TestParseNoteName(t *testing.T) {
	for _, tc := range []struct {
		name string
		want int
	}{
		{"A4", 69},
		{"C4", 60},
		{"C#3", 49},
		{"Eb5", 75},
	} {
		got, err := backbeat.ParseNoteName(tc.name)
		if err != nil {
			t.Errorf("ParseNoteName(%q) failed: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseNoteName(%q) = %d, want %d", tc.name, got, tc.want)
		}
	}
	if _, err := backbeat.ParseNoteName("H9x"); err == nil {
		t.Errorf("garbage note name should fail")
	}
}

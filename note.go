package backbeat

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type (
	// Note is a note event normalized to absolute time: Time and Duration in
	// seconds, Velocity in 0..1 and Freq in Hz. All the different note
	// containers a track may carry resolve into these; see NoteSource.
	Note struct {
		Time     float64 `yaml:"time"`
		Duration float64 `yaml:"duration"`
		Velocity float64 `yaml:"velocity"`
		Freq     float64 `yaml:"freq"`
	}

	// noteKey is the deduplication key of a note: two notes appearing in more
	// than one container on a track count as one if they agree on time and
	// duration to a millisecond and on frequency to a decihertz.
	noteKey struct {
		timeMs     int64
		durationMs int64
		freqDeciHz int64
	}
)

// NoteToFreq converts a MIDI note number to its frequency in Hz, with A4
// (note 69) at 440 Hz.
func NoteToFreq(note float64) float64 {
	return 440 * math.Exp2((note-69)/12)
}

var noteNameOffsets = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// ParseNoteName converts a note name such as "A4", "C#3" or "Eb5" to a MIDI
// note number.
func ParseNoteName(name string) (int, error) {
	s := strings.TrimSpace(name)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid note name %q", name)
	}
	semitone, ok := noteNameOffsets[s[0]&0xDF]
	if !ok {
		return 0, fmt.Errorf("invalid note name %q", name)
	}
	rest := s[1:]
	for len(rest) > 0 {
		if rest[0] == '#' {
			semitone++
		} else if rest[0] == 'b' {
			semitone--
		} else {
			break
		}
		rest = rest[1:]
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid note name %q: %w", name, err)
	}
	return (octave+1)*12 + semitone, nil
}

func (n Note) key() noteKey {
	return noteKey{
		timeMs:     int64(math.Round(n.Time * 1000)),
		durationMs: int64(math.Round(n.Duration * 1000)),
		freqDeciHz: int64(math.Round(n.Freq * 10)),
	}
}

// End returns the time the note stops sounding, ignoring any release tail.
func (n Note) End() float64 { return n.Time + n.Duration }

// valid reports whether the note is something that can actually sound.
// Defective notes are dropped by the resolver instead of erroring.
func (n Note) valid() bool {
	return n.Time >= 0 && n.Duration > 0 && n.Freq > 0 &&
		!math.IsNaN(n.Time) && !math.IsInf(n.Time, 0) &&
		!math.IsNaN(n.Duration) && !math.IsInf(n.Duration, 0)
}

func clampVelocity(v float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

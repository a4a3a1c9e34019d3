package backbeat

import (
	"math"
	"sync/atomic"
)

type (
	// Clip is a piece of source material placed on the timeline of an audio
	// track. Start and Duration are timeline seconds; Offset is the read
	// position within the source material, so the clip plays
	// src[Offset : Offset+Duration]. A valid clip has Offset >= 0 and
	// Duration <= sourceDuration - Offset.
	Clip struct {
		ID       int64   `yaml:"id"`
		Start    float64 `yaml:"start"`
		Duration float64 `yaml:"duration"`
		Offset   float64 `yaml:"offset"`
		Src      string  `yaml:"src"`
		Gain     float64 `yaml:"gain,omitempty"`
		Color    string  `yaml:"color,omitempty"`
	}

	// CrossfadeInfo describes an equal-power fade between the tail of one clip
	// and the head of the next. The clip algebra only computes the metadata;
	// actually mixing the fade is the renderer's job.
	CrossfadeInfo struct {
		OutClip  int64
		InClip   int64
		Start    float64
		Duration float64
	}
)

// DefaultCrossfadeTime is the fade length used at clip boundaries when the
// caller does not give one. The few-millisecond default comes from how long a
// fade needs to be to mask a discontinuity click without being audible as a
// fade itself; override it per call if a project needs longer fades.
const DefaultCrossfadeTime = 0.005

var clipIDCounter atomic.Int64

// NewClipID returns a process-unique clip id, used by operations that create
// new clips (Duplicate, Split).
func NewClipID() int64 { return clipIDCounter.Add(1) }

// End returns the timeline position where the clip stops playing.
func (c Clip) End() float64 { return c.Start + c.Duration }

// Split cuts a clip in two at timeline position t. If t is outside
// [Start, End) the clip is returned unchanged; otherwise the result is the
// left and right halves, with the right half getting a new id and its Offset
// advanced so the source material is not repeated: re-joining the halves
// reconstructs the original exactly.
func Split(c Clip, t float64) []Clip {
	if t <= c.Start || t >= c.End() {
		return []Clip{c}
	}
	left := c
	left.Duration = t - c.Start
	right := c
	right.ID = NewClipID()
	right.Start = t
	right.Offset += t - c.Start
	right.Duration = c.End() - t
	return []Clip{left, right}
}

// Trim intersects the clip with the timeline window [t0, t1). The second
// return value is false if the intersection is empty. Offset is advanced by
// however much was cut from the left edge.
func Trim(c Clip, t0, t1 float64) (Clip, bool) {
	start := math.Max(c.Start, t0)
	end := math.Min(c.End(), t1)
	if end <= start {
		return Clip{}, false
	}
	out := c
	out.Offset += start - c.Start
	out.Start = start
	out.Duration = end - start
	return out, true
}

// RippleDelete removes the timeline span [t0, t1) and closes the gap: clips
// fully before t0 are kept as is, clips fully after t1 are shifted left by
// t1-t0, and clips overlapping the span are cut at the boundaries with the
// middle discarded. A non-positive span is a no-op.
func RippleDelete(clips []Clip, t0, t1 float64) []Clip {
	if t1 <= t0 {
		out := make([]Clip, len(clips))
		copy(out, clips)
		return out
	}
	shift := t1 - t0
	out := make([]Clip, 0, len(clips))
	for _, c := range clips {
		if left, ok := Trim(c, math.Inf(-1), t0); ok {
			out = append(out, left)
		}
		if right, ok := Trim(c, t1, math.Inf(1)); ok {
			right.Start -= shift
			out = append(out, right)
		}
	}
	return out
}

// Quantize rounds every clip start to the nearest multiple of grid. Exact
// midpoints round down, towards the earlier grid line. grid <= 0 is a no-op.
func Quantize(clips []Clip, grid float64) []Clip {
	out := make([]Clip, len(clips))
	copy(out, clips)
	if grid <= 0 {
		return out
	}
	for i := range out {
		steps := math.Ceil(out[i].Start/grid - 0.5)
		out[i].Start = steps * grid
	}
	return out
}

// Duplicate clones every clip with a fresh id, shifting the copies by dt on
// the timeline. The originals are not included in the result.
func Duplicate(clips []Clip, dt float64) []Clip {
	out := make([]Clip, len(clips))
	for i, c := range clips {
		c.ID = NewClipID()
		c.Start += dt
		out[i] = c
	}
	return out
}

// MergeOverlapping joins adjacent clips that play contiguous material from the
// same source: the first clip's Offset+Duration must meet the next clip's
// Offset where they touch on the timeline. Gains of merged clips are averaged.
// Clips must be sorted by Start.
func MergeOverlapping(clips []Clip) []Clip {
	out := make([]Clip, 0, len(clips))
	for _, c := range clips {
		if len(out) > 0 {
			prev := &out[len(out)-1]
			if prev.Src == c.Src && prev.End() >= c.Start &&
				nearlyEqual(prev.Offset+(c.Start-prev.Start), c.Offset) {
				prev.Duration = c.End() - prev.Start
				prev.Gain = (gainOrUnity(*prev) + gainOrUnity(c)) / 2
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// Crossfade computes the fade metadata between clip a and the following clip
// b. It returns nil when the gap between a's end and b's start is longer than
// fadeTime, as there is nothing contiguous to fade between.
func Crossfade(a, b Clip, fadeTime float64) *CrossfadeInfo {
	if fadeTime <= 0 {
		fadeTime = DefaultCrossfadeTime
	}
	gap := b.Start - a.End()
	if gap > fadeTime {
		return nil
	}
	start := math.Max(a.End()-fadeTime, b.Start)
	end := math.Min(a.End(), b.Start+fadeTime)
	if end < start {
		start, end = b.Start, a.End()
	}
	return &CrossfadeInfo{
		OutClip:  a.ID,
		InClip:   b.ID,
		Start:    start,
		Duration: math.Max(end-start, 0),
	}
}

// TotalExtent returns the sum of the durations of all clips, i.e. the total
// occupied timeline assuming no overlaps.
func TotalExtent(clips []Clip) float64 {
	var total float64
	for _, c := range clips {
		total += c.Duration
	}
	return total
}

func gainOrUnity(c Clip) float64 {
	if c.Gain == 0 {
		return 1
	}
	return c.Gain
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// Package render mixes a project down to a single audio buffer. The mixdown
// is offline and deterministic: the same project and source material always
// produce byte-identical output.
package render

import (
	"errors"
	"log"
	"math"

	"github.com/viterin/vek/vek32"

	"github.com/mkivist/backbeat"
)

const (
	// DefaultSampleRate is used when neither the caller nor the source
	// material asks for more.
	DefaultSampleRate = 44100
	// MasterHeadroom is the gain applied before the master soft clipper,
	// leaving a little room so the knee only engages on real overshoots.
	MasterHeadroom = 0.89
	// ClipDeclickTime is the Hann-edge fade applied to the head and tail of
	// every scheduled clip.
	ClipDeclickTime = 0.003
)

var (
	// ErrNothingToRender means no track passed the mute/solo/content filter.
	ErrNothingToRender = errors.New("nothing to render")
	// ErrZeroDuration means the included tracks have no timeline extent.
	ErrZeroDuration = errors.New("project has zero duration")
)

// Renderer mixes projects down offline. Decode is the host's decoding
// primitive and is called once per distinct clip source; SampleRate is a
// minimum for the output rate (the decoded material can push it higher);
// Progress, when set, is called with a stage name and a 0..1 fraction.
type Renderer struct {
	Decode     backbeat.DecodeFunc
	SampleRate int
	Progress   func(stage string, frac float64)
}

// Render mixes the project down. Tracks are filtered by the mute and solo
// rules, every distinct clip source is decoded once, and the output length is
// the furthest clip or note end among the included tracks.
func (r *Renderer) Render(project *backbeat.Project) (*backbeat.Buffer, error) {
	anySolo := backbeat.AnySolo(project.Tracks)
	var included []*backbeat.Track
	for i := range project.Tracks {
		if project.Tracks[i].Included(anySolo) {
			included = append(included, &project.Tracks[i])
		}
	}
	if len(included) == 0 {
		return nil, ErrNothingToRender
	}

	cache := r.decodeSources(included)

	var duration float64
	for _, t := range included {
		if e := t.AudioEnd(); e > duration {
			duration = e
		}
		if e := t.NoteEnd(project.Tempo); e > 0 && e+toneTail > duration {
			duration = e + toneTail
		}
	}
	if duration <= 0 {
		return nil, ErrZeroDuration
	}

	rate := DefaultSampleRate
	if r.SampleRate > rate {
		rate = r.SampleRate
	}
	for _, b := range cache {
		if b != nil && b.SampleRate > rate {
			rate = b.SampleRate
		}
	}

	total := int(math.Ceil(duration * float64(rate)))
	masterL := make([]float32, total)
	masterR := make([]float32, total)
	trackL := make([]float32, total)
	trackR := make([]float32, total)

	for ti, t := range included {
		for i := range trackL {
			trackL[i] = 0
			trackR[i] = 0
		}
		for _, c := range t.Clips {
			renderClip(trackL, trackR, c, cache[c.Src], rate)
		}
		for _, n := range t.ResolveNotes(project.Tempo) {
			renderTone(trackL, trackR, n, rate)
		}
		gl, gr := panGains(t.Pan)
		volume := float32(t.VolumeOrUnity())
		vek32.MulNumber_Inplace(trackL, volume*gl)
		vek32.MulNumber_Inplace(trackR, volume*gr)
		vek32.Add_Inplace(masterL, trackL)
		vek32.Add_Inplace(masterR, trackR)
		r.progress("mix", float64(ti+1)/float64(len(included)))
	}

	vek32.MulNumber_Inplace(masterL, MasterHeadroom)
	vek32.MulNumber_Inplace(masterR, MasterHeadroom)
	data := make(backbeat.AudioBuffer, total)
	for i := range data {
		data[i][0] = softClip(masterL[i])
		data[i][1] = softClip(masterR[i])
	}
	r.progress("master", 1)
	return &backbeat.Buffer{SampleRate: rate, Data: data}, nil
}

// decodeSources decodes every distinct clip source among the tracks, in first
// appearance order. A failed decode is logged and its clips skipped.
func (r *Renderer) decodeSources(tracks []*backbeat.Track) map[string]*backbeat.Buffer {
	var srcs []string
	cache := make(map[string]*backbeat.Buffer)
	for _, t := range tracks {
		for _, c := range t.Clips {
			if _, seen := cache[c.Src]; !seen {
				cache[c.Src] = nil
				srcs = append(srcs, c.Src)
			}
		}
	}
	for i, src := range srcs {
		if r.Decode == nil {
			log.Printf("no decoder, skipping clip source %q", src)
			continue
		}
		buf, err := r.Decode(src)
		if err != nil {
			log.Printf("decoding %q failed, skipping its clips: %v", src, err)
			continue
		}
		cache[src] = buf
		r.progress("decode", float64(i+1)/float64(len(srcs)))
	}
	return cache
}

// renderClip adds the clip's slice of its source into the track bus, sample
// exact from Offset, clamped to the material actually present, resampled by
// linear interpolation when the source rate differs, with Hann edges.
func renderClip(left, right []float32, c backbeat.Clip, src *backbeat.Buffer, rate int) {
	if src == nil || src.SampleRate <= 0 || len(src.Data) == 0 {
		return
	}
	playDur := c.Duration
	if avail := src.Duration() - c.Offset; avail < playDur {
		playDur = avail
	}
	if playDur <= 0 {
		return
	}
	n := int(playDur * float64(rate))
	start := int(math.Round(c.Start * float64(rate)))
	srcStart := c.Offset * float64(src.SampleRate)
	ratio := float64(src.SampleRate) / float64(rate)
	gain := float32(c.Gain)
	if gain == 0 {
		gain = 1
	}
	fadeN := int(ClipDeclickTime * float64(rate))
	if fadeN > n/2 {
		fadeN = n / 2
	}
	for i := 0; i < n; i++ {
		pos := start + i
		if pos < 0 {
			continue
		}
		if pos >= len(left) {
			break
		}
		g := gain
		if i < fadeN {
			g *= hann(float64(i) / float64(fadeN))
		} else if tail := n - 1 - i; tail < fadeN {
			g *= hann(float64(tail) / float64(fadeN))
		}
		srcPos := srcStart + float64(i)*ratio
		left[pos] += sampleAt(src, srcPos, 0) * g
		right[pos] += sampleAt(src, srcPos, 1) * g
	}
}

func sampleAt(b *backbeat.Buffer, pos float64, ch int) float32 {
	idx := int(pos)
	if idx < 0 || idx >= len(b.Data) {
		return 0
	}
	s0 := b.Data[idx][ch]
	s1 := s0
	if idx+1 < len(b.Data) {
		s1 = b.Data[idx+1][ch]
	}
	return s0 + float32(pos-float64(idx))*(s1-s0)
}

func hann(x float64) float32 {
	return float32(0.5 - 0.5*math.Cos(math.Pi*x))
}

// panGains implements an equal power pan law; pan is -1 full left to +1 full
// right, with both channels at -3 dB in the middle.
func panGains(pan float64) (left, right float32) {
	if pan < -1 {
		pan = -1
	} else if pan > 1 {
		pan = 1
	}
	angle := (pan + 1) * math.Pi / 4
	return float32(math.Cos(angle)), float32(math.Sin(angle))
}

func softClip(v float32) float32 {
	if v > 0.95 {
		return 0.95 + (v-0.95)/(1+(v-0.95)*4)
	}
	if v < -0.95 {
		return -0.95 + (v+0.95)/(1-(v+0.95)*4)
	}
	return v
}

func (r *Renderer) progress(stage string, frac float64) {
	if r.Progress != nil {
		r.Progress(stage, frac)
	}
}

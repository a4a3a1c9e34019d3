package render

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/mkivist/backbeat"
)

// constantDecoder serves every source as a buffer of the given length filled
// with a constant sample value, and counts the calls.
func constantDecoder(seconds float64, rate int, value float32, calls *int) backbeat.DecodeFunc {
	return func(src string) (*backbeat.Buffer, error) {
		if calls != nil {
			*calls++
		}
		data := make(backbeat.AudioBuffer, int(seconds*float64(rate)))
		for i := range data {
			data[i][0] = value
			data[i][1] = value
		}
		return &backbeat.Buffer{SampleRate: rate, Data: data}, nil
	}
}

func f(v float64) *float64 { return &v }

func TestRenderClipLengthAndWav(t *testing.T) {
	project := &backbeat.Project{
		Tracks: []backbeat.Track{{
			Clips: []backbeat.Clip{{ID: 1, Start: 0, Duration: 2, Offset: 0, Src: "tone.wav"}},
		}},
	}
	r := Renderer{Decode: constantDecoder(2, 44100, 0.5, nil)}
	buffer, err := r.Render(project)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := 2 * 44100
	if got := len(buffer.Data); got < want-1 || got > want+1 {
		t.Errorf("buffer length %d, want %d +-1", got, want)
	}
	wav, err := buffer.Wav(true)
	if err != nil {
		t.Fatalf("Wav failed: %v", err)
	}
	wantData := len(buffer.Data) * 2 * 2 // frames x channels x 2 bytes
	if got := int(binary.LittleEndian.Uint32(wav[40:44])); got != wantData {
		t.Errorf("wav data chunk size %d, want %d", got, wantData)
	}
}

func TestRenderNothingToRender(t *testing.T) {
	r := Renderer{}
	if _, err := r.Render(&backbeat.Project{}); !errors.Is(err, ErrNothingToRender) {
		t.Errorf("empty project should fail with ErrNothingToRender, got %v", err)
	}
	project := &backbeat.Project{
		Tracks: []backbeat.Track{{
			Muted: true,
			Clips: []backbeat.Clip{{ID: 1, Duration: 2, Src: "a.wav"}},
		}},
	}
	if _, err := r.Render(project); !errors.Is(err, ErrNothingToRender) {
		t.Errorf("muted-only project should fail with ErrNothingToRender, got %v", err)
	}
}

func TestRenderSoloExcludesOthers(t *testing.T) {
	project := &backbeat.Project{
		Tracks: []backbeat.Track{
			{
				Soloed: true,
				Clips:  []backbeat.Clip{{ID: 1, Start: 0, Duration: 1, Src: "a.wav"}},
			},
			{
				// unmuted and with content, but not soloed
				Clips: []backbeat.Clip{{ID: 2, Start: 0, Duration: 3, Src: "a.wav"}},
			},
		},
	}
	r := Renderer{Decode: constantDecoder(3, 44100, 0.5, nil)}
	buffer, err := r.Render(project)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	// only the soloed track's 1s clip plays, so the output is 1s, not 3s
	if got, want := len(buffer.Data), 44100; got < want-1 || got > want+1 {
		t.Errorf("output length %d, want the soloed track's %d", got, want)
	}
}

func TestRenderDecodesEachSourceOnce(t *testing.T) {
	var calls int
	project := &backbeat.Project{
		Tracks: []backbeat.Track{{
			Clips: []backbeat.Clip{
				{ID: 1, Start: 0, Duration: 1, Src: "a.wav"},
				{ID: 2, Start: 1, Duration: 1, Src: "a.wav"},
				{ID: 3, Start: 2, Duration: 1, Src: "b.wav"},
			},
		}},
	}
	r := Renderer{Decode: constantDecoder(1, 44100, 0.5, &calls)}
	if _, err := r.Render(project); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 decode calls for 2 distinct sources, got %d", calls)
	}
}

func TestRenderSkipsFailedDecodes(t *testing.T) {
	project := &backbeat.Project{
		Tracks: []backbeat.Track{{
			Clips: []backbeat.Clip{
				{ID: 1, Start: 0, Duration: 1, Src: "good.wav"},
				{ID: 2, Start: 0, Duration: 1, Src: "missing.wav"},
			},
		}},
	}
	good := constantDecoder(1, 44100, 0.25, nil)
	r := Renderer{Decode: func(src string) (*backbeat.Buffer, error) {
		if src == "missing.wav" {
			return nil, errors.New("no such file")
		}
		return good(src)
	}}
	buffer, err := r.Render(project)
	if err != nil {
		t.Fatalf("a failed decode should not fail the render: %v", err)
	}
	// mid-clip the good clip contributes its value, scaled by the headroom
	mid := buffer.Data[len(buffer.Data)/2][0]
	want := float32(0.25 * MasterHeadroom)
	if math.Abs(float64(mid-want)) > 0.01 {
		t.Errorf("mid-clip sample %v, want about %v", mid, want)
	}
}

func TestRenderClipClampedToSource(t *testing.T) {
	project := &backbeat.Project{
		Tracks: []backbeat.Track{{
			// the clip asks for 2s starting 0.5s into a 1s source
			Clips: []backbeat.Clip{{ID: 1, Start: 0, Duration: 2, Offset: 0.5, Src: "a.wav"}},
		}},
	}
	r := Renderer{Decode: constantDecoder(1, 44100, 0.5, nil)}
	buffer, err := r.Render(project)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	// material runs out after 0.5s; past that the output must be silent
	after := buffer.Data[len(buffer.Data)*3/4][0]
	if after != 0 {
		t.Errorf("output past the end of the source material should be silent, got %v", after)
	}
}

func TestRenderNotesOnly(t *testing.T) {
	project := &backbeat.Project{
		Tempo: backbeat.Tempo{BPM: 120},
		Tracks: []backbeat.Track{{
			Notes: backbeat.NoteList{{Sec: f(0), DurSec: f(0.5), Midi: f(69)}},
		}},
	}
	r := Renderer{}
	buffer, err := r.Render(project)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := int(math.Ceil((0.5 + toneTail) * 44100))
	if got := len(buffer.Data); got != want {
		t.Errorf("output length %d, want %d including the release tail", got, want)
	}
	var peak float32
	for _, frame := range buffer.Data {
		if frame[0] > peak {
			peak = frame[0]
		}
	}
	if peak < 0.05 {
		t.Errorf("note should be audible, peak = %v", peak)
	}
}

func TestRenderPan(t *testing.T) {
	project := &backbeat.Project{
		Tracks: []backbeat.Track{{
			Pan:   -1, // full left
			Clips: []backbeat.Clip{{ID: 1, Start: 0, Duration: 1, Src: "a.wav"}},
		}},
	}
	r := Renderer{Decode: constantDecoder(1, 44100, 0.5, nil)}
	buffer, err := r.Render(project)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	mid := buffer.Data[len(buffer.Data)/2]
	if mid[0] < 0.3 {
		t.Errorf("full-left pan should keep the left channel, got %v", mid[0])
	}
	if math.Abs(float64(mid[1])) > 1e-6 {
		t.Errorf("full-left pan should silence the right channel, got %v", mid[1])
	}
}

func TestRenderDeterministic(t *testing.T) {
	project := &backbeat.Project{
		Tempo: backbeat.Tempo{BPM: 120},
		Tracks: []backbeat.Track{
			{
				Clips: []backbeat.Clip{{ID: 1, Start: 0, Duration: 1, Src: "a.wav"}},
				Notes: backbeat.NoteList{{Sec: f(0.25), DurSec: f(0.5), Midi: f(64)}},
			},
		},
	}
	render := func() []byte {
		r := Renderer{Decode: constantDecoder(1, 44100, 0.4, nil)}
		buffer, err := r.Render(project)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		wav, err := buffer.Wav(false)
		if err != nil {
			t.Fatalf("Wav failed: %v", err)
		}
		return wav
	}
	if !bytes.Equal(render(), render()) {
		t.Errorf("two renders of the same project should be byte identical")
	}
}

func TestRenderSampleRateFollowsSources(t *testing.T) {
	project := &backbeat.Project{
		Tracks: []backbeat.Track{{
			Clips: []backbeat.Clip{{ID: 1, Start: 0, Duration: 1, Src: "hi.wav"}},
		}},
	}
	r := Renderer{Decode: constantDecoder(1, 48000, 0.5, nil)}
	buffer, err := r.Render(project)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buffer.SampleRate != 48000 {
		t.Errorf("output rate %d, want the source's 48000", buffer.SampleRate)
	}
}

func TestPanGains(t *testing.T) {
	l, r := panGains(0)
	if math.Abs(float64(l-r)) > 1e-6 {
		t.Errorf("center pan should be symmetric, got %v and %v", l, r)
	}
	if math.Abs(float64(l)-math.Sqrt2/2) > 1e-6 {
		t.Errorf("center pan should sit at -3 dB, got %v", l)
	}
}

package backbeat_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/mkivist/backbeat"
)

func testBuffer(frames int) *backbeat.Buffer {
	data := make(backbeat.AudioBuffer, frames)
	for i := range data {
		v := float32(math.Sin(2 * math.Pi * 440 * float64(i) / 44100))
		data[i][0] = v
		data[i][1] = -v
	}
	return &backbeat.Buffer{SampleRate: 44100, Data: data}
}

func TestWavHeaderPCM16(t *testing.T) {
	buf := testBuffer(1000)
	wav, err := buf.Wav(true)
	if err != nil {
		t.Fatalf("Wav failed: %v", err)
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE magic")
	}
	wantData := 1000 * 2 * 2 // frames x channels x 2 bytes
	if got := int(binary.LittleEndian.Uint32(wav[4:8])); got != 36+wantData {
		t.Errorf("chunk size %d, want %d", got, 36+wantData)
	}
	if got := int(binary.LittleEndian.Uint16(wav[22:24])); got != 2 {
		t.Errorf("channel count %d, want 2", got)
	}
	if got := int(binary.LittleEndian.Uint32(wav[24:28])); got != 44100 {
		t.Errorf("sample rate %d, want 44100", got)
	}
	if got := int(binary.LittleEndian.Uint32(wav[40:44])); got != wantData {
		t.Errorf("data chunk size %d, want %d", got, wantData)
	}
	if len(wav) != 44+wantData {
		t.Errorf("file length %d, want %d", len(wav), 44+wantData)
	}
}

func TestWavRoundTripPCM16(t *testing.T) {
	buf := testBuffer(512)
	wav, err := buf.Wav(true)
	if err != nil {
		t.Fatalf("Wav failed: %v", err)
	}
	got, err := backbeat.ReadWav(wav)
	if err != nil {
		t.Fatalf("ReadWav failed: %v", err)
	}
	if got.SampleRate != 44100 {
		t.Errorf("sample rate %d, want 44100", got.SampleRate)
	}
	if len(got.Data) != len(buf.Data) {
		t.Fatalf("frame count %d, want %d", len(got.Data), len(buf.Data))
	}
	for i := range got.Data {
		for ch := 0; ch < 2; ch++ {
			if d := math.Abs(float64(got.Data[i][ch] - buf.Data[i][ch])); d > 1.0/16384 {
				t.Fatalf("frame %d ch %d differs by %v after 16-bit round trip", i, ch, d)
			}
		}
	}
}

func TestWavRoundTripFloat(t *testing.T) {
	buf := testBuffer(512)
	wav, err := buf.Wav(false)
	if err != nil {
		t.Fatalf("Wav failed: %v", err)
	}
	got, err := backbeat.ReadWav(wav)
	if err != nil {
		t.Fatalf("ReadWav failed: %v", err)
	}
	for i := range got.Data {
		if got.Data[i] != buf.Data[i] {
			t.Fatalf("frame %d differs after float round trip", i)
		}
	}
}

func TestReadWavRejectsGarbage(t *testing.T) {
	if _, err := backbeat.ReadWav([]byte("definitely not a wav file")); err == nil {
		t.Errorf("garbage input should fail")
	}
}

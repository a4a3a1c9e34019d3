package backbeat

import "errors"

type (
	// AudioBuffer is a buffer of stereo audio samples of variable length. The
	// samples are not interleaved: buffer[i][0] is the left and buffer[i][1]
	// the right channel of frame i.
	AudioBuffer [][2]float32

	// Buffer is a decoded piece of source material: stereo samples together
	// with the rate they were sampled at. Decoders supplied by the host
	// produce these and the renderer consumes them.
	Buffer struct {
		SampleRate int
		Data       AudioBuffer
	}

	// AudioSink is something where the player can write full audio buffers to,
	// e.g. a real audio output or a file.
	AudioSink interface {
		WriteAudio(buffer AudioBuffer) error
		Close() error
	}

	// AudioSource is something that can fill audio buffers, e.g. the live
	// synth engine or a fixed buffer being played back.
	AudioSource interface {
		ReadAudio(buffer AudioBuffer) (int, error)
		Close() error
	}

	// AudioContext represents the low-level audio drivers, supplied by the
	// host. There should be at most one of these per process.
	AudioContext interface {
		Output() AudioSink
		Play(source AudioSource) CloserWaiter
		Close() error
	}

	// CloserWaiter is the handle to an ongoing playback; Close stops it early
	// and Wait blocks until it finishes.
	CloserWaiter interface {
		Close() error
		Wait()
	}

	// DecodeFunc is the decoding primitive supplied by the host: it turns a
	// source reference (usually a file path or asset key) into a decoded
	// buffer. The renderer caches the results per source reference.
	DecodeFunc func(src string) (*Buffer, error)

	bufferSource struct {
		buffer AudioBuffer
		pos    int
	}
)

// Duration returns the length of the buffer in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Data)) / float64(b.SampleRate)
}

// Source returns an AudioSource playing back the buffer once.
func (b AudioBuffer) Source() AudioSource {
	return &bufferSource{buffer: b}
}

func (s *bufferSource) ReadAudio(buffer AudioBuffer) (int, error) {
	n := copy(buffer, s.buffer[s.pos:])
	s.pos += n
	if n == 0 {
		return 0, errors.New("buffer fully played")
	}
	return n, nil
}

func (s *bufferSource) Close() error { return nil }

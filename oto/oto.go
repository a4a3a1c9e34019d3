// Package oto implements the audio context over ebitengine/oto. The rest of
// the module only sees the backbeat interfaces, so a host can swap this
// backend for its own.
package oto

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/mkivist/backbeat"
)

const sampleRate = 44100

// Context wraps the process-wide oto context. There should be at most one.
type Context struct {
	ctx *oto.Context
}

// NewContext initializes the audio driver for 44100 Hz stereo float output
// and waits until it is ready to accept samples.
func NewContext() (*Context, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{ctx: ctx}, nil
}

// Close implements backbeat.AudioContext. The underlying driver has no
// close, it lives for the rest of the process.
func (c *Context) Close() error { return nil }

// Output returns a sink that plays every buffer written to it.
func (c *Context) Output() backbeat.AudioSink {
	pr, pw := io.Pipe()
	player := c.ctx.NewPlayer(pr)
	player.Play()
	return &output{pipe: pw, player: player}
}

type output struct {
	pipe   *io.PipeWriter
	player *oto.Player
	tmp    []byte
}

func (o *output) WriteAudio(buffer backbeat.AudioBuffer) error {
	o.tmp = appendFrames(o.tmp[:0], buffer)
	if _, err := o.pipe.Write(o.tmp); err != nil {
		return fmt.Errorf("cannot write to player: %w", err)
	}
	return nil
}

func (o *output) Close() error {
	o.pipe.Close()
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

// Play pulls audio from the source until it runs out or the returned handle
// is closed.
func (c *Context) Play(source backbeat.AudioSource) backbeat.CloserWaiter {
	r := &sourceReader{source: source, done: make(chan struct{})}
	player := c.ctx.NewPlayer(r)
	player.Play()
	return &playback{player: player, reader: r}
}

type playback struct {
	player *oto.Player
	reader *sourceReader
}

func (p *playback) Close() error {
	p.reader.finish()
	if err := p.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

// Wait blocks until the source is exhausted and the driver has drained what
// it buffered.
func (p *playback) Wait() {
	<-p.reader.done
	for p.player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
}

// sourceReader adapts an AudioSource to the io.Reader the oto player pulls
// from, converting frames to little endian float32 bytes.
type sourceReader struct {
	source  backbeat.AudioSource
	buf     backbeat.AudioBuffer
	pending []byte
	done    chan struct{}
	once    sync.Once
}

func (r *sourceReader) Read(p []byte) (int, error) {
	select {
	case <-r.done:
		return 0, io.EOF
	default:
	}
	if len(r.pending) == 0 {
		frames := len(p) / 8
		if frames == 0 {
			frames = 1
		}
		if cap(r.buf) < frames {
			r.buf = make(backbeat.AudioBuffer, frames)
		}
		n, err := r.source.ReadAudio(r.buf[:frames])
		if n == 0 || err != nil {
			r.finish()
			return 0, io.EOF
		}
		r.pending = appendFrames(r.pending[:0], r.buf[:n])
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *sourceReader) finish() {
	r.once.Do(func() { close(r.done) })
}

func appendFrames(dst []byte, buffer backbeat.AudioBuffer) []byte {
	for _, frame := range buffer {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(frame[0]))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(frame[1]))
	}
	return dst
}

package synth

import (
	"log"

	"github.com/mkivist/backbeat"
)

type (
	// PlayerMsg is a message to a Player, handled at the next block boundary.
	PlayerMsg interface{ playerMsg() }

	// NoteOnMsg starts a note.
	NoteOnMsg struct {
		Note     byte
		Velocity float32
	}

	// NoteOffMsg releases a note.
	NoteOffMsg struct{ Note byte }

	// ParamsMsg merges a partial parameter set into the engine.
	ParamsMsg struct{ Params backbeat.Params }

	// PanicMsg releases every voice immediately.
	PanicMsg struct{}
)

func (NoteOnMsg) playerMsg()  {}
func (NoteOffMsg) playerMsg() {}
func (ParamsMsg) playerMsg()  {}
func (PanicMsg) playerMsg()   {}

// Player wraps an Engine as an AudioSource that other goroutines can steer
// through messages. Messages are applied between blocks, so everything a
// caller sends lands at a block boundary and the audio goroutine never
// blocks on a lock held elsewhere.
type Player struct {
	engine *Engine
	msgs   chan PlayerMsg
}

// NewPlayer wraps the engine. The message queue holds a generous backlog
// so senders only ever drop under pathological load.
func NewPlayer(engine *Engine) *Player {
	return &Player{engine: engine, msgs: make(chan PlayerMsg, 1024)}
}

// TrySend queues a message without blocking. When the queue is full the
// message is dropped; the audio goroutine must never be waited on.
func (p *Player) TrySend(msg PlayerMsg) bool {
	select {
	case p.msgs <- msg:
		return true
	default:
		log.Printf("player message queue full, dropping %T", msg)
		return false
	}
}

// ReadAudio implements backbeat.AudioSource: it applies all pending messages
// and renders the next block.
func (p *Player) ReadAudio(buffer backbeat.AudioBuffer) (int, error) {
	p.processMessages()
	return p.engine.ReadAudio(buffer)
}

// Close shuts the underlying engine down.
func (p *Player) Close() error { return p.engine.Close() }

func (p *Player) processMessages() {
	for {
		select {
		case msg := <-p.msgs:
			switch m := msg.(type) {
			case NoteOnMsg:
				p.engine.NoteOn(m.Note, m.Velocity)
			case NoteOffMsg:
				p.engine.NoteOff(m.Note)
			case ParamsMsg:
				p.engine.SetParams(m.Params)
			case PanicMsg:
				p.engine.AllNotesOff()
			}
		default:
			return
		}
	}
}

//go:build !cgo

package midiin

import (
	"errors"

	"github.com/mkivist/backbeat/synth"
)

type Input struct{}

// Open reports MIDI input as unavailable when built without cgo.
func Open(player *synth.Player) (*Input, error) {
	return nil, errors.New("midi input needs a build with cgo enabled")
}

func (in *Input) Close() error { return nil }

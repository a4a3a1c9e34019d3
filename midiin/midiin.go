//go:build cgo

// Package midiin forwards note events from every attached MIDI input to a
// live player. It needs cgo for the rtmidi driver; without cgo the stub in
// this package reports MIDI as unavailable.
package midiin

import (
	"fmt"
	"log"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/mkivist/backbeat/synth"
)

// Input listens on all MIDI input ports and forwards note on/off messages.
type Input struct {
	driver *rtmididrv.Driver
	stops  []func()
}

// Open starts listening on every available input port. Ports that fail to
// open are logged and skipped.
func Open(player *synth.Player) (*Input, error) {
	driver, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("cannot create midi driver: %w", err)
	}
	ins, err := driver.Ins()
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("cannot list midi inputs: %w", err)
	}
	input := &Input{driver: driver}
	for _, in := range ins {
		stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
			var ch, key, vel uint8
			switch {
			case msg.GetNoteStart(&ch, &key, &vel):
				player.TrySend(synth.NoteOnMsg{Note: key, Velocity: float32(vel) / 127})
			case msg.GetNoteEnd(&ch, &key):
				player.TrySend(synth.NoteOffMsg{Note: key})
			}
		})
		if err != nil {
			log.Printf("cannot listen to midi input %s: %v", in, err)
			continue
		}
		log.Printf("listening to midi input %s", in)
		input.stops = append(input.stops, stop)
	}
	return input, nil
}

// Close stops all listeners and releases the driver.
func (in *Input) Close() error {
	for _, stop := range in.stops {
		stop()
	}
	in.stops = nil
	return in.driver.Close()
}

package audio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gitlab.com/gomidi/rtmididrv"
)

// ErrNoMidiIn is returned when no MIDI input port matches.
var ErrNoMidiIn = errors.New("MIDI IN not found")

// ListenToMidiIn opens the first MIDI input whose name contains port (any
// port when empty) and passes every message to handle until ctx is done.
func ListenToMidiIn(ctx context.Context, port string, handle func(data []byte)) error {
	drv, err := rtmididrv.New()
	if err != nil {
		return fmt.Errorf("failed to initialize MIDI driver: %w", err)
	}
	defer func() {
		if err := drv.Close(); err != nil {
			log.Printf("failed to close MIDI driver: %v\n", err)
		}
	}()
	ins, err := drv.Ins()
	if err != nil {
		return fmt.Errorf("failed to get MIDI IN: %w", err)
	}
	log.Printf("MIDI IN: %v\n", ins)

	index := -1
	for i, in := range ins {
		if strings.Contains(in.String(), port) {
			index = i
			break
		}
	}
	if index < 0 {
		return fmt.Errorf("%w: %q", ErrNoMidiIn, port)
	}
	in := ins[index]
	if err := in.Open(); err != nil {
		return fmt.Errorf("failed to open MIDI IN: %w", err)
	}
	log.Println("opened " + in.String())
	defer func() {
		if err := in.Close(); err != nil {
			log.Printf("failed to close MIDI IN: %v\n", err)
		}
	}()

	messages := make(chan []byte, 1024)
	if err := in.SetListener(func(data []byte, deltaMicroseconds int64) {
		msg := make([]byte, len(data))
		copy(msg, data)
		select {
		case messages <- msg:
		default:
			log.Println("[WARN] MIDI message dropped")
		}
	}); err != nil {
		return fmt.Errorf("failed to set listener: %w", err)
	}
	defer func() {
		log.Println("stop listening MIDI IN...")
		if err := in.StopListening(); err != nil {
			log.Printf("failed to stop listening: %v\n", err)
		}
	}()
	log.Println("start listening MIDI IN...")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-messages:
			handle(msg)
		}
	}
}

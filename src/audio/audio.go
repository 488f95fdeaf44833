// Package audio runs a RingsResonator behind a host: resampling, latency
// compensation, parameter smoothing, and the device, MIDI and command glue
// of the player.
package audio

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/hajimehoshi/oto"

	"github.com/jinjor/rings-resonator/src/dsp"
	"github.com/jinjor/rings-resonator/src/rcu"
)

const (
	channelNum      = 2
	bitDepthInBytes = 2
	bytesPerSample  = bitDepthInBytes * channelNum
	fftSize         = 2048
)

// Config ...
type Config struct {
	SampleRate int
	BufferSize int // in frames
	PresetDir  string
	Patch      Params
}

// ----- Audio ----- //

// Audio plays a RingsResonator on the default output device. Commands and
// MIDI change its Params from other goroutines; Read picks them up once per
// buffer.
type Audio struct {
	ctx        context.Context
	otoContext *oto.Context
	CommandCh  chan []string
	Changes    *CallbackList[string]

	sampleRate int
	bufferSize int
	presets    *presetManager

	params    *rcu.RCU[Params]
	reader    *rcu.Reader[Params]
	resonator *RingsResonator
	strums    uint64

	in    []float32
	left  []float32
	right []float32

	// owned by Read
	out  []float32 // length: fftSize
	pos  int
	seq  uint64
	back *outputFrame

	frames atomic.Pointer[outputFrame]

	// owned by GetFFT
	front     *outputFrame
	frontSeq  uint64
	spectrum  *dsp.Spectrum
	fftResult []float32 // length: fftSize
}

// outputFrame is the last fftSize output samples, oldest first. Read, the
// shared slot and GetFFT each own one frame and trade them by swapping.
type outputFrame struct {
	samples [fftSize]float32
	seq     uint64
}

var _ io.Reader = (*Audio)(nil)

func (a *Audio) Read(buf []byte) (int, error) {
	select {
	case <-a.ctx.Done():
		log.Println("Read() interrupted.")
		return 0, io.EOF
	default:
	}
	frames := len(buf) / bytesPerSample
	a.reader.Read(func(p *Params) {
		p.applyTo(a.resonator)
		if p.Strums != a.strums {
			a.strums = p.Strums
			a.resonator.Strum()
		}
	})
	for offset := 0; offset < frames; {
		n := min(frames-offset, len(a.in))
		a.resonator.ProcessStereo(a.in[:n], a.left[:n], a.right[:n])
		writeBuffer(a.left[:n], a.right[:n], buf[offset*bytesPerSample:])
		a.record(a.left[:n], a.right[:n])
		offset += n
	}
	a.publish()
	return frames * bytesPerSample, nil
}

func writeBuffer(left, right []float32, buf []byte) {
	const max = 32767
	for i := range left {
		l := int16(dsp.Clamp(left[i], -1, 1) * max)
		r := int16(dsp.Clamp(right[i], -1, 1) * max)
		buf[bytesPerSample*i] = byte(l)
		buf[bytesPerSample*i+1] = byte(l >> 8)
		buf[bytesPerSample*i+2] = byte(r)
		buf[bytesPerSample*i+3] = byte(r >> 8)
	}
}

// record keeps the last fftSize mono samples for GetFFT.
func (a *Audio) record(left, right []float32) {
	for i := range left {
		a.out[a.pos] = 0.5 * (left[i] + right[i])
		a.pos++
		if a.pos == fftSize {
			a.pos = 0
		}
	}
}

// publish hands the recorded samples to GetFFT without waiting on it.
func (a *Audio) publish() {
	// out:     | 4 | 1 | 2 | 3 |
	// offset:      ^
	// samples: | 1 | 2 | 3 | 4 |
	offset := a.pos
	copy(a.back.samples[:], a.out[offset:])
	copy(a.back.samples[fftSize-offset:], a.out[:offset])
	a.seq++
	a.back.seq = a.seq
	a.back = a.frames.Swap(a.back)
}

// NewAudio opens the output device. The resonator is prepared for the
// configured rate and buffer size.
func NewAudio(config Config) (*Audio, error) {
	if config.BufferSize <= 0 {
		return nil, fmt.Errorf("invalid buffer size %d", config.BufferSize)
	}
	resonator := NewRingsResonator()
	if err := resonator.Prepare(float64(config.SampleRate), config.BufferSize); err != nil {
		return nil, err
	}
	otoContext, err := oto.NewContext(config.SampleRate, channelNum, bitDepthInBytes, config.BufferSize*bytesPerSample)
	if err != nil {
		return nil, err
	}
	params := rcu.New(config.Patch)
	commandCh := make(chan []string, 256)
	audio := &Audio{
		ctx:        context.Background(),
		otoContext: otoContext,
		CommandCh:  commandCh,
		Changes:    NewCallbackList[string](),
		sampleRate: config.SampleRate,
		bufferSize: config.BufferSize,
		presets:    newPresetManager(config.PresetDir),
		params:     params,
		reader:     params.Register(),
		resonator:  resonator,
		in:         make([]float32, config.BufferSize),
		left:       make([]float32, config.BufferSize),
		right:      make([]float32, config.BufferSize),
		out:        make([]float32, fftSize),
		back:       &outputFrame{},
		front:      &outputFrame{},
		spectrum:   dsp.NewSpectrum(fftSize),
		fftResult:  make([]float32, fftSize),
	}
	audio.frames.Store(&outputFrame{})
	log.Printf("sample rate: %v, buffer: %v, latency: %v samples\n", config.SampleRate, config.BufferSize, resonator.Latency())
	go processCommands(audio, commandCh)
	return audio, nil
}

func processCommands(audio *Audio, commandCh <-chan []string) {
	for command := range commandCh {
		if err := audio.update(command); err != nil {
			log.Printf("command %v failed: %v\n", command, err)
		}
	}
	log.Println("processCommands() ended.")
}

// Params returns a copy of the current parameters.
func (a *Audio) Params() Params {
	return a.params.Snapshot()
}

func (a *Audio) update(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("empty command")
	}
	switch command[0] {
	case "set":
		if len(command) != 3 {
			return fmt.Errorf("invalid key-value pair %v", command[1:])
		}
		key, value := command[1], command[2]
		var err error
		a.params.Update(func(p *Params) {
			err = p.set(key, value)
		})
		if err != nil {
			return err
		}
		a.Changes.Call(key)
	case "get":
		if len(command) != 2 {
			return fmt.Errorf("get needs a key")
		}
		value, ok := rcu.Get[Params, float32](a.params, command[1])
		if !ok {
			return fmt.Errorf("unknown key %v", command[1])
		}
		log.Printf("%s = %v\n", command[1], value)
	case "model":
		if len(command) != 2 {
			return fmt.Errorf("model needs a name")
		}
		return a.update([]string{"set", "model", command[1]})
	case "strum":
		a.params.Update(func(p *Params) {
			p.Strums++
		})
	case "note_on":
		if len(command) < 2 {
			return fmt.Errorf("note_on needs a note")
		}
		note, err := strconv.ParseFloat(command[1], 32)
		if err != nil {
			return err
		}
		a.noteOn(float32(note))
	case "note_off":
		// strings ring out by themselves
	case "load":
		if len(command) != 2 {
			return fmt.Errorf("load needs a preset")
		}
		loaded, err := a.presets.load(command[1])
		if err != nil {
			return err
		}
		a.params.Update(func(p *Params) {
			strums := p.Strums
			*p = loaded
			p.Strums = strums
		})
		log.Printf("loaded %v\n", command[1])
		a.Changes.Call("patch")
	case "save":
		if len(command) != 2 {
			return fmt.Errorf("save needs a preset")
		}
		return a.presets.save(command[1], a.Params())
	case "presets":
		names, err := a.presets.getList()
		if err != nil {
			return err
		}
		log.Printf("presets: %s\n", strings.Join(names, ", "))
	default:
		return fmt.Errorf("unknown command %v", command[0])
	}
	return nil
}

func (a *Audio) noteOn(note float32) {
	frequency := 440 * dsp.SemitonesToRatio(note-69)
	a.params.Update(func(p *Params) {
		p.SetPath("frequency", frequency)
		p.Strums++
	})
	a.Changes.Call("frequency")
}

// Close ...
func (a *Audio) Close() error {
	log.Println("Closing Audio...")
	close(a.CommandCh)
	a.reader.Close()
	return a.otoContext.Close()
}

// Start ...
func (a *Audio) Start(ctx context.Context) error {
	p := a.otoContext.NewPlayer()
	defer func() {
		if err := p.Close(); err != nil {
			log.Printf("error: %v", err)
		}
	}()
	a.ctx = ctx

	// block until cancel() called
	if _, err := io.CopyBuffer(p, a, make([]byte, a.bufferSize*bytesPerSample)); err != nil {
		return err
	}
	log.Println("Start() ended.")
	return nil
}

// GetFFT returns the amplitude spectrum of the last published fftSize output
// samples. It must be called from one goroutine, and the result is reused by
// the next call.
func (a *Audio) GetFFT() []float32 {
	a.front = a.frames.Swap(a.front)
	// the slot may hand back a frame older than the last one seen
	if a.front.seq > a.frontSeq {
		a.frontSeq = a.front.seq
		copy(a.fftResult, a.front.samples[:])
	}
	return a.spectrum.Calc(a.fftResult)
}

// AddMidiEvent handles a raw MIDI message. Note-ons set the note and strum.
func (a *Audio) AddMidiEvent(data []byte) {
	if len(data) < 3 {
		return
	}
	if data[0]>>4 == 9 && data[2] > 0 {
		log.Printf("got note-on: %v\n", data)
		a.noteOn(float32(data[1]))
	}
}

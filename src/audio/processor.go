package audio

import (
	"errors"
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/viterin/vek/vek32"

	"github.com/jinjor/rings-resonator/src/dsp"
	"github.com/jinjor/rings-resonator/src/dsp/fx"
	"github.com/jinjor/rings-resonator/src/rings"
)

const (
	internalRate      = dsp.SampleRate
	internalBlockSize = dsp.MaxBlockSize
	resampleTolerance = 100   // Hz
	smoothingTime     = 0.005 // s
	maxParameter      = 0.9995
	strumIOI          = 0.01 // s
)

// Errors returned by Prepare.
var (
	ErrInvalidSampleRate = errors.New("invalid sample rate")
	ErrInvalidBlockSize  = errors.New("invalid block size")
)

// ----- Engine ----- //

// Engine selects what a RingsResonator renders.
type Engine int

// Engine ...
const (
	EngineResonator Engine = iota
	EngineStringSynth
	NumEngines
)

var engineNames = [NumEngines]string{"resonator", "stringsynth"}

func (e Engine) String() string {
	if e < 0 || e >= NumEngines {
		return fmt.Sprintf("engine(%d)", int(e))
	}
	return engineNames[e]
}

// ParseEngine ...
func ParseEngine(s string) (Engine, error) {
	for i, name := range engineNames {
		if name == s {
			return Engine(i), nil
		}
	}
	return 0, fmt.Errorf("unknown engine %q", s)
}

// MarshalText ...
func (e Engine) MarshalText() ([]byte, error) {
	if e < 0 || e >= NumEngines {
		return nil, fmt.Errorf("unknown engine %d", int(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText ...
func (e *Engine) UnmarshalText(text []byte) error {
	v, err := ParseEngine(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// ----- Rings Resonator ----- //

// RingsResonator runs a Part or a StringSynthPart at the internal rate
// behind a host of any sample rate and block size. Odd and even are the two
// outputs of the part. The dry signal is delayed by Latency so that dry and
// wet line up.
//
// Prepare must return before the first Process call. Setters are plain
// writes and must come from the thread that calls Process, or be serialized
// with it by the caller.
type RingsResonator struct {
	part        *rings.Part
	stringSynth *rings.StringSynthPart
	strummer    rings.Strummer
	fxBuffer    []uint16

	engine       Engine
	perf         rings.PerformanceState
	patch        rings.Patch
	strumPending bool
	bypass       bool

	note       ParamSmoother
	structure  ParamSmoother
	brightness ParamSmoother
	damping    ParamSmoother
	position   ParamSmoother
	dryWet     ParamSmoother
	oddEvenMix ParamSmoother

	prepared     bool
	sampleRate   float64
	maxBlockSize int
	resampling   bool
	latency      int

	down   *Resampler
	upOdd  *Resampler
	upEven *Resampler

	inFifo   *RingBuffer // internal rate
	oddFifo  *RingBuffer // host rate
	evenFifo *RingBuffer // host rate
	dry      *RingBuffer

	downScratch []float32
	upScratch   []float32
	wetOdd      []float32
	wetEven     []float32
	dryBuffer   []float32

	block     [internalBlockSize]float32
	blockOdd  [internalBlockSize]float32
	blockEven [internalBlockSize]float32
}

// NewRingsResonator creates a resonator with a modal model, one voice and
// the note A3.
func NewRingsResonator() *RingsResonator {
	fxBuffer := make([]uint16, fx.ReverbMemorySize)
	r := &RingsResonator{
		part:        rings.NewPart(fxBuffer),
		stringSynth: rings.NewStringSynthPart(fxBuffer),
		fxBuffer:    fxBuffer,
		engine:      EngineResonator,
	}
	r.strummer.Init(strumIOI, internalRate/internalBlockSize)
	r.perf = rings.PerformanceState{Note: 69}
	r.note.Snap(69)
	r.structure.Snap(0.25)
	r.brightness.Snap(0.5)
	r.damping.Snap(0.5)
	r.position.Snap(0.3)
	r.dryWet.Snap(1)
	r.oddEvenMix.Snap(0.5)
	return r
}

// Prepare sizes every buffer for blocks of up to maxBlockSize samples at
// sampleRate. It resets the streams but keeps the parameters.
func (r *RingsResonator) Prepare(sampleRate float64, maxBlockSize int) error {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, sampleRate)
	}
	if maxBlockSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBlockSize, maxBlockSize)
	}
	r.prepared = false
	r.sampleRate = sampleRate
	r.maxBlockSize = maxBlockSize
	r.resampling = math.Abs(sampleRate-internalRate) > resampleTolerance

	if r.resampling {
		var err error
		if r.down, err = NewResampler(sampleRate, internalRate); err != nil {
			return err
		}
		if r.upOdd, err = NewResampler(internalRate, sampleRate); err != nil {
			return err
		}
		if r.upEven, err = NewResampler(internalRate, sampleRate); err != nil {
			return err
		}
		hostPerInternal := sampleRate / internalRate
		r.latency = int(math.Ceil(float64(r.down.Latency())*hostPerInternal)) +
			int(math.Ceil(internalBlockSize*hostPerInternal)) +
			r.upOdd.Latency()
		r.downScratch = make([]float32, r.down.MaxOutput(maxBlockSize))
		r.upScratch = make([]float32, r.upOdd.MaxOutput(internalBlockSize))
		r.inFifo = NewRingBuffer(len(r.downScratch) + internalBlockSize)
	} else {
		r.down, r.upOdd, r.upEven = nil, nil, nil
		r.latency = internalBlockSize
		r.downScratch = nil
		r.upScratch = nil
		r.inFifo = NewRingBuffer(maxBlockSize + internalBlockSize)
	}
	outCapacity := r.latency + 2*maxBlockSize + 2*len(r.upScratch) + 2*internalBlockSize
	r.oddFifo = NewRingBuffer(outCapacity)
	r.evenFifo = NewRingBuffer(outCapacity)
	r.oddFifo.Fill(r.latency)
	r.evenFifo.Fill(r.latency)
	r.dry = NewRingBuffer(r.latency + maxBlockSize)
	r.wetOdd = make([]float32, maxBlockSize)
	r.wetEven = make([]float32, maxBlockSize)
	r.dryBuffer = make([]float32, maxBlockSize)

	rate := float32(sampleRate)
	for _, s := range r.smoothers() {
		s.Init(smoothingTime, rate, s.Target())
	}
	r.prepared = true
	return nil
}

func (r *RingsResonator) smoothers() [7]*ParamSmoother {
	return [7]*ParamSmoother{&r.note, &r.structure, &r.brightness, &r.damping, &r.position, &r.dryWet, &r.oddEvenMix}
}

// Latency is the delay of the wet and the dry signal, in host samples.
func (r *RingsResonator) Latency() int {
	if !r.prepared {
		return internalBlockSize
	}
	return r.latency
}

// Resampling reports whether the host rate differs from the internal rate.
func (r *RingsResonator) Resampling() bool { return r.resampling }

// ----- Setters ----- //

// SetFrequency sets the played note in Hz.
func (r *RingsResonator) SetFrequency(hz float32) {
	hz = dsp.Clamp(hz, 20, 20000)
	r.note.SetTarget(69 + 12*math32.Log2(hz/440))
}

// SetNote sets the played note in semitones, 69 being A3.
func (r *RingsResonator) SetNote(semitones float32) {
	r.SetFrequency(440 * dsp.SemitonesToRatio(semitones-69))
}

// Frequency is the target note in Hz.
func (r *RingsResonator) Frequency() float32 {
	return 440 * dsp.SemitonesToRatio(r.note.Target()-69)
}

// SetStructure ...
func (r *RingsResonator) SetStructure(v float32) { r.structure.SetTarget(dsp.Clamp(v, 0, maxParameter)) }

// SetBrightness ...
func (r *RingsResonator) SetBrightness(v float32) { r.brightness.SetTarget(dsp.Clamp(v, 0, 1)) }

// SetDamping ...
func (r *RingsResonator) SetDamping(v float32) { r.damping.SetTarget(dsp.Clamp(v, 0, maxParameter)) }

// SetPosition ...
func (r *RingsResonator) SetPosition(v float32) { r.position.SetTarget(dsp.Clamp(v, 0, maxParameter)) }

// SetDryWet sets the wet share of the output. 0 is the delayed input.
func (r *RingsResonator) SetDryWet(v float32) { r.dryWet.SetTarget(dsp.Clamp(v, 0, 1)) }

// SetOddEvenMix blends the odd (0) and the even (1) output in Process.
func (r *RingsResonator) SetOddEvenMix(v float32) { r.oddEvenMix.SetTarget(dsp.Clamp(v, 0, 1)) }

// SetPolyphony ...
func (r *RingsResonator) SetPolyphony(polyphony int) {
	polyphony = dsp.Clamp(polyphony, 1, rings.MaxPolyphony)
	r.part.SetPolyphony(polyphony)
	r.stringSynth.SetPolyphony(polyphony)
}

// Polyphony ...
func (r *RingsResonator) Polyphony() int { return r.part.Polyphony() }

// SetModel ...
func (r *RingsResonator) SetModel(model rings.ResonatorModel) { r.part.SetModel(model) }

// Model ...
func (r *RingsResonator) Model() rings.ResonatorModel { return r.part.Model() }

// SetEngine switches between the resonator and the string machine. Both
// share the effect memory, so it is cleared on a switch.
func (r *RingsResonator) SetEngine(engine Engine) {
	if engine < 0 || engine >= NumEngines || engine == r.engine {
		return
	}
	clear(r.fxBuffer)
	r.engine = engine
}

// Engine ...
func (r *RingsResonator) Engine() Engine { return r.engine }

// SetFxType selects the effect of the string machine.
func (r *RingsResonator) SetFxType(fxType rings.FxType) { r.stringSynth.SetFx(fxType) }

// SetInternalExciter makes the part pluck itself instead of resonating the
// input.
func (r *RingsResonator) SetInternalExciter(enabled bool) { r.perf.InternalExciter = enabled }

// SetInternalStrum makes the part detect strums from the input or from
// note changes. Strum calls are then ignored.
func (r *RingsResonator) SetInternalStrum(enabled bool) { r.perf.InternalStrum = enabled }

// SetInternalNote ...
func (r *RingsResonator) SetInternalNote(enabled bool) { r.perf.InternalNote = enabled }

// SetChord ...
func (r *RingsResonator) SetChord(chord int) { r.perf.Chord = dsp.Clamp(chord, 0, rings.NumChords-1) }

// SetBypass makes the wet signal a delayed copy of the input.
func (r *RingsResonator) SetBypass(bypass bool) {
	r.bypass = bypass
	r.part.SetBypass(bypass)
}

// Strum starts a note at the next internal block.
func (r *RingsResonator) Strum() { r.strumPending = true }

// ----- Processing ----- //

// Process renders a mono output: odd and even blended by the odd/even mix,
// then blended with the dry input. in and out have the same length.
func (r *RingsResonator) Process(in, out []float32) {
	if !r.prepared {
		vek32.Zeros_Into(out, len(out))
		return
	}
	for len(in) > 0 {
		n := min(len(in), r.maxBlockSize)
		odd, even, dry := r.render(in[:n])
		mix := r.oddEvenMix.Value()
		vek32.MulNumber_Inplace(odd, 1-mix)
		vek32.MulNumber_Inplace(even, mix)
		vek32.Add_Inplace(odd, even)
		blend(out[:n], odd, dry, r.dryWet.Value())
		in, out = in[n:], out[n:]
	}
}

// ProcessStereo sends odd to left and even to right, each blended with the
// dry input.
func (r *RingsResonator) ProcessStereo(in, left, right []float32) {
	if !r.prepared {
		vek32.Zeros_Into(left, len(left))
		vek32.Zeros_Into(right, len(right))
		return
	}
	for len(in) > 0 {
		n := min(len(in), r.maxBlockSize)
		odd, even, dry := r.render(in[:n])
		wet := r.dryWet.Value()
		blend(left[:n], odd, dry, wet)
		blend(right[:n], even, dry, wet)
		in, left, right = in[n:], left[n:], right[n:]
	}
}

// blend writes wet*amount + dry*(1-amount) to out.
func blend(out, wet, dry []float32, amount float32) {
	vek32.MulNumber_Into(out, wet, amount)
	for i, d := range dry {
		out[i] += d * (1 - amount)
	}
}

// render advances the smoothers, delays the input into the dry buffer and
// returns the wet odd and even outputs for in.
func (r *RingsResonator) render(in []float32) (odd, even, dry []float32) {
	n := len(in)
	r.advance(n)

	dry = r.dryBuffer[:n]
	for i, x := range in {
		r.dry.Push(x)
		dry[i] = 0
		if r.dry.Len() > r.latency {
			dry[i], _ = r.dry.Pop()
		}
	}

	if r.resampling {
		m := r.down.ProcessMono(in, r.downScratch)
		r.inFifo.Write(r.downScratch[:m])
		for r.inFifo.Len() >= internalBlockSize {
			r.inFifo.Read(r.block[:])
			r.renderBlock()
			k := r.upOdd.ProcessMono(r.blockOdd[:], r.upScratch)
			r.oddFifo.Write(r.upScratch[:k])
			k = r.upEven.ProcessMono(r.blockEven[:], r.upScratch)
			r.evenFifo.Write(r.upScratch[:k])
		}
	} else {
		r.inFifo.Write(in)
		for r.inFifo.Len() >= internalBlockSize {
			r.inFifo.Read(r.block[:])
			r.renderBlock()
			r.oddFifo.Write(r.blockOdd[:])
			r.evenFifo.Write(r.blockEven[:])
		}
	}

	odd = r.wetOdd[:n]
	even = r.wetEven[:n]
	if got := r.oddFifo.Read(odd); got < n {
		vek32.Zeros_Into(odd[got:], n-got)
	}
	if got := r.evenFifo.Read(even); got < n {
		vek32.Zeros_Into(even[got:], n-got)
	}
	return odd, even, dry
}

func (r *RingsResonator) advance(n int) {
	r.perf.Note = r.note.Advance(n)
	r.patch.Structure = r.structure.Advance(n)
	r.patch.Brightness = r.brightness.Advance(n)
	r.patch.Damping = r.damping.Advance(n)
	r.patch.Position = r.position.Advance(n)
	r.dryWet.Advance(n)
	r.oddEvenMix.Advance(n)
}

func (r *RingsResonator) renderBlock() {
	if r.bypass {
		r.blockOdd = r.block
		r.blockEven = r.block
		return
	}
	r.perf.Strum = r.strumPending
	r.strumPending = false
	r.strummer.Process(r.block[:], &r.perf)
	switch r.engine {
	case EngineStringSynth:
		r.stringSynth.Process(&r.perf, &r.patch, r.block[:], r.blockOdd[:], r.blockEven[:])
	default:
		r.part.Process(&r.perf, &r.patch, r.block[:], r.blockOdd[:], r.blockEven[:])
	}
}

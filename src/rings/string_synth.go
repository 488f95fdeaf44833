package rings

import (
	"fmt"

	"github.com/viterin/vek/vek32"

	"github.com/jinjor/rings-resonator/src/dsp"
	"github.com/jinjor/rings-resonator/src/dsp/fx"
)

const (
	stringSynthVoices       = 12
	stringSynthMaxPolyphony = 4
	numHarmonics            = 3
	numFormants             = 4
	acquisitionDelay        = 3
)

// ----- FX Type ----- //

// FxType selects the effect after the string machine.
type FxType int

// FxType ...
const (
	FxFormant FxType = iota
	FxChorus
	FxReverb
	FxFormant2
	FxEnsemble
	FxReverb2
	NumFxTypes
)

var fxNames = [NumFxTypes]string{"formant", "chorus", "reverb", "formant2", "ensemble", "reverb2"}

func (t FxType) String() string {
	if t < 0 || t >= NumFxTypes {
		return fmt.Sprintf("fx(%d)", int(t))
	}
	return fxNames[t]
}

// ParseFxType is the inverse of FxType.String.
func ParseFxType(s string) (FxType, error) {
	for i, name := range fxNames {
		if name == s {
			return FxType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown fx: %q", s)
}

// MarshalText ...
func (t FxType) MarshalText() ([]byte, error) {
	if t < 0 || t >= NumFxTypes {
		return nil, fmt.Errorf("unknown fx: %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText ...
func (t *FxType) UnmarshalText(text []byte) error {
	v, err := ParseFxType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ----- Oscillator ----- //

func polyBlep(t, dt float32) float32 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

// StringSynthOscillator is a band-limited saw and square pair sharing one
// phase.
type StringSynthOscillator struct {
	phase      float32
	sawGain    float32
	squareGain float32
}

// Init ...
func (o *StringSynthOscillator) Init() {
	*o = StringSynthOscillator{}
}

// Render adds the oscillator to out. The gains glide from their previous
// values over the block.
func (o *StringSynthOscillator) Render(frequency, sawGain, squareGain float32, out []float32) {
	if frequency >= 0.25 {
		sawGain = 0
		squareGain = 0
		frequency = 0.25
	}
	saw := dsp.NewParameterInterpolator(&o.sawGain, sawGain, len(out))
	square := dsp.NewParameterInterpolator(&o.squareGain, squareGain, len(out))
	phase := o.phase
	for i := range out {
		phase += frequency
		if phase >= 1 {
			phase -= 1
		}
		s := 2*phase - 1 - polyBlep(phase, frequency)
		q := float32(-1)
		if phase < 0.5 {
			q = 1
		}
		half := phase + 0.5
		if half >= 1 {
			half -= 1
		}
		q += polyBlep(phase, frequency) - polyBlep(half, frequency)
		out[i] += s*saw.Next() + q*square.Next()
	}
	o.phase = phase
	saw.Done()
	square.Done()
}

// ----- Envelope ----- //

// Envelope flags passed to StringSynthEnvelope.Process.
const (
	EnvelopeRisingEdge  = 1
	EnvelopeFallingEdge = 2
	EnvelopeGate        = 4
)

type envelopeSegment int

const (
	segmentDead envelopeSegment = iota
	segmentAttack
	segmentSustain
	segmentDecay
)

// StringSynthEnvelope is an attack-decay envelope with a quartic decay. With
// hold set it sustains while the gate is high.
type StringSynthEnvelope struct {
	segment         envelopeSegment
	phase           float32
	attackIncrement float32
	decayIncrement  float32
	hold            bool
	start           float32
	value           float32
}

// Init ...
func (e *StringSynthEnvelope) Init() {
	*e = StringSynthEnvelope{}
	e.SetAD(0.1, 0.001)
}

// SetAD sets the attack and decay increments per call to Process.
func (e *StringSynthEnvelope) SetAD(attack, decay float32) {
	e.attackIncrement = attack
	e.decayIncrement = decay
}

// SetHold ...
func (e *StringSynthEnvelope) SetHold(hold bool) {
	e.hold = hold
}

// Process advances by one step and returns the level.
func (e *StringSynthEnvelope) Process(flags int) float32 {
	if flags&EnvelopeRisingEdge != 0 {
		e.start = e.value
		e.segment = segmentAttack
		e.phase = 0
	} else if flags&EnvelopeFallingEdge != 0 && e.segment == segmentSustain {
		e.start = e.value
		e.segment = segmentDecay
		e.phase = 0
	}

	switch e.segment {
	case segmentAttack:
		e.phase += e.attackIncrement
		if e.phase >= 1 {
			e.value = 1
			e.start = 1
			e.phase = 0
			if e.hold {
				e.segment = segmentSustain
			} else {
				e.segment = segmentDecay
			}
		} else {
			e.value = e.start + (1-e.start)*e.phase
		}
	case segmentSustain:
		e.value = 1
		if flags&EnvelopeGate == 0 || !e.hold {
			e.start = 1
			e.segment = segmentDecay
			e.phase = 0
		}
	case segmentDecay:
		e.phase += e.decayIncrement
		if e.phase >= 1 {
			e.segment = segmentDead
			e.value = 0
		} else {
			x := 1 - e.phase
			x *= x
			e.value = e.start * x * x
		}
	default:
		e.value = 0
	}
	return e.value
}

// Value ...
func (e *StringSynthEnvelope) Value() float32 {
	return e.value
}

// ----- Voice ----- //

// StringSynthVoice stacks one oscillator per octave.
type StringSynthVoice struct {
	oscillators [numHarmonics]StringSynthOscillator
}

// Init ...
func (v *StringSynthVoice) Init() {
	for i := range v.oscillators {
		v.oscillators[i].Init()
	}
}

// Render adds the voice to out. amplitudes holds a saw and a square gain
// per octave.
func (v *StringSynthVoice) Render(frequency float32, amplitudes *[numHarmonics * 2]float32, out []float32) {
	for i := range v.oscillators {
		v.oscillators[i].Render(frequency, amplitudes[2*i], amplitudes[2*i+1], out)
		frequency *= 2
	}
}

// ----- Part ----- //

var registrations = [11][numHarmonics * 2]float32{
	{1.0, 0.0, 0.0, 0.0, 0.0, 0.0},
	{1.0, 0.0, 0.5, 0.0, 0.0, 0.0},
	{1.0, 0.0, 1.0, 0.0, 0.0, 0.0},
	{1.0, 0.0, 1.0, 0.0, 0.5, 0.0},
	{0.5, 0.5, 1.0, 0.0, 1.0, 0.0},
	{0.0, 1.0, 0.5, 0.5, 1.0, 0.0},
	{0.0, 1.0, 0.0, 1.0, 0.5, 0.5},
	{0.0, 1.0, 0.0, 1.0, 0.0, 1.0},
	{0.0, 0.5, 0.0, 1.0, 0.0, 1.0},
	{0.0, 0.0, 0.0, 0.5, 0.0, 1.0},
	{0.0, 0.0, 0.0, 0.0, 0.0, 1.0},
}

// formants holds four formant frequencies in Hz for five vowels.
var formants = [5][numFormants]float32{
	{700, 1100, 2400, 3600},
	{270, 1800, 2500, 3300},
	{400, 1700, 2300, 3300},
	{400, 800, 2300, 3100},
	{300, 850, 2250, 2900},
}

var formantGains = [numFormants]float32{1.0, 0.6, 0.35, 0.2}

// ComputeRegistration blends the registration table at x in [0, 1] and
// normalizes the total gain.
func ComputeRegistration(x float32, amplitudes *[numHarmonics * 2]float32) {
	x = dsp.Clamp(x, 0, 0.9999) * float32(len(registrations)-1)
	integral, fractional := dsp.SplitIntegral(x)
	var total float32
	for i := range amplitudes {
		a := registrations[integral][i]
		b := registrations[integral+1][i]
		amplitudes[i] = a + (b-a)*fractional
		total += amplitudes[i]
	}
	if total > 0 {
		for i := range amplitudes {
			amplitudes[i] /= total
		}
	}
}

type voiceGroup struct {
	tonic float32
	chord int
}

// StringSynthPart is a paraphonic string machine. Each strum starts a chord
// on the next group of voices; the groups share the post filter and effect.
type StringSynthPart struct {
	voices    [stringSynthVoices]StringSynthVoice
	envelopes [stringSynthMaxPolyphony]StringSynthEnvelope
	groups    [stringSynthMaxPolyphony]voiceGroup

	polyphony        int
	activeGroup      int
	acquisitionDelay int
	fxType           FxType

	noteFilter     NoteFilter
	filters        [2]dsp.Svf
	formantFilters [2][numFormants]dsp.Svf
	limiter        Limiter

	fxBuffer []uint16
	reverb   fx.Reverb
	chorus   fx.Chorus
	ensemble fx.Ensemble
}

// NewStringSynthPart allocates a part using fxBuffer as effect memory. The
// buffer must hold at least fx.ReverbMemorySize samples.
func NewStringSynthPart(fxBuffer []uint16) *StringSynthPart {
	p := &StringSynthPart{}
	p.Init(fxBuffer)
	return p
}

// Init ...
func (p *StringSynthPart) Init(fxBuffer []uint16) {
	p.activeGroup = 0
	p.acquisitionDelay = 0
	p.polyphony = 1
	p.fxType = FxEnsemble
	for i := range p.voices {
		p.voices[i].Init()
	}
	for i := range p.envelopes {
		p.envelopes[i].Init()
		p.groups[i] = voiceGroup{tonic: 69}
	}
	for c := range p.filters {
		p.filters[c].Init()
		for f := range p.formantFilters[c] {
			p.formantFilters[c][f].Init()
		}
	}
	p.limiter.Init()
	p.noteFilter.Init(dsp.SampleRate/dsp.MaxBlockSize, 0.001, 0.005, 0.004)

	p.fxBuffer = fxBuffer
	p.reverb.Init(fxBuffer)
	p.chorus.Init(fxBuffer)
	p.ensemble.Init(fxBuffer)
}

// SetPolyphony sets the number of chords that can ring at once.
func (p *StringSynthPart) SetPolyphony(polyphony int) {
	polyphony = dsp.Clamp(polyphony, 1, stringSynthMaxPolyphony)
	if polyphony == p.polyphony {
		return
	}
	p.polyphony = polyphony
	p.activeGroup = 0
	for i := range p.envelopes {
		p.envelopes[i].Init()
	}
	for i := range p.voices {
		p.voices[i].Init()
	}
}

// Polyphony ...
func (p *StringSynthPart) Polyphony() int { return p.polyphony }

// SetFx switches the effect. The effect memory is shared, so it is cleared.
func (p *StringSynthPart) SetFx(fxType FxType) {
	if fxType < 0 || fxType >= NumFxTypes || fxType == p.fxType {
		return
	}
	if fxType.kind() != p.fxType.kind() {
		clear(p.fxBuffer)
	}
	p.fxType = fxType
}

// Fx ...
func (p *StringSynthPart) Fx() FxType { return p.fxType }

func (t FxType) kind() FxType {
	switch t {
	case FxFormant2:
		return FxFormant
	case FxReverb2:
		return FxReverb
	}
	return t
}

func (p *StringSynthPart) chordSize() int {
	return min(ChordSize, stringSynthVoices/p.polyphony)
}

func (p *StringSynthPart) processEnvelopes(shape float32, flags *[stringSynthMaxPolyphony]int, values *[stringSynthMaxPolyphony]float32) {
	const blockRate = dsp.SampleRate / dsp.MaxBlockSize
	var attackTime, decayTime float32
	if shape < 0.5 {
		attackTime = 0.002
		decayTime = 0.05 + shape*2*2
	} else {
		attackTime = 0.002 + (shape-0.5)*2
		decayTime = 2.05 + (shape-0.5)*2*6
	}
	hold := shape > 0.98
	for i := 0; i < p.polyphony; i++ {
		e := &p.envelopes[i]
		e.SetAD(1/(attackTime*blockRate), 1/(decayTime*blockRate))
		e.SetHold(hold)
		values[i] = e.Process(flags[i])
	}
}

// Process renders one block. Even chord notes go to out and odd ones to aux.
// in is unused; the string machine has no exciter.
func (p *StringSynthPart) Process(perf *PerformanceState, patch *Patch, in, out, aux []float32) {
	var flags [stringSynthMaxPolyphony]int
	p.noteFilter.Process(perf.Note, perf.Strum)
	if perf.Strum {
		p.groups[p.activeGroup].tonic = p.noteFilter.StableNote()
		flags[p.activeGroup] = EnvelopeFallingEdge
		p.activeGroup = (p.activeGroup + 1) % p.polyphony
		flags[p.activeGroup] = EnvelopeRisingEdge
		p.acquisitionDelay = acquisitionDelay
	}
	if p.acquisitionDelay > 0 {
		p.acquisitionDelay--
	} else {
		g := &p.groups[p.activeGroup]
		g.tonic = p.noteFilter.Note()
		g.chord = perf.Chord
		flags[p.activeGroup] |= EnvelopeGate
	}

	var envelopes [stringSynthMaxPolyphony]float32
	p.processEnvelopes(patch.Damping, &flags, &envelopes)

	var registration [numHarmonics * 2]float32
	ComputeRegistration(patch.Structure, &registration)

	vek32.Zeros_Into(out, len(out))
	vek32.Zeros_Into(aux, len(aux))
	chordSize := p.chordSize()
	level := 0.5 / float32(chordSize)
	for group := 0; group < p.polyphony; group++ {
		g := &p.groups[group]
		var amplitudes [numHarmonics * 2]float32
		for i := range amplitudes {
			amplitudes[i] = registration[i] * envelopes[group] * level
		}
		for n := 0; n < chordSize; n++ {
			note := g.tonic + ChordNote(g.chord, n) + perf.Tonic + perf.FM
			frequency := dsp.SemitonesToRatio(note-69) * dsp.A3
			destination := out
			if n&1 == 1 {
				destination = aux
			}
			p.voices[group*chordSize+n].Render(frequency, &amplitudes, destination)
		}
	}

	cutoff := 0.49 * dsp.SemitonesToRatio((patch.Brightness-1)*72)
	for c, buf := range [2][]float32{out, aux} {
		p.filters[c].SetFQ(cutoff, 0.7, dsp.FrequencyDirty)
		p.filters[c].ProcessBlock(buf, buf, dsp.LowPass)
	}

	p.processFx(patch.Position, out, aux)
	vek32.MulNumber_Inplace(aux, -1)
	p.limiter.Process(out, aux, 1)
}

func (p *StringSynthPart) processFx(position float32, out, aux []float32) {
	switch p.fxType {
	case FxFormant:
		p.processFormants(position, 1, 25, out, aux)
	case FxFormant2:
		p.processFormants(position, 1.1, 10, out, aux)
	case FxChorus:
		p.chorus.SetAmount(position)
		p.chorus.SetDepth(0.15 + 0.5*position)
		p.chorus.Process(out, aux)
	case FxEnsemble:
		p.ensemble.SetAmount(position * (2 - position))
		p.ensemble.SetDepth(0.2 + 0.8*position*position)
		p.ensemble.Process(out, aux)
	case FxReverb:
		p.reverb.SetAmount(0.1 + position*0.4)
		p.reverb.SetDiffusion(0.625)
		p.reverb.SetTime(0.5 + 0.3*position)
		p.reverb.SetInputGain(0.2)
		p.reverb.SetLp(0.7)
		p.reverb.Process(out, aux)
	case FxReverb2:
		p.reverb.SetAmount(0.3 + position*0.3)
		p.reverb.SetDiffusion(0.7)
		p.reverb.SetTime(0.8 + 0.19*position)
		p.reverb.SetInputGain(0.2)
		p.reverb.SetLp(0.3)
		p.reverb.Process(out, aux)
	}
}

func (p *StringSynthPart) processFormants(vowel, shift, resonance float32, out, aux []float32) {
	x := dsp.Clamp(vowel, 0, 0.9999) * float32(len(formants)-1)
	integral, fractional := dsp.SplitIntegral(x)
	for c, buf := range [2][]float32{out, aux} {
		filters := &p.formantFilters[c]
		for f := range filters {
			a := formants[integral][f]
			b := formants[integral+1][f]
			frequency := (a + (b-a)*fractional) * shift / dsp.SampleRate
			filters[f].SetFQ(min(frequency, 0.49), resonance, dsp.FrequencyDirty)
		}
		for i, s := range buf {
			var y float32
			for f := range filters {
				y += formantGains[f] * filters[f].Process(s, dsp.BandPassNormalized)
			}
			buf[i] = y * 2
		}
	}
}

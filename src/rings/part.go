package rings

import (
	"github.com/chewxy/math32"
	"github.com/viterin/vek/vek32"

	"github.com/jinjor/rings-resonator/src/dsp"
	"github.com/jinjor/rings-resonator/src/dsp/fx"
)

// MaxPolyphony is the maximum number of voices of a part.
const MaxPolyphony = 4

// NumStrings is the number of strings shared between the voices of the
// string models.
const NumStrings = MaxPolyphony * 2

var pingPattern = [8]int{1, 0, 2, 1, 0, 2, 1, 0}

var modelGains = [NumModels]float32{1.4, 1.0, 1.0, 0.7, 1.0, 0.7}

var lfoFrequencies = [NumStrings]float32{0.5, 0.4, 0.35, 0.23, 0.211, 0.2, 0.171, 0.155}

// voiceParams is what a render function needs to know about one voice.
type voiceParams struct {
	voice        int
	active       bool
	note         float32
	frequency    float32
	filterCutoff float32
}

type renderFunc func(p *Part, perf *PerformanceState, patch *Patch, v voiceParams)

// Part allocates notes to voices and renders them through one resonator
// model. Out and aux are two decorrelated views of the same sound.
type Part struct {
	bypass      bool
	dirty       bool
	model       ResonatorModel
	polyphony   int
	activeVoice int
	step        int
	note        [MaxPolyphony]float32

	excitationFilter [MaxPolyphony]dsp.Svf
	plucker          [MaxPolyphony]Plucker
	dcBlocker        [MaxPolyphony]dsp.DCBlocker
	resonator        [MaxPolyphony]Resonator
	fmVoice          [MaxPolyphony]FMVoice
	strings          [NumStrings]String
	lfo              [NumStrings]dsp.CosineOscillator

	noteFilter NoteFilter
	reverb     fx.Reverb
	limiter    Limiter

	resonatorInput   [dsp.MaxBlockSize]float32
	sympatheticInput [dsp.MaxBlockSize]float32
	noiseBurst       [dsp.MaxBlockSize]float32
	outBuffer        [dsp.MaxBlockSize]float32
	auxBuffer        [dsp.MaxBlockSize]float32

	size int
}

var renderFuncs [NumModels]renderFunc

func init() {
	renderFuncs = [NumModels]renderFunc{
		ModelModal:                      (*Part).renderModalVoice,
		ModelSympatheticString:          (*Part).renderStringVoice,
		ModelString:                     (*Part).renderStringVoice,
		ModelFMVoice:                    (*Part).renderFMVoice,
		ModelSympatheticStringQuantized: (*Part).renderStringVoice,
		ModelStringAndReverb:            (*Part).renderStringVoice,
	}
}

// NewPart allocates a part using reverbBuffer as the reverb memory. The
// buffer must hold at least fx.ReverbMemorySize samples.
func NewPart(reverbBuffer []uint16) *Part {
	p := &Part{}
	p.Init(reverbBuffer)
	return p
}

// Init resets the part to a single modal voice.
func (p *Part) Init(reverbBuffer []uint16) {
	p.activeVoice = 0
	p.step = 0
	p.note = [MaxPolyphony]float32{}
	p.bypass = false
	p.polyphony = 1
	p.model = ModelModal
	p.dirty = true

	for i := 0; i < MaxPolyphony; i++ {
		p.excitationFilter[i].Init()
		p.plucker[i].Init(uint32(0x21 + i*7919))
		p.dcBlocker[i].Init(1 - 10.0/dsp.SampleRate)
	}
	for i := 0; i < NumStrings; i++ {
		p.strings[i].Init(false, uint32(0x5eed+i*104729))
	}
	p.reverb.Init(reverbBuffer)
	p.limiter.Init()
	p.noteFilter.Init(dsp.SampleRate/dsp.MaxBlockSize, 0.001, 0.010, 0.004)
}

// SetBypass makes Process copy its input to both outputs.
func (p *Part) SetBypass(bypass bool) { p.bypass = bypass }

// Bypass ...
func (p *Part) Bypass() bool { return p.bypass }

// SetPolyphony takes effect at the next Process call.
func (p *Part) SetPolyphony(polyphony int) {
	polyphony = dsp.Clamp(polyphony, 1, MaxPolyphony)
	if polyphony != p.polyphony {
		p.polyphony = polyphony
		p.dirty = true
	}
}

// Polyphony ...
func (p *Part) Polyphony() int { return p.polyphony }

// SetModel takes effect at the next Process call.
func (p *Part) SetModel(model ResonatorModel) {
	if model < 0 || model >= NumModels {
		return
	}
	if model != p.model {
		p.model = model
		p.dirty = true
	}
}

// Model ...
func (p *Part) Model() ResonatorModel { return p.model }

// ActiveVoice is the voice the next excitation goes to.
func (p *Part) ActiveVoice() int { return p.activeVoice }

func (p *Part) configureResonators() {
	if !p.dirty {
		return
	}
	switch p.model {
	case ModelModal:
		resolution := 64/p.polyphony - 4
		for i := 0; i < p.polyphony; i++ {
			p.resonator[i].Init()
			p.resonator[i].SetResolution(resolution)
		}
	case ModelSympatheticString, ModelString, ModelSympatheticStringQuantized, ModelStringAndReverb:
		dispersion := p.model == ModelString || p.model == ModelStringAndReverb
		for i := 0; i < NumStrings; i++ {
			p.strings[i].Init(dispersion, uint32(0x5eed+i*104729))
			p.lfo[i].Init(lfoFrequencies[i]*dsp.MaxBlockSize/dsp.SampleRate, dsp.CosineApproximate)
		}
		for i := 0; i < p.polyphony; i++ {
			p.plucker[i].Init(uint32(0x21 + i*7919))
		}
	case ModelFMVoice:
		for i := 0; i < p.polyphony; i++ {
			p.fmVoice[i].Init()
		}
	}
	if p.activeVoice >= p.polyphony {
		p.activeVoice = 0
	}
	p.dirty = false
}

// Process renders one block. in, out and aux have the same length, at most
// dsp.MaxBlockSize.
func (p *Part) Process(perf *PerformanceState, patch *Patch, in, out, aux []float32) {
	if p.bypass {
		copy(out, in)
		copy(aux, in)
		return
	}
	p.configureResonators()
	p.size = len(in)

	p.noteFilter.Process(perf.Note, perf.Strum)
	if perf.Strum {
		p.note[p.activeVoice] = p.noteFilter.StableNote()
		if p.polyphony > 1 && p.polyphony&1 == 1 {
			p.activeVoice = pingPattern[p.step] % p.polyphony
			p.step = (p.step + 1) % len(pingPattern)
		} else {
			p.activeVoice++
			if p.activeVoice >= p.polyphony {
				p.activeVoice = 0
			}
		}
	}
	p.note[p.activeVoice] = p.noteFilter.Note()

	vek32.Zeros_Into(out, len(out))
	vek32.Zeros_Into(aux, len(aux))
	render := renderFuncs[p.model]
	cutoff := patch.Brightness * (2 - patch.Brightness)
	for voice := 0; voice < p.polyphony; voice++ {
		note := p.note[voice] + perf.Tonic + perf.FM
		frequency := dsp.SemitonesToRatio(note-69) * dsp.A3
		var cutoffRange float32
		if perf.InternalExciter {
			cutoffRange = frequency * dsp.SemitonesToRatio((cutoff-0.5)*96)
		} else {
			cutoffRange = 0.4 * dsp.SemitonesToRatio((cutoff-1)*108)
		}
		active := voice == p.activeVoice
		filterCutoff := float32(10.0 / dsp.SampleRate)
		if active {
			filterCutoff = cutoffRange
		}
		filterCutoff = min(filterCutoff, 0.499)
		filterQ := float32(0.8)
		if perf.InternalExciter {
			filterQ = 1.5
		}

		p.excitationFilter[voice].SetFQ(filterCutoff, filterQ, dsp.FrequencyDirty)
		input := p.resonatorInput[:p.size]
		if active {
			copy(input, in)
		} else {
			vek32.Zeros_Into(input, p.size)
		}

		render(p, perf, patch, voiceParams{
			voice:        voice,
			active:       active,
			note:         note,
			frequency:    frequency,
			filterCutoff: filterCutoff,
		})

		o := p.outBuffer[:p.size]
		a := p.auxBuffer[:p.size]
		if p.polyphony == 1 {
			vek32.Add_Inplace(out, o)
			vek32.Add_Inplace(aux, a)
		} else {
			destination := out
			if voice&1 == 1 {
				destination = aux
			}
			vek32.Sub_Inplace(o, a)
			vek32.Add_Inplace(destination, o)
		}
	}

	if p.model == ModelStringAndReverb {
		for i := range out {
			l, r := out[i], aux[i]
			out[i] = l*patch.Position + (1-patch.Position)*r
			aux[i] = r*patch.Position + (1-patch.Position)*l
		}
		p.reverb.SetAmount(0.1 + patch.Damping*0.5)
		p.reverb.SetDiffusion(0.625)
		p.reverb.SetTime(0.35 + 0.63*patch.Damping)
		p.reverb.SetInputGain(0.2)
		p.reverb.SetLp(0.3 + patch.Brightness*0.6)
		p.reverb.Process(out, aux)
		vek32.MulNumber_Inplace(aux, -1)
	}

	p.limiter.Process(out, aux, modelGains[p.model])
}

// ----- Renderers ----- //

func (p *Part) renderModalVoice(perf *PerformanceState, patch *Patch, v voiceParams) {
	input := p.resonatorInput[:p.size]
	if perf.InternalExciter && v.active && perf.Strum {
		input[0] += 0.25 * dsp.SemitonesToRatio(v.filterCutoff*v.filterCutoff*24) / v.filterCutoff
	}
	p.excitationFilter[v.voice].ProcessBlock(input, input, dsp.LowPass)

	r := &p.resonator[v.voice]
	r.SetFrequency(v.frequency)
	r.SetStructure(patch.Structure)
	r.SetBrightness(patch.Brightness)
	r.SetPosition(patch.Position)
	r.SetDamping(patch.Damping)
	r.Process(input, p.outBuffer[:p.size], p.auxBuffer[:p.size])
}

func (p *Part) renderFMVoice(perf *PerformanceState, patch *Patch, v voiceParams) {
	fm := &p.fmVoice[v.voice]
	if perf.InternalExciter && v.active && perf.Strum {
		fm.TriggerInternalEnvelope()
	}
	fm.SetFrequency(v.frequency)
	fm.SetRatio(patch.Structure)
	fm.SetBrightness(patch.Brightness)
	fm.SetFeedbackAmount(patch.Position)
	fm.SetPosition(0)
	fm.SetDamping(patch.Damping)
	fm.Process(p.resonatorInput[:p.size], p.outBuffer[:p.size], p.auxBuffer[:p.size])
}

func (p *Part) renderStringVoice(perf *PerformanceState, patch *Patch, v voiceParams) {
	size := p.size
	input := p.resonatorInput[:size]

	numStrings := 1
	var frequencies [NumStrings]float32
	switch p.model {
	case ModelSympatheticString, ModelSympatheticStringQuantized:
		numStrings = NumStrings / p.polyphony
		var notes [NumStrings]float32
		if p.model == ModelSympatheticString {
			ComputeSympatheticStringsNotes(perf.Tonic+perf.FM, v.note, patch.Structure, notes[:numStrings])
		} else {
			for i := 0; i < numStrings; i++ {
				notes[i] = v.note + ChordNote(perf.Chord, i)
			}
		}
		for i := 0; i < numStrings; i++ {
			frequencies[i] = dsp.SemitonesToRatio(notes[i]-69) * dsp.A3
		}
	default:
		frequencies[0] = v.frequency
	}

	if v.active {
		vek32.MulNumber_Inplace(input, 1/math32.Sqrt(float32(numStrings)*2))
	}
	p.excitationFilter[v.voice].ProcessBlock(input, input, dsp.LowPass)

	if perf.InternalExciter {
		if v.active && perf.Strum {
			p.plucker[v.voice].Trigger(v.frequency, v.filterCutoff*8, patch.Position)
		}
		burst := p.noiseBurst[:size]
		p.plucker[v.voice].Process(burst)
		vek32.Add_Inplace(input, burst)
	}
	p.dcBlocker[v.voice].Process(input)

	out := p.outBuffer[:size]
	aux := p.auxBuffer[:size]
	vek32.Zeros_Into(out, size)
	vek32.Zeros_Into(aux, size)

	var dispersion float32
	switch s := patch.Structure; {
	case s < 0.24:
		dispersion = (s - 0.24) * 4.166
	case s > 0.26:
		dispersion = (s - 0.26) * 1.35135
	}

	for str := 0; str < numStrings; str++ {
		i := v.voice + str*p.polyphony
		s := &p.strings[i]
		lfoValue := p.lfo[i].Next()

		brightness := patch.Brightness
		damping := patch.Damping
		position := patch.Position
		glide := float32(1)
		stringIndex := float32(str) / float32(numStrings)
		in := input

		if p.model == ModelStringAndReverb {
			damping *= 2 - damping
		}

		// With the internal exciter, string 0 is plucked and the others only
		// resonate with it.
		if str > 0 && perf.InternalExciter {
			brightness *= 2 - brightness
			brightness *= 2 - brightness
			damping = 0.7 + patch.Damping*0.27
			amount := (0.5 - math32.Abs(0.5-patch.Position)) * 0.9
			position = patch.Position + lfoValue*amount
			glide = dsp.SemitonesToRatio((brightness - 1) * 36)
			in = p.sympatheticInput[:size]
		}

		s.SetDispersion(dispersion)
		s.SetFrequency(frequencies[str], glide)
		s.SetBrightness(brightness)
		s.SetPosition(position)
		s.SetDamping(damping + stringIndex*(0.95-damping))
		s.Process(in, out, aux)

		if str == 0 {
			gain := 0.2 / float32(numStrings)
			for j := range out {
				p.sympatheticInput[j] = gain * (out[j] - aux[j])
			}
		}
	}
}

// ComputeSympatheticStringsNotes fills destination with the note of the
// plucked string followed by the notes of the strings resonating with it.
// parameter slides a window over a series of octaves and fifths around note.
func ComputeSympatheticStringsNotes(tonic, note, parameter float32, destination []float32) {
	notes := [9]float32{
		tonic,
		note - 12,
		note - 7.01955,
		note,
		note + 7.01955,
		note + 12,
		note + 19.01955,
		note + 24,
		note + 24,
	}
	detunings := [4]float32{0.013, 0.011, 0.007, 0.017}

	n := len(destination)
	if n == 0 {
		return
	}
	destination[0] = note
	if n == 1 {
		return
	}
	span := float32(len(notes) + 1 - n)
	integral, fractional := dsp.SplitIntegral(dsp.Clamp(parameter, 0, 0.9999) * span)
	fractional = dsp.Squash(fractional)
	for i := 1; i < n; i++ {
		k := min(integral+i-1, len(notes)-2)
		a := notes[k]
		b := notes[k+1]
		detune := detunings[i&3]
		if i&1 == 1 {
			detune = -detune
		}
		destination[i] = a + (b-a)*fractional + detune
	}
}

package rings

import (
	"github.com/chewxy/math32"

	"github.com/jinjor/rings-resonator/src/dsp"
)

// FMVoice is a two-operator FM pair whose index and level follow the
// envelope of the exciter, or an internal decay when strummed.
type FMVoice struct {
	carrierFrequency float32
	ratio            float32
	brightness       float32
	damping          float32
	position         float32
	feedbackAmount   float32

	previousCarrierFrequency   float32
	previousModulatorFrequency float32
	previousBrightness         float32
	previousFeedbackAmount     float32

	amplitudeEnvelope  float32
	brightnessEnvelope float32
	gain               float32
	fmAmount           float32
	carrierPhase       uint32
	modulatorPhase     uint32
	previousSample     float32

	follower Follower
}

// Init ...
func (v *FMVoice) Init() {
	v.SetFrequency(220.0 / dsp.SampleRate)
	v.SetRatio(0.5)
	v.SetBrightness(0.5)
	v.SetDamping(0.5)
	v.SetPosition(0.5)
	v.SetFeedbackAmount(0)

	v.previousCarrierFrequency = v.carrierFrequency
	v.previousModulatorFrequency = v.carrierFrequency
	v.previousBrightness = v.brightness
	v.previousFeedbackAmount = v.feedbackAmount

	v.amplitudeEnvelope = 0
	v.brightnessEnvelope = 0
	v.carrierPhase = 0
	v.modulatorPhase = 0
	v.gain = 0
	v.fmAmount = 0
	v.previousSample = 0
	v.follower.Init(8.0/dsp.SampleRate, 160.0/dsp.SampleRate, 1600.0/dsp.SampleRate)
}

// SetFrequency sets the normalized carrier frequency.
func (v *FMVoice) SetFrequency(frequency float32) { v.carrierFrequency = frequency }

// SetRatio picks the modulator ratio in the quantizer table.
func (v *FMVoice) SetRatio(ratio float32) { v.ratio = ratio }

// SetBrightness sets the modulation index.
func (v *FMVoice) SetBrightness(brightness float32) { v.brightness = brightness }

// SetDamping ...
func (v *FMVoice) SetDamping(damping float32) { v.damping = damping }

// SetPosition ...
func (v *FMVoice) SetPosition(position float32) { v.position = position }

// SetFeedbackAmount takes values in [0, 1]. Below 0.5 the modulator phase is
// fed back; above, its output.
func (v *FMVoice) SetFeedbackAmount(feedback float32) { v.feedbackAmount = feedback }

// TriggerInternalEnvelope opens both envelopes.
func (v *FMVoice) TriggerInternalEnvelope() {
	v.amplitudeEnvelope = 1
	v.brightnessEnvelope = 1
}

func sineFm(phase uint32, fm float32) float32 {
	fm = dsp.Clamp(fm, -3.999, 3.999)
	phase += uint32((fm+4)*536870912) << 3
	integral := phase >> 20
	fractional := float32(phase<<12) / 4294967296
	a := dsp.SineTable[integral]
	b := dsp.SineTable[integral+1]
	return a + (b-a)*fractional
}

func phaseIncrement(frequency float32) uint32 {
	return uint32(int64(frequency * 4294967296))
}

// Process writes the carrier plus half the modulator into out and the
// modulator alone into aux.
func (v *FMVoice) Process(in, out, aux []float32) {
	size := len(in)
	envelopeAmount := float32(1)
	if v.damping >= 0.9 {
		envelopeAmount = (1 - v.damping) * 10
	}
	amplitudeRt60 := 0.1 * dsp.SemitonesToRatio(v.damping*96) * dsp.SampleRate
	amplitudeDecay := 1 - math32.Pow(0.001, 1/amplitudeRt60)
	brightnessRt60 := 0.1 * dsp.SemitonesToRatio(v.damping*84) * dsp.SampleRate
	brightnessDecay := 1 - math32.Pow(0.001, 1/brightnessRt60)

	ratio := dsp.Interpolate(dsp.FMFrequencyQuantizer, v.ratio, 128)
	modulatorFrequency := min(v.carrierFrequency*dsp.SemitonesToRatio(ratio), 0.5)
	feedback := (v.feedbackAmount - 0.5) * 2

	carrierIncrement := dsp.NewParameterInterpolator(&v.previousCarrierFrequency, v.carrierFrequency, size)
	modulatorIncrement := dsp.NewParameterInterpolator(&v.previousModulatorFrequency, modulatorFrequency, size)
	brightness := dsp.NewParameterInterpolator(&v.previousBrightness, v.brightness, size)
	feedbackAmount := dsp.NewParameterInterpolator(&v.previousFeedbackAmount, feedback, size)

	carrierPhase := v.carrierPhase
	modulatorPhase := v.modulatorPhase
	previousSample := v.previousSample

	for i, x := range in {
		amplitude, centroid := v.follower.Process(x)
		centroid *= 2 * amplitude * (2 - amplitude)
		dsp.Slope(&v.amplitudeEnvelope, amplitude, 0.05, amplitudeDecay)
		dsp.Slope(&v.brightnessEnvelope, centroid, 0.01, brightnessDecay)

		b := brightness.Next()
		b *= b
		fmAmountMin, fmAmountMax := float32(0), b
		if b >= 0.5 {
			fmAmountMin, fmAmountMax = b-0.5, 0.5
		}
		fmEnvelope := 0.5 + envelopeAmount*(v.brightnessEnvelope-0.5)
		fmAmount := (fmAmountMin + fmAmountMax*fmEnvelope) * 2
		dsp.Slope(&v.fmAmount, fmAmount, 0.05, 0.01)

		fb := feedbackAmount.Next()
		var modulatorFeedback, phaseFeedback float32
		if fb > 0 {
			modulatorFeedback = 0.25 * fb * fb
		} else {
			phaseFeedback = 0.5 * fb * fb
		}
		modulatorPhase += phaseIncrement(modulatorIncrement.Next() * (1 + previousSample*phaseFeedback))
		carrierPhase += phaseIncrement(carrierIncrement.Next())

		modulator := sineFm(modulatorPhase, modulatorFeedback*previousSample)
		carrier := sineFm(carrierPhase, v.fmAmount*modulator)
		dsp.Lag(&previousSample, carrier, 0.1)

		gain := 1 + envelopeAmount*(v.amplitudeEnvelope-1)
		dsp.Lag(&v.gain, gain, 0.005)

		out[i] = (carrier + 0.5*modulator) * v.gain
		aux[i] = 0.5 * modulator * v.gain
	}
	v.carrierPhase = carrierPhase
	v.modulatorPhase = modulatorPhase
	v.previousSample = previousSample

	carrierIncrement.Done()
	modulatorIncrement.Done()
	brightness.Done()
	feedbackAmount.Done()
}

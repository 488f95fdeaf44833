package rings

import (
	"github.com/chewxy/math32"

	"github.com/jinjor/rings-resonator/src/dsp"
)

const (
	stringDelaySize   = 4096
	stringStretchSize = 1024
)

// String is a waveguide string: a delay line closed by a damping FIR and a
// low-pass, with an optional allpass stretch for dispersion and a
// nonlinear bridge.
type String struct {
	dispersionEnabled bool

	frequency  float32
	dispersion float32
	brightness float32
	damping    float32
	position   float32

	delay                       float32
	clampedPosition             float32
	previousDispersion          float32
	previousDampingCompensation float32

	line    *dsp.DelayLine
	stretch *dsp.DelayLine
	fir     dsp.DampingFilter
	iir     dsp.Svf
	dc      dsp.DCBlocker
	random  dsp.Random

	dispersionNoise float32
	curvedBridge    float32
	srcPhase        float32
	outSample       [2]float32
	auxSample       [2]float32
}

// Init allocates the delay lines on first use and clears them afterwards. dispersion enables the stretch allpass,
// the noise modulation and the curved bridge.
func (s *String) Init(dispersion bool, seed uint32) {
	s.dispersionEnabled = dispersion
	if s.line == nil {
		s.line = dsp.NewDelayLine(stringDelaySize)
		s.stretch = dsp.NewDelayLine(stringStretchSize)
	} else {
		s.line.Reset()
		s.stretch.Reset()
	}
	s.fir.Init()
	s.iir.Init()
	s.random.Seed(seed)
	s.dc.Init(1 - 20.0/dsp.SampleRate)

	s.SetFrequency(220.0/dsp.SampleRate, 1)
	s.SetDispersion(0.25)
	s.SetBrightness(0.5)
	s.SetDamping(0.3)
	s.SetPosition(0.8)

	s.delay = 1 / s.frequency
	s.clampedPosition = 0
	s.previousDispersion = 0
	s.previousDampingCompensation = 0
	s.dispersionNoise = 0
	s.curvedBridge = 0
	s.srcPhase = 0
	s.outSample = [2]float32{}
	s.auxSample = [2]float32{}
}

// Reset clears the delay lines and the filters.
func (s *String) Reset() {
	s.line.Reset()
	s.stretch.Reset()
	s.iir.Reset()
	s.fir.Init()
	s.dc.Init(1 - 20.0/dsp.SampleRate)
	s.dispersionNoise = 0
	s.curvedBridge = 0
	s.outSample = [2]float32{}
	s.auxSample = [2]float32{}
}

// SetFrequency glides the normalized frequency toward frequency. A glide of
// 1 jumps.
func (s *String) SetFrequency(frequency, glide float32) {
	s.frequency += glide * (frequency - s.frequency)
}

// SetDispersion takes values in [-1, 1]. Negative values curve the bridge,
// positive ones stretch the partials.
func (s *String) SetDispersion(dispersion float32) { s.dispersion = dispersion }

// SetBrightness ...
func (s *String) SetBrightness(brightness float32) { s.brightness = brightness }

// SetDamping ...
func (s *String) SetDamping(damping float32) { s.damping = damping }

// SetPosition sets the pickup position of aux.
func (s *String) SetPosition(position float32) { s.position = position }

// Process adds the string output to out and the comb pickup to aux.
func (s *String) Process(in, out, aux []float32) {
	size := len(in)
	delay := dsp.Clamp(1/s.frequency, 4, stringDelaySize-4)

	// Below ~11.7Hz the line is too short. The loop then runs slower than the
	// output and a linear interpolator fills in.
	srcRatio := delay * s.frequency
	if srcRatio >= 0.9999 {
		s.srcPhase = 1
		srcRatio = 1
	}

	clampedPosition := 0.5 - 0.98*math32.Abs(s.position-0.5)

	delayModulation := dsp.NewParameterInterpolator(&s.delay, delay, size)
	positionModulation := dsp.NewParameterInterpolator(&s.clampedPosition, clampedPosition, size)
	dispersionModulation := dsp.NewParameterInterpolator(&s.previousDispersion, s.dispersion, size)

	lfDamping := s.damping * (2 - s.damping)
	rt60 := 0.07 * dsp.SemitonesToRatio(lfDamping*96) * dsp.SampleRate
	rt60Base := max(-120*delay/srcRatio/rt60, -127)
	dampingCoefficient := dsp.SemitonesToRatio(rt60Base)
	brightness := s.brightness * s.brightness
	noiseFilter := dsp.SemitonesToRatio((s.brightness - 1) * 48)
	dampingCutoff := min(24+s.damping*s.damping*48+s.brightness*s.brightness*24, 84)
	dampingF := min(s.frequency*dsp.SemitonesToRatio(dampingCutoff), 0.499)

	if s.damping >= 0.95 {
		toInfinite := 20 * (s.damping - 0.95)
		dampingCoefficient += toInfinite * (1 - dampingCoefficient)
		brightness += toInfinite * (1 - brightness)
		dampingF += toInfinite * (0.4999 - dampingF)
		dampingCutoff += toInfinite * (128 - dampingCutoff)
	}

	s.fir.Configure(dampingCoefficient, brightness, size)
	s.iir.SetFQ(dampingF, 0.5, dsp.FrequencyAccurate)
	compensation := dsp.NewParameterInterpolator(&s.previousDampingCompensation, 1-dsp.SvfShift(dampingCutoff), size)

	for i := range in {
		s.srcPhase += srcRatio
		if s.srcPhase > 1 {
			s.srcPhase -= 1

			d := delayModulation.Next()
			combDelay := d * positionModulation.Next()
			d *= compensation.Next()
			d -= 1

			var x float32
			if s.dispersionEnabled {
				x = s.readDispersed(d, noiseFilter, dispersionModulation.Next())
			} else {
				x = s.line.ReadHermite(d)
			}
			x += in[i]
			x = s.fir.Process(x)
			x = s.iir.Process(x, dsp.LowPass)
			s.line.Write(x)

			s.outSample[1] = s.outSample[0]
			s.auxSample[1] = s.auxSample[0]
			s.outSample[0] = x
			s.auxSample[0] = s.line.Read(combDelay)
		}
		out[i] += dsp.Crossfade(s.outSample[1], s.outSample[0], s.srcPhase)
		aux[i] += dsp.Crossfade(s.auxSample[1], s.auxSample[0], s.srcPhase)
	}
	delayModulation.Done()
	positionModulation.Done()
	dispersionModulation.Done()
	compensation.Done()
}

func (s *String) readDispersed(delay, noiseFilter, dispersion float32) float32 {
	noise := 2*s.random.Float() - 1
	noise *= 1 / (0.2 + noiseFilter)
	s.dispersionNoise += noiseFilter * (noise - s.dispersionNoise)

	var stretchPoint, noiseAmount, bridgeCurving float32
	if dispersion > 0 {
		stretchPoint = dispersion * (2 - dispersion) * 0.475
	}
	if dispersion > 0.75 {
		noiseAmount = 4 * (dispersion - 0.75)
	}
	if dispersion < 0 {
		bridgeCurving = -dispersion
	}
	noiseAmount = noiseAmount * noiseAmount * 0.025
	acBlockingAmount := bridgeCurving
	bridgeCurving = bridgeCurving * bridgeCurving * 0.01
	apGain := -0.618 * dispersion / (0.15 + math32.Abs(dispersion))

	delayFM := 1 + s.dispersionNoise*noiseAmount - s.curvedBridge*bridgeCurving
	delay *= delayFM

	apDelay := delay * stretchPoint
	mainDelay := delay - apDelay
	var x float32
	if apDelay >= 4 && mainDelay >= 4 {
		x = s.line.ReadHermite(mainDelay)
		x = s.stretch.AllpassFrac(x, apDelay, apGain)
	} else {
		x = s.line.ReadHermite(delay)
	}
	ac := s.dc.Tick(x)
	x += acBlockingAmount * (ac - x)

	value := math32.Abs(x) - 0.025
	sign := float32(-1.5)
	if x > 0 {
		sign = 1
	}
	s.curvedBridge = (math32.Abs(value) + value) * sign
	return x
}

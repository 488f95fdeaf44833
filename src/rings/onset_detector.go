package rings

import (
	"github.com/chewxy/math32"

	"github.com/jinjor/rings-resonator/src/dsp"
)

// ----- ZScorer ----- //

// ZScorer tracks the running mean and variance of a signal.
type ZScorer struct {
	coefficient float32
	mean        float32
	variance    float32
}

// Init ...
func (z *ZScorer) Init(cutoff float32) {
	z.coefficient = cutoff
	z.mean = 0
	z.variance = 0
}

func (z *ZScorer) update(sample float32) float32 {
	centered := sample - z.mean
	z.mean += z.coefficient * centered
	z.variance += z.coefficient * (centered*centered - z.variance)
	return centered
}

// Test reports whether sample lies more than threshold deviations above the
// mean, and more than absoluteThreshold above it.
func (z *ZScorer) Test(sample, threshold, absoluteThreshold float32) bool {
	value := z.update(sample)
	return value > math32.Sqrt(z.variance)*threshold && value > absoluteThreshold
}

// ----- Compressor ----- //

// Compressor is an automatic gain control.
type Compressor struct {
	attack float32
	decay  float32
	level  float32
	skew   float32
}

// Init ...
func (c *Compressor) Init(attack, decay, maxGain float32) {
	c.attack = attack
	c.decay = decay
	c.level = 0
	c.skew = 1 / maxGain
}

// Process ...
func (c *Compressor) Process(in, out []float32) {
	level := c.level
	for i, x := range in {
		dsp.Slope(&level, math32.Abs(x), c.attack, c.decay)
		out[i] = x / (c.skew + level)
	}
	c.level = level
}

// ----- Onset Detector ----- //

// OnsetDetector finds note onsets in an audio signal from the positive
// derivative of the energy in three bands.
type OnsetDetector struct {
	compressor    Compressor
	lowMidFilter  dsp.NaiveSvf
	midHighFilter dsp.NaiveSvf

	attack   [3]float32
	decay    [3]float32
	envelope [3]float32
	energy   [3]float32
	bands    [3][dsp.MaxBlockSize]float32

	zDf              ZScorer
	inhibitThreshold float32
	inhibitDecay     float32
	inhibitTime      int
	inhibitCounter   int
	onsetDf          float32
}

// Init takes the crossover frequencies normalized to the audio rate, the rate
// at which Process is called and the minimum time between onsets in seconds.
func (o *OnsetDetector) Init(low, lowMid, midHigh, decimatedRate, ioiTime float32) {
	ioiF := 1 / (ioiTime * decimatedRate)
	o.compressor.Init(ioiF*10, ioiF*0.05, 40)

	o.lowMidFilter.Init()
	o.midHighFilter.Init()
	o.lowMidFilter.SetFQ(lowMid, 0.5, dsp.FrequencyDirty)
	o.midHighFilter.SetFQ(midHigh, 0.5, dsp.FrequencyDirty)

	for i := range o.attack {
		o.attack[i] = lowMid
		o.decay[i] = low * 0.25
		o.envelope[i] = 0
		o.energy[i] = 0
	}
	o.zDf.Init(ioiF * 0.05)
	o.inhibitTime = int(ioiTime * decimatedRate)
	o.inhibitDecay = 1 / (ioiTime * decimatedRate)
	o.inhibitThreshold = 0
	o.inhibitCounter = 0
	o.onsetDf = 0
}

// Process analyzes one block and reports whether it holds an onset.
func (o *OnsetDetector) Process(samples []float32) bool {
	size := len(samples)
	b0 := o.bands[0][:size]
	b1 := o.bands[1][:size]
	b2 := o.bands[2][:size]
	o.compressor.Process(samples, b0)
	o.midHighFilter.Split(b0, b1, b2)
	o.lowMidFilter.Split(b1, b0, b1)

	var onsetDf, totalEnergy float32
	for i := range o.bands {
		s := o.bands[i][:size]
		var energy float32
		envelope := o.envelope[i]
		increment := 4 >> i
		for j := 0; j < size; j += increment {
			dsp.Slope(&envelope, s[j]*s[j], o.attack[i], o.decay[i])
			energy += envelope
		}
		energy = math32.Sqrt(energy)
		o.envelope[i] = envelope
		derivative := energy - o.energy[i]
		onsetDf += derivative + math32.Abs(derivative)
		o.energy[i] = energy
		totalEnergy += energy
	}

	dsp.Lag(&o.onsetDf, onsetDf, 0.05)
	outlier := o.zDf.Test(o.onsetDf, 1, 0.01)
	exceedsThreshold := totalEnergy >= o.inhibitThreshold
	hasOnset := outlier && exceedsThreshold && o.inhibitCounter == 0

	if hasOnset {
		o.inhibitThreshold = totalEnergy * 1.5
		o.inhibitCounter = o.inhibitTime
	} else {
		o.inhibitThreshold -= o.inhibitDecay * o.inhibitThreshold
		if o.inhibitCounter > 0 {
			o.inhibitCounter--
		}
	}
	return hasOnset
}

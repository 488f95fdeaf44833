package rings

import "github.com/jinjor/rings-resonator/src/dsp"

const pluckerCombSize = 256

// Plucker is the internal exciter of the string models: a burst of noise
// through a comb tuned to the plucking position, then a low-pass.
type Plucker struct {
	svf        dsp.Svf
	comb       *dsp.DelayLine
	random     dsp.Random
	remaining  int
	combPeriod int
	gain       float32
}

// Init ...
func (p *Plucker) Init(seed uint32) {
	p.svf.Init()
	if p.comb == nil {
		p.comb = dsp.NewDelayLine(pluckerCombSize)
	} else {
		p.comb.Reset()
	}
	p.random.Seed(seed)
	p.remaining = 0
	p.combPeriod = 2
}

// Trigger starts a burst. frequency and cutoff are normalized; position is
// the plucking point along the string in [0, 1].
func (p *Plucker) Trigger(frequency, cutoff, position float32) {
	ratio := position*0.9 + 0.05
	period := ratio / frequency
	p.remaining = int(period)
	for period >= pluckerCombSize-1 {
		period *= 0.5
	}
	p.combPeriod = max(int(period), 1)
	p.gain = (1 - position) * 0.8
	p.svf.SetFQ(min(cutoff, 0.499), 1, dsp.FrequencyDirty)
}

// Process writes the excitation into out. Once the burst is over it writes
// the decaying tail of the comb.
func (p *Plucker) Process(out []float32) {
	for i := range out {
		var noise float32
		if p.remaining > 0 {
			p.remaining--
			noise = 2*p.random.Float() - 1
		}
		delayed := p.comb.ReadAt(p.combPeriod)
		combed := noise + delayed*p.gain
		p.comb.Write(combed)
		out[i] = p.svf.Process(combed, dsp.LowPass)
	}
}

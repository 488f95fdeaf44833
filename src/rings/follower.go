package rings

import (
	"github.com/chewxy/math32"

	"github.com/jinjor/rings-resonator/src/dsp"
)

// ----- Band Follower ----- //

type bandFollower struct {
	energy float32
	attack float32
	decay  float32
}

func (b *bandFollower) process(x float32) float32 {
	dsp.Slope(&b.energy, x*x, b.attack, b.decay)
	return b.energy
}

// ----- Follower ----- //

// Follower splits its input in three bands and tracks the overall envelope and
// the spectral centroid. The FM voice uses it to follow an external exciter.
type Follower struct {
	lowMid   dsp.NaiveSvf
	midHigh  dsp.NaiveSvf
	bands    [3]bandFollower
	envelope float32
	centroid float32
}

// Init takes the two crossover frequencies and the top of the analysis range,
// all normalized to the sample rate.
func (f *Follower) Init(low, lowMid, midHigh float32) {
	f.lowMid.Init()
	f.midHigh.Init()
	f.lowMid.SetFQ(lowMid, 0.5, dsp.FrequencyDirty)
	f.midHigh.SetFQ(midHigh, 0.5, dsp.FrequencyDirty)

	attack := [3]float32{
		lowMid,
		math32.Sqrt(lowMid * midHigh),
		math32.Sqrt(midHigh * 0.5),
	}
	decay := [3]float32{
		math32.Sqrt(lowMid * low),
		lowMid,
		math32.Sqrt(midHigh * lowMid),
	}
	for i := range f.bands {
		f.bands[i] = bandFollower{attack: attack[i] * 2 * 3.14159, decay: decay[i] * 2 * 3.14159}
	}
	f.envelope = 0
	f.centroid = 0
}

// Process returns the envelope and the centroid after one sample.
func (f *Follower) Process(x float32) (envelope, centroid float32) {
	high := f.midHigh.Process(x, dsp.HighPass)
	mid := f.lowMid.Process(f.midHigh.Lp(), dsp.HighPass)
	low := f.lowMid.Lp()

	lowEnergy := f.bands[0].process(low)
	midEnergy := f.bands[1].process(mid)
	highEnergy := f.bands[2].process(high)

	total := lowEnergy + midEnergy + highEnergy
	var c float32
	if total > 1e-12 {
		c = (0.5*midEnergy + highEnergy) / total
	}
	dsp.Slope(&f.centroid, c, 0.05, 0.001)
	f.envelope = math32.Sqrt(total)
	return f.envelope, f.centroid
}

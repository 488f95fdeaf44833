package rings

import (
	"github.com/chewxy/math32"

	"github.com/jinjor/rings-resonator/src/dsp"
)

// Limiter tracks the stereo peak and pulls the gain down when it exceeds 1.
type Limiter struct {
	peak float32
}

// Init ...
func (l *Limiter) Init() {
	l.peak = 0.5
}

// Process applies preGain and limits left and right in place.
func (l *Limiter) Process(left, right []float32, preGain float32) {
	for i := range left {
		lPre := left[i] * preGain
		rPre := right[i] * preGain
		peak := max(math32.Abs(lPre), math32.Abs(rPre), math32.Abs(rPre-lPre))
		dsp.Slope(&l.peak, peak, 0.05, 0.00002)
		gain := float32(1)
		if l.peak > 1 {
			gain = 1 / l.peak
		}
		left[i] = dsp.SoftLimit(lPre * gain * 0.8)
		right[i] = dsp.SoftLimit(rPre * gain * 0.8)
	}
}

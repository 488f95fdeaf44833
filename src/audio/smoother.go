package audio

import (
	"github.com/chewxy/math32"
)

// ----- Param Smoother ----- //

// ParamSmoother moves a value exponentially toward its target. The value is
// 63% closer to the target after one time constant.
type ParamSmoother struct {
	value        float32
	target       float32
	samplesPerTC float32
	endThreshold float32
}

// Init sets the time constant in seconds and snaps the value to initial.
func (s *ParamSmoother) Init(timeConstant, sampleRate, initial float32) {
	s.samplesPerTC = max(timeConstant*sampleRate, 1)
	s.endThreshold = 1e-6
	s.Snap(initial)
}

// SetTarget ...
func (s *ParamSmoother) SetTarget(target float32) { s.target = target }

// Target ...
func (s *ParamSmoother) Target() float32 { return s.target }

// Value ...
func (s *ParamSmoother) Value() float32 { return s.value }

// Snap jumps to value and stops moving.
func (s *ParamSmoother) Snap(value float32) {
	s.value = value
	s.target = value
}

// Advance moves the value by n samples and returns it.
func (s *ParamSmoother) Advance(n int) float32 {
	if s.value == s.target {
		return s.value
	}
	s.value = approach(s.value, s.target, float32(n)/s.samplesPerTC)
	if math32.Abs(s.value-s.target) < s.endThreshold {
		s.value = s.target
	}
	return s.value
}

// approach returns where a parameter heading from current to target ends up
// after elapsed time constants.
func approach(current, target, elapsed float32) float32 {
	return target + (current-target)*math32.Exp(-elapsed)
}

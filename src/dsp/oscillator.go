package dsp

import "github.com/chewxy/math32"

// ----- Cosine Oscillator ----- //

// CosineMode selects how the recurrence coefficient is computed.
type CosineMode int

// CosineMode ...
const (
	CosineApproximate CosineMode = iota
	CosineExact
)

// CosineOscillator generates 0.5+0.5*cos(2*pi*f*n) with a two-multiply
// recurrence.
type CosineOscillator struct {
	y1               float32
	y0               float32
	iirCoefficient   float32
	initialAmplitude float32
}

// Init sets the normalized frequency and restarts the oscillator.
func (c *CosineOscillator) Init(frequency float32, mode CosineMode) {
	if mode == CosineApproximate {
		c.initApproximate(frequency)
	} else {
		c.iirCoefficient = 2 * math32.Cos(2*pi*frequency)
		c.initialAmplitude = c.iirCoefficient * 0.25
	}
	c.Start()
}

func (c *CosineOscillator) initApproximate(frequency float32) {
	sign := float32(16)
	frequency -= 0.25
	if frequency < 0 {
		frequency = -frequency
	} else if frequency > 0.5 {
		frequency -= 0.5
	} else {
		sign = -16
	}
	c.iirCoefficient = sign * frequency * (1 - 2*frequency)
	c.initialAmplitude = c.iirCoefficient * 0.25
}

// Start rewinds the phase.
func (c *CosineOscillator) Start() {
	c.y1 = c.initialAmplitude
	c.y0 = 0.5
}

// Value is the current output without advancing.
func (c *CosineOscillator) Value() float32 {
	return c.y1 + 0.5
}

// Next advances by one sample.
func (c *CosineOscillator) Next() float32 {
	temp := c.y0
	c.y0 = c.iirCoefficient*c.y0 - c.y1
	c.y1 = temp
	return temp + 0.5
}

// ----- Parameter Interpolator ----- //

// ParameterInterpolator ramps a stored parameter to a new value over a block.
// Done writes the reached value back to the state.
type ParameterInterpolator struct {
	state     *float32
	value     float32
	increment float32
}

// NewParameterInterpolator ...
func NewParameterInterpolator(state *float32, newValue float32, size int) ParameterInterpolator {
	return ParameterInterpolator{
		state:     state,
		value:     *state,
		increment: (newValue - *state) / float32(size),
	}
}

// Next ...
func (p *ParameterInterpolator) Next() float32 {
	p.value += p.increment
	return p.value
}

// Subsample returns the value t samples after the current one without
// advancing.
func (p *ParameterInterpolator) Subsample(t float32) float32 {
	return p.value + p.increment*t
}

// Done ...
func (p *ParameterInterpolator) Done() {
	*p.state = p.value
}

// ----- Random ----- //

// Random is a linear congruential generator. Every model owns one so that
// renders are reproducible.
type Random struct {
	state uint32
}

// NewRandom ...
func NewRandom(seed uint32) *Random {
	return &Random{state: seed}
}

// Seed ...
func (r *Random) Seed(seed uint32) {
	r.state = seed
}

// Word ...
func (r *Random) Word() uint32 {
	r.state = r.state*1664525 + 1013904223
	return r.state
}

// Float returns a value in [0, 1).
func (r *Random) Float() float32 {
	return float32(r.Word()>>8) / (1 << 24)
}

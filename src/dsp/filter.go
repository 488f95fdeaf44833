package dsp

import (
	"github.com/chewxy/math32"
)

// ----- Filter Mode ----- //

// FilterMode selects the output tap of a filter.
type FilterMode int

// FilterMode ...
const (
	LowPass FilterMode = iota
	BandPass
	BandPassNormalized
	HighPass
)

// FrequencyApproximation trades accuracy of the tan() prewarp for speed.
type FrequencyApproximation int

// FrequencyApproximation ...
const (
	FrequencyExact FrequencyApproximation = iota
	FrequencyAccurate
	FrequencyFast
	FrequencyDirty
)

const (
	piPow3  = pi * pi * pi
	piPow5  = piPow3 * pi * pi
	piPow7  = piPow5 * pi * pi
	piPow9  = piPow7 * pi * pi
	piPow11 = piPow9 * pi * pi
)

// Tan returns tan(pi * f) for a normalized frequency f.
func Tan(f float32, approximation FrequencyApproximation) float32 {
	switch approximation {
	case FrequencyExact:
		if f > 0.497 {
			f = 0.497
		}
		return math32.Tan(pi * f)
	case FrequencyDirty:
		// good below 8kHz
		const a = 3.736e-01 * piPow3
		return f * (pi + a*f*f)
	case FrequencyFast:
		// coefficients fitted for 16Hz-16kHz at 48kHz
		const a = 3.260e-01 * piPow3
		const b = 1.823e-01 * piPow5
		f2 := f * f
		return f * (pi + f2*(a+b*f2))
	default:
		const a = 3.333314036e-01 * piPow3
		const b = 1.333923995e-01 * piPow5
		const c = 5.33740603e-02 * piPow7
		const d = 2.900525e-03 * piPow9
		const e = 4.95673361e-03 * piPow11
		f2 := f * f
		return f * (pi + f2*(a+f2*(b+f2*(c+f2*(d+f2*e)))))
	}
}

// ----- SVF ----- //

// Svf is a trapezoidal-integration state variable filter.
type Svf struct {
	g      float32
	r      float32
	h      float32
	state1 float32
	state2 float32
}

// Init ...
func (s *Svf) Init() {
	s.SetFQ(0.01, 100, FrequencyDirty)
	s.Reset()
}

// Reset ...
func (s *Svf) Reset() {
	s.state1 = 0
	s.state2 = 0
}

// SetFQ sets the normalized cutoff and the resonance (Q).
func (s *Svf) SetFQ(f, resonance float32, approximation FrequencyApproximation) {
	s.g = Tan(f, approximation)
	s.r = 1 / resonance
	s.h = 1 / (1 + s.r*s.g + s.g*s.g)
}

func (s *Svf) tick(in float32) (lp, bp, hp float32) {
	hp = (in - s.r*s.state1 - s.g*s.state1 - s.state2) * s.h
	bp = s.g*hp + s.state1
	s.state1 = s.g*hp + bp
	lp = s.g*bp + s.state2
	s.state2 = s.g*bp + lp
	return
}

// Process filters one sample.
func (s *Svf) Process(in float32, mode FilterMode) float32 {
	lp, bp, hp := s.tick(in)
	switch mode {
	case LowPass:
		return lp
	case BandPass:
		return bp
	case BandPassNormalized:
		return bp * s.r
	default:
		return hp
	}
}

// BandPass is Process(in, BandPass) without the mode switch.
func (s *Svf) BandPass(in float32) float32 {
	hp := (in - s.r*s.state1 - s.g*s.state1 - s.state2) * s.h
	bp := s.g*hp + s.state1
	s.state1 = s.g*hp + bp
	lp := s.g*bp + s.state2
	s.state2 = s.g*bp + lp
	return bp
}

// ProcessBlock filters in into out. The two may alias.
func (s *Svf) ProcessBlock(in, out []float32, mode FilterMode) {
	for i, x := range in {
		out[i] = s.Process(x, mode)
	}
}

// ----- One Pole ----- //

// OnePole is a first order low/high pass.
type OnePole struct {
	g     float32
	gi    float32
	state float32
}

// Init ...
func (o *OnePole) Init() {
	o.SetF(0.01, FrequencyDirty)
	o.Reset()
}

// Reset ...
func (o *OnePole) Reset() {
	o.state = 0
}

// SetF ...
func (o *OnePole) SetF(f float32, approximation FrequencyApproximation) {
	o.g = Tan(f, approximation)
	o.gi = 1 / (1 + o.g)
}

// Process ...
func (o *OnePole) Process(in float32, mode FilterMode) float32 {
	lp := (o.g*in + o.state) * o.gi
	o.state = o.g*(in-lp) + lp
	if mode == HighPass {
		return in - lp
	}
	return lp
}

// ProcessBlock ...
func (o *OnePole) ProcessBlock(in, out []float32, mode FilterMode) {
	for i, x := range in {
		out[i] = o.Process(x, mode)
	}
}

// ----- Naive SVF ----- //

// NaiveSvf is the Chamberlin state variable filter. It is cheaper than Svf and
// exposes its internal low and band pass states.
type NaiveSvf struct {
	f    float32
	damp float32
	lp   float32
	bp   float32
}

// Init ...
func (n *NaiveSvf) Init() {
	n.SetFQ(0.01, 100, FrequencyDirty)
	n.lp = 0
	n.bp = 0
}

// SetFQ ...
func (n *NaiveSvf) SetFQ(f, resonance float32, approximation FrequencyApproximation) {
	f = min(f, 0.497)
	if approximation == FrequencyExact {
		n.f = 2 * math32.Sin(pi*f)
	} else {
		n.f = 2 * pi * f
	}
	n.damp = 1 / resonance
}

// Process ...
func (n *NaiveSvf) Process(in float32, mode FilterMode) float32 {
	bpNormalized := n.bp * n.damp
	notch := in - bpNormalized
	n.lp += n.f * n.bp
	hp := notch - n.lp
	n.bp += n.f * hp
	switch mode {
	case LowPass:
		return n.lp
	case BandPass:
		return n.bp
	case BandPassNormalized:
		return bpNormalized
	default:
		return hp
	}
}

// Lp returns the low pass state after the last Process call.
func (n *NaiveSvf) Lp() float32 { return n.lp }

// Bp returns the band pass state after the last Process call.
func (n *NaiveSvf) Bp() float32 { return n.bp }

// Split writes the low and high pass outputs of in. high may alias in.
func (n *NaiveSvf) Split(in, low, high []float32) {
	lp := n.lp
	bp := n.bp
	for i, x := range in {
		notch := x - bp*n.damp
		lp += n.f * bp
		hp := notch - lp
		bp += n.f * hp
		low[i] = lp
		high[i] = hp
	}
	n.lp = lp
	n.bp = bp
}

// ----- DC Blocker ----- //

// DCBlocker is a one-zero one-pole high pass.
type DCBlocker struct {
	pole float32
	x    float32
	y    float32
}

// Init ...
func (d *DCBlocker) Init(pole float32) {
	d.pole = pole
	d.x = 0
	d.y = 0
}

// Tick filters one sample.
func (d *DCBlocker) Tick(in float32) float32 {
	old := d.x
	d.x = in
	d.y = d.y*d.pole + in - old
	return d.y
}

// Process filters buf in place.
func (d *DCBlocker) Process(buf []float32) {
	x, y := d.x, d.y
	for i, in := range buf {
		old := x
		x = in
		y = y*d.pole + x - old
		buf[i] = y
	}
	d.x, d.y = x, y
}

// ----- Damping Filter ----- //

// DampingFilter is the 3-tap symmetric FIR used in the string loop. Its
// coefficients glide linearly over a block.
type DampingFilter struct {
	x1                  float32
	x2                  float32
	brightness          float32
	brightnessIncrement float32
	damping             float32
	dampingIncrement    float32
}

// Init ...
func (d *DampingFilter) Init() {
	*d = DampingFilter{}
}

// Configure sets the targets reached after size calls to Process.
func (d *DampingFilter) Configure(damping, brightness float32, size int) {
	if size == 0 {
		d.damping = damping
		d.brightness = brightness
		d.dampingIncrement = 0
		d.brightnessIncrement = 0
		return
	}
	step := 1 / float32(size)
	d.dampingIncrement = (damping - d.damping) * step
	d.brightnessIncrement = (brightness - d.brightness) * step
}

// Process ...
func (d *DampingFilter) Process(x float32) float32 {
	h0 := (1 + d.brightness) * 0.5
	h1 := (1 - d.brightness) * 0.25
	y := d.damping * (h0*d.x1 + h1*(x+d.x2))
	d.x2 = d.x1
	d.x1 = x
	d.brightness += d.brightnessIncrement
	d.damping += d.dampingIncrement
	return y
}

package rings

import "github.com/jinjor/rings-resonator/src/dsp"

// MaxModes is the size of the modal filter bank.
const MaxModes = 64

// Resonator is a bank of band-pass filters tuned to the partials of a
// stretched harmonic series. Odd and even partials are panned against each
// other by the excitation position.
type Resonator struct {
	frequency        float32
	structure        float32
	brightness       float32
	damping          float32
	position         float32
	previousPosition float32
	resolution       int

	filters  [MaxModes]dsp.Svf
	numModes int
	dirty    bool
}

// Init ...
func (r *Resonator) Init() {
	for i := range r.filters {
		r.filters[i].Init()
	}
	r.SetFrequency(220.0 / dsp.SampleRate)
	r.SetStructure(0.25)
	r.SetBrightness(0.5)
	r.SetDamping(0.3)
	r.SetPosition(0.999)
	r.previousPosition = 0
	r.SetResolution(MaxModes)
}

// SetFrequency sets the normalized fundamental.
func (r *Resonator) SetFrequency(frequency float32) {
	r.frequency = frequency
	r.dirty = true
}

// SetStructure sets the inharmonicity.
func (r *Resonator) SetStructure(structure float32) {
	r.structure = structure
	r.dirty = true
}

// SetBrightness ...
func (r *Resonator) SetBrightness(brightness float32) {
	r.brightness = brightness
	r.dirty = true
}

// SetDamping ...
func (r *Resonator) SetDamping(damping float32) {
	r.damping = damping
	r.dirty = true
}

// SetPosition ...
func (r *Resonator) SetPosition(position float32) {
	r.position = position
}

// SetResolution sets how many modes are rendered. Fewer modes leave room for
// more voices.
func (r *Resonator) SetResolution(resolution int) {
	resolution -= resolution & 1
	r.resolution = dsp.Clamp(resolution, 2, MaxModes)
	r.dirty = true
}

// NumModes is the number of modes below Nyquist after the last update.
func (r *Resonator) NumModes() int {
	if r.dirty {
		r.computeFilters()
	}
	return r.numModes
}

func (r *Resonator) computeFilters() {
	stiffness := dsp.Stiffness(r.structure)
	harmonic := r.frequency
	stretchFactor := float32(1)
	q := 500 * dsp.FourDecades(r.damping)
	brightnessAttenuation := 1 - r.structure
	brightnessAttenuation *= brightnessAttenuation
	brightnessAttenuation *= brightnessAttenuation
	brightnessAttenuation *= brightnessAttenuation
	brightness := r.brightness * (1 - 0.2*brightnessAttenuation)
	qLoss := brightness*(2-brightness)*0.85 + 0.15
	qLossDampingRate := r.structure * (2 - r.structure) * 0.1

	numModes := 0
	for i := 0; i < r.resolution; i++ {
		partial := harmonic * stretchFactor
		if partial >= 0.49 {
			partial = 0.49
		} else {
			numModes = i + 1
		}
		r.filters[i].SetFQ(partial, 1+partial*q, dsp.FrequencyFast)
		stretchFactor += stiffness
		if stiffness < 0 {
			stiffness *= 0.93
		} else {
			stiffness *= 0.98
		}
		qLoss += qLossDampingRate * (1 - qLoss)
		harmonic += r.frequency
		q *= qLoss
	}
	r.numModes = numModes
	r.dirty = false
}

// Process renders the odd partials into out and the even partials into aux.
// The three slices have the same length, at most dsp.MaxBlockSize.
func (r *Resonator) Process(in, out, aux []float32) {
	if r.dirty {
		r.computeFilters()
	}
	numModes := min(r.numModes+r.numModes&1, r.resolution)
	position := dsp.NewParameterInterpolator(&r.previousPosition, r.position, len(in))
	var amplitudes dsp.CosineOscillator
	for i, x := range in {
		amplitudes.Init(position.Next(), dsp.CosineApproximate)
		input := x * 0.125
		var odd, even float32
		for m := 0; m < numModes; m += 2 {
			odd += amplitudes.Next() * r.filters[m].BandPass(input)
			even += amplitudes.Next() * r.filters[m+1].BandPass(input)
		}
		out[i] = odd
		aux[i] = even
	}
	position.Done()
}

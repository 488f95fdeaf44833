package audio

import (
	"fmt"
	"math"
)

const (
	resamplerHalfWidth = 16  // taps on each side of the output instant, in input samples
	resamplerPhases    = 256 // kernel rows between two input samples
	resamplerBeta      = 8.6 // Kaiser window shape
	resamplerRolloff   = 0.95
)

// ----- Resampler ----- //

// Resampler converts a mono stream from one sample rate to another with a
// Kaiser-windowed sinc kernel. The kernel is tabulated at construction, so
// ProcessMono never allocates.
type Resampler struct {
	inRate  float64
	outRate float64
	step    float64 // input samples per output sample
	taps    int
	kernel  []float32 // (resamplerPhases+1) rows of taps
	history []float32 // two copies of the last taps inputs
	write   int
	pushed  int     // inputs seen since Reset
	next    float64 // position of the next output, in inputs since Reset
}

// NewResampler ...
func NewResampler(inRate, outRate float64) (*Resampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("invalid resampling %v -> %v", inRate, outRate)
	}
	taps := 2 * resamplerHalfWidth
	r := &Resampler{
		inRate:  inRate,
		outRate: outRate,
		step:    inRate / outRate,
		taps:    taps,
		kernel:  make([]float32, (resamplerPhases+1)*taps),
		history: make([]float32, 2*taps),
	}
	cutoff := math.Min(1, outRate/inRate) * resamplerRolloff
	for p := 0; p <= resamplerPhases; p++ {
		frac := float64(p) / resamplerPhases
		row := r.kernel[p*taps : (p+1)*taps]
		for j := range row {
			// distance from the output instant to tap j
			d := frac - float64(j-resamplerHalfWidth+1)
			row[j] = float32(cutoff * sinc(cutoff*d) * kaiser(d/resamplerHalfWidth, resamplerBeta))
		}
	}
	return r, nil
}

// Ratio is the number of output samples per input sample.
func (r *Resampler) Ratio() float64 {
	return r.outRate / r.inRate
}

// Latency is the delay the kernel adds, in output samples.
func (r *Resampler) Latency() int {
	return int(math.Ceil(resamplerHalfWidth * r.Ratio()))
}

// MaxOutput is the most samples ProcessMono can produce from n inputs.
func (r *Resampler) MaxOutput(n int) int {
	return int(math.Ceil(float64(n)*r.Ratio())) + 1
}

// Reset forgets the stream.
func (r *Resampler) Reset() {
	clear(r.history)
	r.write = 0
	r.pushed = 0
	r.next = 0
}

// ProcessMono consumes every sample of in and writes the samples that became
// available to out. It returns how many were written. Samples that do not fit
// in out are dropped.
func (r *Resampler) ProcessMono(in, out []float32) int {
	produced := 0
	for _, x := range in {
		r.history[r.write] = x
		r.history[r.write+r.taps] = x
		r.write++
		if r.write == r.taps {
			r.write = 0
		}
		r.pushed++
		newest := r.pushed - 1
		for int(r.next)+resamplerHalfWidth <= newest {
			y := r.convolve(r.next - math.Floor(r.next))
			if produced < len(out) {
				out[produced] = y
				produced++
			}
			r.next += r.step
		}
	}
	return produced
}

func (r *Resampler) convolve(frac float64) float32 {
	position := frac * resamplerPhases
	p := int(position)
	t := float32(position - float64(p))
	a := r.kernel[p*r.taps : (p+1)*r.taps]
	b := r.kernel[(p+1)*r.taps : (p+2)*r.taps]
	window := r.history[r.write : r.write+r.taps]
	var sum float32
	for j, x := range window {
		sum += x * (a[j] + (b[j]-a[j])*t)
	}
	return sum
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

func kaiser(x, beta float64) float64 {
	if x <= -1 || x >= 1 {
		return 0
	}
	return besselI0(beta*math.Sqrt(1-x*x)) / besselI0(beta)
}

// besselI0 is the zeroth order modified Bessel function of the first kind.
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	for k := 1; k < 50; k++ {
		term *= (x / (2 * float64(k))) * (x / (2 * float64(k)))
		sum += term
		if term < sum*1e-12 {
			break
		}
	}
	return sum
}

// Package dsp holds the small signal-processing building blocks shared by the
// resonator models and the effects: filters, delay lines, oscillators,
// parameter interpolation and the reference lookup tables.
package dsp

import (
	"cmp"
	"math"

	"github.com/chewxy/math32"
)

// SampleRate is the internal processing rate of every model in this module.
const SampleRate = 48000

// MaxBlockSize is the internal block size. Models never see longer blocks.
const MaxBlockSize = 24

// A3 is the normalized frequency of MIDI note 69.
const A3 = 440.0 / SampleRate

const ln2Over12 = math.Ln2 / 12

const pi = math.Pi

// Float is satisfied by the floating point sample types.
type Float interface {
	~float32 | ~float64
}

// Slope moves out toward in using one coefficient for rising and another for
// falling input.
func Slope[F Float](out *F, in, rising, falling F) {
	e := in - *out
	if e > 0 {
		*out += rising * e
	} else {
		*out += falling * e
	}
}

// Lag is a one-pole smoother step.
func Lag[F Float](out *F, in, coefficient F) {
	*out += coefficient * (in - *out)
}

// Clamp constrains x to [lo, hi].
func Clamp[T cmp.Ordered](x, lo, hi T) T {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// SplitIntegral returns the integral and fractional parts of a non-negative x.
func SplitIntegral(x float32) (int, float32) {
	i := int(x)
	return i, x - float32(i)
}

// Crossfade linearly blends a into b.
func Crossfade(a, b, fade float32) float32 {
	return a + (b-a)*fade
}

// SemitonesToRatio converts a pitch interval to a frequency ratio.
func SemitonesToRatio(semitones float32) float32 {
	return math32.Exp(semitones * ln2Over12)
}

// SoftLimit is a rational approximation of tanh, valid for |x| < 3.
func SoftLimit(x float32) float32 {
	return x * (27 + x*x) / (27 + 9*x*x)
}

// SoftClip saturates to ±1 outside ±3.
func SoftClip(x float32) float32 {
	if x < -3 {
		return -1
	}
	if x > 3 {
		return 1
	}
	return SoftLimit(x)
}

// Squash pushes x in [0, 1] toward its ends, with a sharp transition at 0.5.
func Squash(x float32) float32 {
	if x < 0.5 {
		x *= 2
		x *= x
		x *= x
		x *= x
		x *= x
		return x * 0.5
	}
	x = 2 - 2*x
	x *= x
	x *= x
	x *= x
	x *= x
	return 1 - 0.5*x
}

// Interpolate reads table at index*size with linear interpolation. The caller
// keeps index*size within [0, len(table)-1).
func Interpolate(table []float32, index, size float32) float32 {
	i, frac := SplitIntegral(index * size)
	a := table[i]
	b := table[i+1]
	return a + (b-a)*frac
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float32) bool {
	return !math32.IsNaN(x) && !math32.IsInf(x, 0)
}

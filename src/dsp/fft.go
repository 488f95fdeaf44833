package dsp

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/viterin/vek/vek32"
)

// FFT is a radix-2 transform of a fixed length. Its scratch buffer is
// allocated once so that repeated transforms do not allocate.
type FFT struct {
	bitReverseTable []int
	wTable          []complex128
	inverse         bool
	scratch         []complex128
}

// NewFFT ...
func NewFFT(length int, inverse bool) *FFT {
	if length <= 0 || length&(length-1) != 0 {
		panic(fmt.Errorf("fft length must be a power of two: %d", length))
	}
	return &FFT{
		bitReverseTable: makeBitReverseTable(length),
		wTable:          makeWTable(length),
		inverse:         inverse,
		scratch:         make([]complex128, length),
	}
}

// Len ...
func (fft *FFT) Len() int {
	return len(fft.bitReverseTable)
}

func makeBitReverseTable(n int) []int {
	array := make([]int, n)
	for i := 0; i < n; i++ {
		array[i] = bitReverse(i, n)
	}
	return array
}

func bitReverse(k, n int) int {
	m := 0
	for ; n > 1; n = n >> 1 {
		m = m<<1 + k&1
		k = k >> 1
	}
	return m
}

func makeWTable(n int) []complex128 {
	array := make([]complex128, n)
	w := -2.0 * math.Pi / float64(n)
	for i := 0; i < n; i++ {
		array[i] = cmplx.Exp(complex(0, w*float64(i)))
	}
	return array
}

// Calc transforms x in place.
func (fft *FFT) Calc(x []complex128) {
	n := len(x)
	if n != len(fft.bitReverseTable) {
		panic(fmt.Errorf("length should be %v", len(fft.bitReverseTable)))
	}
	for i := 0; i < n; i++ {
		rev := fft.bitReverseTable[i]
		if i < rev {
			x[i], x[rev] = x[rev], x[i]
		}
	}
	for m := 1; m < n; m = m << 1 {
		step := m << 1
		for k := 0; k < m; k++ {
			idx := n / step * k
			if fft.inverse && idx != 0 {
				idx = n - idx
			}
			w := fft.wTable[idx]
			for i := k; i < n; i += step {
				j := i + m
				tmp := x[j] * w
				x[j] = x[i] - tmp
				x[i] = x[i] + tmp
			}
		}
	}
	if fft.inverse {
		for i := 0; i < n; i++ {
			x[i] /= complex(float64(n), 0)
		}
	}
}

// CalcReal transforms a real signal and returns the real parts in x.
func (fft *FFT) CalcReal(x []float32) []float32 {
	cx := fft.load(x)
	fft.Calc(cx)
	for i := range x {
		x[i] = float32(real(cx[i]))
	}
	return x
}

// CalcAbs transforms a real signal and returns the magnitudes in x.
func (fft *FFT) CalcAbs(x []float32) []float32 {
	cx := fft.load(x)
	fft.Calc(cx)
	for i := range x {
		x[i] = float32(cmplx.Abs(cx[i]))
	}
	return x
}

func (fft *FFT) load(x []float32) []complex128 {
	cx := fft.scratch[:len(x)]
	for i, v := range x {
		cx[i] = complex(float64(v), 0)
	}
	return cx
}

// ----- Spectrum ----- //

// Spectrum turns the most recent samples of a signal into a single-sided
// amplitude spectrum.
type Spectrum struct {
	fft    *FFT
	window []float32
	work   []float32
}

// NewSpectrum ...
func NewSpectrum(size int) *Spectrum {
	window := make([]float32, size)
	for i := range window {
		window[i] = 1
	}
	Han(window)
	return &Spectrum{
		fft:    NewFFT(size, false),
		window: window,
		work:   make([]float32, size),
	}
}

// Calc analyses samples (len == size) and returns size/2 amplitudes. The
// returned slice is reused by the next call.
func (s *Spectrum) Calc(samples []float32) []float32 {
	n := len(s.work)
	vek32.Mul_Into(s.work, samples[:n], s.window)
	s.fft.CalcAbs(s.work)
	vek32.MulNumber_Inplace(s.work, 2/float32(n))
	return s.work[:n/2]
}

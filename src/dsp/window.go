package dsp

import (
	"github.com/chewxy/math32"
)

// Han ...
func Han(data []float32) {
	n := len(data)
	for i := 0; i < n; i++ {
		x := float32(i) / float32(n)
		w := 0.5 - 0.5*math32.Cos(2*pi*x)
		data[i] = data[i] * w
	}
}

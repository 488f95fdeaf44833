package audio

import (
	"testing"

	"github.com/chewxy/math32"
)

func TestResamplerLatency(t *testing.T) {
	up, err := NewResampler(44100, 48000)
	expectNoError(t, err)
	expectEqual(t, up.Latency(), 18)
	down, err := NewResampler(48000, 44100)
	expectNoError(t, err)
	expectEqual(t, down.Latency(), 15)

	_, err = NewResampler(0, 48000)
	expectError(t, err)
}

func TestResamplerKeepsDC(t *testing.T) {
	for _, rates := range [][2]float64{{44100, 48000}, {48000, 44100}, {96000, 48000}} {
		r, err := NewResampler(rates[0], rates[1])
		expectNoError(t, err)
		in := make([]float32, 4410)
		for i := range in {
			in[i] = 1
		}
		out := make([]float32, r.MaxOutput(len(in)))
		n := r.ProcessMono(in, out)
		expected := float64(len(in)) * r.Ratio()
		if float64(n) > expected || float64(n) < expected-float64(2*r.Latency()) {
			t.Errorf("%v: unexpected output count %d", rates, n)
		}
		for i := 2 * r.Latency(); i < n-2*r.Latency(); i++ {
			expectNearlyEqual(t, out[i], 1, 1e-2)
		}
	}
}

func TestResamplerFollowsSine(t *testing.T) {
	r, err := NewResampler(44100, 48000)
	expectNoError(t, err)
	const frequency = 500
	in := make([]float32, 4410)
	for i := range in {
		in[i] = math32.Sin(2 * math32.Pi * frequency * float32(i) / 44100)
	}
	out := make([]float32, r.MaxOutput(len(in)))
	n := r.ProcessMono(in, out)

	// output k is the input signal at time k*44100/48000
	for k := 200; k < n; k += 37 {
		timeIn := float32(k) * 44100 / 48000
		expected := math32.Sin(2 * math32.Pi * frequency * timeIn / 44100)
		expectNearlyEqual(t, out[k], expected, 1e-2)
	}
}

func TestResamplerResetRepeats(t *testing.T) {
	r, err := NewResampler(48000, 44100)
	expectNoError(t, err)
	in := make([]float32, 300)
	noise(11, in)
	a := make([]float32, r.MaxOutput(len(in)))
	b := make([]float32, r.MaxOutput(len(in)))
	na := r.ProcessMono(in, a)
	r.Reset()
	nb := r.ProcessMono(in, b)
	expectEqual(t, na, nb)
	for i := 0; i < na; i++ {
		expectEqual(t, a[i], b[i])
	}
}

func TestResamplerChunkingDoesNotMatter(t *testing.T) {
	whole, _ := NewResampler(44100, 48000)
	chunked, _ := NewResampler(44100, 48000)
	in := make([]float32, 1000)
	noise(5, in)
	a := make([]float32, whole.MaxOutput(len(in)))
	na := whole.ProcessMono(in, a)
	b := make([]float32, 0, len(a))
	scratch := make([]float32, 64)
	for offset := 0; offset < len(in); offset += 13 {
		end := min(offset+13, len(in))
		n := chunked.ProcessMono(in[offset:end], scratch)
		b = append(b, scratch[:n]...)
	}
	expectEqual(t, len(b), na)
	for i := range b {
		expectEqual(t, b[i], a[i])
	}
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Fill(2)
	expectEqual(t, rb.Len(), 2)
	expectEqual(t, rb.Write([]float32{1, 2, 3}), 2)
	expectEqual(t, rb.Free(), 0)
	expectEqual(t, rb.Push(9), false)

	dst := make([]float32, 3)
	expectEqual(t, rb.Read(dst), 3)
	expectEqual(t, dst[0], float32(0))
	expectEqual(t, dst[2], float32(1))
	expectEqual(t, rb.Push(4), true)
	expectEqual(t, rb.Push(5), true)
	v, ok := rb.Pop()
	expectEqual(t, v, float32(2))
	expectEqual(t, ok, true)
	expectEqual(t, rb.Read(dst), 2)
	expectEqual(t, dst[1], float32(5))
	_, ok = rb.Pop()
	expectEqual(t, ok, false)

	rb.Fill(10)
	expectEqual(t, rb.Len(), 4)
	rb.Reset()
	expectEqual(t, rb.Len(), 0)
}

func TestParamSmoother(t *testing.T) {
	var s ParamSmoother
	s.Init(0.01, 1000, 0)
	s.SetTarget(1)
	// one time constant
	expectNearlyEqual(t, s.Advance(10), 0.632, 1e-3)
	for i := 0; i < 100; i++ {
		s.Advance(10)
	}
	expectEqual(t, s.Value(), float32(1))

	s.Snap(0.25)
	expectEqual(t, s.Advance(64), float32(0.25))
	expectEqual(t, s.Target(), float32(0.25))
}

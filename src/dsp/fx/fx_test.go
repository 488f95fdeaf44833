package fx

import (
	"math"
	"testing"

	"github.com/jinjor/rings-resonator/src/dsp"
)

func expectEqual(t *testing.T, actual, expected interface{}) {
	t.Helper()
	if actual != expected {
		t.Errorf("expected %v, but got: %v", expected, actual)
	}
}

func expectNearlyEqual(t *testing.T, actual, expected float32, tolerance float64) {
	t.Helper()
	if math.Abs(float64(actual-expected)) > tolerance {
		t.Errorf("expected %v, but got: %v", expected, actual)
	}
}

func energy(buf []float32) float64 {
	sum := 0.0
	for _, v := range buf {
		sum += float64(v) * float64(v)
	}
	return sum
}

func expectFinite(t *testing.T, buf []float32) {
	t.Helper()
	for i, v := range buf {
		if !dsp.IsFinite(v) {
			t.Fatalf("sample %d is not finite: %v", i, v)
		}
	}
}

func TestMemoryLayout(t *testing.T) {
	lines := NewMemory(64).Reserve(10, 20, 5)
	expectEqual(t, lines[0], Line{Base: 0, Length: 10})
	expectEqual(t, lines[1], Line{Base: 11, Length: 20})
	expectEqual(t, lines[2], Line{Base: 32, Length: 5})
	expectEqual(t, lines[1].Tail(), 19)
}

func TestMemoryOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewMemory(32).Reserve(20, 20)
}

func TestReverbLayoutFits(t *testing.T) {
	last := reverbLines[len(reverbLines)-1]
	if last.Base+last.Length > ReverbMemorySize {
		t.Fatalf("reverb layout overflows: %v", last)
	}
}

func TestFormats(t *testing.T) {
	expectNearlyEqual(t, Format12{}.Decompress(Format12{}.Compress(0.5)), 0.5, 1.0/4096)
	expectNearlyEqual(t, Format12{}.Decompress(Format12{}.Compress(-1.25)), -1.25, 1.0/4096)
	expectNearlyEqual(t, Format16{}.Decompress(Format16{}.Compress(0.3)), 0.3, 1.0/32768)
	expectNearlyEqual(t, Format16{}.Decompress(Format16{}.Compress(2)), 32767.0/32768, 1e-6)
	expectEqual(t, Format32{}.Decompress(Format32{}.Compress(12.5)), float32(12.5))
}

func TestEngineReadsBackWrites(t *testing.T) {
	var e Engine[float32, Format32]
	e.Init(make([]float32, 16))
	line := NewMemory(16).Reserve(8)[0]
	var c Context[float32, Format32]
	e.Start(&c)
	c.Load(1)
	c.WriteLine(line, 0, 0)
	for i := 0; i < 3; i++ {
		e.Start(&c)
	}
	c.ReadLine(line, 3, 1)
	var out float32
	c.Write(&out, 0)
	expectEqual(t, out, float32(1))
}

func TestReverbTail(t *testing.T) {
	var r Reverb
	r.Init(make([]uint16, ReverbMemorySize))
	r.SetAmount(1)
	r.SetTime(0.8)
	left := make([]float32, 24)
	right := make([]float32, 24)
	left[0] = 1
	total := 0.0
	for block := 0; block < 2000; block++ {
		r.Process(left, right)
		expectFinite(t, left)
		expectFinite(t, right)
		total += energy(left) + energy(right)
		for i := range left {
			left[i] = 0
			right[i] = 0
		}
	}
	if total == 0 {
		t.Error("expected a reverb tail")
	}
}

func TestChorusDryWhenAmountIsZero(t *testing.T) {
	var c Chorus
	c.Init(make([]uint16, ChorusMemorySize))
	c.SetAmount(0)
	c.SetDepth(0.5)
	left := []float32{0.1, 0.2, 0.3}
	right := []float32{-0.1, -0.2, -0.3}
	c.Process(left, right)
	expectEqual(t, left[2], float32(0.3))
	expectEqual(t, right[2], float32(-0.3))
}

func TestEnsembleDelaysSignal(t *testing.T) {
	var e Ensemble
	e.Init(make([]uint16, EnsembleMemorySize))
	e.SetAmount(1)
	e.SetDepth(0.5)
	n := 4096
	left := make([]float32, n)
	right := make([]float32, n)
	left[0] = 0.5
	right[0] = 0.5
	e.Process(left, right)
	expectFinite(t, left)
	if energy(left[900:]) == 0 {
		t.Error("expected the impulse to come back through the delay taps")
	}
}

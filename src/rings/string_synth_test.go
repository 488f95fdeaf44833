package rings

import (
	"testing"

	"github.com/jinjor/rings-resonator/src/dsp"
	"github.com/jinjor/rings-resonator/src/dsp/fx"
)

func TestStringSynthEnvelope(t *testing.T) {
	var e StringSynthEnvelope
	e.Init()
	e.SetAD(0.5, 0.25)
	expectEqual(t, e.Process(EnvelopeRisingEdge), float32(0.5))
	expectEqual(t, e.Process(0), float32(1))
	expectNearlyEqual(t, e.Process(0), 0.31640625, 1e-6)
	e.Process(0)
	e.Process(0)
	expectEqual(t, e.Process(0), float32(0))
	expectEqual(t, e.Process(0), float32(0))
}

func TestStringSynthEnvelopeHold(t *testing.T) {
	var e StringSynthEnvelope
	e.Init()
	e.SetAD(0.5, 0.25)
	e.SetHold(true)
	expectEqual(t, e.Process(EnvelopeRisingEdge|EnvelopeGate), float32(0.5))
	expectEqual(t, e.Process(EnvelopeGate), float32(1))
	for i := 0; i < 10; i++ {
		expectEqual(t, e.Process(EnvelopeGate), float32(1))
	}
	expectEqual(t, e.Process(0), float32(1))
	expectNearlyEqual(t, e.Process(0), 0.31640625, 1e-6)
}

func TestComputeRegistration(t *testing.T) {
	for _, x := range []float32{0, 0.13, 0.5, 0.77, 1} {
		var amplitudes [numHarmonics * 2]float32
		ComputeRegistration(x, &amplitudes)
		var total float32
		for _, a := range amplitudes {
			if a < 0 {
				t.Errorf("negative amplitude at %v", x)
			}
			total += a
		}
		expectNearlyEqual(t, total, 1, 1e-5)
	}
}

func TestStringSynthStrum(t *testing.T) {
	for fxType := FxFormant; fxType < NumFxTypes; fxType++ {
		p := NewStringSynthPart(make([]uint16, fx.ReverbMemorySize))
		p.SetPolyphony(2)
		p.SetFx(fxType)
		in := make([]float32, dsp.MaxBlockSize)
		out := make([]float32, dsp.MaxBlockSize)
		aux := make([]float32, dsp.MaxBlockSize)
		total := 0.0
		for block := 0; block < 40; block++ {
			perf := &PerformanceState{Note: 57, Chord: 6, Strum: block == 0}
			p.Process(perf, defaultPatch(), in, out, aux)
			expectFinite(t, out)
			expectFinite(t, aux)
			total += energy(out) + energy(aux)
		}
		if total == 0 {
			t.Errorf("%v: no output after a strum", fxType)
		}
	}
}

func TestStringSynthGroups(t *testing.T) {
	p := NewStringSynthPart(make([]uint16, fx.ReverbMemorySize))
	p.SetPolyphony(3)
	expectEqual(t, p.chordSize(), 4)
	in := make([]float32, dsp.MaxBlockSize)
	out := make([]float32, dsp.MaxBlockSize)
	aux := make([]float32, dsp.MaxBlockSize)
	for _, expected := range []int{1, 2, 0, 1} {
		p.Process(&PerformanceState{Note: 60, Strum: true}, defaultPatch(), in, out, aux)
		expectEqual(t, p.activeGroup, expected)
	}
	p.SetPolyphony(1)
	expectEqual(t, p.chordSize(), ChordSize)
	expectEqual(t, p.activeGroup, 0)
}

func TestSwitchingFxClearsMemory(t *testing.T) {
	buffer := make([]uint16, fx.ReverbMemorySize)
	p := NewStringSynthPart(buffer)
	p.SetFx(FxReverb)
	in := make([]float32, dsp.MaxBlockSize)
	out := make([]float32, dsp.MaxBlockSize)
	aux := make([]float32, dsp.MaxBlockSize)
	patch := &Patch{Structure: 0.5, Brightness: 0.8, Damping: 0.1, Position: 0.5}
	for block := 0; block < 20; block++ {
		p.Process(&PerformanceState{Note: 60, Strum: block == 0}, patch, in, out, aux)
	}
	dirty := false
	for _, s := range buffer {
		if s != 0 {
			dirty = true
			break
		}
	}
	expectEqual(t, dirty, true)

	p.SetFx(FxChorus)
	for i, s := range buffer {
		if s != 0 {
			t.Fatalf("sample %d not cleared", i)
		}
	}
	expectEqual(t, p.Fx(), FxChorus)
}

func TestFxNames(t *testing.T) {
	for fxType := FxFormant; fxType < NumFxTypes; fxType++ {
		parsed, err := ParseFxType(fxType.String())
		if err != nil {
			t.Fatal(err)
		}
		expectEqual(t, parsed, fxType)
	}
}

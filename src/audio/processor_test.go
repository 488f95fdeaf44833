package audio

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/jinjor/rings-resonator/src/dsp"
	"github.com/jinjor/rings-resonator/src/rings"
)

func TestLatencyAtInternalRate(t *testing.T) {
	r := NewRingsResonator()
	expectNoError(t, r.Prepare(48000, 256))
	expectEqual(t, r.Resampling(), false)
	expectEqual(t, r.Latency(), 24)

	expectNoError(t, r.Prepare(48050, 256))
	expectEqual(t, r.Resampling(), false)
	expectEqual(t, r.Latency(), 24)
}

func TestLatencyWhenResampling(t *testing.T) {
	r := NewRingsResonator()
	expectNoError(t, r.Prepare(44100, 256))
	expectEqual(t, r.Resampling(), true)
	// ceil(18*44100/48000) + ceil(24*44100/48000) + ceil(16*44100/48000)
	expectEqual(t, r.Latency(), 17+23+15)
	if r.Latency() <= 24 {
		t.Errorf("expected more than one block of latency, got %d", r.Latency())
	}

	other := NewRingsResonator()
	expectNoError(t, other.Prepare(44100, 64))
	expectEqual(t, other.Latency(), r.Latency())
}

func TestPrepareRejectsInvalidArguments(t *testing.T) {
	r := NewRingsResonator()
	if err := r.Prepare(0, 256); !errors.Is(err, ErrInvalidSampleRate) {
		t.Errorf("expected ErrInvalidSampleRate, got %v", err)
	}
	if err := r.Prepare(44100, 0); !errors.Is(err, ErrInvalidBlockSize) {
		t.Errorf("expected ErrInvalidBlockSize, got %v", err)
	}
}

func TestUnpreparedOutputIsSilent(t *testing.T) {
	r := NewRingsResonator()
	out := []float32{1, 1, 1}
	r.Process([]float32{0.5, 0.5, 0.5}, out)
	for _, v := range out {
		expectEqual(t, v, float32(0))
	}
}

// Host blocks of uneven sizes, some longer than the prepared maximum.
var hostBlocks = []int{100, 37, 256, 1, 300, 64}

func TestDryOnlyOutputIsDelayedInput(t *testing.T) {
	for _, rate := range []float64{48000, 44100, 96000} {
		for model := rings.ResonatorModel(0); model < rings.NumModels; model++ {
			t.Run(fmt.Sprintf("%v/%v", rate, model), func(t *testing.T) {
				r := NewRingsResonator()
				r.SetModel(model)
				r.SetDryWet(0)
				r.Strum()
				expectNoError(t, r.Prepare(rate, 256))
				latency := r.Latency()

				total := 0
				for _, n := range hostBlocks {
					total += n
				}
				in := make([]float32, total)
				out := make([]float32, total)
				noise(uint32(rate)+uint32(model), in)
				offset := 0
				for _, n := range hostBlocks {
					r.Process(in[offset:offset+n], out[offset:offset+n])
					offset += n
				}
				for i := range out {
					var expected float32
					if i >= latency {
						expected = in[i-latency]
					}
					expectNearlyEqual(t, out[i], expected, 1e-6)
				}
			})
		}
	}
}

func TestStereoDryOnlyOutputIsDelayedInput(t *testing.T) {
	r := NewRingsResonator()
	r.SetDryWet(0)
	expectNoError(t, r.Prepare(44100, 128))
	in := make([]float32, 512)
	left := make([]float32, 512)
	right := make([]float32, 512)
	noise(7, in)
	r.ProcessStereo(in, left, right)
	latency := r.Latency()
	for i := latency; i < len(in); i++ {
		expectNearlyEqual(t, left[i], in[i-latency], 1e-6)
		expectNearlyEqual(t, right[i], in[i-latency], 1e-6)
	}
}

func TestWetOutputRings(t *testing.T) {
	for _, rate := range []float64{48000, 44100} {
		for _, engine := range []Engine{EngineResonator, EngineStringSynth} {
			r := NewRingsResonator()
			r.SetEngine(engine)
			r.SetInternalExciter(true)
			r.SetPolyphony(2)
			expectNoError(t, r.Prepare(rate, 128))
			in := make([]float32, 128)
			left := make([]float32, 128)
			right := make([]float32, 128)
			energy := 0.0
			for block := 0; block < 40; block++ {
				if block%10 == 0 {
					r.Strum()
				}
				r.ProcessStereo(in, left, right)
				for i := range left {
					if !dsp.IsFinite(left[i]) || !dsp.IsFinite(right[i]) {
						t.Fatalf("%v %v: sample %d of block %d is not finite", rate, engine, i, block)
					}
					energy += float64(left[i]*left[i] + right[i]*right[i])
				}
			}
			if energy == 0 {
				t.Errorf("%v %v: expected some output", rate, engine)
			}
		}
	}
}

func TestBypassPassesInputThrough(t *testing.T) {
	r := NewRingsResonator()
	r.SetBypass(true)
	r.SetOddEvenMix(0)
	expectNoError(t, r.Prepare(48000, 48))
	in := make([]float32, 96)
	out := make([]float32, 96)
	noise(3, in)
	r.Process(in[:48], out[:48])
	r.Process(in[48:], out[48:])
	for i := 24; i < len(in); i++ {
		expectNearlyEqual(t, out[i], in[i-24], 1e-6)
	}
}

func TestBypassAlignsWhenResampling(t *testing.T) {
	cases := []struct {
		sampleRate float64
		latency    int
	}{
		{44100, 55},
		{96000, 96},
		{32000, 43},
	}
	for _, c := range cases {
		for _, blockSize := range []int{1, 7, 256} {
			r := NewRingsResonator()
			r.SetBypass(true)
			expectNoError(t, r.Prepare(c.sampleRate, blockSize))
			expectEqual(t, r.Latency(), c.latency)

			in := make([]float32, 4096)
			out := make([]float32, len(in))
			for i := range in {
				in[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/c.sampleRate))
			}
			for i := 0; i < len(in); i += blockSize {
				end := min(i+blockSize, len(in))
				r.Process(in[i:end], out[i:end])
			}
			for i := c.latency + 256; i < len(in); i++ {
				if math.Abs(float64(out[i]-in[i-c.latency])) > 0.01 {
					t.Fatalf("rate %v block %d: expected %v at %d, but got: %v",
						c.sampleRate, blockSize, in[i-c.latency], i, out[i])
				}
			}
		}
	}
}

func TestSettersClamp(t *testing.T) {
	r := NewRingsResonator()
	r.SetFrequency(5)
	expectNearlyEqual(t, r.Frequency(), 20, 0.01)
	r.SetFrequency(1e6)
	expectNearlyEqual(t, r.Frequency(), 20000, 10)
	r.SetNote(57)
	expectNearlyEqual(t, r.Frequency(), 220, 0.01)

	r.SetPolyphony(9)
	expectEqual(t, r.Polyphony(), rings.MaxPolyphony)
	r.SetPolyphony(0)
	expectEqual(t, r.Polyphony(), 1)

	r.SetStructure(2)
	r.SetDamping(-1)
	r.SetPosition(1)
	r.SetBrightness(3)
	r.SetDryWet(-0.5)
	r.SetOddEvenMix(7)
	expectEqual(t, r.structure.Target(), float32(maxParameter))
	expectEqual(t, r.damping.Target(), float32(0))
	expectEqual(t, r.position.Target(), float32(maxParameter))
	expectEqual(t, r.brightness.Target(), float32(1))
	expectEqual(t, r.dryWet.Target(), float32(0))
	expectEqual(t, r.oddEvenMix.Target(), float32(1))

	r.SetChord(99)
	expectEqual(t, r.perf.Chord, rings.NumChords-1)
	r.SetEngine(Engine(5))
	expectEqual(t, r.Engine(), EngineResonator)
}

func TestParamsApply(t *testing.T) {
	p := NewParams()
	expectNoError(t, p.set("model", "quantized"))
	expectNoError(t, p.set("engine", "stringsynth"))
	expectNoError(t, p.set("fx", "reverb2"))
	expectNoError(t, p.set("polyphony", "4"))
	r := NewRingsResonator()
	p.applyTo(r)
	expectEqual(t, r.Model(), rings.ModelSympatheticStringQuantized)
	expectEqual(t, r.Engine(), EngineStringSynth)
	expectEqual(t, r.stringSynth.Fx(), rings.FxReverb2)
	expectEqual(t, r.Polyphony(), 4)
	expectEqual(t, r.perf.InternalExciter, true)
	expectNearlyEqual(t, r.Frequency(), 220, 0.01)
}

func TestBenchmark(t *testing.T) {
	times := 200
	r := NewRingsResonator()
	r.SetModel(rings.ModelSympatheticString)
	r.SetPolyphony(4)
	r.SetInternalExciter(true)
	expectNoError(t, r.Prepare(44100, 512))
	in := make([]float32, 512)
	left := make([]float32, 512)
	right := make([]float32, 512)
	start := time.Now()
	for n := 0; n < times; n++ {
		if n%20 == 0 {
			r.Strum()
		}
		r.ProcessStereo(in, left, right)
	}
	averageProcessTime := float64(time.Since(start).Microseconds()) / float64(times) / 1000
	fmt.Printf("average process time: %.2fms\n", averageProcessTime)
}

package audio

import (
	"math"
	"testing"
	"time"

	"github.com/jinjor/rings-resonator/src/dsp"
	"github.com/jinjor/rings-resonator/src/rcu"
)

func expectNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Errorf("expected no error, but got: %v", err)
	}
}

func expectError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Error("expected an error")
	}
}

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

// noise fills buf with deterministic values in [-0.5, 0.5).
func noise(seed uint32, buf []float32) {
	for i := range buf {
		seed = seed*1664525 + 1013904223
		buf[i] = float32(seed>>8)/(1<<24) - 0.5
	}
}

func newTestAudio(t *testing.T) *Audio {
	return &Audio{
		params:  rcu.New(NewParams()),
		Changes: NewCallbackList[string](),
		presets: newPresetManager(t.TempDir()),
	}
}

func TestSetCommand(t *testing.T) {
	a := newTestAudio(t)
	var changes []string
	a.Changes.Add(func(key string) { changes = append(changes, key) })

	expectNoError(t, a.update([]string{"set", "structure", "0.7"}))
	expectNoError(t, a.update([]string{"set", "polyphony", "3"}))
	expectNoError(t, a.update([]string{"set", "internalStrum", "true"}))
	expectNoError(t, a.update([]string{"model", "fm"}))
	p := a.Params()
	expectEqual(t, p.Structure, float32(0.7))
	expectEqual(t, p.Polyphony, 3)
	expectEqual(t, p.InternalStrum, true)
	expectEqual(t, p.Model.String(), "fm")
	expectEqual(t, len(changes), 4)
	expectEqual(t, changes[0], "structure")

	expectError(t, a.update([]string{"set", "loudness", "1"}))
	expectError(t, a.update([]string{"set", "damping", "wet"}))
	expectError(t, a.update([]string{"set", "damping"}))
	expectError(t, a.update([]string{"model", "banjo"}))
	expectError(t, a.update([]string{"play"}))
	expectError(t, a.update(nil))
	expectEqual(t, a.Params().Model.String(), "fm")
}

func TestNoteOnStrums(t *testing.T) {
	a := newTestAudio(t)
	expectNoError(t, a.update([]string{"note_on", "57"}))
	p := a.Params()
	expectNearlyEqual(t, p.Frequency, 220, 0.01)
	expectEqual(t, p.Strums, uint64(1))

	expectNoError(t, a.update([]string{"strum"}))
	expectNoError(t, a.update([]string{"note_off", "57"}))
	expectEqual(t, a.Params().Strums, uint64(2))

	a.AddMidiEvent([]byte{0x90, 69, 100})
	a.AddMidiEvent([]byte{0x90, 60, 0})
	a.AddMidiEvent([]byte{0x80, 60, 0})
	p = a.Params()
	expectNearlyEqual(t, p.Frequency, 440, 0.01)
	expectEqual(t, p.Strums, uint64(3))
}

func TestSaveAndLoadPreset(t *testing.T) {
	a := newTestAudio(t)
	expectNoError(t, a.update([]string{"set", "engine", "stringsynth"}))
	expectNoError(t, a.update([]string{"set", "damping", "0.9"}))
	expectNoError(t, a.update([]string{"save", "pad"}))
	expectNoError(t, a.update([]string{"strum"}))
	expectNoError(t, a.update([]string{"set", "damping", "0.1"}))
	expectNoError(t, a.update([]string{"set", "engine", "resonator"}))

	expectNoError(t, a.update([]string{"load", "pad"}))
	p := a.Params()
	expectEqual(t, p.Engine, EngineStringSynth)
	expectEqual(t, p.Damping, float32(0.9))
	expectEqual(t, p.Strums, uint64(1))

	names, err := a.presets.getList()
	expectNoError(t, err)
	expectEqual(t, len(names), 1)
	expectEqual(t, names[0], "pad")

	expectError(t, a.update([]string{"load", "missing"}))
}

func TestGetCommand(t *testing.T) {
	a := newTestAudio(t)
	expectNoError(t, a.update([]string{"get", "position"}))
	expectError(t, a.update([]string{"get", "model"}))
	expectEqual(t, rcu.Has(a.params, "dryWet"), true)
}

func TestCallbackList(t *testing.T) {
	c := NewCallbackList[int]()
	var got []int
	removeFirst := c.Add(func(v int) { got = append(got, v) })
	c.Add(func(v int) { got = append(got, v*10) })
	expectEqual(t, c.Len(), 2)

	c.Call(1)
	removeFirst()
	removeFirst()
	c.Call(2)
	expectEqual(t, c.Len(), 1)
	expectEqual(t, len(got), 3)
	expectEqual(t, got[0], 1)
	expectEqual(t, got[1], 10)
	expectEqual(t, got[2], 20)
}

func TestCallbackListBlockedListener(t *testing.T) {
	c := NewCallbackList[int]()
	entered := make(chan struct{})
	release := make(chan struct{})
	c.Add(func(int) {
		close(entered)
		<-release
	})
	called := make(chan struct{})
	go func() {
		c.Call(1)
		close(called)
	}()
	<-entered

	done := make(chan struct{})
	go func() {
		remove := c.Add(func(int) {})
		remove()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Add and remove waited for a blocked listener")
	}
	close(release)
	<-called
	expectEqual(t, c.Len(), 1)
}

func TestCallbackListSelfRemoval(t *testing.T) {
	c := NewCallbackList[int]()
	calls := 0
	var remove func()
	remove = c.Add(func(int) {
		calls++
		remove()
	})
	c.Call(1)
	c.Call(2)
	expectEqual(t, calls, 1)
	expectEqual(t, c.Len(), 0)
}

func TestWriteBuffer(t *testing.T) {
	buf := make([]byte, 2*bytesPerSample)
	writeBuffer([]float32{1, -2}, []float32{0, 0.5}, buf)
	expectEqual(t, int16(uint16(buf[0])|uint16(buf[1])<<8), int16(32767))
	expectEqual(t, int16(uint16(buf[2])|uint16(buf[3])<<8), int16(0))
	expectEqual(t, int16(uint16(buf[4])|uint16(buf[5])<<8), int16(-32767))
	expectEqual(t, int16(uint16(buf[6])|uint16(buf[7])<<8), int16(16383))
}

func newSpectrumAudio() *Audio {
	a := &Audio{
		out:       make([]float32, fftSize),
		back:      &outputFrame{},
		front:     &outputFrame{},
		spectrum:  dsp.NewSpectrum(fftSize),
		fftResult: make([]float32, fftSize),
	}
	a.frames.Store(&outputFrame{})
	return a
}

func peakBin(spectrum []float32) int {
	peak := 0
	for i, v := range spectrum {
		if v > spectrum[peak] {
			peak = i
		}
	}
	return peak
}

func TestRecordedSamplesAreOrdered(t *testing.T) {
	a := newSpectrumAudio()
	ramp := make([]float32, 3000)
	for i := range ramp {
		ramp[i] = float32(i)
	}
	a.record(ramp[:1000], ramp[:1000])
	a.record(ramp[1000:], ramp[1000:])
	a.publish()
	a.GetFFT()
	expectEqual(t, a.fftResult[0], float32(952))
	expectEqual(t, a.fftResult[fftSize-1], float32(2999))
}

func TestGetFFTKeepsNewestFrame(t *testing.T) {
	a := newSpectrumAudio()
	for _, v := range a.GetFFT() {
		expectEqual(t, v, float32(0))
	}

	sine := make([]float32, fftSize)
	for i := range sine {
		sine[i] = float32(0.5 * math.Sin(2*math.Pi*64*float64(i)/fftSize))
	}
	a.record(sine, sine)
	a.publish()
	expectEqual(t, peakBin(a.GetFFT()), 64)
	// nothing new was published, so the older frames are ignored
	expectEqual(t, peakBin(a.GetFFT()), 64)
	expectEqual(t, peakBin(a.GetFFT()), 64)

	silence := make([]float32, fftSize)
	a.record(silence, silence)
	a.publish()
	a.publish()
	for _, v := range a.GetFFT() {
		expectNearlyEqual(t, v, 0, 1e-6)
	}
}

func TestShippedPresetsLoad(t *testing.T) {
	pm := newPresetManager("../../presets")
	names, err := pm.getList()
	expectNoError(t, err)
	if len(names) == 0 {
		t.Fatal("expected presets")
	}
	for _, name := range names {
		_, err := pm.load(name)
		expectNoError(t, err)
	}
	p, err := pm.load("strings")
	expectNoError(t, err)
	expectEqual(t, p.Engine, EngineStringSynth)
	// fields missing from the file keep their defaults
	expectEqual(t, p.InternalExciter, true)
	expectEqual(t, p.Model, NewParams().Model)
}

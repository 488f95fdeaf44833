// Package fx implements a small accumulator machine over a compressed circular
// sample memory, and the reverb, chorus and ensemble effects built on it.
package fx

import (
	"fmt"

	"github.com/jinjor/rings-resonator/src/dsp"
)

// ----- Sample Formats ----- //

// Format converts between the accumulator and the stored representation.
type Format[S any] interface {
	Compress(v float32) S
	Decompress(s S) float32
}

// Format12 stores samples as 12-bit fixed point in the low bits of a uint16.
type Format12 struct{}

// Compress ...
func (Format12) Compress(v float32) uint16 {
	return uint16(clip16(int32(v * 4096)))
}

// Decompress ...
func (Format12) Decompress(s uint16) float32 {
	return float32(int16(s)) / 4096
}

// Format16 stores samples as 16-bit fixed point.
type Format16 struct{}

// Compress ...
func (Format16) Compress(v float32) uint16 {
	return uint16(clip16(int32(v * 32768)))
}

// Decompress ...
func (Format16) Decompress(s uint16) float32 {
	return float32(int16(s)) / 32768
}

// Format32 stores samples as they are.
type Format32 struct{}

// Compress ...
func (Format32) Compress(v float32) float32 { return v }

// Decompress ...
func (Format32) Decompress(s float32) float32 { return s }

func clip16(x int32) int16 {
	if x < -32768 {
		return -32768
	}
	if x > 32767 {
		return 32767
	}
	return int16(x)
}

// ----- Memory Layout ----- //

// Line is a named region of the engine memory.
type Line struct {
	Base   int
	Length int
}

// Tail is the offset of the oldest sample of the line.
func (l Line) Tail() int {
	return l.Length - 1
}

// Memory lays out delay lines back to back in an engine of a given size.
type Memory struct {
	size int
	next int
}

// NewMemory ...
func NewMemory(size int) *Memory {
	return &Memory{size: size}
}

// Reserve appends lines of the given lengths. Each line is followed by one
// guard sample. It panics when the layout does not fit.
func (m *Memory) Reserve(lengths ...int) []Line {
	lines := make([]Line, len(lengths))
	for i, length := range lengths {
		lines[i] = Line{Base: m.next, Length: length}
		m.next += length + 1
		if lines[i].Base+length > m.size {
			panic(fmt.Errorf("delay memory full: line %d needs %d, size is %d", i, lines[i].Base+length, m.size))
		}
	}
	return lines
}

// ----- Engine ----- //

// LFO selects one of the two engine LFOs.
type LFO int

// LFO ...
const (
	LFO1 LFO = iota
	LFO2
)

// Engine owns a circular memory of samples in format F and two slow LFOs.
type Engine[S any, F Format[S]] struct {
	buffer   []S
	mask     int
	writePtr int
	format   F
	lfo      [2]dsp.CosineOscillator
}

// Init attaches storage owned by the caller. Its length must be a power of two.
func (e *Engine[S, F]) Init(buffer []S) {
	size := len(buffer)
	if size == 0 || size&(size-1) != 0 {
		panic(fmt.Errorf("fx memory size must be a power of two: %d", size))
	}
	e.buffer = buffer
	e.mask = size - 1
	e.Clear()
}

// Size ...
func (e *Engine[S, F]) Size() int {
	return len(e.buffer)
}

// Clear ...
func (e *Engine[S, F]) Clear() {
	var zero S
	for i := range e.buffer {
		e.buffer[i] = zero
	}
	e.writePtr = 0
}

// SetLFOFrequency sets the frequency of an LFO, normalized to the sample rate.
// LFOs advance once every 32 samples.
func (e *Engine[S, F]) SetLFOFrequency(index LFO, frequency float32) {
	e.lfo[index].Init(frequency*32, dsp.CosineApproximate)
}

// Start moves "now" one sample forward and prepares c for the sample.
func (e *Engine[S, F]) Start(c *Context[S, F]) {
	e.writePtr--
	if e.writePtr < 0 {
		e.writePtr += len(e.buffer)
	}
	c.accumulator = 0
	c.previousRead = 0
	c.engine = e
	if e.writePtr&31 == 0 {
		c.lfoValue[0] = e.lfo[0].Next()
		c.lfoValue[1] = e.lfo[1].Next()
	} else {
		c.lfoValue[0] = e.lfo[0].Value()
		c.lfoValue[1] = e.lfo[1].Value()
	}
}

// ----- Context ----- //

// Context is the accumulator of one sample of processing.
type Context[S any, F Format[S]] struct {
	accumulator  float32
	previousRead float32
	lfoValue     [2]float32
	engine       *Engine[S, F]
}

func (c *Context[S, F]) at(l Line, offset int) int {
	return (c.engine.writePtr + l.Base + offset) & c.engine.mask
}

// Load replaces the accumulator.
func (c *Context[S, F]) Load(value float32) {
	c.accumulator = value
}

// Read adds value*scale to the accumulator.
func (c *Context[S, F]) Read(value, scale float32) {
	c.accumulator += value * scale
}

// Write stores the accumulator into v, then scales the accumulator.
func (c *Context[S, F]) Write(v *float32, scale float32) {
	*v = c.accumulator
	c.accumulator *= scale
}

// WriteLine stores the accumulator into line at offset, then scales the
// accumulator.
func (c *Context[S, F]) WriteLine(l Line, offset int, scale float32) {
	c.engine.buffer[c.at(l, offset)] = c.engine.format.Compress(c.accumulator)
	c.accumulator *= scale
}

// WriteTail is WriteLine at the oldest sample of the line.
func (c *Context[S, F]) WriteTail(l Line, scale float32) {
	c.WriteLine(l, l.Tail(), scale)
}

// WriteAllPass writes the accumulator and adds back the last value read, which
// completes an allpass section.
func (c *Context[S, F]) WriteAllPass(l Line, offset int, scale float32) {
	c.WriteLine(l, offset, scale)
	c.accumulator += c.previousRead
}

// ReadLine adds line[offset]*scale to the accumulator.
func (c *Context[S, F]) ReadLine(l Line, offset int, scale float32) {
	r := c.engine.format.Decompress(c.engine.buffer[c.at(l, offset)])
	c.previousRead = r
	c.accumulator += r * scale
}

// ReadTail is ReadLine at the oldest sample of the line.
func (c *Context[S, F]) ReadTail(l Line, scale float32) {
	c.ReadLine(l, l.Tail(), scale)
}

// Lp low-passes the accumulator through state.
func (c *Context[S, F]) Lp(state *float32, coefficient float32) {
	*state += coefficient * (c.accumulator - *state)
	c.accumulator = *state
}

// Hp high-passes the accumulator through state.
func (c *Context[S, F]) Hp(state *float32, coefficient float32) {
	*state += coefficient * (c.accumulator - *state)
	c.accumulator -= *state
}

// Interpolate reads the line at a fractional offset.
func (c *Context[S, F]) Interpolate(l Line, offset float32, scale float32) {
	i, frac := dsp.SplitIntegral(offset)
	f := c.engine.format
	a := f.Decompress(c.engine.buffer[c.at(l, i)])
	b := f.Decompress(c.engine.buffer[c.at(l, i+1)])
	x := a + (b-a)*frac
	c.previousRead = x
	c.accumulator += x * scale
}

// InterpolateLFO is Interpolate with the offset modulated by an LFO.
func (c *Context[S, F]) InterpolateLFO(l Line, offset float32, index LFO, amplitude float32, scale float32) {
	c.Interpolate(l, offset+amplitude*c.lfoValue[index], scale)
}

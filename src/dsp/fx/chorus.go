package fx

import (
	"fmt"

	"github.com/jinjor/rings-resonator/src/dsp"
)

// ChorusMemorySize is the number of uint16 samples a Chorus needs.
const ChorusMemorySize = 2048

var chorusLine = NewMemory(ChorusMemorySize).Reserve(2047)[0]

// Chorus sums the input to mono and reads it back through two pairs of
// quadrature-modulated taps.
type Chorus struct {
	engine Engine[uint16, Format16]
	phase1 float32
	phase2 float32
	amount float32
	depth  float32
}

// Init ...
func (c *Chorus) Init(buffer []uint16) {
	if len(buffer) < ChorusMemorySize {
		panic(fmt.Errorf("chorus needs %d samples of memory, got %d", ChorusMemorySize, len(buffer)))
	}
	c.engine.Init(buffer[:ChorusMemorySize])
	c.phase1 = 0
	c.phase2 = 0
}

// Clear ...
func (c *Chorus) Clear() {
	c.engine.Clear()
}

// SetAmount ...
func (c *Chorus) SetAmount(amount float32) { c.amount = amount }

// SetDepth ...
func (c *Chorus) SetDepth(depth float32) { c.depth = depth * 384 }

// Process ...
func (c *Chorus) Process(left, right []float32) {
	var ctx Context[uint16, Format16]
	dryAmount := 1 - c.amount*0.5
	for i := range left {
		c.engine.Start(&ctx)

		c.phase1 += 4.17e-06
		if c.phase1 >= 1 {
			c.phase1 -= 1
		}
		c.phase2 += 5.417e-06
		if c.phase2 >= 1 {
			c.phase2 -= 1
		}
		sin1 := dsp.Interpolate(dsp.SineTable, c.phase1, dsp.SineTableSize)
		cos1 := dsp.Interpolate(dsp.SineTable, c.phase1+0.25, dsp.SineTableSize)
		sin2 := dsp.Interpolate(dsp.SineTable, c.phase2, dsp.SineTableSize)
		cos2 := dsp.Interpolate(dsp.SineTable, c.phase2+0.25, dsp.SineTableSize)

		var wet float32
		ctx.Read(left[i], 0.5)
		ctx.Read(right[i], 0.5)
		ctx.WriteLine(chorusLine, 0, 0)

		ctx.Interpolate(chorusLine, sin1*c.depth+1200, 0.5)
		ctx.Interpolate(chorusLine, sin2*c.depth+800, 0.5)
		ctx.Write(&wet, 0)
		left[i] = wet*c.amount + left[i]*dryAmount

		ctx.Interpolate(chorusLine, cos1*c.depth+800, 0.5)
		ctx.Interpolate(chorusLine, cos2*c.depth+1200, 0.5)
		ctx.Write(&wet, 0)
		right[i] = wet*c.amount + right[i]*dryAmount
	}
}

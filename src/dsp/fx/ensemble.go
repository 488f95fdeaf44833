package fx

import (
	"fmt"

	"github.com/jinjor/rings-resonator/src/dsp"
)

// EnsembleMemorySize is the number of uint16 samples an Ensemble needs.
const EnsembleMemorySize = 4096

var ensembleLines = NewMemory(EnsembleMemorySize).Reserve(2047, 2047)

// Ensemble is a string-machine chorus: three taps per channel, modulated by a
// slow and a fast LFO at 120 degree offsets.
type Ensemble struct {
	engine Engine[uint16, Format16]
	phase1 float32
	phase2 float32
	amount float32
	depth  float32
}

// Init ...
func (e *Ensemble) Init(buffer []uint16) {
	if len(buffer) < EnsembleMemorySize {
		panic(fmt.Errorf("ensemble needs %d samples of memory, got %d", EnsembleMemorySize, len(buffer)))
	}
	e.engine.Init(buffer[:EnsembleMemorySize])
	e.phase1 = 0
	e.phase2 = 0
}

// Clear ...
func (e *Ensemble) Clear() {
	e.engine.Clear()
}

// SetAmount ...
func (e *Ensemble) SetAmount(amount float32) { e.amount = amount }

// SetDepth ...
func (e *Ensemble) SetDepth(depth float32) { e.depth = depth * 128 }

// Process ...
func (e *Ensemble) Process(left, right []float32) {
	var c Context[uint16, Format16]
	lineL, lineR := ensembleLines[0], ensembleLines[1]
	dryAmount := 1 - e.amount*0.5
	const mask = dsp.SineTableSize - 1
	const third = dsp.SineTableSize / 3
	for i := range left {
		e.engine.Start(&c)

		e.phase1 += 1.57e-05
		if e.phase1 >= 1 {
			e.phase1 -= 1
		}
		e.phase2 += 1.37e-04
		if e.phase2 >= 1 {
			e.phase2 -= 1
		}
		phi1 := int(e.phase1 * dsp.SineTableSize)
		slow0 := dsp.SineTable[phi1&mask]
		slow120 := dsp.SineTable[(phi1+third)&mask]
		slow240 := dsp.SineTable[(phi1+2*third)&mask]
		phi2 := int(e.phase2 * dsp.SineTableSize)
		fast0 := dsp.SineTable[phi2&mask]
		fast120 := dsp.SineTable[(phi2+third)&mask]
		fast240 := dsp.SineTable[(phi2+2*third)&mask]

		a := e.depth
		b := e.depth * 0.1
		mod1 := slow0*a + fast0*b
		mod2 := slow120*a + fast120*b
		mod3 := slow240*a + fast240*b

		var wet float32
		c.Read(left[i], 1)
		c.WriteLine(lineL, 0, 0)
		c.Read(right[i], 1)
		c.WriteLine(lineR, 0, 0)

		c.Interpolate(lineL, mod1+1024, 0.33)
		c.Interpolate(lineL, mod2+1024, 0.33)
		c.Interpolate(lineR, mod3+1024, 0.33)
		c.Write(&wet, 0)
		left[i] = wet*e.amount + left[i]*dryAmount

		c.Interpolate(lineR, mod1+1024, 0.33)
		c.Interpolate(lineR, mod2+1024, 0.33)
		c.Interpolate(lineL, mod3+1024, 0.33)
		c.Write(&wet, 0)
		right[i] = wet*e.amount + right[i]*dryAmount
	}
}

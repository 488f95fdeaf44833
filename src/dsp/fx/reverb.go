package fx

import (
	"fmt"

	"github.com/jinjor/rings-resonator/src/dsp"
)

// ReverbMemorySize is the number of uint16 samples a Reverb needs.
const ReverbMemorySize = 32768

var reverbLines = NewMemory(ReverbMemorySize).Reserve(
	150, 214, 319, 527, // input diffusers
	2182, 2690, 4501, // first half of the loop
	2525, 2197, 6312, // second half of the loop
)

var (
	ap1, ap2, ap3, ap4 = reverbLines[0], reverbLines[1], reverbLines[2], reverbLines[3]
	dap1a, dap1b, del1 = reverbLines[4], reverbLines[5], reverbLines[6]
	dap2a, dap2b, del2 = reverbLines[7], reverbLines[8], reverbLines[9]
)

// Reverb is a Griesinger plate: four input allpass diffusers feeding a loop
// of two allpass pairs and two delays. The first diffuser is smeared by LFO1
// and the long delay is modulated by LFO2.
type Reverb struct {
	engine     Engine[uint16, Format12]
	amount     float32
	inputGain  float32
	reverbTime float32
	diffusion  float32
	lp         float32
	lpDecay1   float32
	lpDecay2   float32
}

// Init attaches the reverb to its memory.
func (r *Reverb) Init(buffer []uint16) {
	if len(buffer) < ReverbMemorySize {
		panic(fmt.Errorf("reverb needs %d samples of memory, got %d", ReverbMemorySize, len(buffer)))
	}
	r.engine.Init(buffer[:ReverbMemorySize])
	r.engine.SetLFOFrequency(LFO1, 0.5/dsp.SampleRate)
	r.engine.SetLFOFrequency(LFO2, 0.3/dsp.SampleRate)
	r.lp = 0.7
	r.diffusion = 0.625
	r.reverbTime = 0.5
	r.inputGain = 0.2
	r.amount = 0
	r.lpDecay1 = 0
	r.lpDecay2 = 0
}

// Clear ...
func (r *Reverb) Clear() {
	r.engine.Clear()
	r.lpDecay1 = 0
	r.lpDecay2 = 0
}

// SetAmount ...
func (r *Reverb) SetAmount(amount float32) { r.amount = amount }

// SetInputGain ...
func (r *Reverb) SetInputGain(gain float32) { r.inputGain = gain }

// SetTime sets the loop gain.
func (r *Reverb) SetTime(time float32) { r.reverbTime = time }

// SetDiffusion ...
func (r *Reverb) SetDiffusion(diffusion float32) { r.diffusion = diffusion }

// SetLp sets the damping coefficient inside the loop.
func (r *Reverb) SetLp(lp float32) { r.lp = lp }

// Process mixes the reverb into left and right in place.
func (r *Reverb) Process(left, right []float32) {
	var c Context[uint16, Format12]
	kap := r.diffusion
	klp := r.lp
	krt := r.reverbTime
	amount := r.amount
	gain := r.inputGain
	lp1 := r.lpDecay1
	lp2 := r.lpDecay2

	for i := range left {
		var wet, apout float32
		r.engine.Start(&c)

		c.InterpolateLFO(ap1, 10, LFO1, 80, 1)
		c.WriteLine(ap1, 100, 0)

		c.Read(left[i]+right[i], gain)

		c.ReadTail(ap1, kap)
		c.WriteAllPass(ap1, 0, -kap)
		c.ReadTail(ap2, kap)
		c.WriteAllPass(ap2, 0, -kap)
		c.ReadTail(ap3, kap)
		c.WriteAllPass(ap3, 0, -kap)
		c.ReadTail(ap4, kap)
		c.WriteAllPass(ap4, 0, -kap)
		c.Write(&apout, 1)

		c.Load(apout)
		c.InterpolateLFO(del2, 6211, LFO2, 100, krt)
		c.Lp(&lp1, klp)
		c.ReadTail(dap1a, -kap)
		c.WriteAllPass(dap1a, 0, kap)
		c.ReadTail(dap1b, kap)
		c.WriteAllPass(dap1b, 0, -kap)
		c.WriteLine(del1, 0, 2)
		c.Write(&wet, 0)
		left[i] += (wet - left[i]) * amount

		c.Load(apout)
		c.ReadTail(del1, krt)
		c.Lp(&lp2, klp)
		c.ReadTail(dap2a, kap)
		c.WriteAllPass(dap2a, 0, -kap)
		c.ReadTail(dap2b, -kap)
		c.WriteAllPass(dap2b, 0, kap)
		c.WriteLine(del2, 0, 2)
		c.Write(&wet, 0)
		right[i] += (wet - right[i]) * amount
	}
	r.lpDecay1 = lp1
	r.lpDecay2 = lp2
}

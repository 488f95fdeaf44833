package dsp

import "fmt"

// ----- Delay Line ----- //

// DelayLine is a circular buffer written backwards, so that a read at delay d
// is at writePtr+d. The capacity is a power of two.
type DelayLine struct {
	line     []float32
	mask     int
	writePtr int
	delay    int
}

// NewDelayLine allocates a line of size samples.
func NewDelayLine(size int) *DelayLine {
	if size <= 0 || size&(size-1) != 0 {
		panic(fmt.Errorf("delay line size must be a power of two: %d", size))
	}
	return &DelayLine{
		line:  make([]float32, size),
		mask:  size - 1,
		delay: 1,
	}
}

// Len is the capacity.
func (d *DelayLine) Len() int {
	return len(d.line)
}

// Reset clears the content.
func (d *DelayLine) Reset() {
	for i := range d.line {
		d.line[i] = 0
	}
	d.delay = 1
	d.writePtr = 0
}

// SetDelay sets the delay used by ReadDefault.
func (d *DelayLine) SetDelay(delay int) {
	d.delay = delay
}

// Write ...
func (d *DelayLine) Write(sample float32) {
	d.line[d.writePtr] = sample
	d.writePtr = (d.writePtr - 1) & d.mask
}

// Allpass runs a Schroeder allpass using the line as its memory.
func (d *DelayLine) Allpass(sample float32, delay int, coefficient float32) float32 {
	read := d.line[(d.writePtr+delay)&d.mask]
	write := sample + coefficient*read
	d.Write(write)
	return -write*coefficient + read
}

// AllpassFrac is Allpass with a fractional delay.
func (d *DelayLine) AllpassFrac(sample float32, delay float32, coefficient float32) float32 {
	read := d.Read(delay)
	write := sample + coefficient*read
	d.Write(write)
	return -write*coefficient + read
}

// WriteRead ...
func (d *DelayLine) WriteRead(sample float32, delay float32) float32 {
	d.Write(sample)
	return d.Read(delay)
}

// ReadDefault reads at the delay given to SetDelay.
func (d *DelayLine) ReadDefault() float32 {
	return d.line[(d.writePtr+d.delay)&d.mask]
}

// ReadAt reads at an integral delay.
func (d *DelayLine) ReadAt(delay int) float32 {
	return d.line[(d.writePtr+delay)&d.mask]
}

// Read reads at a fractional delay with linear interpolation.
func (d *DelayLine) Read(delay float32) float32 {
	i, frac := SplitIntegral(delay)
	a := d.line[(d.writePtr+i)&d.mask]
	b := d.line[(d.writePtr+i+1)&d.mask]
	return a + (b-a)*frac
}

// ReadHermite reads at a fractional delay with 4-point Hermite interpolation.
func (d *DelayLine) ReadHermite(delay float32) float32 {
	i, f := SplitIntegral(delay)
	t := d.writePtr + i
	xm1 := d.line[(t-1)&d.mask]
	x0 := d.line[t&d.mask]
	x1 := d.line[(t+1)&d.mask]
	x2 := d.line[(t+2)&d.mask]
	c := (x1 - xm1) * 0.5
	v := x0 - x1
	w := c + v
	a := w + v + (x2-x0)*0.5
	bNeg := w + a
	return (((a*f)-bNeg)*f+c)*f + x0
}

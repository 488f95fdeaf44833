package rings

import (
	"github.com/chewxy/math32"

	"github.com/jinjor/rings-resonator/src/dsp"
)

const (
	noteFilterMedianSize = 4
	noteFilterDelaySize  = 16
)

// NoteFilter cleans up a pitch control signal. Jumps larger than a
// threshold are followed immediately; small moves go through a median and a
// lag whose speed depends on how far the note still has to travel.
//
// The stable note is the filtered note a few blocks ago, but never older
// than the last strum. It lets a strum commit the note that was playing
// before a jump that arrived just ahead of the strum.
type NoteFilter struct {
	fastCoefficient float32
	slowCoefficient float32
	lag             int

	stableNote float32
	note       float32
	previous   [noteFilterMedianSize]float32
	index      int
	delayed    [noteFilterDelaySize]float32
	delayPtr   int
	age        int
}

// Init takes the block rate in Hz, the time constants in seconds of the fast
// and slow lag, and the delay in seconds of the stable note.
func (n *NoteFilter) Init(blockRate, timeConstantFast, timeConstantSlow, edgeDelay float32) {
	n.fastCoefficient = 1 / (timeConstantFast * blockRate)
	n.slowCoefficient = 1 / (timeConstantSlow * blockRate)
	n.lag = dsp.Clamp(int(edgeDelay*blockRate), 1, noteFilterDelaySize-1)
	n.stableNote = 69
	n.note = 69
	n.index = 0
	n.delayPtr = 0
	n.age = 0
	for i := range n.previous {
		n.previous[i] = 69
	}
	for i := range n.delayed {
		n.delayed[i] = 69
	}
}

// ago returns the note pushed k blocks ago, k >= 1.
func (n *NoteFilter) ago(k int) float32 {
	return n.delayed[(n.delayPtr-k+noteFilterDelaySize)%noteFilterDelaySize]
}

// Process feeds one control-rate note value and returns the filtered note.
// strum forces the filter to jump to the new value.
func (n *NoteFilter) Process(note float32, strum bool) float32 {
	n.stableNote = n.ago(max(1, min(n.lag, n.age)))
	if strum {
		n.age = 0
	}

	if math32.Abs(note-n.note) > 0.4 || strum {
		n.note = note
		for i := range n.previous {
			n.previous[i] = note
		}
	} else {
		n.previous[n.index] = note
		n.index = (n.index + 1) % noteFilterMedianSize
		sorted := n.previous
		for i := 1; i < len(sorted); i++ {
			for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
				sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
			}
		}
		median := 0.5 * (sorted[1] + sorted[2])
		coefficient := n.slowCoefficient
		if math32.Abs(median-n.note) > 0.1 {
			coefficient = n.fastCoefficient
		}
		dsp.Lag(&n.note, median, coefficient)
	}

	n.delayed[n.delayPtr] = n.note
	n.delayPtr = (n.delayPtr + 1) % noteFilterDelaySize
	n.age = min(n.age+1, noteFilterDelaySize)
	return n.note
}

// Note is the last filtered note.
func (n *NoteFilter) Note() float32 {
	return n.note
}

// StableNote is the note a strum in the last Process call committed.
func (n *NoteFilter) StableNote() float32 {
	return n.stableNote
}

package rings

import (
	"github.com/chewxy/math32"

	"github.com/jinjor/rings-resonator/src/dsp"
)

// Strummer decides when a new note starts. With InternalStrum set it derives
// strums from note changes, or from onsets in the exciter signal.
type Strummer struct {
	onsetDetector  OnsetDetector
	inhibitTimer   int
	inhibitCounter int
	previousNote   float32
}

// Init takes the minimum time between strums in seconds and the block rate.
func (s *Strummer) Init(ioi, blockRate float32) {
	s.onsetDetector.Init(8.0/dsp.SampleRate, 160.0/dsp.SampleRate, 1600.0/dsp.SampleRate, blockRate, ioi)
	s.inhibitTimer = int(ioi * blockRate)
	s.inhibitCounter = 0
	s.previousNote = 69
}

// Process updates perf.Strum for the block in.
func (s *Strummer) Process(in []float32, perf *PerformanceState) {
	hasOnset := len(in) > 0 && s.onsetDetector.Process(in)
	noteChanged := math32.Abs(perf.Note-s.previousNote) > 0.4

	inhibitTimer := s.inhibitTimer
	if perf.InternalStrum {
		switch {
		case !perf.InternalNote:
			perf.Strum = noteChanged
		case !perf.InternalExciter:
			perf.Strum = hasOnset
			inhibitTimer *= 4
		default:
			perf.Strum = false
		}
	}

	if s.inhibitCounter > 0 {
		s.inhibitCounter--
		perf.Strum = false
	} else if perf.Strum {
		s.inhibitCounter = inhibitTimer
	}
	s.previousNote = perf.Note
}

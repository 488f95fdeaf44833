// Package rings implements the resonator models and the parts that drive
// them: a modal bank, waveguide strings, an FM voice and a string machine.
// Everything runs at dsp.SampleRate in blocks of at most dsp.MaxBlockSize.
package rings

import "fmt"

// ----- Performance ----- //

// PerformanceState is the per-block control input of a part.
type PerformanceState struct {
	// Note is the played pitch in semitones, 69 being A3.
	Note  float32
	Tonic float32
	FM    float32
	Chord int
	// Strum is true on the block where a note starts.
	Strum bool

	InternalExciter bool
	InternalStrum   bool
	InternalNote    bool
}

// Patch holds the four macro controls, each in [0, 1].
type Patch struct {
	Structure  float32
	Brightness float32
	Damping    float32
	Position   float32
}

// ----- Resonator Model ----- //

// ResonatorModel selects what a Part renders.
type ResonatorModel int

// ResonatorModel ...
const (
	ModelModal ResonatorModel = iota
	ModelSympatheticString
	ModelString
	ModelFMVoice
	ModelSympatheticStringQuantized
	ModelStringAndReverb
	NumModels
)

var modelNames = [NumModels]string{
	"modal",
	"sympathetic",
	"string",
	"fm",
	"quantized",
	"reverb",
}

func (m ResonatorModel) String() string {
	if m < 0 || m >= NumModels {
		return fmt.Sprintf("model(%d)", int(m))
	}
	return modelNames[m]
}

// ParseResonatorModel is the inverse of ResonatorModel.String.
func ParseResonatorModel(s string) (ResonatorModel, error) {
	for i, name := range modelNames {
		if name == s {
			return ResonatorModel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown resonator model: %q", s)
}

// MarshalText ...
func (m ResonatorModel) MarshalText() ([]byte, error) {
	if m < 0 || m >= NumModels {
		return nil, fmt.Errorf("unknown resonator model: %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText ...
func (m *ResonatorModel) UnmarshalText(text []byte) error {
	model, err := ParseResonatorModel(string(text))
	if err != nil {
		return err
	}
	*m = model
	return nil
}

// ----- Chords ----- //

// NumChords is the number of entries of the chord table.
const NumChords = 11

// ChordSize is the number of notes of a chord.
const ChordSize = 8

// chords lists intervals in semitones from the played note. The most
// important intervals come first so that smaller voicings take a prefix.
var chords = [NumChords][ChordSize]float32{
	{0, 12, -12, 24, 0.05, 12.05, -11.95, 23.95}, // octaves
	{0, 7, 12, 19, -12, -5, 24, 31},              // fifths
	{0, 7, 3, 12, -12, 15, 19, 24},               // minor
	{0, 7, 3, 10, -12, 12, 15, 22},               // minor 7th
	{0, 7, 3, 14, 10, -12, 15, 19},               // minor 9th
	{0, 7, 3, 17, 10, -12, 14, 22},               // minor 11th
	{0, 7, 4, 12, -12, 16, 19, 24},               // major
	{0, 7, 4, 11, -12, 12, 16, 23},               // major 7th
	{0, 7, 4, 14, 11, -12, 16, 19},               // major 9th
	{0, 7, 5, 12, -12, 17, 19, 24},               // sus4
	{0, 7, 2, 12, -12, 14, 19, 24},               // sus2
}

// ChordNote returns the i-th interval of a chord, clamping the chord index.
func ChordNote(chord, i int) float32 {
	chord = min(max(chord, 0), NumChords-1)
	return chords[chord][i%ChordSize]
}

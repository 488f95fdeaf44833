package dsp

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/chewxy/math32"
)

// ----- Reference Tables ----- //

// Reference tables. They are generated once at start-up from the same
// formulas the analytic functions below implement, and are the regression
// baseline for those functions.
var (
	StiffnessTable       = makeStiffnessTable()
	FourDecadesTable     = makeFourDecadesTable()
	SvfShiftTable        = makeSvfShiftTable()
	SineTable            = makeSineTable()
	FMFrequencyQuantizer = makeFMFrequencyQuantizer()
)

// SineTableSize is the number of samples per period in SineTable. The table
// holds an extra quarter period plus one guard sample so that cosine reads and
// interpolation never wrap.
const SineTableSize = 4096

func makeStiffnessTable() []float32 {
	t := make([]float32, 257)
	for i := range t {
		t[i] = float32(stiffness64(float64(i) / 256))
	}
	t[255] = 2
	t[256] = 2
	return t
}

func stiffness64(g float64) float64 {
	switch {
	case g < 0.25:
		return -(0.25 - g) * 0.25
	case g < 0.3:
		return 0
	case g < 0.9:
		g = (g - 0.3) / 0.6
		return 0.01*math.Pow(10, g*2) - 0.01
	default:
		g = (g - 0.9) / 0.1
		g *= g
		return 1.5 - math.Cos(g*math.Pi)/2
	}
}

func makeFourDecadesTable() []float32 {
	t := make([]float32, 257)
	for i := range t {
		t[i] = float32(math.Pow(10, 4*float64(i)/256))
	}
	return t
}

// SvfShiftTable is indexed in semitones between the fundamental and the
// cutoff of the loop filter. It holds the phase delay of the filter in periods.
func makeSvfShiftTable() []float32 {
	t := make([]float32, 257)
	for i := range t {
		ratio := math.Pow(2, float64(i)/12)
		t[i] = float32(2 * math.Atan(1/ratio) / (2 * math.Pi))
	}
	return t
}

func makeSineTable() []float32 {
	t := make([]float32, SineTableSize+SineTableSize/4+1)
	for i := range t {
		t[i] = float32(math.Sin(2 * math.Pi * float64(i) / SineTableSize))
	}
	return t
}

var fmFrequencyRatios = []float64{
	0.5, 0.5 * 1.0092848012118478, math.Sqrt2 / 2, math.Pi / 4,
	1.0, 1.0 * 1.0092848012118478, math.Sqrt2, math.Pi / 2,
	7.0 / 4, 2, 2 * 1.0092848012118478, 9.0 / 4, 11.0 / 4,
	2 * math.Sqrt2, 3, math.Pi, math.Sqrt(3) * 2, 4, math.Sqrt2 * 3,
	math.Pi * 3 / 2, 5, math.Sqrt2 * 4, 8,
}

// makeFMFrequencyQuantizer builds a staircase of semitone offsets: each
// consonant ratio gets a flat step, and the widest gaps are bridged until the
// table reaches 128 entries (+1 guard).
func makeFMFrequencyQuantizer() []float32 {
	scale := make([]float64, 0, 129)
	for _, ratio := range fmFrequencyRatios {
		s := 12 * math.Log2(ratio)
		scale = append(scale, s, s, s)
	}
	for len(scale) < 128 {
		gap, widest := 0, -1.0
		for i := 0; i+1 < len(scale); i++ {
			if d := scale[i+1] - scale[i]; d > widest {
				gap, widest = i, d
			}
		}
		scale = append(scale, 0)
		copy(scale[gap+2:], scale[gap+1:])
		scale[gap+1] = (scale[gap] + scale[gap+2]) / 2
	}
	scale = append(scale, scale[len(scale)-1])
	t := make([]float32, len(scale))
	for i, s := range scale {
		t[i] = float32(s)
	}
	return t
}

// ----- Analytic Replacements ----- //

// Stiffness maps the structure knob to the inharmonicity increment of the
// modal resonator.
func Stiffness(x float32) float32 {
	switch {
	case x < 0.25:
		return -(0.25 - x) * 0.25
	case x < 0.3:
		return 0
	case x < 0.9:
		g := (x - 0.3) / 0.6
		return 0.01*math32.Exp(g*2*math.Ln10) - 0.01
	case x >= 1:
		return 2
	default:
		g := (x - 0.9) / 0.1
		g *= g
		return 1.5 - math32.Cos(g*pi)/2
	}
}

// FourDecades maps [0, 1] to [1, 10000] exponentially.
func FourDecades(x float32) float32 {
	return math32.Exp(x * 4 * math.Ln10)
}

// SvfShift is the phase delay, in periods, of the string loop filter when its
// cutoff sits the given number of semitones above the fundamental.
func SvfShift(semitones float32) float32 {
	return math32.Atan(math32.Exp(-semitones*ln2Over12)) / pi
}

// ----- Table IO ----- //

// TableSet is a named collection of lookup tables.
//
// IO
//
//	all = { number_of_tables int32, tables []table }
//	table = { name_length int32, name []byte, number_of_samples int32, samples []float32 }
type TableSet struct {
	Tables map[string][]float32
}

// ReferenceTables returns the tables the analytic functions are checked against.
func ReferenceTables() *TableSet {
	return &TableSet{
		Tables: map[string][]float32{
			"stiffness":              StiffnessTable,
			"4_decades":              FourDecadesTable,
			"svf_shift":              SvfShiftTable,
			"sine":                   SineTable,
			"fm_frequency_quantizer": FMFrequencyQuantizer,
		},
	}
}

// Save ...
func (ts *TableSet) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := ts.Write(file); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

// Write ...
func (ts *TableSet) Write(w io.Writer) error {
	names := make([]string, 0, len(ts.Tables))
	for name := range ts.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := binary.Write(w, binary.BigEndian, int32(len(names))); err != nil {
		return err
	}
	for _, name := range names {
		values := ts.Tables[name]
		if err := binary.Write(w, binary.BigEndian, int32(len(name))); err != nil {
			return err
		}
		if _, err := w.Write([]byte(name)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, int32(len(values))); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, values); err != nil {
			return err
		}
	}
	return nil
}

// LoadTableSet ...
func LoadTableSet(path string) (*TableSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadTableSet(file)
}

// ReadTableSet ...
func ReadTableSet(r io.Reader) (*TableSet, error) {
	var numTables int32
	if err := binary.Read(r, binary.BigEndian, &numTables); err != nil {
		return nil, err
	}
	if numTables < 0 || numTables > 1024 {
		return nil, fmt.Errorf("invalid number of tables: %d", numTables)
	}
	ts := &TableSet{Tables: make(map[string][]float32, numTables)}
	for i := 0; i < int(numTables); i++ {
		var nameLength int32
		if err := binary.Read(r, binary.BigEndian, &nameLength); err != nil {
			return nil, err
		}
		if nameLength < 0 || nameLength > 256 {
			return nil, fmt.Errorf("invalid table name length: %d", nameLength)
		}
		name := make([]byte, nameLength)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, err
		}
		var numSamples int32
		if err := binary.Read(r, binary.BigEndian, &numSamples); err != nil {
			return nil, err
		}
		if numSamples < 0 || numSamples > 1<<20 {
			return nil, fmt.Errorf("invalid number of samples in %s: %d", name, numSamples)
		}
		values := make([]float32, numSamples)
		if err := binary.Read(r, binary.BigEndian, values); err != nil {
			return nil, err
		}
		ts.Tables[string(name)] = values
	}
	return ts, nil
}

package audio

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/jinjor/rings-resonator/src/rings"
)

// Params is everything the control side can change. The audio side reads it
// once per buffer and applies it to a RingsResonator.
type Params struct {
	Model           rings.ResonatorModel `yaml:"model"`
	Polyphony       int                  `yaml:"polyphony"`
	Engine          Engine               `yaml:"engine"`
	Fx              rings.FxType         `yaml:"fx"`
	Chord           int                  `yaml:"chord"`
	Frequency       float32              `yaml:"frequency"`
	Structure       float32              `yaml:"structure"`
	Brightness      float32              `yaml:"brightness"`
	Damping         float32              `yaml:"damping"`
	Position        float32              `yaml:"position"`
	DryWet          float32              `yaml:"dryWet"`
	OddEvenMix      float32              `yaml:"oddEvenMix"`
	InternalExciter bool                 `yaml:"internalExciter"`
	InternalStrum   bool                 `yaml:"internalStrum"`
	InternalNote    bool                 `yaml:"internalNote"`
	Bypass          bool                 `yaml:"bypass"`

	// Strums counts strum requests. The audio side strums once per increment.
	Strums uint64 `yaml:"-"`
}

// NewParams returns the patch the command starts with.
func NewParams() Params {
	return Params{
		Model:           rings.ModelModal,
		Polyphony:       1,
		Engine:          EngineResonator,
		Fx:              rings.FxEnsemble,
		Frequency:       220,
		Structure:       0.25,
		Brightness:      0.5,
		Damping:         0.5,
		Position:        0.3,
		DryWet:          1,
		OddEvenMix:      0.5,
		InternalExciter: true,
	}
}

// LoadPatch reads a YAML patch. Missing fields keep their NewParams value.
func LoadPatch(path string) (Params, error) {
	p := NewParams()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse patch %s: %w", path, err)
	}
	return p, nil
}

// SavePatch ...
func SavePatch(path string, p Params) error {
	data, err := yaml.Marshal(&p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// applyTo copies the parameters to r. Unchanged values cost nothing.
func (p *Params) applyTo(r *RingsResonator) {
	r.SetModel(p.Model)
	r.SetPolyphony(p.Polyphony)
	r.SetEngine(p.Engine)
	r.SetFxType(p.Fx)
	r.SetChord(p.Chord)
	r.SetFrequency(p.Frequency)
	r.SetStructure(p.Structure)
	r.SetBrightness(p.Brightness)
	r.SetDamping(p.Damping)
	r.SetPosition(p.Position)
	r.SetDryWet(p.DryWet)
	r.SetOddEvenMix(p.OddEvenMix)
	r.SetInternalExciter(p.InternalExciter)
	r.SetInternalStrum(p.InternalStrum)
	r.SetInternalNote(p.InternalNote)
	r.SetBypass(p.Bypass)
}

func (p *Params) set(key string, value string) error {
	switch key {
	case "model":
		model, err := rings.ParseResonatorModel(value)
		if err != nil {
			return err
		}
		p.Model = model
	case "engine":
		engine, err := ParseEngine(value)
		if err != nil {
			return err
		}
		p.Engine = engine
	case "fx":
		fxType, err := rings.ParseFxType(value)
		if err != nil {
			return err
		}
		p.Fx = fxType
	case "polyphony", "chord":
		n, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return err
		}
		if key == "polyphony" {
			p.Polyphony = int(n)
		} else {
			p.Chord = int(n)
		}
	case "internalExciter", "internalStrum", "internalNote", "bypass":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		*p.flag(key) = b
	default:
		if !p.HasPath(key) {
			return fmt.Errorf("unknown key %v", key)
		}
		f, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return err
		}
		p.SetPath(key, float32(f))
	}
	return nil
}

func (p *Params) flag(key string) *bool {
	switch key {
	case "internalExciter":
		return &p.InternalExciter
	case "internalStrum":
		return &p.InternalStrum
	case "internalNote":
		return &p.InternalNote
	case "bypass":
		return &p.Bypass
	}
	return nil
}

func (p *Params) field(key string) *float32 {
	switch key {
	case "frequency":
		return &p.Frequency
	case "structure":
		return &p.Structure
	case "brightness":
		return &p.Brightness
	case "damping":
		return &p.Damping
	case "position":
		return &p.Position
	case "dryWet":
		return &p.DryWet
	case "oddEvenMix":
		return &p.OddEvenMix
	}
	return nil
}

// SetPath sets a continuous parameter by its patch key. Unknown keys are
// ignored.
func (p *Params) SetPath(path string, v float32) {
	if f := p.field(path); f != nil {
		*f = v
	}
}

// GetPath ...
func (p Params) GetPath(path string) (float32, bool) {
	if f := p.field(path); f != nil {
		return *f, true
	}
	return 0, false
}

// HasPath reports whether path names a continuous parameter.
func (p Params) HasPath(path string) bool {
	return p.field(path) != nil
}

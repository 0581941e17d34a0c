package augment

import (
	"fmt"
	"math"
)

// Parameters tunes the five fixed variants. The zero value is not useful;
// start from DefaultParameters.
type Parameters struct {
	BrightnessGain     float64 `yaml:"brightness_gain"`
	BrightnessBias     float64 `yaml:"brightness_bias"`
	ContrastGain       float64 `yaml:"contrast_gain"`
	MaxRotationDegrees float64 `yaml:"max_rotation_degrees"`
	SaltFraction       float64 `yaml:"salt_fraction"`
	PepperFraction     float64 `yaml:"pepper_fraction"`
}

func DefaultParameters() Parameters {
	return Parameters{
		BrightnessGain:     1.2,
		BrightnessBias:     30,
		ContrastGain:       1.5,
		MaxRotationDegrees: 10,
		SaltFraction:       0.02,
		PepperFraction:     0.02,
	}
}

type ParameterError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("augment: invalid %s value %v - %s", e.Field, e.Value, e.Reason)
}

func (p Parameters) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"brightness_gain", p.BrightnessGain},
		{"brightness_bias", p.BrightnessBias},
		{"contrast_gain", p.ContrastGain},
		{"max_rotation_degrees", p.MaxRotationDegrees},
		{"salt_fraction", p.SaltFraction},
		{"pepper_fraction", p.PepperFraction},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &ParameterError{Field: f.name, Value: f.value, Reason: "must be a finite number"}
		}
	}

	if p.BrightnessGain < 0 {
		return &ParameterError{Field: "brightness_gain", Value: p.BrightnessGain, Reason: "must not be negative"}
	}
	if p.ContrastGain < 0 {
		return &ParameterError{Field: "contrast_gain", Value: p.ContrastGain, Reason: "must not be negative"}
	}
	if p.BrightnessBias < -255 || p.BrightnessBias > 255 {
		return &ParameterError{Field: "brightness_bias", Value: p.BrightnessBias, Reason: "must be between -255 and 255"}
	}
	if p.MaxRotationDegrees < 0 || p.MaxRotationDegrees > 180 {
		return &ParameterError{Field: "max_rotation_degrees", Value: p.MaxRotationDegrees, Reason: "must be between 0 and 180"}
	}
	if p.SaltFraction < 0 || p.SaltFraction > 1 {
		return &ParameterError{Field: "salt_fraction", Value: p.SaltFraction, Reason: "must be between 0 and 1"}
	}
	if p.PepperFraction < 0 || p.PepperFraction > 1 {
		return &ParameterError{Field: "pepper_fraction", Value: p.PepperFraction, Reason: "must be between 0 and 1"}
	}
	return nil
}

package fst

import (
	"errors"
	"fmt"
	"math"
)

// Params are the learning constants of the transducer. Alpha, Zeta, Eta and
// Kappa are reserved: they are carried through configuration and snapshots
// but no update rule reads them.
type Params struct {
	Alpha float64 `json:"alpha" yaml:"alpha"`
	// Beta is the reward and punishment learning rate.
	Beta float64 `json:"beta" yaml:"beta"`
	// Gamma is the classical-conditioning learning rate.
	Gamma float64 `json:"gamma" yaml:"gamma"`
	Zeta  float64 `json:"zeta" yaml:"zeta"`
	Eta   float64 `json:"eta" yaml:"eta"`
	Kappa float64 `json:"kappa" yaml:"kappa"`
	// Nu damps reward and punishment copied onto other states.
	Nu float64 `json:"nu" yaml:"nu"`
	// Tau is both the input-gap timeout and the per-hop decay of the
	// marked trace.
	Tau float64 `json:"tau" yaml:"tau"`

	ExpectancyInitial    float64 `json:"expectancy_initial" yaml:"expectancy_initial"`
	ExpectancyStep       float64 `json:"expectancy_step" yaml:"expectancy_step"`
	ConfidenceInitial    float64 `json:"confidence_initial" yaml:"confidence_initial"`
	ConditioningFloor    float64 `json:"conditioning_floor" yaml:"conditioning_floor"`
	MaxConditioningDepth int     `json:"max_conditioning_depth" yaml:"max_conditioning_depth"`
	// MaxStates caps the state arena; 0 leaves it unbounded.
	MaxStates int `json:"max_states" yaml:"max_states"`
}

func DefaultParams() Params {
	return Params{
		Alpha:                0.05,
		Beta:                 0.1,
		Gamma:                0.2,
		Zeta:                 0.1,
		Eta:                  1.0,
		Kappa:                0.9,
		Nu:                   0.5,
		Tau:                  0.5,
		ExpectancyInitial:    0.5,
		ExpectancyStep:       0.1,
		ConfidenceInitial:    1.0,
		ConditioningFloor:    1e-6,
		MaxConditioningDepth: 32,
	}
}

func (p Params) Validate() error {
	var errs []error
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"alpha", p.Alpha}, {"beta", p.Beta}, {"gamma", p.Gamma}, {"zeta", p.Zeta},
		{"eta", p.Eta}, {"kappa", p.Kappa}, {"nu", p.Nu}, {"tau", p.Tau},
		{"expectancy_initial", p.ExpectancyInitial}, {"expectancy_step", p.ExpectancyStep},
		{"confidence_initial", p.ConfidenceInitial}, {"conditioning_floor", p.ConditioningFloor},
	} {
		if math.IsNaN(field.value) || math.IsInf(field.value, 0) {
			errs = append(errs, fmt.Errorf("%s must be finite", field.name))
		}
	}
	if !(p.Tau > 0) {
		errs = append(errs, fmt.Errorf("tau must be positive, got %v", p.Tau))
	}
	if p.Beta < 0 {
		errs = append(errs, fmt.Errorf("beta must be non-negative, got %v", p.Beta))
	}
	if p.Gamma < 0 {
		errs = append(errs, fmt.Errorf("gamma must be non-negative, got %v", p.Gamma))
	}
	if p.Nu < 0 {
		errs = append(errs, fmt.Errorf("nu must be non-negative, got %v", p.Nu))
	}
	if p.ExpectancyInitial < 0 {
		errs = append(errs, fmt.Errorf("expectancy_initial must be non-negative, got %v", p.ExpectancyInitial))
	}
	if !(p.ExpectancyStep > 0) {
		errs = append(errs, fmt.Errorf("expectancy_step must be positive, got %v", p.ExpectancyStep))
	}
	if !(p.ConfidenceInitial > 0) {
		errs = append(errs, fmt.Errorf("confidence_initial must be positive, got %v", p.ConfidenceInitial))
	}
	if !(p.ConditioningFloor > 0) {
		errs = append(errs, fmt.Errorf("conditioning_floor must be positive, got %v", p.ConditioningFloor))
	}
	if p.MaxConditioningDepth <= 0 {
		errs = append(errs, fmt.Errorf("max_conditioning_depth must be positive, got %d", p.MaxConditioningDepth))
	}
	if p.MaxStates < 0 {
		errs = append(errs, fmt.Errorf("max_states must be non-negative, got %d", p.MaxStates))
	}
	return errors.Join(errs...)
}

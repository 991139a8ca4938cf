package scape

import (
	"context"
	"errors"
	"fmt"

	"formica/internal/fst"
)

const (
	SymbolLight = "light"
	SymbolDark  = "dark"
)

type TMazeConfig struct {
	Trials int `json:"trials" yaml:"trials"`
	// Patience is how many ticks the ant may stay at the junction before
	// the trial counts as a miss.
	Patience int     `json:"patience" yaml:"patience"`
	StepTime float64 `json:"step_time" yaml:"step_time"`
	Pause    float64 `json:"pause" yaml:"pause"`
	// MinCue is the lowest cue intensity; intensities are drawn from
	// [MinCue, 1].
	MinCue float64 `json:"min_cue" yaml:"min_cue"`
}

func DefaultTMazeConfig() TMazeConfig {
	return TMazeConfig{
		Trials:   10,
		Patience: 3,
		StepTime: 0.1,
		Pause:    1.0,
		MinCue:   0.5,
	}
}

func (c TMazeConfig) Validate() error {
	var errs []error
	if c.Trials <= 0 {
		errs = append(errs, fmt.Errorf("trials must be positive, got %d", c.Trials))
	}
	if c.Patience <= 0 {
		errs = append(errs, fmt.Errorf("patience must be positive, got %d", c.Patience))
	}
	if !(c.StepTime > 0) || !(c.Pause > c.StepTime) {
		errs = append(errs, fmt.Errorf("need 0 < step_time < pause, got %v and %v", c.StepTime, c.Pause))
	}
	if c.MinCue < 0 || c.MinCue > 1 {
		errs = append(errs, fmt.Errorf("min_cue must be in [0,1], got %v", c.MinCue))
	}
	return errors.Join(errs...)
}

// TMazeScape runs discrimination trials: a light cue means food waits in
// the left arm, a dark cue means it waits in the right arm. The other arm
// burns.
type TMazeScape struct {
	cfg TMazeConfig
}

func NewTMazeScape(cfg TMazeConfig) (TMazeScape, error) {
	if err := cfg.Validate(); err != nil {
		return TMazeScape{}, err
	}
	return TMazeScape{cfg: cfg}, nil
}

func (TMazeScape) Name() string {
	return "t-maze"
}

func (TMazeScape) InputAlphabet() []string {
	return []string{SymbolLight, SymbolDark, SymbolEat, SymbolBurn}
}

func (TMazeScape) OutputAlphabet() []string {
	return Moves()
}

func (s TMazeScape) Evaluate(ctx context.Context, agent Agent) (Fitness, Trace, error) {
	cfg := s.cfg
	rng := agent.Rand()
	now := agent.Now()
	correct, wrong, missed := 0, 0, 0

	for trial := 0; trial < cfg.Trials; trial++ {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		cue, food := SymbolLight, MoveLeft
		if rng.Intn(2) == 1 {
			cue, food = SymbolDark, MoveRight
		}
		intensity := cfg.MinCue + rng.Float64()*(1-cfg.MinCue)

		now += cfg.Pause
		choice := MoveStay
		for tick := 0; tick < cfg.Patience && choice == MoveStay; tick++ {
			out, err := agent.Step([]fst.Symbol{fst.NewSymbol(cue, intensity)}, now)
			if err != nil {
				return 0, nil, fmt.Errorf("agent %s trial %d: %w", agent.ID(), trial, err)
			}
			now += cfg.StepTime
			if out.Name == MoveLeft || out.Name == MoveRight {
				choice = out.Name
			}
		}

		outcome := SymbolBurn
		switch choice {
		case MoveStay:
			missed++
			continue
		case food:
			outcome = SymbolEat
			correct++
		default:
			wrong++
		}
		if _, err := agent.Step([]fst.Symbol{fst.NewSymbol(outcome, 1)}, now); err != nil {
			return 0, nil, fmt.Errorf("agent %s trial %d: %w", agent.ID(), trial, err)
		}
		now += cfg.StepTime
	}

	return Fitness(float64(correct) / float64(cfg.Trials)), Trace{
		"correct": correct,
		"wrong":   wrong,
		"missed":  missed,
	}, nil
}

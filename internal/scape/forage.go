package scape

import (
	"context"
	"errors"
	"fmt"
	"math"

	"formica/internal/fst"
)

const (
	SymbolScent     = "scent"
	SymbolPheromone = "pheromone"
	SymbolHeat      = "heat"
)

// ForageConfig lays out a one-dimensional track. Cells are numbered from 0.
type ForageConfig struct {
	Length     int     `json:"length" yaml:"length"`
	Start      int     `json:"start" yaml:"start"`
	Food       int     `json:"food" yaml:"food"`
	Hazard     int     `json:"hazard" yaml:"hazard"`
	ScentRange int     `json:"scent_range" yaml:"scent_range"`
	HeatRange  int     `json:"heat_range" yaml:"heat_range"`
	MaxTicks   int     `json:"max_ticks" yaml:"max_ticks"`
	StepTime   float64 `json:"step_time" yaml:"step_time"`
	Pause      float64 `json:"pause" yaml:"pause"`
	Noise      float64 `json:"noise" yaml:"noise"`
}

func DefaultForageConfig() ForageConfig {
	return ForageConfig{
		Length:     12,
		Start:      5,
		Food:       9,
		Hazard:     1,
		ScentRange: 8,
		HeatRange:  2,
		MaxTicks:   40,
		StepTime:   0.1,
		Pause:      1.0,
		Noise:      0.05,
	}
}

func (c ForageConfig) Validate() error {
	var errs []error
	if c.Length < 3 {
		errs = append(errs, fmt.Errorf("length must be at least 3, got %d", c.Length))
	}
	for name, cell := range map[string]int{"start": c.Start, "food": c.Food, "hazard": c.Hazard} {
		if cell < 0 || cell >= c.Length {
			errs = append(errs, fmt.Errorf("%s cell %d outside track of length %d", name, cell, c.Length))
		}
	}
	if c.Start == c.Food || c.Start == c.Hazard || c.Food == c.Hazard {
		errs = append(errs, errors.New("start, food and hazard must be distinct cells"))
	}
	if c.ScentRange < 0 || c.HeatRange < 0 {
		errs = append(errs, errors.New("sensor ranges must be non-negative"))
	}
	if c.MaxTicks <= 0 {
		errs = append(errs, fmt.Errorf("max_ticks must be positive, got %d", c.MaxTicks))
	}
	if !(c.StepTime > 0) || !(c.Pause > c.StepTime) {
		errs = append(errs, fmt.Errorf("need 0 < step_time < pause, got %v and %v", c.StepTime, c.Pause))
	}
	if c.Noise < 0 || c.Noise >= 1 {
		errs = append(errs, fmt.Errorf("noise must be in [0,1), got %v", c.Noise))
	}
	return errors.Join(errs...)
}

// ForageScape is a track with food on one side and a hazard on the other.
// The ant smells food, feels heat near the hazard and recognizes its own
// pheromone on cells it already crossed. An episode ends when the ant eats,
// burns or runs out of ticks.
type ForageScape struct {
	cfg ForageConfig
}

func NewForageScape(cfg ForageConfig) (ForageScape, error) {
	if err := cfg.Validate(); err != nil {
		return ForageScape{}, err
	}
	return ForageScape{cfg: cfg}, nil
}

func (ForageScape) Name() string {
	return "forage"
}

func (ForageScape) InputAlphabet() []string {
	return []string{SymbolScent, SymbolPheromone, SymbolHeat, SymbolEat, SymbolBurn}
}

func (ForageScape) OutputAlphabet() []string {
	return Moves()
}

func (s ForageScape) Evaluate(ctx context.Context, agent Agent) (Fitness, Trace, error) {
	cfg := s.cfg
	rng := agent.Rand()
	now := agent.Now() + cfg.Pause
	position := cfg.Start
	visited := make(map[int]bool, cfg.Length)
	moves := 0

	for tick := 0; tick < cfg.MaxTicks; tick++ {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		inputs := s.sense(position, visited, func(v float64) float64 {
			if cfg.Noise == 0 {
				return v
			}
			return clamp(v+(rng.Float64()*2-1)*cfg.Noise, 0, 1)
		})
		visited[position] = true
		out, err := agent.Step(inputs, now)
		if err != nil {
			return 0, nil, fmt.Errorf("agent %s tick %d: %w", agent.ID(), tick, err)
		}
		now += cfg.StepTime

		switch position {
		case cfg.Food:
			fitness := 1 - 0.5*float64(tick)/float64(cfg.MaxTicks)
			return Fitness(fitness), forageTrace(tick+1, moves, position, "ate"), nil
		case cfg.Hazard:
			return 0, forageTrace(tick+1, moves, position, "burned"), nil
		}

		next := position + moveDelta(out.Name)
		if next >= 0 && next < cfg.Length && next != position {
			position = next
			moves++
		}
	}

	distance := math.Abs(float64(cfg.Food - position))
	fitness := 0.2 * (1 - distance/float64(cfg.Length))
	return Fitness(fitness), forageTrace(cfg.MaxTicks, moves, position, "starved"), nil
}

// sense returns the batch the ant perceives on position. Scent and heat
// fade linearly with distance; pheromone marks cells crossed earlier in the
// episode.
func (s ForageScape) sense(position int, visited map[int]bool, jitter func(float64) float64) []fst.Symbol {
	cfg := s.cfg
	var inputs []fst.Symbol
	switch position {
	case cfg.Food:
		inputs = append(inputs, fst.NewSymbol(SymbolEat, 1))
	case cfg.Hazard:
		inputs = append(inputs, fst.NewSymbol(SymbolBurn, 1))
	}
	if d := abs(cfg.Food - position); d > 0 && d <= cfg.ScentRange {
		inputs = append(inputs, fst.NewSymbol(SymbolScent, jitter(1-float64(d)/float64(cfg.ScentRange+1))))
	}
	if d := abs(cfg.Hazard - position); d > 0 && d <= cfg.HeatRange {
		inputs = append(inputs, fst.NewSymbol(SymbolHeat, jitter(1-float64(d)/float64(cfg.HeatRange+1))))
	}
	if visited[position] {
		inputs = append(inputs, fst.NewSymbol(SymbolPheromone, jitter(0.3)))
	}
	return inputs
}

func forageTrace(ticks, moves, position int, outcome string) Trace {
	return Trace{
		"ticks":    ticks,
		"moves":    moves,
		"position": position,
		"outcome":  outcome,
	}
}

func moveDelta(move string) int {
	switch move {
	case MoveLeft:
		return -1
	case MoveRight:
		return 1
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

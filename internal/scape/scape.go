package scape

import (
	"context"
	"fmt"
	"math/rand"

	"formica/internal/fst"
	"formica/internal/scapeid"
)

type Fitness float64

type Trace map[string]any

// Agent is a learner living in a scape. Now reports the clock of the last
// step so a scape can continue the agent's timeline across episodes.
type Agent interface {
	ID() string
	Now() float64
	Rand() *rand.Rand
	Step(inputs []fst.Symbol, now float64) (fst.Symbol, error)
}

// Scape is safe for concurrent Evaluate calls on distinct agents.
type Scape interface {
	Name() string
	InputAlphabet() []string
	OutputAlphabet() []string
	Evaluate(ctx context.Context, agent Agent) (Fitness, Trace, error)
}

// Config carries per-scape settings.
type Config struct {
	Forage ForageConfig `json:"forage" yaml:"forage"`
	TMaze  TMazeConfig  `json:"tmaze" yaml:"tmaze"`
}

func DefaultConfig() Config {
	return Config{
		Forage: DefaultForageConfig(),
		TMaze:  DefaultTMazeConfig(),
	}
}

// New builds the scape registered under name. Aliases are resolved with
// scapeid.Normalize.
func New(name string, cfg Config) (Scape, error) {
	switch scapeid.Normalize(name) {
	case "forage":
		if err := cfg.Forage.Validate(); err != nil {
			return nil, fmt.Errorf("forage: %w", err)
		}
		return ForageScape{cfg: cfg.Forage}, nil
	case "t-maze":
		if err := cfg.TMaze.Validate(); err != nil {
			return nil, fmt.Errorf("t-maze: %w", err)
		}
		return TMazeScape{cfg: cfg.TMaze}, nil
	default:
		return nil, fmt.Errorf("unknown scape %q", name)
	}
}

// Names lists the registered scapes.
func Names() []string {
	return []string{"forage", "t-maze"}
}

const (
	SymbolEat  = "eat"
	SymbolBurn = "burn"

	MoveLeft  = "left"
	MoveRight = "right"
	MoveStay  = "stay"
)

// Moves is the output alphabet shared by every scape.
func Moves() []string {
	return []string{MoveLeft, MoveRight, MoveStay}
}

// SeedGraph returns the initial graph every agent starts from: a nest that
// owns an eat self-loop and is marked as reward, a pit that owns a burn
// self-loop and is marked as punishment, and an empty start state. The
// markers are created first so they stay the knowledge donors for eat and
// burn while the graph grows.
func SeedGraph(outputs []string) (*fst.Graph, fst.StateID, error) {
	g := fst.NewGraph(outputs)
	nest := g.AddState("nest")
	pit := g.AddState("pit")
	start := g.AddState("start")
	if _, err := g.Connect(nest, SymbolEat, nest); err != nil {
		return nil, 0, err
	}
	if _, err := g.Connect(pit, SymbolBurn, pit); err != nil {
		return nil, 0, err
	}
	if err := g.MarkReward(nest); err != nil {
		return nil, 0, err
	}
	if err := g.MarkPunishment(pit); err != nil {
		return nil, 0, err
	}
	return g, start, nil
}

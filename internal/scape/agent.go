package scape

import (
	"math/rand"

	"formica/internal/fst"
)

// AutomatonAgent adapts an automaton to the Agent interface and tracks the
// agent's clock. It must not be evaluated by two scapes at once.
type AutomatonAgent struct {
	id        string
	automaton *fst.Automaton
	rng       *rand.Rand
	now       float64
}

func NewAutomatonAgent(id string, automaton *fst.Automaton, seed int64) *AutomatonAgent {
	return &AutomatonAgent{
		id:        id,
		automaton: automaton,
		rng:       rand.New(rand.NewSource(seed)),
		now:       automaton.Clock(),
	}
}

func (a *AutomatonAgent) ID() string {
	return a.id
}

func (a *AutomatonAgent) Now() float64 {
	return a.now
}

func (a *AutomatonAgent) Rand() *rand.Rand {
	return a.rng
}

func (a *AutomatonAgent) Automaton() *fst.Automaton {
	return a.automaton
}

func (a *AutomatonAgent) Step(inputs []fst.Symbol, now float64) (fst.Symbol, error) {
	out, err := a.automaton.Step(inputs, now)
	if err != nil {
		return fst.Epsilon, err
	}
	a.now = now
	return out, nil
}

package fst

import (
	"fmt"
	"math"
)

type StateID int

type TransitionID int

const noState StateID = -1

// Transition is a symbol-labeled edge owned by its From state. To is an
// index into the owning arena, never an owning reference.
type Transition struct {
	ID           TransitionID
	From         StateID
	To           StateID
	Symbol       string
	Distribution *OutputDistribution
	Confidence   float64
	Temporary    bool

	detached bool
}

func (t *Transition) IsTemporary() bool {
	return t.Temporary
}

// Detached reports whether the transition was removed from its state.
func (t *Transition) Detached() bool {
	return t.detached
}

// AddToConfidence grows the confidence accumulator. Confidence divides
// every learning update, so a non-positive result panics.
func (t *Transition) AddToConfidence(delta float64) {
	next := t.Confidence + delta
	if !(next > 0) || math.IsInf(next, 0) {
		panic(fmt.Sprintf("fst: transition %d confidence %v would become %v", t.ID, t.Confidence, next))
	}
	t.Confidence = next
}

// State is a node of the transducer. It owns its outgoing transitions, one
// per symbol.
type State struct {
	ID   StateID
	Name string

	outgoing map[string]TransitionID
	order    []string
}

func newState(id StateID, name string) *State {
	return &State{ID: id, Name: name, outgoing: make(map[string]TransitionID)}
}

func (s *State) TransitionOn(symbol string) (TransitionID, bool) {
	id, ok := s.outgoing[symbol]
	return id, ok
}

func (s *State) Handles(symbol string) bool {
	_, ok := s.outgoing[symbol]
	return ok
}

// Symbols returns the handled symbols in insertion order.
func (s *State) Symbols() []string {
	return append([]string(nil), s.order...)
}

func (s *State) Len() int {
	return len(s.outgoing)
}

// addTransition registers t under its symbol; the first writer wins.
func (s *State) addTransition(t *Transition) bool {
	if _, exists := s.outgoing[t.Symbol]; exists {
		return false
	}
	s.outgoing[t.Symbol] = t.ID
	s.order = append(s.order, t.Symbol)
	return true
}

func (s *State) removeTransitionOn(symbol string) (TransitionID, bool) {
	id, ok := s.outgoing[symbol]
	if !ok {
		return 0, false
	}
	delete(s.outgoing, symbol)
	for i, name := range s.order {
		if name == symbol {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return id, true
}

// Graph is an arena of states and transitions. Hosts use it to describe the
// initial states handed to NewAutomaton; the automaton keeps growing it.
type Graph struct {
	outputs     []string
	confidence  float64
	states      []*State
	transitions []*Transition
	reward      map[StateID]struct{}
	punishment  map[StateID]struct{}
}

func NewGraph(outputAlphabet []string) *Graph {
	return &Graph{
		outputs:    append([]string(nil), outputAlphabet...),
		confidence: DefaultParams().ConfidenceInitial,
		reward:     make(map[StateID]struct{}),
		punishment: make(map[StateID]struct{}),
	}
}

func (g *Graph) AddState(name string) StateID {
	id := StateID(len(g.states))
	g.states = append(g.states, newState(id, name))
	return id
}

// Connect adds from --symbol--> to with a uniform distribution. Connecting
// an already-handled symbol returns the existing transition.
func (g *Graph) Connect(from StateID, symbol string, to StateID) (TransitionID, error) {
	if !g.hasState(from) {
		return 0, fmt.Errorf("unknown state %d", from)
	}
	if !g.hasState(to) {
		return 0, fmt.Errorf("unknown state %d", to)
	}
	if id, ok := g.states[from].TransitionOn(symbol); ok {
		return id, nil
	}
	t := g.newTransition(from, to, symbol)
	return t.ID, nil
}

func (g *Graph) SetDistribution(id TransitionID, weights map[string]float64) error {
	t, err := g.transition(id)
	if err != nil {
		return err
	}
	d, err := NewDistribution(g.outputs, weights)
	if err != nil {
		return fmt.Errorf("transition %d: %w", id, err)
	}
	t.Distribution = d
	return nil
}

func (g *Graph) SetConfidence(id TransitionID, confidence float64) error {
	t, err := g.transition(id)
	if err != nil {
		return err
	}
	if !(confidence > 0) {
		return fmt.Errorf("transition %d: confidence must be positive, got %v", id, confidence)
	}
	t.Confidence = confidence
	return nil
}

func (g *Graph) MarkReward(id StateID) error {
	if !g.hasState(id) {
		return fmt.Errorf("unknown state %d", id)
	}
	delete(g.punishment, id)
	g.reward[id] = struct{}{}
	return nil
}

func (g *Graph) MarkPunishment(id StateID) error {
	if !g.hasState(id) {
		return fmt.Errorf("unknown state %d", id)
	}
	delete(g.reward, id)
	g.punishment[id] = struct{}{}
	return nil
}

func (g *Graph) NumStates() int {
	return len(g.states)
}

func (g *Graph) hasState(id StateID) bool {
	return id >= 0 && int(id) < len(g.states)
}

func (g *Graph) transition(id TransitionID) (*Transition, error) {
	if id < 0 || int(id) >= len(g.transitions) {
		return nil, fmt.Errorf("unknown transition %d", id)
	}
	return g.transitions[id], nil
}

func (g *Graph) newTransition(from, to StateID, symbol string) *Transition {
	t := &Transition{
		ID:           TransitionID(len(g.transitions)),
		From:         from,
		To:           to,
		Symbol:       symbol,
		Distribution: NewUniformDistribution(g.outputs),
		Confidence:   g.confidence,
	}
	g.transitions = append(g.transitions, t)
	g.states[from].addTransition(t)
	return t
}

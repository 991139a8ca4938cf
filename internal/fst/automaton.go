package fst

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
)

var (
	ErrDuplicateSymbol = errors.New("duplicate input symbol")
	ErrNegativeValue   = errors.New("negative symbol value")
	ErrUnnamedSymbol   = errors.New("input symbol has no name")
	ErrClockRegression = errors.New("clock went backwards")
)

// Stats counts what the automaton did since construction.
type Stats struct {
	Steps         int `json:"steps"`
	Timeouts      int `json:"timeouts"`
	Expansions    int `json:"expansions"`
	Rewards       int `json:"rewards"`
	Punishments   int `json:"punishments"`
	Conditionings int `json:"conditionings"`
}

type Option func(*Automaton)

func WithParams(p Params) Option {
	return func(a *Automaton) { a.params = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Automaton) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithStartTime sets the clock reference the first Step is measured from.
func WithStartTime(t float64) Option {
	return func(a *Automaton) { a.lastTime = t }
}

// Automaton is a self-modifying probabilistic transducer. It learns
// stimulus-response associations through reward and punishment applied to a
// trace of recently taken transitions, and through expectancy links between
// transitions that co-occur or follow one another.
//
// An Automaton is not safe for concurrent use. Separate instances share
// nothing and may run in parallel.
type Automaton struct {
	params Params
	logger *slog.Logger

	sigma []string
	delta []string

	graph  *Graph
	ledger *Ledger

	cur, last, anchor StateID

	curOutput, lastOutput Symbol
	curSymbol, lastSymbol Symbol

	curInput, lastInput            []Symbol
	inputSymbols, lastInputSymbols map[string]struct{}

	lastTime           float64
	timeSinceLastInput float64

	// marked is a stack; the most recent transition is at the end.
	marked        []TransitionID
	markedSymbols []string
	conditioned   map[TransitionID]struct{}

	stats Stats
}

// NewAutomaton builds an automaton over the states of initial, starting in
// start. The automaton takes ownership of initial and keeps growing it.
func NewAutomaton(inputAlphabet, outputAlphabet []string, initial *Graph, start StateID, opts ...Option) (*Automaton, error) {
	if initial == nil {
		return nil, fmt.Errorf("initial graph is required")
	}
	if len(outputAlphabet) == 0 {
		return nil, fmt.Errorf("output alphabet is required")
	}
	if !sameNames(outputAlphabet, initial.outputs) {
		return nil, fmt.Errorf("graph output alphabet %v does not match %v", initial.outputs, outputAlphabet)
	}
	if !initial.hasState(start) {
		return nil, fmt.Errorf("unknown starting state %d", start)
	}
	for _, name := range inputAlphabet {
		if name == Epsilon.Name {
			return nil, fmt.Errorf("input alphabet must not contain the empty symbol")
		}
	}

	a := &Automaton{
		params: DefaultParams(),
		logger: slog.Default(),
		sigma:  dedupe(inputAlphabet),
		delta:  dedupe(outputAlphabet),
		graph:  initial,
		cur:    start,
		last:   start,
		anchor: start,

		curOutput:  Epsilon,
		lastOutput: Epsilon,
		curSymbol:  Epsilon,
		lastSymbol: Epsilon,

		inputSymbols:     map[string]struct{}{},
		lastInputSymbols: map[string]struct{}{},
		conditioned:      map[TransitionID]struct{}{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	a.graph.confidence = a.params.ConfidenceInitial
	a.ledger = NewLedger(a.params.ExpectancyInitial, a.params.ExpectancyStep)
	return a, nil
}

// Step feeds one batch of input symbols observed at time now and returns
// the emitted output symbol. now must not go backwards. Symbols must be
// named, non-negative and unique within the batch.
func (a *Automaton) Step(inputs []Symbol, now float64) (Symbol, error) {
	if err := validateInputs(inputs); err != nil {
		return Epsilon, err
	}
	if math.IsNaN(now) || now < a.lastTime {
		return Epsilon, fmt.Errorf("%w: %v after %v", ErrClockRegression, now, a.lastTime)
	}
	return a.step(slices.Clone(inputs), now, false), nil
}

func (a *Automaton) step(inputs []Symbol, now float64, reset bool) Symbol {
	a.timeSinceLastInput = now - a.lastTime
	a.lastTime = now
	a.lastInput = a.curInput
	a.curInput = inputs

	if !reset && a.timeSinceLastInput >= a.params.Tau {
		a.timeout()
		return a.step(inputs, now, true)
	}

	a.stats.Steps++
	a.curSymbol = a.selectSymbol()
	a.expand()
	a.lastOutput = a.curOutput

	taken := a.mustTransitionOn(a.cur, a.curSymbol.Name)
	if taken.Temporary {
		a.commit(taken)
	}
	confidence := taken.Confidence
	a.curOutput = taken.Distribution.GetOutputSymbol((a.curSymbol.Value * confidence) / (1 + confidence))
	a.marked = append(a.marked, taken.ID)
	a.markedSymbols = append(a.markedSymbols, a.lastOutput.Name)

	a.updateExpectations(taken)

	a.last = a.cur
	a.cur = taken.To
	a.lastSymbol = a.curSymbol

	switch {
	case a.IsReward(a.cur):
		a.applyReward()
	case a.IsPunishment(a.cur):
		a.applyPunishment()
	default:
		a.applyConditioning()
	}
	return a.curOutput
}

// timeout ends an input burst: a pending epsilon transition is committed and
// taken, the anchor moves to the resulting state and the trace is dropped.
func (a *Automaton) timeout() {
	a.stats.Timeouts++
	if id, ok := a.state(a.cur).TransitionOn(Epsilon.Name); ok {
		t := a.graph.transitions[id]
		a.commit(t)
		a.last = a.cur
		a.cur = t.To
	}
	a.anchor = a.cur
	a.lastSymbol = Epsilon
	a.lastOutput = Epsilon
	a.curOutput = Epsilon
	a.marked = nil
	a.markedSymbols = nil
	a.logger.Debug("input burst ended", "state", a.cur, "elapsed", a.timeSinceLastInput)
}

// commit makes a temporary epsilon transition permanent and anchors the
// automaton at its end state. Each temporary transition is committed once,
// whether a timeout or an empty batch takes it.
func (a *Automaton) commit(t *Transition) {
	if !t.Temporary {
		return
	}
	t.Temporary = false
	a.anchor = t.To
	a.logger.Debug("epsilon transition committed", "from", t.From, "to", t.To, "transition", t.ID)
}

func (a *Automaton) selectSymbol() Symbol {
	a.inputSymbols = symbolNames(a.curInput)
	a.lastInputSymbols = symbolNames(a.lastInput)
	return dominantSymbol(a.curInput)
}

func (a *Automaton) CurrentState() StateID {
	return a.cur
}

func (a *Automaton) LastState() StateID {
	return a.last
}

func (a *Automaton) AnchorState() StateID {
	return a.anchor
}

func (a *Automaton) LastOutput() Symbol {
	return a.curOutput
}

// Clock is the time of the last step.
func (a *Automaton) Clock() float64 {
	return a.lastTime
}

func (a *Automaton) Params() Params {
	return a.params
}

func (a *Automaton) Stats() Stats {
	return a.stats
}

func (a *Automaton) InputAlphabet() []string {
	return slices.Clone(a.sigma)
}

func (a *Automaton) OutputAlphabet() []string {
	return slices.Clone(a.delta)
}

func (a *Automaton) NumStates() int {
	return len(a.graph.states)
}

// States returns the state arena in creation order.
func (a *Automaton) States() []*State {
	return slices.Clone(a.graph.states)
}

// State returns the state with the given id or nil.
func (a *Automaton) State(id StateID) *State {
	if !a.graph.hasState(id) {
		return nil
	}
	return a.graph.states[id]
}

// Transition returns the transition with the given id or nil.
func (a *Automaton) Transition(id TransitionID) *Transition {
	t, err := a.graph.transition(id)
	if err != nil {
		return nil
	}
	return t
}

// TransitionOn returns the transition leaving from on symbol.
func (a *Automaton) TransitionOn(from StateID, symbol string) (*Transition, bool) {
	return a.transitionOn(from, symbol)
}

func (a *Automaton) IsReward(id StateID) bool {
	_, ok := a.graph.reward[id]
	return ok
}

func (a *Automaton) IsPunishment(id StateID) bool {
	_, ok := a.graph.punishment[id]
	return ok
}

// Expectancy reports the strength of the link between two transitions.
func (a *Automaton) Expectancy(x, y TransitionID) (float64, bool) {
	return a.ledger.Strength(x, y)
}

// TraceLen is the number of transitions waiting for reward or punishment.
func (a *Automaton) TraceLen() int {
	return len(a.marked)
}

func (a *Automaton) state(id StateID) *State {
	if !a.graph.hasState(id) {
		panic(fmt.Sprintf("fst: state %d out of range", id))
	}
	return a.graph.states[id]
}

func (a *Automaton) transitionOn(from StateID, symbol string) (*Transition, bool) {
	id, ok := a.state(from).TransitionOn(symbol)
	if !ok {
		return nil, false
	}
	return a.graph.transitions[id], true
}

// mustTransitionOn panics when expansion failed to provide a transition.
func (a *Automaton) mustTransitionOn(from StateID, symbol string) *Transition {
	t, ok := a.transitionOn(from, symbol)
	if !ok {
		panic(fmt.Sprintf("fst: state %d has no transition on %q", from, symbol))
	}
	return t
}

func validateInputs(inputs []Symbol) error {
	seen := make(map[string]struct{}, len(inputs))
	for _, symbol := range inputs {
		if symbol.Name == Epsilon.Name {
			return ErrUnnamedSymbol
		}
		if _, dup := seen[symbol.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateSymbol, symbol.Name)
		}
		seen[symbol.Name] = struct{}{}
		if symbol.Value < 0 || math.IsNaN(symbol.Value) || math.IsInf(symbol.Value, 0) {
			return fmt.Errorf("%w: %q=%v", ErrNegativeValue, symbol.Name, symbol.Value)
		}
	}
	return nil
}

func dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func sameNames(a, b []string) bool {
	a, b = dedupe(a), dedupe(b)
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, name := range a {
		set[name] = struct{}{}
	}
	for _, name := range b {
		if _, ok := set[name]; !ok {
			return false
		}
	}
	return true
}

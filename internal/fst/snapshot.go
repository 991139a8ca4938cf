package fst

import (
	"fmt"
	"sort"

	"formica/internal/model"
)

// Snapshot captures the graph, markers, expectancy links and cursor of the
// automaton. Transitions are numbered densely in state order, which is the
// order Restore recreates them in. The pending trace and the conditioned set
// are not included: a restored automaton starts a fresh episode.
func (a *Automaton) Snapshot(id string) model.AutomatonSnapshot {
	snap := model.AutomatonSnapshot{
		ID:             id,
		InputAlphabet:  append([]string(nil), a.sigma...),
		OutputAlphabet: append([]string(nil), a.delta...),
		Params:         paramsToMap(a.params),
		States:         make([]model.StateRecord, 0, len(a.graph.states)),
		Transitions:    make([]model.TransitionRecord, 0, len(a.graph.transitions)),
		Current:        int(a.cur),
		Last:           int(a.last),
		Anchor:         int(a.anchor),
		LastTime:       a.lastTime,
	}
	numbering := make(map[TransitionID]int, len(a.graph.transitions))
	for _, state := range a.graph.states {
		snap.States = append(snap.States, model.StateRecord{ID: int(state.ID), Name: state.Name})
		for _, symbol := range state.order {
			t := a.graph.transitions[state.outgoing[symbol]]
			numbering[t.ID] = len(snap.Transitions)
			snap.Transitions = append(snap.Transitions, model.TransitionRecord{
				ID:           numbering[t.ID],
				From:         int(t.From),
				To:           int(t.To),
				Symbol:       t.Symbol,
				Distribution: t.Distribution.Entries(),
				Confidence:   t.Confidence,
				Temporary:    t.Temporary,
			})
		}
	}
	a.ledger.Each(func(x, y TransitionID, strength float64) {
		nx, okX := numbering[x]
		ny, okY := numbering[y]
		if !okX || !okY {
			return
		}
		if nx > ny {
			nx, ny = ny, nx
		}
		snap.Expectancies = append(snap.Expectancies, model.ExpectancyRecord{A: nx, B: ny, Strength: strength})
	})
	sort.Slice(snap.Expectancies, func(i, j int) bool {
		if snap.Expectancies[i].A != snap.Expectancies[j].A {
			return snap.Expectancies[i].A < snap.Expectancies[j].A
		}
		return snap.Expectancies[i].B < snap.Expectancies[j].B
	})
	for _, state := range a.graph.states {
		if a.IsReward(state.ID) {
			snap.Reward = append(snap.Reward, int(state.ID))
		}
		if a.IsPunishment(state.ID) {
			snap.Punishment = append(snap.Punishment, int(state.ID))
		}
	}
	return snap
}

// Restore rebuilds an automaton from a snapshot.
func Restore(snap model.AutomatonSnapshot, opts ...Option) (*Automaton, error) {
	params, err := paramsFromMap(snap.Params)
	if err != nil {
		return nil, err
	}
	g := NewGraph(snap.OutputAlphabet)
	g.confidence = params.ConfidenceInitial
	for i, state := range snap.States {
		if state.ID != i {
			return nil, fmt.Errorf("snapshot %s: state %d stored at position %d", snap.ID, state.ID, i)
		}
		g.AddState(state.Name)
	}

	ids := make(map[int]TransitionID, len(snap.Transitions))
	for _, record := range snap.Transitions {
		from, to := StateID(record.From), StateID(record.To)
		if !g.hasState(from) || !g.hasState(to) {
			return nil, fmt.Errorf("snapshot %s: transition %d references unknown state", snap.ID, record.ID)
		}
		if g.states[from].Handles(record.Symbol) {
			return nil, fmt.Errorf("snapshot %s: state %d handles %q twice", snap.ID, from, record.Symbol)
		}
		if _, dup := ids[record.ID]; dup {
			return nil, fmt.Errorf("snapshot %s: duplicate transition id %d", snap.ID, record.ID)
		}
		if !(record.Confidence > 0) {
			return nil, fmt.Errorf("snapshot %s: transition %d has confidence %v", snap.ID, record.ID, record.Confidence)
		}
		t := g.newTransition(from, to, record.Symbol)
		d, err := NewDistribution(snap.OutputAlphabet, record.Distribution)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: transition %d: %w", snap.ID, record.ID, err)
		}
		t.Distribution = d
		t.Confidence = record.Confidence
		t.Temporary = record.Temporary
		ids[record.ID] = t.ID
	}
	for _, id := range snap.Reward {
		if err := g.MarkReward(StateID(id)); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", snap.ID, err)
		}
	}
	for _, id := range snap.Punishment {
		if err := g.MarkPunishment(StateID(id)); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", snap.ID, err)
		}
	}

	opts = append([]Option{WithParams(params), WithStartTime(snap.LastTime)}, opts...)
	a, err := NewAutomaton(snap.InputAlphabet, snap.OutputAlphabet, g, StateID(snap.Current), opts...)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", snap.ID, err)
	}
	if !g.hasState(StateID(snap.Last)) || !g.hasState(StateID(snap.Anchor)) {
		return nil, fmt.Errorf("snapshot %s: cursor references unknown state", snap.ID)
	}
	a.last = StateID(snap.Last)
	a.anchor = StateID(snap.Anchor)

	for _, link := range snap.Expectancies {
		x, okX := ids[link.A]
		y, okY := ids[link.B]
		if !okX || !okY {
			return nil, fmt.Errorf("snapshot %s: expectancy %d-%d references unknown transition", snap.ID, link.A, link.B)
		}
		if link.Strength < 0 {
			return nil, fmt.Errorf("snapshot %s: expectancy %d-%d has negative strength", snap.ID, link.A, link.B)
		}
		a.ledger.set(newPairKey(x, y), link.Strength)
	}
	return a, nil
}

func paramsToMap(p Params) map[string]float64 {
	return map[string]float64{
		"alpha":                  p.Alpha,
		"beta":                   p.Beta,
		"gamma":                  p.Gamma,
		"zeta":                   p.Zeta,
		"eta":                    p.Eta,
		"kappa":                  p.Kappa,
		"nu":                     p.Nu,
		"tau":                    p.Tau,
		"expectancy_initial":     p.ExpectancyInitial,
		"expectancy_step":        p.ExpectancyStep,
		"confidence_initial":     p.ConfidenceInitial,
		"conditioning_floor":     p.ConditioningFloor,
		"max_conditioning_depth": float64(p.MaxConditioningDepth),
		"max_states":             float64(p.MaxStates),
	}
}

func paramsFromMap(values map[string]float64) (Params, error) {
	p := DefaultParams()
	fields := map[string]*float64{
		"alpha":              &p.Alpha,
		"beta":               &p.Beta,
		"gamma":              &p.Gamma,
		"zeta":               &p.Zeta,
		"eta":                &p.Eta,
		"kappa":              &p.Kappa,
		"nu":                 &p.Nu,
		"tau":                &p.Tau,
		"expectancy_initial": &p.ExpectancyInitial,
		"expectancy_step":    &p.ExpectancyStep,
		"confidence_initial": &p.ConfidenceInitial,
		"conditioning_floor": &p.ConditioningFloor,
	}
	for name, v := range values {
		switch name {
		case "max_conditioning_depth":
			p.MaxConditioningDepth = int(v)
		case "max_states":
			p.MaxStates = int(v)
		default:
			field, ok := fields[name]
			if !ok {
				return Params{}, fmt.Errorf("unknown parameter %q", name)
			}
			*field = v
		}
	}
	return p, p.Validate()
}

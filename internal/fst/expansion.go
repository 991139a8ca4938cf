package fst

import "strconv"

// expand makes sure the current state handles every presented symbol.
// New symbols get a fresh state that springs back to the anchor through a
// temporary epsilon transition. The state arena only ever grows.
func (a *Automaton) expand() {
	cur := a.state(a.cur)
	if len(a.curInput) == 0 {
		if !cur.Handles(Epsilon.Name) {
			t := a.graph.newTransition(cur.ID, cur.ID, Epsilon.Name)
			a.logger.Debug("idle loop created", "state", cur.ID, "transition", t.ID)
		}
		return
	}
	for _, symbol := range a.curInput {
		if cur.Handles(symbol.Name) {
			continue
		}
		if id, ok := cur.removeTransitionOn(Epsilon.Name); ok {
			a.detach(id)
		}
		a.grow(cur, symbol.Name)
	}
}

func (a *Automaton) grow(cur *State, symbol string) {
	donor := a.donorFor(symbol)

	to := a.anchor
	created := false
	if a.params.MaxStates == 0 || len(a.graph.states) < a.params.MaxStates {
		to = a.graph.AddState(strconv.Itoa(len(a.graph.states)))
		created = true
	}

	t := a.graph.newTransition(cur.ID, to, symbol)
	if created {
		spring := a.graph.newTransition(to, a.anchor, Epsilon.Name)
		spring.Temporary = true
	}
	if donor != nil {
		t.Distribution = donor.Distribution.Clone()
		t.Confidence = donor.Confidence
		if created {
			switch {
			case a.IsReward(donor.From):
				a.graph.reward[to] = struct{}{}
			case a.IsPunishment(donor.From):
				a.graph.punishment[to] = struct{}{}
			}
		}
	}
	a.stats.Expansions++
	a.logger.Debug("transition created",
		"from", cur.ID,
		"to", to,
		"symbol", symbol,
		"new_state", created,
		"reward", a.IsReward(to),
		"punishment", a.IsPunishment(to),
	)
}

// donorFor returns the transition on symbol of the first state that already
// handles it.
func (a *Automaton) donorFor(symbol string) *Transition {
	for _, state := range a.graph.states {
		if id, ok := state.TransitionOn(symbol); ok {
			return a.graph.transitions[id]
		}
	}
	return nil
}

func (a *Automaton) detach(id TransitionID) {
	t := a.graph.transitions[id]
	t.detached = true
	a.ledger.Drop(id)
	delete(a.conditioned, id)
	a.logger.Debug("epsilon transition superseded", "state", t.From, "transition", id)
}

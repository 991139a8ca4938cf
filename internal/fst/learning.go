package fst

// updateExpectations links the transition just taken with the one taken on
// the previous step, lets unmet expectations of the previous transition
// decay, and associates the current state's transitions on symbols that
// were presented together.
func (a *Automaton) updateExpectations(current *Transition) {
	last, hasLast := a.transitionOn(a.last, a.lastSymbol.Name)
	if hasLast {
		a.ledger.Strengthen(last.ID, current.ID)
	}

	cur := a.state(a.cur)
	for i, name := range a.sigma {
		_, present := a.inputSymbols[name]

		if hasLast {
			if sibling, ok := cur.TransitionOn(name); ok && !present && a.ledger.Exists(last.ID, sibling) {
				a.ledger.Weaken(last.ID, sibling)
			}
			if name != a.curSymbol.Name {
				for _, state := range a.graph.states {
					if state.ID == a.cur {
						continue
					}
					if other, ok := state.TransitionOn(name); ok && a.ledger.Exists(last.ID, other) {
						a.ledger.Weaken(last.ID, other)
					}
				}
			}
		}

		tx, okX := cur.TransitionOn(name)
		if !okX {
			continue
		}
		for _, nameB := range a.sigma[i+1:] {
			ty, okY := cur.TransitionOn(nameB)
			if !okY {
				continue
			}
			_, presentB := a.inputSymbols[nameB]
			switch {
			case present && presentB:
				a.ledger.Strengthen(tx, ty)
			case present || presentB:
				if a.ledger.Exists(tx, ty) {
					a.ledger.Weaken(tx, ty)
				}
			}
		}
	}
}

func (a *Automaton) applyReward() {
	a.stats.Rewards++
	a.settle("reward", (*OutputDistribution).UpdateSymbolProbability)
}

func (a *Automaton) applyPunishment() {
	a.stats.Punishments++
	a.settle("punishment", (*OutputDistribution).UpdateSymbolProbabilityForAllBut)
}

// settle drains the marked trace most recent first. Every marked output
// name is reinforced on each transition with a weight that decays by Tau
// per hop; transitions on the same symbol elsewhere in the graph receive a
// Nu-damped copy when the conditioning network already touched them.
func (a *Automaton) settle(kind string, update func(*OutputDistribution, string, float64) bool) {
	value := a.curSymbol.Value
	depth := len(a.marked)
	weight := 1.0
	for {
		id, ok := a.popMarked()
		if !ok {
			break
		}
		marked := a.graph.transitions[id]
		for _, name := range a.markedSymbols {
			base := a.params.Beta * weight * value
			change := base / marked.Confidence
			update(marked.Distribution, name, change)
			marked.AddToConfidence(base)

			for _, state := range a.graph.states {
				if state.ID == marked.From {
					continue
				}
				otherID, ok := state.TransitionOn(marked.Symbol)
				if !ok {
					continue
				}
				if _, conditioned := a.conditioned[otherID]; !conditioned {
					continue
				}
				other := a.graph.transitions[otherID]
				update(other.Distribution, name, a.params.Nu*change)
				other.AddToConfidence(a.params.Nu * base)
			}
		}
		weight *= a.params.Tau
	}
	a.markedSymbols = nil
	a.conditioned = make(map[TransitionID]struct{})
	a.logger.Debug("trace settled", "kind", kind, "state", a.cur, "trace", depth, "value", value)
}

// popMarked pops the most recent marked transition. An empty trace is the
// normal end of a settlement.
func (a *Automaton) popMarked() (TransitionID, bool) {
	n := len(a.marked)
	if n == 0 {
		return 0, false
	}
	id := a.marked[n-1]
	a.marked = a.marked[:n-1]
	return id, true
}

// applyConditioning runs when the step ended neither in reward nor in
// punishment and the emitted output changed.
func (a *Automaton) applyConditioning() {
	if a.lastOutput.IsEpsilon() || a.curOutput.Name == a.lastOutput.Name {
		return
	}
	a.stats.Conditionings++
	a.updateConditioning(a.last, a.lastSymbol.Name, a.curSymbol.Value, 0)
}

// updateConditioning nudges transitions expected alongside the one on
// symbol out of state toward the current output, then ripples outward from
// every transition conditioned for the first time this episode. The ripple
// stops once strength falls to ConditioningFloor or depth reaches
// MaxConditioningDepth; since each transition joins the conditioned set at
// most once per episode, the number of recursive calls is also bounded by
// the number of transitions.
func (a *Automaton) updateConditioning(state StateID, symbol string, strength float64, depth int) {
	if strength <= a.params.ConditioningFloor || depth >= a.params.MaxConditioningDepth {
		return
	}
	source, ok := a.transitionOn(state, symbol)
	if !ok {
		return
	}
	for _, name := range a.sigma {
		if _, seen := a.lastInputSymbols[name]; seen {
			if sibling, ok := a.transitionOn(state, name); ok && a.ledger.Exists(source.ID, sibling.ID) {
				if a.condition(sibling, strength) {
					a.updateConditioning(state, name, strength/sibling.Confidence, depth+1)
				}
			}
		}
		for _, other := range a.graph.states {
			incoming, ok := a.transitionOn(other.ID, name)
			if !ok || incoming.To != state || !a.ledger.Exists(source.ID, incoming.ID) {
				continue
			}
			if a.condition(incoming, strength) {
				a.updateConditioning(other.ID, name, strength/incoming.Confidence, depth+1)
			}
		}
	}
}

// condition moves t toward the current output and reports whether t joined
// the conditioned set with this call.
func (a *Automaton) condition(t *Transition, strength float64) bool {
	t.Distribution.UpdateSymbolProbability(a.curOutput.Name, a.params.Gamma*strength/t.Confidence)
	if _, done := a.conditioned[t.ID]; done {
		return false
	}
	a.conditioned[t.ID] = struct{}{}
	t.AddToConfidence(a.params.Gamma * a.curSymbol.Value)
	return true
}

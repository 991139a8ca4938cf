package fst

import (
	"math"
	"testing"
)

const third = 1.0 / 3

func markerGraph(t *testing.T, symbol string, reward bool) (*Graph, StateID, StateID) {
	t.Helper()
	g := NewGraph(testOutputs)
	marker := g.AddState("marker")
	start := g.AddState("start")
	if _, err := g.Connect(marker, symbol, marker); err != nil {
		t.Fatalf("connect marker: %v", err)
	}
	var err error
	if reward {
		err = g.MarkReward(marker)
	} else {
		err = g.MarkPunishment(marker)
	}
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	return g, marker, start
}

func TestRewardReinforcesEmittedOutputAlongTrace(t *testing.T) {
	g, nest, start := markerGraph(t, "eat", true)
	a, err := NewAutomaton([]string{"scent", "eat"}, testOutputs, g, start, quietLogger())
	if err != nil {
		t.Fatalf("new automaton: %v", err)
	}

	first := mustStep(t, a, 1, NewSymbol("scent", 1))
	viaScent, _ := a.TransitionOn(start, "scent")
	trail := a.CurrentState()

	mustStep(t, a, 1.2, NewSymbol("eat", 1))
	viaEat, ok := a.TransitionOn(trail, "eat")
	if !ok {
		t.Fatal("expected eat transition from trail state")
	}
	if !a.IsReward(viaEat.To) {
		t.Fatal("expected reward marker copied from nest")
	}
	if a.Stats().Rewards != 1 || a.TraceLen() != 0 {
		t.Fatalf("expected one settled reward, stats=%+v trace=%d", a.Stats(), a.TraceLen())
	}

	beta := a.Params().Beta
	tau := a.Params().Tau
	// Two marked names (the initial epsilon and the first output) each add
	// beta*weight to confidence; the older transition gets weight tau.
	if want := 1 + 2*beta; math.Abs(viaEat.Confidence-want) > 1e-9 {
		t.Fatalf("expected recent confidence %f, got %f", want, viaEat.Confidence)
	}
	if want := 1 + 2*beta*tau; math.Abs(viaScent.Confidence-want) > 1e-9 {
		t.Fatalf("expected older confidence %f, got %f", want, viaScent.Confidence)
	}
	if p := viaEat.Distribution.Probability(first.Name); p <= third {
		t.Fatalf("expected %s reinforced on recent transition, got %f", first.Name, p)
	}
	if p := viaScent.Distribution.Probability(first.Name); p <= third {
		t.Fatalf("expected %s reinforced on older transition, got %f", first.Name, p)
	}
	donor, _ := a.TransitionOn(nest, "eat")
	if donor.Confidence != 1 {
		t.Fatalf("unconditioned transitions must not receive propagated reward, got %f", donor.Confidence)
	}
}

func TestPunishmentSuppressesEmittedOutput(t *testing.T) {
	g, _, start := markerGraph(t, "burn", false)
	a, err := NewAutomaton([]string{"heat", "burn"}, testOutputs, g, start, quietLogger())
	if err != nil {
		t.Fatalf("new automaton: %v", err)
	}

	first := mustStep(t, a, 1, NewSymbol("heat", 1))
	viaHeat, _ := a.TransitionOn(start, "heat")
	trail := a.CurrentState()
	mustStep(t, a, 1.2, NewSymbol("burn", 1))
	viaBurn, _ := a.TransitionOn(trail, "burn")

	if !a.IsPunishment(viaBurn.To) || a.Stats().Punishments != 1 {
		t.Fatalf("expected punishment settled, stats=%+v", a.Stats())
	}
	for _, tr := range []*Transition{viaHeat, viaBurn} {
		p := tr.Distribution.Probability(first.Name)
		if p >= third {
			t.Fatalf("transition %d: expected %s suppressed, got %f", tr.ID, first.Name, p)
		}
		for _, name := range testOutputs {
			if name != first.Name && tr.Distribution.Probability(name) <= p {
				t.Fatalf("transition %d: expected %s above %s: %+v", tr.ID, name, first.Name, tr.Distribution.Entries())
			}
		}
	}
}

func TestSettlementDecaysPerHopAndPropagatesToConditioned(t *testing.T) {
	g := NewGraph(testOutputs)
	s0 := g.AddState("s0")
	s1 := g.AddState("s1")
	tx, _ := g.Connect(s0, "x", s0)
	ty, _ := g.Connect(s0, "y", s0)
	tz, _ := g.Connect(s1, "y", s1)
	a, err := NewAutomaton([]string{"x", "y"}, testOutputs, g, s0, quietLogger())
	if err != nil {
		t.Fatalf("new automaton: %v", err)
	}

	a.marked = []TransitionID{tx, ty}
	a.markedSymbols = []string{"left"}
	a.curSymbol = NewSymbol("x", 1)
	a.conditioned[tz] = struct{}{}
	a.applyReward()

	beta, tau, nu := a.Params().Beta, a.Params().Tau, a.Params().Nu
	recent, older, linked := a.Transition(ty), a.Transition(tx), a.Transition(tz)

	cases := []struct {
		name       string
		tr         *Transition
		confidence float64
		mass       float64
	}{
		{"recent", recent, 1 + beta, beta},
		{"older", older, 1 + beta*tau, beta * tau},
		{"conditioned copy", linked, 1 + nu*beta, nu * beta},
	}
	for _, tc := range cases {
		if math.Abs(tc.tr.Confidence-tc.confidence) > 1e-9 {
			t.Fatalf("%s: expected confidence %f, got %f", tc.name, tc.confidence, tc.tr.Confidence)
		}
		if got := tc.tr.Distribution.Probability("left") - third; math.Abs(got-tc.mass) > 1e-9 {
			t.Fatalf("%s: expected mass increase %f, got %f", tc.name, tc.mass, got)
		}
	}
	if len(a.conditioned) != 0 || a.markedSymbols != nil || a.TraceLen() != 0 {
		t.Fatal("expected settlement to clear trace and conditioned set")
	}

	// Draining an empty trace is a no-op.
	a.applyPunishment()
	if math.Abs(recent.Confidence-(1+beta)) > 1e-9 {
		t.Fatalf("empty settlement changed confidence: %f", recent.Confidence)
	}
}

func conditioningFixture(t *testing.T, p Params) (*Automaton, *Transition, *Transition) {
	t.Helper()
	g := NewGraph(testOutputs)
	s0 := g.AddState("s0")
	ta, _ := g.Connect(s0, "a", s0)
	tb, _ := g.Connect(s0, "b", s0)
	a, err := NewAutomaton([]string{"a", "b"}, testOutputs, g, s0, quietLogger(), WithParams(p))
	if err != nil {
		t.Fatalf("new automaton: %v", err)
	}
	a.ledger.Create(ta, tb)
	a.lastInputSymbols = map[string]struct{}{"a": {}, "b": {}}
	a.curOutput = NewSymbol("left", 0)
	a.curSymbol = NewSymbol("a", 1)
	return a, a.Transition(ta), a.Transition(tb)
}

func TestConditioningRipplesThroughExpectancyLinks(t *testing.T) {
	p := DefaultParams()
	a, ta, tb := conditioningFixture(t, p)
	a.updateConditioning(0, "a", 1, 0)

	if _, ok := a.conditioned[tb.ID]; !ok {
		t.Fatal("expected linked sibling conditioned")
	}
	if _, ok := a.conditioned[ta.ID]; !ok {
		t.Fatal("expected ripple to condition the source on the way back")
	}
	for _, tr := range []*Transition{ta, tb} {
		if math.Abs(tr.Confidence-(1+p.Gamma)) > 1e-9 {
			t.Fatalf("transition %d: expected confidence %f once, got %f", tr.ID, 1+p.Gamma, tr.Confidence)
		}
		if tr.Distribution.Probability("left") <= third {
			t.Fatalf("transition %d: expected left nudged up: %+v", tr.ID, tr.Distribution.Entries())
		}
		if !tr.Distribution.Valid() {
			t.Fatalf("transition %d: invalid distribution", tr.ID)
		}
	}
}

func TestConditioningDepthAndFloorBoundRecursion(t *testing.T) {
	p := DefaultParams()
	p.MaxConditioningDepth = 1
	a, ta, tb := conditioningFixture(t, p)
	a.updateConditioning(0, "a", 1, 0)
	if _, ok := a.conditioned[ta.ID]; ok {
		t.Fatal("expected depth cap to stop the ripple after one hop")
	}
	if _, ok := a.conditioned[tb.ID]; !ok {
		t.Fatal("expected first hop conditioned")
	}

	b, _, tb2 := conditioningFixture(t, DefaultParams())
	b.updateConditioning(0, "a", b.Params().ConditioningFloor, 0)
	if len(b.conditioned) != 0 || tb2.Confidence != 1 {
		t.Fatal("expected strength at the floor to stop immediately")
	}
}

func TestConditioningSkipsUnchangedOutput(t *testing.T) {
	a, _, _ := conditioningFixture(t, DefaultParams())
	a.last = 0
	a.lastSymbol = NewSymbol("a", 1)
	a.lastOutput = a.curOutput
	a.applyConditioning()
	if a.Stats().Conditionings != 0 || len(a.conditioned) != 0 {
		t.Fatal("expected no conditioning when output repeats")
	}

	a.lastOutput = NewSymbol("stay", 0)
	a.applyConditioning()
	if a.Stats().Conditionings != 1 || len(a.conditioned) == 0 {
		t.Fatal("expected conditioning when output changes")
	}
}

func TestAddToConfidencePanicsOnNonPositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	tr := &Transition{Confidence: 1}
	tr.AddToConfidence(-1)
}

func TestDecaySparesTransitionsOnTheTakenSymbol(t *testing.T) {
	g := NewGraph(testOutputs)
	start := g.AddState("start")
	other := g.AddState("other")
	otherB, err := g.Connect(other, "b", other)
	if err != nil {
		t.Fatalf("connect b: %v", err)
	}
	otherC, err := g.Connect(other, "c", other)
	if err != nil {
		t.Fatalf("connect c: %v", err)
	}
	a, err := NewAutomaton([]string{"a", "b", "c"}, testOutputs, g, start, quietLogger())
	if err != nil {
		t.Fatalf("new automaton: %v", err)
	}

	mustStep(t, a, 1, NewSymbol("a", 1))
	viaA, _ := a.TransitionOn(start, "a")
	a.ledger.Create(viaA.ID, otherB)
	a.ledger.Create(viaA.ID, otherC)

	mustStep(t, a, 1.1, NewSymbol("b", 1))
	initial := a.Params().ExpectancyInitial
	if s, ok := a.Expectancy(viaA.ID, otherB); !ok || s != initial {
		t.Fatalf("expected link to a transition on the taken symbol untouched, got %f ok=%v", s, ok)
	}
	want := initial - a.Params().ExpectancyStep
	if s, ok := a.Expectancy(viaA.ID, otherC); !ok || math.Abs(s-want) > 1e-12 {
		t.Fatalf("expected unused expectation to decay to %f, got %f ok=%v", want, s, ok)
	}
}

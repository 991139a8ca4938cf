package fst

import (
	"math"
	"math/rand"
	"testing"
)

var testOutputs = []string{"left", "right", "stay"}

func TestUniformDistributionSumsToOne(t *testing.T) {
	d := NewUniformDistribution(testOutputs)
	if !d.Valid() {
		t.Fatalf("uniform distribution invalid: %+v", d.Entries())
	}
	if got := d.Probability("right"); math.Abs(got-1.0/3) > 1e-12 {
		t.Fatalf("unexpected uniform mass: %f", got)
	}
}

func TestUpdateSymbolProbabilityRaisesTargetAndRescalesRest(t *testing.T) {
	d, err := NewDistribution(testOutputs, map[string]float64{"left": 0.2, "right": 0.3, "stay": 0.5})
	if err != nil {
		t.Fatalf("new distribution: %v", err)
	}
	if !d.UpdateSymbolProbability("left", 0.2) {
		t.Fatal("expected update to apply")
	}
	if got := d.Probability("left"); math.Abs(got-0.4) > 1e-12 {
		t.Fatalf("unexpected target mass: %f", got)
	}
	// right:stay keeps its 3:5 ratio inside the remaining 0.6.
	if got := d.Probability("right"); math.Abs(got-0.225) > 1e-12 {
		t.Fatalf("unexpected right mass: %f", got)
	}
	if !d.Valid() {
		t.Fatalf("distribution invalid after update: %+v", d.Entries())
	}
}

func TestUpdateSymbolProbabilityClampsToOne(t *testing.T) {
	d := NewUniformDistribution(testOutputs)
	d.UpdateSymbolProbability("stay", 5)
	if got := d.Probability("stay"); got != 1 {
		t.Fatalf("expected clamped mass 1, got %f", got)
	}
	if d.Probability("left") != 0 || d.Probability("right") != 0 {
		t.Fatalf("expected other entries drained: %+v", d.Entries())
	}
	d.UpdateSymbolProbability("left", 0.25)
	if got := d.Probability("left"); math.Abs(got-0.25) > 1e-12 {
		t.Fatalf("expected left 0.25 after recovery, got %f", got)
	}
	if got := d.Probability("right"); math.Abs(got-0) > 1e-12 {
		t.Fatalf("expected right to stay empty, got %f", got)
	}
	if !d.Valid() {
		t.Fatalf("distribution invalid: %+v", d.Entries())
	}
}

func TestUpdateSymbolProbabilityForAllButLowersRelativeMass(t *testing.T) {
	d := NewUniformDistribution(testOutputs)
	before := d.Probability("left")
	if !d.UpdateSymbolProbabilityForAllBut("left", 0.1) {
		t.Fatal("expected update to apply")
	}
	after := d.Probability("left")
	if after >= before {
		t.Fatalf("expected left mass to fall: before=%f after=%f", before, after)
	}
	if d.Probability("right") <= after || d.Probability("stay") <= after {
		t.Fatalf("expected alternatives to dominate: %+v", d.Entries())
	}
	if !d.Valid() {
		t.Fatalf("distribution invalid: %+v", d.Entries())
	}
}

func TestUpdateUnknownSymbolIsNoop(t *testing.T) {
	d := NewUniformDistribution(testOutputs)
	if d.UpdateSymbolProbability(Epsilon.Name, 0.5) {
		t.Fatal("expected epsilon update to be ignored")
	}
	if d.UpdateSymbolProbabilityForAllBut("jump", 0.5) {
		t.Fatal("expected unknown update to be ignored")
	}
	for name, p := range d.Entries() {
		if math.Abs(p-1.0/3) > 1e-12 {
			t.Fatalf("entry %s changed to %f", name, p)
		}
	}
}

func TestGetOutputSymbolWalksCumulativeMass(t *testing.T) {
	d, err := NewDistribution(testOutputs, map[string]float64{"left": 0.2, "right": 0.3, "stay": 0.5})
	if err != nil {
		t.Fatalf("new distribution: %v", err)
	}
	cases := map[float64]string{
		0:    "left",
		0.1:  "left",
		0.3:  "right",
		0.7:  "stay",
		0.99: "stay",
		1.5:  "stay",
	}
	for threshold, want := range cases {
		if got := d.GetOutputSymbol(threshold); got.Name != want {
			t.Fatalf("threshold %f: expected %s, got %s", threshold, want, got.Name)
		}
	}
	if got := NewUniformDistribution(nil).GetOutputSymbol(0.5); !got.IsEpsilon() {
		t.Fatalf("expected epsilon from empty distribution, got %+v", got)
	}
}

func TestNewDistributionValidation(t *testing.T) {
	if _, err := NewDistribution(testOutputs, map[string]float64{"left": -1}); err == nil {
		t.Fatal("expected negative weight error")
	}
	if _, err := NewDistribution(testOutputs, map[string]float64{"jump": 1}); err == nil {
		t.Fatal("expected unknown output error")
	}
	if _, err := NewDistribution(testOutputs, map[string]float64{}); err == nil {
		t.Fatal("expected zero-sum error")
	}
}

func TestDistributionStaysNormalizedUnderRandomUpdates(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	d := NewUniformDistribution(testOutputs)
	for i := 0; i < 2000; i++ {
		name := testOutputs[rng.Intn(len(testOutputs))]
		change := rng.Float64()*2 - 0.5
		if rng.Intn(2) == 0 {
			d.UpdateSymbolProbability(name, change)
		} else {
			d.UpdateSymbolProbabilityForAllBut(name, change)
		}
		if !d.Valid() {
			t.Fatalf("update %d left invalid distribution: %+v", i, d.Entries())
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	d := NewUniformDistribution(testOutputs)
	clone := d.Clone()
	clone.UpdateSymbolProbability("left", 0.3)
	if math.Abs(d.Probability("left")-1.0/3) > 1e-12 {
		t.Fatalf("clone update leaked into original: %+v", d.Entries())
	}
}

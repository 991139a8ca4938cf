package fst

import (
	"fmt"
	"math"
)

const distributionTolerance = 1e-9

// OutputDistribution is a probability mass function over the output
// alphabet. Entries keep the order they were declared in, which is the order
// GetOutputSymbol walks them.
type OutputDistribution struct {
	names []string
	probs []float64
	index map[string]int
}

func NewUniformDistribution(names []string) *OutputDistribution {
	d := newDistribution(names)
	if len(d.names) == 0 {
		return d
	}
	p := 1.0 / float64(len(d.names))
	for i := range d.probs {
		d.probs[i] = p
	}
	return d
}

// NewDistribution builds a distribution over names using the given weights.
// Missing weights count as zero; the result is normalized to 1.
func NewDistribution(names []string, weights map[string]float64) (*OutputDistribution, error) {
	d := newDistribution(names)
	total := 0.0
	for i, name := range d.names {
		w := weights[name]
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("invalid weight for %q: %v", name, w)
		}
		d.probs[i] = w
		total += w
	}
	for name := range weights {
		if _, ok := d.index[name]; !ok {
			return nil, fmt.Errorf("weight for unknown output %q", name)
		}
	}
	if len(d.names) > 0 && total == 0 {
		return nil, fmt.Errorf("distribution weights sum to zero")
	}
	d.normalize()
	return d, nil
}

func newDistribution(names []string) *OutputDistribution {
	d := &OutputDistribution{index: make(map[string]int, len(names))}
	for _, name := range names {
		if _, dup := d.index[name]; dup {
			continue
		}
		d.index[name] = len(d.names)
		d.names = append(d.names, name)
		d.probs = append(d.probs, 0)
	}
	return d
}

func (d *OutputDistribution) Clone() *OutputDistribution {
	clone := &OutputDistribution{
		names: append([]string(nil), d.names...),
		probs: append([]float64(nil), d.probs...),
		index: make(map[string]int, len(d.index)),
	}
	for name, i := range d.index {
		clone.index[name] = i
	}
	return clone
}

func (d *OutputDistribution) Len() int {
	return len(d.names)
}

func (d *OutputDistribution) Names() []string {
	return append([]string(nil), d.names...)
}

func (d *OutputDistribution) Probability(name string) float64 {
	i, ok := d.index[name]
	if !ok {
		return 0
	}
	return d.probs[i]
}

// Entries returns a copy of the mass function keyed by output name.
func (d *OutputDistribution) Entries() map[string]float64 {
	out := make(map[string]float64, len(d.names))
	for i, name := range d.names {
		out[name] = d.probs[i]
	}
	return out
}

// UpdateSymbolProbability raises the mass of name by change, clamped to
// [0, 1], and rescales the other entries so the total stays 1. It reports
// false when name is not part of the distribution.
func (d *OutputDistribution) UpdateSymbolProbability(name string, change float64) bool {
	target, ok := d.index[name]
	if !ok {
		return false
	}
	next := clamp01(d.probs[target] + change)
	rest := 0.0
	for i, p := range d.probs {
		if i != target {
			rest += p
		}
	}
	remaining := 1 - next
	others := len(d.probs) - 1
	for i := range d.probs {
		if i == target {
			continue
		}
		switch {
		case rest > 0:
			d.probs[i] = d.probs[i] / rest * remaining
		case others > 0:
			d.probs[i] = remaining / float64(others)
		}
	}
	if others == 0 {
		next = 1
	}
	d.probs[target] = next
	d.normalize()
	return true
}

// UpdateSymbolProbabilityForAllBut adds change to every entry except name
// and renormalizes, lowering the relative mass of name.
func (d *OutputDistribution) UpdateSymbolProbabilityForAllBut(name string, change float64) bool {
	excluded, ok := d.index[name]
	if !ok {
		return false
	}
	for i := range d.probs {
		if i != excluded {
			d.probs[i] = clamp01(d.probs[i] + change)
		}
	}
	d.normalize()
	return true
}

// GetOutputSymbol returns the first entry whose cumulative mass exceeds
// threshold. Thresholds at or past the total select the last entry.
func (d *OutputDistribution) GetOutputSymbol(threshold float64) Symbol {
	if len(d.names) == 0 {
		return Epsilon
	}
	cumulative := 0.0
	for i, name := range d.names {
		cumulative += d.probs[i]
		if cumulative > threshold {
			return Symbol{Name: name, Value: d.probs[i]}
		}
	}
	last := len(d.names) - 1
	return Symbol{Name: d.names[last], Value: d.probs[last]}
}

// Valid reports whether every entry is in [0, 1] and the total is 1.
func (d *OutputDistribution) Valid() bool {
	if len(d.probs) == 0 {
		return true
	}
	total := 0.0
	for _, p := range d.probs {
		if p < 0 || p > 1+distributionTolerance || math.IsNaN(p) {
			return false
		}
		total += p
	}
	return math.Abs(total-1) <= distributionTolerance
}

func (d *OutputDistribution) normalize() {
	total := 0.0
	for _, p := range d.probs {
		total += p
	}
	if total <= 0 {
		if len(d.probs) == 0 {
			return
		}
		for i := range d.probs {
			d.probs[i] = 1.0 / float64(len(d.probs))
		}
		return
	}
	for i := range d.probs {
		d.probs[i] /= total
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

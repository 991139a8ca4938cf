package fst

import "sort"

type pairKey struct {
	lo, hi TransitionID
}

func newPairKey(a, b TransitionID) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// Link is one expectancy edge as seen from a transition.
type Link struct {
	Peer     TransitionID
	Strength float64
}

// Ledger stores expectancy links between transitions as an undirected edge
// set. Both endpoints of a link read the same entry, so "A expects B with
// strength s" holds exactly when "B expects A with strength s".
type Ledger struct {
	initial float64
	step    float64

	edges     map[pairKey]float64
	adjacency map[TransitionID]map[TransitionID]struct{}
}

func NewLedger(initial, step float64) *Ledger {
	return &Ledger{
		initial:   initial,
		step:      step,
		edges:     make(map[pairKey]float64),
		adjacency: make(map[TransitionID]map[TransitionID]struct{}),
	}
}

func (l *Ledger) Len() int {
	return len(l.edges)
}

func (l *Ledger) Exists(a, b TransitionID) bool {
	_, ok := l.edges[newPairKey(a, b)]
	return ok
}

func (l *Ledger) Strength(a, b TransitionID) (float64, bool) {
	s, ok := l.edges[newPairKey(a, b)]
	return s, ok
}

// Create adds a link with the initial strength. Existing links are kept as is.
func (l *Ledger) Create(a, b TransitionID) {
	key := newPairKey(a, b)
	if _, ok := l.edges[key]; ok {
		return
	}
	l.set(key, l.initial)
}

// Strengthen raises an existing link by one step, creating it when absent.
func (l *Ledger) Strengthen(a, b TransitionID) {
	key := newPairKey(a, b)
	s, ok := l.edges[key]
	if !ok {
		l.set(key, l.initial)
		return
	}
	l.edges[key] = s + l.step
}

// Weaken lowers a link by one step. A link that would drop below zero is
// removed; it reports whether the link survived.
func (l *Ledger) Weaken(a, b TransitionID) bool {
	key := newPairKey(a, b)
	s, ok := l.edges[key]
	if !ok {
		return false
	}
	next := s - l.step
	if next < 0 {
		l.remove(key)
		return false
	}
	l.edges[key] = next
	return true
}

// Links returns the links of a ordered by peer id.
func (l *Ledger) Links(a TransitionID) []Link {
	peers := l.adjacency[a]
	out := make([]Link, 0, len(peers))
	for peer := range peers {
		out = append(out, Link{Peer: peer, Strength: l.edges[newPairKey(a, peer)]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Peer < out[j].Peer })
	return out
}

// Drop removes every link touching a.
func (l *Ledger) Drop(a TransitionID) {
	for peer := range l.adjacency[a] {
		l.remove(newPairKey(a, peer))
	}
	delete(l.adjacency, a)
}

// Each visits every link once in (lo, hi) order.
func (l *Ledger) Each(fn func(a, b TransitionID, strength float64)) {
	keys := make([]pairKey, 0, len(l.edges))
	for key := range l.edges {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].lo != keys[j].lo {
			return keys[i].lo < keys[j].lo
		}
		return keys[i].hi < keys[j].hi
	})
	for _, key := range keys {
		fn(key.lo, key.hi, l.edges[key])
	}
}

func (l *Ledger) set(key pairKey, strength float64) {
	if strength < 0 {
		strength = 0
	}
	l.edges[key] = strength
	l.link(key.lo, key.hi)
	l.link(key.hi, key.lo)
}

func (l *Ledger) link(a, b TransitionID) {
	peers, ok := l.adjacency[a]
	if !ok {
		peers = make(map[TransitionID]struct{})
		l.adjacency[a] = peers
	}
	peers[b] = struct{}{}
}

func (l *Ledger) remove(key pairKey) {
	delete(l.edges, key)
	if peers, ok := l.adjacency[key.lo]; ok {
		delete(peers, key.hi)
		if len(peers) == 0 {
			delete(l.adjacency, key.lo)
		}
	}
	if peers, ok := l.adjacency[key.hi]; ok {
		delete(peers, key.lo)
		if len(peers) == 0 {
			delete(l.adjacency, key.hi)
		}
	}
}

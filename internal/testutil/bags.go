package testutil

import "github.com/roach88/relcheck/internal/ir"

// Bags is a map-backed BagSource for evaluator and verifier tests that do
// not need a full state store.
type Bags map[string]*ir.Bag

// Bag implements the evaluator's BagSource.
func (b Bags) Bag(name string) (*ir.Bag, bool) {
	bag, ok := b[name]
	return bag, ok
}

package state

import (
	"fmt"

	"github.com/roach88/relcheck/internal/ir"
)

// State is one version of the authoritative bags, one per declared state
// variable. A State is owned by a single executor; external readers only
// ever see snapshots.
type State struct {
	schema *ir.Schema
	bags   map[string]*ir.Bag
}

// NewState creates the initial state: every declared bag empty. Every
// invariant holds vacuously in it.
func NewState(schema *ir.Schema) *State {
	bags := make(map[string]*ir.Bag, len(schema.States))
	for _, st := range schema.States {
		bags[st.Name] = ir.NewBag()
	}
	return &State{schema: schema, bags: bags}
}

// Bag returns the named state bag. Implements eval.BagSource.
func (s *State) Bag(name string) (*ir.Bag, bool) {
	b, ok := s.bags[name]
	return b, ok
}

// Snapshot returns an independent copy. Bag contents are shared (values
// are immutable); the bag structures are cloned, so mutating one state
// never shows through the other.
func (s *State) Snapshot() *State {
	bags := make(map[string]*ir.Bag, len(s.bags))
	for name, b := range s.bags {
		bags[name] = b.Clone()
	}
	return &State{schema: s.schema, bags: bags}
}

// Seed inserts values into the named bag after checking them against the
// declared element type. Seeding bypasses operations and invariants; it
// exists for tests and scenario setup only.
func (s *State) Seed(name string, vs ...ir.Value) error {
	decl, ok := s.schema.State(name)
	if !ok {
		return fmt.Errorf("seed: unknown state %q", name)
	}
	b := s.bags[name]
	for _, v := range vs {
		if err := ir.CheckValue(s.schema, v, decl.Elem); err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
		b.Insert(v)
	}
	return nil
}

// Equal reports structural equality: the same bags holding multiset-equal
// contents. Insertion order does not matter.
func Equal(a, b *State) bool {
	if len(a.bags) != len(b.bags) {
		return false
	}
	for name, ab := range a.bags {
		bb, ok := b.bags[name]
		if !ok || !ir.Equal(ab, bb) {
			return false
		}
	}
	return true
}

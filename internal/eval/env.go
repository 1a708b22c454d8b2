package eval

import "github.com/roach88/relcheck/internal/ir"

// BagSource resolves state references to their current bag values.
// The state store implements it; the verifier supplies synthesized states.
type BagSource interface {
	Bag(name string) (*ir.Bag, bool)
}

// EmptySource is a BagSource with no bags, for evaluating state-free
// expressions.
type EmptySource struct{}

// Bag always reports no bag.
func (EmptySource) Bag(string) (*ir.Bag, bool) { return nil, false }

// Env is an evaluation environment: bound names (operation/query parameters
// and comprehension variables) over a bag source. Environments are
// immutable; binding a generator variable produces a child scope.
type Env struct {
	parent *Env
	name   string
	value  ir.Value
	vars   map[string]ir.Value
	bags   BagSource
}

// NewEnv creates an environment with the given pre-bound names.
// The vars map is not copied; callers must not mutate it afterwards.
func NewEnv(bags BagSource, vars map[string]ir.Value) *Env {
	return &Env{vars: vars, bags: bags}
}

// Lookup resolves a bound name, innermost scope first.
func (e *Env) Lookup(name string) (ir.Value, bool) {
	for s := e; s != nil; s = s.parent {
		if s.name == name && s.value != nil {
			return s.value, true
		}
		if s.vars != nil {
			if v, ok := s.vars[name]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

// Source returns the environment's bag source.
func (e *Env) Source() BagSource {
	for s := e; s != nil; s = s.parent {
		if s.bags != nil {
			return s.bags
		}
	}
	return EmptySource{}
}

// bind creates a child scope with one additional binding.
func (e *Env) bind(name string, v ir.Value) *Env {
	return &Env{parent: e, name: name, value: v}
}

package verify

import (
	"fmt"

	"github.com/roach88/relcheck/internal/eval"
	"github.com/roach88/relcheck/internal/ir"
)

// Counterexample search. The candidate space is deliberately small: one
// deterministic parameter binding, the empty state, and for each insert
// effect a state already holding a twin of the inserted value. That is
// enough to expose unguarded duplicate insertions; pairs whose failure
// needs richer pre-states stay inconclusive and fall to the executor's
// runtime re-check.

type bagMap map[string]*ir.Bag

func (m bagMap) Bag(name string) (*ir.Bag, bool) {
	b, ok := m[name]
	return b, ok
}

// findWitness searches for a concrete pre-state and parameter binding
// where every invariant and the precondition hold before the operation
// and the invariant under test fails after it. Returns nil when the
// bounded search finds nothing.
func findWitness(s *ir.Schema, op *ir.Operation, inv *ir.Invariant) *Witness {
	params, err := synthParams(s, op)
	if err != nil {
		return nil
	}

	for _, pre := range candidateStates(s, op, params) {
		env := eval.NewEnv(bagMap(pre), params)

		if !holdsAll(s, pre) {
			continue
		}
		if op.Assume != nil {
			ok, err := eval.EvalBool(op.Assume, env)
			if err != nil || !ok {
				continue
			}
		}

		post := cloneState(pre)
		if !applyEffects(op, env, post) {
			continue
		}
		ok, err := eval.EvalBool(inv.Body, eval.NewEnv(bagMap(post), nil))
		if err == nil && !ok {
			return &Witness{Params: params, State: pre}
		}
	}
	return nil
}

// candidateStates yields the pre-states to try: all bags empty, then for
// each insert effect a state whose target bag holds a twin of the value
// the effect would insert.
func candidateStates(s *ir.Schema, op *ir.Operation, params map[string]ir.Value) []map[string]*ir.Bag {
	states := []map[string]*ir.Bag{emptyState(s)}

	for _, eff := range op.Effects {
		if eff.Kind != ir.EffectInsert {
			continue
		}
		base := emptyState(s)
		v, err := eval.Eval(eff.Arg, eval.NewEnv(bagMap(base), params))
		if err != nil {
			continue
		}
		tw, err := twin(s, v)
		if err != nil {
			continue
		}
		if b, ok := base[eff.State]; ok {
			b.Insert(tw)
			states = append(states, base)
		}
	}
	return states
}

func emptyState(s *ir.Schema) map[string]*ir.Bag {
	out := make(map[string]*ir.Bag, len(s.States))
	for _, st := range s.States {
		out[st.Name] = ir.NewBag()
	}
	return out
}

func cloneState(bags map[string]*ir.Bag) map[string]*ir.Bag {
	out := make(map[string]*ir.Bag, len(bags))
	for name, b := range bags {
		out[name] = b.Clone()
	}
	return out
}

func holdsAll(s *ir.Schema, bags map[string]*ir.Bag) bool {
	env := eval.NewEnv(bagMap(bags), nil)
	for _, inv := range s.Invariants {
		ok, err := eval.EvalBool(inv.Body, env)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

func applyEffects(op *ir.Operation, env *eval.Env, post map[string]*ir.Bag) bool {
	for _, eff := range op.Effects {
		v, err := eval.Eval(eff.Arg, env)
		if err != nil {
			return false
		}
		b, ok := post[eff.State]
		if !ok {
			return false
		}
		switch eff.Kind {
		case ir.EffectInsert:
			b.Insert(v)
		case ir.EffectRemove:
			b.Remove(v)
		}
	}
	return true
}

// synthParams builds one deterministic parameter binding: small distinct
// ints, numbered strings, and handles with minted identities.
func synthParams(s *ir.Schema, op *ir.Operation) (map[string]ir.Value, error) {
	out := make(map[string]ir.Value, len(op.Params))
	ctr := 0
	for _, p := range op.Params {
		v, err := synthValue(s, p.Type, &ctr)
		if err != nil {
			return nil, err
		}
		out[p.Name] = v
	}
	return out, nil
}

func synthValue(s *ir.Schema, t ir.Type, ctr *int) (ir.Value, error) {
	*ctr++
	switch t.Kind {
	case ir.KindInt:
		return ir.NewInt(int64(*ctr)), nil
	case ir.KindBool:
		return ir.Bool(true), nil
	case ir.KindString:
		return ir.String(fmt.Sprintf("s%d", *ctr)), nil
	case ir.KindBag:
		return ir.NewBag(), nil
	case ir.KindRecord:
		rt, ok := s.Type(t.Record)
		if !ok {
			return nil, fmt.Errorf("undeclared record type %s", t.Record)
		}
		fields := make(map[string]ir.Value, len(rt.Fields))
		for _, f := range rt.Fields {
			fv, err := synthValue(s, f.Type, ctr)
			if err != nil {
				return nil, err
			}
			fields[f.Name] = fv
		}
		if rt.Handle {
			return ir.NewHandle(rt, fmt.Sprintf("w%d", *ctr), fields)
		}
		return ir.NewRec(rt, fields)
	default:
		return nil, fmt.Errorf("cannot synthesize %s", t)
	}
}

// twin returns a distinct element whose fields match v. Handles get a
// fresh identity so the twin is a second element under identity equality;
// everything else clashes as an exact duplicate.
func twin(s *ir.Schema, v ir.Value) (ir.Value, error) {
	r, ok := v.(*ir.Rec)
	if !ok || !r.Handle() {
		return v, nil
	}
	rt, ok := s.Type(r.TypeName)
	if !ok {
		return nil, fmt.Errorf("undeclared record type %s", r.TypeName)
	}
	fields := make(map[string]ir.Value, len(rt.Fields))
	for _, name := range r.FieldNames() {
		fv, _ := r.Field(name)
		fields[name] = fv
	}
	return ir.NewHandle(rt, r.Ident+"'", fields)
}

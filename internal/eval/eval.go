package eval

import (
	"github.com/roach88/relcheck/internal/ir"
)

// Eval evaluates an expression to a value. Evaluation is read-only and
// deterministic for a fixed environment and state.
func Eval(e ir.Expr, env *Env) (ir.Value, error) {
	switch x := e.(type) {
	case ir.Lit:
		return x.Value, nil

	case ir.Ref:
		v, ok := env.Lookup(x.Name)
		if !ok {
			return nil, errf(ErrCodeUnboundName, x.String(), "no binding for %s", x.Name)
		}
		return v, nil

	case ir.StateRef:
		b, ok := env.Source().Bag(x.Name)
		if !ok {
			return nil, errf(ErrCodeUnknownState, x.String(), "no state bag %s", x.Name)
		}
		return b, nil

	case ir.Proj:
		base, err := Eval(x.X, env)
		if err != nil {
			return nil, err
		}
		rec, ok := base.(*ir.Rec)
		if !ok {
			return nil, errf(ErrCodeNotARecord, e.String(), "projection on %T", base)
		}
		v, ok := rec.Field(x.Name)
		if !ok {
			return nil, errf(ErrCodeNoSuchField, e.String(), "%s has no field %s", rec.TypeName, x.Name)
		}
		return v, nil

	case ir.Cmp:
		return evalCmp(x, env)

	case ir.Not:
		v, err := EvalBool(x.X, env)
		if err != nil {
			return nil, err
		}
		return ir.Bool(!v), nil

	case ir.And:
		for _, sub := range x.Xs {
			v, err := EvalBool(sub, env)
			if err != nil {
				return nil, err
			}
			if !v {
				return ir.Bool(false), nil
			}
		}
		return ir.Bool(true), nil

	case ir.Or:
		for _, sub := range x.Xs {
			v, err := EvalBool(sub, env)
			if err != nil {
				return nil, err
			}
			if v {
				return ir.Bool(true), nil
			}
		}
		return ir.Bool(false), nil

	case ir.In:
		elem, err := Eval(x.Elem, env)
		if err != nil {
			return nil, err
		}
		bag, err := evalBag(x.Bag, env)
		if err != nil {
			return nil, err
		}
		return ir.Bool(bag.Contains(elem)), nil

	case ir.Exists:
		found := false
		err := eachBinding(x.Comp.Clauses, env, func(*Env) (bool, error) {
			found = true
			return false, nil // short-circuit on first satisfying binding
		})
		if err != nil {
			return nil, err
		}
		return ir.Bool(found), nil

	case ir.All:
		holds := true
		err := eachBinding(x.Comp.Clauses, env, func(inner *Env) (bool, error) {
			v, err := EvalBool(x.Comp.Head, inner)
			if err != nil {
				return false, err
			}
			if !v {
				holds = false
				return false, nil // short-circuit on first violation
			}
			return true, nil
		})
		if err != nil {
			return nil, err
		}
		return ir.Bool(holds), nil

	case ir.Unique:
		seen := make(map[string]bool)
		dup := false
		err := eachBinding(x.Comp.Clauses, env, func(inner *Env) (bool, error) {
			v, err := Eval(x.Comp.Head, inner)
			if err != nil {
				return false, err
			}
			fp, err := ir.Fingerprint(v)
			if err != nil {
				return false, err
			}
			if seen[string(fp)] {
				dup = true
				return false, nil
			}
			seen[string(fp)] = true
			return true, nil
		})
		if err != nil {
			return nil, err
		}
		return ir.Bool(!dup), nil

	case ir.CompBag:
		vals, err := Comprehend(x.Comp, env)
		if err != nil {
			return nil, err
		}
		return ir.NewBag(vals...), nil

	case ir.Tuple:
		names := make([]string, len(x.Fields))
		fields := make(map[string]ir.Value, len(x.Fields))
		for i, f := range x.Fields {
			v, err := Eval(f.X, env)
			if err != nil {
				return nil, err
			}
			names[i] = f.Name
			fields[f.Name] = v
		}
		return ir.NewRow(names, fields), nil

	default:
		return nil, errf(ErrCodeTypeError, e.String(), "unknown expression form %T", e)
	}
}

// EvalBool evaluates an expression expected to produce a boolean.
func EvalBool(e ir.Expr, env *Env) (bool, error) {
	v, err := Eval(e, env)
	if err != nil {
		return false, err
	}
	b, ok := v.(ir.Bool)
	if !ok {
		return false, errf(ErrCodeTypeError, e.String(), "expected bool, got %T", v)
	}
	return bool(b), nil
}

// Comprehend materializes a comprehension: the head value for every binding
// of the generator clauses that passes every filter, in generator bag
// insertion order.
func Comprehend(c *ir.Comprehension, env *Env) ([]ir.Value, error) {
	var out []ir.Value
	err := eachBinding(c.Clauses, env, func(inner *Env) (bool, error) {
		v, err := Eval(c.Head, inner)
		if err != nil {
			return false, err
		}
		out = append(out, v)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// eachBinding enumerates the bindings of a clause sequence. Generators
// nest left to right; filters prune. fn returns false to stop enumeration
// early (short-circuit).
func eachBinding(clauses []ir.Clause, env *Env, fn func(*Env) (bool, error)) error {
	if len(clauses) == 0 {
		_, err := fn(env)
		return err
	}
	cont := true
	var walk func(rest []ir.Clause, env *Env) error
	walk = func(rest []ir.Clause, env *Env) error {
		if !cont {
			return nil
		}
		if len(rest) == 0 {
			c, err := fn(env)
			if err != nil {
				return err
			}
			cont = c
			return nil
		}
		cl := rest[0]
		if cl.Generator() {
			bag, err := evalBag(cl.Source, env)
			if err != nil {
				return err
			}
			for v := range bag.Values() {
				if err := walk(rest[1:], env.bind(cl.Var, v)); err != nil {
					return err
				}
				if !cont {
					return nil
				}
			}
			return nil
		}
		ok, err := EvalBool(cl.Cond, env)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return walk(rest[1:], env)
	}
	return walk(clauses, env)
}

func evalBag(e ir.Expr, env *Env) (*ir.Bag, error) {
	v, err := Eval(e, env)
	if err != nil {
		return nil, err
	}
	b, ok := v.(*ir.Bag)
	if !ok {
		return nil, errf(ErrCodeNotABag, e.String(), "expected bag, got %T", v)
	}
	return b, nil
}

func evalCmp(x ir.Cmp, env *Env) (ir.Value, error) {
	l, err := Eval(x.L, env)
	if err != nil {
		return nil, err
	}
	r, err := Eval(x.R, env)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case ir.OpEq:
		return ir.Bool(ir.Equal(l, r)), nil
	case ir.OpNe:
		return ir.Bool(!ir.Equal(l, r)), nil
	}
	li, lok := l.(ir.Int)
	ri, rok := r.(ir.Int)
	if !lok || !rok {
		return nil, errf(ErrCodeTypeError, x.String(), "ordering comparison requires integers, got %T and %T", l, r)
	}
	c := li.Cmp(ri)
	switch x.Op {
	case ir.OpLt:
		return ir.Bool(c < 0), nil
	case ir.OpLe:
		return ir.Bool(c <= 0), nil
	case ir.OpGt:
		return ir.Bool(c > 0), nil
	case ir.OpGe:
		return ir.Bool(c >= 0), nil
	default:
		return nil, errf(ErrCodeTypeError, x.String(), "unknown comparison %q", x.Op)
	}
}

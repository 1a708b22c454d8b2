package ir

import (
	"fmt"
	"strings"
)

// ValidationError collects everything wrong with a schema. Validation does
// not stop at the first problem so a front end can report all of them.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid schema: %s", strings.Join(e.Problems, "; "))
}

// Validate checks a schema's internal consistency: unique names, resolvable
// type references, declared effect targets, and closed formulas (every Ref
// bound by a parameter or an enclosing generator, every StateRef declared).
// Invariants must additionally be closed over state alone.
//
// Full expression type inference is not performed here; ill-typed
// expressions surface as EvaluationErrors, and malformed values as
// TypeMismatchErrors at the construction boundary.
func (s *Schema) Validate() error {
	v := &validator{schema: s}

	seenTypes := map[string]bool{}
	for _, rt := range s.Types {
		if seenTypes[rt.Name] {
			v.errf("duplicate type %s", rt.Name)
		}
		seenTypes[rt.Name] = true
		seenFields := map[string]bool{}
		for _, f := range rt.Fields {
			if strings.HasPrefix(f.Name, "$") {
				v.errf("%s.%s: field names must not start with '$'", rt.Name, f.Name)
			}
			if seenFields[f.Name] {
				v.errf("%s: duplicate field %s", rt.Name, f.Name)
			}
			seenFields[f.Name] = true
			v.checkType(rt.Name+"."+f.Name, f.Type)
		}
	}

	seenStates := map[string]bool{}
	for _, st := range s.States {
		if seenStates[st.Name] {
			v.errf("duplicate state %s", st.Name)
		}
		seenStates[st.Name] = true
		v.checkType("state "+st.Name, st.Elem)
	}

	for _, inv := range s.Invariants {
		v.checkExpr("invariant "+inv.Name, inv.Body, map[string]bool{})
	}

	for _, op := range s.Operations {
		scope := v.checkParams("operation "+op.Name, op.Params)
		if op.Assume == nil {
			v.errf("operation %s: missing assume", op.Name)
		} else {
			v.checkExpr("operation "+op.Name+" assume", op.Assume, scope)
		}
		if len(op.Effects) == 0 {
			v.errf("operation %s: no effects", op.Name)
		}
		for i, ef := range op.Effects {
			where := fmt.Sprintf("operation %s effect %d", op.Name, i)
			if ef.Kind != EffectInsert && ef.Kind != EffectRemove {
				v.errf("%s: unknown kind %q", where, ef.Kind)
			}
			if _, ok := s.State(ef.State); !ok {
				v.errf("%s: undeclared state %s", where, ef.State)
			}
			if ef.Arg == nil {
				v.errf("%s: missing arg", where)
			} else {
				v.checkExpr(where, ef.Arg, scope)
			}
		}
	}

	for _, q := range s.Queries {
		scope := v.checkParams("query "+q.Name, q.Params)
		if q.Comp == nil {
			v.errf("query %s: missing comprehension", q.Name)
		} else {
			v.checkComp("query "+q.Name, q.Comp, scope, true)
		}
	}

	if len(v.problems) > 0 {
		return &ValidationError{Problems: v.problems}
	}
	return nil
}

type validator struct {
	schema   *Schema
	problems []string
}

func (v *validator) errf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) checkType(where string, t Type) {
	switch t.Kind {
	case KindInt, KindBool, KindString:
	case KindRecord:
		if _, ok := v.schema.Type(t.Record); !ok {
			v.errf("%s: undeclared record type %s", where, t.Record)
		}
	case KindBag:
		if t.Elem == nil {
			v.errf("%s: bag type without element type", where)
			return
		}
		v.checkType(where, *t.Elem)
	default:
		v.errf("%s: invalid type", where)
	}
}

func (v *validator) checkParams(where string, params []Param) map[string]bool {
	scope := make(map[string]bool, len(params))
	for _, p := range params {
		if scope[p.Name] {
			v.errf("%s: duplicate parameter %s", where, p.Name)
		}
		scope[p.Name] = true
		v.checkType(where+" param "+p.Name, p.Type)
	}
	return scope
}

// checkExpr walks an expression checking that all names resolve. scope maps
// bound variable names; state references resolve against declarations.
func (v *validator) checkExpr(where string, e Expr, scope map[string]bool) {
	switch x := e.(type) {
	case Lit:
		if x.Value == nil {
			v.errf("%s: nil literal", where)
		}
	case Ref:
		if !scope[x.Name] {
			v.errf("%s: unbound name %s", where, x.Name)
		}
	case StateRef:
		if _, ok := v.schema.State(x.Name); !ok {
			v.errf("%s: undeclared state %s", where, x.Name)
		}
	case Proj:
		v.checkExpr(where, x.X, scope)
	case Cmp:
		v.checkExpr(where, x.L, scope)
		v.checkExpr(where, x.R, scope)
	case Not:
		v.checkExpr(where, x.X, scope)
	case And:
		for _, sub := range x.Xs {
			v.checkExpr(where, sub, scope)
		}
	case Or:
		for _, sub := range x.Xs {
			v.checkExpr(where, sub, scope)
		}
	case In:
		v.checkExpr(where, x.Elem, scope)
		v.checkExpr(where, x.Bag, scope)
	case Exists:
		v.checkComp(where, x.Comp, scope, false)
	case All:
		if x.Comp == nil || x.Comp.Head == nil {
			v.errf("%s: all-quantifier without condition head", where)
			return
		}
		v.checkComp(where, x.Comp, scope, true)
	case Unique:
		if x.Comp == nil || x.Comp.Head == nil {
			v.errf("%s: unique without projection head", where)
			return
		}
		v.checkComp(where, x.Comp, scope, true)
	case CompBag:
		if x.Comp == nil || x.Comp.Head == nil {
			v.errf("%s: bag comprehension without head", where)
			return
		}
		v.checkComp(where, x.Comp, scope, true)
	case Tuple:
		for _, f := range x.Fields {
			v.checkExpr(where, f.X, scope)
		}
	case nil:
		v.errf("%s: nil expression", where)
	default:
		v.errf("%s: unknown expression form %T", where, e)
	}
}

func (v *validator) checkComp(where string, c *Comprehension, scope map[string]bool, needHead bool) {
	if c == nil {
		v.errf("%s: nil comprehension", where)
		return
	}
	inner := make(map[string]bool, len(scope))
	for k := range scope {
		inner[k] = true
	}
	if len(c.Clauses) == 0 || !c.Clauses[0].Generator() {
		v.errf("%s: comprehension must start with a generator", where)
	}
	for _, cl := range c.Clauses {
		if cl.Generator() {
			if inner[cl.Var] {
				v.errf("%s: generator shadows %s", where, cl.Var)
			}
			if cl.Source == nil {
				v.errf("%s: generator %s without source", where, cl.Var)
			} else {
				v.checkExpr(where, cl.Source, inner)
			}
			inner[cl.Var] = true
		} else {
			if cl.Cond == nil {
				v.errf("%s: filter clause without condition", where)
			} else {
				v.checkExpr(where, cl.Cond, inner)
			}
		}
	}
	if c.Head != nil {
		v.checkExpr(where, c.Head, inner)
	} else if needHead {
		v.errf("%s: comprehension requires a head", where)
	}
}

package verify

import (
	"fmt"

	"github.com/roach88/relcheck/internal/ir"
)

// insertObligation builds the proof obligation for inserting the value of
// arg into the bag at a non-monotone occurrence. The obligation quantifies
// only over the new element, the operation's parameters, and the old state
// — the old contents are covered by the inductive hypothesis.
//
// Returns false when no rule re-expresses the occurrence, in which case
// the pair cannot be proven by this path.
func insertObligation(o occurrence, arg ir.Expr) (ir.Expr, bool) {
	switch {
	case o.kind == occAllGen && o.positive:
		return allGenObligation(o, arg), true
	case o.kind == occUniqueGen && o.positive:
		return uniqueGenObligation(o, arg)
	case o.kind == occExistsGen && !o.positive:
		return negExistsObligation(o, arg)
	default:
		return nil, false
	}
}

// allGenObligation restricts a universal quantifier to the new element:
// for all [h | ..., x <- b, rest...], inserting r into b obliges
// all [h | ...][x := r] with the generator clause removed - the remaining
// outer generators still quantify, the inner clauses see r.
func allGenObligation(o occurrence, arg ir.Expr) ir.Expr {
	c := o.comp
	v := c.Clauses[o.genIndex].Var

	inner := substComp(&ir.Comprehension{Head: c.Head, Clauses: c.Clauses[o.genIndex+1:]}, v, arg)

	var body ir.Expr
	if len(inner.Clauses) == 0 {
		body = inner.Head
	} else {
		body = ir.All{Comp: inner}
	}

	outer := c.Clauses[:o.genIndex]
	if len(outer) == 0 {
		return body
	}
	return ir.All{Comp: &ir.Comprehension{Head: body, Clauses: outer}}
}

// uniqueGenObligation: for unique [e | x <- b], inserting r obliges that
// no existing element projects to the same value:
// !exists [x0 <- b, e[x := x0] == e[x := r]].
// Comprehensions with additional clauses have no rule.
func uniqueGenObligation(o occurrence, arg ir.Expr) (ir.Expr, bool) {
	c := o.comp
	if len(c.Clauses) != 1 || o.genIndex != 0 {
		return nil, false
	}
	v := c.Clauses[0].Var
	used := namesOf(c.Head)
	for n := range namesOf(arg) {
		used[n] = true
	}
	for n := range namesOf(c.Clauses[0].Source) {
		used[n] = true
	}
	fresh := freshVar(v, used)
	return ir.Not{X: ir.Exists{Comp: &ir.Comprehension{
		Clauses: []ir.Clause{
			{Var: fresh, Source: c.Clauses[0].Source},
			{Cond: ir.Cmp{Op: ir.OpEq,
				L: subst(c.Head, v, ir.Ref{Name: fresh}),
				R: subst(c.Head, v, arg),
			}},
		},
	}}}, true
}

// negExistsObligation: for !exists [x <- b, f...], inserting r obliges
// that r fails the filters: !(f[x := r]). Only pure filter bodies have a
// rule; further generators would need their own quantification.
func negExistsObligation(o occurrence, arg ir.Expr) (ir.Expr, bool) {
	c := o.comp
	if o.genIndex != 0 {
		return nil, false
	}
	v := c.Clauses[0].Var
	conds := make([]ir.Expr, 0, len(c.Clauses)-1)
	for _, cl := range c.Clauses[1:] {
		if cl.Generator() {
			return nil, false
		}
		conds = append(conds, subst(cl.Cond, v, arg))
	}
	if len(conds) == 0 {
		// The mere presence of the new element re-satisfies the exists:
		// the negated invariant is unconditionally broken.
		return ir.Lit{Value: ir.Bool(false)}, true
	}
	return ir.Not{X: ir.And{Xs: conds}}, true
}

// namesOf collects every variable name an expression mentions, bound or
// free. Over-approximating keeps freshVar simple.
func namesOf(e ir.Expr) map[string]bool {
	out := map[string]bool{}
	var walk func(ir.Expr)
	walkComp := func(c *ir.Comprehension) {
		if c == nil {
			return
		}
		for _, cl := range c.Clauses {
			if cl.Generator() {
				out[cl.Var] = true
				walk(cl.Source)
			} else {
				walk(cl.Cond)
			}
		}
		if c.Head != nil {
			walk(c.Head)
		}
	}
	walk = func(e ir.Expr) {
		switch x := e.(type) {
		case ir.Ref:
			out[x.Name] = true
		case ir.Proj:
			walk(x.X)
		case ir.Cmp:
			walk(x.L)
			walk(x.R)
		case ir.Not:
			walk(x.X)
		case ir.And:
			for _, sub := range x.Xs {
				walk(sub)
			}
		case ir.Or:
			for _, sub := range x.Xs {
				walk(sub)
			}
		case ir.In:
			walk(x.Elem)
			walk(x.Bag)
		case ir.Exists:
			walkComp(x.Comp)
		case ir.All:
			walkComp(x.Comp)
		case ir.Unique:
			walkComp(x.Comp)
		case ir.CompBag:
			walkComp(x.Comp)
		case ir.Tuple:
			for _, f := range x.Fields {
				walk(f.X)
			}
		}
	}
	walk(e)
	return out
}

// freshVar derives a variable name from base that collides with nothing
// in used.
func freshVar(base string, used map[string]bool) string {
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s%d", base, i)
		if !used[name] {
			return name
		}
	}
}

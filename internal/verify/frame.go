package verify

import (
	"github.com/roach88/relcheck/internal/ir"
)

// statesOf returns the names of every state bag an expression reads.
func statesOf(e ir.Expr) map[string]bool {
	out := map[string]bool{}
	var walk func(ir.Expr)
	walkComp := func(c *ir.Comprehension) {
		if c == nil {
			return
		}
		for _, cl := range c.Clauses {
			if cl.Generator() {
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
		case ir.StateRef:
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

// occKind classifies how a state bag occurs inside an invariant.
type occKind int

const (
	// occInBag: the bag is the target of a membership test.
	occInBag occKind = iota
	// occExistsGen: the bag generates an existential quantifier.
	occExistsGen
	// occAllGen: the bag generates a universal quantifier.
	occAllGen
	// occUniqueGen: the bag generates a uniqueness assertion.
	occUniqueGen
	// occOpaque: any other position - a term context, a nested source
	// expression, or a non-boolean comprehension. No monotonicity or
	// obligation rule applies to opaque occurrences.
	occOpaque
)

// occurrence is one syntactic occurrence of a state bag, with the boolean
// polarity of its position. For generator kinds, comp and genIndex locate
// the generator clause.
type occurrence struct {
	kind     occKind
	positive bool
	comp     *ir.Comprehension
	genIndex int
}

// insertMonotone reports whether inserting an element into the bag at this
// occurrence can never falsify the formula: membership targets and
// existential generators in positive position only gain witnesses;
// universal and uniqueness generators in negative position only gain
// violations of the negated form.
func (o occurrence) insertMonotone() bool {
	switch o.kind {
	case occInBag, occExistsGen:
		return o.positive
	case occAllGen, occUniqueGen:
		return !o.positive
	default:
		return false
	}
}

// removeMonotone is the dual: removing an element cannot falsify universal
// or uniqueness positions (fewer bindings, fewer clashes) nor negative
// membership/existential positions.
func (o occurrence) removeMonotone() bool {
	switch o.kind {
	case occInBag, occExistsGen:
		return !o.positive
	case occAllGen, occUniqueGen:
		return o.positive
	default:
		return false
	}
}

// occurrencesOf collects every occurrence of the named bag in a formula.
// Positions inside terms (comparisons, projections, heads of uniqueness
// assertions) are opaque. Polarity flips under negation; filters of a
// universal quantifier count as negative relative to it (all [h | x <- b,
// f] is forall x in b: f implies h).
func occurrencesOf(e ir.Expr, bag string, positive bool) []occurrence {
	var out []occurrence

	// opaque marks every occurrence inside a term context.
	var opaque func(ir.Expr)
	opaque = func(e ir.Expr) {
		for name := range statesOf(e) {
			if name == bag {
				out = append(out, occurrence{kind: occOpaque, positive: positive})
				return
			}
		}
	}

	genSource := func(c *ir.Comprehension, i int, kind occKind, pos bool) {
		src := c.Clauses[i].Source
		if sr, ok := src.(ir.StateRef); ok && sr.Name == bag {
			out = append(out, occurrence{kind: kind, positive: pos, comp: c, genIndex: i})
			return
		}
		opaque(src)
	}

	switch x := e.(type) {
	case ir.Lit, ir.Ref:
		// no state occurrences
	case ir.StateRef:
		if x.Name == bag {
			out = append(out, occurrence{kind: occOpaque, positive: positive})
		}
	case ir.Proj, ir.Cmp, ir.CompBag, ir.Tuple:
		opaque(e)
	case ir.Not:
		out = append(out, occurrencesOf(x.X, bag, !positive)...)
	case ir.And:
		for _, sub := range x.Xs {
			out = append(out, occurrencesOf(sub, bag, positive)...)
		}
	case ir.Or:
		for _, sub := range x.Xs {
			out = append(out, occurrencesOf(sub, bag, positive)...)
		}
	case ir.In:
		opaque(x.Elem)
		if sr, ok := x.Bag.(ir.StateRef); ok && sr.Name == bag {
			out = append(out, occurrence{kind: occInBag, positive: positive})
		} else {
			opaque(x.Bag)
		}
	case ir.Exists:
		for i, cl := range x.Comp.Clauses {
			if cl.Generator() {
				genSource(x.Comp, i, occExistsGen, positive)
			} else {
				out = append(out, occurrencesOf(cl.Cond, bag, positive)...)
			}
		}
	case ir.All:
		for i, cl := range x.Comp.Clauses {
			if cl.Generator() {
				genSource(x.Comp, i, occAllGen, positive)
			} else {
				out = append(out, occurrencesOf(cl.Cond, bag, !positive)...)
			}
		}
		if x.Comp.Head != nil {
			out = append(out, occurrencesOf(x.Comp.Head, bag, positive)...)
		}
	case ir.Unique:
		for i, cl := range x.Comp.Clauses {
			if cl.Generator() {
				genSource(x.Comp, i, occUniqueGen, positive)
			} else {
				opaque(cl.Cond)
			}
		}
		if x.Comp.Head != nil {
			opaque(x.Comp.Head)
		}
	}
	return out
}

package verify

import (
	"fmt"
	"sort"

	"github.com/roach88/relcheck/internal/ir"
)

// entailment is the restricted decision procedure discharging obligations:
// an obligation holds when, after congruence rewriting and normalization,
// every conjunct of it appears verbatim among the conjuncts of the
// precondition and the inductive hypothesis. There is no quantifier
// elimination; universal quantifiers dualize to negated existentials and
// quantifiers match up to renaming of their generator variables.
type entailment struct {
	classes map[string]ir.Expr // term render -> class representative
	facts   map[string]bool    // renders of normalized fact conjuncts
}

// newEntailment prepares the fact base from the given formulas.
func newEntailment(facts ...ir.Expr) *entailment {
	ent := &entailment{classes: map[string]ir.Expr{}, facts: map[string]bool{}}

	// First pass: equality facts among terms feed the congruence classes.
	var conjuncts []ir.Expr
	for _, f := range facts {
		conjuncts = append(conjuncts, flattenAnd(f)...)
	}
	uf := newUnionFind()
	for _, c := range conjuncts {
		if cmp, ok := c.(ir.Cmp); ok && cmp.Op == ir.OpEq && isTerm(cmp.L) && isTerm(cmp.R) {
			uf.union(cmp.L, cmp.R)
		}
	}
	ent.classes = uf.representatives()

	// Second pass: normalize every conjunct against those classes.
	for _, c := range conjuncts {
		ent.facts[render(ent.normalize(c))] = true
	}
	return ent
}

// entails reports whether every conjunct of the obligation is discharged
// by the fact base.
func (ent *entailment) entails(obligation ir.Expr) bool {
	for _, c := range flattenAnd(obligation) {
		n := ent.normalize(c)
		if lit, ok := n.(ir.Lit); ok {
			if b, ok := lit.Value.(ir.Bool); ok && bool(b) {
				continue
			}
			return false
		}
		if !ent.facts[render(n)] {
			return false
		}
	}
	return true
}

// normalize rewrites terms to congruence representatives, converts to
// negation normal form with universals dualized to negated existentials,
// orients comparisons, flattens and sorts connectives, and alpha-renames
// generator variables.
func (ent *entailment) normalize(e ir.Expr) ir.Expr {
	e = ent.rewrite(e)
	e = nnf(e, true)
	c := &canonizer{next: 0, ren: map[string]string{}}
	return c.canon(e)
}

// rewrite replaces any term whose render belongs to a congruence class
// with the class representative.
func (ent *entailment) rewrite(e ir.Expr) ir.Expr {
	if isTerm(e) {
		if rep, ok := ent.classes[render(e)]; ok {
			return rep
		}
	}
	switch x := e.(type) {
	case ir.Proj:
		return ir.Proj{X: ent.rewrite(x.X), Name: x.Name}
	case ir.Cmp:
		return ir.Cmp{Op: x.Op, L: ent.rewrite(x.L), R: ent.rewrite(x.R)}
	case ir.Not:
		return ir.Not{X: ent.rewrite(x.X)}
	case ir.And:
		return ir.And{Xs: ent.rewriteAll(x.Xs)}
	case ir.Or:
		return ir.Or{Xs: ent.rewriteAll(x.Xs)}
	case ir.In:
		return ir.In{Elem: ent.rewrite(x.Elem), Bag: ent.rewrite(x.Bag)}
	case ir.Exists:
		return ir.Exists{Comp: ent.rewriteComp(x.Comp)}
	case ir.All:
		return ir.All{Comp: ent.rewriteComp(x.Comp)}
	case ir.Unique:
		return ir.Unique{Comp: ent.rewriteComp(x.Comp)}
	case ir.CompBag:
		return ir.CompBag{Comp: ent.rewriteComp(x.Comp)}
	default:
		return e
	}
}

func (ent *entailment) rewriteAll(xs []ir.Expr) []ir.Expr {
	out := make([]ir.Expr, len(xs))
	for i, x := range xs {
		out[i] = ent.rewrite(x)
	}
	return out
}

func (ent *entailment) rewriteComp(c *ir.Comprehension) *ir.Comprehension {
	if c == nil {
		return nil
	}
	out := &ir.Comprehension{Clauses: make([]ir.Clause, len(c.Clauses))}
	for i, cl := range c.Clauses {
		if cl.Generator() {
			out.Clauses[i] = ir.Clause{Var: cl.Var, Source: ent.rewrite(cl.Source)}
		} else {
			out.Clauses[i] = ir.Clause{Cond: ent.rewrite(cl.Cond)}
		}
	}
	if c.Head != nil {
		out.Head = ent.rewrite(c.Head)
	}
	return out
}

// nnf pushes negation down to atoms. Universal quantifiers dualize:
// all [h | cls] becomes !exists [cls, !h], so that a precondition written
// either way matches an obligation written the other way.
func nnf(e ir.Expr, positive bool) ir.Expr {
	switch x := e.(type) {
	case ir.Not:
		return nnf(x.X, !positive)
	case ir.And:
		sub := make([]ir.Expr, len(x.Xs))
		for i, s := range x.Xs {
			sub[i] = nnf(s, positive)
		}
		if positive {
			return ir.And{Xs: sub}
		}
		return ir.Or{Xs: sub}
	case ir.Or:
		sub := make([]ir.Expr, len(x.Xs))
		for i, s := range x.Xs {
			sub[i] = nnf(s, positive)
		}
		if positive {
			return ir.Or{Xs: sub}
		}
		return ir.And{Xs: sub}
	case ir.Cmp:
		op := x.Op
		if !positive {
			op = op.Negate()
		}
		return ir.Cmp{Op: op, L: x.L, R: x.R}
	case ir.Lit:
		if b, ok := x.Value.(ir.Bool); ok && !positive {
			return ir.Lit{Value: ir.Bool(!b)}
		}
		return x
	case ir.All:
		// all [h | cls]  ==  !exists [cls, !h]
		c := x.Comp
		clauses := append(append([]ir.Clause{}, c.Clauses...), ir.Clause{Cond: ir.Not{X: c.Head}})
		return nnf(ir.Not{X: ir.Exists{Comp: &ir.Comprehension{Clauses: clauses}}}, positive)
	case ir.Exists:
		inner := nnfComp(x.Comp)
		if positive {
			return ir.Exists{Comp: inner}
		}
		return ir.Not{X: ir.Exists{Comp: inner}}
	case ir.Unique:
		if positive {
			return x
		}
		return ir.Not{X: x}
	case ir.In:
		if positive {
			return x
		}
		return ir.Not{X: x}
	default:
		if positive {
			return e
		}
		return ir.Not{X: e}
	}
}

// nnfComp normalizes the filter conditions of an existential body; the
// head is dropped (exists only tests for a satisfying binding).
func nnfComp(c *ir.Comprehension) *ir.Comprehension {
	out := &ir.Comprehension{Clauses: make([]ir.Clause, len(c.Clauses))}
	for i, cl := range c.Clauses {
		if cl.Generator() {
			out.Clauses[i] = cl
		} else {
			out.Clauses[i] = ir.Clause{Cond: nnf(cl.Cond, true)}
		}
	}
	return out
}

// canonizer performs the structural canonicalization pass: orientation of
// comparisons, flattening/sorting/deduping of connectives, deterministic
// alpha-renaming of generator variables, and sorting of filter clauses.
type canonizer struct {
	next int
	ren  map[string]string
}

func (cz *canonizer) canon(e ir.Expr) ir.Expr {
	switch x := e.(type) {
	case ir.Lit, ir.StateRef:
		return e
	case ir.Ref:
		if r, ok := cz.ren[x.Name]; ok {
			return ir.Ref{Name: r}
		}
		return x
	case ir.Proj:
		return ir.Proj{X: cz.canon(x.X), Name: x.Name}
	case ir.Cmp:
		l, r := cz.canon(x.L), cz.canon(x.R)
		op := x.Op
		if render(l) > render(r) {
			l, r = r, l
			op = op.Flip()
		}
		return ir.Cmp{Op: op, L: l, R: r}
	case ir.Not:
		return ir.Not{X: cz.canon(x.X)}
	case ir.And:
		sub := cz.canonSet(flattenAnd(x))
		switch len(sub) {
		case 0:
			return ir.Lit{Value: ir.Bool(true)}
		case 1:
			return sub[0]
		}
		return ir.And{Xs: sub}
	case ir.Or:
		sub := cz.canonSet(flattenOr(x))
		switch len(sub) {
		case 0:
			return ir.Lit{Value: ir.Bool(false)}
		case 1:
			return sub[0]
		}
		return ir.Or{Xs: sub}
	case ir.In:
		return ir.In{Elem: cz.canon(x.Elem), Bag: cz.canon(x.Bag)}
	case ir.Exists:
		return ir.Exists{Comp: cz.canonComp(x.Comp, nil)}
	case ir.All:
		head := x.Comp.Head
		return ir.All{Comp: cz.canonComp(x.Comp, head)}
	case ir.Unique:
		return ir.Unique{Comp: cz.canonComp(x.Comp, x.Comp.Head)}
	case ir.CompBag:
		return ir.CompBag{Comp: cz.canonComp(x.Comp, x.Comp.Head)}
	case ir.Tuple:
		fields := make([]ir.TupleField, len(x.Fields))
		for i, f := range x.Fields {
			fields[i] = ir.TupleField{Name: f.Name, X: cz.canon(f.X)}
		}
		return ir.Tuple{Fields: fields}
	default:
		return e
	}
}

func (cz *canonizer) canonSet(xs []ir.Expr) []ir.Expr {
	seen := map[string]bool{}
	var out []ir.Expr
	for _, x := range xs {
		c := cz.canon(x)
		r := render(c)
		if !seen[r] {
			seen[r] = true
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return render(out[i]) < render(out[j]) })
	return out
}

// canonComp renames generator variables in order of appearance and sorts
// filter clauses to the end by render. A filter is a pure condition, so
// hoisting it past later generators preserves which bindings exist.
func (cz *canonizer) canonComp(c *ir.Comprehension, head ir.Expr) *ir.Comprehension {
	saved := cz.ren
	cz.ren = map[string]string{}
	for k, v := range saved {
		cz.ren[k] = v
	}
	defer func() { cz.ren = saved }()

	var gens []ir.Clause
	var filters []ir.Clause
	for _, cl := range c.Clauses {
		if cl.Generator() {
			src := cz.canon(cl.Source)
			fresh := fmt.Sprintf("$%d", cz.next)
			cz.next++
			cz.ren[cl.Var] = fresh
			gens = append(gens, ir.Clause{Var: fresh, Source: src})
		} else {
			filters = append(filters, ir.Clause{Cond: cz.canon(cl.Cond)})
		}
	}
	sort.Slice(filters, func(i, j int) bool {
		return filters[i].Cond.String() < filters[j].Cond.String()
	})

	out := &ir.Comprehension{Clauses: append(gens, filters...)}
	if head != nil {
		out.Head = cz.canon(head)
	}
	return out
}

// flattenAnd returns the conjuncts of an expression (itself if not a
// conjunction).
func flattenAnd(e ir.Expr) []ir.Expr {
	if a, ok := e.(ir.And); ok {
		var out []ir.Expr
		for _, x := range a.Xs {
			out = append(out, flattenAnd(x)...)
		}
		return out
	}
	return []ir.Expr{e}
}

func flattenOr(e ir.Expr) []ir.Expr {
	if o, ok := e.(ir.Or); ok {
		var out []ir.Expr
		for _, x := range o.Xs {
			out = append(out, flattenOr(x)...)
		}
		return out
	}
	return []ir.Expr{e}
}

// isTerm reports whether an expression is a ground term for congruence
// purposes: a reference, a projection chain, or a literal.
func isTerm(e ir.Expr) bool {
	switch x := e.(type) {
	case ir.Ref, ir.Lit:
		return true
	case ir.Proj:
		return isTerm(x.X)
	default:
		return false
	}
}

func render(e ir.Expr) string { return e.String() }

// unionFind tracks congruence classes of terms keyed by render.
type unionFind struct {
	parent map[string]string
	expr   map[string]ir.Expr
}

func newUnionFind() *unionFind {
	return &unionFind{parent: map[string]string{}, expr: map[string]ir.Expr{}}
}

func (u *unionFind) find(k string) string {
	p, ok := u.parent[k]
	if !ok || p == k {
		return k
	}
	root := u.find(p)
	u.parent[k] = root
	return root
}

func (u *unionFind) union(a, b ir.Expr) {
	ra, rb := render(a), render(b)
	u.expr[ra], u.expr[rb] = a, b
	if _, ok := u.parent[ra]; !ok {
		u.parent[ra] = ra
	}
	if _, ok := u.parent[rb]; !ok {
		u.parent[rb] = rb
	}
	fa, fb := u.find(ra), u.find(rb)
	if fa == fb {
		return
	}
	// Lexicographically smallest render becomes the representative so
	// rewriting is deterministic.
	if fa < fb {
		u.parent[fb] = fa
	} else {
		u.parent[fa] = fb
	}
}

// representatives maps every known term render to the representative
// expression of its class.
func (u *unionFind) representatives() map[string]ir.Expr {
	out := map[string]ir.Expr{}
	for k := range u.parent {
		root := u.find(k)
		if root != k {
			out[k] = u.expr[root]
		}
	}
	return out
}

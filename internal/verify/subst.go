package verify

import "github.com/roach88/relcheck/internal/ir"

// subst replaces free occurrences of the named variable with repl.
// Generator clauses that rebind the name shadow it for the remainder of
// their comprehension.
func subst(e ir.Expr, name string, repl ir.Expr) ir.Expr {
	switch x := e.(type) {
	case ir.Lit, ir.StateRef:
		return e
	case ir.Ref:
		if x.Name == name {
			return repl
		}
		return e
	case ir.Proj:
		return ir.Proj{X: subst(x.X, name, repl), Name: x.Name}
	case ir.Cmp:
		return ir.Cmp{Op: x.Op, L: subst(x.L, name, repl), R: subst(x.R, name, repl)}
	case ir.Not:
		return ir.Not{X: subst(x.X, name, repl)}
	case ir.And:
		return ir.And{Xs: substAll(x.Xs, name, repl)}
	case ir.Or:
		return ir.Or{Xs: substAll(x.Xs, name, repl)}
	case ir.In:
		return ir.In{Elem: subst(x.Elem, name, repl), Bag: subst(x.Bag, name, repl)}
	case ir.Exists:
		return ir.Exists{Comp: substComp(x.Comp, name, repl)}
	case ir.All:
		return ir.All{Comp: substComp(x.Comp, name, repl)}
	case ir.Unique:
		return ir.Unique{Comp: substComp(x.Comp, name, repl)}
	case ir.CompBag:
		return ir.CompBag{Comp: substComp(x.Comp, name, repl)}
	case ir.Tuple:
		fields := make([]ir.TupleField, len(x.Fields))
		for i, f := range x.Fields {
			fields[i] = ir.TupleField{Name: f.Name, X: subst(f.X, name, repl)}
		}
		return ir.Tuple{Fields: fields}
	default:
		return e
	}
}

func substAll(xs []ir.Expr, name string, repl ir.Expr) []ir.Expr {
	out := make([]ir.Expr, len(xs))
	for i, sub := range xs {
		out[i] = subst(sub, name, repl)
	}
	return out
}

func substComp(c *ir.Comprehension, name string, repl ir.Expr) *ir.Comprehension {
	if c == nil {
		return nil
	}
	out := &ir.Comprehension{Clauses: make([]ir.Clause, 0, len(c.Clauses))}
	shadowed := false
	for _, cl := range c.Clauses {
		if cl.Generator() {
			src := cl.Source
			if !shadowed {
				src = subst(src, name, repl)
			}
			if cl.Var == name {
				shadowed = true
			}
			out.Clauses = append(out.Clauses, ir.Clause{Var: cl.Var, Source: src})
			continue
		}
		cond := cl.Cond
		if !shadowed {
			cond = subst(cond, name, repl)
		}
		out.Clauses = append(out.Clauses, ir.Clause{Cond: cond})
	}
	if c.Head != nil {
		if shadowed {
			out.Head = c.Head
		} else {
			out.Head = subst(c.Head, name, repl)
		}
	}
	return out
}

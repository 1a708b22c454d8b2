package ir

import (
	"fmt"
	"strings"
)

// Expr is a sealed interface over the expression forms of the language.
// Only the node types in this file implement it. Expressions are immutable
// and share no mutable state with evaluation.
type Expr interface {
	exprNode() // Sealed
	String() string
}

// Lit is a literal value. Bag literals are permitted (the empty bag in
// particular); records appear as literals only in seeded test fixtures.
type Lit struct {
	Value Value
}

func (Lit) exprNode() {}

func (e Lit) String() string {
	switch v := e.Value.(type) {
	case Int:
		return v.String()
	case Bool:
		return fmt.Sprintf("%t", bool(v))
	case String:
		return fmt.Sprintf("%q", string(v))
	case *Bag:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{…%d}", v.Len())
	case *Rec:
		if v.Ident != "" {
			return fmt.Sprintf("%s@%s", v.TypeName, v.Ident)
		}
		return v.TypeName + "{…}"
	default:
		return "<lit>"
	}
}

// NewIntLit is shorthand for an integer literal expression.
func NewIntLit(n int64) Lit { return Lit{Value: NewInt(n)} }

// NewBoolLit is shorthand for a boolean literal expression.
func NewBoolLit(b bool) Lit { return Lit{Value: Bool(b)} }

// NewStringLit is shorthand for a string literal expression.
func NewStringLit(s string) Lit { return Lit{Value: String(s)} }

// EmptyBagLit is the empty bag literal, written {} in the surface language.
func EmptyBagLit() Lit { return Lit{Value: NewBag()} }

// Ref is a reference to a bound name: an operation/query parameter or a
// comprehension generator variable.
type Ref struct {
	Name string
}

func (Ref) exprNode() {}

func (e Ref) String() string { return e.Name }

// StateRef names a declared top-level state bag.
type StateRef struct {
	Name string
}

func (StateRef) exprNode() {}

func (e StateRef) String() string { return e.Name }

// Proj projects a field out of a record-valued expression.
type Proj struct {
	X    Expr
	Name string
}

func (Proj) exprNode() {}

func (e Proj) String() string { return e.X.String() + "." + e.Name }

// CmpOp enumerates the comparison operators.
type CmpOp string

const (
	OpEq CmpOp = "=="
	OpNe CmpOp = "!="
	OpLt CmpOp = "<"
	OpLe CmpOp = "<="
	OpGt CmpOp = ">"
	OpGe CmpOp = ">="
)

// Negate returns the complementary operator.
func (op CmpOp) Negate() CmpOp {
	switch op {
	case OpEq:
		return OpNe
	case OpNe:
		return OpEq
	case OpLt:
		return OpGe
	case OpLe:
		return OpGt
	case OpGt:
		return OpLe
	case OpGe:
		return OpLt
	}
	return op
}

// Flip returns the operator with its operands swapped: a < b iff b > a.
func (op CmpOp) Flip() CmpOp {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	}
	return op // Eq and Ne are symmetric
}

// Cmp compares two expressions. Equality on handle-typed values compares
// identity; ordering operators require integers.
type Cmp struct {
	Op CmpOp
	L  Expr
	R  Expr
}

func (Cmp) exprNode() {}

func (e Cmp) String() string {
	return fmt.Sprintf("(%s %s %s)", e.L.String(), e.Op, e.R.String())
}

// Not is boolean negation.
type Not struct {
	X Expr
}

func (Not) exprNode() {}

func (e Not) String() string { return "!" + e.X.String() }

// And is n-ary conjunction; empty And is true.
type And struct {
	Xs []Expr
}

func (And) exprNode() {}

func (e And) String() string { return joinExprs(e.Xs, " && ") }

// Or is n-ary disjunction; empty Or is false.
type Or struct {
	Xs []Expr
}

func (Or) exprNode() {}

func (e Or) String() string { return joinExprs(e.Xs, " || ") }

// In tests multiset membership of Elem in the bag-valued Bag.
type In struct {
	Elem Expr
	Bag  Expr
}

func (In) exprNode() {}

func (e In) String() string { return fmt.Sprintf("(%s in %s)", e.Elem.String(), e.Bag.String()) }

// Clause is one step of a comprehension: a generator binding Var over the
// bag-valued Source, or (when Var is empty) a filter condition.
type Clause struct {
	Var    string `json:"var,omitempty"`
	Source Expr   `json:"source,omitempty"`
	Cond   Expr   `json:"cond,omitempty"`
}

// Generator reports whether the clause binds a variable.
func (c Clause) Generator() bool { return c.Var != "" }

func (c Clause) String() string {
	if c.Generator() {
		return c.Var + " <- " + c.Source.String()
	}
	return c.Cond.String()
}

// Comprehension is the common core of quantifiers, bag-valued
// sub-expressions, and queries: a head expression evaluated once per
// binding of the generator clauses that passes every filter clause.
// Bindings are produced in the generator bags' insertion order.
type Comprehension struct {
	Head    Expr     `json:"head,omitempty"`
	Clauses []Clause `json:"clauses"`
}

func (c *Comprehension) String() string {
	parts := make([]string, len(c.Clauses))
	for i, cl := range c.Clauses {
		parts[i] = cl.String()
	}
	head := "_"
	if c.Head != nil {
		head = c.Head.String()
	}
	return "[" + head + " | " + strings.Join(parts, ", ") + "]"
}

// Exists is true iff at least one binding passes every filter clause.
// The head is ignored. Short-circuits on the first satisfying binding.
type Exists struct {
	Comp *Comprehension
}

func (Exists) exprNode() {}

func (e Exists) String() string { return "exists " + e.Comp.String() }

// All is true iff the head condition holds for every binding that passes
// the filter clauses; vacuously true when no binding does. Short-circuits
// on the first violation.
type All struct {
	Comp *Comprehension
}

func (All) exprNode() {}

func (e All) String() string { return "all " + e.Comp.String() }

// Unique asserts that the multiset of head values, one per binding, holds
// no duplicate. This is the primitive behind identity-uniqueness
// invariants.
type Unique struct {
	Comp *Comprehension
}

func (Unique) exprNode() {}

func (e Unique) String() string { return "unique " + e.Comp.String() }

// CompBag is a bag-valued comprehension: the multiset of head values.
// Query result rows use it for nested sub-sequences.
type CompBag struct {
	Comp *Comprehension
}

func (CompBag) exprNode() {}

func (e CompBag) String() string { return e.Comp.String() }

// TupleField is a named field of a Tuple result row.
type TupleField struct {
	Name string `json:"name"`
	X    Expr   `json:"x"`
}

// Tuple constructs an anonymous result record, used as the head of query
// comprehensions. Field order is declaration order.
type Tuple struct {
	Fields []TupleField
}

func (Tuple) exprNode() {}

func (e Tuple) String() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Name + ": " + f.X.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func joinExprs(xs []Expr, sep string) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = x.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

package ir

import (
	"fmt"
	"strings"
)

// Kind enumerates the type constructors of the value model.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt
	KindBool
	KindString
	KindRecord
	KindBag
)

// Type describes a scalar, record, or bag type. Record types are referenced
// by name and resolved against the schema's type declarations; bag types
// carry their element type.
type Type struct {
	Kind   Kind   `json:"kind"`
	Record string `json:"record,omitempty"` // record type name when KindRecord
	Elem   *Type  `json:"elem,omitempty"`   // element type when KindBag
}

// IntType returns the arbitrary-range integer type.
func IntType() Type { return Type{Kind: KindInt} }

// BoolType returns the boolean type.
func BoolType() Type { return Type{Kind: KindBool} }

// StringType returns the string type.
func StringType() Type { return Type{Kind: KindString} }

// RecordOf returns a reference to the named record type.
func RecordOf(name string) Type { return Type{Kind: KindRecord, Record: name} }

// BagOf returns the bag type with the given element type.
func BagOf(elem Type) Type { return Type{Kind: KindBag, Elem: &elem} }

// String renders the type in the compact form used by schema documents:
// "int", "bool", "string", a record type name, or "bag<T>".
func (t Type) String() string {
	switch t.Kind {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindRecord:
		return t.Record
	case KindBag:
		return "bag<" + t.Elem.String() + ">"
	default:
		return "invalid"
	}
}

// ParseType parses the compact type form produced by Type.String.
// Record names must not be one of the scalar keywords.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "int":
		return IntType(), nil
	case "bool":
		return BoolType(), nil
	case "string":
		return StringType(), nil
	case "":
		return Type{}, fmt.Errorf("empty type")
	}
	if strings.HasPrefix(s, "bag<") {
		if !strings.HasSuffix(s, ">") {
			return Type{}, fmt.Errorf("malformed bag type %q", s)
		}
		elem, err := ParseType(s[len("bag<") : len(s)-1])
		if err != nil {
			return Type{}, err
		}
		return BagOf(elem), nil
	}
	if strings.ContainsAny(s, "<>") {
		return Type{}, fmt.Errorf("malformed type %q", s)
	}
	return RecordOf(s), nil
}

// SameType reports whether two types are identical.
func SameType(a, b Type) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindRecord:
		return a.Record == b.Record
	case KindBag:
		return SameType(*a.Elem, *b.Elem)
	default:
		return true
	}
}

// Field is a named, typed field of a record type, in declaration order.
type Field struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// RecordType declares a named record type. Handle types carry an implicit
// unique identity in addition to their fields: two handle values are equal
// iff their identities are equal, regardless of field content. Plain record
// types are pure values with structural equality.
type RecordType struct {
	Name   string  `json:"name"`
	Handle bool    `json:"handle,omitempty"`
	Fields []Field `json:"fields"`
}

// FieldType returns the declared type of the named field.
func (rt *RecordType) FieldType(name string) (Type, bool) {
	for _, f := range rt.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return Type{}, false
}

// StateDecl declares a named top-level state variable holding a bag of Elem.
type StateDecl struct {
	Name string `json:"name"`
	Elem Type   `json:"elem"`
}

// Invariant is a closed boolean formula over state. Invariants must hold in
// the initial state and after every operation application; the verifier
// decides per operation whether they are preserved.
type Invariant struct {
	Name string `json:"name"`
	Body Expr   `json:"body"`
}

// Param is a formal parameter of an operation or query.
type Param struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// EffectKind discriminates bag insertions from removals.
type EffectKind string

const (
	EffectInsert EffectKind = "insert"
	EffectRemove EffectKind = "remove"
)

// Effect is a single bag mutation: insert or remove the value of Arg,
// evaluated in the operation's parameter environment, into/from the named
// state bag. An operation's effects apply in full or not at all.
type Effect struct {
	Kind  EffectKind `json:"kind"`
	State string     `json:"state"`
	Arg   Expr       `json:"arg"`
}

// Operation is a named, guarded state mutation. Assume is the precondition:
// it may reference parameters and state, and must hold at invocation time
// for the effects to apply.
type Operation struct {
	Name    string   `json:"name"`
	Params  []Param  `json:"params,omitempty"`
	Assume  Expr     `json:"assume"`
	Effects []Effect `json:"effects"`
}

// Query is a named, parameterized read-only comprehension over state.
// Rows follow the generator bags' insertion order; no other tie-break
// order is guaranteed.
type Query struct {
	Name   string         `json:"name"`
	Params []Param        `json:"params,omitempty"`
	Comp   *Comprehension `json:"comp"`
}

// Schema is the immutable definition a front end loads once: record types,
// state variables, invariants, queries, and operations, each in declaration
// order.
type Schema struct {
	Types      []RecordType `json:"types"`
	States     []StateDecl  `json:"states"`
	Invariants []Invariant  `json:"invariants,omitempty"`
	Queries    []Query      `json:"queries,omitempty"`
	Operations []Operation  `json:"operations,omitempty"`
}

// Type returns the named record type declaration.
func (s *Schema) Type(name string) (*RecordType, bool) {
	for i := range s.Types {
		if s.Types[i].Name == name {
			return &s.Types[i], true
		}
	}
	return nil, false
}

// State returns the named state declaration.
func (s *Schema) State(name string) (*StateDecl, bool) {
	for i := range s.States {
		if s.States[i].Name == name {
			return &s.States[i], true
		}
	}
	return nil, false
}

// Operation returns the named operation declaration.
func (s *Schema) Operation(name string) (*Operation, bool) {
	for i := range s.Operations {
		if s.Operations[i].Name == name {
			return &s.Operations[i], true
		}
	}
	return nil, false
}

// Query returns the named query declaration.
func (s *Schema) Query(name string) (*Query, bool) {
	for i := range s.Queries {
		if s.Queries[i].Name == name {
			return &s.Queries[i], true
		}
	}
	return nil, false
}

// Invariant returns the named invariant declaration.
func (s *Schema) Invariant(name string) (*Invariant, bool) {
	for i := range s.Invariants {
		if s.Invariants[i].Name == name {
			return &s.Invariants[i], true
		}
	}
	return nil, false
}

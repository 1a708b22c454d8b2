package ir

import (
	"fmt"
	"iter"
	"math/big"
)

// Value is a sealed interface over the runtime value model.
// Only Int, Bool, String, *Rec, and *Bag implement it.
// There is no float value - arithmetic is exact (CP: determinism).
type Value interface {
	valueNode() // Sealed - only these types implement it
}

// Int is an arbitrary-range exact integer.
type Int struct {
	v *big.Int
}

func (Int) valueNode() {}

// NewInt creates an Int from an int64.
func NewInt(n int64) Int { return Int{v: big.NewInt(n)} }

// NewBigInt creates an Int from a big.Int. The argument is copied, so the
// caller may keep mutating it.
func NewBigInt(n *big.Int) Int { return Int{v: new(big.Int).Set(n)} }

// ParseInt parses a decimal integer of arbitrary magnitude.
func ParseInt(s string) (Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Int{}, fmt.Errorf("malformed integer %q", s)
	}
	return Int{v: n}, nil
}

// Big returns a copy of the underlying big integer.
func (n Int) Big() *big.Int { return new(big.Int).Set(n.big()) }

// Cmp compares two Ints, returning -1, 0, or +1.
func (n Int) Cmp(o Int) int { return n.big().Cmp(o.big()) }

// String renders the integer in decimal.
func (n Int) String() string { return n.big().String() }

func (n Int) big() *big.Int {
	if n.v == nil {
		return big.NewInt(0) // zero value is usable as 0
	}
	return n.v
}

// Bool is a boolean value.
type Bool bool

func (Bool) valueNode() {}

// String is an immutable string value.
type String string

func (String) valueNode() {}

// Rec is a record value conforming to a RecordType. Handle-typed records
// additionally carry an opaque identity string; equality on them compares
// type name and identity only. Records are immutable after construction.
//
// The zero TypeName marks an anonymous record, used for query result rows.
type Rec struct {
	TypeName string
	Ident    string // non-empty iff handle-typed
	handle   bool
	names    []string // field order
	fields   map[string]Value
}

func (*Rec) valueNode() {}

// NewRec constructs a plain (structural-equality) record of the given type
// with the given fields, checked against the declaration.
func NewRec(rt *RecordType, fields map[string]Value) (*Rec, error) {
	r := &Rec{TypeName: rt.Name}
	if err := r.setFields(rt, fields); err != nil {
		return nil, err
	}
	return r, nil
}

// NewHandle constructs a handle-typed record with an explicit identity.
// The identity must be non-empty; minting fresh identities is the caller's
// concern (see the executor's token generators).
func NewHandle(rt *RecordType, ident string, fields map[string]Value) (*Rec, error) {
	if !rt.Handle {
		return nil, &TypeMismatchError{TypeName: rt.Name, Message: "not a handle type"}
	}
	if ident == "" {
		return nil, &TypeMismatchError{TypeName: rt.Name, Message: "empty handle identity"}
	}
	r := &Rec{TypeName: rt.Name, Ident: ident, handle: true}
	if err := r.setFields(rt, fields); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRow constructs an anonymous record, used for query result rows.
// Field order follows the names slice.
func NewRow(names []string, fields map[string]Value) *Rec {
	r := &Rec{names: append([]string(nil), names...), fields: make(map[string]Value, len(fields))}
	for k, v := range fields {
		r.fields[k] = v
	}
	return r
}

func (r *Rec) setFields(rt *RecordType, fields map[string]Value) error {
	if len(fields) != len(rt.Fields) {
		return &TypeMismatchError{TypeName: rt.Name,
			Message: fmt.Sprintf("got %d fields, type declares %d", len(fields), len(rt.Fields))}
	}
	r.names = make([]string, 0, len(rt.Fields))
	r.fields = make(map[string]Value, len(rt.Fields))
	for _, f := range rt.Fields {
		v, ok := fields[f.Name]
		if !ok {
			return &TypeMismatchError{TypeName: rt.Name, Field: f.Name, Message: "missing field"}
		}
		r.names = append(r.names, f.Name)
		r.fields[f.Name] = v
	}
	return nil
}

// Handle reports whether the record carries identity-based equality.
func (r *Rec) Handle() bool { return r.handle }

// Field returns the named field's value.
func (r *Rec) Field(name string) (Value, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// FieldNames returns the field names in declaration order.
func (r *Rec) FieldNames() []string { return append([]string(nil), r.names...) }

// Bag is an unordered multiset of values. Iteration follows insertion order
// so that evaluation and query results are reproducible; the order carries
// no semantic meaning.
type Bag struct {
	elems []Value
}

func (*Bag) valueNode() {}

// NewBag creates a bag holding the given elements in order.
func NewBag(elems ...Value) *Bag {
	return &Bag{elems: append([]Value(nil), elems...)}
}

// Len returns the bag's cardinality (duplicates counted).
func (b *Bag) Len() int { return len(b.elems) }

// Values returns a restartable sequence over the elements in insertion order.
func (b *Bag) Values() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for _, v := range b.elems {
			if !yield(v) {
				return
			}
		}
	}
}

// Insert appends one occurrence of v.
func (b *Bag) Insert(v Value) { b.elems = append(b.elems, v) }

// Remove removes one occurrence equal to v, reporting whether one was found.
// Removing an absent element is a no-op, per multiset difference semantics.
func (b *Bag) Remove(v Value) bool {
	for i, e := range b.elems {
		if Equal(e, v) {
			b.elems = append(b.elems[:i], b.elems[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether some occurrence equals v.
func (b *Bag) Contains(v Value) bool {
	for _, e := range b.elems {
		if Equal(e, v) {
			return true
		}
	}
	return false
}

// Clone returns a bag with a fresh element slice. Elements are shared:
// values are immutable, so a shallow copy is a faithful snapshot.
func (b *Bag) Clone() *Bag {
	return &Bag{elems: append([]Value(nil), b.elems...)}
}

// Equal compares two values. Handle-typed records compare by type name and
// identity; everything else compares structurally. Bags compare as
// multisets: equal iff each element occurs the same number of times, in any
// order.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Int:
		bv, ok := b.(Int)
		return ok && av.Cmp(bv) == 0
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case *Rec:
		bv, ok := b.(*Rec)
		if !ok || av.TypeName != bv.TypeName {
			return false
		}
		if av.handle || bv.handle {
			return av.handle && bv.handle && av.Ident == bv.Ident
		}
		if len(av.names) != len(bv.names) {
			return false
		}
		for _, name := range av.names {
			bf, ok := bv.fields[name]
			if !ok || !Equal(av.fields[name], bf) {
				return false
			}
		}
		return true
	case *Bag:
		bv, ok := b.(*Bag)
		if !ok || len(av.elems) != len(bv.elems) {
			return false
		}
		// Multiset equality via canonical fingerprint counts.
		counts := make(map[string]int, len(av.elems))
		for _, e := range av.elems {
			counts[mustFingerprint(e)]++
		}
		for _, e := range bv.elems {
			k := mustFingerprint(e)
			counts[k]--
			if counts[k] < 0 {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// TypeOf returns the value's type. Record values report a reference to
// their declared type; anonymous rows report an invalid type.
func TypeOf(v Value) Type {
	switch vv := v.(type) {
	case Int:
		return IntType()
	case Bool:
		return BoolType()
	case String:
		return StringType()
	case *Rec:
		if vv.TypeName == "" {
			return Type{}
		}
		return RecordOf(vv.TypeName)
	case *Bag:
		// Element type is not tracked on the container; conformance checks
		// inspect the elements instead.
		return Type{Kind: KindBag}
	default:
		return Type{}
	}
}

// CheckValue verifies that v structurally conforms to the declared type t.
// Bags are checked element-wise. Returns a TypeMismatchError describing the
// first mismatch.
func CheckValue(s *Schema, v Value, t Type) error {
	switch t.Kind {
	case KindInt:
		if _, ok := v.(Int); !ok {
			return &TypeMismatchError{Message: fmt.Sprintf("expected int, got %T", v)}
		}
	case KindBool:
		if _, ok := v.(Bool); !ok {
			return &TypeMismatchError{Message: fmt.Sprintf("expected bool, got %T", v)}
		}
	case KindString:
		if _, ok := v.(String); !ok {
			return &TypeMismatchError{Message: fmt.Sprintf("expected string, got %T", v)}
		}
	case KindRecord:
		r, ok := v.(*Rec)
		if !ok {
			return &TypeMismatchError{TypeName: t.Record, Message: fmt.Sprintf("expected record, got %T", v)}
		}
		if r.TypeName != t.Record {
			return &TypeMismatchError{TypeName: t.Record,
				Message: fmt.Sprintf("expected %s, got %s", t.Record, r.TypeName)}
		}
		rt, ok := s.Type(t.Record)
		if !ok {
			return &TypeMismatchError{TypeName: t.Record, Message: "undeclared record type"}
		}
		if rt.Handle != r.handle {
			return &TypeMismatchError{TypeName: t.Record, Message: "handle flavor mismatch"}
		}
		for _, f := range rt.Fields {
			fv, ok := r.fields[f.Name]
			if !ok {
				return &TypeMismatchError{TypeName: t.Record, Field: f.Name, Message: "missing field"}
			}
			if err := CheckValue(s, fv, f.Type); err != nil {
				return &TypeMismatchError{TypeName: t.Record, Field: f.Name, Message: err.Error()}
			}
		}
	case KindBag:
		b, ok := v.(*Bag)
		if !ok {
			return &TypeMismatchError{Message: fmt.Sprintf("expected bag, got %T", v)}
		}
		for e := range b.Values() {
			if err := CheckValue(s, e, *t.Elem); err != nil {
				return err
			}
		}
	default:
		return &TypeMismatchError{Message: "invalid declared type"}
	}
	return nil
}

// ZeroValue returns the canonical initial value of a type: 0, false, "",
// an empty bag, or a record with zero-valued fields. Handle-typed records
// have no zero value (identities must be minted) and return an error.
func ZeroValue(s *Schema, t Type) (Value, error) {
	switch t.Kind {
	case KindInt:
		return NewInt(0), nil
	case KindBool:
		return Bool(false), nil
	case KindString:
		return String(""), nil
	case KindBag:
		return NewBag(), nil
	case KindRecord:
		rt, ok := s.Type(t.Record)
		if !ok {
			return nil, &TypeMismatchError{TypeName: t.Record, Message: "undeclared record type"}
		}
		if rt.Handle {
			return nil, &TypeMismatchError{TypeName: t.Record, Message: "handle types have no zero value"}
		}
		fields := make(map[string]Value, len(rt.Fields))
		for _, f := range rt.Fields {
			fv, err := ZeroValue(s, f.Type)
			if err != nil {
				return nil, err
			}
			fields[f.Name] = fv
		}
		return NewRec(rt, fields)
	default:
		return nil, &TypeMismatchError{Message: "invalid declared type"}
	}
}

// Package loader reads schema documents and produces validated schemas.
//
// A schema document is CUE data: record types, state declarations,
// invariants, operations, and queries, with expressions as structured
// trees discriminated by a "kind" field. Documents are unified with the
// embedded #Schema definition before decoding, so shape errors surface as
// CUE errors with positions rather than as partial schemas.
package loader

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/relcheck/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// LoadError is a document-level loading failure.
type LoadError struct {
	// Path locates the failing value inside the document, when known.
	Path string

	// Message is a human-readable description.
	Message string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("load %s: %s", e.Path, e.Message)
	}
	return "load: " + e.Message
}

// LoadFile reads and decodes a schema document from disk.
func LoadFile(path string) (*ir.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Message: err.Error()}
	}
	return LoadBytes(path, data)
}

// LoadBytes decodes a schema document. The returned schema has passed both
// the CUE definition and ir.Schema.Validate.
func LoadBytes(filename string, data []byte) (*ir.Schema, error) {
	ctx := cuecontext.New()

	def := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := def.Err(); err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("embedded definition: %v", err)}
	}

	doc := ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, &LoadError{Message: err.Error()}
	}

	unified := doc.Unify(def.LookupPath(cue.ParsePath("#Schema")))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Message: err.Error()}
	}

	s, err := decodeSchema(unified)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeSchema(v cue.Value) (*ir.Schema, error) {
	s := &ir.Schema{}

	if err := eachListItem(v, "types", func(item cue.Value) error {
		rt, err := decodeRecordType(item)
		if err != nil {
			return err
		}
		s.Types = append(s.Types, rt)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := eachListItem(v, "states", func(item cue.Value) error {
		name, err := stringField(item, "name")
		if err != nil {
			return err
		}
		elem, err := typeField(item, "elem")
		if err != nil {
			return err
		}
		s.States = append(s.States, ir.StateDecl{Name: name, Elem: elem})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := eachListItem(v, "invariants", func(item cue.Value) error {
		name, err := stringField(item, "name")
		if err != nil {
			return err
		}
		body, err := decodeExpr(item.LookupPath(cue.ParsePath("body")))
		if err != nil {
			return err
		}
		s.Invariants = append(s.Invariants, ir.Invariant{Name: name, Body: body})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := eachListItem(v, "operations", func(item cue.Value) error {
		op, err := decodeOperation(item)
		if err != nil {
			return err
		}
		s.Operations = append(s.Operations, op)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := eachListItem(v, "queries", func(item cue.Value) error {
		q, err := decodeQuery(item)
		if err != nil {
			return err
		}
		s.Queries = append(s.Queries, q)
		return nil
	}); err != nil {
		return nil, err
	}

	return s, nil
}

func decodeRecordType(v cue.Value) (ir.RecordType, error) {
	rt := ir.RecordType{}
	var err error
	if rt.Name, err = stringField(v, "name"); err != nil {
		return rt, err
	}
	handle := v.LookupPath(cue.ParsePath("handle"))
	if handle.Exists() {
		b, err := handle.Bool()
		if err != nil {
			return rt, loadErr(handle, err)
		}
		rt.Handle = b
	}
	err = eachListItem(v, "fields", func(item cue.Value) error {
		name, err := stringField(item, "name")
		if err != nil {
			return err
		}
		t, err := typeField(item, "type")
		if err != nil {
			return err
		}
		rt.Fields = append(rt.Fields, ir.Field{Name: name, Type: t})
		return nil
	})
	return rt, err
}

func decodeParams(v cue.Value) ([]ir.Param, error) {
	var params []ir.Param
	err := eachListItem(v, "params", func(item cue.Value) error {
		name, err := stringField(item, "name")
		if err != nil {
			return err
		}
		t, err := typeField(item, "type")
		if err != nil {
			return err
		}
		params = append(params, ir.Param{Name: name, Type: t})
		return nil
	})
	return params, err
}

func decodeOperation(v cue.Value) (ir.Operation, error) {
	op := ir.Operation{}
	var err error
	if op.Name, err = stringField(v, "name"); err != nil {
		return op, err
	}
	if op.Params, err = decodeParams(v); err != nil {
		return op, err
	}
	if op.Assume, err = decodeExpr(v.LookupPath(cue.ParsePath("assume"))); err != nil {
		return op, err
	}
	err = eachListItem(v, "effects", func(item cue.Value) error {
		kind, err := stringField(item, "kind")
		if err != nil {
			return err
		}
		st, err := stringField(item, "state")
		if err != nil {
			return err
		}
		arg, err := decodeExpr(item.LookupPath(cue.ParsePath("arg")))
		if err != nil {
			return err
		}
		op.Effects = append(op.Effects, ir.Effect{Kind: ir.EffectKind(kind), State: st, Arg: arg})
		return nil
	})
	return op, err
}

func decodeQuery(v cue.Value) (ir.Query, error) {
	q := ir.Query{}
	var err error
	if q.Name, err = stringField(v, "name"); err != nil {
		return q, err
	}
	if q.Params, err = decodeParams(v); err != nil {
		return q, err
	}
	head, err := decodeExpr(v.LookupPath(cue.ParsePath("head")))
	if err != nil {
		return q, err
	}
	clauses, err := decodeClauses(v.LookupPath(cue.ParsePath("clauses")))
	if err != nil {
		return q, err
	}
	q.Comp = &ir.Comprehension{Head: head, Clauses: clauses}
	return q, nil
}

// decodeExpr turns an expression tree node into an ir.Expr, dispatching on
// the "kind" discriminator.
func decodeExpr(v cue.Value) (ir.Expr, error) {
	if !v.Exists() {
		return nil, &LoadError{Path: v.Path().String(), Message: "missing expression"}
	}
	kind, err := stringField(v, "kind")
	if err != nil {
		return nil, err
	}

	switch kind {
	case "lit":
		return decodeLit(v)
	case "ref":
		name, err := stringField(v, "name")
		if err != nil {
			return nil, err
		}
		return ir.Ref{Name: name}, nil
	case "state":
		name, err := stringField(v, "name")
		if err != nil {
			return nil, err
		}
		return ir.StateRef{Name: name}, nil
	case "proj":
		of, err := decodeExpr(v.LookupPath(cue.ParsePath("of")))
		if err != nil {
			return nil, err
		}
		field, err := stringField(v, "field")
		if err != nil {
			return nil, err
		}
		return ir.Proj{X: of, Name: field}, nil
	case "cmp":
		op, err := stringField(v, "op")
		if err != nil {
			return nil, err
		}
		l, err := decodeExpr(v.LookupPath(cue.ParsePath("left")))
		if err != nil {
			return nil, err
		}
		r, err := decodeExpr(v.LookupPath(cue.ParsePath("right")))
		if err != nil {
			return nil, err
		}
		return ir.Cmp{Op: ir.CmpOp(op), L: l, R: r}, nil
	case "not":
		of, err := decodeExpr(v.LookupPath(cue.ParsePath("of")))
		if err != nil {
			return nil, err
		}
		return ir.Not{X: of}, nil
	case "and", "or":
		var xs []ir.Expr
		if err := eachListItem(v, "of", func(item cue.Value) error {
			x, err := decodeExpr(item)
			if err != nil {
				return err
			}
			xs = append(xs, x)
			return nil
		}); err != nil {
			return nil, err
		}
		if kind == "and" {
			return ir.And{Xs: xs}, nil
		}
		return ir.Or{Xs: xs}, nil
	case "in":
		elem, err := decodeExpr(v.LookupPath(cue.ParsePath("elem")))
		if err != nil {
			return nil, err
		}
		bag, err := decodeExpr(v.LookupPath(cue.ParsePath("bag")))
		if err != nil {
			return nil, err
		}
		return ir.In{Elem: elem, Bag: bag}, nil
	case "exists":
		clauses, err := decodeClauses(v.LookupPath(cue.ParsePath("clauses")))
		if err != nil {
			return nil, err
		}
		return ir.Exists{Comp: &ir.Comprehension{Clauses: clauses}}, nil
	case "all", "unique", "compBag":
		head, err := decodeExpr(v.LookupPath(cue.ParsePath("head")))
		if err != nil {
			return nil, err
		}
		clauses, err := decodeClauses(v.LookupPath(cue.ParsePath("clauses")))
		if err != nil {
			return nil, err
		}
		comp := &ir.Comprehension{Head: head, Clauses: clauses}
		switch kind {
		case "all":
			return ir.All{Comp: comp}, nil
		case "unique":
			return ir.Unique{Comp: comp}, nil
		default:
			return ir.CompBag{Comp: comp}, nil
		}
	case "tuple":
		var fields []ir.TupleField
		if err := eachListItem(v, "fields", func(item cue.Value) error {
			name, err := stringField(item, "name")
			if err != nil {
				return err
			}
			of, err := decodeExpr(item.LookupPath(cue.ParsePath("of")))
			if err != nil {
				return err
			}
			fields = append(fields, ir.TupleField{Name: name, X: of})
			return nil
		}); err != nil {
			return nil, err
		}
		return ir.Tuple{Fields: fields}, nil
	default:
		return nil, &LoadError{Path: v.Path().String(), Message: fmt.Sprintf("unknown expression kind %q", kind)}
	}
}

func decodeLit(v cue.Value) (ir.Expr, error) {
	typ, err := stringField(v, "type")
	if err != nil {
		return nil, err
	}
	val := v.LookupPath(cue.ParsePath("value"))
	switch typ {
	case "int":
		n, err := val.Int(nil)
		if err != nil {
			return nil, loadErr(val, err)
		}
		return ir.Lit{Value: ir.NewBigInt(n)}, nil
	case "bool":
		b, err := val.Bool()
		if err != nil {
			return nil, loadErr(val, err)
		}
		return ir.NewBoolLit(b), nil
	case "string":
		s, err := val.String()
		if err != nil {
			return nil, loadErr(val, err)
		}
		return ir.NewStringLit(s), nil
	case "emptyBag":
		return ir.EmptyBagLit(), nil
	default:
		return nil, &LoadError{Path: v.Path().String(), Message: fmt.Sprintf("unknown literal type %q", typ)}
	}
}

func decodeClauses(v cue.Value) ([]ir.Clause, error) {
	var clauses []ir.Clause
	iter, err := v.List()
	if err != nil {
		return nil, loadErr(v, err)
	}
	for iter.Next() {
		item := iter.Value()
		if gen := item.LookupPath(cue.ParsePath("var")); gen.Exists() {
			name, err := gen.String()
			if err != nil {
				return nil, loadErr(gen, err)
			}
			src, err := decodeExpr(item.LookupPath(cue.ParsePath("source")))
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, ir.Clause{Var: name, Source: src})
			continue
		}
		cond, err := decodeExpr(item.LookupPath(cue.ParsePath("cond")))
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, ir.Clause{Cond: cond})
	}
	return clauses, nil
}

func eachListItem(v cue.Value, field string, fn func(cue.Value) error) error {
	list := v.LookupPath(cue.ParsePath(field))
	if !list.Exists() {
		return nil
	}
	iter, err := list.List()
	if err != nil {
		return loadErr(list, err)
	}
	for iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func stringField(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &LoadError{Path: v.Path().String(), Message: "missing " + field}
	}
	s, err := fv.String()
	if err != nil {
		return "", loadErr(fv, err)
	}
	return s, nil
}

func typeField(v cue.Value, field string) (ir.Type, error) {
	s, err := stringField(v, field)
	if err != nil {
		return ir.Type{}, err
	}
	t, err := ir.ParseType(s)
	if err != nil {
		return ir.Type{}, &LoadError{Path: v.Path().String(), Message: err.Error()}
	}
	return t, nil
}

func loadErr(v cue.Value, err error) *LoadError {
	return &LoadError{Path: v.Path().String(), Message: err.Error()}
}

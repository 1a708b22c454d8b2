package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"slices"
	"sort"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// Reserved keys in the canonical record encoding. Schema validation rejects
// field names starting with '$' so these never collide with user fields.
const (
	keyType  = "$type"
	keyIdent = "$id"
)

// MarshalCanonical produces RFC 8785 canonical JSON for a value. This is
// the ONLY serialization used for journal records, fingerprints, and golden
// comparisons.
//
// Key differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. Integers print as exact decimal digits at any magnitude
//
// Records encode as objects with a reserved "$type" key (and "$id" for
// handles); anonymous rows omit "$type". Bags encode as arrays in insertion
// order.
func MarshalCanonical(v Value) ([]byte, error) {
	return marshalValue(v, false)
}

// Fingerprint produces the canonical bytes of the equality-relevant content
// of a value: handle-typed records reduce to their type and identity, and
// bags sort their element encodings so that any insertion order of the same
// multiset fingerprints identically. Two values are Equal iff their
// fingerprints match.
func Fingerprint(v Value) ([]byte, error) {
	return marshalValue(v, true)
}

// mustFingerprint is the internal form used by Equal, where values are
// already known well-formed.
func mustFingerprint(v Value) string {
	b, err := Fingerprint(v)
	if err != nil {
		// Only reachable for values outside the sealed set.
		panic(fmt.Sprintf("fingerprint: %v", err))
	}
	return string(b)
}

func marshalValue(v Value, identityOnly bool) ([]byte, error) {
	switch val := v.(type) {
	case Int:
		return []byte(val.String()), nil
	case Bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case String:
		return marshalCanonicalString(string(val))
	case *Rec:
		return marshalRec(val, identityOnly)
	case *Bag:
		return marshalBag(val, identityOnly)
	case nil:
		return nil, fmt.Errorf("nil value is forbidden in canonical JSON")
	default:
		return nil, fmt.Errorf("unsupported value type for canonical JSON: %T", v)
	}
}

func marshalRec(r *Rec, identityOnly bool) ([]byte, error) {
	fields := make(map[string][]byte, len(r.fields)+2)
	if r.TypeName != "" {
		enc, err := marshalCanonicalString(r.TypeName)
		if err != nil {
			return nil, err
		}
		fields[keyType] = enc
	}
	if r.handle {
		enc, err := marshalCanonicalString(r.Ident)
		if err != nil {
			return nil, err
		}
		fields[keyIdent] = enc
	}
	// Handle equality is by identity alone; fingerprints drop field content.
	if !r.handle || !identityOnly {
		for name, fv := range r.fields {
			enc, err := marshalValue(fv, identityOnly)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			fields[name] = enc
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kenc, err := marshalCanonicalString(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kenc)
		buf.WriteByte(':')
		buf.Write(fields[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalBag(b *Bag, identityOnly bool) ([]byte, error) {
	elems := make([][]byte, 0, len(b.elems))
	for _, e := range b.elems {
		enc, err := marshalValue(e, identityOnly)
		if err != nil {
			return nil, err
		}
		elems = append(elems, enc)
	}
	// Fingerprints are order-insensitive: sort element encodings so any
	// insertion order of the same multiset produces identical bytes.
	if identityOnly {
		sort.Slice(elems, func(i, j int) bool { return bytes.Compare(elems[i], elems[j]) < 0 })
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(e)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// marshalCanonicalString produces a canonical JSON string with NFC
// normalization. RFC 8785 compliance:
//   - No HTML escaping (<, >, & are NOT escaped)
//   - U+2028 and U+2029 are NOT escaped
//   - Only control characters (U+0000-U+001F), backslash, and quote are escaped
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}

	// Go's json.Encoder escapes U+2028/U+2029 for JavaScript compatibility,
	// which violates RFC 8785. Unescape them, preserving \\u202x sequences
	// that encode a literal backslash followed by text.
	result = unescapeU2028U2029(result)

	return result, nil
}

// unescapeU2028U2029 converts   and   escape sequences to literal
// characters per RFC 8785, preserving sequences preceded by an odd number of
// backslashes (which encode literal text, not the separator characters).
func unescapeU2028U2029(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	var result []byte
	i := 0
	for i < len(data) {
		if i+6 <= len(data) && data[i] == '\\' && data[i+1] == 'u' &&
			data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			backslashes := 0
			if result == nil {
				for j := i - 1; j >= 0 && data[j] == '\\'; j-- {
					backslashes++
				}
			} else {
				for j := len(result) - 1; j >= 0 && result[j] == '\\'; j-- {
					backslashes++
				}
			}
			if backslashes%2 == 0 {
				if result == nil {
					result = make([]byte, 0, len(data))
					result = append(result, data[:i]...)
				}
				if data[i+5] == '8' {
					result = append(result, " "...)
				} else {
					result = append(result, " "...)
				}
				i += 6
				continue
			}
		}
		if result != nil {
			result = append(result, data[i])
		}
		i++
	}

	if result == nil {
		return data
	}
	return result
}

// compareKeysRFC8785 compares strings by UTF-16 code units as required by
// RFC 8785 canonical JSON. Go's native string comparison uses UTF-8 bytes,
// which orders some non-BMP characters differently.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// UnmarshalValue decodes canonical JSON back into a value of the declared
// type. This is the inverse of MarshalCanonical for well-typed values and
// is used by journal replay.
func UnmarshalValue(s *Schema, data []byte, t Type) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return FromWire(s, raw, t)
}

// FromWire converts a decoded JSON document (json.Number / bool / string /
// []any / map[string]any) into a value of the declared type. Shared by
// journal replay and the scenario harness.
func FromWire(s *Schema, raw any, t Type) (Value, error) {
	switch t.Kind {
	case KindInt:
		switch n := raw.(type) {
		case json.Number:
			return ParseInt(n.String())
		case int:
			return NewInt(int64(n)), nil
		case int64:
			return NewInt(n), nil
		case *big.Int:
			return NewBigInt(n), nil
		}
		return nil, fmt.Errorf("expected integer, got %T", raw)
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", raw)
		}
		return Bool(b), nil
	case KindString:
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		return String(str), nil
	case KindBag:
		list, ok := raw.([]any)
		if !ok {
			if raw == nil {
				return NewBag(), nil
			}
			return nil, fmt.Errorf("expected array for bag, got %T", raw)
		}
		bag := NewBag()
		for i, e := range list {
			ev, err := FromWire(s, e, *t.Elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			bag.Insert(ev)
		}
		return bag, nil
	case KindRecord:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object for %s, got %T", t.Record, raw)
		}
		rt, ok := s.Type(t.Record)
		if !ok {
			return nil, fmt.Errorf("undeclared record type %s", t.Record)
		}
		fields := make(map[string]Value, len(rt.Fields))
		for _, f := range rt.Fields {
			fraw, ok := obj[f.Name]
			if !ok {
				return nil, fmt.Errorf("%s: missing field %q", t.Record, f.Name)
			}
			fv, err := FromWire(s, fraw, f.Type)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", t.Record, f.Name, err)
			}
			fields[f.Name] = fv
		}
		if rt.Handle {
			ident, _ := obj[keyIdent].(string)
			return NewHandle(rt, ident, fields)
		}
		return NewRec(rt, fields)
	default:
		return nil, fmt.Errorf("invalid declared type")
	}
}

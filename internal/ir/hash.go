package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content-addressed identity. Version suffix enables
// future algorithm migration.
const (
	DomainApplied = "relcheck/applied/v1"
	DomainValue   = "relcheck/value/v1"
	DomainSchema  = "relcheck/schema/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ValueHash computes the content-addressed hash of a value's fingerprint.
// Equal values hash identically; handle values hash by identity.
func ValueHash(v Value) (string, error) {
	fp, err := Fingerprint(v)
	if err != nil {
		return "", fmt.Errorf("ValueHash: %w", err)
	}
	return hashWithDomain(DomainValue, fp), nil
}

// AppliedID computes the content-addressed ID of an applied-operation
// journal record. The ID is stable across restarts and replays given the
// same operation, arguments, and position in the log.
func AppliedID(op string, params []Value, seq int64) (string, error) {
	enc, err := marshalAppliedBody(op, params, seq)
	if err != nil {
		return "", fmt.Errorf("AppliedID: %w", err)
	}
	return hashWithDomain(DomainApplied, enc), nil
}

func marshalAppliedBody(op string, params []Value, seq int64) ([]byte, error) {
	body := []byte{'{'}
	opEnc, err := marshalCanonicalString(op)
	if err != nil {
		return nil, err
	}
	body = append(body, `"op":`...)
	body = append(body, opEnc...)
	body = append(body, `,"params":[`...)
	for i, p := range params {
		if i > 0 {
			body = append(body, ',')
		}
		penc, err := MarshalCanonical(p)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		body = append(body, penc...)
	}
	body = append(body, fmt.Sprintf(`],"seq":%d}`, seq)...)
	return body, nil
}

// MarshalParams encodes a parameter list as a canonical JSON array, the
// form stored in the journal.
func MarshalParams(params []Value) ([]byte, error) {
	out := []byte{'['}
	for i, p := range params {
		if i > 0 {
			out = append(out, ',')
		}
		enc, err := MarshalCanonical(p)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		out = append(out, enc...)
	}
	return append(out, ']'), nil
}

// UnmarshalParams decodes a journaled parameter array against the declared
// parameter list. The inverse of MarshalParams.
func UnmarshalParams(s *Schema, target string, decls []Param, data []byte) ([]Value, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("params of %s: %w", target, err)
	}
	if len(raws) != len(decls) {
		return nil, &ParameterError{Target: target, Index: -1,
			Message: fmt.Sprintf("got %d parameters, declaration has %d", len(raws), len(decls))}
	}
	out := make([]Value, len(raws))
	for i, raw := range raws {
		v, err := UnmarshalValue(s, raw, decls[i].Type)
		if err != nil {
			return nil, &ParameterError{Target: target, Index: i,
				Message: fmt.Sprintf("%s: %v", decls[i].Name, err)}
		}
		out[i] = v
	}
	return out, nil
}

// SchemaHash computes a hash of a schema's rendered declarations, used to
// detect schema drift between a journal and the schema replaying it.
func SchemaHash(s *Schema) string {
	var buf []byte
	for _, rt := range s.Types {
		buf = append(buf, rt.Name...)
		if rt.Handle {
			buf = append(buf, '!')
		}
		for _, f := range rt.Fields {
			buf = append(buf, ';')
			buf = append(buf, f.Name...)
			buf = append(buf, ':')
			buf = append(buf, f.Type.String()...)
		}
		buf = append(buf, '\n')
	}
	for _, st := range s.States {
		buf = append(buf, st.Name...)
		buf = append(buf, ':')
		buf = append(buf, st.Elem.String()...)
		buf = append(buf, '\n')
	}
	for _, inv := range s.Invariants {
		buf = append(buf, inv.Name...)
		buf = append(buf, '=')
		buf = append(buf, inv.Body.String()...)
		buf = append(buf, '\n')
	}
	for _, op := range s.Operations {
		buf = append(buf, op.Name...)
		for _, p := range op.Params {
			buf = append(buf, ',')
			buf = append(buf, p.Name...)
			buf = append(buf, ':')
			buf = append(buf, p.Type.String()...)
		}
		buf = append(buf, '|')
		buf = append(buf, op.Assume.String()...)
		for _, ef := range op.Effects {
			buf = append(buf, '|')
			buf = append(buf, string(ef.Kind)...)
			buf = append(buf, ' ')
			buf = append(buf, ef.State...)
			buf = append(buf, ' ')
			buf = append(buf, ef.Arg.String()...)
		}
		buf = append(buf, '\n')
	}
	return hashWithDomain(DomainSchema, buf)
}

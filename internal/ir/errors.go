package ir

import (
	"errors"
	"fmt"
)

// TypeMismatchError reports a value that does not structurally match its
// declared type, or an access to a field the type does not declare. It
// indicates a loader or front-end bug and is not recoverable by the core.
type TypeMismatchError struct {
	TypeName string
	Field    string
	Message  string
}

func (e *TypeMismatchError) Error() string {
	switch {
	case e.TypeName != "" && e.Field != "":
		return fmt.Sprintf("type mismatch: %s.%s: %s", e.TypeName, e.Field, e.Message)
	case e.TypeName != "":
		return fmt.Sprintf("type mismatch: %s: %s", e.TypeName, e.Message)
	default:
		return "type mismatch: " + e.Message
	}
}

// IsTypeMismatch reports whether err is (or wraps) a TypeMismatchError.
func IsTypeMismatch(err error) bool {
	var te *TypeMismatchError
	return errors.As(err, &te)
}

// ParameterError reports an arity or type mismatch in a query or operation
// invocation. It is surfaced before any evaluation begins and is
// recoverable: the caller may retry with corrected input.
type ParameterError struct {
	Target  string // operation or query name
	Index   int    // parameter position, -1 for arity errors
	Message string
}

func (e *ParameterError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("parameter error: %s: param %d: %s", e.Target, e.Index, e.Message)
	}
	return fmt.Sprintf("parameter error: %s: %s", e.Target, e.Message)
}

// IsParameterError reports whether err is (or wraps) a ParameterError.
func IsParameterError(err error) bool {
	var pe *ParameterError
	return errors.As(err, &pe)
}

// BindParams checks an argument list against a declared parameter list and
// returns the bound environment. Arity is checked before types; the first
// mismatch wins.
func BindParams(s *Schema, target string, decls []Param, args []Value) (map[string]Value, error) {
	if len(args) != len(decls) {
		return nil, &ParameterError{Target: target, Index: -1,
			Message: fmt.Sprintf("got %d arguments, want %d", len(args), len(decls))}
	}
	bound := make(map[string]Value, len(decls))
	for i, p := range decls {
		if err := CheckValue(s, args[i], p.Type); err != nil {
			return nil, &ParameterError{Target: target, Index: i,
				Message: fmt.Sprintf("%s: %v", p.Name, err)}
		}
		bound[p.Name] = args[i]
	}
	return bound, nil
}

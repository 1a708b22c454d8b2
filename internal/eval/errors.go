package eval

import (
	"errors"
	"fmt"
)

// EvaluationError reports an ill-typed expression evaluation. It is
// surfaced to the caller; evaluation never partially mutates state, so no
// cleanup is required.
type EvaluationError struct {
	// Code identifies the error category.
	Code EvalErrorCode

	// Expr is the rendering of the offending expression.
	Expr string

	// Message is a human-readable description.
	Message string
}

// EvalErrorCode categorizes evaluation errors.
type EvalErrorCode string

const (
	// ErrCodeUnboundName indicates a reference to a name with no binding.
	ErrCodeUnboundName EvalErrorCode = "UNBOUND_NAME"

	// ErrCodeUnknownState indicates a state reference with no declared bag.
	ErrCodeUnknownState EvalErrorCode = "UNKNOWN_STATE"

	// ErrCodeNotABag indicates a generator or membership test over a
	// non-bag value.
	ErrCodeNotABag EvalErrorCode = "NOT_A_BAG"

	// ErrCodeNotARecord indicates field projection on a non-record value.
	ErrCodeNotARecord EvalErrorCode = "NOT_A_RECORD"

	// ErrCodeNoSuchField indicates projection of a field the record's type
	// does not declare.
	ErrCodeNoSuchField EvalErrorCode = "NO_SUCH_FIELD"

	// ErrCodeTypeError indicates an operand of the wrong type, such as a
	// non-boolean connective operand or an ordering comparison on
	// non-integers.
	ErrCodeTypeError EvalErrorCode = "TYPE_ERROR"
)

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	if e.Expr != "" {
		return fmt.Sprintf("%s: %s in %s", e.Code, e.Message, e.Expr)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsEvaluationError reports whether err is (or wraps) an EvaluationError.
func IsEvaluationError(err error) bool {
	var ee *EvaluationError
	return errors.As(err, &ee)
}

func errf(code EvalErrorCode, expr string, format string, args ...any) *EvaluationError {
	return &EvaluationError{Code: code, Expr: expr, Message: fmt.Sprintf(format, args...)}
}

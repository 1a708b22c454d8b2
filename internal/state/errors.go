package state

import (
	"errors"
	"fmt"
)

// ExecutionError is a refused or failed operation application. The state
// is unchanged whenever one is returned.
type ExecutionError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Op is the operation name.
	Op string

	// Token is the transaction token, when one was minted before the
	// failure.
	Token string

	// Invariant names the violated invariant for runtime violations.
	Invariant string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes execution errors.
type ErrorCode string

const (
	// ErrCodeUnknownOperation: the schema declares no such operation.
	ErrCodeUnknownOperation ErrorCode = "UNKNOWN_OPERATION"

	// ErrCodeParameter: argument arity or type mismatch.
	ErrCodeParameter ErrorCode = "PARAMETER_ERROR"

	// ErrCodePrecondition: the operation's assume evaluated to false.
	ErrCodePrecondition ErrorCode = "PRECONDITION_VIOLATION"

	// ErrCodeInvariantRuntime: an invariant the verifier left
	// inconclusive failed on the post-state; the application rolled back.
	ErrCodeInvariantRuntime ErrorCode = "INVARIANT_VIOLATED_AT_RUNTIME"

	// ErrCodeEval: expression evaluation failed.
	ErrCodeEval ErrorCode = "EVAL_ERROR"

	// ErrCodeJournal: the journal append failed; the application was not
	// committed.
	ErrCodeJournal ErrorCode = "JOURNAL_ERROR"
)

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	switch {
	case e.Invariant != "":
		return fmt.Sprintf("%s: %s: %s (invariant=%s)", e.Code, e.Op, e.Message, e.Invariant)
	case e.Op != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *ExecutionError) Unwrap() error { return e.Err }

func codeIs(err error, code ErrorCode) bool {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// IsUnknownOperation reports an UNKNOWN_OPERATION error.
func IsUnknownOperation(err error) bool { return codeIs(err, ErrCodeUnknownOperation) }

// IsPreconditionViolation reports a PRECONDITION_VIOLATION error.
func IsPreconditionViolation(err error) bool { return codeIs(err, ErrCodePrecondition) }

// IsInvariantViolation reports an INVARIANT_VIOLATED_AT_RUNTIME error.
func IsInvariantViolation(err error) bool { return codeIs(err, ErrCodeInvariantRuntime) }

// IsJournalError reports a JOURNAL_ERROR error.
func IsJournalError(err error) bool { return codeIs(err, ErrCodeJournal) }

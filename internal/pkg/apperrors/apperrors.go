package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure for callers and the HTTP layer.
type Kind string

const (
	KindValidation Kind = "validation"
	KindForbidden  Kind = "forbidden"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindInternal   Kind = "internal_server_error"
)

// Reason codes carried alongside FORBIDDEN errors so clients can
// distinguish "trial used up" from "wrong actor".
const (
	ReasonCasesLimit         = "cases_limit"
	ReasonTimeLimit          = "time_limit"
	ReasonSelfAssignment     = "self_assignment"
	ReasonInsufficientPoints = "insufficient_points"
	ReasonWrongActor         = "wrong_actor"
)

// Error is the typed result every engine operation returns on failure.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation marks client-fixable input problems.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Forbidden marks an actor-rights failure with a machine-readable reason.
func Forbidden(reason, message string) *Error {
	return &Error{Kind: KindForbidden, Reason: reason, Message: message}
}

// Conflict marks a lost race. The message should tell the caller what
// actually happened ("this case was already accepted by another provider"),
// not just that a conflict occurred.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// NotFound marks an unknown entity reference.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Internal wraps a datastore or collaborator failure.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf extracts the Kind from err, defaulting to KindInternal for
// untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf extracts the reason code from err, or "" when absent.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// MessageOf extracts the user-facing message from err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "unexpected error"
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

package match

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes ledger errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates missing or malformed match/event fields.
	// Never queued; surfaced to the caller immediately.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNotFound indicates the match does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidTransition indicates a lifecycle operation was called
	// from a status that does not allow it.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeConnectivity indicates the store could not be reached.
	// Recoverable: the write is queued instead.
	ErrCodeConnectivity ErrorCode = "CONNECTIVITY"

	// ErrCodeForbidden indicates the capability check rejected the caller.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"

	// ErrCodeRetryExhausted indicates a queued mutation was dropped after
	// its last allowed attempt.
	ErrCodeRetryExhausted ErrorCode = "RETRY_EXHAUSTED"
)

// Error is the structured error returned across the ledger packages.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// MatchID identifies the affected match, if any.
	MatchID string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.MatchID != "" {
		msg += fmt.Sprintf(" (match=%s)", e.MatchID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool { return CodeOf(err) == ErrCodeValidation }

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsTransition returns true if err is an invalid-transition error.
func IsTransition(err error) bool { return CodeOf(err) == ErrCodeInvalidTransition }

// IsConnectivity returns true if err is a connectivity error.
func IsConnectivity(err error) bool { return CodeOf(err) == ErrCodeConnectivity }

// IsForbidden returns true if err is a forbidden error.
func IsForbidden(err error) bool { return CodeOf(err) == ErrCodeForbidden }

// NewValidationError creates an Error for a rejected field.
func NewValidationError(field, message string) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("%s: %s", field, message),
	}
}

// NewNotFoundError creates an Error for a missing match.
func NewNotFoundError(matchID string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: "match not found",
		MatchID: matchID,
	}
}

// NewTransitionError creates an Error for a disallowed status change.
func NewTransitionError(matchID string, from, to Status) *Error {
	return &Error{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot move from %s to %s", from, to),
		MatchID: matchID,
	}
}

// NewConnectivityError wraps a transport failure.
func NewConnectivityError(cause error) *Error {
	return &Error{
		Code:    ErrCodeConnectivity,
		Message: "store unreachable",
		Err:     cause,
	}
}

// NewForbiddenError creates an Error for a failed capability check.
func NewForbiddenError(role, capability string) *Error {
	return &Error{
		Code:    ErrCodeForbidden,
		Message: fmt.Sprintf("role %q may not %s", role, capability),
	}
}

// ErrOffline is returned by stores that know up front they cannot reach
// the remote side.
var ErrOffline = NewConnectivityError(errors.New("device offline"))

// NewRetryExhaustedError reports queued mutations dropped after their last
// attempt. itemID and cause describe the most recent one.
func NewRetryExhaustedError(dropped int, itemID string, cause error) *Error {
	return &Error{
		Code:    ErrCodeRetryExhausted,
		Message: fmt.Sprintf("%d queued mutation(s) dropped after max retries, last %s", dropped, itemID),
		Err:     cause,
	}
}

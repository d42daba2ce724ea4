package domain

import "errors"

// ErrorKind classifies engine failures so callers can distinguish
// retryable outcomes from caller mistakes without parsing messages.
type ErrorKind string

const (
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindInvalidTransition   ErrorKind = "INVALID_TRANSITION"
	KindUnauthorized        ErrorKind = "UNAUTHORIZED"
	KindInsufficientBalance ErrorKind = "INSUFFICIENT_BALANCE"
	KindOverflow            ErrorKind = "OVERFLOW"
	KindInvalidPayload      ErrorKind = "INVALID_PAYLOAD"
	KindTooEarly            ErrorKind = "TOO_EARLY"
	KindExpired             ErrorKind = "EXPIRED"
	KindDeadlinePassed      ErrorKind = "DEADLINE_PASSED"
	KindConditionNotMet     ErrorKind = "CONDITION_NOT_MET"
	KindAlreadyVoted        ErrorKind = "ALREADY_VOTED"
	KindAlreadyResolved     ErrorKind = "ALREADY_RESOLVED"
	KindNotPending          ErrorKind = "NOT_PENDING"
	KindNotYetResolvable    ErrorKind = "NOT_YET_RESOLVABLE"
)

// Error is a typed engine error. Every failed operation returns one of
// these; none are silently swallowed.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

var (
	ErrNotFound            = newError(KindNotFound, "referenced id does not exist")
	ErrInvalidTransition   = newError(KindInvalidTransition, "status transition not permitted by the transition table")
	ErrUnauthorized        = newError(KindUnauthorized, "actor lacks required capability")
	ErrInsufficientBalance = newError(KindInsufficientBalance, "amount exceeds available balance")
	ErrOverflow            = newError(KindOverflow, "arithmetic would exceed integer range")
	ErrInvalidPayload      = newError(KindInvalidPayload, "payload validation rejected input")
	ErrTooEarly            = newError(KindTooEarly, "action is not executable yet")
	ErrExpired             = newError(KindExpired, "action window has passed")
	ErrDeadlinePassed      = newError(KindDeadlinePassed, "voting deadline has passed")
	ErrConditionNotMet     = newError(KindConditionNotMet, "condition predicate returned false")
	ErrAlreadyVoted        = newError(KindAlreadyVoted, "voter has already voted on this tally")
	ErrAlreadyResolved     = newError(KindAlreadyResolved, "tally is already resolved")
	ErrNotPending          = newError(KindNotPending, "action is not pending")
	ErrNotYetResolvable    = newError(KindNotYetResolvable, "tally cannot be resolved before its deadline")
)

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// KindOf returns the kind of an engine error, or an empty kind for
// foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether the failure represents a normal, expected
// outcome that the caller may retry later rather than a mistake.
// ConditionNotMet and TooEarly are the only such kinds.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConditionNotMet, KindTooEarly:
		return true
	}
	return false
}

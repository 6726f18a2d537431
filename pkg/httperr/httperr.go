package httperr

import "errors"

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func NewValidation(msg string) error { return &ValidationError{msg: msg} }

func IsValidation(err error) bool {
	var target *ValidationError
	ok := errors.As(err, &target)
	return ok
}

type UnauthorizedError struct {
	msg string
}

func (e *UnauthorizedError) Error() string { return e.msg }

func NewUnauthorized(msg string) error { return &UnauthorizedError{msg: msg} }

func IsUnauthorized(err error) bool {
	var target *UnauthorizedError
	ok := errors.As(err, &target)
	return ok
}

// ForbiddenError carries a machine-readable denial reason alongside the
// message. Callers render a different remediation per reason, so the reason
// is part of the contract, not a debugging aid.
type ForbiddenError struct {
	msg    string
	reason string
}

func (e *ForbiddenError) Error() string { return e.msg }

func (e *ForbiddenError) Reason() string { return e.reason }

func NewForbidden(msg string, reason string) error {
	return &ForbiddenError{msg: msg, reason: reason}
}

func IsForbidden(err error) bool {
	var target *ForbiddenError
	ok := errors.As(err, &target)
	return ok
}

func ForbiddenReason(err error) string {
	var fe *ForbiddenError
	ok := errors.As(err, &fe)
	if !ok {
		return ""
	}
	return fe.reason
}

type NotFoundError struct {
	msg string
}

func (e *NotFoundError) Error() string { return e.msg }

func NewNotFound(msg string) error { return &NotFoundError{msg: msg} }

func IsNotFound(err error) bool {
	var target *NotFoundError
	ok := errors.As(err, &target)
	return ok
}

type ConflictError struct {
	msg string
}

func (e *ConflictError) Error() string { return e.msg }

func NewConflict(msg string) error { return &ConflictError{msg: msg} }

func IsConflict(err error) bool {
	var target *ConflictError
	ok := errors.As(err, &target)
	return ok
}

// ExpiredError marks a time-boxed resource past its deadline. Producing it
// usually also persists the lazy pending->expired transition.
type ExpiredError struct {
	msg string
}

func (e *ExpiredError) Error() string { return e.msg }

func NewExpired(msg string) error { return &ExpiredError{msg: msg} }

func IsExpired(err error) bool {
	var target *ExpiredError
	ok := errors.As(err, &target)
	return ok
}

type CapacityExceededError struct {
	msg string
}

func (e *CapacityExceededError) Error() string { return e.msg }

func NewCapacityExceeded(msg string) error { return &CapacityExceededError{msg: msg} }

func IsCapacityExceeded(err error) bool {
	var target *CapacityExceededError
	ok := errors.As(err, &target)
	return ok
}

type UnavailableError struct {
	msg string
}

func (e *UnavailableError) Error() string { return e.msg }

func NewUnavailable(msg string) error { return &UnavailableError{msg: msg} }

func IsUnavailable(err error) bool {
	var target *UnavailableError
	ok := errors.As(err, &target)
	return ok
}

package auth

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: conflict")
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrSystemRole   = errors.New("auth: system role permissions are immutable")
)

// Kind classifies an authorization resolution failure.
type Kind int

const (
	KindUnauthorized Kind = iota + 1
	KindEmailNotVerified
	KindStaffNotFound
	KindAccountBlocked
	KindAccountNotMember
	KindAccountNoRole
	KindRoleNotFound
	KindInternal
)

// Code is the wire code reported to clients.
func (k Kind) Code() string {
	switch k {
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindEmailNotVerified:
		return "EMAIL_NOT_VERIFIED"
	case KindStaffNotFound:
		return "STAFF_NOT_FOUND"
	case KindAccountBlocked:
		return "ACCOUNT_BLOCKED"
	case KindAccountNotMember:
		return "ACCOUNT_NOT_MEMBER"
	case KindAccountNoRole:
		return "ACCOUNT_NO_ROLE"
	case KindRoleNotFound:
		return "ROLE_NOT_FOUND"
	case KindInternal:
		return "INTERNAL"
	}
	return "UNKNOWN"
}

func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindStaffNotFound:
		return http.StatusNotFound
	case KindEmailNotVerified, KindAccountBlocked, KindAccountNotMember, KindAccountNoRole, KindRoleNotFound:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func (k Kind) String() string { return k.Code() }

// Error is a resolution failure. Status carries the stored staff status for
// KindAccountBlocked and is empty otherwise.
type Error struct {
	Kind    Kind
	Message string
	Status  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindInternal {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// KindOf returns the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}

package core

import (
	"errors"
	"net/http"
)

// Kind classifies a domain failure independently of its message.
type Kind string

const (
	KindWeakPassword       Kind = "weak_password"
	KindAlreadyExists      Kind = "already_exists"
	KindNotFound           Kind = "not_found"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindBadRequest         Kind = "bad_request"
	KindValidation         Kind = "validation_error"
)

// StatusCode maps a kind to the HTTP status it is reported with.
func (k Kind) StatusCode() int {
	switch k {
	case KindWeakPassword, KindAlreadyExists, KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure carrying a user-facing message.
// Err holds the underlying cause, if any, and is never shown to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
	}
	return false
}

func (e *Error) StatusCode() int { return e.Kind.StatusCode() }

var (
	ErrWeakPassword       = &Error{Kind: KindWeakPassword}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrBadRequest         = &Error{Kind: KindBadRequest}
	ErrValidation         = &Error{Kind: KindValidation}
)

func NewError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func ValidationError(err error) *Error {
	return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// KindOf reports the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

package challenge

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrFailed        = errors.New("challenge: user failed challenge")
	ErrMissingField  = errors.New("challenge: missing field")
	ErrInvalidFormat = errors.New("challenge: field has invalid format")

	// ErrNotFound, ErrExpired and ErrConsumed are the distinct ways a lookup
	// can fail. Callers fail closed on all of them.
	ErrNotFound = errors.New("challenge: no such challenge")
	ErrExpired  = errors.New("challenge: challenge has expired")
	ErrConsumed = errors.New("challenge: challenge was already answered")

	ErrUnknownKind = errors.New("challenge: unknown phrase source")
	ErrBadConfig   = errors.New("challenge: configuration is invalid")
)

func NewError(verb, publicReason string, privateReason error) *Error {
	return &Error{
		Verb:          verb,
		PublicReason:  publicReason,
		PrivateReason: privateReason,
		StatusCode:    http.StatusForbidden,
	}
}

// Error carries a client-safe reason alongside the internal cause.
type Error struct {
	PrivateReason error
	Verb          string
	PublicReason  string
	StatusCode    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("challenge: error when processing challenge: %s: %v", e.Verb, e.PrivateReason)
}

func (e *Error) Unwrap() error {
	return e.PrivateReason
}

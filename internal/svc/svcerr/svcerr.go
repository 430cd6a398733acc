// Package svcerr holds the error taxonomy shared by every service.
// Transport layers only need errors.Is against the sentinels and Message for the public text.
package svcerr

import (
	"errors"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrNoFields     = errors.New("no fields to update")
	ErrPersistence  = errors.New("persistence error")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error pairs a sentinel kind with a message that is safe to show to API consumers.
// Cause, when set, is kept for logs and errors.Is/As but never part of Msg.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Msg
	}

	return e.Msg + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Cause}
}

// Message returns the public message of the first *Error in err's chain, or fallback.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}

	return fallback
}

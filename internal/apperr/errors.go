// Package apperr defines the error taxonomy shared by services and HTTP
// handlers.  Every error surfaced to a caller carries one Kind; handlers
// translate the Kind into a status code and never inspect messages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindNotFound     Kind = "NOT_FOUND"
	KindBadRequest   Kind = "BAD_REQUEST"
	KindConflict     Kind = "CONFLICT"
	KindInternal     Kind = "INTERNAL"
)

// Error is a classified failure with a caller-safe message.  Cause is kept
// for logs and errors.Is/As chains but never rendered to clients.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same Kind, so errors.Is(err, apperr.Forbidden)
// works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Message == "" && t.Kind == e.Kind
	}
	return false
}

// Kind sentinels for errors.Is.
var (
	Unauthorized = &Error{Kind: KindUnauthorized}
	Forbidden    = &Error{Kind: KindForbidden}
	NotFound     = &Error{Kind: KindNotFound}
	BadRequest   = &Error{Kind: KindBadRequest}
	Conflict     = &Error{Kind: KindConflict}
	Internal     = &Error{Kind: KindInternal}
)

// New returns an Error of the given kind.
func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// Wrap classifies cause.  A nil cause yields nil.
func Wrap(cause error, kind Kind, msg string) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func NewUnauthorized(msg string) *Error { return New(KindUnauthorized, msg) }
func NewForbidden(msg string) *Error    { return New(KindForbidden, msg) }
func NewNotFound(msg string) *Error     { return New(KindNotFound, msg) }
func NewBadRequest(msg string) *Error   { return New(KindBadRequest, msg) }
func NewConflict(msg string) *Error     { return New(KindConflict, msg) }

// NewInternal wraps a downstream failure not attributable to the caller.
func NewInternal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Cause: cause}
}

// KindOf returns the Kind of err, defaulting to KindInternal for
// unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the caller-safe message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

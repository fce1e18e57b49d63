// Package apperr defines the error taxonomy shared by controllers,
// repositories, and middleware. Every operation in the service layer fails
// with one of these kinds; the gin error middleware maps kinds to HTTP
// statuses and hides anything else behind a generic 500.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindDelivery
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error // wrapped cause, never serialized outward
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validation(msg string) *Error     { return New(KindValidation, msg) }
func Authentication(msg string) *Error { return New(KindAuthentication, msg) }
func Authorization(msg string) *Error  { return New(KindAuthorization, msg) }
func NotFound(msg string) *Error       { return New(KindNotFound, msg) }
func Conflict(msg string) *Error       { return New(KindConflict, msg) }
func Delivery(msg string, err error) *Error {
	return Wrap(KindDelivery, msg, err)
}

// Internal wraps an unexpected failure. The cause stays available for
// logging but the message shown to clients is always generic.
func Internal(err error) *Error {
	return Wrap(KindInternal, "something went wrong", err)
}

// KindOf extracts the taxonomy kind from an error chain. Unknown errors
// count as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Status maps an error to the HTTP status the boundary responds with.
func Status(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message. Internal causes are never
// exposed: anything outside the taxonomy collapses to a generic message.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "something went wrong"
}

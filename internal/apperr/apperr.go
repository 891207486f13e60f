// Package apperr is the domain error taxonomy shared by the engines and the
// HTTP adapter.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a domain failure.
type Kind int

const (
	Internal Kind = iota
	NotFound
	Expired
	InvalidArgument
	Unauthenticated
	Unauthorized
	Conflict
	NoContent
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Expired:
		return "expired"
	case InvalidArgument:
		return "invalid_argument"
	case Unauthenticated:
		return "unauthenticated"
	case Unauthorized:
		return "unauthorized"
	case Conflict:
		return "conflict"
	case NoContent:
		return "no_content"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind onto a transport status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case NotFound, NoContent:
		return http.StatusNotFound
	case Expired:
		return http.StatusGone
	case InvalidArgument:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case Unauthorized:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error with a client-facing message.
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

// New returns an error of kind k.
func New(k Kind, msg string) *Error {
	return &Error{Kind: k, Message: msg}
}

// Wrap returns an error of kind k carrying cause.
func Wrap(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Message: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Message returns the client-facing message for err. Unclassified errors
// never leak their text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	return "Internal server error"
}

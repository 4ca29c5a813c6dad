// Package apperr defines the error taxonomy shared by services and handlers.
// Every failure crossing the HTTP boundary is mapped to exactly one Kind.
package apperr

import (
	"errors"
	"net/http"
	"runtime/debug"
)

// Kind classifies a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindAlreadyExists
	KindInvalidCredentials
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindAlreadyExists:
		return "already_exists"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// HTTPStatus returns the response status for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput, KindAlreadyExists, KindInvalidCredentials:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Message is safe to show to clients;
// Err holds the underlying cause and is never rendered in production.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// Fields lists per-field validation failures, if any.
	Fields []FieldError

	stack []byte
}

// FieldError describes why a single input field was rejected.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a classified error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns a classified error around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Internal wraps an unexpected failure and records the stack at the call
// site.
func Internal(cause error) *Error {
	e := Wrap(KindInternal, InternalMessage, cause)
	e.stack = debug.Stack()
	return e
}

// StackOf returns the stack recorded when err was classified as internal.
func StackOf(err error) []byte {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.stack
	}
	return nil
}

// InternalMessage is the sanitized text shown for internal failures.
const InternalMessage = "Server error. Please try again later."

// KindOf reports the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message for err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return InternalMessage
}

// Invalid returns an InvalidInput error carrying field failures.
func Invalid(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindInvalidInput, Message: message, Fields: fields}
}

// FieldsOf returns the field failures attached to err.
func FieldsOf(err error) []FieldError {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Fields
	}
	return nil
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

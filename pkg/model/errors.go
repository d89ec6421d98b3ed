package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an error for callers and for the wire.
type Kind string

const (
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindForbidden       Kind = "FORBIDDEN"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindInvalidState    Kind = "INVALID_STATE"
	KindNetworkError    Kind = "NETWORK_ERROR"
	KindInternal        Kind = "INTERNAL"
	KindBadInput        Kind = "BAD_USER_INPUT"
)

// Error is the typed error returned across component boundaries.
// Two errors match under errors.Is when their kinds are equal.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.ToLower(strings.ReplaceAll(string(e.Kind), "_", " "))
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	// ErrUnauthenticated is returned when an operation requires an identity and none was provided
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Message: "authentication required"}
	// ErrForbidden is returned when the identity may not act on the target
	ErrForbidden = &Error{Kind: KindForbidden, Message: "forbidden"}
	// ErrNotFound is returned when a referenced entity does not exist
	ErrNotFound = &Error{Kind: KindNotFound, Message: "not found"}
	// ErrConflict is returned when an operation collides with existing state
	ErrConflict = &Error{Kind: KindConflict, Message: "conflict"}
	// ErrInvalidState is returned when an operation is not valid in the current phase
	ErrInvalidState = &Error{Kind: KindInvalidState, Message: "invalid state"}
	// ErrNetwork is returned when the remote endpoint could not be reached
	ErrNetwork = &Error{Kind: KindNetworkError, Message: "network error"}
	// ErrInternal is returned for unexpected failures
	ErrInternal = &Error{Kind: KindInternal, Message: "internal error"}
	// ErrBadInput is returned when arguments are malformed
	ErrBadInput = &Error{Kind: KindBadInput, Message: "bad input"}
	// ErrCanceled is returned when the operation is canceled by the client
	ErrCanceled = errors.New("operation canceled")
)

// NewError creates an error of the given kind.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind carried by err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps a kind to the HTTP status code used by the API.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidState:
		return http.StatusConflict
	case KindBadInput:
		return http.StatusBadRequest
	case KindNetworkError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WrapError wraps storage errors to model errors.
// It converts context.Canceled and context.DeadlineExceeded to ErrCanceled.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsCanceled(err) {
		return ErrCanceled
	}
	return err
}

// IsCanceled returns true if the error is due to context cancellation or deadline exceeded.
// It checks both direct context errors and wrapped errors (e.g., from MongoDB driver).
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrCanceled) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "context canceled") || strings.Contains(errStr, "context deadline exceeded")
}

// Package common defines the closed error taxonomy shared by every layer of
// the service. Adapters classify raw backend errors into these kinds once, at
// their boundary; callers match them with errors.Is.
package common

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks caller input problems (missing or inconsistent fields).
	ErrValidation = errors.New("validation error")

	// ErrInvalidCredentials marks a rejected username/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotFound marks an absent record in the backend that answered.
	ErrNotFound = errors.New("not found")

	// ErrServiceUnavailable marks misconfiguration or the absence of any usable
	// backend. Always safe to retry later.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrBackend marks a reachable backend whose call failed.
	ErrBackend = errors.New("backend error")
)

// Error carries a taxonomy kind, a user-facing message and the underlying
// cause. errors.Is matches both the kind and anything in the cause chain.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Validation returns an ErrValidation error with the given message.
func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// InvalidCredentials returns an ErrInvalidCredentials error.
func InvalidCredentials(msg string) error {
	return &Error{Kind: ErrInvalidCredentials, Message: msg}
}

// NotFound returns an ErrNotFound error.
func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

// Unavailable returns an ErrServiceUnavailable error.
func Unavailable(msg string) error {
	return &Error{Kind: ErrServiceUnavailable, Message: msg}
}

// UnavailableCause returns an ErrServiceUnavailable error wrapping cause.
func UnavailableCause(msg string, cause error) error {
	return &Error{Kind: ErrServiceUnavailable, Message: msg, Cause: cause}
}

// Backend returns an ErrBackend error wrapping cause.
func Backend(msg string, cause error) error {
	return &Error{Kind: ErrBackend, Message: msg, Cause: cause}
}

// Message returns the user-facing message of err. For a taxonomy error that
// is its Message (without the cause); otherwise it is err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// KindOf returns the kind of the outermost taxonomy error in err's chain, so
// a BackendError wrapping an unavailable cause is still reported as a backend
// failure. Errors outside the taxonomy are reported as ErrBackend.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrBackend
}

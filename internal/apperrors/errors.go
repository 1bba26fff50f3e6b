package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison using errors.Is()
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrPersistence     = errors.New("persistence failure")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("forbidden")
)

// GenericMessage is shown to users when the underlying failure should not leak
const GenericMessage = "Something went wrong. Please try again later."

// Error carries the failing operation and a user-facing message next to the
// sentinel it wraps.
type Error struct {
	Op      string // Operation that failed (e.g., "squads.Create")
	Message string // Human-readable message, safe to show to users
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports missing or malformed user input.
func Validation(op, message string) error {
	return &Error{Op: op, Message: message, Err: ErrValidation}
}

// NotFound reports a referenced document that does not exist.
func NotFound(op, message string) error {
	return &Error{Op: op, Message: message, Err: ErrNotFound}
}

// Unauthenticated reports an operation attempted without an identity.
func Unauthenticated(op, message string) error {
	return &Error{Op: op, Message: message, Err: ErrUnauthenticated}
}

// Forbidden reports an identity acting outside its permissions.
func Forbidden(op, message string) error {
	return &Error{Op: op, Message: message, Err: ErrForbidden}
}

// Persistence wraps a backend read/write failure. Both ErrPersistence and the
// cause stay reachable through errors.Is.
func Persistence(op string, cause error) error {
	if cause == nil {
		return nil
	}
	var appErr *Error
	if errors.As(cause, &appErr) {
		return cause
	}
	return &Error{Op: op, Err: fmt.Errorf("%w: %w", ErrPersistence, cause)}
}

// Message returns the text that may be shown to an end user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" && !errors.Is(err, ErrPersistence) {
		return appErr.Message
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "Not found"
	case errors.Is(err, ErrUnauthenticated):
		return "Please log in to continue."
	case errors.Is(err, ErrForbidden):
		return "You don't have permission to do that."
	}
	return GenericMessage
}

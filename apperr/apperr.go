// Package apperr defines the error taxonomy shared by the service layer and
// translated to HTTP status codes at the request boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the request boundary.
type Kind int

const (
	// Internal is the fallback for unexpected failures.
	Internal Kind = iota
	// Unauthenticated means the bearer credential is missing or invalid.
	Unauthenticated
	// Forbidden means the caller is known but not allowed to perform the action.
	Forbidden
	// NotFound covers both missing resources and resources the caller may not
	// know exist (not-owned playlists, invalid or expired share tokens).
	NotFound
	// Validation means the input is malformed (empty comment body, bad id).
	Validation
	// Upstream means the identity or catalog provider failed or was unreachable.
	Upstream
	// Conflict is reserved for share token collisions. Given the 128-bit token
	// space this is treated as an internal condition, not a user-facing one.
	Conflict
)

// Error carries a kind, a caller-visible message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err, defaulting to Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf extracts the caller-visible message from err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

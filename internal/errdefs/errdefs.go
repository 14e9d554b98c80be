// Package errdefs defines the error kinds shared across Kriya components.
// Callers wrap these sentinels with context and test for them with errors.Is.
package errdefs

import "errors"

var (
	// ErrValidation marks a malformed request. Nothing was persisted.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an unknown agent, handoff, or bridge item.
	ErrNotFound = errors.New("not found")

	// ErrUpstream marks a failed or non-successful provider call.
	ErrUpstream = errors.New("upstream error")

	// ErrTransition marks an illegal state change. The record is left unchanged.
	ErrTransition = errors.New("invalid transition")

	// ErrUnauthorized marks a missing or wrong shared secret.
	ErrUnauthorized = errors.New("unauthorized")
)

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsUpstream reports whether err came from a provider call.
func IsUpstream(err error) bool { return errors.Is(err, ErrUpstream) }

// IsTransition reports whether err is an illegal state change.
func IsTransition(err error) bool { return errors.Is(err, ErrTransition) }

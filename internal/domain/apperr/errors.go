// Package apperr defines the error kinds shared by the scheduling,
// calendar and dispatch layers.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed request or definition.
// Nothing has been applied when it is returned.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

// Error implements error.
func (e *ValidationError) Error() string {
	msg := e.Reason
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Field == "" {
		return "validation: " + msg
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, msg)
}

// Unwrap returns the underlying sentinel, if any.
func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid wraps a domain sentinel error as a ValidationError on field.
// PRE: err is non-nil
// POST: returned error unwraps to err
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

// Error implements error.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// NotFound builds a NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ResolutionError reports that a collaborator (roster, course catalogue)
// could not be reached or answered with an error.
type ResolutionError struct {
	Source string
	Err    error
}

// Error implements error.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Source, e.Err)
}

// Unwrap returns the collaborator's error.
func (e *ResolutionError) Unwrap() error { return e.Err }

// Unresolved wraps err as a ResolutionError for source.
func Unresolved(source string, err error) error {
	return &ResolutionError{Source: source, Err: err}
}

// DispatchError is a per-recipient transport failure. It is recorded in a
// batch result and never returned from a dispatch run.
type DispatchError struct {
	Recipient string
	Attempts  int
	Err       error
}

// Error implements error.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("send to %s failed after %d attempt(s): %v", e.Recipient, e.Attempts, e.Err)
}

// Unwrap returns the last transport error.
func (e *DispatchError) Unwrap() error { return e.Err }

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsResolution reports whether err is or wraps a ResolutionError.
func IsResolution(err error) bool {
	var target *ResolutionError
	return errors.As(err, &target)
}

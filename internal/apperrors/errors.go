// Package apperrors holds the error types shared across packages. Package
// specific "not found" and "conflict" conditions stay as sentinels next to
// the code that returns them.
package apperrors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports missing or malformed request fields. It is
// returned before any side effect happens.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates an empty ValidationError.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

// Add records a problem with field.
func (e *ValidationError) Add(field, problem string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = problem
}

// HasErrors reports whether any field problem was recorded.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil returns e when it carries problems and nil otherwise.
func (e *ValidationError) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// ExternalError wraps a failure of a collaborator outside the process
// (calendar, messaging channel, text understanding).
type ExternalError struct {
	Service string
	Op      string
	Err     error
}

// External wraps err as an ExternalError. A nil err returns nil.
func External(service, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalError{Service: service, Op: op, Err: err}
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call ran out of time.
func (e *ExternalError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsExternal reports whether err carries an ExternalError.
func IsExternal(err error) bool {
	var e *ExternalError
	return errors.As(err, &e)
}

// IsTimeout reports whether err is an external call that timed out.
func IsTimeout(err error) bool {
	var e *ExternalError
	if errors.As(err, &e) {
		return e.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

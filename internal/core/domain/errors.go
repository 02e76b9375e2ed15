package domain

import (
	"errors"
	"fmt"
)

// ErrMalformedInput marks a request payload that cannot enter the pipeline.
var ErrMalformedInput = errors.New("malformed input")

// ValidationError describes why a payload was rejected.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = fmt.Sprintf("field %q: %s", e.Field, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrMalformedInput, msg)
}

// Unwrap lets errors.Is match both ErrMalformedInput and the cause.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedInput}
	}
	return []error{ErrMalformedInput, e.Err}
}

// MissingField builds the error returned when a required field is absent.
func MissingField(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "missing required data"}
}

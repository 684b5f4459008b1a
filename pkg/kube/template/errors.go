package template

import (
	"errors"
	"fmt"
)

// Static errors for err113 compliance.
var (
	ErrUnbalancedBraces   = errors.New("unbalanced braces in template component")
	ErrFragmentInTemplate = errors.New("URI templates cannot contain a fragment")
)

// ParseError is returned when a template string cannot be parsed.
type ParseError struct {
	Template string
	Err      error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid URI template %q: %v", e.Template, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// MissingParameterError is returned when a required template parameter has
// no value in the evaluation context.
type MissingParameterError struct {
	Name string
}

// Error implements the error interface.
func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("required template parameter %q is not defined", e.Name)
}

// IsMissingParameter reports whether err is (or wraps) a MissingParameterError.
func IsMissingParameter(err error) bool {
	missing := &MissingParameterError{}

	return errors.As(err, &missing)
}

package kube

import (
	"errors"
	"fmt"
	"strings"
)

// Pipeline construction errors.
var (
	ErrDuplicateRole  = errors.New("an interceptor is already registered for role")
	ErrInvalidRole    = errors.New("invalid interceptor role")
	ErrAnchorNotFound = errors.New("anchor role is not registered")
	ErrNullTerminus   = errors.New("pipeline terminus configuration produced no handler")
	ErrNilFactory     = errors.New("interceptor factory is nil")
	ErrNilInterceptor = errors.New("interceptor factory returned nil")
	ErrNoNextHandler  = errors.New("interceptor has no next handler")
)

// Request building errors.
var (
	ErrNoFormatterAvailable = errors.New("no formatter available")
	ErrBaseURIRequired      = errors.New("request has no base URI")
)

// AggregatedResponseActionError reports every response action that failed
// while processing a single response.
type AggregatedResponseActionError struct {
	Errors []error
}

// Error implements the error interface.
func (e *AggregatedResponseActionError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "response action failed"
	case 1:
		return "response action failed: " + e.Errors[0].Error()
	}

	messages := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		messages = append(messages, err.Error())
	}

	return fmt.Sprintf("%d response actions failed: %s", len(e.Errors), strings.Join(messages, "; "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *AggregatedResponseActionError) Unwrap() []error {
	return e.Errors
}

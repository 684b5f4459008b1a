package kube

import (
	"fmt"
	"net/http"

	"go.uber.org/multierr"
)

// RequestAction configures an outgoing request using the per-call context value.
type RequestAction[C any] func(req *http.Request, value C) error

// ResponseAction inspects or post-processes a response using the per-call
// context value.
type ResponseAction[C any] func(resp *http.Response, value C) error

// RequestConfig adapts an action that does not need the context value.
func RequestConfig[C any](fn func(req *http.Request) error) RequestAction[C] {
	return func(req *http.Request, _ C) error {
		return fn(req)
	}
}

// ResponseConfig adapts an action that does not need the context value.
func ResponseConfig[C any](fn func(resp *http.Response) error) ResponseAction[C] {
	return func(resp *http.Response, _ C) error {
		return fn(resp)
	}
}

// applyRequestActions runs actions in order and stops at the first failure.
func applyRequestActions[C any](actions []RequestAction[C], req *http.Request, value C) error {
	for index, action := range actions {
		if action == nil {
			continue
		}

		if err := action(req, value); err != nil {
			return fmt.Errorf("request action %d failed: %w", index, err)
		}
	}

	return nil
}

// applyResponseActions runs every action in order, even when an earlier one
// fails, and reports all failures together.
func applyResponseActions[C any](actions []ResponseAction[C], resp *http.Response, value C) error {
	var errs error

	for _, action := range actions {
		if action == nil {
			continue
		}

		errs = multierr.Append(errs, action(resp, value))
	}

	if errs == nil {
		return nil
	}

	return &AggregatedResponseActionError{Errors: multierr.Errors(errs)}
}

// Package cserr defines the error taxonomy shared across cs2bim-go.
package cserr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed, so callers can decide whether
// to surface it synchronously, fail the job, skip the element, or retry.
type Kind string

const (
	// BadInput means the caller supplied a malformed or inconsistent
	// request (WKT, origin, configuration reference).
	BadInput Kind = "bad_input"
	// BadGeometry means geometry that parsed but fails the shape
	// invariants the mesh engine requires (degenerate rings, fewer than
	// three non-collinear points, duplicate points where uniqueness is
	// required).
	BadGeometry Kind = "bad_geometry"
	// UpstreamError means a remote dependency (STAC catalog, spatial
	// database) returned an error or an unexpected response.
	UpstreamError Kind = "upstream_error"
	// DataError means upstream data was reachable but malformed or
	// missing fields the processor depends on.
	DataError Kind = "data_error"
	// NumericalIssue means a computation could not produce a usable
	// result (ray-triangle projection exhausted its retry ladder, a
	// mesh collapsed to zero triangles).
	NumericalIssue Kind = "numerical_issue"
	// UnsupportedConfiguration means the loaded configuration requests
	// a combination this build does not implement.
	UnsupportedConfiguration Kind = "unsupported_configuration"
	// CacheMiss means a cache lookup found nothing usable; by itself
	// this is not client-visible, it triggers a re-fetch.
	CacheMiss Kind = "cache_miss"
)

// Error is the one error type used across every package in this module.
type Error struct {
	Kind    Kind
	Op      string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var prefix string
	if e.Op != "" {
		prefix = e.Op + ": "
	}
	if e.Field != "" {
		return fmt.Sprintf("%s%s (%s): %s", prefix, e.Field, e.Kind, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s%s: %s", prefix, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s%s", prefix, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with a message.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an Error that carries an underlying cause.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: err.Error(), Err: err}
}

// Field builds a BadInput-style error naming the offending field.
func Field(kind Kind, op, field, message string) *Error {
	return &Error{Kind: kind, Op: op, Field: field, Message: message}
}

// Is reports whether err, or any error it wraps, carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// MultiError aggregates multiple *Error values, e.g. from validating every
// field of a request at once instead of stopping at the first failure.
type MultiError struct {
	Errors []*Error
}

func NewMultiError() *MultiError {
	return &MultiError{Errors: make([]*Error, 0)}
}

func (m *MultiError) Add(kind Kind, op, field, message string) {
	m.Errors = append(m.Errors, Field(kind, op, field, message))
}

func (m *MultiError) HasErrors() bool { return len(m.Errors) > 0 }

func (m *MultiError) Error() string {
	switch len(m.Errors) {
	case 0:
		return "no errors"
	case 1:
		return m.Errors[0].Error()
	default:
		return fmt.Sprintf("%d validation errors, first: %s", len(m.Errors), m.Errors[0].Error())
	}
}

// ErrOrNil returns m as an error if it carries any entries, nil otherwise —
// the common "collect then return" idiom used by request validators.
func (m *MultiError) ErrOrNil() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

package core

import (
	"errors"
	"fmt"
)

// ErrorKind is a stable classification of a failure. Kinds are what
// clients see; raw upstream errors never leave the engine.
type ErrorKind string

const (
	KindInvalidConfig       ErrorKind = "invalid_config"
	KindNotFound            ErrorKind = "not_found"
	KindInvalidTransition   ErrorKind = "invalid_transition"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindUpstreamAuth        ErrorKind = "upstream_auth"
	KindUpstreamMalformed   ErrorKind = "upstream_malformed"
	KindJudgeUnparseable    ErrorKind = "judge_unparseable"
	KindCancelled           ErrorKind = "cancelled"
	KindUnsupportedFormat   ErrorKind = "unsupported_format"
)

// Error is a classified error with a human-readable context string.
type Error struct {
	Kind    ErrorKind
	Context string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Context, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error with a formatted context.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Context: fmt.Sprintf(format, args...)}
}

// WrapError creates a classified error wrapping a cause.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Context: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the error kind, or "" if the error is not classified.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsKind reports whether the error carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

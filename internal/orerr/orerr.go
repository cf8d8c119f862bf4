// Package orerr defines the error-kind taxonomy shared by every ORAC Core
// component, so callers at any layer can classify a failure with
// [errors.As] without depending on a specific package's sentinel errors.
package orerr

import (
	"errors"
	"fmt"
)

// Kind classifies the nature of a failure for the purposes of response
// mapping at the external surface. It is never used for control flow inside
// the core.
type Kind int

const (
	// KindUnknown is the zero value; it should not appear in constructed errors.
	KindUnknown Kind = iota

	// KindValidation covers malformed inputs, missing required fields,
	// disabled topics, and unconfigured (device, location) pairs.
	KindValidation

	// KindNotFound covers unknown backend/topic ids and missing required files.
	KindNotFound

	// KindConflict covers duplicate (device_type, location) pairs on enabled
	// mappings.
	KindConflict

	// KindBackend covers backend reachability, auth, or command-execution
	// failures. Non-fatal to the pipeline.
	KindBackend

	// KindInference covers subprocess crashes, readiness timeouts, generation
	// timeouts, and unparseable model output.
	KindInference

	// KindCache covers snapshot IO failures. Non-fatal; the cache degrades to
	// in-memory-only.
	KindCache

	// KindConfiguration covers missing required files at startup. Fatal.
	KindConfiguration

	// KindTimeout covers deadline exceeded on inference or dispatch calls.
	KindTimeout
)

// String returns a lowercase label for k, suitable for log fields.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindBackend:
		return "backend"
	case KindInference:
		return "inference"
	case KindCache:
		return "cache"
	case KindConfiguration:
		return "configuration"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a classified error carrying a [Kind] alongside a wrapped cause.
// Use [errors.As] to recover the [Kind] of an error returned from any core
// package.
type Error struct {
	Kind    Kind
	Op      string // Op names the operation that failed, e.g. "mapping.upsert_entity".
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a classified [Error].
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap constructs a classified [Error] wrapping an underlying cause.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the [Kind] of err if it is (or wraps) an *[Error], and
// [KindUnknown] otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

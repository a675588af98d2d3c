// Package apperr defines the structured error taxonomy shared by all
// WarrantyHub services. Every error crossing a service boundary carries a
// Kind so the transport layer can map it to a status code without inspecting
// message text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping and policy decisions
type Kind string

const (
	// KindUnauthenticated means no verified identity was supplied
	KindUnauthenticated Kind = "unauthenticated"
	// KindForbidden means the identity is known but lacks the required role
	// or ownership. Messages stay generic and never name the failed rule.
	KindForbidden Kind = "forbidden"
	// KindNotFound covers both a genuinely absent resource and a resource the
	// requester may not see. The two are merged to avoid existence leakage
	// across tenants.
	KindNotFound Kind = "not_found"
	// KindValidation means malformed input, reported field by field
	KindValidation Kind = "validation"
	// KindConflict means the request contradicts current state (duplicate
	// membership, owner demotion). Messages are specific and actionable.
	KindConflict Kind = "conflict"
	// KindStorage means the blob store failed in a retryable way
	KindStorage Kind = "storage"
	// KindInternal is everything else
	KindInternal Kind = "internal"
)

// Error is a structured application error
type Error struct {
	Kind    Kind
	Message string
	Field   string // set for validation errors
	Err     error  // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind wrapping a cause
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation creates a field-level validation error
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// Unauthenticated creates a blanket denial error
func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: "authentication required"}
}

// Forbidden creates a generic permission error. The message is deliberately
// uniform so callers cannot tell which rule failed.
func Forbidden() *Error {
	return &Error{Kind: KindForbidden, Message: "permission denied"}
}

// NotFound creates a merged absent-or-inaccessible error for a resource type
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

// IsForbidden reports whether err is a permission error
func IsForbidden(err error) bool { return IsKind(err, KindForbidden) }

// IsConflict reports whether err is a conflict error
func IsConflict(err error) bool { return IsKind(err, KindConflict) }

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return IsKind(err, KindValidation) }

// IsUnauthenticated reports whether err is an authentication error
func IsUnauthenticated(err error) bool { return IsKind(err, KindUnauthenticated) }

// IsStorage reports whether err is a retryable blob store error
func IsStorage(err error) bool { return IsKind(err, KindStorage) }

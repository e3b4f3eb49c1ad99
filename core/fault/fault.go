// Package fault defines the classified error kinds raised by schemas, stores
// and the router, and the table that translates them into HTTP status codes.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error for status translation.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindNotImplemented     Kind = "not_implemented"
	KindUnauthorized       Kind = "unauthorized"
	KindValidation         Kind = "validation"
	KindDuplicateAttribute Kind = "duplicate_attribute"
	KindDuplicateResource  Kind = "duplicate_resource"
	KindReadonlyWrite      Kind = "readonly_write"
	KindAttributeAccess    Kind = "attribute_access"
	KindUnknownResource    Kind = "unknown_resource"
	KindRouteNotFound      Kind = "route_not_found"
	KindInternal           Kind = "internal"
)

// Error is a classified error.
type Error struct {
	// Kind selects the status code.
	Kind Kind

	// Message is safe to show to API clients.
	Message string

	// Field names the attribute involved, if any.
	Field string

	// Err is the underlying cause.
	Err error
}

// Error returns the error message.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field %q)", msg, e.Field)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error of the same kind.
// This lets callers write errors.Is(err, fault.NotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Field == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	NotFound       = &Error{Kind: KindNotFound}
	NotImplemented = &Error{Kind: KindNotImplemented}
	Unauthorized   = &Error{Kind: KindUnauthorized}
	Validation     = &Error{Kind: KindValidation}
	ReadonlyWrite  = &Error{Kind: KindReadonlyWrite}
	RouteNotFound  = &Error{Kind: KindRouteNotFound}
)

// New creates a classified error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// OnField attaches a field name and returns e.
func (e *Error) OnField(field string) *Error {
	e.Field = field
	return e
}

// KindOf returns the kind of the first *Error in err's chain.
// Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// StatusCoder is implemented by errors that declare their own status code.
type StatusCoder interface {
	error
	StatusCode() int
}

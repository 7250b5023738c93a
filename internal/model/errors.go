package model

import (
	"errors"
	"fmt"
)

// ErrKind groups errors by how a caller should react to them.
type ErrKind string

// The error kinds surfaced by the services.
const (
	KindValidation      ErrKind = "validation"
	KindUnauthenticated ErrKind = "unauthenticated"
	KindForbidden       ErrKind = "forbidden"
	KindNotFound        ErrKind = "not_found"
	KindConflict        ErrKind = "conflict"
	KindEmptyUpdate     ErrKind = "empty_update"
	KindInternal        ErrKind = "internal"
)

// Stable error codes.
const (
	CodeDuplicateEntity = "duplicate_entity"
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
	CodeEmptyUpdate     = "empty_update"
	CodeInvalidField    = "invalid_field"
	CodeNotFound        = "not_found"
	CodeInternal        = "internal_error"
)

// Error is a structured service error. Message is safe to show to
// clients; Cause is kept for logs.
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// IsCode reports whether err, or anything it wraps, is an *Error with code.
func IsCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ErrDuplicateEntity is returned when a unique attribute is already taken.
func ErrDuplicateEntity(field string) *Error {
	return &Error{
		Kind:    KindConflict,
		Code:    CodeDuplicateEntity,
		Message: "already registered",
		Meta:    map[string]string{"field": field},
	}
}

// ErrUnauthenticated is returned when the caller could not be identified.
func ErrUnauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Code: CodeUnauthenticated, Message: "not authenticated"}
}

// ErrForbidden is returned when the caller lacks the role an operation
// requires.
func ErrForbidden() *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: "insufficient role"}
}

// ErrEmptyUpdate is returned when an update carries no fields.
func ErrEmptyUpdate() *Error {
	return &Error{Kind: KindEmptyUpdate, Code: CodeEmptyUpdate, Message: "no fields to update"}
}

// ErrInvalidField is returned when an input field fails validation.
func ErrInvalidField(field, reason string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidField,
		Message: "invalid field",
		Meta:    map[string]string{"field": field, "reason": reason},
	}
}

// ErrNotFound is returned when the targeted record does not exist.
func ErrNotFound(entity string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    CodeNotFound,
		Message: entity + " not found",
	}
}

// ErrInternal wraps an unexpected failure.
func ErrInternal(cause error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "internal error", Cause: cause}
}

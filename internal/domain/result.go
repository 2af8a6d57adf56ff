package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies a failure. The set is closed; callers switch on it
// to decide how to react (retry, report to the user, re-authenticate).
type ErrorCode int

const (
	Unknown ErrorCode = iota
	NotFound
	Conflict
	Unauthorized
	LockedOut
	InvalidInput
	OperationCancelled
	ResourceCreationFailed
)

// Aliases used by callers that speak in HTTP-ish terms.
const (
	Validation          = InvalidInput
	InternalServerError = Unknown
)

func (c ErrorCode) String() string {
	switch c {
	case NotFound:
		return "NotFound"
	case Conflict:
		return "Conflict"
	case Unauthorized:
		return "Unauthorized"
	case LockedOut:
		return "LockedOut"
	case InvalidInput:
		return "InvalidInput"
	case OperationCancelled:
		return "OperationCancelled"
	case ResourceCreationFailed:
		return "ResourceCreationFailed"
	default:
		return "Unknown"
	}
}

// MarshalText renders the code by name so JSON output stays readable.
func (c ErrorCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Error is a single typed failure carried by a Result.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// NewError builds an Error without details.
func NewError(code ErrorCode, message string) Error {
	return Error{Code: code, Message: message}
}

// WithDetails returns a copy of e carrying the given details.
func (e Error) WithDetails(details string) Error {
	e.Details = details
	return e
}

func (e Error) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
}

// Errors lets a failure list travel through APIs that speak plain error,
// such as a transaction callback.
type Errors []Error

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, err := range e {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

// AsErrors extracts a failure list from err when it carries one.
func AsErrors(err error) ([]Error, bool) {
	var list Errors
	if errors.As(err, &list) && len(list) > 0 {
		return list, true
	}
	var single Error
	if errors.As(err, &single) {
		return []Error{single}, true
	}
	return nil, false
}

var errUninitialized = NewError(Unknown, "uninitialized result")

// Result is the return shape of every core operation: either a payload or a
// non-empty list of errors, never both. The zero value is a failure.
type Result[T any] struct {
	value  T
	errors []Error
	ok     bool
}

// Success wraps a payload.
func Success[T any](value T) Result[T] {
	return Result[T]{value: value, ok: true}
}

// Failure builds a failed result from one or more errors.
func Failure[T any](err Error, more ...Error) Result[T] {
	errs := make([]Error, 0, 1+len(more))
	errs = append(errs, err)
	errs = append(errs, more...)
	return Result[T]{errors: errs}
}

// Failures builds a failed result from a list of errors. An empty list is a
// programming error and yields an Unknown failure rather than a success.
func Failures[T any](errs []Error) Result[T] {
	if len(errs) == 0 {
		return Result[T]{errors: []Error{errUninitialized}}
	}
	cp := make([]Error, len(errs))
	copy(cp, errs)
	return Result[T]{errors: cp}
}

// FailureFrom re-types the errors of a failed result. It panics when r is a
// success because that would silently drop a payload.
func FailureFrom[U, T any](r Result[T]) Result[U] {
	if r.IsSuccess() {
		panic("domain: FailureFrom called on a successful result")
	}
	return Failures[U](r.Errors())
}

// Map applies f to the payload of a successful result.
func Map[T, U any](r Result[T], f func(T) U) Result[U] {
	if r.IsError() {
		return FailureFrom[U](r)
	}
	return Success(f(r.value))
}

func (r Result[T]) IsSuccess() bool { return r.ok }

func (r Result[T]) IsError() bool { return !r.ok }

// Value returns the payload, or the zero value for a failure.
func (r Result[T]) Value() T { return r.value }

// Errors returns a copy of the failure list. A zero Result reports a single
// Unknown error.
func (r Result[T]) Errors() []Error {
	if r.ok {
		return nil
	}
	if len(r.errors) == 0 {
		return []Error{errUninitialized}
	}
	cp := make([]Error, len(r.errors))
	copy(cp, r.errors)
	return cp
}

// FirstError returns the leading error of a failure.
func (r Result[T]) FirstError() (Error, bool) {
	if r.ok {
		return Error{}, false
	}
	return r.Errors()[0], true
}

// Code is shorthand for the code of the leading error; successes report Unknown
// together with false.
func (r Result[T]) Code() (ErrorCode, bool) {
	e, ok := r.FirstError()
	return e.Code, ok
}

// Err returns the failure list as an error, or nil for a success.
func (r Result[T]) Err() error {
	if r.ok {
		return nil
	}
	return Errors(r.Errors())
}

// Unwrap forces the caller to look at both halves.
func (r Result[T]) Unwrap() (T, []Error) {
	return r.value, r.Errors()
}

func (r Result[T]) String() string {
	if r.ok {
		return fmt.Sprintf("Success(%v)", r.value)
	}
	parts := make([]string, 0, len(r.errors))
	for _, e := range r.Errors() {
		parts = append(parts, e.Error())
	}
	return "Failure(" + strings.Join(parts, "; ") + ")"
}

type resultJSON[T any] struct {
	Success bool    `json:"success"`
	Value   *T      `json:"value,omitempty"`
	Errors  []Error `json:"errors,omitempty"`
}

// MarshalJSON renders the payload or the errors, never both.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.ok {
		v := r.value
		return json.Marshal(resultJSON[T]{Success: true, Value: &v})
	}
	return json.Marshal(resultJSON[T]{Errors: r.Errors()})
}

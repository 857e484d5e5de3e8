// Package apperr defines the error taxonomy shared by the domain services
// and its mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind classifies an error for the HTTP layer.
type Kind int

const (
	KindUpstream Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindForbidden
	KindUnauthorized
)

// MsgSlotBooked is the client-facing message for a booking conflict.
const MsgSlotBooked = "slot already booked"

// MsgConcurrentUpdate is returned when a record kept changing underneath a
// write; the client may retry.
const MsgConcurrentUpdate = "record was modified concurrently, please retry"

// Error is a classified error carrying a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the error kind onto an HTTP status code. Conflicts surface as
// 400 for compatibility with existing clients.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(err error) *Error {
	return &Error{Kind: KindConflict, Message: MsgSlotBooked, Err: err}
}

// ConcurrentUpdate is a conflict caused by a concurrent writer rather than
// by an overlapping booking.
func ConcurrentUpdate(err error) *Error {
	return &Error{Kind: KindConflict, Message: MsgConcurrentUpdate, Err: err}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// Upstream wraps a storage or dependency failure. Only the generic message
// reaches the client; err is logged.
func Upstream(err error, msg string) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindUpstream if there is none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUpstream
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// FromValidator converts validator.ValidationErrors into a Validation error
// naming the first failing field.
func FromValidator(err error) *Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Error{Kind: KindValidation, Message: "invalid request body", Err: err}
	}
	first := verrs[0]
	field := lowerFirst(first.Field())
	var msg string
	switch first.Tag() {
	case "required":
		msg = field + " is required"
	case "oneof":
		msg = field + " must be one of " + strings.Join(strings.Fields(first.Param()), ", ")
	case "min", "gte":
		msg = field + " must be at least " + first.Param()
	case "max", "lte":
		msg = field + " must be at most " + first.Param()
	case "uuid", "uuid4":
		msg = field + " must be a valid id"
	default:
		msg = field + " is invalid"
	}
	return &Error{Kind: KindValidation, Message: msg, Err: err}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

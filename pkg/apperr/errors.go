// Package apperr defines the error kinds shared by every layer.
//
// An Error carries a stable Kind for automated handling, a human readable Msg,
// an optional Op naming where it happened and an optional wrapped Err.
// Callers map a Kind to a transport status with Kind.StatusCode instead of
// matching on message text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInvalidState      Kind = "invalid_state"
	KindInvalidTransition Kind = "invalid_transition"
	KindConstraint        Kind = "constraint"
	KindConflict          Kind = "conflict"
	KindReservationFailed Kind = "reservation_failed"
	KindPaymentDeclined   Kind = "payment_declined"
	KindInfrastructure    Kind = "infrastructure"
)

// StatusCode returns the HTTP status class for the kind.
func (k Kind) StatusCode() int {
	switch k {
	case KindValidation, KindConstraint:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState, KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case KindConflict, KindReservationFailed:
		return http.StatusConflict
	case KindPaymentDeclined:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// Fatal reports whether the kind means the system, not the input, is at fault.
func (k Kind) Fatal() bool {
	return k == KindInfrastructure
}

type Error struct {
	Kind Kind
	Msg  string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString("<" + string(e.Kind) + ">")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a kind and an operation name. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return New(KindInvalidState, format, args...)
}

func InvalidTransition(format string, args ...any) *Error {
	return New(KindInvalidTransition, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

// Infrastructure wraps an unexpected failure of a backing system.
func Infrastructure(op string, err error) error {
	return Wrap(KindInfrastructure, op, err)
}

// KindOf returns the kind of the outermost *Error in err's chain.
// Errors that carry no kind are reported as infrastructure failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != "" {
		return e.Kind
	}
	return KindInfrastructure
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

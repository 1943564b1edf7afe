package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"consign-review-api/internal/remote"
)

// Kind classifies workflow failures. Every error returned by this package is
// an *Error carrying one of these.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotAllowed  Kind = "not_allowed"
	KindForbidden   Kind = "forbidden"
	KindConflict    Kind = "conflict"
	KindNotFound    Kind = "not_found"
	KindRejected    Kind = "rejected"
	KindRemote      Kind = "remote"
	KindUnavailable Kind = "unavailable"
	KindCanceled    Kind = "canceled"
)

// Error is a classified workflow failure.
type Error struct {
	Kind    Kind
	Message string
	Field   string // set for validation errors tied to one input
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func validationErr(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

func notAllowedErr(msg string) *Error {
	return &Error{Kind: KindNotAllowed, Message: msg}
}

// NotFound builds a not_found error.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Forbidden builds a forbidden error.
func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// Conflict builds a conflict error.
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// KindOf returns the kind of err, or KindRemote for unclassified errors.
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindRemote
}

// FromRemote classifies an error returned by the platform client.
func FromRemote(msg string, err error) *Error {
	if err == nil {
		return nil
	}
	var we *Error
	if errors.As(err, &we) {
		return we
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindCanceled, Message: msg, Err: err}
	}
	if remote.IsUnavailable(err) {
		return &Error{Kind: KindUnavailable, Message: "platform temporarily unavailable", Err: err}
	}

	var re *remote.Error
	if errors.As(err, &re) {
		switch {
		case re.StatusCode == http.StatusNotFound:
			return &Error{Kind: KindNotFound, Message: re.Message(), Err: err}
		case re.StatusCode == http.StatusConflict:
			return &Error{Kind: KindConflict, Message: re.Message(), Err: err}
		case re.StatusCode == http.StatusUnauthorized || re.StatusCode == http.StatusForbidden:
			return &Error{Kind: KindForbidden, Message: re.Message(), Err: err}
		case re.StatusCode < http.StatusInternalServerError:
			return &Error{Kind: KindRejected, Message: re.Message(), Err: err}
		}
	}
	return &Error{Kind: KindRemote, Message: msg, Err: err}
}

// Package apperr classifies failures at the service boundary. Every error that
// reaches a client carries a Class, which decides the HTTP status family, and a
// Reason, the machine-readable code written into the response body.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

type Class string

const (
	ClassValidation            Class = "validation"
	ClassNotFound              Class = "not_found"
	ClassConflict              Class = "conflict"
	ClassBusinessRejection     Class = "business_rejection"
	ClassDependencyUnavailable Class = "dependency_unavailable"
	ClassPersistenceFailure    Class = "persistence_failure"
	ClassDeliveryFailure       Class = "delivery_failure"
	ClassInternal              Class = "internal"
)

const (
	ReasonInvalidRequest        = "invalid_request"
	ReasonInvalidQuantity       = "invalid_quantity"
	ReasonInvalidStatus         = "invalid_status"
	ReasonInvalidID             = "invalid_id"
	ReasonReservationFailed     = "reservation_failed"
	ReasonInsufficientStock     = "insufficient_stock"
	ReasonProductNotFound       = "product_not_found"
	ReasonPaymentFailed         = "payment_failed"
	ReasonInvalidAmount         = "invalid_amount"
	ReasonPaymentDeclined       = "payment_declined"
	ReasonDependencyUnavailable = "dependency_unavailable"
	ReasonPersistenceFailed     = "persistence_failed"
	ReasonPublishFailed         = "publish_failed"
	ReasonNotFound              = "not_found"
	ReasonInvalidTransition     = "invalid_transition"
	ReasonTimeout               = "timeout"
	ReasonCanceled              = "canceled"
	ReasonInternal              = "internal"
)

// Error is a classified failure. Err keeps the underlying cause for logs and errors.Is.
type Error struct {
	Class  Class
	Reason string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Reason + ": " + e.Err.Error()
	default:
		return e.Reason
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error with a client-safe message.
func New(class Class, reason, msg string) *Error {
	return &Error{Class: class, Reason: reason, Msg: msg}
}

// Wrap classifies err. The message shown to clients is msg, never err's text.
func Wrap(class Class, reason, msg string, err error) *Error {
	return &Error{Class: class, Reason: reason, Msg: msg, Err: err}
}

func Validation(reason, msg string) *Error { return New(ClassValidation, reason, msg) }

func NotFound(msg string) *Error { return New(ClassNotFound, ReasonNotFound, msg) }

func DependencyUnavailable(msg string, err error) *Error {
	return Wrap(ClassDependencyUnavailable, ReasonDependencyUnavailable, msg, err)
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func ClassOf(err error) Class {
	if err == nil {
		return ""
	}
	if ae, ok := As(err); ok {
		return ae.Class
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ClassDependencyUnavailable
	default:
		return ClassInternal
	}
}

// Kind returns the machine-readable reason for err.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	if ae, ok := As(err); ok {
		return ae.Reason
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	default:
		return ReasonInternal
	}
}

// HTTPStatus maps err to a response status: 4xx for caller-fixable problems, 5xx for downstream failures.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	// Payment failures are a downstream outcome for the order caller.
	if Kind(err) == ReasonPaymentFailed {
		return http.StatusInternalServerError
	}
	switch ClassOf(err) {
	case ClassValidation, ClassBusinessRejection:
		return http.StatusBadRequest
	case ClassNotFound:
		return http.StatusNotFound
	case ClassConflict:
		return http.StatusConflict
	case ClassDependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-safe message for err.
func Message(err error) string {
	if ae, ok := As(err); ok && ae.Msg != "" {
		return ae.Msg
	}
	return http.StatusText(HTTPStatus(err))
}

// Package apperr defines the error taxonomy shared by the orchestrator and
// the route layer. Every failure carries a machine-readable kind with a
// stable code plus a human-readable message.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation   Kind = "VALIDATION"
	KindNotFound     Kind = "NOT_FOUND"
	KindForbidden    Kind = "FORBIDDEN"
	KindInvalidState Kind = "INVALID_STATE"
	// KindProviderUnavailable is a vendor failure that exhausted retries or
	// was not safe to retry at all.
	KindProviderUnavailable Kind = "PROVIDER_UNAVAILABLE"
	KindProviderRejected    Kind = "PROVIDER_REJECTED"
	KindWebhookAuth         Kind = "WEBHOOK_AUTH"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain. Unclassified errors report as
// provider-unavailable so nothing leaks to callers as a bare 500 string.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindProviderUnavailable
}

func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// HTTPStatus maps a kind to the response status used by the route layer.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return 400
	case KindWebhookAuth:
		return 401
	case KindForbidden:
		return 403
	case KindNotFound:
		return 404
	case KindInvalidState:
		return 409
	case KindProviderRejected:
		return 502
	default:
		return 503
	}
}

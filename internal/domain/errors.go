package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the HTTP error translator. The string value
// is also the machine-readable code sent to clients.
type Kind string

const (
	KindValidation         Kind = "VALIDATION_FAILED"
	KindDuplicateKey       Kind = "DUPLICATE_KEY"
	KindInvalidResetToken  Kind = "INVALID_OR_EXPIRED_TOKEN"
	KindAuthRequired       Kind = "AUTHENTICATION_REQUIRED"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"
	KindInvalidToken       Kind = "INVALID_TOKEN"
	KindExpiredToken       Kind = "EXPIRED_TOKEN"
	KindStalePassword      Kind = "STALE_PASSWORD"
	KindUserGone           Kind = "USER_GONE"
	KindForbidden          Kind = "FORBIDDEN"
	KindNotFound           Kind = "NOT_FOUND"
	KindUnknownRoute       Kind = "UNKNOWN_ROUTE"
	KindRateLimited        Kind = "RATE_LIMIT_EXCEEDED"
	KindDeliveryFailed     Kind = "EMAIL_DELIVERY_FAILED"
	KindPaymentFailed      Kind = "PAYMENT_PROVIDER_ERROR"
	KindInternal           Kind = "INTERNAL_ERROR"
)

// Error is an operational failure: its message is safe to show to callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

var (
	// ErrNotFound is returned by repositories when no document matches.
	ErrNotFound = errors.New("document not found")
)

// InvalidIDError reports a malformed primary key.
type InvalidIDError struct {
	Value string
}

func (e *InvalidIDError) Error() string { return fmt.Sprintf("Invalid _id: %s.", e.Value) }

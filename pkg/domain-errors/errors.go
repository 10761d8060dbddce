// Package domainerrors provides coded domain errors.
//
// Services return these so callers can branch on the kind of failure without
// string matching, and so the HTTP layer can translate them into status codes
// in exactly one place. Stores do not use this package directly; they return
// pkg/platform/sentinel errors which services translate at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation marks malformed, out-of-range, or dangerous input.
	CodeValidation Code = "validation"
	// CodeInvalidInput marks a value that failed enum/format parsing.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks a structurally broken request (bad JSON, missing body).
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized marks authentication failures. The message must stay
	// generic: callers must not be able to distinguish a bad signature from an
	// unknown subject.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks insufficient role or ownership.
	CodeForbidden Code = "forbidden"
	// CodeNotFound marks an absent entity.
	CodeNotFound Code = "not_found"
	// CodeConflict marks duplicate resources (purchase, registration).
	CodeConflict Code = "conflict"
	// CodePaymentDisabled marks a payment attempt while the payment feature is
	// gated off. The message carries the configured user-facing text.
	CodePaymentDisabled Code = "payment_disabled"
	// CodePaymentGateway marks a processor decline or unreachable processor.
	CodePaymentGateway Code = "payment_gateway"
	// CodeInvariantViolation marks a broken model invariant; surfaces to
	// clients as validation when it originates from their input.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal marks storage, signing, or other infrastructure failure.
	// Clients only ever see the generic message; detail stays server-side.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. It wraps an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New constructs a coded error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause remains
// reachable via errors.Is/As for logging, but client-facing rendering uses
// only the code and message.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
	}
	return false
}

// Is is a readability alias for HasCode, matching test usage like
// dErrors.Is(err, dErrors.CodeUnauthorized).
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// carries none. Unknown failures fail safe as internal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message for err. Uncoded errors collapse
// to a generic message so infrastructure detail never leaks.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		if de.Code == CodeInternal {
			return "internal error"
		}
		return de.Message
	}
	return "internal error"
}

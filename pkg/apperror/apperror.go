package apperror

import (
	"errors"
	"fmt"
)

// Code classifies high-level failure categories for user-facing messages.
type Code string

const (
	// CodeDenied means the actor lacks the capability for the operation.
	// Never retried automatically.
	CodeDenied Code = "denied"
	// CodeModeration means the operation was converted into a moderation
	// request instead of being applied. Not an error the user did anything
	// wrong about, but the mutation did not happen.
	CodeModeration Code = "moderation"
	// CodeInvalid means the payload failed validation. Surfaced inline.
	CodeInvalid Code = "invalid"
	// CodeNotFound means the referenced record does not exist (usually a
	// stale client reference). Callers should refetch the affected query.
	CodeNotFound Code = "not_found"
	// CodeConflict means a transient store failure. Eligible for one
	// automatic retry before surfacing.
	CodeConflict Code = "conflict"
	// CodeDeliveryFailed means a secondary-channel send failed. Logged only,
	// never surfaced to the end user.
	CodeDeliveryFailed Code = "delivery_failed"
	CodeUnexpected     Code = "unexpected"
)

// Error carries a code and a user-safe message while preserving the original
// cause via Unwrap. The internal message may contain details that must not
// reach end users.
type Error struct {
	Code    Code
	Message string // user-facing
	Field   string // offending field for validation failures, if known
	cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = humanize(e.Code)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether the failure is eligible for an automatic retry.
func (e *Error) Retryable() bool { return e.Code == CodeConflict }

func humanize(code Code) string {
	switch code {
	case CodeDenied:
		return "you do not have permission to do that"
	case CodeModeration:
		return "your change was sent to the coordinators for review"
	case CodeInvalid:
		return "invalid value"
	case CodeNotFound:
		return "record not found"
	case CodeConflict:
		return "the record changed underneath you, please retry"
	case CodeDeliveryFailed:
		return "notification delivery failed"
	default:
		return "unexpected error"
	}
}

// New creates an Error with a code and user-facing message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to a cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Invalid builds a validation failure for a named field.
func Invalid(field, message string) *Error {
	return &Error{Code: CodeInvalid, Message: message, Field: field}
}

// NotFound builds a not-found failure for an entity name.
func NotFound(entity string) *Error {
	return &Error{Code: CodeNotFound, Message: entity + " not found"}
}

// Denied builds an authorization failure.
func Denied(action string) *Error {
	return &Error{Code: CodeDenied, Message: "not allowed to " + action}
}

// CodeOf extracts the Code from err, or CodeUnexpected if err carries none.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnexpected
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

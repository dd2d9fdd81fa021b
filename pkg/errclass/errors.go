package errclass

import (
	"errors"
	"fmt"
)

// Error is a stable, machine-readable error class. The Code is what callers
// branch on; the Message is surfaced to users verbatim.
type Error struct {
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target carries the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithMessage returns a new Error with the same Code but a specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, cause: e.cause}
}

// WithMessagef returns a new Error with a formatted message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...), cause: e.cause}
}

// Wrap returns a new Error that keeps cause reachable through errors.Unwrap.
// The cause message becomes the Message when none is set.
func (e *Error) Wrap(cause error) *Error {
	msg := e.Message
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{Code: e.Code, Message: msg, cause: cause}
}

var (
	ErrUserRejected           = &Error{Code: "E_USER_REJECTED"}
	ErrInsufficientFunds      = &Error{Code: "E_INSUFFICIENT_FUNDS"}
	ErrPermissionDenied       = &Error{Code: "E_PERMISSION_DENIED"}
	ErrIncompatibleClient     = &Error{Code: "E_INCOMPATIBLE_CLIENT"}
	ErrObjectNotFound         = &Error{Code: "E_OBJECT_NOT_FOUND"}
	ErrGlobalStateUnavailable = &Error{Code: "E_GLOBAL_STATE_UNAVAILABLE"}
	ErrConfirmationTimedOut   = &Error{Code: "E_CONFIRMATION_TIMED_OUT"}
	ErrObjectIDUnresolved     = &Error{Code: "E_OBJECT_ID_UNRESOLVED"}
	ErrLeaseNotFound          = &Error{Code: "E_LEASE_NOT_FOUND"}
	ErrLeaseExpired           = &Error{Code: "E_LEASE_EXPIRED"}
	ErrBlobExpired            = &Error{Code: "E_BLOB_EXPIRED"}
	ErrInvalidRequest         = &Error{Code: "E_INVALID_REQUEST"}
	ErrSubmitFailed           = &Error{Code: "E_SUBMIT_FAILED"}
	ErrStorageOpFailed        = &Error{Code: "E_STORAGE_OP_FAILED"}
	ErrFieldMissing           = &Error{Code: "E_FIELD_MISSING"}
	ErrConfigInvalid          = &Error{Code: "E_CONFIG_INVALID"}
)

// Code returns the class code of err, or "" when err carries no class.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Retryable reports whether the orchestration layer may try the step again.
// Only the two inspection failures qualify; everything else either needs
// user action or will not change on retry.
func Retryable(err error) bool {
	return errors.Is(err, ErrObjectNotFound) || errors.Is(err, ErrGlobalStateUnavailable)
}

// Informational reports whether err should be framed as a notice rather than
// a failure.
func Informational(err error) bool {
	return errors.Is(err, ErrUserRejected) || errors.Is(err, ErrConfirmationTimedOut)
}

// Package domainerrors provides coded errors for the service boundary.
// Services wrap infrastructure failures with a code; transports translate
// codes into protocol responses without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeNoIdentity marks a persisted mutation attempted with no signed-in
	// identity.
	CodeNoIdentity Code = "no_identity"
	// CodeStoreFailure marks a remote store read or write that failed; the
	// wrapped error carries the underlying cause.
	CodeStoreFailure Code = "store_failure"
	// CodeValidation marks rejected caller input.
	CodeValidation Code = "validation"
	// CodeNotFound marks a missing record.
	CodeNotFound Code = "not_found"
	// CodeUnauthorized marks a failed authentication.
	CodeUnauthorized Code = "unauthorized"
	// CodeBadRequest marks a malformed request.
	CodeBadRequest Code = "bad_request"
	// CodeInternal marks everything the caller cannot act on.
	CodeInternal Code = "internal"
)

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a coded error with the given message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf returns a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err yields
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
		de = nil
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

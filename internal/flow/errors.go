package flow

import (
	"errors"
	"fmt"
)

// DomainFlow is the error domain used by errors raised inside this package.
const DomainFlow = "flow"

// Error is an opaque, extensible error value threaded through OnError.
//
// The engine never interprets errors; it only forwards them. Error exists so
// that callers have a domain + code pair to match on, e.g.
// ("store", "no-such-key") or ("flow", "runtime-error").
type Error struct {
	// Domain identifies the subsystem that raised the error.
	Domain string

	// Code categorizes the error within its domain.
	Code string

	// Message is an optional human-readable description.
	Message string
}

// Error code constants for DomainFlow.
const (
	// CodeAlreadySubscribed indicates a single-subscriber operator rejected a
	// second observer.
	CodeAlreadySubscribed = "already-subscribed"

	// CodeRuntimeError is a generic failure, mostly useful in tests.
	CodeRuntimeError = "runtime-error"
)

// ErrAlreadySubscribed is delivered to an observer that tries to subscribe to
// a ucast operator that already has (or had) a subscriber.
var ErrAlreadySubscribed = &Error{
	Domain:  DomainFlow,
	Code:    CodeAlreadySubscribed,
	Message: "operator accepts only one subscriber",
}

// ErrRuntime is a generic runtime error.
var ErrRuntime = &Error{Domain: DomainFlow, Code: CodeRuntimeError}

// NewError creates an Error.
func NewError(domain, code, message string) *Error {
	return &Error{Domain: domain, Code: code, Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s:%s: %s", e.Domain, e.Code, e.Message)
	}
	return fmt.Sprintf("%s:%s", e.Domain, e.Code)
}

// Is matches any *Error with the same domain and code, ignoring the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Domain == t.Domain && e.Code == t.Code
}

// IsAlreadySubscribed reports whether err is an already-subscribed error.
// Uses errors.Is to handle wrapped errors.
func IsAlreadySubscribed(err error) bool {
	return errors.Is(err, ErrAlreadySubscribed)
}

// ErrorKey renders err as "domain:code" for *Error values and as the plain
// error string otherwise. Used for traces and log fields.
func ErrorKey(err error) string {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Domain + ":" + fe.Code
	}
	return err.Error()
}

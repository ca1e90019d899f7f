package extractor

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode classifies a resolution failure
type ErrorCode string

const (
	CodeInvalidURL          ErrorCode = "invalid_url"
	CodeUpstreamBlocked     ErrorCode = "upstream_blocked"
	CodeResourceUnavailable ErrorCode = "resource_unavailable"
	CodeUpstreamTransient   ErrorCode = "upstream_transient"
	CodeRelayAborted        ErrorCode = "relay_aborted"
	CodeNoFormats           ErrorCode = "no_formats"
)

// Error is a terminal resolution failure. Fallback is set when an
// out-of-band external service may still succeed where every strategy failed.
type Error struct {
	Code     ErrorCode
	Message  string
	Fallback bool
	Err      error
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

// Is matches any *Error with the same code, so errors.Is(err, ErrInvalidURL)
// works for wrapped and freshly built errors alike.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidURL          = &Error{Code: CodeInvalidURL, Message: "unsupported or malformed url"}
	ErrUpstreamBlocked     = &Error{Code: CodeUpstreamBlocked, Message: "all extraction methods were blocked", Fallback: true}
	ErrResourceUnavailable = &Error{Code: CodeResourceUnavailable, Message: "media unavailable"}
	ErrUpstreamTransient   = &Error{Code: CodeUpstreamTransient, Message: "upstream request failed"}
	ErrRelayAborted        = &Error{Code: CodeRelayAborted, Message: "stream relay aborted"}
	ErrNoFormats           = &Error{Code: CodeNoFormats, Message: "no downloadable formats found"}
)

// NewError builds an error of the given code wrapping err
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Fallback: code == CodeUpstreamBlocked,
		Err:      err,
	}
}

// CodeOf returns the code of the first *Error in err's chain. Deadline
// expiry is reported as a transient upstream failure.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeUpstreamTransient
	}
	return ""
}

// HasFallback reports whether err invites retrying through an external service
func HasFallback(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Fallback
}

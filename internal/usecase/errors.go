package usecase

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrorConfiguration    ErrorKind = "CONFIGURATION_ERROR"
	ErrorMalformedRequest ErrorKind = "MALFORMED_REQUEST"
	ErrorUpstream         ErrorKind = "UPSTREAM_ERROR"
	ErrorInternal         ErrorKind = "INTERNAL_ERROR"
)

const (
	configurationMessage = "System Configuration Error: API Key missing."
	failurePrefix        = "Neural Link Failed: "
	unknownDetail        = "Unknown Error"
)

// Error keeps the kind and reason for logs and the usage ledger while
// Detail is the only part callers ever see.
type Error struct {
	Kind   ErrorKind
	Reason string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Kind, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PublicMessage is the text placed in the {"error": ...} envelope.
func (e *Error) PublicMessage() string {
	if e == nil {
		return failurePrefix + unknownDetail
	}
	if e.Kind == ErrorConfiguration {
		return configurationMessage
	}
	if e.Detail == "" {
		return failurePrefix + unknownDetail
	}
	return failurePrefix + e.Detail
}

// AsError converts any error into an *Error, treating unknown errors as
// internal failures.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ue *Error
	if errors.As(err, &ue) {
		return ue
	}
	return newError(ErrorInternal, "unexpected_error", "", err)
}

func newError(kind ErrorKind, reason, detail string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Detail: detail, Err: err}
}

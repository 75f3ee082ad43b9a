// Package apperr defines the error taxonomy surfaced by the book analysis
// pipeline. Every failure a caller can observe maps to one of a small set of
// stable kinds; raw provider errors stay wrapped inside and are only logged
// server-side.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and the HTTP layer.
type Kind string

const (
	// KindValidation: client-side input error, e.g. an empty/blank/missing
	// book identifier.
	KindValidation Kind = "validation"
	// KindNotFound: upstream reports the document does not exist.
	KindNotFound Kind = "not_found"
	// KindTimeout: an outbound request exceeded its deadline.
	KindTimeout Kind = "timeout"
	// KindConnectivity: connection or DNS failure reaching an upstream.
	KindConnectivity Kind = "connectivity"
	// KindUpstream: any other transport failure or non-success status.
	KindUpstream Kind = "upstream"
	// KindMalformedResponse: upstream returned an empty or non-text body.
	KindMalformedResponse Kind = "malformed_response"
	// KindUnparsableResponse: model output contained no recoverable JSON.
	KindUnparsableResponse Kind = "unparsable_response"
	// KindConfiguration: required credential/config missing at construction.
	KindConfiguration Kind = "configuration"
	// KindInternal: anything that escaped classification.
	KindInternal Kind = "internal"
)

// Error carries a kind, a human-readable message, and the wrapped cause.
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

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func Validation(message string) *Error {
	return New(KindValidation, message, nil)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message, nil)
}

func Timeout(message string, cause error) *Error {
	return New(KindTimeout, message, cause)
}

func Connectivity(message string, cause error) *Error {
	return New(KindConnectivity, message, cause)
}

func Upstream(message string, cause error) *Error {
	return New(KindUpstream, message, cause)
}

func MalformedResponse(message string) *Error {
	return New(KindMalformedResponse, message, nil)
}

func UnparsableResponse(message string, cause error) *Error {
	return New(KindUnparsableResponse, message, cause)
}

func Configuration(message string, cause error) *Error {
	return New(KindConfiguration, message, cause)
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code the route layer should return.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindConnectivity, KindUpstream, KindMalformedResponse, KindUnparsableResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the human-readable message for err. Unclassified errors get
// a generic message so internal details are not exposed outward.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

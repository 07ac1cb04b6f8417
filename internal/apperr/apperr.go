// Package apperr defines the error taxonomy shared by all Tracklet
// services. Downstream-call failures are classified into a small set of
// kinds at the call site and carried as typed error values; the HTTP
// boundary maps each kind to a status code.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// Kind classifies an error for status-code mapping.
type Kind int

const (
	KindInternal   Kind = iota // unexpected failure, 500
	KindValidation             // malformed or contradictory input, 400
	KindAuth                   // credential or token failure, 401
	KindAPI                    // downstream returned a non-2xx or malformed body, 502
	KindConnection             // downstream unreachable, 503
	KindHTTP                   // downstream HTTP-level error surfaced distinctly, 500
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "authentication"
	case KindAPI:
		return "api"
	case KindConnection:
		return "connection"
	case KindHTTP:
		return "http"
	default:
		return "internal"
	}
}

// Error is a classified error annotated with the operation that raised it.
type Error struct {
	Kind    Kind
	Op      string // calling operation, e.g. "runstore.CreateRun"
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Validation is shorthand for a KindValidation error.
func Validation(op, message string) *Error {
	return New(KindValidation, op, message)
}

// Validationf is shorthand for a formatted KindValidation error.
func Validationf(op, format string, args ...any) *Error {
	return Newf(KindValidation, op, format, args...)
}

// Auth is shorthand for a KindAuth error.
func Auth(op, message string) *Error {
	return New(KindAuth, op, message)
}

// KindOf returns the classification of err, or KindInternal for
// unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindAPI:
		return http.StatusBadGateway
	case KindConnection:
		return http.StatusServiceUnavailable
	case KindHTTP:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// DetailsOf returns the Details field of a classified error, if any.
func DetailsOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return ""
}

// FromTransport classifies a network-level error from an outbound HTTP
// call. Unreachable hosts (refused, reset, DNS) become KindConnection;
// timeouts and everything else become KindAPI.
func FromTransport(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e // already classified
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			return Wrap(KindAPI, op, "request timed out", err)
		}
		var opErr *net.OpError
		var dnsErr *net.DNSError
		if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
			return Wrap(KindConnection, op, "service unreachable", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindAPI, op, "request timed out", err)
	}
	return Wrap(KindAPI, op, "request failed", err)
}

// FromStatus classifies an unexpected downstream HTTP status.
func FromStatus(op string, status int, body string) *Error {
	e := Newf(KindAPI, op, "unexpected status %d", status)
	e.Details = body
	return e
}

// SPDX-License-Identifier: MIT

package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound            = errors.New("upstream: resource not found")
	ErrForbidden           = errors.New("upstream: access forbidden")
	ErrUpstreamUnavailable = errors.New("upstream: host unreachable or transport failure")
	ErrUpstreamError       = errors.New("upstream: internal error (5xx)")
	ErrUpstreamBadResponse = errors.New("upstream: invalid response format or malformed data")
	ErrTimeout             = errors.New("upstream: request timed out")
	ErrCircuitOpen         = errors.New("upstream: circuit breaker is open")
)

// maxErrorBody bounds how much of an error response body is kept.
const maxErrorBody = 512

// Error is a rich error type that wraps the sentinel errors with context.
type Error struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // Nested lower-level error (e.g. net.Error)
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("agent server: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Sentinel
}

// wrapError classifies a transport error or a non-2xx status into a
// sentinel-backed *Error. It returns nil for a nil error with a 2xx status.
func wrapError(operation string, status int, body string, err error) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}

	if err != nil {
		sentinel := ErrUpstreamUnavailable
		var netErr net.Error
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			sentinel = ErrTimeout
		case errors.As(err, &netErr) && netErr.Timeout():
			sentinel = ErrTimeout
		case errors.Is(err, ErrUpstreamBadResponse):
			sentinel = ErrUpstreamBadResponse
		}
		return &Error{Sentinel: sentinel, Operation: operation, Status: status, Body: body, Err: err}
	}

	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return &Error{Sentinel: ErrNotFound, Operation: operation, Status: status, Body: body}
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return &Error{Sentinel: ErrForbidden, Operation: operation, Status: status, Body: body}
	case status >= 500:
		return &Error{Sentinel: ErrUpstreamError, Operation: operation, Status: status, Body: body}
	default:
		return &Error{Sentinel: ErrUpstreamBadResponse, Operation: operation, Status: status, Body: body}
	}
}

// Class returns a short, low-cardinality label for err, used in metrics
// and logs.
func Class(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrUpstreamError):
		return "upstream_error"
	case errors.Is(err, ErrUpstreamBadResponse):
		return "bad_response"
	default:
		return "unavailable"
	}
}

// isBreakerFailure reports whether err indicates the agent server itself is
// unhealthy. Client-side outcomes such as 404 do not trip the breaker.
func isBreakerFailure(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrUpstreamError) ||
		errors.Is(err, ErrTimeout)
}

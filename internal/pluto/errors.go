// SPDX-License-Identifier: MIT

package pluto

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"unicode/utf8"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnauthorized = errors.New("upstream: unauthorized")
	ErrNotFound     = errors.New("upstream: resource not found")
	ErrUnavailable  = errors.New("upstream: host unreachable or transport failure")
	ErrUpstream     = errors.New("upstream: internal error (5xx)")
	ErrBadResponse  = errors.New("upstream: invalid response format or malformed data")
	ErrTimeout      = errors.New("upstream: request timed out")

	// ErrAppVersion is returned when the web page does not carry exactly one
	// appVersion value.
	ErrAppVersion = errors.New("app version not found")
)

// APIError wraps a sentinel with the failing operation and response details.
type APIError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("pluto: %s: %v", e.Operation, e.Sentinel)
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

func (e *APIError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Sentinel, e.Err}
	}
	return []error{e.Sentinel}
}

// maxErrorBody caps how much of an error response body is kept.
const maxErrorBody = 256

func wrapError(op string, err error, status int, body []byte) error {
	e := &APIError{Operation: op, Status: status, Err: err}
	if len(body) > maxErrorBody {
		n := maxErrorBody
		for n > 0 && !utf8.RuneStart(body[n]) {
			n--
		}
		body = body[:n]
	}
	e.Body = string(body)

	switch {
	case err != nil && isTimeout(err):
		e.Sentinel = ErrTimeout
	case err != nil && status == 0:
		e.Sentinel = ErrUnavailable
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Sentinel = ErrUnauthorized
	case status == http.StatusNotFound:
		e.Sentinel = ErrNotFound
	case status >= 500:
		e.Sentinel = ErrUpstream
	default:
		e.Sentinel = ErrBadResponse
	}
	return e
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

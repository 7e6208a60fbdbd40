package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind classifies provider failures so callers can decide whether a
// request is worth repeating.
type ErrorKind int

const (
	// KindUnavailable covers network failures, 5xx responses and anything
	// the backend did not explain.
	KindUnavailable ErrorKind = iota
	// KindRateLimited is a 429. RetryAfter is set when the backend said so.
	KindRateLimited
	// KindInvalidResponse means the output did not match the request schema.
	KindInvalidResponse
	// KindTruncated means generation stopped at MaxTokens before the
	// structured output was complete.
	KindTruncated
	// KindRejected is a 4xx other than 429: bad key, bad model, bad request.
	KindRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate limited"
	case KindInvalidResponse:
		return "invalid response"
	case KindTruncated:
		return "truncated"
	case KindRejected:
		return "rejected"
	default:
		return "unavailable"
	}
}

// Error is returned by every provider in this package.
type Error struct {
	Kind     ErrorKind
	Provider string

	// RetryAfter is the backend's requested wait for KindRateLimited.
	RetryAfter time.Duration
	// Content is the offending output for KindInvalidResponse and KindTruncated.
	Content json.RawMessage

	Err error
}

func (e *Error) Error() string {
	msg := "llm"
	if e.Provider != "" {
		msg += " " + e.Provider
	}
	msg += ": " + e.Kind.String()
	if e.Kind == KindRateLimited && e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Retryable reports whether repeating the same request might succeed.
// Invalid responses are retryable; RetryProvider caps them separately.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return true
	}
	switch e.Kind {
	case KindTruncated, KindRejected:
		return false
	}
	return true
}

// statusError maps an HTTP status from a provider SDK error to an *Error.
func statusError(provider string, status int, err error) *Error {
	kind := KindUnavailable
	switch {
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status >= 400 && status < 500:
		kind = KindRejected
	}
	return &Error{Kind: kind, Provider: provider, Err: err}
}

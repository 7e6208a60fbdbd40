package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	cause := errors.New("quota")
	e := &Error{Kind: KindRateLimited, Provider: "gemini", RetryAfter: 2 * time.Second, Err: cause}

	assert.Equal(t, "llm gemini: rate limited (retry after 2s): quota", e.Error())
	assert.ErrorIs(t, e, cause)
	assert.Equal(t, "llm: truncated", (&Error{Kind: KindTruncated}).Error())
}

func TestIsKind_Wrapped(t *testing.T) {
	err := fmt.Errorf("assess: %w", &Error{Kind: KindInvalidResponse})
	assert.True(t, IsKind(err, KindInvalidResponse))
	assert.False(t, IsKind(err, KindUnavailable))
	assert.False(t, IsKind(errors.New("plain"), KindUnavailable))
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{fmt.Errorf("call: %w", context.DeadlineExceeded), false},
		{&Error{Kind: KindTruncated}, false},
		{&Error{Kind: KindRejected}, false},
		{&Error{Kind: KindRateLimited}, true},
		{&Error{Kind: KindUnavailable}, true},
		{&Error{Kind: KindInvalidResponse}, true},
		{errors.New("EOF"), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Retryable(tt.err), "%v", tt.err)
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusUnauthorized, KindRejected},
		{http.StatusNotFound, KindRejected},
		{http.StatusInternalServerError, KindUnavailable},
		{http.StatusServiceUnavailable, KindUnavailable},
		{0, KindUnavailable},
	}
	for _, tt := range tests {
		e := statusError("openai", tt.status, errors.New("x"))
		assert.Equal(t, tt.want, e.Kind, "status %d", tt.status)
		assert.Equal(t, "openai", e.Provider)
	}
}

func TestRetryAfterHeader(t *testing.T) {
	h := http.Header{}
	assert.Zero(t, retryAfter(h))
	h.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, retryAfter(h))
	h.Set("Retry-After", "Wed, 21 Oct 2026 07:28:00 GMT")
	assert.Zero(t, retryAfter(h))
}

package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryProvider repeats transient failures with exponential backoff. An
// invalid response is repeated at most once, since a second bad reply
// usually means the prompt or schema is at fault.
type RetryProvider struct {
	inner   Provider
	policy  RetryConfig
	timeout time.Duration
}

func WithRetry(p Provider, policy RetryConfig) *RetryProvider {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &RetryProvider{inner: p, policy: policy}
}

// Deadline bounds each Generate call, retries and waits included.
// Zero means no bound beyond the caller's context.
func (r *RetryProvider) Deadline(d time.Duration) *RetryProvider {
	r.timeout = d
	return r
}

func (r *RetryProvider) ModelID() string { return r.inner.ModelID() }
func (r *RetryProvider) Name() string    { return ProviderName(r.inner) }

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	invalidSeen := false
	for attempt := 1; ; attempt++ {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !Retryable(err) || attempt >= r.policy.MaxAttempts {
			return nil, err
		}
		if IsKind(err, KindInvalidResponse) {
			if invalidSeen {
				return nil, err
			}
			invalidSeen = true
		}

		wait := r.wait(attempt-1, err)
		logger.Debug("llm: retrying",
			slog.String("provider", r.Name()),
			slog.String("purpose", PurposeFrom(ctx)),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("err", err))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// wait honours a backend's Retry-After before falling back to the policy.
func (r *RetryProvider) wait(attempt int, err error) time.Duration {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindRateLimited && e.RetryAfter > 0 {
		return e.RetryAfter
	}
	return r.policy.delay(attempt)
}

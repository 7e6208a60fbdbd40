package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/sous/internal/store"
)

type recordingEventRepo struct {
	events []store.LLMRequestEventData
	err    error
}

func (r *recordingEventRepo) AppendLLMRequest(ctx context.Context, data store.LLMRequestEventData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.events = append(r.events, data)
	return r.err
}

func (r *recordingEventRepo) QueryLLMEvents(context.Context, store.QueryOpts) ([]store.LLMRequestEventRecord, error) {
	return nil, nil
}

func (r *recordingEventRepo) GetLLMEvent(context.Context, int) (*store.LLMRequestEventRecord, error) {
	return nil, nil
}

func (r *recordingEventRepo) LLMUsageByPurpose(context.Context) ([]store.LLMUsageStats, error) {
	return nil, nil
}

func (r *recordingEventRepo) LLMUsageByModel(context.Context) ([]store.LLMModelUsage, error) {
	return nil, nil
}

type namedMock struct {
	*MockProvider
}

func (namedMock) Name() string { return "fake-backend" }

func TestLoggingProvider_RecordsEvent(t *testing.T) {
	repo := &recordingEventRepo{}
	inner := namedMock{NewMockProvider(MockResponse{
		Content: json.RawMessage(`{"suggested_level":30}`),
		Usage:   newUsage(12, 7),
	})}
	p := WithLogging(inner, repo)

	req := Prompt("coach", "Assess my knife skills.")
	req.Schema = &Schema{Name: "skill-assessment", Definition: map[string]any{"type": "object"}}
	_, err := p.Generate(WithPurpose(context.Background(), "skill-assessment"), req)
	require.NoError(t, err)

	require.Len(t, repo.events, 1)
	ev := repo.events[0]
	assert.Equal(t, "fake-backend", ev.Provider)
	assert.Equal(t, "mock", ev.Model)
	assert.Equal(t, "skill-assessment", ev.Purpose)
	assert.True(t, ev.Success)
	assert.Equal(t, 12, ev.InputTokens)
	assert.Equal(t, 7, ev.OutputTokens)
	assert.Equal(t, `{"suggested_level":30}`, ev.ResponseBody)
	assert.Equal(t, req.Transcript(), ev.RequestBody)
	assert.Equal(t, "fake-backend", ProviderName(p))
}

func TestLoggingProvider_FailuresStillReturned(t *testing.T) {
	repo := &recordingEventRepo{err: errors.New("db locked")}
	boom := errors.New("boom")
	p := WithLogging(NewMockProvider(MockResponse{Err: boom}), repo)

	_, err := p.Generate(context.Background(), Request{})
	require.ErrorIs(t, err, boom)
	require.Len(t, repo.events, 1)
	assert.False(t, repo.events[0].Success)
	assert.Equal(t, "boom", repo.events[0].ErrorMessage)
	assert.Equal(t, "unknown", repo.events[0].Purpose)
}

func TestLoggingProvider_LogsAfterCancel(t *testing.T) {
	repo := &recordingEventRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := WithLogging(NewMockProvider(MockResponse{Err: context.Canceled}), repo)
	_, err := p.Generate(ctx, Request{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, repo.events, 1, "cancelled requests are still recorded")
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, Config{Provider: "mock"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", p.ModelID())

	cfg := DefaultConfig()
	cfg.Provider = "openrouter"
	cfg.OpenRouter.APIKey = "sk-or-test"
	p, err = NewProvider(ctx, cfg, &recordingEventRepo{})
	require.NoError(t, err)
	assert.Equal(t, "openrouter", ProviderName(p))
	rp, ok := p.(*RetryProvider)
	require.True(t, ok)
	assert.Equal(t, cfg.Timeout, rp.timeout)
	_, ok = rp.inner.(*LoggingProvider)
	assert.True(t, ok, "request log sits under retry")

	cfg.Provider = "anthropic"
	_, err = NewProvider(ctx, cfg, nil)
	assert.Error(t, err, "missing key")

	_, err = NewProvider(ctx, Config{Provider: "nope"}, nil)
	assert.Error(t, err)
}

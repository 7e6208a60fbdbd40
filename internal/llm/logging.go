package llm

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/abhisek/sous/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// SetLogger replaces the package logger. Nil is ignored.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

type purposeKey struct{}

// WithPurpose labels requests made with ctx, e.g. "skill-assessment", so
// the request log can be grouped by feature.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFrom returns the label set by WithPurpose, or "unknown".
func PurposeFrom(ctx context.Context) string {
	if p, ok := ctx.Value(purposeKey{}).(string); ok && p != "" {
		return p
	}
	return "unknown"
}

// LoggingProvider appends every request, successful or not, to the LLM
// event log. A failing log write is reported but never fails the request.
type LoggingProvider struct {
	inner  Provider
	events store.EventRepo
}

func WithLogging(p Provider, events store.EventRepo) Provider {
	return &LoggingProvider{inner: p, events: events}
}

func (l *LoggingProvider) ModelID() string { return l.inner.ModelID() }
func (l *LoggingProvider) Name() string    { return ProviderName(l.inner) }

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	ev := store.LLMRequestEventData{
		Provider:    l.Name(),
		Model:       l.inner.ModelID(),
		Purpose:     PurposeFrom(ctx),
		LatencyMs:   time.Since(start).Milliseconds(),
		Success:     err == nil,
		RequestBody: req.Transcript(),
	}
	if resp != nil {
		ev.Model = resp.Model
		ev.InputTokens = resp.Usage.InputTokens
		ev.OutputTokens = resp.Usage.OutputTokens
		ev.ResponseBody = string(resp.Content)
	}
	if err != nil {
		ev.ErrorMessage = err.Error()
	}

	logger.Debug("llm: request",
		slog.String("provider", ev.Provider),
		slog.String("model", ev.Model),
		slog.String("purpose", ev.Purpose),
		slog.Int64("latency_ms", ev.LatencyMs),
		slog.Bool("ok", ev.Success))

	// The request may have been cancelled; the log write should still land.
	if werr := l.events.AppendLLMRequest(context.WithoutCancel(ctx), ev); werr != nil {
		logger.Warn("llm: request log write failed", slog.String("purpose", ev.Purpose), slog.Any("err", werr))
	}
	return resp, err
}

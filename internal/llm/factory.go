package llm

import (
	"context"
	"fmt"

	"github.com/abhisek/sous/internal/store"
)

// NewProvider builds the configured backend wrapped as
// retry -> request log -> backend, so every attempt is logged.
// A nil events repo skips the request log.
func NewProvider(ctx context.Context, cfg Config, events store.EventRepo) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		base Provider
		err  error
	)
	switch cfg.Provider {
	case "mock":
		return NewMockProvider(), nil
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	}
	if err != nil {
		return nil, fmt.Errorf("llm %s: %w", cfg.Provider, err)
	}

	if events != nil {
		base = WithLogging(base, events)
	}
	return WithRetry(base, cfg.Retry).Deadline(cfg.Timeout), nil
}

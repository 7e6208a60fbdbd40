package llm

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"time"
)

// Config selects and configures one backend. Provider is one of
// "anthropic", "openai", "gemini", "openrouter" or "mock".
type Config struct {
	Provider string `yaml:"provider"`

	Anthropic  AnthropicConfig  `yaml:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Retry      RetryConfig      `yaml:"retry"`

	// Timeout bounds one Generate call including retries.
	Timeout time.Duration `yaml:"timeout"`
}

type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type OpenRouterConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// RetryConfig is an exponential backoff policy with 20% jitter.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
}

// delay returns the wait before retry number attempt (zero based).
func (rc RetryConfig) delay(attempt int) time.Duration {
	mult := rc.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := min(float64(rc.InitialWait)*math.Pow(mult, float64(attempt)), float64(rc.MaxWait))
	d *= 0.8 + 0.4*rand.Float64()
	return time.Duration(max(d, 0))
}

func DefaultConfig() Config {
	return Config{
		Provider:   "anthropic",
		Anthropic:  AnthropicConfig{Model: "claude-haiku"},
		OpenAI:     OpenAIConfig{Model: "gpt-4o-mini"},
		Gemini:     GeminiConfig{Model: "gemini-flash"},
		OpenRouter: OpenRouterConfig{Model: "google/gemini-2.0-flash-exp"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2,
		},
		Timeout: 30 * time.Second,
	}
}

// envBindings pairs SOUS_* variables with the fields they override.
func (c *Config) envBindings() []struct {
	name string
	dst  *string
} {
	return []struct {
		name string
		dst  *string
	}{
		{"SOUS_LLM_PROVIDER", &c.Provider},
		{"SOUS_ANTHROPIC_API_KEY", &c.Anthropic.APIKey},
		{"SOUS_ANTHROPIC_MODEL", &c.Anthropic.Model},
		{"SOUS_OPENAI_API_KEY", &c.OpenAI.APIKey},
		{"SOUS_OPENAI_MODEL", &c.OpenAI.Model},
		{"SOUS_OPENAI_BASE_URL", &c.OpenAI.BaseURL},
		{"SOUS_GEMINI_API_KEY", &c.Gemini.APIKey},
		{"SOUS_GEMINI_MODEL", &c.Gemini.Model},
		{"SOUS_OPENROUTER_API_KEY", &c.OpenRouter.APIKey},
		{"SOUS_OPENROUTER_MODEL", &c.OpenRouter.Model},
	}
}

// ApplyEnv overrides cfg with the SOUS_* LLM variables that are set.
func ApplyEnv(cfg *Config) {
	for _, b := range cfg.envBindings() {
		if v := os.Getenv(b.name); v != "" {
			*b.dst = v
		}
	}
}

// DiscoverConfig looks for a vendor API key in the environment, in the
// order Gemini, OpenAI, Anthropic, OpenRouter, and configures the first
// backend it finds.
func DiscoverConfig() (Config, bool) {
	cfg := DefaultConfig()
	for _, cand := range []struct {
		env, provider string
		dst           *string
	}{
		{"GEMINI_API_KEY", "gemini", &cfg.Gemini.APIKey},
		{"OPENAI_API_KEY", "openai", &cfg.OpenAI.APIKey},
		{"ANTHROPIC_API_KEY", "anthropic", &cfg.Anthropic.APIKey},
		{"OPENROUTER_API_KEY", "openrouter", &cfg.OpenRouter.APIKey},
	} {
		if k := os.Getenv(cand.env); k != "" {
			cfg.Provider = cand.provider
			*cand.dst = k
			return cfg, true
		}
	}
	return Config{}, false
}

// apiKey returns the key for the selected backend and whether the backend
// needs one at all.
func (c Config) apiKey() (key string, needed bool, err error) {
	switch c.Provider {
	case "anthropic":
		return c.Anthropic.APIKey, true, nil
	case "openai":
		return c.OpenAI.APIKey, true, nil
	case "gemini":
		return c.Gemini.APIKey, true, nil
	case "openrouter":
		return c.OpenRouter.APIKey, true, nil
	case "mock":
		return "", false, nil
	}
	return "", false, fmt.Errorf("unknown LLM provider %q", c.Provider)
}

// Validate checks that the selected backend is known and has its key.
func (c Config) Validate() error {
	key, needed, err := c.apiKey()
	if err != nil {
		return err
	}
	if needed && key == "" {
		return fmt.Errorf("llm provider %s needs an API key (set %s or %s.api_key in the config file)",
			c.Provider, envKeyName(c.Provider), c.Provider)
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("llm retry.max_attempts must not be negative")
	}
	return nil
}

func envKeyName(provider string) string {
	switch provider {
	case "openai":
		return "SOUS_OPENAI_API_KEY"
	case "gemini":
		return "SOUS_GEMINI_API_KEY"
	case "openrouter":
		return "SOUS_OPENROUTER_API_KEY"
	}
	return "SOUS_ANTHROPIC_API_KEY"
}

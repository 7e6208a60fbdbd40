package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const openRouterURL = "https://openrouter.ai/api/v1"

var openaiAliases = map[string]string{
	"gpt-mini": "gpt-4o-mini",
	"gpt":      "gpt-4o",
}

// OpenAIProvider speaks the chat completions protocol. It serves OpenAI
// itself and any compatible gateway such as OpenRouter.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	name   string
}

func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	return newChatProvider("openai", cfg.APIKey, resolveModel(cfg.Model, openaiAliases), cfg.BaseURL), nil
}

// NewOpenRouterProvider targets OpenRouter. Its model IDs are vendor
// qualified ("anthropic/claude-3-haiku") and pass through unchanged.
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openrouter: api key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = openRouterURL
	}
	return newChatProvider("openrouter", cfg.APIKey, cfg.Model, base), nil
}

func newChatProvider(name, apiKey, model, baseURL string) *OpenAIProvider {
	cc := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cc.BaseURL = baseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cc), model: model, name: name}
}

func (p *OpenAIProvider) Name() string    { return p.name }
func (p *OpenAIProvider) ModelID() string { return p.model }

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	cr := openai.ChatCompletionRequest{
		Model:               p.model,
		MaxCompletionTokens: req.MaxTokens,
		Temperature:         float32(req.Temperature),
	}
	if req.System != "" {
		cr.Messages = append(cr.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		cr.Messages = append(cr.Messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	if req.Schema != nil {
		def, err := json.Marshal(req.Schema.Definition)
		if err != nil {
			return nil, fmt.Errorf("%s: encode schema %s: %w", p.name, req.Schema.Name, err)
		}
		cr.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        req.Schema.Name,
				Description: req.Schema.Description,
				Schema:      json.RawMessage(def),
				Strict:      true,
			},
		}
	}

	out, err := p.client.CreateChatCompletion(ctx, cr)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, statusError(p.name, apiErr.HTTPStatusCode, err)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return nil, statusError(p.name, reqErr.HTTPStatusCode, err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &Error{Kind: KindUnavailable, Provider: p.name, Err: err}
	}
	if len(out.Choices) == 0 {
		return nil, &Error{Kind: KindInvalidResponse, Provider: p.name, Err: errors.New("reply has no choices")}
	}

	choice := out.Choices[0]
	stop := StopEnd
	if choice.FinishReason == openai.FinishReasonLength {
		stop = StopMaxTokens
	}
	return finish(p.name, req, json.RawMessage(choice.Message.Content), &Response{
		Usage: Usage{
			InputTokens:  out.Usage.PromptTokens,
			OutputTokens: out.Usage.CompletionTokens,
			TotalTokens:  out.Usage.TotalTokens,
		},
		Model:      out.Model,
		StopReason: stop,
	})
}

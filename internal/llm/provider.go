// Package llm talks to hosted language models on behalf of the skill
// assessor. Every backend returns schema-validated JSON; decorators add
// retries and a persistent request log.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Provider generates one structured completion.
type Provider interface {
	// Generate runs req. When req.Schema is set the returned Content has
	// already been validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	ModelID() string
}

// Named is implemented by providers that know which backend they talk to.
// Decorators forward it so the request log records the real backend.
type Named interface {
	Name() string
}

// ProviderName returns p's backend name, falling back to its model ID.
func ProviderName(p Provider) string {
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	return p.ModelID()
}

// Request is a single-turn or multi-turn prompt.
type Request struct {
	System   string
	Messages []Message

	// Schema, when set, asks the backend for JSON output and is checked
	// against the reply.
	Schema *Schema

	MaxTokens int
	// Temperature in [0, 1]. Zero leaves the backend default.
	Temperature float64
}

// Prompt is shorthand for a request with one user message.
func Prompt(system, user string) Request {
	return Request{System: system, Messages: []Message{{Role: RoleUser, Content: user}}}
}

// Transcript renders the request as plain text for the request log.
func (r Request) Transcript() string {
	var b strings.Builder
	if r.System != "" {
		fmt.Fprintf(&b, "[system]\n%s\n\n", r.System)
	}
	for _, m := range r.Messages {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", m.Role, m.Content)
	}
	if r.Schema != nil {
		if def, err := json.Marshal(r.Schema.Definition); err == nil {
			fmt.Fprintf(&b, "[schema: %s]\n%s\n", r.Schema.Name, def)
		}
	}
	return b.String()
}

type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema is a named JSON Schema. Name doubles as the OpenAI schema name and
// the validator cache key, so it must be unique per definition.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// StopReason is why generation ended, normalized across backends.
type StopReason string

const (
	StopEnd       StopReason = "end"
	StopMaxTokens StopReason = "max_tokens"
)

type Response struct {
	// Content is validated JSON when the request had a Schema, otherwise
	// the raw model text.
	Content    json.RawMessage
	Usage      Usage
	Model      string
	StopReason StopReason
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

func newUsage(in, out int) Usage {
	return Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
}

// finish is the common tail of every backend: it rejects truncated
// structured output and validates the rest against the request schema.
func finish(provider string, req Request, content json.RawMessage, resp *Response) (*Response, error) {
	resp.Content = content
	if req.Schema == nil {
		return resp, nil
	}
	if resp.StopReason == StopMaxTokens {
		return nil, &Error{Kind: KindTruncated, Provider: provider, Content: content,
			Err: fmt.Errorf("output cut at %d tokens", req.MaxTokens)}
	}
	if err := validateResponse(req.Schema, content); err != nil {
		err.Provider = provider
		return nil, err
	}
	return resp, nil
}

// resolveModel maps a short alias to a provider model ID. Unknown names
// are treated as full model IDs.
func resolveModel(name string, aliases map[string]string) string {
	if id, ok := aliases[name]; ok {
		return id
	}
	return name
}

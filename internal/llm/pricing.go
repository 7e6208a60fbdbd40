package llm

import "strings"

// ModelCost is USD per million tokens.
type ModelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost prices one request or an aggregate.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)*c.InputPerMTok + float64(outputTokens)*c.OutputPerMTok) / 1e6
}

// LookupCost returns pricing for a model ID or nil. Gateway prefixes
// ("openai/gpt-4o-mini") are ignored, and dated snapshots the backends
// report ("gpt-4o-mini-2024-07-18") match their base model.
func LookupCost(modelID string) *ModelCost {
	if _, name, ok := strings.Cut(modelID, "/"); ok {
		modelID = name
	}
	if c, ok := modelCosts[modelID]; ok {
		return &c
	}
	best := ""
	for known := range modelCosts {
		if strings.HasPrefix(modelID, known+"-") && len(known) > len(best) {
			best = known
		}
	}
	if best == "" {
		return nil
	}
	c := modelCosts[best]
	return &c
}

// Default models per backend plus common upgrades, from models.dev (2026-02).
var modelCosts = map[string]ModelCost{
	// Anthropic
	"claude-haiku-4-5-20251001":  {1, 5},
	"claude-sonnet-4-20250514":   {3, 15},
	"claude-sonnet-4-5-20250929": {3, 15},

	// OpenAI
	"gpt-4o":       {2.5, 10},
	"gpt-4o-mini":  {0.15, 0.6},
	"gpt-4.1-mini": {0.4, 1.6},

	// Google (Gemini)
	"gemini-2.0-flash":      {0.1, 0.4},
	"gemini-2.5-flash":      {0.3, 2.5},
	"gemini-2.5-flash-lite": {0.1, 0.4},
	"gemini-2.5-pro":        {1.25, 10},
}

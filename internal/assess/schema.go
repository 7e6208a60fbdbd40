package assess

import "github.com/abhisek/sous/internal/llm"

// AssessmentSchema defines the JSON schema for LLM skill assessment responses.
var AssessmentSchema = &llm.Schema{
	Name:        "skill-assessment",
	Description: "A coaching assessment of a home cook's skill with a suggested level and practice plan",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"suggested_level": map[string]any{
				"type":        "integer",
				"minimum":     0,
				"maximum":     100,
				"description": "Suggested skill level on a 0-100 scale",
			},
			"feedback": map[string]any{
				"type":        "string",
				"description": "Two or three sentences of encouraging, specific feedback",
			},
			"recommended_practice": map[string]any{
				"type":        "array",
				"minItems":    1,
				"maxItems":    5,
				"items":       map[string]any{"type": "string"},
				"description": "Concrete dishes or drills to practice next",
			},
		},
		"required":             []any{"suggested_level", "feedback", "recommended_practice"},
		"additionalProperties": false,
	},
}

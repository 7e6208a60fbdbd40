package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recipeSchema() *Schema {
	return &Schema{
		Name:        "test-recipe",
		Description: "A recipe card",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"dish":       map[string]any{"type": "string"},
				"serves":     map[string]any{"type": "integer", "minimum": 1},
				"difficulty": map[string]any{"type": "string", "enum": []any{"easy", "medium", "hard"}},
				"steps": map[string]any{
					"type":     "array",
					"minItems": 1,
					"items": map[string]any{
						"type":       "object",
						"properties": map[string]any{"text": map[string]any{"type": "string"}},
						"required":   []any{"text"},
					},
				},
			},
			"required": []any{"dish", "serves"},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"complete", `{"dish":"Omelette","serves":1,"difficulty":"easy","steps":[{"text":"Whisk"}]}`, false},
		{"optional fields omitted", `{"dish":"Risotto","serves":4}`, false},
		{"missing required", `{"dish":"Ragù"}`, true},
		{"wrong type", `{"dish":"Paella","serves":"six"}`, true},
		{"below minimum", `{"dish":"Paella","serves":0}`, true},
		{"enum outside set", `{"dish":"Soufflé","serves":2,"difficulty":"heroic"}`, true},
		{"nested item invalid", `{"dish":"Bread","serves":8,"steps":[{"note":"knead"}]}`, true},
		{"empty array", `{"dish":"Bread","serves":8,"steps":[]}`, true},
		{"malformed", `{not json}`, true},
		{"empty", ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(recipeSchema(), json.RawMessage(tt.raw))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsKind(err, KindInvalidResponse), "got %v", err)
		})
	}
}

func TestValidate_NilSchema(t *testing.T) {
	assert.NoError(t, Validate(nil, json.RawMessage(`{"anything":"goes"}`)))
}

func TestValidate_CachesCompiledSchema(t *testing.T) {
	s := recipeSchema()
	s.Name = "test-recipe-cache"
	require.NoError(t, Validate(s, json.RawMessage(`{"dish":"Pho","serves":2}`)))

	compiledMu.Lock()
	_, ok := compiled[s.Name]
	compiledMu.Unlock()
	assert.True(t, ok)
}

// Package assess turns a skill's history into an advisory assessment using
// an LLM.
package assess

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/abhisek/sous/internal/llm"
	"github.com/abhisek/sous/internal/progress"
)

// Request is the input for a skill assessment.
type Request struct {
	Skill progress.Skill
}

// Config holds configuration for the LLM recommender.
type Config struct {
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   512,
		Temperature: 0.4,
	}
}

// LLMRecommender assesses skills with an LLM provider.
type LLMRecommender struct {
	provider llm.Provider
	cfg      Config
	now      func() time.Time
}

// NewLLMRecommender creates an LLM-backed recommender.
func NewLLMRecommender(provider llm.Provider, cfg Config) *LLMRecommender {
	return &LLMRecommender{provider: provider, cfg: cfg, now: time.Now}
}

// assessmentOutput is the raw LLM response.
type assessmentOutput struct {
	SuggestedLevel      int      `json:"suggested_level"`
	Feedback            string   `json:"feedback"`
	RecommendedPractice []string `json:"recommended_practice"`
}

// Assess asks the LLM for a suggested level, feedback and practice plan.
func (r *LLMRecommender) Assess(ctx context.Context, req Request) (*progress.AssessmentResult, error) {
	ctx = llm.WithPurpose(ctx, "skill-assessment")

	userMsg, err := buildAssessmentMessage(req)
	if err != nil {
		return nil, fmt.Errorf("build assessment prompt: %w", err)
	}

	resp, err := r.provider.Generate(ctx, llm.Request{
		System: assessmentSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: userMsg},
		},
		Schema:      AssessmentSchema,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM assessment failed: %w", err)
	}

	var raw assessmentOutput
	if err := json.Unmarshal(resp.Content, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse assessment response: %w", err)
	}

	return &progress.AssessmentResult{
		SkillID:             req.Skill.ID,
		CurrentLevel:        req.Skill.Level,
		SuggestedLevel:      min(max(raw.SuggestedLevel, progress.MinLevel), progress.MaxLevel),
		Feedback:            raw.Feedback,
		RecommendedPractice: raw.RecommendedPractice,
		AssessedAt:          r.now().UTC(),
	}, nil
}

const assessmentSystemPrompt = `You are a supportive culinary coach reviewing a home cook's progress on one skill.

Instructions:
- Levels use a 0-100 scale: 0-20 novice, 21-40 beginner, 41-60 competent, 61-80 proficient, 81-100 expert.
- Base the suggested level on the level history, practice hours and endorsements. Do not jump more than 15 levels above the current level.
- Feedback must be specific to the skill and encouraging. Two or three sentences.
- Recommend between one and five concrete dishes or drills, easiest first.`

var assessmentUserTemplate = template.Must(template.New("assessment").Parse(`Skill: {{.Skill.Name}}
Current level: {{.Skill.Level}}
Practice hours: {{printf "%.1f" .Skill.PracticedHours}}
Endorsements: {{.Skill.Endorsements}}

Level history:
{{range .Skill.Checkpoints}}- {{.Date.Format "2006-01-02"}}: {{.Level}}
{{else}}- none recorded
{{end}}`))

func buildAssessmentMessage(req Request) (string, error) {
	var buf bytes.Buffer
	if err := assessmentUserTemplate.Execute(&buf, req); err != nil {
		return "", err
	}
	return buf.String(), nil
}

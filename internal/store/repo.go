package store

import (
	"context"
	"time"

	"github.com/abhisek/sous/internal/progress"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit int       // max results (0 = unlimited)
	From  time.Time // timestamp >= From
	To    time.Time // timestamp <= To
}

// GoalRepo persists goals together with their milestones and resources.
type GoalRepo interface {
	// FetchGoals returns every goal owned by ownerID, oldest first.
	FetchGoals(ctx context.Context, ownerID string) ([]progress.Goal, error)

	// SaveGoal upserts the goal and replaces its milestones and resources.
	// Any achievements are appended in the same transaction so a goal's
	// progress and the events it produced are never persisted apart.
	SaveGoal(ctx context.Context, g progress.Goal, emitted ...progress.Achievement) (progress.Goal, error)

	// RemoveGoal deletes the goal and, by cascade, its milestones and
	// resources. Removing an unknown goal is not an error.
	RemoveGoal(ctx context.Context, ownerID, goalID string) error
}

// SkillRepo persists skills and their checkpoints.
type SkillRepo interface {
	FetchSkills(ctx context.Context, ownerID string) ([]progress.Skill, error)
	SaveSkill(ctx context.Context, s progress.Skill, emitted ...progress.Achievement) (progress.Skill, error)
}

// AchievementRepo provides append and query access to the timeline log.
type AchievementRepo interface {
	// FetchAchievements returns the owner's achievements in insertion order.
	FetchAchievements(ctx context.Context, ownerID string, opts QueryOpts) ([]progress.Achievement, error)
	AppendAchievement(ctx context.Context, a progress.Achievement) (progress.Achievement, error)
}

// Persistence is everything the engine needs from its storage collaborator.
type Persistence interface {
	GoalRepo
	SkillRepo
	AchievementRepo
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEventRecord is a stored LLM request event.
type LLMRequestEventRecord struct {
	LLMRequestEventData
	ID        int
	Sequence  int64
	Timestamp time.Time
}

// EventRepo records and inspects LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEventRecord, error)

	// GetLLMEvent returns a single event, or nil if it doesn't exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEventRecord, error)

	// LLMUsageByPurpose aggregates calls and tokens per purpose.
	LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStats, error)

	// LLMUsageByModel aggregates calls and tokens per model.
	LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error)
}

// LLMUsageStats is per-purpose LLM usage.
type LLMUsageStats struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// LLMModelUsage is per-model LLM usage.
type LLMModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

var (
	_ Persistence = (*Store)(nil)
	_ EventRepo   = (*eventRepo)(nil)
)

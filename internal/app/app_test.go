package app

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/sous/internal/config"
	"github.com/abhisek/sous/internal/goals"
	"github.com/abhisek/sous/internal/progress"
	"github.com/abhisek/sous/internal/skills"
	"github.com/abhisek/sous/internal/store"
	"github.com/abhisek/sous/internal/timeline"
)

type celebrations struct {
	mu     sync.Mutex
	titles []string
}

func (c *celebrations) Celebrate(_ context.Context, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles = append(c.titles, title)
}

func achievementIDs(entries []progress.Achievement) []string {
	out := make([]string, len(entries))
	for i, a := range entries {
		out[i] = a.ID
	}
	return out
}

func openStore(t *testing.T, path string) *store.Store {
	t.Helper()
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEngine_GoalLifecycleSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sous.db")
	cel := &celebrations{}

	e := NewEngine(openStore(t, path), Options{Notifier: cel})
	require.NoError(t, e.Load(ctx, "alice"))

	g, err := e.Goals.CreateGoal(ctx, "alice", goals.GoalInput{
		Title: "Laminated dough", Category: progress.CategoryPastry, Description: "Croissants at home",
	})
	require.NoError(t, err)

	var ids []string
	for _, title := range []string{"Make détrempe", "Lock in butter"} {
		m, err := e.Tracker.AddMilestone(ctx, "alice", g.ID, title)
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}
	for _, id := range ids {
		_, err := e.Tracker.ToggleMilestone(ctx, "alice", g.ID, id)
		require.NoError(t, err)
	}
	e.Wait()
	assert.Equal(t, []string{"Laminated dough"}, cel.titles)

	sk, err := e.Skills.AssessSkill(ctx, "alice", "Lamination", 30)
	require.NoError(t, err)
	_, err = e.Skills.EndorseSkill(ctx, "alice", sk.ID)
	require.NoError(t, err)

	before := slices.Collect(e.Timeline.Query("alice", timeline.Filter{}))
	require.NoError(t, e.Close())

	// A fresh engine over the same database sees the same state.
	e2 := NewEngine(openStore(t, path), Options{})
	require.NoError(t, e2.Load(ctx, "alice"))

	got, err := e2.Goals.Goal("alice", g.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)
	assert.Len(t, got.Milestones, 2)

	after := slices.Collect(e2.Timeline.Query("alice", timeline.Filter{}))
	assert.ElementsMatch(t, achievementIDs(before), achievementIDs(after))

	sum := e2.Summary("alice")
	assert.Equal(t, Summary{Goals: 1, CompletedGoals: 1, Skills: 1, Achievements: len(before)}, sum)

	// Another owner sees nothing.
	require.NoError(t, e2.Load(ctx, "bob"))
	assert.Equal(t, Summary{}, e2.Summary("bob"))
}

func TestEngine_DeleteLeavesNoOrphans(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "sous.db"))
	e := NewEngine(s, Options{})

	g, err := e.Goals.CreateGoal(ctx, "alice", goals.GoalInput{Title: "Stocks", Category: progress.CategoryTechnique, Description: "Clear brown stock"})
	require.NoError(t, err)
	_, err = e.Tracker.AddMilestone(ctx, "alice", g.ID, "Brown stock")
	require.NoError(t, err)
	_, err = e.Goals.AddResource(ctx, "alice", g.ID, goals.ResourceInput{
		Type: progress.ResourceArticle, Title: "Stock basics", URL: "https://example.com/stock",
	})
	require.NoError(t, err)

	require.NoError(t, e.Goals.DeleteGoal(ctx, "alice", g.ID))

	for _, table := range []string{"goals", "milestones", "resources"} {
		var n int
		require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Zero(t, n, table)
	}
	_, err = e.Goals.Goal("alice", g.ID)
	assert.True(t, progress.IsNotFound(err))
}

func TestEngine_RefreshWithoutRecommender(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(openStore(t, filepath.Join(t.TempDir(), "sous.db")), Options{})

	sk, err := e.Skills.AssessSkill(ctx, "alice", "Knife work", 20)
	require.NoError(t, err)
	_, err = e.Skills.Refresh(ctx, "alice", sk.ID)
	assert.ErrorIs(t, err, skills.ErrNoRecommender)
}

func TestOpen_WithMockProvider(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg := config.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "nested", "sous.db")
	cfg.LLM.Provider = "mock"

	var console bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	e, err := Open(context.Background(), &cfg, logger, &console)
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	require.NoError(t, e.Load(ctx, "alice"))
	g, err := e.Goals.CreateGoal(ctx, "alice", goals.GoalInput{Title: "Sourdough", Category: progress.CategoryBaking, Description: "Open crumb"})
	require.NoError(t, err)
	m, err := e.Tracker.AddMilestone(ctx, "alice", g.ID, "Feed starter")
	require.NoError(t, err)
	_, err = e.Tracker.ToggleMilestone(ctx, "alice", g.ID, m.ID)
	require.NoError(t, err)
	e.Wait()

	assert.Contains(t, console.String(), "Sourdough")
}

// Package app wires the progress engine together: persistence, the
// achievement timeline, goal and skill services, celebrations and the
// optional LLM recommender.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/sous/internal/assess"
	"github.com/abhisek/sous/internal/celebrate"
	"github.com/abhisek/sous/internal/config"
	"github.com/abhisek/sous/internal/goals"
	"github.com/abhisek/sous/internal/llm"
	"github.com/abhisek/sous/internal/progress"
	"github.com/abhisek/sous/internal/skills"
	"github.com/abhisek/sous/internal/store"
	"github.com/abhisek/sous/internal/timeline"
)

// Engine is the composed set of services an owner interacts with.
type Engine struct {
	Goals    *goals.Manager
	Tracker  *goals.Tracker
	Skills   *skills.Service
	Timeline *timeline.Timeline

	trigger *celebrate.Trigger
	closer  io.Closer
}

// Options configures NewEngine.
type Options struct {
	// Notifier receives goal completions. Nil disables celebrations.
	Notifier celebrate.Notifier
	// Recommender backs skill assessment refreshes. Nil disables them.
	Recommender skills.Recommender
}

// NewEngine builds an engine over any persistence implementation.
func NewEngine(p store.Persistence, opts Options) *Engine {
	tl := timeline.New(p)
	trigger := celebrate.NewTrigger(opts.Notifier)
	mgr := goals.NewManager(p, tl, trigger)
	return &Engine{
		Goals:    mgr,
		Tracker:  mgr.Tracker(),
		Skills:   skills.NewService(p, tl, opts.Recommender),
		Timeline: tl,
		trigger:  trigger,
	}
}

// Open opens the SQLite store named by cfg and builds an engine on it.
// Celebrations are logged and, when console is non-nil, printed there.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, console io.Writer) (*Engine, error) {
	SetLogger(logger)

	dbPath := cfg.DBPath
	if dbPath == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
		dbPath = p
	} else if err := store.EnsureDir(dbPath); err != nil {
		return nil, err
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}

	notifiers := celebrate.Multi{celebrate.LogNotifier{Logger: logger}}
	if console != nil {
		notifiers = append(notifiers, celebrate.NewConsoleNotifier(console))
	}

	var rec skills.Recommender
	if llmCfg, ok := cfg.ResolveLLM(); ok {
		provider, err := llm.NewProvider(ctx, llmCfg, s.EventRepo())
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("llm: %w", err)
		}
		rec = assess.NewLLMRecommender(provider, cfg.AssessorConfig())
		logger.Debug("assessment recommender enabled", slog.String("provider", llmCfg.Provider))
	}

	e := NewEngine(s, Options{Notifier: notifiers, Recommender: rec})
	e.closer = s
	return e, nil
}

// Load reads the owner's goals, skills and timeline from persistence.
func (e *Engine) Load(ctx context.Context, ownerID string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.Timeline.Load(ctx, ownerID)
	})
	g.Go(func() error {
		_, err := e.Goals.Load(ctx, ownerID)
		return err
	})
	g.Go(func() error {
		_, err := e.Skills.Load(ctx, ownerID)
		return err
	})
	return g.Wait()
}

// Summary is an owner's aggregate standing.
type Summary struct {
	Goals          int `json:"goals"`
	CompletedGoals int `json:"completed_goals"`
	Skills         int `json:"skills"`
	Achievements   int `json:"achievements"`
}

// Summary counts the owner's loaded goals, skills and achievements.
func (e *Engine) Summary(ownerID string) Summary {
	var s Summary
	for _, g := range e.Goals.Goals(ownerID) {
		s.Goals++
		if g.State() == progress.StateCompleted {
			s.CompletedGoals++
		}
	}
	s.Skills = len(e.Skills.Skills(ownerID))
	s.Achievements = e.Timeline.Len(ownerID)
	return s
}

// Wait blocks until in-flight celebrations finish.
func (e *Engine) Wait() {
	e.trigger.Wait()
}

// Close waits for celebrations and releases the store, if Open created it.
func (e *Engine) Close() error {
	e.Wait()
	if e.closer != nil {
		return e.closer.Close()
	}
	return nil
}

// SetLogger installs l in every engine package.
func SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	timeline.SetLogger(l)
	goals.SetLogger(l)
	skills.SetLogger(l)
	celebrate.SetLogger(l)
	llm.SetLogger(l)
}

// Package goals manages an owner's goals, their milestones and resources.
//
// Every mutation is applied to local state first and then persisted. While
// the save is in flight readers see the optimistic state; if the save fails
// the prior state is restored and the caller gets a PersistenceError.
package goals

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/abhisek/sous/internal/celebrate"
	"github.com/abhisek/sous/internal/progress"
	"github.com/abhisek/sous/internal/store"
	"github.com/abhisek/sous/internal/timeline"
)

// package-level logger; can be replaced via SetLogger
var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// SetLogger installs a logger for the goals package. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

type entry struct {
	goal    progress.Goal
	version uint64
}

// ownerGoals is the local state for one owner.
type ownerGoals struct {
	// writeMu serializes commits so saves reach persistence in the order
	// they were applied locally. Deletes do not take it.
	writeMu sync.Mutex

	entries    map[string]*entry
	order      []string
	tombstones map[string]struct{}
}

// collection is the owner-scoped goal state shared by Manager and Tracker.
type collection struct {
	repo     store.GoalRepo
	timeline *timeline.Timeline
	trigger  *celebrate.Trigger
	now      func() time.Time

	mu     sync.Mutex
	owners map[string]*ownerGoals
}

// mutation edits a working copy of a goal and returns the timeline entries
// the edit produces. Returning an error aborts the commit before anything is
// persisted.
type mutation func(g *progress.Goal) ([]progress.Achievement, error)

func (c *collection) owner(ownerID string) *ownerGoals {
	o, ok := c.owners[ownerID]
	if !ok {
		o = &ownerGoals{
			entries:    make(map[string]*entry),
			tombstones: make(map[string]struct{}),
		}
		c.owners[ownerID] = o
	}
	return o
}

func (c *collection) lockedOwner(ownerID string) *ownerGoals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner(ownerID)
}

func checkOwner(ownerID string) error {
	if ownerID == "" {
		return &progress.InvariantViolation{Field: "owner_id", Reason: "must not be empty"}
	}
	return nil
}

func (c *collection) load(ctx context.Context, ownerID string) ([]progress.Goal, error) {
	if err := checkOwner(ownerID); err != nil {
		return nil, err
	}
	o := c.lockedOwner(ownerID)
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	fetched, err := c.repo.FetchGoals(ctx, ownerID)
	if err != nil {
		return nil, &progress.PersistenceError{Op: "fetch goals", Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	o.entries = make(map[string]*entry, len(fetched))
	o.order = o.order[:0]
	o.tombstones = make(map[string]struct{})
	out := make([]progress.Goal, 0, len(fetched))
	for _, g := range fetched {
		if prev := g.Recompute(); prev != g.Progress {
			logger.Warn("goals: stored progress disagreed with milestones",
				slog.String("goal", g.ID), slog.Int("stored", prev), slog.Int("derived", g.Progress))
		}
		o.entries[g.ID] = &entry{goal: g}
		o.order = append(o.order, g.ID)
		out = append(out, g.Clone())
	}
	return out, nil
}

func (c *collection) get(ownerID, goalID string) (progress.Goal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.owners[ownerID]
	if !ok {
		return progress.Goal{}, &progress.NotFoundError{Kind: "goal", ID: goalID}
	}
	e, ok := o.entries[goalID]
	if !ok {
		return progress.Goal{}, &progress.NotFoundError{Kind: "goal", ID: goalID}
	}
	return e.goal.Clone(), nil
}

func (c *collection) list(ownerID string) []progress.Goal {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.owners[ownerID]
	if !ok {
		return nil
	}
	out := make([]progress.Goal, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.entries[id].goal.Clone())
	}
	return out
}

// insert adds a brand-new goal and persists it.
func (c *collection) insert(ctx context.Context, g progress.Goal) (progress.Goal, error) {
	o := c.lockedOwner(g.OwnerID)
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	c.mu.Lock()
	o.entries[g.ID] = &entry{goal: g, version: 1}
	o.order = append(o.order, g.ID)
	c.mu.Unlock()

	_, err := c.repo.SaveGoal(ctx, g.Clone())

	c.mu.Lock()
	if _, gone := o.tombstones[g.ID]; gone {
		c.mu.Unlock()
		return progress.Goal{}, c.discardDeleted(ctx, g.OwnerID, g.ID, err)
	}
	if err != nil {
		o.remove(g.ID)
		c.mu.Unlock()
		logger.Warn("goals: create failed, rolled back", slog.String("goal", g.ID), slog.Any("err", err))
		return progress.Goal{}, &progress.PersistenceError{Op: "save goal", Err: err}
	}
	c.mu.Unlock()
	return g.Clone(), nil
}

// commit applies fn to the goal optimistically, persists the result together
// with the staged timeline entries, and settles local state on the outcome.
func (c *collection) commit(ctx context.Context, ownerID, goalID string, fn mutation) (progress.Goal, error) {
	if err := checkOwner(ownerID); err != nil {
		return progress.Goal{}, err
	}
	o := c.lockedOwner(ownerID)
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	c.mu.Lock()
	e, ok := o.entries[goalID]
	if !ok {
		c.mu.Unlock()
		return progress.Goal{}, &progress.NotFoundError{Kind: "goal", ID: goalID}
	}
	prior := e.goal.Clone()
	working := e.goal.Clone()
	emitted, err := fn(&working)
	if err != nil {
		c.mu.Unlock()
		if progress.IsInvariantViolation(err) {
			logger.Warn("goals: rejected mutation", slog.String("goal", goalID), slog.Any("err", err))
		}
		return progress.Goal{}, err
	}
	prev := working.Recompute()
	working.UpdatedAt = c.now().UTC()
	for i := range emitted {
		emitted[i].OwnerID = ownerID
		emitted[i].GoalID = goalID
		if emitted[i].Date.IsZero() {
			emitted[i].Date = working.UpdatedAt
		}
	}
	staged, err := c.timeline.Stage(emitted...)
	if err != nil {
		c.mu.Unlock()
		return progress.Goal{}, err
	}
	e.goal = working
	e.version++
	version := e.version
	c.mu.Unlock()

	_, err = c.repo.SaveGoal(ctx, working.Clone(), staged...)

	c.mu.Lock()
	if _, gone := o.tombstones[goalID]; gone {
		c.mu.Unlock()
		if err != nil {
			c.timeline.Rollback(ownerID, ids(staged)...)
		}
		return progress.Goal{}, c.discardDeleted(ctx, ownerID, goalID, err)
	}
	if err != nil {
		if cur, ok := o.entries[goalID]; ok && cur.version == version {
			cur.goal = prior
			cur.version++
		}
		c.mu.Unlock()
		c.timeline.Rollback(ownerID, ids(staged)...)
		logger.Warn("goals: save failed, rolled back",
			slog.String("goal", goalID), slog.Int("staged", len(staged)), slog.Any("err", err))
		return progress.Goal{}, &progress.PersistenceError{Op: "save goal", Err: err}
	}
	c.mu.Unlock()

	if c.trigger != nil {
		c.trigger.Inspect(working, prev, version)
	}
	return working.Clone(), nil
}

// discardDeleted handles a save that finished after the goal was deleted.
// The response is dropped and, if the save went through, the delete is
// issued again so the deletion wins.
func (c *collection) discardDeleted(ctx context.Context, ownerID, goalID string, saveErr error) error {
	if saveErr == nil {
		if err := c.repo.RemoveGoal(ctx, ownerID, goalID); err != nil {
			logger.Warn("goals: re-issued delete failed", slog.String("goal", goalID), slog.Any("err", err))
			return &progress.PersistenceError{Op: "remove goal", Err: err}
		}
	}
	return &progress.NotFoundError{Kind: "goal", ID: goalID}
}

func (c *collection) delete(ctx context.Context, ownerID, goalID string) error {
	if err := checkOwner(ownerID); err != nil {
		return err
	}
	c.mu.Lock()
	o := c.owner(ownerID)
	e, ok := o.entries[goalID]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	removed := e.goal
	pos := slices.Index(o.order, goalID)
	o.remove(goalID)
	o.tombstones[goalID] = struct{}{}
	c.mu.Unlock()

	if err := c.repo.RemoveGoal(ctx, ownerID, goalID); err != nil {
		c.mu.Lock()
		delete(o.tombstones, goalID)
		o.entries[goalID] = &entry{goal: removed, version: e.version + 1}
		o.order = slices.Insert(o.order, min(pos, len(o.order)), goalID)
		c.mu.Unlock()
		logger.Warn("goals: delete failed, restored", slog.String("goal", goalID), slog.Any("err", err))
		return &progress.PersistenceError{Op: "remove goal", Err: err}
	}

	if c.trigger != nil {
		c.trigger.Forget(goalID)
	}
	return nil
}

func (o *ownerGoals) remove(goalID string) {
	delete(o.entries, goalID)
	o.order = slices.DeleteFunc(o.order, func(id string) bool { return id == goalID })
}

func ids(entries []progress.Achievement) []string {
	out := make([]string, len(entries))
	for i, a := range entries {
		out[i] = a.ID
	}
	return out
}

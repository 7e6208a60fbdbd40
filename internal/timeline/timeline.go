// Package timeline keeps the append-only achievement log for each owner.
package timeline

import (
	"cmp"
	"context"
	"iter"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/sous/internal/progress"
	"github.com/abhisek/sous/internal/store"
)

// package-level logger; can be replaced via SetLogger
var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// SetLogger installs a logger for the timeline package. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Filter narrows a Query. Zero bounds are open; an empty Categories slice
// matches every category.
type Filter struct {
	From       time.Time
	To         time.Time
	Categories []progress.AchievementType
}

// Timeline is the in-memory view of every owner's achievement log, backed by
// an AchievementRepo.
type Timeline struct {
	repo store.AchievementRepo
	now  func() time.Time

	mu   sync.RWMutex
	logs map[string][]progress.Achievement // insertion order per owner
	seq  int64
}

// New creates a Timeline. A nil repo keeps the log in memory only.
func New(repo store.AchievementRepo) *Timeline {
	return &Timeline{
		repo: repo,
		now:  time.Now,
		logs: make(map[string][]progress.Achievement),
	}
}

// Load replaces the owner's log with what persistence holds.
func (t *Timeline) Load(ctx context.Context, ownerID string) error {
	if t.repo == nil {
		return nil
	}
	entries, err := t.repo.FetchAchievements(ctx, ownerID, store.QueryOpts{})
	if err != nil {
		return &progress.PersistenceError{Op: "fetch achievements", Err: err}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, a := range entries {
		t.seq = max(t.seq, a.Sequence)
	}
	t.logs[ownerID] = entries
	return nil
}

// Record stamps a and appends it to the log, persisting it on its own.
// Entries produced by goal or skill commits go through Stage instead so they
// are saved together with the change that produced them.
func (t *Timeline) Record(ctx context.Context, a progress.Achievement) (progress.Achievement, error) {
	staged, err := t.Stage(a)
	if err != nil {
		return progress.Achievement{}, err
	}
	a = staged[0]

	if t.repo == nil {
		return a, nil
	}
	if _, err := t.repo.AppendAchievement(ctx, a); err != nil {
		t.Rollback(a.OwnerID, a.ID)
		logger.Warn("timeline: append failed, entry rolled back",
			slog.String("owner", a.OwnerID), slog.String("id", a.ID), slog.Any("err", err))
		return progress.Achievement{}, &progress.PersistenceError{Op: "append achievement", Err: err}
	}
	return a, nil
}

// Stage validates and stamps entries with an ID, icon, date and sequence,
// then appends them to the in-memory log without persisting. The caller owns
// persistence and must Rollback the entries if it fails.
func (t *Timeline) Stage(entries ...progress.Achievement) ([]progress.Achievement, error) {
	for _, a := range entries {
		if a.OwnerID == "" {
			return nil, &progress.InvariantViolation{Field: "owner_id", Reason: "must not be empty"}
		}
		if a.Title == "" {
			return nil, &progress.InvariantViolation{Field: "title", Reason: "must not be empty"}
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]progress.Achievement, len(entries))
	for i, a := range entries {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.Date.IsZero() {
			a.Date = t.now()
		}
		a.Date = a.Date.UTC()
		a.Icon = a.Type.Icon()
		t.seq++
		a.Sequence = t.seq
		t.logs[a.OwnerID] = append(t.logs[a.OwnerID], a)
		out[i] = a
	}
	return out, nil
}

// Rollback removes staged entries whose persistence failed. Unknown ids are
// ignored.
func (t *Timeline) Rollback(ownerID string, ids ...string) {
	if len(ids) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logs[ownerID] = slices.DeleteFunc(t.logs[ownerID], func(a progress.Achievement) bool {
		return slices.Contains(ids, a.ID)
	})
}

// Query returns the owner's entries matching f, newest first with ties kept
// in insertion order. Each iteration reads a fresh snapshot of the log, so the
// sequence can be ranged over more than once.
func (t *Timeline) Query(ownerID string, f Filter) iter.Seq[progress.Achievement] {
	return func(yield func(progress.Achievement) bool) {
		t.mu.RLock()
		snapshot := slices.Clone(t.logs[ownerID])
		t.mu.RUnlock()

		slices.SortStableFunc(snapshot, func(a, b progress.Achievement) int {
			if c := b.Date.Compare(a.Date); c != 0 {
				return c
			}
			return cmp.Compare(a.Sequence, b.Sequence)
		})

		for _, a := range snapshot {
			if !f.matches(a) {
				continue
			}
			if !yield(a) {
				return
			}
		}
	}
}

// Len returns the number of entries in the owner's log.
func (t *Timeline) Len(ownerID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.logs[ownerID])
}

// Category infers the timeline category an entry is filed under.
func Category(a progress.Achievement) progress.AchievementType {
	return a.Type
}

func (f Filter) matches(a progress.Achievement) bool {
	if !f.From.IsZero() && a.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && a.Date.After(f.To) {
		return false
	}
	return len(f.Categories) == 0 || slices.Contains(f.Categories, Category(a))
}

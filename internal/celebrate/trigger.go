// Package celebrate fires a one-shot signal when a goal reaches 100%.
package celebrate

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/abhisek/sous/internal/progress"
)

// package-level logger; can be replaced via SetLogger
var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// SetLogger installs a logger for the celebrate package. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// DefaultTimeout bounds a single notifier call.
const DefaultTimeout = 10 * time.Second

// Trigger inspects committed goal transitions and dispatches a celebration
// for each transition into the completed state.
type Trigger struct {
	notifier Notifier
	timeout  time.Duration

	mu   sync.Mutex
	seen map[string]uint64 // goal id -> commit number of the last celebration
	wg   sync.WaitGroup
}

// NewTrigger creates a Trigger. A nil notifier makes Inspect a pure check.
func NewTrigger(n Notifier) *Trigger {
	return &Trigger{
		notifier: n,
		timeout:  DefaultTimeout,
		seen:     make(map[string]uint64),
	}
}

// Inspect reports whether the committed goal g crossed into completion from
// prevProgress and, if so, dispatches the notifier without blocking the
// caller. commit identifies the goal's commit and must grow with every
// commit of that goal; inspecting the same commit twice fires once.
func (t *Trigger) Inspect(g progress.Goal, prevProgress int, commit uint64) bool {
	if !progress.IsNewlyCompleted(prevProgress, g.Progress) {
		return false
	}

	t.mu.Lock()
	if last, ok := t.seen[g.ID]; ok && last == commit {
		t.mu.Unlock()
		return false
	}
	t.seen[g.ID] = commit
	t.mu.Unlock()

	if t.notifier == nil {
		return true
	}

	t.wg.Add(1)
	go func(title string) {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("celebrate: notifier panicked", slog.Any("panic", r), slog.String("goal", title))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		t.notifier.Celebrate(ctx, title)
	}(g.Title)
	return true
}

// Forget drops the commit history for a goal, e.g. after it is deleted.
func (t *Trigger) Forget(goalID string) {
	t.mu.Lock()
	delete(t.seen, goalID)
	t.mu.Unlock()
}

// Wait blocks until every dispatched notification has returned.
func (t *Trigger) Wait() {
	t.wg.Wait()
}

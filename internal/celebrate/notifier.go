package celebrate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/abhisek/sous/internal/ui/theme"
)

// Notifier is told when a goal has just been completed.
type Notifier interface {
	Celebrate(ctx context.Context, goalTitle string)
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, goalTitle string)

func (f Func) Celebrate(ctx context.Context, goalTitle string) { f(ctx, goalTitle) }

// Multi fans a celebration out to every notifier in order.
type Multi []Notifier

func (m Multi) Celebrate(ctx context.Context, goalTitle string) {
	for _, n := range m {
		if n != nil {
			n.Celebrate(ctx, goalTitle)
		}
	}
}

// LogNotifier records celebrations as structured log lines.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Celebrate(ctx context.Context, goalTitle string) {
	l := n.Logger
	if l == nil {
		l = logger
	}
	l.InfoContext(ctx, "goal completed", slog.String("goal", goalTitle))
}

// ConsoleNotifier prints a banner to a terminal.
type ConsoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleNotifier creates a ConsoleNotifier writing to w.
func NewConsoleNotifier(w io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{w: w}
}

func (n *ConsoleNotifier) Celebrate(_ context.Context, goalTitle string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, Banner(goalTitle))
}

// Banner renders the celebration shown when a goal reaches 100%.
func Banner(goalTitle string) string {
	return theme.Banner.Render(fmt.Sprintf("🎉 Goal complete!\n%s", goalTitle))
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/sous/internal/app"
	"github.com/abhisek/sous/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "sous",
	Short: "Track cooking goals and skills",
	Long: "sous tracks cooking goals broken into milestones, skill levels with practice and\n" +
		"endorsements, and a timeline of everything achieved along the way.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides SOUS_DB env var)")
	rootCmd.PersistentFlags().String("owner", "", "Owner id to act as (overrides SOUS_OWNER env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default $XDG_CONFIG_HOME/sous/config.yaml)")

	rootCmd.AddCommand(goalCmd)
	rootCmd.AddCommand(milestoneCmd)
	rootCmd.AddCommand(resourceCmd)
	rootCmd.AddCommand(skillCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and environment, then applies the
// persistent flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DBPath = p
	}
	if o, _ := cmd.Flags().GetString("owner"); o != "" {
		cfg.Owner = o
	}
	return cfg, nil
}

// session is an engine loaded for one owner.
type session struct {
	cfg    *config.Config
	engine *app.Engine
	owner  string
}

// withSession opens the engine, loads the owner's state and runs fn.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Owner == "" {
		return fmt.Errorf("no owner: pass --owner or set SOUS_OWNER")
	}

	logger, _ := config.NewLogger(os.Stderr, cfg.Log)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e, err := app.Open(ctx, cfg, logger, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer e.Close()

	if err := e.Load(ctx, cfg.Owner); err != nil {
		return fmt.Errorf("load %s: %w", cfg.Owner, err)
	}
	return fn(ctx, &session{cfg: cfg, engine: e, owner: cfg.Owner})
}

// parseDay parses a YYYY-MM-DD date in UTC.
func parseDay(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// matchID resolves ref against ids: an exact match wins, otherwise ref must
// be a unique prefix.
func matchID(kind, ref string, ids []string) (string, error) {
	var found []string
	for _, id := range ids {
		if id == ref {
			return id, nil
		}
		if strings.HasPrefix(id, ref) {
			found = append(found, id)
		}
	}
	switch len(found) {
	case 0:
		return ref, nil // let the engine report not found
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%s id %q is ambiguous (%d matches)", kind, ref, len(found))
	}
}

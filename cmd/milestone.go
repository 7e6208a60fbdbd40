package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/sous/internal/ui/components"
)

var milestoneCmd = &cobra.Command{
	Use:     "milestone",
	Aliases: []string{"ms"},
	Short:   "Add, complete, rename and remove goal milestones",
}

// milestoneIDs resolves a goal reference and a milestone reference within it.
func milestoneIDs(s *session, goalRef, msRef string) (gid, mid string, err error) {
	gid, err = goalID(s, goalRef)
	if err != nil {
		return "", "", err
	}
	g, err := s.engine.Goals.Goal(s.owner, gid)
	if err != nil {
		return "", "", err
	}
	ids := make([]string, len(g.Milestones))
	for i, m := range g.Milestones {
		ids[i] = m.ID
	}
	mid, err = matchID("milestone", msRef, ids)
	return gid, mid, err
}

var milestoneAddCmd = &cobra.Command{
	Use:   "add <goal> <title>",
	Short: "Add a milestone to a goal",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			id, err := goalID(s, args[0])
			if err != nil {
				return err
			}
			m, err := s.engine.Tracker.AddMilestone(ctx, s.owner, id, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added milestone %s  %s\n", shortID(m.ID), m.Title)
			return nil
		})
	},
}

var milestoneToggleCmd = &cobra.Command{
	Use:   "toggle <goal> <milestone>",
	Short: "Mark a milestone done, or undo it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			gid, mid, err := milestoneIDs(s, args[0], args[1])
			if err != nil {
				return err
			}
			g, err := s.engine.Tracker.ToggleMilestone(ctx, s.owner, gid, mid)
			if err != nil {
				return err
			}
			if i := g.Milestone(mid); i >= 0 {
				fmt.Fprintln(cmd.OutOrStdout(), components.Checkbox(g.Milestones[i].Title, g.Milestones[i].Completed))
			}
			fmt.Fprintln(cmd.OutOrStdout(), components.NewProgressBar(g.Title, g.Progress, true, 60).View())
			return nil
		})
	},
}

var milestoneRenameCmd = &cobra.Command{
	Use:   "rename <goal> <milestone> <title>",
	Short: "Rename a milestone",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			gid, mid, err := milestoneIDs(s, args[0], args[1])
			if err != nil {
				return err
			}
			return s.engine.Tracker.RenameMilestone(ctx, s.owner, gid, mid, strings.Join(args[2:], " "))
		})
	},
}

var milestoneRemoveCmd = &cobra.Command{
	Use:   "remove <goal> <milestone>",
	Short: "Remove a milestone",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			gid, mid, err := milestoneIDs(s, args[0], args[1])
			if err != nil {
				return err
			}
			g, err := s.engine.Tracker.RemoveMilestone(ctx, s.owner, gid, mid)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), components.NewProgressBar(g.Title, g.Progress, true, 60).View())
			return nil
		})
	},
}

func init() {
	milestoneCmd.AddCommand(milestoneAddCmd)
	milestoneCmd.AddCommand(milestoneToggleCmd)
	milestoneCmd.AddCommand(milestoneRenameCmd)
	milestoneCmd.AddCommand(milestoneRemoveCmd)
}

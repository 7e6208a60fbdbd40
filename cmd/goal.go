package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/sous/internal/goals"
	"github.com/abhisek/sous/internal/progress"
	"github.com/abhisek/sous/internal/ui/components"
	"github.com/abhisek/sous/internal/ui/theme"
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Create and manage goals",
}

func goalID(s *session, ref string) (string, error) {
	list := s.engine.Goals.Goals(s.owner)
	ids := make([]string, len(list))
	for i, g := range list {
		ids[i] = g.ID
	}
	return matchID("goal", ref, ids)
}

var goalCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a goal",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		category, _ := cmd.Flags().GetString("category")
		description, _ := cmd.Flags().GetString("description")
		deadline, _ := cmd.Flags().GetString("deadline")
		public, _ := cmd.Flags().GetBool("public")

		cat, err := progress.ParseCategory(category)
		if err != nil {
			return err
		}
		in := goals.GoalInput{Title: title, Category: cat, Description: description, Public: public}
		if deadline != "" {
			d, err := parseDay(deadline)
			if err != nil {
				return err
			}
			in.Deadline = &d
		}

		return withSession(cmd, func(ctx context.Context, s *session) error {
			g, err := s.engine.Goals.CreateGoal(ctx, s.owner, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created goal %s  %s\n", g.ID, g.Title)
			return nil
		})
	},
}

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals with their progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		var filter progress.Category
		if category != "" {
			c, err := progress.ParseCategory(category)
			if err != nil {
				return err
			}
			filter = c
		}

		return withSession(cmd, func(_ context.Context, s *session) error {
			out := cmd.OutOrStdout()
			list := s.engine.Goals.Goals(s.owner)
			n := 0
			for _, g := range list {
				if filter != "" && g.Category != filter {
					continue
				}
				if n == 0 {
					fmt.Fprintf(out, "%-8s  %-32s  %-12s  %s\n", "ID", "Title", "Category", "Progress")
					fmt.Fprintln(out, strings.Repeat("─", 80))
				}
				n++
				fmt.Fprintf(out, "%-8s  %-32s  %-12s  %s\n",
					shortID(g.ID), truncate(g.Title, 32), g.Category.DisplayName(),
					components.NewProgressBar("", g.Progress, true, 24).View())
			}
			if n == 0 {
				fmt.Fprintln(out, "No goals yet.")
				return nil
			}
			fmt.Fprintf(out, "\n%d goals\n", n)
			return nil
		})
	},
}

var goalShowCmd = &cobra.Command{
	Use:   "show <goal>",
	Short: "Show a goal with milestones and resources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(_ context.Context, s *session) error {
			id, err := goalID(s, args[0])
			if err != nil {
				return err
			}
			g, err := s.engine.Goals.Goal(s.owner, id)
			if err != nil {
				return err
			}
			printGoal(cmd.OutOrStdout(), g)
			return nil
		})
	},
}

func printGoal(out io.Writer, g progress.Goal) {
	fmt.Fprintln(out, theme.Title.Render(g.Title))
	visibility := "private"
	if g.Public {
		visibility = "public"
	}
	fmt.Fprintln(out, theme.Subtitle.Render(fmt.Sprintf("%s · %s · %s", g.Category.DisplayName(), g.State(), visibility)))
	if g.Description != "" {
		fmt.Fprintln(out, g.Description)
	}
	if g.Deadline != nil {
		fmt.Fprintf(out, "Deadline: %s\n", g.Deadline.Format(time.DateOnly))
	}
	fmt.Fprintln(out, components.NewProgressBar("Progress", g.Progress, true, 48).View())

	if len(g.Milestones) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Milestones")
		for _, m := range g.Milestones {
			fmt.Fprintf(out, "  %s  %s\n", components.Checkbox(m.Title, m.Completed), theme.Hint.Render(shortID(m.ID)))
		}
	}
	if len(g.Resources) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Resources")
		for _, r := range g.Resources {
			fmt.Fprintf(out, "  %-8s %s  %s  %s\n", r.Type, r.Title, theme.Hint.Render(r.URL), theme.Hint.Render(shortID(r.ID)))
		}
	}
}

var goalUpdateCmd = &cobra.Command{
	Use:   "update <goal>",
	Short: "Edit a goal's details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch goals.GoalPatch
		flags := cmd.Flags()
		if flags.Changed("title") {
			v, _ := flags.GetString("title")
			patch.Title = &v
		}
		if flags.Changed("description") {
			v, _ := flags.GetString("description")
			patch.Description = &v
		}
		if flags.Changed("category") {
			v, _ := flags.GetString("category")
			c, err := progress.ParseCategory(v)
			if err != nil {
				return err
			}
			patch.Category = &c
		}
		if flags.Changed("deadline") {
			v, _ := flags.GetString("deadline")
			d, err := parseDay(v)
			if err != nil {
				return err
			}
			patch.Deadline = &d
		}
		patch.ClearDeadline, _ = flags.GetBool("clear-deadline")

		return withSession(cmd, func(ctx context.Context, s *session) error {
			id, err := goalID(s, args[0])
			if err != nil {
				return err
			}
			g, err := s.engine.Goals.UpdateGoal(ctx, s.owner, id, patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated goal %s  %s\n", g.ID, g.Title)
			return nil
		})
	},
}

var goalDeleteCmd = &cobra.Command{
	Use:   "delete <goal>",
	Short: "Delete a goal with its milestones and resources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			id, err := goalID(s, args[0])
			if err != nil {
				return err
			}
			if err := s.engine.Goals.DeleteGoal(ctx, s.owner, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted goal %s\n", id)
			return nil
		})
	},
}

var goalShareCmd = &cobra.Command{
	Use:   "share <goal>",
	Short: "Make a goal public (or private with --private)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		private, _ := cmd.Flags().GetBool("private")
		return withSession(cmd, func(ctx context.Context, s *session) error {
			id, err := goalID(s, args[0])
			if err != nil {
				return err
			}
			g, err := s.engine.Goals.SetVisibility(ctx, s.owner, id, !private)
			if err != nil {
				return err
			}
			state := "public"
			if !g.Public {
				state = "private"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", g.Title, state)
			return nil
		})
	},
}

var goalExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all goals as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("out")
		return withSession(cmd, func(_ context.Context, s *session) error {
			var w io.Writer = cmd.OutOrStdout()
			if path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create %s: %w", path, err)
				}
				defer f.Close()
				w = f
			}
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(map[string]any{"goals": s.engine.Goals.Goals(s.owner)}); err != nil {
				return fmt.Errorf("encode goals: %w", err)
			}
			return enc.Close()
		})
	},
}

func init() {
	goalCreateCmd.Flags().String("title", "", "Goal title")
	goalCreateCmd.Flags().String("category", "", "One of technique, cuisine, baking, pastry, nutrition, presentation, other")
	goalCreateCmd.Flags().String("description", "", "What the goal is about")
	goalCreateCmd.Flags().String("deadline", "", "Optional deadline (YYYY-MM-DD)")
	goalCreateCmd.Flags().Bool("public", false, "Share the goal publicly")
	goalCreateCmd.MarkFlagRequired("title")
	goalCreateCmd.MarkFlagRequired("category")

	goalListCmd.Flags().String("category", "", "Only show goals in this category")

	goalUpdateCmd.Flags().String("title", "", "New title")
	goalUpdateCmd.Flags().String("category", "", "New category")
	goalUpdateCmd.Flags().String("description", "", "New description")
	goalUpdateCmd.Flags().String("deadline", "", "New deadline (YYYY-MM-DD)")
	goalUpdateCmd.Flags().Bool("clear-deadline", false, "Remove the deadline")

	goalShareCmd.Flags().Bool("private", false, "Make the goal private instead")

	goalExportCmd.Flags().StringP("out", "o", "", "Write to a file instead of stdout")

	goalCmd.AddCommand(goalCreateCmd)
	goalCmd.AddCommand(goalListCmd)
	goalCmd.AddCommand(goalShowCmd)
	goalCmd.AddCommand(goalUpdateCmd)
	goalCmd.AddCommand(goalDeleteCmd)
	goalCmd.AddCommand(goalShareCmd)
	goalCmd.AddCommand(goalExportCmd)
}

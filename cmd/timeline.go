package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/sous/internal/progress"
	"github.com/abhisek/sous/internal/timeline"
	"github.com/abhisek/sous/internal/ui/theme"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Show achievements, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		categories, _ := cmd.Flags().GetStringSlice("category")
		limit, _ := cmd.Flags().GetInt("limit")

		var f timeline.Filter
		if from != "" {
			t, err := parseDay(from)
			if err != nil {
				return err
			}
			f.From = t
		}
		if to != "" {
			t, err := parseDay(to)
			if err != nil {
				return err
			}
			f.To = t.Add(24*time.Hour - time.Nanosecond)
		}
		for _, c := range categories {
			typ, err := progress.ParseAchievementType(c)
			if err != nil {
				return err
			}
			f.Categories = append(f.Categories, typ)
		}

		return withSession(cmd, func(_ context.Context, s *session) error {
			out := cmd.OutOrStdout()
			n := 0
			for a := range s.engine.Timeline.Query(s.owner, f) {
				fmt.Fprintf(out, "%s  %s  %s\n", theme.Hint.Render(a.Date.Local().Format("2006-01-02 15:04")), a.Icon, a.Title)
				if a.Description != "" {
					fmt.Fprintf(out, "                    %s\n", theme.Subtitle.Render(a.Description))
				}
				n++
				if limit > 0 && n == limit {
					break
				}
			}
			if n == 0 {
				fmt.Fprintln(out, "Nothing on the timeline yet.")
			}
			return nil
		})
	},
}

func init() {
	timelineCmd.Flags().String("from", "", "Only entries on or after this date (YYYY-MM-DD)")
	timelineCmd.Flags().String("to", "", "Only entries on or before this date (YYYY-MM-DD)")
	timelineCmd.Flags().StringSlice("category", nil, "Only these types: milestone, achievement, social")
	timelineCmd.Flags().IntP("limit", "n", 0, "Maximum entries to show")
}

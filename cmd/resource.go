package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/sous/internal/goals"
	"github.com/abhisek/sous/internal/progress"
)

var resourceCmd = &cobra.Command{
	Use:   "resource",
	Short: "Attach reference material to goals",
}

var resourceAddCmd = &cobra.Command{
	Use:   "add <goal>",
	Short: "Attach a video, article, recipe or course to a goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		title, _ := cmd.Flags().GetString("title")
		url, _ := cmd.Flags().GetString("url")

		rt, err := progress.ParseResourceType(typ)
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, s *session) error {
			id, err := goalID(s, args[0])
			if err != nil {
				return err
			}
			r, err := s.engine.Goals.AddResource(ctx, s.owner, id, goals.ResourceInput{Type: rt, Title: title, URL: url})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s  %s\n", r.Type, shortID(r.ID), r.Title)
			return nil
		})
	},
}

var resourceRemoveCmd = &cobra.Command{
	Use:   "remove <goal> <resource>",
	Short: "Detach a resource from a goal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			gid, err := goalID(s, args[0])
			if err != nil {
				return err
			}
			g, err := s.engine.Goals.Goal(s.owner, gid)
			if err != nil {
				return err
			}
			ids := make([]string, len(g.Resources))
			for i, r := range g.Resources {
				ids[i] = r.ID
			}
			rid, err := matchID("resource", args[1], ids)
			if err != nil {
				return err
			}
			return s.engine.Goals.RemoveResource(ctx, s.owner, gid, rid)
		})
	},
}

func init() {
	resourceAddCmd.Flags().String("type", "", "One of video, article, recipe, course")
	resourceAddCmd.Flags().String("title", "", "Resource title")
	resourceAddCmd.Flags().String("url", "", "Resource URL")
	resourceAddCmd.MarkFlagRequired("type")
	resourceAddCmd.MarkFlagRequired("title")
	resourceAddCmd.MarkFlagRequired("url")

	resourceCmd.AddCommand(resourceAddCmd)
	resourceCmd.AddCommand(resourceRemoveCmd)
}

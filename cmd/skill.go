package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/sous/internal/progress"
	"github.com/abhisek/sous/internal/skills"
	"github.com/abhisek/sous/internal/ui/components"
	"github.com/abhisek/sous/internal/ui/theme"
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Assess, practice and endorse skills",
}

// skillID resolves a skill by exact id, unique id prefix or name.
func skillID(s *session, ref string) (string, error) {
	list := s.engine.Skills.Skills(s.owner)
	ids := make([]string, len(list))
	for i, sk := range list {
		if strings.EqualFold(sk.Name, ref) {
			return sk.ID, nil
		}
		ids[i] = sk.ID
	}
	return matchID("skill", ref, ids)
}

func printSkill(out io.Writer, sk progress.Skill) {
	fmt.Fprintf(out, "%-24s  %s  %s\n", truncate(sk.Name, 24), components.StarRating(sk.Level),
		theme.Hint.Render(fmt.Sprintf("%.1fh practiced · %d endorsements", sk.PracticedHours, sk.Endorsements)))
}

var skillAssessCmd = &cobra.Command{
	Use:   "assess <name>",
	Short: "Record a first self-assessment of a skill",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetInt("level")
		return withSession(cmd, func(ctx context.Context, s *session) error {
			sk, err := s.engine.Skills.AssessSkill(ctx, s.owner, strings.Join(args, " "), level)
			if err != nil {
				return err
			}
			printSkill(cmd.OutOrStdout(), sk)
			return nil
		})
	},
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List skills with their star rating",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(_ context.Context, s *session) error {
			out := cmd.OutOrStdout()
			list := s.engine.Skills.Skills(s.owner)
			if len(list) == 0 {
				fmt.Fprintln(out, "No skills yet. Start with: sous skill assess <name> --level N")
				return nil
			}
			for _, sk := range list {
				printSkill(out, sk)
			}
			return nil
		})
	},
}

var skillShowCmd = &cobra.Command{
	Use:   "show <skill>",
	Short: "Show a skill's history and cached assessment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(_ context.Context, s *session) error {
			id, err := skillID(s, args[0])
			if err != nil {
				return err
			}
			sk, err := s.engine.Skills.Skill(s.owner, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printSkill(out, sk)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Checkpoints")
			for _, c := range sk.Checkpoints {
				fmt.Fprintf(out, "  %s  %3d\n", c.Date.Local().Format("2006-01-02 15:04"), c.Level)
			}
			if res, ok := s.engine.Skills.Assessment(s.owner, id); ok {
				printAssessment(out, res)
			}
			return nil
		})
	},
}

func printAssessment(out io.Writer, res progress.AssessmentResult) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Assessment (%s)\n", res.AssessedAt.Local().Format("2006-01-02"))
	fmt.Fprintf(out, "  Suggested level: %d (current %d)\n", res.SuggestedLevel, res.CurrentLevel)
	if res.Feedback != "" {
		fmt.Fprintf(out, "  %s\n", res.Feedback)
	}
	for _, p := range res.RecommendedPractice {
		fmt.Fprintf(out, "  • %s\n", p)
	}
}

var skillPracticeCmd = &cobra.Command{
	Use:   "practice <skill>",
	Short: "Log practice time, optionally with the level reached",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var p skills.Practice
		p.Hours, _ = cmd.Flags().GetFloat64("hours")
		if cmd.Flags().Changed("level") {
			lvl, _ := cmd.Flags().GetInt("level")
			p.Level = &lvl
		}
		return withSession(cmd, func(ctx context.Context, s *session) error {
			id, err := skillID(s, args[0])
			if err != nil {
				return err
			}
			sk, err := s.engine.Skills.RecordPractice(ctx, s.owner, id, p)
			if err != nil {
				return err
			}
			printSkill(cmd.OutOrStdout(), sk)
			return nil
		})
	},
}

var skillEndorseCmd = &cobra.Command{
	Use:   "endorse <skill>",
	Short: "Record an endorsement (or withdraw one with --withdraw)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		withdraw, _ := cmd.Flags().GetBool("withdraw")
		return withSession(cmd, func(ctx context.Context, s *session) error {
			id, err := skillID(s, args[0])
			if err != nil {
				return err
			}
			var sk progress.Skill
			if withdraw {
				sk, err = s.engine.Skills.WithdrawEndorsement(ctx, s.owner, id)
			} else {
				sk, err = s.engine.Skills.EndorseSkill(ctx, s.owner, id)
			}
			if err != nil {
				return err
			}
			printSkill(cmd.OutOrStdout(), sk)
			return nil
		})
	},
}

var skillRefreshCmd = &cobra.Command{
	Use:   "refresh <skill>",
	Short: "Ask the configured LLM for a fresh assessment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			id, err := skillID(s, args[0])
			if err != nil {
				return err
			}
			res, err := s.engine.Skills.Refresh(ctx, s.owner, id)
			if err != nil {
				return err
			}
			printAssessment(cmd.OutOrStdout(), res)
			return nil
		})
	},
}

func init() {
	skillAssessCmd.Flags().Int("level", 0, "Current level, 0-100")
	skillAssessCmd.MarkFlagRequired("level")

	skillPracticeCmd.Flags().Float64("hours", 0, "Hours practiced")
	skillPracticeCmd.Flags().Int("level", 0, "Level reached during the session, 0-100")

	skillEndorseCmd.Flags().Bool("withdraw", false, "Withdraw an endorsement instead")

	skillCmd.AddCommand(skillAssessCmd)
	skillCmd.AddCommand(skillListCmd)
	skillCmd.AddCommand(skillShowCmd)
	skillCmd.AddCommand(skillPracticeCmd)
	skillCmd.AddCommand(skillEndorseCmd)
	skillCmd.AddCommand(skillRefreshCmd)
}

package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"github.com/abhisek/sous/internal/llm"
	"github.com/abhisek/sous/internal/store"
	"github.com/abhisek/sous/internal/ui/theme"
)

const stampLayout = "2006-01-02 15:04:05"

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect logged assessment requests, token usage and cost",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")
		since, _ := cmd.Flags().GetDuration("since")

		opts := store.QueryOpts{Limit: limit}
		if since > 0 {
			opts.From = time.Now().Add(-since)
		}
		return withStore(cmd, func(events store.EventRepo) error {
			recs, err := events.QueryLLMEvents(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("query events: %w", err)
			}

			t := newTable("ID", "Time", "Purpose", "Model", "In", "Out", "Ms", "OK")
			rows := 0
			for _, e := range recs {
				if purpose != "" && e.Purpose != purpose {
					continue
				}
				ok := "✓"
				if !e.Success {
					ok = "✗"
				}
				t.Row(strconv.Itoa(e.ID), e.Timestamp.Local().Format(stampLayout), e.Purpose,
					truncate(e.Model, 28), strconv.Itoa(e.InputTokens), strconv.Itoa(e.OutputTokens),
					strconv.FormatInt(e.LatencyMs, 10), ok)
				rows++
			}
			out := cmd.OutOrStdout()
			if rows == 0 {
				fmt.Fprintln(out, "No LLM requests logged.")
				return nil
			}
			fmt.Fprintln(out, t.Render())
			return nil
		})
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show the full prompt and reply of one request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("request id must be a number, got %q", args[0])
		}
		return withStore(cmd, func(events store.EventRepo) error {
			e, err := events.GetLLMEvent(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("get event: %w", err)
			}
			if e == nil {
				return fmt.Errorf("no LLM request with id %d", id)
			}
			printLLMEvent(cmd.OutOrStdout(), e)
			return nil
		})
	},
}

func printLLMEvent(out io.Writer, e *store.LLMRequestEventRecord) {
	status := "ok"
	if !e.Success {
		status = "failed: " + e.ErrorMessage
	}
	fmt.Fprintln(out, theme.Title.Render(fmt.Sprintf("Request %d", e.ID)))
	fmt.Fprintln(out, theme.Subtitle.Render(fmt.Sprintf("%s · %s/%s · %s",
		e.Timestamp.Local().Format(stampLayout), e.Provider, e.Model, e.Purpose)))
	fmt.Fprintf(out, "%d tokens in, %d out, %dms, %s\n", e.InputTokens, e.OutputTokens, e.LatencyMs, status)

	for _, part := range []struct{ title, body string }{
		{"Prompt", e.RequestBody},
		{"Reply", e.ResponseBody},
	} {
		fmt.Fprintln(out)
		fmt.Fprintln(out, theme.Title.Render(part.title))
		if strings.TrimSpace(part.body) == "" {
			fmt.Fprintln(out, theme.Hint.Render("(not captured)"))
			continue
		}
		fmt.Fprintln(out, strings.TrimRight(part.body, "\n"))
	}
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show token usage by purpose and estimated cost by model",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(events store.EventRepo) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			byPurpose, err := events.LLMUsageByPurpose(ctx)
			if err != nil {
				return fmt.Errorf("usage by purpose: %w", err)
			}
			if len(byPurpose) == 0 {
				fmt.Fprintln(out, "No LLM usage recorded yet.")
				return nil
			}
			byModel, err := events.LLMUsageByModel(ctx)
			if err != nil {
				return fmt.Errorf("usage by model: %w", err)
			}

			fmt.Fprintln(out, theme.Title.Render("Usage by purpose"))
			fmt.Fprintln(out, usageTable(byPurpose).Render())
			fmt.Fprintln(out)
			fmt.Fprintln(out, theme.Title.Render("Estimated cost (USD)"))
			t, unpriced := costTable(byModel)
			fmt.Fprintln(out, t.Render())
			if len(unpriced) > 0 {
				fmt.Fprintln(out, theme.Hint.Render("No pricing for: "+strings.Join(unpriced, ", ")))
			}
			return nil
		})
	},
}

func usageTable(stats []store.LLMUsageStats) *table.Table {
	t := newTable("Purpose", "Calls", "Input", "Output", "Total", "Avg ms")
	var sum store.LLMUsageStats
	for _, st := range stats {
		t.Row(st.Purpose, itoa(st.Calls), itoa(st.InputTokens), itoa(st.OutputTokens),
			itoa(st.InputTokens+st.OutputTokens), strconv.FormatInt(st.AvgLatencyMs, 10))
		sum.Calls += st.Calls
		sum.InputTokens += st.InputTokens
		sum.OutputTokens += st.OutputTokens
	}
	return t.Row("TOTAL", itoa(sum.Calls), itoa(sum.InputTokens), itoa(sum.OutputTokens),
		itoa(sum.InputTokens+sum.OutputTokens), "")
}

// costTable prices each model's usage. Models without a known price show
// "?" and make the total partial.
func costTable(usage []store.LLMModelUsage) (*table.Table, []string) {
	t := newTable("Model", "Calls", "Input", "Output", "Cost")
	var (
		total    float64
		unpriced []string
	)
	for _, mu := range usage {
		cost := "?"
		if price := llm.LookupCost(mu.Model); price != nil {
			c := price.Cost(mu.InputTokens, mu.OutputTokens)
			total += c
			cost = formatCost(c)
		} else {
			unpriced = append(unpriced, mu.Model)
		}
		t.Row(truncate(mu.Model, 32), itoa(mu.Calls), itoa(mu.InputTokens), itoa(mu.OutputTokens), cost)
	}
	label := "TOTAL"
	if len(unpriced) > 0 {
		label = "TOTAL (partial)"
	}
	return t.Row(label, "", "", "", formatCost(total)), unpriced
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(theme.Hint).
		Headers(headers...)
}

func itoa[T int | int64](n T) string { return strconv.FormatInt(int64(n), 10) }

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

// withStore opens the database named by --db, SOUS_DB, the config file or
// the default location, for commands that only read the request log.
func withStore(cmd *cobra.Command, fn func(store.EventRepo) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cfg.DBPath
	if path == "" {
		if path, err = store.DefaultDBPath(); err != nil {
			return fmt.Errorf("resolve database path: %w", err)
		}
	} else if err := store.EnsureDir(path); err != nil {
		return err
	}
	s, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()
	return fn(s.EventRepo())
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of requests to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Only requests with this purpose (e.g. skill-assessment)")
	llmListCmd.Flags().Duration("since", 0, "Only requests newer than this (e.g. 24h)")

	llmCmd.AddCommand(llmListCmd, llmViewCmd, llmStatsCmd)
}

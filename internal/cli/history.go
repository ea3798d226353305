package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/reprofactory/internal/analytics"
	"github.com/lucasnoah/reprofactory/internal/db"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query recorded evaluations (see status --record)",
}

// withHistory opens the history database for the duration of fn.
func withHistory(fn func(database *db.DB) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	return fn(database)
}

var historyRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		return withHistory(func(database *db.DB) error {
			runs, err := database.ListRuns(limit)
			if err != nil {
				return err
			}
			if format == "json" {
				if runs == nil {
					runs = []db.Run{}
				}
				return printJSON(cmd, runs)
			}
			w := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(w, "No runs recorded.")
				return nil
			}
			fmt.Fprintf(w, "%-26s  %-20s  %6s  %6s  %6s  %6s  %6s\n", "RUN", "CREATED", "ISSUES", "PASS", "FAIL", "REGR", "FIXED")
			for _, r := range runs {
				fmt.Fprintf(w, "%-26s  %-20s  %6d  %6d  %6d  %6d  %6d\n",
					r.ID, r.CreatedAt, r.Issues, r.Passed, r.Failed, r.Regressions, r.Fixed)
			}
			return nil
		})
	},
}

var historyTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Pass rate across recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		return withHistory(func(database *db.DB) error {
			points, err := analytics.QueryPassRateTrend(database, limit)
			if err != nil {
				return err
			}
			summary := analytics.Summarize(points)
			if format == "json" {
				if points == nil {
					points = []analytics.PassRatePoint{}
				}
				return printJSON(cmd, struct {
					Points  []analytics.PassRatePoint `json:"points"`
					Summary analytics.TrendSummary    `json:"summary"`
				}{points, summary})
			}
			w := cmd.OutOrStdout()
			if len(points) == 0 {
				fmt.Fprintln(w, "No runs recorded.")
				return nil
			}
			for _, p := range points {
				bar := strings.Repeat("#", int(p.PassRate/5))
				fmt.Fprintf(w, "%-20s  %5.1f%%  %-20s  (%d/%d)\n", p.CreatedAt, p.PassRate, bar, p.Passed, p.Evaluated)
			}
			fmt.Fprintf(w, "\nruns=%d avg=%.1f%% p50=%.1f%% min=%.1f%% delta=%+.1f\n",
				summary.Runs, summary.Avg, summary.P50, summary.Min, summary.Delta)
			return nil
		})
	},
}

var historyFlakyCmd = &cobra.Command{
	Use:   "flaky",
	Short: "Issues whose status keeps changing between runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		window, _ := cmd.Flags().GetInt("window")
		minFlips, _ := cmd.Flags().GetInt("min-flips")
		return withHistory(func(database *db.DB) error {
			flaky, err := analytics.QueryFlakyIssues(database, window, minFlips)
			if err != nil {
				return err
			}
			if format == "json" {
				if flaky == nil {
					flaky = []analytics.FlakyIssue{}
				}
				return printJSON(cmd, flaky)
			}
			w := cmd.OutOrStdout()
			if len(flaky) == 0 {
				fmt.Fprintln(w, "No flaky issues.")
				return nil
			}
			fmt.Fprintf(w, "%-8s %6s %6s %8s  %s\n", "ISSUE", "RUNS", "FLIPS", "PASS%", "LAST")
			for _, f := range flaky {
				fmt.Fprintf(w, "%-8d %6d %6d %7.1f%%  %s\n", f.Issue, f.Runs, f.Flips, f.PassRate, f.LastStatus)
			}
			return nil
		})
	},
}

var historyIssueCmd = &cobra.Command{
	Use:   "issue <number>",
	Short: "Recorded results of one issue, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		issue, err := strconv.Atoi(args[0])
		if err != nil || issue <= 0 {
			return fmt.Errorf("invalid issue number %q", args[0])
		}
		return withHistory(func(database *db.DB) error {
			entries, err := analytics.QueryIssueHistory(database, issue)
			if err != nil {
				return err
			}
			if format == "json" {
				if entries == nil {
					entries = []analytics.IssueHistoryEntry{}
				}
				return printJSON(cmd, entries)
			}
			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(w, "No history for issue %d.\n", issue)
				return nil
			}
			for _, e := range entries {
				marker := " "
				if e.Changed {
					marker = "*"
				}
				fmt.Fprintf(w, "%s %-20s %-14s %-14s %s\n", marker, e.CreatedAt, e.Status, e.State, e.Reason)
			}
			return nil
		})
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than the given age",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("older-than-days")
		if days <= 0 {
			return fmt.Errorf("--older-than-days must be positive")
		}
		cutoff := time.Now().AddDate(0, 0, -days)
		return withHistory(func(database *db.DB) error {
			n, err := database.PruneRuns(cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d run(s) older than %s\n", n, cutoff.UTC().Format(db.TimeLayout))
			return nil
		})
	},
}

func init() {
	historyRunsCmd.Flags().Int("limit", 20, "Number of runs to show (0 = all)")
	historyRunsCmd.Flags().String("format", "text", "Output format: text or json")
	historyTrendCmd.Flags().Int("limit", 30, "Number of runs to include (0 = all)")
	historyTrendCmd.Flags().String("format", "text", "Output format: text or json")
	historyFlakyCmd.Flags().Int("window", 10, "Number of recent runs to inspect (0 = all)")
	historyFlakyCmd.Flags().Int("min-flips", 2, "Minimum status changes to report")
	historyFlakyCmd.Flags().String("format", "text", "Output format: text or json")
	historyIssueCmd.Flags().String("format", "text", "Output format: text or json")
	historyPruneCmd.Flags().Int("older-than-days", 90, "Delete runs older than this many days")

	historyCmd.AddCommand(historyRunsCmd)
	historyCmd.AddCommand(historyTrendCmd)
	historyCmd.AddCommand(historyFlakyCmd)
	historyCmd.AddCommand(historyIssueCmd)
	historyCmd.AddCommand(historyPruneCmd)
}

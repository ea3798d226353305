package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lucasnoah/reprofactory/internal/aggregate"
	"github.com/lucasnoah/reprofactory/internal/evaluate"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the dashboard status of every issue with totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		rep, cfg, err := evaluateNow(cmd)
		if err != nil {
			return err
		}

		var runID string
		if record, _ := cmd.Flags().GetBool("record"); record {
			database, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer database.Close()
			runID, err = database.RecordReport(rep)
			if err != nil {
				return fmt.Errorf("record run: %w", err)
			}
		}

		if format == "json" {
			return printJSON(cmd, struct {
				RunID  string                   `json:"run_id,omitempty"`
				Totals map[aggregate.Status]int `json:"totals"`
				Issues []evaluate.IssueReport   `json:"issues"`
			}{runID, rep.Totals, rep.Issues})
		}

		w := cmd.OutOrStdout()
		if len(rep.Issues) == 0 {
			fmt.Fprintln(w, "No issues found.")
		} else {
			fmt.Fprintf(w, "%-8s %-14s %-14s %s\n", "ISSUE", "STATUS", "STATE", "WORST")
			fmt.Fprintf(w, "%-8s %-14s %-14s %s\n",
				strings.Repeat("-", 8),
				strings.Repeat("-", 14),
				strings.Repeat("-", 14),
				strings.Repeat("-", 5))
			for _, ir := range rep.Issues {
				worst := string(ir.Worst.Status)
				if ir.Worst.Timestamp != "" {
					worst += " @ " + ir.Worst.Timestamp
				}
				fmt.Fprintf(w, "%-8d %s %-14s %s\n", ir.Number, colorStatus(ir.Status), ir.State, worst)
			}
		}

		fmt.Fprintln(w)
		bold := color.New(color.Bold)
		_, _ = bold.Fprintln(w, "Totals:")
		for _, s := range aggregate.Statuses {
			fmt.Fprintf(w, "  %s %d\n", colorStatus(s), rep.Totals[s])
		}
		if runID != "" {
			fmt.Fprintf(w, "\nRecorded run %s\n", runID)
		}
		return nil
	},
}

func colorStatus(s aggregate.Status) string {
	padded := fmt.Sprintf("%-14s", s)
	switch s {
	case aggregate.Passed:
		return color.GreenString(padded)
	case aggregate.Failed, aggregate.NotRestored, aggregate.NotCompiling:
		return color.RedString(padded)
	case aggregate.NotTested:
		return color.YellowString(padded)
	default:
		return padded
	}
}

func init() {
	statusCmd.Flags().String("format", "text", "Output format: text or json")
	statusCmd.Flags().Bool("record", false, "Store this evaluation in the history database")
}

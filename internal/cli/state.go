package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lucasnoah/reprofactory/internal/evaluate"
	"github.com/lucasnoah/reprofactory/internal/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the lifecycle state of each issue",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		var want state.Lifecycle
		if s, _ := cmd.Flags().GetString("state"); s != "" {
			l, ok := state.ParseLifecycle(s)
			if !ok {
				return fmt.Errorf("unknown state %q", s)
			}
			want = l
		}
		issue, _ := cmd.Flags().GetInt("issue")

		rep, _, err := evaluateNow(cmd)
		if err != nil {
			return err
		}
		issues := evaluate.FilterIssues(rep.Issues, func(ir evaluate.IssueReport) bool {
			return (want == "" || ir.State == want) && (issue == 0 || ir.Number == issue)
		})

		if format == "json" {
			if issues == nil {
				issues = []evaluate.IssueReport{}
			}
			return printJSON(cmd, issues)
		}

		w := cmd.OutOrStdout()
		if len(issues) == 0 {
			fmt.Fprintln(w, "No issues found.")
			return nil
		}
		fmt.Fprintf(w, "%-8s %-14s %-14s %s\n", "ISSUE", "STATE", "DETAIL", "REASON")
		fmt.Fprintf(w, "%-8s %-14s %-14s %s\n",
			strings.Repeat("-", 8),
			strings.Repeat("-", 14),
			strings.Repeat("-", 14),
			strings.Repeat("-", 6))
		for _, ir := range issues {
			fmt.Fprintf(w, "%-8d %s %-14s %s\n", ir.Number, colorLifecycle(ir.State), ir.Detail, ir.Reason)
		}
		return nil
	},
}

func colorLifecycle(l state.Lifecycle) string {
	s := fmt.Sprintf("%-14s", l)
	switch l {
	case state.Runnable:
		return color.GreenString(s)
	case state.FailedRestore, state.FailedCompile:
		return color.RedString(s)
	case state.NotSynced, state.New:
		return color.YellowString(s)
	case state.Skipped, state.NothingToRun:
		return color.HiBlackString(s)
	default:
		return s
	}
}

func init() {
	stateCmd.Flags().Int("issue", 0, "Only show this issue")
	stateCmd.Flags().String("state", "", "Only show issues in this state (e.g. NotSynced)")
	stateCmd.Flags().String("format", "text", "Output format: text or json")
}

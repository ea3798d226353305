package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lucasnoah/reprofactory/internal/diff"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Classify what changed between the baseline and current snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		var class diff.Classification
		if c, _ := cmd.Flags().GetString("classification"); c != "" {
			parsed, ok := diff.ParseClassification(c)
			if !ok {
				return fmt.Errorf("unknown classification %q", c)
			}
			class = parsed
		}
		issue, _ := cmd.Flags().GetInt("issue")

		rep, _, err := evaluateNow(cmd)
		if err != nil {
			return err
		}
		records := rep.Diffs
		if class != "" {
			records = diff.Filter(records, class)
		}
		if issue > 0 {
			records = diff.GroupByIssue(records)[issue]
		}

		if format == "json" {
			if records == nil {
				records = []diff.Record{}
			}
			return printJSON(cmd, records)
		}

		w := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(w, "No differences.")
			return nil
		}
		fmt.Fprintf(w, "%-8s %-12s %-12s %-14s %s\n", "ISSUE", "BASELINE", "CURRENT", "CHANGE", "PROJECT")
		fmt.Fprintf(w, "%-8s %-12s %-12s %-14s %s\n",
			strings.Repeat("-", 8),
			strings.Repeat("-", 12),
			strings.Repeat("-", 12),
			strings.Repeat("-", 14),
			strings.Repeat("-", 7))
		for _, r := range records {
			fmt.Fprintf(w, "%-8d %-12s %-12s %s %s\n",
				r.Issue, r.BaselineStatus, r.CurrentStatus,
				colorClassification(r.Classification), r.ProjectPath)
		}

		counts := diff.Counts(records)
		var parts []string
		for _, c := range diff.Classifications {
			if counts[c] > 0 {
				parts = append(parts, fmt.Sprintf("%s=%d", c, counts[c]))
			}
		}
		fmt.Fprintf(w, "\n%d change(s): %s\n", len(records), strings.Join(parts, " "))
		return nil
	},
}

func colorClassification(c diff.Classification) string {
	s := fmt.Sprintf("%-14s", c)
	switch c {
	case diff.Regression, diff.BuildToFail:
		return color.RedString(s)
	case diff.Fixed:
		return color.GreenString(s)
	case diff.New, diff.Deleted:
		return color.CyanString(s)
	case diff.Other:
		return color.YellowString(s)
	default:
		return s
	}
}

func init() {
	diffCmd.Flags().Int("issue", 0, "Only show changes for this issue")
	diffCmd.Flags().String("classification", "", "Only show one classification (e.g. Regression)")
	diffCmd.Flags().String("format", "text", "Output format: text or json")
}

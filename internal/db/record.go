package db

import (
	"github.com/lucasnoah/reprofactory/internal/aggregate"
	"github.com/lucasnoah/reprofactory/internal/diff"
	"github.com/lucasnoah/reprofactory/internal/evaluate"
)

// FromReport flattens an evaluation report into history rows.
func FromReport(rep *evaluate.Report) (Run, []IssueResult) {
	run := Run{
		CreatedAt:    rep.GeneratedAt.UTC().Format(TimeLayout),
		Issues:       len(rep.Issues),
		Passed:       rep.Totals[aggregate.Passed],
		Failed:       rep.Totals[aggregate.Failed],
		Skipped:      rep.Totals[aggregate.Skipped],
		NotRestored:  rep.Totals[aggregate.NotRestored],
		NotCompiling: rep.Totals[aggregate.NotCompiling],
		NotTested:    rep.Totals[aggregate.NotTested],
		Regressions:  rep.DiffCounts[diff.Regression],
		Fixed:        rep.DiffCounts[diff.Fixed],
	}
	results := make([]IssueResult, 0, len(rep.Issues))
	for _, ir := range rep.Issues {
		results = append(results, IssueResult{
			Issue:       ir.Number,
			Status:      string(ir.Status),
			State:       string(ir.State),
			Reason:      ir.Reason,
			WorstStatus: string(ir.Worst.Status),
		})
	}
	return run, results
}

// RecordReport stores an evaluation report and returns the new run ID.
func (d *DB) RecordReport(rep *evaluate.Report) (string, error) {
	run, results := FromReport(rep)
	return d.RecordRun(run, results)
}

// Package evaluate runs one full evaluation of a repository: it loads the
// baseline and current snapshots, discovers issues and combines the diff,
// state and status of every issue into a Report.
package evaluate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/lucasnoah/reprofactory/internal/aggregate"
	"github.com/lucasnoah/reprofactory/internal/diff"
	"github.com/lucasnoah/reprofactory/internal/result"
	"github.com/lucasnoah/reprofactory/internal/snapshot"
	"github.com/lucasnoah/reprofactory/internal/state"
	"github.com/lucasnoah/reprofactory/internal/workspace"
)

// IssueReport is everything known about one issue after an evaluation.
type IssueReport struct {
	Number   int              `json:"number"`
	Location string           `json:"location"`
	State    state.Lifecycle  `json:"state"`
	Detail   string           `json:"detail"`
	Reason   string           `json:"reason,omitempty"`
	Rule     string           `json:"rule,omitempty"`
	Worst    result.Summary   `json:"worst"`
	Status   aggregate.Status `json:"status"`
	Diffs    []diff.Record    `json:"diffs,omitempty"`
}

// Report is the outcome of one evaluation.
type Report struct {
	GeneratedAt time.Time                   `json:"generated_at"`
	Issues      []IssueReport               `json:"issues"`
	Diffs       []diff.Record               `json:"diffs"`
	Totals      map[aggregate.Status]int    `json:"totals"`
	DiffCounts  map[diff.Classification]int `json:"diff_counts"`
}

// Issue returns the report of the given issue.
func (r *Report) Issue(number int) (IssueReport, bool) {
	for _, ir := range r.Issues {
		if ir.Number == number {
			return ir, true
		}
	}
	return IssueReport{}, false
}

// Statuses returns the aggregated status keyed by issue number.
func (r *Report) Statuses() map[int]aggregate.Status {
	out := make(map[int]aggregate.Status, len(r.Issues))
	for _, ir := range r.Issues {
		out[ir.Number] = ir.Status
	}
	return out
}

// Tree is the view of the repository an evaluation needs.
// *workspace.Workspace implements it.
type Tree interface {
	Issues() ([]aggregate.Issue, error)
	state.MarkerLookup
	state.ArtifactLister
	state.SyncChecker
}

var _ Tree = (*workspace.Workspace)(nil)

// Evaluator wires the snapshot paths and the workspace together.
type Evaluator struct {
	FS           afero.Fs
	Workspace    Tree
	CurrentPath  string
	BaselinePath string
	Logger       *slog.Logger
	// Now is used for Report.GeneratedAt; time.Now when nil.
	Now func() time.Time
}

// Evaluate computes a fresh Report. Nothing is cached between calls. Only a
// failure to list the issue directories is returned as an error; bad
// snapshots and per-issue failures are logged and degrade to safe values.
func (e *Evaluator) Evaluate(ctx context.Context) (*Report, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	pair, err := snapshot.LoadPair(ctx, e.FS, e.CurrentPath, e.BaselinePath, logger)
	if err != nil {
		return nil, err
	}
	issues, err := e.Workspace.Issues()
	if err != nil {
		return nil, fmt.Errorf("discover issues: %w", err)
	}

	records := diff.Classify(pair.Baseline, pair.Current)
	byIssue := diff.GroupByIssue(records)
	statuses := aggregate.Aggregate(issues, pair.Current, e.Workspace, logger)
	rows := pair.Current.ByIssue()

	report := &Report{
		GeneratedAt: now().UTC(),
		Issues:      make([]IssueReport, 0, len(issues)),
		Diffs:       records,
		Totals:      aggregate.Totals(statuses),
		DiffCounts:  diff.Counts(records),
	}
	if report.Diffs == nil {
		report.Diffs = []diff.Record{}
	}

	for _, iss := range issues {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ir := IssueReport{
			Number:   iss.Number,
			Location: iss.Location,
			Status:   statuses[iss.Number],
			Diffs:    byIssue[iss.Number],
		}
		res, worst, err := e.resolve(iss, rows[iss.Number])
		if err != nil {
			logger.Warn("issue state resolution failed", "issue", iss.Number, "error", err)
			res = state.Resolution{State: state.New, Detail: "new", Reason: "evaluation failed"}
			worst = result.Worst(nil)
		}
		ir.State, ir.Detail, ir.Reason, ir.Rule = res.State, res.Detail, res.Reason, res.Rule
		ir.Worst = worst
		report.Issues = append(report.Issues, ir)
	}

	logger.Debug("evaluation complete",
		"issues", len(report.Issues),
		"diffs", len(records),
		"current_rows", len(pair.Current),
		"baseline_rows", len(pair.Baseline),
	)
	return report, nil
}

func (e *Evaluator) resolve(iss aggregate.Issue, rows []result.StepResult) (res state.Resolution, worst result.Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resolve issue %d: %v", iss.Number, r)
		}
	}()
	s := state.Collect(iss.Location, rows, e.Workspace, e.Workspace, e.Workspace)
	return state.Resolve(s), s.Worst, nil
}

// FilterIssues keeps the issue reports matching pred.
func FilterIssues(issues []IssueReport, pred func(IssueReport) bool) []IssueReport {
	var out []IssueReport
	for _, ir := range issues {
		if pred(ir) {
			out = append(out, ir)
		}
	}
	return out
}

// Package result defines the per-artifact step results recorded for each
// issue and the selectors that reduce them to a single summary.
package result

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// StepStatus is the outcome of one pipeline step (update, restore, build, test).
// The empty value means the step was absent from the record.
type StepStatus string

const (
	StatusSuccess StepStatus = "Success"
	StatusFailed  StepStatus = "Failed"
	StatusNotRun  StepStatus = "NotRun"
)

// Normalize maps an absent status to NotRun.
func (s StepStatus) Normalize() StepStatus {
	if s == "" {
		return StatusNotRun
	}
	return s
}

// RunResult says whether, and why not, an artifact's pipeline executed.
type RunResult string

const (
	RunRun       RunResult = "Run"
	RunSkipped   RunResult = "Skipped"
	RunNotSynced RunResult = "NotSynced"
	RunNotRun    RunResult = "NotRun"
)

// StepResult is one row of a snapshot: the outcome of every step for one
// artifact of one issue.
type StepResult struct {
	Issue        int        `json:"issue_number"`
	ProjectPath  string     `json:"project_path"`
	Update       StepStatus `json:"update_result,omitempty"`
	Restore      StepStatus `json:"restore_result,omitempty"`
	Build        StepStatus `json:"build_result,omitempty"`
	Test         StepStatus `json:"test_result,omitempty"`
	RunResult    RunResult  `json:"run_result,omitempty"`
	UpdateError  string     `json:"update_error,omitempty"`
	RestoreError string     `json:"restore_error,omitempty"`
	BuildError   string     `json:"build_error,omitempty"`
	TestError    string     `json:"test_error,omitempty"`
	BuildOutput  string     `json:"build_output,omitempty"`
	TestOutput   string     `json:"test_output,omitempty"`
	LastRun      string     `json:"last_run,omitempty"`
}

// Status is the representative outcome of the row: its test status, with
// absent treated as NotRun.
func (r StepResult) Status() StepStatus {
	return r.Test.Normalize()
}

// Key returns the case-normalized lookup key for the row.
func (r StepResult) Key() Key {
	return NewKey(r.Issue, r.ProjectPath)
}

// RestoreFailed reports a failed restore status or any restore error text.
func (r StepResult) RestoreFailed() bool {
	return r.Restore == StatusFailed || strings.TrimSpace(r.RestoreError) != ""
}

// BuildFailed reports a failed build status.
func (r StepResult) BuildFailed() bool {
	return r.Build == StatusFailed
}

// Equal reports whether two rows carry identical data. Project paths are
// compared by key so rows differing only in path casing are equal.
func (r StepResult) Equal(o StepResult) bool {
	if r.Key() != o.Key() {
		return false
	}
	a, b := r, o
	a.ProjectPath, b.ProjectPath = "", ""
	return a == b
}

// Key identifies one artifact of one issue.
type Key struct {
	Issue int
	Path  string
}

// NewKey builds a Key, lower-casing the NFC form of the artifact path.
func NewKey(issue int, path string) Key {
	return Key{Issue: issue, Path: NormalizePath(path)}
}

// NormalizePath returns the canonical form of an artifact path used for lookups.
func NormalizePath(path string) string {
	return strings.ToLower(norm.NFC.String(path))
}

// Snapshot is an ordered, read-only collection of step results captured at
// one point in time.
type Snapshot []StepResult

// ForIssue returns the rows belonging to the given issue, in snapshot order.
func (s Snapshot) ForIssue(issue int) []StepResult {
	var rows []StepResult
	for _, r := range s {
		if r.Issue == issue {
			rows = append(rows, r)
		}
	}
	return rows
}

// ByIssue groups rows by issue number, preserving snapshot order within each group.
func (s Snapshot) ByIssue() map[int][]StepResult {
	out := make(map[int][]StepResult)
	for _, r := range s {
		out[r.Issue] = append(out[r.Issue], r)
	}
	return out
}

// Package aggregate buckets every issue of a repository into one coarse
// status for dashboard totals.
package aggregate

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/lucasnoah/reprofactory/internal/result"
	"github.com/lucasnoah/reprofactory/internal/state"
)

// Status is the coarse dashboard bucket of an issue.
type Status string

const (
	Passed       Status = "Passed"
	Failed       Status = "Failed"
	Skipped      Status = "Skipped"
	NotRestored  Status = "NotRestored"
	NotCompiling Status = "NotCompiling"
	NotTested    Status = "NotTested"
)

// Statuses lists every bucket in display order.
var Statuses = []Status{Passed, Failed, Skipped, NotRestored, NotCompiling, NotTested}

// Issue is a discovered issue and where it lives.
type Issue struct {
	Number   int    `json:"number"`
	Location string `json:"location"`
}

// Aggregate returns one status per issue, computed from the current snapshot
// and the skip markers. A failure while evaluating one issue is logged and
// that issue defaults to NotTested; the others are still evaluated.
func Aggregate(issues []Issue, current result.Snapshot, markers state.MarkerLookup, logger *slog.Logger) map[int]Status {
	if logger == nil {
		logger = slog.Default()
	}
	rows := current.ByIssue()
	out := make(map[int]Status, len(issues))
	for _, iss := range issues {
		status, err := evaluate(iss, rows[iss.Number], markers)
		if err != nil {
			logger.Warn("issue status evaluation failed", "issue", iss.Number, "error", err)
			status = NotTested
		}
		out[iss.Number] = status
	}
	return out
}

// evaluate buckets a single issue, converting a panic into an error.
func evaluate(iss Issue, rows []result.StepResult, markers state.MarkerLookup) (status Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluate issue %d: %v", iss.Number, r)
		}
	}()
	return Classify(iss.Location, rows, markers), nil
}

// Classify buckets one issue from its current rows.
func Classify(location string, rows []result.StepResult, markers state.MarkerLookup) Status {
	if markers != nil && markers.ShouldSkip(location) {
		return Skipped
	}

	latest, ok := result.Latest(rows)
	if !ok {
		return NotTested
	}

	switch latest.RunResult {
	case result.RunSkipped:
		return Skipped
	case result.RunNotSynced:
		return NotTested
	case result.RunRun:
		for _, r := range rows {
			if r.RestoreFailed() {
				return NotRestored
			}
		}
		for _, r := range rows {
			if r.BuildFailed() {
				return NotCompiling
			}
		}
		switch latest.Test {
		case result.StatusSuccess:
			return Passed
		case result.StatusFailed:
			return Failed
		default:
			return NotTested
		}
	default:
		return NotTested
	}
}

// Totals counts issues per status. Every status is present.
func Totals(statuses map[int]Status) map[Status]int {
	out := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		out[s] = 0
	}
	for _, s := range statuses {
		out[s]++
	}
	return out
}

// Sorted returns the issue numbers of a status map in ascending order.
func Sorted(statuses map[int]Status) []int {
	issues := make([]int, 0, len(statuses))
	for n := range statuses {
		issues = append(issues, n)
	}
	sort.Ints(issues)
	return issues
}

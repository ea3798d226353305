// Package diff compares a baseline snapshot with a current snapshot and
// classifies what changed for every (issue, artifact) pair.
package diff

import (
	"sort"

	"github.com/lucasnoah/reprofactory/internal/result"
)

// Classification describes how an artifact's outcome moved between snapshots.
type Classification string

const (
	None        Classification = "None"
	Fixed       Classification = "Fixed"
	Regression  Classification = "Regression"
	BuildToFail Classification = "BuildToFail"
	// Skipped exists for consumers that filter on it; Classify never emits it
	// because skipped rows are dropped before classification.
	Skipped Classification = "Skipped"
	New     Classification = "New"
	Deleted Classification = "Deleted"
	Other   Classification = "Other"
)

// Classifications lists every value in display order.
var Classifications = []Classification{None, Fixed, Regression, BuildToFail, Skipped, New, Deleted, Other}

// ParseClassification matches a classification name exactly.
func ParseClassification(s string) (Classification, bool) {
	for _, c := range Classifications {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Record is one change between baseline and current for a single artifact.
type Record struct {
	Issue          int                `json:"issue_number"`
	ProjectPath    string             `json:"project_path"`
	BaselineStatus result.StepStatus  `json:"baseline_status"`
	CurrentStatus  result.StepStatus  `json:"current_status"`
	Classification Classification     `json:"classification"`
	Baseline       *result.StepResult `json:"baseline,omitempty"`
	Current        *result.StepResult `json:"current,omitempty"`
}

// Classify returns one Record per changed artifact, ordered by issue number
// and then by normalized artifact path. Artifact paths are matched
// case-insensitively. Rows that are identical on both sides, or skipped on
// either side, produce no record.
func Classify(baseline, current result.Snapshot) []Record {
	base := index(baseline)
	cur := index(current)

	keys := make([]result.Key, 0, len(base)+len(cur))
	for k := range base {
		keys = append(keys, k)
	}
	for k := range cur {
		if _, ok := base[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Issue != keys[j].Issue {
			return keys[i].Issue < keys[j].Issue
		}
		return keys[i].Path < keys[j].Path
	})

	var records []Record
	for _, k := range keys {
		b, hasBase := base[k]
		c, hasCur := cur[k]
		if rec, ok := compare(b, hasBase, c, hasCur); ok {
			records = append(records, rec)
		}
	}
	return records
}

// index builds the case-normalized lookup map. A later row with the same key
// replaces an earlier one.
func index(snap result.Snapshot) map[result.Key]result.StepResult {
	m := make(map[result.Key]result.StepResult, len(snap))
	for _, r := range snap {
		m[r.Key()] = r
	}
	return m
}

func compare(b result.StepResult, hasBase bool, c result.StepResult, hasCur bool) (Record, bool) {
	if hasBase && hasCur && b.Equal(c) {
		return Record{}, false
	}
	if (hasBase && b.RunResult == result.RunSkipped) || (hasCur && c.RunResult == result.RunSkipped) {
		return Record{}, false
	}

	rec := Record{}
	if hasBase {
		bc := b
		rec.Baseline = &bc
		rec.Issue, rec.ProjectPath = b.Issue, b.ProjectPath
		rec.BaselineStatus = b.Status()
	}
	if hasCur {
		cc := c
		rec.Current = &cc
		rec.Issue, rec.ProjectPath = c.Issue, c.ProjectPath
		rec.CurrentStatus = c.Status()
	}

	switch {
	case !hasBase:
		rec.BaselineStatus = result.StatusNotRun
		rec.Classification = New
	case !hasCur:
		rec.CurrentStatus = result.StatusNotRun
		rec.Classification = Deleted
	default:
		rec.Classification = classify(b, c)
	}
	return rec, true
}

// classify applies the change rules to a pair present on both sides; the
// first matching rule wins.
func classify(b, c result.StepResult) Classification {
	bs, cs := b.Status(), c.Status()
	switch {
	case bs != result.StatusSuccess && cs == result.StatusSuccess:
		return Fixed
	case bs == result.StatusSuccess && cs == result.StatusFailed:
		return Regression
	case (bs == result.StatusNotRun || b.RunResult == result.RunNotRun) && cs == result.StatusFailed:
		return BuildToFail
	case bs == cs:
		return None
	default:
		return Other
	}
}

// GroupByIssue indexes records by issue number, keeping their order.
func GroupByIssue(records []Record) map[int][]Record {
	out := make(map[int][]Record)
	for _, r := range records {
		out[r.Issue] = append(out[r.Issue], r)
	}
	return out
}

// Counts tallies records per classification. Every classification is present.
func Counts(records []Record) map[Classification]int {
	out := make(map[Classification]int, len(Classifications))
	for _, c := range Classifications {
		out[c] = 0
	}
	for _, r := range records {
		out[r.Classification]++
	}
	return out
}

// Filter keeps records with the given classification.
func Filter(records []Record, c Classification) []Record {
	var out []Record
	for _, r := range records {
		if r.Classification == c {
			out = append(out, r)
		}
	}
	return out
}

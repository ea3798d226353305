// Package state resolves the lifecycle state of an issue from its skip
// marker, discovered artifacts, sync files and current step results.
package state

import (
	"github.com/lucasnoah/reprofactory/internal/result"
)

// Lifecycle is the single state an issue is in for one evaluation.
type Lifecycle string

const (
	New           Lifecycle = "New"
	Synced        Lifecycle = "Synced"
	NotSynced     Lifecycle = "NotSynced"
	FailedRestore Lifecycle = "FailedRestore"
	FailedCompile Lifecycle = "FailedCompile"
	Runnable      Lifecycle = "Runnable"
	NothingToRun  Lifecycle = "NothingToRun"
	Skipped       Lifecycle = "Skipped"
)

// Lifecycles lists every state in display order.
var Lifecycles = []Lifecycle{New, Synced, NotSynced, FailedRestore, FailedCompile, Runnable, NothingToRun, Skipped}

// ParseLifecycle matches a state name exactly.
func ParseLifecycle(s string) (Lifecycle, bool) {
	for _, l := range Lifecycles {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}

// Marker reason categories.
const (
	ReasonIgnored            = "Ignored"
	ReasonExplicit           = "Explicit"
	ReasonWIP                = "WIP"
	ReasonGUI                = "GUI"
	ReasonClosedNotPlanned   = "Closed Not Planned"
	ReasonClosedAsNotPlanned = "Closed As Not Planned"
)

// MarkerLookup reports whether an issue location carries a skip marker and
// the category of that marker.
type MarkerLookup interface {
	ShouldSkip(location string) bool
	Reason(location string) string
}

// ArtifactLister returns the buildable artifact paths of an issue location.
type ArtifactLister interface {
	ListArtifacts(location string) []string
}

// SyncChecker reports presence of the two per-issue sync files.
type SyncChecker interface {
	HasMetadata(location string) bool
	HasInitialState(location string) bool
	MetadataName() string
	InitialStateName() string
}

// Signals is everything the resolver looks at for one issue.
type Signals struct {
	Skip       bool
	SkipReason string

	ArtifactCount int

	HasMetadata      bool
	HasInitialState  bool
	MetadataName     string
	InitialStateName string

	RestoreFailed bool
	RestoreError  string
	BuildFailed   bool
	Worst         result.Summary
}

// Resolution is the resolver's verdict for one issue.
type Resolution struct {
	State  Lifecycle `json:"state"`
	Detail string    `json:"detail"`
	Reason string    `json:"reason,omitempty"`
	// Rule names the rule that produced the verdict.
	Rule string `json:"rule"`
}

// SignalsFromResults derives the failure flags and worst result from an
// issue's rows in the current snapshot. The first non-empty restore error,
// trimmed, is kept for the reason text.
func SignalsFromResults(rows []result.StepResult) Signals {
	var s Signals
	for _, r := range rows {
		if r.RestoreFailed() {
			s.RestoreFailed = true
			if s.RestoreError == "" {
				s.RestoreError = trim(r.RestoreError)
			}
		}
		if r.BuildFailed() {
			s.BuildFailed = true
		}
	}
	s.Worst = result.Worst(rows)
	return s
}

// Collect gathers all signals for the issue at location using the injected
// capabilities and the issue's current rows.
func Collect(location string, rows []result.StepResult, markers MarkerLookup, artifacts ArtifactLister, sync SyncChecker) Signals {
	s := SignalsFromResults(rows)
	if markers != nil && markers.ShouldSkip(location) {
		s.Skip = true
		s.SkipReason = markers.Reason(location)
	}
	if artifacts != nil {
		s.ArtifactCount = len(artifacts.ListArtifacts(location))
	}
	if sync != nil {
		s.HasMetadata = sync.HasMetadata(location)
		s.HasInitialState = sync.HasInitialState(location)
		s.MetadataName = sync.MetadataName()
		s.InitialStateName = sync.InitialStateName()
	}
	return s
}

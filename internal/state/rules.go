package state

import (
	"strings"

	"github.com/lucasnoah/reprofactory/internal/result"
)

// Rule is one row of the resolution cascade.
type Rule struct {
	Name    string
	Match   func(Signals) bool
	Outcome func(Signals) Resolution
}

// Rules is the resolution cascade, evaluated top to bottom. The first rule
// whose Match returns true decides the state; later rules are not consulted.
// Markers dominate everything, missing artifacts precede sync problems, sync
// problems precede restore and build results, and a failed restore masks a
// failed build.
var Rules = []Rule{
	{
		Name:  "marker",
		Match: func(s Signals) bool { return s.Skip },
		Outcome: func(s Signals) Resolution {
			return Resolution{State: Skipped, Detail: "skipped", Reason: s.SkipReason}
		},
	},
	{
		Name:  "no-artifacts",
		Match: func(s Signals) bool { return s.ArtifactCount == 0 },
		Outcome: func(Signals) Resolution {
			return Resolution{State: NothingToRun, Detail: "no projects", Reason: "No project files found"}
		},
	},
	{
		Name:  "sync-files-missing",
		Match: func(s Signals) bool { return !s.HasMetadata || !s.HasInitialState },
		Outcome: func(s Signals) Resolution {
			return Resolution{State: NotSynced, Detail: "not synced", Reason: missingFilesReason(s)}
		},
	},
	{
		Name:  "restore-failed",
		Match: func(s Signals) bool { return s.RestoreFailed },
		Outcome: func(s Signals) Resolution {
			reason := "Restore failed"
			if msg := trim(s.RestoreError); msg != "" {
				reason = "Restore failed: " + msg
			}
			return Resolution{State: FailedRestore, Detail: "not restored", Reason: reason}
		},
	},
	{
		Name:  "build-failed",
		Match: func(s Signals) bool { return s.BuildFailed && !s.RestoreFailed },
		Outcome: func(s Signals) Resolution {
			r := Resolution{State: FailedCompile, Detail: "not compiling"}
			if notTested(s) {
				r.Reason = "Not compiling"
			}
			return r
		},
	},
	{
		Name:  "synced-not-tested",
		Match: func(s Signals) bool { return s.HasMetadata && notTested(s) },
		Outcome: func(Signals) Resolution {
			return Resolution{State: Synced, Detail: "synced"}
		},
	},
	{
		Name:  "runnable",
		Match: func(s Signals) bool { return s.HasMetadata && !notTested(s) },
		Outcome: func(Signals) Resolution {
			return Resolution{State: Runnable, Detail: "runnable"}
		},
	},
	// Not reached through Rules: sync-files-missing matches first whenever
	// metadata is absent.
	{
		Name:  "fallback",
		Match: func(Signals) bool { return true },
		Outcome: func(Signals) Resolution {
			return Resolution{State: Synced, Detail: "synced"}
		},
	},
}

// Resolve runs the cascade over the given signals.
func Resolve(s Signals) Resolution {
	return ResolveWith(Rules, s)
}

// ResolveWith runs an arbitrary cascade. An empty cascade resolves to New.
func ResolveWith(rules []Rule, s Signals) Resolution {
	for _, rule := range rules {
		if rule.Match(s) {
			r := rule.Outcome(s)
			r.Rule = rule.Name
			return r
		}
	}
	return Resolution{State: New, Detail: "new"}
}

// notTested is true when the worst result carries no real test outcome.
func notTested(s Signals) bool {
	return s.Worst.Status.Normalize() == result.StatusNotRun
}

func missingFilesReason(s Signals) string {
	meta := s.MetadataName
	if meta == "" {
		meta = "metadata file"
	}
	initial := s.InitialStateName
	if initial == "" {
		initial = "initial state file"
	}
	switch {
	case !s.HasMetadata && !s.HasInitialState:
		return "Missing " + meta + " and " + initial
	case !s.HasMetadata:
		return "Missing " + meta
	default:
		return "Missing " + initial
	}
}

func trim(s string) string {
	return strings.TrimSpace(s)
}

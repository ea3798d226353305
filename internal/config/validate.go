package config

import (
	"fmt"
	"path/filepath"

	"github.com/lucasnoah/reprofactory/internal/workspace"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a Config for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	r := cfg.Repro

	if r.Root == "" {
		errs = append(errs, ValidationError{Field: "repro.root", Message: "is required"})
	}
	if r.Snapshots.Current == "" {
		errs = append(errs, ValidationError{Field: "repro.snapshots.current", Message: "is required"})
	}
	if r.Snapshots.Baseline == "" {
		errs = append(errs, ValidationError{Field: "repro.snapshots.baseline", Message: "is required"})
	}
	if r.Snapshots.Current != "" && r.Snapshots.Current == r.Snapshots.Baseline {
		errs = append(errs, ValidationError{
			Field:   "repro.snapshots.baseline",
			Message: "must differ from the current snapshot",
		})
	}
	if r.SyncFiles.Metadata == "" {
		errs = append(errs, ValidationError{Field: "repro.sync_files.metadata", Message: "is required"})
	}
	if r.SyncFiles.InitialState == "" {
		errs = append(errs, ValidationError{Field: "repro.sync_files.initial_state", Message: "is required"})
	}

	if _, err := workspace.CompileIssuePattern(r.IssuePattern); err != nil {
		errs = append(errs, ValidationError{Field: "repro.issue_pattern", Message: err.Error()})
	}

	for i, p := range r.ArtifactPatterns {
		if _, err := filepath.Match(p, ""); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("repro.artifact_patterns[%d]", i),
				Message: fmt.Sprintf("invalid glob %q", p),
			})
		}
	}

	seen := make(map[string]bool)
	for i, m := range r.Markers {
		prefix := fmt.Sprintf("repro.markers[%d]", i)
		if m.File == "" {
			errs = append(errs, ValidationError{Field: prefix + ".file", Message: "is required"})
		} else if seen[m.File] {
			errs = append(errs, ValidationError{
				Field:   prefix + ".file",
				Message: fmt.Sprintf("duplicate marker file %q", m.File),
			})
		}
		seen[m.File] = true
		if m.Reason == "" {
			errs = append(errs, ValidationError{Field: prefix + ".reason", Message: "is required"})
		}
	}

	if r.Serve.Port < 1 || r.Serve.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "repro.serve.port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", r.Serve.Port),
		})
	}

	return errs
}

package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func row(issue int, path string, test StepStatus, lastRun string) StepResult {
	return StepResult{Issue: issue, ProjectPath: path, Test: test, RunResult: RunRun, LastRun: lastRun}
}

func TestWorst_Empty(t *testing.T) {
	assert.Equal(t, Summary{Status: StatusNotRun, Timestamp: ""}, Worst(nil))
	assert.Equal(t, Summary{Status: StatusNotRun, Timestamp: ""}, Worst([]StepResult{}))
}

func TestWorst_Priority(t *testing.T) {
	tests := []struct {
		name string
		rows []StepResult
		want StepStatus
	}{
		{"all success", []StepResult{row(1, "a", StatusSuccess, "1"), row(1, "b", StatusSuccess, "2")}, StatusSuccess},
		{"failed beats everything", []StepResult{row(1, "a", StatusSuccess, "9"), row(1, "b", StatusNotRun, "9"), row(1, "c", StatusFailed, "1")}, StatusFailed},
		{"not run beats success", []StepResult{row(1, "a", StatusSuccess, "9"), row(1, "b", StatusNotRun, "1")}, StatusNotRun},
		{"absent counts as not run", []StepResult{row(1, "a", StatusSuccess, "9"), row(1, "b", "", "1")}, StatusNotRun},
		{"single failed", []StepResult{row(1, "a", StatusFailed, "")}, StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Worst(tt.rows).Status)
		})
	}
}

func TestWorst_TieBreaksOnGreatestTimestamp(t *testing.T) {
	rows := []StepResult{
		row(1, "a", StatusFailed, "2024-01-02T10:00:00"),
		row(1, "b", StatusFailed, "2024-03-01T10:00:00"),
		row(1, "c", StatusFailed, "2024-02-01T10:00:00"),
		row(1, "d", StatusSuccess, "2025-01-01T10:00:00"),
	}
	got := Worst(rows)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "2024-03-01T10:00:00", got.Timestamp)
}

func TestWorst_RawStringComparison(t *testing.T) {
	// "9/1/2024" sorts after "10/1/2024" as a string even though it is the
	// earlier date; the raw comparison is intentional.
	rows := []StepResult{
		row(1, "a", StatusFailed, "10/1/2024"),
		row(1, "b", StatusFailed, "9/1/2024"),
	}
	assert.Equal(t, "9/1/2024", Worst(rows).Timestamp)

	malformed := []StepResult{
		row(1, "a", StatusNotRun, "not a date"),
		row(1, "b", StatusNotRun, ""),
	}
	assert.Equal(t, "not a date", Worst(malformed).Timestamp)
}

func TestLatest(t *testing.T) {
	_, ok := Latest(nil)
	assert.False(t, ok)

	rows := []StepResult{
		row(1, "a", StatusFailed, "2024-01-01"),
		row(1, "b", StatusSuccess, "2024-05-01"),
		row(1, "c", StatusNotRun, "2024-05-01"),
	}
	got, ok := Latest(rows)
	assert.True(t, ok)
	assert.Equal(t, "b", got.ProjectPath)
}

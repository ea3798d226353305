package result

// Summary is the single status/timestamp pair that represents an issue.
type Summary struct {
	Status    StepStatus `json:"status"`
	Timestamp string     `json:"timestamp"`
}

// severity ranks statuses for Worst: higher is worse.
func severity(s StepStatus) int {
	switch s.Normalize() {
	case StatusFailed:
		return 2
	case StatusNotRun:
		return 1
	default:
		return 0
	}
}

// Worst reduces an issue's rows to one summary. Failed beats NotRun beats
// Success; among rows at the winning rank the greatest LastRun wins.
// Timestamps are compared as raw strings, never parsed, so malformed values
// still order deterministically. An empty input yields (NotRun, "").
func Worst(rows []StepResult) Summary {
	if len(rows) == 0 {
		return Summary{Status: StatusNotRun}
	}

	best := rows[0]
	for _, r := range rows[1:] {
		rs, bs := severity(r.Status()), severity(best.Status())
		if rs > bs || (rs == bs && r.LastRun > best.LastRun) {
			best = r
		}
	}
	return Summary{Status: best.Status(), Timestamp: best.LastRun}
}

// Latest returns the most recently run row, comparing LastRun as raw
// strings. The first row wins on equal timestamps. ok is false for empty input.
func Latest(rows []StepResult) (latest StepResult, ok bool) {
	if len(rows) == 0 {
		return StepResult{}, false
	}
	latest = rows[0]
	for _, r := range rows[1:] {
		if r.LastRun > latest.LastRun {
			latest = r
		}
	}
	return latest, true
}

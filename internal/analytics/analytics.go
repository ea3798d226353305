package analytics

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
)

// DB is the interface for database queries used by analytics.
type DB interface {
	Conn() *sql.DB
}

// PassRatePoint is the pass rate of one recorded run.
type PassRatePoint struct {
	RunID     string  `json:"run_id"`
	CreatedAt string  `json:"created_at"`
	Issues    int     `json:"issues"`
	Evaluated int     `json:"evaluated"`
	Passed    int     `json:"passed"`
	Failed    int     `json:"failed"`
	PassRate  float64 `json:"pass_rate_pct"`
}

// QueryPassRateTrend returns the pass rate of the most recent runs, oldest
// first. Skipped issues are excluded from the denominator. limit <= 0 means
// all runs.
func QueryPassRateTrend(database DB, limit int) ([]PassRatePoint, error) {
	query := `
		SELECT id, created_at, issues, passed, failed, skipped
		FROM eval_runs
		ORDER BY created_at DESC, id DESC`

	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pass rate trend: %w", err)
	}
	defer rows.Close()

	var points []PassRatePoint
	for rows.Next() {
		var p PassRatePoint
		var skipped int
		if err := rows.Scan(&p.RunID, &p.CreatedAt, &p.Issues, &p.Passed, &p.Failed, &skipped); err != nil {
			return nil, fmt.Errorf("scan pass rate: %w", err)
		}
		p.Evaluated = p.Issues - skipped
		p.PassRate = pct(p.Passed, p.Evaluated)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Oldest first for charting.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// TrendSummary condenses a pass rate trend.
type TrendSummary struct {
	Runs   int     `json:"runs"`
	Avg    float64 `json:"avg_pct"`
	P50    float64 `json:"p50_pct"`
	Min    float64 `json:"min_pct"`
	Latest float64 `json:"latest_pct"`
	Delta  float64 `json:"delta_pct"`
}

// Summarize reports average, median and spread of a trend. Delta is the
// change between the first and last point.
func Summarize(points []PassRatePoint) TrendSummary {
	if len(points) == 0 {
		return TrendSummary{}
	}
	rates := make([]float64, len(points))
	for i, p := range points {
		rates[i] = p.PassRate
	}
	first, last := rates[0], rates[len(rates)-1]
	sort.Float64s(rates)
	return TrendSummary{
		Runs:   len(points),
		Avg:    avg(rates),
		P50:    percentile(rates, 50),
		Min:    rates[0],
		Latest: last,
		Delta:  math.Round((last-first)*10) / 10,
	}
}

// FlakyIssue is an issue whose status changed between consecutive runs.
type FlakyIssue struct {
	Issue      int     `json:"issue"`
	Runs       int     `json:"runs"`
	Flips      int     `json:"flips"`
	Passed     int     `json:"passed"`
	Failed     int     `json:"failed"`
	PassRate   float64 `json:"pass_rate_pct"`
	LastStatus string  `json:"last_status"`
}

// QueryFlakyIssues looks at the last window runs (all when window <= 0) and
// returns issues whose status changed at least minFlips times, most flips
// first.
func QueryFlakyIssues(database DB, window, minFlips int) ([]FlakyIssue, error) {
	query := `
		SELECT ir.issue, ir.status
		FROM issue_results ir
		JOIN eval_runs er ON er.id = ir.run_id`

	args := []interface{}{}
	if window > 0 {
		query += `
		WHERE ir.run_id IN (
			SELECT id FROM eval_runs ORDER BY created_at DESC, id DESC LIMIT $1
		)`
		args = append(args, window)
	}
	query += ` ORDER BY ir.issue, er.created_at, er.id`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query flaky issues: %w", err)
	}
	defer rows.Close()

	byIssue := make(map[int]*FlakyIssue)
	var order []int
	for rows.Next() {
		var issue int
		var status string
		if err := rows.Scan(&issue, &status); err != nil {
			return nil, fmt.Errorf("scan flaky issue: %w", err)
		}
		f, ok := byIssue[issue]
		if !ok {
			f = &FlakyIssue{Issue: issue}
			byIssue[issue] = f
			order = append(order, issue)
		}
		if f.Runs > 0 && f.LastStatus != status {
			f.Flips++
		}
		f.Runs++
		f.LastStatus = status
		switch status {
		case "Passed":
			f.Passed++
		case "Failed":
			f.Failed++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if minFlips < 1 {
		minFlips = 1
	}
	var results []FlakyIssue
	for _, issue := range order {
		f := byIssue[issue]
		if f.Flips < minFlips {
			continue
		}
		f.PassRate = pct(f.Passed, f.Passed+f.Failed)
		results = append(results, *f)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Flips != results[j].Flips {
			return results[i].Flips > results[j].Flips
		}
		return results[i].Issue < results[j].Issue
	})
	return results, nil
}

// IssueHistoryEntry is one recorded evaluation of a single issue.
type IssueHistoryEntry struct {
	RunID       string `json:"run_id"`
	CreatedAt   string `json:"created_at"`
	Status      string `json:"status"`
	State       string `json:"state"`
	Reason      string `json:"reason,omitempty"`
	WorstStatus string `json:"worst_status"`
	Changed     bool   `json:"changed"`
}

// QueryIssueHistory returns every recorded result of an issue, oldest first.
// Changed marks entries whose status differs from the previous one.
func QueryIssueHistory(database DB, issue int) ([]IssueHistoryEntry, error) {
	rows, err := database.Conn().Query(`
		SELECT ir.run_id, er.created_at, ir.status, ir.state, ir.reason, ir.worst_status
		FROM issue_results ir
		JOIN eval_runs er ON er.id = ir.run_id
		WHERE ir.issue = $1
		ORDER BY er.created_at, er.id`, issue)
	if err != nil {
		return nil, fmt.Errorf("query issue history: %w", err)
	}
	defer rows.Close()

	var results []IssueHistoryEntry
	for rows.Next() {
		var e IssueHistoryEntry
		if err := rows.Scan(&e.RunID, &e.CreatedAt, &e.Status, &e.State, &e.Reason, &e.WorstStatus); err != nil {
			return nil, fmt.Errorf("scan issue history: %w", err)
		}
		if n := len(results); n > 0 && results[n-1].Status != e.Status {
			e.Changed = true
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// --- helpers ---

func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return math.Round(sum/float64(len(values))*10) / 10
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper || upper >= len(sorted) {
		return math.Round(sorted[lower]*10) / 10
	}
	weight := rank - float64(lower)
	return math.Round((sorted[lower]*(1-weight)+sorted[upper]*weight)*10) / 10
}

func pct(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}

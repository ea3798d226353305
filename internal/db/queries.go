package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Run represents a row in the eval_runs table.
type Run struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"created_at"`
	Issues       int    `json:"issues"`
	Passed       int    `json:"passed"`
	Failed       int    `json:"failed"`
	Skipped      int    `json:"skipped"`
	NotRestored  int    `json:"not_restored"`
	NotCompiling int    `json:"not_compiling"`
	NotTested    int    `json:"not_tested"`
	Regressions  int    `json:"regressions"`
	Fixed        int    `json:"fixed"`
}

// IssueResult represents a row in the issue_results table.
type IssueResult struct {
	RunID       string `json:"run_id"`
	Issue       int    `json:"issue"`
	Status      string `json:"status"`
	State       string `json:"state"`
	Reason      string `json:"reason,omitempty"`
	WorstStatus string `json:"worst_status"`
}

const runColumns = `id, created_at, issues, passed, failed, skipped, not_restored, not_compiling, not_tested, regressions, fixed`

// RecordRun stores a run and its per-issue rows in one transaction. A new
// ULID is assigned when run.ID is empty, and CreatedAt defaults to now.
// It returns the run ID.
func (d *DB) RecordRun(run Run, results []IssueResult) (string, error) {
	if run.ID == "" {
		run.ID = ulid.Make().String()
	}
	if run.CreatedAt == "" {
		run.CreatedAt = now()
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO eval_runs (`+runColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID, run.CreatedAt, run.Issues, run.Passed, run.Failed, run.Skipped,
		run.NotRestored, run.NotCompiling, run.NotTested, run.Regressions, run.Fixed,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, r := range results {
		_, err := tx.Exec(
			`INSERT INTO issue_results (run_id, issue, status, state, reason, worst_status) VALUES ($1, $2, $3, $4, $5, $6)`,
			run.ID, r.Issue, r.Status, r.State, r.Reason, r.WorstStatus,
		)
		if err != nil {
			return "", fmt.Errorf("insert issue result %d: %w", r.Issue, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means all.
func (d *DB) ListRuns(limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM eval_runs ORDER BY created_at DESC, id DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run, or nil when it does not exist. A unique ID prefix
// is accepted.
func (d *DB) GetRun(id string) (*Run, error) {
	rows, err := d.conn.Query(
		`SELECT `+runColumns+` FROM eval_runs WHERE id LIKE $1 ORDER BY id LIMIT 2`,
		strings.ToUpper(id)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("run id %q is ambiguous", id)
	}
}

// LatestRun returns the newest run, or nil when none is recorded.
func (d *DB) LatestRun() (*Run, error) {
	runs, err := d.ListRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// IssueResults returns the per-issue rows of a run ordered by issue.
func (d *DB) IssueResults(runID string) ([]IssueResult, error) {
	rows, err := d.conn.Query(
		`SELECT run_id, issue, status, state, reason, worst_status
		 FROM issue_results WHERE run_id = $1 ORDER BY issue`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get issue results: %w", err)
	}
	defer rows.Close()

	var results []IssueResult
	for rows.Next() {
		var r IssueResult
		if err := rows.Scan(&r.RunID, &r.Issue, &r.Status, &r.State, &r.Reason, &r.WorstStatus); err != nil {
			return nil, fmt.Errorf("scan issue result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// PruneRuns deletes runs created before cutoff along with their issue rows.
// It returns the number of runs removed.
func (d *DB) PruneRuns(cutoff time.Time) (int, error) {
	ts := cutoff.UTC().Format(TimeLayout)
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM issue_results WHERE run_id IN (SELECT id FROM eval_runs WHERE created_at < $1)`, ts,
	); err != nil {
		return 0, fmt.Errorf("prune issue results: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM eval_runs WHERE created_at < $1`, ts)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	err := s.Scan(&r.ID, &r.CreatedAt, &r.Issues, &r.Passed, &r.Failed, &r.Skipped,
		&r.NotRestored, &r.NotCompiling, &r.NotTested, &r.Regressions, &r.Fixed)
	return r, err
}

package web

import (
	"net/http"
	"strconv"

	"github.com/lucasnoah/reprofactory/internal/analytics"
	"github.com/lucasnoah/reprofactory/internal/db"
)

// HistoryView is the /api/history payload.
type HistoryView struct {
	Runs    []db.Run               `json:"runs"`
	Summary analytics.TrendSummary `json:"summary"`
}

// intParam reads a positive integer query parameter, falling back to def.
func intParam(r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// historyReady writes 503 when no history database is configured.
func (s *Server) historyReady(w http.ResponseWriter, r *http.Request) bool {
	if !allowGet(w, r) {
		return false
	}
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "history database not configured")
		return false
	}
	return true
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.historyReady(w, r) {
		return
	}
	limit, ok := intParam(r, "limit", 20)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	runs, err := s.db.ListRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	points, err := analytics.QueryPassRateTrend(s.db, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	writeJSON(w, http.StatusOK, HistoryView{Runs: runs, Summary: analytics.Summarize(points)})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	if !s.historyReady(w, r) {
		return
	}
	limit, ok := intParam(r, "limit", 30)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	points, err := analytics.QueryPassRateTrend(s.db, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if points == nil {
		points = []analytics.PassRatePoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleFlaky(w http.ResponseWriter, r *http.Request) {
	if !s.historyReady(w, r) {
		return
	}
	window, ok := intParam(r, "window", 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid window")
		return
	}
	minFlips, ok := intParam(r, "min_flips", 2)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid min_flips")
		return
	}
	flaky, err := analytics.QueryFlakyIssues(s.db, window, minFlips)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if flaky == nil {
		flaky = []analytics.FlakyIssue{}
	}
	writeJSON(w, http.StatusOK, flaky)
}

func (s *Server) handleIssueHistory(w http.ResponseWriter, r *http.Request, issueStr string) {
	if !s.historyReady(w, r) {
		return
	}
	issue, err := strconv.Atoi(issueStr)
	if err != nil || issue <= 0 {
		writeError(w, http.StatusBadRequest, "invalid issue number")
		return
	}
	history, err := analytics.QueryIssueHistory(s.db, issue)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []analytics.IssueHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request, id string) {
	if !s.historyReady(w, r) {
		return
	}
	run, err := s.db.GetRun(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	results, err := s.db.IssueResults(run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*db.Run
		Results []db.IssueResult `json:"results"`
	}{run, results})
}

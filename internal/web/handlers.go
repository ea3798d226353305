package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/lucasnoah/reprofactory/internal/aggregate"
	"github.com/lucasnoah/reprofactory/internal/diff"
	"github.com/lucasnoah/reprofactory/internal/evaluate"
	"github.com/lucasnoah/reprofactory/internal/state"
)

// StatusView is the /api/status payload.
type StatusView struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Totals      map[aggregate.Status]int `json:"totals"`
	Issues      []IssueStatus            `json:"issues"`
}

// IssueStatus is one issue's bucket.
type IssueStatus struct {
	Number int              `json:"number"`
	Status aggregate.Status `json:"status"`
}

// DiffView is the /api/diff payload.
type DiffView struct {
	GeneratedAt time.Time                   `json:"generated_at"`
	Counts      map[diff.Classification]int `json:"counts"`
	Records     []diff.Record               `json:"records"`
}

// StateView is one issue's lifecycle state.
type StateView struct {
	Number int             `json:"number"`
	State  state.Lifecycle `json:"state"`
	Detail string          `json:"detail"`
	Reason string          `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// report runs a fresh evaluation, writing a 500 on failure.
func (s *Server) report(w http.ResponseWriter, r *http.Request) (*evaluate.Report, bool) {
	rep, err := s.eval.Evaluate(r.Context())
	if err != nil {
		s.logger.Error("evaluation failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return rep, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	rep, ok := s.report(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statusView(rep))
}

func statusView(rep *evaluate.Report) StatusView {
	view := StatusView{
		GeneratedAt: rep.GeneratedAt,
		Totals:      rep.Totals,
		Issues:      make([]IssueStatus, 0, len(rep.Issues)),
	}
	for _, ir := range rep.Issues {
		view.Issues = append(view.Issues, IssueStatus{Number: ir.Number, Status: ir.Status})
	}
	return view
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	q := r.URL.Query()

	var class diff.Classification
	if c := q.Get("classification"); c != "" {
		parsed, ok := diff.ParseClassification(c)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown classification "+strconv.Quote(c))
			return
		}
		class = parsed
	}
	issue := 0
	if v := q.Get("issue"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid issue number")
			return
		}
		issue = n
	}

	rep, ok := s.report(w, r)
	if !ok {
		return
	}
	records := rep.Diffs
	if class != "" {
		records = diff.Filter(records, class)
	}
	if issue != 0 {
		records = diff.GroupByIssue(records)[issue]
	}
	if records == nil {
		records = []diff.Record{}
	}
	writeJSON(w, http.StatusOK, DiffView{
		GeneratedAt: rep.GeneratedAt,
		Counts:      rep.DiffCounts,
		Records:     records,
	})
}

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	var want state.Lifecycle
	if v := r.URL.Query().Get("state"); v != "" {
		l, ok := state.ParseLifecycle(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown state "+strconv.Quote(v))
			return
		}
		want = l
	}

	rep, ok := s.report(w, r)
	if !ok {
		return
	}
	views := make([]StateView, 0, len(rep.Issues))
	for _, ir := range rep.Issues {
		if want != "" && ir.State != want {
			continue
		}
		views = append(views, StateView{Number: ir.Number, State: ir.State, Detail: ir.Detail, Reason: ir.Reason})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request, issueStr string) {
	if !allowGet(w, r) {
		return
	}
	issue, err := strconv.Atoi(issueStr)
	if err != nil || issue <= 0 {
		writeError(w, http.StatusBadRequest, "invalid issue number")
		return
	}
	rep, ok := s.report(w, r)
	if !ok {
		return
	}
	ir, found := rep.Issue(issue)
	if !found {
		writeError(w, http.StatusNotFound, "issue not found")
		return
	}
	writeJSON(w, http.StatusOK, ir)
}

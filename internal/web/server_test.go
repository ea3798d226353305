package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lucasnoah/reprofactory/internal/aggregate"
	"github.com/lucasnoah/reprofactory/internal/db"
	"github.com/lucasnoah/reprofactory/internal/diff"
	"github.com/lucasnoah/reprofactory/internal/evaluate"
	"github.com/lucasnoah/reprofactory/internal/result"
	"github.com/lucasnoah/reprofactory/internal/state"
)

type fakeEvaluator struct {
	mu    sync.Mutex
	rep   *evaluate.Report
	err   error
	calls int
}

func (f *fakeEvaluator) Evaluate(ctx context.Context) (*evaluate.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.rep, f.err
}

func sampleReport() *evaluate.Report {
	regression := diff.Record{
		Issue: 2, ProjectPath: "issue-2/App.csproj",
		BaselineStatus: result.StatusSuccess, CurrentStatus: result.StatusFailed,
		Classification: diff.Regression,
	}
	fixed := diff.Record{
		Issue: 1, ProjectPath: "issue-1/App.csproj",
		BaselineStatus: result.StatusFailed, CurrentStatus: result.StatusSuccess,
		Classification: diff.Fixed,
	}
	records := []diff.Record{fixed, regression}
	return &evaluate.Report{
		GeneratedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Issues: []evaluate.IssueReport{
			{Number: 1, State: state.Runnable, Detail: "runnable", Status: aggregate.Passed, Diffs: records[:1]},
			{Number: 2, State: state.Runnable, Detail: "runnable", Status: aggregate.Failed, Diffs: records[1:]},
			{Number: 3, State: state.Skipped, Detail: "skipped", Reason: "GUI", Status: aggregate.Skipped},
		},
		Diffs:      records,
		Totals:     aggregate.Totals(map[int]aggregate.Status{1: aggregate.Passed, 2: aggregate.Failed, 3: aggregate.Skipped}),
		DiffCounts: diff.Counts(records),
	}
}

func newTestServer(t *testing.T, database *db.DB) (*Server, *fakeEvaluator) {
	t.Helper()
	ev := &fakeEvaluator{rep: sampleReport()}
	return NewServer(ev, database, 0, nil), ev
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := get(t, s.Handler(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	s, ev := newTestServer(t, nil)
	h := s.Handler()
	rec := get(t, h, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var view StatusView
	decode(t, rec, &view)
	if len(view.Issues) != 3 {
		t.Fatalf("len(Issues) = %d, want 3", len(view.Issues))
	}
	if view.Totals[aggregate.Passed] != 1 || view.Totals[aggregate.NotCompiling] != 0 {
		t.Errorf("Totals = %v", view.Totals)
	}
	if _, ok := view.Totals[aggregate.NotRestored]; !ok {
		t.Error("every bucket should be present in totals")
	}

	get(t, h, "/api/status")
	if ev.calls != 2 {
		t.Errorf("evaluator calls = %d, want 2 (no caching)", ev.calls)
	}
}

func TestStatus_EvaluationError(t *testing.T) {
	s, ev := newTestServer(t, nil)
	ev.err = errors.New("read root: permission denied")
	rec := get(t, s.Handler(), "/api/status")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "permission denied") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestDiff(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	var all DiffView
	decode(t, get(t, h, "/api/diff"), &all)
	if len(all.Records) != 2 {
		t.Errorf("len(Records) = %d, want 2", len(all.Records))
	}
	if all.Counts[diff.Regression] != 1 {
		t.Errorf("Counts = %v", all.Counts)
	}

	var reg DiffView
	decode(t, get(t, h, "/api/diff?classification=Regression"), &reg)
	if len(reg.Records) != 1 || reg.Records[0].Issue != 2 {
		t.Errorf("regressions = %+v", reg.Records)
	}

	var byIssue DiffView
	decode(t, get(t, h, "/api/diff?issue=1"), &byIssue)
	if len(byIssue.Records) != 1 || byIssue.Records[0].Classification != diff.Fixed {
		t.Errorf("issue 1 records = %+v", byIssue.Records)
	}

	var none DiffView
	rec := get(t, h, "/api/diff?issue=3")
	decode(t, rec, &none)
	if none.Records == nil || len(none.Records) != 0 {
		t.Errorf("issue 3 records = %#v, want empty list", none.Records)
	}

	if rec := get(t, h, "/api/diff?classification=Bogus"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad classification status = %d, want 400", rec.Code)
	}
	if rec := get(t, h, "/api/diff?issue=x"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad issue status = %d, want 400", rec.Code)
	}
}

func TestStates(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	var views []StateView
	decode(t, get(t, h, "/api/states?state=Skipped"), &views)
	if len(views) != 1 || views[0].Number != 3 || views[0].Reason != "GUI" {
		t.Errorf("Skipped states = %+v", views)
	}
	if rec := get(t, h, "/api/states?state=nope"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestIssue(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	var ir evaluate.IssueReport
	decode(t, get(t, h, "/api/issues/2"), &ir)
	if ir.Number != 2 || ir.Status != aggregate.Failed || len(ir.Diffs) != 1 {
		t.Errorf("issue 2 = %+v", ir)
	}

	if rec := get(t, h, "/api/issues/99"); rec.Code != http.StatusNotFound {
		t.Errorf("missing issue status = %d, want 404", rec.Code)
	}
	if rec := get(t, h, "/api/issues/abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad issue status = %d, want 400", rec.Code)
	}
	if rec := get(t, h, "/api/issues/1/extra"); rec.Code != http.StatusNotFound {
		t.Errorf("nested path status = %d, want 404", rec.Code)
	}
}

func TestHistory_NotConfigured(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, path := range []string{"/api/history", "/api/history/flaky", "/api/history/issues/1"} {
		if rec := get(t, s.Handler(), path); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, rec.Code)
		}
	}
}

func testDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := d.Migrate(); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestHistory(t *testing.T) {
	d := testDB(t)
	id, err := d.RecordReport(sampleReport())
	if err != nil {
		t.Fatalf("RecordReport: %v", err)
	}
	s, _ := newTestServer(t, d)
	h := s.Handler()

	var hist HistoryView
	decode(t, get(t, h, "/api/history"), &hist)
	if len(hist.Runs) != 1 || hist.Runs[0].ID != id {
		t.Errorf("runs = %+v", hist.Runs)
	}
	if hist.Summary.Runs != 1 || hist.Summary.Latest != 50 {
		t.Errorf("summary = %+v", hist.Summary)
	}

	var entries []map[string]interface{}
	decode(t, get(t, h, "/api/history/issues/2"), &entries)
	if len(entries) != 1 || entries[0]["status"] != "Failed" {
		t.Errorf("issue history = %+v", entries)
	}

	var flaky []map[string]interface{}
	decode(t, get(t, h, "/api/history/flaky"), &flaky)
	if len(flaky) != 0 {
		t.Errorf("flaky = %+v, want none", flaky)
	}

	rec := get(t, h, "/api/history/runs/"+id)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"results"`) {
		t.Errorf("run detail = %d %s", rec.Code, rec.Body.String())
	}
	if rec := get(t, h, "/api/history/runs/ZZZZ"); rec.Code != http.StatusNotFound {
		t.Errorf("missing run status = %d, want 404", rec.Code)
	}
	if rec := get(t, h, "/api/history?limit=-1"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestStream(t *testing.T) {
	s, _ := newTestServer(t, nil)
	s.streamInterval = 10 * time.Millisecond
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	sc := bufio.NewScanner(resp.Body)
	if !sc.Scan() || sc.Text() != "event: status" {
		t.Fatalf("first line = %q, want status event", sc.Text())
	}
	if !sc.Scan() || !strings.HasPrefix(sc.Text(), "data: {") {
		t.Fatalf("second line = %q, want JSON data", sc.Text())
	}
}

func TestStream_ErrorEventIsOneFrame(t *testing.T) {
	s, ev := newTestServer(t, nil)
	ev.err = errors.New("discover issues:\nread root /repo: permission denied")
	s.streamInterval = time.Hour
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/stream: %v", err)
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() && sc.Text() != "" {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 2 || lines[0] != "event: error" {
		t.Fatalf("error frame = %q, want event line plus one data line", lines)
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &payload); err != nil {
		t.Fatalf("decode error data: %v", err)
	}
	if payload["error"] != ev.err.Error() {
		t.Errorf("error = %q, want %q", payload["error"], ev.err.Error())
	}
}

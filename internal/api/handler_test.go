package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/kyleoneill/chimerascript/internal/live"
	"github.com/kyleoneill/chimerascript/internal/store"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	db, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Handler{Store: db, Hub: live.NewHub()}
}

func newTestServer(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestListRunsEmpty(t *testing.T) {
	h := newTestHandler(t)
	srv := newTestServer(t, h)

	resp, err := http.Get(srv.URL + "/runs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	var runs []store.Run
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		t.Fatalf("unexpected error decoding body: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}
}

func TestGetRunNotFound(t *testing.T) {
	h := newTestHandler(t)
	srv := newTestServer(t, h)

	resp, err := http.Get(srv.URL + "/runs/does-not-exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", resp.StatusCode)
	}
}

func TestGetRunAndListCases(t *testing.T) {
	h := newTestHandler(t)
	if err := h.Store.CreateRun("run-1", "smoke.cs"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := h.Store.RecordCase("run-1", nil, "outer", "PASSED", "", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.Store.FinishRun("run-1", "passed", "1/1 passed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	srv := newTestServer(t, h)

	resp, err := http.Get(srv.URL + "/runs/run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	var run store.Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("unexpected error decoding body: %v", err)
	}
	if run.ID != "run-1" || run.Status != "passed" {
		t.Errorf("unexpected run: %+v", run)
	}

	casesResp, err := http.Get(srv.URL + "/runs/run-1/cases")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer casesResp.Body.Close()
	var cases []store.CaseRecord
	if err := json.NewDecoder(casesResp.Body).Decode(&cases); err != nil {
		t.Fatalf("unexpected error decoding body: %v", err)
	}
	if len(cases) != 1 || cases[0].Name != "outer" {
		t.Fatalf("unexpected cases: %+v", cases)
	}
}

func TestExportCSVSetsHeaders(t *testing.T) {
	h := newTestHandler(t)
	if err := h.Store.CreateRun("run-1", "smoke.cs"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	srv := newTestServer(t, h)

	resp, err := http.Get(srv.URL + "/runs/run-1/export.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("got Content-Type %q, want text/csv", ct)
	}
}

func TestExportJSONSetsContentType(t *testing.T) {
	h := newTestHandler(t)
	if err := h.Store.CreateRun("run-1", "smoke.cs"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	srv := newTestServer(t, h)

	resp, err := http.Get(srv.URL + "/runs/run-1/export.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("got Content-Type %q, want application/json", ct)
	}
}

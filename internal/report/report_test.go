package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/kyleoneill/chimerascript/internal/runner"
	"github.com/kyleoneill/chimerascript/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedTestData(t *testing.T, s *store.Store) {
	t.Helper()
	if err := s.CreateRun("run-1", "smoke.chs"); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if _, err := s.RecordCase("run-1", nil, "create_widget", "PASSED", "", 120); err != nil {
		t.Fatalf("failed to record case: %v", err)
	}
	if _, err := s.RecordCase("run-1", nil, "delete_missing_widget", "FAILED", "assertion STATUS failed", 40); err != nil {
		t.Fatalf("failed to record case: %v", err)
	}
}

func TestExportCSV_NoCases(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateRun("run-empty", "empty.chs"); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	var buf bytes.Buffer
	if err := ExportCSV(&buf, s, "run-empty"); err != nil {
		t.Fatalf("ExportCSV returned error: %v", err)
	}

	output := buf.String()
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}
	if lines[0] != "name,status,error_message,duration_ms" {
		t.Errorf("unexpected header: %s", lines[0])
	}
}

func TestExportCSV_WithCases(t *testing.T) {
	s := newTestStore(t)
	seedTestData(t, s)

	var buf bytes.Buffer
	if err := ExportCSV(&buf, s, "run-1"); err != nil {
		t.Fatalf("ExportCSV returned error: %v", err)
	}

	r := csv.NewReader(strings.NewReader(buf.String()))
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected 3 rows (1 header + 2 data), got %d", len(records))
	}
	row := records[1]
	if row[0] != "create_widget" {
		t.Errorf("name: got %q, want %q", row[0], "create_widget")
	}
	if row[1] != "PASSED" {
		t.Errorf("status: got %q, want %q", row[1], "PASSED")
	}
	if row[3] != "120" {
		t.Errorf("duration_ms: got %q, want %q", row[3], "120")
	}
}

func TestExportJSON_NoCases(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateRun("run-empty", "empty.chs"); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	var buf bytes.Buffer
	if err := ExportJSON(&buf, s, "run-empty"); err != nil {
		t.Fatalf("ExportJSON returned error: %v", err)
	}

	output := strings.TrimSpace(buf.String())
	if output != "[]" {
		t.Errorf("expected %q, got %q", "[]", output)
	}
}

func TestExportJSON_FieldValues(t *testing.T) {
	s := newTestStore(t)
	seedTestData(t, s)

	var buf bytes.Buffer
	if err := ExportJSON(&buf, s, "run-1"); err != nil {
		t.Fatalf("ExportJSON returned error: %v", err)
	}

	var records []CaseJSON
	if err := json.Unmarshal(buf.Bytes(), &records); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Name != "create_widget" || records[0].Status != "PASSED" {
		t.Errorf("unexpected record 0: %+v", records[0])
	}
	if records[1].ErrorMessage != "assertion STATUS failed" {
		t.Errorf("error_message: got %q, want %q", records[1].ErrorMessage, "assertion STATUS failed")
	}
}

func TestTerminal(t *testing.T) {
	results := []*runner.CaseResult{
		{Name: "outer", Status: runner.Passed, Children: []*runner.CaseResult{
			{Name: "outer.inner", Status: runner.Failed},
		}},
	}
	var buf bytes.Buffer
	Terminal(&buf, results)

	output := buf.String()
	if !strings.Contains(output, "outer") || !strings.Contains(output, "outer.inner") {
		t.Errorf("expected both case names in output, got: %s", output)
	}
	if !strings.Contains(output, "RESULT: FAIL") {
		t.Errorf("expected overall FAIL (nested case failed), got: %s", output)
	}
}

// Package report renders ChimeraScript run results: the live terminal
// summary printed after a run, CSV/JSON exports of a persisted run's
// case table, and a customer-facing PDF. Grounded on the teacher's
// internal/report (CSV/JSON export shape) and internal/artifact/pdf.go
// (fpdf cell-table layout), adapted from device measurements to cases.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/kyleoneill/chimerascript/internal/runner"
	"github.com/kyleoneill/chimerascript/internal/store"
)

// CaseJSON is the JSON representation of one case result for export.
type CaseJSON struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
}

// ExportCSV writes a run's case table as CSV to w.
// Headers: name,status,error_message,duration_ms
func ExportCSV(w io.Writer, s *store.Store, runID string) error {
	cases, err := s.QueryCases(runID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "status", "error_message", "duration_ms"}); err != nil {
		return err
	}

	for _, c := range cases {
		record := []string{c.Name, c.Status, c.ErrorMessage, strconv.FormatInt(c.DurationMs, 10)}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportJSON writes a run's case table as a JSON array to w.
func ExportJSON(w io.Writer, s *store.Store, runID string) error {
	cases, err := s.QueryCases(runID)
	if err != nil {
		return err
	}

	records := make([]CaseJSON, len(cases))
	for i, c := range cases {
		records[i] = CaseJSON{
			Name:         c.Name,
			Status:       c.Status,
			ErrorMessage: c.ErrorMessage,
			DurationMs:   c.DurationMs,
		}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

// Terminal writes the live terminal report for a finished run (spec §6
// and the teacher's print_in_function/ResultCount.print_with_time
// voice): one dot-filled `<dotted-name> ... <STATUS>` line per case,
// indented by nesting depth, followed by a summary block.
func Terminal(w io.Writer, results []*runner.CaseResult) {
	for _, r := range results {
		printCaseLine(w, r, 0)
	}
	counts := runner.CountResults(results)
	fmt.Fprintf(w, "\n%d total, %d passed, %d failed, %d expected failure, %d unexpected success\n",
		counts.Total, counts.Passed, counts.Failed, counts.ExpectedFailure, counts.UnexpectedSuccess)
	if counts.OverallPassed() {
		fmt.Fprintln(w, "RESULT: PASS")
	} else {
		fmt.Fprintln(w, "RESULT: FAIL")
	}
}

const summaryLineWidth = 60

func printCaseLine(w io.Writer, r *runner.CaseResult, depth int) {
	indent := strings.Repeat("  ", depth)
	label := r.Name
	status := r.Status.String()
	dots := summaryLineWidth - len(indent) - len(label) - len(status)
	if dots < 3 {
		dots = 3
	}
	fmt.Fprintf(w, "%s%s %s %s\n", indent, label, strings.Repeat(".", dots), status)
	for _, child := range r.Children {
		printCaseLine(w, child, depth+1)
	}
}

// GeneratePDF renders a customer-facing PDF report for one run: header
// info, then a case-results table, adapted from the teacher's
// RMA-report table layout (internal/artifact/pdf.go, now deleted —
// its fpdf technique lives on here).
func GeneratePDF(w io.Writer, s *store.Store, runID string) error {
	run, err := s.GetRun(runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	cases, err := s.QueryCases(runID)
	if err != nil {
		return fmt.Errorf("load cases: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, "ChimeraScript Test Report", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	info := []struct{ label, value string }{
		{"Run ID", run.ID},
		{"Script", run.ScriptName},
		{"Status", run.Status},
		{"Started", run.StartedAt.Format(time.RFC3339)},
	}
	if run.FinishedAt != nil {
		info = append(info, struct{ label, value string }{"Finished", run.FinishedAt.Format(time.RFC3339)})
	}
	if run.Summary != "" {
		info = append(info, struct{ label, value string }{"Summary", run.Summary})
	}
	for _, item := range info {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(30, 7, item.label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Case Results", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(cases) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.CellFormat(0, 7, "No cases recorded.", "", 1, "L", false, 0, "")
	} else {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(220, 220, 220)
		pdf.CellFormat(80, 7, "Name", "1", 0, "L", true, 0, "")
		pdf.CellFormat(30, 7, "Status", "1", 0, "C", true, 0, "")
		pdf.CellFormat(25, 7, "Duration", "1", 0, "R", true, 0, "")
		pdf.CellFormat(0, 7, "Error", "1", 1, "L", true, 0, "")

		pdf.SetFont("Arial", "", 9)
		for _, c := range cases {
			pdf.CellFormat(80, 7, truncate(c.Name, 45), "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 7, c.Status, "1", 0, "C", false, 0, "")
			pdf.CellFormat(25, 7, fmt.Sprintf("%dms", c.DurationMs), "1", 0, "R", false, 0, "")
			pdf.CellFormat(0, 7, truncate(c.ErrorMessage, 45), "1", 1, "L", false, 0, "")
		}
	}

	return pdf.Output(w)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

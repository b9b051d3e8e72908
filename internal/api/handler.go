// Package api serves the ChimeraScript dashboard: run history, a run's
// case-result tree, and CSV/JSON/PDF export, over the run history kept
// in internal/store. Grounded on the teacher's internal/api/handler.go
// (RegisterRoutes/writeJSON shape), with the device/station/estop
// surface dropped since ChimeraScript has no hardware to manage.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kyleoneill/chimerascript/internal/live"
	"github.com/kyleoneill/chimerascript/internal/report"
	"github.com/kyleoneill/chimerascript/internal/store"
)

// Handler holds all dependencies for HTTP request handling.
type Handler struct {
	Store *store.Store
	Hub   *live.Hub
}

// RegisterRoutes adds all API routes to the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /runs", h.listRuns)
	mux.HandleFunc("GET /runs/{id}", h.getRun)
	mux.HandleFunc("GET /runs/{id}/cases", h.listCases)
	mux.HandleFunc("GET /runs/{id}/export.csv", h.exportCSV)
	mux.HandleFunc("GET /runs/{id}/export.json", h.exportJSON)
	mux.HandleFunc("GET /runs/{id}/report.pdf", h.exportPDF)
	mux.HandleFunc("GET /live", h.Hub.HandleWebSocket)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.QueryRuns()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("failed to query runs: %v", err)})
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := h.Store.GetRun(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("failed to load run: %v", err)})
		return
	}
	if run == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *Handler) listCases(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cases, err := h.Store.QueryCases(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("failed to query cases: %v", err)})
		return
	}
	writeJSON(w, http.StatusOK, cases)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", id))
	if err := report.ExportCSV(w, h.Store, id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) exportJSON(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	w.Header().Set("Content-Type", "application/json")
	if err := report.ExportJSON(w, h.Store, id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", id))
	if err := report.GeneratePDF(w, h.Store, id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tsp-search/internal/models"
)

// RunListResponse represents the list response
type RunListResponse struct {
	Runs   []models.RunRecord `json:"runs"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// RunDetailResponse is an archived run with its convergence history
type RunDetailResponse struct {
	models.RunRecord
	Summary string                `json:"summary"`
	History []models.HistoryPoint `json:"history"`
}

// HandleListRuns handles GET /api/v1/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	runs, total, err := h.DB.Runs().List(r.Context(), limit, offset)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, RunListResponse{
		Runs:   runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// runIDFromPath extracts {id} from /api/v1/runs/{id}[/suffix]
func runIDFromPath(path string) string {
	rest := strings.TrimPrefix(path, "/api/v1/runs/")
	id, _, _ := strings.Cut(rest, "/")
	return id
}

// HandleGetRun handles GET /api/v1/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := runIDFromPath(r.URL.Path)
	if id == "" {
		h.handleValidationError(w, "Invalid run ID")
		return
	}

	run, history, err := h.DB.Runs().GetByID(r.Context(), id)
	if err != nil {
		if h.checkNotFound(err) {
			h.handleNotFound(w, "Run not found")
			return
		}
		h.handleInternalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, RunDetailResponse{
		RunRecord: *run,
		Summary:   run.Tour.String(),
		History:   history,
	})
}

// HandleRunChart handles GET /api/v1/runs/{id}/chart.png
func (h *Handler) HandleRunChart(w http.ResponseWriter, r *http.Request) {
	id := runIDFromPath(r.URL.Path)

	run, history, err := h.DB.Runs().GetByID(r.Context(), id)
	if err != nil {
		if h.checkNotFound(err) {
			h.handleNotFound(w, "Run not found")
			return
		}
		h.handleInternalError(w, err)
		return
	}

	h.writeChart(w, r, history, run.InstanceName)
}

// HandleDeleteRun handles DELETE /api/v1/runs/{id}
func (h *Handler) HandleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := runIDFromPath(r.URL.Path)
	if id == "" {
		h.handleValidationError(w, "Invalid run ID")
		return
	}

	if err := h.DB.Runs().Delete(r.Context(), id); err != nil {
		if h.checkNotFound(err) {
			h.handleNotFoundHTMX(w, r, "Run not found")
			return
		}
		h.renderError(w, r, err)
		return
	}

	h.log().Info("run deleted", zap.String("run", id))

	if h.isHTMX(r) {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"tsp-search/internal/models"
	"tsp-search/internal/routing"
)

// HandleGetSettings handles GET /api/v1/settings
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.DB.Settings().Get(r.Context())
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, settings)
}

// HandleUpdateSettings handles PUT /api/v1/settings
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.Settings

	if h.isHTMX(r) {
		if err := r.ParseForm(); err != nil {
			h.renderError(w, r, err)
			return
		}
		if msStr := r.FormValue("tick_millis"); msStr != "" {
			ms, err := strconv.Atoi(msStr)
			if err != nil {
				h.handleValidationErrorHTMX(w, r, "Tick period must be a whole number of milliseconds")
				return
			}
			req.TickMillis = ms
		}
		req.CandidateMode = r.FormValue("candidate_mode")
		req.LookupPolicy = r.FormValue("lookup_policy")
		req.HistoryRecord = r.FormValue("history_record")
		req.ShowPath = r.FormValue("show_path") == "on" || r.FormValue("show_path") == "true"
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.log().Warn("invalid settings body", zap.Error(err))
			h.handleValidationError(w, "Invalid request body")
			return
		}
	}

	if req.TickMillis <= 0 {
		h.handleValidationErrorHTMX(w, r, "Tick period must be positive")
		return
	}

	cfg, err := routing.ParseEngineConfig(req.CandidateMode, req.LookupPolicy, req.HistoryRecord)
	if err != nil {
		h.handleValidationErrorHTMX(w, r, err.Error())
		return
	}
	req.CandidateMode = string(cfg.Candidate)
	req.LookupPolicy = string(cfg.Lookup)
	req.HistoryRecord = string(cfg.Record)

	if err := h.DB.Settings().Update(r.Context(), &req); err != nil {
		h.renderError(w, r, err)
		return
	}

	if err := h.Session.ApplySettings(req); err != nil {
		h.handleSearchError(w, r, err)
		return
	}

	h.log().Info("settings updated",
		zap.Int("tick_ms", req.TickMillis),
		zap.String("candidate", req.CandidateMode),
		zap.String("lookup", req.LookupPolicy),
		zap.String("record", req.HistoryRecord),
		zap.Bool("show_path", req.ShowPath))

	if h.isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<div class="alert alert-success">Settings saved. Ticking every %d ms.</div>`, req.TickMillis)
		return
	}

	h.writeJSON(w, http.StatusOK, req)
}

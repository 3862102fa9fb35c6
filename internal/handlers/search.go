package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"tsp-search/internal/chart"
	"tsp-search/internal/models"
	"tsp-search/internal/routing"
)

// SearchResponse is the JSON view of the current search state
type SearchResponse struct {
	Loaded              bool        `json:"loaded"`
	RunID               string      `json:"run_id,omitempty"`
	Instance            string      `json:"instance,omitempty"`
	Running             bool        `json:"running"`
	ShowPath            bool        `json:"show_path"`
	Tour                models.Tour `json:"tour"`
	Summary             string      `json:"summary"`
	Length              float64     `json:"length"`
	Iteration           int         `json:"iteration"`
	CityCount           int         `json:"city_count"`
	LastCandidateLength float64     `json:"last_candidate_length"`
	Improved            bool        `json:"improved"`
	HistoryLen          int         `json:"history_len"`
	InitializedAt       *time.Time  `json:"initialized_at,omitempty"`
}

// HistoryResponse carries convergence samples
type HistoryResponse struct {
	RunID  string                `json:"run_id"`
	From   int                   `json:"from"`
	Points []models.HistoryPoint `json:"points"`
}

func (h *Handler) searchResponse(snap models.Snapshot, loaded bool) SearchResponse {
	resp := SearchResponse{
		Loaded:   loaded,
		Running:  h.Session.Running(),
		ShowPath: h.Session.ShowPath(),
		Tour:     models.Tour{},
	}
	if !loaded {
		return resp
	}

	resp.RunID = h.Session.RunID()
	if inst := h.Session.Instance(); inst != nil {
		resp.Instance = inst.Name
	}
	resp.Tour = snap.Tour
	resp.Summary = snap.Tour.String()
	resp.Length = snap.Length
	resp.Iteration = snap.Iteration
	resp.CityCount = snap.CityCount
	resp.LastCandidateLength = snap.LastCandidateLength
	resp.Improved = snap.Improved
	resp.HistoryLen = snap.History.Len()
	initialized := snap.InitializedAt
	resp.InitializedAt = &initialized
	return resp
}

// respondSearch writes the current state as JSON, or the status partial for htmx
func (h *Handler) respondSearch(w http.ResponseWriter, r *http.Request, snap models.Snapshot, loaded bool) {
	if h.isHTMX(r) {
		h.renderTemplate(w, "search_status.html", h.buildSearchView(snap, loaded))
		return
	}
	h.writeJSON(w, http.StatusOK, h.searchResponse(snap, loaded))
}

// HandleGetSearch handles GET /api/v1/search
func (h *Handler) HandleGetSearch(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.Session.Snapshot()
	h.respondSearch(w, r, snap, ok)
}

// HandleStartSearch handles POST /api/v1/search/start
func (h *Handler) HandleStartSearch(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.Start(); err != nil {
		h.handleSearchError(w, r, err)
		return
	}
	h.log().Info("search started", zap.String("run", h.Session.RunID()))
	snap, ok := h.Session.Snapshot()
	h.respondSearch(w, r, snap, ok)
}

// HandleStopSearch handles POST /api/v1/search/stop
func (h *Handler) HandleStopSearch(w http.ResponseWriter, r *http.Request) {
	h.Session.Stop()
	h.log().Info("search stopped", zap.String("run", h.Session.RunID()))
	snap, ok := h.Session.Snapshot()
	h.respondSearch(w, r, snap, ok)
}

// HandleToggleSearch handles POST /api/v1/search/toggle
func (h *Handler) HandleToggleSearch(w http.ResponseWriter, r *http.Request) {
	running, err := h.Session.Toggle()
	if err != nil {
		h.handleSearchError(w, r, err)
		return
	}
	h.log().Info("search toggled", zap.Bool("running", running))
	snap, ok := h.Session.Snapshot()
	h.respondSearch(w, r, snap, ok)
}

// HandleStepSearch handles POST /api/v1/search/step
func (h *Handler) HandleStepSearch(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Session.Step()
	if err != nil {
		h.handleSearchError(w, r, err)
		return
	}
	h.respondSearch(w, r, snap, true)
}

// HandleTogglePath handles POST /api/v1/search/path, showing or hiding the
// incumbent tour on the map
func (h *Handler) HandleTogglePath(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.Session.Snapshot()
	if !ok {
		h.handleSearchError(w, r, routing.ErrNotInitialized)
		return
	}
	shown := h.Session.TogglePath()
	h.log().Debug("path toggled", zap.Bool("shown", shown))
	h.respondSearch(w, r, snap, true)
}

// HandleGetHistory handles GET /api/v1/search/history?from=N
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	from := 0
	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		f, err := strconv.Atoi(fromStr)
		if err != nil || f < 0 {
			h.handleValidationError(w, "from must be a non-negative integer")
			return
		}
		from = f
	}

	snap, ok := h.Session.Snapshot()
	if !ok {
		h.handleSearchError(w, r, routing.ErrNotInitialized)
		return
	}

	h.writeJSON(w, http.StatusOK, HistoryResponse{
		RunID:  h.Session.RunID(),
		From:   from,
		Points: snap.History.Since(from),
	})
}

// HandleSearchChart handles GET /api/v1/search/chart.png (?format=svg)
func (h *Handler) HandleSearchChart(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.Session.Snapshot()
	if !ok {
		h.handleSearchError(w, r, routing.ErrNotInitialized)
		return
	}

	title := ""
	if inst := h.Session.Instance(); inst != nil {
		title = inst.Name
	}
	h.writeChart(w, r, snap.History.Points(), title)
}

func (h *Handler) writeChart(w http.ResponseWriter, r *http.Request, points []models.HistoryPoint, title string) {
	format := r.URL.Query().Get("format")
	if format != "" && format != "png" && format != "svg" {
		h.handleValidationError(w, fmt.Sprintf("unsupported chart format %q", format))
		return
	}

	w.Header().Set("Content-Type", chart.ContentType(format))
	w.Header().Set("Cache-Control", "no-store")
	if err := chart.Render(w, points, chart.Options{Title: title, Format: format}); err != nil {
		h.log().Error("chart render failed", zap.Error(err))
	}
}

// HandleRouteGeoJSON handles GET /api/v1/search/route.geojson
func (h *Handler) HandleRouteGeoJSON(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.Session.Snapshot()
	inst := h.Session.Instance()
	if !ok || inst == nil {
		h.handleSearchError(w, r, routing.ErrNotInitialized)
		return
	}

	data, err := RouteFeatureCollection(inst, snap).MarshalJSON()
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func formatLength(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatIteration(n int) string {
	return humanize.Comma(int64(n))
}

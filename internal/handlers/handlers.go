package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"tsp-search/internal/database"
	"tsp-search/internal/routing"
	"tsp-search/internal/session"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// TemplateSet holds base templates and page templates separately
type TemplateSet struct {
	Base  *template.Template
	Pages map[string]string
	Funcs template.FuncMap
}

// Handler provides common handler utilities and dependencies
type Handler struct {
	DB        database.DataStore
	Session   *session.Session
	Templates *TemplateSet
	Logger    *zap.Logger
	Desktop   bool // pages run inside the desktop webview
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (h *Handler) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// isHTMX checks if the request is an htmx request
func (h *Handler) isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// handleNotFound handles 404 errors
func (h *Handler) handleNotFound(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// handleNotFoundHTMX handles 404 errors with htmx support
func (h *Handler) handleNotFoundHTMX(w http.ResponseWriter, r *http.Request, message string) {
	if h.isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `<div class="alert alert-warning">%s</div>`, html.EscapeString(message))
		return
	}
	h.handleNotFound(w, message)
}

// handleValidationError handles 400 errors
func (h *Handler) handleValidationError(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// handleValidationErrorHTMX handles 400 errors with htmx support
func (h *Handler) handleValidationErrorHTMX(w http.ResponseWriter, r *http.Request, message string) {
	if h.isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `<div class="alert alert-warning">%s</div>`, html.EscapeString(message))
		return
	}
	h.handleValidationError(w, message)
}

// handleSearchError maps engine errors onto API errors. Rejected instances
// and failed evaluations are 422, a missing instance is 409.
func (h *Handler) handleSearchError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusUnprocessableEntity
	code := ""
	var details interface{}

	var missing *routing.MissingCityError
	switch {
	case errors.Is(err, routing.ErrEmptyInstance):
		code = "EMPTY_INSTANCE"
	case errors.Is(err, routing.ErrDuplicateCity):
		code = "DUPLICATE_CITY"
	case errors.Is(err, routing.ErrInvalidCoordinate):
		code = "INVALID_COORDINATE"
	case errors.Is(err, routing.ErrNonFiniteDistance):
		code = "NON_FINITE_DISTANCE"
	case errors.As(err, &missing):
		code = "MISSING_CITY"
		details = map[string]int{"city_id": missing.ID}
	case errors.Is(err, routing.ErrNotInitialized):
		status = http.StatusConflict
		code = "NO_INSTANCE"
	case errors.Is(err, routing.ErrInvalidConfig):
		status = http.StatusBadRequest
		code = "VALIDATION_ERROR"
	default:
		h.renderError(w, r, err)
		return
	}

	h.log().Warn("search request rejected",
		zap.String("path", r.URL.Path),
		zap.String("code", code),
		zap.Error(err))

	if h.isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="alert alert-warning">%s</div>`, html.EscapeString(err.Error()))
		return
	}
	h.writeError(w, status, code, err.Error(), details)
}

// handleInternalError handles 500 errors
func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	h.log().Error("internal error", zap.Error(err))
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}

// checkNotFound checks if an error is a not found error
func (h *Handler) checkNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

// renderTemplate renders an HTML template
func (h *Handler) renderTemplate(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	// Always clone to avoid "cannot Clone after executed" error
	tmpl, err := h.Templates.Base.Clone()
	if err != nil {
		h.log().Error("template clone failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Page templates define "content" and render inside layout.html
	if pageContent, ok := h.Templates.Pages[name]; ok {
		if _, err := tmpl.New(name).Parse(pageContent); err != nil {
			h.log().Error("template parse failed", zap.String("template", name), zap.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
			h.log().Error("template execute failed", zap.String("template", name), zap.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		h.log().Error("partial execute failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// renderError renders an error response (JSON for API, HTML for htmx)
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	if h.isHTMX(r) {
		h.log().Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, `<div class="alert alert-error">%s</div>`, html.EscapeString(err.Error()))
		return
	}
	h.handleInternalError(w, err)
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "connected"

	if h.DB == nil {
		dbStatus = "disabled"
	} else if err := h.DB.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		dbStatus = "error"
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"version":  Version,
		"database": dbStatus,
	})
}

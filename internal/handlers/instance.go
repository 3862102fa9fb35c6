package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"tsp-search/internal/routing"
	"tsp-search/internal/tsplib"
)

// MaxUploadBytes caps the size of an uploaded TSPLIB document
const MaxUploadBytes = 32 << 20

// HandleLoadInstance handles POST /api/v1/instance. The TSPLIB document is
// read from the multipart "file" field or, for other content types, from
// the raw request body.
func (h *Handler) HandleLoadInstance(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	var src io.Reader = r.Body
	fileName := ""

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
			h.log().Warn("invalid multipart upload", zap.Error(err))
			h.handleValidationErrorHTMX(w, r, "Invalid upload")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			h.handleValidationErrorHTMX(w, r, "Please choose a TSPLIB file to upload.")
			return
		}
		defer file.Close()
		src = file
		fileName = header.Filename
	}

	inst, err := tsplib.Parse(src)
	if err != nil {
		h.log().Warn("failed to read upload", zap.Error(err))
		h.handleValidationErrorHTMX(w, r, "Could not read the uploaded file")
		return
	}
	if inst.Name == "" {
		inst.Name = strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	}
	if inst.Name == "" || inst.Name == "." {
		inst.Name = "upload"
	}

	snap, err := h.Session.Load(r.Context(), inst)
	if err != nil {
		h.handleSearchError(w, r, err)
		return
	}

	h.log().Info("instance uploaded",
		zap.String("name", inst.Name),
		zap.Int("cities", snap.CityCount))

	if h.isHTMX(r) {
		h.respondSearch(w, r, snap, true)
		return
	}
	h.writeJSON(w, http.StatusCreated, h.searchResponse(snap, true))
}

// HandleGetInstance handles GET /api/v1/instance
func (h *Handler) HandleGetInstance(w http.ResponseWriter, r *http.Request) {
	inst := h.Session.Instance()
	if inst == nil {
		h.handleSearchError(w, r, routing.ErrNotInitialized)
		return
	}
	h.writeJSON(w, http.StatusOK, inst)
}

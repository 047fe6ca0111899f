package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"pdf-annotation-sync/internal/domain"
	apperrors "pdf-annotation-sync/pkg/errors"

	"github.com/gorilla/mux"
)

// HighlightHandler handles highlight-related HTTP requests.
type HighlightHandler struct {
	logger           domain.Logger
	highlightService domain.HighlightService
	maxBodyBytes     int64
}

func NewHighlightHandler(highlightService domain.HighlightService, logger domain.Logger, maxBodyBytes int64) *HighlightHandler {
	return &HighlightHandler{
		logger:           logger,
		highlightService: highlightService,
		maxBodyBytes:     maxBodyBytes,
	}
}

type createHighlightRequest struct {
	DocID     string              `json:"docId"`
	Highlight domain.RawHighlight `json:"highlight"`
}

// ListHighlights handles GET /api/highlights?docId=...
func (h *HighlightHandler) ListHighlights(w http.ResponseWriter, r *http.Request) {
	identity := domain.DocumentIdentity(r.URL.Query().Get("docId"))

	highlights, err := h.highlightService.ListHighlights(r.Context(), identity)
	if err != nil {
		writeAppError(w, h.logger, err, "document_id", identity)
		return
	}
	if highlights == nil {
		highlights = make([]domain.RawHighlight, 0)
	}
	writeJSON(w, http.StatusOK, highlights)
}

// CreateHighlight handles POST /api/highlights
func (h *HighlightHandler) CreateHighlight(w http.ResponseWriter, r *http.Request) {
	var req createHighlightRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if len(req.Highlight) == 0 {
		writeError(w, http.StatusBadRequest, "highlight is required")
		return
	}

	identity := domain.DocumentIdentity(req.DocID)
	if err := h.highlightService.AddHighlight(r.Context(), identity, req.Highlight); err != nil {
		writeAppError(w, h.logger, err, "document_id", identity, "highlight_id", req.Highlight.ID())
		return
	}
	writeSuccess(w)
}

// UpdateHighlight handles PUT /api/highlights/{docId}/{id}. The body is a
// partial record merged over the stored one.
func (h *HighlightHandler) UpdateHighlight(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	identity := domain.DocumentIdentity(vars["docId"])
	id := vars["id"]

	var patch domain.HighlightPatch
	if !h.decodeBody(w, r, &patch) {
		return
	}

	if err := h.highlightService.UpdateHighlight(r.Context(), identity, id, patch); err != nil {
		writeAppError(w, h.logger, err, "document_id", identity, "highlight_id", id)
		return
	}
	writeSuccess(w)
}

// DeleteHighlight handles DELETE /api/highlights/{docId}/{id}
func (h *HighlightHandler) DeleteHighlight(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	identity := domain.DocumentIdentity(vars["docId"])
	id := vars["id"]

	if err := h.highlightService.DeleteHighlight(r.Context(), identity, id); err != nil {
		writeAppError(w, h.logger, err, "document_id", identity, "highlight_id", id)
		return
	}
	writeSuccess(w)
}

func (h *HighlightHandler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			appErr := apperrors.NewTooLargeError("Request body too large", err)
			h.logger.Warn("Rejected oversized request body", "path", r.URL.Path, "limit", tooLarge.Limit)
			writeError(w, appErr.StatusCode, appErr.Message)
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}


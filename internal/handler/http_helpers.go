package handler

import (
	"encoding/json"
	"net/http"

	"pdf-annotation-sync/internal/domain"
	apperrors "pdf-annotation-sync/pkg/errors"
)

type successResponse struct {
	Success bool `json:"success"`
}

// writeError writes an error response (helper function)
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// writeAppError maps err onto a status code and message. Server-side
// failures are logged and their cause is not echoed to the caller.
func writeAppError(w http.ResponseWriter, logger domain.Logger, err error, fields ...interface{}) {
	appErr := apperrors.FromDomain(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.Error(appErr.Message, err, fields...)
	}
	writeError(w, appErr.StatusCode, appErr.Message)
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/username/zynbudget/backend/src/security/validation"
	"github.com/username/zynbudget/backend/src/services"
	"github.com/username/zynbudget/backend/src/utils"
)

type contextKey string

const (
	userIDContextKey    contextKey = "userID"
	requestIDContextKey contextKey = "requestID"
)

func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	utils.SendJSONError(w, message, statusCode)
}

func sendJSON(w http.ResponseWriter, payload interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// userIDFromContext reads the authenticated user set by AuthMiddleware.
func userIDFromContext(r *http.Request) (int64, bool) {
	id, ok := r.Context().Value(userIDContextKey).(int64)
	return id, ok
}

// idParam parses a chi URL parameter as an int64.
func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// parseFormID parses a multipart form field as an int64 ID.
func parseFormID(value string) (int64, error) {
	return strconv.ParseInt(value, 10, 64)
}

// sendServiceError maps the service error taxonomy onto HTTP statuses.
func sendServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		sendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrDuplicateSnapshot):
		sendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrParsingFailed),
		errors.Is(err, services.ErrProcessingFailed),
		errors.Is(err, validation.ErrValidationFailed):
		sendJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		sendJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}

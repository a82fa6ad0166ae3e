package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"tablematch_server/middleware"
	"tablematch_server/models"
	"tablematch_server/services"

	"github.com/gorilla/mux"
)

// upstreamRetryAfter is the Retry-After hint sent with 503 responses, in seconds
const upstreamRetryAfter = 5

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

// writeError maps service errors to HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	var invalid *models.ValidationError
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalid.Error(), Field: invalid.Field})
	case errors.Is(err, services.ErrNotMember), errors.Is(err, services.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrUpstreamUnavailable):
		w.Header().Set("Retry-After", strconv.Itoa(upstreamRetryAfter))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: services.ErrUpstreamUnavailable.Error()})
	default:
		log.Printf("❌ Internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// validator is implemented by every request body
type validator interface {
	Validate() error
}

// decodeBody parses and validates a JSON request body
func decodeBody(r *http.Request, dst validator) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &models.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return dst.Validate()
}

// caller returns the authenticated user and the {id} path variable
func caller(r *http.Request) (userID, sessionID string) {
	userID, _ = middleware.UserIDFromContext(r.Context())
	return userID, mux.Vars(r)["id"]
}

// HealthCheckHandler provides a basic health check
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

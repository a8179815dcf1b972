// Package api provides HTTP handlers for the clarity API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/stillroom/clarity-engine/internal/clarify"
	"github.com/stillroom/clarity-engine/internal/store"
)

// Handler provides common handler utilities.
type Handler struct {
	svc  *clarify.Service
	repo store.Repository
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(svc *clarify.Service, repo store.Repository) *Handler {
	return &Handler{svc: svc, repo: repo}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

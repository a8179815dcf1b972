package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthHandler reports service and store health.
type HealthHandler struct {
	*Handler
}

// NewHealthHandler creates a health check handler.
func NewHealthHandler(base *Handler) *HealthHandler {
	return &HealthHandler{Handler: base}
}

// RegisterHealth registers the health route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}

// Health handles GET /health. Store unavailability degrades the report
// but the process stays up; every dependency here fails open.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	storeStatus := "ok"
	status := http.StatusOK
	if err := h.repo.Ping(r.Context()); err != nil {
		storeStatus = "unavailable"
		status = http.StatusServiceUnavailable
	}

	JSON(w, status, map[string]string{
		"status": "ok",
		"store":  storeStatus,
	})
}

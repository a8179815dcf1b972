package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stillroom/clarity-engine/internal/clarify"
	"github.com/stillroom/clarity-engine/internal/domain"
)

// ClarifyHandler serves the reflection endpoints.
type ClarifyHandler struct {
	*Handler
}

// NewClarifyHandler creates the reflection endpoint handler.
func NewClarifyHandler(base *Handler) *ClarifyHandler {
	return &ClarifyHandler{Handler: base}
}

// RegisterRoutes registers the reflection routes.
func (h *ClarifyHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/clarify", h.Clarify)
		r.Post("/session", h.RegisterSession)
		r.Post("/me/plan", h.Plan)
		r.Post("/me/memory", h.Memory)
	})
}

type clarifyRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"sessionId"`
	Plan      string `json:"plan"`
}

// clarifyResponse mirrors the shape the frontend renders: the clarity
// body travels as "output".
type clarifyResponse struct {
	Output            string `json:"output"`
	Insight           string `json:"insight"`
	DailyThread       string `json:"daily_thread"`
	Question          string `json:"question"`
	Model             string `json:"model,omitempty"`
	Plan              string `json:"plan,omitempty"`
	LimitReached      bool   `json:"limitReached,omitempty"`
	RemainingMessages *int   `json:"remainingMessages,omitempty"`
}

// Clarify handles POST /api/clarify.
func (h *ClarifyHandler) Clarify(w http.ResponseWriter, r *http.Request) {
	var req clarifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Clarify(r.Context(), clarify.Request{
		Text:      req.Text,
		SessionID: req.SessionID,
		Plan:      domain.ParsePlan(req.Plan),
	})
	if err != nil {
		if errors.Is(err, clarify.ErrEmptyInput) {
			Error(w, http.StatusBadRequest, "No input provided")
			return
		}
		slog.Error("Clarify request failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := clarifyResponse{
		Output:      result.Reply.Clarity,
		Insight:     result.Reply.Insight,
		DailyThread: result.Reply.Thread,
		Question:    result.Reply.Question,
		Model:       result.Model,
		Plan:        string(result.Plan),
	}

	switch {
	case result.LimitReached:
		// Quota denial is a designed terminal state, not an error.
		zero := 0
		resp.LimitReached = true
		resp.RemainingMessages = &zero
		resp.Model = ""
		resp.Plan = ""
		JSON(w, http.StatusOK, resp)
	case result.Degraded:
		// Even an unrecoverable failure carries a complete reply body.
		JSON(w, http.StatusInternalServerError, resp)
	default:
		JSON(w, http.StatusOK, resp)
	}
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

// RegisterSession handles POST /api/session. Clients call it once when
// they mint a session id, so later turns can be persisted against it.
func (h *ClarifyHandler) RegisterSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.RegisterSession(r.Context(), req.SessionID); err != nil {
		if !domain.ValidSessionID(req.SessionID) {
			Error(w, http.StatusBadRequest, "invalid session id")
			return
		}
		slog.Error("Session registration failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to register session")
		return
	}

	JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Plan handles POST /api/me/plan.
func (h *ClarifyHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Matching a missing sessionId, a malformed body resolves to free.
		JSON(w, http.StatusOK, map[string]string{"plan": string(domain.PlanFree)})
		return
	}

	plan := h.svc.ResolvePlan(r.Context(), req.SessionID)
	JSON(w, http.StatusOK, map[string]string{"plan": string(plan)})
}

type memoryEventResponse struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Memory handles POST /api/me/memory: the session's recent emotional
// timeline, newest first. Like the plan endpoint it never errors; a
// malformed body or unknown session yields an empty timeline.
func (h *ClarifyHandler) Memory(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSON(w, http.StatusOK, map[string][]memoryEventResponse{"events": {}})
		return
	}

	events := h.svc.SessionMemory(r.Context(), req.SessionID)
	out := make([]memoryEventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, memoryEventResponse{Content: ev.Content, CreatedAt: ev.CreatedAt})
	}
	JSON(w, http.StatusOK, map[string][]memoryEventResponse{"events": out})
}

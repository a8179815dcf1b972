// Package billing integrates Stripe Checkout and the subscription
// webhook. It only ever performs single upsert/update operations on the
// subscriptions collection; the reflection pipeline reads plan status
// from there and never writes it.
package billing

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/stillroom/clarity-engine/internal/api"
	"github.com/stillroom/clarity-engine/internal/config"
	"github.com/stillroom/clarity-engine/internal/domain"
	"github.com/stillroom/clarity-engine/internal/store"
)

// Stripe never sends webhook payloads anywhere near this size.
const maxWebhookBody = 64 * 1024

// Handler serves the checkout and webhook endpoints.
type Handler struct {
	repo store.Repository
	cfg  config.StripeConfig
}

// NewHandler creates the billing handler and sets the global Stripe key.
func NewHandler(repo store.Repository, cfg config.StripeConfig) *Handler {
	stripe.Key = cfg.SecretKey
	return &Handler{repo: repo, cfg: cfg}
}

// RegisterRoutes registers the billing routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/checkout", h.CreateCheckout)
	r.Post("/api/stripe/webhook", h.Webhook)
}

type checkoutRequest struct {
	SessionID string `json:"sessionId"`
}

// CreateCheckout handles POST /api/checkout: it creates a Stripe Checkout
// session for the subscription price and links it to the app session via
// the client reference id.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	// A missing body just means an anonymous checkout.
	_ = json.NewDecoder(r.Body).Decode(&req)

	sessionID := req.SessionID
	if sessionID != "" && !domain.ValidSessionID(sessionID) {
		sessionID = ""
	}

	if h.cfg.PriceID == "" {
		api.Error(w, http.StatusInternalServerError, "missing STRIPE_PRICE_ID")
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(h.cfg.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:          stripe.String(h.cfg.AppURL + "/clarify"),
		CancelURL:           stripe.String(h.cfg.AppURL + "/clarify"),
		AllowPromotionCodes: stripe.Bool(true),
	}
	if sessionID != "" {
		params.ClientReferenceID = stripe.String(sessionID)
		params.AddMetadata("sessionId", sessionID)
	}

	cs, err := checkoutsession.New(params)
	if err != nil {
		slog.Error("Stripe checkout creation failed", "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to create checkout session")
		return
	}

	api.JSON(w, http.StatusOK, map[string]string{"url": cs.URL})
}

// Webhook handles POST /api/stripe/webhook. A completed checkout
// activates pro for the linked session; subscription updates and
// deletions sync status by the provider's subscription id.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		api.Error(w, http.StatusBadRequest, "missing Stripe signature")
		return
	}

	event, err := webhook.ConstructEvent(payload, signature, h.cfg.WebhookSecret)
	if err != nil {
		slog.Warn("Invalid Stripe signature", "error", err)
		api.Error(w, http.StatusBadRequest, "invalid signature")
		return
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		h.handleCheckoutCompleted(r, event)
	case stripe.EventTypeCustomerSubscriptionUpdated, stripe.EventTypeCustomerSubscriptionDeleted:
		h.handleSubscriptionChanged(r, event)
	}

	api.JSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) handleCheckoutCompleted(r *http.Request, event stripe.Event) {
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		slog.Error("Failed to decode checkout session", "error", err)
		return
	}

	sessionID := cs.ClientReferenceID
	if sessionID == "" {
		sessionID = cs.Metadata["sessionId"]
	}
	if sessionID == "" || cs.Subscription == nil || cs.Customer == nil {
		slog.Warn("Checkout completed without session linkage", "event_id", event.ID)
		return
	}

	err := h.repo.UpsertSubscription(r.Context(), &domain.Subscription{
		SessionID:            sessionID,
		StripeCustomerID:     cs.Customer.ID,
		StripeSubscriptionID: cs.Subscription.ID,
		Status:               "active",
		Plan:                 domain.PlanPro,
	})
	if err != nil {
		slog.Error("Subscription upsert failed", "session_id", sessionID, "error", err)
		return
	}

	slog.Info("Pro activated", "session_id", sessionID)
}

func (h *Handler) handleSubscriptionChanged(r *http.Request, event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		slog.Error("Failed to decode subscription", "error", err)
		return
	}

	status := string(sub.Status)
	plan := domain.PlanFree
	if status == "active" {
		plan = domain.PlanPro
	}

	if err := h.repo.UpdateSubscriptionStatus(r.Context(), sub.ID, status, plan); err != nil {
		slog.Error("Subscription sync failed", "subscription_id", sub.ID, "error", err)
		return
	}

	slog.Info("Subscription synced", "subscription_id", sub.ID, "status", status)
}

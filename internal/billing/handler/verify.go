package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/openspot/openspot/internal/billing/reconcile"
	"github.com/openspot/openspot/internal/httpx"
)

// ProcessorReader is the read-side slice of the processor client used by the
// session verifier.
type ProcessorReader interface {
	GetCheckoutSession(id string) (*stripe.CheckoutSession, error)
	GetSubscription(id string) (*stripe.Subscription, error)
}

// VerifyHandler is the synchronous fallback for the webhook path: the client
// polls it after the checkout redirect, and it forces the same reconciliation
// the webhook would. Both paths converge on the same stored state.
type VerifyHandler struct {
	processor  ProcessorReader
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
}

func NewVerifyHandler(p ProcessorReader, rec *reconcile.Reconciler, logger *slog.Logger) *VerifyHandler {
	return &VerifyHandler{processor: p, reconciler: rec, logger: logger}
}

func (h *VerifyHandler) VerifySession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		httpx.WriteError(w, httpx.BadRequest("invalid_session", "sessionId is required"))
		return
	}

	sess, err := h.processor.GetCheckoutSession(req.SessionID)
	if err != nil {
		var sErr *stripe.Error
		if errors.As(err, &sErr) && (sErr.Type == stripe.ErrorTypeInvalidRequest || sErr.HTTPStatusCode == http.StatusNotFound) {
			httpx.WriteError(w, httpx.NotFound("session_not_found"))
			return
		}
		h.logger.Error("fetch checkout session", "session_id", req.SessionID, "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}

	if sess.Mode != stripe.CheckoutSessionModeSubscription {
		httpx.WriteError(w, httpx.BadRequest("not_subscription", "session is not a subscription checkout"))
		return
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		httpx.WriteError(w, httpx.BadRequest("not_paid", "session has not been paid"))
		return
	}
	if sess.Subscription == nil {
		httpx.WriteError(w, httpx.BadRequest("no_subscription", "session has no subscription"))
		return
	}

	// Re-fetch by id so the snapshot matches what a webhook would carry,
	// regardless of how much of the session object was expanded.
	sub, err := h.processor.GetSubscription(sess.Subscription.ID)
	if err != nil {
		h.logger.Error("fetch subscription", "subscription_id", sess.Subscription.ID, "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}

	if err := h.reconciler.Apply(reconcile.FromStripe(sub)); err != nil {
		h.logger.Error("reconcile from session verifier", "subscription_id", sub.ID, "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

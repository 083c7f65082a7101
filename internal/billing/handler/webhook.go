package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/openspot/openspot/internal/billing/reconcile"
)

// maxWebhookBody caps how much of a webhook payload is read; Stripe events
// are small and anything larger is hostile.
const maxWebhookBody = 65536

// WebhookVerifier checks the signature over the raw payload bytes and
// returns the parsed event.
type WebhookVerifier interface {
	ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// eventKind is the closed set of webhook events this service acts on.
// Handling a new Stripe event type means adding a constant and a case here,
// a compile-time decision rather than a silently-ignored string.
type eventKind int

const (
	eventIgnored eventKind = iota
	eventCheckoutCompleted
	eventSubscriptionCreated
	eventSubscriptionUpdated
	eventSubscriptionDeleted
)

func kindOf(t stripe.EventType) eventKind {
	switch t {
	case "checkout.session.completed":
		return eventCheckoutCompleted
	case "customer.subscription.created":
		return eventSubscriptionCreated
	case "customer.subscription.updated":
		return eventSubscriptionUpdated
	case "customer.subscription.deleted":
		return eventSubscriptionDeleted
	default:
		return eventIgnored
	}
}

type WebhookHandler struct {
	verifier   WebhookVerifier
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
}

func NewWebhookHandler(v WebhookVerifier, rec *reconcile.Reconciler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: v, reconciler: rec, logger: logger}
}

// HandleStripeWebhook verifies the signature over the exact raw body and
// dispatches by event kind. Once the signature verifies, the response is
// always 200: business failures are logged, never surfaced, so the processor
// does not enter a retry storm. Verification failure fails closed with 400.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	event, err := h.verifier.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	switch kindOf(event.Type) {
	case eventSubscriptionCreated, eventSubscriptionUpdated, eventSubscriptionDeleted:
		h.handleSubscriptionEvent(event)
	case eventCheckoutCompleted:
		h.handleCheckoutCompleted(event)
	case eventIgnored:
		h.logger.Debug("ignoring webhook event", "type", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleSubscriptionEvent(event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("unmarshal subscription event", "type", event.Type, "error", err)
		return
	}

	if err := h.reconciler.Apply(reconcile.FromStripe(&sub)); err != nil {
		h.logger.Error("reconcile subscription",
			"type", event.Type,
			"subscription_id", sub.ID,
			"error", err,
		)
	}
}

// handleCheckoutCompleted is a no-op for subscription checkouts; the
// subscription events above carry the authoritative state. Other modes are
// only logged.
func (h *WebhookHandler) handleCheckoutCompleted(event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		h.logger.Error("unmarshal checkout session event", "error", err)
		return
	}

	if sess.Mode == stripe.CheckoutSessionModeSubscription {
		h.logger.Debug("subscription checkout completed", "session_id", sess.ID)
		return
	}
	h.logger.Info("non-subscription checkout completed", "session_id", sess.ID, "mode", sess.Mode)
}

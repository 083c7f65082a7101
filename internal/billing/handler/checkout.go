package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/openspot/openspot/internal/auth"
	"github.com/openspot/openspot/internal/billing"
	"github.com/openspot/openspot/internal/httpx"
	"github.com/openspot/openspot/internal/store"
)

// Payments is the slice of the processor client the checkout initiator
// needs. The concrete implementation lives in internal/billing/stripe; tests
// substitute a fake.
type Payments interface {
	CreateCustomer(email string, userID int64) (string, error)
	CreateCheckoutSession(customerID, priceID string, userID int64, planID string) (string, error)
	CreateBillingPortalSession(customerID, returnURL string) (string, error)
}

type CheckoutHandler struct {
	payments Payments
	profiles *store.ProfileStore
	catalog  billing.Catalog
	logger   *slog.Logger
}

func NewCheckoutHandler(p Payments, ps *store.ProfileStore, catalog billing.Catalog, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{payments: p, profiles: ps, catalog: catalog, logger: logger}
}

// CreateCheckoutSession validates the requested plan, resolves or creates the
// billing customer, and returns the hosted checkout URL.
func (h *CheckoutHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	profileID := auth.ProfileID(r.Context())
	if profileID == 0 {
		httpx.WriteError(w, httpx.Unauthorized())
		return
	}

	var req struct {
		PlanID  string `json:"planId"`
		PriceID string `json:"priceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, httpx.BadRequest("invalid_json", "request body must be JSON"))
		return
	}

	plan, ok := h.catalog.Lookup(req.PlanID)
	if !ok {
		httpx.WriteError(w, httpx.BadRequest("invalid_plan", "unknown plan id"))
		return
	}
	if req.PriceID != "" && req.PriceID != plan.PriceID {
		httpx.WriteError(w, httpx.BadRequest("invalid_plan", "price does not match plan"))
		return
	}

	profile, err := h.profiles.GetByID(profileID)
	if err != nil || profile == nil {
		httpx.WriteError(w, httpx.Unauthorized())
		return
	}

	customerID, err := h.resolveCustomer(profile.ID, profile.Email, profile.StripeCustomerID)
	if err != nil {
		h.logger.Error("resolve billing customer", "profile_id", profile.ID, "error", err)
		httpx.WriteError(w, translateStripeError(err))
		return
	}

	url, err := h.payments.CreateCheckoutSession(customerID, plan.PriceID, profile.ID, plan.ID)
	if err != nil {
		h.logger.Error("create checkout session", "profile_id", profile.ID, "error", err)
		httpx.WriteError(w, translateStripeError(err))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}

// resolveCustomer returns the profile's billing customer id, lazily creating
// and claiming one. The claim is a conditional write; losing the race means
// another request created the canonical customer first, so that one wins and
// the extra processor-side customer is abandoned.
func (h *CheckoutHandler) resolveCustomer(profileID int64, email string, existing *string) (string, error) {
	if existing != nil && *existing != "" {
		return *existing, nil
	}

	created, err := h.payments.CreateCustomer(email, profileID)
	if err != nil {
		return "", err
	}

	claimed, err := h.profiles.ClaimStripeCustomerID(profileID, created)
	if err != nil {
		return "", err
	}
	if !claimed {
		fresh, err := h.profiles.GetByID(profileID)
		if err != nil {
			return "", err
		}
		if fresh == nil || fresh.StripeCustomerID == nil {
			return "", errors.New("customer claim lost but no winner recorded")
		}
		h.logger.Warn("abandoning duplicate billing customer",
			"profile_id", profileID,
			"abandoned_customer_id", created,
			"kept_customer_id", *fresh.StripeCustomerID,
		)
		return *fresh.StripeCustomerID, nil
	}
	return created, nil
}

// BillingPortal creates a billing portal session and returns the URL.
func (h *CheckoutHandler) BillingPortal(w http.ResponseWriter, r *http.Request) {
	profileID := auth.ProfileID(r.Context())
	if profileID == 0 {
		httpx.WriteError(w, httpx.Unauthorized())
		return
	}

	profile, err := h.profiles.GetByID(profileID)
	if err != nil || profile == nil {
		httpx.WriteError(w, httpx.Unauthorized())
		return
	}
	if profile.StripeCustomerID == nil {
		httpx.WriteError(w, httpx.BadRequest("no_billing_account", "no billing customer for this profile"))
		return
	}

	returnURL := r.Header.Get("Referer")
	if returnURL == "" {
		returnURL = "/dashboard"
	}

	url, err := h.payments.CreateBillingPortalSession(*profile.StripeCustomerID, returnURL)
	if err != nil {
		h.logger.Error("create billing portal session", "profile_id", profile.ID, "error", err)
		httpx.WriteError(w, translateStripeError(err))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}

// translateStripeError maps processor failures onto the response taxonomy:
// card declines and invalid requests are the caller's problem (400),
// everything else is a 500.
func translateStripeError(err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		switch sErr.Type {
		case stripe.ErrorTypeCard:
			return httpx.BadRequest("card_error", "card was declined")
		case stripe.ErrorTypeInvalidRequest:
			return httpx.BadRequest("invalid_request", "invalid billing request")
		}
	}
	return httpx.Internal()
}

package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openspot/openspot/internal/auth"
	"github.com/openspot/openspot/internal/billing"
	"github.com/openspot/openspot/internal/database"
	"github.com/openspot/openspot/internal/store"
)

// fakePayments records calls so tests can assert the processor was or was
// not reached.
type fakePayments struct {
	customers       int
	checkouts       int
	portals         int
	customerErr     error
	checkoutErr     error
	nextCustomerID  string
	lastCheckoutCus string
}

func (f *fakePayments) CreateCustomer(email string, userID int64) (string, error) {
	f.customers++
	if f.customerErr != nil {
		return "", f.customerErr
	}
	if f.nextCustomerID != "" {
		return f.nextCustomerID, nil
	}
	return fmt.Sprintf("cus_fake_%d", f.customers), nil
}

func (f *fakePayments) CreateCheckoutSession(customerID, priceID string, userID int64, planID string) (string, error) {
	f.checkouts++
	f.lastCheckoutCus = customerID
	if f.checkoutErr != nil {
		return "", f.checkoutErr
	}
	return "https://checkout.example.com/s/" + planID, nil
}

func (f *fakePayments) CreateBillingPortalSession(customerID, returnURL string) (string, error) {
	f.portals++
	return "https://billing.example.com/p/" + customerID, nil
}

func setupCheckoutHandler(t *testing.T) (*CheckoutHandler, *fakePayments, *store.ProfileStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	profiles := store.NewProfileStore(db)
	payments := &fakePayments{}
	catalog := billing.NewCatalog("price_basic", "price_pro", "price_enterprise")
	h := NewCheckoutHandler(payments, profiles, catalog, slog.Default())
	return h, payments, profiles
}

func authedRequest(t *testing.T, profileID int64, method, target, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{ProfileID: profileID, Role: "user"}))
	return req
}

func TestCreateCheckoutSessionUnauthenticated(t *testing.T) {
	h, payments, _ := setupCheckoutHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/billing/checkout", strings.NewReader(`{"planId":"pro"}`))
	w := httptest.NewRecorder()
	h.CreateCheckoutSession(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if payments.customers != 0 || payments.checkouts != 0 {
		t.Error("processor must not be called for unauthenticated requests")
	}
}

func TestCreateCheckoutSessionInvalidPlan(t *testing.T) {
	h, payments, profiles := setupCheckoutHandler(t)
	p, err := profiles.Create("alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	req := authedRequest(t, p.ID, http.MethodPost, "/api/billing/checkout", `{"planId":"platinum"}`)
	w := httptest.NewRecorder()
	h.CreateCheckoutSession(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid_plan") {
		t.Errorf("body = %s, want invalid_plan code", w.Body.String())
	}
	if payments.checkouts != 0 {
		t.Error("no checkout session should be created for an unknown plan")
	}
}

func TestCreateCheckoutSessionPriceMismatch(t *testing.T) {
	h, _, profiles := setupCheckoutHandler(t)
	p, err := profiles.Create("bob@example.com", "Bob")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	req := authedRequest(t, p.ID, http.MethodPost, "/api/billing/checkout", `{"planId":"pro","priceId":"price_basic"}`)
	w := httptest.NewRecorder()
	h.CreateCheckoutSession(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid_plan") {
		t.Errorf("body = %s, want invalid_plan code", w.Body.String())
	}
}

func TestCreateCheckoutSessionCreatesAndClaimsCustomer(t *testing.T) {
	h, payments, profiles := setupCheckoutHandler(t)
	p, err := profiles.Create("carol@example.com", "Carol")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	req := authedRequest(t, p.ID, http.MethodPost, "/api/billing/checkout", `{"planId":"pro"}`)
	w := httptest.NewRecorder()
	h.CreateCheckoutSession(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["url"] == "" {
		t.Error("expected checkout url in response")
	}

	got, err := profiles.GetByID(p.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if got.StripeCustomerID == nil {
		t.Fatal("customer id should be persisted after checkout")
	}
	if payments.lastCheckoutCus != *got.StripeCustomerID {
		t.Errorf("checkout used customer %q, profile has %q", payments.lastCheckoutCus, *got.StripeCustomerID)
	}
}

func TestCreateCheckoutSessionReusesExistingCustomer(t *testing.T) {
	h, payments, profiles := setupCheckoutHandler(t)
	p, err := profiles.Create("dave@example.com", "Dave")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if _, err := profiles.ClaimStripeCustomerID(p.ID, "cus_existing"); err != nil {
		t.Fatalf("claim customer: %v", err)
	}

	req := authedRequest(t, p.ID, http.MethodPost, "/api/billing/checkout", `{"planId":"basic"}`)
	w := httptest.NewRecorder()
	h.CreateCheckoutSession(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if payments.customers != 0 {
		t.Error("no new processor customer should be created when one exists")
	}
	if payments.lastCheckoutCus != "cus_existing" {
		t.Errorf("checkout used customer %q, want cus_existing", payments.lastCheckoutCus)
	}
}

func TestResolveCustomerLostClaimUsesWinner(t *testing.T) {
	h, payments, profiles := setupCheckoutHandler(t)
	p, err := profiles.Create("erin@example.com", "Erin")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	// Another request wins the claim between CreateCustomer and the
	// conditional update.
	if _, err := profiles.ClaimStripeCustomerID(p.ID, "cus_winner"); err != nil {
		t.Fatalf("claim customer: %v", err)
	}
	payments.nextCustomerID = "cus_loser"

	got, err := h.resolveCustomer(p.ID, "erin@example.com", nil)
	if err != nil {
		t.Fatalf("resolve customer: %v", err)
	}
	if got != "cus_winner" {
		t.Errorf("resolved customer = %q, want cus_winner", got)
	}
}

func TestBillingPortalWithoutCustomer(t *testing.T) {
	h, payments, profiles := setupCheckoutHandler(t)
	p, err := profiles.Create("frank@example.com", "Frank")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	req := authedRequest(t, p.ID, http.MethodPost, "/api/billing/portal", "")
	w := httptest.NewRecorder()
	h.BillingPortal(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "no_billing_account") {
		t.Errorf("body = %s, want no_billing_account code", w.Body.String())
	}
	if payments.portals != 0 {
		t.Error("portal session must not be created without a customer")
	}
}

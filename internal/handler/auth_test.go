package handler

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openspot/openspot/internal/database"
	"github.com/openspot/openspot/internal/middleware"
	"github.com/openspot/openspot/internal/model"
	"github.com/openspot/openspot/internal/store"
)

func setupAuthHandler(t *testing.T) (*AuthHandler, *store.ProfileStore, *store.MagicLinkStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	profiles := store.NewProfileStore(db)
	sessions := store.NewSessionStore(db)
	magicLinks := store.NewMagicLinkStore(db)
	h := NewAuthHandler(profiles, sessions, magicLinks, nil, slog.Default())
	return h, profiles, magicLinks
}

func TestLoginCreatesProfileOnFirstSight(t *testing.T) {
	h, profiles, _ := setupAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"new@example.com","displayName":"New"}`))
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	p, err := profiles.GetByEmail("new@example.com")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p == nil {
		t.Fatal("profile should be created on first login")
	}
}

func TestLoginInvalidEmail(t *testing.T) {
	h, _, _ := setupAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"not-an-email"}`))
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid_email") {
		t.Errorf("body = %s, want invalid_email code", w.Body.String())
	}
}

func TestLoginSuspendedAccountGetsNoLink(t *testing.T) {
	h, profiles, magicLinks := setupAuthHandler(t)

	p, err := profiles.Create("banned@example.com", "Banned")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	earlier, err := magicLinks.Create("banned@example.com")
	if err != nil {
		t.Fatalf("create earlier link: %v", err)
	}
	if err := profiles.UpdateAccountStatus(p.ID, model.AccountSuspended); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"banned@example.com"}`))
	w := httptest.NewRecorder()
	h.Login(w, req)

	// The response must be indistinguishable from a successful login.
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"sent":true`) {
		t.Errorf("body = %s, want sent true", w.Body.String())
	}

	// A normal login invalidates the previous pending link when it creates
	// a new one. The earlier link still resolving proves no link was
	// created for the suspended account.
	got, err := magicLinks.GetByToken(earlier.Token)
	if err != nil || got == nil {
		t.Errorf("earlier link should be untouched, got %v (%v)", got, err)
	}
}

func TestVerifyIssuesSessionCookie(t *testing.T) {
	h, profiles, magicLinks := setupAuthHandler(t)

	if _, err := profiles.Create("alice@example.com", "Alice"); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	link, err := magicLinks.Create("alice@example.com")
	if err != nil {
		t.Fatalf("create link: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/verify?token="+link.Token, nil)
	w := httptest.NewRecorder()
	h.Verify(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303, body %s", w.Code, w.Body.String())
	}

	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatal("expected a session cookie")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie must be http-only")
	}
}

func TestVerifyTokenSingleUse(t *testing.T) {
	h, profiles, magicLinks := setupAuthHandler(t)

	if _, err := profiles.Create("bob@example.com", "Bob"); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	link, err := magicLinks.Create("bob@example.com")
	if err != nil {
		t.Fatalf("create link: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/verify?token="+link.Token, nil)
	h.Verify(httptest.NewRecorder(), req)

	// Replaying the same token must fail.
	req = httptest.NewRequest(http.MethodGet, "/auth/verify?token="+link.Token, nil)
	w := httptest.NewRecorder()
	h.Verify(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 on token replay", w.Code)
	}
}

func TestVerifyUnknownToken(t *testing.T) {
	h, _, _ := setupAuthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/verify?token=bogus", nil)
	w := httptest.NewRecorder()
	h.Verify(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

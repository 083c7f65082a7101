package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/openspot/openspot/internal/auth"
	"github.com/openspot/openspot/internal/httpx"
	"github.com/openspot/openspot/internal/middleware"
	"github.com/openspot/openspot/internal/store"
)

// MagicLinkSender delivers a one-time sign-in link.
type MagicLinkSender interface {
	SendMagicLink(toEmail, token string) error
	Configured() bool
}

type AuthHandler struct {
	profiles   *store.ProfileStore
	sessions   *store.SessionStore
	magicLinks *store.MagicLinkStore
	email      MagicLinkSender
	logger     *slog.Logger
}

func NewAuthHandler(ps *store.ProfileStore, ss *store.SessionStore, ml *store.MagicLinkStore, email MagicLinkSender, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		profiles:   ps,
		sessions:   ss,
		magicLinks: ml,
		email:      email,
		logger:     logger,
	}
}

// Login accepts an email, creates the profile on first sight, and emails a
// magic link. The response is identical whether or not the address was known,
// to prevent enumeration.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, httpx.BadRequest("invalid_json", "request body must be JSON"))
		return
	}

	addr := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(addr); err != nil {
		httpx.WriteError(w, httpx.BadRequest("invalid_email", "a valid email is required"))
		return
	}

	profile, err := h.profiles.GetByEmail(addr)
	if err != nil {
		h.logger.Error("get profile by email", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}
	if profile == nil {
		profile, err = h.profiles.Create(addr, strings.TrimSpace(req.DisplayName))
		if err != nil {
			h.logger.Error("create profile", "error", err)
			httpx.WriteError(w, httpx.Internal())
			return
		}
	}
	if profile.Suspended() {
		// Same response as success; a suspended account simply never
		// receives a link.
		httpx.WriteJSON(w, http.StatusOK, map[string]bool{"sent": true})
		return
	}

	link, err := h.magicLinks.Create(addr)
	if err != nil {
		h.logger.Error("create magic link", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}

	if h.email != nil && h.email.Configured() {
		if err := h.email.SendMagicLink(addr, link.Token); err != nil {
			h.logger.Error("send magic link", "error", err)
		}
	} else {
		h.logger.Info("magic link generated", "email", addr, "token", link.Token)
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

// Verify exchanges a magic link token for a session cookie.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httpx.WriteError(w, httpx.BadRequest("invalid_token", "invalid or expired link"))
		return
	}

	link, err := h.magicLinks.GetByToken(token)
	if err != nil || link == nil {
		httpx.WriteError(w, httpx.BadRequest("invalid_token", "invalid or expired link"))
		return
	}

	profile, err := h.profiles.GetByEmail(link.Email)
	if err != nil || profile == nil {
		httpx.WriteError(w, httpx.BadRequest("invalid_token", "invalid or expired link"))
		return
	}
	if profile.Suspended() {
		httpx.WriteError(w, httpx.Forbidden())
		return
	}

	if err := h.magicLinks.MarkUsed(link.ID); err != nil {
		h.logger.Error("mark magic link used", "error", err)
	}

	sess, err := h.sessions.Create(profile.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout destroys the session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessions.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me returns the authenticated profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
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
	httpx.WriteJSON(w, http.StatusOK, profile)
}

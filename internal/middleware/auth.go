package middleware

import (
	"net/http"

	"github.com/openspot/openspot/internal/auth"
	"github.com/openspot/openspot/internal/httpx"
	"github.com/openspot/openspot/internal/model"
	"github.com/openspot/openspot/internal/store"
)

// SessionCookieName is the cookie carrying the server-side session token.
const SessionCookieName = "openspot_session"

// RequireAuth validates the session cookie, rejects suspended accounts, and
// populates the auth context.
func RequireAuth(sessionStore *store.SessionStore, profileStore *store.ProfileStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				httpx.WriteError(w, httpx.Unauthorized())
				return
			}

			sess, err := sessionStore.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				httpx.WriteError(w, httpx.Unauthorized())
				return
			}

			profile, err := profileStore.GetByID(sess.ProfileID)
			if err != nil || profile == nil {
				httpx.WriteError(w, httpx.Unauthorized())
				return
			}
			if profile.AccountStatus == model.AccountSuspended {
				httpx.WriteError(w, httpx.Forbidden())
				return
			}

			ac := auth.AuthContext{
				ProfileID: profile.ID,
				Role:      profile.Role,
				SessionID: sess.ID,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireAdmin checks that the authenticated profile has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			httpx.WriteError(w, httpx.Forbidden())
			return
		}
		next.ServeHTTP(w, r)
	})
}

package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/openspot/openspot/internal/auth"
	"github.com/openspot/openspot/internal/httpx"
	"github.com/openspot/openspot/internal/model"
	"github.com/openspot/openspot/internal/store"
)

type PushHandler struct {
	pushes         *store.PushStore
	vapidPublicKey string
	logger         *slog.Logger
}

func NewPushHandler(ps *store.PushStore, vapidPublicKey string, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushes: ps, vapidPublicKey: vapidPublicKey, logger: logger}
}

// VAPIDKey exposes the server's public key so the client can subscribe.
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.vapidPublicKey == "" {
		httpx.WriteError(w, httpx.NewError(http.StatusServiceUnavailable, "push_disabled", "push notifications are not configured"))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"publicKey": h.vapidPublicKey})
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, httpx.BadRequest("invalid_json", "request body must be JSON"))
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		httpx.WriteError(w, httpx.BadRequest("invalid_subscription", "endpoint and keys are required"))
		return
	}

	sub, err := h.pushes.Upsert(auth.ProfileID(r.Context()), req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		h.logger.Error("upsert push subscription", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, sub)
}

func (h *PushHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushes.ListByProfile(auth.ProfileID(r.Context()))
	if err != nil {
		h.logger.Error("list push subscriptions", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	httpx.WriteJSON(w, http.StatusOK, subs)
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	deleted, err := h.pushes.Delete(id, auth.ProfileID(r.Context()))
	if err != nil {
		h.logger.Error("delete push subscription", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}
	if !deleted {
		httpx.WriteError(w, httpx.NotFound("subscription_not_found"))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

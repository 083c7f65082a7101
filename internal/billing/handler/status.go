package handler

import (
	"net/http"
	"time"

	"github.com/openspot/openspot/internal/auth"
	"github.com/openspot/openspot/internal/httpx"
	"github.com/openspot/openspot/internal/store"
)

type StatusHandler struct {
	profiles *store.ProfileStore
}

func NewStatusHandler(ps *store.ProfileStore) *StatusHandler {
	return &StatusHandler{profiles: ps}
}

// SubscriptionStatus returns the profile's reconciled subscription fields.
func (h *StatusHandler) SubscriptionStatus(w http.ResponseWriter, r *http.Request) {
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

	resp := struct {
		Tier              string     `json:"tier"`
		Status            string     `json:"status"`
		RenewsAt          *time.Time `json:"renewsAt"`
		CancelAtPeriodEnd bool       `json:"cancelAtPeriodEnd"`
	}{
		Tier:              profile.SubscriptionTier,
		Status:            profile.SubscriptionStatus,
		RenewsAt:          profile.SubscriptionRenewsAt,
		CancelAtPeriodEnd: profile.CancelAtPeriodEnd,
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

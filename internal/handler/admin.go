package handler

import (
	"log/slog"
	"net/http"

	"github.com/openspot/openspot/internal/backup"
	"github.com/openspot/openspot/internal/httpx"
	"github.com/openspot/openspot/internal/model"
	"github.com/openspot/openspot/internal/store"
)

type AdminHandler struct {
	profiles  *store.ProfileStore
	sessions  *store.SessionStore
	backups   *store.BackupStore
	backupSvc *backup.Service
	logger    *slog.Logger
}

func NewAdminHandler(ps *store.ProfileStore, ss *store.SessionStore, bs *store.BackupStore, svc *backup.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{profiles: ps, sessions: ss, backups: bs, backupSvc: svc, logger: logger}
}

// Suspend disables an account and revokes its active sessions.
func (h *AdminHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.setAccountStatus(w, r, model.AccountSuspended)
}

func (h *AdminHandler) Unsuspend(w http.ResponseWriter, r *http.Request) {
	h.setAccountStatus(w, r, model.AccountActive)
}

func (h *AdminHandler) setAccountStatus(w http.ResponseWriter, r *http.Request, status string) {
	id, err := parseIDParam(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	profile, err := h.profiles.GetByID(id)
	if err != nil {
		h.logger.Error("get profile", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}
	if profile == nil {
		httpx.WriteError(w, httpx.NotFound("profile_not_found"))
		return
	}

	if err := h.profiles.UpdateAccountStatus(id, status); err != nil {
		h.logger.Error("update account status", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}

	if status == model.AccountSuspended {
		if err := h.sessions.DeleteByProfileID(id); err != nil {
			h.logger.Error("revoke sessions on suspend", "profile_id", id, "error", err)
		}
	}

	h.logger.Info("account status changed", "profile_id", id, "status", status)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "accountStatus": status})
}

// RunBackup triggers an encrypted database backup synchronously.
func (h *AdminHandler) RunBackup(w http.ResponseWriter, r *http.Request) {
	if h.backupSvc == nil || !h.backupSvc.Enabled() {
		httpx.WriteError(w, httpx.NewError(http.StatusServiceUnavailable, "backup_disabled", "backup storage is not configured"))
		return
	}

	record, err := h.backupSvc.Run(r.Context())
	if err != nil {
		h.logger.Error("run backup", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, record)
}

func (h *AdminHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.ListRecent(50)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}
	httpx.WriteJSON(w, http.StatusOK, backups)
}

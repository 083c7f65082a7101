package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/openspot/openspot/internal/auth"
	"github.com/openspot/openspot/internal/geo"
	"github.com/openspot/openspot/internal/httpx"
	"github.com/openspot/openspot/internal/model"
	"github.com/openspot/openspot/internal/store"
)

const maxFavoriteRadiusM = 10000

type FavoriteHandler struct {
	favorites *store.FavoriteStore
	logger    *slog.Logger
}

func NewFavoriteHandler(fs *store.FavoriteStore, logger *slog.Logger) *FavoriteHandler {
	return &FavoriteHandler{favorites: fs, logger: logger}
}

func (h *FavoriteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label   string  `json:"label"`
		Lat     float64 `json:"lat"`
		Lng     float64 `json:"lng"`
		RadiusM float64 `json:"radiusM"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, httpx.BadRequest("invalid_json", "request body must be JSON"))
		return
	}
	if !geo.ValidLat(req.Lat) || !geo.ValidLng(req.Lng) {
		httpx.WriteError(w, httpx.BadRequest("invalid_coordinates", "lat must be in [-90,90] and lng in [-180,180]"))
		return
	}
	if req.RadiusM <= 0 || req.RadiusM > maxFavoriteRadiusM {
		httpx.WriteError(w, httpx.BadRequest("invalid_radius", "radiusM must be between 1 and 10000 meters"))
		return
	}
	if req.Label == "" {
		req.Label = "Favorite"
	}

	fav, err := h.favorites.Create(auth.ProfileID(r.Context()), req.Label, req.Lat, req.Lng, req.RadiusM)
	if err != nil {
		h.logger.Error("create favorite", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, fav)
}

func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	favs, err := h.favorites.ListByProfile(auth.ProfileID(r.Context()))
	if err != nil {
		h.logger.Error("list favorites", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}
	if favs == nil {
		favs = []model.Favorite{}
	}
	httpx.WriteJSON(w, http.StatusOK, favs)
}

func (h *FavoriteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	deleted, err := h.favorites.Delete(id, auth.ProfileID(r.Context()))
	if err != nil {
		h.logger.Error("delete favorite", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}
	if !deleted {
		httpx.WriteError(w, httpx.NotFound("favorite_not_found"))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/openspot/openspot/internal/auth"
	"github.com/openspot/openspot/internal/geo"
	"github.com/openspot/openspot/internal/httpx"
	"github.com/openspot/openspot/internal/model"
	"github.com/openspot/openspot/internal/push"
	"github.com/openspot/openspot/internal/store"
	"github.com/openspot/openspot/internal/websocket"
)

var validSpotTypes = map[string]bool{
	model.SpotTypeStreet: true,
	model.SpotTypeGarage: true,
	model.SpotTypeLot:    true,
}

var validReportKinds = map[string]bool{
	model.ReportAvailable:  true,
	model.ReportTaken:      true,
	model.ReportGone:       true,
	model.ReportInaccurate: true,
}

type SpotHandler struct {
	spots   *store.SpotStore
	reports *store.ReportStore
	hub     *websocket.Hub
	alerter *push.Alerter
	logger  *slog.Logger
}

func NewSpotHandler(ss *store.SpotStore, rs *store.ReportStore, hub *websocket.Hub, alerter *push.Alerter, logger *slog.Logger) *SpotHandler {
	return &SpotHandler{spots: ss, reports: rs, hub: hub, alerter: alerter, logger: logger}
}

func (h *SpotHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type spotRequest struct {
	Lat          float64  `json:"lat"`
	Lng          float64  `json:"lng"`
	Address      string   `json:"address"`
	SpotType     string   `json:"spotType"`
	PricePerHour *float64 `json:"pricePerHour"`
	ExpiresInMin *int     `json:"expiresInMinutes"`
}

func (r *spotRequest) validate() error {
	if !geo.ValidLat(r.Lat) || !geo.ValidLng(r.Lng) {
		return httpx.BadRequest("invalid_coordinates", "lat must be in [-90,90] and lng in [-180,180]")
	}
	if r.SpotType == "" {
		r.SpotType = model.SpotTypeStreet
	}
	if !validSpotTypes[r.SpotType] {
		return httpx.BadRequest("invalid_spot_type", "spot type must be street, garage, or lot")
	}
	if r.PricePerHour != nil && *r.PricePerHour < 0 {
		return httpx.BadRequest("invalid_price", "price per hour must not be negative")
	}
	if r.ExpiresInMin != nil && (*r.ExpiresInMin < 1 || *r.ExpiresInMin > 24*60) {
		return httpx.BadRequest("invalid_expiry", "expiresInMinutes must be between 1 and 1440")
	}
	return nil
}

// Create reports a new open spot. The spot row and its initial availability
// report are created together; if the report insert fails the spot row is
// rolled back so the two never diverge.
func (h *SpotHandler) Create(w http.ResponseWriter, r *http.Request) {
	profileID := auth.ProfileID(r.Context())

	var req spotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, httpx.BadRequest("invalid_json", "request body must be JSON"))
		return
	}
	if err := req.validate(); err != nil {
		httpx.WriteError(w, err)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresInMin != nil {
		t := time.Now().UTC().Add(time.Duration(*req.ExpiresInMin) * time.Minute)
		expiresAt = &t
	}

	spot, err := h.spots.Create(profileID, req.Lat, req.Lng, req.Address, req.SpotType, req.PricePerHour, expiresAt)
	if err != nil {
		h.logger.Error("create spot", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}

	if _, err := h.reports.Create(spot.ID, profileID, model.ReportAvailable, ""); err != nil {
		// Compensation: a spot without its initial report is half-created,
		// so undo the insert.
		h.logger.Error("create initial spot report", "spot_id", spot.ID, "error", err)
		if delErr := h.spots.Delete(spot.ID); delErr != nil {
			h.logger.Error("roll back spot after report failure", "spot_id", spot.ID, "error", delErr)
		}
		httpx.WriteError(w, httpx.Internal())
		return
	}

	h.broadcast(websocket.NewMessage("spot", "created", spot.ID, map[string]any{
		"lat": spot.Lat, "lng": spot.Lng,
	}))
	if h.alerter != nil {
		go h.alerter.SpotOpened(spot)
	}

	httpx.WriteJSON(w, http.StatusCreated, spot)
}

// List returns spots, optionally bounded by a bounding box and status.
func (h *SpotHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ListFilter{Status: q.Get("status")}

	if q.Get("minLat") != "" || q.Get("maxLat") != "" || q.Get("minLng") != "" || q.Get("maxLng") != "" {
		var err error
		filter.MinLat, err = parseCoord(q.Get("minLat"), geo.ValidLat)
		if err == nil {
			filter.MaxLat, err = parseCoord(q.Get("maxLat"), geo.ValidLat)
		}
		if err == nil {
			filter.MinLng, err = parseCoord(q.Get("minLng"), geo.ValidLng)
		}
		if err == nil {
			filter.MaxLng, err = parseCoord(q.Get("maxLng"), geo.ValidLng)
		}
		if err != nil {
			httpx.WriteError(w, httpx.BadRequest("invalid_coordinates", "bounding box coordinates are out of range"))
			return
		}
		filter.Bounded = true
	}

	spots, err := h.spots.List(filter)
	if err != nil {
		h.logger.Error("list spots", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}
	if spots == nil {
		spots = []model.Spot{}
	}
	httpx.WriteJSON(w, http.StatusOK, spots)
}

func parseCoord(s string, valid func(float64) bool) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !valid(v) {
		return 0, httpx.BadRequest("invalid_coordinates", "coordinate out of range")
	}
	return v, nil
}

func (h *SpotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	spot, err := h.spots.GetByID(id)
	if err != nil {
		h.logger.Error("get spot", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}
	if spot == nil {
		httpx.WriteError(w, httpx.NotFound("spot_not_found"))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, spot)
}

// Update edits a spot's descriptive fields. Only the original reporter or an
// admin may edit.
func (h *SpotHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	existing, err := h.spots.GetByID(id)
	if err != nil {
		h.logger.Error("get spot", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}
	if existing == nil {
		httpx.WriteError(w, httpx.NotFound("spot_not_found"))
		return
	}
	if existing.ReporterID != auth.ProfileID(r.Context()) && !auth.IsAdmin(r.Context()) {
		httpx.WriteError(w, httpx.Forbidden())
		return
	}

	var req spotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, httpx.BadRequest("invalid_json", "request body must be JSON"))
		return
	}
	// Coordinates are immutable after creation; carry them over so
	// validation sees the stored values.
	req.Lat, req.Lng = existing.Lat, existing.Lng
	if err := req.validate(); err != nil {
		httpx.WriteError(w, err)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresInMin != nil {
		t := time.Now().UTC().Add(time.Duration(*req.ExpiresInMin) * time.Minute)
		expiresAt = &t
	} else {
		expiresAt = existing.ExpiresAt
	}

	spot, err := h.spots.Update(id, req.Address, req.SpotType, req.PricePerHour, expiresAt)
	if err != nil {
		h.logger.Error("update spot", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}

	h.broadcast(websocket.NewMessage("spot", "updated", id, nil))
	httpx.WriteJSON(w, http.StatusOK, spot)
}

func (h *SpotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	existing, err := h.spots.GetByID(id)
	if err != nil {
		h.logger.Error("get spot", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}
	if existing == nil {
		httpx.WriteError(w, httpx.NotFound("spot_not_found"))
		return
	}
	if existing.ReporterID != auth.ProfileID(r.Context()) && !auth.IsAdmin(r.Context()) {
		httpx.WriteError(w, httpx.Forbidden())
		return
	}

	if err := h.spots.Delete(id); err != nil {
		h.logger.Error("delete spot", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}

	h.broadcast(websocket.NewMessage("spot", "deleted", id, nil))
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// CreateReport adds a follow-up availability report. Taken and gone reports
// flip the spot status; an available report reopens it.
func (h *SpotHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	spot, err := h.spots.GetByID(id)
	if err != nil {
		h.logger.Error("get spot", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}
	if spot == nil {
		httpx.WriteError(w, httpx.NotFound("spot_not_found"))
		return
	}

	var req struct {
		Kind string `json:"kind"`
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, httpx.BadRequest("invalid_json", "request body must be JSON"))
		return
	}
	if !validReportKinds[req.Kind] {
		httpx.WriteError(w, httpx.BadRequest("invalid_report_kind", "kind must be available, taken, gone, or inaccurate"))
		return
	}

	report, err := h.reports.Create(id, auth.ProfileID(r.Context()), req.Kind, req.Note)
	if err != nil {
		h.logger.Error("create spot report", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}

	var newStatus string
	switch req.Kind {
	case model.ReportTaken, model.ReportGone:
		newStatus = model.SpotTaken
	case model.ReportAvailable:
		newStatus = model.SpotOpen
	}
	if newStatus != "" && newStatus != spot.Status {
		if err := h.spots.UpdateStatus(id, newStatus); err != nil {
			h.logger.Error("update spot status from report", "error", err)
		} else {
			h.broadcast(websocket.NewMessage("spot", newStatus, id, nil))
		}
	}

	httpx.WriteJSON(w, http.StatusCreated, report)
}

func (h *SpotHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	reports, err := h.reports.ListBySpot(id)
	if err != nil {
		h.logger.Error("list spot reports", "error", err)
		httpx.WriteError(w, httpx.Internal())
		return
	}
	if reports == nil {
		reports = []model.SpotReport{}
	}
	httpx.WriteJSON(w, http.StatusOK, reports)
}

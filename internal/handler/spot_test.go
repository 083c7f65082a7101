package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openspot/openspot/internal/auth"
	"github.com/openspot/openspot/internal/database"
	"github.com/openspot/openspot/internal/model"
	"github.com/openspot/openspot/internal/store"
)

func setupSpotHandler(t *testing.T) (*SpotHandler, *store.SpotStore, *store.ReportStore, *store.ProfileStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	spots := store.NewSpotStore(db)
	reports := store.NewReportStore(db)
	profiles := store.NewProfileStore(db)
	h := NewSpotHandler(spots, reports, nil, nil, slog.Default())
	return h, spots, reports, profiles
}

func spotRequestAs(t *testing.T, profileID int64, role, method, target, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{ProfileID: profileID, Role: role}))
	return req
}

func TestSpotCreateRecordsInitialReport(t *testing.T) {
	h, _, reports, profiles := setupSpotHandler(t)
	p, _ := profiles.Create("spotter@example.com", "Spotter")

	req := spotRequestAs(t, p.ID, model.RoleUser, http.MethodPost, "/api/spots",
		`{"lat":47.6062,"lng":-122.3321,"address":"4th & Pine","spotType":"street","pricePerHour":2.5}`)
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
	}

	var spot model.Spot
	if err := json.Unmarshal(w.Body.Bytes(), &spot); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if spot.Status != model.SpotOpen {
		t.Errorf("status = %q, want %q", spot.Status, model.SpotOpen)
	}

	got, err := reports.ListBySpot(spot.ID)
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(got) != 1 || got[0].Kind != model.ReportAvailable {
		t.Fatalf("reports = %+v, want one initial availability report", got)
	}
}

func TestSpotCreateInvalidCoordinates(t *testing.T) {
	h, _, _, profiles := setupSpotHandler(t)
	p, _ := profiles.Create("spotter@example.com", "Spotter")

	req := spotRequestAs(t, p.ID, model.RoleUser, http.MethodPost, "/api/spots",
		`{"lat":95.0,"lng":-122.3321}`)
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid_coordinates") {
		t.Errorf("body = %s, want invalid_coordinates code", w.Body.String())
	}
}

func TestSpotCreateNegativePrice(t *testing.T) {
	h, _, _, profiles := setupSpotHandler(t)
	p, _ := profiles.Create("spotter@example.com", "Spotter")

	req := spotRequestAs(t, p.ID, model.RoleUser, http.MethodPost, "/api/spots",
		`{"lat":47.6,"lng":-122.33,"pricePerHour":-1}`)
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid_price") {
		t.Errorf("body = %s, want invalid_price code", w.Body.String())
	}
}

func TestSpotUpdateForbiddenForNonOwner(t *testing.T) {
	h, spots, _, profiles := setupSpotHandler(t)
	owner, _ := profiles.Create("owner@example.com", "Owner")
	other, _ := profiles.Create("other@example.com", "Other")

	sp, err := spots.Create(owner.ID, 47.6, -122.33, "mine", model.SpotTypeStreet, nil, nil)
	if err != nil {
		t.Fatalf("create spot: %v", err)
	}

	req := spotRequestAs(t, other.ID, model.RoleUser, http.MethodPut, "/api/spots/1",
		`{"address":"stolen"}`)
	req.SetPathValue("id", "1")
	w := httptest.NewRecorder()
	h.Update(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}

	got, _ := spots.GetByID(sp.ID)
	if got.Address != "mine" {
		t.Errorf("address = %q, spot must be unchanged", got.Address)
	}
}

func TestSpotDeleteAllowedForAdmin(t *testing.T) {
	h, spots, _, profiles := setupSpotHandler(t)
	owner, _ := profiles.Create("owner@example.com", "Owner")
	admin, _ := profiles.Create("admin@example.com", "Admin")

	sp, err := spots.Create(owner.ID, 47.6, -122.33, "contested", model.SpotTypeStreet, nil, nil)
	if err != nil {
		t.Fatalf("create spot: %v", err)
	}

	req := spotRequestAs(t, admin.ID, model.RoleAdmin, http.MethodDelete, "/api/spots/1", "")
	req.SetPathValue("id", "1")
	w := httptest.NewRecorder()
	h.Delete(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	got, _ := spots.GetByID(sp.ID)
	if got != nil {
		t.Error("spot should be deleted")
	}
}

func TestReportFlipsSpotStatus(t *testing.T) {
	h, spots, _, profiles := setupSpotHandler(t)
	owner, _ := profiles.Create("owner@example.com", "Owner")
	other, _ := profiles.Create("other@example.com", "Other")

	sp, err := spots.Create(owner.ID, 47.6, -122.33, "4th & Pine", model.SpotTypeStreet, nil, nil)
	if err != nil {
		t.Fatalf("create spot: %v", err)
	}

	report := func(kind string) {
		t.Helper()
		req := spotRequestAs(t, other.ID, model.RoleUser, http.MethodPost, "/api/spots/1/reports",
			`{"kind":"`+kind+`"}`)
		req.SetPathValue("id", "1")
		w := httptest.NewRecorder()
		h.CreateReport(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
		}
	}

	report(model.ReportTaken)
	got, _ := spots.GetByID(sp.ID)
	if got.Status != model.SpotTaken {
		t.Errorf("status = %q after taken report, want %q", got.Status, model.SpotTaken)
	}

	report(model.ReportAvailable)
	got, _ = spots.GetByID(sp.ID)
	if got.Status != model.SpotOpen {
		t.Errorf("status = %q after available report, want %q", got.Status, model.SpotOpen)
	}
}

func TestReportInvalidKind(t *testing.T) {
	h, spots, _, profiles := setupSpotHandler(t)
	owner, _ := profiles.Create("owner@example.com", "Owner")

	if _, err := spots.Create(owner.ID, 47.6, -122.33, "spot", model.SpotTypeStreet, nil, nil); err != nil {
		t.Fatalf("create spot: %v", err)
	}

	req := spotRequestAs(t, owner.ID, model.RoleUser, http.MethodPost, "/api/spots/1/reports",
		`{"kind":"vanished"}`)
	req.SetPathValue("id", "1")
	w := httptest.NewRecorder()
	h.CreateReport(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid_report_kind") {
		t.Errorf("body = %s, want invalid_report_kind code", w.Body.String())
	}
}

func TestSpotListBoundingBox(t *testing.T) {
	h, spots, _, profiles := setupSpotHandler(t)
	p, _ := profiles.Create("spotter@example.com", "Spotter")

	if _, err := spots.Create(p.ID, 47.60, -122.33, "inside", model.SpotTypeStreet, nil, nil); err != nil {
		t.Fatalf("create spot: %v", err)
	}
	if _, err := spots.Create(p.ID, 40.71, -74.00, "outside", model.SpotTypeStreet, nil, nil); err != nil {
		t.Fatalf("create spot: %v", err)
	}

	req := spotRequestAs(t, p.ID, model.RoleUser, http.MethodGet,
		"/api/spots?minLat=47&maxLat=48&minLng=-123&maxLng=-122", "")
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got []model.Spot
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].Address != "inside" {
		t.Errorf("got %+v, want only the spot inside the box", got)
	}
}

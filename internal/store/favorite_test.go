package store

import (
	"testing"

	"github.com/openspot/openspot/internal/database"
)

func setupFavoriteTestDB(t *testing.T) (*FavoriteStore, *ProfileStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewFavoriteStore(db), NewProfileStore(db)
}

func TestFavoriteCreateAndList(t *testing.T) {
	fs, ps := setupFavoriteTestDB(t)
	p := createTestProfile(t, ps, "fav@example.com")

	fav, err := fs.Create(p.ID, "Work", 47.6062, -122.3321, 500)
	if err != nil {
		t.Fatalf("create favorite: %v", err)
	}
	if fav.Label != "Work" {
		t.Errorf("label = %q, want Work", fav.Label)
	}
	if fav.RadiusM != 500 {
		t.Errorf("radius = %v, want 500", fav.RadiusM)
	}

	favs, err := fs.ListByProfile(p.ID)
	if err != nil {
		t.Fatalf("list favorites: %v", err)
	}
	if len(favs) != 1 || favs[0].ID != fav.ID {
		t.Fatalf("got %+v, want favorite %d", favs, fav.ID)
	}
}

func TestFavoriteDeleteOwnership(t *testing.T) {
	fs, ps := setupFavoriteTestDB(t)
	owner := createTestProfile(t, ps, "owner@example.com")
	other := createTestProfile(t, ps, "other@example.com")

	fav, err := fs.Create(owner.ID, "Home", 47.60, -122.33, 300)
	if err != nil {
		t.Fatalf("create favorite: %v", err)
	}

	deleted, err := fs.Delete(fav.ID, other.ID)
	if err != nil {
		t.Fatalf("delete as other: %v", err)
	}
	if deleted {
		t.Error("delete should fail for non-owner")
	}

	deleted, err = fs.Delete(fav.ID, owner.ID)
	if err != nil {
		t.Fatalf("delete as owner: %v", err)
	}
	if !deleted {
		t.Error("delete should succeed for owner")
	}
}

func TestFavoriteListAll(t *testing.T) {
	fs, ps := setupFavoriteTestDB(t)
	a := createTestProfile(t, ps, "a@example.com")
	b := createTestProfile(t, ps, "b@example.com")

	if _, err := fs.Create(a.ID, "A", 47.60, -122.33, 300); err != nil {
		t.Fatalf("create favorite: %v", err)
	}
	if _, err := fs.Create(b.ID, "B", 47.61, -122.34, 300); err != nil {
		t.Fatalf("create favorite: %v", err)
	}

	all, err := fs.ListAll()
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d favorites, want 2", len(all))
	}
}

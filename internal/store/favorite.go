package store

import (
	"database/sql"
	"fmt"

	"github.com/openspot/openspot/internal/model"
)

type FavoriteStore struct {
	db *sql.DB
}

func NewFavoriteStore(db *sql.DB) *FavoriteStore {
	return &FavoriteStore{db: db}
}

func scanFavorite(scanner interface{ Scan(...any) error }) (*model.Favorite, error) {
	var f model.Favorite
	err := scanner.Scan(&f.ID, &f.ProfileID, &f.Label, &f.Lat, &f.Lng, &f.RadiusM, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

const favoriteCols = `id, profile_id, label, lat, lng, radius_m, created_at`

func (s *FavoriteStore) Create(profileID int64, label string, lat, lng, radiusM float64) (*model.Favorite, error) {
	result, err := s.db.Exec(
		`INSERT INTO favorites (profile_id, label, lat, lng, radius_m) VALUES (?, ?, ?, ?, ?)`,
		profileID, label, lat, lng, radiusM,
	)
	if err != nil {
		return nil, fmt.Errorf("insert favorite: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+favoriteCols+` FROM favorites WHERE id = ?`, id)
	return scanFavorite(row)
}

func (s *FavoriteStore) ListByProfile(profileID int64) ([]model.Favorite, error) {
	rows, err := s.db.Query(
		`SELECT `+favoriteCols+` FROM favorites WHERE profile_id = ? ORDER BY created_at DESC`,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()
	return collectFavorites(rows)
}

// ListAll returns every favorite, used for alert matching against new spots.
func (s *FavoriteStore) ListAll() ([]model.Favorite, error) {
	rows, err := s.db.Query(`SELECT ` + favoriteCols + ` FROM favorites`)
	if err != nil {
		return nil, fmt.Errorf("list all favorites: %w", err)
	}
	defer rows.Close()
	return collectFavorites(rows)
}

func collectFavorites(rows *sql.Rows) ([]model.Favorite, error) {
	var favorites []model.Favorite
	for rows.Next() {
		f, err := scanFavorite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		favorites = append(favorites, *f)
	}
	return favorites, rows.Err()
}

// Delete removes a favorite owned by the given profile. Returns false when no
// such favorite exists.
func (s *FavoriteStore) Delete(id, profileID int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM favorites WHERE id = ? AND profile_id = ?`, id, profileID)
	if err != nil {
		return false, fmt.Errorf("delete favorite: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

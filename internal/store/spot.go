package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/openspot/openspot/internal/model"
)

type SpotStore struct {
	db *sql.DB
}

func NewSpotStore(db *sql.DB) *SpotStore {
	return &SpotStore{db: db}
}

func scanSpot(scanner interface{ Scan(...any) error }) (*model.Spot, error) {
	var sp model.Spot
	var price sql.NullFloat64
	var expiresAt sql.NullTime

	err := scanner.Scan(
		&sp.ID, &sp.ReporterID, &sp.Lat, &sp.Lng, &sp.Address, &sp.SpotType,
		&price, &sp.Status, &expiresAt, &sp.CreatedAt, &sp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if price.Valid {
		sp.PricePerHour = &price.Float64
	}
	if expiresAt.Valid {
		sp.ExpiresAt = &expiresAt.Time
	}
	return &sp, nil
}

const spotCols = `id, reporter_id, lat, lng, address, spot_type, price_per_hour, status, expires_at, created_at, updated_at`

func (s *SpotStore) Create(reporterID int64, lat, lng float64, address, spotType string, pricePerHour *float64, expiresAt *time.Time) (*model.Spot, error) {
	var price sql.NullFloat64
	if pricePerHour != nil {
		price = sql.NullFloat64{Float64: *pricePerHour, Valid: true}
	}
	var expiry sql.NullTime
	if expiresAt != nil {
		expiry = sql.NullTime{Time: expiresAt.UTC(), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO spots (reporter_id, lat, lng, address, spot_type, price_per_hour, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		reporterID, lat, lng, address, spotType, price, expiry,
	)
	if err != nil {
		return nil, fmt.Errorf("insert spot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *SpotStore) GetByID(id int64) (*model.Spot, error) {
	row := s.db.QueryRow(`SELECT `+spotCols+` FROM spots WHERE id = ?`, id)
	sp, err := scanSpot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get spot: %w", err)
	}
	return sp, nil
}

// ListFilter narrows a spot listing. Zero-valued bounds mean no bounding box.
type ListFilter struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
	Bounded        bool
	Status         string
}

func (s *SpotStore) List(f ListFilter) ([]model.Spot, error) {
	query := `SELECT ` + spotCols + ` FROM spots WHERE 1=1`
	var args []any
	if f.Bounded {
		query += ` AND lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?`
		args = append(args, f.MinLat, f.MaxLat, f.MinLng, f.MaxLng)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY created_at DESC LIMIT 500`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list spots: %w", err)
	}
	defer rows.Close()

	var spots []model.Spot
	for rows.Next() {
		sp, err := scanSpot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan spot: %w", err)
		}
		spots = append(spots, *sp)
	}
	return spots, rows.Err()
}

func (s *SpotStore) Update(id int64, address, spotType string, pricePerHour *float64, expiresAt *time.Time) (*model.Spot, error) {
	var price sql.NullFloat64
	if pricePerHour != nil {
		price = sql.NullFloat64{Float64: *pricePerHour, Valid: true}
	}
	var expiry sql.NullTime
	if expiresAt != nil {
		expiry = sql.NullTime{Time: expiresAt.UTC(), Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE spots SET address = ?, spot_type = ?, price_per_hour = ?, expires_at = ?, updated_at = datetime('now') WHERE id = ?`,
		address, spotType, price, expiry, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update spot: %w", err)
	}
	return s.GetByID(id)
}

func (s *SpotStore) UpdateStatus(id int64, status string) error {
	_, err := s.db.Exec(
		`UPDATE spots SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update spot status: %w", err)
	}
	return nil
}

func (s *SpotStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM spots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete spot: %w", err)
	}
	return nil
}

// ExpireStale marks open spots past their expiry as expired and returns the
// affected ids so callers can broadcast the change.
func (s *SpotStore) ExpireStale() ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT id FROM spots WHERE status = 'open' AND expires_at IS NOT NULL AND expires_at <= datetime('now')`,
	)
	if err != nil {
		return nil, fmt.Errorf("select stale spots: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale spot id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if err := s.UpdateStatus(id, model.SpotExpired); err != nil {
			return ids, err
		}
	}
	return ids, nil
}

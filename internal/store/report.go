package store

import (
	"database/sql"
	"fmt"

	"github.com/openspot/openspot/internal/model"
)

type ReportStore struct {
	db *sql.DB
}

func NewReportStore(db *sql.DB) *ReportStore {
	return &ReportStore{db: db}
}

func scanReport(scanner interface{ Scan(...any) error }) (*model.SpotReport, error) {
	var r model.SpotReport
	err := scanner.Scan(&r.ID, &r.SpotID, &r.ReporterID, &r.Kind, &r.Note, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const reportCols = `id, spot_id, reporter_id, kind, note, created_at`

func (s *ReportStore) Create(spotID, reporterID int64, kind, note string) (*model.SpotReport, error) {
	result, err := s.db.Exec(
		`INSERT INTO spot_reports (spot_id, reporter_id, kind, note) VALUES (?, ?, ?, ?)`,
		spotID, reporterID, kind, note,
	)
	if err != nil {
		return nil, fmt.Errorf("insert spot report: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+reportCols+` FROM spot_reports WHERE id = ?`, id)
	return scanReport(row)
}

func (s *ReportStore) ListBySpot(spotID int64) ([]model.SpotReport, error) {
	rows, err := s.db.Query(
		`SELECT `+reportCols+` FROM spot_reports WHERE spot_id = ? ORDER BY created_at DESC`,
		spotID,
	)
	if err != nil {
		return nil, fmt.Errorf("list spot reports: %w", err)
	}
	defer rows.Close()

	var reports []model.SpotReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan spot report: %w", err)
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

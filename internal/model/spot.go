package model

import "time"

// Spot types.
const (
	SpotTypeStreet = "street"
	SpotTypeGarage = "garage"
	SpotTypeLot    = "lot"
)

// Spot statuses.
const (
	SpotOpen    = "open"
	SpotTaken   = "taken"
	SpotExpired = "expired"
)

// Report kinds.
const (
	ReportAvailable  = "available"
	ReportTaken      = "taken"
	ReportGone       = "gone"
	ReportInaccurate = "inaccurate"
)

type Spot struct {
	ID           int64      `json:"id"`
	ReporterID   int64      `json:"reporter_id"`
	Lat          float64    `json:"lat"`
	Lng          float64    `json:"lng"`
	Address      string     `json:"address"`
	SpotType     string     `json:"spot_type"`
	PricePerHour *float64   `json:"price_per_hour"`
	Status       string     `json:"status"`
	ExpiresAt    *time.Time `json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type SpotReport struct {
	ID         int64     `json:"id"`
	SpotID     int64     `json:"spot_id"`
	ReporterID int64     `json:"reporter_id"`
	Kind       string    `json:"kind"`
	Note       string    `json:"note"`
	CreatedAt  time.Time `json:"created_at"`
}

type Favorite struct {
	ID        int64     `json:"id"`
	ProfileID int64     `json:"profile_id"`
	Label     string    `json:"label"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	RadiusM   float64   `json:"radius_m"`
	CreatedAt time.Time `json:"created_at"`
}

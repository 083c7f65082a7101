// Package geo has the little spherical geometry the favorite-radius
// matching needs.
package geo

import "math"

const earthRadiusM = 6371000.0

// DistanceM returns the great-circle distance in meters between two
// lat/lng points (haversine).
func DistanceM(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	phi1 := lat1 * rad
	phi2 := lat2 * rad
	dPhi := (lat2 - lat1) * rad
	dLambda := (lng2 - lng1) * rad

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// ValidLat reports whether lat is a usable latitude.
func ValidLat(lat float64) bool {
	return lat >= -90 && lat <= 90
}

// ValidLng reports whether lng is a usable longitude.
func ValidLng(lng float64) bool {
	return lng >= -180 && lng <= 180
}

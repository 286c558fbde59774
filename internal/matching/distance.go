// internal/matching/distance.go
package matching

import (
	"math"

	"fostermatch/internal/models"
)

const earthRadiusMiles = 3958.8

// FlagDistanceUnavailable is attached when either side lacks coordinates.
const FlagDistanceUnavailable = "Distance unavailable"

// HaversineMiles computes the great-circle distance between two points.
func HaversineMiles(a, b models.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(h))
}

// DistanceBetween returns the distance in miles between two optional
// coordinate pairs, or nil when either side is not geocoded.
func DistanceBetween(a, b *models.Coordinates) *float64 {
	if a == nil || b == nil {
		return nil
	}
	d := HaversineMiles(*a, *b)
	return &d
}

// DistanceDelta maps a distance in miles to a score adjustment. Bands are
// half-open on the lower bound, so exactly 10 miles falls in the <25 band.
func DistanceDelta(miles float64) int {
	switch {
	case miles < 10:
		return 10
	case miles < 25:
		return 0
	case miles < 50:
		return -5
	default:
		return -10
	}
}

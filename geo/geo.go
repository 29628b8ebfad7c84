// Package geo provides great-circle distance between WGS84 points.
package geo

import (
	"math"

	"reloop/internal/models"
)

const earthRadiusKm = 6371

// DistanceKm returns the Haversine distance in kilometres between two
// points given in decimal degrees.
func DistanceKm(from, to models.Geolocation) float64 {
	dLat := toRad(to.Lat - from.Lat)
	dLng := toRad(to.Lng - from.Lng)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(from.Lat))*math.Cos(toRad(to.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRad(deg float64) float64 {
	return deg * (math.Pi / 180)
}

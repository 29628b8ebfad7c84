package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"reloop/geo"
	"reloop/internal/models"
)

func TestDistanceKm(t *testing.T) {
	// Brighton Pier to Hove seafront, roughly 2.5 km
	d := geo.DistanceKm(models.Geolocation{Lat: 50.8168, Lng: -0.1367}, models.Geolocation{Lat: 50.8255, Lng: -0.1689})
	assert.InDelta(t, 2.45, d, 0.3)

	// London to Brighton, roughly 76 km
	d = geo.DistanceKm(models.Geolocation{Lat: 51.5074, Lng: -0.1278}, models.Geolocation{Lat: 50.8225, Lng: -0.1372})
	assert.InDelta(t, 76, d, 2)
}

func TestDistanceKmZero(t *testing.T) {
	p := models.Geolocation{Lat: 50.82, Lng: -0.14}
	assert.Equal(t, 0.0, geo.DistanceKm(p, p))
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := models.Geolocation{Lat: 50.82, Lng: -0.14}
	b := models.Geolocation{Lat: 51.51, Lng: -0.13}
	assert.InDelta(t, geo.DistanceKm(a, b), geo.DistanceKm(b, a), 1e-9)
}

// Package routing provides a multi-stop collection route planner. The
// planner is a greedy nearest-neighbour heuristic with fixed average-speed
// and emission factors; it is an estimator for dispatch previews, not a
// vehicle routing solver.
package routing

import (
	"fmt"

	"reloop/geo"
	"reloop/internal/models"
)

// TransportMode selects the per-km emission factor of a segment.
type TransportMode string

const (
	ModeRoad TransportMode = "road"
	ModeRail TransportMode = "rail"
	ModeSea  TransportMode = "sea"
)

// DEFRA-derived emission factors in kg CO2 per km.
var co2FactorsKgPerKm = map[TransportMode]float64{
	ModeRoad: 0.98,
	ModeRail: 0.027,
	ModeSea:  0.016,
}

// Assumed average speed for duration estimates.
const averageSpeedKmh = 50.0

// Stop is one pickup or delivery point on a route.
type Stop struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Location models.Geolocation `json:"location"`
	DemandKg float64            `json:"demand_kg,omitempty"`
}

// Constraints bound an acceptable route. Violations produce warnings, not
// errors; the route is still returned for the dispatcher to judge.
type Constraints struct {
	MaxDistanceKm     float64 `json:"max_distance_km,omitempty"`
	MaxDrivingTimeMin float64 `json:"max_driving_time_min,omitempty"`
	VehicleCapacityKg float64 `json:"vehicle_capacity_kg,omitempty"`
}

// Segment is one leg between consecutive stops.
type Segment struct {
	From        Stop          `json:"from"`
	To          Stop          `json:"to"`
	DistanceKm  float64       `json:"distance_km"`
	DurationMin float64       `json:"duration_min"`
	CO2Kg       float64       `json:"co2_kg"`
	Mode        TransportMode `json:"mode"`
}

// Route is an ordered visiting plan with its aggregate cost estimates.
type Route struct {
	Stops           []Stop    `json:"stops"`
	TotalDistanceKm float64   `json:"total_distance_km"`
	TotalTimeMin    float64   `json:"total_time_min"`
	TotalCO2Kg      float64   `json:"total_co2_kg"`
	Segments        []Segment `json:"segments"`
	Warnings        []string  `json:"warnings"`
}

// CO2Kg estimates segment emissions for a distance and mode. Unknown
// modes fall back to road, the most conservative factor.
func CO2Kg(distanceKm float64, mode TransportMode) float64 {
	factor, ok := co2FactorsKgPerKm[mode]
	if !ok {
		factor = co2FactorsKgPerKm[ModeRoad]
	}
	return distanceKm * factor
}

// PlanRoute orders the stops by repeatedly visiting the nearest unvisited
// stop from the first one, and estimates distance, duration and emissions
// per leg. The first stop is the fixed start of the route.
func PlanRoute(stops []Stop, constraints Constraints) (*Route, error) {
	if len(stops) == 0 {
		return nil, &models.ValidationError{Field: "stops", Reason: "at least one stop is required"}
	}

	route := &Route{
		Stops:    []Stop{stops[0]},
		Segments: []Segment{},
		Warnings: []string{},
	}
	unvisited := append([]Stop(nil), stops[1:]...)
	current := stops[0]

	for len(unvisited) > 0 {
		nearestIdx := 0
		minDistance := geo.DistanceKm(current.Location, unvisited[0].Location)
		for i := 1; i < len(unvisited); i++ {
			if d := geo.DistanceKm(current.Location, unvisited[i].Location); d < minDistance {
				minDistance = d
				nearestIdx = i
			}
		}

		next := unvisited[nearestIdx]
		seg := Segment{
			From:        current,
			To:          next,
			DistanceKm:  minDistance,
			DurationMin: minDistance / averageSpeedKmh * 60,
			CO2Kg:       CO2Kg(minDistance, ModeRoad),
			Mode:        ModeRoad,
		}
		route.Stops = append(route.Stops, next)
		route.Segments = append(route.Segments, seg)
		route.TotalDistanceKm += seg.DistanceKm
		route.TotalTimeMin += seg.DurationMin
		route.TotalCO2Kg += seg.CO2Kg

		current = next
		unvisited = append(unvisited[:nearestIdx], unvisited[nearestIdx+1:]...)
	}

	if constraints.MaxDistanceKm > 0 && route.TotalDistanceKm > constraints.MaxDistanceKm {
		route.Warnings = append(route.Warnings,
			fmt.Sprintf("route exceeds maximum distance: %.1fkm > %.1fkm", route.TotalDistanceKm, constraints.MaxDistanceKm))
	}
	if constraints.MaxDrivingTimeMin > 0 && route.TotalTimeMin > constraints.MaxDrivingTimeMin {
		route.Warnings = append(route.Warnings,
			fmt.Sprintf("route exceeds maximum driving time: %.1fh > %.1fh", route.TotalTimeMin/60, constraints.MaxDrivingTimeMin/60))
	}
	if constraints.VehicleCapacityKg > 0 {
		total := 0.0
		for _, s := range stops {
			total += s.DemandKg
		}
		if total > constraints.VehicleCapacityKg {
			route.Warnings = append(route.Warnings,
				fmt.Sprintf("total demand exceeds vehicle capacity: %.0fkg > %.0fkg", total, constraints.VehicleCapacityKg))
		}
	}
	return route, nil
}

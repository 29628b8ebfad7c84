package models

import "time"

// ProcessorMatch is one scored lot/processor pairing produced by the
// matcher. A score of 0 means the processor was excluded (out of service
// area or lot does not fit). Immutable once produced.
type ProcessorMatch struct {
	ProcessorID   string    `json:"processor_id"`
	ProcessorName string    `json:"processor_name"`
	Score         float64   `json:"score"` // [0,100]
	DistanceKm    float64   `json:"distance_km"`
	PriceEstimate float64   `json:"price_estimate"`
	RouteETA      time.Time `json:"route_eta"`
	SRLScore      float64   `json:"srl_score"` // [0,1]
	Notes         string    `json:"notes,omitempty"`
}

package models

import (
	"fmt"
	"time"
)

// FeedstockType identifies the waste material class of a lot.
type FeedstockType string

const (
	FeedstockUCO       FeedstockType = "used_cooking_oil"
	FeedstockFoodWaste FeedstockType = "food_waste"
)

// Geolocation is a WGS84 point in decimal degrees.
type Geolocation struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// QualityMetrics carries the optional supplier-declared quality figures.
type QualityMetrics struct {
	MoisturePct      float64 `json:"moisture_pct,omitempty"`
	FFAPct           float64 `json:"ffa_pct,omitempty"` // free fatty acid, UCO only
	ContaminationPct float64 `json:"contamination_pct,omitempty"`
}

// FeedstockLot is a physical quantity of waste material offered for
// collection. It is a read-only input to the matcher; downstream custody
// records reference it by id and never mutate it.
type FeedstockLot struct {
	ID             string          `json:"id"`
	Type           FeedstockType   `json:"type"`
	Volume         float64         `json:"volume"`
	Unit           string          `json:"unit"`
	Location       Geolocation     `json:"location"`
	WindowStart    time.Time       `json:"window_start"`
	WindowEnd      time.Time       `json:"window_end"`
	QualityMetrics *QualityMetrics `json:"quality_metrics,omitempty"`
	SupplierID     string          `json:"supplier_id"`
	SRLHint        bool            `json:"srl_hint,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Validate rejects malformed lots before any side effect runs.
func (l *FeedstockLot) Validate() error {
	if l.ID == "" {
		return &ValidationError{Field: "id", Reason: "lot id is required"}
	}
	if l.Type != FeedstockUCO && l.Type != FeedstockFoodWaste {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown feedstock type %q", l.Type)}
	}
	if l.Volume <= 0 {
		return &ValidationError{Field: "volume", Reason: "volume must be positive"}
	}
	if !l.WindowStart.IsZero() && !l.WindowEnd.IsZero() && !l.WindowStart.Before(l.WindowEnd) {
		return &ValidationError{Field: "window", Reason: "collection window start must precede end"}
	}
	return nil
}

// ValidationError marks malformed input. It is always recoverable by the
// caller correcting the request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

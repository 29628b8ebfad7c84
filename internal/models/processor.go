package models

import "fmt"

// OutputType is the product a processing facility converts feedstock into.
type OutputType string

const (
	OutputBiogas    OutputType = "biogas"
	OutputBiodiesel OutputType = "biodiesel"
)

// ProcessorCandidate is one facility from the processor registry. The
// registry is externally maintained; candidates are read-only for the
// duration of a match request.
type ProcessorCandidate struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	AcceptedType       OutputType  `json:"accepted_type"`
	Location           Geolocation `json:"location"`
	Capacity           float64     `json:"capacity"`            // mass per period, same unit as lot volume
	CurrentUtilization float64     `json:"current_utilization"` // fraction of capacity in use, [0,1]
	PricePerUnit       float64     `json:"price_per_unit"`
	Reputation         float64     `json:"reputation"` // [0,100]
	SRLParticipant     bool        `json:"srl_participant"`
}

func (p *ProcessorCandidate) Validate() error {
	if p.ID == "" {
		return &ValidationError{Field: "id", Reason: "processor id is required"}
	}
	if p.CurrentUtilization < 0 || p.CurrentUtilization > 1 {
		return &ValidationError{Field: "current_utilization", Reason: fmt.Sprintf("utilization %.3f outside [0,1]", p.CurrentUtilization)}
	}
	if p.Reputation < 0 || p.Reputation > 100 {
		return &ValidationError{Field: "reputation", Reason: fmt.Sprintf("reputation %.1f outside [0,100]", p.Reputation)}
	}
	return nil
}

// Package metrics implements the Loop Integrity Index (LII), the weighted
// operational health score of a circular loop, together with its target
// and progress helpers.
package metrics

import "math"

// LoopMetrics are the raw operational counters the LII aggregates over a
// reporting period.
type LoopMetrics struct {
	SRLTons           float64 `json:"srl_tons"`            // tonnage moved through stabilized loops
	NodesActivated    float64 `json:"nodes_activated"`     // participating facilities brought online
	CarbonGirmAnchors float64 `json:"carbon_girm_anchors"` // anchored carbon evidence records
	LocalLoopsClosed  float64 `json:"local_loops_closed"`  // supplier->processor loops under the local radius
	CRLEvents         float64 `json:"crl_events"`          // compromised-loop incidents, penalized
}

// LII weights. CRL events are the only negative contribution.
const (
	weightSRLTons           = 0.35
	weightNodesActivated    = 0.20
	weightCarbonGirmAnchors = 0.25
	weightLocalLoopsClosed  = 0.15
	weightCRLEvents         = -0.05
)

// Ramp-up targets for the first two reporting months.
var (
	TargetsMonth1 = LoopMetrics{SRLTons: 50, NodesActivated: 6, CarbonGirmAnchors: 30, LocalLoopsClosed: 2}
	TargetsMonth2 = LoopMetrics{SRLTons: 150, NodesActivated: 10, CarbonGirmAnchors: 100, LocalLoopsClosed: 4}
)

// CalculateLII computes the weighted index, floored at 0.
func CalculateLII(m LoopMetrics) float64 {
	lii := weightSRLTons*m.SRLTons +
		weightNodesActivated*m.NodesActivated +
		weightCarbonGirmAnchors*m.CarbonGirmAnchors +
		weightLocalLoopsClosed*m.LocalLoopsClosed +
		weightCRLEvents*m.CRLEvents
	return math.Max(0, lii)
}

// TargetLII returns the index value the month's targets would produce.
// Months other than 1 are measured against the month-2 targets.
func TargetLII(month int) float64 {
	return CalculateLII(targetsFor(month))
}

func targetsFor(month int) LoopMetrics {
	if month == 1 {
		return TargetsMonth1
	}
	return TargetsMonth2
}

// MetricProgress tracks one counter against its target.
type MetricProgress struct {
	Current         float64 `json:"current"`
	Target          float64 `json:"target"`
	PercentComplete float64 `json:"percent_complete"`
}

// Progress compares current metrics against a month's targets.
type Progress struct {
	LII             float64                   `json:"lii"`
	TargetLII       float64                   `json:"target_lii"`
	PercentComplete float64                   `json:"percent_complete"`
	Breakdown       map[string]MetricProgress `json:"metric_breakdown"`
}

// CalculateProgress reports how far current metrics are toward the given
// month's targets, per metric and overall. The CRL target is zero, so its
// progress is binary: clean period or not.
func CalculateProgress(current LoopMetrics, month int) Progress {
	targets := targetsFor(month)
	lii := CalculateLII(current)
	targetLII := CalculateLII(targets)

	crlProgress := 0.0
	if current.CRLEvents == 0 {
		crlProgress = 100
	}
	return Progress{
		LII:             lii,
		TargetLII:       targetLII,
		PercentComplete: lii / targetLII * 100,
		Breakdown: map[string]MetricProgress{
			"srl_tons":            {Current: current.SRLTons, Target: targets.SRLTons, PercentComplete: current.SRLTons / targets.SRLTons * 100},
			"nodes_activated":     {Current: current.NodesActivated, Target: targets.NodesActivated, PercentComplete: current.NodesActivated / targets.NodesActivated * 100},
			"carbon_girm_anchors": {Current: current.CarbonGirmAnchors, Target: targets.CarbonGirmAnchors, PercentComplete: current.CarbonGirmAnchors / targets.CarbonGirmAnchors * 100},
			"local_loops_closed":  {Current: current.LocalLoopsClosed, Target: targets.LocalLoopsClosed, PercentComplete: current.LocalLoopsClosed / targets.LocalLoopsClosed * 100},
			"crl_events":          {Current: current.CRLEvents, Target: targets.CRLEvents, PercentComplete: crlProgress},
		},
	}
}

// LIIDelta is the index change a proposed action would produce. Used to
// decide whether an automated action is worth activating.
func LIIDelta(before, after LoopMetrics) float64 {
	return CalculateLII(after) - CalculateLII(before)
}

// MeetsActivationThreshold reports whether a delta justifies activation.
func MeetsActivationThreshold(delta, threshold float64) bool {
	return delta >= threshold
}

// Package matching implements the feedstock-to-processor matching engine:
// a composite scorer over distance, capacity, price and reputation, and a
// matcher that ranks candidates from the processor registry and persists
// the result.
package matching

import (
	"math"
	"time"

	"reloop/config"
	"reloop/geo"
	"reloop/internal/models"
)

// Scorer computes a composite match score in [0,100] for one lot/processor
// pair. Scoring is pure; all tuned constants come from the MatcherConfig.
type Scorer struct {
	cfg config.MatcherConfig
}

func NewScorer(cfg config.MatcherConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// OutputFor maps a feedstock type to the product its processors make.
func OutputFor(t models.FeedstockType) models.OutputType {
	if t == models.FeedstockFoodWaste {
		return models.OutputBiogas
	}
	return models.OutputBiodiesel
}

// Score evaluates the processor for the lot. A zero score means excluded:
// either out of the service area or the lot does not fit the processor's
// remaining capacity. Both exclusions override every other factor.
func (s *Scorer) Score(now time.Time, lot *models.FeedstockLot, p *models.ProcessorCandidate) models.ProcessorMatch {
	distance := geo.DistanceKm(lot.Location, p.Location)

	match := models.ProcessorMatch{
		ProcessorID:   p.ID,
		ProcessorName: p.Name,
		DistanceKm:    distance,
		PriceEstimate: p.PricePerUnit * lot.Volume,
		RouteETA:      s.estimateETA(now, distance),
	}

	if distance > s.cfg.MaxDistanceKm {
		match.Notes = "outside service area"
		return match
	}

	available := p.Capacity * (1 - p.CurrentUtilization)
	if lot.Volume > available {
		match.Notes = "lot exceeds available capacity"
		return match
	}

	distanceScore := 1 - distance/s.cfg.MaxDistanceKm
	capacityScore := s.capacityScore(lot, p)
	priceScore := s.priceScore(lot.Type, p.PricePerUnit)
	reputationScore := p.Reputation / 100
	srlScore := s.srlScore(lot, p, distance)

	total := distanceScore*s.cfg.DistanceWeight +
		capacityScore*s.cfg.CapacityWeight +
		priceScore*s.cfg.PriceWeight +
		reputationScore*s.cfg.ReputationWeight
	if srlScore > 0.5 {
		total *= 1 + s.cfg.SRLBonus
	}

	match.Score = math.Min(total*100, 100)
	match.SRLScore = srlScore
	return match
}

// capacityScore rewards matches that land the processor in its utilization
// sweet spot. Callers have already rejected lots that do not fit at all.
func (s *Scorer) capacityScore(lot *models.FeedstockLot, p *models.ProcessorCandidate) float64 {
	resulting := p.CurrentUtilization + lot.Volume/p.Capacity
	switch {
	case resulting >= s.cfg.SweetSpotLow && resulting <= s.cfg.SweetSpotHigh:
		return 1.0
	case resulting > s.cfg.SweetSpotHigh:
		return s.cfg.OverloadScore
	default:
		// Below the sweet spot the resulting utilization itself is the
		// score, so filling idle capacity ranks higher than leaving it.
		return resulting
	}
}

// priceScore compares the processor's offer to the per-type baseline.
// Paying over baseline is good for the supplier; underpaying below 80%
// of baseline is penalized steeply.
func (s *Scorer) priceScore(t models.FeedstockType, pricePerUnit float64) float64 {
	baseline := s.cfg.UCOPriceBaseline
	if t == models.FeedstockFoodWaste {
		baseline = s.cfg.FoodWastePriceBaseline
	}
	ratio := pricePerUnit / baseline
	switch {
	case ratio > 1.2:
		return 1.0
	case ratio > 1.0:
		return 0.8 + (ratio - 1.0)
	case ratio > 0.8:
		return ratio
	default:
		return ratio * 0.5
	}
}

// srlScore grades stabilized-recursive-loop fit in [0,1]. The three
// components sum to exactly 1.0 at most, so no clamp is needed.
func (s *Scorer) srlScore(lot *models.FeedstockLot, p *models.ProcessorCandidate, distance float64) float64 {
	score := 0.0
	if lot.SRLHint && p.SRLParticipant {
		score += 0.5
	}
	if OutputFor(lot.Type) == p.AcceptedType {
		score += 0.3
	}
	if distance < s.cfg.LocalLoopKm {
		score += 0.2
	}
	return score
}

func (s *Scorer) estimateETA(now time.Time, distance float64) time.Time {
	return now.Add(time.Duration(distance * s.cfg.ETAMinPerKm * float64(time.Minute)))
}

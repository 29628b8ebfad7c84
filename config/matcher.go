package config

import (
	"fmt"
	"math"
)

// MatcherConfig names every tuned constant of the matching policy in one
// place. The sub-score weights, price baselines and capacity sweet spot
// encode business policy and must not be re-derived.
type MatcherConfig struct {
	MaxDistanceKm float64 `yaml:"max_distance_km"` // hard service-area cutoff
	SRLBonus      float64 `yaml:"srl_bonus"`       // multiplier fraction applied when srl score > 0.5

	// Sub-score weights, must sum to 1.0
	DistanceWeight   float64 `yaml:"distance_weight"`
	CapacityWeight   float64 `yaml:"capacity_weight"`
	PriceWeight      float64 `yaml:"price_weight"`
	ReputationWeight float64 `yaml:"reputation_weight"`

	// Price baselines per feedstock type, in matching currency units
	FoodWastePriceBaseline float64 `yaml:"food_waste_price_baseline"`
	UCOPriceBaseline       float64 `yaml:"uco_price_baseline"`

	// Capacity policy: resulting utilization in [SweetSpotLow, SweetSpotHigh]
	// scores 1.0; above SweetSpotHigh scores OverloadScore
	SweetSpotLow  float64 `yaml:"sweet_spot_low"`
	SweetSpotHigh float64 `yaml:"sweet_spot_high"`
	OverloadScore float64 `yaml:"overload_score"`

	LocalLoopKm  float64 `yaml:"local_loop_km"`   // srl proximity bonus threshold
	ETAMinPerKm  float64 `yaml:"eta_min_per_km"`  // average-speed heuristic, not real routing
	TopN         int     `yaml:"top_n"`           // ranked matches kept per lot
	RegistryTimeout string `yaml:"registry_timeout"` // candidate-fetch deadline
}

// SetDefaults fills in the reference matching policy.
func (c *MatcherConfig) SetDefaults() {
	if c.MaxDistanceKm == 0 {
		c.MaxDistanceKm = 100
	}
	if c.SRLBonus == 0 {
		c.SRLBonus = 0.2 // 20% boost for SRL matches
	}
	if c.DistanceWeight == 0 && c.CapacityWeight == 0 && c.PriceWeight == 0 && c.ReputationWeight == 0 {
		c.DistanceWeight = 0.3
		c.CapacityWeight = 0.25
		c.PriceWeight = 0.25
		c.ReputationWeight = 0.2
	}
	if c.FoodWastePriceBaseline == 0 {
		c.FoodWastePriceBaseline = 0.10
	}
	if c.UCOPriceBaseline == 0 {
		c.UCOPriceBaseline = 0.50
	}
	if c.SweetSpotLow == 0 {
		c.SweetSpotLow = 0.7
	}
	if c.SweetSpotHigh == 0 {
		c.SweetSpotHigh = 0.9
	}
	if c.OverloadScore == 0 {
		c.OverloadScore = 0.7
	}
	if c.LocalLoopKm == 0 {
		c.LocalLoopKm = 20
	}
	if c.ETAMinPerKm == 0 {
		c.ETAMinPerKm = 2
	}
	if c.TopN == 0 {
		c.TopN = 10
	}
	if c.RegistryTimeout == "" {
		c.RegistryTimeout = "5s"
	}
}

// Validate checks the weight convention and threshold ordering.
func (c *MatcherConfig) Validate() error {
	total := c.DistanceWeight + c.CapacityWeight + c.PriceWeight + c.ReputationWeight
	if math.Abs(total-1.0) > 0.001 {
		return fmt.Errorf("matcher weights must sum to 1.0, got %f", total)
	}
	if c.MaxDistanceKm <= 0 {
		return fmt.Errorf("max_distance_km must be positive")
	}
	if c.SweetSpotLow >= c.SweetSpotHigh {
		return fmt.Errorf("sweet_spot_low (%f) must be below sweet_spot_high (%f)", c.SweetSpotLow, c.SweetSpotHigh)
	}
	if c.TopN <= 0 {
		return fmt.Errorf("top_n must be positive")
	}
	return nil
}

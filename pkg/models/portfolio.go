package models

// RiskConfig bounds what the optimizer may select and how stakes are sized
type RiskConfig struct {
	MinConfidence    float64 `json:"min_confidence"`     // Candidates below this are filtered out
	MaxPositions     int     `json:"max_positions"`      // Hard cap on selected opportunities
	MaxExposure      float64 `json:"max_exposure"`       // Aggregate Kelly fraction cap
	MaxSingleBet     float64 `json:"max_single_bet"`     // Largest stake accepted on one bet
	MaxTotalExposure float64 `json:"max_total_exposure"` // Open stake cap as fraction of bankroll
	BaseBankroll     float64 `json:"base_bankroll"`      // Reference bankroll when no live balance
	KellyMultiplier  float64 `json:"kelly_multiplier"`   // Fractional Kelly scaling
	KellyCap         float64 `json:"kelly_cap"`          // Hard cap on any single Kelly fraction
}

// DefaultRiskConfig returns the canonical conservative configuration
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		MinConfidence:    0.55,
		MaxPositions:     10,
		MaxExposure:      0.10,
		MaxSingleBet:     100.0,
		MaxTotalExposure: 0.50,
		BaseBankroll:     1000.0,
		KellyMultiplier:  0.25, // Quarter Kelly
		KellyCap:         0.10,
	}
}

// AllocationConstraints echoes the limits an allocation was produced under
type AllocationConstraints struct {
	MaxSingleBet     float64 `json:"max_single_bet"`
	MaxTotalExposure float64 `json:"max_total_exposure"`
	MinConfidence    float64 `json:"min_confidence"`
}

// PortfolioAllocation is the optimizer's selected, sized subset of the live
// opportunity set. It is a derived value, rebuilt on every pass and never stored.
type PortfolioAllocation struct {
	Opportunities        []Opportunity         `json:"opportunities"`
	TotalExpectedValue   float64               `json:"total_expected_value"`
	TotalKellyFraction   float64               `json:"total_kelly_fraction"`
	RiskScore            float64               `json:"risk_score"`            // 0-100, lower is safer
	DiversificationScore float64               `json:"diversification_score"` // 0-100, higher is better
	Allocation           map[string]float64    `json:"allocation"`            // opportunity id -> stake amount
	Constraints          AllocationConstraints `json:"constraints"`
}

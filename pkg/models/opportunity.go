package models

import "time"

// OpportunityType defines the kind of wagering opportunity
type OpportunityType string

const (
	OpportunityTypeValueBet  OpportunityType = "value_bet" // Single +EV bet against a soft line
	OpportunityTypeArbitrage OpportunityType = "arbitrage" // Cross-book guaranteed profit
	OpportunityTypeProp      OpportunityType = "prop"      // Player/prop market mispricing
)

// RiskLevel classifies an opportunity by confidence and stake size
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// riskLevelRank orders risk levels for tie-breaking (lower is safer)
var riskLevelRank = map[RiskLevel]int{
	RiskLevelLow:    0,
	RiskLevelMedium: 1,
	RiskLevelHigh:   2,
}

// Rank returns the ordering rank of a risk level (low < medium < high)
func (r RiskLevel) Rank() int {
	if rank, ok := riskLevelRank[r]; ok {
		return rank
	}
	return len(riskLevelRank)
}

// RawCandidate is the shape a source adapter hands to the normalizer.
// Fields the source doesn't know are left zero and defaulted downstream.
type RawCandidate struct {
	ID           string   `json:"id"`
	SportKey     string   `json:"sport_key"`
	SubjectLabel string   `json:"subject_label"`
	Line         float64  `json:"line"`
	DecimalOdds  float64  `json:"decimal_odds,omitempty"`
	AmericanOdds int      `json:"american_odds,omitempty"` // Used when the feed prices in American odds
	Confidence   float64  `json:"confidence"`
	Trends       []string `json:"trends,omitempty"`
	Signals      []string `json:"signals,omitempty"`
	RiskFactors  []string `json:"risk_factors,omitempty"`

	// Optional feed-supplied expiry; zero means the normalizer applies the
	// source TTL
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Analysis carries the qualitative context attached to an opportunity
type Analysis struct {
	Trends      []string `json:"trends"`
	Signals     []string `json:"signals"`
	RiskFactors []string `json:"risk_factors"`
}

// Opportunity is a normalized, priced wagering candidate.
// Invariants: ExpiresAt > CreatedAt; KellyFraction in [0, capK].
type Opportunity struct {
	ID            string          `json:"id"`
	Type          OpportunityType `json:"type"`
	Source        string          `json:"source"`
	SportKey      string          `json:"sport_key"`
	SubjectLabel  string          `json:"subject_label"`
	Line          float64         `json:"line"`
	Odds          float64         `json:"odds"` // Decimal odds
	Confidence    float64         `json:"confidence"`
	ExpectedValue float64         `json:"expected_value"`
	KellyFraction float64         `json:"kelly_fraction"`
	RiskLevel     RiskLevel       `json:"risk_level"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
	Analysis      Analysis        `json:"analysis"`
}

// Score is the composite ranking score used by the portfolio optimizer
func (o Opportunity) Score() float64 {
	return o.ExpectedValue * o.Confidence
}

// Expired reports whether the opportunity has passed its expiry at the given time
func (o Opportunity) Expired(now time.Time) bool {
	return o.ExpiresAt.Before(now)
}

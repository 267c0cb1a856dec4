package betmath

import (
	"fmt"
	"math"

	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/models"
)

// ExpectedValue calculates the per-unit-stake expected return implied by the
// model's confidence
//
// Formula: EV = confidence × decimalOdds - 1
//
// Example:
// Confidence: 0.75 | Odds: 2.00
// EV: 0.75 × 2.0 - 1 = 0.50 (50 cents per dollar staked)
func ExpectedValue(confidence, decimalOdds float64) (float64, error) {
	if confidence < 0 || confidence > 1 {
		return 0, fmt.Errorf("confidence must be between 0 and 1")
	}
	if decimalOdds <= 1.0 {
		return 0, fmt.Errorf("decimal odds must be greater than 1.0")
	}

	return confidence*decimalOdds - 1.0, nil
}

// RawKelly calculates the full Kelly criterion fraction
//
// Formula: f* = (b×p - q) / b
//   - b: net decimal odds (decimalOdds - 1)
//   - p: win probability (confidence)
//   - q: loss probability (1 - p)
//
// A negative result means no edge: staking zero is optimal.
func RawKelly(confidence, decimalOdds float64) (float64, error) {
	if confidence < 0 || confidence > 1 {
		return 0, fmt.Errorf("confidence must be between 0 and 1")
	}
	if decimalOdds <= 1.0 {
		return 0, fmt.Errorf("decimal odds must be greater than 1.0")
	}

	b := decimalOdds - 1.0
	p := confidence
	q := 1.0 - p

	return (b*p - q) / b, nil
}

// FractionalKelly scales raw Kelly by a conservative multiplier and clamps the
// result into [0, cap]. The clamp applies regardless of what the raw
// computation produced.
//
// Example:
// f* = 0.50 | multiplier = 0.25 | cap = 0.10
// 0.50 × 0.25 = 0.125 → capped to 0.10
func FractionalKelly(rawKelly, multiplier, cap float64) float64 {
	applied := rawKelly * multiplier
	if applied < 0 {
		return 0
	}
	if applied > cap {
		return cap
	}
	return applied
}

// ClassifyRisk buckets an opportunity by confidence and applied Kelly fraction.
// Low requires high confidence AND a small stake fraction; anything not
// clearly low or medium is high.
func ClassifyRisk(confidence, kellyFraction float64) models.RiskLevel {
	if confidence > 0.8 && kellyFraction < 0.03 {
		return models.RiskLevelLow
	}
	if confidence > 0.7 && kellyFraction < 0.06 {
		return models.RiskLevelMedium
	}
	return models.RiskLevelHigh
}

// Round rounds a stake amount to 2 decimal places
func Round(val float64) float64 {
	return math.Round(val*100) / 100
}

// ClosingLineValue calculates CLV as a percentage of the entry price
//
// Formula: CLV% = (closingOdds - entryOdds) / entryOdds × 100
//
// Positive CLV means the market moved toward the bet after placement - a proxy
// for pricing skill independent of the bet's outcome.
func ClosingLineValue(entryOdds, closingOdds float64) (float64, error) {
	if entryOdds <= 0 {
		return 0, fmt.Errorf("entry odds must be positive")
	}

	return (closingOdds - entryOdds) / entryOdds * 100.0, nil
}

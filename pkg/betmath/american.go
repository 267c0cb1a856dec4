package betmath

import "fmt"

// AmericanToDecimal converts American odds to decimal odds
func AmericanToDecimal(american int) (float64, error) {
	if american == 0 {
		return 0, fmt.Errorf("american odds cannot be zero")
	}
	if american > 0 {
		return (float64(american) / 100.0) + 1.0, nil
	}
	return (100.0 / float64(-american)) + 1.0, nil
}

// DecimalToAmerican converts decimal odds to American odds
func DecimalToAmerican(decimal float64) (int, error) {
	if decimal <= 1.0 {
		return 0, fmt.Errorf("decimal odds must be greater than 1.0")
	}
	if decimal >= 2.0 {
		return int((decimal - 1.0) * 100), nil
	}
	return int(-100.0 / (decimal - 1.0)), nil
}

// ImpliedProbability calculates the probability implied by decimal odds
func ImpliedProbability(decimal float64) (float64, error) {
	if decimal <= 1.0 {
		return 0, fmt.Errorf("decimal odds must be greater than 1.0")
	}
	return 1.0 / decimal, nil
}

package normalizer

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/betmath"
	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/models"
)

// ErrNormalization marks candidate-level failures. Callers can errors.Is
// against it; a failed candidate never aborts its batch.
var ErrNormalization = errors.New("normalization error")

// Normalizer maps raw source candidates into priced Opportunity records
type Normalizer struct {
	kellyMultiplier float64
	kellyCap        float64
	defaultTTL      time.Duration
}

// New creates a normalizer with the given sizing parameters.
// defaultTTL is applied when a candidate carries no expiry of its own.
func New(kellyMultiplier, kellyCap float64, defaultTTL time.Duration) *Normalizer {
	return &Normalizer{
		kellyMultiplier: kellyMultiplier,
		kellyCap:        kellyCap,
		defaultTTL:      defaultTTL,
	}
}

// Normalize converts one raw candidate from the named source into an
// Opportunity, computing expected value, the applied Kelly fraction, and the
// risk classification.
func (n *Normalizer) Normalize(raw models.RawCandidate, source string, oppType models.OpportunityType) (*models.Opportunity, error) {
	if raw.ID == "" {
		return nil, fmt.Errorf("%w: candidate from %s missing id", ErrNormalization, source)
	}
	if raw.SubjectLabel == "" {
		return nil, fmt.Errorf("%w: candidate %s missing subject label", ErrNormalization, raw.ID)
	}
	if raw.Confidence < 0 || raw.Confidence > 1 {
		return nil, fmt.Errorf("%w: candidate %s confidence %.4f outside [0,1]", ErrNormalization, raw.ID, raw.Confidence)
	}

	odds := raw.DecimalOdds
	if odds == 0 && raw.AmericanOdds != 0 {
		converted, err := betmath.AmericanToDecimal(raw.AmericanOdds)
		if err != nil {
			return nil, fmt.Errorf("%w: candidate %s: %v", ErrNormalization, raw.ID, err)
		}
		odds = converted
	}
	if odds <= 1.0 {
		return nil, fmt.Errorf("%w: candidate %s odds %.4f must exceed 1.0", ErrNormalization, raw.ID, odds)
	}

	ev, err := betmath.ExpectedValue(raw.Confidence, odds)
	if err != nil {
		return nil, fmt.Errorf("%w: candidate %s: %v", ErrNormalization, raw.ID, err)
	}

	rawKelly, err := betmath.RawKelly(raw.Confidence, odds)
	if err != nil {
		return nil, fmt.Errorf("%w: candidate %s: %v", ErrNormalization, raw.ID, err)
	}

	kellyFraction := betmath.FractionalKelly(rawKelly, n.kellyMultiplier, n.kellyCap)

	now := time.Now()
	expiresAt := raw.ExpiresAt
	if expiresAt.IsZero() || !expiresAt.After(now) {
		expiresAt = now.Add(n.defaultTTL)
	}

	return &models.Opportunity{
		ID:            raw.ID,
		Type:          oppType,
		Source:        source,
		SportKey:      raw.SportKey,
		SubjectLabel:  raw.SubjectLabel,
		Line:          raw.Line,
		Odds:          odds,
		Confidence:    raw.Confidence,
		ExpectedValue: ev,
		KellyFraction: kellyFraction,
		RiskLevel:     betmath.ClassifyRisk(raw.Confidence, kellyFraction),
		CreatedAt:     now,
		ExpiresAt:     expiresAt,
		Analysis: models.Analysis{
			Trends:      raw.Trends,
			Signals:     raw.Signals,
			RiskFactors: raw.RiskFactors,
		},
	}, nil
}

// NormalizeBatch normalizes a candidate list, dropping and logging failures.
// The returned slice contains only the candidates that normalized cleanly.
func (n *Normalizer) NormalizeBatch(raws []models.RawCandidate, source string, oppType models.OpportunityType) []models.Opportunity {
	opportunities := make([]models.Opportunity, 0, len(raws))

	for _, raw := range raws {
		opp, err := n.Normalize(raw, source, oppType)
		if err != nil {
			log.Printf("[Normalizer] dropping candidate: %v", err)
			continue
		}
		opportunities = append(opportunities, *opp)
	}

	return opportunities
}

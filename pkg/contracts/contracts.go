package contracts

import (
	"context"

	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/models"
)

// SourceAdapter fetches raw candidates from one upstream feed.
// Adapters fail with a distinguishable error; a failure never aborts sibling
// sources within a scan cycle.
type SourceAdapter interface {
	// Key returns the unique identifier for this source (e.g., "value_bet_feed")
	Key() string

	// Type returns the opportunity type this source produces
	Type() models.OpportunityType

	// FetchCandidates retrieves the source's current candidate list
	FetchCandidates(ctx context.Context) ([]models.RawCandidate, error)
}

// BankrollProvider supplies the live account balance for stake sizing.
// When no provider is wired, the engine sizes against the fixed reference
// bankroll from RiskConfig.
type BankrollProvider interface {
	CurrentBalance(ctx context.Context) (float64, error)
}

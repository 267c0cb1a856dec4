package sources

import (
	"context"
	"fmt"

	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/models"
)

// candidateResponse is the common envelope the fortuna feeds deliver
type candidateResponse struct {
	Candidates []models.RawCandidate `json:"candidates"`
}

// ValueBetAdapter fetches +EV candidates from the value-bet feed
type ValueBetAdapter struct {
	client  *FeedClient
	baseURL string
}

// NewValueBetAdapter creates a value-bet feed adapter
func NewValueBetAdapter(client *FeedClient, baseURL string) *ValueBetAdapter {
	return &ValueBetAdapter{client: client, baseURL: baseURL}
}

// Key returns the source identifier
func (a *ValueBetAdapter) Key() string { return "value_bet_feed" }

// Type returns the opportunity type this source produces
func (a *ValueBetAdapter) Type() models.OpportunityType { return models.OpportunityTypeValueBet }

// FetchCandidates retrieves the current value-bet candidates
func (a *ValueBetAdapter) FetchCandidates(ctx context.Context) ([]models.RawCandidate, error) {
	var resp candidateResponse
	url := fmt.Sprintf("%s/api/v1/value-bets", a.baseURL)
	if err := a.client.fetchJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAdapter, a.Key(), err)
	}
	return resp.Candidates, nil
}

// ArbitrageAdapter fetches cross-book discrepancies from the arbitrage feed
type ArbitrageAdapter struct {
	client  *FeedClient
	baseURL string
}

// NewArbitrageAdapter creates an arbitrage feed adapter
func NewArbitrageAdapter(client *FeedClient, baseURL string) *ArbitrageAdapter {
	return &ArbitrageAdapter{client: client, baseURL: baseURL}
}

// Key returns the source identifier
func (a *ArbitrageAdapter) Key() string { return "arbitrage_feed" }

// Type returns the opportunity type this source produces
func (a *ArbitrageAdapter) Type() models.OpportunityType { return models.OpportunityTypeArbitrage }

// FetchCandidates retrieves the current arbitrage candidates
func (a *ArbitrageAdapter) FetchCandidates(ctx context.Context) ([]models.RawCandidate, error) {
	var resp candidateResponse
	url := fmt.Sprintf("%s/api/v1/arbitrage", a.baseURL)
	if err := a.client.fetchJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAdapter, a.Key(), err)
	}
	return resp.Candidates, nil
}

// PropAdapter fetches player-prop candidates. The prop feed prices in
// American odds; the normalizer converts before pricing.
type PropAdapter struct {
	client  *FeedClient
	baseURL string
}

// NewPropAdapter creates a prop-market feed adapter
func NewPropAdapter(client *FeedClient, baseURL string) *PropAdapter {
	return &PropAdapter{client: client, baseURL: baseURL}
}

// Key returns the source identifier
func (a *PropAdapter) Key() string { return "prop_feed" }

// Type returns the opportunity type this source produces
func (a *PropAdapter) Type() models.OpportunityType { return models.OpportunityTypeProp }

// FetchCandidates retrieves the current prop candidates
func (a *PropAdapter) FetchCandidates(ctx context.Context) ([]models.RawCandidate, error) {
	var resp candidateResponse
	url := fmt.Sprintf("%s/api/v1/props", a.baseURL)
	if err := a.client.fetchJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAdapter, a.Key(), err)
	}
	return resp.Candidates, nil
}

package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/cache"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/events"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/ledger"
	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/models"
)

// PlaceBetResult is the synchronous outcome of a bet placement request.
// Constraint violations surface here as a reason string, never as a panic or
// an opaque error.
type PlaceBetResult struct {
	Success    bool   `json:"success"`
	PositionID string `json:"position_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Engine is the decision engine's service facade. It owns the opportunity
// cache and position ledger as injected state - constructed once at process
// start, no ambient globals.
type Engine struct {
	placeMu  sync.Mutex // Serializes placements: exposure check and promote are one step
	cache    *cache.OpportunityCache
	ledger   *ledger.Ledger
	bus      *events.Bus
	riskCfg  models.RiskConfig
	bankroll contracts.BankrollProvider
}

// New wires an engine around its owned state. bankroll may be nil: exposure
// checks then run against the reference bankroll.
func New(
	opportunityCache *cache.OpportunityCache,
	positionLedger *ledger.Ledger,
	bus *events.Bus,
	riskCfg models.RiskConfig,
	bankroll contracts.BankrollProvider,
) *Engine {
	return &Engine{
		cache:    opportunityCache,
		ledger:   positionLedger,
		bus:      bus,
		riskCfg:  riskCfg,
		bankroll: bankroll,
	}
}

// GetActiveOpportunities returns the live opportunity set, best score first
func (e *Engine) GetActiveOpportunities() []models.Opportunity {
	snapshot := e.cache.Snapshot()
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Score() > snapshot[j].Score()
	})
	return snapshot
}

// GetPerformanceMetrics returns the ledger's rolling performance metrics
func (e *Engine) GetPerformanceMetrics() models.PerformanceMetrics {
	return e.ledger.Metrics()
}

// Positions returns all ledger positions in open order
func (e *Engine) Positions() []models.Position {
	return e.ledger.Positions()
}

// PlaceBet commits a stake against a cached opportunity. On success the
// opportunity leaves the cache, so the same id can never back two positions.
//
// Checks, in order: opportunity exists; amount positive and within the single
// bet cap; confidence above the floor; total open stake within the exposure
// cap. Any violation rejects the whole request - there is no partial
// placement. Concurrent placements serialize, so two requests can never both
// pass the exposure check before either commits.
func (e *Engine) PlaceBet(ctx context.Context, opportunityID string, amount float64) PlaceBetResult {
	e.placeMu.Lock()
	defer e.placeMu.Unlock()

	opp, ok := e.cache.Get(opportunityID)
	if !ok {
		return reject("opportunity %s is not active", opportunityID)
	}

	if amount <= 0 {
		return reject("stake must be positive, got %.2f", amount)
	}
	if amount > e.riskCfg.MaxSingleBet {
		return reject("stake %.2f exceeds max single bet %.2f", amount, e.riskCfg.MaxSingleBet)
	}
	if opp.Confidence < e.riskCfg.MinConfidence {
		return reject("confidence %.2f below floor %.2f", opp.Confidence, e.riskCfg.MinConfidence)
	}

	exposureCap := e.riskCfg.MaxTotalExposure * e.currentBankroll(ctx)
	if open := e.ledger.OpenStake(); open+amount > exposureCap {
		return reject("stake %.2f would push open exposure past %.2f (open %.2f)", amount, exposureCap, open)
	}

	// Promote: the removal guarantees at most one position per opportunity id
	opp, ok = e.cache.Remove(opportunityID)
	if !ok {
		return reject("opportunity %s is not active", opportunityID)
	}

	position := e.ledger.OpenPosition(opp, amount, sideOf(opp))

	e.bus.Publish(models.EventBetPlaced, models.BetPlacedEvent{
		Position:    position,
		Opportunity: opp,
	})

	log.Printf("[Engine] bet placed: %s on %s, stake %.2f", position.ID, opp.SubjectLabel, amount)
	return PlaceBetResult{Success: true, PositionID: position.ID}
}

// ClosePosition settles a position at the given close price and publishes the
// refreshed metrics
func (e *Engine) ClosePosition(id string, closePrice float64) (models.Position, error) {
	position, err := e.ledger.ClosePosition(id, closePrice)
	if err != nil {
		return models.Position{}, err
	}

	e.bus.Publish(models.EventPositionClosed, models.PositionClosedEvent{
		Position: position,
		Metrics:  e.ledger.Metrics(),
	})

	log.Printf("[Engine] position closed: %s, pnl %.2f", position.ID, *position.Pnl)
	return position, nil
}

// RecordClosingLine attaches the market close to a position for CLV tracking
func (e *Engine) RecordClosingLine(id string, closingOdds float64) error {
	return e.ledger.RecordClosingLine(id, closingOdds)
}

// currentBankroll returns the live balance, falling back to the reference
// bankroll when no provider is wired or it fails
func (e *Engine) currentBankroll(ctx context.Context) float64 {
	if e.bankroll == nil {
		return e.riskCfg.BaseBankroll
	}
	balance, err := e.bankroll.CurrentBalance(ctx)
	if err != nil || balance <= 0 {
		return e.riskCfg.BaseBankroll
	}
	return balance
}

// sideOf infers the backed side from the subject label; anything not marked
// under is treated as over
func sideOf(opp models.Opportunity) models.PositionSide {
	if strings.Contains(strings.ToLower(opp.SubjectLabel), "under") {
		return models.SideUnder
	}
	return models.SideOver
}

func reject(format string, args ...interface{}) PlaceBetResult {
	return PlaceBetResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/models"
	"github.com/google/uuid"
)

// ErrLedgerState marks rejected ledger transitions (closing a non-open
// position, touching an unknown id). The ledger is left unchanged.
var ErrLedgerState = errors.New("ledger state error")

// Ledger is the append-only record of committed positions. Positions
// transition status but are never deleted; performance metrics are recomputed
// from closed positions on every settlement.
type Ledger struct {
	mu        sync.Mutex
	positions []models.Position
	index     map[string]int // position id -> slice index
	metrics   models.PerformanceMetrics
}

// New creates an empty ledger
func New() *Ledger {
	return &Ledger{
		index: make(map[string]int),
	}
}

// OpenPosition commits a stake against an opportunity. The position opens
// immediately with the opportunity's line as its entry price.
func (l *Ledger) OpenPosition(opp models.Opportunity, stake float64, side models.PositionSide) models.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	position := models.Position{
		ID:            uuid.New().String(),
		OpportunityID: opp.ID,
		Stake:         stake,
		EntryPrice:    opp.Line,
		EntryOdds:     opp.Odds,
		Side:          side,
		Status:        models.PositionStatusOpen,
		OpenedAt:      time.Now(),
	}

	l.index[position.ID] = len(l.positions)
	l.positions = append(l.positions, position)
	return position
}

// ClosePosition settles an open position at the given close price and
// recomputes performance metrics.
//
// Pnl: stake × (closePrice - entryPrice) / entryPrice, signed positive for an
// "over" side and negative otherwise.
func (l *Ledger) ClosePosition(id string, closePrice float64) (models.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.index[id]
	if !ok {
		return models.Position{}, fmt.Errorf("%w: unknown position %s", ErrLedgerState, id)
	}

	position := l.positions[idx]
	if position.Status != models.PositionStatusOpen {
		return models.Position{}, fmt.Errorf("%w: position %s is %s, not open", ErrLedgerState, id, position.Status)
	}
	if position.EntryPrice == 0 {
		return models.Position{}, fmt.Errorf("%w: position %s has zero entry price", ErrLedgerState, id)
	}

	direction := 1.0
	if position.Side != models.SideOver {
		direction = -1.0
	}
	priceChangeRatio := (closePrice - position.EntryPrice) / position.EntryPrice
	pnl := position.Stake * priceChangeRatio * direction

	now := time.Now()
	position.Status = models.PositionStatusClosed
	position.Pnl = &pnl
	position.ClosePrice = &closePrice
	position.ClosedAt = &now

	l.positions[idx] = position
	l.metrics = computeMetrics(l.positions)
	return position, nil
}

// RecordClosingLine attaches the market's final odds to a position so it
// participates in the CLV average. Metrics refresh immediately.
func (l *Ledger) RecordClosingLine(id string, closingOdds float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.index[id]
	if !ok {
		return fmt.Errorf("%w: unknown position %s", ErrLedgerState, id)
	}

	l.positions[idx].ClosingOdds = &closingOdds
	l.metrics = computeMetrics(l.positions)
	return nil
}

// Get returns one position by id
func (l *Ledger) Get(id string) (models.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.index[id]
	if !ok {
		return models.Position{}, false
	}
	return l.positions[idx], true
}

// Positions returns a copy of all positions in open order
func (l *Ledger) Positions() []models.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.Position, len(l.positions))
	copy(out, l.positions)
	return out
}

// OpenStake returns the total stake currently committed to open positions
func (l *Ledger) OpenStake() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0.0
	for _, p := range l.positions {
		if p.Status == models.PositionStatusOpen {
			total += p.Stake
		}
	}
	return total
}

// Metrics returns the current rolling performance metrics
func (l *Ledger) Metrics() models.PerformanceMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.metrics
}

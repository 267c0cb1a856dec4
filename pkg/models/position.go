package models

import "time"

// PositionStatus tracks a position through its lifecycle
type PositionStatus string

const (
	PositionStatusPending PositionStatus = "pending"
	PositionStatusOpen    PositionStatus = "open"
	PositionStatusClosed  PositionStatus = "closed"
)

// PositionSide marks which direction of the line the stake backs
type PositionSide string

const (
	SideOver  PositionSide = "over"
	SideUnder PositionSide = "under"
)

// Position is a committed stake on an opportunity. Positions are append-only:
// they transition status but are never deleted.
// Invariant: Pnl is set iff Status is closed.
type Position struct {
	ID            string         `json:"id"`
	OpportunityID string         `json:"opportunity_id"`
	Stake         float64        `json:"stake"`
	EntryPrice    float64        `json:"entry_price"`
	EntryOdds     float64        `json:"entry_odds"`
	Side          PositionSide   `json:"side"`
	Status        PositionStatus `json:"status"`
	Pnl           *float64       `json:"pnl,omitempty"`
	ClosePrice    *float64       `json:"close_price,omitempty"`
	ClosingOdds   *float64       `json:"closing_odds,omitempty"` // Recorded market close for CLV
	OpenedAt      time.Time      `json:"opened_at"`
	ClosedAt      *time.Time     `json:"closed_at,omitempty"`
}

// PerformanceMetrics aggregates realized results over closed positions.
// Derived state only: recomputed on settlement, never edited directly.
type PerformanceMetrics struct {
	TotalBets   int     `json:"total_bets"`
	WinningBets int     `json:"winning_bets"`
	LosingBets  int     `json:"losing_bets"`
	TotalStake  float64 `json:"total_stake"`
	TotalPnl    float64 `json:"total_pnl"`
	ROI         float64 `json:"roi"`
	WinRate     float64 `json:"win_rate"`
	MaxDrawdown float64 `json:"max_drawdown"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	CLVAverage  float64 `json:"clv_average"` // Mean closing-line value, percent
}

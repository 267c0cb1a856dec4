package ledger

import (
	"math"

	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/betmath"
	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/models"
)

// dailyRiskFreeRate is the per-day risk-free return subtracted from the mean
// per-position return in the Sharpe ratio (about 3.7% annualized).
const dailyRiskFreeRate = 0.0001

// computeMetrics derives PerformanceMetrics from the full position history.
// Only closed positions contribute to bet counts, pnl, drawdown, and Sharpe;
// CLV averages over every position carrying a recorded closing line.
func computeMetrics(positions []models.Position) models.PerformanceMetrics {
	var m models.PerformanceMetrics

	var returns []float64
	balance := 0.0
	peak := 0.0

	for _, p := range positions {
		if p.Status != models.PositionStatusClosed || p.Pnl == nil {
			continue
		}

		pnl := *p.Pnl
		m.TotalBets++
		m.TotalStake += p.Stake
		m.TotalPnl += pnl

		if pnl > 0 {
			m.WinningBets++
		} else if pnl < 0 {
			m.LosingBets++
		}

		if p.Stake > 0 {
			returns = append(returns, pnl/p.Stake)
		}

		// Max drawdown over the running balance, peak to trough
		balance += pnl
		if balance > peak {
			peak = balance
		}
		if drawdown := peak - balance; drawdown > m.MaxDrawdown {
			m.MaxDrawdown = drawdown
		}
	}

	if m.TotalBets > 0 {
		m.WinRate = float64(m.WinningBets) / float64(m.TotalBets)
	}
	if m.TotalStake > 0 {
		m.ROI = m.TotalPnl / m.TotalStake
	}
	m.SharpeRatio = sharpeRatio(returns)
	m.CLVAverage = clvAverage(positions)

	return m
}

// sharpeRatio computes (meanReturn - dailyRiskFreeRate) / stdDevReturn over
// the per-position return series. Fewer than two returns, or a flat series,
// yields zero.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return 0
	}

	return (mean - dailyRiskFreeRate) / stdDev
}

// clvAverage means the closing-line value across positions that have a
// recorded closing line
func clvAverage(positions []models.Position) float64 {
	sum := 0.0
	count := 0

	for _, p := range positions {
		if p.ClosingOdds == nil || p.EntryOdds <= 0 {
			continue
		}
		clv, err := betmath.ClosingLineValue(p.EntryOdds, *p.ClosingOdds)
		if err != nil {
			continue
		}
		sum += clv
		count++
	}

	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

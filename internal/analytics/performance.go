// Package analytics computes risk/return statistics from an equity-curve
// history. It is a pure computation over an immutable snapshot+trade window
// and is safe to run concurrently for distinct windows.
package analytics

import (
	"errors"
	"math"
	"sort"

	"golang-backtest/internal/dto"
	"golang-backtest/pkg/common"
	"golang-backtest/pkg/utils"
)

// ErrInsufficientData is returned when the window holds fewer than two
// snapshots; a single point cannot produce a rate of return.
var ErrInsufficientData = errors.New("insufficient data: need at least 2 snapshots")

// profitFactorUnbounded stands in for an infinite profit factor (wins with
// zero losses). A finite sentinel keeps the value JSON- and SQL-safe.
const profitFactorUnbounded = 999.0

// Calculate derives PerformanceMetrics from an ordered snapshot series and
// the filled trades of the same window. The computation is deterministic:
// identical input yields bit-identical metrics.
func Calculate(snapshots []dto.DailySnapshot, trades []dto.BacktestTrade) (*dto.PerformanceMetrics, error) {
	if len(snapshots) < 2 {
		return nil, ErrInsufficientData
	}

	first, last := snapshots[0], snapshots[len(snapshots)-1]
	returns := dailyReturns(snapshots)

	m := &dto.PerformanceMetrics{
		PeriodStart: first.Timestamp,
		PeriodEnd:   last.Timestamp,
	}

	m.TotalReturn = last.TotalValue - first.TotalValue
	if first.TotalValue != 0 {
		m.TotalReturnPercent = m.TotalReturn / first.TotalValue * 100
	}

	days := utils.DaysBetween(first.Timestamp, last.Timestamp)
	m.AnnualizedReturn = math.Pow(1+m.TotalReturnPercent/100, 365/days) - 1

	m.Volatility = stddev(returns) * math.Sqrt(common.TradingDaysPerYear)
	m.DownsideDeviation = stddev(negatives(returns)) * math.Sqrt(common.TradingDaysPerYear)

	m.MaxDrawdown, m.MaxDrawdownPercent = maxDrawdown(snapshots)

	excess := m.AnnualizedReturn - common.RiskFreeRate
	if m.Volatility != 0 {
		m.SharpeRatio = excess / m.Volatility
	}
	if m.DownsideDeviation != 0 {
		m.SortinoRatio = excess / m.DownsideDeviation
	}
	if m.MaxDrawdownPercent != 0 {
		m.CalmarRatio = m.AnnualizedReturn * 100 / m.MaxDrawdownPercent
	}

	m.VaR95, m.CVaR95 = valueAtRisk(returns, 0.05)
	m.VaR99, m.CVaR99 = valueAtRisk(returns, 0.01)

	tradeStats(m, trades)

	return m, nil
}

// dailyReturns yields the fractional day-over-day returns, skipping any pair
// whose prior value is zero.
func dailyReturns(snapshots []dto.DailySnapshot) []float64 {
	returns := make([]float64, 0, len(snapshots)-1)
	for i := 1; i < len(snapshots); i++ {
		prev := snapshots[i-1].TotalValue
		if prev == 0 {
			continue
		}
		returns = append(returns, (snapshots[i].TotalValue-prev)/prev)
	}
	return returns
}

func negatives(returns []float64) []float64 {
	var out []float64
	for _, r := range returns {
		if r < 0 {
			out = append(out, r)
		}
	}
	return out
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)))
}

// maxDrawdown tracks the running peak of the value series and reports the
// deepest dollar decline plus its percent of the peak it fell from.
func maxDrawdown(snapshots []dto.DailySnapshot) (maxDD, maxDDPercent float64) {
	peak := snapshots[0].TotalValue
	for _, s := range snapshots {
		if s.TotalValue > peak {
			peak = s.TotalValue
		}
		dd := peak - s.TotalValue
		if dd > maxDD {
			maxDD = dd
			if peak != 0 {
				maxDDPercent = dd / peak * 100
			}
		}
	}
	return maxDD, maxDDPercent
}

// valueAtRisk reports the empirical VaR at the given tail probability plus
// the conditional VaR (mean of the cutoff-count worst returns).
func valueAtRisk(returns []float64, tail float64) (vaR, cVaR float64) {
	n := len(returns)
	if n < 2 {
		return 0, 0
	}

	sorted := make([]float64, n)
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor(float64(n) * tail))
	vaR = sorted[idx]

	if idx == 0 {
		return vaR, 0
	}
	var sum float64
	for _, r := range sorted[:idx] {
		sum += r
	}
	return vaR, sum / float64(idx)
}

// tradeStats aggregates realized P&L over closing trades; opening buys carry
// no P&L and are not counted.
func tradeStats(m *dto.PerformanceMetrics, trades []dto.BacktestTrade) {
	var totalWin, totalLoss, totalPnL float64
	for _, t := range trades {
		if t.PnL == nil {
			continue
		}
		m.TotalTrades++
		totalPnL += *t.PnL
		switch {
		case *t.PnL > 0:
			m.WinningTrades++
			totalWin += *t.PnL
		case *t.PnL < 0:
			m.LosingTrades++
			totalLoss += -*t.PnL
		}
	}

	m.TotalRealizedPnL = totalPnL
	if m.TotalTrades == 0 {
		return
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	m.AverageTrade = totalPnL / float64(m.TotalTrades)

	switch {
	case totalLoss > 0:
		m.ProfitFactor = totalWin / totalLoss
	case totalWin > 0:
		m.ProfitFactor = profitFactorUnbounded
	}
}

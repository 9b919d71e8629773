package engine

import (
	"math"

	"backlab/internal/domain"
)

// Annualization constants for the Sharpe ratio: a 2% risk-free rate spread
// over 252 trading days.
const (
	riskFreeRate = 0.02
	tradingDays  = 252
)

// winRatePct is the percentage of recorded trades with positive realized
// profit. Entry trades carry zero profit and count against the rate, which
// matches how the results are reported.
func winRatePct(trades []domain.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, tr := range trades {
		if tr.PnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades)) * 100
}

// sharpeRatio computes the annualized Sharpe ratio from per-bar equity
// returns. Flat curves (zero return deviation) yield 0.
func sharpeRatio(equity []domain.EquityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (equity[i].Value-prev)/prev)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))

	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return 0
	}
	return (mean - riskFreeRate/tradingDays) / stddev * math.Sqrt(tradingDays)
}

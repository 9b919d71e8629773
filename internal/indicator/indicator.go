// Package indicator computes technical indicators over a closing-price
// prefix. Every function is pure: each call recomputes from scratch over the
// slice it is given, so results depend only on the input and never on state
// carried between bars. That makes per-bar evaluation O(n) per indicator (and
// worse for MACD), a deliberate simplicity tradeoff.
package indicator

import (
	"fmt"
	"strings"

	"backlab/internal/domain"
)

// Default periods applied when a spec leaves them zero.
const (
	DefaultRSIPeriod  = 14
	DefaultEMAPeriod  = 20
	DefaultSMAPeriod  = 20
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
)

// RSI returns the relative strength index over the trailing period changes
// of prices. With fewer than period+1 prices there is nothing to average,
// so the neutral value 50 is returned. A zero average loss returns 100.
func RSI(prices []float64, period int) float64 {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	if len(prices) < period+1 {
		return 50
	}

	var gains, losses float64
	for i := len(prices) - period; i < len(prices); i++ {
		diff := prices[i] - prices[i-1]
		if diff >= 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// EMA returns the exponential moving average of prices, seeded with the
// first price and smoothed with multiplier 2/(period+1). Slices shorter
// than period return the most recent raw price unchanged.
func EMA(prices []float64, period int) float64 {
	if period <= 0 {
		period = DefaultEMAPeriod
	}
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		return prices[len(prices)-1]
	}

	k := 2 / float64(period+1)
	ema := prices[0]
	for _, p := range prices[1:] {
		ema = (p-ema)*k + ema
	}
	return ema
}

// SMA returns the arithmetic mean of the trailing period prices. Slices
// shorter than period return the most recent raw price unchanged.
func SMA(prices []float64, period int) float64 {
	if period <= 0 {
		period = DefaultSMAPeriod
	}
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		return prices[len(prices)-1]
	}

	var sum float64
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period)
}

// MACD returns the MACD line and its signal line. The MACD series is built
// by evaluating EMA(fast)-EMA(slow) at every index from slow-1 onward, with
// both EMAs recomputed over the growing prefix at each step; the signal is
// an EMA over that series. The per-prefix recompute is quadratic but keeps
// every value exact. Inputs shorter than slow return (0, 0).
func MACD(prices []float64, fast, slow, signal int) (macd, signalLine float64) {
	if fast <= 0 {
		fast = DefaultMACDFast
	}
	if slow <= 0 {
		slow = DefaultMACDSlow
	}
	if signal <= 0 {
		signal = DefaultMACDSignal
	}
	if len(prices) < slow {
		return 0, 0
	}

	series := make([]float64, 0, len(prices)-slow+1)
	for i := slow - 1; i < len(prices); i++ {
		prefix := prices[:i+1]
		series = append(series, EMA(prefix, fast)-EMA(prefix, slow))
	}

	return series[len(series)-1], EMA(series, signal)
}

// Calculate evaluates every spec against the price prefix and returns the
// current values keyed by lower-cased indicator name. MACD contributes two
// entries: "<name>" for the MACD line and "<name>_signal" for its signal
// line. Unknown indicator names produce an error.
func Calculate(specs []domain.IndicatorSpec, prices []float64) (map[string]float64, error) {
	values := make(map[string]float64, len(specs))
	for _, spec := range specs {
		name := strings.ToLower(spec.Name)
		switch name {
		case "rsi":
			values[name] = RSI(prices, spec.Period)
		case "ema":
			values[name] = EMA(prices, spec.Period)
		case "sma":
			values[name] = SMA(prices, spec.Period)
		case "macd":
			macd, sig := MACD(prices, spec.Fast, spec.Slow, spec.Signal)
			values[name] = macd
			values[name+"_signal"] = sig
		default:
			return nil, fmt.Errorf("unknown indicator %q", spec.Name)
		}
	}
	return values, nil
}

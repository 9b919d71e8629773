// Package signal evaluates strategy entry and exit conditions against the
// indicator values computed for the current bar.
package signal

import (
	"fmt"
	"strings"

	"backlab/internal/domain"
)

// resolve returns the left-hand value of a condition: the named indicator's
// current value, or the current price when the name matches no computed
// indicator.
func resolve(cond domain.Condition, values map[string]float64, price float64) float64 {
	if v, ok := values[strings.ToLower(cond.Indicator)]; ok {
		return v
	}
	return price
}

// threshold returns the right-hand value of a condition. Indicator
// references that match nothing resolve to 0.
func threshold(cond domain.Condition, values map[string]float64) (float64, error) {
	switch cond.Threshold.Kind {
	case domain.ThresholdValue:
		return cond.Threshold.Value, nil
	case domain.ThresholdRef:
		return values[strings.ToLower(cond.Threshold.Ref)], nil
	default:
		return 0, fmt.Errorf("condition on %q: unknown threshold kind %q", cond.Indicator, cond.Threshold.Kind)
	}
}

// compare applies the condition's operator. The crosses_above and
// crosses_below operators evaluate as plain level comparisons; existing
// strategies depend on the level semantics.
func compare(op domain.Operator, left, right float64) (bool, error) {
	switch op {
	case domain.OpGT, domain.OpCrossesAbove:
		return left > right, nil
	case domain.OpLT, domain.OpCrossesBelow:
		return left < right, nil
	case domain.OpGE:
		return left >= right, nil
	case domain.OpLE:
		return left <= right, nil
	case domain.OpEQ:
		return left == right, nil
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

// evaluate resolves and compares a single condition.
func evaluate(cond domain.Condition, values map[string]float64, price float64) (bool, error) {
	right, err := threshold(cond, values)
	if err != nil {
		return false, err
	}
	return compare(cond.Operator, resolve(cond, values, price), right)
}

// ShouldEnter reports whether all entry conditions hold (logical AND). A
// strategy without entry conditions never enters. A malformed condition
// makes the whole evaluation false and returns the error so the caller can
// log it; no-signal is the graceful-degradation answer.
func ShouldEnter(strategy domain.Strategy, values map[string]float64, price float64) (bool, error) {
	if len(strategy.EntryConditions) == 0 {
		return false, nil
	}
	for _, cond := range strategy.EntryConditions {
		ok, err := evaluate(cond, values, price)
		if err != nil {
			return false, fmt.Errorf("entry condition: %w", err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// ShouldExit reports whether the open position should be closed. Stop-loss
// and take-profit are checked first as absolute triggers on the unrealized
// pnl percentage; otherwise any exit condition holding (logical OR) exits.
func ShouldExit(strategy domain.Strategy, values map[string]float64, price, entryPrice float64) (bool, error) {
	if entryPrice > 0 {
		pnlPct := (price - entryPrice) / entryPrice * 100
		if strategy.Risk.StopLossPct > 0 && pnlPct <= -strategy.Risk.StopLossPct {
			return true, nil
		}
		if strategy.Risk.TakeProfitPct > 0 && pnlPct >= strategy.Risk.TakeProfitPct {
			return true, nil
		}
	}

	for _, cond := range strategy.ExitConditions {
		ok, err := evaluate(cond, values, price)
		if err != nil {
			return false, fmt.Errorf("exit condition: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

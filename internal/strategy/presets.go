package strategy

import "backlab/internal/domain"

// Builtins returns a registry populated with the strategy presets that ship
// with backlab.
func Builtins() *Registry {
	r := NewRegistry()
	r.Register(RSIReversion())
	r.Register(SMATrend())
	r.Register(EMAMomentum())
	r.Register(MACDCross())
	return r
}

// RSIReversion buys oversold and sells overbought.
func RSIReversion() domain.Strategy {
	return domain.Strategy{
		Name:      "rsi-reversion",
		RiskLevel: domain.RiskMedium,
		Indicators: []domain.IndicatorSpec{
			{Name: "rsi", Period: 14},
		},
		EntryConditions: []domain.Condition{
			{
				Indicator: "rsi",
				Operator:  domain.OpLT,
				Threshold: domain.Threshold{Kind: domain.ThresholdValue, Value: 30},
			},
		},
		ExitConditions: []domain.Condition{
			{
				Indicator: "rsi",
				Operator:  domain.OpGT,
				Threshold: domain.Threshold{Kind: domain.ThresholdValue, Value: 70},
			},
		},
		Risk: domain.RiskParams{StopLossPct: 3, TakeProfitPct: 6},
	}
}

// SMATrend buys while price trades above its moving average and exits when
// it falls back below.
func SMATrend() domain.Strategy {
	return domain.Strategy{
		Name:      "sma-trend",
		RiskLevel: domain.RiskLow,
		Indicators: []domain.IndicatorSpec{
			{Name: "sma", Period: 20},
		},
		EntryConditions: []domain.Condition{
			{
				Indicator: "price",
				Operator:  domain.OpGT,
				Threshold: domain.Threshold{Kind: domain.ThresholdRef, Ref: "sma"},
			},
		},
		ExitConditions: []domain.Condition{
			{
				Indicator: "price",
				Operator:  domain.OpLT,
				Threshold: domain.Threshold{Kind: domain.ThresholdRef, Ref: "sma"},
			},
		},
		Risk: domain.RiskParams{StopLossPct: 4, TakeProfitPct: 8},
	}
}

// EMAMomentum rides price strength above a fast EMA.
func EMAMomentum() domain.Strategy {
	return domain.Strategy{
		Name:      "ema-momentum",
		RiskLevel: domain.RiskHigh,
		Indicators: []domain.IndicatorSpec{
			{Name: "ema", Period: 12},
		},
		EntryConditions: []domain.Condition{
			{
				Indicator: "price",
				Operator:  domain.OpCrossesAbove,
				Threshold: domain.Threshold{Kind: domain.ThresholdRef, Ref: "ema"},
			},
		},
		ExitConditions: []domain.Condition{
			{
				Indicator: "price",
				Operator:  domain.OpCrossesBelow,
				Threshold: domain.Threshold{Kind: domain.ThresholdRef, Ref: "ema"},
			},
		},
		Risk: domain.RiskParams{StopLossPct: 2, TakeProfitPct: 5},
	}
}

// MACDCross enters when the MACD line moves above its signal line and exits
// on the opposite cross.
func MACDCross() domain.Strategy {
	return domain.Strategy{
		Name:      "macd-cross",
		RiskLevel: domain.RiskMedium,
		Indicators: []domain.IndicatorSpec{
			{Name: "macd", Fast: 12, Slow: 26, Signal: 9},
		},
		EntryConditions: []domain.Condition{
			{
				Indicator: "macd",
				Operator:  domain.OpCrossesAbove,
				Threshold: domain.Threshold{Kind: domain.ThresholdRef, Ref: "macd_signal"},
			},
		},
		ExitConditions: []domain.Condition{
			{
				Indicator: "macd",
				Operator:  domain.OpCrossesBelow,
				Threshold: domain.Threshold{Kind: domain.ThresholdRef, Ref: "macd_signal"},
			},
		},
		Risk: domain.RiskParams{StopLossPct: 3, TakeProfitPct: 7},
	}
}

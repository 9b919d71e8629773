// Package domain defines the core data model shared across backlab:
// OHLCV bars, strategy configuration, trades, and backtest results.
package domain

import "time"

// Bar is one OHLCV candle for a fixed time interval.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// DataSource selects where a backtest gets its bars from.
type DataSource string

const (
	SourceSynthetic DataSource = "synthetic"
	SourceExchange  DataSource = "exchange"
	SourceFile      DataSource = "file"
)

// Scenario shapes synthetic price generation.
type Scenario string

const (
	ScenarioBull     Scenario = "bull"
	ScenarioBear     Scenario = "bear"
	ScenarioSideways Scenario = "sideways"
	ScenarioVolatile Scenario = "volatile"
)

// RiskLevel determines the fraction of equity committed per position.
type RiskLevel string

const (
	RiskUltraLow  RiskLevel = "Ultra Low"
	RiskLow       RiskLevel = "Low"
	RiskMedium    RiskLevel = "Medium"
	RiskHigh      RiskLevel = "High"
	RiskUltraHigh RiskLevel = "Ultra High"
	RiskExtreme   RiskLevel = "Extreme"
	RiskGodMode   RiskLevel = "God Mode"
)

// Multiplier returns the per-position equity fraction for the risk level.
// Unknown levels fall back to Medium.
func (r RiskLevel) Multiplier() float64 {
	switch r {
	case RiskUltraLow:
		return 0.01
	case RiskLow:
		return 0.02
	case RiskMedium:
		return 0.03
	case RiskHigh:
		return 0.05
	case RiskUltraHigh:
		return 0.07
	case RiskExtreme:
		return 0.10
	case RiskGodMode:
		return 0.15
	default:
		return 0.03
	}
}

// IndicatorSpec names one indicator a strategy wants computed each bar.
// Period applies to RSI/EMA/SMA; Fast/Slow/Signal apply to MACD.
type IndicatorSpec struct {
	Name   string  `json:"name" yaml:"name"`
	Period int     `json:"period,omitempty" yaml:"period,omitempty"`
	Fast   int     `json:"fast,omitempty" yaml:"fast,omitempty"`
	Slow   int     `json:"slow,omitempty" yaml:"slow,omitempty"`
	Signal int     `json:"signal,omitempty" yaml:"signal,omitempty"`
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// Operator compares an indicator value against a threshold.
type Operator string

const (
	OpGT Operator = ">"
	OpLT Operator = "<"
	OpGE Operator = ">="
	OpLE Operator = "<="
	OpEQ Operator = "=="

	// The crossover operators compare levels only; there is no
	// previous-bar edge detection.
	OpCrossesAbove Operator = "crosses_above"
	OpCrossesBelow Operator = "crosses_below"
)

// ThresholdKind discriminates the two operand forms a condition threshold
// can take.
type ThresholdKind string

const (
	ThresholdValue ThresholdKind = "value"     // literal number
	ThresholdRef   ThresholdKind = "indicator" // another indicator's current value
)

// Threshold is the right-hand operand of a condition: either a literal
// number or a reference to another indicator by name.
type Threshold struct {
	Kind  ThresholdKind `json:"kind" yaml:"kind"`
	Value float64       `json:"value,omitempty" yaml:"value,omitempty"`
	Ref   string        `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// Condition compares the named indicator's current value (or the current
// price when the name matches no computed indicator) against a threshold.
type Condition struct {
	Indicator string    `json:"indicator" yaml:"indicator"`
	Operator  Operator  `json:"operator" yaml:"operator"`
	Threshold Threshold `json:"threshold" yaml:"threshold"`
}

// RiskParams holds the strategy's risk-management settings, expressed as
// percentages. TrailingStopPct and MaxDrawdownPct are carried through from
// strategy configuration but do not participate in exit decisions.
type RiskParams struct {
	StopLossPct     float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct   float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
	TrailingStopPct float64 `json:"trailing_stop_pct,omitempty" yaml:"trailing_stop_pct,omitempty"`
	MaxDrawdownPct  float64 `json:"max_drawdown_pct,omitempty" yaml:"max_drawdown_pct,omitempty"`
}

// Strategy is the full strategy definition a backtest replays.
type Strategy struct {
	Name            string          `json:"name" yaml:"name"`
	RiskLevel       RiskLevel       `json:"risk_level" yaml:"risk_level"`
	Indicators      []IndicatorSpec `json:"indicators" yaml:"indicators"`
	EntryConditions []Condition     `json:"entry_conditions" yaml:"entry_conditions"`
	ExitConditions  []Condition     `json:"exit_conditions" yaml:"exit_conditions"`
	Risk            RiskParams      `json:"risk" yaml:"risk"`
}

// BacktestConfig is the immutable input of one backtest run.
type BacktestConfig struct {
	Strategy       Strategy   `json:"strategy" yaml:"strategy"`
	Symbol         string     `json:"symbol" yaml:"symbol"`
	Timeframe      string     `json:"timeframe" yaml:"timeframe"`
	Start          time.Time  `json:"start" yaml:"start"`
	End            time.Time  `json:"end" yaml:"end"`
	InitialBalance float64    `json:"initial_balance" yaml:"initial_balance"`
	DataSource     DataSource `json:"data_source" yaml:"data_source"`
	Scenario       Scenario   `json:"scenario,omitempty" yaml:"scenario,omitempty"`

	// Bars is the synthetic series length used when Start/End are unset.
	Bars int `json:"bars,omitempty" yaml:"bars,omitempty"`

	// Seed makes synthetic data reproducible. Zero selects a time-derived
	// seed.
	Seed int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// PositionStatus is the runner's position state.
type PositionStatus string

const (
	PositionFlat  PositionStatus = "flat"
	PositionLong  PositionStatus = "long"
	PositionShort PositionStatus = "short"
)

// TradeType distinguishes position opens from closes.
type TradeType string

const (
	TradeBuy  TradeType = "buy"
	TradeSell TradeType = "sell"
)

// Trade is one append-only entry in the trade log. PnL is zero for opens
// and the realized profit for closes.
type Trade struct {
	Date   time.Time `json:"date"`
	Type   TradeType `json:"type"`
	Price  float64   `json:"price"`
	Amount float64   `json:"amount"`
	PnL    float64   `json:"pnl"`
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// BacktestResult is the complete output of a finished run.
type BacktestResult struct {
	TotalReturnPct float64       `json:"total_return_pct"`
	TotalTrades    int           `json:"total_trades"`
	WinRatePct     float64       `json:"win_rate_pct"`
	MaxDrawdownPct float64       `json:"max_drawdown_pct"`
	SharpeRatio    float64       `json:"sharpe_ratio"`
	Trades         []Trade       `json:"trades"`
	Equity         []EquityPoint `json:"equity"`
}

// Package store persists market data and backtest results: Parquet files
// for the bar cache and SQLite for run history.
package store

import (
	"context"
	"time"

	"backlab/internal/domain"
)

// BarCache persists and retrieves OHLCV bar data fetched from exchanges so
// repeated backtests over the same range avoid the network.
type BarCache interface {
	// WriteBars persists a batch of bars for a symbol and timeframe.
	WriteBars(ctx context.Context, symbol, timeframe string, bars []domain.Bar) error

	// ReadBars returns cached bars for the symbol and timeframe within
	// [start, end], in timestamp order.
	ReadBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols cached for the timeframe.
	ListSymbols(ctx context.Context, timeframe string) ([]string, error)
}

// Run is a persisted backtest: the configuration that produced it and the
// full result.
type Run struct {
	ID        string                `json:"id"`
	CreatedAt time.Time             `json:"createdAt"`
	Config    domain.BacktestConfig `json:"config"`
	Result    domain.BacktestResult `json:"result"`
}

// RunSummary is the listing view of a run, without the trade and equity
// detail.
type RunSummary struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	Strategy       string    `json:"strategy"`
	Symbol         string    `json:"symbol"`
	Timeframe      string    `json:"timeframe"`
	TotalReturnPct float64   `json:"totalReturn"`
	TotalTrades    int       `json:"totalTrades"`
	WinRatePct     float64   `json:"winRate"`
	SharpeRatio    float64   `json:"sharpeRatio"`
}

// RunStore persists and retrieves backtest runs.
type RunStore interface {
	// SaveRun inserts a completed run.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun retrieves a single run by its ID, or ErrNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns the most recent run summaries, newest first, up to
	// limit.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)

	// DeleteRun removes a run and its trades.
	DeleteRun(ctx context.Context, id string) error
}

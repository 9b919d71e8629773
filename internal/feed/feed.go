// Package feed supplies ordered OHLCV bar sequences for backtests, from
// synthetic generation, a crypto exchange, or uploaded files.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backlab/internal/domain"
)

// MinBars is the warm-up window: runs with fewer bars than this cannot seed
// their indicators and fail validation.
const MinBars = 50

// ErrInsufficientData indicates fewer than MinBars bars were available for
// the requested range.
var ErrInsufficientData = errors.New("insufficient historical data")

// Request describes the bars a backtest needs.
type Request struct {
	Symbol    string
	Timeframe string
	Start     time.Time
	End       time.Time
	Scenario  domain.Scenario
	Seed      int64
}

// Feed retrieves bars for a request. Implementations return the bars in
// strictly increasing timestamp order.
type Feed interface {
	Bars(ctx context.Context, req Request) ([]domain.Bar, error)
}

// Validate checks that bars satisfy the engine's input contract: at least
// MinBars entries in strictly increasing timestamp order.
func Validate(bars []domain.Bar) error {
	if len(bars) < MinBars {
		return fmt.Errorf("%w: got %d bars, need at least %d", ErrInsufficientData, len(bars), MinBars)
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("bars out of order at index %d: %s not after %s",
				i, bars[i].Timestamp.Format(time.RFC3339), bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

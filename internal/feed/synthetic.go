package feed

import (
	"context"
	"math"
	"math/rand"
	"time"

	"backlab/internal/domain"
)

// Compile-time interface check.
var _ Feed = (*SyntheticFeed)(nil)

// SyntheticFeed generates hourly bars from a mean-reverting random walk
// whose drift and amplitude depend on the requested market scenario.
type SyntheticFeed struct{}

// NewSyntheticFeed creates a SyntheticFeed.
func NewSyntheticFeed() *SyntheticFeed {
	return &SyntheticFeed{}
}

// startPrice anchors every synthetic series.
const startPrice = 100.0

// Bars generates one bar per hour across [req.Start, req.End]. The trend
// signal mean-reverts each step: trend = trend*0.95 + (noise+bias)*0.1 with
// noise uniform in [-0.5, 0.5] and bias +0.2 (bull), -0.2 (bear) or 0. The
// price moves by (trend + volatility)% per step, doubled for the volatile
// scenario, and is floored at 0.01. Volume doubles on moves larger than 1%.
// A non-zero req.Seed makes the series reproducible.
func (f *SyntheticFeed) Bars(ctx context.Context, req Request) ([]domain.Bar, error) {
	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	var bias float64
	switch req.Scenario {
	case domain.ScenarioBull:
		bias = 0.2
	case domain.ScenarioBear:
		bias = -0.2
	}
	volMultiplier := 1.0
	if req.Scenario == domain.ScenarioVolatile {
		volMultiplier = 2.0
	}

	var bars []domain.Bar
	price := startPrice
	trend := 0.0

	for ts := req.Start; !ts.After(req.End); ts = ts.Add(time.Hour) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		noise := rng.Float64() - 0.5
		trend = trend*0.95 + (noise+bias)*0.1

		volatility := (rng.Float64()*2 - 1) * volMultiplier
		movement := (trend + volatility) * volMultiplier
		price = math.Max(price*(1+movement/100), 0.01)

		open := price
		high := price * (1 + rng.Float64()*0.01)
		low := price * (1 - rng.Float64()*0.01)
		close := price * (1 + (rng.Float64()-0.5)*0.005)

		volume := rng.Float64()*1000000 + 500000
		if math.Abs(movement) > 1 {
			volume *= 2
		}

		bars = append(bars, domain.Bar{
			Timestamp: ts,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
		})
	}

	if err := Validate(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

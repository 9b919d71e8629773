package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"backlab/internal/domain"
	"backlab/internal/util"
)

// Compile-time interface check.
var _ Feed = (*AlpacaFeed)(nil)

// AlpacaFeed fetches historical crypto bars from the Alpaca market-data
// API. Requests are retried with backoff and rate limited.
type AlpacaFeed struct {
	client  *marketdata.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewAlpacaFeed creates an AlpacaFeed using the given API credentials. An
// empty dataURL uses the SDK default endpoint.
func NewAlpacaFeed(apiKey, apiSecret, dataURL string, ratePerMin int) *AlpacaFeed {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if ratePerMin <= 0 {
		ratePerMin = 200
	}

	return &AlpacaFeed{
		client:  marketdata.NewClient(opts),
		limiter: util.NewRateLimiter(ratePerMin),
		log:     slog.Default().With("feed", "alpaca"),
	}
}

// timeFrame converts a timeframe string into the SDK's TimeFrame value.
func timeFrame(tf string) (marketdata.TimeFrame, error) {
	n, unit, err := util.TimeframeParts(tf)
	if err != nil {
		return marketdata.TimeFrame{}, err
	}
	switch unit {
	case 'm':
		return marketdata.NewTimeFrame(n, marketdata.Min), nil
	case 'h':
		return marketdata.NewTimeFrame(n, marketdata.Hour), nil
	case 'd':
		return marketdata.NewTimeFrame(n, marketdata.Day), nil
	case 'w':
		// The bars API has no week unit; 7 days is equivalent for crypto.
		return marketdata.NewTimeFrame(n*7, marketdata.Day), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported timeframe %q", tf)
	}
}

// Bars fetches crypto bars for the requested symbol and range.
func (f *AlpacaFeed) Bars(ctx context.Context, req Request) ([]domain.Bar, error) {
	tf, err := timeFrame(req.Timeframe)
	if err != nil {
		return nil, err
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var raw []marketdata.CryptoBar
	err = util.Retry(ctx, 3, 500*time.Millisecond, func() error {
		var ferr error
		raw, ferr = f.client.GetCryptoBars(req.Symbol, marketdata.GetCryptoBarsRequest{
			TimeFrame: tf,
			Start:     req.Start,
			End:       req.End,
		})
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("fetching crypto bars for %s: %w", req.Symbol, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, b := range raw {
		ts := b.Timestamp
		if ts.Before(req.Start) || ts.After(req.End) {
			continue
		}
		bars = append(bars, domain.Bar{
			Timestamp: ts,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	f.log.Info("fetched bars", "symbol", req.Symbol, "timeframe", req.Timeframe, "count", len(bars))

	if err := Validate(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

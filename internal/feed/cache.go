package feed

import (
	"context"
	"log/slog"

	"backlab/internal/domain"
	"backlab/internal/store"
	"backlab/internal/util"
)

// Compile-time interface check.
var _ Feed = (*CachedFeed)(nil)

// CachedFeed is a read-through cache in front of another feed. Bars served
// by the cache skip the upstream entirely; misses are fetched and written
// back.
type CachedFeed struct {
	source Feed
	cache  store.BarCache
	log    *slog.Logger
}

// NewCachedFeed wraps source with the given bar cache.
func NewCachedFeed(source Feed, cache store.BarCache) *CachedFeed {
	return &CachedFeed{
		source: source,
		cache:  cache,
		log:    slog.Default().With("feed", "cached"),
	}
}

// Bars serves the request from the cache when it fully covers the range,
// otherwise fetches from the upstream feed and writes the result back.
// Cache write failures are logged but do not fail the request.
func (f *CachedFeed) Bars(ctx context.Context, req Request) ([]domain.Bar, error) {
	cached, err := f.cache.ReadBars(ctx, req.Symbol, req.Timeframe, req.Start, req.End)
	if err == nil && f.covers(cached, req) {
		f.log.Debug("cache hit", "symbol", req.Symbol, "count", len(cached))
		return cached, nil
	}
	if err != nil {
		f.log.Warn("cache read failed", "symbol", req.Symbol, "err", err)
	}

	bars, err := f.source.Bars(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := f.cache.WriteBars(ctx, req.Symbol, req.Timeframe, bars); err != nil {
		f.log.Warn("cache write failed", "symbol", req.Symbol, "err", err)
	}
	return bars, nil
}

// covers reports whether cached bars span the requested range closely
// enough to skip the upstream: enough bars overall, with the first and
// last bar within one timeframe step of the range edges.
func (f *CachedFeed) covers(bars []domain.Bar, req Request) bool {
	if len(bars) < MinBars {
		return false
	}
	step, err := util.ParseTimeframe(req.Timeframe)
	if err != nil {
		return false
	}
	if bars[0].Timestamp.After(req.Start.Add(step)) {
		return false
	}
	return !bars[len(bars)-1].Timestamp.Before(req.End.Add(-step))
}

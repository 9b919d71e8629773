// Package backtest orchestrates runs end to end: it resolves the data
// source, drives the engine, and persists completed runs.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"backlab/internal/domain"
	"backlab/internal/engine"
	"backlab/internal/feed"
	"backlab/internal/store"
)

// ErrNoExchangeFeed is returned for exchange-sourced runs when the service
// was built without exchange credentials.
var ErrNoExchangeFeed = errors.New("exchange data source not configured")

// ErrNoUploadedBars is returned for file-sourced runs without uploaded bars.
var ErrNoUploadedBars = errors.New("file data source requires uploaded bars")

// defaultBars is the synthetic series length when the request names neither
// a time range nor a bar count.
const defaultBars = 720

// Service runs backtests. One run executes at a time; starting a second
// while one is in flight fails with engine.ErrAlreadyRunning.
type Service struct {
	synthetic feed.Feed
	exchange  feed.Feed // nil when no exchange credentials are configured
	runs      store.RunStore
	engine    *engine.Engine
	log       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewService creates a Service. exchange may be nil, in which case runs
// with the exchange data source are rejected.
func NewService(synthetic, exchange feed.Feed, runs store.RunStore) *Service {
	return &Service{
		synthetic: synthetic,
		exchange:  exchange,
		runs:      runs,
		engine:    engine.New(),
		log:       slog.Default().With("component", "backtest"),
	}
}

// Subscribe streams engine events for the runs this service executes.
func (s *Service) Subscribe(buffer int) (<-chan engine.Event, func()) {
	return s.engine.Subscribe(buffer)
}

// Run executes a backtest synchronously: it loads bars for the configured
// data source, replays them, and persists the completed run.
func (s *Service) Run(ctx context.Context, cfg domain.BacktestConfig, uploaded []domain.Bar) (*store.Run, error) {
	id := newRunID()
	start := time.Now()

	bars, err := s.loadBars(ctx, cfg, uploaded)
	if err != nil {
		return nil, fmt.Errorf("loading bars: %w", err)
	}

	result, err := s.engine.Run(ctx, cfg, bars)
	if err != nil {
		return nil, err
	}

	run := &store.Run{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Config:    cfg,
		Result:    *result,
	}
	if err := s.runs.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("saving run %s: %w", id, err)
	}

	s.log.Info("backtest completed",
		"run", id,
		"symbol", cfg.Symbol,
		"bars", len(bars),
		"trades", result.TotalTrades,
		"return_pct", result.TotalReturnPct,
		"elapsed", time.Since(start),
	)
	return run, nil
}

// Start launches a backtest in the background and returns immediately with
// the run ID. Progress is observable via Subscribe; the persisted result
// becomes available under the returned ID once the run completes. A run
// already in flight is rejected with engine.ErrAlreadyRunning.
func (s *Service) Start(cfg domain.BacktestConfig, uploaded []domain.Bar) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return "", engine.ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	id := newRunID()

	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			s.cancel = nil
			s.mu.Unlock()
		}()

		bars, err := s.loadBars(ctx, cfg, uploaded)
		if err != nil {
			s.log.Error("backtest failed", "run", id, "err", err)
			return
		}
		result, err := s.engine.Run(ctx, cfg, bars)
		if err != nil {
			s.log.Error("backtest failed", "run", id, "err", err)
			return
		}

		run := &store.Run{
			ID:        id,
			CreatedAt: time.Now().UTC(),
			Config:    cfg,
			Result:    *result,
		}
		if err := s.runs.SaveRun(context.Background(), run); err != nil {
			s.log.Error("saving run failed", "run", id, "err", err)
		}
	}()

	return id, nil
}

// Cancel stops the in-flight background run, if any. It reports whether a
// run was actually cancelled.
func (s *Service) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// Running reports whether a background run is in flight.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Get returns a persisted run by ID.
func (s *Service) Get(ctx context.Context, id string) (*store.Run, error) {
	return s.runs.GetRun(ctx, id)
}

// List returns the most recent run summaries.
func (s *Service) List(ctx context.Context, limit int) ([]store.RunSummary, error) {
	return s.runs.ListRuns(ctx, limit)
}

// Delete removes a persisted run.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.runs.DeleteRun(ctx, id)
}

// Preview loads the bars a config would replay, without running anything.
func (s *Service) Preview(ctx context.Context, cfg domain.BacktestConfig, uploaded []domain.Bar) ([]domain.Bar, error) {
	return s.loadBars(ctx, cfg, uploaded)
}

// loadBars resolves the configured data source into a bar series.
func (s *Service) loadBars(ctx context.Context, cfg domain.BacktestConfig, uploaded []domain.Bar) ([]domain.Bar, error) {
	req := feed.Request{
		Symbol:    cfg.Symbol,
		Timeframe: cfg.Timeframe,
		Start:     cfg.Start,
		End:       cfg.End,
		Scenario:  cfg.Scenario,
		Seed:      cfg.Seed,
	}
	if req.Start.IsZero() || req.End.IsZero() {
		n := cfg.Bars
		if n <= 0 {
			n = defaultBars
		}
		req.End = time.Now().UTC().Truncate(time.Hour)
		req.Start = req.End.Add(-time.Duration(n-1) * time.Hour)
	}

	switch cfg.DataSource {
	case domain.SourceSynthetic, "":
		return s.synthetic.Bars(ctx, req)
	case domain.SourceExchange:
		if s.exchange == nil {
			return nil, ErrNoExchangeFeed
		}
		return s.exchange.Bars(ctx, req)
	case domain.SourceFile:
		if len(uploaded) == 0 {
			return nil, ErrNoUploadedBars
		}
		return feed.NewStaticFeed(uploaded).Bars(ctx, req)
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.DataSource)
	}
}

// newRunID produces a unique, sortable run identifier.
func newRunID() string {
	return fmt.Sprintf("bt-%d-%04x", time.Now().UnixMilli(), rand.Intn(0x10000))
}

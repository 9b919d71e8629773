// Package engine replays historical bars through a strategy, tracking
// position and equity state and producing the final backtest result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"backlab/internal/domain"
	"backlab/internal/feed"
	"backlab/internal/indicator"
	"backlab/internal/signal"
)

// ErrAlreadyRunning is returned when Run is called while a previous run on
// the same Engine has not finished.
var ErrAlreadyRunning = errors.New("backtest already running")

// ErrBadConfig indicates the strategy configuration cannot be executed.
var ErrBadConfig = errors.New("invalid strategy configuration")

// warmupBars is the indicator warm-up window; trading decisions start at
// this bar index.
const warmupBars = feed.MinBars

// EventType discriminates engine events.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventUpdate    EventType = "update"
	EventError     EventType = "error"
	EventCompleted EventType = "completed"
)

// Snapshot is the live run state attached to update events.
type Snapshot struct {
	Timestamp time.Time             `json:"timestamp"`
	Price     float64               `json:"price"`
	Position  domain.PositionStatus `json:"position"`
	Equity    float64               `json:"equity"`
	PnL       float64               `json:"pnl"`
	Drawdown  float64               `json:"drawdown"`
}

// Event is a progress or state notification emitted during a run.
type Event struct {
	Type     EventType `json:"type"`
	Progress int       `json:"progress,omitempty"`
	Step     string    `json:"step,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Engine executes backtest runs. An Engine allows one run at a time; a
// second concurrent Run fails fast with ErrAlreadyRunning. All run state
// lives on the stack of Run, so a finished Engine can be reused.
type Engine struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
	running     atomic.Bool
	log         *slog.Logger
}

// New creates an idle Engine.
func New() *Engine {
	return &Engine{
		subscribers: make(map[chan Event]struct{}),
		log:         slog.Default().With("component", "engine"),
	}
}

// Subscribe registers an event channel with the given buffer size and
// returns it together with a cancel function. Delivery is best-effort: an
// event that would block on a full channel is dropped rather than stalling
// the run.
func (e *Engine) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (e *Engine) publish(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// validate rejects configurations the replay loop cannot execute.
// Indicator names are resolved up front so a bad name fails the run
// instead of silently degrading every bar.
func validate(cfg domain.BacktestConfig, bars []domain.Bar) error {
	if len(cfg.Strategy.Indicators) == 0 {
		return fmt.Errorf("%w: strategy declares no indicators", ErrBadConfig)
	}
	for _, spec := range cfg.Strategy.Indicators {
		switch strings.ToLower(spec.Name) {
		case "rsi", "ema", "sma", "macd":
		default:
			return fmt.Errorf("%w: unknown indicator %q", ErrBadConfig, spec.Name)
		}
	}
	if cfg.InitialBalance <= 0 {
		return fmt.Errorf("%w: initial balance must be positive", ErrBadConfig)
	}
	return feed.Validate(bars)
}

// Run replays bars through the configured strategy and returns the final
// result. Cancellation is cooperative: the context is checked once per
// bar, and a cancelled run returns the context's error with the running
// latch released.
func (e *Engine) Run(ctx context.Context, cfg domain.BacktestConfig, bars []domain.Bar) (*domain.BacktestResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer e.running.Store(false)

	result, err := e.run(ctx, cfg, bars)
	if err != nil {
		e.publish(Event{Type: EventError, Error: err.Error()})
		return nil, err
	}

	e.publish(Event{Type: EventProgress, Progress: 100, Step: "Backtest completed"})
	e.publish(Event{Type: EventCompleted})
	return result, nil
}

func (e *Engine) run(ctx context.Context, cfg domain.BacktestConfig, bars []domain.Bar) (*domain.BacktestResult, error) {
	if err := validate(cfg, bars); err != nil {
		return nil, err
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	e.publish(Event{Type: EventProgress, Progress: 0, Step: "Replaying price data"})

	var (
		status       = domain.PositionFlat
		entryPrice   float64
		positionSize float64
		realized     float64
		trades       []domain.Trade
		equityCurve  = make([]domain.EquityPoint, 0, len(bars)-warmupBars)
		equity       = cfg.InitialBalance
		peak         = cfg.InitialBalance
		maxDrawdown  float64
		lastProgress int
	)

	total := len(bars) - warmupBars
	multiplier := cfg.Strategy.RiskLevel.Multiplier()

	for i := warmupBars; i < len(bars); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		bar := bars[i]
		price := bar.Close

		values, err := indicator.Calculate(cfg.Strategy.Indicators, closes[:i+1])
		if err != nil {
			// No-signal for this bar; equity bookkeeping below still runs.
			e.log.Warn("indicator computation failed", "bar", i, "err", err)
			values = map[string]float64{}
		}

		if status == domain.PositionFlat {
			enter, err := signal.ShouldEnter(cfg.Strategy, values, price)
			if err != nil {
				e.log.Warn("entry evaluation failed", "bar", i, "err", err)
			} else if enter {
				entryPrice = price
				positionSize = equity * multiplier
				status = domain.PositionLong
				trades = append(trades, domain.Trade{
					Date:   bar.Timestamp,
					Type:   domain.TradeBuy,
					Price:  price,
					Amount: positionSize,
				})
			}
		} else {
			exit, err := signal.ShouldExit(cfg.Strategy, values, price, entryPrice)
			if err != nil {
				e.log.Warn("exit evaluation failed", "bar", i, "err", err)
			} else if exit {
				pnl := positionPnL(status, positionSize, entryPrice, price)
				realized += pnl
				trades = append(trades, domain.Trade{
					Date:   bar.Timestamp,
					Type:   domain.TradeSell,
					Price:  price,
					Amount: positionSize,
					PnL:    pnl,
				})
				status = domain.PositionFlat
				entryPrice = 0
				positionSize = 0
			}
		}

		// Equity is re-derived from realized history plus the open mark
		// every bar rather than accumulated incrementally, which keeps it
		// immune to drift.
		unrealized := 0.0
		if status != domain.PositionFlat {
			unrealized = positionPnL(status, positionSize, entryPrice, price)
		}
		equity = cfg.InitialBalance + realized + unrealized

		if equity > peak {
			peak = equity
		}
		drawdown := (peak - equity) / peak * 100
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}

		equityCurve = append(equityCurve, domain.EquityPoint{Date: bar.Timestamp, Value: equity})

		processed := i - warmupBars + 1
		pct := processed * 100 / total
		if pct >= lastProgress+5 {
			lastProgress = pct
			e.publish(Event{Type: EventProgress, Progress: pct, Step: "Replaying price data"})
		}

		if processed%10 == 0 {
			e.publish(Event{Type: EventUpdate, Snapshot: &Snapshot{
				Timestamp: bar.Timestamp,
				Price:     price,
				Position:  status,
				Equity:    equity,
				PnL:       unrealized,
				Drawdown:  drawdown,
			}})
		}
	}

	return &domain.BacktestResult{
		TotalReturnPct: (equity - cfg.InitialBalance) / cfg.InitialBalance * 100,
		TotalTrades:    len(trades),
		WinRatePct:     winRatePct(trades),
		MaxDrawdownPct: maxDrawdown,
		SharpeRatio:    sharpeRatio(equityCurve),
		Trades:         trades,
		Equity:         equityCurve,
	}, nil
}

// positionPnL computes the profit of marking a position of the given
// notional size at price. The sign flips for shorts.
func positionPnL(status domain.PositionStatus, size, entry, price float64) float64 {
	if entry == 0 {
		return 0
	}
	pnl := size * (price - entry) / entry
	if status == domain.PositionShort {
		pnl = -pnl
	}
	return pnl
}

package backtest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"backlab/internal/domain"
	"backlab/internal/engine"
	"backlab/internal/feed"
	"backlab/internal/store"
)

// memoryRunStore is an in-memory RunStore for tests.
type memoryRunStore struct {
	mu   sync.Mutex
	runs map[string]*store.Run
}

func newMemoryRunStore() *memoryRunStore {
	return &memoryRunStore{runs: make(map[string]*store.Run)}
}

func (m *memoryRunStore) SaveRun(_ context.Context, run *store.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *memoryRunStore) GetRun(_ context.Context, id string) (*store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return run, nil
}

func (m *memoryRunStore) ListRuns(_ context.Context, limit int) ([]store.RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.RunSummary
	for _, r := range m.runs {
		out = append(out, store.RunSummary{ID: r.ID, Symbol: r.Config.Symbol})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryRunStore) DeleteRun(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.runs, id)
	return nil
}

func testConfig() domain.BacktestConfig {
	return domain.BacktestConfig{
		Strategy: domain.Strategy{
			Name:      "sma-momentum",
			RiskLevel: domain.RiskLow,
			Indicators: []domain.IndicatorSpec{
				{Name: "sma", Period: 20},
			},
			EntryConditions: []domain.Condition{
				{
					Indicator: "sma",
					Operator:  domain.OpGT,
					Threshold: domain.Threshold{Kind: domain.ThresholdValue, Value: 0},
				},
			},
			Risk: domain.RiskParams{StopLossPct: 3, TakeProfitPct: 6},
		},
		Symbol:         "BTC/USD",
		Timeframe:      "1h",
		InitialBalance: 10000,
		DataSource:     domain.SourceSynthetic,
		Scenario:       domain.ScenarioBull,
		Bars:           120,
		Seed:           7,
	}
}

func newTestService() (*Service, *memoryRunStore) {
	runs := newMemoryRunStore()
	return NewService(feed.NewSyntheticFeed(), nil, runs), runs
}

func TestServiceRunSyntheticPersists(t *testing.T) {
	svc, runs := newTestService()

	run, err := svc.Run(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if run.ID == "" {
		t.Fatal("run has empty ID")
	}
	if len(run.Result.Equity) != 120-feed.MinBars {
		t.Errorf("equity curve has %d points, want %d", len(run.Result.Equity), 120-feed.MinBars)
	}

	stored, err := runs.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("run was not persisted: %v", err)
	}
	if stored.Config.Symbol != "BTC/USD" {
		t.Errorf("persisted symbol = %q, want BTC/USD", stored.Config.Symbol)
	}
}

func TestServiceRunDeterministicWithSeed(t *testing.T) {
	svc, _ := newTestService()
	cfg := testConfig()

	a, err := svc.Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	b, err := svc.Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if a.Result.TotalReturnPct != b.Result.TotalReturnPct {
		t.Errorf("seeded runs differ: %v vs %v", a.Result.TotalReturnPct, b.Result.TotalReturnPct)
	}
	if a.Result.TotalTrades != b.Result.TotalTrades {
		t.Errorf("seeded runs differ in trades: %d vs %d", a.Result.TotalTrades, b.Result.TotalTrades)
	}
}

func TestServiceRunExchangeUnconfigured(t *testing.T) {
	svc, _ := newTestService()
	cfg := testConfig()
	cfg.DataSource = domain.SourceExchange

	_, err := svc.Run(context.Background(), cfg, nil)
	if !errors.Is(err, ErrNoExchangeFeed) {
		t.Fatalf("Run error = %v, want ErrNoExchangeFeed", err)
	}
}

func TestServiceRunFileSource(t *testing.T) {
	svc, _ := newTestService()
	cfg := testConfig()
	cfg.DataSource = domain.SourceFile

	if _, err := svc.Run(context.Background(), cfg, nil); !errors.Is(err, ErrNoUploadedBars) {
		t.Fatalf("Run without upload error = %v, want ErrNoUploadedBars", err)
	}

	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 80)
	for i := range bars {
		bars[i] = domain.Bar{Timestamp: base.Add(time.Duration(i) * time.Hour), Close: 100 + float64(i), Volume: 1}
	}

	run, err := svc.Run(context.Background(), cfg, bars)
	if err != nil {
		t.Fatalf("Run with upload returned error: %v", err)
	}
	if len(run.Result.Equity) != len(bars)-feed.MinBars {
		t.Errorf("equity curve has %d points, want %d", len(run.Result.Equity), len(bars)-feed.MinBars)
	}
}

func TestServiceRunUnknownSource(t *testing.T) {
	svc, _ := newTestService()
	cfg := testConfig()
	cfg.DataSource = "telepathy"

	if _, err := svc.Run(context.Background(), cfg, nil); err == nil {
		t.Fatal("Run should reject an unknown data source")
	}
}

func TestServiceStartAndWait(t *testing.T) {
	svc, runs := newTestService()

	id, err := svc.Start(testConfig(), nil)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if id == "" {
		t.Fatal("Start returned empty run ID")
	}

	deadline := time.After(5 * time.Second)
	for svc.Running() {
		select {
		case <-deadline:
			t.Fatal("background run did not finish")
		case <-time.After(10 * time.Millisecond):
		}
	}

	run, err := runs.GetRun(context.Background(), id)
	if err != nil {
		t.Fatalf("background run not persisted: %v", err)
	}
	if run.Result.TotalTrades < 0 {
		t.Errorf("nonsense trade count %d", run.Result.TotalTrades)
	}
}

func TestServiceStartRejectsConcurrent(t *testing.T) {
	svc, _ := newTestService()
	cfg := testConfig()
	cfg.Bars = 50000

	if _, err := svc.Start(cfg, nil); err != nil {
		t.Fatalf("first Start returned error: %v", err)
	}
	// The first run holds the slot until it finishes.
	if _, err := svc.Start(cfg, nil); !errors.Is(err, engine.ErrAlreadyRunning) {
		t.Fatalf("second Start error = %v, want ErrAlreadyRunning", err)
	}

	deadline := time.After(10 * time.Second)
	for svc.Running() {
		select {
		case <-deadline:
			t.Fatal("background run did not finish")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestServiceCancelIdle(t *testing.T) {
	svc, _ := newTestService()
	if svc.Cancel() {
		t.Fatal("Cancel with no run in flight should report false")
	}
}

func TestServicePreview(t *testing.T) {
	svc, _ := newTestService()

	bars, err := svc.Preview(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("Preview returned error: %v", err)
	}
	if len(bars) != 120 {
		t.Errorf("Preview returned %d bars, want 120", len(bars))
	}
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backlab/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("run not found")

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// SQLiteStore implements RunStore backed by a SQLite database. Runs are
// stored with their configuration and equity curve as JSON columns and
// trades in a child table.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	created_at    TIMESTAMP NOT NULL,
	strategy      TEXT NOT NULL,
	symbol        TEXT NOT NULL,
	timeframe     TEXT NOT NULL,
	config_json   TEXT NOT NULL,
	total_return  REAL NOT NULL,
	total_trades  INTEGER NOT NULL,
	win_rate      REAL NOT NULL,
	max_drawdown  REAL NOT NULL,
	sharpe_ratio  REAL NOT NULL,
	equity_json   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_trades (
	run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq     INTEGER NOT NULL,
	date    TIMESTAMP NOT NULL,
	type    TEXT NOT NULL,
	price   REAL NOT NULL,
	amount  REAL NOT NULL,
	pnl     REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies
// the schema, and returns a ready-to-use store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts a completed run and its trades in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	equityJSON, err := json.Marshal(run.Result.Equity)
	if err != nil {
		return fmt.Errorf("encoding equity curve: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, created_at, strategy, symbol, timeframe, config_json,
			total_return, total_trades, win_rate, max_drawdown, sharpe_ratio,
			equity_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC(), run.Config.Strategy.Name, run.Config.Symbol,
		run.Config.Timeframe, string(configJSON),
		run.Result.TotalReturnPct, run.Result.TotalTrades, run.Result.WinRatePct,
		run.Result.MaxDrawdownPct, run.Result.SharpeRatio, string(equityJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	for i, tr := range run.Result.Trades {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_trades (run_id, seq, date, type, price, amount, pnl)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, tr.Date.UTC(), string(tr.Type), tr.Price, tr.Amount, tr.PnL,
		)
		if err != nil {
			return fmt.Errorf("inserting trade %d of run %s: %w", i, run.ID, err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a single run by its ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var (
		run        Run
		configJSON string
		equityJSON string
	)
	run.ID = id

	err := s.db.QueryRowContext(ctx, `
		SELECT created_at, config_json, total_return, total_trades, win_rate,
		       max_drawdown, sharpe_ratio, equity_json
		FROM runs WHERE id = ?`, id,
	).Scan(
		&run.CreatedAt, &configJSON,
		&run.Result.TotalReturnPct, &run.Result.TotalTrades, &run.Result.WinRatePct,
		&run.Result.MaxDrawdownPct, &run.Result.SharpeRatio, &equityJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(configJSON), &run.Config); err != nil {
		return nil, fmt.Errorf("decoding config of run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(equityJSON), &run.Result.Equity); err != nil {
		return nil, fmt.Errorf("decoding equity curve of run %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, type, price, amount, pnl
		FROM run_trades WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tr   domain.Trade
			kind string
			date time.Time
		)
		if err := rows.Scan(&date, &kind, &tr.Price, &tr.Amount, &tr.PnL); err != nil {
			return nil, err
		}
		tr.Date = date.UTC()
		tr.Type = domain.TradeType(kind)
		run.Result.Trades = append(run.Result.Trades, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	run.CreatedAt = run.CreatedAt.UTC()
	return &run, nil
}

// ListRuns returns the most recent run summaries, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, strategy, symbol, timeframe,
		       total_return, total_trades, win_rate, sharpe_ratio
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var sm RunSummary
		if err := rows.Scan(
			&sm.ID, &sm.CreatedAt, &sm.Strategy, &sm.Symbol, &sm.Timeframe,
			&sm.TotalReturnPct, &sm.TotalTrades, &sm.WinRatePct, &sm.SharpeRatio,
		); err != nil {
			return nil, err
		}
		sm.CreatedAt = sm.CreatedAt.UTC()
		summaries = append(summaries, sm)
	}
	return summaries, rows.Err()
}

// DeleteRun removes a run and its trades.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	// The trades FK cascade is not enforced by default in SQLite, so delete
	// explicitly.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM run_trades WHERE run_id = ?`, id); err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

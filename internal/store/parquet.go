package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"backlab/internal/domain"
)

// Compile-time interface check.
var _ BarCache = (*ParquetCache)(nil)

// ParquetCache implements BarCache using Parquet files on disk.
type ParquetCache struct {
	DataDir string
}

// NewParquetCache creates a ParquetCache rooted at the given data directory.
func NewParquetCache(dataDir string) *ParquetCache {
	return &ParquetCache{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record type (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for cached bar data.
type BarRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// ---------------------------------------------------------------------------
// BarCache implementation
// ---------------------------------------------------------------------------

// WriteBars writes bars to Parquet files organized by timeframe, symbol, and
// year. Each combination produces one file at:
//
//	<DataDir>/bars/<timeframe>/<SYMBOL>/<YYYY>.parquet
//
// Writes merge with existing files, deduplicating by timestamp with new
// records winning.
func (c *ParquetCache) WriteBars(_ context.Context, symbol, timeframe string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	groups := make(map[int][]BarRecord)
	for _, b := range bars {
		year := b.Timestamp.Year()
		groups[year] = append(groups[year], BarRecord{
			Timestamp: b.Timestamp.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	for year, records := range groups {
		path := c.barPath(symbol, timeframe, year)

		existing, _ := readParquetFile[BarRecord](path)
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%s/%d: %w", symbol, timeframe, year, err)
		}
	}
	return nil
}

// ReadBars reads cached bars for the given symbol, timeframe, and range.
// Missing year files are skipped, so a partial cache returns partial data;
// callers decide whether the result covers enough of the range.
func (c *ParquetCache) ReadBars(_ context.Context, symbol, timeframe string, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar
	for year := start.Year(); year <= end.Year(); year++ {
		records, err := readParquetFile[BarRecord](c.barPath(symbol, timeframe, year))
		if err != nil {
			continue
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			bars = append(bars, domain.Bar{
				Timestamp: ts,
				Open:      r.Open,
				High:      r.High,
				Low:       r.Low,
				Close:     r.Close,
				Volume:    r.Volume,
			})
		}
	}
	return bars, nil
}

// ListSymbols lists all symbols that have cached bars for the timeframe.
func (c *ParquetCache) ListSymbols(_ context.Context, timeframe string) ([]string, error) {
	dir := filepath.Join(c.DataDir, "bars", timeframe)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// barPath returns the filesystem path for a bar Parquet file. Pair symbols
// like BTC/USD become BTC-USD on disk.
func (c *ParquetCache) barPath(symbol, timeframe string, year int) string {
	safe := strings.ToUpper(strings.ReplaceAll(symbol, "/", "-"))
	return filepath.Join(c.DataDir, "bars", timeframe, safe, fmt.Sprintf("%d.parquet", year))
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeBarRecords deduplicates bar records by timestamp, preferring new
// records over existing ones. Results are sorted by timestamp.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	seen := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

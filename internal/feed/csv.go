package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"backlab/internal/domain"
)

// csvColumns are the required upload columns, in any order.
var csvColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// ParseCSV reads an uploaded OHLCV file. The header row must contain the
// columns timestamp,open,high,low,close,volume; timestamps are epoch
// milliseconds and the remaining values are parsed as floats. Bars are
// returned in file order.
func ParseCSV(r io.Reader) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range csvColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("csv header missing column %q", col)
		}
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv line %d: %w", line, err)
		}

		ms, err := strconv.ParseInt(record[index["timestamp"]], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: invalid timestamp %q", line, record[index["timestamp"]])
		}

		fields := [5]float64{}
		for i, col := range []string{"open", "high", "low", "close", "volume"} {
			v, err := strconv.ParseFloat(record[index[col]], 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: invalid %s %q", line, col, record[index[col]])
			}
			fields[i] = v
		}

		bars = append(bars, domain.Bar{
			Timestamp: time.UnixMilli(ms).UTC(),
			Open:      fields[0],
			High:      fields[1],
			Low:       fields[2],
			Close:     fields[3],
			Volume:    fields[4],
		})
	}

	return bars, nil
}

// Compile-time interface check.
var _ Feed = (*StaticFeed)(nil)

// StaticFeed serves a pre-parsed bar slice, used for uploaded-file runs.
type StaticFeed struct {
	bars []domain.Bar
}

// NewStaticFeed wraps an already-parsed bar slice in the Feed interface.
func NewStaticFeed(bars []domain.Bar) *StaticFeed {
	return &StaticFeed{bars: bars}
}

// Bars returns the wrapped slice after validating it.
func (f *StaticFeed) Bars(_ context.Context, _ Request) ([]domain.Bar, error) {
	if err := Validate(f.bars); err != nil {
		return nil, err
	}
	return f.bars, nil
}

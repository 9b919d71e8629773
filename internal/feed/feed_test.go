package feed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"backlab/internal/domain"
)

func TestValidateRejectsShortInput(t *testing.T) {
	bars := make([]domain.Bar, MinBars-1)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = domain.Bar{Timestamp: base.Add(time.Duration(i) * time.Hour), Close: 100}
	}

	err := Validate(bars)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("Validate(%d bars) = %v, want ErrInsufficientData", len(bars), err)
	}
}

func TestValidateRejectsUnorderedBars(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, MinBars+10)
	for i := range bars {
		bars[i] = domain.Bar{Timestamp: base.Add(time.Duration(i) * time.Hour), Close: 100}
	}
	// Duplicate a timestamp.
	bars[20].Timestamp = bars[19].Timestamp

	if err := Validate(bars); err == nil {
		t.Fatal("Validate should reject non-increasing timestamps")
	}
}

func TestSyntheticFeedShape(t *testing.T) {
	f := NewSyntheticFeed()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(99 * time.Hour)

	bars, err := f.Bars(context.Background(), Request{
		Start:    start,
		End:      end,
		Scenario: domain.ScenarioSideways,
		Seed:     1,
	})
	if err != nil {
		t.Fatalf("Bars returned error: %v", err)
	}

	// Hourly spacing across an inclusive range.
	if len(bars) != 100 {
		t.Fatalf("generated %d bars, want 100", len(bars))
	}
	for i, b := range bars {
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			t.Fatalf("bar %d has non-positive price: %+v", i, b)
		}
		if b.Volume <= 0 {
			t.Fatalf("bar %d has non-positive volume", i)
		}
		want := start.Add(time.Duration(i) * time.Hour)
		if !b.Timestamp.Equal(want) {
			t.Fatalf("bar %d timestamp = %s, want %s", i, b.Timestamp, want)
		}
	}
}

func TestSyntheticFeedSeedDeterminism(t *testing.T) {
	f := NewSyntheticFeed()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	req := Request{
		Start:    start,
		End:      start.Add(80 * time.Hour),
		Scenario: domain.ScenarioBull,
		Seed:     42,
	}

	a, err := f.Bars(context.Background(), req)
	if err != nil {
		t.Fatalf("first Bars call: %v", err)
	}
	b, err := f.Bars(context.Background(), req)
	if err != nil {
		t.Fatalf("second Bars call: %v", err)
	}

	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("bar %d differs between seeded runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestSyntheticFeedTooShortRange(t *testing.T) {
	f := NewSyntheticFeed()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := f.Bars(context.Background(), Request{
		Start: start,
		End:   start.Add(10 * time.Hour),
		Seed:  1,
	})
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("short range error = %v, want ErrInsufficientData", err)
	}
}

func TestParseCSV(t *testing.T) {
	input := "timestamp,open,high,low,close,volume\n" +
		"1735689600000,100.5,101.2,99.8,100.9,1500000\n" +
		"1735693200000,100.9,102.0,100.1,101.5,1750000\n"

	bars, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV returned error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("parsed %d bars, want 2", len(bars))
	}

	want := time.UnixMilli(1735689600000).UTC()
	if !bars[0].Timestamp.Equal(want) {
		t.Errorf("first timestamp = %s, want %s", bars[0].Timestamp, want)
	}
	if bars[0].Open != 100.5 || bars[0].Close != 100.9 {
		t.Errorf("first bar OHLC mismatch: %+v", bars[0])
	}
	if bars[1].Volume != 1750000 {
		t.Errorf("second bar volume = %v, want 1750000", bars[1].Volume)
	}
}

func TestParseCSVColumnOrderIndependent(t *testing.T) {
	input := "close,open,volume,timestamp,high,low\n" +
		"100.9,100.5,1500000,1735689600000,101.2,99.8\n"

	bars, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV returned error: %v", err)
	}
	if bars[0].Close != 100.9 || bars[0].Low != 99.8 {
		t.Errorf("column mapping wrong: %+v", bars[0])
	}
}

func TestParseCSVMissingColumn(t *testing.T) {
	input := "timestamp,open,high,low,close\n1735689600000,1,1,1,1\n"
	_, err := ParseCSV(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "volume") {
		t.Fatalf("ParseCSV error = %v, want missing-column error naming volume", err)
	}
}

func TestParseCSVBadValue(t *testing.T) {
	input := "timestamp,open,high,low,close,volume\nnot-a-number,1,1,1,1,1\n"
	if _, err := ParseCSV(strings.NewReader(input)); err == nil {
		t.Fatal("ParseCSV should reject a non-numeric timestamp")
	}

	input = "timestamp,open,high,low,close,volume\n1735689600000,x,1,1,1,1\n"
	if _, err := ParseCSV(strings.NewReader(input)); err == nil {
		t.Fatal("ParseCSV should reject a non-numeric open")
	}
}

func TestStaticFeed(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, MinBars+5)
	for i := range bars {
		bars[i] = domain.Bar{Timestamp: base.Add(time.Duration(i) * time.Hour), Close: 100}
	}

	f := NewStaticFeed(bars)
	got, err := f.Bars(context.Background(), Request{})
	if err != nil {
		t.Fatalf("StaticFeed.Bars returned error: %v", err)
	}
	if len(got) != len(bars) {
		t.Errorf("StaticFeed returned %d bars, want %d", len(got), len(bars))
	}

	short := NewStaticFeed(bars[:10])
	if _, err := short.Bars(context.Background(), Request{}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("short StaticFeed error = %v, want ErrInsufficientData", err)
	}
}

package util

import (
	"fmt"
	"strconv"
	"time"
)

// DefaultTimeframe is used when a backtest request does not specify one.
const DefaultTimeframe = "1h"

// ParseTimeframe converts a timeframe string such as "1m", "5m", "1h", "1d"
// or "1w" into a duration. An empty string parses as DefaultTimeframe.
func ParseTimeframe(tf string) (time.Duration, error) {
	if tf == "" {
		tf = DefaultTimeframe
	}
	if len(tf) < 2 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}

	value, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}

	switch tf[len(tf)-1] {
	case 'm':
		return time.Duration(value) * time.Minute, nil
	case 'h':
		return time.Duration(value) * time.Hour, nil
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
}

// TimeframeParts splits a timeframe string into its count and unit rune,
// e.g. "15m" → (15, 'm'). Used by the exchange feed to build SDK timeframe
// values.
func TimeframeParts(tf string) (int, byte, error) {
	if _, err := ParseTimeframe(tf); err != nil {
		return 0, 0, err
	}
	if tf == "" {
		tf = DefaultTimeframe
	}
	value, _ := strconv.Atoi(tf[:len(tf)-1])
	return value, tf[len(tf)-1], nil
}

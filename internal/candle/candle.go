// Package candle
package candle

import (
	"errors"
	"sort"
	"time"

	"macdbot/internal/tfutils"
)

type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
}

// IsComplete reports whether the candle has closed (its interval has elapsed).
func (c *Candle) IsComplete(now time.Time) bool {
	candleEnd := c.Timestamp.Add(tfutils.GetTimeframeDuration(c.Timeframe))
	return !now.Before(candleEnd)
}

// Validate checks if a candle has valid data
func (c *Candle) Validate() error {
	if c.Timestamp.IsZero() {
		return errors.New("candle timestamp is zero")
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return errors.New("candle prices must be positive")
	}
	if c.High < c.Low {
		return errors.New("candle high cannot be less than low")
	}
	if c.Volume < 0 {
		return errors.New("candle volume cannot be negative")
	}
	if c.Symbol == "" {
		return errors.New("candle symbol cannot be empty")
	}
	return nil
}

// SortAscending orders candles oldest-first, the order every consumer expects.
func SortAscending(candles []Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
}

// DropUnclosed removes the trailing still-forming candle, if any.
// Bybit includes the live candle as the newest element of a kline
// response; analysis must only ever see closed bars.
func DropUnclosed(candles []Candle, now time.Time) []Candle {
	for len(candles) > 0 {
		last := candles[len(candles)-1]
		if last.IsComplete(now) {
			break
		}
		candles = candles[:len(candles)-1]
	}
	return candles
}

// Closes extracts the close price series, oldest-first.
func Closes(candles []Candle) []float64 {
	closes := make([]float64, 0, len(candles))
	for _, c := range candles {
		closes = append(closes, c.Close)
	}
	return closes
}

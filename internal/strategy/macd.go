package strategy

import (
	"fmt"

	"macdbot/internal/indicator"
)

// MACDStrategy evaluates the crossover state machine over a close-price
// series.
type MACDStrategy struct {
	Fast   int
	Slow   int
	Signal int
}

func NewMACDStrategy(fast, slow, signal int) *MACDStrategy {
	return &MACDStrategy{Fast: fast, Slow: slow, Signal: signal}
}

func (s *MACDStrategy) Name() string { return "MACD" }

// WarmupPeriod returns the minimum number of closes before Decide can
// produce a meaningful value.
func (s *MACDStrategy) WarmupPeriod() int {
	return indicator.MinBars(s.Slow, s.Signal)
}

// Decide computes MACD over the series and advances the signal state
// machine by one step. The returned macd/signal values are the latest
// bar's, for logging.
func (s *MACDStrategy) Decide(last SignalState, closes []float64) (Decision, float64, float64, error) {
	macd, signalLine, err := indicator.MACD(closes, s.Fast, s.Slow, s.Signal)
	if err != nil {
		return Decision{}, 0, 0, fmt.Errorf("computing MACD: %w", err)
	}
	curMACD := macd[len(macd)-1]
	curSignal := signalLine[len(signalLine)-1]
	return Evaluate(last, curMACD, curSignal), curMACD, curSignal, nil
}

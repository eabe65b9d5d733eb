// Package indicator
package indicator

import (
	"errors"
	"fmt"

	talib "github.com/markcheno/go-talib"
)

// MinBars returns the number of closes needed before the MACD signal
// line carries a meaningful value.
func MinBars(slow, signal int) int {
	return slow + signal
}

// MACD computes the MACD line and its signal line over a close-price
// series using the standard EMA construction.
func MACD(closes []float64, fast, slow, signal int) (macd, signalLine []float64, err error) {
	if len(closes) == 0 {
		return nil, nil, errors.New("close price series is empty")
	}
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
		return nil, nil, fmt.Errorf("invalid MACD periods: fast=%d slow=%d signal=%d", fast, slow, signal)
	}
	if len(closes) < MinBars(slow, signal) {
		return nil, nil, fmt.Errorf("need at least %d closes for MACD(%d,%d,%d), got %d",
			MinBars(slow, signal), fast, slow, signal, len(closes))
	}
	macd, signalLine, _ = talib.Macd(closes, fast, slow, signal)
	return macd, signalLine, nil
}

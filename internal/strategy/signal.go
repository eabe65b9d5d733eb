// Package strategy
package strategy

// SignalState is the persisted tri-state of the MACD crossover tracker.
type SignalState string

const (
	// NoSignal - first run, no prior observation to compare against
	NoSignal SignalState = ""

	// WaitDownwardCross - MACD is already above the signal line; the
	// current leg is underway and entering now would chase it. There is
	// no MACD-driven transition out of this state: it re-arms only via
	// an external reset (restart with no persisted state).
	WaitDownwardCross SignalState = "wait_downward_cross"

	// WaitUpwardCross - armed: the next bar with MACD above the signal
	// line opens a long
	WaitUpwardCross SignalState = "wait_upward_cross"

	// PositionOpen - long position held, watching for a downward cross
	PositionOpen SignalState = "position_open"
)

// Intent is the trade action requested by the signal engine for one cycle.
type Intent string

const (
	IntentNone      Intent = "none"
	IntentOpenLong  Intent = "open_long"
	IntentCloseLong Intent = "close_long"
)

// Decision is the output of one signal evaluation. Next is the state to
// adopt, which the position manager applies only after the corresponding
// order attempt is confirmed.
type Decision struct {
	Intent Intent
	Next   SignalState
	Reason string
}

// Evaluate runs one step of the signal state machine against the latest
// MACD and signal-line values. It is pure: the same (last, macd, signal)
// triple always yields the same decision.
//
// The cross is detected by state, not by comparing to the previous bar:
// a single bar with MACD above the signal line while armed is enough.
func Evaluate(last SignalState, macd, signal float64) Decision {
	switch last {
	case NoSignal:
		// Classify the current relationship; no entry fires on the
		// first observation.
		if macd > signal {
			return Decision{
				Intent: IntentNone,
				Next:   WaitDownwardCross,
				Reason: "MACD above signal line, waiting for downward cross",
			}
		}
		return Decision{
			Intent: IntentNone,
			Next:   WaitUpwardCross,
			Reason: "MACD at or below signal line, armed for upward cross",
		}

	case WaitUpwardCross:
		if macd > signal {
			return Decision{
				Intent: IntentOpenLong,
				Next:   PositionOpen,
				Reason: "upward cross detected while armed",
			}
		}
		return Decision{Intent: IntentNone, Next: WaitUpwardCross, Reason: "still below signal line"}

	case PositionOpen:
		// Equality does not close.
		if macd < signal {
			return Decision{
				Intent: IntentCloseLong,
				Next:   WaitUpwardCross,
				Reason: "downward cross detected with position open",
			}
		}
		return Decision{Intent: IntentNone, Next: PositionOpen, Reason: "MACD holding above signal line"}

	default: // WaitDownwardCross and anything unrecognized
		return Decision{Intent: IntentNone, Next: WaitDownwardCross, Reason: "waiting for downward cross"}
	}
}

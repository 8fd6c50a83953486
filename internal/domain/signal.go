package domain

import "time"

// Direction is the side of a signal, decision, or trade intent.
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
	Hold Direction = "hold"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == Buy || d == Sell || d == Hold
}

// Signal is one strategy's read on one asset for the current cycle.
// Strength is 0 for hold and in (0, 1] otherwise. Signals are produced
// fresh each cycle and never mutated; a new Signal replaces the old one.
type Signal struct {
	Symbol    string
	Direction Direction
	Strength  float64
	Strategy  string
	Reason    string
	At        time.Time
}

// HoldSignal builds the neutral signal strategies fall back to when the
// data cannot support a directional call.
func HoldSignal(symbol, strategy, reason string, at time.Time) Signal {
	return Signal{
		Symbol:    symbol,
		Direction: Hold,
		Strength:  0,
		Strategy:  strategy,
		Reason:    reason,
		At:        at,
	}
}

// Decision is the combined outcome for one asset after merging all
// strategy signals. Lifetime is a single evaluation cycle.
type Decision struct {
	Symbol    string
	Direction Direction
	Strength  float64
	Reason    string
	Signals   []Signal
}

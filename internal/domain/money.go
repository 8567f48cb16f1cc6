package domain

import "math"

// Amount is a monetary value in integer minor units (cents). The core never
// holds fractional amounts; conversion from major units happens exactly once
// at the service boundary.
type Amount int64

const minorPerMajor = 100

// AmountFromMajor converts a boundary-supplied major-unit value (dollars)
// into minor units, rounding half away from zero.
func AmountFromMajor(major float64) Amount {
	return Amount(math.Round(major * minorPerMajor))
}

// Major renders the amount back in major units for boundary responses.
func (a Amount) Major() float64 {
	return float64(a) / minorPerMajor
}

func (a Amount) Positive() bool { return a > 0 }

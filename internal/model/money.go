package model

import (
	"fmt"
	"math"
)

// Currency is the enumerated set of currencies this system understands.
type Currency string

const (
	ARS Currency = "ARS"
	USD Currency = "USD"
)

func (c Currency) Valid() bool {
	return c == ARS || c == USD
}

// Amount is a fixed-point quantity stored in minor units (cents) so that
// comparisons never drift the way float64 arithmetic would. All ledger
// amounts carry exactly two fractional digits.
type Amount struct {
	Cents int64
}

// AmountFromFloat rounds a float64 (as decoded from an LLM response or a
// spreadsheet cell) to the nearest cent.
func AmountFromFloat(v float64) Amount {
	return Amount{Cents: int64(math.Round(v * 100))}
}

func (a Amount) Float() float64 {
	return float64(a.Cents) / 100
}

func (a Amount) String() string {
	return fmt.Sprintf("%.2f", a.Float())
}

func (a Amount) Add(b Amount) Amount {
	return Amount{Cents: a.Cents + b.Cents}
}

func (a Amount) Sub(b Amount) Amount {
	return Amount{Cents: a.Cents - b.Cents}
}

func (a Amount) Abs() Amount {
	if a.Cents < 0 {
		return Amount{Cents: -a.Cents}
	}
	return a
}

// DefaultEpsilonCents is the default absolute tolerance (1 minor unit) used
// when comparing two amounts in the same currency.
const DefaultEpsilonCents = 1

// EqualWithin reports whether a and b differ by no more than epsilonCents.
func (a Amount) EqualWithin(b Amount, epsilonCents int64) bool {
	d := a.Sub(b).Abs()
	return d.Cents <= epsilonCents
}

// WithinPercent reports whether a and b differ by no more than pct percent
// of b (used for cross-currency tolerance bands).
func (a Amount) WithinPercent(b Amount, pct float64) bool {
	if b.Cents == 0 {
		return a.Cents == 0
	}
	diff := math.Abs(a.Float() - b.Float())
	band := math.Abs(b.Float()) * pct / 100
	return diff <= band
}

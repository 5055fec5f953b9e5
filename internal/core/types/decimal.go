// Package types provides common type aliases and utilities.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Quantity is a weight or count in the product's base unit (kg for fish).
type Quantity = decimal.Decimal

const (
	// MoneyPlaces is the number of fractional digits kept for amounts.
	MoneyPlaces int32 = 2
	// QuantityPlaces matches NUMERIC(15,4) columns.
	QuantityPlaces int32 = 4
)

var kgPerTon = decimal.NewFromInt(1000)

// NewMoney creates a Money value from a float.
// WARNING: Use NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// RoundMoney rounds half away from zero to 2 places, which is half-up for
// every non-negative amount the ledger produces.
func RoundMoney(m Money) Money {
	return m.Round(MoneyPlaces)
}

// RoundQuantity rounds a quantity to storage precision.
func RoundQuantity(q Quantity) Quantity {
	return q.Round(QuantityPlaces)
}

// KgToTons converts kilograms to metric tons.
func KgToTons(kg Quantity) Quantity {
	return kg.Div(kgPerTon)
}

// MinDec returns the smaller of a and b.
func MinDec(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxDec returns the larger of a and b.
func MaxDec(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// DecPtr returns a pointer to a copy of d.
func DecPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// DecOrZero dereferences d, treating nil as zero.
func DecOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// BusinessDate truncates t to its calendar date in t's own location.
func BusinessDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of calendar days from a to b (negative if b is before a).
func DaysBetween(a, b time.Time) int {
	da := BusinessDate(a)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, a.Location())
	return int(db.Sub(da).Hours() / 24)
}

// Package deduction converts gross weight into billable net weight.
//
// Formulas are referenced by id; lines and lots snapshot the computed weights,
// so editing a formula never rewrites history.
package deduction

import (
	"github.com/shopspring/decimal"

	"coldledger/internal/core/types"
)

// Method is the deduction policy of a formula.
type Method string

const (
	MethodNone         Method = "none"
	MethodPercentage   Method = "percentage"
	MethodFixed        Method = "fixed"
	MethodFixedPerUnit Method = "fixed_per_unit"
)

// IsValid reports whether m is a known method.
func (m Method) IsValid() bool {
	switch m {
	case MethodNone, MethodPercentage, MethodFixed, MethodFixedPerUnit:
		return true
	}
	return false
}

// Weights is the result of applying a formula to a gross weight.
type Weights struct {
	Gross types.Quantity `json:"grossWeight"`
	Net   types.Quantity `json:"netWeight"`
	Tare  types.Quantity `json:"tareWeight"`
}

// NetWeight applies method/value to gross. units is the container count used by
// fixed_per_unit; values below one count as one. Unknown methods return gross.
// The result is clamped to [0, gross] and rounded to 2 places.
func NetWeight(method Method, value, gross, units types.Quantity) types.Quantity {
	if !units.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		units = decimal.NewFromInt(1)
	}

	var net types.Quantity
	switch method {
	case MethodPercentage:
		net = gross.Mul(value)
	case MethodFixed:
		net = gross.Sub(value)
	case MethodFixedPerUnit:
		net = gross.Sub(units.Mul(value))
	default:
		net = gross
	}

	net = types.MaxDec(net, decimal.Zero)
	if gross.IsPositive() {
		net = types.MinDec(net, gross)
	}
	return types.RoundMoney(net)
}

// Evaluate returns gross, net and tare for a formula application.
func Evaluate(method Method, value, gross, units types.Quantity) Weights {
	net := NetWeight(method, value, gross, units)
	return Weights{Gross: gross, Net: net, Tare: gross.Sub(net)}
}

package deduction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"coldledger/internal/core/types"
)

func TestNetWeight(t *testing.T) {
	tests := []struct {
		name   string
		method Method
		value  string
		gross  string
		units  string
		want   string
	}{
		{"none", MethodNone, "1", "100", "1", "100"},
		{"one percent", MethodPercentage, "0.99", "100", "1", "99"},
		{"percentage rounds", MethodPercentage, "0.99", "12.345", "1", "12.22"},
		{"fixed", MethodFixed, "2.5", "10", "1", "7.5"},
		{"fixed floors at zero", MethodFixed, "20", "10", "1", "0"},
		{"per unit", MethodFixedPerUnit, "0.5", "100", "8", "96"},
		{"per unit defaults to one", MethodFixedPerUnit, "0.5", "100", "0", "99.5"},
		{"per unit floors at zero", MethodFixedPerUnit, "5", "10", "3", "0"},
		{"unknown returns gross", Method("bogus"), "0.5", "42", "1", "42"},
		{"multiplier above one is clamped", MethodPercentage, "1.2", "10", "1", "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NetWeight(tt.method, types.MustMoney(tt.value), types.MustMoney(tt.gross), types.MustMoney(tt.units))
			assert.True(t, got.Equal(types.MustMoney(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestEvaluate_NetNeverExceedsGross(t *testing.T) {
	for _, m := range []Method{MethodNone, MethodPercentage, MethodFixed, MethodFixedPerUnit} {
		w := Evaluate(m, types.MustMoney("0.3"), types.MustMoney("57.25"), types.MustMoney("4"))
		assert.True(t, w.Net.LessThanOrEqual(w.Gross), string(m))
		assert.False(t, w.Net.IsNegative(), string(m))
		assert.True(t, w.Tare.Add(w.Net).Equal(w.Gross), string(m))
	}
}

func TestEvaluate_OnePercentRoundTrip(t *testing.T) {
	w := Evaluate(MethodPercentage, types.MustMoney("0.99"), types.MustMoney("100"), types.MustMoney("1"))

	assert.Equal(t, "99.00", w.Net.StringFixed(2))
	assert.Equal(t, "1.00", w.Tare.StringFixed(2))
}

func TestFormula_Display(t *testing.T) {
	f := NewFormula("1%", MethodPercentage, types.MustMoney("0.99"))
	assert.Equal(t, "net = gross × 0.99 (1.0% off)", f.Display())
}

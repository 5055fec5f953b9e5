package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundMoney_HalfUp(t *testing.T) {
	assert.Equal(t, "2.35", RoundMoney(MustMoney("2.345")).StringFixed(2))
	assert.Equal(t, "2.34", RoundMoney(MustMoney("2.3449")).StringFixed(2))
	assert.Equal(t, "10.00", RoundMoney(MustMoney("9.995")).StringFixed(2))
}

func TestKgToTons(t *testing.T) {
	assert.True(t, KgToTons(MustMoney("2500")).Equal(MustMoney("2.5")))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 12, 1, 23, 30, 0, 0, time.UTC)
	b := time.Date(2024, 12, 3, 0, 15, 0, 0, time.UTC)
	assert.Equal(t, 2, DaysBetween(a, b))
	assert.Equal(t, 0, DaysBetween(a, a))
	assert.Equal(t, -2, DaysBetween(b, a))
}

func TestMinMaxDec(t *testing.T) {
	a, b := MustMoney("1.5"), MustMoney("2")
	assert.True(t, MinDec(a, b).Equal(a))
	assert.True(t, MaxDec(a, b).Equal(b))
	assert.True(t, DecOrZero(nil).IsZero())
	assert.True(t, DecOrZero(DecPtr(b)).Equal(b))
}

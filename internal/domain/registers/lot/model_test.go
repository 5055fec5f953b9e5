package lot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"coldledger/internal/core/types"
)

func newTestLot(initial string) *Lot {
	q := types.MustMoney(initial)
	start := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	return &Lot{
		GrossWeight:        q,
		CurrentGrossWeight: q,
		InitialQuantity:    q,
		CurrentQuantity:    q,
		ReservedQuantity:   types.Zero(),
		CostPrice:          types.MustMoney("10"),
		FreightCost:        types.Zero(),
		StorageRate:        types.Zero(),
		ExtraCost:          types.Zero(),
		StorageStartDate:   start,
		ReceivedAt:         start,
		Status:             StatusActive,
	}
}

func TestRefreshStatus(t *testing.T) {
	l := newTestLot("100")

	l.setCurrent(types.MustMoney("100"))
	assert.Equal(t, StatusActive, l.Status)

	l.setCurrent(types.MustMoney("40"))
	assert.Equal(t, StatusPartial, l.Status)
	assert.Equal(t, "40", l.CurrentGrossWeight.String())

	l.setCurrent(types.Zero())
	assert.Equal(t, StatusDepleted, l.Status)
}

func TestRealCostPrice_PlainPurchase(t *testing.T) {
	l := newTestLot("100")
	asOf := time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)

	assert.True(t, l.RealCostPrice(asOf).Equal(types.MustMoney("10")))
}

func TestRealCostPrice_WithFreightStorageAndExtra(t *testing.T) {
	l := newTestLot("100")
	l.GrossWeight = types.MustMoney("110")
	l.CurrentGrossWeight = types.MustMoney("110")
	l.FreightCost = types.MustMoney("50")
	l.ExtraCost = types.MustMoney("20")
	l.StorageRate = types.MustMoney("0.01")

	// 10 days: storage = 110 × 0.01 × 10 = 11
	asOf := time.Date(2024, 12, 11, 15, 0, 0, 0, time.UTC)
	// (1000 + 50 + 11 + 20) / 100
	assert.True(t, l.RealCostPrice(asOf).Equal(types.MustMoney("10.81")), l.RealCostPrice(asOf).String())

	// Half consumed: shares halve, storage follows current gross.
	l.setCurrent(types.MustMoney("50"))
	// (500 + 25 + 55×0.01×10 + 10) / 50 = 540.5 / 50
	assert.True(t, l.RealCostPrice(asOf).Equal(types.MustMoney("10.81")), l.RealCostPrice(asOf).String())
}

func TestRealCostPrice_DepletedFallsBackToCostPrice(t *testing.T) {
	l := newTestLot("10")
	l.FreightCost = types.MustMoney("99")
	l.setCurrent(types.Zero())

	assert.True(t, l.RealCostPrice(time.Now()).Equal(types.MustMoney("10")))
}

func TestStorageDays_NeverNegative(t *testing.T) {
	l := newTestLot("1")
	assert.Equal(t, 0, l.StorageDays(l.StorageStartDate.AddDate(0, 0, -3)))
	assert.Equal(t, 5, l.StorageDays(l.StorageStartDate.AddDate(0, 0, 5)))
}

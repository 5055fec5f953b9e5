package storagefee

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain/catalogs/party"
	"coldledger/internal/domain/registers/lot"
)

type fakeLots struct {
	byLine   map[id.ID][]lot.Allocation
	earliest *lot.Lot
}

func (f *fakeLots) AllocationsByLine(_ context.Context, lineID id.ID) ([]lot.Allocation, error) {
	return f.byLine[lineID], nil
}

func (f *fakeLots) EarliestActive(_ context.Context, _, _ id.ID) (*lot.Lot, error) {
	return f.earliest, nil
}

var (
	warehouse = party.RoleWarehouse
	transit   = party.RoleWarehouse | party.RoleTransit
	customer  = party.RoleCustomer
	supplier  = party.RoleSupplier
)

func day(d int) time.Time {
	return time.Date(2024, 12, d, 0, 0, 0, 0, time.UTC)
}

func TestLegFor(t *testing.T) {
	tests := []struct {
		orderType string
		source    party.Role
		target    party.Role
		want      Leg
	}{
		{"purchase", supplier, warehouse, LegInbound},
		{"return_in", customer, warehouse, LegInbound},
		{"sale", warehouse, customer, LegOutbound},
		{"return_out", warehouse, supplier, LegOutbound},
		{"loading", warehouse, transit, LegOutbound},
		{"loading", supplier, transit, LegNone},
		{"unloading", transit, warehouse, LegInbound},
		{"unloading", transit, customer, LegNone},
		{"transfer", warehouse, warehouse, LegNone},
	}
	for _, tt := range tests {
		t.Run(tt.orderType, func(t *testing.T) {
			assert.Equal(t, tt.want, LegFor(tt.orderType, tt.source, tt.target))
		})
	}
}

func TestStorageDays(t *testing.T) {
	assert.Equal(t, 1, StorageDays(day(2), day(2)))
	assert.Equal(t, 10, StorageDays(day(1), day(10)))
	assert.Equal(t, 1, StorageDays(day(10), day(1)))
}

func TestCalculate_Inbound(t *testing.T) {
	c := NewCalculator(DefaultConfig(), &fakeLots{})
	res, err := c.Calculate(context.Background(), Request{
		OrderType:   "purchase",
		SourceRoles: supplier,
		TargetRoles: warehouse,
		Lines:       []Line{{ID: id.New(), Quantity: types.MustMoney("2500")}},
	})
	require.NoError(t, err)
	assert.Equal(t, LegInbound, res.Leg)
	assert.Equal(t, "37.50", res.Fee.StringFixed(2))
}

func TestCalculate_OutboundWeightedByAllocation(t *testing.T) {
	lineID := id.New()
	lots := &fakeLots{byLine: map[id.ID][]lot.Allocation{
		lineID: {
			{Kind: lot.KindFIFO, Quantity: types.MustMoney("600"), ReceivedAt: day(1)},
			{Kind: lot.KindFIFO, Quantity: types.MustMoney("400"), ReceivedAt: day(6)},
		},
	}}
	c := NewCalculator(DefaultConfig(), lots)

	// days: 10 and 5, weighted mean 8.
	res, err := c.Calculate(context.Background(), Request{
		OrderType:    "sale",
		SourceID:     id.New(),
		SourceRoles:  warehouse,
		TargetRoles:  customer,
		BusinessDate: day(10),
		Lines:        []Line{{ID: lineID, Quantity: types.MustMoney("1000")}},
	})
	require.NoError(t, err)
	assert.Equal(t, LegOutbound, res.Leg)
	assert.True(t, res.AvgDays.Equal(types.MustMoney("8")))
	// 1t × 15 + 1t × 8d × 1.5
	assert.Equal(t, "27.00", res.Fee.StringFixed(2))
}

func TestCalculate_OutboundFallbacks(t *testing.T) {
	req := Request{
		OrderType:    "sale",
		SourceID:     id.New(),
		SourceRoles:  warehouse,
		TargetRoles:  customer,
		BusinessDate: day(10),
		Lines:        []Line{{ID: id.New(), ProductID: id.New(), Quantity: types.MustMoney("2000")}},
	}

	c := NewCalculator(DefaultConfig(), &fakeLots{earliest: &lot.Lot{ReceivedAt: day(8)}})
	res, err := c.Calculate(context.Background(), req)
	require.NoError(t, err)
	// 3 days from the earliest lot: 2 × 15 + 2 × 3 × 1.5
	assert.Equal(t, "39.00", res.Fee.StringFixed(2))

	c = NewCalculator(DefaultConfig(), &fakeLots{})
	res, err = c.Calculate(context.Background(), req)
	require.NoError(t, err)
	// default 7 days: 2 × 15 + 2 × 7 × 1.5
	assert.Equal(t, "51.00", res.Fee.StringFixed(2))
}

func TestCalculate_TransferIsFree(t *testing.T) {
	c := NewCalculator(DefaultConfig(), &fakeLots{})
	res, err := c.Calculate(context.Background(), Request{
		OrderType:   "transfer",
		SourceRoles: warehouse,
		TargetRoles: warehouse,
		Lines:       []Line{{ID: id.New(), Quantity: types.MustMoney("1000")}},
	})
	require.NoError(t, err)
	assert.Equal(t, LegNone, res.Leg)
	assert.True(t, res.Fee.IsZero())
}

func TestPreview(t *testing.T) {
	c := NewCalculator(DefaultConfig(), nil)
	res := c.Preview("loading", warehouse, transit, types.MustMoney("1000"), 0)
	assert.Equal(t, "25.50", res.Fee.StringFixed(2))

	res = c.Preview("unloading", transit, warehouse, types.MustMoney("1000"), 0)
	assert.Equal(t, "15.00", res.Fee.StringFixed(2))
}

package stock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain/registers/stock"
	"coldledger/internal/infrastructure/storage/memory"
)

const actor = "tester"

func newService() (*stock.Service, stock.Key) {
	store := memory.NewStore()
	svc := stock.NewService(memory.NewStockRepo(store), memory.NewTxManager(store))
	return svc, stock.NewKey(id.New(), id.New(), nil)
}

func qty(s string) types.Quantity { return types.MustMoney(s) }

func TestAddAndReduce(t *testing.T) {
	ctx := context.Background()
	svc, key := newService()

	st, err := svc.Add(ctx, key, qty("40"), stock.Ref{}, actor)
	require.NoError(t, err)
	assert.True(t, st.Quantity.Equal(qty("40")))

	st, err = svc.Reduce(ctx, key, qty("15"), true, stock.Ref{}, actor)
	require.NoError(t, err)
	assert.True(t, st.Quantity.Equal(qty("25")))

	_, err = svc.Reduce(ctx, key, qty("30"), true, stock.Ref{}, actor)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	// Unchecked reductions may go negative.
	st, err = svc.Reduce(ctx, key, qty("30"), false, stock.Ref{}, actor)
	require.NoError(t, err)
	assert.True(t, st.Quantity.Equal(qty("-5")))

	_, err = svc.Add(ctx, key, qty("0"), stock.Ref{}, actor)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestReduceMissingRowChecked(t *testing.T) {
	svc, key := newService()
	_, err := svc.Reduce(context.Background(), key, qty("1"), true, stock.Ref{}, actor)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	st, err := svc.Find(context.Background(), key)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestReserveRelease(t *testing.T) {
	ctx := context.Background()
	svc, key := newService()
	_, err := svc.Add(ctx, key, qty("10"), stock.Ref{}, actor)
	require.NoError(t, err)

	st, err := svc.Reserve(ctx, key, qty("8"), stock.Ref{}, actor)
	require.NoError(t, err)
	assert.True(t, st.Available().Equal(qty("2")))

	_, err = svc.Reserve(ctx, key, qty("3"), stock.Ref{}, actor)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	st, err = svc.Release(ctx, key, qty("20"), stock.Ref{}, actor)
	require.NoError(t, err)
	assert.True(t, st.ReservedQuantity.IsZero())

	_, err = svc.Reserve(ctx, key, qty("4"), stock.Ref{}, actor)
	require.NoError(t, err)
	st, err = svc.Reduce(ctx, key, qty("6"), true, stock.Ref{}, actor)
	require.NoError(t, err)
	assert.True(t, st.Quantity.Equal(qty("4")))
	assert.True(t, st.ReservedQuantity.IsZero())
}

func TestAdjustAndRevert(t *testing.T) {
	ctx := context.Background()
	svc, key := newService()
	_, err := svc.Add(ctx, key, qty("10"), stock.Ref{}, actor)
	require.NoError(t, err)

	_, err = svc.Adjust(ctx, key, qty("-11"), stock.Ref{}, actor)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	st, err := svc.AdjustTo(ctx, mustFind(t, svc, key).ID, qty("7"), "count", actor)
	require.NoError(t, err)
	assert.True(t, st.Quantity.Equal(qty("7")))

	flows, err := svc.ListFlows(ctx, stock.FlowFilter{StockID: &st.ID})
	require.NoError(t, err)
	require.NotEmpty(t, flows.Items)
	adjust := flows.Items[0]
	assert.Equal(t, stock.FlowAdjust, adjust.Type)
	assert.True(t, adjust.QuantityChange.Equal(qty("-3")))

	st, err = svc.RevertFlow(ctx, adjust.ID, "", actor)
	require.NoError(t, err)
	assert.True(t, st.Quantity.Equal(qty("10")))

	_, err = svc.RevertFlow(ctx, adjust.ID, "", actor)
	assert.True(t, apperror.HasCode(err, apperror.CodeConsistency))

	flows, err = svc.ListFlows(ctx, stock.FlowFilter{StockID: &st.ID})
	require.NoError(t, err)
	inFlow := flows.Items[len(flows.Items)-1]
	assert.Equal(t, stock.FlowIn, inFlow.Type)
	_, err = svc.RevertFlow(ctx, inFlow.ID, "", actor)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestCleanupEmpty(t *testing.T) {
	ctx := context.Background()
	svc, key := newService()
	_, err := svc.Add(ctx, key, qty("5"), stock.Ref{}, actor)
	require.NoError(t, err)
	_, err = svc.Reduce(ctx, key, qty("5"), true, stock.Ref{}, actor)
	require.NoError(t, err)

	n, err := svc.CleanupEmpty(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, err := svc.Find(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, st)
}

type fixedHistory []stock.Delta

func (h fixedHistory) CompletedLegs(context.Context) ([]stock.Delta, error) { return h, nil }

func TestRecomputeCreatesMissingRows(t *testing.T) {
	ctx := context.Background()
	svc, key := newService()
	other := stock.NewKey(id.New(), key.ProductID, nil)

	_, err := svc.SetOpening(ctx, key, qty("3"), "opening", actor)
	require.NoError(t, err)
	svc.SetHistory(fixedHistory{
		{Key: key, Quantity: qty("10")},
		{Key: other, Quantity: qty("4")},
	})

	report, err := svc.Recompute(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Corrected)
	assert.Equal(t, 1, report.Created)
	assert.True(t, mustFind(t, svc, key).Quantity.Equal(qty("13")))
	assert.True(t, mustFind(t, svc, other).Quantity.Equal(qty("4")))

	report, err = svc.Recompute(ctx, actor)
	require.NoError(t, err)
	assert.Zero(t, report.Corrected)
	assert.Zero(t, report.Created)
}

func TestRecomputeWithoutHistory(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Recompute(context.Background(), actor)
	assert.Error(t, err)
}

func mustFind(t *testing.T, svc *stock.Service, key stock.Key) *stock.Stock {
	t.Helper()
	st, err := svc.Find(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, st)
	return st
}

package order_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldledger/internal/app"
	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	corenumerator "coldledger/internal/core/numerator"
	"coldledger/internal/core/types"
	"coldledger/internal/domain/catalogs/deduction"
	"coldledger/internal/domain/catalogs/party"
	"coldledger/internal/domain/catalogs/product"
	"coldledger/internal/domain/documents/order"
	"coldledger/internal/domain/registers/account"
	"coldledger/internal/domain/registers/lot"
	"coldledger/internal/domain/registers/stock"
	"coldledger/internal/infrastructure/numerator"
	"coldledger/internal/infrastructure/storage/memory"
)

const actor = "tester"

var day1 = time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return day1.AddDate(0, 0, n-1) }

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	svc   *app.Services
	repos app.Repositories

	supplier  *party.Party
	customer  *party.Party
	warehouse *party.Party
	carrier   *party.Party
	fish      *product.Product
}

func newFixture(t *testing.T, strict bool) *fixture {
	t.Helper()
	return newFixtureWith(t, strict, nil)
}

func newFixtureWith(t *testing.T, strict bool, wrap func(*app.Repositories)) *fixture {
	t.Helper()
	store := memory.NewStore()
	repos := app.MemoryRepositories(store, numerator.NewLocal())
	if wrap != nil {
		wrap(&repos)
	}
	opts := app.DefaultOptions()
	opts.StrictAllocation = strict

	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: store,
		svc:   app.NewServices(repos, opts),
		repos: repos,
	}
	f.supplier = f.party("SUP-1", "North Sea Fisheries", party.RoleSupplier)
	f.customer = f.party("CUS-1", "Harbour Market", party.RoleCustomer)
	f.warehouse = f.party("WH-1", "Cold Store One", party.RoleWarehouse)
	f.carrier = f.party("LOG-1", "Reefer Lines", party.RoleLogistics)

	f.fish = product.NewProduct("COD", "Atlantic cod")
	require.NoError(t, f.svc.Products.Create(f.ctx, f.fish, actor))
	return f
}

func (f *fixture) party(code, name string, roles party.Role) *party.Party {
	p := party.NewParty(code, name, roles)
	require.NoError(f.t, f.svc.Parties.Create(f.ctx, p, actor))
	return p
}

func (f *fixture) balance(p *party.Party) string {
	got, err := f.svc.Parties.GetByID(f.ctx, p.ID)
	require.NoError(f.t, err)
	return got.CurrentBalance.StringFixed(2)
}

func (f *fixture) onHand() string {
	return f.onHandAt(f.warehouse)
}

func (f *fixture) onHandAt(p *party.Party) string {
	st, err := f.svc.Stock.Find(f.ctx, stock.NewKey(p.ID, f.fish.ID, nil))
	require.NoError(f.t, err)
	if st == nil {
		return "0.0000"
	}
	return st.Quantity.StringFixed(4)
}

func (f *fixture) line(qty, price string) order.LineInput {
	return order.LineInput{
		ProductID: f.fish.ID,
		Quantity:  types.MustMoney(qty),
		UnitPrice: types.MustMoney(price),
	}
}

func (f *fixture) create(t order.Type, src, dst *party.Party, date time.Time, lines ...order.LineInput) *order.Order {
	o, err := f.svc.Orders.Create(f.ctx, order.Input{
		Type:      t,
		SourceID:  src.ID,
		TargetID:  dst.ID,
		OrderDate: date,
		Lines:     lines,
	}, actor)
	require.NoError(f.t, err)
	return o
}

func (f *fixture) complete(o *order.Order) *order.Order {
	done, err := f.svc.Orders.Complete(f.ctx, o.ID, "", actor)
	require.NoError(f.t, err)
	return done
}

func (f *fixture) purchase(date time.Time, qty, price string) *order.Order {
	return f.complete(f.create(order.TypePurchase, f.supplier, f.warehouse, date, f.line(qty, price)))
}

func (f *fixture) sale(date time.Time, qty, price string) *order.Order {
	return f.complete(f.create(order.TypeSale, f.warehouse, f.customer, date, f.line(qty, price)))
}

func (f *fixture) lotsOf(o *order.Order) []*lot.Lot {
	lots, err := f.svc.Lots.LotsBySourceOrder(f.ctx, o.ID)
	require.NoError(f.t, err)
	return lots
}

func TestPurchaseCreatesLotStockAndPayable(t *testing.T) {
	f := newFixture(t, false)

	po := f.purchase(day(1), "100", "10")

	assert.Equal(t, order.StatusCompleted, po.Status)
	assert.Equal(t, "PO20241201001", po.OrderNo)
	assert.Equal(t, "1000.00", po.FinalAmount.StringFixed(2))
	assert.Equal(t, "100.0000", f.onHand())

	lots := f.lotsOf(po)
	require.Len(t, lots, 1)
	assert.Equal(t, "PH20241201-001", lots[0].LotNo)
	assert.True(t, lots[0].CurrentQuantity.Equal(types.MustMoney("100")))
	assert.True(t, lots[0].CostPrice.Equal(types.MustMoney("10")))
	require.NotNil(t, po.Lines[0].LotID)
	assert.Equal(t, lots[0].ID, *po.Lines[0].LotID)

	entries, err := f.svc.Accounts.EntriesByOrder(f.ctx, po.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, account.Payable, entries[0].Type)
	assert.Equal(t, f.supplier.ID, entries[0].PartyID)
	assert.Equal(t, "-1000.00", f.balance(f.supplier))
}

func TestPurchaseWithDeductionFormula(t *testing.T) {
	f := newFixture(t, false)
	formula := deduction.NewFormula("Ice glaze 1%", deduction.MethodPercentage, decimal.RequireFromString("0.99"))
	require.NoError(t, f.svc.Formulas.Create(f.ctx, formula, actor))

	gross := types.MustMoney("100")
	li := f.line("0", "10")
	li.GrossWeight = &gross
	li.FormulaID = &formula.ID
	po := f.complete(f.create(order.TypePurchase, f.supplier, f.warehouse, day(1), li))

	assert.Equal(t, "99.00", po.Lines[0].Quantity.StringFixed(2))
	require.NotNil(t, po.Lines[0].TareWeight)
	assert.Equal(t, "1.00", po.Lines[0].TareWeight.StringFixed(2))

	lots := f.lotsOf(po)
	require.Len(t, lots, 1)
	assert.Equal(t, "99.00", lots[0].InitialQuantity.StringFixed(2))
	assert.Equal(t, "1.00", lots[0].TareWeight.StringFixed(2))
	assert.Equal(t, "100.00", lots[0].GrossWeight.StringFixed(2))
	assert.Equal(t, "99.0000", f.onHand())
	assert.Equal(t, "-990.00", f.balance(f.supplier))
}

func TestSaleAllocatesFIFOAndBooksReceivable(t *testing.T) {
	f := newFixture(t, false)
	po := f.purchase(day(1), "100", "10")

	so := f.sale(day(2), "30", "15")

	lots := f.lotsOf(po)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].CurrentQuantity.Equal(types.MustMoney("70")))
	assert.Equal(t, lot.StatusPartial, lots[0].Status)

	allocs, err := f.svc.Lots.AllocationsByOrder(f.ctx, so.ID)
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.True(t, allocs[0].Quantity.Equal(types.MustMoney("30")))
	assert.True(t, allocs[0].CostPrice.Equal(types.MustMoney("10")))

	l := so.Lines[0]
	require.NotNil(t, l.CostAmount)
	require.NotNil(t, l.Profit)
	assert.Equal(t, "300.00", l.CostAmount.StringFixed(2))
	assert.Equal(t, "150.00", l.Profit.StringFixed(2))
	assert.Equal(t, "70.0000", f.onHand())
	assert.Equal(t, "450.00", f.balance(f.customer))
}

func TestSaleCannotOversellStock(t *testing.T) {
	f := newFixture(t, false)
	f.purchase(day(1), "10", "10")

	so := f.create(order.TypeSale, f.warehouse, f.customer, day(2), f.line("11", "15"))
	_, err := f.svc.Orders.Complete(f.ctx, so.ID, "", actor)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	got, err := f.svc.Orders.Get(f.ctx, so.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDraft, got.Status)
	assert.Equal(t, "10.0000", f.onHand())
}

func TestFIFOConsumesOldestLotFirst(t *testing.T) {
	f := newFixture(t, false)
	older := f.purchase(day(1), "50", "10")
	newer := f.purchase(day(2), "50", "12")

	so := f.sale(day(3), "70", "20")

	allocs, err := f.svc.Lots.AllocationsByOrder(f.ctx, so.ID)
	require.NoError(t, err)
	require.Len(t, allocs, 2)
	assert.Equal(t, f.lotsOf(older)[0].ID, allocs[0].LotID)
	assert.True(t, allocs[0].Quantity.Equal(types.MustMoney("50")))
	assert.Equal(t, f.lotsOf(newer)[0].ID, allocs[1].LotID)
	assert.True(t, allocs[1].Quantity.Equal(types.MustMoney("20")))

	assert.Equal(t, "740.00", so.Lines[0].CostAmount.StringFixed(2))
	assert.Equal(t, "660.00", so.Lines[0].Profit.StringFixed(2))
	assert.Equal(t, lot.StatusDepleted, f.lotsOf(older)[0].Status)
}

func TestAllocationShortfall(t *testing.T) {
	openingOnly := func(f *fixture) {
		_, err := f.svc.Stock.SetOpening(f.ctx, stock.NewKey(f.warehouse.ID, f.fish.ID, nil), types.MustMoney("50"), "opening", actor)
		require.NoError(f.t, err)
	}

	t.Run("lenient records the shortfall", func(t *testing.T) {
		f := newFixture(t, false)
		openingOnly(f)

		so := f.sale(day(2), "30", "15")
		assert.True(t, so.Lines[0].Shortfall.Equal(types.MustMoney("30")))
		assert.Nil(t, so.Lines[0].CostAmount)
		assert.Equal(t, "20.0000", f.onHand())

		flows, err := f.svc.Orders.Flows(f.ctx, so.ID)
		require.NoError(t, err)
		var shortfall *order.AllocationShortfall
		for _, fl := range flows {
			if m, ok := fl.Meta.(order.AllocationShortfall); ok {
				shortfall = &m
			}
		}
		require.NotNil(t, shortfall)
		require.Len(t, shortfall.Lines, 1)
		assert.True(t, shortfall.Lines[0].Shortfall.Equal(types.MustMoney("30")))
	})

	t.Run("strict rolls the completion back", func(t *testing.T) {
		f := newFixture(t, true)
		openingOnly(f)

		so := f.create(order.TypeSale, f.warehouse, f.customer, day(2), f.line("30", "15"))
		_, err := f.svc.Orders.Complete(f.ctx, so.ID, "", actor)
		require.Error(t, err)
		assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientLotQuantity))

		got, err := f.svc.Orders.Get(f.ctx, so.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusDraft, got.Status)
		assert.Equal(t, "50.0000", f.onHand())
		assert.Equal(t, "0.00", f.balance(f.customer))
	})
}

func TestReturnRestoresOriginalLot(t *testing.T) {
	f := newFixture(t, false)
	po := f.purchase(day(1), "100", "10")
	so := f.sale(day(2), "30", "15")

	res, err := f.svc.Orders.ChangeStatus(f.ctx, so.ID, order.ActionReturn, order.ActionPayload{}, actor)
	require.NoError(t, err)
	ret := res.ReturnOrder
	require.NotNil(t, ret)
	assert.Equal(t, order.TypeReturnIn, ret.Type)
	assert.Equal(t, order.StatusDraft, ret.Status)
	assert.Equal(t, f.customer.ID, ret.SourceID)
	assert.Equal(t, f.warehouse.ID, ret.TargetID)
	require.Len(t, ret.Lines, 1)
	require.NotNil(t, ret.Lines[0].OriginalLineID)
	assert.Equal(t, so.Lines[0].ID, *ret.Lines[0].OriginalLineID)

	left, err := f.svc.Orders.Returnable(f.ctx, so.ID)
	require.NoError(t, err)
	assert.True(t, left[so.Lines[0].ID].IsZero())

	_, err = f.svc.Orders.Return(f.ctx, so.ID, order.ActionPayload{}, actor)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	f.complete(ret)

	left, err = f.svc.Orders.Returnable(f.ctx, so.ID)
	require.NoError(t, err)
	assert.True(t, left[so.Lines[0].ID].IsZero())
	_, err = f.svc.Orders.Return(f.ctx, so.ID, order.ActionPayload{}, actor)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	lots := f.lotsOf(po)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].CurrentQuantity.Equal(types.MustMoney("100")))
	assert.Equal(t, lot.StatusActive, lots[0].Status)
	assert.Empty(t, f.lotsOf(ret))
	assert.Equal(t, "100.0000", f.onHand())
	assert.Equal(t, "0.00", f.balance(f.customer))
}

// brokenLines fails every single-line lookup.
type brokenLines struct {
	order.Repository
}

func (brokenLines) GetLine(ctx context.Context, lineID id.ID) (*order.Line, error) {
	return nil, errors.New("connection reset")
}

func TestSupplierReturnSurfacesLineLookupFailure(t *testing.T) {
	f := newFixtureWith(t, false, func(r *app.Repositories) {
		r.Orders = brokenLines{Repository: r.Orders}
	})
	po := f.purchase(day(1), "100", "10")

	li := f.line("10", "10")
	li.OriginalLineID = &po.Lines[0].ID
	ro := f.create(order.TypeReturnOut, f.warehouse, f.supplier, day(2), li)

	_, err := f.svc.Orders.Complete(f.ctx, ro.ID, "", actor)
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection reset")

	got, err := f.svc.Orders.Get(f.ctx, ro.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDraft, got.Status)
	assert.Equal(t, "100.0000", f.onHand())
}

func TestCancelledReturnFreesQuantity(t *testing.T) {
	f := newFixture(t, false)
	f.purchase(day(1), "100", "10")
	so := f.sale(day(2), "30", "15")

	res, err := f.svc.Orders.Return(f.ctx, so.ID, order.ActionPayload{
		ReturnItems: []order.ReturnItem{{LineID: so.Lines[0].ID, Quantity: types.MustMoney("10")}},
	}, actor)
	require.NoError(t, err)
	assert.True(t, res.ReturnOrder.Lines[0].Quantity.Equal(types.MustMoney("10")))

	left, err := f.svc.Orders.Returnable(f.ctx, so.ID)
	require.NoError(t, err)
	assert.True(t, left[so.Lines[0].ID].Equal(types.MustMoney("20")))

	_, err = f.svc.Orders.Cancel(f.ctx, res.ReturnOrder.ID, "", actor)
	require.NoError(t, err)

	left, err = f.svc.Orders.Returnable(f.ctx, so.ID)
	require.NoError(t, err)
	assert.True(t, left[so.Lines[0].ID].Equal(types.MustMoney("30")))
}

func TestReturnNeedsCompletedReturnableOrder(t *testing.T) {
	f := newFixture(t, false)
	draft := f.create(order.TypePurchase, f.supplier, f.warehouse, day(1), f.line("5", "10"))

	_, err := f.svc.Orders.Return(f.ctx, draft.ID, order.ActionPayload{}, actor)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))
}

func TestDeleteCompletedOrderReverses(t *testing.T) {
	f := newFixture(t, false)
	po := f.purchase(day(1), "100", "10")
	so := f.sale(day(2), "30", "15")

	err := f.svc.Orders.Delete(f.ctx, so.ID, false, actor)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))

	err = f.svc.Orders.Delete(f.ctx, po.ID, true, actor)
	assert.True(t, apperror.HasCode(err, apperror.CodeConsistency))

	require.NoError(t, f.svc.Orders.Delete(f.ctx, so.ID, true, actor))
	assert.Equal(t, "100.0000", f.onHand())
	assert.Equal(t, "0.00", f.balance(f.customer))
	lots := f.lotsOf(po)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].CurrentQuantity.Equal(types.MustMoney("100")))

	_, err = f.svc.Orders.Get(f.ctx, so.ID)
	assert.True(t, apperror.IsNotFound(err))
	archived := f.repos.Archive.(*memory.Archive).List(f.ctx)
	require.Len(t, archived, 1)
	assert.Equal(t, so.OrderNo, archived[0].OrderNo)
	assert.True(t, archived[0].Snapshot.Forced)

	require.NoError(t, f.svc.Orders.Delete(f.ctx, po.ID, true, actor))
	assert.Equal(t, "0.0000", f.onHand())
	assert.Empty(t, f.lotsOf(po))
	assert.Equal(t, "0.00", f.balance(f.supplier))
}

func TestDeleteDraftNeedsNoForce(t *testing.T) {
	f := newFixture(t, false)
	draft := f.create(order.TypePurchase, f.supplier, f.warehouse, day(1), f.line("5", "10"))

	require.NoError(t, f.svc.Orders.Delete(f.ctx, draft.ID, false, actor))
	_, err := f.svc.Orders.Get(f.ctx, draft.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestRecomputeIsIdempotent(t *testing.T) {
	f := newFixture(t, false)
	f.purchase(day(1), "100", "10")
	f.sale(day(2), "30", "15")

	report, err := f.svc.Stock.Recompute(f.ctx, actor)
	require.NoError(t, err)
	assert.Zero(t, report.Corrected)
	assert.Zero(t, report.Created)

	key := stock.NewKey(f.warehouse.ID, f.fish.ID, nil)
	st, err := f.repos.Stock.GetForUpdate(f.ctx, key)
	require.NoError(t, err)
	st.Quantity = types.MustMoney("999")
	require.NoError(t, f.repos.Stock.Update(f.ctx, st))

	report, err = f.svc.Stock.Recompute(f.ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Corrected)
	assert.Equal(t, "70.0000", f.onHand())

	report, err = f.svc.Stock.Recompute(f.ctx, actor)
	require.NoError(t, err)
	assert.Zero(t, report.Corrected)
}

func TestCombinedRolesFollowOrderType(t *testing.T) {
	f := newFixture(t, false)
	trader := f.party("HUB-1", "Quay Traders", party.RoleCustomer|party.RoleWarehouse)
	grower := f.party("SUP-2", "Fjord Farms", party.RoleSupplier|party.RoleWarehouse)
	f.purchase(day(1), "100", "10")

	so := f.complete(f.create(order.TypeSale, f.warehouse, trader, day(2), f.line("30", "15")))

	assert.Nil(t, so.InboundWarehouseID)
	require.NotNil(t, so.OutboundWarehouseID)
	assert.Equal(t, f.warehouse.ID, *so.OutboundWarehouseID)
	assert.Equal(t, "70.0000", f.onHand())
	assert.Equal(t, "0.0000", f.onHandAt(trader))
	assert.Empty(t, f.lotsOf(so))
	entries, err := f.svc.Accounts.EntriesByOrder(f.ctx, so.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, account.Receivable, entries[0].Type)
	assert.Equal(t, trader.ID, entries[0].PartyID)
	assert.Equal(t, "450.00", f.balance(trader))

	po := f.complete(f.create(order.TypePurchase, grower, f.warehouse, day(3), f.line("20", "10")))

	assert.Nil(t, po.OutboundWarehouseID)
	assert.Equal(t, "90.0000", f.onHand())
	assert.Equal(t, "0.0000", f.onHandAt(grower))
	assert.Equal(t, "-200.00", f.balance(grower))
	lots := f.lotsOf(po)
	require.Len(t, lots, 1)
	require.NotNil(t, lots[0].SourcePartyID)
	assert.Equal(t, grower.ID, *lots[0].SourcePartyID)

	report, err := f.svc.Stock.Recompute(f.ctx, actor)
	require.NoError(t, err)
	assert.Zero(t, report.Corrected)
	assert.Zero(t, report.Created)

	require.NoError(t, f.svc.Orders.Delete(f.ctx, so.ID, true, actor))
	assert.Equal(t, "120.0000", f.onHand())
	assert.Equal(t, "0.0000", f.onHandAt(trader))
	assert.Equal(t, "0.00", f.balance(trader))
}

func TestLoadingFromSupplierAndUnloadingToCustomer(t *testing.T) {
	f := newFixture(t, false)
	truck := f.party("VAN-1", "Reefer van 1", party.RoleWarehouse|party.RoleTransit)

	lo := f.complete(f.create(order.TypeLoading, f.supplier, truck, day(1), f.line("40", "10")))
	assert.Nil(t, lo.OutboundWarehouseID)
	assert.Equal(t, "40.0000", f.onHandAt(truck))
	assert.Equal(t, "-400.00", f.balance(f.supplier))
	require.Len(t, f.lotsOf(lo), 1)

	uo := f.complete(f.create(order.TypeUnloading, truck, f.customer, day(2), f.line("40", "15")))
	assert.Nil(t, uo.InboundWarehouseID)
	assert.Equal(t, "0.0000", f.onHandAt(truck))
	assert.Equal(t, "0.0000", f.onHandAt(f.customer))
	require.NotNil(t, uo.Lines[0].CostAmount)
	assert.Equal(t, "400.00", uo.Lines[0].CostAmount.StringFixed(2))
	assert.Equal(t, "600.00", f.balance(f.customer))
}

func TestStorageFeeLegs(t *testing.T) {
	f := newFixture(t, false)

	po, err := f.svc.Orders.Create(f.ctx, order.Input{
		Type:                order.TypePurchase,
		SourceID:            f.supplier.ID,
		TargetID:            f.warehouse.ID,
		OrderDate:           day(1),
		CalculateStorageFee: true,
		Lines:               []order.LineInput{f.line("2000", "10")},
	}, actor)
	require.NoError(t, err)
	po = f.complete(po)
	assert.Equal(t, "30.00", po.StorageFee.StringFixed(2))
	assert.Equal(t, "inbound", po.StorageFeeLeg)

	so, err := f.svc.Orders.Create(f.ctx, order.Input{
		Type:                order.TypeSale,
		SourceID:            f.warehouse.ID,
		TargetID:            f.customer.ID,
		OrderDate:           day(5),
		CalculateStorageFee: true,
		Lines:               []order.LineInput{f.line("1000", "15")},
	}, actor)
	require.NoError(t, err)
	so = f.complete(so)
	assert.Equal(t, "22.50", so.StorageFee.StringFixed(2))
	assert.Equal(t, "outbound", so.StorageFeeLeg)
	assert.Equal(t, "15022.50", so.FinalAmount.StringFixed(2))

	assert.Equal(t, "-52.50", f.balance(f.warehouse))
	assert.Equal(t, "15000.00", f.balance(f.customer))
}

func TestFreightBilledToCarrier(t *testing.T) {
	f := newFixture(t, false)
	carrierID := f.carrier.ID
	li := f.line("100", "10")
	li.ShippingCost = types.MustMoney("80")

	po, err := f.svc.Orders.Create(f.ctx, order.Input{
		Type:             order.TypePurchase,
		SourceID:         f.supplier.ID,
		TargetID:         f.warehouse.ID,
		LogisticsPartyID: &carrierID,
		OrderDate:        day(1),
		Lines:            []order.LineInput{li},
	}, actor)
	require.NoError(t, err)
	po = f.complete(po)

	assert.Equal(t, "1080.00", po.FinalAmount.StringFixed(2))
	assert.Equal(t, "-1000.00", f.balance(f.supplier))
	assert.Equal(t, "-80.00", f.balance(f.carrier))
}

func TestPartyRolesAreEnforced(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.Orders.Create(f.ctx, order.Input{
		Type:      order.TypeSale,
		SourceID:  f.supplier.ID,
		TargetID:  f.customer.ID,
		OrderDate: day(1),
		Lines:     []order.LineInput{f.line("1", "1")},
	}, actor)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	notCarrier := f.customer.ID
	_, err = f.svc.Orders.Create(f.ctx, order.Input{
		Type:             order.TypePurchase,
		SourceID:         f.supplier.ID,
		TargetID:         f.warehouse.ID,
		LogisticsPartyID: &notCarrier,
		OrderDate:        day(1),
		Lines:            []order.LineInput{f.line("1", "1")},
	}, actor)
	require.Error(t, err)
}

func TestPaymentsAndAging(t *testing.T) {
	f := newFixture(t, false)
	f.purchase(day(1), "100", "10")

	due := day(12)
	so, err := f.svc.Orders.Create(f.ctx, order.Input{
		Type:      order.TypeSale,
		SourceID:  f.warehouse.ID,
		TargetID:  f.customer.ID,
		OrderDate: day(2),
		DueDate:   &due,
		Lines:     []order.LineInput{f.line("30", "15")},
	}, actor)
	require.NoError(t, err)
	so = f.complete(so)

	entries, err := f.svc.Accounts.EntriesByOrder(f.ctx, so.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entry := entries[0]

	_, err = f.svc.Accounts.ApplyPayment(f.ctx, account.PaymentRequest{
		EntryID: entry.ID, Direction: account.DirectionReceive, Amount: types.MustMoney("500"),
	}, actor)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	pay, err := f.svc.Accounts.ApplyPayment(f.ctx, account.PaymentRequest{
		EntryID: entry.ID, Direction: account.DirectionReceive, Amount: types.MustMoney("200"), PaymentDate: day(3),
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, "250.00", f.balance(f.customer))

	got, err := f.svc.Accounts.Get(f.ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, account.StatusPartial, got.Status)

	aging, err := f.svc.Accounts.Aging(f.ctx, account.Receivable, day(12).AddDate(0, 0, 40))
	require.NoError(t, err)
	assert.Equal(t, "250.00", aging.Total.StringFixed(2))
	assert.Equal(t, "250.00", aging.Totals[account.Bucket31To60].StringFixed(2))
	assert.Equal(t, "100.00", aging.OverdueRate.StringFixed(2))
	require.Len(t, aging.Rows, 1)
	assert.Equal(t, f.customer.ID, aging.Rows[0].PartyID)

	err = f.svc.Orders.Delete(f.ctx, so.ID, true, actor)
	assert.True(t, apperror.HasCode(err, apperror.CodeConsistency))

	require.NoError(t, f.svc.Accounts.DeletePayment(f.ctx, pay.ID, actor))
	assert.Equal(t, "450.00", f.balance(f.customer))
	require.NoError(t, f.svc.Orders.Delete(f.ctx, so.ID, true, actor))
	assert.Equal(t, "0.00", f.balance(f.customer))
}

func TestOpeningBalanceZeroRemovesEntry(t *testing.T) {
	f := newFixture(t, false)

	e, err := f.svc.Accounts.SetOpening(f.ctx, f.customer.ID, account.Receivable, types.MustMoney("500"), day(1), actor)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "500.00", f.balance(f.customer))

	e, err = f.svc.Accounts.SetOpening(f.ctx, f.customer.ID, account.Receivable, types.Zero(), day(1), actor)
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Equal(t, "0.00", f.balance(f.customer))

	typ := account.Receivable
	res, err := f.svc.Accounts.ListEntries(f.ctx, account.EntryFilter{PartyID: &f.customer.ID, Type: &typ})
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	// A fresh opening can be booked again afterwards.
	_, err = f.svc.Accounts.SetOpening(f.ctx, f.customer.ID, account.Receivable, types.MustMoney("80"), day(2), actor)
	require.NoError(t, err)
	assert.Equal(t, "80.00", f.balance(f.customer))
}

func TestLotAdjustmentIsNotRevertibleFromStock(t *testing.T) {
	f := newFixture(t, false)
	po := f.purchase(day(1), "100", "10")
	lots := f.lotsOf(po)
	require.Len(t, lots, 1)

	adjusted, err := f.svc.Lots.Adjust(f.ctx, lots[0].ID, types.MustMoney("90"), "recount", actor)
	require.NoError(t, err)
	assert.Equal(t, "90.0000", adjusted.CurrentQuantity.StringFixed(4))
	assert.Equal(t, "90.0000", f.onHand())

	flows, err := f.svc.Stock.ListFlows(f.ctx, stock.FlowFilter{WarehouseID: &f.warehouse.ID})
	require.NoError(t, err)
	var mirrored *stock.Flow
	for _, fl := range flows.Items {
		if fl.Source == stock.SourceLot {
			mirrored = fl
		}
	}
	require.NotNil(t, mirrored)
	assert.Equal(t, "-10.0000", mirrored.QuantityChange.StringFixed(4))

	_, err = f.svc.Stock.RevertFlow(f.ctx, mirrored.ID, "undo", actor)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	got, err := f.svc.Lots.Get(f.ctx, lots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "90.0000", got.CurrentQuantity.StringFixed(4))
	assert.Equal(t, "90.0000", f.onHand())

	report, err := f.svc.Stock.Recompute(f.ctx, actor)
	require.NoError(t, err)
	assert.Zero(t, report.Corrected)
	assert.Equal(t, "90.0000", f.onHand())
}

func TestAllocateFromLot(t *testing.T) {
	f := newFixture(t, false)
	po := f.purchase(day(1), "100", "10")
	lots := f.lotsOf(po)
	require.Len(t, lots, 1)
	lotID := lots[0].ID

	_, err := f.svc.Lots.Allocate(f.ctx, lotID, types.MustMoney("150"), day(2))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientLotQuantity))
	got, err := f.svc.Lots.Get(f.ctx, lotID)
	require.NoError(t, err)
	assert.Equal(t, "100.0000", got.CurrentQuantity.StringFixed(4))
	assert.Equal(t, lot.StatusActive, got.Status)

	_, err = f.svc.Lots.Allocate(f.ctx, lotID, types.Zero(), day(2))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	cost, err := f.svc.Lots.Allocate(f.ctx, lotID, types.MustMoney("40"), day(2))
	require.NoError(t, err)
	assert.Equal(t, "10.00", cost.StringFixed(2))
	got, err = f.svc.Lots.Get(f.ctx, lotID)
	require.NoError(t, err)
	assert.Equal(t, "60.0000", got.CurrentQuantity.StringFixed(4))
	assert.Equal(t, lot.StatusPartial, got.Status)
}

func TestLotNumberingFailureRollsBackCompletion(t *testing.T) {
	local := numerator.NewLocal()
	lotPrefix := corenumerator.LotConfig().Prefix
	f := newFixtureWith(t, false, func(r *app.Repositories) {
		r.Numerator = &corenumerator.MockGenerator{
			GetNextNumberFunc: func(ctx context.Context, cfg corenumerator.Config, opts *corenumerator.Options, period time.Time) (string, error) {
				if cfg.Prefix == lotPrefix {
					return "", errors.New("sequence unavailable")
				}
				return local.GetNextNumber(ctx, cfg, opts, period)
			},
		}
	})

	po := f.create(order.TypePurchase, f.supplier, f.warehouse, day(1), f.line("100", "10"))
	assert.NotEmpty(t, po.OrderNo)

	_, err := f.svc.Orders.Complete(f.ctx, po.ID, "", actor)
	require.Error(t, err)
	assert.ErrorContains(t, err, "sequence unavailable")

	got, err := f.svc.Orders.Get(f.ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDraft, got.Status)
	assert.Equal(t, "0.0000", f.onHand())
	assert.Empty(t, f.lotsOf(po))
	assert.Equal(t, "0.00", f.balance(f.supplier))
}

func TestUpdateOnlyDrafts(t *testing.T) {
	f := newFixture(t, false)
	po := f.create(order.TypePurchase, f.supplier, f.warehouse, day(1), f.line("10", "10"))

	updated, err := f.svc.Orders.Update(f.ctx, po.ID, order.Input{
		SourceID:  f.supplier.ID,
		TargetID:  f.warehouse.ID,
		OrderDate: day(1),
		Lines:     []order.LineInput{f.line("20", "10")},
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, "200.00", updated.FinalAmount.StringFixed(2))

	f.complete(po)
	_, err = f.svc.Orders.Update(f.ctx, po.ID, order.Input{
		SourceID:  f.supplier.ID,
		TargetID:  f.warehouse.ID,
		OrderDate: day(1),
		Lines:     []order.LineInput{f.line("30", "10")},
	}, actor)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))
}

func TestFlowsRecordHistory(t *testing.T) {
	f := newFixture(t, false)
	po := f.purchase(day(1), "10", "10")

	flows, err := f.svc.Orders.Flows(f.ctx, po.ID)
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, order.FlowCreated, flows[0].Type)
	assert.Equal(t, order.FlowCompleted, flows[1].Type)
	summary, ok := flows[1].Meta.(order.CompletionSummary)
	require.True(t, ok)
	assert.Len(t, summary.LotsCreated, 1)
	assert.Equal(t, 1, summary.Entries)
	assert.False(t, id.IsNil(flows[1].ID))
}

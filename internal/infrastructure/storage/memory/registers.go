package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/domain"
	"coldledger/internal/domain/registers/account"
	"coldledger/internal/domain/registers/lot"
	"coldledger/internal/domain/registers/stock"
)

// --- Stock ---

// StockRepo implements stock.Repository.
type StockRepo struct {
	s *Store
}

// NewStockRepo creates the stock repository.
func NewStockRepo(s *Store) *StockRepo {
	return &StockRepo{s: s}
}

var _ stock.Repository = (*StockRepo)(nil)

func (r *StockRepo) GetForUpdate(ctx context.Context, key stock.Key) (*stock.Stock, error) {
	var out *stock.Stock
	r.s.read(func(t *tables) {
		for _, st := range t.stocks {
			if st.Key() == key {
				out = &st
				return
			}
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("stock", key.String())
	}
	return out, nil
}

func (r *StockRepo) GetByID(ctx context.Context, stockID id.ID) (*stock.Stock, error) {
	var out *stock.Stock
	r.s.read(func(t *tables) {
		if st, ok := t.stocks[stockID]; ok {
			out = &st
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("stock", stockID.String())
	}
	return out, nil
}

func (r *StockRepo) Create(ctx context.Context, st *stock.Stock) error {
	var err error
	r.s.write(func(t *tables) {
		key := st.Key()
		for _, other := range t.stocks {
			if other.Key() == key {
				err = apperror.NewDuplicate("stock", "key", key.String())
				return
			}
		}
		t.stocks[st.ID] = *st
	})
	return err
}

func (r *StockRepo) Update(ctx context.Context, st *stock.Stock) error {
	var err error
	r.s.write(func(t *tables) {
		if _, ok := t.stocks[st.ID]; !ok {
			err = apperror.NewNotFound("stock", st.ID.String())
			return
		}
		t.stocks[st.ID] = *st
	})
	return err
}

func (r *StockRepo) List(ctx context.Context, filter stock.Filter) (domain.ListResult[*stock.Stock], error) {
	var items []*stock.Stock
	r.s.read(func(t *tables) {
		for _, st := range t.stocks {
			switch {
			case filter.WarehouseID != nil && st.WarehouseID != *filter.WarehouseID,
				filter.ProductID != nil && st.ProductID != *filter.ProductID,
				filter.OnlyNonZero && st.IsEmpty(),
				filter.BelowSafety && !st.BelowSafety():
				continue
			}
			items = append(items, &st)
		}
	})
	slices.SortFunc(items, func(a, b *stock.Stock) int {
		return strings.Compare(a.Key().String(), b.Key().String())
	})
	return domain.Page(items, filter.Limit, filter.Offset), nil
}

func (r *StockRepo) ListAll(ctx context.Context) ([]*stock.Stock, error) {
	res, err := r.List(ctx, stock.Filter{})
	return res.Items, err
}

func (r *StockRepo) DeleteEmpty(ctx context.Context) (int, error) {
	n := 0
	r.s.write(func(t *tables) {
		for sid, st := range t.stocks {
			if st.IsEmpty() {
				delete(t.stocks, sid)
				n++
			}
		}
	})
	return n, nil
}

func (r *StockRepo) AppendFlow(ctx context.Context, f *stock.Flow) error {
	r.s.write(func(t *tables) {
		t.stockFlows = append(t.stockFlows, *f)
	})
	return nil
}

func (r *StockRepo) GetFlow(ctx context.Context, flowID id.ID) (*stock.Flow, error) {
	var out *stock.Flow
	r.s.read(func(t *tables) {
		for _, f := range t.stockFlows {
			if f.ID == flowID {
				out = &f
				return
			}
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("stock flow", flowID.String())
	}
	return out, nil
}

func (r *StockRepo) IsFlowReverted(ctx context.Context, flowID id.ID) (bool, error) {
	reverted := false
	r.s.read(func(t *tables) {
		for _, f := range t.stockFlows {
			if id.Matches(f.RevertsFlowID, flowID) {
				reverted = true
				return
			}
		}
	})
	return reverted, nil
}

// ListFlows returns the newest flows first.
func (r *StockRepo) ListFlows(ctx context.Context, filter stock.FlowFilter) (domain.ListResult[*stock.Flow], error) {
	var items []*stock.Flow
	r.s.read(func(t *tables) {
		for _, f := range t.stockFlows {
			switch {
			case filter.StockID != nil && f.StockID != *filter.StockID,
				filter.WarehouseID != nil && f.WarehouseID != *filter.WarehouseID,
				filter.ProductID != nil && f.ProductID != *filter.ProductID,
				filter.OrderID != nil && !id.Matches(f.OrderID, *filter.OrderID),
				filter.Type != nil && f.Type != *filter.Type,
				filter.FromDate != nil && f.OperatedAt.Before(*filter.FromDate),
				filter.ToDate != nil && f.OperatedAt.After(*filter.ToDate):
				continue
			}
			items = append(items, &f)
		}
	})
	slices.Reverse(items)
	return domain.Page(items, filter.Limit, filter.Offset), nil
}

func (r *StockRepo) SumAdjustments(ctx context.Context, sources []stock.FlowSource) ([]stock.Delta, error) {
	sums := make(map[stock.Key]stock.Delta)
	var order []stock.Key
	r.s.read(func(t *tables) {
		for _, f := range t.stockFlows {
			if f.Type != stock.FlowAdjust || !slices.Contains(sources, f.Source) {
				continue
			}
			key := f.Key()
			d, ok := sums[key]
			if !ok {
				d = stock.Delta{Key: key}
				order = append(order, key)
			}
			d.Quantity = d.Quantity.Add(f.QuantityChange)
			sums[key] = d
		}
	})
	out := make([]stock.Delta, 0, len(order))
	for _, k := range order {
		out = append(out, sums[k])
	}
	return out, nil
}

// --- Lots ---

// LotRepo implements lot.Repository.
type LotRepo struct {
	s *Store
}

// NewLotRepo creates the lot repository.
func NewLotRepo(s *Store) *LotRepo {
	return &LotRepo{s: s}
}

var _ lot.Repository = (*LotRepo)(nil)

func byReceipt(a, b *lot.Lot) int {
	if c := a.ReceivedAt.Compare(b.ReceivedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

func (r *LotRepo) Create(ctx context.Context, l *lot.Lot) error {
	var err error
	r.s.write(func(t *tables) {
		for _, other := range t.lots {
			if other.LotNo == l.LotNo {
				err = apperror.NewDuplicate("lot", "lotNo", l.LotNo)
				return
			}
		}
		t.lots[l.ID] = *l
	})
	return err
}

func (r *LotRepo) Update(ctx context.Context, l *lot.Lot) error {
	var err error
	r.s.write(func(t *tables) {
		if _, ok := t.lots[l.ID]; !ok {
			err = apperror.NewNotFound("lot", l.ID.String())
			return
		}
		t.lots[l.ID] = *l
	})
	return err
}

func (r *LotRepo) Delete(ctx context.Context, lotID id.ID) error {
	var err error
	r.s.write(func(t *tables) {
		if _, ok := t.lots[lotID]; !ok {
			err = apperror.NewNotFound("lot", lotID.String())
			return
		}
		delete(t.lots, lotID)
	})
	return err
}

func (r *LotRepo) GetByID(ctx context.Context, lotID id.ID) (*lot.Lot, error) {
	var out *lot.Lot
	r.s.read(func(t *tables) {
		if l, ok := t.lots[lotID]; ok {
			out = &l
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("lot", lotID.String())
	}
	return out, nil
}

func (r *LotRepo) GetForUpdate(ctx context.Context, lotID id.ID) (*lot.Lot, error) {
	return r.GetByID(ctx, lotID)
}

func (r *LotRepo) ListFIFOCandidates(ctx context.Context, productID, warehouseID id.ID) ([]*lot.Lot, error) {
	var out []*lot.Lot
	r.s.read(func(t *tables) {
		for _, l := range t.lots {
			if l.ProductID != productID || l.WarehouseID != warehouseID {
				continue
			}
			if l.Status != lot.StatusActive && l.Status != lot.StatusPartial {
				continue
			}
			out = append(out, &l)
		}
	})
	slices.SortFunc(out, byReceipt)
	return out, nil
}

func (r *LotRepo) ListBySourceOrder(ctx context.Context, orderID id.ID) ([]*lot.Lot, error) {
	var out []*lot.Lot
	r.s.read(func(t *tables) {
		for _, l := range t.lots {
			if id.Matches(l.SourceOrderID, orderID) {
				out = append(out, &l)
			}
		}
	})
	slices.SortFunc(out, byReceipt)
	return out, nil
}

func (r *LotRepo) List(ctx context.Context, filter lot.Filter) (domain.ListResult[*lot.Lot], error) {
	var items []*lot.Lot
	search := strings.ToLower(filter.Search)
	r.s.read(func(t *tables) {
		for _, l := range t.lots {
			switch {
			case filter.ProductID != nil && l.ProductID != *filter.ProductID,
				filter.WarehouseID != nil && l.WarehouseID != *filter.WarehouseID,
				filter.Status != nil && l.Status != *filter.Status,
				filter.SourceOrderID != nil && !id.Matches(l.SourceOrderID, *filter.SourceOrderID),
				filter.OnlyAvailable && !l.Available().IsPositive(),
				search != "" && !strings.Contains(strings.ToLower(l.LotNo), search):
				continue
			}
			items = append(items, &l)
		}
	})
	slices.SortFunc(items, byReceipt)
	return domain.Page(items, filter.Limit, filter.Offset), nil
}

// SummaryByProduct totals lots that still hold quantity, by product id.
func (r *LotRepo) SummaryByProduct(ctx context.Context) ([]lot.ProductSummary, error) {
	sums := make(map[id.ID]*lot.ProductSummary)
	r.s.read(func(t *tables) {
		for _, l := range t.lots {
			if !l.CurrentQuantity.IsPositive() {
				continue
			}
			s, ok := sums[l.ProductID]
			if !ok {
				s = &lot.ProductSummary{ProductID: l.ProductID}
				sums[l.ProductID] = s
			}
			s.LotCount++
			s.TotalQuantity = s.TotalQuantity.Add(l.CurrentQuantity)
			s.TotalGross = s.TotalGross.Add(l.CurrentGrossWeight)
			s.TotalCost = s.TotalCost.Add(l.CostPrice.Mul(l.CurrentQuantity))
		}
	})
	out := make([]lot.ProductSummary, 0, len(sums))
	for _, s := range sums {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b lot.ProductSummary) int {
		return strings.Compare(a.ProductID.String(), b.ProductID.String())
	})
	return out, nil
}

func (r *LotRepo) CreateAllocations(ctx context.Context, allocs []lot.Allocation) error {
	r.s.write(func(t *tables) {
		t.allocations = append(t.allocations, allocs...)
	})
	return nil
}

func (r *LotRepo) allocations(match func(a *lot.Allocation) bool) []lot.Allocation {
	var out []lot.Allocation
	r.s.read(func(t *tables) {
		for i := range t.allocations {
			if match(&t.allocations[i]) {
				out = append(out, t.allocations[i])
			}
		}
	})
	return out
}

func (r *LotRepo) ListAllocationsByOrder(ctx context.Context, orderID id.ID) ([]lot.Allocation, error) {
	return r.allocations(func(a *lot.Allocation) bool { return a.OrderID == orderID }), nil
}

func (r *LotRepo) ListAllocationsByLine(ctx context.Context, lineID id.ID) ([]lot.Allocation, error) {
	return r.allocations(func(a *lot.Allocation) bool { return a.OrderLineID == lineID }), nil
}

func (r *LotRepo) ListAllocationsByLot(ctx context.Context, lotID id.ID) ([]lot.Allocation, error) {
	return r.allocations(func(a *lot.Allocation) bool { return a.LotID == lotID }), nil
}

func (r *LotRepo) DeleteAllocationsByOrder(ctx context.Context, orderID id.ID) error {
	r.s.write(func(t *tables) {
		kept := make([]lot.Allocation, 0, len(t.allocations))
		for _, a := range t.allocations {
			if a.OrderID != orderID {
				kept = append(kept, a)
			}
		}
		t.allocations = kept
	})
	return nil
}

// --- Accounts ---

// AccountRepo implements account.Repository.
type AccountRepo struct {
	s *Store
}

// NewAccountRepo creates the account repository.
func NewAccountRepo(s *Store) *AccountRepo {
	return &AccountRepo{s: s}
}

var _ account.Repository = (*AccountRepo)(nil)

func (r *AccountRepo) CreateEntry(ctx context.Context, e *account.Entry) error {
	r.s.write(func(t *tables) { t.entries[e.ID] = *e })
	return nil
}

func (r *AccountRepo) UpdateEntry(ctx context.Context, e *account.Entry) error {
	var err error
	r.s.write(func(t *tables) {
		if _, ok := t.entries[e.ID]; !ok {
			err = apperror.NewNotFound("entry", e.ID.String())
			return
		}
		t.entries[e.ID] = *e
	})
	return err
}

func (r *AccountRepo) DeleteEntry(ctx context.Context, entryID id.ID) error {
	var err error
	r.s.write(func(t *tables) {
		if _, ok := t.entries[entryID]; !ok {
			err = apperror.NewNotFound("entry", entryID.String())
			return
		}
		delete(t.entries, entryID)
	})
	return err
}

func (r *AccountRepo) GetEntry(ctx context.Context, entryID id.ID) (*account.Entry, error) {
	var out *account.Entry
	r.s.read(func(t *tables) {
		if e, ok := t.entries[entryID]; ok {
			out = &e
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("entry", entryID.String())
	}
	return out, nil
}

func (r *AccountRepo) GetEntryForUpdate(ctx context.Context, entryID id.ID) (*account.Entry, error) {
	return r.GetEntry(ctx, entryID)
}

func (r *AccountRepo) ListEntriesByOrder(ctx context.Context, orderID id.ID) ([]*account.Entry, error) {
	return r.FindEntries(ctx, account.EntryFilter{OrderID: &orderID})
}

func (r *AccountRepo) FindInitialEntry(ctx context.Context, partyID id.ID, et account.EntryType) (*account.Entry, error) {
	var out *account.Entry
	r.s.read(func(t *tables) {
		for _, e := range t.entries {
			if e.IsInitial && e.PartyID == partyID && e.Type == et {
				out = &e
				return
			}
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("entry", partyID.String())
	}
	return out, nil
}

func matchEntry(e *account.Entry, f account.EntryFilter) bool {
	switch {
	case f.PartyID != nil && e.PartyID != *f.PartyID,
		f.OrderID != nil && !id.Matches(e.OrderID, *f.OrderID),
		f.Type != nil && e.Type != *f.Type,
		f.Status != nil && e.Status != *f.Status,
		f.Component != nil && e.Component != *f.Component,
		f.FromDate != nil && e.BusinessDate.Before(*f.FromDate),
		f.ToDate != nil && e.BusinessDate.After(*f.ToDate),
		f.OpenOnly && e.Status != account.StatusPending && e.Status != account.StatusPartial,
		f.ExcludeCancelled && e.Status == account.StatusCancelled:
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(e.OrderNo), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// FindEntries returns matches ordered by business date, then creation time.
func (r *AccountRepo) FindEntries(ctx context.Context, filter account.EntryFilter) ([]*account.Entry, error) {
	var out []*account.Entry
	r.s.read(func(t *tables) {
		for _, e := range t.entries {
			if matchEntry(&e, filter) {
				out = append(out, &e)
			}
		}
	})
	slices.SortFunc(out, func(a, b *account.Entry) int {
		if c := a.BusinessDate.Compare(b.BusinessDate); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (r *AccountRepo) ListEntries(ctx context.Context, filter account.EntryFilter) (domain.ListResult[*account.Entry], error) {
	items, err := r.FindEntries(ctx, filter)
	if err != nil {
		return domain.ListResult[*account.Entry]{}, err
	}
	return domain.Page(items, filter.Limit, filter.Offset), nil
}

func (r *AccountRepo) CreatePayment(ctx context.Context, p *account.Payment) error {
	r.s.write(func(t *tables) { t.payments[p.ID] = *p })
	return nil
}

func (r *AccountRepo) GetPayment(ctx context.Context, paymentID id.ID) (*account.Payment, error) {
	var out *account.Payment
	r.s.read(func(t *tables) {
		if p, ok := t.payments[paymentID]; ok {
			out = &p
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("payment", paymentID.String())
	}
	return out, nil
}

func (r *AccountRepo) DeletePayment(ctx context.Context, paymentID id.ID) error {
	var err error
	r.s.write(func(t *tables) {
		if _, ok := t.payments[paymentID]; !ok {
			err = apperror.NewNotFound("payment", paymentID.String())
			return
		}
		delete(t.payments, paymentID)
	})
	return err
}

func (r *AccountRepo) FindPayments(ctx context.Context, filter account.PaymentFilter) ([]*account.Payment, error) {
	var out []*account.Payment
	r.s.read(func(t *tables) {
		for _, p := range t.payments {
			switch {
			case filter.PartyID != nil && p.PartyID != *filter.PartyID,
				filter.EntryID != nil && p.EntryID != *filter.EntryID,
				filter.Direction != nil && p.Direction != *filter.Direction,
				filter.FromDate != nil && p.PaymentDate.Before(*filter.FromDate),
				filter.ToDate != nil && p.PaymentDate.After(*filter.ToDate):
				continue
			}
			out = append(out, &p)
		}
	})
	slices.SortFunc(out, func(a, b *account.Payment) int {
		if c := a.PaymentDate.Compare(b.PaymentDate); c != 0 {
			return c
		}
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})
	return out, nil
}

func (r *AccountRepo) ListPayments(ctx context.Context, filter account.PaymentFilter) (domain.ListResult[*account.Payment], error) {
	items, err := r.FindPayments(ctx, filter)
	if err != nil {
		return domain.ListResult[*account.Payment]{}, err
	}
	return domain.Page(items, filter.Limit, filter.Offset), nil
}

func (r *AccountRepo) CountPaymentsByOrder(ctx context.Context, orderID id.ID) (int, error) {
	n := 0
	r.s.read(func(t *tables) {
		for _, p := range t.payments {
			if e, ok := t.entries[p.EntryID]; ok && id.Matches(e.OrderID, orderID) {
				n++
			}
		}
	})
	return n, nil
}

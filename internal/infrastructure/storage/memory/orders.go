package memory

import (
	"context"
	"slices"
	"strings"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain"
	"coldledger/internal/domain/documents/order"
)

// OrderRepo implements order.Repository. Headers and lines are stored apart,
// as in the relational schema.
type OrderRepo struct {
	s *Store
}

// NewOrderRepo creates the order repository.
func NewOrderRepo(s *Store) *OrderRepo {
	return &OrderRepo{s: s}
}

var _ order.Repository = (*OrderRepo)(nil)

func header(o order.Order) *order.Order {
	o.Lines = nil
	return &o
}

func (r *OrderRepo) Create(ctx context.Context, o *order.Order) error {
	var err error
	r.s.write(func(t *tables) {
		for _, other := range t.orders {
			if other.OrderNo == o.OrderNo {
				err = apperror.NewDuplicate("order", "orderNo", o.OrderNo)
				return
			}
		}
		t.orders[o.ID] = *header(*o)
	})
	return err
}

func (r *OrderRepo) Update(ctx context.Context, o *order.Order) error {
	var err error
	r.s.write(func(t *tables) {
		if _, ok := t.orders[o.ID]; !ok {
			err = apperror.NewNotFound("order", o.ID.String())
			return
		}
		t.orders[o.ID] = *header(*o)
	})
	return err
}

// Delete removes the header with its lines and flows.
func (r *OrderRepo) Delete(ctx context.Context, orderID id.ID) error {
	var err error
	r.s.write(func(t *tables) {
		if _, ok := t.orders[orderID]; !ok {
			err = apperror.NewNotFound("order", orderID.String())
			return
		}
		delete(t.orders, orderID)
		delete(t.lines, orderID)
		kept := make([]order.Flow, 0, len(t.orderFlows))
		for _, f := range t.orderFlows {
			if f.OrderID != orderID {
				kept = append(kept, f)
			}
		}
		t.orderFlows = kept
	})
	return err
}

func (r *OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*order.Order, error) {
	var out *order.Order
	r.s.read(func(t *tables) {
		if o, ok := t.orders[orderID]; ok {
			out = header(o)
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("order", orderID.String())
	}
	return out, nil
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*order.Order, error) {
	return r.GetByID(ctx, orderID)
}

func (r *OrderRepo) SaveLines(ctx context.Context, orderID id.ID, lines []order.Line) error {
	r.s.write(func(t *tables) {
		t.lines[orderID] = slices.Clone(lines)
	})
	return nil
}

func (r *OrderRepo) GetLines(ctx context.Context, orderID id.ID) ([]order.Line, error) {
	var out []order.Line
	r.s.read(func(t *tables) {
		out = slices.Clone(t.lines[orderID])
	})
	slices.SortFunc(out, func(a, b order.Line) int { return a.LineNo - b.LineNo })
	return out, nil
}

func (r *OrderRepo) GetLine(ctx context.Context, lineID id.ID) (*order.Line, error) {
	var out *order.Line
	r.s.read(func(t *tables) {
		for _, lines := range t.lines {
			for _, l := range lines {
				if l.ID == lineID {
					out = &l
					return
				}
			}
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("order line", lineID.String())
	}
	return out, nil
}

func matchOrder(o *order.Order, f order.ListFilter) bool {
	switch {
	case f.Type != nil && o.Type != *f.Type,
		f.Status != nil && o.Status != *f.Status,
		f.PartyID != nil && o.SourceID != *f.PartyID && o.TargetID != *f.PartyID,
		f.DateFrom != nil && o.OrderDate.Before(*f.DateFrom),
		f.DateTo != nil && o.OrderDate.After(*f.DateTo):
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(o.OrderNo), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// List returns the newest orders first.
func (r *OrderRepo) List(ctx context.Context, filter order.ListFilter) (domain.ListResult[*order.Order], error) {
	var items []*order.Order
	r.s.read(func(t *tables) {
		for _, o := range t.orders {
			if matchOrder(&o, filter) {
				items = append(items, header(o))
			}
		}
	})
	slices.SortFunc(items, func(a, b *order.Order) int {
		if c := b.OrderDate.Compare(a.OrderDate); c != 0 {
			return c
		}
		return strings.Compare(b.OrderNo, a.OrderNo)
	})
	return domain.Page(items, filter.Limit, filter.Offset), nil
}

func (r *OrderRepo) ListChildren(ctx context.Context, orderID id.ID) ([]*order.Order, error) {
	var out []*order.Order
	r.s.read(func(t *tables) {
		for _, o := range t.orders {
			if id.Matches(o.RelatedOrderID, orderID) {
				out = append(out, header(o))
			}
		}
	})
	slices.SortFunc(out, func(a, b *order.Order) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (r *OrderRepo) ReturnedQuantities(ctx context.Context, originalLineIDs []id.ID) (map[id.ID]types.Quantity, error) {
	out := make(map[id.ID]types.Quantity, len(originalLineIDs))
	r.s.read(func(t *tables) {
		for oid, lines := range t.lines {
			if o, ok := t.orders[oid]; !ok || o.Status == order.StatusCancelled {
				continue
			}
			for _, l := range lines {
				if l.OriginalLineID == nil || !slices.Contains(originalLineIDs, *l.OriginalLineID) {
					continue
				}
				out[*l.OriginalLineID] = out[*l.OriginalLineID].Add(l.Quantity)
			}
		}
	})
	return out, nil
}

// ListCompleted returns completed orders with lines, oldest completion first.
func (r *OrderRepo) ListCompleted(ctx context.Context) ([]*order.Order, error) {
	var out []*order.Order
	r.s.read(func(t *tables) {
		for oid, o := range t.orders {
			if o.Status != order.StatusCompleted {
				continue
			}
			full := header(o)
			full.Lines = slices.Clone(t.lines[oid])
			out = append(out, full)
		}
	})
	slices.SortFunc(out, func(a, b *order.Order) int {
		if c := a.OrderDate.Compare(b.OrderDate); c != 0 {
			return c
		}
		return strings.Compare(a.OrderNo, b.OrderNo)
	})
	return out, nil
}

func (r *OrderRepo) AppendFlow(ctx context.Context, f *order.Flow) error {
	r.s.write(func(t *tables) {
		cp := *f
		cp.MetaData = slices.Clone(f.MetaData)
		cp.Meta = nil
		t.orderFlows = append(t.orderFlows, cp)
	})
	return nil
}

// ListFlows returns an order's history in the order it was written.
func (r *OrderRepo) ListFlows(ctx context.Context, orderID id.ID) ([]*order.Flow, error) {
	var out []*order.Flow
	r.s.read(func(t *tables) {
		for _, f := range t.orderFlows {
			if f.OrderID == orderID {
				out = append(out, &f)
			}
		}
	})
	return out, nil
}

// ArchivedOrder is a stored snapshot of a deleted order.
type ArchivedOrder struct {
	OrderID  id.ID
	OrderNo  string
	Snapshot order.Snapshot
}

// Archive implements order.Archive in memory.
type Archive struct {
	s *Store
}

// NewArchive creates the in-memory order archive.
func NewArchive(s *Store) *Archive {
	return &Archive{s: s}
}

var _ order.Archive = (*Archive)(nil)

func (a *Archive) Store(ctx context.Context, snap *order.Snapshot) error {
	if snap == nil || snap.Order == nil {
		return apperror.NewValidation("snapshot without order")
	}
	o := *snap.Order
	o.Lines = slices.Clone(o.Lines)
	cp := *snap
	cp.Order = &o
	cp.Flows = slices.Clone(snap.Flows)
	a.s.write(func(t *tables) {
		t.archive = append(t.archive, ArchivedOrder{OrderID: o.ID, OrderNo: o.OrderNo, Snapshot: cp})
	})
	return nil
}

// List returns every archived snapshot, oldest first.
func (a *Archive) List(ctx context.Context) []ArchivedOrder {
	var out []ArchivedOrder
	a.s.read(func(t *tables) { out = slices.Clone(t.archive) })
	return out
}

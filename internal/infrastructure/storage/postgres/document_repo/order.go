// Package document_repo provides PostgreSQL repositories for documents.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain"
	"coldledger/internal/domain/documents/order"
	"coldledger/internal/infrastructure/storage/postgres"
)

const (
	orderTable     = "orders"
	orderLineTable = "order_lines"
	orderFlowTable = "order_flows"
)

var (
	orderColumns     = postgres.Columns[order.Order]()
	orderLineColumns = postgres.Columns[order.Line]()
	orderFlowColumns = postgres.Columns[order.Flow]()

	orderSortColumns = []string{"order_no", "order_date", "final_amount", "created_at"}
)

// OrderRepo implements order.Repository over orders, order_lines and order_flows.
type OrderRepo struct {
	txm   *postgres.TxManager
	batch *postgres.BatchInserter
}

var _ order.Repository = (*OrderRepo)(nil)

// NewOrderRepo creates the order repository.
func NewOrderRepo(txm *postgres.TxManager) *OrderRepo {
	return &OrderRepo{txm: txm, batch: postgres.NewBatchInserter(txm)}
}

func (r *OrderRepo) selectOrders() squirrel.SelectBuilder {
	return postgres.Builder().Select(orderColumns...).From(orderTable)
}

func (r *OrderRepo) selectLines() squirrel.SelectBuilder {
	return postgres.Builder().Select(orderLineColumns...).From(orderLineTable)
}

func (r *OrderRepo) Create(ctx context.Context, o *order.Order) error {
	_, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Insert(orderTable).
		Columns(orderColumns...).
		Values(postgres.RowValues(o, orderColumns)...))
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("order", "orderNo", o.OrderNo).WithCause(err)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// Update rewrites the header; lines are saved with SaveLines.
func (r *OrderRepo) Update(ctx context.Context, o *order.Order) error {
	data := postgres.StructToMap(o)
	set := make(map[string]any)
	for _, col := range postgres.Without(orderColumns, "id", "order_no", "created_at", "created_by") {
		set[col] = data[col]
	}
	n, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Update(orderTable).
		SetMap(set).
		Where(squirrel.Eq{"id": o.ID}))
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound("order", o.ID.String())
	}
	return nil
}

// Delete removes the header with its lines and flows.
func (r *OrderRepo) Delete(ctx context.Context, orderID id.ID) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.txm.GetQuerier(ctx)
		for _, table := range []string{orderFlowTable, orderLineTable} {
			if _, err := postgres.Exec(ctx, q, postgres.Builder().
				Delete(table).
				Where(squirrel.Eq{"order_id": orderID})); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		n, err := postgres.Exec(ctx, q, postgres.Builder().
			Delete(orderTable).
			Where(squirrel.Eq{"id": orderID}))
		if err != nil {
			if postgres.IsForeignKeyViolation(err) {
				return apperror.NewConsistency("order is referenced by other records").
					WithDetail("id", orderID.String()).
					WithCause(err)
			}
			return fmt.Errorf("delete order: %w", err)
		}
		if n == 0 {
			return apperror.NewNotFound("order", orderID.String())
		}
		return nil
	})
}

func (r *OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*order.Order, error) {
	var o order.Order
	if err := postgres.GetOne(ctx, r.txm.GetQuerier(ctx), &o,
		r.selectOrders().Where(squirrel.Eq{"id": orderID}),
		"order", orderID.String()); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*order.Order, error) {
	var o order.Order
	if err := postgres.GetOne(ctx, r.txm.GetQuerier(ctx), &o,
		r.selectOrders().Where(squirrel.Eq{"id": orderID}).Suffix("FOR UPDATE"),
		"order", orderID.String()); err != nil {
		return nil, err
	}
	return &o, nil
}

// SaveLines replaces the lines of an order. The new set is copied in bulk.
func (r *OrderRepo) SaveLines(ctx context.Context, orderID id.ID, lines []order.Line) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
			Delete(orderLineTable).
			Where(squirrel.Eq{"order_id": orderID})); err != nil {
			return fmt.Errorf("delete order lines: %w", err)
		}
		rows := make([]order.Line, len(lines))
		for i, l := range lines {
			l.OrderID = orderID
			rows[i] = l
		}
		if _, err := postgres.CopyStructs(ctx, r.batch, orderLineTable, orderLineColumns, rows); err != nil {
			return err
		}
		return nil
	})
}

func (r *OrderRepo) GetLines(ctx context.Context, orderID id.ID) ([]order.Line, error) {
	var lines []order.Line
	if err := postgres.SelectAll(ctx, r.txm.GetQuerier(ctx), &lines,
		r.selectLines().Where(squirrel.Eq{"order_id": orderID}).OrderBy("line_no")); err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	return lines, nil
}

func (r *OrderRepo) GetLine(ctx context.Context, lineID id.ID) (*order.Line, error) {
	var l order.Line
	if err := postgres.GetOne(ctx, r.txm.GetQuerier(ctx), &l,
		r.selectLines().Where(squirrel.Eq{"id": lineID}),
		"order line", lineID.String()); err != nil {
		return nil, err
	}
	return &l, nil
}

// orderListQuery applies the list filter predicates.
func orderListQuery(filter order.ListFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(orderColumns...).From(orderTable)
	eq := squirrel.Eq{}
	if filter.Type != nil {
		eq["order_type"] = string(*filter.Type)
	}
	if filter.Status != nil {
		eq["status"] = string(*filter.Status)
	}
	if len(eq) > 0 {
		q = q.Where(eq)
	}
	if filter.PartyID != nil {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"source_id": *filter.PartyID},
			squirrel.Eq{"target_id": *filter.PartyID},
		})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"order_date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"order_date": *filter.DateTo})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"order_no": "%" + filter.Search + "%"})
	}
	return q
}

// List returns order headers, newest first unless OrderBy says otherwise.
func (r *OrderRepo) List(ctx context.Context, filter order.ListFilter) (domain.ListResult[*order.Order], error) {
	orderBy, err := postgres.OrderBy(filter.OrderBy, orderSortColumns, "order_date DESC, order_no DESC")
	if err != nil {
		return domain.ListResult[*order.Order]{}, err
	}
	return postgres.Paginate[*order.Order](ctx, r.txm.GetQuerier(ctx), orderListQuery(filter),
		orderBy+", id DESC", filter.ListFilter)
}

func (r *OrderRepo) ListChildren(ctx context.Context, orderID id.ID) ([]*order.Order, error) {
	var out []*order.Order
	if err := postgres.SelectAll(ctx, r.txm.GetQuerier(ctx), &out,
		r.selectOrders().Where(squirrel.Eq{"related_order_id": orderID}).OrderBy("created_at", "id")); err != nil {
		return nil, fmt.Errorf("list child orders: %w", err)
	}
	return out, nil
}

type returnedSum struct {
	LineID   id.ID          `db:"original_line_id"`
	Quantity types.Quantity `db:"quantity"`
}

func returnedQuery(originalLineIDs []id.ID) squirrel.SelectBuilder {
	return postgres.Builder().
		Select("l.original_line_id", "SUM(l.quantity) AS quantity").
		From(orderLineTable + " l").
		Join(orderTable + " o ON o.id = l.order_id").
		Where(squirrel.Eq{"l.original_line_id": originalLineIDs}).
		Where(squirrel.NotEq{"o.status": string(order.StatusCancelled)}).
		GroupBy("l.original_line_id")
}

func (r *OrderRepo) ReturnedQuantities(ctx context.Context, originalLineIDs []id.ID) (map[id.ID]types.Quantity, error) {
	out := make(map[id.ID]types.Quantity, len(originalLineIDs))
	if len(originalLineIDs) == 0 {
		return out, nil
	}
	var sums []returnedSum
	if err := postgres.SelectAll(ctx, r.txm.GetQuerier(ctx), &sums, returnedQuery(originalLineIDs)); err != nil {
		return nil, fmt.Errorf("sum returned quantities: %w", err)
	}
	for _, s := range sums {
		out[s.LineID] = s.Quantity
	}
	return out, nil
}

// ListCompleted loads every completed order with its lines in two queries.
func (r *OrderRepo) ListCompleted(ctx context.Context) ([]*order.Order, error) {
	q := r.txm.GetQuerier(ctx)
	var orders []*order.Order
	if err := postgres.SelectAll(ctx, q, &orders, r.selectOrders().
		Where(squirrel.Eq{"status": string(order.StatusCompleted)}).
		OrderBy("order_date", "order_no")); err != nil {
		return nil, fmt.Errorf("list completed orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	var lines []order.Line
	if err := postgres.SelectAll(ctx, q, &lines, r.selectLines().
		Where(squirrel.Expr("order_id IN (SELECT id FROM orders WHERE status = ?)", string(order.StatusCompleted))).
		OrderBy("order_id", "line_no")); err != nil {
		return nil, fmt.Errorf("list completed order lines: %w", err)
	}
	byID := make(map[id.ID]*order.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	for _, l := range lines {
		if o, ok := byID[l.OrderID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}
	return orders, nil
}

func (r *OrderRepo) AppendFlow(ctx context.Context, f *order.Flow) error {
	_, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Insert(orderFlowTable).
		Columns(orderFlowColumns...).
		Values(postgres.RowValues(f, orderFlowColumns)...))
	if err != nil {
		return fmt.Errorf("insert order flow: %w", err)
	}
	return nil
}

// ListFlows returns an order's history oldest first with meta decoded.
func (r *OrderRepo) ListFlows(ctx context.Context, orderID id.ID) ([]*order.Flow, error) {
	var flows []*order.Flow
	if err := postgres.SelectAll(ctx, r.txm.GetQuerier(ctx), &flows, postgres.Builder().
		Select(orderFlowColumns...).
		From(orderFlowTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("operated_at", "id")); err != nil {
		return nil, fmt.Errorf("list order flows: %w", err)
	}
	for _, f := range flows {
		if err := f.DecodeMeta(); err != nil {
			return nil, err
		}
	}
	return flows, nil
}

// Package register_repo provides PostgreSQL repositories for the stock, lot
// and account registers.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain"
	"coldledger/internal/domain/registers/stock"
	"coldledger/internal/infrastructure/storage/postgres"
)

const (
	stockTable     = "stocks"
	stockFlowTable = "stock_flows"
)

var (
	stockColumns     = postgres.Columns[stock.Stock]()
	stockFlowColumns = postgres.Columns[stock.Flow]()
)

// StockRepo implements stock.Repository over stocks and stock_flows.
type StockRepo struct {
	txm *postgres.TxManager
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a stock register repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{txm: txm}
}

// keyCond matches one (warehouse, product, spec) row; a nil spec matches NULL.
func keyCond(k stock.Key) squirrel.And {
	cond := squirrel.And{
		squirrel.Eq{"warehouse_id": k.WarehouseID},
		squirrel.Eq{"product_id": k.ProductID},
	}
	if spec := k.SpecPtr(); spec != nil {
		return append(cond, squirrel.Eq{"spec_id": *spec})
	}
	return append(cond, squirrel.Eq{"spec_id": nil})
}

func (r *StockRepo) selectStock() squirrel.SelectBuilder {
	return postgres.Builder().Select(stockColumns...).From(stockTable)
}

// GetForUpdate locks the balance row for key.
func (r *StockRepo) GetForUpdate(ctx context.Context, key stock.Key) (*stock.Stock, error) {
	var st stock.Stock
	if err := postgres.GetOne(ctx, r.txm.GetQuerier(ctx), &st,
		r.selectStock().Where(keyCond(key)).Suffix("FOR UPDATE"),
		"stock", key.String()); err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *StockRepo) GetByID(ctx context.Context, stockID id.ID) (*stock.Stock, error) {
	var st stock.Stock
	if err := postgres.GetOne(ctx, r.txm.GetQuerier(ctx), &st,
		r.selectStock().Where(squirrel.Eq{"id": stockID}),
		"stock", stockID.String()); err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *StockRepo) Create(ctx context.Context, st *stock.Stock) error {
	_, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Insert(stockTable).
		Columns(stockColumns...).
		Values(postgres.RowValues(st, stockColumns)...))
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("stock", "key", st.Key().String()).WithCause(err)
		}
		return fmt.Errorf("insert stock: %w", err)
	}
	return nil
}

func (r *StockRepo) Update(ctx context.Context, st *stock.Stock) error {
	n, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Update(stockTable).
		Set("quantity", st.Quantity).
		Set("reserved_quantity", st.ReservedQuantity).
		Set("safety_stock", st.SafetyStock).
		Set("updated_at", st.UpdatedAt).
		Where(squirrel.Eq{"id": st.ID}))
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound("stock", st.ID.String())
	}
	return nil
}

// stockListQuery applies the filter predicates.
func stockListQuery(filter stock.Filter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(stockColumns...).From(stockTable)
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.OnlyNonZero {
		q = q.Where("(quantity <> 0 OR reserved_quantity <> 0)")
	}
	if filter.BelowSafety {
		q = q.Where("safety_stock > 0 AND quantity - reserved_quantity < safety_stock")
	}
	return q
}

func (r *StockRepo) List(ctx context.Context, filter stock.Filter) (domain.ListResult[*stock.Stock], error) {
	return postgres.Paginate[*stock.Stock](ctx, r.txm.GetQuerier(ctx), stockListQuery(filter),
		"warehouse_id, product_id, spec_id NULLS FIRST", filter.ListFilter)
}

func (r *StockRepo) ListAll(ctx context.Context) ([]*stock.Stock, error) {
	var out []*stock.Stock
	err := postgres.SelectAll(ctx, r.txm.GetQuerier(ctx), &out,
		r.selectStock().OrderBy("warehouse_id", "product_id", "spec_id NULLS FIRST").Suffix("FOR UPDATE"))
	return out, err
}

func (r *StockRepo) DeleteEmpty(ctx context.Context) (int, error) {
	n, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Delete(stockTable).
		Where(squirrel.Eq{"quantity": 0, "reserved_quantity": 0}))
	if err != nil {
		return 0, fmt.Errorf("delete empty stock: %w", err)
	}
	return int(n), nil
}

func (r *StockRepo) AppendFlow(ctx context.Context, f *stock.Flow) error {
	_, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Insert(stockFlowTable).
		Columns(stockFlowColumns...).
		Values(postgres.RowValues(f, stockFlowColumns)...))
	if err != nil {
		return fmt.Errorf("insert stock flow: %w", err)
	}
	return nil
}

func (r *StockRepo) GetFlow(ctx context.Context, flowID id.ID) (*stock.Flow, error) {
	var f stock.Flow
	if err := postgres.GetOne(ctx, r.txm.GetQuerier(ctx), &f,
		postgres.Builder().Select(stockFlowColumns...).From(stockFlowTable).Where(squirrel.Eq{"id": flowID}),
		"stock flow", flowID.String()); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *StockRepo) IsFlowReverted(ctx context.Context, flowID id.ID) (bool, error) {
	var reverted bool
	err := r.txm.GetQuerier(ctx).QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM stock_flows WHERE reverts_flow_id = $1)", flowID).Scan(&reverted)
	if err != nil {
		return false, fmt.Errorf("check flow reverted: %w", err)
	}
	return reverted, nil
}

// flowListQuery applies the flow filter predicates.
func flowListQuery(filter stock.FlowFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(stockFlowColumns...).From(stockFlowTable)
	eq := squirrel.Eq{}
	if filter.StockID != nil {
		eq["stock_id"] = *filter.StockID
	}
	if filter.WarehouseID != nil {
		eq["warehouse_id"] = *filter.WarehouseID
	}
	if filter.ProductID != nil {
		eq["product_id"] = *filter.ProductID
	}
	if filter.OrderID != nil {
		eq["order_id"] = *filter.OrderID
	}
	if filter.Type != nil {
		eq["flow_type"] = string(*filter.Type)
	}
	if len(eq) > 0 {
		q = q.Where(eq)
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"operated_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"operated_at": *filter.ToDate})
	}
	return q
}

// ListFlows returns the newest flows first.
func (r *StockRepo) ListFlows(ctx context.Context, filter stock.FlowFilter) (domain.ListResult[*stock.Flow], error) {
	return postgres.Paginate[*stock.Flow](ctx, r.txm.GetQuerier(ctx), flowListQuery(filter),
		"operated_at DESC, id DESC", filter.ListFilter)
}

type adjustmentSum struct {
	WarehouseID id.ID          `db:"warehouse_id"`
	ProductID   id.ID          `db:"product_id"`
	SpecID      *id.ID         `db:"spec_id"`
	Quantity    types.Quantity `db:"quantity"`
}

// SumAdjustments totals adjust deltas per key for the given sources.
func (r *StockRepo) SumAdjustments(ctx context.Context, sources []stock.FlowSource) ([]stock.Delta, error) {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = string(s)
	}
	var sums []adjustmentSum
	if err := postgres.SelectAll(ctx, r.txm.GetQuerier(ctx), &sums, postgres.Builder().
		Select("warehouse_id", "product_id", "spec_id", "SUM(quantity_change) AS quantity").
		From(stockFlowTable).
		Where(squirrel.Eq{"flow_type": string(stock.FlowAdjust), "source": names}).
		GroupBy("warehouse_id", "product_id", "spec_id").
		OrderBy("warehouse_id", "product_id", "spec_id NULLS FIRST")); err != nil {
		return nil, fmt.Errorf("sum stock adjustments: %w", err)
	}
	out := make([]stock.Delta, len(sums))
	for i, s := range sums {
		out[i] = stock.Delta{
			Key:      stock.NewKey(s.WarehouseID, s.ProductID, s.SpecID),
			Quantity: s.Quantity,
		}
	}
	return out, nil
}

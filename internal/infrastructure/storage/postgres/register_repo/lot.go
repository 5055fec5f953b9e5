package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/domain"
	"coldledger/internal/domain/registers/lot"
	"coldledger/internal/infrastructure/storage/postgres"
)

const (
	lotTable        = "lots"
	allocationTable = "lot_allocations"
)

var (
	lotColumns        = postgres.Columns[lot.Lot]()
	allocationColumns = postgres.Columns[lot.Allocation]()
)

// LotRepo implements lot.Repository. Allocations are written with COPY.
type LotRepo struct {
	txm   *postgres.TxManager
	batch *postgres.BatchInserter
}

var _ lot.Repository = (*LotRepo)(nil)

// NewLotRepo creates a lot register repository.
func NewLotRepo(txm *postgres.TxManager) *LotRepo {
	return &LotRepo{txm: txm, batch: postgres.NewBatchInserter(txm)}
}

func (r *LotRepo) selectLots() squirrel.SelectBuilder {
	return postgres.Builder().Select(lotColumns...).From(lotTable)
}

func (r *LotRepo) Create(ctx context.Context, l *lot.Lot) error {
	_, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Insert(lotTable).
		Columns(lotColumns...).
		Values(postgres.RowValues(l, lotColumns)...))
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("lot", "lotNo", l.LotNo).WithCause(err)
		}
		return fmt.Errorf("insert lot: %w", err)
	}
	return nil
}

func (r *LotRepo) Update(ctx context.Context, l *lot.Lot) error {
	data := postgres.StructToMap(l)
	set := make(map[string]any)
	for _, col := range postgres.Without(lotColumns, "id", "lot_no", "created_at", "created_by") {
		set[col] = data[col]
	}
	n, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Update(lotTable).
		SetMap(set).
		Where(squirrel.Eq{"id": l.ID}))
	if err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound("lot", l.ID.String())
	}
	return nil
}

func (r *LotRepo) Delete(ctx context.Context, lotID id.ID) error {
	n, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Delete(lotTable).
		Where(squirrel.Eq{"id": lotID}))
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return apperror.NewConsistency("lot has allocations").
				WithDetail("lotId", lotID.String()).
				WithCause(err)
		}
		return fmt.Errorf("delete lot: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound("lot", lotID.String())
	}
	return nil
}

func (r *LotRepo) GetByID(ctx context.Context, lotID id.ID) (*lot.Lot, error) {
	var l lot.Lot
	if err := postgres.GetOne(ctx, r.txm.GetQuerier(ctx), &l,
		r.selectLots().Where(squirrel.Eq{"id": lotID}),
		"lot", lotID.String()); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LotRepo) GetForUpdate(ctx context.Context, lotID id.ID) (*lot.Lot, error) {
	var l lot.Lot
	if err := postgres.GetOne(ctx, r.txm.GetQuerier(ctx), &l,
		r.selectLots().Where(squirrel.Eq{"id": lotID}).Suffix("FOR UPDATE"),
		"lot", lotID.String()); err != nil {
		return nil, err
	}
	return &l, nil
}

// fifoQuery selects open lots of a product at a warehouse, oldest first,
// locking the whole candidate set.
func fifoQuery(productID, warehouseID id.ID) squirrel.SelectBuilder {
	return postgres.Builder().Select(lotColumns...).From(lotTable).
		Where(squirrel.Eq{
			"product_id":   productID,
			"warehouse_id": warehouseID,
			"status":       []string{string(lot.StatusActive), string(lot.StatusPartial)},
		}).
		OrderBy("received_at ASC", "id ASC").
		Suffix("FOR UPDATE")
}

func (r *LotRepo) ListFIFOCandidates(ctx context.Context, productID, warehouseID id.ID) ([]*lot.Lot, error) {
	var out []*lot.Lot
	if err := postgres.SelectAll(ctx, r.txm.GetQuerier(ctx), &out, fifoQuery(productID, warehouseID)); err != nil {
		return nil, fmt.Errorf("fifo candidates: %w", err)
	}
	return out, nil
}

func (r *LotRepo) ListBySourceOrder(ctx context.Context, orderID id.ID) ([]*lot.Lot, error) {
	var out []*lot.Lot
	if err := postgres.SelectAll(ctx, r.txm.GetQuerier(ctx), &out, r.selectLots().
		Where(squirrel.Eq{"source_order_id": orderID}).
		OrderBy("received_at ASC", "id ASC").
		Suffix("FOR UPDATE")); err != nil {
		return nil, fmt.Errorf("lots by order: %w", err)
	}
	return out, nil
}

func lotListQuery(filter lot.Filter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(lotColumns...).From(lotTable)
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": string(*filter.Status)})
	}
	if filter.SourceOrderID != nil {
		q = q.Where(squirrel.Eq{"source_order_id": *filter.SourceOrderID})
	}
	if filter.OnlyAvailable {
		q = q.Where("current_quantity - reserved_quantity > 0")
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"lot_no": "%" + filter.Search + "%"})
	}
	return q
}

func (r *LotRepo) List(ctx context.Context, filter lot.Filter) (domain.ListResult[*lot.Lot], error) {
	return postgres.Paginate[*lot.Lot](ctx, r.txm.GetQuerier(ctx), lotListQuery(filter),
		"received_at ASC, id ASC", filter.ListFilter)
}

// SummaryByProduct totals lots that still hold quantity, by product id.
func (r *LotRepo) SummaryByProduct(ctx context.Context) ([]lot.ProductSummary, error) {
	var out []lot.ProductSummary
	err := postgres.SelectAll(ctx, r.txm.GetQuerier(ctx), &out, postgres.Builder().
		Select(
			"product_id",
			"COUNT(*) AS lot_count",
			"SUM(current_quantity) AS total_quantity",
			"SUM(current_gross_weight) AS total_gross",
			"SUM(cost_price * current_quantity) AS total_cost",
		).
		From(lotTable).
		Where("current_quantity > 0").
		GroupBy("product_id").
		OrderBy("product_id"))
	if err != nil {
		return nil, fmt.Errorf("lot summary: %w", err)
	}
	return out, nil
}

// CreateAllocations copies the allocation rows inside the caller's transaction.
func (r *LotRepo) CreateAllocations(ctx context.Context, allocs []lot.Allocation) error {
	_, err := postgres.CopyStructs(ctx, r.batch, allocationTable, allocationColumns, allocs)
	return err
}

func (r *LotRepo) allocationsWhere(ctx context.Context, cond squirrel.Eq) ([]lot.Allocation, error) {
	var out []lot.Allocation
	if err := postgres.SelectAll(ctx, r.txm.GetQuerier(ctx), &out, postgres.Builder().
		Select(allocationColumns...).
		From(allocationTable).
		Where(cond).
		OrderBy("created_at ASC", "id ASC")); err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	return out, nil
}

func (r *LotRepo) ListAllocationsByOrder(ctx context.Context, orderID id.ID) ([]lot.Allocation, error) {
	return r.allocationsWhere(ctx, squirrel.Eq{"order_id": orderID})
}

func (r *LotRepo) ListAllocationsByLine(ctx context.Context, lineID id.ID) ([]lot.Allocation, error) {
	return r.allocationsWhere(ctx, squirrel.Eq{"order_line_id": lineID})
}

func (r *LotRepo) ListAllocationsByLot(ctx context.Context, lotID id.ID) ([]lot.Allocation, error) {
	return r.allocationsWhere(ctx, squirrel.Eq{"lot_id": lotID})
}

func (r *LotRepo) DeleteAllocationsByOrder(ctx context.Context, orderID id.ID) error {
	if _, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Delete(allocationTable).
		Where(squirrel.Eq{"order_id": orderID})); err != nil {
		return fmt.Errorf("delete allocations: %w", err)
	}
	return nil
}

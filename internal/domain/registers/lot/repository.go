package lot

import (
	"context"

	"coldledger/internal/core/id"
	"coldledger/internal/domain"
)

// Repository defines persistence for lots and allocations.
type Repository interface {
	Create(ctx context.Context, l *Lot) error
	Update(ctx context.Context, l *Lot) error
	Delete(ctx context.Context, id id.ID) error
	GetByID(ctx context.Context, id id.ID) (*Lot, error)

	// GetForUpdate returns the lot with a row lock.
	GetForUpdate(ctx context.Context, id id.ID) (*Lot, error)

	// ListFIFOCandidates returns active/partial lots of a product at a warehouse,
	// oldest receipt first (ties by id), locked for update.
	ListFIFOCandidates(ctx context.Context, productID, warehouseID id.ID) ([]*Lot, error)

	// ListBySourceOrder returns lots created by an order.
	ListBySourceOrder(ctx context.Context, orderID id.ID) ([]*Lot, error)

	List(ctx context.Context, filter Filter) (domain.ListResult[*Lot], error)
	SummaryByProduct(ctx context.Context) ([]ProductSummary, error)

	// Allocations

	CreateAllocations(ctx context.Context, allocs []Allocation) error
	ListAllocationsByOrder(ctx context.Context, orderID id.ID) ([]Allocation, error)
	ListAllocationsByLine(ctx context.Context, lineID id.ID) ([]Allocation, error)
	ListAllocationsByLot(ctx context.Context, lotID id.ID) ([]Allocation, error)
	DeleteAllocationsByOrder(ctx context.Context, orderID id.ID) error
}

// Filter narrows lot listings.
type Filter struct {
	domain.ListFilter
	ProductID     *id.ID
	WarehouseID   *id.ID
	Status        *Status
	SourceOrderID *id.ID
	OnlyAvailable bool
}

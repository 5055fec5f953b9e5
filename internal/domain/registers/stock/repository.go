package stock

import (
	"context"
	"time"

	"coldledger/internal/core/id"
	"coldledger/internal/domain"
)

// Repository defines persistence for stock rows and flows.
type Repository interface {
	// GetForUpdate returns the row for key with a row lock; NotFound when missing.
	GetForUpdate(ctx context.Context, key Key) (*Stock, error)

	GetByID(ctx context.Context, id id.ID) (*Stock, error)
	Create(ctx context.Context, s *Stock) error
	Update(ctx context.Context, s *Stock) error

	// List returns rows filtered by warehouse/product.
	List(ctx context.Context, filter Filter) (domain.ListResult[*Stock], error)

	// ListAll returns every row (recompute).
	ListAll(ctx context.Context) ([]*Stock, error)

	// DeleteEmpty removes rows with zero quantity and zero reservation.
	DeleteEmpty(ctx context.Context) (int, error)

	// Flow journal

	AppendFlow(ctx context.Context, f *Flow) error
	GetFlow(ctx context.Context, id id.ID) (*Flow, error)
	IsFlowReverted(ctx context.Context, flowID id.ID) (bool, error)
	ListFlows(ctx context.Context, filter FlowFilter) (domain.ListResult[*Flow], error)

	// SumAdjustments totals adjust flow deltas per key for the given sources.
	SumAdjustments(ctx context.Context, sources []FlowSource) ([]Delta, error)
}

// History exposes stock legs of completed orders.
type History interface {
	// CompletedLegs returns one signed delta per completed order line leg.
	CompletedLegs(ctx context.Context) ([]Delta, error)
}

// Filter narrows stock listings.
type Filter struct {
	domain.ListFilter
	WarehouseID *id.ID
	ProductID   *id.ID
	OnlyNonZero bool
	BelowSafety bool
}

// FlowFilter narrows flow listings.
type FlowFilter struct {
	domain.ListFilter
	StockID     *id.ID
	WarehouseID *id.ID
	ProductID   *id.ID
	OrderID     *id.ID
	Type        *FlowType
	FromDate    *time.Time
	ToDate      *time.Time
}

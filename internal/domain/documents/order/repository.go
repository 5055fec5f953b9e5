package order

import (
	"context"
	"time"

	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain"
)

// Repository defines persistence for orders, their lines and flows.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Update(ctx context.Context, o *Order) error
	Delete(ctx context.Context, orderID id.ID) error
	GetByID(ctx context.Context, orderID id.ID) (*Order, error)

	// GetForUpdate returns the header with a row lock.
	GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error)

	// SaveLines replaces all lines of an order.
	SaveLines(ctx context.Context, orderID id.ID, lines []Line) error
	GetLines(ctx context.Context, orderID id.ID) ([]Line, error)
	GetLine(ctx context.Context, lineID id.ID) (*Line, error)

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error)

	// ListChildren returns orders whose RelatedOrderID is orderID.
	ListChildren(ctx context.Context, orderID id.ID) ([]*Order, error)

	// ReturnedQuantities sums line quantities of non-cancelled orders per OriginalLineID.
	ReturnedQuantities(ctx context.Context, originalLineIDs []id.ID) (map[id.ID]types.Quantity, error)

	// ListCompleted returns every completed order with its lines.
	ListCompleted(ctx context.Context) ([]*Order, error)

	AppendFlow(ctx context.Context, f *Flow) error
	ListFlows(ctx context.Context, orderID id.ID) ([]*Flow, error)
}

// ListFilter narrows order queries.
type ListFilter struct {
	domain.ListFilter

	Type     *Type
	Status   *Status
	PartyID  *id.ID // matches source or target
	DateFrom *time.Time
	DateTo   *time.Time
}

// Archive keeps snapshots of force-deleted orders.
type Archive interface {
	Store(ctx context.Context, snap *Snapshot) error
}

// Snapshot is what is archived when an order is deleted.
type Snapshot struct {
	Order     *Order    `json:"order"`
	Flows     []*Flow   `json:"flows"`
	DeletedBy string    `json:"deletedBy"`
	DeletedAt time.Time `json:"deletedAt"`
	Forced    bool      `json:"forced"`
}

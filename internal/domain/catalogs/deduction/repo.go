package deduction

import (
	"context"

	"coldledger/internal/core/id"
	"coldledger/internal/domain"
)

// Repository defines the interface for formula persistence.
type Repository interface {
	Create(ctx context.Context, f *Formula) error
	GetByID(ctx context.Context, id id.ID) (*Formula, error)
	GetByName(ctx context.Context, name string) (*Formula, error)
	Update(ctx context.Context, f *Formula) error
	Delete(ctx context.Context, id id.ID) error
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Formula], error)
	Count(ctx context.Context) (int64, error)

	// ClearDefault unsets is_default on every formula except keepID.
	ClearDefault(ctx context.Context, keepID id.ID) error

	// IsReferenced reports whether a lot or order line points at the formula.
	IsReferenced(ctx context.Context, id id.ID) (bool, error)
}

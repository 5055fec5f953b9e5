package party

import (
	"context"

	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain"
)

// Repository defines the interface for Party persistence.
type Repository interface {
	domain.CatalogRepository[*Party]

	// GetForUpdate retrieves party with row lock (for balance updates).
	GetForUpdate(ctx context.Context, id id.ID) (*Party, error)

	// AdjustBalance adds delta to current_balance.
	AdjustBalance(ctx context.Context, id id.ID, delta types.Money) error

	// IsReferenced reports whether orders, stock or entries point at the party.
	IsReferenced(ctx context.Context, id id.ID) (bool, error)
}

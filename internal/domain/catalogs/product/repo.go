package product

import (
	"coldledger/internal/domain"
)

// Repository defines the interface for Product persistence.
// Specs are saved and loaded together with their product.
type Repository interface {
	domain.CatalogRepository[*Product]
}

package product

import (
	"context"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/core/tx"
	"coldledger/internal/domain"
)

// Service provides business logic for the product catalog.
type Service struct {
	*domain.CatalogService[*Product]
	repo Repository
}

// NewService creates a new product service.
func NewService(repo Repository, txm tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Product]{
		Repo:       repo,
		TxManager:  txm,
		EntityName: "product",
	})
	svc := &Service{CatalogService: base, repo: repo}

	base.Hooks().OnBeforeCreate(svc.prepare)
	base.Hooks().OnBeforeUpdate(svc.prepare)

	return svc
}

func (s *Service) prepare(ctx context.Context, p *Product) error {
	for i := range p.Specs {
		if id.IsNil(p.Specs[i].ID) {
			p.Specs[i].ID = id.New()
		}
		p.Specs[i].ProductID = p.ID
	}
	p.Touch()
	return s.EnsureUniqueCode(ctx, p.ID, p.Code)
}

// ResolveSpec loads a product and, when specID is set, its packaging spec.
func (s *Service) ResolveSpec(ctx context.Context, productID id.ID, specID *id.ID) (*Product, *PackagingSpec, error) {
	p, err := s.GetByID(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if specID == nil {
		return p, nil, nil
	}
	spec, ok := p.Spec(*specID)
	if !ok {
		return nil, nil, apperror.NewValidation("packaging spec does not belong to product").
			WithDetail("productId", productID.String()).
			WithDetail("specId", specID.String())
	}
	return p, &spec, nil
}

package handlers

import (
	"coldledger/internal/domain/catalogs/product"
	"coldledger/internal/infrastructure/http/v1/dto"
)

// NewProductHandler serves /products.
func NewProductHandler(base *BaseHandler, svc *product.Service) *CatalogHandler[*product.Product, dto.ProductRequest, *product.Product] {
	return NewCatalogHandler(base, CatalogHandlerConfig[*product.Product, dto.ProductRequest, *product.Product]{
		Service: svc.CatalogService,
		MapCreate: func(req dto.ProductRequest) (*product.Product, error) {
			return req.ToEntity(), nil
		},
		MapUpdate: func(req dto.ProductRequest, existing *product.Product) error {
			req.ApplyTo(existing)
			return nil
		},
		MapToDTO: func(p *product.Product) *product.Product { return p },
	})
}

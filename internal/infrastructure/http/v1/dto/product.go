package dto

import (
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain/catalogs/product"
)

// SpecRequest is one packaging spec of a product. A spec without id is new.
type SpecRequest struct {
	ID            *id.ID          `json:"id"`
	Name          string          `json:"name" binding:"required,max=100"`
	ContainerName string          `json:"containerName" binding:"max=50"`
	UnitQuantity  *types.Quantity `json:"unitQuantity"`
	IsDefault     bool            `json:"isDefault"`
}

// ProductRequest creates or replaces a product with its specs.
type ProductRequest struct {
	Code     string        `json:"code" binding:"required,max=50"`
	Name     string        `json:"name" binding:"required,max=200"`
	BaseUnit string        `json:"baseUnit" binding:"max=20"`
	Category string        `json:"category" binding:"max=100"`
	Specs    []SpecRequest `json:"specs" binding:"dive"`
	IsActive *bool         `json:"isActive"`
}

// ToEntity builds a new product.
func (r ProductRequest) ToEntity() *product.Product {
	p := product.NewProduct(r.Code, r.Name)
	r.ApplyTo(p)
	return p
}

// ApplyTo overwrites p with the request, replacing its spec list.
func (r ProductRequest) ApplyTo(p *product.Product) {
	p.Code = r.Code
	p.Name = r.Name
	if r.BaseUnit != "" {
		p.BaseUnit = r.BaseUnit
	}
	p.Category = r.Category
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	specs := make([]product.PackagingSpec, 0, len(r.Specs))
	for _, s := range r.Specs {
		spec := product.PackagingSpec{
			ProductID:     p.ID,
			Name:          s.Name,
			ContainerName: s.ContainerName,
			UnitQuantity:  s.UnitQuantity,
			IsDefault:     s.IsDefault,
		}
		if s.ID != nil {
			spec.ID = *s.ID
		}
		specs = append(specs, spec)
	}
	p.Specs = specs
}

// Package product provides the product catalog and its packaging specs.
package product

import (
	"context"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/entity"
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
)

// DefaultBaseUnit is the base unit used when none is given.
const DefaultBaseUnit = "kg"

// PackagingSpec is a named container with a fixed base-unit content, e.g. "case = 15 kg".
type PackagingSpec struct {
	ID            id.ID           `db:"id" json:"id"`
	ProductID     id.ID           `db:"product_id" json:"productId"`
	Name          string          `db:"name" json:"name"`
	ContainerName string          `db:"container_name" json:"containerName"`
	UnitQuantity  *types.Quantity `db:"unit_quantity" json:"unitQuantity,omitempty"`
	IsDefault     bool            `db:"is_default" json:"isDefault"`
}

// Product is a physical good tracked by weight.
type Product struct {
	entity.Catalog

	BaseUnit string `db:"base_unit" json:"baseUnit"`
	Category string `db:"category" json:"category,omitempty"`

	Specs []PackagingSpec `db:"-" json:"specs"`
}

// NewProduct creates an active product measured in kg.
func NewProduct(code, name string) *Product {
	return &Product{
		Catalog:  entity.NewCatalog(code, name),
		BaseUnit: DefaultBaseUnit,
	}
}

// Validate implements entity.Validatable interface.
func (p *Product) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}
	if p.BaseUnit == "" {
		return apperror.NewValidation("base unit is required").
			WithDetail("field", "baseUnit")
	}

	defaults := 0
	for i, s := range p.Specs {
		if s.Name == "" {
			return apperror.NewValidation("spec name is required").
				WithDetail("field", "specs").
				WithDetail("index", i)
		}
		if s.UnitQuantity != nil && !s.UnitQuantity.IsPositive() {
			return apperror.NewValidation("spec unit quantity must be positive").
				WithDetail("field", "specs").
				WithDetail("index", i)
		}
		if s.IsDefault {
			defaults++
		}
	}
	if defaults > 1 {
		return apperror.NewValidation("at most one packaging spec can be default").
			WithDetail("field", "specs")
	}
	return nil
}

// Spec finds a packaging spec by id.
func (p *Product) Spec(specID id.ID) (PackagingSpec, bool) {
	for _, s := range p.Specs {
		if s.ID == specID {
			return s, true
		}
	}
	return PackagingSpec{}, false
}

// DefaultSpec returns the default packaging spec, if any.
func (p *Product) DefaultSpec() (PackagingSpec, bool) {
	for _, s := range p.Specs {
		if s.IsDefault {
			return s, true
		}
	}
	return PackagingSpec{}, false
}

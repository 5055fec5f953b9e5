package dto

import (
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain/catalogs/deduction"
)

// FormulaRequest creates or replaces a deduction formula.
type FormulaRequest struct {
	Name        string           `json:"name" binding:"required,max=100"`
	Method      deduction.Method `json:"method" binding:"required,oneof=none percentage fixed fixed_per_unit"`
	Value       types.Quantity   `json:"value"`
	Description string           `json:"description" binding:"max=300"`
	IsDefault   bool             `json:"isDefault"`
	IsActive    *bool            `json:"isActive"`
	SortOrder   int              `json:"sortOrder"`
}

// ToEntity builds a new formula.
func (r FormulaRequest) ToEntity() *deduction.Formula {
	f := deduction.NewFormula(r.Name, r.Method, r.Value)
	r.ApplyTo(f)
	return f
}

// ApplyTo overwrites the editable fields of f.
func (r FormulaRequest) ApplyTo(f *deduction.Formula) {
	f.Name = r.Name
	f.Method = r.Method
	f.Value = r.Value
	f.Description = r.Description
	f.IsDefault = r.IsDefault
	f.SortOrder = r.SortOrder
	if r.IsActive != nil {
		f.IsActive = *r.IsActive
	}
}

// FormulaResponse adds the human-readable rule.
type FormulaResponse struct {
	*deduction.Formula
	Display string `json:"display"`
}

// FromFormula wraps f for output.
func FromFormula(f *deduction.Formula) FormulaResponse {
	return FormulaResponse{Formula: f, Display: f.Display()}
}

// CalculateRequest previews net weight for a gross weight.
type CalculateRequest struct {
	FormulaID   *id.ID         `json:"formulaId"`
	GrossWeight types.Quantity `json:"grossWeight"`
	Units       types.Quantity `json:"units"`
}

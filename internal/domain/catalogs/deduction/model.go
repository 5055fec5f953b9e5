package deduction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
)

// Formula is a named deduction policy with one parameter.
type Formula struct {
	ID          id.ID           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Method      Method          `db:"method" json:"method"`
	Value       decimal.Decimal `db:"value" json:"value"`
	Description string          `db:"description" json:"description,omitempty"`
	IsDefault   bool            `db:"is_default" json:"isDefault"`
	IsActive    bool            `db:"is_active" json:"isActive"`
	SortOrder   int             `db:"sort_order" json:"sortOrder"`
	CreatedBy   string          `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// NewFormula creates an active formula.
func NewFormula(name string, method Method, value decimal.Decimal) *Formula {
	now := time.Now().UTC()
	return &Formula{
		ID:        id.New(),
		Name:      strings.TrimSpace(name),
		Method:    method,
		Value:     value,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// GetID implements entity.Identifiable.
func (f *Formula) GetID() id.ID { return f.ID }

// Validate implements entity.Validatable.
func (f *Formula) Validate(ctx context.Context) error {
	if f.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if !f.Method.IsValid() {
		return apperror.NewValidation("invalid deduction method").
			WithDetail("field", "method").
			WithDetail("value", string(f.Method))
	}
	if f.Value.IsNegative() {
		return apperror.NewValidation("value cannot be negative").WithDetail("field", "value")
	}
	if f.Method == MethodPercentage && f.Value.GreaterThan(decimal.NewFromInt(1)) {
		return apperror.NewValidation("percentage multiplier must be between 0 and 1").
			WithDetail("field", "value")
	}
	return nil
}

// Apply evaluates the formula for a gross weight and unit count.
func (f *Formula) Apply(gross, units types.Quantity) Weights {
	return Evaluate(f.Method, f.Value, gross, units)
}

// Display renders the formula in human-readable form.
func (f *Formula) Display() string {
	switch f.Method {
	case MethodNone:
		return "net = gross"
	case MethodPercentage:
		pct := decimal.NewFromInt(1).Sub(f.Value).Mul(decimal.NewFromInt(100))
		return fmt.Sprintf("net = gross × %s (%s%% off)", f.Value.String(), pct.StringFixed(1))
	case MethodFixed:
		return fmt.Sprintf("net = gross - %s", f.Value.String())
	case MethodFixedPerUnit:
		return fmt.Sprintf("net = gross - units × %s", f.Value.String())
	}
	return "unknown"
}

// Package party provides the party catalog: suppliers, customers, cold-storage
// warehouses, logistics carriers and the system expense account.
package party

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/entity"
	"coldledger/internal/core/types"
)

// SystemExpenseCode identifies the built-in misc-expense party.
const SystemExpenseCode = "SYS-EXPENSE"

// Role is a bitset of the functions a party plays. Roles combine freely.
type Role uint16

const (
	RoleSupplier Role = 1 << iota
	RoleCustomer
	RoleWarehouse
	RoleLogistics
	RoleTransit
	RoleExpense
)

var roleNames = []struct {
	role Role
	name string
}{
	{RoleSupplier, "supplier"},
	{RoleCustomer, "customer"},
	{RoleWarehouse, "warehouse"},
	{RoleLogistics, "logistics"},
	{RoleTransit, "transit"},
	{RoleExpense, "expense"},
}

// Has reports whether every bit of want is set.
func (r Role) Has(want Role) bool {
	return want != 0 && r&want == want
}

// Strings returns the wire names of the set roles in declaration order.
func (r Role) Strings() []string {
	out := make([]string, 0, len(roleNames))
	for _, rn := range roleNames {
		if r&rn.role != 0 {
			out = append(out, rn.name)
		}
	}
	return out
}

// ParseRoles converts wire names into a bitset.
func ParseRoles(names []string) (Role, error) {
	var r Role
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		found := false
		for _, rn := range roleNames {
			if rn.name == n {
				r |= rn.role
				found = true
				break
			}
		}
		if !found {
			return 0, apperror.NewValidation("unknown party role").
				WithDetail("field", "roles").
				WithDetail("value", n)
		}
	}
	return r, nil
}

// MarshalJSON renders roles as a list of names.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Strings())
}

// UnmarshalJSON accepts a list of role names.
func (r *Role) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParseRoles(names)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value implements driver.Valuer.
func (r Role) Value() (driver.Value, error) {
	return int64(r), nil
}

// Scan implements sql.Scanner.
func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*r = Role(v)
	case int32:
		*r = Role(v)
	case int16:
		*r = Role(v)
	case nil:
		*r = 0
	default:
		return fmt.Errorf("party role: unsupported type %T", src)
	}
	return nil
}

// Party is a business counterparty or a stock location.
type Party struct {
	entity.Catalog

	Roles    Role `db:"roles" json:"roles"`
	IsSystem bool `db:"is_system" json:"isSystem"`

	// CurrentBalance is positive when the party owes us.
	CurrentBalance types.Money  `db:"current_balance" json:"currentBalance"`
	CreditLimit    *types.Money `db:"credit_limit" json:"creditLimit,omitempty"`

	Contact string `db:"contact" json:"contact,omitempty"`
	Phone   string `db:"phone" json:"phone,omitempty"`
	Address string `db:"address" json:"address,omitempty"`
	Notes   string `db:"notes" json:"notes,omitempty"`
}

// NewParty creates an active party with the given roles.
func NewParty(code, name string, roles Role) *Party {
	return &Party{
		Catalog:        entity.NewCatalog(code, name),
		Roles:          roles,
		CurrentBalance: types.Zero(),
	}
}

// Validate implements entity.Validatable interface.
func (p *Party) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}
	if p.Roles == 0 {
		return apperror.NewValidation("at least one role is required").
			WithDetail("field", "roles")
	}
	if p.Roles.Has(RoleTransit) && !p.Roles.Has(RoleWarehouse) {
		return apperror.NewValidation("transit role requires warehouse role").
			WithDetail("field", "roles")
	}
	if p.CreditLimit != nil && p.CreditLimit.IsNegative() {
		return apperror.NewValidation("credit limit cannot be negative").
			WithDetail("field", "creditLimit")
	}
	return nil
}

// IsWarehouse reports whether the party can hold stock and lots.
func (p *Party) IsWarehouse() bool {
	return p.Roles.Has(RoleWarehouse)
}

// IsTransit reports whether the party is an in-transit (vehicle) warehouse.
func (p *Party) IsTransit() bool {
	return p.Roles.Has(RoleWarehouse | RoleTransit)
}

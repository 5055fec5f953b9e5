package dto

import (
	"coldledger/internal/core/types"
	"coldledger/internal/domain/catalogs/party"
)

var roleLabels = map[string]string{
	"supplier":  "Supplier",
	"customer":  "Customer",
	"warehouse": "Warehouse",
	"logistics": "Logistics provider",
	"transit":   "Transit warehouse",
	"expense":   "Expense account",
}

// RoleLabels returns display names for the roles in r.
func RoleLabels(r party.Role) []string {
	names := r.Strings()
	out := make([]string, 0, len(names))
	for _, n := range names {
		if l, ok := roleLabels[n]; ok {
			out = append(out, l)
			continue
		}
		out = append(out, n)
	}
	return out
}

// PartyRequest creates or replaces a party.
type PartyRequest struct {
	Code        string       `json:"code" binding:"required,max=50"`
	Name        string       `json:"name" binding:"required,max=200"`
	Roles       []string     `json:"roles" binding:"required,min=1"`
	CreditLimit *types.Money `json:"creditLimit"`
	Contact     string       `json:"contact" binding:"max=100"`
	Phone       string       `json:"phone" binding:"max=50"`
	Address     string       `json:"address" binding:"max=300"`
	Notes       string       `json:"notes"`
	IsActive    *bool        `json:"isActive"`
}

// ToEntity builds a new party.
func (r PartyRequest) ToEntity() (*party.Party, error) {
	roles, err := party.ParseRoles(r.Roles)
	if err != nil {
		return nil, err
	}
	p := party.NewParty(r.Code, r.Name, roles)
	r.fill(p)
	return p, nil
}

// ApplyTo overwrites the editable fields of p. Balance and system flag stay.
func (r PartyRequest) ApplyTo(p *party.Party) error {
	roles, err := party.ParseRoles(r.Roles)
	if err != nil {
		return err
	}
	p.Code = r.Code
	p.Name = r.Name
	p.Roles = roles
	r.fill(p)
	return nil
}

func (r PartyRequest) fill(p *party.Party) {
	p.CreditLimit = r.CreditLimit
	p.Contact = r.Contact
	p.Phone = r.Phone
	p.Address = r.Address
	p.Notes = r.Notes
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
}

// PartyResponse is a party with role display names.
type PartyResponse struct {
	*party.Party
	RoleLabels []string `json:"roleLabels"`
}

// FromParty wraps p for output.
func FromParty(p *party.Party) PartyResponse {
	return PartyResponse{Party: p, RoleLabels: RoleLabels(p.Roles)}
}

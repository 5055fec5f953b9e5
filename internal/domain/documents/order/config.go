package order

import (
	"coldledger/internal/domain/catalogs/party"
)

// Type is the kind of business order.
type Type string

const (
	TypePurchase  Type = "purchase"
	TypeSale      Type = "sale"
	TypeTransfer  Type = "transfer"
	TypeReturnIn  Type = "return_in"
	TypeReturnOut Type = "return_out"
	TypeLoading   Type = "loading"
	TypeUnloading Type = "unloading"
)

// TypeConfig describes numbering and party requirements of an order type.
type TypeConfig struct {
	Prefix string
	Label  string

	// SourceRole and TargetRole are required roles; zero means any party.
	SourceRole party.Role
	TargetRole party.Role
}

var typeConfigs = map[Type]TypeConfig{
	TypePurchase:  {Prefix: "PO", Label: "Purchase", TargetRole: party.RoleWarehouse},
	TypeSale:      {Prefix: "SO", Label: "Sale", SourceRole: party.RoleWarehouse},
	TypeTransfer:  {Prefix: "TO", Label: "Transfer", SourceRole: party.RoleWarehouse, TargetRole: party.RoleWarehouse},
	TypeReturnIn:  {Prefix: "RI", Label: "Customer return", TargetRole: party.RoleWarehouse},
	TypeReturnOut: {Prefix: "RO", Label: "Supplier return", SourceRole: party.RoleWarehouse},
	TypeLoading:   {Prefix: "LO", Label: "Loading", TargetRole: party.RoleWarehouse | party.RoleTransit},
	TypeUnloading: {Prefix: "UO", Label: "Unloading", SourceRole: party.RoleWarehouse | party.RoleTransit},
}

// Config returns the type's configuration.
func (t Type) Config() (TypeConfig, bool) {
	c, ok := typeConfigs[t]
	return c, ok
}

// Legs returns the stock legs completing an order of type t runs. Only the free
// end of loading and unloading depends on roles: it takes part when it holds stock.
func (t Type) Legs(source, target party.Role) (outbound, inbound bool) {
	switch t {
	case TypePurchase, TypeReturnIn:
		return false, true
	case TypeSale, TypeReturnOut:
		return true, false
	case TypeTransfer:
		return true, true
	case TypeLoading:
		return source.Has(party.RoleWarehouse), true
	case TypeUnloading:
		return true, target.Has(party.RoleWarehouse)
	}
	return false, false
}

// IsValid reports whether t is a known order type.
func (t Type) IsValid() bool {
	_, ok := typeConfigs[t]
	return ok
}

// Label returns a display name.
func (t Type) Label() string {
	if c, ok := typeConfigs[t]; ok {
		return c.Label
	}
	return string(t)
}

// Returnable reports whether completed orders of this type can spawn a return.
func (t Type) Returnable() bool {
	return t == TypeSale || t == TypePurchase
}

// ReturnType maps an order type to the type of its return order.
func (t Type) ReturnType() (Type, bool) {
	switch t {
	case TypeSale:
		return TypeReturnIn, true
	case TypePurchase:
		return TypeReturnOut, true
	}
	return "", false
}

// Types lists all order types in display order.
func Types() []Type {
	return []Type{TypePurchase, TypeSale, TypeTransfer, TypeReturnIn, TypeReturnOut, TypeLoading, TypeUnloading}
}

// Status is the lifecycle state of an order.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var statusLabels = map[Status]string{
	StatusDraft:     "Draft",
	StatusCompleted: "Completed",
	StatusCancelled: "Cancelled",
}

// Label returns a display name.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Action is a status change request.
type Action string

const (
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionReturn   Action = "return"
)

// PricingMode selects how a line amount is computed.
type PricingMode string

const (
	PricingWeight    PricingMode = "weight"
	PricingContainer PricingMode = "container"
)

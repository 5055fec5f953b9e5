// Package lot provides the lot ledger: one lot per physical receipt, costed by
// net weight, consumed by FIFO allocations.
package lot

import (
	"time"

	"github.com/shopspring/decimal"

	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
)

// Status is the fill level of a lot.
type Status string

const (
	StatusActive   Status = "active"
	StatusPartial  Status = "partial"
	StatusDepleted Status = "depleted"
)

// Lot is one physical inbound receipt held at a warehouse.
type Lot struct {
	ID          id.ID  `db:"id" json:"id"`
	LotNo       string `db:"lot_no" json:"lotNo"`
	ProductID   id.ID  `db:"product_id" json:"productId"`
	SpecID      *id.ID `db:"spec_id" json:"specId,omitempty"`
	WarehouseID id.ID  `db:"warehouse_id" json:"warehouseId"`

	SourcePartyID *id.ID `db:"source_party_id" json:"sourcePartyId,omitempty"`
	SourceOrderID *id.ID `db:"source_order_id" json:"sourceOrderId,omitempty"`
	SourceLineID  *id.ID `db:"source_line_id" json:"sourceLineId,omitempty"`
	FormulaID     *id.ID `db:"formula_id" json:"formulaId,omitempty"`

	GrossWeight        types.Quantity `db:"gross_weight" json:"grossWeight"`
	TareWeight         types.Quantity `db:"tare_weight" json:"tareWeight"`
	CurrentGrossWeight types.Quantity `db:"current_gross_weight" json:"currentGrossWeight"`

	InitialQuantity  types.Quantity `db:"initial_quantity" json:"initialQuantity"`
	CurrentQuantity  types.Quantity `db:"current_quantity" json:"currentQuantity"`
	ReservedQuantity types.Quantity `db:"reserved_quantity" json:"reservedQuantity"`

	CostPrice        types.Money `db:"cost_price" json:"costPrice"`
	CostAmount       types.Money `db:"cost_amount" json:"costAmount"`
	FreightCost      types.Money `db:"freight_cost" json:"freightCost"`
	StorageRate      types.Money `db:"storage_rate" json:"storageRate"`
	StorageStartDate time.Time   `db:"storage_start_date" json:"storageStartDate"`
	ExtraCost        types.Money `db:"extra_cost" json:"extraCost"`
	ExtraCostNotes   string      `db:"extra_cost_notes" json:"extraCostNotes,omitempty"`

	Status     Status    `db:"status" json:"status"`
	IsInitial  bool      `db:"is_initial" json:"isInitial"`
	ReceivedAt time.Time `db:"received_at" json:"receivedAt"`
	Notes      string    `db:"notes" json:"notes,omitempty"`

	CreatedBy string    `db:"created_by" json:"createdBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Available is current minus reserved.
func (l *Lot) Available() types.Quantity {
	return l.CurrentQuantity.Sub(l.ReservedQuantity)
}

// RefreshStatus derives status from current and initial quantity.
func (l *Lot) RefreshStatus() {
	switch {
	case !l.CurrentQuantity.IsPositive():
		l.Status = StatusDepleted
	case l.CurrentQuantity.LessThan(l.InitialQuantity):
		l.Status = StatusPartial
	default:
		l.Status = StatusActive
	}
}

// share scales an original total by current/initial quantity.
func (l *Lot) share(total types.Money) types.Money {
	if !l.InitialQuantity.IsPositive() {
		return total
	}
	return total.Mul(l.CurrentQuantity).Div(l.InitialQuantity)
}

// StorageDays counts whole days from the storage start to asOf (never negative).
func (l *Lot) StorageDays(asOf time.Time) int {
	if l.StorageStartDate.IsZero() {
		return 0
	}
	d := types.DaysBetween(l.StorageStartDate, asOf)
	if d < 0 {
		return 0
	}
	return d
}

// AccruedStorage is current gross × rate × days stored.
func (l *Lot) AccruedStorage(asOf time.Time) types.Money {
	if !l.StorageRate.IsPositive() {
		return types.Zero()
	}
	days := decimal.NewFromInt(int64(l.StorageDays(asOf)))
	return l.CurrentGrossWeight.Mul(l.StorageRate).Mul(days)
}

// RealCostPrice is the per-unit cost of what remains, including the freight and
// extra cost shares and storage accrued up to asOf.
func (l *Lot) RealCostPrice(asOf time.Time) types.Money {
	if !l.CurrentQuantity.IsPositive() {
		return l.CostPrice
	}
	total := l.CostPrice.Mul(l.CurrentQuantity).
		Add(l.share(l.FreightCost)).
		Add(l.AccruedStorage(asOf)).
		Add(l.share(l.ExtraCost))
	return types.RoundQuantity(total.Div(l.CurrentQuantity))
}

// setCurrent moves current quantity and keeps gross weight proportional.
func (l *Lot) setCurrent(qty types.Quantity) {
	l.CurrentQuantity = qty
	if l.InitialQuantity.IsPositive() {
		l.CurrentGrossWeight = types.RoundQuantity(l.GrossWeight.Mul(qty).Div(l.InitialQuantity))
	} else {
		l.CurrentGrossWeight = qty
	}
	if l.CurrentGrossWeight.IsNegative() {
		l.CurrentGrossWeight = types.Zero()
	}
	l.RefreshStatus()
	l.UpdatedAt = time.Now().UTC()
}

// AllocationKind separates outbound consumption from return restorations.
type AllocationKind string

const (
	// KindFIFO consumes lot quantity for an outbound line.
	KindFIFO AllocationKind = "fifo"
	// KindRestore puts returned quantity back into the lot it was sold from.
	KindRestore AllocationKind = "restore"
)

// Allocation links an order line to a lot. Cost is frozen when created.
type Allocation struct {
	ID          id.ID          `db:"id" json:"id"`
	OrderID     id.ID          `db:"order_id" json:"orderId"`
	OrderLineID id.ID          `db:"order_line_id" json:"orderLineId"`
	LotID       id.ID          `db:"lot_id" json:"lotId"`
	LotNo       string         `db:"lot_no" json:"lotNo"`
	Kind        AllocationKind `db:"kind" json:"kind"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	CostPrice   types.Money    `db:"cost_price" json:"costPrice"`
	CostAmount  types.Money    `db:"cost_amount" json:"costAmount"`
	ReceivedAt  time.Time      `db:"received_at" json:"receivedAt"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}

// ProductSummary aggregates remaining lots per product.
type ProductSummary struct {
	ProductID     id.ID          `db:"product_id" json:"productId"`
	LotCount      int            `db:"lot_count" json:"lotCount"`
	TotalQuantity types.Quantity `db:"total_quantity" json:"totalQuantity"`
	TotalGross    types.Quantity `db:"total_gross" json:"totalGross"`
	TotalCost     types.Money    `db:"total_cost" json:"totalCost"`
}

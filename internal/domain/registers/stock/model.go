// Package stock provides the stock ledger: on-hand and reserved quantity per
// (warehouse, product, packaging spec) plus an append-only flow journal.
package stock

import (
	"fmt"
	"time"

	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
)

// FlowType classifies a stock mutation.
type FlowType string

const (
	FlowIn      FlowType = "in"
	FlowOut     FlowType = "out"
	FlowReserve FlowType = "reserve"
	FlowRelease FlowType = "release"
	FlowAdjust  FlowType = "adjust"
)

// FlowSource says what caused a flow.
type FlowSource string

const (
	SourceOrder     FlowSource = "order"
	SourceManual    FlowSource = "manual"
	SourceRecompute FlowSource = "recompute"
	SourceRevert    FlowSource = "revert"
	SourceOpening   FlowSource = "opening"

	// SourceLot mirrors a lot count correction; only the lot side may undo it.
	SourceLot FlowSource = "lot"
)

// Key identifies one stock row. A nil SpecID means "no packaging spec".
type Key struct {
	WarehouseID id.ID
	ProductID   id.ID
	SpecID      id.ID
}

// NewKey builds a key from an optional spec id.
func NewKey(warehouseID, productID id.ID, specID *id.ID) Key {
	k := Key{WarehouseID: warehouseID, ProductID: productID}
	if specID != nil {
		k.SpecID = *specID
	}
	return k
}

// SpecPtr returns the spec id, or nil when the key has none.
func (k Key) SpecPtr() *id.ID {
	if id.IsNil(k.SpecID) {
		return nil
	}
	s := k.SpecID
	return &s
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.WarehouseID, k.ProductID, k.SpecID)
}

// Stock is the running balance of one key.
type Stock struct {
	ID               id.ID          `db:"id" json:"id"`
	WarehouseID      id.ID          `db:"warehouse_id" json:"warehouseId"`
	ProductID        id.ID          `db:"product_id" json:"productId"`
	SpecID           *id.ID         `db:"spec_id" json:"specId,omitempty"`
	Quantity         types.Quantity `db:"quantity" json:"quantity"`
	ReservedQuantity types.Quantity `db:"reserved_quantity" json:"reservedQuantity"`
	SafetyStock      types.Quantity `db:"safety_stock" json:"safetyStock"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
}

// NewStock creates an empty row for key.
func NewStock(key Key) *Stock {
	now := time.Now().UTC()
	return &Stock{
		ID:               id.New(),
		WarehouseID:      key.WarehouseID,
		ProductID:        key.ProductID,
		SpecID:           key.SpecPtr(),
		Quantity:         types.Zero(),
		ReservedQuantity: types.Zero(),
		SafetyStock:      types.Zero(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Key returns the row key.
func (s *Stock) Key() Key {
	return NewKey(s.WarehouseID, s.ProductID, s.SpecID)
}

// Available is on-hand minus reserved.
func (s *Stock) Available() types.Quantity {
	return s.Quantity.Sub(s.ReservedQuantity)
}

// BelowSafety reports whether available quantity is under the safety level.
func (s *Stock) BelowSafety() bool {
	return s.SafetyStock.IsPositive() && s.Available().LessThan(s.SafetyStock)
}

// IsEmpty reports a row with nothing on hand and nothing reserved.
func (s *Stock) IsEmpty() bool {
	return s.Quantity.IsZero() && s.ReservedQuantity.IsZero()
}

// Flow is one immutable journal row.
type Flow struct {
	ID             id.ID          `db:"id" json:"id"`
	StockID        id.ID          `db:"stock_id" json:"stockId"`
	WarehouseID    id.ID          `db:"warehouse_id" json:"warehouseId"`
	ProductID      id.ID          `db:"product_id" json:"productId"`
	SpecID         *id.ID         `db:"spec_id" json:"specId,omitempty"`
	OrderID        *id.ID         `db:"order_id" json:"orderId,omitempty"`
	OrderLineID    *id.ID         `db:"order_line_id" json:"orderLineId,omitempty"`
	Type           FlowType       `db:"flow_type" json:"flowType"`
	Source         FlowSource     `db:"source" json:"source"`
	QuantityChange types.Quantity `db:"quantity_change" json:"quantityChange"`
	QuantityBefore types.Quantity `db:"quantity_before" json:"quantityBefore"`
	QuantityAfter  types.Quantity `db:"quantity_after" json:"quantityAfter"`
	ReservedBefore types.Quantity `db:"reserved_before" json:"reservedBefore"`
	ReservedAfter  types.Quantity `db:"reserved_after" json:"reservedAfter"`
	Reason         string         `db:"reason" json:"reason,omitempty"`
	RevertsFlowID  *id.ID         `db:"reverts_flow_id" json:"revertsFlowId,omitempty"`
	ActorID        string         `db:"actor_id" json:"actorId"`
	OperatedAt     time.Time      `db:"operated_at" json:"operatedAt"`
}

// Key returns the stock key the flow belongs to.
func (f *Flow) Key() Key {
	return NewKey(f.WarehouseID, f.ProductID, f.SpecID)
}

// Ref describes why a mutation happens.
type Ref struct {
	OrderID     *id.ID
	OrderLineID *id.ID
	Source      FlowSource
	Reason      string
}

// OrderRef builds a reference for an order line leg.
func OrderRef(orderID, lineID id.ID, reason string) Ref {
	return Ref{OrderID: &orderID, OrderLineID: &lineID, Source: SourceOrder, Reason: reason}
}

// Delta is a signed quantity change for a key.
type Delta struct {
	Key      Key
	Quantity types.Quantity
}

// Correction records one recompute fix.
type Correction struct {
	Key      Key            `json:"-"`
	StockID  id.ID          `json:"stockId"`
	Before   types.Quantity `json:"before"`
	Expected types.Quantity `json:"expected"`
	Created  bool           `json:"created"`
}

// RecomputeReport summarizes a recompute run.
type RecomputeReport struct {
	Checked     int          `json:"checked"`
	Corrected   int          `json:"corrected"`
	Created     int          `json:"created"`
	Corrections []Correction `json:"corrections"`
}

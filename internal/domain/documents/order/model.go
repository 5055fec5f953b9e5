// Package order provides business orders: purchases, sales, transfers, returns,
// and transit loading/unloading, with their completion and reversal.
package order

import (
	"context"
	"time"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
)

// Order is a business order header with its lines.
type Order struct {
	ID             id.ID  `db:"id" json:"id"`
	OrderNo        string `db:"order_no" json:"orderNo"`
	Type           Type   `db:"order_type" json:"type"`
	Status         Status `db:"status" json:"status"`
	SourceID       id.ID  `db:"source_id" json:"sourceId"`
	TargetID       id.ID  `db:"target_id" json:"targetId"`
	RelatedOrderID *id.ID `db:"related_order_id" json:"relatedOrderId,omitempty"`

	// LogisticsPartyID is the carrier billed for freight; lines may name their own.
	LogisticsPartyID *id.ID `db:"logistics_party_id" json:"logisticsPartyId,omitempty"`

	OrderDate   time.Time  `db:"order_date" json:"orderDate"`
	DueDate     *time.Time `db:"due_date" json:"dueDate,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`

	TotalQuantity  types.Quantity `db:"total_quantity" json:"totalQuantity"`
	GoodsAmount    types.Money    `db:"goods_amount" json:"goodsAmount"`
	ShippingAmount types.Money    `db:"shipping_amount" json:"shippingAmount"`
	StorageFee     types.Money    `db:"storage_fee" json:"storageFee"`
	OtherFee       types.Money    `db:"other_fee" json:"otherFee"`
	Discount       types.Money    `db:"discount" json:"discount"`
	FinalAmount    types.Money    `db:"final_amount" json:"finalAmount"`

	// ShippingOverride and DiscountOverride replace the line sums when set.
	ShippingOverride *types.Money `db:"shipping_override" json:"shippingOverride,omitempty"`
	DiscountOverride *types.Money `db:"discount_override" json:"discountOverride,omitempty"`

	CalculateStorageFee bool   `db:"calculate_storage_fee" json:"calculateStorageFee"`
	StorageFeeLeg       string `db:"storage_fee_leg" json:"storageFeeLeg,omitempty"`

	// Recorded at completion; they drive stock recompute and delete reversal.
	OutboundWarehouseID *id.ID `db:"outbound_warehouse_id" json:"outboundWarehouseId,omitempty"`
	InboundWarehouseID  *id.ID `db:"inbound_warehouse_id" json:"inboundWarehouseId,omitempty"`

	Notes     string    `db:"notes" json:"notes,omitempty"`
	CreatedBy string    `db:"created_by" json:"createdBy"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one product row of an order.
type Line struct {
	ID      id.ID `db:"id" json:"id"`
	OrderID id.ID `db:"order_id" json:"orderId"`
	LineNo  int   `db:"line_no" json:"lineNo"`

	ProductID     id.ID           `db:"product_id" json:"productId"`
	SpecID        *id.ID          `db:"spec_id" json:"specId,omitempty"`
	SpecName      string          `db:"spec_name" json:"specName,omitempty"`
	ContainerName string          `db:"container_name" json:"containerName,omitempty"`
	UnitQuantity  *types.Quantity `db:"unit_quantity" json:"unitQuantity,omitempty"`
	BaseUnit      string          `db:"base_unit" json:"baseUnit"`

	PricingMode    PricingMode     `db:"pricing_mode" json:"pricingMode"`
	ContainerCount *types.Quantity `db:"container_count" json:"containerCount,omitempty"`

	Quantity    types.Quantity  `db:"quantity" json:"quantity"`
	GrossWeight *types.Quantity `db:"gross_weight" json:"grossWeight,omitempty"`
	TareWeight  *types.Quantity `db:"tare_weight" json:"tareWeight,omitempty"`
	FormulaID   *id.ID          `db:"formula_id" json:"formulaId,omitempty"`

	UnitPrice    types.Money  `db:"unit_price" json:"unitPrice"`
	Amount       types.Money  `db:"amount" json:"amount"`
	ShippingCost types.Money  `db:"shipping_cost" json:"shippingCost"`
	Discount     types.Money  `db:"discount" json:"discount"`
	StorageRate  *types.Money `db:"storage_rate" json:"storageRate,omitempty"`

	LotID          *id.ID `db:"lot_id" json:"lotId,omitempty"`
	OriginalLineID *id.ID `db:"original_line_id" json:"originalLineId,omitempty"`

	LogisticsPartyID *id.ID `db:"logistics_party_id" json:"logisticsPartyId,omitempty"`
	PlateNo          string `db:"plate_no" json:"plateNo,omitempty"`
	DriverPhone      string `db:"driver_phone" json:"driverPhone,omitempty"`
	InvoiceNo        string `db:"invoice_no" json:"invoiceNo,omitempty"`

	CostPrice  *types.Money   `db:"cost_price" json:"costPrice,omitempty"`
	CostAmount *types.Money   `db:"cost_amount" json:"costAmount,omitempty"`
	Profit     *types.Money   `db:"profit" json:"profit,omitempty"`
	Shortfall  types.Quantity `db:"shortfall" json:"shortfall"`

	Notes string `db:"notes" json:"notes,omitempty"`
}

// Subtotal is the line amount plus freight less discount.
func (l *Line) Subtotal() types.Money {
	return l.Amount.Add(l.ShippingCost).Sub(l.Discount)
}

// computeAmount prices the line by weight or by container count.
func (l *Line) computeAmount() {
	base := l.Quantity
	if l.PricingMode == PricingContainer && l.ContainerCount != nil {
		base = *l.ContainerCount
	}
	l.Amount = types.RoundMoney(base.Mul(l.UnitPrice))
}

// IsDraft reports whether the order can still be edited.
func (o *Order) IsDraft() bool {
	return o.Status == StatusDraft
}

// Recalculate derives totals from lines and header fees.
func (o *Order) Recalculate() {
	qty := types.Zero()
	goods := types.Zero()
	shipping := types.Zero()
	discount := types.Zero()
	for i := range o.Lines {
		l := &o.Lines[i]
		qty = qty.Add(l.Quantity)
		goods = goods.Add(l.Amount)
		shipping = shipping.Add(l.ShippingCost)
		discount = discount.Add(l.Discount)
	}
	if o.ShippingOverride != nil {
		shipping = *o.ShippingOverride
	}
	if o.DiscountOverride != nil {
		discount = *o.DiscountOverride
	}

	o.TotalQuantity = qty
	o.GoodsAmount = types.RoundMoney(goods)
	o.ShippingAmount = types.RoundMoney(shipping)
	o.Discount = types.RoundMoney(discount)
	o.StorageFee = types.RoundMoney(o.StorageFee)
	o.OtherFee = types.RoundMoney(o.OtherFee)
	o.FinalAmount = o.GoodsAmount.
		Add(o.ShippingAmount).
		Add(o.StorageFee).
		Add(o.OtherFee).
		Sub(o.Discount)
}

// Line returns the line with the given id.
func (o *Order) Line(lineID id.ID) (*Line, bool) {
	for i := range o.Lines {
		if o.Lines[i].ID == lineID {
			return &o.Lines[i], true
		}
	}
	return nil, false
}

// LogisticsParty returns the carrier for freight entries: the header's, else the first line's.
func (o *Order) LogisticsParty() *id.ID {
	if o.LogisticsPartyID != nil {
		return o.LogisticsPartyID
	}
	for _, l := range o.Lines {
		if l.LogisticsPartyID != nil {
			return l.LogisticsPartyID
		}
	}
	return nil
}

// Validate implements entity.Validatable.
func (o *Order) Validate(ctx context.Context) error {
	if !o.Type.IsValid() {
		return apperror.NewValidation("unknown order type").
			WithDetail("field", "type").
			WithDetail("value", string(o.Type))
	}
	if id.IsNil(o.SourceID) {
		return apperror.NewValidation("source is required").WithDetail("field", "sourceId")
	}
	if id.IsNil(o.TargetID) {
		return apperror.NewValidation("target is required").WithDetail("field", "targetId")
	}
	if o.SourceID == o.TargetID {
		return apperror.NewValidation("source and target must differ").WithDetail("field", "targetId")
	}
	if o.OrderDate.IsZero() {
		return apperror.NewValidation("order date is required").WithDetail("field", "orderDate")
	}
	if len(o.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}
	for _, m := range []struct {
		name  string
		value types.Money
	}{
		{"storageFee", o.StorageFee},
		{"otherFee", o.OtherFee},
	} {
		if m.value.IsNegative() {
			return apperror.NewValidation("amount cannot be negative").WithDetail("field", m.name)
		}
	}

	for i, l := range o.Lines {
		if err := l.validate(); err != nil {
			if ae, ok := apperror.AsAppError(err); ok {
				return ae.WithDetail("lineNo", i+1)
			}
			return err
		}
	}
	return nil
}

func (l *Line) validate() error {
	if id.IsNil(l.ProductID) {
		return apperror.NewValidation("product is required").WithDetail("field", "productId")
	}
	if !l.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}
	if l.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price cannot be negative").WithDetail("field", "unitPrice")
	}
	if l.ShippingCost.IsNegative() || l.Discount.IsNegative() {
		return apperror.NewValidation("line fees cannot be negative").WithDetail("field", "shippingCost")
	}
	if l.GrossWeight != nil && l.GrossWeight.LessThan(l.Quantity) {
		return apperror.NewValidation("net quantity exceeds gross weight").WithDetail("field", "grossWeight")
	}
	if l.PricingMode == PricingContainer && (l.ContainerCount == nil || !l.ContainerCount.IsPositive()) {
		return apperror.NewValidation("container count is required for container pricing").
			WithDetail("field", "containerCount")
	}
	return nil
}

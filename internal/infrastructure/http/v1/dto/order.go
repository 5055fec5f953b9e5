package dto

import (
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain/documents/order"
)

// OrderLineRequest is one line of an order request.
type OrderLineRequest struct {
	ProductID      id.ID             `json:"productId" binding:"required"`
	SpecID         *id.ID            `json:"specId"`
	PricingMode    order.PricingMode `json:"pricingMode" binding:"omitempty,oneof=weight container"`
	ContainerCount *types.Quantity   `json:"containerCount"`

	Quantity    types.Quantity  `json:"quantity"`
	GrossWeight *types.Quantity `json:"grossWeight"`
	FormulaID   *id.ID          `json:"formulaId"`

	UnitPrice    types.Money  `json:"unitPrice"`
	ShippingCost types.Money  `json:"shippingCost"`
	Discount     types.Money  `json:"discount"`
	StorageRate  *types.Money `json:"storageRate"`

	LotID          *id.ID `json:"lotId"`
	OriginalLineID *id.ID `json:"originalLineId"`

	LogisticsPartyID *id.ID `json:"logisticsPartyId"`
	PlateNo          string `json:"plateNo" binding:"max=30"`
	DriverPhone      string `json:"driverPhone" binding:"max=30"`
	InvoiceNo        string `json:"invoiceNo" binding:"max=50"`
	Notes            string `json:"notes"`
}

// OrderRequest creates or replaces a draft order.
type OrderRequest struct {
	Type             order.Type `json:"type" binding:"required"`
	SourceID         id.ID      `json:"sourceId" binding:"required"`
	TargetID         id.ID      `json:"targetId" binding:"required"`
	RelatedOrderID   *id.ID     `json:"relatedOrderId"`
	LogisticsPartyID *id.ID     `json:"logisticsPartyId"`
	OrderDate        Date       `json:"orderDate"`
	DueDate          *Date      `json:"dueDate"`

	ShippingOverride    *types.Money `json:"shippingOverride"`
	DiscountOverride    *types.Money `json:"discountOverride"`
	StorageFee          types.Money  `json:"storageFee"`
	OtherFee            types.Money  `json:"otherFee"`
	CalculateStorageFee bool         `json:"calculateStorageFee"`

	Notes string             `json:"notes"`
	Lines []OrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToInput converts the request into service input.
func (r OrderRequest) ToInput() order.Input {
	in := order.Input{
		Type:                r.Type,
		SourceID:            r.SourceID,
		TargetID:            r.TargetID,
		RelatedOrderID:      r.RelatedOrderID,
		LogisticsPartyID:    r.LogisticsPartyID,
		OrderDate:           r.OrderDate.Time,
		DueDate:             r.DueDate.Ptr(),
		ShippingOverride:    r.ShippingOverride,
		DiscountOverride:    r.DiscountOverride,
		StorageFee:          r.StorageFee,
		OtherFee:            r.OtherFee,
		CalculateStorageFee: r.CalculateStorageFee,
		Notes:               r.Notes,
		Lines:               make([]order.LineInput, 0, len(r.Lines)),
	}
	for _, l := range r.Lines {
		in.Lines = append(in.Lines, order.LineInput{
			ProductID:        l.ProductID,
			SpecID:           l.SpecID,
			PricingMode:      l.PricingMode,
			ContainerCount:   l.ContainerCount,
			Quantity:         l.Quantity,
			GrossWeight:      l.GrossWeight,
			FormulaID:        l.FormulaID,
			UnitPrice:        l.UnitPrice,
			ShippingCost:     l.ShippingCost,
			Discount:         l.Discount,
			StorageRate:      l.StorageRate,
			LotID:            l.LotID,
			OriginalLineID:   l.OriginalLineID,
			LogisticsPartyID: l.LogisticsPartyID,
			PlateNo:          l.PlateNo,
			DriverPhone:      l.DriverPhone,
			InvoiceNo:        l.InvoiceNo,
			Notes:            l.Notes,
		})
	}
	return in
}

// ReturnItemRequest returns part of one original line.
type ReturnItemRequest struct {
	LineID       id.ID          `json:"lineId" binding:"required"`
	Quantity     types.Quantity `json:"quantity"`
	ShippingCost *types.Money   `json:"shippingCost"`
}

// ActionRequest changes the status of an order.
type ActionRequest struct {
	Action order.Action `json:"action" binding:"required,oneof=complete cancel return"`
	Notes  string       `json:"notes"`

	ReturnTargetID *id.ID              `json:"returnTargetId"`
	ReturnDate     *Date               `json:"returnDate"`
	ReturnShipping *types.Money        `json:"returnShipping"`
	ReturnItems    []ReturnItemRequest `json:"returnItems" binding:"dive"`
}

// Payload converts the request into the service payload.
func (r ActionRequest) Payload() order.ActionPayload {
	p := order.ActionPayload{
		Notes:          r.Notes,
		ReturnTargetID: r.ReturnTargetID,
		ReturnDate:     r.ReturnDate.Ptr(),
		ReturnShipping: r.ReturnShipping,
	}
	for _, it := range r.ReturnItems {
		p.ReturnItems = append(p.ReturnItems, order.ReturnItem{
			LineID:       it.LineID,
			Quantity:     it.Quantity,
			ShippingCost: it.ShippingCost,
		})
	}
	return p
}

// OrderResponse is an order with display labels.
type OrderResponse struct {
	*order.Order
	TypeLabel   string `json:"typeLabel"`
	StatusLabel string `json:"statusLabel"`
}

// FromOrder wraps o for output.
func FromOrder(o *order.Order) OrderResponse {
	return OrderResponse{Order: o, TypeLabel: o.Type.Label(), StatusLabel: o.Status.Label()}
}

// ActionResponse is the outcome of a status change.
type ActionResponse struct {
	Order       OrderResponse  `json:"order"`
	ReturnOrder *OrderResponse `json:"returnOrder,omitempty"`
}

// FromActionResult wraps r for output.
func FromActionResult(r *order.ActionResult) ActionResponse {
	out := ActionResponse{Order: FromOrder(r.Order)}
	if r.ReturnOrder != nil {
		ro := FromOrder(r.ReturnOrder)
		out.ReturnOrder = &ro
	}
	return out
}

// OrderFlowResponse is one history entry with its label.
type OrderFlowResponse struct {
	*order.Flow
	TypeLabel string `json:"typeLabel"`
}

// FromOrderFlows wraps flows for output.
func FromOrderFlows(flows []*order.Flow) []OrderFlowResponse {
	out := make([]OrderFlowResponse, 0, len(flows))
	for _, f := range flows {
		out = append(out, OrderFlowResponse{Flow: f, TypeLabel: f.Type.Label()})
	}
	return out
}

// ReturnableLine is how much of an original line can still be returned.
type ReturnableLine struct {
	LineID   id.ID          `json:"lineId"`
	Quantity types.Quantity `json:"quantity"`
}

// OrderTypeInfo describes one order type.
type OrderTypeInfo struct {
	Type  order.Type `json:"type"`
	Label string     `json:"label"`
}

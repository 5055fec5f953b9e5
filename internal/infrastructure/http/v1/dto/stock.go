package dto

import (
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain/registers/stock"
)

var stockFlowLabels = map[stock.FlowType]string{
	stock.FlowIn:      "Inbound",
	stock.FlowOut:     "Outbound",
	stock.FlowReserve: "Reserved",
	stock.FlowRelease: "Released",
	stock.FlowAdjust:  "Adjustment",
}

// StockResponse is a stock row with derived quantities.
type StockResponse struct {
	*stock.Stock
	Available   types.Quantity `json:"available"`
	BelowSafety bool           `json:"belowSafety"`
}

// FromStock wraps s for output.
func FromStock(s *stock.Stock) StockResponse {
	return StockResponse{Stock: s, Available: s.Available(), BelowSafety: s.BelowSafety()}
}

// StockFlowResponse is a stock flow with its label.
type StockFlowResponse struct {
	*stock.Flow
	TypeLabel string `json:"typeLabel"`
}

// FromStockFlow wraps f for output.
func FromStockFlow(f *stock.Flow) StockFlowResponse {
	label, ok := stockFlowLabels[f.Type]
	if !ok {
		label = string(f.Type)
	}
	return StockFlowResponse{Flow: f, TypeLabel: label}
}

// StockKeyRequest addresses one stock row.
type StockKeyRequest struct {
	WarehouseID id.ID  `json:"warehouseId" binding:"required"`
	ProductID   id.ID  `json:"productId" binding:"required"`
	SpecID      *id.ID `json:"specId"`
}

// Key returns the ledger key.
func (r StockKeyRequest) Key() stock.Key {
	return stock.NewKey(r.WarehouseID, r.ProductID, r.SpecID)
}

// StockMoveRequest reserves or releases quantity.
type StockMoveRequest struct {
	StockKeyRequest
	Quantity    types.Quantity `json:"quantity"`
	OrderID     *id.ID         `json:"orderId"`
	OrderLineID *id.ID         `json:"orderLineId"`
	Reason      string         `json:"reason"`
}

// Ref builds the flow reference for the move.
func (r StockMoveRequest) Ref() stock.Ref {
	src := stock.SourceManual
	if r.OrderID != nil {
		src = stock.SourceOrder
	}
	return stock.Ref{OrderID: r.OrderID, OrderLineID: r.OrderLineID, Source: src, Reason: r.Reason}
}

// StockOpeningRequest sets the opening quantity of a row.
type StockOpeningRequest struct {
	StockKeyRequest
	Quantity types.Quantity `json:"quantity"`
	Reason   string         `json:"reason"`
}

// StockAdjustRequest corrects a row either to a counted quantity or by a delta.
type StockAdjustRequest struct {
	Quantity *types.Quantity `json:"quantity"`
	Delta    *types.Quantity `json:"delta"`
	Reason   string          `json:"reason" binding:"required"`
}

// ReasonRequest carries a free-text reason.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

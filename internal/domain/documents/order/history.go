package order

import (
	"context"
	"fmt"

	"coldledger/internal/domain/registers/stock"
)

// History exposes completed order legs to the stock recompute.
type History struct {
	repo Repository
}

// NewHistory creates a stock history reader over orders.
func NewHistory(repo Repository) *History {
	return &History{repo: repo}
}

// CompletedLegs returns one signed delta per line and leg of every completed order.
func (h *History) CompletedLegs(ctx context.Context) ([]stock.Delta, error) {
	orders, err := h.repo.ListCompleted(ctx)
	if err != nil {
		return nil, fmt.Errorf("list completed orders: %w", err)
	}
	var out []stock.Delta
	for _, o := range orders {
		for _, l := range o.Lines {
			if o.OutboundWarehouseID != nil {
				out = append(out, stock.Delta{
					Key:      stock.NewKey(*o.OutboundWarehouseID, l.ProductID, l.SpecID),
					Quantity: l.Quantity.Neg(),
				})
			}
			if o.InboundWarehouseID != nil {
				out = append(out, stock.Delta{
					Key:      stock.NewKey(*o.InboundWarehouseID, l.ProductID, l.SpecID),
					Quantity: l.Quantity,
				})
			}
		}
	}
	return out, nil
}

var _ stock.History = (*History)(nil)

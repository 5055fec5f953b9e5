package order

import (
	"context"
	"time"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/pkg/logger"
)

// Return raises a draft return order from a completed sale or purchase.
// The original keeps its status and gets a returned flow.
func (s *Service) Return(ctx context.Context, orderID id.ID, payload ActionPayload, actorID string) (*ActionResult, error) {
	var res *ActionResult
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.lock(ctx, orderID)
		if err != nil {
			return err
		}
		returnType, ok := o.Type.ReturnType()
		if o.Status != StatusCompleted || !ok {
			return apperror.NewInvalidStateTransition("order", string(o.Status), string(ActionReturn)).
				WithDetail("orderType", string(o.Type))
		}

		lines, err := s.returnLines(ctx, o, payload)
		if err != nil {
			return err
		}

		targetID := o.SourceID
		if payload.ReturnTargetID != nil {
			targetID = *payload.ReturnTargetID
		}
		date := time.Now()
		if payload.ReturnDate != nil {
			date = *payload.ReturnDate
		}
		relatedID := o.ID
		in := Input{
			Type:             returnType,
			SourceID:         o.TargetID,
			TargetID:         targetID,
			RelatedOrderID:   &relatedID,
			LogisticsPartyID: o.LogisticsPartyID,
			OrderDate:        date,
			Notes:            "return of " + o.OrderNo,
			Lines:            lines,
		}
		ret, err := s.Create(ctx, in, actorID)
		if err != nil {
			return err
		}

		meta := ReturnSpawned{OrderID: ret.ID, OrderNo: ret.OrderNo, TargetID: ret.TargetID}
		if err := s.appendFlow(ctx, o.ID, FlowReturned, meta, payload.Notes, actorID); err != nil {
			return err
		}
		res = &ActionResult{Order: o, ReturnOrder: ret}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "return order raised",
		"order_id", res.Order.ID,
		"return_order_no", res.ReturnOrder.OrderNo,
		"actor", actorID,
	)
	return res, nil
}

// returnable computes original quantity less quantities on non-cancelled return lines.
func (s *Service) returnable(ctx context.Context, o *Order) (map[id.ID]types.Quantity, error) {
	ids := make([]id.ID, 0, len(o.Lines))
	for _, l := range o.Lines {
		ids = append(ids, l.ID)
	}
	returned, err := s.repo.ReturnedQuantities(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[id.ID]types.Quantity, len(o.Lines))
	for _, l := range o.Lines {
		left := l.Quantity
		if r, ok := returned[l.ID]; ok {
			left = left.Sub(r)
		}
		out[l.ID] = types.MaxDec(left, types.Zero())
	}
	return out, nil
}

// returnLines builds the lines of a return order.
// Freight comes from the item, else the total split by amount, else the original scaled by quantity.
func (s *Service) returnLines(ctx context.Context, o *Order, payload ActionPayload) ([]LineInput, error) {
	available, err := s.returnable(ctx, o)
	if err != nil {
		return nil, err
	}

	items := payload.ReturnItems
	if len(items) == 0 {
		for _, l := range o.Lines {
			if q := available[l.ID]; q.IsPositive() {
				items = append(items, ReturnItem{LineID: l.ID, Quantity: q})
			}
		}
		if len(items) == 0 {
			return nil, apperror.NewValidation("no returnable quantity").WithDetail("orderId", o.ID.String())
		}
	}

	totalAmount := types.Zero()
	for _, it := range items {
		if l, ok := o.Line(it.LineID); ok {
			totalAmount = totalAmount.Add(l.UnitPrice.Mul(it.Quantity))
		}
	}

	out := make([]LineInput, 0, len(items))
	for _, it := range items {
		l, ok := o.Line(it.LineID)
		if !ok {
			return nil, apperror.NewValidation("line does not belong to the order").
				WithDetail("lineId", it.LineID.String())
		}
		left := available[l.ID]
		if !left.IsPositive() {
			return nil, apperror.NewValidation("no returnable quantity").WithDetail("lineId", l.ID.String())
		}
		if !it.Quantity.IsPositive() || it.Quantity.GreaterThan(left) {
			return nil, apperror.NewValidation("return quantity out of range").
				WithDetail("lineId", l.ID.String()).
				WithDetail("returnable", left.String())
		}
		available[l.ID] = left.Sub(it.Quantity)

		var shipping types.Money
		switch {
		case it.ShippingCost != nil:
			shipping = *it.ShippingCost
		case payload.ReturnShipping != nil && totalAmount.IsPositive():
			shipping = payload.ReturnShipping.Mul(l.UnitPrice.Mul(it.Quantity)).Div(totalAmount)
		default:
			shipping = scale(l.ShippingCost, it.Quantity, l.Quantity)
		}

		originalID := l.ID
		li := LineInput{
			ProductID:        l.ProductID,
			SpecID:           l.SpecID,
			PricingMode:      l.PricingMode,
			Quantity:         it.Quantity,
			UnitPrice:        l.UnitPrice,
			ShippingCost:     types.RoundMoney(shipping),
			Discount:         scale(l.Discount, it.Quantity, l.Quantity),
			StorageRate:      l.StorageRate,
			OriginalLineID:   &originalID,
			LogisticsPartyID: l.LogisticsPartyID,
			Notes:            "returned from " + o.OrderNo,
		}
		if o.Type == TypePurchase && l.LotID != nil {
			li.LotID = l.LotID
		}
		switch {
		case l.UnitQuantity != nil && l.UnitQuantity.IsPositive():
			count := types.RoundQuantity(it.Quantity.Div(*l.UnitQuantity))
			li.ContainerCount = &count
		case l.ContainerCount != nil:
			count := types.RoundQuantity(l.ContainerCount.Mul(it.Quantity).Div(l.Quantity))
			li.ContainerCount = &count
		}
		out = append(out, li)
	}
	return out, nil
}

// scale prorates value by qty/total, rounded to cents.
func scale(value types.Money, qty, total types.Quantity) types.Money {
	if value.IsZero() || !total.IsPositive() {
		return types.Zero()
	}
	return types.RoundMoney(value.Mul(qty).Div(total))
}

package order

import (
	"context"
	"fmt"
	"time"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain/catalogs/party"
	"coldledger/internal/domain/registers/account"
	"coldledger/internal/domain/registers/lot"
	"coldledger/internal/domain/registers/stock"
	"coldledger/internal/domain/storagefee"
	"coldledger/pkg/logger"
)

// ActionPayload carries optional data for a status change.
type ActionPayload struct {
	Notes string

	// Return options.
	ReturnTargetID *id.ID
	ReturnDate     *time.Time
	ReturnShipping *types.Money
	ReturnItems    []ReturnItem
}

// ReturnItem asks to return part of one original line.
type ReturnItem struct {
	LineID       id.ID
	Quantity     types.Quantity
	ShippingCost *types.Money
}

// ActionResult is the outcome of ChangeStatus.
type ActionResult struct {
	Order *Order `json:"order"`

	// ReturnOrder is set for the return action.
	ReturnOrder *Order `json:"returnOrder,omitempty"`
}

// ChangeStatus completes, cancels or raises a return for an order.
func (s *Service) ChangeStatus(ctx context.Context, orderID id.ID, action Action, payload ActionPayload, actorID string) (*ActionResult, error) {
	switch action {
	case ActionComplete:
		o, err := s.Complete(ctx, orderID, payload.Notes, actorID)
		if err != nil {
			return nil, err
		}
		return &ActionResult{Order: o}, nil
	case ActionCancel:
		o, err := s.Cancel(ctx, orderID, payload.Notes, actorID)
		if err != nil {
			return nil, err
		}
		return &ActionResult{Order: o}, nil
	case ActionReturn:
		return s.Return(ctx, orderID, payload, actorID)
	}
	return nil, apperror.NewValidation("unknown order action").
		WithDetail("field", "action").
		WithDetail("value", string(action))
}

// Cancel voids a draft order. No stock, lot or account effects.
func (s *Service) Cancel(ctx context.Context, orderID id.ID, notes, actorID string) (*Order, error) {
	var out *Order
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.lock(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.IsDraft() {
			return apperror.NewInvalidStateTransition("order", string(o.Status), string(ActionCancel))
		}
		o.Status = StatusCancelled
		o.UpdatedBy = actorID
		o.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		out = o
		return s.appendFlow(ctx, o.ID, FlowCancelled, nil, notes, actorID)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "order cancelled", "order_id", out.ID, "order_no", out.OrderNo, "actor", actorID)
	return out, nil
}

// completion accumulates what Complete booked.
type completion struct {
	order      *Order
	source     *party.Party
	target     *party.Party
	summary    CompletionSummary
	shortfalls []ShortfallLine
	// outbound and inbound are the stock legs the order type runs.
	outbound bool
	inbound  bool
	// outboundCost holds the FIFO mean per line for inbound lots of transfers.
	outboundCost map[id.ID]types.Money
}

// Complete applies the order's stock, lot, fee and account effects atomically.
func (s *Service) Complete(ctx context.Context, orderID id.ID, notes, actorID string) (*Order, error) {
	var c *completion
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.lock(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.IsDraft() {
			return apperror.NewInvalidStateTransition("order", string(o.Status), string(ActionComplete))
		}
		c, err = s.beginCompletion(ctx, o)
		if err != nil {
			return err
		}

		if c.outbound {
			if err := s.outboundLeg(ctx, c, actorID); err != nil {
				return err
			}
		}
		if c.inbound {
			if err := s.inboundLeg(ctx, c, actorID); err != nil {
				return err
			}
		}
		if err := s.applyStorageFee(ctx, c); err != nil {
			return err
		}
		o.Recalculate()

		entries, err := s.accounts.Generate(ctx, s.facts(c), actorID)
		if err != nil {
			return err
		}
		c.summary.Entries = len(entries)

		now := time.Now().UTC()
		o.Status = StatusCompleted
		o.CompletedAt = &now
		o.UpdatedBy = actorID
		o.UpdatedAt = now
		if err := s.repo.Update(ctx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if err := s.repo.SaveLines(ctx, o.ID, o.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}

		c.summary.StorageFee = o.StorageFee
		c.summary.StorageFeeLeg = o.StorageFeeLeg
		c.summary.CostAmount, c.summary.Profit = costTotals(o.Lines)
		if err := s.appendFlow(ctx, o.ID, FlowCompleted, c.summary, notes, actorID); err != nil {
			return err
		}
		if len(c.shortfalls) > 0 {
			if err := s.appendFlow(ctx, o.ID, FlowCompleted, AllocationShortfall{Lines: c.shortfalls}, "", actorID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o := c.order
	logger.Info(ctx, "order completed",
		"order_id", o.ID,
		"order_no", o.OrderNo,
		"type", o.Type,
		"final_amount", o.FinalAmount,
		"entries", c.summary.Entries,
		"actor", actorID,
	)
	return o, nil
}

func (s *Service) beginCompletion(ctx context.Context, o *Order) (*completion, error) {
	src, err := s.parties.GetByID(ctx, o.SourceID)
	if err != nil {
		return nil, err
	}
	tgt, err := s.parties.GetByID(ctx, o.TargetID)
	if err != nil {
		return nil, err
	}
	outbound, inbound := o.Type.Legs(src.Roles, tgt.Roles)
	return &completion{
		order:        o,
		source:       src,
		target:       tgt,
		outbound:     outbound,
		inbound:      inbound,
		summary:      CompletionSummary{Shortfall: types.Zero(), StorageFee: types.Zero()},
		outboundCost: make(map[id.ID]types.Money),
	}, nil
}

// outboundLeg takes stock out of the source warehouse and costs each line by FIFO.
func (s *Service) outboundLeg(ctx context.Context, c *completion, actorID string) error {
	o := c.order
	warehouseID := o.SourceID
	o.OutboundWarehouseID = &warehouseID
	c.summary.OutboundWarehouseID = &warehouseID

	for i := range o.Lines {
		l := &o.Lines[i]
		key := stock.NewKey(warehouseID, l.ProductID, l.SpecID)
		ref := stock.OrderRef(o.ID, l.ID, "order "+o.OrderNo)
		if _, err := s.stock.Reduce(ctx, key, l.Quantity, true, ref, actorID); err != nil {
			return err
		}

		req := lot.FIFORequest{
			OrderID:     o.ID,
			OrderLineID: l.ID,
			ProductID:   l.ProductID,
			WarehouseID: warehouseID,
			Quantity:    l.Quantity,
			AsOf:        o.OrderDate,
			PreferLotID: l.LotID,
		}
		if o.Type == TypeReturnOut && req.PreferLotID == nil && l.OriginalLineID != nil {
			lotID, err := s.originalLot(ctx, *l.OriginalLineID)
			if err != nil {
				return err
			}
			req.PreferLotID = lotID
		}
		res, err := s.lots.AllocateFIFO(ctx, req)
		if err != nil {
			return err
		}

		c.summary.Allocations += len(res.Allocations)
		l.Shortfall = res.Shortfall
		l.CostPrice = res.CostPrice
		l.CostAmount = res.CostAmount
		l.Profit = nil
		if res.CostAmount != nil {
			profit := l.Amount.Sub(*res.CostAmount)
			l.Profit = &profit
		}
		if res.CostPrice != nil {
			c.outboundCost[l.ID] = *res.CostPrice
		}
		if res.Shortfall.IsPositive() {
			c.summary.Shortfall = c.summary.Shortfall.Add(res.Shortfall)
			c.shortfalls = append(c.shortfalls, ShortfallLine{
				LineID:    l.ID,
				ProductID: l.ProductID,
				Requested: l.Quantity,
				Shortfall: res.Shortfall,
			})
		}
	}
	return nil
}

// originalLot finds the lot created by the purchase line a supplier return refers to.
// A line that no longer exists yields no preference.
func (s *Service) originalLot(ctx context.Context, originalLineID id.ID) (*id.ID, error) {
	line, err := s.repo.GetLine(ctx, originalLineID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load original line: %w", err)
	}
	if line == nil {
		return nil, nil
	}
	return line.LotID, nil
}

// inboundLeg puts stock into the target warehouse and books lots.
func (s *Service) inboundLeg(ctx context.Context, c *completion, actorID string) error {
	o := c.order
	warehouseID := o.TargetID
	o.InboundWarehouseID = &warehouseID
	c.summary.InboundWarehouseID = &warehouseID

	for i := range o.Lines {
		l := &o.Lines[i]
		key := stock.NewKey(warehouseID, l.ProductID, l.SpecID)
		ref := stock.OrderRef(o.ID, l.ID, "order "+o.OrderNo)
		if _, err := s.stock.Add(ctx, key, l.Quantity, ref, actorID); err != nil {
			return err
		}

		remaining := l.Quantity
		if o.Type == TypeReturnIn && l.OriginalLineID != nil {
			restored, err := s.lots.RestoreToOriginalLots(ctx, lot.RestoreRequest{
				OrderID:        o.ID,
				OrderLineID:    l.ID,
				OriginalLineID: *l.OriginalLineID,
				Quantity:       l.Quantity,
				Reason:         "return " + o.OrderNo,
			})
			if err != nil {
				return err
			}
			for _, a := range restored {
				remaining = remaining.Sub(a.Quantity)
				c.summary.LotsRestored = append(c.summary.LotsRestored, a.LotNo)
			}
		}
		if !remaining.IsPositive() {
			continue
		}

		created, err := s.lots.CreateInbound(ctx, s.inboundParams(c, l, warehouseID, remaining), actorID)
		if err != nil {
			return err
		}
		if remaining.Equal(l.Quantity) && !c.outbound {
			lotID := created.ID
			l.LotID = &lotID
		}
		c.summary.LotsCreated = append(c.summary.LotsCreated, created.LotNo)
	}
	return nil
}

func (s *Service) inboundParams(c *completion, l *Line, warehouseID id.ID, qty types.Quantity) lot.InboundParams {
	o := c.order
	cost := l.UnitPrice
	if mean, ok := c.outboundCost[l.ID]; ok {
		cost = mean
	}
	gross, tare := l.GrossWeight, l.TareWeight
	if !qty.Equal(l.Quantity) {
		gross, tare = nil, nil
	}

	p := lot.InboundParams{
		OrderID:      o.ID,
		OrderLineID:  l.ID,
		ProductID:    l.ProductID,
		SpecID:       l.SpecID,
		WarehouseID:  warehouseID,
		FormulaID:    l.FormulaID,
		Quantity:     qty,
		GrossWeight:  gross,
		TareWeight:   tare,
		CostPrice:    cost,
		FreightCost:  l.ShippingCost,
		StorageRate:  types.DecOrZero(l.StorageRate),
		ExtraCost:    types.Zero(),
		BusinessDate: o.OrderDate,
		Notes:        "order " + o.OrderNo,
	}
	if !c.outbound {
		sourceID := o.SourceID
		p.SourcePartyID = &sourceID
	}
	return p
}

// applyStorageFee prices storage when the order opts in; otherwise the entered fee stays
// and is billed to the leg the policy picks.
func (s *Service) applyStorageFee(ctx context.Context, c *completion) error {
	o := c.order
	if !o.CalculateStorageFee {
		o.StorageFeeLeg = ""
		if o.StorageFee.IsPositive() {
			o.StorageFeeLeg = string(storagefee.LegFor(string(o.Type), c.source.Roles, c.target.Roles))
		}
		return nil
	}

	req := storagefee.Request{
		OrderType:    string(o.Type),
		SourceID:     o.SourceID,
		SourceRoles:  c.source.Roles,
		TargetRoles:  c.target.Roles,
		BusinessDate: o.OrderDate,
	}
	for _, l := range o.Lines {
		req.Lines = append(req.Lines, storagefee.Line{ID: l.ID, ProductID: l.ProductID, Quantity: l.Quantity})
	}
	res, err := s.fees.Calculate(ctx, req)
	if err != nil {
		return err
	}
	o.StorageFee = res.Fee
	o.StorageFeeLeg = string(res.Leg)
	return nil
}

// facts summarizes the completed order for entry generation.
func (s *Service) facts(c *completion) account.OrderFacts {
	o := c.order
	goods := types.MaxDec(o.GoodsAmount.Sub(o.Discount), types.Zero())
	return account.OrderFacts{
		OrderID:          o.ID,
		OrderNo:          o.OrderNo,
		OrderType:        string(o.Type),
		SourceID:         o.SourceID,
		TargetID:         o.TargetID,
		SourceRoles:      c.source.Roles,
		TargetRoles:      c.target.Roles,
		Inbound:          c.inbound,
		Outbound:         c.outbound,
		LogisticsPartyID: o.LogisticsParty(),
		StorageLeg:       o.StorageFeeLeg,
		BusinessDate:     o.OrderDate,
		DueDate:          o.DueDate,
		Goods:            goods,
		Freight:          o.ShippingAmount,
		Storage:          o.StorageFee,
		Other:            o.OtherFee,
	}
}

// costTotals sums line cost and profit; nil when no line was costed.
func costTotals(lines []Line) (*types.Money, *types.Money) {
	var cost, profit *types.Money
	for _, l := range lines {
		if l.CostAmount != nil {
			sum := types.DecOrZero(cost).Add(*l.CostAmount)
			cost = &sum
		}
		if l.Profit != nil {
			sum := types.DecOrZero(profit).Add(*l.Profit)
			profit = &sum
		}
	}
	return cost, profit
}

package order

import (
	"context"
	"fmt"
	"time"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/domain/registers/stock"
	"coldledger/pkg/logger"
)

// Delete removes an order. Drafts and cancelled orders go freely; a completed
// order needs force and is reversed first. Every guard runs before any change.
func (s *Service) Delete(ctx context.Context, orderID id.ID, force bool, actorID string) error {
	var deleted *Order
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.lock(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status == StatusCompleted {
			if !force {
				return apperror.NewInvalidStateTransition("order", string(o.Status), "delete").
					WithDetail("hint", "completed orders need force")
			}
			if err := s.checkReversible(ctx, o); err != nil {
				return err
			}
			if err := s.reverse(ctx, o, actorID); err != nil {
				return err
			}
		}

		flows, err := s.repo.ListFlows(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("list flows: %w", err)
		}
		if s.archive != nil {
			snap := &Snapshot{Order: o, Flows: flows, DeletedBy: actorID, DeletedAt: time.Now().UTC(), Forced: force}
			if err := s.archive.Store(ctx, snap); err != nil {
				return fmt.Errorf("archive order: %w", err)
			}
		}
		if err := s.repo.Delete(ctx, o.ID); err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		deleted = o
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "order deleted",
		"order_id", deleted.ID,
		"order_no", deleted.OrderNo,
		"forced", force,
		"actor", actorID,
	)
	return nil
}

// checkReversible fails when undoing the order would break later history.
func (s *Service) checkReversible(ctx context.Context, o *Order) error {
	paid, err := s.accounts.HasPayments(ctx, o.ID)
	if err != nil {
		return err
	}
	if paid {
		return apperror.NewConsistency("order entries have payments; delete the payments first").
			WithDetail("orderNo", o.OrderNo)
	}

	children, err := s.repo.ListChildren(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("list return orders: %w", err)
	}
	for _, ch := range children {
		if ch.Status != StatusCancelled {
			return apperror.NewConsistency("order has return orders").
				WithDetail("returnOrderNo", ch.OrderNo)
		}
	}

	inUse, err := s.lots.CreatedLotsInUse(ctx, o.ID)
	if err != nil {
		return err
	}
	if inUse {
		return apperror.NewConsistency("lots created by the order have already been consumed").
			WithDetail("orderNo", o.OrderNo)
	}
	return nil
}

// reverse undoes completion: entries, outbound allocations and stock, restorations,
// then created lots and inbound stock.
func (s *Service) reverse(ctx context.Context, o *Order, actorID string) error {
	if err := s.accounts.RemoveForOrder(ctx, o.ID); err != nil {
		return err
	}

	if _, err := s.lots.ReleaseAllocations(ctx, o.ID); err != nil {
		return err
	}
	reason := "delete order " + o.OrderNo
	if o.OutboundWarehouseID != nil {
		for _, l := range o.Lines {
			key := stock.NewKey(*o.OutboundWarehouseID, l.ProductID, l.SpecID)
			if _, err := s.stock.Add(ctx, key, l.Quantity, stock.OrderRef(o.ID, l.ID, reason), actorID); err != nil {
				return err
			}
		}
	}

	if _, err := s.lots.DeleteCreatedLots(ctx, o.ID); err != nil {
		return err
	}
	if o.InboundWarehouseID != nil {
		for _, l := range o.Lines {
			key := stock.NewKey(*o.InboundWarehouseID, l.ProductID, l.SpecID)
			if _, err := s.stock.Reduce(ctx, key, l.Quantity, false, stock.OrderRef(o.ID, l.ID, reason), actorID); err != nil {
				return err
			}
		}
	}
	return nil
}
